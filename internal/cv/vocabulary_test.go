package cv

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleOBO = `format-version: 1.2
date: 05:01:2012 14:47

[Term]
id: MS:1000001
name: sample number
xref: value-type:xsd\:string "The allowed value-type for this CV term."

[Term]
id: MS:1000011
name: mass resolution
xref: value-type:xsd\:float "The allowed value-type for this CV term."

[Term]
id: MS:1000022
name: TOF Total Path Length
is_obsolete: true

[Term]
id: MS:1000073
name: scan count
xref: value-type:xsd\:nonNegativeInteger "The allowed value-type for this CV term."

[Term]
id: MS:1000747
name: completion time
xref: value-type:xsd\:dateTime "The allowed value-type for this CV term."

[Typedef]
id: part_of
name: part of
`

func writeOBO(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "terms.obo")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write obo: %v", err)
	}
	return path
}

func TestLoadOBO(t *testing.T) {
	vocab, err := LoadOBO(writeOBO(t, sampleOBO))
	if err != nil {
		t.Fatalf("LoadOBO: %v", err)
	}
	if got, want := vocab.Len(), 5; got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}

	cases := []struct {
		accession string
		name      string
		obsolete  bool
		valueType ValueType
	}{
		{"MS:1000001", "sample number", false, ValueString},
		{"MS:1000011", "mass resolution", false, ValueDecimal},
		{"MS:1000022", "TOF Total Path Length", true, ValueNone},
		{"MS:1000073", "scan count", false, ValueInteger},
		{"MS:1000747", "completion time", false, ValueDate},
	}
	for _, tc := range cases {
		term, ok := vocab.Term(tc.accession)
		if !ok {
			t.Fatalf("term %s not loaded", tc.accession)
		}
		if term.Name != tc.name {
			t.Errorf("%s name = %q, want %q", tc.accession, term.Name, tc.name)
		}
		if term.Obsolete != tc.obsolete {
			t.Errorf("%s obsolete = %v, want %v", tc.accession, term.Obsolete, tc.obsolete)
		}
		if term.ValueType != tc.valueType {
			t.Errorf("%s value type = %q, want %q", tc.accession, term.ValueType, tc.valueType)
		}
	}

	if vocab.Exists("part_of") {
		t.Fatalf("typedef stanza leaked into term dictionary")
	}
}

func TestLoadOBOMissingFile(t *testing.T) {
	if _, err := LoadOBO(filepath.Join(t.TempDir(), "absent.obo")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestParseValueType(t *testing.T) {
	cases := []struct {
		raw  string
		want ValueType
	}{
		{`xsd\:string "desc"`, ValueString},
		{`xsd\:anyURI`, ValueString},
		{`xsd\:int`, ValueInteger},
		{`xsd\:positiveInteger`, ValueInteger},
		{`xsd\:double`, ValueDecimal},
		{`xsd\:date`, ValueDate},
		{``, ValueNone},
		{`xsd\:gYear`, ValueUnknown},
	}
	for _, tc := range cases {
		if got := parseValueType(tc.raw); got != tc.want {
			t.Errorf("parseValueType(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
