package cv

import (
	"strings"
	"testing"
)

func testVocabulary() *Vocabulary {
	v := NewVocabulary()
	v.AddTerm(Term{Accession: "MS:1000001", Name: "sample number", ValueType: ValueString})
	v.AddTerm(Term{Accession: "MS:1000073", Name: "scan count", ValueType: ValueInteger})
	v.AddTerm(Term{Accession: "MS:1000011", Name: "mass resolution", ValueType: ValueDecimal})
	v.AddTerm(Term{Accession: "MS:1000747", Name: "completion time", ValueType: ValueDate})
	v.AddTerm(Term{Accession: "MS:1000022", Name: "TOF Total Path Length", Obsolete: true})
	v.AddTerm(Term{Accession: "MS:1000030", Name: "vendor", ValueType: ValueNone})
	v.AddTerm(Term{Accession: "PATO:0000001", Name: "quality", ValueType: ValueNone})
	v.AddTerm(Term{Accession: "MS:1000999", Name: "odd term", ValueType: ValueUnknown})
	return v
}

func TestCheckUnknownTerm(t *testing.T) {
	val := NewValidator(testVocabulary())

	res := val.Check("cvParam", "MS:9999999", "bogus", "")
	if len(res.Warnings) != 1 {
		t.Fatalf("got %d warnings, want 1: %v", len(res.Warnings), res.Warnings)
	}
	if !strings.Contains(res.Warnings[0].Message, "unknown term") {
		t.Fatalf("unexpected message %q", res.Warnings[0].Message)
	}
}

func TestCheckUnknownTermInSampleContext(t *testing.T) {
	val := NewValidator(testVocabulary())

	// Sample descriptions borrow external ontologies and pass silently,
	// regardless of tag-name casing.
	for _, ctx := range []string{"sample", "Sample", "SAMPLE"} {
		if res := val.Check(ctx, "GO:0005634", "nucleus", ""); !res.OK() {
			t.Fatalf("context %q: got warnings %v, want none", ctx, res.Warnings)
		}
	}
}

func TestCheckObsoleteTermWarnsOnce(t *testing.T) {
	val := NewValidator(testVocabulary())

	res := val.Check("cvParam", "MS:1000022", "TOF Total Path Length", "")
	obsolete := 0
	for _, w := range res.Warnings {
		if strings.Contains(w.Message, "obsolete") {
			obsolete++
		}
	}
	if obsolete != 1 {
		t.Fatalf("got %d obsolete warnings, want 1: %v", obsolete, res.Warnings)
	}
}

func TestCheckNameMismatch(t *testing.T) {
	val := NewValidator(testVocabulary())

	// Whitespace padding is not a mismatch.
	if res := val.Check("cvParam", "MS:1000073", "  scan count ", "5"); !res.OK() {
		t.Fatalf("padded name: got warnings %v, want none", res.Warnings)
	}

	res := val.Check("cvParam", "MS:1000073", "scancount", "5")
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0].Message, "should be") {
		t.Fatalf("got %v, want one name warning", res.Warnings)
	}
}

func TestCheckValueTyping(t *testing.T) {
	val := NewValidator(testVocabulary())

	cases := []struct {
		name      string
		accession string
		termName  string
		value     string
		warnings  int
		contains  string
	}{
		{"integer ok", "MS:1000073", "scan count", "42", 0, ""},
		{"integer fractional", "MS:1000073", "scan count", "3.5", 1, "integer value"},
		{"integer garbage", "MS:1000073", "scan count", "lots", 1, "integer value"},
		{"decimal ok", "MS:1000011", "mass resolution", "0.25", 0, ""},
		{"decimal garbage", "MS:1000011", "mass resolution", "high", 1, "floating-point value"},
		{"date ok", "MS:1000747", "completion time", "2011-02-03", 0, ""},
		{"date garbage", "MS:1000747", "completion time", "yesterday", 1, "date value"},
		{"string anything", "MS:1000001", "sample number", "ab-17", 0, ""},
		{"none with value", "MS:1000030", "vendor", "acme", 1, "must not have a value"},
		{"exempt section with value", "PATO:0000001", "quality", "wide", 0, ""},
		{"unknown value type", "MS:1000999", "odd term", "x", 1, "unknown value type"},
	}
	for _, tc := range cases {
		res := val.Check("cvParam", tc.accession, tc.termName, tc.value)
		if len(res.Warnings) != tc.warnings {
			t.Errorf("%s: got %d warnings %v, want %d", tc.name, len(res.Warnings), res.Warnings, tc.warnings)
			continue
		}
		if tc.warnings > 0 && !strings.Contains(res.Warnings[0].Message, tc.contains) {
			t.Errorf("%s: message %q does not mention %q", tc.name, res.Warnings[0].Message, tc.contains)
		}
	}
}

func TestCheckMissingNumericValue(t *testing.T) {
	val := NewValidator(testVocabulary())

	res := val.Check("cvParam", "MS:1000073", "scan count", "")
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0].Message, "numerical value") {
		t.Fatalf("got %v, want one missing-value warning", res.Warnings)
	}

	// Terms without a declared value type are fine without a value.
	if res := val.Check("cvParam", "MS:1000030", "vendor", ""); !res.OK() {
		t.Fatalf("got warnings %v, want none", res.Warnings)
	}
}
