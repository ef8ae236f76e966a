// Package cv loads controlled vocabularies from OBO files and validates
// term assertions against them.
package cv

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ValueType is the value type a vocabulary term declares for its uses.
// All integer subtypes (positive, negative, non-negative, non-positive)
// collapse into ValueInteger.
type ValueType string

// Declared term value types.
const (
	ValueNone    ValueType = "none"
	ValueString  ValueType = "string"
	ValueInteger ValueType = "integer"
	ValueDecimal ValueType = "decimal"
	ValueDate    ValueType = "date"
	ValueUnknown ValueType = "unknown"
)

// Term is one vocabulary entry: canonical name, obsolescence flag, and the
// declared value type of its uses.
type Term struct {
	Accession string
	Name      string
	Obsolete  bool
	ValueType ValueType
}

// Vocabulary is an in-memory term dictionary keyed by accession. It is
// loaded once and treated as read-only for the remainder of a build.
type Vocabulary struct {
	terms map[string]Term
}

// NewVocabulary returns an empty vocabulary. Mostly useful for tests that
// add terms directly.
func NewVocabulary() *Vocabulary {
	return &Vocabulary{terms: make(map[string]Term)}
}

// AddTerm registers or replaces a term.
func (v *Vocabulary) AddTerm(t Term) {
	v.terms[t.Accession] = t
}

// Merge copies every term of other into v, replacing duplicates. Used to
// combine several ontology files into one lookup.
func (v *Vocabulary) Merge(other *Vocabulary) {
	for acc, t := range other.terms {
		v.terms[acc] = t
	}
}

// Exists reports whether the accession is known.
func (v *Vocabulary) Exists(accession string) bool {
	_, ok := v.terms[accession]
	return ok
}

// Term returns the entry for accession.
func (v *Vocabulary) Term(accession string) (Term, bool) {
	t, ok := v.terms[accession]
	return t, ok
}

// Len returns the number of loaded terms.
func (v *Vocabulary) Len() int { return len(v.terms) }

// LoadOBO parses the OBO file at path into a vocabulary. Only the stanza
// fields the validator consumes are read: id, name, is_obsolete, and the
// value-type xref.
func LoadOBO(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary: %w", err)
	}
	defer func() { _ = f.Close() }()

	v := NewVocabulary()
	var cur *Term
	flush := func() {
		if cur != nil && cur.Accession != "" {
			v.AddTerm(*cur)
		}
		cur = nil
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "[Term]":
			flush()
			cur = &Term{ValueType: ValueNone}
		case strings.HasPrefix(line, "["):
			// typedef or other stanza
			flush()
		case cur == nil:
			continue
		case strings.HasPrefix(line, "id:"):
			cur.Accession = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "name:"):
			cur.Name = strings.TrimSpace(strings.TrimPrefix(line, "name:"))
		case strings.HasPrefix(line, "is_obsolete:"):
			cur.Obsolete = strings.TrimSpace(strings.TrimPrefix(line, "is_obsolete:")) == "true"
		case strings.HasPrefix(line, "xref: value-type:"):
			cur.ValueType = parseValueType(strings.TrimPrefix(line, "xref: value-type:"))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	flush()
	return v, nil
}

// parseValueType maps an OBO value-type xref (e.g. `xsd\:string "..."`)
// onto the validator's type lattice.
func parseValueType(raw string) ValueType {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexAny(raw, " \t"); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.ReplaceAll(raw, `\:`, ":")
	raw = strings.TrimPrefix(raw, "xsd:")
	switch raw {
	case "string", "anyURI":
		return ValueString
	case "int", "integer", "long", "short", "byte",
		"positiveInteger", "negativeInteger",
		"nonNegativeInteger", "nonPositiveInteger",
		"unsignedInt", "unsignedLong", "unsignedShort", "unsignedByte":
		return ValueInteger
	case "float", "double", "decimal":
		return ValueDecimal
	case "date", "dateTime":
		return ValueDate
	case "":
		return ValueNone
	default:
		return ValueUnknown
	}
}
