package cv

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"mzquant/pkg/quant"
)

// exemptPrefix marks vocabulary sections known not to declare value types;
// values on their terms are accepted without complaint.
const exemptPrefix = "PATO:"

// sampleContext is the enclosing context that borrows external ontologies;
// unknown accessions inside it are accepted silently.
const sampleContext = "sample"

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"}

// Validator checks (accession, name, value) triples against a vocabulary.
// All findings are returned as warnings; validation never fails hard, so a
// drifting document keeps loading.
type Validator struct {
	vocab *Vocabulary
}

// NewValidator returns a validator backed by the given vocabulary.
func NewValidator(vocab *Vocabulary) *Validator {
	return &Validator{vocab: vocab}
}

// Check validates one term assertion appearing inside the named context tag
// and returns the warnings it produced. A rejected value (failed numeric or
// date parse) stops further checks for that triple only.
func (v *Validator) Check(context, accession, name, value string) quant.Result {
	var res quant.Result

	term, known := v.vocab.Term(accession)
	if !known {
		// The sample context borrows external ontologies; accept silently.
		if !strings.EqualFold(context, sampleContext) {
			res.Add(quant.Warning{
				Context:   context,
				Accession: accession,
				Message:   fmt.Sprintf("unknown term in tag %q", context),
			})
		}
		return res
	}

	if term.Obsolete {
		res.Add(quant.Warning{
			Context:   context,
			Accession: accession,
			Message:   fmt.Sprintf("obsolete term %q used in tag %q", term.Name, context),
		})
	}

	if strings.TrimSpace(name) != strings.TrimSpace(term.Name) {
		res.Add(quant.Warning{
			Context:   context,
			Accession: accession,
			Message:   fmt.Sprintf("term name %q should be %q", strings.TrimSpace(name), strings.TrimSpace(term.Name)),
		})
	}

	if value != "" {
		res.Merge(v.checkValue(context, accession, term, value))
		return res
	}

	if term.ValueType != ValueNone && term.ValueType != ValueString {
		res.Add(quant.Warning{
			Context:   context,
			Accession: accession,
			Message:   fmt.Sprintf("term %q should have a numerical value", term.Name),
		})
	}
	return res
}

func (v *Validator) checkValue(context, accession string, term Term, value string) quant.Result {
	var res quant.Result
	switch term.ValueType {
	case ValueNone:
		if !strings.HasPrefix(accession, exemptPrefix) {
			res.Add(quant.Warning{
				Context:   context,
				Accession: accession,
				Message:   fmt.Sprintf("term %q must not have a value, the value is %q", term.Name, value),
			})
		}
	case ValueString:
		// anything goes
	case ValueInteger:
		if _, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err != nil {
			res.Add(quant.Warning{
				Context:   context,
				Accession: accession,
				Message:   fmt.Sprintf("term %q must have an integer value, the value is %q", term.Name, value),
			})
		}
	case ValueDecimal:
		if _, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err != nil {
			res.Add(quant.Warning{
				Context:   context,
				Accession: accession,
				Message:   fmt.Sprintf("term %q must have a floating-point value, the value is %q", term.Name, value),
			})
		}
	case ValueDate:
		if !parsesAsDate(value) {
			res.Add(quant.Warning{
				Context:   context,
				Accession: accession,
				Message:   fmt.Sprintf("term %q must have a valid date value, the value is %q", term.Name, value),
			})
		}
	default:
		res.Add(quant.Warning{
			Context:   context,
			Accession: accession,
			Message:   fmt.Sprintf("term %q has the unknown value type %q", term.Name, string(term.ValueType)),
		})
	}
	return res
}

func parsesAsDate(value string) bool {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}
