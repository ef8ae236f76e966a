package quant

import "fmt"

// Warning reports a non-fatal validation finding. Warnings never stop a
// build; they are collected and surfaced to the caller.
type Warning struct {
	Context   string
	Accession string
	Message   string
}

func (w Warning) String() string {
	if w.Accession == "" {
		return fmt.Sprintf("%s: %s", w.Context, w.Message)
	}
	return fmt.Sprintf("%s: %s: %s", w.Context, w.Accession, w.Message)
}

// Result aggregates warnings from validation and population.
type Result struct {
	Warnings []Warning
}

// Add appends a single warning.
func (r *Result) Add(w Warning) {
	r.Warnings = append(r.Warnings, w)
}

// Merge appends warnings from another result.
func (r *Result) Merge(other Result) {
	if len(other.Warnings) == 0 {
		return
	}
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// OK reports whether the result carries no warnings.
func (r Result) OK() bool {
	return len(r.Warnings) == 0
}
