package quant

// Experiment is the read-only upstream input a report build walks once.
// Callers assemble it in memory or load it from a JSON description.
type Experiment struct {
	QuantType     QuantType          `json:"quant_type"`
	Processing    []ProcessingRecord `json:"processing"`
	Assays        []AssayInput       `json:"assays"`
	ConsensusMaps []ConsensusMap     `json:"consensus_maps"`
}

// ProcessingRecord is one upstream data-processing step: the software that
// ran, its ordered actions, and free-form parameters.
type ProcessingRecord struct {
	Software   SoftwareInfo      `json:"software"`
	Actions    []string          `json:"actions"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// SoftwareInfo carries the name, version, and known vocabulary terms of one
// software run.
type SoftwareInfo struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Terms   []TermValue `json:"terms,omitempty"`
}

// AssayInput describes one quantification channel: its stable external UID,
// the raw files it was acquired from, and its label modifications.
type AssayInput struct {
	UID      string     `json:"uid"`
	RawFiles []string   `json:"raw_files"`
	Mods     []LabelMod `json:"mods,omitempty"`
}

// LabelMod is a label modification as supplied upstream: a short name
// (e.g. the reporter channel) and the modification mass delta.
type LabelMod struct {
	Name      string  `json:"name"`
	MassDelta float64 `json:"mass_delta"`
}

// ConsensusMap is one collection of consensus entries, optionally carrying
// protein-level identification metadata.
type ConsensusMap struct {
	Entries                []ConsensusEntry        `json:"entries"`
	ProteinIdentifications []ProteinIdentification `json:"protein_identifications,omitempty"`
}

// ConsensusEntry aggregates the feature detections of one analyte across
// assays, with any computed ratios and peptide identifications.
type ConsensusEntry struct {
	RT              float64                 `json:"rt"`
	MZ              float64                 `json:"mz"`
	Charge          int                     `json:"charge"`
	Features        []FeatureHandle         `json:"features"`
	Ratios          []RatioInput            `json:"ratios,omitempty"`
	Identifications []PeptideIdentification `json:"identifications,omitempty"`
}

// FeatureHandle is one member feature detection of a consensus entry.
type FeatureHandle struct {
	RT        float64 `json:"rt"`
	MZ        float64 `json:"mz"`
	Charge    int     `json:"charge"`
	Intensity float64 `json:"intensity"`
	Width     float64 `json:"width"`
	MapIndex  uint64  `json:"map_index"`
	UniqueID  uint64  `json:"unique_id"`
}

// RatioInput is an upstream ratio between two assay channels.
type RatioInput struct {
	NumeratorRef   string   `json:"numerator_ref"`
	DenominatorRef string   `json:"denominator_ref"`
	Value          float64  `json:"value"`
	Description    []string `json:"description,omitempty"`
}

// PeptideIdentification holds the identification hits assigned to one
// consensus entry.
type PeptideIdentification struct {
	Identifier string              `json:"identifier"`
	Hits       []IdentificationHit `json:"hits"`
}

// IdentificationHit is a single peptide hit; only the unmodified sequence
// is consumed by the report builder.
type IdentificationHit struct {
	Sequence string `json:"sequence"`
}

// ProteinIdentification carries search metadata for protein-level results.
type ProteinIdentification struct {
	SearchParameters SearchParameters `json:"search_parameters"`
}

// SearchParameters holds the search-engine settings relevant to reporting.
type SearchParameters struct {
	DBVersion string `json:"db_version"`
}
