// Package quant defines the document entities, input model, and diagnostic
// values used by the mzquant report builder.
package quant

// QuantType selects which quantification workflow governs the structural
// branches of report population and serialization.
type QuantType string

// Supported quantification workflow discriminators.
const (
	// MS1Label identifies label-based MS1 quantification (e.g. SILAC).
	MS1Label QuantType = "MS1_LABEL"
	// MS2Label identifies tag-based MS2 quantification (e.g. iTRAQ).
	MS2Label QuantType = "MS2_LABEL"
	// LabelFree identifies label-free quantification. No dedicated report
	// sections exist for it yet; builds degrade to the common sections.
	LabelFree QuantType = "LABEL_FREE"
	// Unspecified marks experiments without a recognized workflow.
	Unspecified QuantType = "UNSPECIFIED"
)

// TermValue is a controlled-vocabulary assertion attached to a document
// element: a source reference, accession, canonical name, and optional value.
type TermValue struct {
	CVRef     string `json:"cv_ref"`
	Accession string `json:"accession"`
	Name      string `json:"name"`
	Value     string `json:"value,omitempty"`
}

// Software describes one software run referenced by data processing steps.
type Software struct {
	ID      string
	Name    string
	Version string
	Terms   []TermValue
	Params  map[string]string
}

// ProcessingMethod is one ordered action inside a DataProcessing element.
type ProcessingMethod struct {
	Order    int
	Action   string
	Software string
}

// DataProcessing groups the ordered processing actions of one software run.
type DataProcessing struct {
	ID          string
	SoftwareRef string
	Order       int
	Methods     []ProcessingMethod
}

// RawFile is a single source data file registered in the document.
type RawFile struct {
	ID       string
	Location string
}

// RawFilesGroup collects the raw files an assay was acquired from. Groups
// are created lazily and reused whenever a member path has been seen before.
type RawFilesGroup struct {
	ID    string
	Files []RawFile
}

// LabelTerm is the vocabulary rendering of one assay label modification.
type LabelTerm struct {
	MassDelta string
	CVRef     string
	Accession string
	Name      string
	Value     string
}

// Assay ties a quantification channel to its raw-files group and label.
type Assay struct {
	ID               string
	RawFilesGroupRef string
	Label            []LabelTerm
}

// StudyVariable groups assays under one experimental condition. The current
// policy emits exactly one study variable per assay.
type StudyVariable struct {
	ID        string
	Name      string
	AssayRefs []string
}

// Feature is a detected signal carrying position and charge; quantities are
// reported separately through quant-layer matrices keyed by feature ID.
type Feature struct {
	ID           string
	RT           float64
	MZ           float64
	Charge       int
	MapIndex     uint64
	FeatureIndex uint64
	// HasIndexes distinguishes per-handle features, which carry map and
	// feature indexes, from per-consensus features, which do not.
	HasIndexes bool
}

// Ratio relates two assay channels. The (numerator, denominator) pair is the
// de-duplication key; repeated pairs collapse to one entity.
type Ratio struct {
	ID             string
	NumeratorRef   string
	DenominatorRef string
	Value          float64
	Description    []string
}

// SearchDatabase records the sequence database behind identifications.
// At most one is created per document build.
type SearchDatabase struct {
	ID       string
	Location string
	Version  string
}

// IdentificationFile references the identification result file backing
// MS2 peptide evidence.
type IdentificationFile struct {
	ID                string
	Name              string
	Location          string
	SearchDatabaseRef string
}

// EvidenceRef ties a peptide consensus to the feature and assay(s)
// supporting it, plus identification references on the MS2 path.
type EvidenceRef struct {
	FeatureRef            string
	AssayRefs             []string
	IDRefs                string
	IdentificationFileRef string
}

// PeptideConsensus aggregates feature evidence for one peptide across assays.
type PeptideConsensus struct {
	ID                string
	Charge            int
	Sequence          string
	SearchDatabaseRef string
	Evidence          []EvidenceRef
}
