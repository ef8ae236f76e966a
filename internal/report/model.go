// Package report assembles and serializes the cross-referenced quantification
// document: a validated, build-once model of software runs, raw-file groups,
// assays, features, peptide consensus groups, and ratios.
package report

import (
	"sort"
	"strconv"

	"mzquant/pkg/quant"
)

// Model is the passive in-memory document state. Entities are appended
// during a single forward pass and never mutated afterwards; every entity ID
// is allocated exactly once by the model's own allocator and reused wherever
// it is referenced.
type Model struct {
	next uint64

	software   []quant.Software
	processing []quant.DataProcessing

	groups     []quant.RawFilesGroup
	groupIdx   map[string]int // group ID -> index into groups
	fileGroups map[string]string
	openGroup  int // index into groups, -1 when none

	assays    []quant.Assay
	studyVars []quant.StudyVariable

	ratioIDs map[string]string // numerator+denominator -> ratio ID
	ratios   map[string]quant.Ratio

	features []quant.Feature

	searchDB *quant.SearchDatabase
	idFile   *quant.IdentificationFile
}

// NewModel returns an empty model with a fresh ID allocator.
func NewModel() *Model {
	return &Model{
		groupIdx:   make(map[string]int),
		fileGroups: make(map[string]string),
		ratioIDs:   make(map[string]string),
		ratios:     make(map[string]quant.Ratio),
		openGroup:  -1,
	}
}

// AllocateID returns a token unique for the lifetime of this build.
func (m *Model) AllocateID() string {
	m.next++
	return strconv.FormatUint(m.next, 10)
}

// InternRawFile registers a raw-file path. A path seen before returns the ID
// of whichever group first owned it and creates nothing. An unseen path is
// appended to the currently open group, opening a fresh one when needed, and
// reports the group as new.
func (m *Model) InternRawFile(path string) (groupID string, isNew bool) {
	if gid, ok := m.fileGroups[path]; ok {
		return gid, false
	}
	if m.openGroup < 0 {
		g := quant.RawFilesGroup{ID: m.AllocateID()}
		m.groups = append(m.groups, g)
		m.openGroup = len(m.groups) - 1
		m.groupIdx[g.ID] = m.openGroup
	}
	g := &m.groups[m.openGroup]
	g.Files = append(g.Files, quant.RawFile{ID: m.AllocateID(), Location: path})
	m.fileGroups[path] = g.ID
	return g.ID, true
}

// CloseRawFileGroup seals the open group so the next unseen path starts a
// new one. Called once per assay.
func (m *Model) CloseRawFileGroup() {
	m.openGroup = -1
}

// InternRatio de-duplicates ratios by the concatenation of numerator and
// denominator refs. The key is order-sensitive: (num, den) and (den, num)
// are distinct. The first insert wins; repeated pairs return the existing ID.
func (m *Model) InternRatio(r quant.RatioInput) string {
	key := r.NumeratorRef + r.DenominatorRef
	if id, ok := m.ratioIDs[key]; ok {
		return id
	}
	id := m.AllocateID()
	m.ratioIDs[key] = id
	m.ratios[id] = quant.Ratio{
		ID:             id,
		NumeratorRef:   r.NumeratorRef,
		DenominatorRef: r.DenominatorRef,
		Value:          r.Value,
		Description:    append([]string(nil), r.Description...),
	}
	return id
}

// AddSoftware appends a software entry.
func (m *Model) AddSoftware(s quant.Software) {
	m.software = append(m.software, s)
}

// AddDataProcessing appends a data-processing entry.
func (m *Model) AddDataProcessing(p quant.DataProcessing) {
	m.processing = append(m.processing, p)
}

// AddAssay appends an assay.
func (m *Model) AddAssay(a quant.Assay) {
	m.assays = append(m.assays, a)
}

// AddStudyVariable appends a study variable.
func (m *Model) AddStudyVariable(v quant.StudyVariable) {
	m.studyVars = append(m.studyVars, v)
}

// AddFeature appends a feature.
func (m *Model) AddFeature(f quant.Feature) {
	m.features = append(m.features, f)
}

// SetSearchDatabase records the search database and identification file pair.
// Only the first call takes effect; a model holds at most one of each.
func (m *Model) SetSearchDatabase(db quant.SearchDatabase, idf quant.IdentificationFile) bool {
	if m.searchDB != nil {
		return false
	}
	m.searchDB = &db
	m.idFile = &idf
	return true
}

// SearchDatabase returns the recorded pair, if any.
func (m *Model) SearchDatabase() (quant.SearchDatabase, quant.IdentificationFile, bool) {
	if m.searchDB == nil {
		return quant.SearchDatabase{}, quant.IdentificationFile{}, false
	}
	return *m.searchDB, *m.idFile, true
}

// Software returns software entries in insertion order.
func (m *Model) Software() []quant.Software { return m.software }

// Processing returns data-processing entries in insertion order.
func (m *Model) Processing() []quant.DataProcessing { return m.processing }

// RawFileGroups returns groups in creation order.
func (m *Model) RawFileGroups() []quant.RawFilesGroup { return m.groups }

// Assays returns assays in insertion order.
func (m *Model) Assays() []quant.Assay { return m.assays }

// StudyVariables returns study variables in insertion order.
func (m *Model) StudyVariables() []quant.StudyVariable { return m.studyVars }

// Features returns features in insertion order.
func (m *Model) Features() []quant.Feature { return m.features }

// Ratios returns the de-duplicated ratios sorted by their de-dup key so the
// serialized ratio list and the ratio quant-layer columns line up.
func (m *Model) Ratios() []quant.Ratio {
	keys := make([]string, 0, len(m.ratioIDs))
	for k := range m.ratioIDs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]quant.Ratio, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.ratios[m.ratioIDs[k]])
	}
	return out
}

// RatioID resolves the de-dup key for a numerator/denominator pair to the
// allocated ratio ID, if the pair was interned.
func (m *Model) RatioID(numeratorRef, denominatorRef string) (string, bool) {
	id, ok := m.ratioIDs[numeratorRef+denominatorRef]
	return id, ok
}
