package report

import (
	"sort"
	"strconv"
	"strings"

	"mzquant/internal/cv"
	"mzquant/pkg/quant"
)

// Namespace and vocabulary constants of the emitted document format.
const (
	documentNamespace = "http://psidev.info/psi/pi/mzQuantML/1.0.0"
	documentVersion   = "1.0.0"

	psiMSVersion  = "3.41.0"
	psiModVersion = "1.2"
)

// mappingToolName is the processing-step software whose parameters carry the
// identification file reference.
const mappingToolName = "IDMapper"

// Builder populates a Model from an Experiment in one forward pass and
// serializes it. A builder is single-use; Build may be called once.
type Builder struct {
	validator *cv.Validator
	exp       *quant.Experiment
	model     *Model
	res       quant.Result

	// featureGroupRef is the raw-files group the feature list points at:
	// the group of the first assay, when any assay registered files.
	featureGroupRef string

	// groupings records, per consensus map and per entry, the allocated
	// consensus-feature ID followed by its member-feature IDs. The MS1
	// peptide section walks it to emit evidence in entry order.
	groupings [][][]string

	// intensity and width run parallel to model.Features() on the MS1
	// path; they feed the two-column feature quant layer.
	intensity []float64
	width     []float64

	// ms2Features records per consensus map the feature IDs in entry
	// order, and ms2Vectors the per-assay intensity vector of each.
	ms2Features [][]string
	ms2Vectors  map[string][]float64
}

// NewBuilder returns a builder for one experiment. The validator may be nil,
// in which case vocabulary checks are skipped and only structural warnings
// are reported.
func NewBuilder(validator *cv.Validator, exp *quant.Experiment) *Builder {
	return &Builder{
		validator:  validator,
		exp:        exp,
		model:      NewModel(),
		ms2Vectors: make(map[string][]float64),
	}
}

// Build runs population and serialization and returns the document bytes
// together with every warning collected along the way. Warnings never abort
// a build; the document is always produced.
func (b *Builder) Build() ([]byte, quant.Result) {
	b.validateSummary()
	b.populateProcessing()
	b.collectRatios()
	b.populateAssays()
	b.populateFeatures()
	return b.serialize(), b.res
}

func (b *Builder) check(context string, t quant.TermValue) {
	if b.validator == nil {
		return
	}
	b.res.Merge(b.validator.Check(context, t.Accession, t.Name, t.Value))
}

// validateSummary runs the fixed analysis-summary terms of the experiment's
// quantification type through the vocabulary before they are written.
func (b *Builder) validateSummary() {
	for _, t := range summaryTerms[b.exp.QuantType] {
		b.check("AnalysisSummary", t)
	}
}

// populateProcessing turns each upstream processing record into a software
// entry plus a data-processing entry with strictly increasing orders. The
// first mapping-tool record seeds the search database and identification
// file, provided the input has protein identifications at all; the
// identification parameter names the file and may be absent.
func (b *Builder) populateProcessing() {
	order := 0
	for _, rec := range b.exp.Processing {
		order++
		sw := quant.Software{
			ID:      b.model.AllocateID(),
			Name:    rec.Software.Name,
			Version: rec.Software.Version,
			Terms:   append([]quant.TermValue(nil), rec.Software.Terms...),
			Params:  rec.Parameters,
		}
		for _, t := range sw.Terms {
			b.check("Software", t)
		}
		b.model.AddSoftware(sw)

		dp := quant.DataProcessing{
			ID:          b.model.AllocateID(),
			SoftwareRef: sw.ID,
			Order:       order,
		}
		for i, action := range rec.Actions {
			dp.Methods = append(dp.Methods, quant.ProcessingMethod{
				Order:    i + 1,
				Action:   action,
				Software: sw.Name,
			})
		}
		b.model.AddDataProcessing(dp)

		if rec.Software.Name == mappingToolName && b.hasProteinIdentifications() {
			b.seedSearchDatabase(rec.Parameters["id"])
		}
	}
}

func (b *Builder) hasProteinIdentifications() bool {
	for _, cm := range b.exp.ConsensusMaps {
		if len(cm.ProteinIdentifications) > 0 {
			return true
		}
	}
	return false
}

// seedSearchDatabase registers the search database and identification file
// pair once, taking the database version from the first protein
// identification that declares one.
func (b *Builder) seedSearchDatabase(idfile string) {
	version := ""
	for _, cm := range b.exp.ConsensusMaps {
		for _, pi := range cm.ProteinIdentifications {
			if pi.SearchParameters.DBVersion != "" {
				version = pi.SearchParameters.DBVersion
				break
			}
		}
		if version != "" {
			break
		}
	}
	db := quant.SearchDatabase{
		ID:       b.model.AllocateID(),
		Location: version,
		Version:  version,
	}
	idf := quant.IdentificationFile{
		ID:                b.model.AllocateID(),
		Name:              idfile,
		Location:          idfile,
		SearchDatabaseRef: db.ID,
	}
	b.model.SetSearchDatabase(db, idf)
}

// collectRatios interns every consensus-entry ratio on the MS1 path so the
// ratio list and the peptide ratio columns agree on IDs and order.
func (b *Builder) collectRatios() {
	if b.exp.QuantType != quant.MS1Label {
		return
	}
	for _, cm := range b.exp.ConsensusMaps {
		for _, entry := range cm.Entries {
			for _, r := range entry.Ratios {
				b.model.InternRatio(r)
			}
		}
	}
}

// populateAssays registers each channel's raw files, renders its label, and
// attaches a one-assay study variable. An assay that revisits any known path
// anchors to the group that first owned it, even when later paths open a new
// group. The first assay's group anchors the feature list.
func (b *Builder) populateAssays() {
	for i, in := range b.exp.Assays {
		groupRef := ""
		ownerRef := ""
		for _, path := range in.RawFiles {
			gid, isNew := b.model.InternRawFile(path)
			if !isNew && ownerRef == "" {
				ownerRef = gid
			}
			groupRef = gid
		}
		if ownerRef != "" {
			groupRef = ownerRef
		}
		b.model.CloseRawFileGroup()

		label := labelTermsFor(b.exp.QuantType, in.Mods)
		for _, lt := range label {
			if lt.Accession == "" {
				continue
			}
			b.check("Label", quant.TermValue{
				CVRef:     lt.CVRef,
				Accession: lt.Accession,
				Name:      lt.Name,
				Value:     lt.Value,
			})
		}

		assay := quant.Assay{
			ID:               in.UID,
			RawFilesGroupRef: groupRef,
			Label:            label,
		}
		b.model.AddAssay(assay)
		if i == 0 {
			b.featureGroupRef = groupRef
		}

		b.model.AddStudyVariable(quant.StudyVariable{
			ID:        b.model.AllocateID(),
			Name:      "noname",
			AssayRefs: []string{assay.ID},
		})
	}
}

// populateFeatures walks the consensus maps once and allocates features
// per the quantification type's structural policy.
func (b *Builder) populateFeatures() {
	switch b.exp.QuantType {
	case quant.MS1Label:
		b.populateFeaturesMS1()
	case quant.MS2Label:
		b.populateFeaturesMS2()
	}
}

// populateFeaturesMS1 emits one feature per member handle, remembering the
// grouping so the peptide section can attach evidence positionally.
func (b *Builder) populateFeaturesMS1() {
	for _, cm := range b.exp.ConsensusMaps {
		entries := make([][]string, 0, len(cm.Entries))
		for _, entry := range cm.Entries {
			group := []string{b.model.AllocateID()}
			for _, fh := range entry.Features {
				f := quant.Feature{
					ID:           b.model.AllocateID(),
					RT:           fh.RT,
					MZ:           fh.MZ,
					Charge:       fh.Charge,
					MapIndex:     fh.MapIndex,
					FeatureIndex: fh.UniqueID,
					HasIndexes:   true,
				}
				b.model.AddFeature(f)
				b.intensity = append(b.intensity, fh.Intensity)
				b.width = append(b.width, fh.Width)
				group = append(group, f.ID)
			}
			entries = append(entries, group)
		}
		b.groupings = append(b.groupings, entries)
	}
}

// populateFeaturesMS2 emits one feature per consensus entry; the per-assay
// reporter intensities become that feature's quant-layer row.
func (b *Builder) populateFeaturesMS2() {
	for _, cm := range b.exp.ConsensusMaps {
		ids := make([]string, 0, len(cm.Entries))
		for _, entry := range cm.Entries {
			f := quant.Feature{
				ID:     b.model.AllocateID(),
				RT:     entry.RT,
				MZ:     entry.MZ,
				Charge: entry.Charge,
			}
			b.model.AddFeature(f)
			vec := make([]float64, len(b.exp.Assays))
			for _, fh := range entry.Features {
				if int(fh.MapIndex) < len(vec) {
					vec[fh.MapIndex] = fh.Intensity
				}
			}
			b.ms2Vectors[f.ID] = vec
			ids = append(ids, f.ID)
		}
		b.ms2Features = append(b.ms2Features, ids)
	}
}

// serialize renders the populated model in the fixed section order. The
// whole document is buffered; nothing is written incrementally.
func (b *Builder) serialize() []byte {
	w := &xw{}
	w.raw("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	w.openTag(0, "MzQuantML", "xmlns", documentNamespace, "version", documentVersion)

	b.writeCvList(w)
	b.writeAnalysisSummary(w)
	b.writeInputFiles(w)
	b.writeSoftwareList(w)
	b.writeDataProcessingList(w)
	b.writeAssayList(w)
	b.writeStudyVariableList(w)
	b.writeRatioList(w)
	b.writeFeatureList(w)
	b.writePeptideLists(w)

	w.closeTag(0, "MzQuantML")
	return []byte(w.String())
}

func (b *Builder) writeCvList(w *xw) {
	w.openTag(1, "CvList")
	w.emptyTag(2, "Cv",
		"id", "PSI-MS",
		"fullName", "Proteomics Standards Initiative Mass Spectrometry Vocabularies",
		"uri", "http://psidev.cvs.sourceforge.net/viewvc/psidev/psi/psi-ms/mzML/controlledVocabulary/psi-ms.obo",
		"version", psiMSVersion)
	w.emptyTag(2, "Cv",
		"id", "PSI-MOD",
		"fullName", "Proteomics Standards Initiative Protein Modifications Vocabularies",
		"uri", "http://psidev.cvs.sourceforge.net/psidev/psi/mod/data/PSI-MOD.obo",
		"version", psiModVersion)
	w.emptyTag(2, "Cv",
		"id", "UO",
		"fullName", "Unit Ontology",
		"uri", "http://obo.cvs.sourceforge.net/obo/obo/ontology/phenotype/unit.obo")
	w.closeTag(1, "CvList")
}

func (b *Builder) writeAnalysisSummary(w *xw) {
	w.openTag(1, "AnalysisSummary")
	for _, t := range summaryTerms[b.exp.QuantType] {
		w.cvParam(2, t.CVRef, t.Accession, t.Name, t.Value)
	}
	w.closeTag(1, "AnalysisSummary")
}

func (b *Builder) writeInputFiles(w *xw) {
	w.openTag(1, "InputFiles")
	for _, g := range b.model.RawFileGroups() {
		w.openTag(2, "RawFilesGroup", "id", "rfg_"+g.ID)
		for _, f := range g.Files {
			w.emptyTag(3, "RawFile", "id", "r_"+f.ID, "location", f.Location)
		}
		w.closeTag(2, "RawFilesGroup")
	}
	if db, idf, ok := b.model.SearchDatabase(); ok {
		w.openTag(2, "SearchDatabase", "id", "sdb_"+db.ID, "location", db.Location)
		w.openTag(3, "DatabaseName")
		w.userParam(4, "db_version", db.Version)
		w.closeTag(3, "DatabaseName")
		w.closeTag(2, "SearchDatabase")
		w.openTag(2, "IdentificationFiles")
		w.emptyTag(3, "IdentificationFile",
			"id", "idf_"+idf.ID,
			"name", idf.Name,
			"location", idf.Location,
			"searchDatabase_ref", "sdb_"+idf.SearchDatabaseRef)
		w.closeTag(2, "IdentificationFiles")
	}
	w.closeTag(1, "InputFiles")
}

func (b *Builder) writeSoftwareList(w *xw) {
	w.openTag(1, "SoftwareList")
	for _, sw := range b.model.Software() {
		w.openTag(2, "Software", "id", "sw_"+sw.ID, "version", sw.Version)
		if len(sw.Terms) == 0 {
			// No vocabulary term known for this tool; keep the name.
			w.userParam(3, sw.Name, "")
		}
		for _, t := range sw.Terms {
			w.cvParam(3, t.CVRef, t.Accession, t.Name, t.Value)
		}
		if sw.Name == "ITRAQAnalyzer" {
			w.cvParam(3, "PSI-MS", "MS:1001831", "ITRAQAnalyzer", "")
		}
		for _, k := range sortedKeys(sw.Params) {
			w.typedUserParam(3, k, sw.Params[k])
		}
		w.closeTag(2, "Software")
	}
	w.closeTag(1, "SoftwareList")
}

func (b *Builder) writeDataProcessingList(w *xw) {
	w.openTag(1, "DataProcessingList")
	for _, dp := range b.model.Processing() {
		w.openTag(2, "DataProcessing",
			"id", "dp_"+dp.ID,
			"software_ref", "sw_"+dp.SoftwareRef,
			"order", strconv.Itoa(dp.Order))
		for _, m := range dp.Methods {
			w.openTag(3, "ProcessingMethod", "order", strconv.Itoa(m.Order))
			w.userParam(4, m.Action, m.Software)
			w.closeTag(3, "ProcessingMethod")
		}
		w.closeTag(2, "DataProcessing")
	}
	w.closeTag(1, "DataProcessingList")
}

func (b *Builder) writeAssayList(w *xw) {
	w.openTag(1, "AssayList", "id", "assaylist1")
	for _, a := range b.model.Assays() {
		w.openTag(2, "Assay", "id", "a_"+a.ID, "rawFilesGroup_ref", groupRef(a.RawFilesGroupRef))
		w.openTag(3, "Label")
		for _, lt := range a.Label {
			w.openTag(4, "Modification", "massDelta", lt.MassDelta)
			w.cvParam(5, lt.CVRef, lt.Accession, lt.Name, lt.Value)
			w.closeTag(4, "Modification")
		}
		w.closeTag(3, "Label")
		w.closeTag(2, "Assay")
	}
	w.closeTag(1, "AssayList")
}

func (b *Builder) writeStudyVariableList(w *xw) {
	w.openTag(1, "StudyVariableList")
	for _, v := range b.model.StudyVariables() {
		w.openTag(2, "StudyVariable", "id", "v_"+v.ID, "name", v.Name)
		refs := make([]string, 0, len(v.AssayRefs))
		for _, r := range v.AssayRefs {
			refs = append(refs, "a_"+r)
		}
		w.textTag(3, "Assay_refs", strings.Join(refs, " "))
		w.closeTag(2, "StudyVariable")
	}
	w.closeTag(1, "StudyVariableList")
}

// writeRatioList is reached only on the MS1 path; the list element is
// emitted even when no ratio was collected.
func (b *Builder) writeRatioList(w *xw) {
	if b.exp.QuantType != quant.MS1Label {
		return
	}
	w.openTag(1, "RatioList")
	for _, r := range b.model.Ratios() {
		w.openTag(2, "Ratio",
			"id", "r_"+r.ID,
			"numerator_ref", "a_"+r.NumeratorRef,
			"denominator_ref", "a_"+r.DenominatorRef)
		w.openTag(3, "RatioCalculation")
		for _, d := range r.Description {
			w.userParam(4, d, "")
		}
		w.cvParam(4, "PSI-MS", "MS:1001848", "simple ratio of two values", "")
		w.closeTag(3, "RatioCalculation")
		w.openTag(3, "NumeratorDataType")
		w.cvParam(4, "PSI-MS", "MS:1001847", "reporter ion intensity", "")
		w.closeTag(3, "NumeratorDataType")
		w.openTag(3, "DenominatorDataType")
		w.cvParam(4, "PSI-MS", "MS:1001847", "reporter ion intensity", "")
		w.closeTag(3, "DenominatorDataType")
		w.closeTag(2, "Ratio")
	}
	w.closeTag(1, "RatioList")
}

func (b *Builder) writeFeatureList(w *xw) {
	if b.exp.QuantType != quant.MS1Label && b.exp.QuantType != quant.MS2Label {
		return
	}
	w.openTag(1, "FeatureList", "id", "featurelist1", "rawFilesGroup_ref", groupRef(b.featureGroupRef))
	features := b.model.Features()
	for _, f := range features {
		if f.HasIndexes {
			w.openTag(2, "Feature",
				"id", "f_"+f.ID,
				"rt", fnum(f.RT),
				"mz", fnum(f.MZ),
				"charge", strconv.Itoa(f.Charge))
			w.userParam(3, "map_index", strconv.FormatUint(f.MapIndex, 10))
			w.userParam(3, "feature_index", strconv.FormatUint(f.FeatureIndex, 10))
			w.closeTag(2, "Feature")
			continue
		}
		w.emptyTag(2, "Feature",
			"id", "f_"+f.ID,
			"rt", fnum(f.RT),
			"mz", fnum(f.MZ),
			"charge", strconv.Itoa(f.Charge))
	}
	switch b.exp.QuantType {
	case quant.MS1Label:
		b.writeFeatureQuantLayer(w, features)
	case quant.MS2Label:
		b.writeMS2AssayQuantLayer(w, features)
	}
	w.closeTag(1, "FeatureList")
}

// writeFeatureQuantLayer emits the two-column intensity/width matrix with
// one row per MS1 feature.
func (b *Builder) writeFeatureQuantLayer(w *xw, features []quant.Feature) {
	w.openTag(2, "FeatureQuantLayer", "id", "q_"+b.model.AllocateID())
	w.openTag(3, "ColumnDefinition")
	w.openTag(4, "Column", "index", "0")
	w.openTag(5, "DataType")
	w.cvParam(6, "PSI-MS", "MS:1001141", "intensity of precursor ion", "")
	w.closeTag(5, "DataType")
	w.closeTag(4, "Column")
	w.openTag(4, "Column", "index", "1")
	w.openTag(5, "DataType")
	w.cvParam(6, "PSI-MS", "MS:1000086", "full width at half-maximum", "")
	w.closeTag(5, "DataType")
	w.closeTag(4, "Column")
	w.closeTag(3, "ColumnDefinition")
	w.openTag(3, "DataMatrix")
	for i, f := range features {
		w.rowTag(4, "f_"+f.ID, fnum(b.intensity[i])+" "+fnum(b.width[i]))
	}
	w.closeTag(3, "DataMatrix")
	w.closeTag(2, "FeatureQuantLayer")
}

// writeMS2AssayQuantLayer emits the reporter-intensity matrix: one column
// per assay, one row per consensus feature.
func (b *Builder) writeMS2AssayQuantLayer(w *xw, features []quant.Feature) {
	w.openTag(2, "MS2AssayQuantLayer", "id", "ms2ql_"+b.model.AllocateID())
	w.openTag(3, "DataType")
	w.cvParam(4, "PSI-MS", "MS:1001847", "reporter ion intensity", "")
	w.closeTag(3, "DataType")
	cols := make([]string, 0, len(b.model.Assays()))
	for _, a := range b.model.Assays() {
		cols = append(cols, "a_"+a.ID)
	}
	w.textTag(3, "ColumnIndex", strings.Join(cols, " "))
	w.openTag(3, "DataMatrix")
	for _, f := range features {
		vals := make([]string, 0, len(b.ms2Vectors[f.ID]))
		for _, v := range b.ms2Vectors[f.ID] {
			vals = append(vals, fnum(v))
		}
		w.rowTag(4, "f_"+f.ID, strings.Join(vals, " "))
	}
	w.closeTag(3, "DataMatrix")
	w.closeTag(2, "MS2AssayQuantLayer")
}

func (b *Builder) writePeptideLists(w *xw) {
	switch b.exp.QuantType {
	case quant.MS1Label:
		b.writePeptideListsMS1(w)
	case quant.MS2Label:
		b.writePeptideListsMS2(w)
	}
}

// writePeptideListsMS1 emits one final-result list per consensus map. Each
// entry becomes a consensus element whose evidence links member features to
// assays positionally, followed by a ratio layer over the interned ratios.
func (b *Builder) writePeptideListsMS1(w *xw) {
	assays := b.model.Assays()
	ratios := b.model.Ratios()
	for mi, cm := range b.exp.ConsensusMaps {
		w.openTag(1, "PeptideConsensusList", "finalResult", "true", "id", "m_"+b.model.AllocateID())
		entries := b.groupings[mi]
		for ei, entry := range cm.Entries {
			group := entries[ei]
			w.openTag(2, "PeptideConsensus", "id", "c_"+group[0], "charge", strconv.Itoa(entry.Charge))
			for fi := range entry.Features {
				assayRef := ""
				if fi < len(assays) {
					assayRef = "a_" + assays[fi].ID
				}
				w.emptyTag(3, "EvidenceRef", "feature_ref", "f_"+group[fi+1], "assay_refs", assayRef)
			}
			w.closeTag(2, "PeptideConsensus")
		}
		if len(ratios) > 0 {
			b.writeRatioQuantLayer(w, cm.Entries, entries, ratios)
		}
		w.closeTag(1, "PeptideConsensusList")
	}
}

// writeRatioQuantLayer emits the per-consensus ratio matrix. A row carries
// only the values of the ratios its entry actually computed, sorted by the
// same key that orders the ratio list.
func (b *Builder) writeRatioQuantLayer(w *xw, src []quant.ConsensusEntry, entries [][]string, ratios []quant.Ratio) {
	w.openTag(2, "RatioQuantLayer", "id", "q_"+b.model.AllocateID())
	w.openTag(3, "DataType")
	w.cvParam(4, "PSI-MS", "MS:1001132", "peptide ratio", "")
	w.closeTag(3, "DataType")
	cols := make([]string, 0, len(ratios))
	for _, r := range ratios {
		cols = append(cols, "r_"+r.ID)
	}
	w.textTag(3, "ColumnIndex", strings.Join(cols, " "))
	w.openTag(3, "DataMatrix")
	for ei, entry := range src {
		byKey := make(map[string]float64, len(entry.Ratios))
		keys := make([]string, 0, len(entry.Ratios))
		for _, r := range entry.Ratios {
			k := r.NumeratorRef + r.DenominatorRef
			if _, seen := byKey[k]; !seen {
				keys = append(keys, k)
			}
			byKey[k] = r.Value
		}
		sort.Strings(keys)
		vals := make([]string, 0, len(keys))
		for _, k := range keys {
			vals = append(vals, fnum(byKey[k]))
		}
		w.rowTag(4, "c_"+entries[ei][0], strings.Join(vals, " "))
	}
	w.closeTag(3, "DataMatrix")
	w.closeTag(2, "RatioQuantLayer")
}

// writePeptideListsMS2 emits non-final lists for the first two consensus
// maps carrying identifications, and only once the search database exists.
// Each identified entry contributes one consensus element whose evidence
// spans all assays.
func (b *Builder) writePeptideListsMS2(w *xw) {
	db, idf, ok := b.model.SearchDatabase()
	if !ok {
		return
	}
	assayRefs := make([]string, 0, len(b.model.Assays()))
	for _, a := range b.model.Assays() {
		assayRefs = append(assayRefs, "a_"+a.ID)
	}
	allAssays := strings.Join(assayRefs, " ")

	for mi, cm := range b.exp.ConsensusMaps {
		if mi >= 2 {
			break
		}
		w.openTag(1, "PeptideConsensusList", "finalResult", "false", "id", "m_"+b.model.AllocateID())
		ids := b.ms2Features[mi]
		for ei, entry := range cm.Entries {
			if len(entry.Identifications) == 0 {
				continue
			}
			ident := entry.Identifications[0]
			w.openTag(2, "PeptideConsensus",
				"id", "c_"+b.model.AllocateID(),
				"charge", strconv.Itoa(entry.Charge),
				"searchDatabase_ref", "sdb_"+db.ID)
			if len(ident.Hits) > 0 {
				w.textTag(3, "PeptideSequence", ident.Hits[0].Sequence)
			}
			w.emptyTag(3, "EvidenceRef",
				"feature_ref", "f_"+ids[ei],
				"assay_refs", allAssays,
				"id_refs", ident.Identifier,
				"identificationFile_ref", "idf_"+idf.ID)
			w.closeTag(2, "PeptideConsensus")
		}
		w.closeTag(1, "PeptideConsensusList")
	}
}

func groupRef(id string) string {
	if id == "" {
		return ""
	}
	return "rfg_" + id
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
