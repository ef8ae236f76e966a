package report

import (
	"regexp"
	"strings"
	"testing"

	"mzquant/internal/cv"
	"mzquant/pkg/quant"
)

func silacExperiment() *quant.Experiment {
	return &quant.Experiment{
		QuantType: quant.MS1Label,
		Processing: []quant.ProcessingRecord{
			{
				Software: quant.SoftwareInfo{Name: "FeatureFinderCentroided", Version: "2.3"},
				Actions:  []string{"quantitation"},
			},
			{
				Software: quant.SoftwareInfo{Name: "SILACAnalyzer", Version: "2.3"},
				Actions:  []string{"quantitation", "data processing"},
			},
		},
		Assays: []quant.AssayInput{
			{UID: "light", RawFiles: []string{"run.mzML"}, Mods: []quant.LabelMod{{Name: "", MassDelta: 0}}},
			{UID: "heavy", RawFiles: []string{"run.mzML"}, Mods: []quant.LabelMod{{Name: "Label:13C(6)", MassDelta: 6.4}}},
		},
		ConsensusMaps: []quant.ConsensusMap{
			{
				Entries: []quant.ConsensusEntry{
					{
						RT: 100, MZ: 500.5, Charge: 2,
						Features: []quant.FeatureHandle{
							{RT: 100, MZ: 500.5, Charge: 2, Intensity: 1200, Width: 12.5, MapIndex: 0, UniqueID: 7},
							{RT: 100, MZ: 503.5, Charge: 2, Intensity: 2400, Width: 11, MapIndex: 1, UniqueID: 9},
						},
						Ratios: []quant.RatioInput{
							{NumeratorRef: "heavy", DenominatorRef: "light", Value: 2, Description: []string{"ratio_of_sums"}},
						},
					},
					{
						RT: 210, MZ: 640.2, Charge: 3,
						Features: []quant.FeatureHandle{
							{RT: 210, MZ: 640.2, Charge: 3, Intensity: 900, Width: 9, MapIndex: 0, UniqueID: 11},
						},
						Ratios: []quant.RatioInput{
							{NumeratorRef: "heavy", DenominatorRef: "light", Value: 0.5},
						},
					},
				},
			},
		},
	}
}

func itraqExperiment() *quant.Experiment {
	return &quant.Experiment{
		QuantType: quant.MS2Label,
		Processing: []quant.ProcessingRecord{
			{
				Software: quant.SoftwareInfo{Name: "ITRAQAnalyzer", Version: "2.3"},
				Actions:  []string{"quantitation"},
			},
			{
				Software:   quant.SoftwareInfo{Name: "IDMapper", Version: "2.3"},
				Actions:    []string{"identification mapping"},
				Parameters: map[string]string{"id": "hits.idXML", "rt_tolerance": "5"},
			},
		},
		Assays: []quant.AssayInput{
			{UID: "114", RawFiles: []string{"pool.mzML"}, Mods: []quant.LabelMod{{Name: "114", MassDelta: 114}}},
			{UID: "117", RawFiles: []string{"pool.mzML"}, Mods: []quant.LabelMod{{Name: "117", MassDelta: 117}}},
		},
		ConsensusMaps: []quant.ConsensusMap{
			{
				Entries: []quant.ConsensusEntry{
					{
						RT: 300, MZ: 420.7, Charge: 2,
						Features: []quant.FeatureHandle{
							{MapIndex: 0, Intensity: 100},
							{MapIndex: 1, Intensity: 250},
						},
						Identifications: []quant.PeptideIdentification{
							{Identifier: "ident_1", Hits: []quant.IdentificationHit{{Sequence: "ELVISLIVES"}}},
						},
					},
					{
						RT: 305, MZ: 530.1, Charge: 2,
						Features: []quant.FeatureHandle{
							{MapIndex: 0, Intensity: 80},
						},
					},
				},
				ProteinIdentifications: []quant.ProteinIdentification{
					{SearchParameters: quant.SearchParameters{DBVersion: "sprot_2024_01"}},
				},
			},
		},
	}
}

func TestBuildSILACDocument(t *testing.T) {
	doc, res := NewBuilder(nil, silacExperiment()).Build()
	if !res.OK() {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}
	out := string(doc)

	// Section order.
	sections := []string{
		"<CvList>", "<AnalysisSummary>", "<InputFiles>", "<SoftwareList>",
		"<DataProcessingList>", "<AssayList ", "<StudyVariableList>",
		"<RatioList>", "<FeatureList ", "<PeptideConsensusList ",
	}
	last := -1
	for _, s := range sections {
		idx := strings.Index(out, s)
		if idx < 0 {
			t.Fatalf("section %q missing", s)
		}
		if idx < last {
			t.Fatalf("section %q out of order", s)
		}
		last = idx
	}

	// Processing methods name the action with the owning software as value.
	if !strings.Contains(out, `<userParam name="quantitation" value="SILACAnalyzer"/>`) {
		t.Fatalf("processing action attribution missing:\n%s", out)
	}

	// Element orders count up from 1 without gaps; method orders restart
	// inside each data-processing element.
	orderRe := regexp.MustCompile(`<(DataProcessing|ProcessingMethod) [^>]*order="(\d+)"`)
	wantOrders := [][2]string{
		{"DataProcessing", "1"}, {"ProcessingMethod", "1"},
		{"DataProcessing", "2"}, {"ProcessingMethod", "1"}, {"ProcessingMethod", "2"},
	}
	orders := orderRe.FindAllStringSubmatch(out, -1)
	if len(orders) != len(wantOrders) {
		t.Fatalf("got %d order attributes, want %d", len(orders), len(wantOrders))
	}
	for i, m := range orders {
		if m[1] != wantOrders[i][0] || m[2] != wantOrders[i][1] {
			t.Fatalf("order attribute %d: got %s=%s, want %s=%s", i, m[1], m[2], wantOrders[i][0], wantOrders[i][1])
		}
	}

	// Both assays share one raw-files group.
	if got := strings.Count(out, "<RawFilesGroup "); got != 1 {
		t.Fatalf("got %d raw-file groups, want 1", got)
	}

	// The 6.4 Da delta rounds to the 6 Da SILAC residue term.
	if !strings.Contains(out, `accession="MOD:00544"`) {
		t.Fatalf("heavy label term missing:\n%s", out)
	}
	if !strings.Contains(out, `accession="MS:1002038"`) {
		t.Fatalf("unlabeled-sample term missing for light channel")
	}
	if !strings.Contains(out, `massDelta="6.4"`) {
		t.Fatalf("literal mass delta missing")
	}
	if !strings.Contains(out, `massDelta="0"`) {
		t.Fatalf("zero mass delta missing for light channel")
	}

	// The repeated (heavy, light) pair collapses to one ratio entity.
	if got := strings.Count(out, "<Ratio "); got != 1 {
		t.Fatalf("got %d ratios, want 1", got)
	}
	if !strings.Contains(out, `numerator_ref="a_heavy"`) || !strings.Contains(out, `denominator_ref="a_light"`) {
		t.Fatalf("ratio refs wrong:\n%s", out)
	}
	if !strings.Contains(out, `<userParam name="ratio_of_sums"/>`) {
		t.Fatalf("ratio description missing")
	}

	// Three member features, each with its provenance indexes.
	if got := strings.Count(out, "<Feature "); got != 3 {
		t.Fatalf("got %d features, want 3", got)
	}
	if !strings.Contains(out, `<userParam name="feature_index" value="9"/>`) {
		t.Fatalf("feature provenance missing:\n%s", out)
	}

	// Evidence links member features to assays by position.
	if !strings.Contains(out, `assay_refs="a_light"`) || !strings.Contains(out, `assay_refs="a_heavy"`) {
		t.Fatalf("positional evidence assay refs missing")
	}
	if !strings.Contains(out, `finalResult="true"`) {
		t.Fatalf("MS1 peptide list not marked final")
	}

	// Ratio matrix: one value per entry.
	if !strings.Contains(out, ">2</Row>") || !strings.Contains(out, ">0.5</Row>") {
		t.Fatalf("ratio rows missing:\n%s", out)
	}

	checkReferentialIntegrity(t, out)
}

func TestBuildITRAQDocument(t *testing.T) {
	doc, res := NewBuilder(nil, itraqExperiment()).Build()
	if !res.OK() {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}
	out := string(doc)

	// Tag-based summary block, no ratio list.
	if !strings.Contains(out, `accession="MS:1002023"`) {
		t.Fatalf("tag-based summary term missing")
	}
	if strings.Contains(out, "<RatioList>") {
		t.Fatalf("ratio list emitted on the tag-based path")
	}

	// Reporter channels map to their fragment terms at the fixed tag mass.
	for _, acc := range []string{"MOD:01522", "MOD:01525"} {
		if !strings.Contains(out, `accession="`+acc+`"`) {
			t.Fatalf("reporter term %s missing", acc)
		}
	}
	if !strings.Contains(out, `massDelta="145"`) {
		t.Fatalf("fixed tag mass missing")
	}

	// The identification parameter seeds the input-file section.
	if !strings.Contains(out, `<IdentificationFile `) || !strings.Contains(out, `name="hits.idXML"`) {
		t.Fatalf("identification file missing:\n%s", out)
	}
	if !strings.Contains(out, `<userParam name="db_version" value="sprot_2024_01"/>`) {
		t.Fatalf("database version missing")
	}

	// Tool term plus typed parameters on the software entries.
	if !strings.Contains(out, `accession="MS:1001831"`) {
		t.Fatalf("quantitation tool term missing")
	}
	if !strings.Contains(out, `<userParam name="rt_tolerance" unitName="xsd:integer" value="5"/>`) {
		t.Fatalf("typed software parameter missing:\n%s", out)
	}

	// One feature per consensus entry, each a full assay row.
	if got := strings.Count(out, "<Feature "); got != 2 {
		t.Fatalf("got %d features, want 2", got)
	}
	if !strings.Contains(out, "<ColumnIndex>a_114 a_117</ColumnIndex>") {
		t.Fatalf("assay columns missing")
	}
	if !strings.Contains(out, ">100 250</Row>") || !strings.Contains(out, ">80 0</Row>") {
		t.Fatalf("reporter intensity rows missing:\n%s", out)
	}

	// Only the identified entry becomes a peptide consensus, non-final.
	if got := strings.Count(out, "<PeptideConsensus "); got != 1 {
		t.Fatalf("got %d peptide consensus elements, want 1", got)
	}
	if !strings.Contains(out, `finalResult="false"`) {
		t.Fatalf("tag-based peptide list marked final")
	}
	if !strings.Contains(out, "<PeptideSequence>ELVISLIVES</PeptideSequence>") {
		t.Fatalf("peptide sequence missing")
	}
	if !strings.Contains(out, `id_refs="ident_1"`) {
		t.Fatalf("external identification reference missing")
	}

	checkReferentialIntegrity(t, out)
}

func TestBuildDegradedQuantTypes(t *testing.T) {
	for _, qt := range []quant.QuantType{quant.LabelFree, quant.Unspecified} {
		exp := silacExperiment()
		exp.QuantType = qt
		doc, _ := NewBuilder(nil, exp).Build()
		out := string(doc)
		for _, absent := range []string{"<RatioList>", "<FeatureList ", "<PeptideConsensusList "} {
			if strings.Contains(out, absent) {
				t.Fatalf("%s: section %q emitted on degraded path", qt, absent)
			}
		}
		// Common sections survive, with the no-label placeholder.
		if !strings.Contains(out, `<cvParam name="no label"/>`) {
			t.Fatalf("%s: no-label placeholder missing", qt)
		}
		checkReferentialIntegrity(t, out)
	}
}

func TestBuildValidatesFixedTerms(t *testing.T) {
	// A vocabulary that knows only one of the summary terms, marked
	// obsolete: every other fixed accession warns as unknown.
	vocab := cv.NewVocabulary()
	vocab.AddTerm(cv.Term{Accession: "MS:1002018", Name: "MS1 label-based analysis", Obsolete: true})
	val := cv.NewValidator(vocab)

	exp := silacExperiment()
	exp.ConsensusMaps = nil
	_, res := NewBuilder(val, exp).Build()

	var obsolete, unknown int
	for _, w := range res.Warnings {
		switch {
		case strings.Contains(w.Message, "obsolete"):
			obsolete++
		case strings.Contains(w.Message, "unknown term"):
			unknown++
		}
	}
	if obsolete != 1 {
		t.Fatalf("got %d obsolete warnings, want 1: %v", obsolete, res.Warnings)
	}
	if unknown == 0 {
		t.Fatalf("expected unknown-term warnings for the remaining fixed accessions")
	}
}

func TestSearchDatabaseSeededWithoutIdentifierParameter(t *testing.T) {
	exp := itraqExperiment()
	exp.Processing[1].Parameters = map[string]string{"rt_tolerance": "5"}
	doc, _ := NewBuilder(nil, exp).Build()
	out := string(doc)

	// The mapping tool plus protein identifications are enough; the file
	// name is simply empty.
	if !strings.Contains(out, "<SearchDatabase ") {
		t.Fatalf("search database missing without the identification parameter:\n%s", out)
	}
	if !strings.Contains(out, `<userParam name="db_version" value="sprot_2024_01"/>`) {
		t.Fatalf("database version missing")
	}
	if !strings.Contains(out, `finalResult="false"`) {
		t.Fatalf("tag-based peptide list missing")
	}
	checkReferentialIntegrity(t, out)
}

func TestAssayAnchorsToFirstOwnerGroup(t *testing.T) {
	exp := silacExperiment()
	exp.Assays = []quant.AssayInput{
		{UID: "light", RawFiles: []string{"a.mzML"}},
		{UID: "heavy", RawFiles: []string{"a.mzML", "b.mzML"}, Mods: []quant.LabelMod{{MassDelta: 6}}},
	}
	doc, _ := NewBuilder(nil, exp).Build()
	out := string(doc)

	// The unseen second path opens a fresh group, but the assay still
	// anchors to the group that first owned the shared path.
	if got := strings.Count(out, "<RawFilesGroup "); got != 2 {
		t.Fatalf("got %d raw-file groups, want 2", got)
	}
	assayRe := regexp.MustCompile(`<Assay id="a_[^"]+" rawFilesGroup_ref="(rfg_\d+)"`)
	refs := assayRe.FindAllStringSubmatch(out, -1)
	if len(refs) != 2 {
		t.Fatalf("got %d assay group refs, want 2:\n%s", len(refs), out)
	}
	if refs[1][1] != refs[0][1] {
		t.Fatalf("revisiting assay anchors to %s, want first-owner group %s", refs[1][1], refs[0][1])
	}
	checkReferentialIntegrity(t, out)
}

var (
	idAttrRe   = regexp.MustCompile(`\bid="([^"]+)"`)
	refAttrRe  = regexp.MustCompile(`\b[A-Za-z]+_refs?="([^"]+)"`)
	refElemRe  = regexp.MustCompile(`<(?:Assay_refs|ColumnIndex)>([^<]+)<`)
	idRefsAttr = regexp.MustCompile(`\bid_refs="[^"]*"`)
)

// checkReferentialIntegrity asserts that every reference attribute or
// element in the document resolves to a declared id. External identification
// references (id_refs) point outside the document and are skipped.
func checkReferentialIntegrity(t *testing.T, out string) {
	t.Helper()
	scrubbed := idRefsAttr.ReplaceAllString(out, "")

	ids := make(map[string]bool)
	for _, m := range idAttrRe.FindAllStringSubmatch(scrubbed, -1) {
		ids[m[1]] = true
	}
	var refs []string
	for _, m := range refAttrRe.FindAllStringSubmatch(scrubbed, -1) {
		refs = append(refs, strings.Fields(m[1])...)
	}
	for _, m := range refElemRe.FindAllStringSubmatch(scrubbed, -1) {
		refs = append(refs, strings.Fields(m[1])...)
	}
	for _, ref := range refs {
		if !ids[ref] {
			t.Fatalf("dangling reference %q", ref)
		}
	}
}
