package report

import (
	"math"
	"strconv"

	"mzquant/pkg/quant"
)

// Variant-specific policy lives in these tables rather than in scattered
// switches: the analysis-summary term sets and the label-modification
// mapping per quantification type.

// summaryTerms is the fixed analysis-summary block per quantification type.
// LabelFree and Unspecified contribute nothing.
var summaryTerms = map[quant.QuantType][]quant.TermValue{
	quant.MS1Label: {
		{CVRef: "PSI-MS", Accession: "MS:1002018", Name: "MS1 label-based analysis"},
		{CVRef: "PSI-MS", Accession: "MS:1001837", Name: "SILAC quantitation analysis"},
		{CVRef: "PSI-MS", Accession: "MS:1002001", Name: "MS1 label-based raw feature quantitation", Value: "true"},
		{CVRef: "PSI-MS", Accession: "MS:1002002", Name: "MS1 label-based peptide level quantitation", Value: "true"},
		{CVRef: "PSI-MS", Accession: "MS:1002003", Name: "MS1 label-based protein level quantitation", Value: "false"},
		{CVRef: "PSI-MS", Accession: "MS:1002004", Name: "MS1 label-based proteingroup level quantitation", Value: "false"},
	},
	quant.MS2Label: {
		{CVRef: "PSI-MS", Accession: "MS:1002023", Name: "MS2 tag-based analysis"},
		{CVRef: "PSI-MS", Accession: "MS:1002024", Name: "MS2 tag-based analysis feature level quantitation", Value: "true"},
		{CVRef: "PSI-MS", Accession: "MS:1002025", Name: "MS2 tag-based peptide level quantitation", Value: "true"},
		{CVRef: "PSI-MS", Accession: "MS:1002026", Name: "MS2 tag-based analysis protein level quantitation", Value: "false"},
		{CVRef: "PSI-MS", Accession: "MS:1002027", Name: "MS2 tag-based analysis protein group level quantitation", Value: "false"},
	},
}

// labelTermsFor renders an assay's upstream label modifications into the
// vocabulary terms the document carries, dispatching on quantification type.
func labelTermsFor(qt quant.QuantType, mods []quant.LabelMod) []quant.LabelTerm {
	switch qt {
	case quant.MS1Label:
		out := make([]quant.LabelTerm, 0, len(mods))
		for _, mod := range mods {
			acc, name := ms1LabelTerm(int(math.Floor(mod.MassDelta + 0.5)))
			out = append(out, quant.LabelTerm{
				MassDelta: fnum(mod.MassDelta),
				CVRef:     "PSI-MOD",
				Accession: acc,
				Name:      name,
				Value:     mod.Name,
			})
		}
		return out
	case quant.MS2Label:
		out := make([]quant.LabelTerm, 0, len(mods))
		for _, mod := range mods {
			acc, name := ms2LabelTerm(int(mod.MassDelta))
			out = append(out, quant.LabelTerm{
				// iTRAQ chemistry has a fixed nominal tag mass.
				MassDelta: "145",
				CVRef:     "PSI-MOD",
				Accession: acc,
				Name:      name,
				Value:     mod.Name,
			})
		}
		return out
	default:
		return []quant.LabelTerm{{MassDelta: "0", Name: "no label"}}
	}
}

// ms1LabelTerm maps a rounded modification mass delta to its SILAC residue
// term; anything unrecognized is reported as an unlabeled sample.
func ms1LabelTerm(delta int) (accession, name string) {
	switch delta {
	case 6:
		return "MOD:00544", "6x(13)C labeled residue"
	case 8:
		return "MOD:00582", "6x(13)C,2x(15)N labeled L-lysine"
	case 10:
		return "MOD:00587", "6x(13)C,4x(15)N labeled L-arginine"
	default:
		return "MS:1002038", "unlabeled sample"
	}
}

// ms2LabelTerm maps a literal reporter mass to its iTRAQ 4plex fragment
// term; unknown channels fall back to the generic chemistry tag.
func ms2LabelTerm(delta int) (accession, name string) {
	switch delta {
	case 114:
		return "MOD:01522", "iTRAQ4plex-114 reporter fragment"
	case 115:
		return "MOD:01523", "iTRAQ4plex-115 reporter fragment"
	case 116:
		return "MOD:01524", "iTRAQ4plex-116 reporter fragment"
	case 117:
		return "MOD:01525", "iTRAQ4plex-117, mTRAQ heavy, reporter fragment"
	default:
		return "MOD:00564", "Applied Biosystems iTRAQ(TM) multiplexed quantitation chemistry"
	}
}

// fnum renders a float in plain decimal form without exponent notation.
func fnum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
