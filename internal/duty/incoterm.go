package duty

import (
	"strings"
	"unicode"
)

// Incoterm is an Incoterms 2020 rule and who bears import duties under it
type Incoterm struct {
	Code                string `json:"code"`
	Name                string `json:"name"`
	IncludesDutiesTaxes bool   `json:"includesDutiesTaxes"`
}

// DutyPayer names the party responsible for import duties
func (i Incoterm) DutyPayer() string {
	if i.IncludesDutiesTaxes {
		return "seller"
	}
	return "buyer"
}

var incoterms = []Incoterm{
	{Code: "EXW", Name: "Ex Works"},
	{Code: "FCA", Name: "Free Carrier"},
	{Code: "FAS", Name: "Free Alongside Ship"},
	{Code: "FOB", Name: "Free On Board"},
	{Code: "CFR", Name: "Cost and Freight"},
	{Code: "CIF", Name: "Cost, Insurance and Freight"},
	{Code: "CPT", Name: "Carriage Paid To"},
	{Code: "CIP", Name: "Carriage and Insurance Paid To"},
	{Code: "DAP", Name: "Delivered at Place"},
	{Code: "DPU", Name: "Delivered at Place Unloaded"},
	{Code: "DDP", Name: "Delivered Duty Paid", IncludesDutiesTaxes: true},
}

// LookupIncoterm finds the Incoterm named by free text. The text is tried as a bare
// code ("D.D.P."), then searched for a known code ("FOB Shanghai", "Incoterms 2020: DDP"),
// then compared with the rule names ("Delivered Duty Paid").
func LookupIncoterm(s string) (Incoterm, bool) {
	normalized := normalizeIncoterm(s)
	if normalized == "" {
		return Incoterm{}, false
	}

	for _, term := range incoterms {
		if term.Code == normalized {
			return term, true
		}
	}

	words := strings.FieldsFunc(strings.ToUpper(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, word := range words {
		for _, term := range incoterms {
			if term.Code == word {
				return term, true
			}
		}
	}

	var best Incoterm
	for _, term := range incoterms {
		name := normalizeIncoterm(term.Name)
		if strings.Contains(normalized, name) && len(name) > len(normalizeIncoterm(best.Name)) {
			best = term
		}
	}
	return best, best.Code != ""
}

// normalizeIncoterm upper-cases s and drops everything but letters and digits
func normalizeIncoterm(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToUpper(r)
		}
		return -1
	}, s)
}

// ShouldCalculate reports whether the buyer side needs a duty estimate for the
// given Incoterm. Unknown or missing terms are calculated.
func ShouldCalculate(incoterm string) bool {
	term, ok := LookupIncoterm(incoterm)
	return !ok || !term.IncludesDutiesTaxes
}
