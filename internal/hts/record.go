package hts

import (
	"context"
	"strings"
)

// RateType identifies which tariff schedule column a rate came from
type RateType string

const (
	RateTypeGeneral RateType = "general"
	RateTypeSpecial RateType = "special"
	RateTypeColumn2 RateType = "column_2"
)

// MatchTier records which step of the cascading search produced a record
type MatchTier string

const (
	MatchExact         MatchTier = "exact"
	MatchSuffixZeroed  MatchTier = "suffix_zeroed"
	MatchHeadingPrefix MatchTier = "heading_prefix"
)

// TariffRecord is a tariff schedule row. Rate fields are nil when the schedule has no value.
type TariffRecord struct {
	Code             string   `json:"htsNumber"`
	Description      string   `json:"description,omitempty"`
	GeneralRate      *string  `json:"generalRate"`
	SpecialRate      *string  `json:"specialRate"`
	Column2Rate      *string  `json:"column2Rate"`
	AdditionalDuties *string  `json:"additionalDuties"`
	UnitOfQuantity   []string `json:"unitOfQuantity"`
}

// ResolvedDuty is the outcome of a successful code resolution
type ResolvedDuty struct {
	RequestedCode    string       `json:"requestedCode"`
	MatchedCode      string       `json:"matchedCode"`
	MatchTier        MatchTier    `json:"matchTier"`
	Record           TariffRecord `json:"record"`
	SelectedRate     *string      `json:"selectedRate"`
	SelectedRateType RateType     `json:"selectedRateType,omitempty"`
}

// RecordLookup is the tariff record store the resolver searches.
// Both methods return an empty result and a nil error when nothing matches.
type RecordLookup interface {
	// FindByCode returns the record whose code equals code exactly
	FindByCode(ctx context.Context, code string) (*TariffRecord, error)

	// FindByPrefix returns records whose code starts with prefix, ordered by code ascending
	FindByPrefix(ctx context.Context, prefix string) ([]TariffRecord, error)
}

// IsFreeText reports whether a rate expression means no duty: empty, "null", or "Free"
// optionally followed by a parenthesised list of preference programs.
func IsFreeText(s string) bool {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == "" || t == "null" || t == "free" {
		return true
	}
	return strings.HasPrefix(t, "free ") || strings.HasPrefix(t, "free(")
}

// IsDutiable reports whether s carries a rate expression other than a free marker
func IsDutiable(s *string) bool {
	return s != nil && !IsFreeText(*s)
}

// HasDutyRates reports whether any rate column of rec carries a dutiable value
func HasDutyRates(rec *TariffRecord) bool {
	if rec == nil {
		return false
	}
	return IsDutiable(rec.GeneralRate) ||
		IsDutiable(rec.SpecialRate) ||
		IsDutiable(rec.Column2Rate) ||
		IsDutiable(rec.AdditionalDuties)
}

// SelectRate picks the applicable rate with priority column 2, special, general.
// A nil rate means the record is duty-free by schedule.
func SelectRate(rec TariffRecord) (*string, RateType) {
	candidates := []struct {
		rate *string
		typ  RateType
	}{
		{rec.Column2Rate, RateTypeColumn2},
		{rec.SpecialRate, RateTypeSpecial},
		{rec.GeneralRate, RateTypeGeneral},
	}
	for _, c := range candidates {
		if IsDutiable(c.rate) {
			rate := strings.TrimSpace(*c.rate)
			return &rate, c.typ
		}
	}
	return nil, ""
}
