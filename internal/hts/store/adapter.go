package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/OpenNSW/duty/internal/hts"
)

// ErrMissingCode is returned when a row has no usable tariff code column.
var ErrMissingCode = errors.New("row has no tariff code")

// Candidate column names, newest schema first. Older deployments used the USITC
// export names directly, and one generation carried a misspelled additional duties column.
var (
	codeKeys        = []string{"hts_number", "hts_code", "htsno", "htsNumber"}
	descriptionKeys = []string{"description"}
	generalKeys     = []string{"general_rate_of_duty", "general", "generalRate"}
	specialKeys     = []string{"special_rate_of_duty", "special", "specialRate"}
	column2Keys     = []string{"column_2_rate_of_duty", "other", "column2Rate"}
	additionalKeys  = []string{"additional_duties", "additionalDuties", "addiitionalDuties"}
	unitKeys        = []string{"unit_of_quantity", "units", "unitOfQuantity"}
)

// RowToRecord maps a loosely shaped row onto a TariffRecord. Any of the known column
// naming conventions is accepted.
func RowToRecord(row map[string]any) (hts.TariffRecord, error) {
	code := getString(row, codeKeys)
	if code == "" {
		return hts.TariffRecord{}, ErrMissingCode
	}

	return hts.TariffRecord{
		Code:             code,
		Description:      getString(row, descriptionKeys),
		GeneralRate:      getOptionalString(row, generalKeys),
		SpecialRate:      getOptionalString(row, specialKeys),
		Column2Rate:      getOptionalString(row, column2Keys),
		AdditionalDuties: getOptionalString(row, additionalKeys),
		UnitOfQuantity:   toStrings(getAny(row, unitKeys)),
	}, nil
}

// getString returns the first non-empty string from the candidate keys, trimmed.
func getString(m map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := toString(m[k]); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func getOptionalString(m map[string]any, keys []string) *string {
	s := getString(m, keys)
	if s == "" {
		return nil
	}
	return &s
}

// getAny returns the first non-nil value from the candidate keys.
func getAny(m map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func toString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	case *string:
		if t == nil {
			return "", false
		}
		return *t, true
	case sql.NullString:
		return t.String, t.Valid
	case nil:
		return "", false
	default:
		return fmt.Sprint(t), true
	}
}

// toStrings accepts a string slice, a decoded JSON array, a JSON array literal or a
// postgres text array literal.
func toStrings(v any) []string {
	var out []string
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		for _, s := range t {
			out = appendNonEmpty(out, s)
		}
	case []any:
		for _, item := range t {
			if s, ok := toString(item); ok {
				out = appendNonEmpty(out, s)
			}
		}
	default:
		s, ok := toString(v)
		if !ok {
			return nil
		}
		out = parseListLiteral(strings.TrimSpace(s))
	}
	return out
}

func parseListLiteral(s string) []string {
	var out []string
	switch {
	case s == "" || strings.EqualFold(s, "null"):
		return nil
	case strings.HasPrefix(s, "["):
		var items []string
		if err := json.Unmarshal([]byte(s), &items); err != nil {
			return nil
		}
		for _, item := range items {
			out = appendNonEmpty(out, item)
		}
	case strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"):
		for _, item := range strings.Split(s[1:len(s)-1], ",") {
			out = appendNonEmpty(out, strings.Trim(strings.TrimSpace(item), `"`))
		}
	default:
		out = appendNonEmpty(out, s)
	}
	return out
}

func appendNonEmpty(out []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		out = append(out, s)
	}
	return out
}
