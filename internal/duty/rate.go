package duty

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/OpenNSW/duty/internal/hts"
)

// RateKind is the shape of a parsed rate expression
type RateKind string

const (
	RateKindPercentage RateKind = "percentage"
	RateKindPerUnit    RateKind = "per_unit"
	RateKindPerWeight  RateKind = "per_weight"
	RateKindFree       RateKind = "free"
	RateKindUnknown    RateKind = "unknown"
)

// ParsedRate is a rate expression reduced to a value and the basis it applies to.
// Per-unit and per-weight values are in major currency units.
type ParsedRate struct {
	Kind  RateKind
	Value decimal.Decimal
	Unit  string
	Raw   string
}

func (p ParsedRate) String() string {
	switch p.Kind {
	case RateKindPercentage:
		return p.Value.String() + "%"
	case RateKindPerUnit, RateKindPerWeight:
		return fmt.Sprintf("%s/%s", p.Value.String(), p.Unit)
	case RateKindFree:
		return "Free"
	default:
		return p.Raw
	}
}

// rateRule recognises one rate notation. Rules are tried in order; the first match wins.
type rateRule struct {
	name    string
	pattern *regexp.Regexp
	build   func(value decimal.Decimal, unit string) ParsedRate
}

const number = `(\d+(?:\.\d+)?|\.\d+)`

var rateRules = []rateRule{
	{
		name:    "percent",
		pattern: regexp.MustCompile(`^` + number + `\s*%$`),
		build: func(v decimal.Decimal, _ string) ParsedRate {
			return ParsedRate{Kind: RateKindPercentage, Value: v}
		},
	},
	{
		name:    "cents per unit",
		pattern: regexp.MustCompile(`(?i)^` + number + `\s*(?:¢|c)\s*/\s*(.+)$`),
		build: func(v decimal.Decimal, unit string) ParsedRate {
			return perQuantity(v.Div(decimal.NewFromInt(100)), unit)
		},
	},
	{
		name:    "dollars per unit",
		pattern: regexp.MustCompile(`^\$\s*` + number + `\s*/\s*(.+)$`),
		build:   perQuantity,
	},
	{
		name:    "amount per unit",
		pattern: regexp.MustCompile(`^` + number + `\s*/\s*(.+)$`),
		build:   perQuantity,
	},
	{
		name:    "bare number",
		pattern: regexp.MustCompile(`^` + number + `$`),
		build: func(v decimal.Decimal, _ string) ParsedRate {
			return ParsedRate{Kind: RateKindPercentage, Value: v}
		},
	},
}

// trailingPrograms matches a preference program list such as " (A+,AU,CA,MX)"
var trailingPrograms = regexp.MustCompile(`\s*\([^)]*\)\s*$`)

// firstPercent matches the first ad valorem component of a compound rate
var firstPercent = regexp.MustCompile(number + `\s*%`)

// ParseRate parses a tariff schedule rate expression. Text that matches no known
// notation yields RateKindUnknown valued at its first percentage, or zero when it
// has none, rather than an error.
func ParseRate(text string) ParsedRate {
	raw := strings.TrimSpace(text)
	if hts.IsFreeText(raw) {
		return ParsedRate{Kind: RateKindFree, Value: decimal.Zero, Raw: raw}
	}

	candidate := strings.TrimSpace(trailingPrograms.ReplaceAllString(raw, ""))
	for _, rule := range rateRules {
		m := rule.pattern.FindStringSubmatch(candidate)
		if m == nil {
			continue
		}
		value, ok := parseNumber(m[1])
		if !ok {
			continue
		}
		unit := ""
		if len(m) > 2 {
			unit = strings.ToLower(strings.TrimSpace(m[2]))
		}
		parsed := rule.build(value, unit)
		parsed.Raw = raw
		return parsed
	}

	unknown := ParsedRate{Kind: RateKindUnknown, Value: decimal.Zero, Raw: raw}
	if m := firstPercent.FindStringSubmatch(candidate); m != nil {
		if value, ok := parseNumber(m[1]); ok {
			unknown.Value = value
		}
	}
	return unknown
}

func perQuantity(v decimal.Decimal, unit string) ParsedRate {
	kind := RateKindPerUnit
	if strings.Contains(unit, "kg") || strings.Contains(unit, "weight") {
		kind = RateKindPerWeight
	}
	return ParsedRate{Kind: kind, Value: v, Unit: unit}
}

var firstNumber = regexp.MustCompile(`[\d.]+`)

// parseFlatAmount extracts the first numeric token of s. Text without a usable
// number is worth zero.
func parseFlatAmount(s string) (decimal.Decimal, bool) {
	return parseNumber(firstNumber.FindString(s))
}

func parseNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimRight(s, ".")
	if s == "" {
		return decimal.Zero, false
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}
