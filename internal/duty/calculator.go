package duty

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/OpenNSW/duty/internal/hts"
)

const (
	defaultCurrency    = "USD"
	defaultDestination = "US"
	defaultConcurrency = 8
)

// LineItem is the commercial data of one product on a document
type LineItem struct {
	Description     string  `json:"description"`
	Quantity        float64 `json:"quantity"`
	UnitOfMeasure   string  `json:"unitOfMeasure,omitempty"`
	UnitPrice       float64 `json:"unitPrice"`
	TotalPrice      float64 `json:"totalPrice"`
	Currency        string  `json:"currency,omitempty"`
	Weight          float64 `json:"weight,omitempty"`
	WeightUnit      string  `json:"weightUnit,omitempty"`
	CountryOfOrigin string  `json:"countryOfOrigin,omitempty"`
}

// ShipmentContext is the shipment level data used for FTA matching and annotation
type ShipmentContext struct {
	OriginCountry      string `json:"originCountry,omitempty"`
	DestinationCountry string `json:"destinationCountry,omitempty"`
	Incoterm           string `json:"incoterm,omitempty"`
}

// DutyResult is the computed duty of one line item.
// CalculatedDuty is never negative and is exactly zero when IsDutyFree is set.
type DutyResult struct {
	DutyRate             string       `json:"dutyRate"`
	DutyRateType         hts.RateType `json:"dutyRateType"`
	AdditionalDuties     *string      `json:"additionalDuties"`
	CalculatedDuty       float64      `json:"calculatedDuty"`
	CalculationBreakdown string       `json:"calculationBreakdown"`
	Currency             string       `json:"currency"`
	FreeTradeAgreement   *string      `json:"freeTradeAgreement"`
	FTABenefit           *float64     `json:"ftaBenefit"`
	IsDutyFree           bool         `json:"isDutyFree"`
}

// Calculator turns resolved tariff records and line items into duty amounts
type Calculator struct {
	resolver           *hts.Resolver
	fta                *FTATable
	defaultDestination string
	concurrency        int
}

// Option configures a Calculator
type Option func(*Calculator)

// WithFTATable replaces the seed agreement table
func WithFTATable(t *FTATable) Option {
	return func(c *Calculator) {
		if t != nil {
			c.fta = t
		}
	}
}

// WithDefaultDestination sets the destination used when a shipment names none
func WithDefaultDestination(country string) Option {
	return func(c *Calculator) {
		if strings.TrimSpace(country) != "" {
			c.defaultDestination = country
		}
	}
}

// WithConcurrency bounds how many line items are resolved at once in a batch
func WithConcurrency(n int) Option {
	return func(c *Calculator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// NewCalculator creates a Calculator. The resolver is only needed for batch entry points.
func NewCalculator(resolver *hts.Resolver, opts ...Option) *Calculator {
	c := &Calculator{
		resolver:           resolver,
		fta:                NewFTATable(),
		defaultDestination: defaultDestination,
		concurrency:        defaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calculate computes the duty for one line item. It does not fail: unrecognised rate
// notations, missing weights and unparsable additional duties degrade to a best-effort
// amount that the breakdown explains.
func (c *Calculator) Calculate(resolved hts.ResolvedDuty, item LineItem, shipment ShipmentContext) DutyResult {
	rec := resolved.Record
	item = item.finite()
	currency := strings.ToUpper(strings.TrimSpace(item.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	var b breakdown
	b.addf("HTS code: %s", rec.Code)
	if resolved.MatchedCode != "" && resolved.MatchedCode != rec.Code {
		b.addf("Rates taken from %s (%s match)", resolved.MatchedCode, resolved.MatchTier)
	}

	result := DutyResult{
		DutyRateType:     resolved.SelectedRateType,
		AdditionalDuties: rec.AdditionalDuties,
		Currency:         currency,
	}
	if result.DutyRateType == "" {
		result.DutyRateType = hts.RateTypeGeneral
	}

	if !hts.IsDutiable(resolved.SelectedRate) {
		b.addf("HTS code %s carries no duty (rate: Free)", rec.Code)
		return c.dutyFree(result, &b, rec, shipment)
	}
	rateText := strings.TrimSpace(*resolved.SelectedRate)
	rateType := resolved.SelectedRateType

	origin := c.fta.NormalizeCountry(firstNonEmpty(item.CountryOfOrigin, shipment.OriginCountry))
	destination := c.fta.NormalizeCountry(shipment.DestinationCountry)
	if destination == "" {
		destination = c.fta.NormalizeCountry(c.defaultDestination)
	}

	ftaApplied := false
	agreement, hasFTA := c.fta.Lookup(origin, destination)
	if hasFTA {
		result.FreeTradeAgreement = &agreement
		switch {
		case isFreeMarker(rec.SpecialRate):
			b.addf("Rate applied: Free (special, %s)", agreement)
			b.addf("Free trade agreement: %s (%s -> %s) eliminates the duty", agreement, origin, destination)
			result.DutyRateType = hts.RateTypeSpecial
			if benefit, ok := c.generalRateDuty(rec, item); ok {
				result.FTABenefit = money(benefit)
				b.addf("FTA benefit vs general rate %s: %s %s", strings.TrimSpace(*rec.GeneralRate), formatMoney(benefit), currency)
			}
			return c.dutyFree(result, &b, rec, shipment)
		case hts.IsDutiable(rec.SpecialRate):
			rateText = strings.TrimSpace(*rec.SpecialRate)
			rateType = hts.RateTypeSpecial
			ftaApplied = true
		}
	}

	parsed := ParseRate(rateText)
	if parsed.Kind == RateKindFree {
		b.addf("Rate %q parses as free", rateText)
		return c.dutyFree(result, &b, rec, shipment)
	}
	if parsed.Kind == RateKindUnknown {
		slog.Warn("unrecognized duty rate format",
			"htsCode", rec.Code,
			"rate", rateText)
	}

	result.DutyRate = rateText
	result.DutyRateType = rateType
	b.addf("Rate applied: %s (%s)", rateText, rateType)

	base, arithmetic := applyRate(parsed, item, currency)
	b.add(arithmetic)

	additional := decimal.Zero
	if hts.IsDutiable(rec.AdditionalDuties) {
		text := strings.TrimSpace(*rec.AdditionalDuties)
		if amount, ok := parseFlatAmount(text); ok {
			additional = amount
			b.addf("Additional duties: +%s %s (from %q)", formatMoney(amount), currency, text)
		} else {
			b.addf("Additional duties %q have no numeric amount; not added", text)
		}
	}

	if hasFTA {
		if ftaApplied {
			b.addf("Free trade agreement: %s (%s -> %s), special rate applied", agreement, origin, destination)
			if generalDuty, ok := c.generalRateDuty(rec, item); ok {
				benefit := decimal.Max(decimal.Zero, generalDuty.Sub(base))
				result.FTABenefit = money(benefit)
				b.addf("FTA benefit vs general rate %s: %s %s", strings.TrimSpace(*rec.GeneralRate), formatMoney(benefit), currency)
			}
		} else {
			b.addf("Free trade agreement: %s (%s -> %s) matches but no special rate is published", agreement, origin, destination)
		}
	}

	total := decimal.Max(decimal.Zero, base.Add(additional)).Round(2)
	result.CalculatedDuty = total.InexactFloat64()

	c.describeIncoterm(&b, shipment)
	b.addf("Total duty: %s %s", formatMoney(total), currency)
	result.CalculationBreakdown = b.String()
	return result
}

// dutyFree finalises a zero-duty result
func (c *Calculator) dutyFree(result DutyResult, b *breakdown, rec hts.TariffRecord, shipment ShipmentContext) DutyResult {
	result.DutyRate = "Free"
	result.IsDutyFree = true
	result.CalculatedDuty = 0
	if hts.IsDutiable(rec.AdditionalDuties) {
		b.addf("Additional duties %q not applied to a duty-free entry", strings.TrimSpace(*rec.AdditionalDuties))
	}
	c.describeIncoterm(b, shipment)
	b.addf("Total duty: 0.00 %s", result.Currency)
	result.CalculationBreakdown = b.String()
	return result
}

// generalRateDuty computes the duty the general column would have produced on the same basis
func (c *Calculator) generalRateDuty(rec hts.TariffRecord, item LineItem) (decimal.Decimal, bool) {
	if rec.GeneralRate == nil {
		return decimal.Zero, false
	}
	parsed := ParseRate(*rec.GeneralRate)
	if parsed.Kind == RateKindUnknown {
		return decimal.Zero, false
	}
	amount, _ := applyRate(parsed, item, "")
	return decimal.Max(decimal.Zero, amount), true
}

func (c *Calculator) describeIncoterm(b *breakdown, shipment ShipmentContext) {
	if strings.TrimSpace(shipment.Incoterm) == "" {
		return
	}
	term, ok := LookupIncoterm(shipment.Incoterm)
	if !ok {
		b.addf("Incoterm %q not recognised (informational only)", strings.TrimSpace(shipment.Incoterm))
		return
	}
	b.addf("Incoterm %s (%s): %s is responsible for paying duties (informational only)", term.Code, term.Name, term.DutyPayer())
}

// finite replaces NaN and infinite amounts with zero
func (item LineItem) finite() LineItem {
	for _, v := range []*float64{&item.Quantity, &item.UnitPrice, &item.TotalPrice, &item.Weight} {
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			*v = 0
		}
	}
	return item
}

// applyRate returns the base duty of item at rate p with a line describing the arithmetic
func applyRate(p ParsedRate, item LineItem, currency string) (decimal.Decimal, string) {
	total := decimal.NewFromFloat(item.TotalPrice)
	quantity := decimal.NewFromFloat(item.Quantity)
	hundred := decimal.NewFromInt(100)

	switch p.Kind {
	case RateKindPercentage:
		amount := p.Value.Div(hundred).Mul(total)
		return amount, fmt.Sprintf("Calculation: %s%% x %s %s total value = %s %s",
			p.Value.String(), formatMoney(total), currency, formatMoney(amount), currency)

	case RateKindPerWeight:
		if item.Weight > 0 {
			weight, label := weightInRateUnit(item.Weight, item.WeightUnit, p.Unit)
			amount := p.Value.Mul(weight)
			return amount, fmt.Sprintf("Calculation: %s %s/%s x %s = %s %s",
				p.Value.String(), currency, p.Unit, label, formatMoney(amount), currency)
		}
		amount := p.Value.Mul(quantity)
		return amount, fmt.Sprintf("Calculation: %s %s/%s x %s (quantity used because no weight was supplied; estimate) = %s %s",
			p.Value.String(), currency, p.Unit, quantity.String(), formatMoney(amount), currency)

	case RateKindPerUnit:
		amount := p.Value.Mul(quantity)
		return amount, fmt.Sprintf("Calculation: %s %s/%s x %s = %s %s",
			p.Value.String(), currency, p.Unit, quantity.String(), formatMoney(amount), currency)

	case RateKindUnknown:
		amount := p.Value.Div(hundred).Mul(total)
		return amount, fmt.Sprintf("Unrecognised rate format %q; applied as %s%% of %s %s total value = %s %s",
			p.Raw, p.Value.String(), formatMoney(total), currency, formatMoney(amount), currency)

	default:
		return decimal.Zero, "Calculation: no duty"
	}
}

var kilogramsPer = map[string]decimal.Decimal{
	"kg":        decimal.NewFromInt(1),
	"kgs":       decimal.NewFromInt(1),
	"kilogram":  decimal.NewFromInt(1),
	"kilograms": decimal.NewFromInt(1),
	"g":         decimal.RequireFromString("0.001"),
	"gram":      decimal.RequireFromString("0.001"),
	"grams":     decimal.RequireFromString("0.001"),
	"lb":        decimal.RequireFromString("0.45359237"),
	"lbs":       decimal.RequireFromString("0.45359237"),
	"pound":     decimal.RequireFromString("0.45359237"),
	"pounds":    decimal.RequireFromString("0.45359237"),
	"oz":        decimal.RequireFromString("0.028349523125"),
	"t":         decimal.NewFromInt(1000),
	"mt":        decimal.NewFromInt(1000),
	"tonne":     decimal.NewFromInt(1000),
	"tonnes":    decimal.NewFromInt(1000),
}

// weightInRateUnit converts the item weight to kilograms when the rate is per kilogram
// and the weight unit is known. Other combinations use the weight as given.
func weightInRateUnit(weight float64, weightUnit, rateUnit string) (decimal.Decimal, string) {
	w := decimal.NewFromFloat(weight)
	unit := strings.ToLower(strings.TrimSpace(weightUnit))
	if unit == "" {
		unit = "kg"
	}
	factor, known := kilogramsPer[unit]
	if !strings.Contains(rateUnit, "kg") || !known || factor.Equal(decimal.NewFromInt(1)) {
		return w, fmt.Sprintf("%s %s", w.String(), unit)
	}
	kg := w.Mul(factor)
	return kg, fmt.Sprintf("%s kg (converted from %s %s)", kg.Round(3).String(), w.String(), unit)
}

func isFreeMarker(s *string) bool {
	if s == nil {
		return false
	}
	t := strings.ToLower(strings.TrimSpace(*s))
	return t != "" && t != "null" && hts.IsFreeText(t)
}

func money(d decimal.Decimal) *float64 {
	f := d.Round(2).InexactFloat64()
	return &f
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

type breakdown struct {
	lines []string
}

func (b *breakdown) add(line string) {
	b.lines = append(b.lines, line)
}

func (b *breakdown) addf(format string, args ...any) {
	b.lines = append(b.lines, fmt.Sprintf(format, args...))
}

func (b *breakdown) String() string {
	return strings.Join(b.lines, "\n")
}
