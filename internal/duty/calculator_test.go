package duty

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenNSW/duty/internal/hts"
)

func strPtr(s string) *string {
	return &s
}

// resolvedFor builds the resolution of rec as an exact match
func resolvedFor(rec hts.TariffRecord) hts.ResolvedDuty {
	rate, rateType := hts.SelectRate(rec)
	return hts.ResolvedDuty{
		RequestedCode:    rec.Code,
		MatchedCode:      rec.Code,
		MatchTier:        hts.MatchExact,
		Record:           rec,
		SelectedRate:     rate,
		SelectedRateType: rateType,
	}
}

func TestCalculate_Percentage(t *testing.T) {
	c := NewCalculator(nil)
	rec := hts.TariffRecord{Code: "6109.10.0012", GeneralRate: strPtr("16.5%")}

	got := c.Calculate(resolvedFor(rec), LineItem{Quantity: 100, UnitPrice: 10, TotalPrice: 1000}, ShipmentContext{OriginCountry: "CN"})

	assert.Equal(t, 165.0, got.CalculatedDuty)
	assert.Equal(t, "16.5%", got.DutyRate)
	assert.Equal(t, hts.RateTypeGeneral, got.DutyRateType)
	assert.Equal(t, "USD", got.Currency)
	assert.False(t, got.IsDutyFree)
	assert.Nil(t, got.FreeTradeAgreement)
	assert.Nil(t, got.FTABenefit)
	assert.Contains(t, got.CalculationBreakdown, "HTS code: 6109.10.0012")
	assert.Contains(t, got.CalculationBreakdown, "16.5% x 1000.00 USD")
	assert.Contains(t, got.CalculationBreakdown, "Total duty: 165.00 USD")
}

func TestCalculate_RoundsToCents(t *testing.T) {
	c := NewCalculator(nil)
	rec := hts.TariffRecord{Code: "3926.90.9989", GeneralRate: strPtr("5.3%")}

	got := c.Calculate(resolvedFor(rec), LineItem{Quantity: 1, TotalPrice: 33.33}, ShipmentContext{})

	// 33.33 * 5.3% = 1.76649
	assert.Equal(t, 1.77, got.CalculatedDuty)
}

func TestCalculate_DutyFree(t *testing.T) {
	c := NewCalculator(nil)
	rec := hts.TariffRecord{
		Code:             "8471.30.0100",
		GeneralRate:      strPtr("Free"),
		AdditionalDuties: strPtr("25"),
	}

	got := c.Calculate(resolvedFor(rec), LineItem{Quantity: 5, TotalPrice: 5000}, ShipmentContext{Incoterm: "FOB"})

	assert.True(t, got.IsDutyFree)
	assert.Equal(t, 0.0, got.CalculatedDuty)
	assert.Equal(t, "Free", got.DutyRate)
	assert.Contains(t, got.CalculationBreakdown, "carries no duty")
	assert.Contains(t, got.CalculationBreakdown, "not applied to a duty-free entry")
	assert.Contains(t, got.CalculationBreakdown, "Incoterm FOB")
}

func TestCalculate_PerWeight(t *testing.T) {
	c := NewCalculator(nil)
	rec := hts.TariffRecord{Code: "0805.10.0020", GeneralRate: strPtr("1.9¢/kg")}

	t.Run("uses weight", func(t *testing.T) {
		got := c.Calculate(resolvedFor(rec), LineItem{Quantity: 10, TotalPrice: 800, Weight: 2000, WeightUnit: "kg"}, ShipmentContext{})
		assert.Equal(t, 38.0, got.CalculatedDuty)
		assert.NotContains(t, got.CalculationBreakdown, "estimate")
	})

	t.Run("converts pounds to kilograms", func(t *testing.T) {
		got := c.Calculate(resolvedFor(rec), LineItem{Quantity: 10, TotalPrice: 800, Weight: 1000, WeightUnit: "lb"}, ShipmentContext{})
		// 1000 lb = 453.59237 kg
		assert.Equal(t, 8.62, got.CalculatedDuty)
		assert.Contains(t, got.CalculationBreakdown, "converted from 1000 lb")
	})

	t.Run("falls back to quantity", func(t *testing.T) {
		got := c.Calculate(resolvedFor(rec), LineItem{Quantity: 10, TotalPrice: 800}, ShipmentContext{})
		assert.Equal(t, 0.19, got.CalculatedDuty)
		assert.Contains(t, got.CalculationBreakdown, "quantity used because no weight was supplied")
	})
}

func TestCalculate_PerUnit(t *testing.T) {
	c := NewCalculator(nil)
	rec := hts.TariffRecord{Code: "0105.11.0010", GeneralRate: strPtr("$0.90/doz.")}

	got := c.Calculate(resolvedFor(rec), LineItem{Quantity: 12, TotalPrice: 120}, ShipmentContext{})

	assert.Equal(t, 10.8, got.CalculatedDuty)
	assert.Contains(t, got.CalculationBreakdown, "0.9 USD/doz. x 12")
}

func TestCalculate_AdditionalDuties(t *testing.T) {
	c := NewCalculator(nil)

	t.Run("numeric amount is added", func(t *testing.T) {
		rec := hts.TariffRecord{Code: "7208.10.1500", GeneralRate: strPtr("10%"), AdditionalDuties: strPtr("$25 flat")}
		got := c.Calculate(resolvedFor(rec), LineItem{Quantity: 1, TotalPrice: 1000}, ShipmentContext{})
		assert.Equal(t, 125.0, got.CalculatedDuty)
		require.NotNil(t, got.AdditionalDuties)
		assert.Equal(t, "$25 flat", *got.AdditionalDuties)
		assert.Contains(t, got.CalculationBreakdown, "Additional duties: +25.00 USD")
	})

	t.Run("first number in the text is used", func(t *testing.T) {
		rec := hts.TariffRecord{Code: "7208.10.1500", GeneralRate: strPtr("10%"), AdditionalDuties: strPtr("see chapter 99")}
		got := c.Calculate(resolvedFor(rec), LineItem{Quantity: 1, TotalPrice: 1000}, ShipmentContext{})
		// "99" is the first number in the text
		assert.Equal(t, 199.0, got.CalculatedDuty)
	})

	t.Run("no number at all", func(t *testing.T) {
		rec := hts.TariffRecord{Code: "7208.10.1500", GeneralRate: strPtr("10%"), AdditionalDuties: strPtr("see notes")}
		got := c.Calculate(resolvedFor(rec), LineItem{Quantity: 1, TotalPrice: 1000}, ShipmentContext{})
		assert.Equal(t, 100.0, got.CalculatedDuty)
		assert.Contains(t, got.CalculationBreakdown, "have no numeric amount")
	})
}

func TestCalculate_UnknownRate(t *testing.T) {
	c := NewCalculator(nil)
	rec := hts.TariffRecord{Code: "2204.21.5000", GeneralRate: strPtr("6.8% + 5¢/kg")}

	got := c.Calculate(resolvedFor(rec), LineItem{Quantity: 10, TotalPrice: 500}, ShipmentContext{})

	assert.Equal(t, 34.0, got.CalculatedDuty)
	assert.False(t, got.IsDutyFree)
	assert.Equal(t, "6.8% + 5¢/kg", got.DutyRate)
	assert.Contains(t, got.CalculationBreakdown, "Unrecognised rate format")
	assert.Contains(t, got.CalculationBreakdown, "applied as 6.8% of 500.00 USD")

	t.Run("no percentage in the text", func(t *testing.T) {
		rec := hts.TariffRecord{Code: "9903.88.0300", GeneralRate: strPtr("see note 3")}
		got := c.Calculate(resolvedFor(rec), LineItem{Quantity: 1, TotalPrice: 500}, ShipmentContext{})
		assert.Equal(t, 0.0, got.CalculatedDuty)
		assert.False(t, got.IsDutyFree)
		assert.Contains(t, got.CalculationBreakdown, "applied as 0% of 500.00 USD")
	})
}

func TestCalculate_NonFiniteInput(t *testing.T) {
	c := NewCalculator(nil)
	rec := hts.TariffRecord{Code: "0805.10.0020", GeneralRate: strPtr("1.9¢/kg")}

	assert.NotPanics(t, func() {
		got := c.Calculate(resolvedFor(rec), LineItem{Quantity: math.NaN(), TotalPrice: math.NaN(), Weight: math.Inf(1)}, ShipmentContext{})
		assert.Equal(t, 0.0, got.CalculatedDuty)
	})

	pct := hts.TariffRecord{Code: "6109.10.0012", GeneralRate: strPtr("16.5%")}
	assert.NotPanics(t, func() {
		got := c.Calculate(resolvedFor(pct), LineItem{Quantity: 1, TotalPrice: math.Inf(-1)}, ShipmentContext{})
		assert.Equal(t, 0.0, got.CalculatedDuty)
	})
}

func TestCalculate_NeverNegative(t *testing.T) {
	c := NewCalculator(nil)
	rec := hts.TariffRecord{Code: "6109.10.0012", GeneralRate: strPtr("16.5%")}

	got := c.Calculate(resolvedFor(rec), LineItem{Quantity: 1, TotalPrice: -200}, ShipmentContext{})

	assert.Equal(t, 0.0, got.CalculatedDuty)
}

func TestCalculate_FTASpecialRate(t *testing.T) {
	c := NewCalculator(nil)
	rec := hts.TariffRecord{
		Code:        "8708.29.5060",
		GeneralRate: strPtr("10%"),
		SpecialRate: strPtr("2% (AU,CA,MX)"),
		Column2Rate: strPtr("25%"),
	}

	got := c.Calculate(resolvedFor(rec), LineItem{Quantity: 1, TotalPrice: 1000}, ShipmentContext{OriginCountry: "Canada", DestinationCountry: "United States"})

	assert.Equal(t, 20.0, got.CalculatedDuty)
	assert.Equal(t, hts.RateTypeSpecial, got.DutyRateType)
	assert.Equal(t, "2% (AU,CA,MX)", got.DutyRate)
	require.NotNil(t, got.FreeTradeAgreement)
	assert.Equal(t, "USMCA", *got.FreeTradeAgreement)
	require.NotNil(t, got.FTABenefit)
	assert.Equal(t, 80.0, *got.FTABenefit)
	assert.Contains(t, got.CalculationBreakdown, "Free trade agreement: USMCA (CA -> US)")
}

func TestCalculate_FTAFreeSpecialRate(t *testing.T) {
	c := NewCalculator(nil)
	rec := hts.TariffRecord{
		Code:        "8708.29.5060",
		GeneralRate: strPtr("10%"),
		SpecialRate: strPtr("Free (A+,CA,MX)"),
	}

	got := c.Calculate(resolvedFor(rec), LineItem{Quantity: 1, TotalPrice: 1000, CountryOfOrigin: "MX"}, ShipmentContext{})

	assert.True(t, got.IsDutyFree)
	assert.Equal(t, 0.0, got.CalculatedDuty)
	assert.Equal(t, hts.RateTypeSpecial, got.DutyRateType)
	require.NotNil(t, got.FreeTradeAgreement)
	assert.Equal(t, "USMCA", *got.FreeTradeAgreement)
	require.NotNil(t, got.FTABenefit)
	assert.Equal(t, 100.0, *got.FTABenefit)
}

func TestCalculate_FTAZeroPercentSpecialRate(t *testing.T) {
	c := NewCalculator(nil)
	rec := hts.TariffRecord{
		Code:        "8708.29.5060",
		GeneralRate: strPtr("10%"),
		SpecialRate: strPtr("0%"),
	}

	got := c.Calculate(resolvedFor(rec), LineItem{Quantity: 1, TotalPrice: 1000}, ShipmentContext{OriginCountry: "MX", DestinationCountry: "US"})

	assert.Equal(t, 0.0, got.CalculatedDuty)
	assert.Equal(t, hts.RateTypeSpecial, got.DutyRateType)
	assert.Equal(t, "0%", got.DutyRate)
	require.NotNil(t, got.FreeTradeAgreement)
	assert.Equal(t, "USMCA", *got.FreeTradeAgreement)
	require.NotNil(t, got.FTABenefit)
	assert.Equal(t, 100.0, *got.FTABenefit)
}

func TestCalculate_FTAWithoutSpecialRate(t *testing.T) {
	c := NewCalculator(nil)
	rec := hts.TariffRecord{Code: "6109.10.0012", GeneralRate: strPtr("16.5%")}

	got := c.Calculate(resolvedFor(rec), LineItem{Quantity: 1, TotalPrice: 100}, ShipmentContext{OriginCountry: "MX"})

	assert.Equal(t, 16.5, got.CalculatedDuty)
	require.NotNil(t, got.FreeTradeAgreement)
	assert.Nil(t, got.FTABenefit)
	assert.Contains(t, got.CalculationBreakdown, "no special rate is published")
}

func TestCalculate_NoAgreement(t *testing.T) {
	c := NewCalculator(nil)
	rec := hts.TariffRecord{Code: "8708.29.5060", GeneralRate: strPtr("10%"), SpecialRate: strPtr("2%")}

	got := c.Calculate(resolvedFor(rec), LineItem{Quantity: 1, TotalPrice: 1000}, ShipmentContext{OriginCountry: "CN"})

	assert.Equal(t, 20.0, got.CalculatedDuty)
	assert.Nil(t, got.FreeTradeAgreement)
	assert.Nil(t, got.FTABenefit)
}

func TestCalculate_ItemOriginOverridesShipment(t *testing.T) {
	c := NewCalculator(nil)
	rec := hts.TariffRecord{Code: "8708.29.5060", GeneralRate: strPtr("10%"), SpecialRate: strPtr("Free")}

	got := c.Calculate(resolvedFor(rec), LineItem{Quantity: 1, TotalPrice: 1000, CountryOfOrigin: "CN"}, ShipmentContext{OriginCountry: "CA"})

	assert.False(t, got.IsDutyFree)
	assert.Equal(t, 100.0, got.CalculatedDuty)
	assert.Nil(t, got.FreeTradeAgreement)
}

func TestCalculate_DefaultDestination(t *testing.T) {
	rec := hts.TariffRecord{Code: "8708.29.5060", GeneralRate: strPtr("10%"), SpecialRate: strPtr("Free")}
	item := LineItem{Quantity: 1, TotalPrice: 1000, CountryOfOrigin: "US"}

	got := NewCalculator(nil).Calculate(resolvedFor(rec), item, ShipmentContext{})
	assert.Nil(t, got.FreeTradeAgreement, "same origin and destination is not a trade agreement case")

	got = NewCalculator(nil, WithDefaultDestination("CA")).Calculate(resolvedFor(rec), item, ShipmentContext{})
	require.NotNil(t, got.FreeTradeAgreement)
	assert.True(t, got.IsDutyFree)
}

func TestCalculate_CustomFTATable(t *testing.T) {
	table := NewFTATable()
	table.Add("AU", "US", "AUSFTA")
	c := NewCalculator(nil, WithFTATable(table))
	rec := hts.TariffRecord{Code: "0201.30.8000", GeneralRate: strPtr("26.4%"), SpecialRate: strPtr("4%")}

	got := c.Calculate(resolvedFor(rec), LineItem{Quantity: 1, TotalPrice: 1000}, ShipmentContext{OriginCountry: "AU"})

	require.NotNil(t, got.FreeTradeAgreement)
	assert.Equal(t, "AUSFTA", *got.FreeTradeAgreement)
	assert.Equal(t, 40.0, got.CalculatedDuty)
	require.NotNil(t, got.FTABenefit)
	assert.Equal(t, 224.0, *got.FTABenefit)
}

func TestCalculate_Currency(t *testing.T) {
	c := NewCalculator(nil)
	rec := hts.TariffRecord{Code: "6109.10.0012", GeneralRate: strPtr("10%")}

	got := c.Calculate(resolvedFor(rec), LineItem{Quantity: 1, TotalPrice: 50, Currency: "eur"}, ShipmentContext{})

	assert.Equal(t, "EUR", got.Currency)
	assert.Contains(t, got.CalculationBreakdown, "5.00 EUR")
}

func TestCalculate_Incoterm(t *testing.T) {
	c := NewCalculator(nil)
	rec := hts.TariffRecord{Code: "6109.10.0012", GeneralRate: strPtr("10%")}
	item := LineItem{Quantity: 1, TotalPrice: 100}

	tests := []struct {
		incoterm string
		want     string
	}{
		{incoterm: "FOB Shanghai", want: "Incoterm FOB (Free On Board): buyer is responsible"},
		{incoterm: "ddp", want: "Incoterm DDP (Delivered Duty Paid): seller is responsible"},
		{incoterm: "XYZ", want: `Incoterm "XYZ" not recognised`},
	}

	for _, tt := range tests {
		t.Run(tt.incoterm, func(t *testing.T) {
			got := c.Calculate(resolvedFor(rec), item, ShipmentContext{Incoterm: tt.incoterm})
			assert.Contains(t, got.CalculationBreakdown, tt.want)
			assert.Equal(t, 10.0, got.CalculatedDuty, "incoterm must not change the amount")
		})
	}
}

func TestCalculate_FallbackMatchIsExplained(t *testing.T) {
	c := NewCalculator(nil)
	rec := hts.TariffRecord{Code: "0101.21.0010", GeneralRate: strPtr("6.8%")}
	resolved := resolvedFor(rec)
	resolved.MatchedCode = "0101.21.0000"
	resolved.MatchTier = hts.MatchSuffixZeroed

	got := c.Calculate(resolved, LineItem{Quantity: 1, TotalPrice: 100}, ShipmentContext{})

	assert.Contains(t, got.CalculationBreakdown, "Rates taken from 0101.21.0000 (suffix_zeroed match)")
}
