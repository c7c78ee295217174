package duty

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	results := []LineResult{
		{Index: 0, HTSCode: "6109.10.0012", Status: LineCalculated, Result: &DutyResult{CalculatedDuty: 16.5, Currency: "EUR"}},
		{Index: 1, HTSCode: "9999.99.9999", Status: LineNotFound},
		{Index: 2, HTSCode: "8708.29.5060", Status: LineCalculated, Result: &DutyResult{CalculatedDuty: 0.1, Currency: "EUR"}},
		{Index: 3, HTSCode: "8708.29.5060", Status: LineCalculated, Result: &DutyResult{CalculatedDuty: 0.2, Currency: "EUR"}},
	}

	got := Summarize(results)

	assert.Equal(t, 16.8, got.Amount)
	assert.Equal(t, "EUR", got.Currency)
	assert.Equal(t, 1, got.Skipped)
	require.Len(t, got.Breakdown, 4)
	assert.Equal(t, TotalLine{Index: 1, HTSCode: "9999.99.9999", Status: "not_found"}, got.Breakdown[1])
	assert.Equal(t, 0.2, got.Breakdown[3].Duty)
}

func TestSummarize_MixedCurrencies(t *testing.T) {
	results := []LineResult{
		{Index: 0, HTSCode: "6109.10.0012", Status: LineCalculated, Result: &DutyResult{CalculatedDuty: 16.5, Currency: "USD"}},
		{Index: 1, HTSCode: "8708.29.5060", Status: LineCalculated, Result: &DutyResult{CalculatedDuty: 40, Currency: "EUR"}},
		{Index: 2, HTSCode: "8708.29.5060", Status: LineCalculated, Result: &DutyResult{CalculatedDuty: 3.5, Currency: "USD"}},
	}

	got := Summarize(results)

	assert.Equal(t, 20.0, got.Amount)
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, 1, got.Skipped)
	require.Len(t, got.Breakdown, 3)
	assert.Equal(t, TotalLine{Index: 1, HTSCode: "8708.29.5060", Duty: 40, Status: "currency_mismatch"}, got.Breakdown[1])
	assert.Equal(t, "calculated", got.Breakdown[2].Status)
}

func TestSummarize_Empty(t *testing.T) {
	got := Summarize(nil)

	assert.Equal(t, 0.0, got.Amount)
	assert.Equal(t, "USD", got.Currency)
	assert.Empty(t, got.Breakdown)
}
