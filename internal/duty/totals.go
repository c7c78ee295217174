package duty

import (
	"log/slog"

	"github.com/shopspring/decimal"
)

// statusCurrencyMismatch marks a priced line left out of the amount
const statusCurrencyMismatch = "currency_mismatch"

// TotalLine is one priced line of a Totals summary
type TotalLine struct {
	Index   int     `json:"index"`
	HTSCode string  `json:"htsCode"`
	Duty    float64 `json:"duty"`
	Status  string  `json:"status"`
}

// Totals is the document level sum of a batch
type Totals struct {
	Amount    float64     `json:"amount"`
	Currency  string      `json:"currency"`
	Breakdown []TotalLine `json:"breakdown"`
	Skipped   int         `json:"skipped"`
}

// Summarize adds up the calculated lines of a batch in the currency of the first priced
// line. Lines priced in another currency keep their duty in the breakdown but are left
// out of the amount and counted as skipped.
func Summarize(results []LineResult) Totals {
	totals := Totals{Currency: defaultCurrency, Breakdown: make([]TotalLine, 0, len(results))}
	sum := decimal.Zero
	currencySet := false

	for _, r := range results {
		line := TotalLine{Index: r.Index, HTSCode: r.HTSCode, Status: string(r.Status)}
		if r.Result == nil {
			totals.Skipped++
			totals.Breakdown = append(totals.Breakdown, line)
			continue
		}
		if !currencySet {
			totals.Currency = r.Result.Currency
			currencySet = true
		}
		line.Duty = r.Result.CalculatedDuty
		if r.Result.Currency != totals.Currency {
			slog.Warn("batch line priced in a different currency, excluded from total",
				"index", r.Index,
				"htsCode", r.HTSCode,
				"currency", r.Result.Currency,
				"totalCurrency", totals.Currency)
			line.Status = statusCurrencyMismatch
			totals.Skipped++
			totals.Breakdown = append(totals.Breakdown, line)
			continue
		}
		sum = sum.Add(decimal.NewFromFloat(r.Result.CalculatedDuty))
		totals.Breakdown = append(totals.Breakdown, line)
	}

	totals.Amount = sum.Round(2).InexactFloat64()
	return totals
}
