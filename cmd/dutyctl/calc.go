package main

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/OpenNSW/duty/internal/app"
	"github.com/OpenNSW/duty/internal/duty"
)

type calcOptions struct {
	item     duty.LineItem
	shipment duty.ShipmentContext
	asJSON   bool
}

func newCalcCmd(open appOpener) *cobra.Command {
	opts := &calcOptions{}
	cmd := &cobra.Command{
		Use:   "calc CODE",
		Short: "Calculate the duty of one line item",
		Example: `  dutyctl calc 6109.10.0012 --total 1200 --qty 100
  dutyctl calc 0805.10.0020 --total 400 --weight 50 --weight-unit lb --origin MX --incoterm FOB`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(a *app.App) error {
				return runCalc(cmd, a, args[0], opts)
			})
		},
	}

	f := cmd.Flags()
	f.Float64Var(&opts.item.TotalPrice, "total", 0, "total line value")
	f.Float64Var(&opts.item.Quantity, "qty", 1, "quantity")
	f.Float64Var(&opts.item.UnitPrice, "unit-price", 0, "price per unit")
	f.StringVar(&opts.item.Currency, "currency", "USD", "currency of the line value")
	f.Float64Var(&opts.item.Weight, "weight", 0, "net weight")
	f.StringVar(&opts.item.WeightUnit, "weight-unit", "kg", "unit of --weight")
	f.StringVar(&opts.item.CountryOfOrigin, "item-origin", "", "country of origin of the item, overrides --origin")
	f.StringVar(&opts.shipment.OriginCountry, "origin", "", "shipment origin country")
	f.StringVar(&opts.shipment.DestinationCountry, "dest", "", "shipment destination country")
	f.StringVar(&opts.shipment.Incoterm, "incoterm", "", "Incoterm of the shipment, e.g. FOB or DDP")
	f.BoolVar(&opts.asJSON, "json", false, "print the duty result as JSON")
	return cmd
}

func runCalc(cmd *cobra.Command, a *app.App, code string, opts *calcOptions) error {
	out := cmd.OutOrStdout()
	item := opts.item
	for name, v := range map[string]float64{"total": item.TotalPrice, "qty": item.Quantity, "unit-price": item.UnitPrice, "weight": item.Weight} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("--%s must be a finite number", name)
		}
	}
	if item.TotalPrice == 0 && item.UnitPrice > 0 {
		item.TotalPrice = item.UnitPrice * item.Quantity
	}

	if !duty.ShouldCalculate(opts.shipment.Incoterm) {
		term, _ := duty.LookupIncoterm(opts.shipment.Incoterm)
		fmt.Fprintf(out, "Incoterm %s (%s): seller is responsible for paying duties, nothing to calculate\n", term.Code, term.Name)
		return nil
	}

	resolved, err := a.Resolver.Resolve(cmd.Context(), code)
	if err != nil {
		return err
	}
	if resolved == nil {
		return fmt.Errorf("%w for %s", errNotResolved, code)
	}

	result := a.Calculator.Calculate(*resolved, item, opts.shipment)
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Fprintln(out, result.CalculationBreakdown)
	return nil
}
