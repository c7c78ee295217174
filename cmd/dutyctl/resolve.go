package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenNSW/duty/internal/app"
)

// errNotResolved is returned when at least one code has no duty information
var errNotResolved = errors.New("no duty information")

func newResolveCmd(open appOpener) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "resolve CODE [CODE...]",
		Short: "Show the tariff record and rate selected for HTS codes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(a *app.App) error {
				return runResolve(cmd, a, args, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the resolved duty as JSON")
	return cmd
}

func runResolve(cmd *cobra.Command, a *app.App, codes []string, asJSON bool) error {
	out := cmd.OutOrStdout()
	missing := 0
	for _, code := range codes {
		resolved, err := a.Resolver.Resolve(cmd.Context(), code)
		if err != nil {
			return err
		}
		if resolved == nil {
			missing++
			fmt.Fprintf(out, "%s: no duty information\n", code)
			continue
		}
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(resolved); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintln(out, resolved.String())
	}
	if missing > 0 {
		return fmt.Errorf("%w for %d of %d codes", errNotResolved, missing, len(codes))
	}
	return nil
}
