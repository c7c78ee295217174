package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenNSW/duty/internal/app"
	"github.com/OpenNSW/duty/internal/schedule"
)

type importOptions struct {
	file    string
	key     string
	publish bool
}

func newImportCmd(open appOpener) *cobra.Command {
	opts := &importOptions{}
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a USITC htsdata.json export into the tariff table",
		Long: `Imports a USITC schedule export. Without --file the export is read from the
configured schedule storage (STORAGE_TYPE) under --key or STORAGE_SCHEDULE_KEY.
With --file and --publish the file is first uploaded to that storage.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(a *app.App) error {
				return runImport(cmd, a, opts)
			})
		},
	}
	cmd.Flags().StringVar(&opts.file, "file", "", "local htsdata.json export to import")
	cmd.Flags().StringVar(&opts.key, "key", "", "object key in the schedule storage")
	cmd.Flags().BoolVar(&opts.publish, "publish", false, "upload --file to the schedule storage before importing")
	return cmd
}

func runImport(cmd *cobra.Command, a *app.App, opts *importOptions) error {
	ctx := cmd.Context()

	var (
		report schedule.Report
		err    error
	)
	switch {
	case opts.file != "" && opts.publish:
		f, openErr := os.Open(opts.file)
		if openErr != nil {
			return fmt.Errorf("failed to open %s: %w", opts.file, openErr)
		}
		defer f.Close()
		report, err = a.PublishSchedule(ctx, opts.key, f)
		if err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "published %s\n", opts.file)
		}
	case opts.file != "":
		f, openErr := os.Open(opts.file)
		if openErr != nil {
			return fmt.Errorf("failed to open %s: %w", opts.file, openErr)
		}
		defer f.Close()
		report, err = schedule.NewImporter(a.Store).Import(ctx, f)
		a.FlushCache()
	default:
		report, err = a.ImportSchedule(ctx, opts.key)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "read %d, imported %d, skipped %d, duplicates %d, failed %d in %d batches (%s)\n",
		report.Read, report.Imported, report.Skipped, report.Duplicates, report.Failed, report.Batches, report.Duration.Round(time.Millisecond))
	return err
}
