package schedule

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/OpenNSW/duty/internal/hts"
	"github.com/OpenNSW/duty/internal/hts/store"
)

// DefaultBatchSize is the number of rows written per upsert
const DefaultBatchSize = 1000

// ErrInvalidSchedule is returned when the export is not a JSON array of entries
var ErrInvalidSchedule = errors.New("invalid tariff schedule export")

// RowWriter persists imported schedule rows
type RowWriter interface {
	UpsertBatch(ctx context.Context, rows []store.TariffRecordRow) error
}

// Entry is one element of the USITC htsdata.json export.
// Older exports misspell additionalDuties, both spellings are accepted.
type Entry struct {
	HTSNo             string          `json:"htsno"`
	Indent            flexInt         `json:"indent"`
	Description       string          `json:"description"`
	Superior          flexBool        `json:"superior"`
	Units             []string        `json:"units"`
	General           string          `json:"general"`
	Special           string          `json:"special"`
	Other             string          `json:"other"`
	Footnotes         json.RawMessage `json:"footnotes"`
	QuotaQuantity     *string         `json:"quotaQuantity"`
	AdditionalDuties  *string         `json:"additionalDuties"`
	AddiitionalDuties *string         `json:"addiitionalDuties"`
}

// flexInt accepts a JSON number or a numeric string. Anything else decodes as 0.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(strings.Trim(string(b), `"`))
	n, err := strconv.Atoi(s)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(n)
	return nil
}

// flexBool accepts a JSON boolean, a "true"/"false" string or null
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(strings.Trim(string(b), `"`))
	*f = flexBool(strings.EqualFold(s, "true"))
	return nil
}

// Report summarises one import run
type Report struct {
	Read       int           `json:"read"`
	Imported   int           `json:"imported"`
	Skipped    int           `json:"skipped"`
	Duplicates int           `json:"duplicates"`
	Failed     int           `json:"failed"`
	Batches    int           `json:"batches"`
	Duration   time.Duration `json:"duration"`
}

// Importer streams a schedule export into a RowWriter in fixed size batches
type Importer struct {
	writer    RowWriter
	batchSize int
}

// ImporterOption configures an Importer
type ImporterOption func(*Importer)

// WithBatchSize overrides DefaultBatchSize. Values below 1 are ignored.
func WithBatchSize(n int) ImporterOption {
	return func(i *Importer) {
		if n > 0 {
			i.batchSize = n
		}
	}
}

func NewImporter(writer RowWriter, opts ...ImporterOption) *Importer {
	imp := &Importer{writer: writer, batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// ImportFromSource opens key on src and imports it
func (imp *Importer) ImportFromSource(ctx context.Context, src Source, key string) (Report, error) {
	body, err := src.Open(ctx, key)
	if err != nil {
		return Report{}, fmt.Errorf("failed to open schedule %s: %w", key, err)
	}
	defer body.Close()

	slog.InfoContext(ctx, "importing tariff schedule", "key", key)
	return imp.Import(ctx, body)
}

// Import decodes the export from r one entry at a time and upserts the rows.
//
// Entries without a parseable code are skipped. When a code appears more than once
// the last entry wins, except that an entry without rates never replaces one with rates.
// A failed batch is counted and reported but does not stop the import.
func (imp *Importer) Import(ctx context.Context, r io.Reader) (Report, error) {
	start := time.Now()
	run := &importRun{
		imp:   imp,
		index: make(map[string]int, imp.batchSize),
		rated: make(map[string]struct{}),
	}

	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return run.report, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return run.report, fmt.Errorf("%w: expected a JSON array", ErrInvalidSchedule)
	}

	for dec.More() {
		if err := ctx.Err(); err != nil {
			return run.finish(start), err
		}

		var entry Entry
		if err := dec.Decode(&entry); err != nil {
			run.flush(ctx)
			return run.finish(start), fmt.Errorf("%w: entry %d: %v", ErrInvalidSchedule, run.report.Read+1, err)
		}
		run.report.Read++

		row, ok := entry.toRow()
		if !ok {
			run.report.Skipped++
			continue
		}
		run.add(row)

		if len(run.pending) >= imp.batchSize {
			run.flush(ctx)
		}
	}
	run.flush(ctx)

	report := run.finish(start)
	slog.InfoContext(ctx, "tariff schedule import finished",
		"read", report.Read,
		"imported", report.Imported,
		"skipped", report.Skipped,
		"duplicates", report.Duplicates,
		"failed", report.Failed,
		"duration", report.Duration)

	if len(run.errs) > 0 {
		return report, fmt.Errorf("%d of %d batches failed: %w", len(run.errs), report.Batches, errors.Join(run.errs...))
	}
	return report, nil
}

type importRun struct {
	imp     *Importer
	pending []store.TariffRecordRow
	index   map[string]int
	rated   map[string]struct{}
	errs    []error
	report  Report
}

func (run *importRun) add(row store.TariffRecordRow) {
	code := row.HTSNumber
	if rowHasRates(row) {
		run.rated[code] = struct{}{}
	} else if _, ok := run.rated[code]; ok {
		run.report.Duplicates++
		return
	}

	if i, ok := run.index[code]; ok {
		run.pending[i] = row
		run.report.Duplicates++
		return
	}
	run.index[code] = len(run.pending)
	run.pending = append(run.pending, row)
}

func (run *importRun) flush(ctx context.Context) {
	if len(run.pending) == 0 {
		return
	}
	run.report.Batches++
	batch := run.report.Batches

	if err := run.imp.writer.UpsertBatch(ctx, run.pending); err != nil {
		slog.ErrorContext(ctx, "failed to import tariff schedule batch", "batch", batch, "rows", len(run.pending), "error", err)
		run.report.Failed += len(run.pending)
		run.errs = append(run.errs, fmt.Errorf("batch %d: %w", batch, err))
	} else {
		run.report.Imported += len(run.pending)
		slog.DebugContext(ctx, "imported tariff schedule batch", "batch", batch, "rows", len(run.pending), "total", run.report.Imported)
	}

	run.pending = make([]store.TariffRecordRow, 0, run.imp.batchSize)
	clear(run.index)
}

func (run *importRun) finish(start time.Time) Report {
	run.report.Duration = time.Since(start)
	return run.report
}

// scheduleCode converts an export code to canonical form. The export writes
// eight digit lines as CCHH.SS.II, so a lone two digit third group is the item.
func scheduleCode(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ".")
	if len(parts) == 3 && len(parts[2]) == 2 {
		raw = raw + "00"
	}
	return hts.NormalizeCode(raw)
}

func (e Entry) toRow() (store.TariffRecordRow, bool) {
	if strings.TrimSpace(e.HTSNo) == "" {
		return store.TariffRecordRow{}, false
	}
	code, err := scheduleCode(e.HTSNo)
	if err != nil {
		slog.Debug("skipping schedule entry", "htsno", e.HTSNo, "error", err)
		return store.TariffRecordRow{}, false
	}

	additional := optional(e.AdditionalDuties)
	if additional == nil {
		additional = optional(e.AddiitionalDuties)
	}

	row := store.TariffRecordRow{
		HTSNumber:        code,
		Indent:           int(e.Indent),
		Description:      strings.TrimSpace(e.Description),
		Superior:         bool(e.Superior),
		GeneralRate:      optionalText(e.General),
		SpecialRate:      optionalText(e.Special),
		Column2Rate:      optionalText(e.Other),
		AdditionalDuties: additional,
		QuotaQuantity:    optional(e.QuotaQuantity),
	}
	for _, u := range e.Units {
		if u = strings.TrimSpace(u); u != "" {
			row.UnitOfQuantity = append(row.UnitOfQuantity, u)
		}
	}
	if fn := bytes.TrimSpace(e.Footnotes); len(fn) > 0 && !bytes.Equal(fn, []byte("null")) && !bytes.Equal(fn, []byte("[]")) {
		row.Footnotes = json.RawMessage(fn)
	}
	return row, true
}

func rowHasRates(row store.TariffRecordRow) bool {
	return hts.HasDutyRates(&hts.TariffRecord{
		GeneralRate:      row.GeneralRate,
		SpecialRate:      row.SpecialRate,
		Column2Rate:      row.Column2Rate,
		AdditionalDuties: row.AdditionalDuties,
	})
}

func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func optional(s *string) *string {
	if s == nil {
		return nil
	}
	return optionalText(*s)
}
