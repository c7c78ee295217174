package duty

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/OpenNSW/duty/internal/hts"
)

var (
	// ErrLengthMismatch is returned when codes and items are not paired one to one
	ErrLengthMismatch = errors.New("codes and line items differ in length")

	// ErrNoResolver is returned by batch entry points of a Calculator built without a resolver
	ErrNoResolver = errors.New("calculator has no resolver")
)

// LineStatus describes what happened to one line of a batch
type LineStatus string

const (
	LineCalculated  LineStatus = "calculated"
	LineNotFound    LineStatus = "not_found"
	LineInvalidCode LineStatus = "invalid_code"
	LineMissingCode LineStatus = "missing_code"
)

// Line pairs a classification code with the line item it applies to
type Line struct {
	HTSCode string   `json:"htsCode"`
	Item    LineItem `json:"item"`
}

// LineResult is the outcome of one batch line, in input order
type LineResult struct {
	Index    int               `json:"index"`
	HTSCode  string            `json:"htsCode"`
	Status   LineStatus        `json:"status"`
	Resolved *hts.ResolvedDuty `json:"resolved,omitempty"`
	Result   *DutyResult       `json:"result,omitempty"`
}

// ComputeLines resolves and prices every line concurrently. Lines whose code is missing,
// invalid or unknown are reported with a status instead of failing the batch; the only
// errors are a missing resolver and context cancellation.
func (c *Calculator) ComputeLines(ctx context.Context, lines []Line, shipment ShipmentContext) ([]LineResult, error) {
	if c.resolver == nil {
		return nil, ErrNoResolver
	}

	results := make([]LineResult, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i := range lines {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = c.computeLine(gctx, i, lines[i], shipment)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Calculator) computeLine(ctx context.Context, index int, line Line, shipment ShipmentContext) LineResult {
	out := LineResult{Index: index, HTSCode: strings.TrimSpace(line.HTSCode)}
	if out.HTSCode == "" {
		out.Status = LineMissingCode
		return out
	}

	resolved, err := c.resolver.Resolve(ctx, out.HTSCode)
	if err != nil {
		slog.WarnContext(ctx, "skipping line with invalid tariff code",
			"index", index,
			"htsCode", out.HTSCode,
			"error", err)
		out.Status = LineInvalidCode
		return out
	}
	if resolved == nil {
		out.Status = LineNotFound
		return out
	}

	result := c.Calculate(*resolved, line.Item, shipment)
	out.Status = LineCalculated
	out.Resolved = resolved
	out.Result = &result
	return out
}

// ResolveAndCompute prices codes[i] against items[i] and returns the results keyed by
// the code as given. Codes that cannot be resolved are absent from the map. When a code
// repeats, the line with the highest index wins.
func (c *Calculator) ResolveAndCompute(ctx context.Context, codes []string, items []LineItem, shipment ShipmentContext) (map[string]DutyResult, error) {
	if len(codes) != len(items) {
		return nil, ErrLengthMismatch
	}

	lines := make([]Line, len(codes))
	for i := range codes {
		lines[i] = Line{HTSCode: codes[i], Item: items[i]}
	}

	results, err := c.ComputeLines(ctx, lines, shipment)
	if err != nil {
		return nil, err
	}

	out := make(map[string]DutyResult, len(results))
	for _, r := range results {
		if r.Result != nil {
			out[r.HTSCode] = *r.Result
		}
	}
	return out, nil
}
