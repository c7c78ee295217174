package hts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Resolver locates the tariff record for a classification code using a three step
// cascade: exact code, code with its statistical suffix zeroed, and finally the first
// record under the same chapter+heading that carries duty rates.
type Resolver struct {
	lookup        RecordLookup
	lookupTimeout time.Duration
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithLookupTimeout bounds every individual store call. Zero disables the bound.
func WithLookupTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.lookupTimeout = d
	}
}

// NewResolver creates a Resolver backed by lookup
func NewResolver(lookup RecordLookup, opts ...ResolverOption) *Resolver {
	r := &Resolver{lookup: lookup}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the resolved duty for raw, or nil when no tier yields a record with
// duty rates. The only error is ErrInvalidCode for input that cannot be parsed; store
// failures are logged and treated as a miss for the tier that hit them.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*ResolvedDuty, error) {
	code, err := ParseCode(raw)
	if err != nil {
		return nil, err
	}
	requested := code.String()

	if rec := r.findExact(ctx, requested); rec != nil {
		return newResolvedDuty(raw, requested, rec.Code, MatchExact, *rec), nil
	}

	zeroed := code.WithZeroSuffix().String()
	if zeroed != requested {
		if rec := r.findExact(ctx, zeroed); rec != nil {
			return newResolvedDuty(raw, requested, rec.Code, MatchSuffixZeroed, *rec), nil
		}
	}

	if rec := r.findByHeading(ctx, code.HeadingPrefix()); rec != nil {
		return newResolvedDuty(raw, requested, rec.Code, MatchHeadingPrefix, *rec), nil
	}

	slog.DebugContext(ctx, "no tariff record with duty rates found",
		"requestedCode", raw,
		"normalizedCode", requested)
	return nil, nil
}

func (r *Resolver) findExact(ctx context.Context, code string) *TariffRecord {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rec, err := r.lookup.FindByCode(ctx, code)
	if err != nil {
		slog.WarnContext(ctx, "tariff record lookup failed",
			"code", code,
			"error", err)
		return nil
	}
	if !HasDutyRates(rec) {
		return nil
	}
	return rec
}

func (r *Resolver) findByHeading(ctx context.Context, prefix string) *TariffRecord {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	recs, err := r.lookup.FindByPrefix(ctx, prefix)
	if err != nil {
		slog.WarnContext(ctx, "tariff record prefix lookup failed",
			"prefix", prefix,
			"error", err)
		return nil
	}
	for i := range recs {
		if HasDutyRates(&recs[i]) {
			return &recs[i]
		}
	}
	return nil
}

func (r *Resolver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.lookupTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.lookupTimeout)
}

// newResolvedDuty keeps the requested code as the record identity while borrowing
// the rate fields of whichever record matched.
func newResolvedDuty(raw, requested, matched string, tier MatchTier, rec TariffRecord) *ResolvedDuty {
	rec.Code = requested
	if len(rec.UnitOfQuantity) > 0 {
		rec.UnitOfQuantity = append([]string(nil), rec.UnitOfQuantity...)
	}
	rate, rateType := SelectRate(rec)
	return &ResolvedDuty{
		RequestedCode:    strings.TrimSpace(raw),
		MatchedCode:      matched,
		MatchTier:        tier,
		Record:           rec,
		SelectedRate:     rate,
		SelectedRateType: rateType,
	}
}

// String is used in log lines and CLI output
func (d *ResolvedDuty) String() string {
	rate := "Free"
	if d.SelectedRate != nil {
		rate = *d.SelectedRate
	}
	return fmt.Sprintf("%s -> %s via %s (%s %s)", d.RequestedCode, d.MatchedCode, d.MatchTier, d.SelectedRateType, rate)
}
