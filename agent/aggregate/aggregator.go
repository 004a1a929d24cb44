// Package aggregate merges per-provider search results into one ranked,
// deduplicated product list.
package aggregate

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/okaimono/shopping-agent/agent/contract"
	statex "github.com/okaimono/shopping-agent/agent/state"
)

const (
	// Two records whose canonical names match are the same product when
	// their prices differ by at most this fraction of the lower price.
	defaultPriceTolerance = 0.05

	defaultSummaryTopN = 5
)

type Aggregator struct {
	tolerance  float64
	topN       int
	summarizer contract.Summarizer
}

type Option func(*Aggregator)

func WithPriceTolerance(t float64) Option {
	return func(a *Aggregator) {
		if t > 0 {
			a.tolerance = t
		}
	}
}

func WithSummaryTopN(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.topN = n
		}
	}
}

// WithSummarizer enables the optional top-N digest. A nil summarizer keeps
// summaries off.
func WithSummarizer(s contract.Summarizer) Option {
	return func(a *Aggregator) { a.summarizer = s }
}

func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		tolerance: defaultPriceTolerance,
		topN:      defaultSummaryTopN,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Result is a ranked product list plus an optional natural-language summary.
type Result struct {
	Products []statex.ProductRecord
	Summary  string
}

// Aggregate flattens the outcome in provider registration order, removes
// duplicates keeping the better offer, filters by the price window and
// feature overlap, and ranks deterministically. When filtering removes every
// candidate the caller gets ErrNoResultsAfterFilter so it can offer to relax
// constraints.
func (a *Aggregator) Aggregate(ctx context.Context, outcome contract.SearchOutcome, prefs statex.Preferences, providerOrder []string) (Result, error) {
	flat := flatten(outcome, providerOrder)
	if len(flat) == 0 {
		return Result{}, nil
	}

	deduped := a.dedup(flat)
	filtered := filter(deduped, prefs)
	if len(filtered) == 0 {
		return Result{}, contract.ErrNoResultsAfterFilter
	}

	rank(filtered, prefs.Sort, providerOrder)

	res := Result{Products: filtered}
	if a.summarizer != nil {
		top := filtered
		if len(top) > a.topN {
			top = top[:a.topN]
		}
		summary, err := a.summarizer.Summarize(ctx, prefs, top)
		if err != nil {
			// Summaries are optional; the ranked list still ships.
			log.Warn().Err(err).Msg("result summary unavailable")
		} else {
			res.Summary = summary
		}
	}
	return res, nil
}

func flatten(outcome contract.SearchOutcome, providerOrder []string) []statex.ProductRecord {
	var flat []statex.ProductRecord
	seen := make(map[string]struct{}, len(providerOrder))
	for _, name := range providerOrder {
		seen[name] = struct{}{}
		flat = append(flat, outcome.ResultsByProvider[name]...)
	}
	// Providers missing from the order list still contribute, sorted by
	// name so the flattening stays deterministic.
	var extra []string
	for name := range outcome.ResultsByProvider {
		if _, ok := seen[name]; !ok {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		flat = append(flat, outcome.ResultsByProvider[name]...)
	}
	return flat
}

// dedup keeps the first-seen record for each logical product unless a later
// one is a strictly better offer (lower price, then higher rating).
func (a *Aggregator) dedup(flat []statex.ProductRecord) []statex.ProductRecord {
	var out []statex.ProductRecord
	for _, rec := range flat {
		idx := -1
		for i := range out {
			if a.sameProduct(out[i], rec) {
				idx = i
				break
			}
		}
		if idx == -1 {
			out = append(out, rec)
			continue
		}
		if betterOffer(rec, out[idx]) {
			out[idx] = rec
		}
	}
	return out
}

// sameProduct applies the duplicate identity: matching item ids, or matching
// canonical names with prices inside the tolerance band. Records without a
// price only collapse via the item id.
func (a *Aggregator) sameProduct(x, y statex.ProductRecord) bool {
	if x.ItemID != "" && x.ItemID == y.ItemID {
		return true
	}
	if x.CanonicalName() != y.CanonicalName() {
		return false
	}
	if x.Price == nil || y.Price == nil {
		return false
	}
	lo, hi := *x.Price, *y.Price
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo <= 0 {
		return hi == lo
	}
	return float64(hi-lo) <= a.tolerance*float64(lo)
}

// betterOffer reports whether candidate beats incumbent. Ties keep the
// incumbent, which arrived earlier in provider order.
func betterOffer(candidate, incumbent statex.ProductRecord) bool {
	switch {
	case candidate.Price == nil:
		return false
	case incumbent.Price == nil:
		return true
	case *candidate.Price != *incumbent.Price:
		return *candidate.Price < *incumbent.Price
	}
	switch {
	case candidate.Rating == nil:
		return false
	case incumbent.Rating == nil:
		return true
	default:
		return *candidate.Rating > *incumbent.Rating
	}
}

func filter(records []statex.ProductRecord, prefs statex.Preferences) []statex.ProductRecord {
	out := make([]statex.ProductRecord, 0, len(records))
	for _, rec := range records {
		if !priceInWindow(rec.Price, prefs.PriceMin, prefs.PriceMax) {
			continue
		}
		if len(prefs.Features) > 0 && !featuresOverlap(rec.Features, prefs.Features) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// priceInWindow treats an unknown price as inside any window; only a known
// price can violate a bound.
func priceInWindow(price, min, max *int64) bool {
	if price == nil {
		return true
	}
	if min != nil && *price < *min {
		return false
	}
	if max != nil && *price > *max {
		return false
	}
	return true
}

func featuresOverlap(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, f := range have {
		set[strings.ToLower(strings.TrimSpace(f))] = struct{}{}
	}
	for _, f := range want {
		if _, ok := set[strings.ToLower(strings.TrimSpace(f))]; ok {
			return true
		}
	}
	return false
}

// rank orders by the requested sort key, then rating descending, then
// provider registration order, then item id, so equal records always land in
// the same position.
func rank(records []statex.ProductRecord, order statex.SortOrder, providerOrder []string) {
	providerIdx := make(map[string]int, len(providerOrder))
	for i, name := range providerOrder {
		providerIdx[name] = i
	}
	idx := func(name string) int {
		if i, ok := providerIdx[name]; ok {
			return i
		}
		return len(providerOrder)
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if c := comparePrimary(a, b, order); c != 0 {
			return c < 0
		}
		if c := compareRatingDesc(a.Rating, b.Rating); c != 0 {
			return c < 0
		}
		if ai, bi := idx(a.Provider), idx(b.Provider); ai != bi {
			return ai < bi
		}
		return a.ItemID < b.ItemID
	})
}

func comparePrimary(a, b statex.ProductRecord, order statex.SortOrder) int {
	switch order {
	case statex.SortPriceDesc:
		return comparePriceDesc(a.Price, b.Price)
	case statex.SortRatingDesc:
		return compareRatingDesc(a.Rating, b.Rating)
	default:
		return comparePriceAsc(a.Price, b.Price)
	}
}

// comparePriceDesc sorts known prices descending, unknown prices still last.
func comparePriceDesc(a, b *int64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a > *b:
		return -1
	case *a < *b:
		return 1
	default:
		return 0
	}
}

// comparePriceAsc sorts known prices ascending with unknown prices last.
func comparePriceAsc(a, b *int64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	default:
		return 0
	}
}

func compareRatingDesc(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a > *b:
		return -1
	case *a < *b:
		return 1
	default:
		return 0
	}
}
