package state

import (
	"errors"
	"fmt"
	"strings"
)

type SortOrder string

const (
	SortPriceAsc   SortOrder = "price_asc"
	SortPriceDesc  SortOrder = "price_desc"
	SortRatingDesc SortOrder = "rating_desc"
)

// Preferences is the slot set accumulated over a conversation. Any slot may
// be absent; PriceMin <= PriceMax holds whenever both are set.
type Preferences struct {
	Category           string    `json:"category,omitempty"`
	Color              string    `json:"color,omitempty"`
	PriceMin           *int64    `json:"price_min,omitempty"`
	PriceMax           *int64    `json:"price_max,omitempty"`
	Features           []string  `json:"features,omitempty"`
	ConfirmedProductID string    `json:"confirmed_product_id,omitempty"`
	Sort               SortOrder `json:"sort,omitempty"`
}

// Delta is one turn's worth of extracted preferences. Zero value means
// "nothing recognized", which is a valid outcome.
type Delta struct {
	Category           string
	Color              string
	PriceMin           *int64
	PriceMax           *int64
	Features           []string
	ConfirmedProductID string
	Sort               SortOrder
}

func (d Delta) Empty() bool {
	return d.Category == "" && d.Color == "" &&
		d.PriceMin == nil && d.PriceMax == nil &&
		len(d.Features) == 0 && d.ConfirmedProductID == "" && d.Sort == ""
}

// Apply merges a delta into the preferences. Scalar slots overwrite, the
// feature set unions preserving first-seen order. A new bound that
// contradicts the opposite existing bound wins and clears the stale one, so
// PriceMin > PriceMax can never survive a merge.
func (p *Preferences) Apply(d Delta) {
	if d.Category != "" {
		p.Category = d.Category
	}
	if d.Color != "" {
		p.Color = d.Color
	}
	if d.ConfirmedProductID != "" {
		p.ConfirmedProductID = d.ConfirmedProductID
	}
	if d.Sort != "" {
		p.Sort = d.Sort
	}
	if d.PriceMin != nil {
		min := *d.PriceMin
		p.PriceMin = &min
		if p.PriceMax != nil && *p.PriceMax < min {
			p.PriceMax = nil
		}
	}
	if d.PriceMax != nil {
		max := *d.PriceMax
		p.PriceMax = &max
		if p.PriceMin != nil && *p.PriceMin > max {
			p.PriceMin = nil
		}
	}
	if len(d.Features) > 0 {
		p.Features = unionFeatures(p.Features, d.Features)
	}
}

func unionFeatures(existing, add []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(add))
	out := make([]string, 0, len(existing)+len(add))
	for _, f := range existing {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	for _, f := range add {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// SearchEligible reports whether enough slots are filled to fan out a
// product search: a category or at least one feature token.
func (p Preferences) SearchEligible() bool {
	return p.Category != "" || len(p.Features) > 0
}

// QueryTokens returns the tokens joined into provider query strings, in a
// fixed order (category first, then features).
func (p Preferences) QueryTokens() []string {
	tokens := make([]string, 0, len(p.Features)+1)
	if p.Category != "" {
		tokens = append(tokens, p.Category)
	}
	tokens = append(tokens, p.Features...)
	return tokens
}

func (p Preferences) Clone() Preferences {
	cp := p
	cp.Features = append([]string(nil), p.Features...)
	if p.PriceMin != nil {
		v := *p.PriceMin
		cp.PriceMin = &v
	}
	if p.PriceMax != nil {
		v := *p.PriceMax
		cp.PriceMax = &v
	}
	return cp
}

func (p Preferences) Validate() error {
	if p.PriceMin != nil && p.PriceMax != nil && *p.PriceMin > *p.PriceMax {
		return fmt.Errorf("price bounds inverted: min=%d max=%d", *p.PriceMin, *p.PriceMax)
	}
	switch p.Sort {
	case "", SortPriceAsc, SortPriceDesc, SortRatingDesc:
	default:
		return errors.New("unknown sort order: " + string(p.Sort))
	}
	return nil
}
