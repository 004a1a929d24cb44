package state

import (
	"sort"
	"strings"
)

// ProductRecord is the canonical schema every provider result is normalized
// into. Price is in currency minor units; Price, Rating and ReviewCount are
// nil when the provider did not report them.
type ProductRecord struct {
	Provider    string   `json:"provider"`
	ItemID      string   `json:"item_id"`
	Name        string   `json:"name"`
	Price       *int64   `json:"price,omitempty"`
	Shop        string   `json:"shop,omitempty"`
	URL         string   `json:"url,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	Features    []string `json:"features,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	ReviewCount *int     `json:"review_count,omitempty"`
}

func (r ProductRecord) Clone() ProductRecord {
	cp := r
	cp.Features = append([]string(nil), r.Features...)
	if r.Price != nil {
		v := *r.Price
		cp.Price = &v
	}
	if r.Rating != nil {
		v := *r.Rating
		cp.Rating = &v
	}
	if r.ReviewCount != nil {
		v := *r.ReviewCount
		cp.ReviewCount = &v
	}
	return cp
}

// CanonicalName is the dedup identity form: case-folded with runs of
// whitespace collapsed to single spaces.
func (r ProductRecord) CanonicalName() string {
	return strings.Join(strings.Fields(strings.ToLower(r.Name)), " ")
}

// SortByPriceAscending orders records cheapest first. Unknown prices sort
// last; shop then item id break ties so the order is stable.
func SortByPriceAscending(recs []ProductRecord) {
	sort.Slice(recs, func(i, j int) bool {
		pi, pj := recs[i].Price, recs[j].Price
		switch {
		case pi == nil && pj == nil:
		case pi == nil:
			return false
		case pj == nil:
			return true
		case *pi != *pj:
			return *pi < *pj
		}
		if recs[i].Shop != recs[j].Shop {
			return recs[i].Shop < recs[j].Shop
		}
		return recs[i].ItemID < recs[j].ItemID
	})
}
