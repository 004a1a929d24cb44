package search

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/okaimono/shopping-agent/agent/contract"
	statex "github.com/okaimono/shopping-agent/agent/state"
)

//go:embed catalog.json
var catalogJSON []byte

type catalogListing struct {
	Store string `json:"store"`
	Shop  string `json:"shop"`
	Price int64  `json:"price"`
}

type catalogProduct struct {
	ItemID      string           `json:"item_id"`
	Name        string           `json:"name"`
	Category    string           `json:"category"`
	Keywords    []string         `json:"keywords"`
	Features    []string         `json:"features"`
	Rating      *float64         `json:"rating"`
	ReviewCount *int             `json:"review_count"`
	ImageURL    string           `json:"image_url"`
	Listings    []catalogListing `json:"listings"`
}

type catalogFile struct {
	Products []catalogProduct `json:"products"`
}

// Catalog is the embedded product data set used when no remote provider is
// configured. Each store view of the catalog acts as its own provider, so the
// fan-out, dedup and price-compare paths behave the same as with live APIs.
type Catalog struct {
	products []catalogProduct
}

func LoadCatalog() (*Catalog, error) {
	var file catalogFile
	if err := json.Unmarshal(catalogJSON, &file); err != nil {
		return nil, fmt.Errorf("decode embedded catalog: %w", err)
	}
	if len(file.Products) == 0 {
		return nil, fmt.Errorf("%w: embedded catalog is empty", contract.ErrValidation)
	}
	return &Catalog{products: file.Products}, nil
}

// Stores returns the distinct store identifiers in first-seen order.
func (c *Catalog) Stores() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range c.products {
		for _, l := range p.Listings {
			if _, ok := seen[l.Store]; ok {
				continue
			}
			seen[l.Store] = struct{}{}
			out = append(out, l.Store)
		}
	}
	return out
}

// FindByCode resolves a product code from user input against the catalog,
// matching the item id or a name token case-insensitively. The cheapest
// listing wins.
func (c *Catalog) FindByCode(code string) (statex.ProductRecord, bool) {
	needle := strings.ToLower(strings.TrimSpace(code))
	if needle == "" {
		return statex.ProductRecord{}, false
	}
	for _, prod := range c.products {
		if strings.ToLower(prod.ItemID) != needle && !strings.Contains(strings.ToLower(prod.Name), needle) {
			continue
		}
		best := statex.ProductRecord{ItemID: prod.ItemID, Name: prod.Name, ImageURL: prod.ImageURL}
		for _, l := range prod.Listings {
			if best.Price == nil || l.Price < *best.Price {
				price := l.Price
				best.Price = &price
				best.Shop = l.Shop
				best.Provider = l.Store
				best.URL = fmt.Sprintf("https://shop.example.com/%s/items/%s", l.Store, prod.ItemID)
			}
		}
		best.Features = append([]string(nil), prod.Features...)
		best.Rating = prod.Rating
		best.ReviewCount = prod.ReviewCount
		return best, true
	}
	return statex.ProductRecord{}, false
}

// Provider returns a ProviderClient serving this store's slice of the
// catalog.
func (c *Catalog) Provider(store string) contract.ProviderClient {
	return &catalogProvider{name: store, store: store, catalog: c}
}

type catalogProvider struct {
	name    string
	store   string
	catalog *Catalog
}

func (p *catalogProvider) Name() string { return p.name }

// Search matches every whitespace-separated keyword token against the
// product's name, category, keywords and features. All tokens must hit.
func (p *catalogProvider) Search(ctx context.Context, keyword string, limit int) ([]statex.ProductRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tokens := strings.Fields(strings.ToLower(keyword))
	if len(tokens) == 0 {
		return nil, nil
	}

	var out []statex.ProductRecord
	for _, prod := range p.catalog.products {
		if !matchesAll(prod, tokens) {
			continue
		}
		for _, l := range prod.Listings {
			if l.Store != p.store {
				continue
			}
			price := l.Price
			out = append(out, statex.ProductRecord{
				Provider:    p.name,
				ItemID:      prod.ItemID,
				Name:        prod.Name,
				Price:       &price,
				Shop:        l.Shop,
				URL:         fmt.Sprintf("https://shop.example.com/%s/items/%s", l.Store, prod.ItemID),
				ImageURL:    prod.ImageURL,
				Features:    append([]string(nil), prod.Features...),
				Rating:      prod.Rating,
				ReviewCount: prod.ReviewCount,
			})
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func matchesAll(prod catalogProduct, tokens []string) bool {
	haystack := strings.ToLower(prod.Name) + " " + strings.ToLower(prod.Category)
	for _, kw := range prod.Keywords {
		haystack += " " + strings.ToLower(kw)
	}
	for _, f := range prod.Features {
		haystack += " " + strings.ToLower(f)
	}
	for _, token := range tokens {
		if !strings.Contains(haystack, token) {
			return false
		}
	}
	return true
}
