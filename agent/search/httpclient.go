package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/okaimono/shopping-agent/agent/contract"
	statex "github.com/okaimono/shopping-agent/agent/state"
)

const maxResponseBytes = 1 << 20

// HTTPProvider queries one remote shopping API that speaks a flat JSON item
// list. The endpoint receives the keyword and limit as query parameters and
// authenticates with a bearer token.
type HTTPProvider struct {
	name     string
	endpoint string
	token    string
	client   *http.Client
}

type HTTPOption func(*HTTPProvider)

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(p *HTTPProvider) {
		if c != nil {
			p.client = c
		}
	}
}

func WithBearerToken(token string) HTTPOption {
	return func(p *HTTPProvider) { p.token = token }
}

func NewHTTPProvider(name, endpoint string, opts ...HTTPOption) (*HTTPProvider, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: provider name is empty", contract.ErrValidation)
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("%w: provider %s endpoint: %v", contract.ErrValidation, name, err)
	}
	p := &HTTPProvider{
		name:     name,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

func (p *HTTPProvider) Name() string { return p.name }

type wireItem struct {
	ItemID      string   `json:"item_id"`
	Name        string   `json:"name"`
	Price       *int64   `json:"price"`
	Shop        string   `json:"shop"`
	URL         string   `json:"url"`
	ImageURL    string   `json:"image_url"`
	Features    []string `json:"features"`
	Rating      *float64 `json:"rating"`
	ReviewCount *int     `json:"review_count"`
}

type wireResponse struct {
	Items []wireItem `json:"items"`
}

func (p *HTTPProvider) Search(ctx context.Context, keyword string, limit int) ([]statex.ProductRecord, error) {
	q := url.Values{}
	q.Set("keyword", keyword)
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, p.fail(contract.FailureUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		kind := contract.FailureUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			kind = contract.FailureTimeout
		}
		return nil, p.fail(kind, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, p.fail(contract.FailureAuth, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, p.fail(contract.FailureRateLimited, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, p.fail(contract.FailureUnavailable, fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, p.fail(contract.FailureMalformed, err)
	}
	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, p.fail(contract.FailureMalformed, err)
	}

	records := make([]statex.ProductRecord, 0, len(wire.Items))
	for _, item := range wire.Items {
		if item.Name == "" {
			continue
		}
		records = append(records, statex.ProductRecord{
			Provider:    p.name,
			ItemID:      item.ItemID,
			Name:        item.Name,
			Price:       item.Price,
			Shop:        item.Shop,
			URL:         item.URL,
			ImageURL:    item.ImageURL,
			Features:    item.Features,
			Rating:      item.Rating,
			ReviewCount: item.ReviewCount,
		})
	}
	return records, nil
}

func (p *HTTPProvider) fail(kind contract.FailureKind, err error) *contract.ProviderError {
	return &contract.ProviderError{Provider: p.name, Kind: kind, Err: err}
}
