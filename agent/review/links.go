// Package review produces external review-site links for a confirmed
// product. Pure URL templating; it never performs I/O and never fails.
package review

import (
	"net/url"
	"strings"

	"github.com/okaimono/shopping-agent/agent/contract"
	statex "github.com/okaimono/shopping-agent/agent/state"
)

type site struct {
	name     string
	template string
}

// Query parameter templates for the supported review sites. %s receives the
// escaped product name.
var defaultSites = []site{
	{name: "価格.com", template: "https://kakaku.com/search_results/%s/"},
	{name: "みん評", template: "https://minhyo.jp/search?q=%s"},
	{name: "Amazonレビュー", template: "https://www.amazon.co.jp/s?k=%s"},
}

type Linker struct {
	sites []site
}

func NewLinker() *Linker {
	return &Linker{sites: defaultSites}
}

func (l *Linker) Links(product statex.ProductRecord) []contract.ReviewLink {
	name := strings.TrimSpace(product.Name)
	if name == "" {
		return nil
	}
	escaped := url.QueryEscape(name)
	out := make([]contract.ReviewLink, 0, len(l.sites))
	for _, s := range l.sites {
		out = append(out, contract.ReviewLink{
			Site: s.name,
			URL:  strings.Replace(s.template, "%s", escaped, 1),
		})
	}
	return out
}
