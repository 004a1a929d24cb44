package review

import (
	"strings"
	"testing"

	statex "github.com/okaimono/shopping-agent/agent/state"
)

func TestLinksEscapeProductName(t *testing.T) {
	t.Parallel()

	l := NewLinker()
	links := l.Links(statex.ProductRecord{Name: "完全遮光 日傘 UV-1204"})
	if len(links) != 3 {
		t.Fatalf("got %d links, want 3", len(links))
	}
	for _, link := range links {
		if link.Site == "" {
			t.Error("link with empty site name")
		}
		if strings.Contains(link.URL, " ") {
			t.Errorf("unescaped space in %s url: %s", link.Site, link.URL)
		}
		if !strings.HasPrefix(link.URL, "https://") {
			t.Errorf("unexpected scheme: %s", link.URL)
		}
	}
}

func TestLinksEmptyNameYieldsNoLinks(t *testing.T) {
	t.Parallel()

	if links := NewLinker().Links(statex.ProductRecord{}); links != nil {
		t.Fatalf("got %v, want nil", links)
	}
}
