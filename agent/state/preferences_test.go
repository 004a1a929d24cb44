package state

import (
	"reflect"
	"testing"
)

func p64(v int64) *int64 { return &v }

func TestApplyScalarOverwriteAndFeatureUnion(t *testing.T) {
	t.Parallel()

	p := Preferences{Category: "clothing", Features: []string{"軽量"}}
	p.Apply(Delta{Category: "parasol", Features: []string{"UVカット", "軽量", "遮光"}})

	if p.Category != "parasol" {
		t.Errorf("category = %q, want parasol", p.Category)
	}
	want := []string{"軽量", "UVカット", "遮光"}
	if !reflect.DeepEqual(p.Features, want) {
		t.Errorf("features = %v, want %v", p.Features, want)
	}
}

func TestApplyNeverLeavesInvertedBounds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		start   Preferences
		delta   Delta
		wantMin *int64
		wantMax *int64
	}{
		{"new max below min clears min", Preferences{PriceMin: p64(5000)}, Delta{PriceMax: p64(3000)}, nil, p64(3000)},
		{"new min above max clears max", Preferences{PriceMax: p64(3000)}, Delta{PriceMin: p64(5000)}, p64(5000), nil},
		{"compatible bounds keep both", Preferences{PriceMin: p64(1000)}, Delta{PriceMax: p64(3000)}, p64(1000), p64(3000)},
		{"same turn range", Preferences{}, Delta{PriceMin: p64(2000), PriceMax: p64(5000)}, p64(2000), p64(5000)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := tc.start
			p.Apply(tc.delta)
			if err := p.Validate(); err != nil {
				t.Fatalf("Validate after Apply: %v", err)
			}
			if !eq64(p.PriceMin, tc.wantMin) || !eq64(p.PriceMax, tc.wantMax) {
				t.Fatalf("bounds = (%v, %v), want (%v, %v)", show(p.PriceMin), show(p.PriceMax), show(tc.wantMin), show(tc.wantMax))
			}
		})
	}
}

func TestSearchEligible(t *testing.T) {
	t.Parallel()

	if (Preferences{}).SearchEligible() {
		t.Error("empty preferences must not be eligible")
	}
	if !(Preferences{Category: "parasol"}).SearchEligible() {
		t.Error("category alone should be eligible")
	}
	if !(Preferences{Features: []string{"軽量"}}).SearchEligible() {
		t.Error("one feature should be eligible")
	}
	if (Preferences{PriceMax: p64(5000)}).SearchEligible() {
		t.Error("price alone must not be eligible")
	}
}

func TestQueryTokensOrder(t *testing.T) {
	t.Parallel()

	p := Preferences{Category: "parasol", Features: []string{"軽量", "UVカット"}}
	want := []string{"parasol", "軽量", "UVカット"}
	if got := p.QueryTokens(); !reflect.DeepEqual(got, want) {
		t.Fatalf("tokens = %v, want %v", got, want)
	}
}

func TestDeltaEmpty(t *testing.T) {
	t.Parallel()

	if !(Delta{}).Empty() {
		t.Error("zero delta should be empty")
	}
	if (Delta{Features: []string{"軽量"}}).Empty() {
		t.Error("delta with features should not be empty")
	}
	if (Delta{PriceMax: p64(1)}).Empty() {
		t.Error("delta with price should not be empty")
	}
}

func eq64(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func show(p *int64) any {
	if p == nil {
		return "<nil>"
	}
	return *p
}
