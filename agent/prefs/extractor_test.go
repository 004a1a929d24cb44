package prefs

import (
	"reflect"
	"testing"

	statex "github.com/okaimono/shopping-agent/agent/state"
)

func TestExtractFeatureTokenSplitting(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	d := e.Extract("UVカット 放熱,軽量、遮光")

	want := []string{"UVカット", "放熱", "軽量", "遮光"}
	if !reflect.DeepEqual(d.Features, want) {
		t.Fatalf("features = %v, want %v", d.Features, want)
	}
	if d.Category != "" || d.Color != "" || d.PriceMin != nil || d.PriceMax != nil {
		t.Fatalf("unexpected extra slots in delta: %+v", d)
	}
}

func TestExtractPriceExpressions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		input   string
		wantMin *int64
		wantMax *int64
	}{
		{"ceiling", "5000円以下の日傘", nil, i64(5000)},
		{"ceiling with man unit", "1万円以内", nil, i64(10000)},
		{"ceiling with sen unit", "3千円まで", nil, i64(3000)},
		{"floor", "2000円以上", i64(2000), nil},
		{"range", "2000円〜5000円", i64(2000), i64(5000)},
		{"range with kara", "1万円から3万円", i64(10000), i64(30000)},
		{"inverted range normalizes", "5000円〜2000円", i64(2000), i64(5000)},
		{"bare amount is a ceiling", "3000円の傘", nil, i64(3000)},
		{"fullwidth digits", "５０００円以下", nil, i64(5000)},
		{"no price", "軽量な日傘", nil, nil},
	}

	e := NewExtractor()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := e.Extract(tc.input)
			if !eqInt64(d.PriceMin, tc.wantMin) {
				t.Errorf("PriceMin = %v, want %v", fmtP(d.PriceMin), fmtP(tc.wantMin))
			}
			if !eqInt64(d.PriceMax, tc.wantMax) {
				t.Errorf("PriceMax = %v, want %v", fmtP(d.PriceMax), fmtP(tc.wantMax))
			}
		})
	}
}

func TestExtractPriceTokensDoNotLeakIntoFeatures(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	d := e.Extract("軽量 5000円以下 遮光")

	want := []string{"軽量", "遮光"}
	if !reflect.DeepEqual(d.Features, want) {
		t.Fatalf("features = %v, want %v", d.Features, want)
	}
}

func TestExtractCategoryAndColor(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	d := e.Extract("家電 黒 コンパクト")

	if d.Category != "electronics" {
		t.Errorf("Category = %q, want electronics", d.Category)
	}
	if d.Color != "black" {
		t.Errorf("Color = %q, want black", d.Color)
	}
	if !reflect.DeepEqual(d.Features, []string{"コンパクト"}) {
		t.Errorf("features = %v, want [コンパクト]", d.Features)
	}
}

func TestExtractProductCode(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	d := e.Extract("UV-1204 にします")

	if d.ConfirmedProductID != "UV-1204" {
		t.Fatalf("ConfirmedProductID = %q, want UV-1204", d.ConfirmedProductID)
	}
}

func TestExtractEmptyDeltaIsNotAnError(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	for _, input := range []string{"", "   ", "　"} {
		d := e.Extract(input)
		if !d.Empty() {
			t.Errorf("Extract(%q) = %+v, want empty delta", input, d)
		}
	}
}

func TestExtractDeduplicatesTokens(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	d := e.Extract("軽量 軽量 遮光 軽量")

	want := []string{"軽量", "遮光"}
	if !reflect.DeepEqual(d.Features, want) {
		t.Fatalf("features = %v, want %v", d.Features, want)
	}
}

func TestExtractSortHints(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input string
		want  statex.SortOrder
	}{
		{"安い順で", statex.SortPriceAsc},
		{"高い順に並べて", statex.SortPriceDesc},
		{"評価順でお願い", statex.SortRatingDesc},
		{"軽量な傘", ""},
	}
	e := NewExtractor()
	for _, tc := range cases {
		if got := e.Extract(tc.input).Sort; got != tc.want {
			t.Errorf("Extract(%q).Sort = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input string
		want  Intent
	}{
		{"こんにちは", IntentGreeting},
		{"さようなら", IntentFarewell},
		{"使い方を教えて", IntentHelp},
		{"日傘を探したい", IntentSearch},
		{"はい", IntentAffirm},
		{"いいえ", IntentDeny},
		{"軽量 遮光", IntentUnknown},
		{"", IntentUnknown},
	}
	e := NewExtractor()
	for _, tc := range cases {
		if got := e.Classify(tc.input); got != tc.want {
			t.Errorf("Classify(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestAffirmativeNegative(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	if !e.IsAffirmative("はい、お願いします") {
		t.Error("expected affirmative")
	}
	if e.IsAffirmative("いや、違う") {
		t.Error("deny lexicon should override affirm")
	}
	if !e.IsNegative("いいえ") {
		t.Error("expected negative")
	}
}

func i64(v int64) *int64 { return &v }

func eqInt64(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func fmtP(p *int64) any {
	if p == nil {
		return "<nil>"
	}
	return *p
}
