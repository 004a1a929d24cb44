// Package prefs turns free-form Japanese/English shopping utterances into
// structured preference deltas and coarse intents. Extraction is purely
// lexical; an empty delta is a valid outcome, not an error.
package prefs

import (
	"regexp"
	"strconv"
	"strings"

	statex "github.com/okaimono/shopping-agent/agent/state"
)

type Intent string

const (
	IntentGreeting Intent = "greeting"
	IntentFarewell Intent = "farewell"
	IntentHelp     Intent = "help"
	IntentSearch   Intent = "search"
	IntentAffirm   Intent = "affirm"
	IntentDeny     Intent = "deny"
	IntentUnknown  Intent = "unknown"
)

var (
	greetingWords = []string{
		"こんにちは", "はじめまして", "おはよう", "こんばんは",
		"hello", "hi", "good morning", "good evening",
	}
	farewellWords = []string{
		"さようなら", "ありがとう", "お疲れ様", "失礼します", "終了", "終わり",
		"goodbye", "bye", "thank you", "thanks",
	}
	helpWords = []string{
		"ヘルプ", "使い方", "説明", "サポート",
		"help", "how to", "support",
	}
	searchWords = []string{
		"探したい", "検索", "見つけたい", "買いたい", "探して", "欲しい",
		"search", "find", "look for", "buy",
	}
	affirmWords = []string{
		"はい", "うん", "そう", "お願いします", "いいね", "これにする", "これがいい",
		"yes", "ok", "okay", "sure",
	}
	denyWords = []string{
		"いいえ", "いや", "違う", "やめる", "やめて", "別の",
		"no", "nope", "cancel",
	}
)

var categoryLexicon = map[string]string{
	"電化製品":   "electronics",
	"家電":     "electronics",
	"服":      "clothing",
	"ファッション": "clothing",
	"本":      "books",
	"書籍":     "books",
	"食品":     "food",
	"食べ物":    "food",
	"化粧品":    "cosmetics",
	"美容":     "cosmetics",
	"スポーツ":   "sports",
	"家具":     "furniture",
	"玩具":     "toys",
	"おもちゃ":   "toys",
	"日傘":     "parasol",
	"傘":      "parasol",
}

var colorLexicon = map[string]string{
	"黒":     "black",
	"ブラック":  "black",
	"白":     "white",
	"ホワイト":  "white",
	"赤":     "red",
	"レッド":   "red",
	"青":     "blue",
	"ブルー":   "blue",
	"緑":     "green",
	"グリーン":  "green",
	"ピンク":   "pink",
	"グレー":   "gray",
	"ベージュ":  "beige",
	"ネイビー":  "navy",
	"シルバー":  "silver",
	"ゴールド":  "gold",
	"ブラウン":  "brown",
	"茶色":    "brown",
	"オレンジ":  "orange",
	"イエロー":  "yellow",
	"黄色":    "yellow",
	"パープル":  "purple",
	"紫":     "purple",
}

// stopwords are particles and filler that never carry preference signal.
var stopwords = map[string]struct{}{
	"の": {}, "に": {}, "は": {}, "を": {}, "が": {}, "で": {}, "と": {},
	"から": {}, "まで": {}, "です": {}, "ます": {}, "ください": {},
	"お願い": {}, "ありがとう": {},
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {},
}

var (
	priceRangeRe = regexp.MustCompile(`(\d+)(万|千)?円\s*(?:〜|~|から|-)\s*(\d+)(万|千)?円`)
	priceMaxRe   = regexp.MustCompile(`(\d+)(万|千)?円\s*(?:以下|以内|未満|まで)`)
	priceMinRe   = regexp.MustCompile(`(\d+)(万|千)?円\s*(?:以上|より上)`)
	priceBareRe  = regexp.MustCompile(`(\d+)(万|千)?円`)

	// Product codes look like "UV-1204" or "SG500": a letter prefix, an
	// optional separator, then digits.
	productCodeRe = regexp.MustCompile(`^[A-Za-z]{2,}[-_]?\d{2,}$`)

	tokenSplitRe = regexp.MustCompile(`[　 、,]+`)

	fullWidthDigits = strings.NewReplacer(
		"０", "0", "１", "1", "２", "2", "３", "3", "４", "4",
		"５", "5", "６", "6", "７", "7", "８", "8", "９", "9",
	)
)

// Extractor is stateless; the zero value is ready to use.
type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

// Classify maps the utterance to a coarse intent by lexicon lookup. Search
// wins over greeting words buried in a longer sentence only when an explicit
// search verb appears.
func (e *Extractor) Classify(text string) Intent {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return IntentUnknown
	}
	switch {
	case containsAny(lower, searchWords):
		return IntentSearch
	case containsAny(lower, farewellWords):
		return IntentFarewell
	case containsAny(lower, greetingWords):
		return IntentGreeting
	case containsAny(lower, helpWords):
		return IntentHelp
	case containsAny(lower, affirmWords):
		return IntentAffirm
	case containsAny(lower, denyWords):
		return IntentDeny
	default:
		return IntentUnknown
	}
}

// IsAffirmative and IsNegative classify yes/no replies for the image
// confirmation step. They check the deny lexicon first so "いや、違う" is not
// caught by a substring of an affirm word.
func (e *Extractor) IsAffirmative(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	return !containsAny(lower, denyWords) && containsAny(lower, affirmWords)
}

func (e *Extractor) IsNegative(text string) bool {
	return containsAny(strings.ToLower(strings.TrimSpace(text)), denyWords)
}

// Extract tokenizes the utterance and pulls out every slot it can recognize.
// Tokens consumed by the price, category, color or product-code recognizers
// do not reappear as feature keywords.
func (e *Extractor) Extract(text string) statex.Delta {
	var d statex.Delta
	normalized := fullWidthDigits.Replace(strings.TrimSpace(text))
	if normalized == "" {
		return d
	}

	remainder := e.extractPrice(normalized, &d)
	e.extractSort(normalized, &d)

	seen := make(map[string]struct{})
	for _, token := range tokenSplitRe.Split(remainder, -1) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}

		if cat, ok := categoryLexicon[token]; ok {
			if d.Category == "" {
				d.Category = cat
			}
			continue
		}
		if color, ok := colorLexicon[token]; ok {
			if d.Color == "" {
				d.Color = color
			}
			continue
		}
		if productCodeRe.MatchString(token) {
			if d.ConfirmedProductID == "" {
				d.ConfirmedProductID = token
			}
			continue
		}
		if _, stop := stopwords[strings.ToLower(token)]; stop {
			continue
		}
		if priceBareRe.MatchString(token) || isIntentWord(token) {
			continue
		}
		d.Features = append(d.Features, token)
	}
	return d
}

// extractPrice fills the price bounds and returns the text with all price
// expressions blanked out so they never leak into feature tokens.
func (e *Extractor) extractPrice(text string, d *statex.Delta) string {
	if m := priceRangeRe.FindStringSubmatch(text); m != nil {
		min := yenAmount(m[1], m[2])
		max := yenAmount(m[3], m[4])
		if min > max {
			min, max = max, min
		}
		d.PriceMin = &min
		d.PriceMax = &max
		return priceRangeRe.ReplaceAllString(text, " ")
	}
	out := text
	if m := priceMaxRe.FindStringSubmatch(out); m != nil {
		max := yenAmount(m[1], m[2])
		d.PriceMax = &max
		out = priceMaxRe.ReplaceAllString(out, " ")
	}
	if m := priceMinRe.FindStringSubmatch(out); m != nil {
		min := yenAmount(m[1], m[2])
		d.PriceMin = &min
		out = priceMinRe.ReplaceAllString(out, " ")
	}
	if d.PriceMin == nil && d.PriceMax == nil {
		if m := priceBareRe.FindStringSubmatch(out); m != nil {
			// A bare amount reads as a budget ceiling.
			max := yenAmount(m[1], m[2])
			d.PriceMax = &max
			out = priceBareRe.ReplaceAllString(out, " ")
		}
	}
	return out
}

func (e *Extractor) extractSort(text string, d *statex.Delta) {
	switch {
	case strings.Contains(text, "安い順"):
		d.Sort = statex.SortPriceAsc
	case strings.Contains(text, "高い順"):
		d.Sort = statex.SortPriceDesc
	case strings.Contains(text, "評価順") || strings.Contains(text, "評価の高い"):
		d.Sort = statex.SortRatingDesc
	}
}

func yenAmount(digits, unit string) int64 {
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	switch unit {
	case "万":
		n *= 10000
	case "千":
		n *= 1000
	}
	return n
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

func isIntentWord(token string) bool {
	lower := strings.ToLower(token)
	for _, set := range [][]string{greetingWords, farewellWords, helpWords, searchWords} {
		for _, w := range set {
			if lower == strings.ToLower(w) {
				return true
			}
		}
	}
	return false
}
