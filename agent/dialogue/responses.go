package dialogue

import (
	"fmt"
	"strings"

	statex "github.com/okaimono/shopping-agent/agent/state"
)

// Response templates. Several variants per situation; pickTemplate indexes
// by conversation length so a session cycles through them deterministically.
var (
	greetingTemplates = []string{
		"こんにちは！お買い物エージェントです。何かお探しの商品はありますか？",
		"はじめまして！買い物のお手伝いをさせていただきます。何かご質問はありますか？",
		"こんにちは！商品検索のお手伝いをいたします。何をお探しでしょうか？",
	}
	farewellTemplates = []string{
		"ありがとうございました。また何かございましたらお気軽にお声かけください。",
		"お疲れ様でした。またのご利用をお待ちしております。",
		"ご利用ありがとうございました。何かありましたらいつでもどうぞ。",
	}
	helpTemplates = []string{
		"使い方についてご説明いたします。商品名やカテゴリを教えていただければ、最適な商品をご提案いたします。",
		"サポートいたします。商品検索、価格比較、お気に入り登録など、様々な機能をご利用いただけます。",
		"ご質問にお答えします。商品の詳細情報、レビュー、価格比較など、お買い物に役立つ情報をお届けします。",
	}
	clarifyTemplates = []string{
		"申し訳ございません。もう少し詳しく教えていただけますか？",
		"ご質問の内容を理解できませんでした。別の表現でお聞かせください。",
		"すみません、もう一度お聞かせいただけますでしょうか？",
	}
	hearingTemplates = []string{
		"承知しました。価格帯やご希望の特徴など、他に条件はありますか？",
		"かしこまりました。ご予算や色の希望があればお聞かせください。",
	}
)

const (
	partialFailureNotice = "一部の情報を取得できませんでした。表示できた結果のみご案内します。"
	totalFailureMessage  = "申し訳ございません。現在、商品情報を取得できませんでした。時間をおいてお試しください。"
	noResultsMessage     = "条件に合う商品が見つかりませんでした。価格帯や特徴の条件を緩めて再検索しますか？"
	confirmAskTemplate   = "「%s」はこちらの商品でお間違いないですか？画像をご確認のうえ、「はい」か「いいえ」でお答えください。"
	confirmDenyMessage   = "承知しました。別の条件やキーワードをお聞かせください。"
	reviewIntroTemplate  = "「%s」ですね。参考になるレビューサイトのリンクをご用意しました。"
	errorApology         = "申し訳ございません。処理中に問題が発生しました。もう一度お試しください。"
)

func pickTemplate(templates []string, turnCount int) string {
	if len(templates) == 0 {
		return ""
	}
	if turnCount < 0 {
		turnCount = 0
	}
	return templates[turnCount%len(templates)]
}

// renderResults builds the reply text for a successful search: optional
// summary, a short listing of the top hits, and the partial-failure notice
// when some providers dropped out.
func renderResults(products []statex.ProductRecord, summary string, partial bool) string {
	var b strings.Builder
	if partial {
		b.WriteString(partialFailureNotice)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%d件の商品が見つかりました。", len(products))
	if summary != "" {
		b.WriteString("\n")
		b.WriteString(summary)
	}
	limit := len(products)
	if limit > 3 {
		limit = 3
	}
	for i := 0; i < limit; i++ {
		p := products[i]
		priceText := "価格不明"
		if p.Price != nil {
			priceText = fmt.Sprintf("%d円", *p.Price)
		}
		fmt.Fprintf(&b, "\n%d. %s（%s / %s）", i+1, p.Name, priceText, p.Shop)
	}
	return b.String()
}
