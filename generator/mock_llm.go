package generator

import (
	"context"
	"iter"
	"time"
)

// MockLLM 一个确定性的占位实现，API key 缺失（permissive 模式）或本地调试时使用，不调用外部模型。
type MockLLM struct {
	// Delay between streamed runes; zero streams as fast as possible.
	Delay time.Duration
}

var mockTitles = []string{
	"テープ起こしからnote記事を作成した話",
	"AIを使ってブログ記事を生成した話",
	"音声をテキストに変換して記事にした話",
	"自動でnote記事を作成した話",
	"テープ起こしを活用して記事を執筆した話",
}

var mockLengths = []LengthSuggestion{
	{Length: 1500, Label: "1500字程度", Rationale: "コンパクトに要点をまとめる"},
	{Length: 2000, Label: "2000字程度", Rationale: "標準的な長さ"},
	{Length: 3000, Label: "3000字程度", Rationale: "詳細に展開"},
	{Length: 5000, Label: "5000字程度", Rationale: "ボリューミーに展開"},
}

// MockArticle is the body streamed by MockLLM chats.
const MockArticle = `これはAPIキーが設定されていない場合のモック記事です。実際に使用するには、有効なGemini APIキーを設定してください。

## はじめに

テープ起こしからnote記事を自動生成するアプリケーションについて説明します。

## 主な機能

- テキストファイルのアップロード
- AIによる記事タイトルの提案
- 文字数の選択
- 自動記事生成

## まとめ

このアプリケーションを使えば、誰でも簡単にnote記事を作成できます。`

func (m MockLLM) Suggest(ctx context.Context, _ string) (SuggestionSet, error) {
	if err := ctx.Err(); err != nil {
		return SuggestionSet{}, NewServiceError("AIサービスの呼び出しに失敗しました。", err)
	}
	set := SuggestionSet{
		Titles:            append([]string(nil), mockTitles...),
		LengthSuggestions: append([]LengthSuggestion(nil), mockLengths...),
	}
	return set, nil
}

// NewChat satisfies ChatFactory.
func (m MockLLM) NewChat(context.Context, string) (ChatSession, error) {
	return mockChat{delay: m.Delay}, nil
}

type mockChat struct {
	delay time.Duration
}

func (c mockChat) Send(ctx context.Context, _ string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, r := range MockArticle {
			if c.delay > 0 {
				select {
				case <-ctx.Done():
					yield("", NewServiceError("記事の生成中にエラーが発生しました。", ctx.Err()))
					return
				case <-time.After(c.delay):
				}
			} else if err := ctx.Err(); err != nil {
				yield("", NewServiceError("記事の生成中にエラーが発生しました。", err))
				return
			}
			if !yield(string(r), nil) {
				return
			}
		}
	}
}
