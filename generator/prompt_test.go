package generator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatLength(t *testing.T) {
	assert.Equal(t, "2,000", FormatLength(2000))
	assert.Equal(t, "1,500", FormatLength(1500))
	assert.Equal(t, "800", FormatLength(800))
}

func TestBuildArticlePromptWithoutReference(t *testing.T) {
	got := BuildArticlePrompt(ArticleRequest{
		Title:      "新しいアプリを作った話",
		Length:     2000,
		Transcript: "今日は新しいアプリを作りました。",
	})
	assert.True(t, strings.HasPrefix(got, "タイトル「新しいアプリを作った話」で、"))
	assert.Contains(t, got, "目標文字数は約2,000字です。")
	assert.Contains(t, got, "参考ブログ記事はありません。")
	assert.Contains(t, got, "それでは、ルールに従って、このタイトルと文字数に適したブログ記事を執筆してください。")
	assert.Contains(t, got, "今日は新しいアプリを作りました。")
}

func TestBuildArticlePromptWithReference(t *testing.T) {
	got := BuildArticlePrompt(ArticleRequest{
		Title:        "t",
		Length:       5000,
		ReferenceURL: " https://note.com/x/n/abc ",
	})
	assert.Contains(t, got, "目標文字数は約5,000字です。")
	assert.Contains(t, got, "参考ブログ記事は「https://note.com/x/n/abc」です。")
	assert.NotContains(t, got, "テープ起こし:")
}

func TestBuildSuggestionPromptEmbedsTranscript(t *testing.T) {
	p := BuildSuggestionPrompt("今日は新しいアプリを作りました。")
	assert.Contains(t, p.User, "---\n今日は新しいアプリを作りました。\n---")
	assert.Contains(t, p.User, "「〇〇した話」")
	assert.NotEmpty(t, p.System)
}
