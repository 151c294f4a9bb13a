package generator

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Prompt 表示一次结构化调用的系统指令和用户消息。
type Prompt struct {
	System string
	User   string
}

// Message 用于会话历史。
type Message struct {
	Role    string
	Content string
}

// ArticleSystemPrompt primes the chat session that writes the article body.
const ArticleSystemPrompt = `あなたはnoteで読まれるブログ記事を書くプロのライターです。ユーザーから提供されるテープ起こしを元に記事を執筆します。

ルール:
- 話し手の言葉づかいや体験をできるだけそのまま活かし、一人称の語り口で書いてください。
- テープ起こしに無い事実や数字を創作しないでください。
- 出力はMarkdownの本文のみとし、タイトル（一級見出し）は含めないでください。見出しは「##」以下を使ってください。
- 冒頭で読者の興味を引き、最後にまとめと読者への一言で締めくくってください。
- 指定された目標文字数に近い分量で書いてください。
- 参考ブログ記事が指定された場合は、その文体や構成を参考にしてください。内容をコピーしてはいけません。
- 前置きや執筆後のコメントは出力しないでください。`

// BuildSuggestionPrompt 生成分析转写稿、请求标题与字数提案的提示词。
func BuildSuggestionPrompt(transcript string) Prompt {
	var sb strings.Builder
	sb.WriteString("あなたはプロのブログライターです。テープ起こしを提供しますので、それを分析してブログ記事の構成を提案してください。\n\n")
	sb.WriteString("1. テープ起こしを注意深く読み、主要なテーマと内容の豊富さを理解してください。\n")
	sb.WriteString("2. SEOを意識したキャッチーなタイトルを5つ提案してください。各タイトルは必ず「〇〇した話」で終わるようにしてください。\n")
	sb.WriteString("3. テープ起こしの内容を分析し、適切な文字数を4つの選択肢で提案してください：\n")
	sb.WriteString("   - 1500字程度（コンパクトに要点をまとめる）\n")
	sb.WriteString("   - 2000字程度（標準的な長さ）\n")
	sb.WriteString("   - 3000字程度（詳細に展開）\n")
	sb.WriteString("   - 5000字程度（ボリューミーに展開）\n\n")
	sb.WriteString("各文字数提案には、なぜその文字数が適切かを説明してください。\n\n")
	sb.WriteString("テープ起こし:\n---\n")
	sb.WriteString(transcript)
	sb.WriteString("\n---\n\n")
	sb.WriteString("指定されたJSON形式で応答を提供してください。")

	return Prompt{
		System: "JSON以外のテキストを出力しないでください。",
		User:   sb.String(),
	}
}

// FormatLength renders n with Japanese digit grouping, e.g. 2000 -> "2,000".
func FormatLength(n int) string {
	return message.NewPrinter(language.Japanese).Sprintf("%d", n)
}

// ReferenceDirective 描述参考文章（可空）。
func ReferenceDirective(referenceURL string) string {
	referenceURL = strings.TrimSpace(referenceURL)
	if referenceURL == "" {
		return "参考ブログ記事はありません。"
	}
	return fmt.Sprintf("参考ブログ記事は「%s」です。", referenceURL)
}

// BuildArticlePrompt composes the message sent to the chat session to start writing.
func BuildArticlePrompt(req ArticleRequest) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("タイトル「%s」で、目標文字数は約%s字です。", req.Title, FormatLength(req.Length)))
	sb.WriteString(ReferenceDirective(req.ReferenceURL))
	sb.WriteString("\n\nそれでは、ルールに従って、このタイトルと文字数に適したブログ記事を執筆してください。")
	if t := strings.TrimSpace(req.Transcript); t != "" {
		sb.WriteString("\n\nテープ起こし:\n---\n")
		sb.WriteString(t)
		sb.WriteString("\n---")
	}
	return sb.String()
}
