package generator

import (
	"context"
	"errors"
	"iter"
	"strings"

	"google.golang.org/genai"
)

// GeminiLLM implements Suggester and ChatFactory on top of the official genai client.
type GeminiLLM struct {
	cli   *genai.Client
	model string
}

func NewGeminiLLMFromConfig(ctx context.Context, cfg *LLMSettings) (*GeminiLLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key missing; set GEMINI_API_KEY")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	cc := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &GeminiLLM{cli: cli, model: cfg.Model}, nil
}

func (g *GeminiLLM) Suggest(ctx context.Context, transcript string) (SuggestionSet, error) {
	prompt := BuildSuggestionPrompt(transcript)
	resp, err := g.cli.Models.GenerateContent(ctx, g.model, genai.Text(prompt.User), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    geminiSuggestionSchema(),
	})
	if err != nil {
		return SuggestionSet{}, NewServiceError("AIサービスの呼び出しに失敗しました。", err)
	}
	return ParseSuggestions(responseText(resp))
}

// NewChat satisfies ChatFactory.
func (g *GeminiLLM) NewChat(ctx context.Context, systemInstruction string) (ChatSession, error) {
	chat, err := g.cli.Chats.Create(ctx, g.model, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	}, nil)
	if err != nil {
		return nil, NewServiceError("チャットを開始できませんでした。", err)
	}
	return &geminiChat{chat: chat}, nil
}

type geminiChat struct {
	chat *genai.Chat
}

func (c *geminiChat) Send(ctx context.Context, message string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for resp, err := range c.chat.SendMessageStream(ctx, genai.Part{Text: message}) {
			if err != nil {
				yield("", NewServiceError("記事の生成中にエラーが発生しました。", err))
				return
			}
			text := responseText(resp)
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil {
			continue
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}
