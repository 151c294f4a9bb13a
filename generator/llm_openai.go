package generator

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAILLM implements Suggester and ChatFactory using the official openai-go SDK (chat completions).
type OpenAILLM struct {
	Model string
	Opts  []option.RequestOption
}

func NewOpenAILLMFromConfig(cfg *LLMSettings) (*OpenAILLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; set OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAILLM{Model: cfg.Model, Opts: opts}, nil
}

func (o *OpenAILLM) Suggest(ctx context.Context, transcript string) (SuggestionSet, error) {
	client := openai.NewClient(o.Opts...)
	prompt := BuildSuggestionPrompt(transcript)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "note_article_suggestions",
					Description: openai.String("titles and target lengths for a note article"),
					Schema:      SuggestionJSONSchema(),
					Strict:      openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return SuggestionSet{}, NewServiceError("AIサービスの呼び出しに失敗しました。", err)
	}
	if len(resp.Choices) == 0 {
		return SuggestionSet{}, NewParseError(parseFailureMessage, errors.New("openai: empty choices"))
	}
	return ParseSuggestions(resp.Choices[0].Message.Content)
}

// NewChat satisfies ChatFactory. The conversation history lives in the returned session.
func (o *OpenAILLM) NewChat(_ context.Context, systemInstruction string) (ChatSession, error) {
	client := openai.NewClient(o.Opts...)
	return &openaiChat{
		client: client,
		model:  o.Model,
		history: []Message{
			{Role: "system", Content: systemInstruction},
		},
	}, nil
}

type openaiChat struct {
	client openai.Client
	model  string

	mu      sync.Mutex
	history []Message
}

func (c *openaiChat) messages(user string) []openai.ChatCompletionMessageParamUnion {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(c.history)+1)
	for _, h := range c.history {
		switch h.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(h.Content))
		case "assistant":
			msgs = append(msgs, openai.ChatCompletionMessageParamOfAssistant(h.Content))
		default:
			msgs = append(msgs, openai.UserMessage(h.Content))
		}
	}
	return append(msgs, openai.UserMessage(user))
}

func (c *openaiChat) record(user, reply string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history,
		Message{Role: "user", Content: user},
		Message{Role: "assistant", Content: reply},
	)
}

func (c *openaiChat) Send(ctx context.Context, message string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stream := c.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
			Model:    openai.ChatModel(c.model),
			Messages: c.messages(message),
		})
		defer stream.Close()

		var reply strings.Builder
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			text := chunk.Choices[0].Delta.Content
			if text == "" {
				continue
			}
			reply.WriteString(text)
			if !yield(text, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield("", NewServiceError("記事の生成中にエラーが発生しました。", err))
			return
		}
		c.record(message, reply.String())
	}
}
