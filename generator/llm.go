package generator

import (
	"context"
	"iter"
)

// Suggester 负责结构化提案调用（标题 + 字数）。
type Suggester interface {
	Suggest(ctx context.Context, transcript string) (SuggestionSet, error)
}

// ChatSession is one conversational session with the model. Send yields the reply as
// text fragments in arrival order; a non-nil error is always the last element.
type ChatSession interface {
	Send(ctx context.Context, message string) iter.Seq2[string, error]
}

// ChatFactory creates a chat session primed with the given system instruction.
type ChatFactory func(ctx context.Context, systemInstruction string) (ChatSession, error)

// LLMSettings 提供给具体实现的基础配置。
type LLMSettings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}
