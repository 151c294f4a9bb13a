package generator

import (
	"context"
	"errors"
	"iter"
	"strings"
)

// Agent 负责提案调用以及正文会话的创建。
type Agent struct {
	suggester Suggester
	chats     ChatFactory
}

func NewAgent(suggester Suggester, chats ChatFactory) (*Agent, error) {
	if suggester == nil {
		return nil, errors.New("suggester is required")
	}
	if chats == nil {
		return nil, errors.New("chat factory is required")
	}
	return &Agent{suggester: suggester, chats: chats}, nil
}

// Suggest 请求标题与字数提案。空转写稿在本地拒绝。
func (a *Agent) Suggest(ctx context.Context, transcript string) (SuggestionSet, error) {
	if strings.TrimSpace(transcript) == "" {
		return SuggestionSet{}, NewValidationError("テープ起こしが空です。")
	}
	return a.suggester.Suggest(ctx, transcript)
}

// NewChat returns a lazily started session primed with the article system prompt.
func (a *Agent) NewChat() *LazyChat {
	return NewLazyChat(a.chats, ArticleSystemPrompt)
}

// WriteArticle sends the composed article prompt on chat and yields the body fragments.
func WriteArticle(ctx context.Context, chat ChatSession, req ArticleRequest) iter.Seq2[string, error] {
	return chat.Send(ctx, BuildArticlePrompt(req))
}
