package generator

import (
	"context"
	"iter"
	"time"

	"golang.org/x/time/rate"
)

// NewLimiter returns a limiter allowing perMinute calls per minute with a burst of one.
// perMinute <= 0 disables limiting.
func NewLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

// RateLimited wraps a Suggester so each call waits for the limiter first.
func RateLimited(next Suggester, l *rate.Limiter) Suggester {
	if l == nil {
		return next
	}
	return &limitedSuggester{next: next, l: l}
}

type limitedSuggester struct {
	next Suggester
	l    *rate.Limiter
}

func (s *limitedSuggester) Suggest(ctx context.Context, transcript string) (SuggestionSet, error) {
	if err := s.l.Wait(ctx); err != nil {
		return SuggestionSet{}, NewServiceError("AIサービスの呼び出し待機が中断されました。", err)
	}
	return s.next.Suggest(ctx, transcript)
}

// RateLimitedChats applies the limiter to every Send of sessions produced by f.
func RateLimitedChats(f ChatFactory, l *rate.Limiter) ChatFactory {
	if l == nil {
		return f
	}
	return func(ctx context.Context, systemInstruction string) (ChatSession, error) {
		sess, err := f(ctx, systemInstruction)
		if err != nil {
			return nil, err
		}
		return &limitedChat{next: sess, l: l}, nil
	}
}

type limitedChat struct {
	next ChatSession
	l    *rate.Limiter
}

func (c *limitedChat) Send(ctx context.Context, msg string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := c.l.Wait(ctx); err != nil {
			yield("", NewServiceError("AIサービスの呼び出し待機が中断されました。", err))
			return
		}
		for frag, err := range c.next.Send(ctx, msg) {
			if !yield(frag, err) {
				return
			}
		}
	}
}
