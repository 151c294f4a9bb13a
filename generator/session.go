package generator

import (
	"context"
	"errors"
	"iter"
	"sync"
)

// LazyChat 持有一个会话：首次 Send 时创建，之后一直复用。
// 创建失败不会被缓存，下次 Send 会重新尝试。
type LazyChat struct {
	factory ChatFactory
	system  string

	mu   sync.Mutex
	sess ChatSession
}

func NewLazyChat(factory ChatFactory, systemInstruction string) *LazyChat {
	return &LazyChat{factory: factory, system: systemInstruction}
}

func (c *LazyChat) session(ctx context.Context) (ChatSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != nil {
		return c.sess, nil
	}
	if c.factory == nil {
		return nil, NewServiceError("チャットが初期化されていません。", errors.New("chat factory is nil"))
	}
	sess, err := c.factory(ctx, c.system)
	if err != nil {
		if IsKind(err, KindService) {
			return nil, err
		}
		return nil, NewServiceError("チャットを開始できませんでした。", err)
	}
	c.sess = sess
	return sess, nil
}

// Started reports whether the underlying session has been created.
func (c *LazyChat) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess != nil
}

func (c *LazyChat) Send(ctx context.Context, message string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		sess, err := c.session(ctx)
		if err != nil {
			yield("", err)
			return
		}
		for frag, err := range sess.Send(ctx, message) {
			if err != nil && !IsKind(err, KindService) {
				err = NewServiceError("記事の生成中にエラーが発生しました。", err)
			}
			if !yield(frag, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}
