package server

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/zawasasa/note-blog-generator/generator"
	"github.com/zawasasa/note-blog-generator/publisher"
	"github.com/zawasasa/note-blog-generator/workflow"
)

// session 对应一个浏览器（或一个 API 客户端）的一次工作流。
type session struct {
	id      string
	machine *workflow.Machine
	created time.Time
}

// sessionStore keeps sessions in a bounded LRU; entries expire after ttl of inactivity
// measured from the last write. Evicted sessions are reset so generation stops.
type sessionStore struct {
	cache  *expirable.LRU[string, *session]
	agent  *generator.Agent
	pub    *publisher.Publisher
	logger *log.Logger
}

func newStore(agent *generator.Agent, pub *publisher.Publisher, size int, ttl time.Duration, logger *log.Logger) *sessionStore {
	s := &sessionStore{agent: agent, pub: pub, logger: logger}
	s.cache = expirable.NewLRU[string, *session](size, s.onEvict, ttl)
	return s
}

func (s *sessionStore) onEvict(id string, sess *session) {
	s.logger.Printf("[server] session %s evicted (age %s)", id, time.Since(sess.created).Round(time.Second))
	sess.machine.Reset()
}

func (s *sessionStore) create() *session {
	id := uuid.NewString()
	sess := &session{id: id, created: time.Now()}
	sess.machine = workflow.New(s.agent, s.agent.NewChat(),
		workflow.WithLogger(s.logger),
		workflow.WithCompletionHook(func(snap workflow.Snapshot) {
			s.archive(id, snap)
		}),
	)
	s.cache.Add(id, sess)
	s.logger.Printf("[server] session %s created", id)
	return sess
}

func (s *sessionStore) get(id string) (*session, bool) {
	if id == "" {
		return nil, false
	}
	return s.cache.Get(id)
}

// touch re-adds the session so its ttl restarts.
func (s *sessionStore) touch(sess *session) {
	s.cache.Add(sess.id, sess)
}

func (s *sessionStore) len() int { return s.cache.Len() }

func (s *sessionStore) archive(id string, snap workflow.Snapshot) {
	if s.pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.pub.Publish(ctx, id, snap.SelectedTitle, snap.Article); err != nil {
		s.logger.Printf("[server] archive session %s failed: %v", id, err)
	}
}
