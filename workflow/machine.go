// Package workflow drives one user through transcript ingestion, title and length
// selection and article generation.
package workflow

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strings"
	"sync"

	"github.com/zawasasa/note-blog-generator/generator"
)

var (
	// ErrInvalidTransition is returned when an operation does not apply to the current state.
	ErrInvalidTransition = errors.New("workflow: operation not allowed in current state")
	// ErrNotReady is returned by Generate when title, length or transcript is missing.
	// Nothing changes; callers treat it as a no-op.
	ErrNotReady = errors.New("workflow: title and length must be selected before generation")
	// ErrStale is returned to an operation that was superseded by Reset.
	ErrStale = errors.New("workflow: superseded by reset")
)

const (
	suggestFailedPrefix = "AIから提案を取得できませんでした: "
	generateFailed      = "記事の生成中にエラーが発生しました。"

	subscriberBuffer = 1024
)

// Snapshot is a copy of the machine's data at one point in time.
type Snapshot struct {
	State          State                        `json:"state"`
	Transcript     string                       `json:"transcript,omitempty"`
	Titles         []string                     `json:"titles"`
	Lengths        []generator.LengthSuggestion `json:"lengthSuggestions"`
	SelectedTitle  string                       `json:"selectedTitle,omitempty"`
	SelectedLength int                          `json:"selectedLength,omitempty"`
	ReferenceURL   string                       `json:"referenceUrl,omitempty"`
	Article        string                       `json:"article"`
	Banner         string                       `json:"banner,omitempty"`
	Generation     uint64                       `json:"generation"`
}

type EventKind int

const (
	// EventState carries a state change (or a banner change within a state).
	EventState EventKind = iota
	// EventFragment carries one fragment appended to the article.
	EventFragment
)

// Event is published to subscribers after every transition and every append.
type Event struct {
	Kind       EventKind
	State      State
	Fragment   string
	Banner     string
	Generation uint64
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger replaces the default logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithCompletionHook registers fn to run (outside the lock) after each successful generation.
func WithCompletionHook(fn func(Snapshot)) Option {
	return func(m *Machine) { m.onComplete = fn }
}

// Machine is the workflow state machine. It is safe for concurrent use.
type Machine struct {
	suggester  generator.Suggester
	chat       generator.ChatSession
	logger     *log.Logger
	onComplete func(Snapshot)

	mu             sync.Mutex
	state          State
	transcript     string
	titles         []string
	lengths        []generator.LengthSuggestion
	selectedTitle  string
	selectedLength int
	referenceURL   string
	article        strings.Builder
	banner         string
	gen            uint64
	cancel         context.CancelFunc
	subs           map[int]chan Event
	nextSub        int
}

// New returns a machine in Idle. chat is reused for every generation of this machine.
func New(suggester generator.Suggester, chat generator.ChatSession, opts ...Option) *Machine {
	m := &Machine{
		suggester: suggester,
		chat:      chat,
		logger:    log.Default(),
		subs:      make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SubmitTranscript captures text and fetches suggestions (Idle -> ProcessingFile ->
// AwaitingTitleApproval). On failure the machine returns to Idle with a banner.
func (m *Machine) SubmitTranscript(ctx context.Context, text string) error {
	m.mu.Lock()
	if m.state != Idle {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	if strings.TrimSpace(text) == "" {
		m.mu.Unlock()
		return generator.NewValidationError("テープ起こしが空です。")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.cancel = cancel
	m.transcript = text
	m.banner = ""
	gen := m.gen
	m.setState(ProcessingFile)
	m.mu.Unlock()

	set, err := m.suggester.Suggest(ctx, text)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return ErrStale
	}
	m.cancel = nil
	if err != nil {
		m.logger.Printf("[workflow] suggestion failed: %v", err)
		m.transcript = ""
		m.banner = suggestFailedPrefix + generator.UserMessage(err)
		m.setState(Idle)
		return err
	}
	m.titles = set.Titles
	m.lengths = set.LengthSuggestions
	m.setState(AwaitingTitleApproval)
	return nil
}

// SelectTitle picks the title at index (AwaitingTitleApproval -> AwaitingLengthSelection).
func (m *Machine) SelectTitle(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != AwaitingTitleApproval {
		return ErrInvalidTransition
	}
	if index < 0 || index >= len(m.titles) {
		return generator.NewValidationError("タイトルを選択してください。")
	}
	m.selectedTitle = m.titles[index]
	m.setState(AwaitingLengthSelection)
	return nil
}

// SelectLength sets the target length (AwaitingLengthSelection -> AwaitingReferenceURL).
// Values outside the suggestion list are accepted.
func (m *Machine) SelectLength(length int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != AwaitingLengthSelection {
		return ErrInvalidTransition
	}
	if length <= 0 {
		return generator.NewValidationError("文字数を選択してください。")
	}
	m.selectedLength = length
	m.setState(AwaitingReferenceURL)
	return nil
}

// SetReferenceURL records the optional reference article. Empty clears it.
func (m *Machine) SetReferenceURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw != "" && !validURL(raw) {
		return generator.NewValidationError("参考記事URLの形式が正しくありません。")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != AwaitingReferenceURL {
		return ErrInvalidTransition
	}
	m.referenceURL = raw
	return nil
}

// Generate streams the article (AwaitingReferenceURL -> GeneratingArticle -> Completed or
// Error). It blocks until the stream ends; Reset from another goroutine aborts it.
func (m *Machine) Generate(ctx context.Context) error {
	run, err := m.beginGenerate(ctx)
	if err != nil {
		return err
	}
	return run()
}

// Start checks the guard and enters GeneratingArticle synchronously, then streams in a
// new goroutine. The outcome is observable through State, Snapshot and Subscribe.
func (m *Machine) Start(ctx context.Context) error {
	run, err := m.beginGenerate(ctx)
	if err != nil {
		return err
	}
	go func() { _ = run() }()
	return nil
}

func (m *Machine) beginGenerate(ctx context.Context) (func() error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selectedTitle == "" || m.selectedLength <= 0 || m.transcript == "" {
		return nil, ErrNotReady
	}
	if m.state != AwaitingReferenceURL {
		return nil, ErrInvalidTransition
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.article.Reset()
	m.banner = ""
	gen := m.gen
	req := generator.ArticleRequest{
		Title:        m.selectedTitle,
		Length:       m.selectedLength,
		ReferenceURL: m.referenceURL,
		Transcript:   m.transcript,
	}
	m.setState(GeneratingArticle)

	return func() error {
		defer cancel()
		for frag, err := range generator.WriteArticle(ctx, m.chat, req) {
			if err != nil {
				return m.fail(gen, err)
			}
			if !m.appendFragment(gen, frag) {
				return ErrStale
			}
		}
		return m.complete(gen)
	}, nil
}

func (m *Machine) appendFragment(gen uint64, frag string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return false
	}
	m.article.WriteString(frag)
	m.publish(Event{Kind: EventFragment, State: m.state, Fragment: frag, Generation: gen})
	return true
}

func (m *Machine) fail(gen uint64, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return ErrStale
	}
	m.logger.Printf("[workflow] generation failed after %d bytes: %v", m.article.Len(), err)
	m.cancel = nil
	m.banner = generateFailed
	m.setState(Error)
	return err
}

func (m *Machine) complete(gen uint64) error {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return ErrStale
	}
	m.cancel = nil
	m.setState(Completed)
	snap := m.snapshotLocked()
	hook := m.onComplete
	m.mu.Unlock()

	if hook != nil {
		hook(snap)
	}
	return nil
}

// Reset cancels any in-flight call and returns to Idle with all derived data cleared.
// Results of the cancelled call are discarded. The chat session is kept.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.gen++
	m.transcript = ""
	m.titles = nil
	m.lengths = nil
	m.selectedTitle = ""
	m.selectedLength = 0
	m.referenceURL = ""
	m.article.Reset()
	m.banner = ""
	m.setState(Idle)
}

// DismissBanner clears the transient message without changing state.
func (m *Machine) DismissBanner() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.banner == "" {
		return
	}
	m.banner = ""
	m.publish(Event{Kind: EventState, State: m.state, Generation: m.gen})
}

// State returns the active state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot returns a copy of the current data.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe returns the current snapshot and a channel of subsequent events. A subscriber
// that falls too far behind is dropped and its channel closed; resubscribe to catch up.
// The returned func unsubscribes.
func (m *Machine) Subscribe() (Snapshot, <-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	ch := make(chan Event, subscriberBuffer)
	m.subs[id] = ch
	unsubscribe := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
	}
	return m.snapshotLocked(), ch, unsubscribe
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		State:          m.state,
		Transcript:     m.transcript,
		Titles:         append([]string(nil), m.titles...),
		Lengths:        append([]generator.LengthSuggestion(nil), m.lengths...),
		SelectedTitle:  m.selectedTitle,
		SelectedLength: m.selectedLength,
		ReferenceURL:   m.referenceURL,
		Article:        m.article.String(),
		Banner:         m.banner,
		Generation:     m.gen,
	}
}

func (m *Machine) setState(s State) {
	if m.state != s {
		m.logger.Printf("[workflow] %s -> %s", m.state, s)
	}
	m.state = s
	m.publish(Event{Kind: EventState, State: s, Banner: m.banner, Generation: m.gen})
}

func (m *Machine) publish(ev Event) {
	for id, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			m.logger.Printf("[workflow] dropping slow subscriber %d", id)
			delete(m.subs, id)
			close(ch)
		}
	}
}

func validURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
