// Package tui is the terminal front-end: one bubbletea view per workflow state.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zawasasa/note-blog-generator/generator"
	"github.com/zawasasa/note-blog-generator/publisher"
	"github.com/zawasasa/note-blog-generator/transcript"
	"github.com/zawasasa/note-blog-generator/workflow"
)

// Options configures Run.
type Options struct {
	// Transcript pre-fills the input, e.g. from --file.
	Transcript string
	// SaveDir is where "s" writes the Markdown document; defaults to the working directory.
	SaveDir string
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, machine *workflow.Machine, opts Options) error {
	m := initialModel(ctx, machine, opts)
	defer func() { m.unsubscribe() }()
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

type model struct {
	ctx     context.Context
	machine *workflow.Machine
	saveDir string

	snap        workflow.Snapshot
	events      <-chan workflow.Event
	unsubscribe func()

	textArea   textarea.Model
	urlInput   textinput.Model
	titleList  list.Model
	lengthList list.Model
	viewport   viewport.Model
	spinner    spinner.Model

	status        string
	err           error
	width, height int

	copyFn  func(string) error
	writeFn func(path string, data []byte) error
}

type item struct {
	title string
	desc  string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title }

// eventMsg wraps one machine event.
type eventMsg workflow.Event

// eventsClosedMsg means the machine dropped our subscription.
type eventsClosedMsg struct{}

type suggestDoneMsg struct{ err error }

type generateDoneMsg struct{ err error }

type savedMsg struct {
	path string
	err  error
}

type copiedMsg struct{ err error }

func initialModel(ctx context.Context, machine *workflow.Machine, opts Options) *model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ta := textarea.New()
	ta.Placeholder = "ここにテープ起こしのテキストを貼り付けてください..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(12)
	ta.SetValue(opts.Transcript)
	ta.Focus()

	ti := textinput.New()
	ti.Placeholder = "https://note.com/..."
	ti.Prompt = "参考記事URL（任意）: "

	titles := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	titles.Title = "タイトルを選択"
	titles.SetShowHelp(false)
	titles.SetFilteringEnabled(false)

	lengths := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	lengths.Title = "文字数を選択"
	lengths.SetShowHelp(false)
	lengths.SetFilteringEnabled(false)

	snap, events, unsubscribe := machine.Subscribe()
	m := &model{
		ctx:         ctx,
		machine:     machine,
		saveDir:     opts.SaveDir,
		events:      events,
		unsubscribe: unsubscribe,
		textArea:    ta,
		urlInput:    ti,
		titleList:   titles,
		lengthList:  lengths,
		viewport:    viewport.New(80, 20),
		spinner:     s,
		copyFn:      clipboard.WriteAll,
		writeFn: func(path string, data []byte) error {
			return os.WriteFile(path, data, 0o644)
		},
	}
	m.sync(snap)
	return m
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, waitForEvent(m.events))
}

func waitForEvent(ch <-chan workflow.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

// sync replaces the mirrored snapshot and rebuilds the widgets of a newly entered state.
func (m *model) sync(snap workflow.Snapshot) {
	prev := m.snap.State
	entered := prev != snap.State || m.snap.Generation != snap.Generation
	m.snap = snap
	m.refreshArticle()
	if !entered {
		return
	}
	switch snap.State {
	case workflow.Idle:
		m.textArea.Focus()
		if prev != workflow.ProcessingFile {
			m.urlInput.Reset()
		}
	case workflow.AwaitingTitleApproval:
		items := make([]list.Item, len(snap.Titles))
		for i, t := range snap.Titles {
			items[i] = item{title: t}
		}
		m.titleList.SetItems(items)
		m.titleList.Select(0)
	case workflow.AwaitingLengthSelection:
		items := make([]list.Item, len(snap.Lengths))
		for i, l := range snap.Lengths {
			items[i] = item{
				title: generator.FormatLength(l.Length) + "字 " + l.Label,
				desc:  l.Rationale,
			}
		}
		m.lengthList.SetItems(items)
		m.lengthList.Select(0)
	case workflow.AwaitingReferenceURL:
		m.urlInput.SetValue(snap.ReferenceURL)
		m.urlInput.Focus()
	}
}

func (m *model) refreshArticle() {
	w := m.viewport.Width
	if w <= 0 {
		w = 80
	}
	m.viewport.SetContent(lipgloss.NewStyle().Width(w).Render(m.snap.Article))
	if m.snap.State == workflow.GeneratingArticle {
		m.viewport.GotoBottom()
	}
}

func (m *model) submitTranscript() tea.Cmd {
	text, err := transcript.FromText(m.textArea.Value())
	if err != nil {
		m.err = err
		return nil
	}
	m.err = nil
	m.textArea.Blur()
	machine, ctx := m.machine, m.ctx
	return func() tea.Msg {
		return suggestDoneMsg{err: machine.SubmitTranscript(ctx, text)}
	}
}

func (m *model) startGeneration() tea.Cmd {
	if err := m.machine.SetReferenceURL(m.urlInput.Value()); err != nil {
		m.err = err
		return nil
	}
	m.err = nil
	m.urlInput.Blur()
	machine, ctx := m.machine, m.ctx
	return func() tea.Msg {
		return generateDoneMsg{err: machine.Generate(ctx)}
	}
}

func (m *model) document() string {
	return publisher.Document(m.snap.SelectedTitle, m.snap.Article)
}

func (m *model) copyCmd() tea.Cmd {
	doc, copyFn := m.document(), m.copyFn
	return func() tea.Msg { return copiedMsg{err: copyFn(doc)} }
}

func (m *model) saveCmd() tea.Cmd {
	path := filepath.Join(m.saveDir, publisher.Filename(m.snap.SelectedTitle))
	doc, writeFn := m.document(), m.writeFn
	return func() tea.Msg { return savedMsg{path: path, err: writeFn(path, []byte(doc))} }
}

func (m *model) reset() {
	m.machine.Reset()
	m.textArea.Reset()
	m.urlInput.Reset()
	m.err = nil
	m.status = ""
	m.sync(m.machine.Snapshot())
}

func (m *model) resize(w, h int) {
	m.width, m.height = w, h
	bodyH := h - 6
	if bodyH < 5 {
		bodyH = 5
	}
	m.textArea.SetWidth(w - 2)
	m.urlInput.Width = w - 24
	m.titleList.SetSize(w, bodyH)
	m.lengthList.SetSize(w, bodyH)
	m.viewport.Width = w
	m.viewport.Height = bodyH
	m.refreshArticle()
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case eventMsg:
		// 事件只是通知；以机器的快照为准，避免和 done 消息重复拼接片段。
		m.sync(m.machine.Snapshot())
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		snap, events, unsubscribe := m.machine.Subscribe()
		m.events, m.unsubscribe = events, unsubscribe
		m.sync(snap)
		return m, waitForEvent(m.events)

	case suggestDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, workflow.ErrStale) {
			m.textArea.Focus()
		}
		m.sync(m.machine.Snapshot())
		return m, nil

	case generateDoneMsg:
		m.sync(m.machine.Snapshot())
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("コピーに失敗しました。: %w", msg.err)
		} else {
			m.status = "✓ クリップボードにコピーしました"
		}
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("ダウンロードに失敗しました。: %w", msg.err)
		} else {
			m.status = "保存しました: " + msg.path
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m.updateFocused(msg)
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "ctrl+r":
		m.reset()
		return m, nil
	case "ctrl+x":
		m.machine.DismissBanner()
		m.err = nil
		m.sync(m.machine.Snapshot())
		return m, nil
	}

	switch m.snap.State {
	case workflow.Idle:
		if msg.String() == "ctrl+d" {
			return m, m.submitTranscript()
		}
	case workflow.AwaitingTitleApproval:
		if msg.String() == "enter" {
			m.err = m.machine.SelectTitle(m.titleList.Index())
			m.sync(m.machine.Snapshot())
			return m, nil
		}
	case workflow.AwaitingLengthSelection:
		if msg.String() == "enter" {
			idx := m.lengthList.Index()
			if idx >= 0 && idx < len(m.snap.Lengths) {
				m.err = m.machine.SelectLength(m.snap.Lengths[idx].Length)
				m.sync(m.machine.Snapshot())
			}
			return m, nil
		}
	case workflow.AwaitingReferenceURL:
		if msg.String() == "enter" {
			return m, m.startGeneration()
		}
	case workflow.Completed:
		switch msg.String() {
		case "c":
			return m, m.copyCmd()
		case "s":
			return m, m.saveCmd()
		case "q", "esc":
			return m, tea.Quit
		}
	case workflow.Error:
		if msg.String() == "q" || msg.String() == "esc" {
			return m, tea.Quit
		}
	case workflow.ProcessingFile:
		return m, nil
	}
	return m.updateFocused(msg)
}

// updateFocused forwards msg to the widget of the current state.
func (m *model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.snap.State {
	case workflow.Idle:
		m.textArea, cmd = m.textArea.Update(msg)
	case workflow.AwaitingTitleApproval:
		m.titleList, cmd = m.titleList.Update(msg)
	case workflow.AwaitingLengthSelection:
		m.lengthList, cmd = m.lengthList.Update(msg)
	case workflow.AwaitingReferenceURL:
		m.urlInput, cmd = m.urlInput.Update(msg)
	case workflow.GeneratingArticle, workflow.Completed, workflow.Error:
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}
