package tui

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zawasasa/note-blog-generator/generator"
	"github.com/zawasasa/note-blog-generator/publisher"
	"github.com/zawasasa/note-blog-generator/transcript"
	"github.com/zawasasa/note-blog-generator/workflow"
)

type brokenSuggester struct{}

func (brokenSuggester) Suggest(context.Context, string) (generator.SuggestionSet, error) {
	return generator.SuggestionSet{}, generator.NewServiceError("AIサービスの呼び出しに失敗しました。", errors.New("401"))
}

func newTestModel(t *testing.T, s generator.Suggester, text string) *model {
	t.Helper()
	machine := workflow.New(s,
		generator.NewLazyChat(generator.MockLLM{}.NewChat, generator.ArticleSystemPrompt),
		workflow.WithLogger(log.New(io.Discard, "", 0)))
	m := initialModel(context.Background(), machine, Options{Transcript: text, SaveDir: t.TempDir()})
	t.Cleanup(func() { m.unsubscribe() })
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

// press sends a key and runs the resulting command once, feeding its message back.
func press(t *testing.T, m *model, key tea.KeyMsg) {
	t.Helper()
	_, cmd := m.Update(key)
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case suggestDoneMsg, generateDoneMsg, copiedMsg, savedMsg:
		m.Update(msg)
	}
}

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	down  = tea.KeyMsg{Type: tea.KeyDown}
)

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestFullFlow(t *testing.T) {
	m := newTestModel(t, generator.MockLLM{}, "今日は新しいアプリを作りました。")
	assert.Contains(t, m.View(), "ctrl+d: 送信")

	press(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	require.Equal(t, workflow.AwaitingTitleApproval, m.snap.State)
	assert.Len(t, m.titleList.Items(), 5)

	press(t, m, down)
	press(t, m, enter)
	require.Equal(t, workflow.AwaitingLengthSelection, m.snap.State)
	assert.Equal(t, "AIを使ってブログ記事を生成した話", m.snap.SelectedTitle)
	assert.Contains(t, m.View(), "2,000字")

	press(t, m, enter)
	require.Equal(t, workflow.AwaitingReferenceURL, m.snap.State)
	assert.Equal(t, 1500, m.snap.SelectedLength)
	assert.Contains(t, m.View(), "約1,500字")

	press(t, m, enter)
	require.Equal(t, workflow.Completed, m.snap.State)
	assert.Equal(t, generator.MockArticle, m.snap.Article)
	assert.Contains(t, m.View(), "記事の生成が完了しました！")

	var copied string
	m.copyFn = func(s string) error { copied = s; return nil }
	press(t, m, runes("c"))
	assert.Equal(t, publisher.Document(m.snap.SelectedTitle, generator.MockArticle), copied)
	assert.Contains(t, m.View(), "クリップボードにコピーしました")

	press(t, m, runes("s"))
	saved, err := os.ReadFile(filepath.Join(m.saveDir, publisher.Filename(m.snap.SelectedTitle)))
	require.NoError(t, err)
	assert.Equal(t, copied, string(saved))

	press(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.Equal(t, workflow.Idle, m.snap.State)
	assert.Empty(t, m.textArea.Value())
	assert.Empty(t, m.snap.Article)
}

func TestEmptyTranscriptShowsError(t *testing.T) {
	m := newTestModel(t, generator.MockLLM{}, "")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlD})
	assert.Nil(t, cmd)
	assert.Equal(t, workflow.Idle, m.snap.State)
	assert.Contains(t, m.View(), transcript.MessageEmpty)
}

func TestSuggestionFailureBanner(t *testing.T) {
	m := newTestModel(t, brokenSuggester{}, "text")
	press(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	assert.Equal(t, workflow.Idle, m.snap.State)
	assert.Contains(t, m.View(), "AIから提案を取得できませんでした: AIサービスの呼び出しに失敗しました。")
	assert.Contains(t, m.View(), "ctrl+x")

	press(t, m, tea.KeyMsg{Type: tea.KeyCtrlX})
	assert.NotContains(t, m.View(), "AIから提案を取得できませんでした")
}

func TestInvalidReferenceURL(t *testing.T) {
	m := newTestModel(t, generator.MockLLM{}, "text")
	press(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	press(t, m, enter)
	press(t, m, enter)
	require.Equal(t, workflow.AwaitingReferenceURL, m.snap.State)

	m.urlInput.SetValue("not a url")
	_, cmd := m.Update(enter)
	assert.Nil(t, cmd)
	assert.Equal(t, workflow.AwaitingReferenceURL, m.snap.State)
	assert.Contains(t, m.View(), "参考記事URLの形式が正しくありません。")
}

func TestEventsKeepViewInSync(t *testing.T) {
	m := newTestModel(t, generator.MockLLM{}, "")
	require.NoError(t, m.machine.SubmitTranscript(context.Background(), "text"))

	// drain what the machine published and feed it through Update
	for {
		select {
		case ev := <-m.events:
			m.Update(eventMsg(ev))
			continue
		default:
		}
		break
	}
	assert.Equal(t, workflow.AwaitingTitleApproval, m.snap.State)
	assert.True(t, strings.Contains(m.View(), "テープ起こしからnote記事を作成した話"))
}

func TestResubscribeAfterDrop(t *testing.T) {
	m := newTestModel(t, generator.MockLLM{}, "")
	m.unsubscribe()
	_, cmd := m.Update(eventsClosedMsg{})
	require.NotNil(t, cmd)
	m.machine.Reset()
	msg := cmd()
	_, ok := msg.(eventMsg)
	assert.True(t, ok)
}
