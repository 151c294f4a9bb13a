package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zawasasa/note-blog-generator/generator"
	"github.com/zawasasa/note-blog-generator/workflow"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	bannerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("196")).Padding(0, 1)
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

func (m *model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("ささっとnote記事を書くアプリ"))
	b.WriteString("\n")

	if m.snap.Banner != "" {
		b.WriteString(bannerStyle.Render(m.snap.Banner))
		b.WriteString("\n")
	}

	switch m.snap.State {
	case workflow.Idle:
		b.WriteString("テープ起こしのテキストを入力してください\n")
		b.WriteString(m.textArea.View())
	case workflow.ProcessingFile:
		b.WriteString(m.spinner.View() + " テープ起こしを分析し、提案を生成しています...")
	case workflow.AwaitingTitleApproval:
		b.WriteString(m.titleList.View())
	case workflow.AwaitingLengthSelection:
		b.WriteString("「" + m.snap.SelectedTitle + "」\n")
		b.WriteString(m.lengthList.View())
	case workflow.AwaitingReferenceURL:
		b.WriteString("「" + m.snap.SelectedTitle + "」／約" + generator.FormatLength(m.snap.SelectedLength) + "字\n\n")
		b.WriteString(m.urlInput.View())
	case workflow.GeneratingArticle:
		b.WriteString(m.spinner.View() + " 記事全体を生成しています... しばらくお待ちください。\n")
		b.WriteString(m.viewport.View())
	case workflow.Completed:
		b.WriteString(doneStyle.Render("記事の生成が完了しました！") + "\n")
		b.WriteString("# " + m.snap.SelectedTitle + "\n")
		b.WriteString(m.viewport.View())
	case workflow.Error:
		b.WriteString(m.viewport.View())
	}

	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errStyle.Render(generator.UserMessage(m.err)) + "\n")
	}
	if m.status != "" {
		b.WriteString(doneStyle.Render(m.status) + "\n")
	}
	b.WriteString(helpStyle.Render(m.help()))
	return b.String()
}

func (m *model) help() string {
	keys := []string{"ctrl+r: やり直す", "ctrl+c: 終了"}
	if m.snap.Banner != "" {
		keys = append(keys, "ctrl+x: 閉じる")
	}
	switch m.snap.State {
	case workflow.Idle:
		keys = append([]string{"ctrl+d: 送信"}, keys...)
	case workflow.AwaitingTitleApproval:
		keys = append([]string{"enter: タイトルを決定"}, keys...)
	case workflow.AwaitingLengthSelection:
		keys = append([]string{"enter: 文字数を決定"}, keys...)
	case workflow.AwaitingReferenceURL:
		keys = append([]string{"enter: 記事執筆を開始"}, keys...)
	case workflow.Completed:
		keys = append([]string{"c: 全文コピー", "s: MDファイルで保存", "q: 終了"}, keys...)
	}
	return strings.Join(keys, " • ")
}
