package server

import (
	"context"
	"errors"
	"html/template"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/zawasasa/note-blog-generator/generator"
	"github.com/zawasasa/note-blog-generator/publisher"
	"github.com/zawasasa/note-blog-generator/transcript"
	"github.com/zawasasa/note-blog-generator/workflow"
)

var viewFuncs = template.FuncMap{
	"formatLength": generator.FormatLength,
	"inc":          func(i int) int { return i + 1 },
}

type pageData struct {
	Snapshot    workflow.Snapshot
	View        string
	Loading     bool
	Error       string
	ArticleHTML template.HTML
	Filename    string
}

// viewFor picks the template for a state. Idle and ProcessingFile share the upload view.
func viewFor(st workflow.State) string {
	switch st {
	case workflow.Idle, workflow.ProcessingFile:
		return "upload"
	case workflow.AwaitingTitleApproval:
		return "titles"
	case workflow.AwaitingLengthSelection:
		return "lengths"
	case workflow.AwaitingReferenceURL:
		return "reference"
	default:
		return "article"
	}
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, workflow.ErrNotReady):
		return "タイトルと文字数を選択してください。"
	case errors.Is(err, workflow.ErrInvalidTransition):
		return "この操作は現在の状態では実行できません。"
	case errors.Is(err, workflow.ErrStale):
		return "操作はリセットにより中断されました。"
	}
	return generator.UserMessage(err)
}

// sessionFor returns the cookie-bound session, creating one when missing or expired.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) *session {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if sess, ok := s.store.get(c.Value); ok {
			s.store.touch(sess)
			return sess
		}
	}
	sess := s.store.create()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

func (s *Server) render(w http.ResponseWriter, status int, snap workflow.Snapshot, errMsg string) {
	data := pageData{
		Snapshot: snap,
		View:     viewFor(snap.State),
		Loading:  snap.State == workflow.ProcessingFile,
		Error:    errMsg,
		Filename: publisher.Filename(snap.SelectedTitle),
	}
	if snap.State == workflow.Completed || snap.State == workflow.Error {
		body, err := publisher.RenderHTML(snap.Article)
		if err != nil {
			s.logger.Printf("[server] render markdown failed: %v", err)
		} else {
			// goldmark 默认不输出原始 HTML，这里可以直接信任。
			data.ArticleHTML = template.HTML(body)
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.pages.ExecuteTemplate(w, "layout", data); err != nil {
		s.logger.Printf("[server] execute template failed: %v", err)
	}
}

// respond redirects back to the index after a successful POST. Failures that the machine
// already surfaced as a banner redirect too; anything else re-renders with the message.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, sess *session, err error) {
	if err == nil || generator.IsKind(err, generator.KindService) || generator.IsKind(err, generator.KindParse) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, errorStatus(err), sess.machine.Snapshot(), userMessage(err))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	s.render(w, http.StatusOK, sess.machine.Snapshot(), "")
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	text, err := s.readTranscript(w, r)
	if err != nil {
		s.respond(w, r, sess, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), suggestTimeout)
	defer cancel()
	s.respond(w, r, sess, sess.machine.SubmitTranscript(ctx, text))
}

// readTranscript accepts either a multipart "file" or a pasted "text" field.
func (s *Server) readTranscript(w http.ResponseWriter, r *http.Request) (string, error) {
	// multipart 头部和边界的额外开销
	r.Body = http.MaxBytesReader(w, r.Body, s.uploadLimit+64<<10)
	if err := r.ParseMultipartForm(s.uploadLimit); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", generator.NewValidationError(transcript.MessageTooLarge)
		}
		return "", generator.NewValidationError("アップロードを読み取れませんでした。")
	}
	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		return transcript.Read(header.Filename, header.Header.Get("Content-Type"), file, s.uploadLimit)
	}
	text := r.FormValue("text")
	if int64(len(text)) > s.uploadLimit {
		return "", generator.NewValidationError(transcript.MessageTooLarge)
	}
	return transcript.FromText(text)
}

func (s *Server) handleTitle(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	idx, err := strconv.Atoi(r.FormValue("index"))
	if err != nil {
		s.respond(w, r, sess, generator.NewValidationError("タイトルを選択してください。"))
		return
	}
	s.respond(w, r, sess, sess.machine.SelectTitle(idx))
}

func (s *Server) handleLength(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	raw := r.FormValue("length")
	if raw == "custom" || raw == "" {
		raw = r.FormValue("custom_length")
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		s.respond(w, r, sess, generator.NewValidationError("文字数を選択してください。"))
		return
	}
	s.respond(w, r, sess, sess.machine.SelectLength(n))
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	s.respond(w, r, sess, startGeneration(sess, r.FormValue("reference_url")))
}

// startGeneration records the reference URL and starts streaming in the background.
// Generation is bound to the session, not the request; Reset or eviction cancels it.
// Outside AwaitingReferenceURL, Start reports why generation cannot begin.
func startGeneration(sess *session, referenceURL string) error {
	err := sess.machine.SetReferenceURL(referenceURL)
	if err != nil && !errors.Is(err, workflow.ErrInvalidTransition) {
		return err
	}
	return sess.machine.Start(context.Background())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	sess.machine.Reset()
	s.respond(w, r, sess, nil)
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	sess.machine.DismissBanner()
	s.respond(w, r, sess, nil)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	writeDocument(w, sess.machine.Snapshot(), true)
}

func (s *Server) handleCopy(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	writeDocument(w, sess.machine.Snapshot(), false)
}

func writeDocument(w http.ResponseWriter, snap workflow.Snapshot, attachment bool) {
	if snap.State != workflow.Completed {
		http.Error(w, "article is not complete", http.StatusConflict)
		return
	}
	if attachment {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
			"filename": publisher.Filename(snap.SelectedTitle),
		}))
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	_, _ = io.WriteString(w, publisher.Document(snap.SelectedTitle, snap.Article))
}
