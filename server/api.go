package server

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/zawasasa/note-blog-generator/generator"
	"github.com/zawasasa/note-blog-generator/publisher"
	"github.com/zawasasa/note-blog-generator/transcript"
	"github.com/zawasasa/note-blog-generator/workflow"
)

type sessionResp struct {
	SessionID string            `json:"session_id"`
	Snapshot  workflow.Snapshot `json:"snapshot"`
}

type archiveResp struct {
	SessionID string   `json:"session_id"`
	Files     []string `json:"files"`
}

type errorResp struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// actionReq carries the payload of every POST /api/sessions/{id}/{action}; each action
// reads only its own field.
type actionReq struct {
	Text         string `json:"text"`
	Index        *int   `json:"index"`
	Length       int    `json:"length"`
	ReferenceURL string `json:"referenceUrl"`
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	sess := s.store.create()
	writeJSON(w, http.StatusCreated, sessionResp{SessionID: sess.id, Snapshot: sess.machine.Snapshot()})
}

func (s *Server) apiSession(w http.ResponseWriter, r *http.Request) (*session, bool) {
	sess, ok := s.store.get(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResp{Error: "session not found"})
		return nil, false
	}
	s.store.touch(sess)
	return sess, true
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResp{SessionID: sess.id, Snapshot: sess.machine.Snapshot()})
}

func (s *Server) handleSessionDocument(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	writeDocument(w, sess.machine.Snapshot(), r.URL.Query().Get("download") != "")
}

// handleArchiveList lists what the completion hook archived for a session. Archived
// documents outlive the session itself, so the id is not looked up in the store.
func (s *Server) handleArchiveList(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	names, err := s.pub.Archived(r.Context(), id)
	if err != nil {
		writeArchiveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, archiveResp{SessionID: id, Files: names})
}

func (s *Server) handleArchiveDocument(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	doc, err := s.pub.ArchivedDocument(r.Context(), r.PathValue("id"), name)
	if err != nil {
		writeArchiveError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	_, _ = w.Write(doc)
}

func writeArchiveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, publisher.ErrNoArchive):
		writeJSON(w, http.StatusNotFound, errorResp{Error: "archive not configured"})
	case errors.Is(err, publisher.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResp{Error: "archived document not found"})
	default:
		writeJSON(w, http.StatusBadGateway, errorResp{Error: err.Error()})
	}
}

func (s *Server) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	var req actionReq
	if r.ContentLength != 0 {
		body := http.MaxBytesReader(w, r.Body, s.uploadLimit+4<<10)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error()})
			return
		}
	}

	var err error
	switch action := r.PathValue("action"); action {
	case "transcript":
		var text string
		if text, err = transcript.FromText(req.Text); err == nil {
			ctx, cancel := context.WithTimeout(r.Context(), suggestTimeout)
			defer cancel()
			err = sess.machine.SubmitTranscript(ctx, text)
		}
	case "title":
		if req.Index == nil {
			err = generator.NewValidationError("タイトルを選択してください。")
		} else {
			err = sess.machine.SelectTitle(*req.Index)
		}
	case "length":
		err = sess.machine.SelectLength(req.Length)
	case "reference":
		err = sess.machine.SetReferenceURL(req.ReferenceURL)
	case "generate":
		// an empty referenceUrl keeps whatever the reference action set
		if req.ReferenceURL != "" {
			err = sess.machine.SetReferenceURL(req.ReferenceURL)
		}
		if err == nil {
			err = sess.machine.Start(context.Background())
		}
	case "reset":
		sess.machine.Reset()
	case "dismiss":
		sess.machine.DismissBanner()
	default:
		writeJSON(w, http.StatusNotFound, errorResp{Error: "unknown action " + action})
		return
	}
	if err != nil {
		writeJSON(w, errorStatus(err), apiError(err))
		return
	}
	writeJSON(w, http.StatusOK, sessionResp{SessionID: sess.id, Snapshot: sess.machine.Snapshot()})
}

func apiError(err error) errorResp {
	resp := errorResp{Error: userMessage(err)}
	var ge *generator.Error
	if errors.As(err, &ge) {
		resp.Kind = ge.Kind.String()
	}
	return resp
}
