package server

import (
	"bufio"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/zawasasa/note-blog-generator/generator"
	"github.com/zawasasa/note-blog-generator/publisher"
	"github.com/zawasasa/note-blog-generator/transcript"
	"github.com/zawasasa/note-blog-generator/workflow"
)

//go:embed web/templates/*.html web/static/*
var embeddedWeb embed.FS

const (
	sessionCookie  = "sid"
	suggestTimeout = 60 * time.Second
)

// Options tunes the server; zero values fall back to defaults.
type Options struct {
	MaxSessions int
	SessionTTL  time.Duration
	UploadLimit int64
	Logger      *log.Logger
}

type Server struct {
	agent       *generator.Agent
	store       *sessionStore
	pub         *publisher.Publisher
	pages       *template.Template
	staticFS    http.Handler
	uploadLimit int64
	logger      *log.Logger
}

func New(agent *generator.Agent, pub *publisher.Publisher, opts Options) (*Server, error) {
	if agent == nil {
		return nil, errors.New("generator agent required")
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 256
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 2 * time.Hour
	}
	if opts.UploadLimit <= 0 {
		opts.UploadLimit = transcript.DefaultLimit
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if pub == nil {
		pub = publisher.New(nil, false, opts.Logger)
	}

	pages, err := template.New("").Funcs(viewFuncs).ParseFS(embeddedWeb, "web/templates/*.html")
	if err != nil {
		return nil, err
	}
	static, err := fs.Sub(embeddedWeb, "web/static")
	if err != nil {
		return nil, err
	}

	return &Server{
		agent:       agent,
		store:       newStore(agent, pub, opts.MaxSessions, opts.SessionTTL, opts.Logger),
		pub:         pub,
		pages:       pages,
		staticFS:    http.StripPrefix("/static/", http.FileServer(http.FS(static))),
		uploadLimit: opts.UploadLimit,
		logger:      opts.Logger,
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// browser views, session bound to the sid cookie
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /transcript", s.handleTranscript)
	mux.HandleFunc("POST /title", s.handleTitle)
	mux.HandleFunc("POST /length", s.handleLength)
	mux.HandleFunc("POST /generate", s.handleGenerate)
	mux.HandleFunc("POST /reset", s.handleReset)
	mux.HandleFunc("POST /dismiss", s.handleDismiss)
	mux.HandleFunc("GET /download", s.handleDownload)
	mux.HandleFunc("GET /copy", s.handleCopy)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /static/", s.staticFS)

	// JSON API
	mux.HandleFunc("POST /api/sessions", s.handleSessionCreate)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSessionGet)
	mux.HandleFunc("GET /api/sessions/{id}/document", s.handleSessionDocument)
	mux.HandleFunc("GET /api/sessions/{id}/ws", s.handleSessionWS)
	mux.HandleFunc("GET /api/sessions/{id}/archive", s.handleArchiveList)
	mux.HandleFunc("GET /api/sessions/{id}/archive/{name}", s.handleArchiveDocument)
	mux.HandleFunc("POST /api/sessions/{id}/{action}", s.handleSessionAction)

	return logMiddleware(s.logger, mux)
}

// --- Helpers ---

// errorStatus maps workflow and generator errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrNotReady),
		errors.Is(err, workflow.ErrStale):
		return http.StatusConflict
	case generator.IsKind(err, generator.KindValidation):
		return http.StatusBadRequest
	case generator.IsKind(err, generator.KindService), generator.IsKind(err, generator.KindParse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack is needed by the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func logMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		path := r.URL.Path
		if path == "" {
			path = "/"
		}
		logger.Printf("[http] %s %s %d %s", r.Method, path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}
