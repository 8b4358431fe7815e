package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"flyerforge-ai/internal/flyer"
)

//go:embed static/*
var staticFS embed.FS

type Options struct {
	Runner         *flyer.Runner
	Logger         *slog.Logger
	RequestTimeout time.Duration
	MaxConcurrent  int
}

type Server struct {
	runner  *flyer.Runner
	logger  *slog.Logger
	timeout time.Duration

	// Bounds concurrent runs across all requests.
	slots chan struct{}
}

type apiError struct {
	Error string `json:"error"`
}

type flyerRequest struct {
	Brief   string `json:"brief"`
	Style   string `json:"style,omitempty"`
	Format  string `json:"format,omitempty"`
	Palette string `json:"palette,omitempty"`
}

type flyerResponse struct {
	ID        string `json:"id"`
	HTML      string `json:"html"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
}

func New(opts Options) (*Server, error) {
	if opts.Runner == nil {
		return nil, errors.New("runner is nil")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}

	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	return &Server{
		runner:  opts.Runner,
		logger:  logger,
		timeout: timeout,
		slots:   make(chan struct{}, maxConcurrent),
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/flyer", s.handleFlyer)
	mux.HandleFunc("/api/flyer/stream", s.handleFlyerStream)
	mux.HandleFunc("/healthz", s.handleHealth)

	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("/", http.FileServer(http.FS(staticSub)))

	return withLogging(mux, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFlyer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	if !s.acquire(ctx) {
		writeJSON(w, http.StatusServiceUnavailable, apiError{Error: "server busy"})
		return
	}
	defer s.release()

	result, err := s.runner.Run(ctx, req.Brief, promptOptions(req), nil)
	if err != nil {
		s.writeRunError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(result))
}

// handleFlyerStream runs a generation request while streaming progress
// events, then a final result or error event, over SSE.
func (s *Server) handleFlyerStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	if !s.acquire(ctx) {
		writeJSON(w, http.StatusServiceUnavailable, apiError{Error: "server busy"})
		return
	}
	defer s.release()

	sse, err := newSSEWriter(w)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "streaming unsupported"})
		return
	}

	sink := func(ev flyer.Event) {
		if err := sse.writeEvent("progress", ev); err != nil {
			s.logger.Warn("sse progress write failed", "err", err)
		}
	}

	result, err := s.runner.Run(ctx, req.Brief, promptOptions(req), sink)
	if err != nil {
		code := "layout_failed"
		if errors.Is(err, flyer.ErrEmptyBrief) {
			code = "empty_brief"
		} else if ctx.Err() != nil {
			code = "cancelled"
		}
		_ = sse.writeError(code, err.Error())
		return
	}

	if err := sse.writeEvent("result", toResponse(result)); err != nil {
		s.logger.Warn("sse result write failed", "err", err)
	}
}

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (flyerRequest, bool) {
	const maxBodyBytes = 1 << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req flyerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid json body"})
		return flyerRequest{}, false
	}
	return req, true
}

func (s *Server) acquire(ctx context.Context) bool {
	select {
	case s.slots <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Server) release() {
	<-s.slots
}

func (s *Server) writeRunError(w http.ResponseWriter, err error) {
	if errors.Is(err, flyer.ErrEmptyBrief) {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}
	s.logger.Error("flyer run failed", "err", err)
	writeJSON(w, http.StatusBadGateway, apiError{Error: "flyer generation failed"})
}

func promptOptions(req flyerRequest) flyer.PromptOptions {
	return flyer.PromptOptions{
		Style:   req.Style,
		Format:  req.Format,
		Palette: req.Palette,
	}
}

func toResponse(result *flyer.Result) flyerResponse {
	return flyerResponse{
		ID:        result.ID,
		HTML:      result.HTML,
		Total:     result.Summary.Total,
		Completed: result.Summary.Completed,
		Failed:    result.Summary.Failed,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withLogging(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info("http", "method", r.Method, "path", r.URL.Path, "dur_ms", time.Since(start).Milliseconds())
	})
}
