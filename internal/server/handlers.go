package server

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/conneroisu/sentra/internal/analysis"
	"github.com/conneroisu/sentra/internal/errors"
	"github.com/conneroisu/sentra/internal/metrics"
	"github.com/conneroisu/sentra/internal/validation"
	"github.com/conneroisu/sentra/internal/version"
)

const availabilityTimeout = 2 * time.Second

type endpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

var endpoints = []endpoint{
	{"GET", "/api/health", "Service status and agent availability"},
	{"POST", "/api/analyze", "Quality, security, performance and docs report"},
	{"POST", "/api/quality", "Quality report"},
	{"POST", "/api/security", "Security report"},
	{"POST", "/api/performance", "Performance report"},
	{"POST", "/api/docs", "Generated documentation (?format=markdown|html|json)"},
	{"POST", "/api/upload", "Analyze an uploaded file (multipart field \"file\")"},
	{"POST", "/api/chat", "Chat with the agent"},
	{"GET", "/api/sessions", "List chat sessions"},
	{"GET", "/api/sessions/{id}", "Chat history"},
	{"DELETE", "/api/sessions/{id}", "Delete a chat session"},
	{"GET", "/ws", "Websocket for chat and analysis"},
	{"GET", "/metrics", "Prometheus metrics"},
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, r, s.logger, "GET")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":        "sentra",
		"description": "Heuristic code analysis with an AI review assistant",
		"version":     version.GetShortVersion(),
		"languages":   analysis.Languages,
		"endpoints":   endpoints,
	})
}

// handleHealth returns the server health status for health checks
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, s.logger, "GET")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), availabilityTimeout)
	defer cancel()
	available := s.proxy.Available(ctx)

	status := "healthy"
	if !available {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"version":   version.GetShortVersion(),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"agent": map[string]interface{}{
			"provider":  s.proxy.Provider(),
			"available": available,
		},
		"sessions":   s.sessions.Len(),
		"websockets": s.hub.Len(),
	})
}

// handleAnalyze serves /api/analyze and the single-analyzer routes. A nil
// kinds lets the request choose.
func (s *Server) handleAnalyze(kinds []analysis.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, s.logger, "POST")
			return
		}

		var req analysis.Request
		if err := decodeJSON(r, &req); err != nil {
			writeError(r.Context(), w, s.logger, err)
			return
		}
		if kinds != nil {
			req.Kinds = kinds
		}
		metrics.SourceBytes.Observe(float64(len(req.Source)))

		report, err := s.engine.Analyze(r.Context(), req)
		if err != nil {
			writeError(r.Context(), w, s.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, s.logger, "POST")
		return
	}

	format, ok := analysis.ParseFormat(r.URL.Query().Get("format"))
	if !ok {
		writeError(r.Context(), w, s.logger,
			errors.NewValidationError(errors.ErrCodeUnknownFormat, "format must be markdown, html or json"))
		return
	}

	var req analysis.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}

	doc, err := s.engine.Docs(r.Context(), req)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}

	body, err := analysis.Render(r.Context(), doc, format)
	if err != nil {
		writeError(r.Context(), w, s.logger,
			errors.NewInternalError(errors.ErrCodeInternalError, "failed to render documentation", err))
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// handleUpload analyzes a file sent as the multipart field "file". Optional
// form fields "language" and "kinds" (comma separated) refine the request.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, s.logger, "POST")
		return
	}

	if err := r.ParseMultipartForm(s.config.Server.MaxBodyBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			writeError(r.Context(), w, s.logger,
				errors.NewTooLargeError(errors.ErrCodeSourceTooLarge, "upload too large"))
			return
		}
		writeError(r.Context(), w, s.logger,
			errors.NewValidationError(errors.ErrCodeInvalidRequest, "expected a multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(r.Context(), w, s.logger,
			errors.NewValidationError(errors.ErrCodeInvalidRequest, "multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	if err := validation.ValidateFileExtension(header.Filename, analysis.SupportedExtensions()); err != nil {
		writeError(r.Context(), w, s.logger,
			errors.NewValidationError(errors.ErrCodeUnknownLanguage, err.Error()))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, int64(s.engine.Options().MaxSourceBytes)+1))
	if err != nil {
		writeError(r.Context(), w, s.logger,
			errors.NewIOError(errors.ErrCodeInvalidRequest, "failed to read upload", err))
		return
	}
	metrics.SourceBytes.Observe(float64(len(data)))

	req := analysis.Request{
		Filename: header.Filename,
		Language: r.FormValue("language"),
		Source:   string(data),
	}
	for _, k := range strings.Split(r.FormValue("kinds"), ",") {
		if k = strings.TrimSpace(k); k != "" {
			req.Kinds = append(req.Kinds, analysis.Kind(k))
		}
	}

	report, err := s.engine.Analyze(r.Context(), req)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, s.logger, "POST")
		return
	}

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}

	reply, err := s.proxy.Chat(r.Context(), req.SessionID, validation.SanitizeInput(req.Message))
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list := s.sessions.List()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"sessions": list,
			"count":    len(list),
		})
	case http.MethodPost:
		writeJSON(w, http.StatusCreated, s.sessions.Create())
	default:
		methodNotAllowed(w, r, s.logger, "GET, POST")
	}
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		sess, err := s.sessions.Get(id)
		if err != nil {
			writeError(r.Context(), w, s.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	case http.MethodDelete:
		if err := s.sessions.Delete(id); err != nil {
			writeError(r.Context(), w, s.logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, s.logger, "GET, DELETE")
	}
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(r.Context(), w, s.logger,
		errors.NewNotFoundError(errors.ErrCodeFileNotFound, "no route for "+r.URL.Path))
}
