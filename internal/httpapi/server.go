// Package httpapi is the thin HTTP surface of the backend: context
// postprocessing, chat annotation with streaming, and next-action links.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/stitchcode/stitch/internal/chat"
	"github.com/stitchcode/stitch/internal/checkpoint"
	"github.com/stitchcode/stitch/internal/message"
	"github.com/stitchcode/stitch/internal/racp"
	"github.com/stitchcode/stitch/internal/workspace"
)

// Server holds the services behind the HTTP surface.
type Server struct {
	pp          *racp.Postprocessor
	driver      *chat.Driver
	checkpoints *checkpoint.Service
	messages    *message.Service
	workspace   *workspace.Workspace
	summaryPath string
}

// NewServer creates the HTTP surface. checkpoints may be nil when the
// workspace is not a git repository; summaryPath points at the project
// summary config, empty when missing.
func NewServer(pp *racp.Postprocessor, driver *chat.Driver, checkpoints *checkpoint.Service, summaryPath string) *Server {
	return &Server{
		pp:          pp,
		driver:      driver,
		checkpoints: checkpoints,
		summaryPath: summaryPath,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/context", s.handleContext)
	mux.HandleFunc("POST /v1/links", s.handleLinks)
	mux.HandleFunc("POST /v1/chat-annotate", s.handleChatAnnotate)
	mux.HandleFunc("POST /v1/threads", s.handleThreadCreate)
	mux.HandleFunc("POST /v1/messages", s.handleMessageUpsert)
	mux.HandleFunc("GET /v1/messages", s.handleMessageList)
	mux.HandleFunc("POST /v1/buffers", s.handleBufferSet)
	mux.HandleFunc("DELETE /v1/buffers", s.handleBufferClear)
	return mux
}

// ContextPost is the request body of /v1/context.
type ContextPost struct {
	Hints          []racp.Hint `json:"hints"`
	TokensLimit    int         `json:"tokens_limit"`
	SingleFileMode bool        `json:"single_file_mode"`
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	var post ContextPost
	if err := json.NewDecoder(r.Body).Decode(&post); err != nil {
		jsonError(w, http.StatusUnprocessableEntity, "JSON problem: "+err.Error())
		return
	}

	excerpts, err := s.pp.Postprocess(r.Context(), post.Hints, post.TokensLimit, post.SingleFileMode)
	if err != nil {
		if errors.Is(err, racp.ErrInvalidInput) {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"context_files": excerpts})
}

// AnnotatePost is the request body of /v1/chat-annotate.
type AnnotatePost struct {
	Messages []chat.Message `json:"messages"`
	NCtx     int            `json:"n_ctx"`
	MaxGen   int            `json:"max_gen"`
}

// handleChatAnnotate streams rebuilt messages as server-sent events.
func (s *Server) handleChatAnnotate(w http.ResponseWriter, r *http.Request) {
	var post AnnotatePost
	if err := json.NewDecoder(r.Body).Decode(&post); err != nil {
		jsonError(w, http.StatusUnprocessableEntity, "JSON problem: "+err.Error())
		return
	}

	stream := &chat.RagResults{}
	rebuilt, _, err := s.driver.Annotate(r.Context(), post.Messages, post.NCtx, post.MaxGen, stream)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)
	for _, raw := range stream.ResponseStreaming() {
		if _, err := w.Write(append(append([]byte("data: "), raw...), '\n', '\n')); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	final, err := json.Marshal(map[string]any{"messages": rebuilt})
	if err != nil {
		slog.Error("Cannot encode rebuilt messages", "err", err)
		return
	}
	_, _ = w.Write(append(append([]byte("data: "), final...), '\n', '\n'))
	if flusher != nil {
		flusher.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Cannot encode response", "err", err)
	}
}

func jsonError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
