package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/stitchcode/stitch/internal/message"
)

// SetMessages attaches the message log service; without it the message
// routes answer 503.
func (s *Server) SetMessages(msgs *message.Service) {
	s.messages = msgs
}

// ThreadCreatePost is the request body of POST /v1/threads.
type ThreadCreatePost struct {
	Title string `json:"title"`
	Model string `json:"model"`
}

// MessageUpsertPost is the request body of POST /v1/messages.
type MessageUpsertPost struct {
	ThreadID string          `json:"thread_id"`
	Alt      int64           `json:"alt"`
	Num      int64           `json:"num"`
	Payload  json.RawMessage `json:"payload"`
}

func (s *Server) handleThreadCreate(w http.ResponseWriter, r *http.Request) {
	if s.messages == nil {
		jsonError(w, http.StatusServiceUnavailable, "message log is not configured")
		return
	}
	var post ThreadCreatePost
	if err := json.NewDecoder(r.Body).Decode(&post); err != nil {
		jsonError(w, http.StatusUnprocessableEntity, "JSON problem: "+err.Error())
		return
	}
	id, err := s.messages.CreateThread(r.Context(), post.Title, post.Model)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"thread_id": id})
}

func (s *Server) handleMessageUpsert(w http.ResponseWriter, r *http.Request) {
	if s.messages == nil {
		jsonError(w, http.StatusServiceUnavailable, "message log is not configured")
		return
	}
	var post MessageUpsertPost
	if err := json.NewDecoder(r.Body).Decode(&post); err != nil {
		jsonError(w, http.StatusUnprocessableEntity, "JSON problem: "+err.Error())
		return
	}
	if post.ThreadID == "" {
		jsonError(w, http.StatusBadRequest, "thread_id is required")
		return
	}
	var payload any
	if len(post.Payload) > 0 {
		if err := json.Unmarshal(post.Payload, &payload); err != nil {
			jsonError(w, http.StatusUnprocessableEntity, "payload JSON problem: "+err.Error())
			return
		}
	}
	if err := s.messages.Append(r.Context(), post.ThreadID, post.Alt, post.Num, payload); err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMessageList(w http.ResponseWriter, r *http.Request) {
	if s.messages == nil {
		jsonError(w, http.StatusServiceUnavailable, "message log is not configured")
		return
	}
	threadID := r.URL.Query().Get("thread_id")
	if threadID == "" {
		jsonError(w, http.StatusBadRequest, "thread_id is required")
		return
	}
	alt, _ := strconv.ParseInt(r.URL.Query().Get("alt"), 10, 64)

	rows, err := s.messages.List(r.Context(), threadID, alt)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]map[string]any, 0, len(rows))
	for _, m := range rows {
		out = append(out, map[string]any{
			"thread_id": m.ThreadID,
			"alt":       m.Alt,
			"num":       m.Num,
			"payload":   json.RawMessage(m.Payload),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}
