package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/stitchcode/stitch/internal/workspace"
)

// SetWorkspace attaches the workspace so editors can register unsaved
// buffers; without it the buffer routes answer 503.
func (s *Server) SetWorkspace(ws *workspace.Workspace) {
	s.workspace = ws
}

// BufferPost is the request body of POST /v1/buffers: the current content
// of an unsaved editor document. Context postprocessing reads it instead
// of the on-disk file until the buffer is cleared.
type BufferPost struct {
	FileName    string `json:"file_name"`
	FileContent string `json:"file_content"`
}

func (s *Server) handleBufferSet(w http.ResponseWriter, r *http.Request) {
	if s.workspace == nil {
		jsonError(w, http.StatusServiceUnavailable, "workspace is not configured")
		return
	}
	var post BufferPost
	if err := json.NewDecoder(r.Body).Decode(&post); err != nil {
		jsonError(w, http.StatusUnprocessableEntity, "JSON problem: "+err.Error())
		return
	}
	cpath, err := s.workspace.Canonicalize(post.FileName)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.workspace.SetOverride(cpath, post.FileContent)
	writeJSON(w, http.StatusOK, map[string]string{"cpath": cpath})
}

func (s *Server) handleBufferClear(w http.ResponseWriter, r *http.Request) {
	if s.workspace == nil {
		jsonError(w, http.StatusServiceUnavailable, "workspace is not configured")
		return
	}
	name := r.URL.Query().Get("file_name")
	if name == "" {
		jsonError(w, http.StatusBadRequest, "file_name is required")
		return
	}
	cpath, err := s.workspace.Canonicalize(name)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.workspace.ClearOverride(cpath)
	writeJSON(w, http.StatusOK, map[string]string{"cpath": cpath})
}
