package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stitchcode/stitch/internal/racp"
)

func contextFor(t *testing.T, h http.Handler, file string) string {
	t.Helper()
	body := `{"hints":[{"file_name":"` + file +
		`","line1":1,"line2":1,"usefulness":50,"gradient_type":0,"is_body_important":true}],"tokens_limit":1000}`
	rec := postJSON(t, h, "/v1/context", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ContextFiles []racp.Excerpt `json:"context_files"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.ContextFiles, 1)
	return resp.ContextFiles[0].FileContent
}

func TestBufferOverridesDiskForContext(t *testing.T) {
	t.Parallel()

	s, root := testServer(t)
	h := s.Handler()
	file := filepath.ToSlash(filepath.Join(root, "main.go"))

	require.Contains(t, contextFor(t, h, file), "package main")

	rec := postJSON(t, h, "/v1/buffers",
		`{"file_name":"`+file+`","file_content":"package edited\n"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, contextFor(t, h, file), "package edited")

	req := httptest.NewRequest(http.MethodDelete, "/v1/buffers?file_name="+file, nil)
	del := httptest.NewRecorder()
	h.ServeHTTP(del, req)
	require.Equal(t, http.StatusOK, del.Code)
	require.Contains(t, contextFor(t, h, file), "package main")
}

func TestBufferSetRequiresWorkspace(t *testing.T) {
	t.Parallel()

	s, _ := testServer(t)
	s.workspace = nil
	rec := postJSON(t, s.Handler(), "/v1/buffers", `{"file_name":"a.go","file_content":"x"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBufferClearRequiresFileName(t *testing.T) {
	t.Parallel()

	s, _ := testServer(t)
	req := httptest.NewRequest(http.MethodDelete, "/v1/buffers", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
