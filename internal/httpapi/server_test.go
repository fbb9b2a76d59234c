package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/require"

	"github.com/stitchcode/stitch/internal/chat"
	"github.com/stitchcode/stitch/internal/checkpoint"
	"github.com/stitchcode/stitch/internal/racp"
	"github.com/stitchcode/stitch/internal/treesitter"
	"github.com/stitchcode/stitch/internal/workspace"
)

type wordTokenizer struct{}

func (wordTokenizer) Encode(_ context.Context, text string) ([]int, error) {
	return make([]int, len(strings.Fields(text))), nil
}

type fakeAst struct{}

func (fakeAst) FileMarkup(_ context.Context, cpath, content string) (*treesitter.FileMarkup, error) {
	return &treesitter.FileMarkup{Cpath: cpath, FileContent: content}, nil
}

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))

	ws := workspace.New(root, nil)
	require.NoError(t, ws.Refresh(context.Background()))

	pp := racp.New(fakeAst{}, ws, ws, wordTokenizer{}, racp.DefaultSettings())
	driver := chat.NewDriver(pp, wordTokenizer{}, nil)
	s := NewServer(pp, driver, nil, "")
	s.SetWorkspace(ws)
	return s, root
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func getPath(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestContextEndpoint(t *testing.T) {
	t.Parallel()

	s, root := testServer(t)
	body := `{"hints":[{"file_name":"` + filepath.ToSlash(filepath.Join(root, "main.go")) +
		`","line1":1,"line2":3,"usefulness":50,"gradient_type":0,"is_body_important":true}],"tokens_limit":1000}`

	rec := postJSON(t, s.Handler(), "/v1/context", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ContextFiles []racp.Excerpt `json:"context_files"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.ContextFiles, 1)
	require.Contains(t, resp.ContextFiles[0].FileContent, "package main")
}

func TestContextEndpointBadJSON(t *testing.T) {
	t.Parallel()

	s, _ := testServer(t)
	rec := postJSON(t, s.Handler(), "/v1/context", "{")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestContextEndpointInvalidInput(t *testing.T) {
	t.Parallel()

	s, _ := testServer(t)
	rec := postJSON(t, s.Handler(), "/v1/context",
		`{"hints":[{"file_name":"a.go","line1":9,"line2":3,"usefulness":10}],"tokens_limit":10}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLinksEmptyChatSuggestsSummarization(t *testing.T) {
	t.Parallel()

	s, _ := testServer(t)
	rec := postJSON(t, s.Handler(), "/v1/links", `{"messages":[],"meta":{"chat_mode":"AGENT"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Links []Link `json:"links"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Links, 1)
	require.Equal(t, LinkActionSummarizeProject, resp.Links[0].Action)
}

func TestLinksAgentModeSuggestsCommit(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	_, err := git.PlainInit(root, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "new.txt"), []byte("x\n"), 0o644))

	ws := workspace.New(root, nil)
	pp := racp.New(fakeAst{}, ws, ws, wordTokenizer{}, racp.DefaultSettings())
	s := NewServer(pp, chat.NewDriver(pp, wordTokenizer{}, nil), checkpoint.NewService(root), "summary.yaml")

	rec := postJSON(t, s.Handler(), "/v1/links", `{"messages":[],"meta":{"chat_mode":"AGENT"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Links []Link `json:"links"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Links, 1)
	require.Equal(t, LinkActionCommit, resp.Links[0].Action)
	require.Equal(t, "Commit 1 files", resp.Links[0].Text)
}

func TestLinksFollowUpAfterAssistant(t *testing.T) {
	t.Parallel()

	s, _ := testServer(t)
	rec := postJSON(t, s.Handler(), "/v1/links",
		`{"messages":[{"role":"user","content":"q"},{"role":"assistant","content":"a"}],"meta":{"chat_mode":"CHAT"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Links []Link `json:"links"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Links, 1)
	require.Equal(t, LinkActionFollowUp, resp.Links[0].Action)
}

func TestChatAnnotateStreams(t *testing.T) {
	t.Parallel()

	s, _ := testServer(t)
	rec := postJSON(t, s.Handler(), "/v1/chat-annotate",
		`{"messages":[{"role":"user","content":"hello there"}],"n_ctx":8192,"max_gen":1024}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")

	// The final event carries the rebuilt message list.
	events := strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n")
	last := strings.TrimPrefix(events[len(events)-1], "data: ")
	var final struct {
		Messages []chat.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal([]byte(last), &final))
	require.Len(t, final.Messages, 1)
	require.Equal(t, "hello there", final.Messages[0].Content)
}
