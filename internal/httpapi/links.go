package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/stitchcode/stitch/internal/chat"
)

// Chat modes relevant to link suggestions.
const (
	ChatModeAgent     = "AGENT"
	ChatModeConfigure = "CONFIGURE"
)

// ChatMeta carries per-conversation metadata.
type ChatMeta struct {
	ChatMode string `json:"chat_mode"`
}

// LinksPost is the request body of /v1/links.
type LinksPost struct {
	Messages  []chat.Message `json:"messages"`
	ModelName string         `json:"model_name"`
	Meta      ChatMeta       `json:"meta"`
}

// LinkAction enumerates what clicking a link does.
type LinkAction string

const (
	LinkActionFollowUp         LinkAction = "follow-up"
	LinkActionCommit           LinkAction = "commit"
	LinkActionGoto             LinkAction = "goto"
	LinkActionSummarizeProject LinkAction = "summarize-project"
)

// Link is one suggested next action shown under the chat input.
type Link struct {
	Action            LinkAction `json:"action"`
	Text              string     `json:"text"`
	Goto              string     `json:"goto,omitempty"`
	CurrentConfigFile string     `json:"current_config_file,omitempty"`
	LinkTooltip       string     `json:"link_tooltip"`
}

func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request) {
	var post LinksPost
	if err := json.NewDecoder(r.Body).Decode(&post); err != nil {
		jsonError(w, http.StatusUnprocessableEntity, "JSON problem: "+err.Error())
		return
	}
	slog.Info("Computing links", "chat_mode", post.Meta.ChatMode, "messages", len(post.Messages))

	links := make([]Link, 0, 3)

	if len(post.Messages) == 0 && s.summaryPath == "" {
		links = append(links, Link{
			Action:      LinkActionSummarizeProject,
			Text:        "Initial project summarization",
			LinkTooltip: "Project summary is a starting point for the agent.",
		})
	}

	if post.Meta.ChatMode == ChatModeAgent && s.checkpoints != nil {
		info, err := s.checkpoints.ProposeCommit(r.Context(), "")
		if err != nil {
			slog.Warn("Cannot compute pending changes for links", "err", err)
		} else if len(info.FileChanges) > 0 {
			links = append(links, Link{
				Action:      LinkActionCommit,
				Text:        fmt.Sprintf("Commit %d files", len(info.FileChanges)),
				LinkTooltip: info.CommitMessage,
			})
		}
	}

	if n := len(post.Messages); n > 0 && post.Messages[n-1].Role == "assistant" {
		links = append(links, Link{
			Action:      LinkActionFollowUp,
			Text:        "Follow up",
			LinkTooltip: "Ask a follow-up question about the last answer.",
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"links": links})
}
