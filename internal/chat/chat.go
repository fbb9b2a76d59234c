// Package chat is the driver that annotates user messages with retrieved
// context: it executes @-commands, splits the context budget across the
// trailing user messages, and inserts postprocessed excerpts ahead of each
// message.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stitchcode/stitch/internal/racp"
)

// Message is one chat message in a thread.
type Message struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// RoleContextFile marks a message whose content is a JSON array of
// excerpts attached for the model.
const RoleContextFile = "context_file"

// CommandExecutor runs the @-commands found in a user message and returns
// retrieval hints plus any messages produced by command execution.
type CommandExecutor interface {
	Execute(ctx context.Context, query string) ([]racp.Hint, []Message, error)
}

// RagResults collects messages to stream back to the user exactly once.
type RagResults struct {
	wasSent bool
	inJSON  []json.RawMessage
}

// Push appends one value to the pending stream.
func (r *RagResults) Push(v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Cannot encode streamed message", "err", err)
		return
	}
	r.inJSON = append(r.inJSON, raw)
}

// ResponseStreaming returns the pending values once; later calls return
// nothing.
func (r *RagResults) ResponseStreaming() []json.RawMessage {
	if r.wasSent || len(r.inJSON) == 0 {
		return nil
	}
	r.wasSent = true
	return r.inJSON
}

// Driver wires command execution, the postprocessor, and the tokenizer.
type Driver struct {
	pp   *racp.Postprocessor
	tok  racp.Tokenizer
	exec CommandExecutor
}

// NewDriver creates a chat driver.
func NewDriver(pp *racp.Postprocessor, tok racp.Tokenizer, exec CommandExecutor) *Driver {
	return &Driver{pp: pp, tok: tok, exec: exec}
}

// Annotate rebuilds the message list with context attached to the trailing
// run of user messages. The budget for retrieved context is divided evenly
// across the user messages that carry @-commands, with no redistribution
// of unused share, so a prefix and a suffix of the same file keep
// symmetrical positions. Returns the rebuilt list and the index where the
// trailing user run begins.
func (d *Driver) Annotate(ctx context.Context, messages []Message, nCtx, maxgen int, stream *RagResults) ([]Message, int, error) {
	reserveForContext := racp.BudgetForContext(nCtx, maxgen)
	slog.Info("Context budget for this turn", "reserve_for_context", reserveForContext)

	userMsgStarts := len(messages)
	messagesWithAt := 0
	for userMsgStarts > 0 {
		m := messages[userMsgStarts-1]
		if m.Role != "user" {
			break
		}
		userMsgStarts--
		if strings.Contains(m.Content, "@") {
			messagesWithAt++
		}
	}

	rebuilt := append([]Message(nil), messages[:userMsgStarts]...)
	for i := userMsgStarts; i < len(messages); i++ {
		msg := messages[i]
		contentTokens := d.countTokens(ctx, msg.Content)
		contextLimit := racp.PerMessageBudget(reserveForContext, messagesWithAt)
		if contextLimit <= contentTokens {
			contextLimit = 0
		} else {
			contextLimit -= contentTokens
		}

		var hints []racp.Hint
		if strings.Contains(msg.Content, "@") && d.exec != nil {
			execHints, execMessages, err := d.exec.Execute(ctx, msg.Content)
			if err != nil {
				return nil, 0, fmt.Errorf("execute commands in message %d: %w", i, err)
			}
			hints = execHints
			for _, em := range execMessages {
				rebuilt = append(rebuilt, em)
				if stream != nil {
					stream.Push(em)
				}
			}
		}

		if len(hints) > 0 {
			excerpts, err := d.pp.Postprocess(ctx, hints, contextLimit, false)
			if err != nil {
				return nil, 0, err
			}
			if len(excerpts) > 0 {
				raw, err := json.Marshal(excerpts)
				if err != nil {
					return nil, 0, fmt.Errorf("encode excerpts: %w", err)
				}
				ctxMsg := Message{Role: RoleContextFile, Content: string(raw)}
				rebuilt = append(rebuilt, ctxMsg)
				if stream != nil {
					stream.Push(ctxMsg)
				}
			}
		}

		if strings.TrimSpace(msg.Content) != "" {
			rebuilt = append(rebuilt, msg)
			if stream != nil && msg.Role == "user" {
				stream.Push(msg)
			}
		}
	}

	return rebuilt, userMsgStarts, nil
}

func (d *Driver) countTokens(ctx context.Context, text string) int {
	tokens, err := d.tok.Encode(ctx, text)
	if err != nil {
		return 0
	}
	return len(tokens)
}
