package claude

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flyingrobots/blacklight/internal/ingest/common"
	"github.com/flyingrobots/blacklight/internal/models"
	"github.com/flyingrobots/blacklight/internal/tracker"
	"github.com/flyingrobots/blacklight/internal/writer"
)

type typePeek struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

// HandleLine dispatches one raw JSONL line to the handler for its
// discriminated type, returning the rows it produced. A true skipped
// return means the line was a no-op envelope (file-history-snapshot,
// progress, queue-operation) or of an unrecognized type, and produced no
// rows.
func HandleLine(raw string, tr *tracker.ToolUseTracker, turnIndex int, sessionIDFallback string) (ops writer.LineOps, sessionID string, skipped bool, err error) {
	var peek typePeek
	if err := json.Unmarshal([]byte(raw), &peek); err != nil {
		return writer.LineOps{}, "", false, fmt.Errorf("claude: parse envelope type: %w", err)
	}

	switch peek.Type {
	case "user":
		return handleUser(raw, tr, turnIndex, sessionIDFallback)
	case "assistant":
		return handleAssistant(raw, tr, turnIndex, sessionIDFallback)
	case "system":
		return handleSystem(raw, turnIndex, sessionIDFallback)
	case "summary":
		return handleSummary(raw, sessionIDFallback)
	case "file-history-snapshot", "progress", "queue-operation":
		return writer.LineOps{}, sessionIDFallback, true, nil
	default:
		return writer.LineOps{}, sessionIDFallback, true, nil
	}
}

func resolveSessionID(envSessionID, fallback string) string {
	if envSessionID != "" {
		return envSessionID
	}
	return fallback
}

func handleUser(raw string, tr *tracker.ToolUseTracker, turnIndex int, fallback string) (writer.LineOps, string, bool, error) {
	var env models.UserEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return writer.LineOps{}, fallback, false, fmt.Errorf("claude: parse user envelope: %w", err)
	}
	sessionID := resolveSessionID(env.SessionID, fallback)

	msg := writer.MessageRow{
		ID: env.UUID, SessionID: sessionID, ParentID: env.ParentUUID, Kind: "user",
		Timestamp: env.Timestamp, Cwd: env.Cwd, GitBranch: env.GitBranch, TurnIndex: turnIndex,
	}
	ops := writer.LineOps{Messages: []writer.MessageRow{msg}}

	if env.Message.Content.IsText() {
		b := common.Blobify([]byte(env.Message.Content.Text), "user_text", env.UUID, "content")
		common.Append(&ops, b)
		ops.ContentBlocks = append(ops.ContentBlocks, writer.ContentBlockRow{
			MessageID: env.UUID, BlockIndex: 0, BlockType: "text", ContentHash: b.Hash,
		})
		return ops, sessionID, false, nil
	}

	for i, block := range env.Message.Content.Blocks {
		switch block.Type {
		case "text":
			text := ""
			if block.Text != nil {
				text = *block.Text
			}
			b := common.Blobify([]byte(text), "user_text", env.UUID, "content")
			common.Append(&ops, b)
			ops.ContentBlocks = append(ops.ContentBlocks, writer.ContentBlockRow{
				MessageID: env.UUID, BlockIndex: i, BlockType: "text", ContentHash: b.Hash,
			})
		case "tool_result":
			handleToolResult(&ops, tr, env.UUID, i, block, sessionID)
		}
	}
	return ops, sessionID, false, nil
}

func handleToolResult(ops *writer.LineOps, tr *tracker.ToolUseTracker, messageID string, blockIndex int, block models.ContentBlock, sessionID string) {
	toolUseID := ""
	if block.ToolUseID != nil {
		toolUseID = *block.ToolUseID
	}

	var content string
	if block.Content != nil {
		if block.Content.IsText() {
			content = block.Content.Text
		} else if rendered, err := block.Content.AsJSON(); err == nil {
			content = rendered
		}
	}

	b := common.Blobify([]byte(content), "tool_output", messageID, "content")
	common.Append(ops, b)
	ops.ContentBlocks = append(ops.ContentBlocks, writer.ContentBlockRow{
		MessageID: messageID, BlockIndex: blockIndex, BlockType: "tool_result",
		ContentHash: b.Hash, ToolUseID: &toolUseID,
	})

	// Only link output when a blob row actually exists, or the
	// tool_calls.output_hash foreign key would point at nothing.
	if toolUseID != "" && b.Hash != nil {
		ops.ToolOutputLinks = append(ops.ToolOutputLinks, writer.ToolOutputLinkRow{
			ToolCallID: toolUseID, OutputHash: *b.Hash,
		})
	}

	// FileReference only when the tool result was actually stored
	// (dedup-eligible) and the originating tool_use named a file.
	if b.Hash != nil {
		if call, ok := tr.Resolve(toolUseID); ok && call.FilePath != "" {
			ops.FileRefs = append(ops.FileRefs, writer.FileRefRow{
				FilePath: call.FilePath, ContentHash: *b.Hash, SessionID: sessionID,
				MessageID: messageID, Operation: tracker.Operation(call.ToolName),
			})
		}
	}
}

func handleAssistant(raw string, tr *tracker.ToolUseTracker, turnIndex int, fallback string) (writer.LineOps, string, bool, error) {
	var env models.AssistantEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return writer.LineOps{}, fallback, false, fmt.Errorf("claude: parse assistant envelope: %w", err)
	}
	sessionID := resolveSessionID(env.SessionID, fallback)

	msg := writer.MessageRow{
		ID: env.UUID, SessionID: sessionID, ParentID: env.ParentUUID, Kind: "assistant",
		Timestamp: env.Timestamp, Model: env.Message.Model, StopReason: env.Message.StopReason,
		Cwd: env.Cwd, GitBranch: env.GitBranch, TurnIndex: turnIndex,
	}
	ops := writer.LineOps{Messages: []writer.MessageRow{msg}}

	for i, block := range env.Message.Content {
		switch block.Type {
		case "text":
			text := ""
			if block.Text != nil {
				text = *block.Text
			}
			b := common.Blobify([]byte(text), "assistant_text", env.UUID, "content")
			common.Append(&ops, b)
			ops.ContentBlocks = append(ops.ContentBlocks, writer.ContentBlockRow{
				MessageID: env.UUID, BlockIndex: i, BlockType: "text", ContentHash: b.Hash,
			})
		case "thinking":
			thinking := ""
			if block.Thinking != nil {
				thinking = *block.Thinking
			}
			hash, row := common.ThinkingBlobOnly([]byte(thinking), "thinking")
			ops.Blobs = append(ops.Blobs, row)
			ops.ContentBlocks = append(ops.ContentBlocks, writer.ContentBlockRow{
				MessageID: env.UUID, BlockIndex: i, BlockType: "thinking", ContentHash: &hash,
			})
		case "tool_use":
			handleToolUse(&ops, tr, env.UUID, sessionID, i, block, env.Timestamp)
		}
	}
	return ops, sessionID, false, nil
}

func handleToolUse(ops *writer.LineOps, tr *tracker.ToolUseTracker, messageID, sessionID string, blockIndex int, block models.ContentBlock, timestamp string) {
	toolName := ""
	if block.Name != nil {
		toolName = *block.Name
	}
	toolUseID := ""
	if block.ToolUseID != nil {
		toolUseID = *block.ToolUseID
	}

	var inputHash *string
	if len(block.Input) > 0 {
		b := common.Blobify(block.Input, "tool_input", messageID, "input")
		common.Append(ops, b)
		inputHash = b.Hash
	}

	ops.ContentBlocks = append(ops.ContentBlocks, writer.ContentBlockRow{
		MessageID: messageID, BlockIndex: blockIndex, BlockType: "tool_use",
		ToolName: &toolName, ToolUseID: &toolUseID, ToolInputHash: inputHash,
	})
	ops.ToolCalls = append(ops.ToolCalls, writer.ToolCallRow{
		ID: toolUseID, MessageID: messageID, SessionID: sessionID, ToolName: toolName,
		InputHash: inputHash, Timestamp: timestamp,
	})

	if key, ok := tracker.InputKeyFor(toolName); ok {
		var args map[string]json.RawMessage
		if err := json.Unmarshal(block.Input, &args); err == nil {
			if raw, found := args[key]; found {
				var path string
				if err := json.Unmarshal(raw, &path); err == nil && path != "" {
					tr.Track(toolUseID, toolName, path)
				}
			}
		}
	}
}

func handleSystem(raw string, turnIndex int, fallback string) (writer.LineOps, string, bool, error) {
	var env models.SystemEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return writer.LineOps{}, fallback, false, fmt.Errorf("claude: parse system envelope: %w", err)
	}
	sessionID := resolveSessionID(env.SessionID, fallback)

	msg := writer.MessageRow{
		ID: env.UUID, SessionID: sessionID, ParentID: env.ParentUUID, Kind: "system",
		Timestamp: env.Timestamp, Cwd: env.Cwd, GitBranch: env.GitBranch, DurationMs: env.DurationMs,
		TurnIndex: turnIndex,
	}
	ops := writer.LineOps{Messages: []writer.MessageRow{msg}}

	if env.Content != nil && strings.TrimSpace(*env.Content) != "" {
		b := common.Blobify([]byte(*env.Content), "system", env.UUID, "content")
		common.Append(&ops, b)
		ops.ContentBlocks = append(ops.ContentBlocks, writer.ContentBlockRow{
			MessageID: env.UUID, BlockIndex: 0, BlockType: "text", ContentHash: b.Hash,
		})
	}
	return ops, sessionID, false, nil
}

func handleSummary(raw string, fallback string) (writer.LineOps, string, bool, error) {
	var env models.SummaryEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return writer.LineOps{}, fallback, false, fmt.Errorf("claude: parse summary envelope: %w", err)
	}

	leaf := "unknown"
	if env.LeafUUID != nil && *env.LeafUUID != "" {
		leaf = *env.LeafUUID
	}
	messageID := "summary-" + leaf

	msg := writer.MessageRow{ID: messageID, SessionID: fallback, Kind: "summary", Timestamp: ""}
	ops := writer.LineOps{Messages: []writer.MessageRow{msg}}

	b := common.Blobify([]byte(env.Summary), "summary", messageID, "content")
	common.Append(&ops, b)
	ops.ContentBlocks = append(ops.ContentBlocks, writer.ContentBlockRow{
		MessageID: messageID, BlockIndex: 0, BlockType: "text", ContentHash: b.Hash,
	})
	return ops, fallback, false, nil
}
