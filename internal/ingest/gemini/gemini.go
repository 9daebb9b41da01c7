// Package gemini implements the Gemini CLI session format handler: one
// JSON object per file, fully reprocessed on every New/Modified
// detection rather than streamed incrementally.
package gemini

import (
	"encoding/json"
	"fmt"

	"github.com/flyingrobots/blacklight/internal/fingerprint"
	"github.com/flyingrobots/blacklight/internal/ingest/common"
	"github.com/flyingrobots/blacklight/internal/writer"
)

// Session is the root object of a Gemini CLI session file.
type Session struct {
	SessionID   string    `json:"sessionId"`
	ProjectHash string    `json:"projectHash"`
	StartTime   string    `json:"startTime"`
	LastUpdated string    `json:"lastUpdated"`
	Messages    []Message `json:"messages"`
}

// Message is one turn of a Gemini session.
type Message struct {
	Role      string     `json:"role"`
	Content   Content    `json:"content"`
	Thoughts  []Thought  `json:"thoughts"`
	ToolCalls []ToolCall `json:"toolCalls"`
}

// Content is either an inline string or a block-structured payload; the
// only block shape Gemini emits inline is plain text, so unlike the
// Claude format a single string field covers both.
type Content struct {
	Text string
}

func (c *Content) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		return nil
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("gemini: content is neither a string nor {text}: %w", err)
	}
	c.Text = obj.Text
	return nil
}

// Thought is one entry of a message's thoughts array.
type Thought struct {
	Text string `json:"text"`
}

// ToolCall is one entry of a message's toolCalls array.
type ToolCall struct {
	ID     string          `json:"id"`
	Name   string           `json:"name"`
	Args   json.RawMessage `json:"args"`
	Result *string         `json:"result"`
	Status string          `json:"status"`
}

// Result is everything ProcessSession needs from one file: the session
// metadata and the full LineOps batch (always flushed as a single unit,
// matching the whole-file-snapshot nature of this format).
type Result struct {
	SessionID    string
	ProjectHash  string
	Batch        []writer.LineOps
	Fingerprint  string
	MessageCount int
}

// ProcessSession parses a full Gemini session file's bytes and produces
// the rows to write, along with the chained session fingerprint.
func ProcessSession(data []byte) (Result, error) {
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Result{}, fmt.Errorf("gemini: parse session: %w", err)
	}

	var batch []writer.LineOps
	var messageFingerprints []string

	for i, msg := range sess.Messages {
		messageID := fmt.Sprintf("%s-msg-%d", sess.SessionID, i)
		ops := writer.LineOps{
			Messages: []writer.MessageRow{{
				ID: messageID, SessionID: sess.SessionID, Kind: msg.Role,
				Timestamp: sess.LastUpdated, TurnIndex: i,
			}},
		}

		var blobHashes []string

		if msg.Content.Text != "" {
			b := common.Blobify([]byte(msg.Content.Text), "assistant_text", messageID, "content")
			if msg.Role == "user" && b.Blob != nil {
				b.Blob.Kind = "user_text"
				b.Fts.Kind = "user_text"
			}
			common.Append(&ops, b)
			ops.ContentBlocks = append(ops.ContentBlocks, writer.ContentBlockRow{
				MessageID: messageID, BlockIndex: 0, BlockType: "text", ContentHash: b.Hash,
			})
			if b.Hash != nil {
				blobHashes = append(blobHashes, *b.Hash)
			}
		}

		for ti, thought := range msg.Thoughts {
			hash, row, ref := common.ThinkingWithRef([]byte(thought.Text), "thinking", messageID, "content")
			ops.Blobs = append(ops.Blobs, row)
			ops.BlobRefs = append(ops.BlobRefs, ref)
			ops.ContentBlocks = append(ops.ContentBlocks, writer.ContentBlockRow{
				MessageID: messageID, BlockIndex: ti + 1, BlockType: "thinking", ContentHash: &hash,
			})
			blobHashes = append(blobHashes, hash)
		}

		for tci, tc := range msg.ToolCalls {
			toolCallID := tc.ID
			if toolCallID == "" {
				toolCallID = fmt.Sprintf("%s-tool-%d", messageID, tci)
			}

			var inputHash *string
			if len(tc.Args) > 0 {
				b := common.Blobify(tc.Args, "tool_input", messageID, "input")
				common.Append(&ops, b)
				inputHash = b.Hash
				if b.Hash != nil {
					blobHashes = append(blobHashes, *b.Hash)
				}
			}

			var outputHash *string
			if tc.Result != nil {
				b := common.Blobify([]byte(*tc.Result), "tool_output", messageID, "content")
				common.Append(&ops, b)
				outputHash = b.Hash
				if b.Hash != nil {
					blobHashes = append(blobHashes, *b.Hash)
				}
			}

			tcFp := fingerprint.ToolCall(tc.Name, derefOr(inputHash, ""), derefOr(outputHash, ""))
			ops.ToolCalls = append(ops.ToolCalls, writer.ToolCallRow{
				ID: toolCallID, MessageID: messageID, SessionID: sess.SessionID, ToolName: tc.Name,
				InputHash: inputHash, OutputHash: outputHash, Timestamp: sess.LastUpdated, Fingerprint: tcFp,
			})
		}

		msgFp := fingerprint.Message(messageID, "", blobHashes...)
		ops.Messages[0].Fingerprint = msgFp
		messageFingerprints = append(messageFingerprints, msgFp)

		batch = append(batch, ops)
	}

	sessionFp := fingerprint.Session("", messageFingerprints...)

	return Result{
		SessionID: sess.SessionID, ProjectHash: sess.ProjectHash,
		Batch: batch, Fingerprint: sessionFp, MessageCount: len(sess.Messages),
	}, nil
}

func derefOr(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}
