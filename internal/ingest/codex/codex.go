// Package codex implements the Codex CLI session format handler: a JSONL
// file led by a session_meta preamble, whose remaining lines are always
// fully reprocessed and flushed once at end-of-file rather than in
// incremental batches.
package codex

import (
	"encoding/json"
	"fmt"

	"github.com/flyingrobots/blacklight/internal/fingerprint"
	"github.com/flyingrobots/blacklight/internal/ingest/common"
	"github.com/flyingrobots/blacklight/internal/writer"
)

type envelopePeek struct {
	Type string `json:"type"`
}

// SessionMeta is the required preamble envelope.
type SessionMeta struct {
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	Cwd        string `json:"cwd"`
	CliVersion string `json:"cli_version"`
}

// Content is either an inline string or an array of {text} objects,
// concatenated in document order.
type Content struct {
	Text string
}

func (c *Content) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		return nil
	}
	var parts []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("codex: content is neither a string nor a [{text}] array: %w", err)
	}
	for _, p := range parts {
		c.Text += p.Text
	}
	return nil
}

type itemEnvelope struct {
	Type    string  `json:"type"`
	Content Content `json:"content"`
}

// Result holds everything ProcessLines produced from one file.
type Result struct {
	SessionID string
	Cwd       string
	Batch     []writer.LineOps
}

// ProcessLines parses a full Codex session file (already split into
// lines) into a Session row and a LineOps batch. Lines preceding the
// first session_meta envelope are no-ops; an absent session_meta yields
// an empty Result with no error, since the file is not a Codex session
// after all.
func ProcessLines(lines []string) (Result, error) {
	var result Result
	var meta *SessionMeta
	turnIndex := 0

	for _, line := range lines {
		if line == "" {
			continue
		}

		var peek envelopePeek
		if err := json.Unmarshal([]byte(line), &peek); err != nil {
			continue
		}

		if meta == nil {
			if peek.Type != "session_meta" {
				continue
			}
			var m SessionMeta
			if err := json.Unmarshal([]byte(line), &m); err != nil {
				continue
			}
			meta = &m
			result.SessionID = m.ID
			result.Cwd = m.Cwd
			continue
		}

		role := roleFor(peek.Type)
		if role == "" {
			continue
		}

		var env itemEnvelope
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			continue
		}

		messageID := fmt.Sprintf("%s-msg-%d", result.SessionID, turnIndex)
		msg := writer.MessageRow{
			ID: messageID, SessionID: result.SessionID, Kind: role,
			Timestamp: meta.Timestamp, Cwd: &meta.Cwd, TurnIndex: turnIndex,
		}
		ops := writer.LineOps{Messages: []writer.MessageRow{msg}}

		if env.Content.Text != "" {
			b := common.Blobify([]byte(env.Content.Text), kindFor(role), messageID, "content")
			common.Append(&ops, b)
			ops.ContentBlocks = append(ops.ContentBlocks, writer.ContentBlockRow{
				MessageID: messageID, BlockIndex: 0, BlockType: "text", ContentHash: b.Hash,
			})
			if b.Hash != nil {
				ops.Messages[0].Fingerprint = fingerprint.Message(messageID, "", *b.Hash)
			} else {
				ops.Messages[0].Fingerprint = fingerprint.Message(messageID, "")
			}
		} else {
			ops.Messages[0].Fingerprint = fingerprint.Message(messageID, "")
		}

		result.Batch = append(result.Batch, ops)
		turnIndex++
	}

	return result, nil
}

func roleFor(envelopeType string) string {
	switch envelopeType {
	case "response_item", "final":
		return "assistant"
	case "request_item", "commentary":
		return "user"
	default:
		return ""
	}
}

func kindFor(role string) string {
	if role == "assistant" {
		return "assistant_text"
	}
	return "user_text"
}
