// Package models defines the wire-format types for the primary Claude Code
// JSONL transcript and its companion session-index / task / facet / stats
// side files. These mirror the on-disk JSON shapes byte-for-byte; they are
// not the relational row types (see package writer for those).
package models

import (
	"encoding/json"
	"fmt"
)

// Envelope holds the fields common to every Session JSONL line regardless
// of its discriminator.
type Envelope struct {
	Type        string  `json:"type"`
	UUID        string  `json:"uuid"`
	ParentUUID  *string `json:"parentUuid"`
	SessionID   string  `json:"sessionId"`
	Timestamp   string  `json:"timestamp"`
	Cwd         *string `json:"cwd"`
	GitBranch   *string `json:"gitBranch"`
	IsSidechain *bool   `json:"isSidechain"`
}

// UserEnvelope is a `"type":"user"` line.
type UserEnvelope struct {
	Envelope
	Message UserMessage `json:"message"`
}

// UserMessage carries either inline text or a sequence of content blocks.
type UserMessage struct {
	Role    string       `json:"role"`
	Content ContentValue `json:"content"`
}

// AssistantEnvelope is a `"type":"assistant"` line.
type AssistantEnvelope struct {
	Envelope
	Message AssistantMessage `json:"message"`
}

// AssistantMessage always carries a sequence of content blocks.
type AssistantMessage struct {
	Role       string         `json:"role"`
	Model      *string        `json:"model"`
	Content    []ContentBlock `json:"content"`
	StopReason *string        `json:"stop_reason"`
}

// SystemEnvelope is a `"type":"system"` line.
type SystemEnvelope struct {
	Envelope
	Content    *string `json:"content"`
	DurationMs *int64  `json:"durationMs"`
}

// SummaryEnvelope is a `"type":"summary"` line. It frequently lacks a
// session id; the router falls back to the filename stem.
type SummaryEnvelope struct {
	LeafUUID *string `json:"leafUuid"`
	Summary  string  `json:"summary"`
}

// ContentValue is either an inline string or a sequence of content blocks.
type ContentValue struct {
	Text   string
	Blocks []ContentBlock
	isText bool
}

func (c *ContentValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text, c.isText = s, true
		return nil
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("models: content value is neither a string nor a block array: %w", err)
	}
	c.Blocks = blocks
	c.isText = false
	return nil
}

func (c ContentValue) MarshalJSON() ([]byte, error) {
	if c.isText {
		return json.Marshal(c.Text)
	}
	return json.Marshal(c.Blocks)
}

// IsText reports whether the value was an inline string.
func (c ContentValue) IsText() bool { return c.isText }

// ContentBlock is one element of an assistant message's content array, or
// of a user message's block-form content (tool_result only in that case).
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      *string         `json:"text"`
	Thinking  *string         `json:"thinking"`
	ToolUseID *string         `json:"tool_use_id"`
	Name      *string         `json:"name"`
	Input     json.RawMessage `json:"input,omitempty"`
	Content   *ToolResultValue `json:"content,omitempty"`
}

// ToolResultValue is the polymorphic `content` field of a tool_result
// block: either inline text or a nested block array.
type ToolResultValue struct {
	Text   string
	Blocks []ContentBlock
	isText bool
}

func (t *ToolResultValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t.Text, t.isText = s, true
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("models: tool result content is neither a string nor a block array: %w", err)
	}
	t.Blocks = blocks
	return nil
}

// IsText reports whether the tool result content was an inline string
// rather than a nested block array.
func (t ToolResultValue) IsText() bool { return t.isText }

// AsJSON renders the tool result content back to a canonical JSON string
// for hashing/storage, regardless of which shape it arrived in.
func (t ToolResultValue) AsJSON() (string, error) {
	if t.isText {
		b, err := json.Marshal(t.Text)
		return string(b), err
	}
	b, err := json.Marshal(t.Blocks)
	return string(b), err
}

// SessionIndex is the `sessions-index.json` file: a batch listing of every
// session known to one Claude Code project directory.
type SessionIndex struct {
	Version      int                 `json:"version"`
	Entries      []SessionIndexEntry `json:"entries"`
	OriginalPath *string             `json:"originalPath"`
}

// SessionIndexEntry is one listed session's metadata.
type SessionIndexEntry struct {
	SessionID    string  `json:"sessionId"`
	FullPath     string  `json:"fullPath"`
	FirstPrompt  *string `json:"firstPrompt"`
	Summary      *string `json:"summary"`
	MessageCount *int    `json:"messageCount"`
	Created      *string `json:"created"`
	Modified     *string `json:"modified"`
	ProjectPath  *string `json:"projectPath"`
	GitBranch    *string `json:"gitBranch"`
	IsSidechain  *bool   `json:"isSidechain"`
}

// DesktopSessionIndexEntry is the smaller, single-session schema used by
// `claude-code-sessions/**/local_*.json` files.
type DesktopSessionIndexEntry struct {
	SessionID   string  `json:"sessionId"`
	ProjectPath *string `json:"projectPath"`
	Created     *string `json:"created"`
	Modified    *string `json:"modified"`
	GitBranch   *string `json:"gitBranch"`
}

// Task is one entry of a `tasks/**/*.json` file.
type Task struct {
	TaskID      string   `json:"taskId"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	BlockedBy   []string `json:"blockedBy"`
}

// Facet is one entry of a `usage-data/facets/**/*.json` file.
type Facet struct {
	SessionID      *string  `json:"sessionId"`
	GoalCategories []string `json:"goalCategories"`
	OutcomeCategories []string `json:"outcomeCategories"`
	FrictionCounts map[string]int `json:"frictionCounts"`
}

// StatsCache is the root-level `stats-cache.json` snapshot.
type StatsCache struct {
	LastComputedDate string                    `json:"lastComputedDate"`
	DailyActivity    []DailyActivity           `json:"dailyActivity"`
	ModelUsage       map[string]map[string]int `json:"modelUsage"`
	TotalSessions    int                       `json:"totalSessions"`
	TotalMessages    int                       `json:"totalMessages"`
	LongestSession   int                       `json:"longestSession"`
	FirstSessionDate string                    `json:"firstSessionDate"`
	HourCounts       []int                     `json:"hourCounts"`
}

// DailyActivity is one day's aggregate row inside a StatsCache snapshot.
type DailyActivity struct {
	Date            string `json:"date"`
	TotalSessions   int    `json:"totalSessions"`
	TotalMessages   int    `json:"totalMessages"`
	LongestSession  int    `json:"longestSession"`
}
