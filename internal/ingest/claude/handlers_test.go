package claude_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flyingrobots/blacklight/internal/ingest/claude"
	"github.com/flyingrobots/blacklight/internal/tracker"
)

func TestHandleLineUserInlineText(t *testing.T) {
	raw := `{"type":"user","uuid":"u1","sessionId":"s1","timestamp":"2026-01-01T00:00:00Z","message":{"role":"user","content":"hello there"}}`
	ops, sessionID, skipped, err := claude.HandleLine(raw, tracker.New(), 0, "fallback")
	require.NoError(t, err)
	require.False(t, skipped)
	require.Equal(t, "s1", sessionID)
	require.Len(t, ops.Messages, 1)
	require.Equal(t, "u1", ops.Messages[0].ID)
	require.Len(t, ops.ContentBlocks, 1)
	// Below DedupThreshold: no blob row, no hash.
	require.Empty(t, ops.Blobs)
	require.Nil(t, ops.ContentBlocks[0].ContentHash)
}

func TestHandleLineUserInlineTextAboveThresholdGetsBlob(t *testing.T) {
	longText := make([]byte, 0, 300)
	for i := 0; i < 300; i++ {
		longText = append(longText, 'y')
	}
	raw := `{"type":"user","uuid":"u1","sessionId":"s1","timestamp":"2026-01-01T00:00:00Z","message":{"role":"user","content":"` + string(longText) + `"}}`
	ops, _, _, err := claude.HandleLine(raw, tracker.New(), 0, "fallback")
	require.NoError(t, err)
	require.Len(t, ops.Blobs, 1)
	require.NotNil(t, ops.ContentBlocks[0].ContentHash)
}

func TestHandleLineAssistantTextAndThinking(t *testing.T) {
	raw := `{"type":"assistant","uuid":"a1","sessionId":"s1","timestamp":"t","message":{"role":"assistant","content":[
		{"type":"thinking","thinking":"pondering"},
		{"type":"text","text":"the answer"}
	]}}`
	ops, _, skipped, err := claude.HandleLine(raw, tracker.New(), 0, "fallback")
	require.NoError(t, err)
	require.False(t, skipped)
	require.Len(t, ops.ContentBlocks, 2)
	require.Equal(t, "thinking", ops.ContentBlocks[0].BlockType)
	require.Equal(t, "text", ops.ContentBlocks[1].BlockType)
	// Thinking blocks never get a blob reference or FTS mirror.
	require.Empty(t, ops.BlobRefs)
	require.Empty(t, ops.FtsEntries)
}

func TestHandleLineAssistantToolUseTracksFilePath(t *testing.T) {
	raw := `{"type":"assistant","uuid":"a1","sessionId":"s1","timestamp":"t","message":{"role":"assistant","content":[
		{"type":"tool_use","tool_use_id":"tu1","name":"Read","input":{"file_path":"/tmp/foo.go"}}
	]}}`
	tr := tracker.New()
	ops, _, _, err := claude.HandleLine(raw, tr, 0, "fallback")
	require.NoError(t, err)
	require.Len(t, ops.ToolCalls, 1)
	require.Equal(t, "Read", ops.ToolCalls[0].ToolName)

	call, ok := tr.Resolve("tu1")
	require.True(t, ok)
	require.Equal(t, "/tmp/foo.go", call.FilePath)
}

func TestHandleLineUserToolResultEmitsFileReference(t *testing.T) {
	tr := tracker.New()
	tr.Track("tu1", "Read", "/tmp/foo.go")

	longContent := make([]byte, 0, 300)
	for i := 0; i < 300; i++ {
		longContent = append(longContent, 'x')
	}
	raw := `{"type":"user","uuid":"u1","sessionId":"s1","timestamp":"t","message":{"role":"user","content":[
		{"type":"tool_result","tool_use_id":"tu1","content":"` + string(longContent) + `"}
	]}}`

	ops, sessionID, _, err := claude.HandleLine(raw, tr, 0, "fallback")
	require.NoError(t, err)
	require.Len(t, ops.ToolOutputLinks, 1)
	require.Len(t, ops.FileRefs, 1)
	require.Equal(t, "/tmp/foo.go", ops.FileRefs[0].FilePath)
	require.Equal(t, "read", ops.FileRefs[0].Operation)
	require.Equal(t, sessionID, ops.FileRefs[0].SessionID)
}

func TestHandleLineSkipsNoOpEnvelopes(t *testing.T) {
	for _, typ := range []string{"file-history-snapshot", "progress", "queue-operation"} {
		raw := `{"type":"` + typ + `"}`
		ops, _, skipped, err := claude.HandleLine(raw, tracker.New(), 0, "fallback")
		require.NoError(t, err)
		require.True(t, skipped)
		require.Empty(t, ops.Messages)
	}
}

func TestHandleLineSummaryUsesLeafUUID(t *testing.T) {
	raw := `{"type":"summary","leafUuid":"leaf-1","summary":"a session about testing"}`
	ops, _, skipped, err := claude.HandleLine(raw, tracker.New(), 0, "fallback-session")
	require.NoError(t, err)
	require.False(t, skipped)
	require.Equal(t, "summary-leaf-1", ops.Messages[0].ID)
	require.Equal(t, "fallback-session", ops.Messages[0].SessionID)
}

func TestHandleLineSystemWithDuration(t *testing.T) {
	raw := `{"type":"system","uuid":"sys1","sessionId":"s1","timestamp":"t","durationMs":1500}`
	ops, _, skipped, err := claude.HandleLine(raw, tracker.New(), 0, "fallback")
	require.NoError(t, err)
	require.False(t, skipped)
	require.NotNil(t, ops.Messages[0].DurationMs)
	require.EqualValues(t, 1500, *ops.Messages[0].DurationMs)
}
