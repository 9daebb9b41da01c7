package gemini_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flyingrobots/blacklight/internal/ingest/gemini"
)

func TestProcessSessionBasic(t *testing.T) {
	data := []byte(`{
		"sessionId": "g1",
		"projectHash": "abc123",
		"startTime": "2026-01-01T00:00:00Z",
		"lastUpdated": "2026-01-01T00:05:00Z",
		"messages": [
			{"role": "user", "content": "what time is it"},
			{"role": "model", "content": "it is five past midnight", "thoughts": [{"text": "checking clock"}]}
		]
	}`)

	result, err := gemini.ProcessSession(data)
	require.NoError(t, err)
	require.Equal(t, "g1", result.SessionID)
	require.Equal(t, 2, result.MessageCount)
	require.Len(t, result.Batch, 2)
	require.NotEmpty(t, result.Fingerprint)

	secondOps := result.Batch[1]
	require.Len(t, secondOps.ContentBlocks, 2)
	require.Equal(t, "thinking", secondOps.ContentBlocks[1].BlockType)
	// The reply text is below DedupThreshold so it earns no blob reference;
	// thinking blocks always get one regardless of size, but never an FTS
	// mirror.
	require.Len(t, secondOps.BlobRefs, 1)
	require.Empty(t, secondOps.FtsEntries)
}

func TestProcessSessionTextAboveThresholdGetsBlobRef(t *testing.T) {
	longReply := ""
	for i := 0; i < 40; i++ {
		longReply += "a rather long assistant reply, "
	}
	data := []byte(`{
		"sessionId": "g1", "projectHash": "p", "startTime": "t1", "lastUpdated": "t2",
		"messages": [
			{"role": "model", "content": "` + longReply + `"}
		]
	}`)

	result, err := gemini.ProcessSession(data)
	require.NoError(t, err)
	ops := result.Batch[0]
	require.Len(t, ops.Blobs, 1)
	require.Len(t, ops.BlobRefs, 1)
	require.NotNil(t, ops.ContentBlocks[0].ContentHash)
}

func TestProcessSessionToolCallsHaveCorrectBlobSizes(t *testing.T) {
	longQuery := ""
	for i := 0; i < 40; i++ {
		longQuery += "golang "
	}
	longResult := ""
	for i := 0; i < 40; i++ {
		longResult += "some result text "
	}
	data := []byte(`{
		"sessionId": "g1", "projectHash": "p", "startTime": "t1", "lastUpdated": "t2",
		"messages": [
			{"role": "model", "content": "running a tool", "toolCalls": [
				{"id": "tc1", "name": "search", "args": {"query": "` + longQuery + `"}, "result": "` + longResult + `", "status": "ok"}
			]}
		]
	}`)

	result, err := gemini.ProcessSession(data)
	require.NoError(t, err)
	ops := result.Batch[0]
	require.Len(t, ops.ToolCalls, 1)
	require.NotNil(t, ops.ToolCalls[0].InputHash)
	require.NotNil(t, ops.ToolCalls[0].OutputHash)

	for _, b := range ops.Blobs {
		if b.Kind == "tool_input" || b.Kind == "tool_output" {
			require.NotZero(t, len(b.Content), "tool blob size must reflect real content length, not the hardcoded-0 bug")
		}
	}
}

func TestProcessSessionShortToolCallArgsYieldNoHash(t *testing.T) {
	data := []byte(`{
		"sessionId": "g1", "projectHash": "p", "startTime": "t1", "lastUpdated": "t2",
		"messages": [
			{"role": "model", "content": "running a tool", "toolCalls": [
				{"id": "tc1", "name": "search", "args": {"query": "golang"}, "result": "short", "status": "ok"}
			]}
		]
	}`)

	result, err := gemini.ProcessSession(data)
	require.NoError(t, err)
	ops := result.Batch[0]
	require.Empty(t, ops.Blobs)
	require.Nil(t, ops.ToolCalls[0].InputHash)
	require.Nil(t, ops.ToolCalls[0].OutputHash)
}
