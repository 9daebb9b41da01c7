package common_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flyingrobots/blacklight/internal/blob"
	"github.com/flyingrobots/blacklight/internal/ingest/common"
	"github.com/flyingrobots/blacklight/internal/writer"
)

func TestBlobifyBelowThresholdProducesNoRows(t *testing.T) {
	b := common.Blobify([]byte("short"), "user_text", "msg-1", "content")
	require.Nil(t, b.Hash)
	require.Nil(t, b.Blob)
	require.Nil(t, b.Ref)
	require.Nil(t, b.Fts)

	var ops writer.LineOps
	common.Append(&ops, b)
	require.Empty(t, ops.Blobs)
	require.Empty(t, ops.BlobRefs)
	require.Empty(t, ops.FtsEntries)
}

func TestBlobifyAboveThresholdProducesAllRows(t *testing.T) {
	content := []byte(strings.Repeat("x", blob.DedupThreshold))
	b := common.Blobify(content, "user_text", "msg-1", "content")
	require.NotNil(t, b.Hash)
	require.Equal(t, blob.Hash(content), *b.Hash)
	require.NotNil(t, b.Blob)
	require.NotNil(t, b.Ref)
	require.NotNil(t, b.Fts)

	var ops writer.LineOps
	common.Append(&ops, b)
	require.Len(t, ops.Blobs, 1)
	require.Len(t, ops.BlobRefs, 1)
	require.Len(t, ops.FtsEntries, 1)
}

func TestBlobifyAtThresholdBoundary(t *testing.T) {
	below := common.Blobify([]byte(strings.Repeat("x", blob.DedupThreshold-1)), "text", "m", "content")
	require.Nil(t, below.Blob)

	atThreshold := common.Blobify([]byte(strings.Repeat("x", blob.DedupThreshold)), "text", "m", "content")
	require.NotNil(t, atThreshold.Blob)
}
