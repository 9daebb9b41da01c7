package jsonlreader_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flyingrobots/blacklight/internal/jsonlreader"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNextLineReadsAllLines(t *testing.T) {
	path := writeTemp(t, "{\"a\":1}\n{\"b\":2}\n")
	r, err := jsonlreader.Open(path, 0)
	require.NoError(t, err)
	defer r.Close()

	line1, _, err := r.NextLine()
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, line1)

	line2, _, err := r.NextLine()
	require.NoError(t, err)
	require.Equal(t, `{"b":2}`, line2)

	_, _, err = r.NextLine()
	require.ErrorIs(t, err, io.EOF)
}

func TestNextLineSkipsBlankLines(t *testing.T) {
	path := writeTemp(t, "{\"a\":1}\n\n{\"b\":2}\n")
	r, err := jsonlreader.Open(path, 0)
	require.NoError(t, err)
	defer r.Close()

	line1, _, err := r.NextLine()
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, line1)

	line2, _, err := r.NextLine()
	require.NoError(t, err)
	require.Equal(t, `{"b":2}`, line2)
}

func TestNextLineDoesNotReturnUnterminatedTrailingLine(t *testing.T) {
	path := writeTemp(t, "{\"a\":1}\n{\"partial\":")
	r, err := jsonlreader.Open(path, 0)
	require.NoError(t, err)
	defer r.Close()

	line1, offset, err := r.NextLine()
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, line1)

	_, _, err = r.NextLine()
	require.ErrorIs(t, err, io.EOF)
	require.EqualValues(t, len("{\"a\":1}\n"), offset)
}

func TestOpenResumesFromOffset(t *testing.T) {
	content := "{\"a\":1}\n{\"b\":2}\n"
	path := writeTemp(t, content)
	offsetAfterFirst := int64(len("{\"a\":1}\n"))

	r, err := jsonlreader.Open(path, offsetAfterFirst)
	require.NoError(t, err)
	defer r.Close()

	line, _, err := r.NextLine()
	require.NoError(t, err)
	require.Equal(t, `{"b":2}`, line)
}

func TestOffsetAdvancesPastSkippedBlankLines(t *testing.T) {
	path := writeTemp(t, "\n\n{\"a\":1}\n")
	r, err := jsonlreader.Open(path, 0)
	require.NoError(t, err)
	defer r.Close()

	line, offset, err := r.NextLine()
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, line)
	require.EqualValues(t, len("\n\n{\"a\":1}\n"), offset)
}
