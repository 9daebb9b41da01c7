// Package jsonlreader streams newline-delimited JSON files line by line,
// tracking the byte offset of each line so a resumed run can seek
// straight past content already processed.
package jsonlreader

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Reader streams a JSONL file from a starting byte offset, handing back
// one raw line at a time along with the offset it ended at.
type Reader struct {
	f      *os.File
	br     *bufio.Reader
	offset int64
}

// Open opens path and seeks to startOffset before reading begins. A
// startOffset of 0 reads the file from the beginning.
func Open(path string, startOffset int64) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("jsonlreader: open %s: %w", path, err)
	}
	if startOffset > 0 {
		if _, err := f.Seek(startOffset, io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("jsonlreader: seek %s to %d: %w", path, startOffset, err)
		}
	}
	return &Reader{f: f, br: bufio.NewReaderSize(f, 64*1024), offset: startOffset}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Offset reports the byte offset the reader has consumed through so far,
// suitable for persisting via change.MarkIndexed.
func (r *Reader) Offset() int64 {
	return r.offset
}

// NextLine returns the next non-empty line (with its trailing newline
// stripped) and the offset immediately after it. Blank lines are
// skipped but still advance the offset, since a truncated write can
// leave one behind mid-stream. io.EOF is returned once no further lines
// remain; a trailing line with no terminating newline (a write still in
// progress) is NOT returned — it is left for the next run to pick up
// from the offset recorded before it, so partial writes are never
// parsed as JSON.
func (r *Reader) NextLine() (line string, offset int64, err error) {
	for {
		raw, readErr := r.br.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return "", r.offset, fmt.Errorf("jsonlreader: read: %w", readErr)
		}

		if readErr == io.EOF {
			// No trailing newline: either EOF with nothing left, or a
			// partial line still being written. Either way, don't
			// advance past it or try to parse it.
			return "", r.offset, io.EOF
		}

		r.offset += int64(len(raw))
		trimmed := trimNewline(raw)
		if trimmed == "" {
			continue
		}
		return trimmed, r.offset, nil
	}
}

func trimNewline(s string) string {
	n := len(s)
	if n == 0 {
		return s
	}
	if s[n-1] == '\n' {
		n--
	}
	if n > 0 && s[n-1] == '\r' {
		n--
	}
	return s[:n]
}
