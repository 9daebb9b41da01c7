// Package change implements incremental/resumable file change detection,
// comparing a freshly scanned file against the (mtime, size, offset)
// tuple recorded for it on a previous run.
package change

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flyingrobots/blacklight/internal/scanner"
)

// Status classifies a scanned file relative to what was previously
// indexed.
type Status int

const (
	// New means the file was never seen before.
	New Status = iota
	// Modified means the file was seen before but its size or mtime has
	// changed since; LastByteOffset names where the previous pass left
	// off so streaming readers can resume rather than reprocess.
	Modified
	// Unchanged means the file's mtime and size both match the previous
	// run exactly; it is skipped entirely.
	Unchanged
)

// Classification pairs a scanned entry with its detected status.
type Classification struct {
	Entry          scanner.FileEntry
	Status         Status
	LastByteOffset int64
}

// Plan is the outcome of comparing a fresh scan against indexed_files:
// what needs (re)processing, how many files were skipped as unchanged,
// and which previously indexed paths have since disappeared from disk.
type Plan struct {
	ToProcess     []Classification
	UnchangedCount int
	DeletedPaths  []string
}

// Queryer is satisfied by *sqlx.DB and *sqlx.Tx.
type Queryer interface {
	Select(dest interface{}, query string, args ...interface{}) error
}

type indexedFileRow struct {
	FilePath       string `db:"file_path"`
	MtimeMs        int64  `db:"mtime_ms"`
	SizeBytes      int64  `db:"size_bytes"`
	LastByteOffset int64  `db:"last_byte_offset"`
}

// DetectChanges compares entries (the current scan) against the
// indexed_files table and builds a Plan. When full is true, every
// scanned file is treated as needing a full reprocess (LastByteOffset 0)
// regardless of what was previously recorded — this is the --full
// override and it never consults indexed_files at all.
func DetectChanges(q Queryer, entries []scanner.FileEntry, full bool) (Plan, error) {
	var previous []indexedFileRow
	if !full {
		if err := q.Select(&previous, `SELECT file_path, mtime_ms, size_bytes, last_byte_offset FROM indexed_files`); err != nil {
			return Plan{}, fmt.Errorf("change: load indexed_files: %w", err)
		}
	}

	prevByPath := make(map[string]indexedFileRow, len(previous))
	for _, p := range previous {
		prevByPath[p.FilePath] = p
	}

	seen := make(map[string]bool, len(entries))
	plan := Plan{}

	for _, e := range entries {
		seen[e.Path] = true

		if full {
			plan.ToProcess = append(plan.ToProcess, Classification{Entry: e, Status: New})
			continue
		}

		prev, ok := prevByPath[e.Path]
		if !ok {
			plan.ToProcess = append(plan.ToProcess, Classification{Entry: e, Status: New})
			continue
		}

		if prev.MtimeMs == e.MtimeMs && prev.SizeBytes == e.Size {
			plan.UnchangedCount++
			continue
		}

		// A file that shrank, or whose mtime went backwards, was truncated
		// or rewritten from scratch rather than appended to; resuming from
		// its old offset would skip content, so it is re-classified as New
		// instead of a resumable Modified append.
		if e.Size < prev.SizeBytes || e.MtimeMs < prev.MtimeMs {
			plan.ToProcess = append(plan.ToProcess, Classification{Entry: e, Status: New})
			continue
		}

		plan.ToProcess = append(plan.ToProcess, Classification{
			Entry:          e,
			Status:         Modified,
			LastByteOffset: prev.LastByteOffset,
		})
	}

	for _, p := range previous {
		if !seen[p.FilePath] {
			plan.DeletedPaths = append(plan.DeletedPaths, p.FilePath)
		}
	}

	return plan, nil
}

// Execer is satisfied by *sqlx.DB and *sqlx.Tx.
type Execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// MarkIndexed records (or updates) the (mtime, size, offset) tuple for a
// fully processed file, so the next run can compute its change status
// against this one.
func MarkIndexed(ex Execer, path string, mtimeMs, sizeBytes, lastByteOffset int64, now time.Time) error {
	_, err := ex.Exec(
		`INSERT INTO indexed_files (file_path, mtime_ms, size_bytes, last_byte_offset, indexed_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(file_path) DO UPDATE SET
		   mtime_ms = excluded.mtime_ms,
		   size_bytes = excluded.size_bytes,
		   last_byte_offset = excluded.last_byte_offset,
		   indexed_at = excluded.indexed_at`,
		path, mtimeMs, sizeBytes, lastByteOffset, now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("change: mark indexed %s: %w", path, err)
	}
	return nil
}

// ErrNoSuchFile is returned by callers that look up a single indexed_files
// row and find none; DetectChanges itself never returns it since it works
// from a bulk-loaded map.
var ErrNoSuchFile = errors.New("change: no such indexed file")
