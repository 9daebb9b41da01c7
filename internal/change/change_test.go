package change_test

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/flyingrobots/blacklight/internal/change"
	"github.com/flyingrobots/blacklight/internal/scanner"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(`CREATE TABLE indexed_files (
		file_path TEXT PRIMARY KEY, mtime_ms INTEGER NOT NULL, size_bytes INTEGER NOT NULL,
		last_byte_offset INTEGER NOT NULL, indexed_at TEXT NOT NULL
	)`)
	require.NoError(t, err)
	return db
}

func TestDetectChangesNewFile(t *testing.T) {
	db := openTestDB(t)
	entries := []scanner.FileEntry{{Path: "a.jsonl", Kind: scanner.KindClaudeSession, MtimeMs: 100, Size: 10}}

	plan, err := change.DetectChanges(db, entries, false)
	require.NoError(t, err)
	require.Len(t, plan.ToProcess, 1)
	require.Equal(t, change.New, plan.ToProcess[0].Status)
	require.Zero(t, plan.UnchangedCount)
}

func TestDetectChangesUnchanged(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, change.MarkIndexed(db, "a.jsonl", 100, 10, 10, time.Unix(0, 0)))

	entries := []scanner.FileEntry{{Path: "a.jsonl", Kind: scanner.KindClaudeSession, MtimeMs: 100, Size: 10}}
	plan, err := change.DetectChanges(db, entries, false)
	require.NoError(t, err)
	require.Empty(t, plan.ToProcess)
	require.Equal(t, 1, plan.UnchangedCount)
}

func TestDetectChangesModifiedResumesFromOffset(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, change.MarkIndexed(db, "a.jsonl", 100, 10, 10, time.Unix(0, 0)))

	entries := []scanner.FileEntry{{Path: "a.jsonl", Kind: scanner.KindClaudeSession, MtimeMs: 200, Size: 25}}
	plan, err := change.DetectChanges(db, entries, false)
	require.NoError(t, err)
	require.Len(t, plan.ToProcess, 1)
	require.Equal(t, change.Modified, plan.ToProcess[0].Status)
	require.EqualValues(t, 10, plan.ToProcess[0].LastByteOffset)
}

func TestDetectChangesShrunkFileIsTreatedAsFresh(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, change.MarkIndexed(db, "a.jsonl", 100, 100, 100, time.Unix(0, 0)))

	entries := []scanner.FileEntry{{Path: "a.jsonl", Kind: scanner.KindClaudeSession, MtimeMs: 200, Size: 5}}
	plan, err := change.DetectChanges(db, entries, false)
	require.NoError(t, err)
	require.Len(t, plan.ToProcess, 1)
	require.Equal(t, change.New, plan.ToProcess[0].Status)
	require.EqualValues(t, 0, plan.ToProcess[0].LastByteOffset)
}

func TestDetectChangesMtimeRegressionIsTreatedAsFresh(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, change.MarkIndexed(db, "a.jsonl", 200, 100, 100, time.Unix(0, 0)))

	// Size grew but mtime went backwards (e.g. the file was restored from
	// an older copy) — still a rewrite, not a resumable append.
	entries := []scanner.FileEntry{{Path: "a.jsonl", Kind: scanner.KindClaudeSession, MtimeMs: 100, Size: 150}}
	plan, err := change.DetectChanges(db, entries, false)
	require.NoError(t, err)
	require.Len(t, plan.ToProcess, 1)
	require.Equal(t, change.New, plan.ToProcess[0].Status)
	require.EqualValues(t, 0, plan.ToProcess[0].LastByteOffset)
}

func TestDetectChangesDeletedPaths(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, change.MarkIndexed(db, "gone.jsonl", 100, 10, 10, time.Unix(0, 0)))

	plan, err := change.DetectChanges(db, nil, false)
	require.NoError(t, err)
	require.Equal(t, []string{"gone.jsonl"}, plan.DeletedPaths)
}

func TestDetectChangesFullIgnoresIndexedFiles(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, change.MarkIndexed(db, "a.jsonl", 100, 10, 10, time.Unix(0, 0)))

	entries := []scanner.FileEntry{{Path: "a.jsonl", Kind: scanner.KindClaudeSession, MtimeMs: 100, Size: 10}}
	plan, err := change.DetectChanges(db, entries, true)
	require.NoError(t, err)
	require.Len(t, plan.ToProcess, 1)
	require.Equal(t, change.New, plan.ToProcess[0].Status)
}

func TestMarkIndexedUpsertsOnConflict(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, change.MarkIndexed(db, "a.jsonl", 100, 10, 0, time.Unix(0, 0)))
	require.NoError(t, change.MarkIndexed(db, "a.jsonl", 200, 20, 20, time.Unix(1, 0)))

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(1) FROM indexed_files"))
	require.Equal(t, 1, count)

	var mtime int64
	require.NoError(t, db.Get(&mtime, "SELECT mtime_ms FROM indexed_files WHERE file_path = ?", "a.jsonl"))
	require.EqualValues(t, 200, mtime)
}
