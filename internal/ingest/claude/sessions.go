// Package claude implements the primary Session JSONL format handler: the
// transcript format Claude Code itself writes under `~/.claude/projects`.
package claude

import (
	"database/sql"
	"fmt"
)

// Execer is satisfied by *sqlx.DB and *sqlx.Tx.
type Execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Get(dest interface{}, query string, args ...interface{}) error
}

// SessionFields carries the metadata a handler has learned about a
// session from one file; EnsureSession/StrengthenSession apply it without
// ever overwriting a richer existing value with a sparser one (invariant
// 9: attributes are strengthened, never weakened).
type SessionFields struct {
	GitBranch    *string
	FirstPrompt  *string
	Summary      *string
	MessageCount *int
	ModifiedAt   string
}

// EnsureSession lazily creates a session row the first time it is
// referenced by a transcript line, with whatever minimal metadata is
// known at that point. It never overwrites an existing row.
func EnsureSession(ex Execer, sessionID, sourceFile, sourceKind, projectPath, projectSlug, createdAt string) error {
	_, err := ex.Exec(
		`INSERT INTO sessions (id, source_file, source_kind, project_path, project_slug, created_at, modified_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		sessionID, sourceFile, sourceKind, projectPath, projectSlug, createdAt, createdAt,
	)
	if err != nil {
		return fmt.Errorf("claude: ensure session %s: %w", sessionID, err)
	}
	return nil
}

// StrengthenSession fills in previously-null metadata fields and raises
// message_count monotonically, never nulling out or shrinking a field a
// prior pass already populated.
func StrengthenSession(ex Execer, sessionID string, fields SessionFields) error {
	_, err := ex.Exec(
		`UPDATE sessions SET
		   git_branch = COALESCE(git_branch, ?),
		   first_prompt = COALESCE(first_prompt, ?),
		   summary = COALESCE(summary, ?),
		   message_count = MAX(COALESCE(message_count, 0), COALESCE(?, 0)),
		   modified_at = ?
		 WHERE id = ?`,
		fields.GitBranch, fields.FirstPrompt, fields.Summary, fields.MessageCount, fields.ModifiedAt, sessionID,
	)
	if err != nil {
		return fmt.Errorf("claude: strengthen session %s: %w", sessionID, err)
	}
	return nil
}
