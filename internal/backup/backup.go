// Package backup implements optional content-addressed preservation of
// source transcript files alongside the normalized store: a copy of the
// raw bytes, named by content hash, plus a session_backups row linking
// the session to where its source material landed.
package backup

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flyingrobots/blacklight/internal/blob"
)

// ModeSimple copies the source file verbatim into Config.Dir, named by
// its content hash.
const ModeSimple = "Simple"

// ModeGitCas would shell out to an external git-cas tool to store the
// file inside a content-addressed git tree. Out of scope: NewBackuper
// returns a Backuper whose Backup always fails for this mode, so a
// configured-but-unimplemented mode fails loudly rather than silently
// skipping every backup.
const ModeGitCas = "GitCas"

// Config mirrors the backup section of the on-disk configuration.
type Config struct {
	Dir  string
	Mode string
}

// Execer is satisfied by both *sqlx.DB and *sqlx.Tx.
type Execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// Backuper preserves the source file for a session. Implementations must
// be idempotent: re-backing-up an unchanged file is a cheap no-op.
type Backuper interface {
	Backup(sessionID, sourcePath string) error
}

// NewBackuper returns the Backuper matching cfg.Mode. An empty cfg.Dir
// disables backups entirely (noopBackuper).
func NewBackuper(ex Execer, cfg Config) (Backuper, error) {
	if cfg.Dir == "" {
		return noopBackuper{}, nil
	}
	switch cfg.Mode {
	case "", ModeSimple:
		return &simpleBackuper{ex: ex, dir: cfg.Dir}, nil
	case ModeGitCas:
		return gitCasBackuper{}, nil
	default:
		return nil, fmt.Errorf("backup: unknown mode %q", cfg.Mode)
	}
}

type noopBackuper struct{}

func (noopBackuper) Backup(string, string) error { return nil }

// gitCasBackuper stubs the external git-cas collaborator: shelling out to
// git is a real integration this engine does not own, so every call
// fails clearly instead of quietly skipping the backup.
type gitCasBackuper struct{}

func (gitCasBackuper) Backup(sessionID, sourcePath string) error {
	return fmt.Errorf("backup: GitCas mode is not implemented (would shell out to an external git-cas tool for session %s, file %s)", sessionID, sourcePath)
}

// simpleBackuper copies source files by content hash into a flat
// directory and records the mapping in session_backups.
type simpleBackuper struct {
	ex  Execer
	dir string
}

// Backup content-addresses sourcePath's bytes, writes them under dir
// (skipping the write if that hash is already present), and upserts the
// session_backups row for sessionID. Re-running over an unchanged file
// is idempotent: the same hash resolves to the same existing path, and
// the upsert simply refreshes backed_up_at.
func (b *simpleBackuper) Backup(sessionID, sourcePath string) error {
	content, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("backup: read %s: %w", sourcePath, err)
	}
	hash := blob.Hash(content)

	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("backup: create dir %s: %w", b.dir, err)
	}

	dest := filepath.Join(b.dir, hash)
	if _, statErr := os.Stat(dest); os.IsNotExist(statErr) {
		if err := os.WriteFile(dest, content, 0o644); err != nil {
			return fmt.Errorf("backup: write %s: %w", dest, err)
		}
	}

	_, err = b.ex.Exec(
		`INSERT INTO session_backups (session_id, source_path, content_hash, size_bytes, backed_up_at)
		 VALUES (?, ?, ?, ?, datetime('now'))
		 ON CONFLICT(session_id) DO UPDATE SET
			source_path = excluded.source_path,
			content_hash = excluded.content_hash,
			size_bytes = excluded.size_bytes,
			backed_up_at = excluded.backed_up_at`,
		sessionID, sourcePath, hash, len(content),
	)
	if err != nil {
		return fmt.Errorf("backup: record %s: %w", sessionID, err)
	}
	return nil
}
