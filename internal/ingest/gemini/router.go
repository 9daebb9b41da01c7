package gemini

import (
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/flyingrobots/blacklight/internal/ingest/claude"
	"github.com/flyingrobots/blacklight/internal/repository"
	"github.com/flyingrobots/blacklight/internal/writer"
)

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }

// ProcessFile reads path in full (Gemini sessions are whole-file JSON
// snapshots, never appended to) and commits every row it contains in one
// transaction.
func ProcessFile(conn *repository.DBConnection, path string) (result Result, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("gemini: read %s: %w", path, err)
	}

	result, err = ProcessSession(data)
	if err != nil {
		return Result{}, err
	}

	now := nowRFC3339()
	err = conn.WithTx(func(tx *sqlx.Tx) error {
		if ensureErr := claude.EnsureSession(tx, result.SessionID, path, "gemini", result.ProjectHash, result.ProjectHash, now); ensureErr != nil {
			return ensureErr
		}
		count := result.MessageCount
		if strengthenErr := claude.StrengthenSession(tx, result.SessionID, claude.SessionFields{
			MessageCount: &count, ModifiedAt: now,
		}); strengthenErr != nil {
			return strengthenErr
		}
		if _, flushErr := writer.FlushBatch(tx, result.Batch); flushErr != nil {
			return flushErr
		}
		_, fpErr := tx.Exec(`UPDATE sessions SET fingerprint = ? WHERE id = ?`, result.Fingerprint, result.SessionID)
		return fpErr
	})
	if err != nil {
		return Result{}, fmt.Errorf("gemini: process %s: %w", path, err)
	}
	return result, nil
}
