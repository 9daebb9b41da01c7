package codex

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/flyingrobots/blacklight/internal/fingerprint"
	"github.com/flyingrobots/blacklight/internal/ingest/claude"
	"github.com/flyingrobots/blacklight/internal/repository"
	"github.com/flyingrobots/blacklight/internal/writer"
)

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// ProcessFile always fully reprocesses a Codex session file: unlike
// Claude JSONL, its resume offset never matters, because Codex files are
// small and the format's whole-session fingerprint is only meaningful
// when computed from every line together.
func ProcessFile(conn *repository.DBConnection, path string) (result Result, err error) {
	lines, err := readLines(path)
	if err != nil {
		return Result{}, fmt.Errorf("codex: read %s: %w", path, err)
	}

	result, err = ProcessLines(lines)
	if err != nil {
		return Result{}, err
	}
	if result.SessionID == "" {
		return result, nil
	}

	now := nowRFC3339()
	var messageFingerprints []string
	for _, ops := range result.Batch {
		if len(ops.Messages) > 0 {
			messageFingerprints = append(messageFingerprints, ops.Messages[0].Fingerprint)
		}
	}
	sessionFp := fingerprint.Session("", messageFingerprints...)
	count := len(result.Batch)

	err = conn.WithTx(func(tx *sqlx.Tx) error {
		if ensureErr := claude.EnsureSession(tx, result.SessionID, path, "codex", result.Cwd, result.Cwd, now); ensureErr != nil {
			return ensureErr
		}
		if strengthenErr := claude.StrengthenSession(tx, result.SessionID, claude.SessionFields{
			MessageCount: &count, ModifiedAt: now,
		}); strengthenErr != nil {
			return strengthenErr
		}
		if _, flushErr := writer.FlushBatch(tx, result.Batch); flushErr != nil {
			return flushErr
		}
		_, fpErr := tx.Exec(`UPDATE sessions SET fingerprint = ? WHERE id = ?`, sessionFp, result.SessionID)
		return fpErr
	})
	if err != nil {
		return Result{}, fmt.Errorf("codex: process %s: %w", path, err)
	}
	return result, nil
}
