package claude

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/flyingrobots/blacklight/internal/blob"
	"github.com/flyingrobots/blacklight/internal/jsonlreader"
	"github.com/flyingrobots/blacklight/internal/repository"
	"github.com/flyingrobots/blacklight/internal/tracker"
	"github.com/flyingrobots/blacklight/internal/writer"
)

// BatchSize is the number of LineOps accumulated before an intermediate
// flush, keeping a single transaction from growing unbounded on a very
// long session file.
const BatchSize = 500

// FileStats summarizes one ProcessFile call for the pipeline's progress
// report.
type FileStats struct {
	LinesProcessed    int
	ParseErrors       int
	MessagesProcessed int
	Skipped           int
	BlobsWritten      int
	BlobsDeduped      int
}

func sessionIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func projectSlug(projectPath string) string {
	slug := strings.ToLower(filepath.Base(projectPath))
	slug = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, slug)
	return slug
}

// ProcessFile streams path from startOffset, dispatching each line to its
// handler and flushing accumulated rows every BatchSize LineOps (skipped
// and unparseable lines are not counted) and once more at end-of-file. It
// returns the byte offset to resume from on a future run (which, on a
// clean EOF, is the end of the last fully consumed line).
func ProcessFile(conn *repository.DBConnection, path string, startOffset int64) (finalOffset int64, stats FileStats, err error) {
	r, err := jsonlreader.Open(path, startOffset)
	if err != nil {
		return startOffset, stats, err
	}
	defer r.Close()

	sessionID := sessionIDFromPath(path)
	projectPath := filepath.Dir(path)
	tr := tracker.New()
	turnIndex := 0
	finalOffset = startOffset

	sessionEnsured := false
	var firstPrompt *string
	var gitBranch *string
	messageCount := 0

	var batch []writer.LineOps

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		b := batch
		batch = nil
		return conn.WithTx(func(tx *sqlx.Tx) error {
			if !sessionEnsured {
				now := time.Now().UTC().Format(time.RFC3339)
				if err := EnsureSession(tx, sessionID, path, "claude", projectPath, projectSlug(projectPath), now); err != nil {
					return err
				}
				sessionEnsured = true
			}
			fstats, err := writer.FlushBatch(tx, b)
			if err != nil {
				return err
			}
			stats.BlobsWritten += fstats.BlobsWritten
			stats.BlobsDeduped += fstats.BlobsDeduped
			if err := StrengthenSession(tx, sessionID, SessionFields{
				GitBranch: gitBranch, FirstPrompt: firstPrompt,
				MessageCount: &messageCount, ModifiedAt: now(),
			}); err != nil {
				return err
			}
			return nil
		})
	}

	for {
		line, offset, readErr := r.NextLine()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return finalOffset, stats, readErr
		}
		stats.LinesProcessed++

		ops, lineSessionID, skipped, perr := HandleLine(line, tr, turnIndex, sessionID)
		if perr != nil {
			stats.ParseErrors++
			finalOffset = offset
			continue
		}
		if lineSessionID != "" {
			sessionID = lineSessionID
		}
		if skipped {
			finalOffset = offset
			continue
		}

		turnIndex++
		messageCount++
		if firstPrompt == nil && len(ops.Messages) > 0 && ops.Messages[0].Kind == "user" {
			if text, ok := firstTextBlock(ops); ok {
				firstPrompt = &text
			}
		}
		if len(ops.Messages) > 0 && ops.Messages[0].GitBranch != nil {
			gitBranch = ops.Messages[0].GitBranch
		}

		batch = append(batch, ops)
		stats.MessagesProcessed++
		finalOffset = offset

		if len(batch) >= BatchSize {
			if err := flush(); err != nil {
				return finalOffset, stats, fmt.Errorf("claude: flush batch for %s: %w", path, err)
			}
		}
	}

	if err := flush(); err != nil {
		return finalOffset, stats, fmt.Errorf("claude: final flush for %s: %w", path, err)
	}

	return finalOffset, stats, nil
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }

// firstTextBlock recovers the raw text of a message's first "text" content
// block by matching its content_blocks hash back against the blobs this
// same LineOps produced, so the session's first_prompt can be captured
// without a second read of the database.
func firstTextBlock(ops writer.LineOps) (string, bool) {
	for _, cb := range ops.ContentBlocks {
		if cb.BlockType != "text" || cb.ContentHash == nil {
			continue
		}
		for _, b := range ops.Blobs {
			if blob.Hash(b.Content) == *cb.ContentHash {
				return string(b.Content), true
			}
		}
	}
	return "", false
}
