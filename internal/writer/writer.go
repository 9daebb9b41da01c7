// Package writer implements the batched transactional writer: every file
// the pipeline processes accumulates its derived rows into LineOps
// values, which FlushBatch then commits together in a single
// transaction, in the foreign-key-respecting order the schema requires.
package writer

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/flyingrobots/blacklight/internal/blob"
	"github.com/flyingrobots/blacklight/internal/fts"
)

// MessageRow is one messages table row.
type MessageRow struct {
	ID          string
	SessionID   string
	ParentID    *string
	Kind        string
	Timestamp   string
	Model       *string
	StopReason  *string
	Cwd         *string
	GitBranch   *string
	DurationMs  *int64
	TurnIndex   int
	SourceName  *string
	Fingerprint string
}

// ContentBlockRow is one content_blocks table row.
type ContentBlockRow struct {
	MessageID     string
	BlockIndex    int
	BlockType     string
	ContentHash   *string
	ToolName      *string
	ToolUseID     *string
	ToolInputHash *string
}

// ToolCallRow is one tool_calls table row, inserted before its output is
// known; OutputHash starts nil and is filled in later via a
// ToolOutputLinkRow once the matching tool_result line is processed.
type ToolCallRow struct {
	ID          string
	MessageID   string
	SessionID   string
	ToolName    string
	InputHash   *string
	OutputHash  *string
	Timestamp   string
	Fingerprint string
}

// ToolOutputLinkRow updates a previously inserted tool_calls row once its
// result arrives, which may be in a later LineOps than the call itself.
type ToolOutputLinkRow struct {
	ToolCallID string
	OutputHash string
}

// BlobRow is a piece of content awaiting content-addressed storage. Hash
// is computed by FlushBatch from Content, not supplied by the caller, so
// two BlobRows with identical Content always collapse to one insert.
type BlobRow struct {
	Content []byte
	Kind    string
}

// BlobRefRow links a stored blob to the message that references it.
type BlobRefRow struct {
	Hash      string
	MessageID string
	Context   string
}

// FtsEntryRow indexes a blob's text for full-text search.
type FtsEntryRow struct {
	Hash    string
	Kind    string
	Content string
}

// FileRefRow records that a message's tool call touched a file on disk.
type FileRefRow struct {
	FilePath    string
	ContentHash string
	SessionID   string
	MessageID   string
	Operation   string
}

// LineOps is the full set of rows derived from processing one session
// line (message). A file's handler accumulates one LineOps per line and
// hands the whole slice to FlushBatch once its batch size is reached.
type LineOps struct {
	Messages        []MessageRow
	ContentBlocks   []ContentBlockRow
	ToolCalls       []ToolCallRow
	ToolOutputLinks []ToolOutputLinkRow
	Blobs           []BlobRow
	BlobRefs        []BlobRefRow
	FtsEntries      []FtsEntryRow
	FileRefs        []FileRefRow
}

// FlushStats summarizes one FlushBatch call for progress reporting.
type FlushStats struct {
	Messages       int
	ContentBlocks  int
	ToolCalls      int
	ToolOutputLinks int
	BlobsWritten   int
	BlobsDeduped   int
	FtsEntries     int
	FileRefs       int
}

// FlushBatch commits every LineOps in batch inside a single transaction,
// in the order content_store rows must exist before anything can
// reference them: blobs, then messages, then content_blocks, then
// tool_calls, then tool_output_links (an UPDATE), then blob_references,
// then fts_content (checked then inserted, since the virtual table has
// no natural unique constraint), then file_references.
//
// Blob content is deduplicated across the whole batch before any insert
// runs, so a value repeated across many lines of the same file (a long
// file's full contents appearing in several Read calls, for instance)
// is hashed and written exactly once.
func FlushBatch(tx *sqlx.Tx, batch []LineOps) (FlushStats, error) {
	var stats FlushStats

	seenBlobs := make(map[string][]byte)
	for _, ops := range batch {
		for _, b := range ops.Blobs {
			h := blob.Hash(b.Content)
			if _, ok := seenBlobs[h]; !ok {
				seenBlobs[h] = b.Content
			}
		}
	}
	// The Put loop below walks seenBlobs in map order, which varies from
	// run to run; the stored rows do not depend on it, since each distinct
	// hash is put exactly once.
	blobKindByHash := make(map[string]string)
	for _, ops := range batch {
		for _, b := range ops.Blobs {
			blobKindByHash[blob.Hash(b.Content)] = b.Kind
		}
	}
	for h, content := range seenBlobs {
		_, existed, err := blob.Put(tx, content, blobKindByHash[h])
		if err != nil {
			return stats, fmt.Errorf("writer: flush blobs: %w", err)
		}
		if existed {
			stats.BlobsDeduped++
		} else {
			stats.BlobsWritten++
		}
	}

	for _, ops := range batch {
		for _, m := range ops.Messages {
			_, err := tx.Exec(
				`INSERT INTO messages (id, session_id, parent_id, kind, timestamp, model, stop_reason, cwd, git_branch, duration_ms, turn_index, source_name, fingerprint)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				 ON CONFLICT(id) DO NOTHING`,
				m.ID, m.SessionID, m.ParentID, m.Kind, m.Timestamp, m.Model, m.StopReason,
				m.Cwd, m.GitBranch, m.DurationMs, m.TurnIndex, m.SourceName, m.Fingerprint,
			)
			if err != nil {
				return stats, fmt.Errorf("writer: insert message %s: %w", m.ID, err)
			}
			stats.Messages++
		}
	}

	for _, ops := range batch {
		for _, cb := range ops.ContentBlocks {
			_, err := tx.Exec(
				`INSERT INTO content_blocks (message_id, block_index, block_type, content_hash, tool_name, tool_use_id, tool_input_hash)
				 VALUES (?, ?, ?, ?, ?, ?, ?)
				 ON CONFLICT(message_id, block_index) DO NOTHING`,
				cb.MessageID, cb.BlockIndex, cb.BlockType, cb.ContentHash, cb.ToolName, cb.ToolUseID, cb.ToolInputHash,
			)
			if err != nil {
				return stats, fmt.Errorf("writer: insert content block %s/%d: %w", cb.MessageID, cb.BlockIndex, err)
			}
			stats.ContentBlocks++
		}
	}

	for _, ops := range batch {
		for _, tc := range ops.ToolCalls {
			_, err := tx.Exec(
				`INSERT INTO tool_calls (id, message_id, session_id, tool_name, input_hash, output_hash, timestamp, fingerprint)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				 ON CONFLICT(id) DO NOTHING`,
				tc.ID, tc.MessageID, tc.SessionID, tc.ToolName, tc.InputHash, tc.OutputHash, tc.Timestamp, tc.Fingerprint,
			)
			if err != nil {
				return stats, fmt.Errorf("writer: insert tool call %s: %w", tc.ID, err)
			}
			stats.ToolCalls++
		}
	}

	for _, ops := range batch {
		for _, link := range ops.ToolOutputLinks {
			_, err := tx.Exec(
				`UPDATE tool_calls SET output_hash = ? WHERE id = ?`,
				link.OutputHash, link.ToolCallID,
			)
			if err != nil {
				return stats, fmt.Errorf("writer: link tool output %s: %w", link.ToolCallID, err)
			}
			stats.ToolOutputLinks++
		}
	}

	for _, ops := range batch {
		for _, ref := range ops.BlobRefs {
			if err := blob.PutRef(tx, ref.Hash, ref.MessageID, ref.Context); err != nil {
				return stats, fmt.Errorf("writer: flush blob ref: %w", err)
			}
		}
	}

	for _, ops := range batch {
		for _, fe := range ops.FtsEntries {
			if err := fts.Index(tx, fe.Hash, fe.Kind, fe.Content); err != nil {
				return stats, fmt.Errorf("writer: flush fts entry: %w", err)
			}
			stats.FtsEntries++
		}
	}

	for _, ops := range batch {
		for _, fr := range ops.FileRefs {
			_, err := tx.Exec(
				`INSERT INTO file_references (file_path, content_hash, session_id, message_id, operation)
				 VALUES (?, ?, ?, ?, ?)`,
				fr.FilePath, fr.ContentHash, fr.SessionID, fr.MessageID, fr.Operation,
			)
			if err != nil {
				return stats, fmt.Errorf("writer: insert file ref %s: %w", fr.FilePath, err)
			}
			stats.FileRefs++
		}
	}

	return stats, nil
}
