// Package common holds helpers shared by every format handler
// (internal/ingest/claude, gemini, codex, structured): turning a piece of
// text into the blob/blob-reference/FTS-mirror triple a content block
// needs, consistently across formats.
package common

import (
	"github.com/flyingrobots/blacklight/internal/blob"
	"github.com/flyingrobots/blacklight/internal/writer"
)

// Blobified is the row-set for one piece of stored content. Hash is nil
// when content fell below DedupThreshold: no row was worth creating, and
// the caller keeps the content inline on its owning record instead.
type Blobified struct {
	Hash *string
	Blob *writer.BlobRow
	Ref  *writer.BlobRefRow
	Fts  *writer.FtsEntryRow
}

// Blobify content-addresses content under kind, but only when it clears
// DedupThreshold: below that, no content_store row, blob reference, or
// FTS mirror is created at all, and Blobified is the zero value.
func Blobify(content []byte, kind, messageID, context string) Blobified {
	if !blob.ShouldBlobify(len(content)) {
		return Blobified{}
	}
	hash := blob.Hash(content)
	return Blobified{
		Hash: &hash,
		Blob: &writer.BlobRow{Content: content, Kind: kind},
		Ref:  &writer.BlobRefRow{Hash: hash, MessageID: messageID, Context: context},
		Fts:  &writer.FtsEntryRow{Hash: hash, Kind: kind, Content: string(content)},
	}
}

// Append folds a Blobified result into an accumulating LineOps. A no-op
// when content was never blobified.
func Append(ops *writer.LineOps, b Blobified) {
	if b.Blob != nil {
		ops.Blobs = append(ops.Blobs, *b.Blob)
	}
	if b.Ref != nil {
		ops.BlobRefs = append(ops.BlobRefs, *b.Ref)
	}
	if b.Fts != nil {
		ops.FtsEntries = append(ops.FtsEntries, *b.Fts)
	}
}

// ThinkingBlobOnly content-addresses a thinking block's text but never
// emits a blob reference or FTS mirror, win or lose on size — thinking
// content is excluded from search entirely regardless of length, and the
// Claude JSONL handler grants thinking blocks no cross-reference either.
func ThinkingBlobOnly(content []byte, kind string) (hash string, row writer.BlobRow) {
	hash = blob.Hash(content)
	return hash, writer.BlobRow{Content: content, Kind: kind}
}

// ThinkingWithRef is the Gemini handler's variant: thinking blocks earn a
// blob reference (so the thought is traceable from its message) but are
// still never mirrored into FTS, converging with ThinkingBlobOnly on the
// same "never searchable" rule via a different row shape.
func ThinkingWithRef(content []byte, kind, messageID, context string) (hash string, b writer.BlobRow, ref writer.BlobRefRow) {
	hash = blob.Hash(content)
	return hash, writer.BlobRow{Content: content, Kind: kind}, writer.BlobRefRow{Hash: hash, MessageID: messageID, Context: context}
}
