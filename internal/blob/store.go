// Package blob implements the content-addressed blob store: every piece of
// message text, tool input, or tool output is hashed and written at most
// once to content_store, then linked from its owning row via a hash
// foreign key (or, for multiply-referenced blobs such as a file's full
// contents appearing in several tool calls, via blob_references).
package blob

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"lukechampine.com/blake3"
)

// DedupThreshold is the minimum content size, in bytes, below which
// content-addressing overhead outweighs the dedup benefit. Ingest handlers
// consult ShouldBlobify before deciding whether a piece of text earns a
// content_store row or is kept inline on its owning record.
const DedupThreshold = 256

// ShouldBlobify reports whether content of the given size is worth
// content-addressing.
func ShouldBlobify(size int) bool {
	return size >= DedupThreshold
}

// Hash returns the hex-encoded BLAKE3 digest of content, used as the
// primary key of content_store.
func Hash(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Execer is satisfied by both *sqlx.DB and *sqlx.Tx.
type Execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// Queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type Queryer interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
}

// Put content-addresses content under kind, inserting it into content_store
// if no row with that hash already exists. It returns the hash and whether
// the row already existed (in which case the insert was ignored).
func Put(ex Execer, content []byte, kind string) (hash string, existed bool, err error) {
	hash = Hash(content)
	res, err := ex.Exec(
		`INSERT OR IGNORE INTO content_store (hash, content, size, kind) VALUES (?, ?, ?, ?)`,
		hash, string(content), len(content), kind,
	)
	if err != nil {
		return "", false, fmt.Errorf("blob: put %s: %w", hash, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("blob: put %s: rows affected: %w", hash, err)
	}
	return hash, n == 0, nil
}

// PutRef records that message messageID references hash in the given
// context (the ingest handlers use "content" and "input").
// A session's indexer may revisit the same message/hash/context pair on a
// resumed run; the composite primary key makes the insert idempotent.
func PutRef(ex Execer, hash, messageID, context string) error {
	_, err := ex.Exec(
		`INSERT OR IGNORE INTO blob_references (hash, message_id, context) VALUES (?, ?, ?)`,
		hash, messageID, context,
	)
	if err != nil {
		return fmt.Errorf("blob: put ref %s/%s/%s: %w", hash, messageID, context, err)
	}
	return nil
}

// Record is one content_store row.
type Record struct {
	Hash    string `db:"hash"`
	Content string `db:"content"`
	Size    int    `db:"size"`
	Kind    string `db:"kind"`
}

// Get fetches a blob's content and kind by hash. A missing hash is a
// first-class result, not an error: it returns (nil, nil).
func Get(q Queryer, hash string) (*Record, error) {
	var rec Record
	err := q.Get(&rec, `SELECT hash, content, size, kind FROM content_store WHERE hash = ?`, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("blob: get %s: %w", hash, err)
	}
	return &rec, nil
}

// Exists reports whether a blob with the given hash is already stored.
func Exists(q Queryer, hash string) (bool, error) {
	var count int
	if err := q.Get(&count, `SELECT COUNT(1) FROM content_store WHERE hash = ?`, hash); err != nil {
		return false, fmt.Errorf("blob: exists %s: %w", hash, err)
	}
	return count > 0, nil
}

// Reference is one blob_references row.
type Reference struct {
	Hash      string `db:"hash"`
	MessageID string `db:"message_id"`
	Context   string `db:"context"`
}

// Refs lists every message that references hash, across all contexts.
func Refs(q Queryer, hash string) ([]Reference, error) {
	var refs []Reference
	err := q.Select(&refs, `SELECT hash, message_id, context FROM blob_references WHERE hash = ?`, hash)
	if err != nil {
		return nil, fmt.Errorf("blob: refs %s: %w", hash, err)
	}
	return refs, nil
}
