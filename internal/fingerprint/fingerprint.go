// Package fingerprint computes the hash-chained fingerprints used to
// detect whether a message, tool call, or whole session has changed
// since it was last indexed, independent of the content-addressed blob
// hashes stored alongside it.
package fingerprint

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	"lukechampine.com/blake3"
)

// Message folds a message's identity and content hashes into a single
// fingerprint: its own id, its parent id (chaining it to prior history),
// and the blob hashes of everything it references, in a fixed order so
// the result is deterministic regardless of map iteration order upstream.
func Message(id, parentID string, blobHashes ...string) string {
	h := blake3.New(32, nil)
	h.Write([]byte(id))
	h.Write([]byte{0})
	h.Write([]byte(parentID))
	for _, bh := range blobHashes {
		h.Write([]byte{0})
		h.Write([]byte(bh))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ToolCall folds a tool call's name and input/output blob hashes into a
// fingerprint.
func ToolCall(toolName, inputHash, outputHash string) string {
	h := blake3.New(32, nil)
	h.Write([]byte(toolName))
	h.Write([]byte{0})
	h.Write([]byte(inputHash))
	h.Write([]byte{0})
	h.Write([]byte(outputHash))
	return hex.EncodeToString(h.Sum(nil))
}

// Session chains a session's fingerprint forward from its previous value
// (empty string for a session seen for the first time) across the
// ordered fingerprints of every message appended to it in this run.
func Session(previous string, messageFingerprints ...string) string {
	h := blake3.New(32, nil)
	h.Write([]byte(previous))
	for _, mf := range messageFingerprints {
		h.Write([]byte{0})
		h.Write([]byte(mf))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Execer is satisfied by *sqlx.DB and *sqlx.Tx.
type Execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Get(dest interface{}, query string, args ...interface{}) error
}

// UpdateSessionFingerprint advances a session's stored fingerprint by
// chaining in newMessageFingerprints, persisting the result.
func UpdateSessionFingerprint(ex Execer, sessionID string, newMessageFingerprints []string) (string, error) {
	var previous sql.NullString
	if err := ex.Get(&previous, `SELECT fingerprint FROM sessions WHERE id = ?`, sessionID); err != nil {
		return "", fmt.Errorf("fingerprint: load session %s: %w", sessionID, err)
	}

	next := Session(previous.String, newMessageFingerprints...)
	if _, err := ex.Exec(`UPDATE sessions SET fingerprint = ? WHERE id = ?`, next, sessionID); err != nil {
		return "", fmt.Errorf("fingerprint: update session %s: %w", sessionID, err)
	}
	return next, nil
}

// Empty reports whether fp is the zero fingerprint (never set).
func Empty(fp string) bool {
	return strings.TrimSpace(fp) == ""
}
