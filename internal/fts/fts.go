// Package fts wraps the fts_content FTS5 virtual table: indexing blob text
// for full-text search and composing/sanitizing the MATCH queries that
// read it back.
package fts

import (
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Execer is satisfied by both *sqlx.DB and *sqlx.Tx.
type Execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Get(dest interface{}, query string, args ...interface{}) error
}

// Queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type Queryer interface {
	Select(dest interface{}, query string, args ...interface{}) error
}

// Index adds hash's content to the full-text index under kind, if it is
// not already present. fts_content has no unique constraint a virtual
// table can enforce efficiently, so callers must check-then-insert rather
// than rely on INSERT OR IGNORE.
func Index(ex Execer, hash, kind, content string) error {
	var count int
	if err := ex.Get(&count, `SELECT COUNT(1) FROM fts_content WHERE hash = ?`, hash); err != nil {
		return fmt.Errorf("fts: check %s: %w", hash, err)
	}
	if count > 0 {
		return nil
	}
	if _, err := ex.Exec(
		`INSERT INTO fts_content (hash, kind, content) VALUES (?, ?, ?)`,
		hash, kind, content,
	); err != nil {
		return fmt.Errorf("fts: index %s: %w", hash, err)
	}
	return nil
}

// SanitizeQuery wraps a raw user-supplied search string as a single FTS5
// phrase query, doubling any embedded double quotes. This keeps FTS5's
// query-syntax operators (AND, OR, NOT, NEAR, column filters, `*`) from
// being interpreted when the user's own text happens to contain them.
func SanitizeQuery(raw string) string {
	escaped := strings.ReplaceAll(raw, `"`, `""`)
	return `"` + escaped + `"`
}

// BuildQuery composes the final MATCH expression for a search, optionally
// restricted to one content kind ("user_text", "assistant_text",
// "tool_input", "tool_output", ...).
func BuildQuery(kind, raw string) string {
	sanitized := SanitizeQuery(raw)
	if kind == "" {
		return "content:" + sanitized
	}
	return fmt.Sprintf("kind:%s AND content:%s", kind, sanitized)
}

// Result is one ranked search hit.
type Result struct {
	Hash    string  `db:"hash"`
	Kind    string  `db:"kind"`
	Snippet string  `db:"snippet"`
	Score   float64 `db:"score"`
}

// Search runs a sanitized MATCH query against fts_content, ranked by
// bm25 (lower is more relevant) and returning a highlighted snippet of the
// matched content column (column index 2: hash=0, kind=1, content=2).
func Search(q Queryer, kind, rawQuery string, limit, offset int) ([]Result, error) {
	match := BuildQuery(kind, rawQuery)

	query, args, err := sq.Select(
		"hash", "kind",
		"snippet(fts_content, 2, '<mark>', '</mark>', '...', 24) AS snippet",
		"bm25(fts_content) AS score",
	).
		From("fts_content").
		Where("fts_content MATCH ?", match).
		OrderBy("score").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("fts: build search query: %w", err)
	}

	var results []Result
	if err := q.Select(&results, query, args...); err != nil {
		return nil, fmt.Errorf("fts: search %q: %w", rawQuery, err)
	}
	return results, nil
}
