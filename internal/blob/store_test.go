package blob_test

import (
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/flyingrobots/blacklight/internal/blob"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE content_store (
		hash TEXT PRIMARY KEY, content TEXT NOT NULL, size INTEGER NOT NULL, kind TEXT NOT NULL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE blob_references (
		hash TEXT NOT NULL, message_id TEXT NOT NULL, context TEXT NOT NULL,
		PRIMARY KEY (hash, message_id, context)
	)`)
	require.NoError(t, err)
	return db
}

func TestShouldBlobify(t *testing.T) {
	require.False(t, blob.ShouldBlobify(255))
	require.True(t, blob.ShouldBlobify(256))
}

func TestHashIsStableAndContentAddressed(t *testing.T) {
	a := blob.Hash([]byte("hello world"))
	b := blob.Hash([]byte("hello world"))
	c := blob.Hash([]byte("hello, world"))
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestPutDeduplicates(t *testing.T) {
	db := openTestDB(t)
	content := []byte("the quick brown fox jumps over the lazy dog, repeated to pass the dedup threshold")

	hash1, existed1, err := blob.Put(db, content, "text")
	require.NoError(t, err)
	require.False(t, existed1)

	hash2, existed2, err := blob.Put(db, content, "text")
	require.NoError(t, err)
	require.Equal(t, hash1, hash2)
	require.True(t, existed2)

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(1) FROM content_store"))
	require.Equal(t, 1, count)
}

func TestGetAndExists(t *testing.T) {
	db := openTestDB(t)
	content := []byte("some content to store and retrieve")

	ok, err := blob.Exists(db, blob.Hash(content))
	require.NoError(t, err)
	require.False(t, ok)

	hash, _, err := blob.Put(db, content, "text")
	require.NoError(t, err)

	ok, err = blob.Exists(db, hash)
	require.NoError(t, err)
	require.True(t, ok)

	rec, err := blob.Get(db, hash)
	require.NoError(t, err)
	require.Equal(t, string(content), rec.Content)
	require.Equal(t, "text", rec.Kind)
	require.Equal(t, len(content), rec.Size)
}

func TestGetNotFound(t *testing.T) {
	db := openTestDB(t)
	rec, err := blob.Get(db, "deadbeef")
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestPutRefIdempotent(t *testing.T) {
	db := openTestDB(t)
	content := []byte("referenced content")
	hash, _, err := blob.Put(db, content, "tool_output")
	require.NoError(t, err)

	require.NoError(t, blob.PutRef(db, hash, "msg-1", "content"))
	require.NoError(t, blob.PutRef(db, hash, "msg-1", "content"))

	refs, err := blob.Refs(db, hash)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Equal(t, "msg-1", refs[0].MessageID)
}

func TestRefsAcrossMultipleMessages(t *testing.T) {
	db := openTestDB(t)
	content := []byte("shared file content referenced by two tool calls")
	hash, _, err := blob.Put(db, content, "file")
	require.NoError(t, err)

	require.NoError(t, blob.PutRef(db, hash, "msg-1", "file_content"))
	require.NoError(t, blob.PutRef(db, hash, "msg-2", "file_content"))

	refs, err := blob.Refs(db, hash)
	require.NoError(t, err)
	require.Len(t, refs, 2)
}
