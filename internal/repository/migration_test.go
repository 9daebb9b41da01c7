// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func TestConnectRunsMigrations(t *testing.T) {
	resetForTest()
	dbPath := filepath.Join(t.TempDir(), "nested", "blacklight.db")

	conn, err := Connect(dbPath, nil)
	require.NoError(t, err)
	require.NotNil(t, conn.DB)

	v, err := SchemaVersion(conn.DB.DB)
	require.NoError(t, err)
	require.Equal(t, CurrentSchemaVersion, v)

	expectedTables := []string{
		"sessions", "messages", "content_blocks", "tool_calls", "content_store",
		"blob_references", "file_references", "indexed_files", "tasks",
		"task_dependencies", "session_outcomes", "outcome_categories",
		"outcome_friction", "daily_stats", "model_usage", "schedule_config",
		"session_backups", "fts_content",
	}
	for _, tbl := range expectedTables {
		var name string
		err := conn.DB.Get(&name, "SELECT name FROM sqlite_master WHERE name = ?", tbl)
		require.NoError(t, err, "expected table %s to exist", tbl)
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	resetForTest()
	dbPath := filepath.Join(t.TempDir(), "blacklight.db")

	conn1, err := Connect(dbPath, nil)
	require.NoError(t, err)

	conn2, err := Connect(dbPath, nil)
	require.NoError(t, err)
	require.Same(t, conn1, conn2)
}

func TestPragmasApplied(t *testing.T) {
	resetForTest()
	dbPath := filepath.Join(t.TempDir(), "blacklight.db")

	conn, err := Connect(dbPath, nil)
	require.NoError(t, err)

	var journalMode string
	require.NoError(t, conn.DB.Get(&journalMode, "PRAGMA journal_mode"))
	require.Equal(t, "wal", journalMode)

	var fk int
	require.NoError(t, conn.DB.Get(&fk, "PRAGMA foreign_keys"))
	require.Equal(t, 1, fk)
}
