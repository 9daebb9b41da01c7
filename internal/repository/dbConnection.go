// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"

	"github.com/flyingrobots/blacklight/pkg/log"
)

var (
	dbConnOnce     sync.Once
	dbConnInstance *DBConnection
	driverOnce     sync.Once
)

// DBConnection wraps the single open handle to the embedded relational
// store: one serialized handle plus a scoped-closure acquisition helper,
// since SQLite only ever has one writer anyway.
type DBConnection struct {
	DB   *sqlx.DB
	path string
}

// Connect opens (and, on first call, migrates) the database at path. It is
// safe to call from multiple goroutines; only the first call does any work.
func Connect(path string, cfg *PoolConfig) (*DBConnection, error) {
	var err error
	dbConnOnce.Do(func() {
		if cfg == nil {
			cfg = DefaultPoolConfig()
		}

		if dir := filepath.Dir(path); dir != "." {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				err = fmt.Errorf("repository: create db directory %s: %w", dir, mkErr)
				return
			}
		}

		driverOnce.Do(func() {
			sql.Register("sqlite3WithHooks", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &Hooks{}))
		})

		dsn := fmt.Sprintf("%s?_foreign_keys=on", path)
		var dbHandle *sqlx.DB
		dbHandle, err = sqlx.Open("sqlite3WithHooks", dsn)
		if err != nil {
			err = fmt.Errorf("repository: open %s: %w", path, err)
			return
		}

		// SQLite does not multiplex writers across connections; having more
		// than one open connection just means waiting on the same lock.
		dbHandle.SetMaxOpenConns(1)

		pragmas := fmt.Sprintf(
			"PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA foreign_keys=ON; PRAGMA cache_size=-%d; PRAGMA mmap_size=%d;",
			cfg.CacheSizeMB*1024, cfg.MmapSizeMB*1024*1024,
		)
		if _, pErr := dbHandle.Exec(pragmas); pErr != nil {
			err = fmt.Errorf("repository: apply pragmas: %w", pErr)
			return
		}

		if mErr := RunMigrations(dbHandle.DB); mErr != nil {
			err = fmt.Errorf("repository: migrate: %w", mErr)
			return
		}

		dbConnInstance = &DBConnection{DB: dbHandle, path: path}
		log.Infof("repository: connected to %s", path)
	})

	if err != nil {
		return nil, err
	}
	if dbConnInstance == nil {
		return nil, fmt.Errorf("repository: connect was already attempted and failed")
	}
	return dbConnInstance, nil
}

// GetConnection returns the singleton connection. If Connect has not been
// called yet it exits the process via log.Fatal, mirroring the reference stack's fail-fast behavior
// for a programmer error rather than an operational one.
func GetConnection() *DBConnection {
	if dbConnInstance == nil {
		log.Fatal("repository: database connection not initialized")
	}
	return dbConnInstance
}

// Path returns the filesystem path the store was opened with.
func (c *DBConnection) Path() string {
	return c.path
}

// resetForTest tears down the singleton so package tests can Connect to a
// fresh temp-file database per test case. Not exported.
func resetForTest() {
	dbConnOnce = sync.Once{}
	dbConnInstance = nil
}
