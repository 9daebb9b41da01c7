// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/flyingrobots/blacklight/pkg/log"
)

// CurrentSchemaVersion is the migration number this binary expects. The
// golang-migrate sqlite3 driver records the applied number, with a dirty
// flag, in its schema_migrations table; PRAGMA user_version is not used.
const CurrentSchemaVersion uint = 1

//go:embed migrations/sqlite3/*.sql
var migrationFiles embed.FS

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return nil, err
	}

	src, err := iofs.New(migrationFiles, "migrations/sqlite3")
	if err != nil {
		return nil, err
	}

	return migrate.NewWithInstance("iofs", src, "sqlite3", driver)
}

// RunMigrations brings db forward to CurrentSchemaVersion. Re-running
// against an already-current database is a no-op. Each migration's SQL
// runs in its own transaction; the version row is written separately,
// marked dirty before the migration runs and clean after it succeeds, so
// a failed migration leaves a dirty version behind instead of rolling the
// version back with it. Migrations are append-only, never edited once
// committed.
func RunMigrations(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return fmt.Errorf("construct migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	v, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}
	log.Infof("repository: schema at version %d", v)
	return nil
}

// SchemaVersion reports the currently applied migration number.
func SchemaVersion(db *sql.DB) (uint, error) {
	m, err := newMigrate(db)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	v, _, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	return v, err
}
