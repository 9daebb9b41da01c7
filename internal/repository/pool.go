// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// WithTx implements scoped acquisition: a caller submits a closure, the
// pool checks out a handle (here: begins a transaction on the one open
// connection), runs the closure, and commits or rolls back on every exit
// path via defer. Safe for read-modify-write work; callers doing plain
// reads can use DB directly.
func (c *DBConnection) WithTx(fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := c.DB.Beginx()
	if err != nil {
		return fmt.Errorf("repository: begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(tx)
	return err
}
