// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

// PoolConfig holds the knobs the connection pool opens every SQLite handle
// with. All fields have sensible defaults, so this configuration is optional.
type PoolConfig struct {
	// CacheSizeMB is the per-connection page cache size in megabytes.
	// Default: 64.
	CacheSizeMB int

	// MmapSizeMB is the memory-mapped I/O window in megabytes.
	// Default: 256.
	MmapSizeMB int
}

// DefaultPoolConfig returns the default pool configuration.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		CacheSizeMB: 64,
		MmapSizeMB:  256,
	}
}
