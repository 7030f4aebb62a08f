package database

import (
	"github.com/amoylab/oauthprobe/internal/common/config"

	"github.com/glebarez/sqlite"
)

// NewSQLite opens a pure Go SQLite database. ":memory:" keeps a single
// connection so every query sees the same database.
func NewSQLite(cfg *config.DatabaseConfig) (Database, error) {
	maxConns := 0
	if cfg.DBName == ":memory:" {
		maxConns = 1
	}
	g, err := open(sqlite.Open(cfg.GetDSN()), maxConns)
	if err != nil {
		return nil, err
	}
	return g, nil
}
