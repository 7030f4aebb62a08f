package database

import (
	"github.com/amoylab/oauthprobe/internal/common/config"

	"gorm.io/driver/postgres"
)

// NewPostgres creates a PostgreSQL backed database
func NewPostgres(cfg *config.DatabaseConfig) (Database, error) {
	g, err := open(postgres.Open(cfg.GetDSN()), 0)
	if err != nil {
		return nil, err
	}
	return g, nil
}
