package database

import (
	"github.com/amoylab/oauthprobe/internal/common/config"

	"gorm.io/driver/mysql"
)

// NewMySQL creates a MySQL backed database
func NewMySQL(cfg *config.DatabaseConfig) (Database, error) {
	g, err := open(mysql.Open(cfg.GetDSN()), 0)
	if err != nil {
		return nil, err
	}
	return g, nil
}
