package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type (
	DatabaseConfig struct {
		Type     string `yaml:"type"`     // mysql, postgres, sqlite
		Host     string `yaml:"host"`     // localhost
		Port     int    `yaml:"port"`     // 3306 (for mysql), 5432 (for postgres)
		User     string `yaml:"user"`     // root (for mysql), postgres (for postgres)
		Password string `yaml:"password"` // password
		DBName   string `yaml:"dbname"`   // database name, file path for sqlite
		SSLMode  string `yaml:"sslmode"`  // disable (for postgres)
	}

	// CorrelatorConfig configures where pending form requests are parked
	CorrelatorConfig struct {
		Type          string                `yaml:"type"` // "memory" or "redis"
		TTL           time.Duration         `yaml:"ttl"`
		SweepInterval time.Duration         `yaml:"sweep_interval"` // memory only
		Redis         CorrelatorRedisConfig `yaml:"redis"`
	}

	CorrelatorRedisConfig struct {
		Addr     string `yaml:"addr"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	}

	// SessionConfig configures the login cookie
	SessionConfig struct {
		CookieName   string        `yaml:"cookie_name"`
		SecretKey    string        `yaml:"secret_key"`
		Duration     time.Duration `yaml:"duration"`
		Secure       bool          `yaml:"secure"`
		Username     string        `yaml:"username"`
		Password     string        `yaml:"password"`      // plain, compared after hashing at startup
		PasswordHash string        `yaml:"password_hash"` // bcrypt hash, wins over password
	}

	// OAuthConfig tunes the outbound HTTP client used against authorization servers
	OAuthConfig struct {
		Timeout            time.Duration `yaml:"timeout"`
		InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
		CallbackPath       string        `yaml:"callback_path"`
	}

	// ResourceConfig points at the protected resource exercised with the active token
	ResourceConfig struct {
		URL    string `yaml:"url"`
		Method string `yaml:"method"`
	}
)

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	switch c.Type {
	case "postgres":
		return c.getPostgresDSN()
	case "mysql":
		return c.getMySQLDSN()
	case "sqlite":
		if c.DBName != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(c.DBName), 0755); err != nil {
				panic(fmt.Errorf("failed to create directory for sqlite database: %w", err))
			}
		}
		return c.DBName // For SQLite, DBName is the file path
	default:
		return ""
	}
}

// getPostgresDSN returns PostgreSQL connection string
func (c *DatabaseConfig) getPostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// getMySQLDSN returns MySQL connection string
func (c *DatabaseConfig) getMySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// CallbackURL is the redirect URI registered with providers
func (c *Config) CallbackURL() string {
	return strings.TrimRight(c.Server.ExternalURL, "/") + c.Server.BasePath + c.OAuth.CallbackPath
}

func (c *Config) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = "/client"
	}
	c.Server.BasePath = "/" + strings.Trim(c.Server.BasePath, "/")
	if c.Server.ExternalURL == "" {
		c.Server.ExternalURL = "http://localhost" + c.Server.Addr
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type == "sqlite" && c.Database.DBName == "" {
		c.Database.DBName = "./data/oauthprobe.db"
	}
	if c.Correlator.Type == "" {
		c.Correlator.Type = "memory"
	}
	if c.Correlator.TTL <= 0 {
		c.Correlator.TTL = 120 * time.Second
	}
	if c.Correlator.SweepInterval <= 0 {
		c.Correlator.SweepInterval = 30 * time.Second
	}
	if c.Correlator.Redis.Prefix == "" {
		c.Correlator.Redis.Prefix = "oauthprobe:req:"
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "oauthprobe"
	}
	if c.Session.Duration <= 0 {
		c.Session.Duration = time.Hour
	}
	if c.OAuth.Timeout <= 0 {
		c.OAuth.Timeout = 30 * time.Second
	}
	if c.OAuth.CallbackPath == "" {
		c.OAuth.CallbackPath = "/callback"
	}
	if c.Resource.Method == "" {
		c.Resource.Method = "POST"
	}
	c.Resource.Method = strings.ToUpper(c.Resource.Method)
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "oauthprobe"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "oauthprobe"
	}
	if c.I18n.DefaultLang == "" {
		c.I18n.DefaultLang = "en"
	}
}
