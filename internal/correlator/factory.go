package correlator

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/amoylab/oauthprobe/internal/common/config"
)

// NewStore creates a pending request store based on configuration
func NewStore(logger *zap.Logger, cfg *config.CorrelatorConfig) (Store, error) {
	logger.Info("Initializing request correlator",
		zap.String("type", cfg.Type),
		zap.Duration("ttl", cfg.TTL))
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(cfg.TTL, cfg.SweepInterval), nil
	case "redis":
		return NewRedisStore(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.Prefix, cfg.TTL)
	default:
		return nil, fmt.Errorf("unsupported correlator type: %s", cfg.Type)
	}
}
