package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/config"
	redisclient "github.com/Nixie-Tech-LLC/workoutboard/internal/redis"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/storage"
)

// NewStorage selects and returns the configured static cache backend and a
// function releasing its connection, if any.
func NewStorage(ctx context.Context, cfg *config.Config) (storage.Storage, func() error, error) {
	switch cfg.StaticCacheBackend {
	case config.BackendRedis:
		rdb, err := redisclient.NewClient(ctx, cfg.RedisAddress, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis static cache: %w", err)
		}
		log.Info().Str("address", cfg.RedisAddress).Msg("Using redis static cache")
		return storage.NewRedisStorage(rdb), rdb.Close, nil

	case config.BackendSpaces:
		spaces, err := storage.NewSpacesStorage(
			cfg.SpacesEndpoint,
			cfg.SpacesRegion,
			cfg.SpacesBucket,
			cfg.SpacesAccessKey,
			cfg.SpacesSecretKey,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Spaces static cache: %w", err)
		}
		log.Info().Str("bucket", cfg.SpacesBucket).Msg("Using DigitalOcean Spaces static cache")
		return spaces, nil, nil

	default:
		log.Info().Str("dir", cfg.StaticCacheDir).Msg("Using local file static cache")
		return storage.NewFileStorage(cfg.StaticCacheDir), nil, nil
	}
}
