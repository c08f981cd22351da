// Package app assembles the podcast service from configuration for the
// server and worker binaries.
package app

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"podcastr/internal/blob"
	"podcastr/internal/config"
	"podcastr/internal/db"
	"podcastr/internal/memstore"
	"podcastr/internal/podcast"
	"podcastr/internal/ratelimit"
	"podcastr/pkg/tasks"
)

// App holds the service and the resources that must be closed with it.
type App struct {
	Service *podcast.Service
	// Files is set when blobs are stored on local disk.
	Files   *blob.Local
	Limiter ratelimit.Limiter

	closers []func() error
}

// New opens the store, blob backend and limiter selected by cfg. The
// enqueuer may be nil when the caller never schedules background work.
func New(ctx context.Context, cfg *config.Config, enqueuer tasks.TaskEnqueuer) (*App, error) {
	a := &App{}

	store, err := a.openStore(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	blobs, err := a.openBlobs(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	limiter, err := a.openLimiter(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Limiter = limiter
	a.Service = podcast.NewService(store, blobs, limiter, enqueuer, podcast.Options{
		DefaultVoice: cfg.DefaultVoice,
		Period:       cfg.Period(),
	})
	return a, nil
}

func (a *App) openStore(cfg *config.Config) (podcast.Store, error) {
	if cfg.StoreBackend == "memory" {
		log.Warn().Msg("Using in-memory store; data is lost on restart")
		return memstore.New(), nil
	}

	if err := db.InitDB(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, db.DB.Close)
	if err := db.Migrate(db.DB); err != nil {
		return nil, err
	}
	return db.NewStore(db.DB), nil
}

func (a *App) openBlobs(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	if cfg.StorageBackend == "s3" {
		return blob.NewS3(ctx, blob.S3Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKeyID:  cfg.S3AccessKeyID,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
			PresignTTL:   cfg.S3PresignTTL,
		})
	}

	local, err := blob.NewLocal(cfg.LocalStoragePath, cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	a.Files = local
	return local, nil
}

func (a *App) openLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, error) {
	rules := cfg.RateLimitRules()
	if cfg.RateLimitBackend == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
		return ratelimit.NewRedis(rdb, rules), nil
	}

	mem := ratelimit.NewMemory(rules)
	mem.StartJanitor(ctx)
	return mem, nil
}

// RedisOpt returns the asynq connection settings.
func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("error closing resource")
		}
	}
	a.closers = nil
}
