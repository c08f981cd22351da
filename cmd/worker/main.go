package main

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"podcastr/internal/app"
	"podcastr/internal/config"
	"podcastr/internal/logger"
	"podcastr/internal/worker"
	"podcastr/pkg/tasks"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if _, err := logger.New(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatal().Err(err).Msg("invalid log settings")
	}

	client := asynq.NewClient(app.RedisOpt(cfg))
	defer client.Close()

	a, err := app.New(context.Background(), cfg, client)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize")
	}
	defer a.Close()

	srv := asynq.NewServer(
		app.RedisOpt(cfg),
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				"default": 1,
			},
			RetryDelayFunc: worker.RetryDelay,
		},
	)

	mux := asynq.NewServeMux()
	taskHandler := worker.NewTaskHandler(a.Service, cfg.BlobSweepGrace, cfg.BlobSweepBatch)

	mux.HandleFunc(tasks.TypeDeleteBlob, taskHandler.HandleDeleteBlobTask)
	mux.HandleFunc(tasks.TypeSweepBlobs, taskHandler.HandleSweepBlobsTask)

	log.Info().Str("commit", CommitSHA).Msg("Worker starting")
	if err := srv.Run(mux); err != nil {
		log.Fatal().Err(err).Msg("could not run server")
	}
}
