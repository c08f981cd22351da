package main

import (
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"podcastr/internal/app"
	"podcastr/internal/config"
	"podcastr/internal/logger"
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

	scheduler := asynq.NewScheduler(
		app.RedisOpt(cfg),
		&asynq.SchedulerOpts{},
	)

	task, err := tasks.NewSweepBlobsTask()
	if err != nil {
		log.Fatal().Err(err).Msg("could not create task")
	}

	if _, err := scheduler.Register(cfg.BlobSweepSchedule, task); err != nil {
		log.Fatal().Err(err).Msg("could not register task")
	}

	log.Info().Str("commit", CommitSHA).Str("schedule", cfg.BlobSweepSchedule).Msg("Scheduler starting")
	if err := scheduler.Run(); err != nil {
		log.Fatal().Err(err).Msg("could not run scheduler")
	}
}
