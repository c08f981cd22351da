// Package db is the Postgres implementation of the podcast store.
package db

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // The database driver
	"github.com/rs/zerolog/log"

	"podcastr/internal/podcast"
)

// DB is the global database connection.
var DB *sqlx.DB

// InitDB opens the database connection and verifies it with a ping.
func InitDB(databaseURL string) error {
	if databaseURL == "" {
		return errors.New("DATABASE_URL is not set")
	}

	conn, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return err
	}
	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	if err = conn.Ping(); err != nil {
		conn.Close()
		return err
	}

	DB = conn
	log.Info().Msg("Database connection established")
	return nil
}

// Store runs podcast, user and blob outbox queries against a database.
type Store struct {
	db *sqlx.DB
}

var _ podcast.Store = (*Store)(nil)

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
