package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mcdev12/pooldraft/go/internal/config"
	"github.com/mcdev12/pooldraft/go/internal/dbconfig"
	"github.com/mcdev12/pooldraft/go/internal/draft/draft"
	"github.com/mcdev12/pooldraft/go/internal/draft/outbox"
	"github.com/mcdev12/pooldraft/go/internal/draft/pick"
	"github.com/mcdev12/pooldraft/go/internal/draft/pool"
	"github.com/mcdev12/pooldraft/go/internal/draft/repository"
	"github.com/mcdev12/pooldraft/go/internal/draft/repository/memory"
	"github.com/rs/zerolog/log"
)

// Store is everything the server wires on top of storage. Both the SQL
// repository and the in-memory store satisfy it.
type Store interface {
	draft.DraftRepository
	pick.PickRepository
	pool.ResourceReader
	outbox.Store
	ListActiveDeadlines(ctx context.Context) ([]repository.ActiveDeadline, error)
}

type storage struct {
	Store
	db       *sql.DB         // nil for the memory driver
	notifier outbox.Notifier // nil means the relay polls
	closers  []func() error
}

func (s *storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Error().Err(err).Msg("failed to close storage")
		}
	}
}

// setupDatabase opens the configured store and applies the schema. The outbox
// notifier is only opened when this process runs the relay.
func setupDatabase(ctx context.Context, cfg *config.Config) (*storage, error) {
	if cfg.Database.Driver == dbconfig.DriverMemory {
		store := memory.NewStore()
		notifier := store.Notifier()
		log.Warn().Msg("using the in-memory store - nothing is persisted")
		return &storage{Store: store, notifier: notifier, closers: []func() error{notifier.Close}}, nil
	}

	db, err := repository.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	s := &storage{db: db, closers: []func() error{db.Close}}

	repo, err := repository.NewRepository(db, cfg.Database.Driver)
	if err != nil {
		s.Close()
		return nil, err
	}
	repo.SetNotifyChannel(cfg.Outbox.NotifyChannel)
	if err := repo.Migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	s.Store = repo

	if !cfg.Server.Embedded {
		return s, nil
	}
	if !cfg.Database.IsPostgres() {
		log.Warn().Str("driver", cfg.Database.Driver).Msg("no LISTEN/NOTIFY support - relay will poll")
		return s, nil
	}

	pqn, err := outbox.NewPQNotifier(cfg.Database.PostgresURL(), cfg.Outbox.NotifyChannel)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}
	s.notifier = pqn
	s.closers = append(s.closers, pqn.Close)
	return s, nil
}
