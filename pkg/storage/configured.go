package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/levenlabs/go-lflag"
)

// DSN is the subset of config.Config this package needs, kept as a tiny
// interface so storage doesn't import pkg/config and create a cycle.
type DSN interface {
	DatabaseDSN() string
}

// Configured returns a Provider whose connection is opened and migrated
// once lflag.Configure() runs. cfg's DatabaseDSN() is only read inside
// the lflag.Do callback, after every package's own flags (including
// pkg/config's database-url) have been parsed and populated, matching
// the teacher's own storage.Configured() pattern of deferring the real
// connection while returning a usable handle up front.
func Configured(cfg DSN) Provider {
	var p struct{ Provider }

	lflag.Do(func() {
		dsn := cfg.DatabaseDSN()
		if err := Migrate(dsn); err != nil {
			panic(fmt.Sprintf("storage: migration failed: %v", err))
		}
		pool, err := pgxpool.New(context.Background(), dsn)
		if err != nil {
			panic(fmt.Sprintf("storage: connecting to database: %v", err))
		}
		if err := pool.Ping(context.Background()); err != nil {
			panic(fmt.Sprintf("storage: database unreachable: %v", err))
		}
		p.Provider = NewPostgres(pool)
	})

	return &p
}
