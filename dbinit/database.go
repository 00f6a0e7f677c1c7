package dbinit

import (
	"context"

	"github.com/aponysus/hostkit/host"
	"github.com/aponysus/hostkit/migrate"
	"github.com/aponysus/hostkit/storage"
)

// Database returns a Target that resolves a *storage.DB from the scope and
// applies m to it.
func Database(name string, m migrate.Migrator) Target[*storage.DB] {
	return Target[*storage.DB]{
		Name: name,
		Open: func(ctx context.Context, scope host.Scope) (*storage.DB, error) {
			return host.Get[*storage.DB](ctx, scope)
		},
		Migrate: func(ctx context.Context, db *storage.DB) error {
			return m.Migrate(ctx, db)
		},
	}
}
