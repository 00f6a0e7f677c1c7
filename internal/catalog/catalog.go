// Package catalog is the demo product database migrated by the hostkit CLI.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aponysus/hostkit/dbinit"
	"github.com/aponysus/hostkit/host"
	"github.com/aponysus/hostkit/internal/catalog/migrations"
	"github.com/aponysus/hostkit/migrate"
	"github.com/aponysus/hostkit/storage"
)

// Name is the context name used in logs and the "dbinit.catalog" policy key.
const Name = "catalog"

type Product struct {
	ID         int64
	SKU        string
	Name       string
	PriceCents int64
}

// Store is the catalog context. One is created per scope over the shared pool.
type Store struct {
	db  *storage.DB
	now func() time.Time
}

func NewStore(db *storage.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) DB() *storage.DB { return s.db }

// AddProduct inserts p unless its SKU already exists. It reports whether a row was added.
func (s *Store) AddProduct(ctx context.Context, p Product) (bool, error) {
	if p.SKU == "" || p.Name == "" {
		return false, errors.New("product sku and name are required")
	}
	ph := s.db.Driver.Placeholder
	stmt := fmt.Sprintf(
		"INSERT INTO products (id, sku, name, price_cents, created_at) VALUES (%s, %s, %s, %s, %s) ON CONFLICT (sku) DO NOTHING",
		ph(1), ph(2), ph(3), ph(4), ph(5))
	res, err := s.db.ExecContext(ctx, stmt, p.ID, p.SKU, p.Name, p.PriceCents, s.now().UTC().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("insert product %s: %w", p.SKU, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert product %s: %w", p.SKU, err)
	}
	return n > 0, nil
}

func (s *Store) CountProducts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// ListProducts returns products ordered by SKU.
func (s *Store) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, sku, name, price_cents FROM products ORDER BY sku")
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.PriceCents); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Register adds the shared pool (singleton) and the Store (scoped) to services.
func Register(services *host.Services, cfg storage.Config) {
	host.AddSingleton(services, func(context.Context, host.Resolver) (*storage.DB, error) {
		return storage.Open(cfg)
	})
	host.AddScoped(services, func(ctx context.Context, r host.Resolver) (*Store, error) {
		db, err := host.Get[*storage.DB](ctx, r)
		if err != nil {
			return nil, err
		}
		return NewStore(db), nil
	})
}

// Migrator applies the embedded catalog schema.
func Migrator(logger *slog.Logger) *migrate.SQL {
	return migrate.New(migrations.FS, migrate.WithLogger(logger))
}

// Target resolves the Store from the initialization scope and migrates it.
func Target(logger *slog.Logger) dbinit.Target[*Store] {
	m := Migrator(logger)
	return dbinit.Target[*Store]{
		Name: Name,
		Open: func(ctx context.Context, scope host.Scope) (*Store, error) {
			return host.Get[*Store](ctx, scope)
		},
		Migrate: func(ctx context.Context, s *Store) error {
			return m.Migrate(ctx, s.db)
		},
	}
}

var demoProducts = []Product{
	{ID: 1, SKU: "HK-001", Name: "Starter kit", PriceCents: 1999},
	{ID: 2, SKU: "HK-002", Name: "Retry cable", PriceCents: 499},
	{ID: 3, SKU: "HK-003", Name: "Migration manual", PriceCents: 2999},
}

// Seed inserts the demo products. Existing SKUs are left alone, so reseeding is harmless.
func Seed(ctx context.Context, s *Store, _ host.Resolver) error {
	for _, p := range demoProducts {
		if _, err := s.AddProduct(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

var _ dbinit.Seeder[*Store] = Seed
