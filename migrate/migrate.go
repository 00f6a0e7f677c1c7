// Package migrate applies embedded SQL migration files.
//
// Files named *.sql are applied in lexical order, each at most once and
// inside its own transaction. Only the "-- +migrate Up" section of a file is
// executed when the marker is present. Statements run one at a time; one that
// fails because its object already exists is skipped and the rest of the file
// still runs. Applied files are recorded in the schema_migrations table.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aponysus/hostkit/internal/logging"
	"github.com/aponysus/hostkit/storage"
)

const defaultTable = "schema_migrations"

// Migrator brings a database schema up to date.
type Migrator interface {
	Migrate(ctx context.Context, db *storage.DB) error
}

// Record is one applied migration.
type Record struct {
	Name      string
	AppliedAt time.Time
}

// SQL is a Migrator over an fs.FS of SQL files.
type SQL struct {
	fsys   fs.FS
	root   string
	table  string
	logger *slog.Logger
	now    func() time.Time
}

var _ Migrator = (*SQL)(nil)

type Option func(*SQL)

// WithRoot reads migrations from dir inside the filesystem.
func WithRoot(dir string) Option {
	return func(m *SQL) { m.root = dir }
}

// WithTable overrides the bookkeeping table name.
func WithTable(name string) Option {
	return func(m *SQL) { m.table = name }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *SQL) { m.logger = l }
}

// New returns a Migrator reading *.sql files from fsys.
func New(fsys fs.FS, opts ...Option) *SQL {
	m := &SQL{fsys: fsys}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if strings.TrimSpace(m.root) == "" {
		m.root = "."
	}
	if strings.TrimSpace(m.table) == "" {
		m.table = defaultTable
	}
	if m.logger == nil {
		m.logger = logging.NewNop()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Files lists the migration files in apply order.
func (m *SQL) Files() ([]string, error) {
	if m.fsys == nil {
		return nil, errors.New("migration filesystem is required")
	}
	entries, err := fs.ReadDir(m.fsys, m.root)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// Migrate applies every file not yet recorded. It is safe to call repeatedly.
func (m *SQL) Migrate(ctx context.Context, db *storage.DB) error {
	if db == nil || db.DB == nil {
		return errors.New("sql db is required")
	}
	files, err := m.Files()
	if err != nil {
		return err
	}
	if err := m.ensureTable(ctx, db); err != nil {
		return err
	}

	applied, err := m.appliedSet(ctx, db)
	if err != nil {
		return err
	}

	for _, file := range files {
		if _, ok := applied[file]; ok {
			continue
		}
		if err := m.apply(ctx, db, file); err != nil {
			return err
		}
		m.logger.Debug("migration applied", "file", file)
	}
	return nil
}

// Pending lists files that Migrate would apply.
func (m *SQL) Pending(ctx context.Context, db *storage.DB) ([]string, error) {
	files, err := m.Files()
	if err != nil {
		return nil, err
	}
	if err := m.ensureTable(ctx, db); err != nil {
		return nil, err
	}
	applied, err := m.appliedSet(ctx, db)
	if err != nil {
		return nil, err
	}
	var pending []string
	for _, f := range files {
		if _, ok := applied[f]; !ok {
			pending = append(pending, f)
		}
	}
	return pending, nil
}

// Applied returns the recorded migrations ordered by name.
func (m *SQL) Applied(ctx context.Context, db *storage.DB) ([]Record, error) {
	if err := m.ensureTable(ctx, db); err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, "SELECT name, applied_at FROM "+m.table+" ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var name string
		var millis int64
		if err := rows.Scan(&name, &millis); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		out = append(out, Record{Name: name, AppliedAt: time.UnixMilli(millis).UTC()})
	}
	return out, rows.Err()
}

func (m *SQL) ensureTable(ctx context.Context, db *storage.DB) error {
	createSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    applied_at BIGINT NOT NULL
);
`, m.table)
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	return nil
}

func (m *SQL) appliedSet(ctx context.Context, db *storage.DB) (map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM "+m.table)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[name] = struct{}{}
	}
	return applied, rows.Err()
}

func (m *SQL) apply(ctx context.Context, db *storage.DB, file string) error {
	content, err := fs.ReadFile(m.fsys, path.Join(m.root, file))
	if err != nil {
		return fmt.Errorf("read migration %s: %w", file, err)
	}

	upSQL := ExtractUp(string(content))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration transaction %s: %w", file, err)
	}

	for i, stmt := range SplitStatements(upSQL) {
		if err := execTolerant(ctx, tx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s statement %d: %w", file, i+1, err)
		}
	}

	if err := m.record(ctx, tx, db.Driver, file); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", file, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", file, err)
	}
	return nil
}

const savepoint = "hostkit_migrate_stmt"

// execTolerant runs stmt inside a savepoint. An "already exists" failure is
// rolled back to the savepoint and ignored, leaving the transaction usable on
// postgres, where any failed statement otherwise aborts it.
func execTolerant(ctx context.Context, tx *sql.Tx, stmt string) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		if !IsAlreadyExists(err) {
			return err
		}
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
			return errors.Join(err, rbErr)
		}
	}
	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (m *SQL) record(ctx context.Context, tx *sql.Tx, driver storage.Driver, file string) error {
	stmt := fmt.Sprintf("INSERT INTO %s (name, applied_at) VALUES (%s, %s) ON CONFLICT (name) DO NOTHING",
		m.table, driver.Placeholder(1), driver.Placeholder(2))
	_, err := tx.ExecContext(ctx, stmt, file, m.now().UTC().UnixMilli())
	return err
}

const (
	upMarker   = "-- +migrate Up"
	downMarker = "-- +migrate Down"
)

// ExtractUp returns the SQL in the "-- +migrate Up" section, or the whole
// content when there is no marker.
func ExtractUp(content string) string {
	upIdx := strings.Index(content, upMarker)
	if upIdx == -1 {
		return content
	}
	rest := content[upIdx+len(upMarker):]
	if downIdx := strings.Index(rest, downMarker); downIdx != -1 {
		return rest[:downIdx]
	}
	return rest
}

// IsAlreadyExists reports whether err indicates idempotent DDL that already ran.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "already exists") || strings.Contains(value, "duplicate column name")
}

// SplitStatements splits a script on top-level semicolons. Quoted strings,
// quoted identifiers, comments and postgres dollar-quoted bodies are kept
// intact. Statements holding only comments or whitespace are dropped.
func SplitStatements(script string) []string {
	var (
		out     []string
		start   int
		hasCode bool
	)
	flush := func(end int) {
		if hasCode {
			if stmt := strings.TrimSpace(script[start:end]); stmt != "" {
				out = append(out, stmt)
			}
		}
		start = end + 1
		hasCode = false
	}

	for i := 0; i < len(script); i++ {
		c := script[i]
		switch {
		case c == '-' && strings.HasPrefix(script[i:], "--"):
			if nl := strings.IndexByte(script[i:], '\n'); nl != -1 {
				i += nl
			} else {
				i = len(script)
			}
		case c == '/' && strings.HasPrefix(script[i:], "/*"):
			if end := strings.Index(script[i+2:], "*/"); end != -1 {
				i += end + 3
			} else {
				i = len(script)
			}
		case c == '\'' || c == '"' || c == '`':
			hasCode = true
			i = skipQuoted(script, i, c)
		case c == '$':
			hasCode = true
			if tag, ok := dollarTag(script[i:]); ok {
				if end := strings.Index(script[i+len(tag):], tag); end != -1 {
					i += len(tag) + end + len(tag) - 1
				} else {
					i = len(script)
				}
			}
		case c == ';':
			flush(i)
		case c != ' ' && c != '\t' && c != '\n' && c != '\r':
			hasCode = true
		}
	}
	if start < len(script) {
		flush(len(script))
	}
	return out
}

// skipQuoted returns the index of the quote closing the one at i. A doubled
// quote is an escaped quote.
func skipQuoted(s string, i int, q byte) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] != q {
			continue
		}
		if j+1 < len(s) && s[j+1] == q {
			j++
			continue
		}
		return j
	}
	return len(s)
}

// dollarTag matches a postgres dollar-quote opener such as $$ or $body$.
func dollarTag(s string) (string, bool) {
	for j := 1; j < len(s); j++ {
		c := s[j]
		switch {
		case c == '$':
			return s[:j+1], true
		case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (j > 1 && c >= '0' && c <= '9'):
		default:
			return "", false
		}
	}
	return "", false
}
