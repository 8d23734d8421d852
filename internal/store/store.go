package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

//go:embed schema.sql
var schemaSQL string

// migration upgrades a catalog created at version-1 to version.
type migration struct {
	version int
	name    string
	stmt    string
}

// migrations run in order against databases whose user_version is below
// their version. schema.sql already describes the latest layout, so every
// statement must be idempotent.
var migrations = []migration{
	{1, "catalog sequence index", `CREATE INDEX IF NOT EXISTS idx_relir_tables_seq ON relir_tables(seq)`},
}

func schemaVersion() int {
	return migrations[len(migrations)-1].version
}

// pragma is a connection setting and the value SQLite reports once it
// applies.
type pragma struct {
	name     string
	value    string
	reported string
}

// Store holds leaf tables and their catalog in one SQLite database.
type Store struct {
	db   *sql.DB
	stbl sq.StatementBuilderType
}

type options struct {
	busyTimeout time.Duration
}

// Option configures Open.
type Option func(*options)

// WithBusyTimeout sets how long a statement waits on a locked database.
// The default is five seconds.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) { o.busyTimeout = d }
}

func (o options) pragmas() []pragma {
	ms := fmt.Sprint(o.busyTimeout.Milliseconds())
	return []pragma{
		{"journal_mode", "WAL", "wal"},
		{"synchronous", "NORMAL", "1"},
		{"busy_timeout", ms, ms},
		{"foreign_keys", "ON", "1"},
	}
}

// Open creates or opens the SQLite database at path, then brings its
// catalog up to the current schema version. Leaf tables already in the
// database are kept.
//
// Connections run in WAL mode with NORMAL synchronous writes and foreign
// keys enforced. Opening the same path again is a no-op on its contents.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{busyTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	// One connection: SQLite serializes writers, and pragmas are per
	// connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, stbl: sq.StatementBuilder.RunWith(db)}
	if err := s.init(context.Background(), o); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return s, nil
}

func (s *Store) init(ctx context.Context, o options) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, "connect")
	}
	for _, p := range o.pragmas() {
		stmt := fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "execute %q", stmt)
		}
	}
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return errors.Wrap(err, "apply schema")
	}
	return s.migrate(ctx)
}

// migrate applies the migrations the database has not seen, each in its
// own transaction together with the user_version bump.
func (s *Store) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return errors.Wrap(err, "read user_version")
	}
	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		err := s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.stmt); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version))
			return err
		})
		if err != nil {
			return errors.Wrapf(err, "migrate to v%d (%s)", m.version, m.name)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// checkPragma reports whether a setting reads back as expected.
func (s *Store) checkPragma(name, expected string) error {
	var got string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
		return errors.Wrapf(err, "read pragma %s", name)
	}
	if got != expected {
		return fmt.Errorf("pragma %s = %q, want %q", name, got, expected)
	}
	return nil
}
