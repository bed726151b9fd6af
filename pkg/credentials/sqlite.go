package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // cgo driver, registered as "sqlite3"
	_ "modernc.org/sqlite"          // pure Go driver, registered as "sqlite"
)

// Supported database/sql driver names.
const (
	DriverModernc = "sqlite"
	DriverCGO     = "sqlite3"
)

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	// Path is the database file path or a "file:" URI.
	Path string

	// Driver selects the database/sql driver, DriverModernc or DriverCGO.
	// Default: DriverModernc
	Driver string

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool

	// BusyTimeout is how long to wait for a lock before failing.
	// Default: 5s
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		Path:        "data/keys.db",
		Driver:      DriverModernc,
		WALMode:     true,
		BusyTimeout: 5 * time.Second,
	}
}

const credentialColumns = `key, added_at, successful_requests, error_requests,
	errors_since_last_success, first_error_at, error_counter_started_at, removed`

// SQLiteStore implements Store on SQLite. Every mutation is a single
// statement on a single writer connection, so outcome transitions are atomic
// and durable when the call returns.
type SQLiteStore struct {
	db        *sql.DB
	config    SQLiteConfig
	logger    *slog.Logger
	closeOnce sync.Once

	now func() time.Time

	listActiveStmt *sql.Stmt
	getStmt        *sql.Stmt
	successStmt    *sql.Stmt
	failureStmt    *sql.Stmt
	removedStmt    *sql.Stmt
	insertStmt     *sql.Stmt
}

// NewSQLiteStore opens the database, applies migrations and prepares the
// statements used on the request path.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if cfg.Driver != DriverModernc && cfg.Driver != DriverCGO {
		return nil, fmt.Errorf("unsupported sqlite driver %q", cfg.Driver)
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	db, err := sql.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite supports a single writer; one connection also keeps the
	// pragmas below in effect for every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:     db,
		config: cfg,
		logger: slog.Default().With("component", "credentials.sqlite"),
		now:    time.Now,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("credential store opened",
		"path", cfg.Path,
		"driver", cfg.Driver,
		"wal_mode", cfg.WALMode,
	)

	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("enable wal: %w", err)
		}
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}

	if err := RunMigrations(s.db); err != nil {
		return err
	}

	return s.prepareStatements()
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.listActiveStmt, err = s.db.Prepare(`
		SELECT ` + credentialColumns + `
		FROM api_keys
		WHERE removed = 0
		ORDER BY errors_since_last_success ASC,
			(successful_requests + error_requests) ASC,
			rowid ASC
	`)
	if err != nil {
		return fmt.Errorf("prepare list active statement: %w", err)
	}

	s.getStmt, err = s.db.Prepare(`SELECT ` + credentialColumns + ` FROM api_keys WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("prepare get statement: %w", err)
	}

	s.successStmt, err = s.db.Prepare(`
		UPDATE api_keys
		SET successful_requests = successful_requests + 1,
			errors_since_last_success = 0,
			first_error_at = NULL,
			error_counter_started_at = NULL
		WHERE key = ?
	`)
	if err != nil {
		return fmt.Errorf("prepare success statement: %w", err)
	}

	s.failureStmt, err = s.db.Prepare(`
		UPDATE api_keys
		SET error_requests = error_requests + 1,
			errors_since_last_success = errors_since_last_success + 1,
			first_error_at = COALESCE(first_error_at, ?),
			error_counter_started_at = COALESCE(error_counter_started_at, ?)
		WHERE key = ?
	`)
	if err != nil {
		return fmt.Errorf("prepare failure statement: %w", err)
	}

	s.removedStmt, err = s.db.Prepare(`UPDATE api_keys SET removed = ? WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("prepare removed statement: %w", err)
	}

	s.insertStmt, err = s.db.Prepare(`INSERT OR IGNORE INTO api_keys (key, added_at) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert statement: %w", err)
	}

	return nil
}

// ListActive returns non-removed credentials in selection order.
func (s *SQLiteStore) ListActive(ctx context.Context) ([]Credential, error) {
	rows, err := s.listActiveStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active credentials: %w", err)
	}
	defer rows.Close()

	creds, err := scanCredentials(rows)
	if err != nil {
		return nil, err
	}

	return Rank(creds), nil
}

// List returns every credential ordered by opts.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]Credential, error) {
	opts = opts.normalize()

	direction := "ASC"
	if opts.Descending {
		direction = "DESC"
	}

	// SortBy is restricted to the column allow-list by normalize.
	query := fmt.Sprintf(`SELECT %s FROM api_keys ORDER BY %s %s, rowid ASC`,
		credentialColumns, string(opts.SortBy), direction)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	return scanCredentials(rows)
}

// Get returns the credential with the given id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Credential, error) {
	c, err := scanCredential(s.getStmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, ErrNotFound
	}
	if err != nil {
		return Credential{}, fmt.Errorf("get credential: %w", err)
	}
	return c, nil
}

// RecordOutcome applies an attempt outcome in one UPDATE statement.
func (s *SQLiteStore) RecordOutcome(ctx context.Context, id string, outcome Outcome) error {
	var (
		result sql.Result
		err    error
	)

	if outcome.Success {
		result, err = s.successStmt.ExecContext(ctx, id)
	} else {
		ts := toUnixSeconds(s.now())
		result, err = s.failureStmt.ExecContext(ctx, ts, ts, id)
	}
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		s.logger.DebugContext(ctx, "outcome for unknown credential ignored",
			"success", outcome.Success,
		)
	}

	return nil
}

// SetRemoved sets the soft-delete flag.
func (s *SQLiteStore) SetRemoved(ctx context.Context, id string, removed bool) (bool, error) {
	// SQLite counts matched rows, so an unchanged flag still reports 1.
	result, err := s.removedStmt.ExecContext(ctx, boolToInt(removed), id)
	if err != nil {
		return false, fmt.Errorf("set removed: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set removed rows affected: %w", err)
	}
	return n > 0, nil
}

// InsertIfAbsent registers a new credential.
func (s *SQLiteStore) InsertIfAbsent(ctx context.Context, id string) (bool, error) {
	result, err := s.insertStmt.ExecContext(ctx, id, toUnixSeconds(s.now()))
	if err != nil {
		return false, fmt.Errorf("insert credential: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert credential rows affected: %w", err)
	}
	return n > 0, nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes prepared statements and the database.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{
			s.listActiveStmt, s.getStmt, s.successStmt,
			s.failureStmt, s.removedStmt, s.insertStmt,
		} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = s.db.Close()
	})
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (Credential, error) {
	var (
		c          Credential
		addedAt    float64
		firstError sql.NullFloat64
		streak     sql.NullFloat64
		removed    int64
	)

	err := row.Scan(
		&c.ID,
		&addedAt,
		&c.SuccessCount,
		&c.ErrorCount,
		&c.ErrorsSinceLastSuccess,
		&firstError,
		&streak,
		&removed,
	)
	if err != nil {
		return Credential{}, err
	}

	c.AddedAt = fromUnixSeconds(addedAt)
	if firstError.Valid {
		t := fromUnixSeconds(firstError.Float64)
		c.FirstErrorAt = &t
	}
	if streak.Valid {
		t := fromUnixSeconds(streak.Float64)
		c.ErrorStreakStartedAt = &t
	}
	c.Removed = removed != 0

	return c, nil
}

func scanCredentials(rows *sql.Rows) ([]Credential, error) {
	var creds []Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return creds, nil
}

// Timestamps are stored as fractional unix seconds.
func toUnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(f float64) time.Time {
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
