package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	// Drivers are selected by the connection URL scheme.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/tern-data/sqlport/core/export"
	"github.com/tern-data/sqlport/internal/logger"
)

// Store is one connection to a relational data source, resolved from a
// URL-style connection string. Supported schemes: postgres/postgresql
// (via pgx) and sqlite (cgo-free, file or :memory:).
type Store struct {
	connURL string
	driver  string
	dsn     string
	db      *sql.DB
}

// NewStore resolves the driver from the connection URL scheme. No network
// activity happens until Connect.
func NewStore(connURL string) (*Store, error) {
	driver, dsn, err := resolveDriver(connURL)
	if err != nil {
		return nil, err
	}
	return &Store{connURL: connURL, driver: driver, dsn: dsn}, nil
}

// Connect opens the database and verifies connectivity with a ping.
func (s *Store) Connect() error {
	if s.db != nil {
		return nil // already connected
	}

	logger.Debug("Attempting to connect to data source: %s", sanitizeURL(s.connURL))

	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return export.Errorf(export.ErrConnection, "unable to open database: %w", err)
	}

	if s.driver == "sqlite" {
		// A pooled :memory: database is a different database per
		// connection; pin the pool to one.
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return export.Errorf(export.ErrConnection, "unable to ping database: %w", err)
	}

	logger.Debug("Database ping successful")
	s.db = db
	return nil
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	logger.Debug("Closing database connection...")
	err := s.db.Close()
	s.db = nil
	return err
}

// Stream executes sqlText and returns the result as a lazy batch sequence.
// An empty result still yields one zero-row batch carrying the statement's
// column metadata.
func (s *Store) Stream(ctx context.Context, sqlText string, batchSize int) (export.BatchSource, error) {
	if s.db == nil {
		return nil, export.Errorf(export.ErrConnection, "database not connected")
	}
	if batchSize <= 0 {
		batchSize = export.DefaultBatchSize
	}

	logger.Debug("Executing SQL query (batch size %d)...", batchSize)
	start := time.Now()

	rows, err := s.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, export.Errorf(export.ErrQuery, "query execution failed: %w", err)
	}

	src, err := newBatchStream(rows, batchSize)
	if err != nil {
		rows.Close()
		return nil, err
	}

	logger.Debug("Query accepted in %v, streaming result", time.Since(start))
	return src, nil
}

// resolveDriver maps a connection URL scheme onto a registered driver and
// its DSN form.
func resolveDriver(connURL string) (driver, dsn string, err error) {
	scheme, rest, found := strings.Cut(connURL, "://")
	if !found || scheme == "" {
		return "", "", fmt.Errorf("connection URL %q has no scheme (expected postgres:// or sqlite://)", connURL)
	}

	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return "pgx", connURL, nil
	case "sqlite":
		if rest == "" {
			return "", "", fmt.Errorf("sqlite connection URL %q is missing a path (use sqlite://file.db or sqlite://:memory:)", connURL)
		}
		return "sqlite", rest, nil
	default:
		return "", "", fmt.Errorf("unsupported connection scheme %q (supported: postgres, postgresql, sqlite)", scheme)
	}
}

// sanitizeURL masks the password inside a connection URL before logging.
func sanitizeURL(connURL string) string {
	u, err := url.Parse(connURL)
	if err != nil {
		return "<invalid-url>"
	}

	var userInfo string
	if u.User != nil {
		username := u.User.Username()
		if _, hasPwd := u.User.Password(); hasPwd {
			userInfo = fmt.Sprintf("%s:***@", username)
		} else {
			userInfo = fmt.Sprintf("%s@", username)
		}
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	return fmt.Sprintf("%s://%s%s%s", u.Scheme, userInfo, u.Host, path)
}
