// Package sqlite implements the accounting storage on a SQLite database file.
// Mutations run in a transaction that is only committed by Commit(true).
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ceems-dev/acctmgr/pkg/acctmgr/storage"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/storage/migrator"
	"github.com/mattn/go-sqlite3"
	"github.com/wneessen/go-fileperm"
)

// Directory containing DB migrations.
const migrationsDir = "migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Ref: https://github.com/mattn/go-sqlite3/issues/1145#issuecomment-1519012055
var defaultOpts = map[string]string{
	"_busy_timeout": "5000",
	"_journal_mode": "WAL",
	"_txlock":       "immediate",
}

// Config of the SQLite storage.
type Config struct {
	Path   string
	Logger *slog.Logger
}

// Store is the SQLite accounting storage.
type Store struct {
	logger *slog.Logger
	path   string
	db     *sql.DB

	mu sync.Mutex
	tx *sql.Tx
}

var _ storage.Storage = (*Store)(nil)

// Make DSN from DB file path and opts map.
func makeDSN(filePath string, opts map[string]string) string {
	optsSlice := make([]string, 0, len(opts))
	for opt, val := range opts {
		optsSlice = append(optsSlice, fmt.Sprintf("%s=%s", opt, val))
	}

	return fmt.Sprintf("file:%s?%s", filePath, strings.Join(optsSlice, "&"))
}

// checkFile creates the DB file when it does not exist and checks the current
// user can read and write it.
func checkFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return fmt.Errorf("failed to create DB directory: %w", err)
		}

		file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
		if err != nil {
			return fmt.Errorf("failed to create DB file: %w", err)
		}

		file.Close()
	}

	perms, err := fileperm.New(path)
	if err != nil {
		return fmt.Errorf("failed to get DB file permissions: %w", err)
	}

	if !perms.UserWriteReadable() {
		return fmt.Errorf("%w: %s is not readable and writable", storage.ErrPermissionDenied, path)
	}

	return nil
}

// Open opens the DB file, creating it when missing, and applies schema migrations.
func Open(ctx context.Context, c Config) (*Store, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if c.Path == "" {
		return nil, errors.New("storage path is empty")
	}

	if err := checkFile(c.Path); err != nil {
		return nil, err
	}

	db, err := sql.Open(DriverName, makeDSN(c.Path, defaultOpts))
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}

	// A single connection keeps the open transaction visible to every query
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()

		return nil, translateErr(err)
	}

	m, err := migrator.New(migrationsFS, migrationsDir, logger)
	if err != nil {
		db.Close()

		return nil, err
	}

	if _, err := m.ApplyMigrations(db); err != nil {
		db.Close()

		return nil, err
	}

	logger.Debug("Accounting storage opened", "path", c.Path)

	return &Store{logger: logger, path: c.Path, db: db}, nil
}

// txn returns the open transaction, beginning one when needed.
func (s *Store) txn(ctx context.Context) (*sql.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, storage.ErrClosed
	}

	if s.tx != nil {
		return s.tx, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, translateErr(err)
	}

	s.tx = tx

	return tx, nil
}

// Commit commits the open transaction when persist is true and rolls it back
// otherwise.
func (s *Store) Commit(_ context.Context, persist bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return storage.ErrClosed
	}

	if s.tx == nil {
		return nil
	}

	tx := s.tx
	s.tx = nil

	if persist {
		if err := tx.Commit(); err != nil {
			return translateErr(err)
		}

		s.logger.Debug("Changes committed", "path", s.path)

		return nil
	}

	if err := tx.Rollback(); err != nil {
		return translateErr(err)
	}

	s.logger.Debug("Changes rolled back", "path", s.path)

	return nil
}

// Close rolls back uncommitted changes and closes the DB.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	var errs error

	if s.tx != nil {
		if err := s.tx.Rollback(); err != nil {
			errs = errors.Join(errs, err)
		}

		s.tx = nil
	}

	errs = errors.Join(errs, s.db.Close())
	s.db = nil

	return errs
}

// translateErr maps SQLite errors onto storage errors.
func translateErr(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code { //nolint:exhaustive
		case sqlite3.ErrReadonly, sqlite3.ErrPerm, sqlite3.ErrAuth:
			return fmt.Errorf("%w: %w", storage.ErrPermissionDenied, err)
		}
	}

	return err
}
