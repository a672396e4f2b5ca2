package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"

	logx "reviewbot/pkg/logx"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS deliveries (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	at         TEXT    NOT NULL,
	target     TEXT    NOT NULL,
	thread_id  INTEGER NOT NULL DEFAULT 0,
	outcome    TEXT    NOT NULL,
	attempts   INTEGER NOT NULL DEFAULT 0,
	message_id INTEGER NOT NULL DEFAULT 0,
	text       TEXT    NOT NULL,
	err        TEXT,
	took_ms    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS deliveries_at ON deliveries(at);
CREATE TABLE IF NOT EXISTS dedup (
	key   TEXT PRIMARY KEY,
	until INTEGER NOT NULL
);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "create storage dir %s", filepath.Dir(path))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, pruneEvery: 500}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = time.Second
	}
	applyPragmas(db, busy, log)

	if _, err := db.ExecContext(context.Background(), sqliteSchema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "sqlite schema")
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return st, nil
}

// applyPragmas tunes the connection. Failures leave the store usable with
// sqlite defaults and are logged at warn.
func applyPragmas(db *sql.DB, busy time.Duration, log logx.Logger) {
	exec := func(pragma string) {
		if _, err := db.Exec(pragma); err != nil {
			log.Warn("sqlite pragma failed", logx.String("pragma", pragma), logx.Err(err))
		}
	}
	exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))

	// journal_mode reports the mode actually in effect.
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode = WAL").Scan(&mode); err != nil {
		log.Warn("sqlite pragma failed", logx.String("pragma", "journal_mode = WAL"), logx.Err(err))
	} else if !strings.EqualFold(mode, "wal") {
		log.Warn("sqlite WAL not enabled", logx.String("journal_mode", mode))
	}

	exec("PRAGMA synchronous = NORMAL")
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendDelivery(ctx context.Context, d Delivery) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if d.At.IsZero() {
		d.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries(at, target, thread_id, outcome, attempts, message_id, text, err, took_ms)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		d.At.UTC().Format(time.RFC3339Nano), d.Target, d.ThreadID, d.Outcome, d.Attempts,
		d.MessageID, d.Text, nullStr(d.Error), d.TookMS,
	)
	return errors.Wrap(err, "insert delivery")
}

func (s *sqliteStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if key == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dedup(key, until) VALUES(?,?)
		 ON CONFLICT(key) DO UPDATE SET until=excluded.until`,
		key, until.UnixMilli(),
	)
	if err == nil && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		if perr := s.pruneExpired(pctx); perr != nil {
			s.log.Debug("dedup prune failed", logx.Err(perr))
		}
		cancel()
	}
	return errors.Wrap(err, "upsert dedup")
}

func (s *sqliteStore) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	if s == nil || s.db == nil {
		return time.Time{}, false, ErrDisabled
	}
	if key == "" {
		return time.Time{}, false, nil
	}
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT until FROM dedup WHERE key = ?`, key).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, errors.Wrap(err, "select dedup")
	}
	return time.UnixMilli(ms), true, nil
}

func (s *sqliteStore) pruneExpired(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dedup WHERE until < ?`, time.Now().UnixMilli())
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
