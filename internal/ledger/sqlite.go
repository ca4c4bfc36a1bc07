package ledger

import (
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	logx "github.com/suprun/ck-blackout-bot/pkg/logx"
)

// sqliteLedger is the alternative driver for deployments that already run
// SQLite. Same contract as the file driver; eviction happens in SQL.
type sqliteLedger struct {
	db  *sql.DB
	log logx.Logger
	cfg Config
}

func openSQLite(cfg Config, log logx.Logger) (Ledger, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS fired (
		key      TEXT PRIMARY KEY,
		fired_at INTEGER NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, err
	}

	l := &sqliteLedger{db: db, log: log, cfg: cfg}

	// Retention prune on open, mirroring the file driver's load-time prune.
	cutoff := time.Now().Add(-cfg.Retention).UnixMilli()
	if _, err := db.Exec(`DELETE FROM fired WHERE fired_at < ?`, cutoff); err != nil {
		log.Warn("ledger retention prune failed", logx.Err(err))
	}

	return l, nil
}

func (l *sqliteLedger) Seen(key string) bool {
	var one int
	err := l.db.QueryRow(`SELECT 1 FROM fired WHERE key = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		l.log.Warn("ledger read failed; treating as unseen", logx.Err(err))
		return false
	}
	return true
}

func (l *sqliteLedger) Record(key string) error {
	if key == "" {
		return nil
	}
	_, err := l.db.Exec(
		`INSERT INTO fired(key, fired_at) VALUES(?, ?) ON CONFLICT(key) DO NOTHING`,
		key, time.Now().UnixMilli(),
	)
	if err != nil {
		return err
	}
	// Oldest-first eviction past the cap.
	_, err = l.db.Exec(`DELETE FROM fired WHERE key NOT IN (
		SELECT key FROM fired ORDER BY fired_at DESC LIMIT ?
	)`, l.cfg.MaxEntries)
	return err
}

func (l *sqliteLedger) Len() int {
	var n int
	if err := l.db.QueryRow(`SELECT COUNT(*) FROM fired`).Scan(&n); err != nil {
		return 0
	}
	return n
}

func (l *sqliteLedger) Close() error { return l.db.Close() }
