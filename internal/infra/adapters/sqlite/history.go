// Package sqlite - локальный журнал звонков агента.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/qrave1/PeerCall/internal/call"
)

const schema = `
CREATE TABLE IF NOT EXISTS call_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT    NOT NULL,
	peer_id     TEXT    NOT NULL,
	receiver_id TEXT    NOT NULL,
	role        TEXT    NOT NULL,
	call_type   TEXT    NOT NULL,
	status      TEXT    NOT NULL,
	reason      TEXT    NOT NULL,
	duration    INTEGER NOT NULL,
	started_at  INTEGER NOT NULL,
	ended_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS call_history_ended_idx ON call_history (ended_at DESC);
`

// Entry - строка журнала, время в unix миллисекундах
type Entry struct {
	ID         int64  `db:"id"`
	SessionID  string `db:"session_id"`
	PeerID     string `db:"peer_id"`
	ReceiverID string `db:"receiver_id"`
	Role       string `db:"role"`
	CallType   string `db:"call_type"`
	Status     string `db:"status"`
	Reason     string `db:"reason"`
	// Duration в секундах
	Duration  int   `db:"duration"`
	StartedAt int64 `db:"started_at"`
	EndedAt   int64 `db:"ended_at"`
}

func (e Entry) Ended() time.Time {
	return time.UnixMilli(e.EndedAt)
}

// History реализует call.LogSink
type History struct {
	db *sqlx.DB
}

var _ call.LogSink = (*History)(nil)

func OpenHistory(path string) (*History, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	// один писатель, без SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err = db.Exec(`PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure history: %w", err)
	}

	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}

	return &History{db: db}, nil
}

func (h *History) Record(ctx context.Context, log call.Log) error {
	entry := Entry{
		SessionID:  log.SessionID,
		PeerID:     log.PeerID,
		ReceiverID: log.ReceiverID,
		Role:       log.Role.String(),
		CallType:   string(log.CallType),
		Status:     string(log.Status),
		Reason:     log.Reason.String(),
		Duration:   int(log.Duration.Seconds()),
		StartedAt:  log.StartedAt.UnixMilli(),
		EndedAt:    log.EndedAt.UnixMilli(),
	}

	_, err := h.db.NamedExecContext(
		ctx,
		`INSERT INTO call_history
			(session_id, peer_id, receiver_id, role, call_type, status, reason, duration, started_at, ended_at)
		VALUES
			(:session_id, :peer_id, :receiver_id, :role, :call_type, :status, :reason, :duration, :started_at, :ended_at)`,
		entry,
	)
	if err != nil {
		return fmt.Errorf("insert call history: %w", err)
	}

	return nil
}

// Recent - последние записи, новые первыми
func (h *History) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	var entries []Entry

	err := h.db.SelectContext(
		ctx,
		&entries,
		`SELECT id, session_id, peer_id, receiver_id, role, call_type, status, reason, duration, started_at, ended_at
		FROM call_history ORDER BY ended_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select call history: %w", err)
	}

	return entries, nil
}

func (h *History) Close() error {
	return h.db.Close()
}
