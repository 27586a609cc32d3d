package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/p-blackswan/colony/internal/schema"
)

// Archive is the durable record of everything published to the environment
// bus. It is write-behind only — the in-memory Log remains the source of
// truth for deliberation; the archive exists for inspection and replay.
type Archive struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewArchive opens (or creates) the SQLite database and applies migrations.
func NewArchive(dsn string, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("wal mode: %w", err)
	}

	a := &Archive{db: db, logger: logger}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return a, nil
}

func (a *Archive) migrate() error {
	_, err := a.db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id         TEXT PRIMARY KEY,
			role       TEXT NOT NULL,
			cause_by   TEXT NOT NULL,
			send_to    TEXT NOT NULL DEFAULT '',
			content    TEXT NOT NULL,
			instruct   TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_messages_cause_by ON messages(cause_by);
	`)
	return err
}

// Save persists a published message. Saving the same message twice is a
// no-op (the bus already deduplicates; the conflict clause keeps the
// archive idempotent under replays).
func (a *Archive) Save(ctx context.Context, m schema.Message) error {
	var instruct string
	if len(m.Instruct) > 0 {
		raw, err := json.Marshal(m.Instruct)
		if err != nil {
			return fmt.Errorf("archive: marshal instruct: %w", err)
		}
		instruct = string(raw)
	}

	_, err := a.db.ExecContext(ctx,
		`INSERT INTO messages (id, role, cause_by, send_to, content, instruct, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		m.Key(), m.Role, string(m.CauseBy), m.SendTo, m.Content, instruct, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("archive: save message: %w", err)
	}
	a.logger.Debug("message archived", "id", m.Key(), "role", m.Role)
	return nil
}

// Recent returns the latest n archived messages, newest first.
func (a *Archive) Recent(ctx context.Context, n int) ([]schema.Message, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, role, cause_by, send_to, content, instruct, created_at
		FROM messages
		ORDER BY created_at DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("archive: recent: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ByAction returns archived messages caused by kind, oldest first.
func (a *Archive) ByAction(ctx context.Context, kind schema.Kind) ([]schema.Message, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, role, cause_by, send_to, content, instruct, created_at
		FROM messages
		WHERE cause_by = ?
		ORDER BY created_at ASC`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("archive: by action: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// Close closes the underlying database.
func (a *Archive) Close() error { return a.db.Close() }

func scanMessages(rows *sql.Rows) ([]schema.Message, error) {
	var msgs []schema.Message
	for rows.Next() {
		var m schema.Message
		var causeBy, instruct string
		if err := rows.Scan(&m.ID, &m.Role, &causeBy, &m.SendTo, &m.Content, &instruct, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("archive: scan message: %w", err)
		}
		m.CauseBy = schema.Kind(causeBy)
		if instruct != "" {
			if err := json.Unmarshal([]byte(instruct), &m.Instruct); err != nil {
				return nil, fmt.Errorf("archive: unmarshal instruct: %w", err)
			}
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
