package notify

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Journal appends records to a SQLite table.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens a SQLite database at the given path and configures WAL mode.
func OpenJournal(dsn string) (*Journal, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "journal: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "journal: exec %s", pragma)
		}
	}
	return &Journal{db: db}, nil
}

const journalMigration = `
CREATE TABLE IF NOT EXISTS notifications (
	id            TEXT PRIMARY KEY,
	kind          TEXT NOT NULL,
	session_id    TEXT NOT NULL,
	client_type   TEXT NOT NULL DEFAULT '',
	urgency       TEXT NOT NULL DEFAULT '',
	question      TEXT NOT NULL,
	priced        INTEGER NOT NULL DEFAULT 0,
	price         INTEGER NOT NULL DEFAULT 0,
	domain_label  TEXT NOT NULL DEFAULT '',
	service_label TEXT NOT NULL DEFAULT '',
	outcome       TEXT NOT NULL,
	contact_name  TEXT NOT NULL DEFAULT '',
	contact_email TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_created_at ON notifications(created_at);
CREATE INDEX IF NOT EXISTS idx_notifications_kind ON notifications(kind);
`

// Migrate creates the journal table.
func (j *Journal) Migrate(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, journalMigration)
	return eris.Wrap(err, "journal: migrate")
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Notify implements Notifier.
func (j *Journal) Notify(ctx context.Context, rec Record) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO notifications (id, kind, session_id, client_type, urgency, question, priced, price,
			domain_label, service_label, outcome, contact_name, contact_email, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Kind), rec.SessionID, rec.ClientType, rec.Urgency, rec.Question, rec.Priced, rec.Price,
		rec.DomainLabel, rec.ServiceLabel, rec.Outcome, rec.ContactName, rec.ContactEmail, rec.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "journal: insert record %s", rec.ID)
}

// Recent returns up to limit records, newest first. kind filters when non-empty.
func (j *Journal) Recent(ctx context.Context, kind Kind, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, kind, session_id, client_type, urgency, question, priced, price,
		domain_label, service_label, outcome, contact_name, contact_email, created_at
		FROM notifications`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "journal: query records")
	}
	defer rows.Close() //nolint:errcheck

	var out []Record
	for rows.Next() {
		var (
			rec       Record
			kindStr   string
			createdAt time.Time
		)
		if err := rows.Scan(&rec.ID, &kindStr, &rec.SessionID, &rec.ClientType, &rec.Urgency, &rec.Question,
			&rec.Priced, &rec.Price, &rec.DomainLabel, &rec.ServiceLabel, &rec.Outcome,
			&rec.ContactName, &rec.ContactEmail, &createdAt); err != nil {
			return nil, eris.Wrap(err, "journal: scan record")
		}
		rec.Kind = Kind(kindStr)
		rec.CreatedAt = createdAt
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "journal: iterate records")
}
