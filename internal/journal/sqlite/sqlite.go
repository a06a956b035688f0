package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/mistlabs/coreshell/internal/journal"
)

// Sink writes journal entries to a local SQLite database, the default
// diagnostics store for a desktop install.
type Sink struct {
	db *sql.DB
}

// New creates a SQLite sink. DSN formats:
//   - "sqlite:///path/to/file.db"
//   - "sqlite://:memory:"
//   - "/path/to/file.db" or ":memory:" (without prefix)
func New(dsn string) (*Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty SQLite DSN")
	}
	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = dsn[len("sqlite://"):]
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	s := &Sink{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	stmt := `CREATE TABLE IF NOT EXISTS core_lifecycle(
		id TEXT NOT NULL,
		occurred_at TIMESTAMP NOT NULL DEFAULT (CURRENT_TIMESTAMP),
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		pid INTEGER NOT NULL,
		detail TEXT
	);`
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

func (s *Sink) Send(ctx context.Context, e journal.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO core_lifecycle(id, occurred_at, kind, name, pid, detail)
		VALUES(?, ?, ?, ?, ?, ?);`,
		e.ID, e.OccurredAt.UTC(), string(e.Kind), e.Name, e.PID, e.Detail)
	return err
}

func (s *Sink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
