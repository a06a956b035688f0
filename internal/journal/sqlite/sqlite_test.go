package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mistlabs/coreshell/internal/journal"
)

func TestSendAndQuery(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()

	e := journal.NewEntry(journal.KindExited, "core", 4242, "exit status 1")
	if err := s.Send(context.Background(), e); err != nil {
		t.Fatalf("send: %v", err)
	}

	var kind, name string
	var pid int
	row := s.db.QueryRowContext(context.Background(),
		`SELECT kind, name, pid FROM core_lifecycle WHERE id = ?`, e.ID)
	if err := row.Scan(&kind, &name, &pid); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if kind != string(journal.KindExited) || name != "core" || pid != 4242 {
		t.Fatalf("row = %s/%s/%d", kind, name, pid)
	}
}

func TestDSNPrefixStripped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := New("sqlite://" + path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()
	if err := s.Send(context.Background(), journal.NewEntry(journal.KindReady, "core", 1, "")); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestEmptyDSNRejected(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("empty DSN accepted")
	}
}
