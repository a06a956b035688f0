package factory

import (
	"path/filepath"
	"testing"

	"github.com/mistlabs/coreshell/internal/journal/sqlite"
)

func TestSQLiteByPrefix(t *testing.T) {
	sink, err := NewSinkFromDSN("sqlite://" + filepath.Join(t.TempDir(), "j.db"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := sink.(*sqlite.Sink); !ok {
		t.Fatalf("sink type %T, want *sqlite.Sink", sink)
	}
}

func TestBarePathDefaultsToSQLite(t *testing.T) {
	sink, err := NewSinkFromDSN(filepath.Join(t.TempDir(), "j.db"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := sink.(*sqlite.Sink); !ok {
		t.Fatalf("sink type %T, want *sqlite.Sink", sink)
	}
}

func TestUnsupportedScheme(t *testing.T) {
	if _, err := NewSinkFromDSN("redis://localhost:6379"); err == nil {
		t.Fatal("unsupported scheme accepted")
	}
}

func TestEmptyDSN(t *testing.T) {
	if _, err := NewSinkFromDSN(""); err == nil {
		t.Fatal("empty DSN accepted")
	}
}
