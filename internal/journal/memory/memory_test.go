package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/mistlabs/coreshell/internal/journal"
)

func TestRingKeepsMostRecent(t *testing.T) {
	s := New(3)
	for i := 0; i < 5; i++ {
		e := journal.NewEntry(journal.KindSpawned, fmt.Sprintf("core-%d", i), i, "")
		if err := s.Send(context.Background(), e); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	got := s.Recent(0)
	if len(got) != 3 {
		t.Fatalf("ring holds %d entries, want 3", len(got))
	}
	if got[0].Name != "core-2" || got[2].Name != "core-4" {
		t.Fatalf("wrong window: %v .. %v", got[0].Name, got[2].Name)
	}
}

func TestRecentLimitsCount(t *testing.T) {
	s := New(10)
	for i := 0; i < 4; i++ {
		_ = s.Send(context.Background(), journal.NewEntry(journal.KindReady, "core", 100+i, ""))
	}
	if got := s.Recent(2); len(got) != 2 {
		t.Fatalf("Recent(2) returned %d entries", len(got))
	}
	if got := s.Recent(99); len(got) != 4 {
		t.Fatalf("Recent(99) returned %d entries", len(got))
	}
}

func TestZeroCapacityUsesDefault(t *testing.T) {
	s := New(0)
	if s.cap != DefaultCapacity {
		t.Fatalf("cap = %d, want %d", s.cap, DefaultCapacity)
	}
}
