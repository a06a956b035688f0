package env

import (
	"strings"
	"testing"
)

func has(kvs []string, want string) bool {
	for _, kv := range kvs {
		if kv == want {
			return true
		}
	}
	return false
}

func TestMergePrecedence(t *testing.T) {
	e := New()
	e.base = Var{"HOME": "/home/u", "PORT": "1"}
	e.Set("PORT", "2")

	got := e.Merge([]string{"PORT=3"})
	if !has(got, "PORT=3") {
		t.Fatalf("per-spec override lost: %v", got)
	}
	if !has(got, "HOME=/home/u") {
		t.Fatalf("base env lost: %v", got)
	}
}

func TestMergeGlobalOverridesBase(t *testing.T) {
	e := New()
	e.base = Var{"MODE": "dev"}
	e.SetAll([]string{"MODE=prod", "malformed", "=nokey"})

	got := e.Merge(nil)
	if !has(got, "MODE=prod") {
		t.Fatalf("global override lost: %v", got)
	}
	for _, kv := range got {
		if strings.HasPrefix(kv, "=") {
			t.Fatalf("malformed entry survived: %q", kv)
		}
	}
}

func TestMergeExpandsReferences(t *testing.T) {
	e := New()
	e.base = Var{"DATA": "/var/data"}
	e.Set("CORE_DB", "${DATA}/core.db")

	got := e.Merge(nil)
	if !has(got, "CORE_DB=/var/data/core.db") {
		t.Fatalf("expansion failed: %v", got)
	}
}

func TestMergeUsesOSEnvWhenNoBase(t *testing.T) {
	t.Setenv("CORESHELL_TEST_MARKER", "yes")
	e := New()
	got := e.Merge(nil)
	if !has(got, "CORESHELL_TEST_MARKER=yes") {
		t.Fatal("OS environment not picked up as base")
	}
}
