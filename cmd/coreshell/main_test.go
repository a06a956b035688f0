package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := buildRoot()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "coreshell "+version) {
		t.Fatalf("version output %q", out)
	}
}

func TestCheckValidConfigWithoutProbe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coreshell.toml")
	body := `
[core]
enabled = true
name = "mist-core"
command = "sleep 1"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	out, err := execute(t, "check", "--config", path)
	if err != nil {
		t.Fatalf("check: %v (output %q)", err, out)
	}
	if !strings.Contains(out, "config ok") || !strings.Contains(out, "no readiness probe") {
		t.Fatalf("check output %q", out)
	}
}

func TestCheckUnreachableProbeIsNotFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coreshell.toml")
	body := `
[core]
enabled = true
name = "mist-core"
command = "sleep 1"

[core.probe]
type = "tcp"
addr = "127.0.0.1:1"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	out, err := execute(t, "check", "--config", path, "--probe-timeout", "500ms")
	if err != nil {
		t.Fatalf("check: %v (output %q)", err, out)
	}
	if !strings.Contains(out, "not reachable") {
		t.Fatalf("check output %q", out)
	}
}

func TestCheckMissingConfig(t *testing.T) {
	if _, err := execute(t, "check", "--config", filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("missing config accepted")
	}
}

func TestCheckInvalidPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coreshell.toml")
	body := `
[core]
enabled = true
command = "sleep 1"
restart_policy = "whenever"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := execute(t, "check", "--config", path); err == nil {
		t.Fatal("invalid policy accepted")
	}
}
