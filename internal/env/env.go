package env

import (
	"os"
	"strings"
)

// Var maps environment keys to values.
type Var map[string]string

// Env composes the environment handed to the supervised core:
// OS environment as base, then global overrides, then per-spec overrides.
type Env struct {
	Var  Var // global overrides (K->V)
	base Var // cached OS environment
}

func New() *Env {
	return &Env{Var: make(Var)}
}

// FromOS caches the current process environment as the base.
func (e *Env) FromOS() {
	base := make(Var)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			base[kv[:i]] = kv[i+1:]
		}
	}
	e.base = base
}

// Set records a global override.
func (e *Env) Set(k, v string) {
	if e.Var == nil {
		e.Var = make(Var)
	}
	e.Var[k] = v
}

// SetAll records a list of "K=V" global overrides, ignoring malformed entries.
func (e *Env) SetAll(kvs []string) {
	for _, kv := range kvs {
		if i := strings.IndexByte(kv, '='); i > 0 {
			e.Set(kv[:i], kv[i+1:])
		}
	}
}

// Merge returns the final "K=V" slice: base OS env, then global overrides,
// then perSpec overrides, with simple ${VAR} expansion over the composed map.
func (e *Env) Merge(perSpec []string) []string {
	if e.base == nil {
		e.FromOS()
	}
	m := make(Var, len(e.base)+len(e.Var)+len(perSpec))
	for k, v := range e.base {
		m[k] = v
	}
	for k, v := range e.Var {
		if k == "" {
			continue
		}
		m[k] = v
	}
	for _, kv := range perSpec {
		if i := strings.IndexByte(kv, '='); i > 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+expand(v, m))
	}
	return out
}

// expand replaces ${VAR} occurrences using the composed map; no recursion.
func expand(s string, m Var) string {
	if !strings.Contains(s, "${") {
		return s
	}
	for k, v := range m {
		s = strings.ReplaceAll(s, "${"+k+"}", v)
	}
	return s
}
