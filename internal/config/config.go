// Package config implements the engine's runtime configuration: index
// roots, extensions, tokenizer/staleness tuning, watch mode, and worker
// counts. KDL (`.codeindex.kdl`) is the primary format,
// the project-local config file; TOML is accepted as
// a fallback for hosts that prefer it.
package config

import "runtime"

// Config is the resolved, defaulted configuration for one engine instance.
type Config struct {
	Root            string
	Extensions      []string
	MinTokenLen     int
	MaxIndexAgeSecs int64
	Watch           bool
	Workers         int
	SuspiciousBytes int64
	ExcludeDirs     []string
	ExcludeGlobs    []string
	CacheDir        string
}

// Defaults returns the built-in configuration used when no config file
// is present and no flags override it. Workers == 0 defers to
// runtime.NumCPU at build time.
func Defaults() Config {
	return Config{
		Extensions:      []string{"cs"},
		MinTokenLen:     2,
		MaxIndexAgeSecs: 24 * 3600,
		Watch:           false,
		Workers:         0,
		SuspiciousBytes: 500,
		ExcludeDirs:     []string{".git", "bin", "obj", "node_modules"},
		CacheDir:        ".codeindex-cache",
	}
}

// Merge overlays non-zero-value fields of override onto base (precedence:
// CLI flags > config file > defaults).
func Merge(base, override Config) Config {
	out := base
	if override.Root != "" {
		out.Root = override.Root
	}
	if len(override.Extensions) > 0 {
		out.Extensions = override.Extensions
	}
	if override.MinTokenLen > 0 {
		out.MinTokenLen = override.MinTokenLen
	}
	if override.MaxIndexAgeSecs > 0 {
		out.MaxIndexAgeSecs = override.MaxIndexAgeSecs
	}
	if override.Watch {
		out.Watch = override.Watch
	}
	if override.Workers > 0 {
		out.Workers = override.Workers
	}
	if override.SuspiciousBytes > 0 {
		out.SuspiciousBytes = override.SuspiciousBytes
	}
	if len(override.ExcludeDirs) > 0 {
		out.ExcludeDirs = override.ExcludeDirs
	}
	if len(override.ExcludeGlobs) > 0 {
		out.ExcludeGlobs = override.ExcludeGlobs
	}
	if override.CacheDir != "" {
		out.CacheDir = override.CacheDir
	}
	return out
}

// ResolveWorkers returns Workers if set, else runtime.NumCPU().
func (c Config) ResolveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// Validate reports the first structural problem with c, if any;
// validation errors are reported to the caller unchanged.
func (c Config) Validate() error {
	if c.Root == "" {
		return errConfig("root directory must be set")
	}
	if c.MinTokenLen < 1 {
		return errConfig("minTokenLen must be >= 1")
	}
	return nil
}

type configError string

func (e configError) Error() string { return string(e) }

func errConfig(msg string) error { return configError(msg) }
