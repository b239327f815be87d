package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// TOMLConfigFileName is accepted as a fallback when no KDL config is
// present, for hosts that prefer TOML.
const TOMLConfigFileName = ".codeindex.toml"

type tomlConfig struct {
	Root            string   `toml:"root"`
	Extensions      []string `toml:"extensions"`
	MinTokenLen     int      `toml:"min_token_len"`
	MaxIndexAgeSecs int64    `toml:"max_index_age_secs"`
	Watch           bool     `toml:"watch"`
	Workers         int      `toml:"workers"`
	SuspiciousBytes int64    `toml:"suspicious_bytes"`
	ExcludeDirs     []string `toml:"exclude_dirs"`
	ExcludeGlobs    []string `toml:"exclude_globs"`
	CacheDir        string   `toml:"cache_dir"`
}

// LoadTOML attempts to load configuration from <projectRoot>/.codeindex.toml.
// A missing file is not an error: (nil, nil) signals "use defaults".
func LoadTOML(projectRoot string) (*Config, error) {
	path := filepath.Join(projectRoot, TOMLConfigFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tc tomlConfig
	if err := toml.Unmarshal(content, &tc); err != nil {
		return nil, err
	}

	cfg := Defaults()
	if tc.Root != "" {
		cfg.Root = tc.Root
	}
	if len(tc.Extensions) > 0 {
		cfg.Extensions = tc.Extensions
	}
	if tc.MinTokenLen > 0 {
		cfg.MinTokenLen = tc.MinTokenLen
	}
	if tc.MaxIndexAgeSecs > 0 {
		cfg.MaxIndexAgeSecs = tc.MaxIndexAgeSecs
	}
	cfg.Watch = tc.Watch
	if tc.Workers > 0 {
		cfg.Workers = tc.Workers
	}
	if tc.SuspiciousBytes > 0 {
		cfg.SuspiciousBytes = tc.SuspiciousBytes
	}
	if len(tc.ExcludeDirs) > 0 {
		cfg.ExcludeDirs = tc.ExcludeDirs
	}
	if len(tc.ExcludeGlobs) > 0 {
		cfg.ExcludeGlobs = tc.ExcludeGlobs
	}
	if tc.CacheDir != "" {
		cfg.CacheDir = tc.CacheDir
	}

	if cfg.Root != "" && !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Clean(filepath.Join(projectRoot, cfg.Root))
	} else if cfg.Root == "" {
		if abs, err := filepath.Abs(projectRoot); err == nil {
			cfg.Root = abs
		} else {
			cfg.Root = projectRoot
		}
	}

	return &cfg, nil
}

// Load resolves configuration for projectRoot: KDL first, TOML fallback,
// then built-in defaults. In every case the exclude list
// is enriched with the build-output directories that the project's own
// build manifests name explicitly (package.json, tsconfig.json, vite
// config, Cargo.toml, pyproject.toml), and with any root-level
// .gitignore patterns.
func Load(projectRoot string) (Config, error) {
	cfg, err := resolveBase(projectRoot)
	if err != nil {
		return Config{}, err
	}
	enrichExclusions(&cfg, projectRoot)
	return cfg, nil
}

func resolveBase(projectRoot string) (Config, error) {
	if cfg, err := LoadKDL(projectRoot); err != nil {
		return Config{}, err
	} else if cfg != nil {
		return *cfg, nil
	}

	if cfg, err := LoadTOML(projectRoot); err != nil {
		return Config{}, err
	} else if cfg != nil {
		return *cfg, nil
	}

	cfg := Defaults()
	abs, err := filepath.Abs(projectRoot)
	if err == nil {
		cfg.Root = abs
	} else {
		cfg.Root = projectRoot
	}
	return cfg, nil
}

// enrichExclusions appends build-artifact and .gitignore-derived patterns
// to cfg.ExcludeGlobs, deduplicating the result.
func enrichExclusions(cfg *Config, projectRoot string) {
	patterns := append([]string(nil), cfg.ExcludeGlobs...)
	patterns = append(patterns, NewBuildArtifactDetector(projectRoot).DetectOutputDirectories()...)

	gp := NewGitignoreParser()
	if err := gp.LoadGitignore(projectRoot); err == nil {
		patterns = append(patterns, gp.GetExclusionPatterns()...)
	}

	cfg.ExcludeGlobs = DeduplicatePatterns(patterns)
}
