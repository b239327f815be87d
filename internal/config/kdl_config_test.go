package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseKDLEmptyYieldsDefaults(t *testing.T) {
	cfg, err := parseKDL("")
	require.NoError(t, err)
	require.Equal(t, Defaults().Extensions, cfg.Extensions)
	require.Equal(t, Defaults().MinTokenLen, cfg.MinTokenLen)
}

func TestParseKDLOverridesFields(t *testing.T) {
	content := `
root "./src"
extensions "cs" "ts" "tsx"
min_token_len 3
max_index_age_secs 3600
watch true
workers 8
suspicious_bytes 1000
exclude_dirs "bin" "obj" "vendor"
exclude_globs "**/*.generated.cs"
cache_dir "/tmp/cidx-cache"
`
	cfg, err := parseKDL(content)
	require.NoError(t, err)

	require.Equal(t, "./src", cfg.Root)
	require.Equal(t, []string{"cs", "ts", "tsx"}, cfg.Extensions)
	require.Equal(t, 3, cfg.MinTokenLen)
	require.Equal(t, int64(3600), cfg.MaxIndexAgeSecs)
	require.True(t, cfg.Watch)
	require.Equal(t, 8, cfg.Workers)
	require.Equal(t, int64(1000), cfg.SuspiciousBytes)
	require.Equal(t, []string{"bin", "obj", "vendor"}, cfg.ExcludeDirs)
	require.Equal(t, []string{"**/*.generated.cs"}, cfg.ExcludeGlobs)
	require.Equal(t, "/tmp/cidx-cache", cfg.CacheDir)
}

func TestParseKDLPartialOverrideKeepsOtherDefaults(t *testing.T) {
	cfg, err := parseKDL(`min_token_len 5`)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.MinTokenLen)
	require.Equal(t, Defaults().Extensions, cfg.Extensions)
}

func TestLoadKDLMissingFileReturnsNilNoError(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadKDL(dir)
	require.NoError(t, err)
	require.Nil(t, cfg)
}
