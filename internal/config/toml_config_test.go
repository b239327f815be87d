package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadTOMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `
root = "."
extensions = ["cs", "ts"]
min_token_len = 4
workers = 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, TOMLConfigFileName), []byte(content), 0o644))

	cfg, err := LoadTOML(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.Equal(t, []string{"cs", "ts"}, cfg.Extensions)
	require.Equal(t, 4, cfg.MinTokenLen)
	require.Equal(t, 2, cfg.Workers)
}

func TestLoadTOMLMissingFileReturnsNilNoError(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadTOML(dir)
	require.NoError(t, err)
	require.Nil(t, cfg)
}

func TestLoadFallsBackToDefaultsWhenNoFiles(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, Defaults().Extensions, cfg.Extensions)
	require.NotEmpty(t, cfg.Root)
}

func TestLoadPrefersKDLOverTOML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(`min_token_len 7`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, TOMLConfigFileName), []byte(`min_token_len = 9`), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, 7, cfg.MinTokenLen)
}
