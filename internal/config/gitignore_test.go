package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func parserWith(patterns ...string) *GitignoreParser {
	gp := NewGitignoreParser()
	for _, p := range patterns {
		gp.AddPattern(p)
	}
	return gp
}

func TestGitignoreSimpleFilePattern(t *testing.T) {
	gp := parserWith("README.md")
	require.True(t, gp.ShouldIgnore("README.md", false))
	require.True(t, gp.ShouldIgnore("docs/README.md", false))
	require.False(t, gp.ShouldIgnore("main.go", false))
}

func TestGitignoreDirectoryPatternCoversContents(t *testing.T) {
	gp := parserWith("node_modules/")
	require.True(t, gp.ShouldIgnore("node_modules", true))
	require.True(t, gp.ShouldIgnore("node_modules/react/index.js", false))
	require.True(t, gp.ShouldIgnore("packages/web/node_modules/x.js", false))
	require.False(t, gp.ShouldIgnore("src/main.js", false))
	// Directory-only: a plain file named node_modules is not covered.
	require.False(t, gp.ShouldIgnore("node_modules", false))
}

func TestGitignoreRootedPattern(t *testing.T) {
	gp := parserWith("/build")
	require.True(t, gp.ShouldIgnore("build", true))
	require.False(t, gp.ShouldIgnore("public/build", true))
}

func TestGitignoreWildcardPattern(t *testing.T) {
	gp := parserWith("*.min.js")
	require.True(t, gp.ShouldIgnore("bundle.min.js", false))
	require.True(t, gp.ShouldIgnore("dist/assets/app.min.js", false))
	require.False(t, gp.ShouldIgnore("bundle.js", false))
}

func TestGitignoreNegationLastMatchWins(t *testing.T) {
	gp := parserWith("*.log", "!important.log")
	require.True(t, gp.ShouldIgnore("debug.log", false))
	require.False(t, gp.ShouldIgnore("important.log", false))
}

func TestGitignoreSkipsCommentsAndBlankLines(t *testing.T) {
	gp := parserWith("", "# a comment", "secret.txt")
	require.Len(t, gp.rules, 1)
	require.True(t, gp.ShouldIgnore("secret.txt", false))
}

func TestGitignoreExclusionPatternsForWalk(t *testing.T) {
	gp := parserWith("node_modules/", "*.log", "/build", "!keep.log")
	got := gp.GetExclusionPatterns()
	require.Contains(t, got, "**/node_modules")
	require.Contains(t, got, "**/node_modules/**")
	require.Contains(t, got, "**/*.log")
	require.Contains(t, got, "build")
	// Negations don't render into a flat exclude list.
	for _, p := range got {
		require.NotContains(t, p, "keep.log")
	}
}

func TestLoadGitignoreMissingFileIsNotAnError(t *testing.T) {
	gp := NewGitignoreParser()
	require.NoError(t, gp.LoadGitignore(t.TempDir()))
	require.Empty(t, gp.rules)
}

func TestLoadGitignoreReadsRootFile(t *testing.T) {
	dir := t.TempDir()
	content := "# generated\nnode_modules/\n*.tmp\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(content), 0o644))

	gp := NewGitignoreParser()
	require.NoError(t, gp.LoadGitignore(dir))
	require.True(t, gp.ShouldIgnore("node_modules/left-pad/index.js", false))
	require.True(t, gp.ShouldIgnore("scratch.tmp", false))
	require.False(t, gp.ShouldIgnore("main.go", false))
}

func TestBuildArtifactDetectorTSConfigOutDir(t *testing.T) {
	dir := t.TempDir()
	ts := `{"compilerOptions": {"outDir": "out"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tsconfig.json"), []byte(ts), 0o644))

	got := NewBuildArtifactDetector(dir).DetectOutputDirectories()
	require.Contains(t, got, "**/out/**")
}

func TestBuildArtifactDetectorPackageJSONOutDirFlag(t *testing.T) {
	dir := t.TempDir()
	pkg := `{"scripts": {"build": "tsc --outDir compiled"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(pkg), 0o644))

	got := NewBuildArtifactDetector(dir).DetectOutputDirectories()
	require.Contains(t, got, "**/compiled/**")
}

func TestBuildArtifactDetectorViteOutDir(t *testing.T) {
	dir := t.TempDir()
	vite := "export default { build: { outDir: 'public/bundle' } }\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vite.config.ts"), []byte(vite), 0o644))

	got := NewBuildArtifactDetector(dir).DetectOutputDirectories()
	require.Contains(t, got, "**/public/bundle/**")
}

func TestBuildArtifactDetectorEmptyProject(t *testing.T) {
	got := NewBuildArtifactDetector(t.TempDir()).DetectOutputDirectories()
	require.Empty(t, got)
}

func TestDeduplicatePatternsKeepsFirstOccurrenceOrder(t *testing.T) {
	got := DeduplicatePatterns([]string{"**/a/**", "**/b/**", "**/a/**"})
	require.Equal(t, []string{"**/a/**", "**/b/**"}, got)
}
