package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// BuildArtifactDetector reads a project's build manifests (package.json,
// tsconfig.json, vite.config.*, Cargo.toml, pyproject.toml) for declared
// output directories, so compiled artifacts are excluded from the index
// even when the project's .gitignore doesn't name them.
type BuildArtifactDetector struct {
	projectRoot string
}

func NewBuildArtifactDetector(projectRoot string) *BuildArtifactDetector {
	return &BuildArtifactDetector{projectRoot: projectRoot}
}

// DetectOutputDirectories probes every known manifest under the project
// root and returns exclusion globs for the output directories they
// declare. Conventional defaults (node_modules, target, bin, obj) are
// the config layer's job; this only surfaces the non-default ones a
// manifest names explicitly.
func (d *BuildArtifactDetector) DetectOutputDirectories() []string {
	probes := []func() []string{
		d.fromPackageJSON,
		d.fromTSConfig,
		d.fromViteConfig,
		d.fromCargoTOML,
		d.fromPyprojectTOML,
	}
	var patterns []string
	for _, probe := range probes {
		patterns = append(patterns, probe()...)
	}
	return patterns
}

func dirGlob(dir string) string {
	dir = strings.Trim(strings.TrimSpace(dir), "/")
	if dir == "" {
		return ""
	}
	return "**/" + dir + "/**"
}

// fromPackageJSON picks up --outDir flags in build scripts plus an
// explicit top-level build.outDir.
func (d *BuildArtifactDetector) fromPackageJSON() []string {
	data, err := os.ReadFile(filepath.Join(d.projectRoot, "package.json"))
	if err != nil {
		return nil
	}
	var pkg struct {
		Scripts map[string]string `json:"scripts"`
		Build   struct {
			OutDir string `json:"outDir"`
		} `json:"build"`
	}
	if json.Unmarshal(data, &pkg) != nil {
		return nil
	}

	var patterns []string
	for _, script := range pkg.Scripts {
		fields := strings.Fields(script)
		for i, f := range fields {
			if (f == "--outDir" || f == "-outDir") && i+1 < len(fields) {
				if g := dirGlob(strings.Trim(fields[i+1], `"'`)); g != "" {
					patterns = append(patterns, g)
				}
			}
		}
	}
	if g := dirGlob(pkg.Build.OutDir); g != "" {
		patterns = append(patterns, g)
	}
	return patterns
}

func (d *BuildArtifactDetector) fromTSConfig() []string {
	data, err := os.ReadFile(filepath.Join(d.projectRoot, "tsconfig.json"))
	if err != nil {
		return nil
	}
	var ts struct {
		CompilerOptions struct {
			OutDir string `json:"outDir"`
		} `json:"compilerOptions"`
	}
	if json.Unmarshal(data, &ts) != nil {
		return nil
	}
	if g := dirGlob(ts.CompilerOptions.OutDir); g != "" {
		return []string{g}
	}
	return nil
}

// viteOutDirRe matches `outDir: 'dist'` / `outDir: "dist"` in a vite
// config, which is JS and can't be parsed as data.
var viteOutDirRe = regexp.MustCompile(`outDir\s*:\s*['"]([^'"]+)['"]`)

func (d *BuildArtifactDetector) fromViteConfig() []string {
	var patterns []string
	for _, name := range []string{"vite.config.js", "vite.config.ts"} {
		data, err := os.ReadFile(filepath.Join(d.projectRoot, name))
		if err != nil {
			continue
		}
		for _, m := range viteOutDirRe.FindAllSubmatch(data, -1) {
			if g := dirGlob(string(m[1])); g != "" {
				patterns = append(patterns, g)
			}
		}
	}
	return patterns
}

func (d *BuildArtifactDetector) fromCargoTOML() []string {
	data, err := os.ReadFile(filepath.Join(d.projectRoot, "Cargo.toml"))
	if err != nil {
		return nil
	}
	var cargo struct {
		Profile struct {
			Release struct {
				TargetDir string `toml:"target-dir"`
			} `toml:"release"`
		} `toml:"profile"`
	}
	if toml.Unmarshal(data, &cargo) != nil {
		return nil
	}
	if g := dirGlob(cargo.Profile.Release.TargetDir); g != "" {
		return []string{g}
	}
	return nil
}

func (d *BuildArtifactDetector) fromPyprojectTOML() []string {
	data, err := os.ReadFile(filepath.Join(d.projectRoot, "pyproject.toml"))
	if err != nil {
		return nil
	}
	var py struct {
		Tool struct {
			Poetry struct {
				Build struct {
					TargetDir string `toml:"target-dir"`
				} `toml:"build"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if toml.Unmarshal(data, &py) != nil {
		return nil
	}
	if g := dirGlob(py.Tool.Poetry.Build.TargetDir); g != "" {
		return []string{g}
	}
	return nil
}

// DeduplicatePatterns drops repeated exclusion globs, preserving first
// occurrence order.
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]struct{}, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
