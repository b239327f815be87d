package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// ConfigFileName is the project-local KDL config file, loaded from the
// project root when present.
const ConfigFileName = ".codeindex.kdl"

// LoadKDL attempts to load configuration from <projectRoot>/.codeindex.kdl.
// A missing file is not an error: (nil, nil) signals "use defaults".
func LoadKDL(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, ConfigFileName)
	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ConfigFileName, err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}

	if cfg.Root != "" && !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Clean(filepath.Join(projectRoot, cfg.Root))
	} else if cfg.Root == "" {
		abs, err := filepath.Abs(projectRoot)
		if err == nil {
			cfg.Root = abs
		} else {
			cfg.Root = projectRoot
		}
	}

	return &cfg, nil
}

// parseKDL parses KDL document content into a Config seeded with Defaults().
func parseKDL(content string) (Config, error) {
	cfg := Defaults()

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", ConfigFileName, err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "root":
			if s, ok := firstStringArg(n); ok {
				cfg.Root = s
			}
		case "extensions":
			if args := collectStringArgs(n); len(args) > 0 {
				cfg.Extensions = args
			}
		case "min_token_len":
			if v, ok := firstIntArg(n); ok {
				cfg.MinTokenLen = v
			}
		case "max_index_age_secs":
			if v, ok := firstIntArg(n); ok {
				cfg.MaxIndexAgeSecs = int64(v)
			}
		case "watch":
			if b, ok := firstBoolArg(n); ok {
				cfg.Watch = b
			}
		case "workers":
			if v, ok := firstIntArg(n); ok {
				cfg.Workers = v
			}
		case "suspicious_bytes":
			if v, ok := firstIntArg(n); ok {
				cfg.SuspiciousBytes = int64(v)
			}
		case "exclude_dirs":
			if args := collectStringArgs(n); len(args) > 0 {
				cfg.ExcludeDirs = args
			}
		case "exclude_globs":
			cfg.ExcludeGlobs = collectStringArgs(n)
		case "cache_dir":
			if s, ok := firstStringArg(n); ok {
				cfg.CacheDir = s
			}
		}
	}

	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func collectStringArgs(n *document.Node) []string {
	var out []string
	for _, arg := range n.Arguments {
		if s, ok := arg.Value.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
