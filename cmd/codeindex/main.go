// Command codeindex is the one-shot CLI surface over the engine: build
// and cache an index, run a single query against it, or serve it over
// MCP stdio for a long-lived host.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/codeindex/internal/callgraph"
	"github.com/standardbeagle/codeindex/internal/config"
	"github.com/standardbeagle/codeindex/internal/contentindex"
	"github.com/standardbeagle/codeindex/internal/defindex"
	"github.com/standardbeagle/codeindex/internal/diag"
	"github.com/standardbeagle/codeindex/internal/errs"
	"github.com/standardbeagle/codeindex/internal/fileindex"
	"github.com/standardbeagle/codeindex/internal/mcpserver"
	"github.com/standardbeagle/codeindex/internal/orchestrator"
	"github.com/standardbeagle/codeindex/internal/version"
)

func main() {
	log := diag.Default()

	app := &cli.App{
		Name:    "codeindex",
		Usage:   "local code-intelligence index: content, definitions, and call-graph search",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Aliases: []string{"d"}, Usage: "project root to index", Value: "."},
			&cli.StringSliceFlag{Name: "ext", Aliases: []string{"e"}, Usage: "file extensions to index (overrides config)"},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "config file directory (defaults to --root)"},
		},
		Commands: []*cli.Command{
			indexCommand(log),
			grepCommand(log),
			fastCommand(log),
			findCommand(log),
			defCommand(log),
			callersCommand(log),
			infoCommand(log),
			serveCommand(log),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(errs.ExitCode(err))
	}
}

// loadConfig resolves this invocation's config, with --root/--ext flag
// overrides applied on top (precedence: flags > config file >
// defaults).
func loadConfig(c *cli.Context) (config.Config, error) {
	configDir := c.String("config")
	if configDir == "" {
		configDir = c.String("root")
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		return config.Config{}, errs.InvalidArgs(fmt.Sprintf("failed to load config: %v", err))
	}

	override := config.Config{}
	if root := c.String("root"); root != "" {
		override.Root = root
	}
	if exts := c.StringSlice("ext"); len(exts) > 0 {
		override.Extensions = exts
	}
	cfg = config.Merge(cfg, override)

	if abs, err := absRoot(cfg.Root); err == nil {
		cfg.Root = abs
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, errs.InvalidArgs(err.Error())
	}
	if _, err := os.Stat(cfg.Root); err != nil {
		return config.Config{}, errs.DirNotFound(cfg.Root)
	}
	return cfg, nil
}

func absRoot(root string) (string, error) {
	return filepath.Abs(root)
}

// engineForQuery loads a cached index if one is fresh enough, rebuilding
// from scratch otherwise (cache-then-fallback discipline).
func engineForQuery(c *cli.Context, log *diag.Logger) (*orchestrator.Engine, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	e := orchestrator.New(cfg, log)
	if err := e.LoadCached(cfg.CacheDir); err == nil {
		return e, nil
	}
	if _, err := e.Reindex(context.Background()); err != nil {
		return nil, errs.Io(err)
	}
	return e, nil
}

func indexCommand(log *diag.Logger) *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "build the content, definition, and file indexes and cache them on disk",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			e := orchestrator.New(cfg, log)
			stats, err := e.Reindex(c.Context)
			if err != nil {
				return errs.Io(err)
			}
			if err := e.Save(cfg.CacheDir); err != nil {
				return err
			}
			fmt.Printf("indexed %d files, %d definitions, %d tokens in %s\n",
				stats.FilesIndexed, stats.DefsIndexed, stats.TokensIndexed, stats.Elapsed)
			return nil
		},
	}
}

func grepCommand(log *diag.Logger) *cli.Command {
	return &cli.Command{
		Name:    "grep",
		Aliases: []string{"search"},
		Usage:   "search indexed file content for one or more terms",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "term", Aliases: []string{"t"}, Usage: "search term (repeatable)"},
			&cli.BoolFlag{Name: "and", Usage: "require all terms in the same file (default: any)"},
			&cli.BoolFlag{Name: "regex", Usage: "interpret each term as a regular expression"},
			&cli.BoolFlag{Name: "phrase", Usage: "treat the single --term as an exact phrase"},
			&cli.IntFlag{Name: "context", Usage: "lines of context around each match", Value: 0},
			&cli.IntFlag{Name: "max-results", Usage: "cap the number of files returned", Value: 100},
			&cli.BoolFlag{Name: "json", Usage: "emit JSON instead of a text summary"},
		},
		Action: func(c *cli.Context) error {
			if len(c.StringSlice("term")) == 0 {
				return errs.InvalidArgs("at least one --term is required")
			}
			e, err := engineForQuery(c, log)
			if err != nil {
				return err
			}
			mode := contentindex.ModeOR
			if c.Bool("and") {
				mode = contentindex.ModeAND
			}
			res, err := e.Content().Search(contentindex.Query{
				Terms:        c.StringSlice("term"),
				Mode:         mode,
				Regex:        c.Bool("regex"),
				Phrase:       c.Bool("phrase"),
				ContextLines: c.Int("context"),
				ShowLines:    true,
				MaxResults:   c.Int("max-results"),
			})
			if err != nil {
				return err
			}
			return emit(c, res, func() {
				for _, f := range res.Files {
					fmt.Printf("%s  score=%.2f  lines=%v\n", f.Path, f.Score, f.Lines)
				}
			})
		},
	}
}

func fastCommand(log *diag.Logger) *cli.Command {
	return &cli.Command{
		Name:  "fast",
		Usage: "trigram-accelerated substring search over indexed content",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "pattern", Required: true},
			&cli.IntFlag{Name: "max-results", Value: 100},
			&cli.BoolFlag{Name: "json"},
		},
		Action: func(c *cli.Context) error {
			e, err := engineForQuery(c, log)
			if err != nil {
				return err
			}
			yes := true
			res, err := e.Content().Search(contentindex.Query{
				Terms:      []string{c.String("pattern")},
				Substring:  &yes,
				MaxResults: c.Int("max-results"),
			})
			if err != nil {
				return err
			}
			return emit(c, res, func() {
				for _, f := range res.Files {
					fmt.Printf("%s  occurrences=%d\n", f.Path, f.Occurrences)
				}
			})
		},
	}
}

func findCommand(log *diag.Logger) *cli.Command {
	return &cli.Command{
		Name:  "find",
		Usage: "search indexed file names",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "pattern", Required: true},
			&cli.BoolFlag{Name: "regex"},
			&cli.IntFlag{Name: "max-results", Value: 100},
			&cli.BoolFlag{Name: "json"},
		},
		Action: func(c *cli.Context) error {
			e, err := engineForQuery(c, log)
			if err != nil {
				return err
			}
			results, summary, err := e.Files().Search(fileindex.Query{
				Pattern: c.String("pattern"),
				Regex:   c.Bool("regex"),
			})
			if err != nil {
				return err
			}
			if max := c.Int("max-results"); max > 0 && len(results) > max {
				results = results[:max]
			}
			return emit(c, map[string]any{"results": results, "summary": summary}, func() {
				for _, r := range results {
					fmt.Println(r.Path)
				}
			})
		},
	}
}

func defCommand(log *diag.Logger) *cli.Command {
	return &cli.Command{
		Name:    "def",
		Aliases: []string{"definitions"},
		Usage:   "look up definitions by name, kind, parent, or containing file",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "name"},
			&cli.StringFlag{Name: "kind"},
			&cli.StringFlag{Name: "parent"},
			&cli.StringFlag{Name: "file"},
			&cli.IntFlag{Name: "max-results", Value: 100},
			&cli.BoolFlag{Name: "json"},
		},
		Action: func(c *cli.Context) error {
			e, err := engineForQuery(c, log)
			if err != nil {
				return err
			}
			entries, _, err := e.Defs().Lookup(defindex.LookupQuery{
				Names:      c.StringSlice("name"),
				Kind:       c.String("kind"),
				Parent:     c.String("parent"),
				File:       c.String("file"),
				MaxResults: c.Int("max-results"),
			})
			if err != nil {
				return err
			}
			files := e.Defs().Files
			return emit(c, entries, func() {
				for _, d := range entries {
					path := ""
					if int(d.FileID) < len(files) {
						path = files[d.FileID]
					}
					fmt.Printf("%s:%d  %s %s.%s\n", path, d.LineStart, d.Kind, d.Parent, d.Name)
				}
			})
		},
	}
}

func callersCommand(log *diag.Logger) *cli.Command {
	return &cli.Command{
		Name:  "callers",
		Usage: "walk the call graph up (who calls) or down (what it calls) from a method",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "method", Required: true},
			&cli.StringFlag{Name: "class"},
			&cli.StringFlag{Name: "direction", Value: "up"},
			&cli.IntFlag{Name: "depth", Value: 3},
			&cli.BoolFlag{Name: "resolve-interfaces"},
			&cli.BoolFlag{Name: "json"},
		},
		Action: func(c *cli.Context) error {
			e, err := engineForQuery(c, log)
			if err != nil {
				return err
			}
			dir := callgraph.DirectionUp
			if c.String("direction") == "down" {
				dir = callgraph.DirectionDown
			}
			nodes := callgraph.Who(e.Defs(), callgraph.Query{
				Method:            c.String("method"),
				Class:             c.String("class"),
				Direction:         dir,
				Depth:             c.Int("depth"),
				ResolveInterfaces: c.Bool("resolve-interfaces"),
			})
			return emit(c, nodes, func() {
				for _, n := range nodes {
					fmt.Printf("%*s%s.%s (depth %d, line %d)\n", n.Depth*2, "", n.Parent, n.Name, n.Depth, n.CallLine)
				}
			})
		},
	}
}

func infoCommand(log *diag.Logger) *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "report index age, size, and staleness",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json"},
		},
		Action: func(c *cli.Context) error {
			e, err := engineForQuery(c, log)
			if err != nil {
				return err
			}
			info := map[string]any{
				"files":       e.Files().Entries,
				"fileCount":   e.Content().FileCount(),
				"defCount":    e.Defs().ActiveCount(),
				"totalTokens": e.Content().TotalTokens,
			}
			return emit(c, info, func() {
				b, _ := json.MarshalIndent(info, "", "  ")
				fmt.Println(string(b))
			})
		},
	}
}

func serveCommand(log *diag.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the MCP server over stdio, indexing and watching the root",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "watch", Usage: "watch the root for changes and apply them incrementally", Value: true},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			e := orchestrator.New(cfg, log)
			if err := e.LoadCached(cfg.CacheDir); err != nil {
				if _, err := e.Reindex(c.Context); err != nil {
					return errs.Io(err)
				}
			}

			if c.Bool("watch") || cfg.Watch {
				w, err := orchestrator.StartWatcher(e)
				if err != nil {
					return errs.Io(err)
				}
				defer w.Stop()
			}

			srv := mcpserver.New(e, log)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sig
				log.Infof("shutting down on signal")
				cancel()
			}()

			return srv.Run(ctx)
		},
	}
}

// emit writes data as JSON when --json is set, otherwise calls textFn for
// the command's human-readable rendering.
func emit(c *cli.Context, data any, textFn func()) error {
	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	textFn()
	return nil
}
