package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/codeindex/internal/diag"
)

var testLog = diag.Default()

func writeFixture(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func newTestApp() *cli.App {
	return &cli.App{
		Name: "codeindex",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Aliases: []string{"d"}, Value: "."},
			&cli.StringSliceFlag{Name: "ext", Aliases: []string{"e"}},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}},
		},
		Commands: []*cli.Command{
			indexCommand(testLog),
			grepCommand(testLog),
			defCommand(testLog),
			callersCommand(testLog),
		},
	}
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newTestApp()
	var buf bytes.Buffer
	app.Writer = &buf

	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	runErr := app.RunContext(context.Background(), append([]string{"codeindex"}, args...))

	w.Close()
	os.Stdout = old
	var out bytes.Buffer
	_, _ = out.ReadFrom(r)

	return out.String(), runErr
}

func TestIndexThenGrepRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "Controller.cs", "public class Controller {\n    public void HandleRequest() {}\n}\n")
	writeFixture(t, dir, "Service.cs", "public class Service {\n    public void DoWork() {}\n}\n")

	_, err := runApp(t, "--root", dir, "--ext", "cs", "index")
	require.NoError(t, err)

	out, err := runApp(t, "--root", dir, "--ext", "cs", "grep", "--term", "dowork")
	require.NoError(t, err)
	require.Contains(t, out, "Service.cs")
}

func TestGrepMissingTermIsInvalidArgs(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "A.cs", "public class A {}\n")

	_, err := runApp(t, "--root", dir, "--ext", "cs", "grep")
	require.Error(t, err)
}

func TestDefLookupAfterIndex(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "Controller.cs", "public class Controller {\n    public void HandleRequest() {}\n}\n")

	_, err := runApp(t, "--root", dir, "--ext", "cs", "index")
	require.NoError(t, err)

	out, err := runApp(t, "--root", dir, "--ext", "cs", "def", "--name", "HandleRequest")
	require.NoError(t, err)
	require.Contains(t, out, "HandleRequest")
}

func TestCallersUpAfterIndex(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "Controller.cs", "public class Controller {\n    public void HandleRequest() {\n        var s = new Service();\n        s.DoWork();\n    }\n}\n")
	writeFixture(t, dir, "Service.cs", "public class Service {\n    public void DoWork() {}\n}\n")

	_, err := runApp(t, "--root", dir, "--ext", "cs", "index")
	require.NoError(t, err)

	out, err := runApp(t, "--root", dir, "--ext", "cs", "callers", "--method", "DoWork", "--direction", "up")
	require.NoError(t, err)
	require.Contains(t, out, "HandleRequest")
}
