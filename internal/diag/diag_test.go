package diag

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerWritesExpectedLevel(t *testing.T) {
	var buf bytes.Buffer
	lg := &Logger{l: log.New(&buf, "codeindex: ", 0)}

	lg.Warnf("stale index for %s", "/repo")
	out := buf.String()
	require.Contains(t, out, "codeindex: ")
	require.Contains(t, out, "WARN")
	require.Contains(t, out, "stale index for /repo")
}

func TestDefaultLoggerDoesNotPanic(t *testing.T) {
	lg := Default()
	require.NotPanics(t, func() {
		lg.Infof("build complete: %d files", 10)
		lg.Errorf("parse failed: %v", "boom")
	})
}
