// Package diag is the engine's internal diagnostic logger: build/update
// summaries, stale-index warnings, suspicious-file notices. It writes to stderr so stdout stays reserved for the JSON-RPC
// stdio transport.
package diag

import (
	"log"
	"os"
)

// Logger wraps a stdlib *log.Logger with the engine's fixed line prefix.
// No ecosystem structured-logging library appears anywhere in the pack's
// go.mod files (grep across _examples/*/go.mod found none), so this is
// the one ambient concern carried on the standard library rather than a
// third-party package.
type Logger struct {
	l *log.Logger
}

// Default writes to os.Stderr with a microsecond timestamp.
func Default() *Logger {
	return &Logger{l: log.New(os.Stderr, "codeindex: ", log.LstdFlags|log.Lmicroseconds)}
}

func (lg *Logger) Infof(format string, args ...any)  { lg.l.Printf("INFO  "+format, args...) }
func (lg *Logger) Warnf(format string, args ...any)  { lg.l.Printf("WARN  "+format, args...) }
func (lg *Logger) Errorf(format string, args ...any) { lg.l.Printf("ERROR "+format, args...) }
