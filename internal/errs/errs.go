// Package errs implements the engine's closed error-kind taxonomy (kinds,
// not types). Per-file read/parse errors are counted by callers, not
// wrapped here; this package covers the caller-visible, query/load-time
// failures a host must distinguish on.
package errs

import "fmt"

// Kind is one of the closed set of error kinds the engine can surface.
type Kind string

const (
	KindIo            Kind = "io"
	KindSerialization Kind = "serialization"
	KindInvalidRegex  Kind = "invalid_regex"
	KindDirNotFound   Kind = "dir_not_found"
	KindIndexNotFound Kind = "index_not_found"
	KindStaleIndex    Kind = "stale_index"
	KindLockPoisoned  Kind = "lock_poisoned"
	KindSaveFailed    Kind = "save_failed"
	KindEmptyPhrase   Kind = "empty_phrase"
	KindInvalidArgs   Kind = "invalid_args"
	KindIndexLoad     Kind = "index_load"
)

// Error is the engine's single error type; Kind selects the variant and
// the remaining fields are populated per kind.
type Error struct {
	Kind       Kind
	Path       string
	Pattern    string
	Age        int64
	Max        int64
	Underlying error
	msg        string
}

func (e *Error) Error() string {
	if e.msg != "" {
		return e.msg
	}
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Underlying)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Underlying }

// Is supports errors.Is(err, errs.KindX) style checks via a sentinel Error
// whose Kind alone is compared.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel returns a comparison target for errors.Is(err, errs.Sentinel(k)).
func Sentinel(k Kind) error { return &Error{Kind: k} }

func Io(err error) *Error {
	return &Error{Kind: KindIo, Underlying: err}
}

func Serialization(err error) *Error {
	return &Error{Kind: KindSerialization, Underlying: err}
}

func InvalidRegex(pattern string, err error) *Error {
	return &Error{
		Kind:       KindInvalidRegex,
		Pattern:    pattern,
		Underlying: err,
		msg:        fmt.Sprintf("invalid regex %q: %v", pattern, err),
	}
}

func DirNotFound(dir string) *Error {
	return &Error{Kind: KindDirNotFound, Path: dir, msg: fmt.Sprintf("directory not found: %s", dir)}
}

func IndexNotFound(dir string) *Error {
	return &Error{
		Kind: KindIndexNotFound,
		Path: dir,
		msg: fmt.Sprintf("No content index found for '%s'. Build one first:\n  codeindex index -d %s -e cs",
			dir, dir),
	}
}

func StaleIndex(age, max int64) *Error {
	return &Error{
		Kind: KindStaleIndex,
		Age:  age,
		Max:  max,
		msg:  fmt.Sprintf("index is stale: age %ds exceeds max %ds", age, max),
	}
}

func LockPoisoned(msg string) *Error {
	return &Error{Kind: KindLockPoisoned, msg: "lock poisoned: " + msg}
}

func SaveFailed(msg string) *Error {
	return &Error{Kind: KindSaveFailed, msg: "save failed: " + msg}
}

func EmptyPhrase(phrase string) *Error {
	return &Error{
		Kind:    KindEmptyPhrase,
		Pattern: phrase,
		msg:     fmt.Sprintf("Phrase '%s' has no indexable tokens (min length 2)", phrase),
	}
}

func InvalidArgs(msg string) *Error {
	return &Error{Kind: KindInvalidArgs, msg: msg}
}

func IndexLoad(path, msg string) *Error {
	return &Error{Kind: KindIndexLoad, Path: path, msg: fmt.Sprintf("failed to load index %s: %s", path, msg)}
}

// ExitCode maps an error to the one-shot CLI exit codes:
// 0 success, 1 invalid arguments, 2 IO, 3 index-not-found, 4 stale index.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	e, ok := err.(*Error)
	if !ok {
		return 2
	}
	switch e.Kind {
	case KindInvalidArgs, KindInvalidRegex, KindEmptyPhrase:
		return 1
	case KindIndexNotFound, KindDirNotFound:
		return 3
	case KindStaleIndex:
		return 4
	default:
		return 2
	}
}
