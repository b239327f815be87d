package errs

import (
	"errors"
	"strings"
	"testing"
)

func TestIndexNotFoundMessage(t *testing.T) {
	err := IndexNotFound("/repo")
	if got := err.Error(); got == "" {
		t.Fatal("expected non-empty message")
	}
	if want := "No content index found for '/repo'"; !strings.Contains(err.Error(), want) {
		t.Errorf("message %q does not contain %q", err.Error(), want)
	}
}

func TestEmptyPhraseMessage(t *testing.T) {
	err := EmptyPhrase("...")
	if want := "no indexable tokens (min length 2)"; !strings.Contains(err.Error(), want) {
		t.Errorf("message %q does not contain %q", err.Error(), want)
	}
}

func TestIsSentinel(t *testing.T) {
	err := IndexNotFound("/repo")
	if !errors.Is(err, Sentinel(KindIndexNotFound)) {
		t.Error("expected errors.Is to match by Kind")
	}
	if errors.Is(err, Sentinel(KindStaleIndex)) {
		t.Error("expected errors.Is to not match a different Kind")
	}
}

func TestExitCodes(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{InvalidArgs("bad"), 1},
		{DirNotFound("/x"), 3},
		{IndexNotFound("/x"), 3},
		{StaleIndex(10, 5), 4},
		{Io(errors.New("boom")), 2},
	}
	for _, c := range cases {
		if got := ExitCode(c.err); got != c.want {
			t.Errorf("ExitCode(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
