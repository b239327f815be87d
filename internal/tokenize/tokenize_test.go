package tokenize

import "testing"

func TestTokenizeBasic(t *testing.T) {
	got := Tokenize("Hello, World_123!", 2)
	want := []string{"hello", "world_123"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTokenizeMinLenFiltersShort(t *testing.T) {
	got := Tokenize("a bb ccc", 2)
	want := []string{"bb", "ccc"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTokenizeEmptyInput(t *testing.T) {
	if got := Tokenize("", 2); len(got) != 0 {
		t.Errorf("expected empty output, got %v", got)
	}
}

func TestTokenizeDeterministic(t *testing.T) {
	line := "The Quick_Brown Fox-42 jumps"
	a := Tokenize(line, 2)
	b := Tokenize(line, 2)
	if len(a) != len(b) {
		t.Fatal("non-deterministic output length")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("non-deterministic output content")
		}
	}
}

func TestTokenizeLowercase(t *testing.T) {
	for _, tok := range Tokenize("ABC Def_GHI", 2) {
		for _, r := range tok {
			if r >= 'A' && r <= 'Z' {
				t.Errorf("token %q is not lowercase", tok)
			}
		}
	}
}

func TestTokenizeHigherMinLenNeverIncreasesCount(t *testing.T) {
	line := "a ab abc abcd abcde"
	prev := len(Tokenize(line, 1))
	for minLen := 2; minLen <= 6; minLen++ {
		cur := len(Tokenize(line, minLen))
		if cur > prev {
			t.Fatalf("minLen=%d produced more tokens (%d) than minLen=%d (%d)", minLen, cur, minLen-1, prev)
		}
		prev = cur
	}
}

func TestTokenizeOnlyValidChars(t *testing.T) {
	for _, tok := range Tokenize("foo!!!bar@@@baz_qux", 2) {
		for _, r := range tok {
			if !isTokenRune(r) {
				t.Errorf("token %q contains invalid rune %q", tok, r)
			}
		}
	}
}
