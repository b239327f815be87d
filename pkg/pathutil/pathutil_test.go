package pathutil

import "testing"

func TestCleanBasics(t *testing.T) {
	cases := map[string]string{
		"":                    "",
		".":                   "",
		"./src/main.go":       "src/main.go",
		"src\\main.go":        "src/main.go",
		`\\?\C:\repo\main.go`: "C:/repo/main.go",
		"a//b///c":            "a/b/c",
		"a/b/":                "a/b",
		"/":                   "/",
	}
	for in, want := range cases {
		if got := Clean(in); got != want {
			t.Errorf("Clean(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanIdempotent(t *testing.T) {
	inputs := []string{"", "a/b/c", `\\?\C:\repo\main.go`, "a//b/", "./x/y"}
	for _, in := range inputs {
		once := Clean(in)
		twice := Clean(once)
		if once != twice {
			t.Errorf("Clean not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}

func TestInDir(t *testing.T) {
	if !InDir("src/main.go", "") {
		t.Error("root should contain every path")
	}
	if !InDir("src", "src") {
		t.Error("dir should contain itself")
	}
	if !InDir("src/pkg/file.go", "src") {
		t.Error("dir should contain nested path")
	}
	if InDir("srcother/file.go", "src") {
		t.Error("prefix-only match should not count as contained")
	}
}
