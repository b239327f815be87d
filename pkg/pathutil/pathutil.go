// Package pathutil normalizes file paths to the single canonical form the
// rest of the engine treats as ground truth: forward slashes, no Windows
// extended-length prefix, no trailing slash, no leading "./", no doubled
// slashes. Paths are canonicalized once at ingest; query paths never
// re-canonicalize.
package pathutil

import "strings"

// winExtendedPrefix is the Windows extended-length path prefix.
const winExtendedPrefix = `\\?\`

// Clean returns the canonical form of p. The empty string denotes the
// repository root and is returned unchanged. Clean is idempotent:
// Clean(Clean(s)) == Clean(s).
func Clean(p string) string {
	if p == "" {
		return ""
	}

	if strings.HasPrefix(p, winExtendedPrefix) {
		p = p[len(winExtendedPrefix):]
	}

	p = strings.ReplaceAll(p, "\\", "/")

	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}

	var b strings.Builder
	b.Grow(len(p))
	prevSlash := false
	for _, r := range p {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}
	p = b.String()

	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = p[:len(p)-1]
	}

	if p == "." {
		return ""
	}
	return p
}

// InDir reports whether candidate is dir itself or lives somewhere under
// it. Both arguments must already be in canonical form. The repository
// root ("") contains every path.
func InDir(candidate, dir string) bool {
	if dir == "" {
		return true
	}
	return candidate == dir || strings.HasPrefix(candidate, dir+"/")
}
