package compositor

import (
	"net/url"
	"strings"
)

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func contains(s, sub string) bool {
	return strings.Contains(s, sub)
}

func containsFold(s, sub string) bool {
	return indexFold(s, sub) >= 0
}

// markerFor reduces a CDN URL to the host used by the presence check.
func markerFor(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}

// indexFold is strings.Index with ASCII case folding. Byte offsets in the
// result are valid for s because only ASCII letters are folded.
func indexFold(s, sub string) int {
	n := len(sub)
	if n == 0 {
		return 0
	}
	for i := 0; i+n <= len(s); i++ {
		if equalFoldASCII(s[i:i+n], sub) {
			return i
		}
	}
	return -1
}

func equalFoldASCII(a, b string) bool {
	for i := 0; i < len(a); i++ {
		if lowerASCII(a[i]) != lowerASCII(b[i]) {
			return false
		}
	}
	return true
}

func lowerASCII(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

// openTagEnd finds the first opening tag with the given name and returns the
// offset just past its closing '>'. "<header>" does not match "head".
func openTagEnd(s, name string) int {
	_, end := openTag(s, name)
	return end
}

// openTag returns the offsets of the first opening tag with the given name:
// its '<' and just past its '>'. Both are -1 when there is none.
func openTag(s, name string) (start, end int) {
	open := "<" + name
	from := 0
	for {
		i := indexFold(s[from:], open)
		if i < 0 {
			return -1, -1
		}
		i += from
		next := i + len(open)
		if next >= len(s) {
			return -1, -1
		}
		switch s[next] {
		case '>':
			return i, next + 1
		case ' ', '\t', '\n', '\r', '\f', '/':
			if gt := strings.IndexByte(s[next:], '>'); gt >= 0 {
				return i, next + gt + 1
			}
			return -1, -1
		}
		from = next
	}
}

// doctypeEnd returns the offset just past a leading <!DOCTYPE ...>, or -1.
func doctypeEnd(s string) int {
	trimmed := strings.TrimLeft(s, " \t\n\r\f\ufeff")
	if len(trimmed) < 9 || !equalFoldASCII(trimmed[:9], "<!doctype") {
		return -1
	}
	gt := strings.IndexByte(trimmed, '>')
	if gt < 0 {
		return -1
	}
	return len(s) - len(trimmed) + gt + 1
}
