package watch

import (
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

// Canonical normalises p for comparison: backslashes become slashes, the
// path is made absolute and cleaned, and on Windows it is lower-cased.
func Canonical(p string) string {
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, `\`, "/")
	if abs, err := filepath.Abs(filepath.FromSlash(p)); err == nil {
		p = filepath.ToSlash(abs)
	}
	p = path.Clean(p)
	if runtime.GOOS == "windows" {
		p = strings.ToLower(p)
	}
	return p
}

// Dir returns the canonical parent directory of the canonical path p.
func Dir(p string) string {
	return path.Dir(p)
}
