package version

import (
	"path/filepath"
	"strings"
)

// Strategy selects how a file's version is derived.
type Strategy int

const (
	// StrategyContentHash hashes the file content.
	StrategyContentHash Strategy = iota
	// StrategyBinaryVersion reads the fixed file version from a PE version resource.
	StrategyBinaryVersion
)

// String implements fmt.Stringer.
func (s Strategy) String() string {
	switch s {
	case StrategyBinaryVersion:
		return "binary_version"
	default:
		return "content_hash"
	}
}

// binaryExtensions lists extensions that carry a PE version resource.
var binaryExtensions = map[string]Strategy{
	".exe": StrategyBinaryVersion,
	".dll": StrategyBinaryVersion,
	".sys": StrategyBinaryVersion,
	".ocx": StrategyBinaryVersion,
	".cpl": StrategyBinaryVersion,
	".drv": StrategyBinaryVersion,
}

// StrategyFor returns the strategy for path, case-insensitively by extension.
func StrategyFor(path string) Strategy {
	if s, ok := binaryExtensions[strings.ToLower(filepath.Ext(path))]; ok {
		return s
	}
	return StrategyContentHash
}
