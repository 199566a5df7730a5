package version

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Resolver derives file versions from disk.
type Resolver struct {
	strategyFor func(string) Strategy
}

// NewResolver creates a Resolver using the default extension table.
func NewResolver() *Resolver {
	return &Resolver{strategyFor: StrategyFor}
}

// Resolve returns the version string for path.
//
// Parameters:
//   - ctx: Checked before any file access
//   - path: File to inspect
//
// Returns:
//   - string: "a.b.c.d" for binaries, hex SHA-256 otherwise
//   - error: Wraps ErrResolve (and ErrVersionNotFound or the OS error)
func (r *Resolver) Resolve(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrResolve, err)
	}

	var (
		v   string
		err error
	)
	switch r.strategyFor(path) {
	case StrategyBinaryVersion:
		v, err = binaryVersion(path)
	default:
		v, err = contentHash(path)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrResolve, err)
	}
	return v, nil
}

func contentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
