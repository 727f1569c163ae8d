// internal/state/namespace.go
package state

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// CanonicalPath returns the absolute, cleaned form of a working directory,
// which is the registry key and the input to the namespace hash.
func CanonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	return filepath.Clean(abs), nil
}

// Namespace returns the hex digest naming the session directory of path.
func Namespace(path string) string {
	sum := md5.Sum([]byte(path))
	return hex.EncodeToString(sum[:])
}

// NamespaceDir returns <shareDir>/sessions/<namespace> without touching the
// filesystem.
func NamespaceDir(shareDir, path string) string {
	return filepath.Join(shareDir, "sessions", Namespace(path))
}

// EnsureNamespaceDir creates the namespace directory of path if needed and
// returns it.
func EnsureNamespaceDir(shareDir, path string) (string, error) {
	dir := NamespaceDir(shareDir, path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create namespace dir: %w", err)
	}
	return dir, nil
}
