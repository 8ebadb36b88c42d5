package util

import (
	"log/slog"
	"os"
)

// TempDir creates a scoped directory under root (os.TempDir when empty).
// The returned release removes it and everything below; call it on every
// exit path.
func TempDir(root, pattern string) (string, func(), error) {
	dir, err := os.MkdirTemp(root, pattern)
	if err != nil {
		return "", func() {}, err
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("removing temp dir", slog.String("dir", dir), slog.Any("error", err))
		}
	}, nil
}
