package pool

import (
	"context"
	"fmt"
	"os"
)

// LocalBackend is the common case: the layer's URI already names a file
// on disk.
type LocalBackend struct {
	Path string
}

func (b LocalBackend) LocalPath(_ context.Context) (string, error) {
	if _, err := statFile(b.Path); err != nil {
		return "", fmt.Errorf("pool: local database %q: %w", b.Path, err)
	}
	return b.Path, nil
}

var _ Backend = LocalBackend{}

// ensureCacheDir creates dir if it doesn't already exist, matching the
// permissions a process-local scratch directory needs and nothing more.
func ensureCacheDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
