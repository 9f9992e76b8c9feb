package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
)

const lockFileName = "reelsweep.lock"

// acquireLock takes an advisory lock on the working directory, keyed by
// input stem. Concurrent orchestration of the same stem is unsupported;
// the lock turns that from a silent race into an immediate error.
func acquireLock(workDir string) (release func(), err error) {
	path := filepath.Join(workDir, lockFileName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("working directory %s is locked by another run (remove %s if stale)", workDir, path)
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()

	return func() { _ = os.Remove(path) }, nil
}
