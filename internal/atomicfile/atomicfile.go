// Package atomicfile writes files via a temporary sibling and an atomic
// rename, so a crash mid-write never leaves a partial file visible under
// its real name.
package atomicfile

import (
	"os"
	"path/filepath"
)

// WriteFile writes data to path atomically: tmp file → fsync → rename.
// The parent directory must already exist.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".studykb-tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	success = true
	return nil
}
