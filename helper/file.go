package helper

import (
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to path via a temporary file and rename, so a
// reader never observes a partially written file. The parent directory is
// created if missing.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return NewError("creating directory", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return NewError("writing temporary file", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return NewError("renaming temporary file", err)
	}

	return nil
}
