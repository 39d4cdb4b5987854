// Package fsutil writes small state files so readers never observe a partial
// file.
package fsutil

import (
	"os"
	"path/filepath"
)

// WriteFileAtomic replaces path with data via a synced temp file and rename.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return writeViaTemp(path, data, perm, os.Rename)
}

// CreateFileAtomic writes data to path only if path does not exist yet. It
// returns an error satisfying errors.Is(err, fs.ErrExist) when it does.
func CreateFileAtomic(path string, data []byte, perm os.FileMode) error {
	return writeViaTemp(path, data, perm, os.Link)
}

func writeViaTemp(path string, data []byte, perm os.FileMode, publish func(oldpath, newpath string) error) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".credcache-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath)
	}()

	if err := tmpFile.Chmod(perm); err != nil {
		return err
	}
	if _, err := tmpFile.Write(data); err != nil {
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	if err := publish(tmpPath, path); err != nil {
		return err
	}

	_ = syncDir(dir)
	return nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
