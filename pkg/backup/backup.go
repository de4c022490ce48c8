// Package backup makes a safety copy of the catalog before it is modified.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

const timestampLayout = "20060102-150405"

// journalSuffixes are the SQLite side files that hold committed data not yet
// checkpointed into the main file.
var journalSuffixes = []string{"-wal", "-shm"}

// Create copies the database at dbPath, and its journal files when present,
// into dir (the database's own directory when dir is empty). It returns the
// path of the copy, "<name>.<timestamp>.bak", never overwriting an existing
// backup.
func Create(dbPath, dir string, now time.Time) (string, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if info.IsDir() {
		return "", errors.Errorf("%s is a directory, not a database file", dbPath)
	}

	if dir == "" {
		dir = filepath.Dir(dbPath)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.WithStack(err)
	}

	name := fmt.Sprintf("%s.%s.bak", filepath.Base(dbPath), now.Format(timestampLayout))
	dst := generateUniqueFilepath(filepath.Join(dir, name))

	if err := copyFile(dbPath, dst); err != nil {
		return "", err
	}
	copied := []string{dst}
	for _, suffix := range journalSuffixes {
		if _, err := os.Stat(dbPath + suffix); err != nil {
			continue
		}
		if err := copyFile(dbPath+suffix, dst+suffix); err != nil {
			// A backup without its journal is not a usable copy.
			for _, path := range copied {
				_ = os.Remove(path)
			}
			return "", err
		}
		copied = append(copied, dst+suffix)
	}

	return dst, nil
}

// copyFile copies a file from source to destination. A partially written
// destination is removed.
func copyFile(src, dst string) (err error) {
	sourceFile, err := os.Open(src)
	if err != nil {
		return errors.WithStack(err)
	}
	defer sourceFile.Close()

	destFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		destFile.Close()
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return errors.WithStack(err)
	}

	// Copy file permissions
	sourceInfo, err := sourceFile.Stat()
	if err != nil {
		return errors.WithStack(err)
	}
	if err := destFile.Chmod(sourceInfo.Mode()); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(destFile.Sync())
}

// generateUniqueFilepath creates a unique filepath by appending a number if needed.
func generateUniqueFilepath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	base := filepath.Base(path)
	nameWithoutExt := base[:len(base)-len(ext)]

	for i := 1; i < 1000; i++ {
		newPath := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", nameWithoutExt, i, ext))
		if _, err := os.Stat(newPath); os.IsNotExist(err) {
			return newPath
		}
	}

	// Fallback - the exclusive create in copyFile refuses to overwrite it.
	return path
}
