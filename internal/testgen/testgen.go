// Package testgen provides utilities for generating music folders and media
// server catalogs with configurable contents for testing the update pipeline.
package testgen

import (
	"os"
	"path/filepath"
	"testing"
)

// AlbumOptions configures a generated album directory.
type AlbumOptions struct {
	Name        string   // directory name, e.g. "Pink Floyd - The Wall"
	Tracks      []string // track file names, written as empty files
	Playlist    string   // playlist file name, "" for none
	Cover       string   // cover file name, "" for none
	CoverFormat string   // see GenerateImage, defaults to "image/jpeg"
	CoverWidth  int      // defaults to 100
	CoverHeight int      // defaults to 100
}

// TempDir creates a temporary directory for testing and registers cleanup.
// The directory is automatically removed when the test completes.
func TempDir(t *testing.T, pattern string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

// TempMusicDir creates a temporary music library root.
func TempMusicDir(t *testing.T) string {
	t.Helper()
	return TempDir(t, "testgen-music-*")
}

// CreateSubDir creates a subdirectory within the given parent directory.
// Returns the full path to the created subdirectory.
func CreateSubDir(t *testing.T, parent, name string) string {
	t.Helper()
	dir := filepath.Join(parent, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create subdirectory %s: %v", dir, err)
	}
	return dir
}

// WriteFile creates a file with the given content in the specified directory.
// Returns the full path to the created file.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	return path
}

// CreateAlbum lays out an album directory under parent and returns its path.
func CreateAlbum(t *testing.T, parent string, opts AlbumOptions) string {
	t.Helper()

	dir := CreateSubDir(t, parent, opts.Name)
	for _, track := range opts.Tracks {
		WriteFile(t, dir, track, nil)
	}
	if opts.Playlist != "" {
		WriteFile(t, dir, opts.Playlist, []byte("#EXTM3U\n"))
	}
	if opts.Cover != "" {
		format := opts.CoverFormat
		if format == "" {
			format = "image/jpeg"
		}
		width, height := opts.CoverWidth, opts.CoverHeight
		if width == 0 {
			width = 100
		}
		if height == 0 {
			height = 100
		}
		WriteFile(t, dir, opts.Cover, GenerateImage(t, format, width, height))
	}
	return dir
}

// FileExists checks if a file exists at the given path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadFile reads and returns the contents of a file.
func ReadFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file %s: %v", path, err)
	}
	return data
}

// StringPtr is a helper to create a pointer to a string.
func StringPtr(s string) *string {
	return &s
}
