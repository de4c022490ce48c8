// Package naming derives metadata from the "<Artist> - <Album>" folder and
// "<disc>-<track> - <Title>.mp3" file naming conventions of a music library.
package naming

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// Separator splits names into their artist, album or number parts.
	Separator = " - "

	// TrackExtension is the only extension counted as a track.
	TrackExtension = ".mp3"

	// UnknownArtist is used when no artist can be derived from any name.
	UnknownArtist = "Unknown"
)

// ParseArtistAlbum splits "Artist - Album" into its parts. Everything after
// the first separator belongs to the album, so "A - B - C" is ("A", "B - C").
// Names without a separator, or with a blank artist or album, are not ok.
func ParseArtistAlbum(name string) (artist, album string, ok bool) {
	parts := strings.Split(name, Separator)
	if len(parts) < 2 {
		return "", "", false
	}
	artist, album = parts[0], strings.Join(parts[1:], Separator)
	if strings.TrimSpace(artist) == "" || strings.TrimSpace(album) == "" {
		return "", "", false
	}
	return artist, album, true
}

// AlbumMetadata tries each name in order and returns the first artist and
// album it can parse. When none parse, the artist is UnknownArtist and the
// album is fallback.
func AlbumMetadata(fallback string, names ...string) (artist, album string) {
	for _, name := range names {
		if artist, album, ok := ParseArtistAlbum(name); ok {
			return artist, album
		}
	}
	return UnknownArtist, fallback
}

// Stem returns the last element of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsTrack reports whether name has the track extension.
func IsTrack(name string) bool {
	return filepath.Ext(name) == TrackExtension
}

// ListTracks returns the full paths of the track files in dir in
// lexicographic order.
func ListTracks(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	tracks := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsTrack(entry.Name()) {
			continue
		}
		tracks = append(tracks, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(tracks)
	return tracks, nil
}

// ParseTrackNumber derives the sequential track number of the file at path
// from its name. "07 - Title.mp3" is 7 and "1-07 - Title.mp3" is 7. Later
// discs restart their numbering, so for "2-03 - Title.mp3" the number is the
// file's 1-based position among the sorted tracks of its directory.
func ParseTrackNumber(path string) (int, error) {
	parts := strings.Split(Stem(path), Separator)
	if len(parts) < 2 {
		return 0, errors.Errorf("track name %q has no %q separator", filepath.Base(path), Separator)
	}

	numberPart := strings.TrimSpace(parts[0])
	disc, track, hasDisc := strings.Cut(numberPart, "-")
	if !hasDisc {
		return parseNumber(numberPart, path)
	}
	if strings.TrimSpace(disc) == "1" {
		return parseNumber(strings.TrimSpace(track), path)
	}
	return trackPosition(path)
}

func parseNumber(s, path string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Errorf("track name %q has non-numeric number %q", filepath.Base(path), s)
	}
	return n, nil
}

// trackPosition counts the tracks sorted before path in its directory.
func trackPosition(path string) (int, error) {
	tracks, err := ListTracks(filepath.Dir(path))
	if err != nil {
		return 0, err
	}

	target := filepath.Clean(path)
	for i, track := range tracks {
		if track == target {
			return i + 1, nil
		}
	}
	return 0, errors.Errorf("track %q is not in its directory listing", filepath.Base(path))
}
