package operations

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/shishobooks/jellytweak/pkg/catalog"
	"github.com/shishobooks/jellytweak/pkg/cover"
	"github.com/shishobooks/jellytweak/pkg/naming"
	"github.com/shishobooks/jellytweak/pkg/tracklist"
)

// Operation is the derived metadata for one catalog row.
type Operation interface {
	Kind() Kind
	// Target is the file or directory that must still exist when the
	// operation is applied.
	Target() string
	// Message describes the update for the run log.
	Message() string
	// Args returns the bindings for the kind's UPDATE statement.
	Args(opts Options, now time.Time) ([]interface{}, error)
}

// PlaylistImageOperation carries the metadata shared by an album directory.
// Playlist operations point at the playlist file inside the directory and
// album operations at the directory itself.
type PlaylistImageOperation struct {
	Path            string
	ImageDescriptor string
	Artist          string
	Album           string

	kind Kind
}

// NewAlbumOperation returns an operation for the album row at path.
func NewAlbumOperation(path, imageDescriptor, artist, album string) *PlaylistImageOperation {
	return &PlaylistImageOperation{
		Path:            path,
		ImageDescriptor: imageDescriptor,
		Artist:          artist,
		Album:           album,
		kind:            KindAlbum,
	}
}

func (op *PlaylistImageOperation) Kind() Kind {
	if op.kind == KindAlbum {
		return KindAlbum
	}
	return KindPlaylistImage
}

// Dir returns the album directory the operation describes.
func (op *PlaylistImageOperation) Dir() string {
	if op.Kind() == KindAlbum {
		return filepath.Clean(op.Path)
	}
	return filepath.Dir(op.Path)
}

func (op *PlaylistImageOperation) Target() string {
	return op.Dir()
}

func (op *PlaylistImageOperation) Message() string {
	if op.Kind() == KindAlbum {
		return fmt.Sprintf("Apply update for '%s' album metadata.", filepath.Base(op.Dir()))
	}
	return fmt.Sprintf("Apply update for '%s' playlist metadata.", filepath.Base(op.Dir()))
}

func (op *PlaylistImageOperation) Args(opts Options, _ time.Time) ([]interface{}, error) {
	args := metadataSetArgs(opts, op.Artist, op.Album, op.ImageDescriptor)

	if op.Kind() == KindAlbum {
		path, err := cover.Canonical(op.Path)
		if err != nil {
			return nil, err
		}
		args = append(args, path, catalog.TypeAlbum)
	} else {
		args = append(args,
			catalog.PrefixPattern(op.Dir()), catalog.MediaTypeAudio,
			op.Path, catalog.TypePlaylist,
		)
	}

	return append(args, metadataNeedArgs(opts, op.ImageDescriptor)...), nil
}

type TrackNumberOperation struct {
	Path        string
	TrackNumber int
}

func (op *TrackNumberOperation) Kind() Kind {
	return KindTrackNumber
}

func (op *TrackNumberOperation) Target() string {
	return op.Path
}

func (op *TrackNumberOperation) Message() string {
	return fmt.Sprintf("Apply update for '%s' track, track number is %d.", naming.Stem(op.Path), op.TrackNumber)
}

func (op *TrackNumberOperation) Args(_ Options, _ time.Time) ([]interface{}, error) {
	return []interface{}{op.TrackNumber, op.Path, catalog.TypeAudio}, nil
}

// PlaylistTracksOperation links a playlist to the tracks of its directory.
// TrackIDs[i] is the catalog id of OrderedTracks[i].
type PlaylistTracksOperation struct {
	Path          string
	OrderedTracks []string
	TrackIDs      []string
}

func (op *PlaylistTracksOperation) Kind() Kind {
	return KindPlaylistTracklist
}

func (op *PlaylistTracksOperation) Target() string {
	return filepath.Dir(op.Path)
}

func (op *PlaylistTracksOperation) Message() string {
	return fmt.Sprintf("Apply update for '%s' playlist tracks list.", filepath.Base(filepath.Dir(op.Path)))
}

func (op *PlaylistTracksOperation) Args(_ Options, now time.Time) ([]interface{}, error) {
	data, err := tracklist.Build(op.OrderedTracks, op.TrackIDs, now)
	if err != nil {
		return nil, err
	}
	return []interface{}{data, op.Path, catalog.TypePlaylist, catalog.EmptyTracklist}, nil
}
