// Package operations derives missing catalog metadata from the music library
// on disk and writes it back.
//
// Every kind of update runs in two phases. Generate scans the catalog rows
// that lack a value and builds one Operation per row from the files on disk.
// Apply runs one prepared UPDATE per phase, rebinding it for each Operation.
package operations

import (
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/shishobooks/jellytweak/pkg/catalog"
)

type Kind int

const (
	// KindPlaylistImage fills images, artists and album of a playlist and of
	// the tracks in its directory.
	KindPlaylistImage Kind = iota
	// KindAlbum fills images, artists and album of album rows.
	KindAlbum
	// KindTrackNumber fills track numbers.
	KindTrackNumber
	// KindPlaylistTracklist writes the track list of empty playlists.
	KindPlaylistTracklist
)

// Kinds lists every kind in the order they are counted.
var Kinds = []Kind{KindPlaylistImage, KindPlaylistTracklist, KindTrackNumber, KindAlbum}

type kindSpec struct {
	name string
	// found formats the count message.
	found string
	list  catalog.ListItemsOptions
	// weight is the progress units one row is worth across both phases.
	weight int
	// generateUnits is the part of weight advanced when a row is generated.
	// The rest is advanced when it is applied.
	generateUnits int
}

var kindSpecs = map[Kind]kindSpec{
	KindPlaylistImage: {
		name:  "playlist images",
		found: "Found %d playlists to update image, artists and album metadata.",
		list: catalog.ListItemsOptions{
			Type:            pointerutil.String(catalog.TypePlaylist),
			MissingMetadata: true,
		},
		weight:        2,
		generateUnits: 1,
	},
	KindAlbum: {
		name:  "albums",
		found: "Found %d albums to update image, artists and album metadata.",
		list: catalog.ListItemsOptions{
			Type:            pointerutil.String(catalog.TypeAlbum),
			MissingMetadata: true,
		},
		// Album data comes from the playlist phase, so only the apply counts.
		weight:        1,
		generateUnits: 0,
	},
	KindTrackNumber: {
		name:  "track numbers",
		found: "Found %d tracks to update track number.",
		list: catalog.ListItemsOptions{
			Type:               pointerutil.String(catalog.TypeAudio),
			MissingIndexNumber: true,
		},
		weight:        2,
		generateUnits: 1,
	},
	KindPlaylistTracklist: {
		name:  "playlist tracklists",
		found: "Found %d playlist to update audio tracks list.",
		list: catalog.ListItemsOptions{
			Type:           pointerutil.String(catalog.TypePlaylist),
			EmptyTracklist: true,
		},
		// The generate unit is advanced once the track ids are resolved.
		weight:        2,
		generateUnits: 1,
	},
}

func (k Kind) spec() kindSpec {
	return kindSpecs[k]
}

func (k Kind) String() string {
	return k.spec().name
}

// Weight returns the progress units a row of this kind is worth.
func (k Kind) Weight() int {
	return k.spec().weight
}
