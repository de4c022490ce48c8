// Package catalog reads and writes the media server's item table.
package catalog

import (
	"github.com/shishobooks/jellytweak/pkg/tracklist"
	"github.com/uptrace/bun"
)

const Table = "TypedBaseItems"

// Item type tags stored in the type column.
const (
	TypePlaylist = "MediaBrowser.Controller.Playlists.Playlist"
	TypeAlbum    = "MediaBrowser.Controller.Entities.Audio.MusicAlbum"
	TypeAudio    = "MediaBrowser.Controller.Entities.Audio.Audio"
	TypeArtist   = "MediaBrowser.Controller.Entities.Audio.MusicArtist"
)

// MediaTypeAudio is the media type of track rows. Folder-like rows leave the
// column NULL.
const MediaTypeAudio = "Audio"

// EmptyTracklist is the data value of a playlist that has no track list yet.
var EmptyTracklist = []byte(tracklist.EmptyPlaylist)

type Item struct {
	bun.BaseModel `bun:"table:TypedBaseItems,alias:tbi"`

	GUID                  []byte  `bun:"guid"`
	Type                  string  `bun:"type"`
	Data                  []byte  `bun:"data"`
	Path                  *string `bun:"Path"`
	Images                *string `bun:"Images"`
	Album                 *string `bun:"Album"`
	Artists               *string `bun:"Artists"`
	AlbumArtists          *string `bun:"AlbumArtists"`
	MediaType             *string `bun:"MediaType"`
	IndexNumber           *int    `bun:"IndexNumber"`
	PresentationUniqueKey *string `bun:"PresentationUniqueKey"`
}

// PathValue returns the item's path or "" when it has none.
func (i *Item) PathValue() string {
	if i.Path == nil {
		return ""
	}
	return *i.Path
}
