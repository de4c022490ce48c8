package operations

import "github.com/shishobooks/jellytweak/pkg/config"

// Options selects which updates a run performs.
type Options struct {
	UpdateImages             bool
	UpdateArtists            bool
	UpdateAlbums             bool
	UpdateTrackNumbers       bool
	UpdatePlaylistTracklists bool

	// ImageName is the substring identifying an album's cover file.
	ImageName string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		UpdateImages:             cfg.UpdateImages,
		UpdateArtists:            cfg.UpdateArtists,
		UpdateAlbums:             cfg.UpdateAlbums,
		UpdateTrackNumbers:       cfg.UpdateTrackNumbers,
		UpdatePlaylistTracklists: cfg.UpdatePlaylistTracklists,
		ImageName:                cfg.ImageName,
	}
}

// Enabled reports whether kind runs with these options. Playlist and album
// updates need at least one of images or artists to have anything to set.
func (o Options) Enabled(kind Kind) bool {
	switch kind {
	case KindPlaylistImage:
		return o.UpdateImages || o.UpdateArtists
	case KindAlbum:
		return o.UpdateAlbums && (o.UpdateImages || o.UpdateArtists)
	case KindTrackNumber:
		return o.UpdateTrackNumbers
	case KindPlaylistTracklist:
		return o.UpdatePlaylistTracklists
	default:
		return false
	}
}
