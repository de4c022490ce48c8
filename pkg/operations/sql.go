package operations

import (
	"strings"

	"github.com/shishobooks/jellytweak/pkg/catalog"
)

// Updates only fill columns that are still NULL, and only match rows that
// still miss something, so rows the media server or a previous run already
// filled are left alone. An empty image descriptor never replaces NULL.

func metadataSet(opts Options) string {
	sets := make([]string, 0, 4)
	if opts.UpdateArtists {
		sets = append(sets,
			"Artists = COALESCE(Artists, ?)",
			"AlbumArtists = COALESCE(AlbumArtists, ?)",
			"Album = COALESCE(Album, ?)",
		)
	}
	if opts.UpdateImages {
		sets = append(sets, "Images = COALESCE(Images, NULLIF(?, ''))")
	}
	return strings.Join(sets, ", ")
}

func metadataSetArgs(opts Options, artist, album, image string) []interface{} {
	args := make([]interface{}, 0, 4)
	if opts.UpdateArtists {
		args = append(args, artist, artist, album)
	}
	if opts.UpdateImages {
		args = append(args, image)
	}
	return args
}

func metadataNeed(opts Options) string {
	needs := make([]string, 0, 4)
	if opts.UpdateArtists {
		needs = append(needs, "Artists IS NULL", "AlbumArtists IS NULL", "Album IS NULL")
	}
	if opts.UpdateImages {
		needs = append(needs, "(Images IS NULL AND ? <> '')")
	}
	return "(" + strings.Join(needs, " OR ") + ")"
}

func metadataNeedArgs(opts Options, image string) []interface{} {
	if opts.UpdateImages {
		return []interface{}{image}
	}
	return nil
}

// UpdateSQL returns the UPDATE statement applying operations of kind with
// opts. The placeholders match Operation.Args.
func UpdateSQL(kind Kind, opts Options) string {
	switch kind {
	case KindPlaylistImage:
		return "UPDATE " + catalog.Table + " SET " + metadataSet(opts) +
			" WHERE ((Path LIKE ? ESCAPE '" + catalog.LikeEscape + "' AND MediaType = ?) OR (Path = ? AND type = ?))" +
			" AND " + metadataNeed(opts)
	case KindAlbum:
		return "UPDATE " + catalog.Table + " SET " + metadataSet(opts) +
			" WHERE Path = ? AND MediaType IS NULL AND type = ?" +
			" AND " + metadataNeed(opts)
	case KindTrackNumber:
		return "UPDATE " + catalog.Table + " SET IndexNumber = ?" +
			" WHERE Path = ? AND type = ? AND IndexNumber IS NULL"
	case KindPlaylistTracklist:
		return "UPDATE " + catalog.Table + " SET data = ?" +
			" WHERE Path = ? AND type = ? AND data = ?"
	default:
		return ""
	}
}
