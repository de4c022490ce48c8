package catalog

import (
	"context"
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shishobooks/jellytweak/pkg/errcodes"
)

const trackIDQuery = `SELECT PresentationUniqueKey, guid FROM TypedBaseItems WHERE Path = ? AND type = ?`

// TrackIDLookup resolves track paths to the ids playlists link to.
type TrackIDLookup struct {
	stmt *Statement
}

func (svc *Service) NewTrackIDLookup(ctx context.Context) (*TrackIDLookup, error) {
	stmt, err := svc.Prepare(ctx, "track id lookup", trackIDQuery)
	if err != nil {
		return nil, err
	}
	return &TrackIDLookup{stmt: stmt}, nil
}

// Lookup returns the id of the single track row at path. No row is a
// NotFound error and more than one is an Ambiguous error.
func (l *TrackIDLookup) Lookup(ctx context.Context, path string) (string, error) {
	rows, err := l.stmt.stmt.QueryContext(ctx, path, TypeAudio)
	if err != nil {
		return "", errcodes.Store("exec", l.stmt.name, err)
	}
	defer rows.Close()

	var id string
	found := 0
	for rows.Next() {
		found++
		var key *string
		var guid []byte
		if err := rows.Scan(&key, &guid); err != nil {
			return "", errcodes.Store("scan", l.stmt.name, err)
		}
		if key != nil && *key != "" {
			id = *key
			continue
		}
		id, err = FormatGUID(guid)
		if err != nil {
			return "", err
		}
	}
	if err := rows.Err(); err != nil {
		return "", errcodes.Store("exec", l.stmt.name, err)
	}

	switch found {
	case 0:
		return "", errors.Wrap(errcodes.NotFound("Track"), path)
	case 1:
		return id, nil
	default:
		return "", errors.Wrap(errcodes.Ambiguous("Track"), path)
	}
}

func (l *TrackIDLookup) Close() error {
	return l.stmt.Close()
}

// FormatGUID renders a guid column value the way the media server prints item
// ids: 32 lowercase hex digits. The column holds the mixed-endian byte layout
// where the first three groups are little-endian.
func FormatGUID(b []byte) (string, error) {
	if len(b) == 36 || len(b) == 32 {
		// Some catalogs store guids as text.
		u, err := uuid.ParseBytes(b)
		if err != nil {
			return "", errors.WithStack(err)
		}
		return hex.EncodeToString(u[:]), nil
	}
	if len(b) != 16 {
		return "", errors.Errorf("invalid guid length %d", len(b))
	}

	swapped := make([]byte, 16)
	copy(swapped, b)
	swapped[0], swapped[1], swapped[2], swapped[3] = b[3], b[2], b[1], b[0]
	swapped[4], swapped[5] = b[5], b[4]
	swapped[6], swapped[7] = b[7], b[6]

	u, err := uuid.FromBytes(swapped)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return hex.EncodeToString(u[:]), nil
}
