// Package tracklist builds the structured payload a playlist row stores in
// its data column.
package tracklist

import (
	"bytes"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// EmptyPlaylist is the payload of a playlist whose track list has never been
// written. Rows holding exactly these bytes are the ones that need one.
const EmptyPlaylist = `{"OwnerUserId":"00000000000000000000000000000000","Shares":[],"PlaylistMediaType":"Audio","IsRoot":false,"LinkedChildren":[],"IsHD":false,"IsShortcut":false,"Width":0,"Height":0,"ExtraIds":[],"DateLastSaved":"0001-01-01T00:00:00.0000000Z","RemoteTrailers":[],"SupportsExternalTransfer":false}`

// DateLayout writes timestamps in UTC with microsecond precision.
const DateLayout = "2006-01-02T15:04:05.000000Z"

// LinkedChildType is the link type of every generated entry.
const LinkedChildType = "Manual"

type LinkedChild struct {
	Path   string `json:"Path"`
	Type   string `json:"Type"`
	ItemID string `json:"ItemId"`
}

// Payload mirrors the playlist payload in serialization order.
type Payload struct {
	OwnerUserID              string            `json:"OwnerUserId"`
	Shares                   []json.RawMessage `json:"Shares"`
	PlaylistMediaType        string            `json:"PlaylistMediaType"`
	IsRoot                   bool              `json:"IsRoot"`
	LinkedChildren           []LinkedChild     `json:"LinkedChildren"`
	IsHD                     bool              `json:"IsHD"`
	IsShortcut               bool              `json:"IsShortcut"`
	Width                    int               `json:"Width"`
	Height                   int               `json:"Height"`
	ExtraIDs                 []json.RawMessage `json:"ExtraIds"`
	DateLastSaved            string            `json:"DateLastSaved"`
	RemoteTrailers           []json.RawMessage `json:"RemoteTrailers"`
	SupportsExternalTransfer bool              `json:"SupportsExternalTransfer"`
}

// Template returns a fresh copy of the empty playlist payload.
func Template() (*Payload, error) {
	p := &Payload{}
	if err := json.Unmarshal([]byte(EmptyPlaylist), p); err != nil {
		return nil, errors.WithStack(err)
	}
	return p, nil
}

// Build returns the serialized payload linking tracks[i] to ids[i], stamped
// with now.
func Build(tracks, ids []string, now time.Time) ([]byte, error) {
	if len(tracks) != len(ids) {
		return nil, errors.Errorf("tracklist has %d tracks but %d ids", len(tracks), len(ids))
	}

	p, err := Template()
	if err != nil {
		return nil, err
	}

	p.LinkedChildren = make([]LinkedChild, len(tracks))
	for i, track := range tracks {
		p.LinkedChildren[i] = LinkedChild{
			Path:   filepath.Base(track),
			Type:   LinkedChildType,
			ItemID: ids[i],
		}
	}
	p.DateLastSaved = now.UTC().Format(DateLayout)

	return Marshal(p)
}

// Marshal serializes p compactly without HTML escaping, so names like
// "Simon & Garfunkel" are stored as written.
func Marshal(p *Payload) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, errors.WithStack(err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
