package tracklist

import (
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplate_RoundTripsEmptyPlaylist(t *testing.T) {
	p, err := Template()
	require.NoError(t, err)

	data, err := Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, EmptyPlaylist, string(data))
}

func TestBuild(t *testing.T) {
	now := time.Date(2024, 3, 9, 18, 4, 5, 123456789, time.FixedZone("CET", 3600))

	data, err := Build(
		[]string{"/music/Pink Floyd - The Wall/1-01 - In The Flesh.mp3", "/music/Pink Floyd - The Wall/1-02 - The Thin Ice.mp3"},
		[]string{"aaa", "bbb"},
		now,
	)
	require.NoError(t, err)

	expected := `{"OwnerUserId":"00000000000000000000000000000000","Shares":[],"PlaylistMediaType":"Audio","IsRoot":false,` +
		`"LinkedChildren":[{"Path":"1-01 - In The Flesh.mp3","Type":"Manual","ItemId":"aaa"},{"Path":"1-02 - The Thin Ice.mp3","Type":"Manual","ItemId":"bbb"}],` +
		`"IsHD":false,"IsShortcut":false,"Width":0,"Height":0,"ExtraIds":[],"DateLastSaved":"2024-03-09T17:04:05.123456Z",` +
		`"RemoteTrailers":[],"SupportsExternalTransfer":false}`
	assert.Equal(t, expected, string(data))
}

func TestBuild_DoesNotEscapeHTML(t *testing.T) {
	data, err := Build([]string{"/m/01 - Rock & Roll <Live>.mp3"}, []string{"id"}, time.Unix(0, 0))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Path":"01 - Rock & Roll <Live>.mp3"`)
}

func TestBuild_NoTracks(t *testing.T) {
	data, err := Build(nil, nil, time.Unix(0, 0))
	require.NoError(t, err)

	p := &Payload{}
	require.NoError(t, json.Unmarshal(data, p))
	assert.NotNil(t, p.LinkedChildren)
	assert.Empty(t, p.LinkedChildren)
	assert.Equal(t, "1970-01-01T00:00:00.000000Z", p.DateLastSaved)
}

func TestBuild_LengthMismatch(t *testing.T) {
	_, err := Build([]string{"a.mp3", "b.mp3"}, []string{"only-one"}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 tracks but 1 ids")
}
