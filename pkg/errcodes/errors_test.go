package errcodes

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIs(t *testing.T) {
	t.Parallel()

	err := errors.Wrap(NotFound("Track"), "/music/A - B/01 - x.mp3")
	assert.ErrorIs(t, err, NotFound("Track"))
	assert.NotErrorIs(t, err, NotFound("Playlist"))
	assert.NotErrorIs(t, err, Ambiguous("Track"))
	assert.ErrorIs(t, errors.WithStack(ErrAborted), ErrAborted)
}

func TestStore(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk I/O error")
	err := errors.Wrap(Store("exec", "track numbers", cause), "apply")

	assert.True(t, IsStore(err))
	assert.False(t, IsStore(NotFound("Track")))
	assert.False(t, IsStore(cause))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "apply: SQLite exec failed for track numbers: disk I/O error", err.Error())

	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, "exec", e.Op)
}
