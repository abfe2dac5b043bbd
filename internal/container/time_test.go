package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeStoreRejected(t *testing.T) {
	c := newTime()
	_, _, err := c.Store(1, mustValue("x"), false)
	assert.ErrorIs(t, err, ErrStoreUnsupported)
}

func TestTimeFetchReturnsAsciiTimestamp(t *testing.T) {
	c := newTime()
	res, _, err := c.Fetch(1, IterState{}, false)
	require.NoError(t, err)

	b, err := res.Value.Bytes()
	require.NoError(t, err)
	assert.NotEmpty(t, string(b))
}
