package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownFetchFindNeverSucceedNonBlocking(t *testing.T) {
	c := newUnknown()
	_, _, err := c.Fetch(1, IterState{}, false)
	assert.ErrorIs(t, err, ErrNoValue)
	_, _, err = c.Find(1, IterState{}, false)
	assert.ErrorIs(t, err, ErrNoValue)
}

func TestPromoteFromUnknownTransfersWaiters(t *testing.T) {
	u := newUnknown()
	_, wf, err := u.Fetch(1, IterState{}, true)
	require.NoError(t, err)
	_, wn, err := u.Find(2, IterState{}, true)
	require.NoError(t, err)

	fifo := Promote(u, ModeFIFO)
	assert.Equal(t, ModeFIFO, fifo.Mode())
	assert.Equal(t, 1, fifo.NumFetchers())
	assert.Equal(t, 1, fifo.NumFinders())

	consumed, _, err := fifo.Store(3, mustValue("x"), false)
	require.NoError(t, err)
	assert.True(t, consumed)

	res, err := wf.Wait()
	require.NoError(t, err)
	assert.Equal(t, "x", mustBytes(t, res.Value))

	res, err = wn.Wait()
	require.NoError(t, err)
	assert.Equal(t, "x", mustBytes(t, res.Value))
}

func TestPromoteToLIFOFailsIteratedWaiters(t *testing.T) {
	u := newUnknown()
	_, w, err := u.Fetch(1, IterState{Has: true, Index: 0}, true)
	require.NoError(t, err)

	lifo := Promote(u, ModeLIFO)
	assert.Equal(t, 0, lifo.NumFetchers())

	_, err = w.Wait()
	assert.ErrorIs(t, err, ErrIteratedUnsupported)
}
