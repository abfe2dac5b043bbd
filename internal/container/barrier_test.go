package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarrierThreeMembersReleaseOnLastFind(t *testing.T) {
	c := newBarrier()
	require.NoError(t, storeOK(c, 1))
	require.NoError(t, storeOK(c, 2))
	require.NoError(t, storeOK(c, 3))

	_, w1, err := c.Find(1, IterState{}, true)
	require.NoError(t, err)
	require.NotNil(t, w1)

	_, w2, err := c.Find(2, IterState{}, true)
	require.NoError(t, err)
	require.NotNil(t, w2)

	res3, w3, err := c.Find(3, IterState{}, true)
	require.NoError(t, err)
	assert.Nil(t, w3, "the triggering finder is released synchronously, not parked")
	assert.Equal(t, "3", mustBytes(t, res3.Value))

	res1, err := w1.Wait()
	require.NoError(t, err)
	assert.Equal(t, "3", mustBytes(t, res1.Value))

	res2, err := w2.Wait()
	require.NoError(t, err)
	assert.Equal(t, "3", mustBytes(t, res2.Value))
}

func TestBarrierJoinTwiceIsError(t *testing.T) {
	c := newBarrier()
	require.NoError(t, storeOK(c, 1))
	_, _, err := c.Store(1, mustValue(""), false)
	assert.ErrorIs(t, err, ErrAlreadyMember)
}

func TestBarrierNonMemberFindIsError(t *testing.T) {
	c := newBarrier()
	_, _, err := c.Find(1, IterState{}, false)
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestBarrierFetchLeavesGroup(t *testing.T) {
	c := newBarrier()
	require.NoError(t, storeOK(c, 1))
	require.NoError(t, storeOK(c, 2))

	res, w, err := c.Fetch(1, IterState{}, false)
	require.NoError(t, err)
	assert.Nil(t, w)
	assert.Equal(t, "", mustBytes(t, res.Value))
	assert.Equal(t, 1, c.Len())
}

func storeOK(c *barrierType, connID int64) error {
	_, _, err := c.Store(connID, mustValue(""), false)
	return err
}
