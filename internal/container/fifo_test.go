package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigcomputing/nws/internal/value"
	"github.com/bigcomputing/nws/internal/wire"
)

func mustValue(s string) *value.Value {
	return value.New(1, wire.NewMemPayload([]byte(s)))
}

func mustBytes(t *testing.T, v *value.Value) string {
	t.Helper()
	b, err := v.Bytes()
	require.NoError(t, err)
	return string(b)
}

func TestFIFOStoreThenFetch(t *testing.T) {
	c := newFIFO()

	consumed, w, err := c.Store(1, mustValue("a"), false)
	require.NoError(t, err)
	assert.False(t, consumed)
	assert.Nil(t, w)

	res, w, err := c.Fetch(1, IterState{}, false)
	require.NoError(t, err)
	assert.Nil(t, w)
	assert.Equal(t, "a", mustBytes(t, res.Value))
	assert.Equal(t, int64(1), res.Cookie.Index)
}

func TestFIFOFetchOnEmptyNonBlockingFails(t *testing.T) {
	c := newFIFO()
	_, _, err := c.Fetch(1, IterState{}, false)
	assert.ErrorIs(t, err, ErrNoValue)
}

func TestFIFOFetchOnEmptyBlockingParks(t *testing.T) {
	c := newFIFO()
	res, w, err := c.Fetch(1, IterState{}, true)
	require.NoError(t, err)
	assert.Nil(t, res)
	require.NotNil(t, w)
	assert.Equal(t, 1, c.NumFetchers())
}

func TestFIFOStoreHandsDirectlyToParkedFetcher(t *testing.T) {
	c := newFIFO()
	_, w, _ := c.Fetch(1, IterState{}, true)
	require.NotNil(t, w)

	consumed, sw, err := c.Store(2, mustValue("x"), false)
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Nil(t, sw)
	assert.Equal(t, 0, c.Len(), "value handed to the waiter, not retained")

	res, err := w.Wait()
	require.NoError(t, err)
	assert.Equal(t, "x", mustBytes(t, res.Value))
}

func TestFIFOOnlyFirstFetcherConsumes(t *testing.T) {
	c := newFIFO()
	_, w1, _ := c.Fetch(1, IterState{}, true)
	_, w2, _ := c.Fetch(2, IterState{}, true)

	c.Store(3, mustValue("x"), false)

	_, err := w1.Wait()
	require.NoError(t, err)
	assert.Equal(t, 1, c.NumFetchers(), "second fetcher must still be parked")

	select {
	case <-w2.ready:
		t.Fatal("second fetcher should not have been released")
	default:
	}
}

func TestFIFOAllFindersReleasedOnStore(t *testing.T) {
	c := newFIFO()
	_, wf1, _ := c.Find(1, IterState{}, true)
	_, wf2, _ := c.Find(2, IterState{}, true)

	c.Store(3, mustValue("x"), false)

	r1, err := wf1.Wait()
	require.NoError(t, err)
	assert.Equal(t, "x", mustBytes(t, r1.Value))
	r2, err := wf2.Wait()
	require.NoError(t, err)
	assert.Equal(t, "x", mustBytes(t, r2.Value))
	assert.Equal(t, 0, c.NumFinders())
}

func TestFIFOIteratedFetchRequiresHead(t *testing.T) {
	c := newFIFO()
	c.Store(1, mustValue("a"), false)
	c.Store(1, mustValue("b"), false)

	// Any val_index at or past the current base resolves past the head
	// (position > 0) and is rejected -- only a watermark strictly behind
	// base (e.g. the -1 sentinel non-iterated calls use) resolves to 0.
	_, _, err := c.Fetch(1, IterState{Has: true, Index: 0}, false)
	assert.ErrorIs(t, err, ErrNoValue)

	res, _, err := c.Fetch(1, IterState{Has: true, Index: -1}, false)
	require.NoError(t, err)
	assert.Equal(t, "a", mustBytes(t, res.Value))
}

func TestFIFOIteratedFindWalksForward(t *testing.T) {
	c := newFIFO()
	c.Store(1, mustValue("a"), false)
	c.Store(1, mustValue("b"), false)

	res, _, err := c.Find(1, IterState{Has: true, Index: 0}, false)
	require.NoError(t, err)
	assert.Equal(t, "b", mustBytes(t, res.Value))
	assert.Equal(t, int64(1), res.Cookie.Index)

	_, _, err = c.Find(1, IterState{Has: true, Index: 1}, false)
	assert.ErrorIs(t, err, ErrNoValue)
}

func TestFIFOPurgeFailsWaiters(t *testing.T) {
	c := newFIFO()
	_, w, _ := c.Fetch(1, IterState{}, true)
	c.Purge()

	_, err := w.Wait()
	assert.ErrorIs(t, err, ErrPurged)
}
