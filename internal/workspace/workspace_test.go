package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigcomputing/nws/internal/container"
	"github.com/bigcomputing/nws/internal/value"
	"github.com/bigcomputing/nws/internal/wire"
)

func mustValue(s string) *value.Value {
	return value.New(1, wire.NewMemPayload([]byte(s)))
}

func bytesOf(t *testing.T, v *value.Value) string {
	t.Helper()
	b, err := v.Bytes()
	require.NoError(t, err)
	return string(b)
}

func TestStoreThenFetchRoundTrip(t *testing.T) {
	w := New("W", 1)
	_, _, err := w.StoreVar(1, "v", mustValue("hello"), false)
	require.NoError(t, err)

	res, waiter, _, err := w.FetchVar(2, "v", IterRequest{}, false)
	require.NoError(t, err)
	assert.Nil(t, waiter)
	assert.Equal(t, "hello", bytesOf(t, res.Value))
}

func TestFetchNoSuchVariable(t *testing.T) {
	w := New("W", 1)
	_, _, _, err := w.FetchVar(1, "missing", IterRequest{}, false)
	assert.ErrorIs(t, err, ErrNoSuchVariable)
}

func TestDeleteThenRecreateChangesVID(t *testing.T) {
	w := New("W", 1)
	_, _, err := w.StoreVar(1, "v", mustValue("a"), false)
	require.NoError(t, err)
	v1, _ := w.Variable("v")
	vid1 := v1.VID

	require.NoError(t, w.DeleteVar("v"))

	_, _, err = w.StoreVar(1, "v", mustValue("b"), false)
	require.NoError(t, err)
	v2, _ := w.Variable("v")
	assert.NotEqual(t, vid1, v2.VID)
}

func TestIteratedFetchDetectsVIDMismatch(t *testing.T) {
	w := New("W", 1)
	_, _, err := w.StoreVar(1, "v", mustValue("a"), false)
	require.NoError(t, err)
	v1, _ := w.Variable("v")
	staleVID := v1.VID

	require.NoError(t, w.DeleteVar("v"))
	_, _, err = w.StoreVar(1, "v", mustValue("b"), false)
	require.NoError(t, err)

	_, _, _, err = w.FetchVar(1, "v", IterRequest{Has: true, VID: staleVID, Index: -1}, false)
	assert.ErrorIs(t, err, ErrVIDMismatch)
}

func TestCookieSubstitutedWhenContainerDeclines(t *testing.T) {
	w := New("W", 1)
	require.NoError(t, w.DeclareVar("v", "lifo"))
	_, _, err := w.StoreVar(1, "v", mustValue("a"), false)
	require.NoError(t, err)

	res, _, _, err := w.FindVar(1, "v", IterRequest{}, false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Cookie.Index, "LIFO declines an index; workspace substitutes max(0, requested)")
}

func TestSetOwnerIsIdempotent(t *testing.T) {
	w := New("W", 1)
	assert.True(t, w.SetOwner("127.0.0.1 (alice)", true))
	assert.False(t, w.SetOwner("127.0.0.1 (bob)", false))
	assert.Equal(t, "127.0.0.1 (alice)", w.Owner)
	assert.True(t, w.Persistent)
}

func TestPurgeFailsParkedWaiters(t *testing.T) {
	w := New("W", 1)
	require.NoError(t, w.DeclareVar("v", "fifo"))

	_, waiter, _, err := w.FetchVar(1, "v", IterRequest{}, true)
	require.NoError(t, err)
	require.NotNil(t, waiter)

	w.Purge()

	_, err = waiter.Wait()
	assert.ErrorIs(t, err, container.ErrPurged)
}

func TestListVarsFormat(t *testing.T) {
	w := New("W", 1)
	require.NoError(t, w.DeclareVar("v", "fifo"))
	_, _, err := w.StoreVar(1, "v", mustValue("a"), false)
	require.NoError(t, err)

	assert.Equal(t, "v\t1\t0\t0\tfifo\n", w.ListVars())
}
