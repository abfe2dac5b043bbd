package variable

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

func TestGenerateVIDIs20DigitsAndAvoidsCollisions(t *testing.T) {
	taken := map[string]bool{}
	vid, err := GenerateVID(func(s string) bool { return taken[s] })
	require.NoError(t, err)
	assert.Len(t, vid, 20)
	taken[vid] = true

	vid2, err := GenerateVID(func(s string) bool { return taken[s] })
	require.NoError(t, err)
	assert.NotEqual(t, vid, vid2)
}

func TestGenerateVIDExhaustionReturnsError(t *testing.T) {
	_, err := GenerateVID(func(s string) bool { return true })
	assert.ErrorIs(t, err, ErrVIDExhausted)
}

func TestSetModeFromUnknownThenImmutable(t *testing.T) {
	v := New("x", "1")
	require.NoError(t, v.SetMode("fifo"))
	assert.Equal(t, container.ModeFIFO, v.ModeKind())

	assert.NoError(t, v.SetMode("fifo"), "redeclaring the same mode is a no-op")

	err := v.SetMode("lifo")
	assert.ErrorIs(t, err, ErrModeImmutable)
}

func TestMultiIsReportedVerbatimButBehavesAsLIFO(t *testing.T) {
	v := New("x", "1")
	require.NoError(t, v.SetMode("multi"))
	assert.Equal(t, "multi", v.Mode())
	assert.Equal(t, container.ModeLIFO, v.ModeKind())

	v.Store(1, mustValue("a"), false)
	v.Store(1, mustValue("b"), false)
	res, _, err := v.Fetch(1, container.IterState{}, false)
	require.NoError(t, err)
	b, _ := res.Value.Bytes()
	assert.Equal(t, "b", string(b), "multi must still behave as a stack")
}

func TestStoreOnUnknownPromotesToFIFO(t *testing.T) {
	v := New("x", "1")
	v.Store(1, mustValue("a"), false)
	assert.Equal(t, container.ModeFIFO, v.ModeKind())

	res, _, err := v.Fetch(1, container.IterState{}, false)
	require.NoError(t, err)
	b, _ := res.Value.Bytes()
	assert.Equal(t, "a", string(b))
}

func TestWaitersParkedOnUnknownAreServedAfterPromotion(t *testing.T) {
	v := New("x", "1")
	_, w, err := v.Fetch(1, container.IterState{}, true)
	require.NoError(t, err)
	require.NotNil(t, w)

	v.Store(2, mustValue("x"), false)

	res, err := w.Wait()
	require.NoError(t, err)
	b, _ := res.Value.Bytes()
	assert.Equal(t, "x", string(b))
}
