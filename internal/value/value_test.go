package value

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigcomputing/nws/internal/wire"
)

func TestShortValueSurvivesTransmission(t *testing.T) {
	v := New(1, wire.NewMemPayload([]byte("hello")))

	var buf bytes.Buffer
	_, err := v.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", buf.String())
	assert.False(t, v.Consumed())
}

func TestLongValueDeletedAfterConsumedTransmission(t *testing.T) {
	dir := t.TempDir()
	f, err := os.CreateTemp(dir, "nws")
	require.NoError(t, err)
	f.WriteString("payload")
	f.Close()

	v := New(1, wire.NewFilePayload(f.Name(), 7))

	// still present: not yet consumed
	var buf bytes.Buffer
	_, err = v.WriteTo(&buf)
	require.NoError(t, err)
	_, statErr := os.Stat(f.Name())
	assert.NoError(t, statErr, "unconsumed long value's file must survive transmission")

	v.Consume()
	_, err = v.WriteTo(&buf)
	require.NoError(t, err)
	_, statErr = os.Stat(f.Name())
	assert.True(t, os.IsNotExist(statErr), "consumed long value's file must be removed after its last transmission")
}

func TestCloseRemovesFileImmediately(t *testing.T) {
	dir := t.TempDir()
	f, err := os.CreateTemp(dir, "nws")
	require.NoError(t, err)
	f.Close()

	v := New(1, wire.NewFilePayload(f.Name(), 0))
	v.Close()

	_, statErr := os.Stat(f.Name())
	assert.True(t, os.IsNotExist(statErr))
}
