package protocol

import (
	"crypto/tls"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigcomputing/nws/internal/wire"
)

func TestHandshakeLegacyZeroIsNoCookie(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go io.WriteString(client, "0000")

	neg, err := handshake(server, advertisedOptions{})
	require.NoError(t, err)
	assert.False(t, neg.cookieMode)

	var buf [4]byte
	io.ReadFull(client, buf[:])
	assert.Equal(t, "2223", string(buf[:]))
}

func TestHandshakeLegacyOneIsNoCookie(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go io.WriteString(client, "1111")

	neg, err := handshake(server, advertisedOptions{})
	require.NoError(t, err)
	assert.False(t, neg.cookieMode)
}

func TestHandshakeCompatibilityEnablesCookieMode(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go io.WriteString(client, "ABCD")

	neg, err := handshake(server, advertisedOptions{})
	require.NoError(t, err)
	assert.True(t, neg.cookieMode)

	var buf [4]byte
	io.ReadFull(client, buf[:])
	assert.Equal(t, "2223", string(buf[:]))
}

func TestHandshakeModernNoOptionsAccepts(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	result := make(chan *negotiated, 1)
	errc := make(chan error, 1)
	go func() {
		n, err := handshake(server, advertisedOptions{})
		result <- n
		errc <- err
	}()

	io.WriteString(client, "X000")

	var preamble [4]byte
	require.NoError(t, readFull(client, preamble[:]))
	assert.Equal(t, "P000", string(preamble[:]))
	advertised, err := wire.ReadMap(client)
	require.NoError(t, err)
	assert.Contains(t, advertised, "MetadataToServer")
	assert.NotContains(t, advertised, "SSL")

	io.WriteString(client, "R000")
	require.NoError(t, wire.WriteMap(client, map[string]string{}))

	var accept [4]byte
	require.NoError(t, readFull(client, accept[:]))
	assert.Equal(t, "A000", string(accept[:]))

	require.NoError(t, <-errc)
	neg := <-result
	require.NotNil(t, neg)
	assert.True(t, neg.cookieMode)
	assert.False(t, neg.metadataToServer)
	assert.False(t, neg.metadataFromServer)
}

func TestHandshakeModernMetadataOptionsAreHonored(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	result := make(chan *negotiated, 1)
	errc := make(chan error, 1)
	go func() {
		n, err := handshake(server, advertisedOptions{})
		result <- n
		errc <- err
	}()

	io.WriteString(client, "X000")
	var preamble [4]byte
	readFull(client, preamble[:])
	wire.ReadMap(client)

	io.WriteString(client, "R000")
	require.NoError(t, wire.WriteMap(client, map[string]string{
		"MetadataToServer":   "1",
		"MetadataFromServer": "1",
		"KillServerOnClose":  "1",
	}))

	var accept [4]byte
	readFull(client, accept[:])
	assert.Equal(t, "A000", string(accept[:]))

	require.NoError(t, <-errc)
	neg := <-result
	assert.True(t, neg.metadataToServer)
	assert.True(t, neg.metadataFromServer)
	assert.True(t, neg.deadman)
}

func TestHandshakeModernUnknownOptionIsDenied(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	errc := make(chan error, 1)
	go func() {
		_, err := handshake(server, advertisedOptions{})
		errc <- err
	}()

	io.WriteString(client, "X000")
	var preamble [4]byte
	readFull(client, preamble[:])
	wire.ReadMap(client)

	io.WriteString(client, "R000")
	require.NoError(t, wire.WriteMap(client, map[string]string{"Bogus": "1"}))

	var deny [4]byte
	readFull(client, deny[:])
	assert.Equal(t, "F000", string(deny[:]))
	assert.Error(t, <-errc)
}

func TestAdvertisedOptionsIncludeSSLOnlyWhenConfigured(t *testing.T) {
	without := advertisedOptions{}.asMap()
	assert.NotContains(t, without, "SSL")

	with := advertisedOptions{tlsConfig: &tls.Config{}}.asMap()
	assert.Contains(t, with, "SSL")
}

func readFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}
