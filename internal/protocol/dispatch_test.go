package protocol

import (
	"io"
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigcomputing/nws/internal/registry"
	"github.com/bigcomputing/nws/internal/wire"
)

// testSession wires one in-process client net.Conn against a Conn running
// its command loop in a background goroutine, without going through
// handshake -- the scenarios below exercise dispatch/reply framing
// directly, the way internal/protocol's full-stack tests drive spec §8's
// scenarios.
type testSession struct {
	t      *testing.T
	client net.Conn
	reg    *registry.Registry
}

func newTestSession(t *testing.T, id int64, peer string) *testSession {
	t.Helper()
	client, server := net.Pipe()
	reg := ensureRegistry(t)

	c := &Conn{
		id:         id,
		peer:       peer,
		rw:         server,
		reg:        reg,
		client:     reg.Connect(id, peer),
		spill:      wire.SpillConfig{Threshold: 1 << 20, Dir: "", Prefix: "__nwstest"},
		cookieMode: true,
	}
	go c.serve()
	t.Cleanup(func() { client.Close(); server.Close() })

	return &testSession{t: t, client: client, reg: reg}
}

// joinSession attaches a second connection to the same registry, so tests
// can exercise multi-client scenarios (spec §8).
func (s *testSession) joinSession(id int64, peer string) *testSession {
	s.t.Helper()
	client, server := net.Pipe()
	c := &Conn{
		id:         id,
		peer:       peer,
		rw:         server,
		reg:        s.reg,
		client:     s.reg.Connect(id, peer),
		spill:      wire.SpillConfig{Threshold: 1 << 20, Dir: "", Prefix: "__nwstest"},
		cookieMode: true,
	}
	go c.serve()
	s.t.Cleanup(func() { client.Close(); server.Close() })
	return &testSession{t: s.t, client: client, reg: s.reg}
}

var registries = map[*testing.T]*registry.Registry{}

func ensureRegistry(t *testing.T) *registry.Registry {
	if r, ok := registries[t]; ok {
		return r
	}
	r := registry.New("test")
	registries[t] = r
	return r
}

func (s *testSession) sendCommand(operands ...string) {
	s.t.Helper()
	args := make([]*wire.Payload, len(operands))
	for i, op := range operands {
		args[i] = wire.NewMemPayload([]byte(op))
	}
	require.NoError(s.t, wire.WriteArgs(s.client, args))
}

func (s *testSession) readShort() int {
	s.t.Helper()
	var buf [4]byte
	_, err := io.ReadFull(s.client, buf[:])
	require.NoError(s.t, err)
	n, err := strconv.Atoi(string(buf[:]))
	require.NoError(s.t, err)
	return n
}

type longReply struct {
	status int
	typ    uint32
	vid    string
	index  int64
	value  []byte
}

func (s *testSession) readLong() longReply {
	s.t.Helper()
	var lr longReply

	var status [4]byte
	require.NoError(s.t, readFull(s.client, status[:]))
	n, err := strconv.Atoi(string(status[:]))
	require.NoError(s.t, err)
	lr.status = n

	var typ [20]byte
	require.NoError(s.t, readFull(s.client, typ[:]))
	tn, err := strconv.ParseUint(string(typ[:]), 10, 32)
	require.NoError(s.t, err)
	lr.typ = uint32(tn)

	var vid [20]byte
	require.NoError(s.t, readFull(s.client, vid[:]))
	lr.vid = string(vid[:])

	var index [20]byte
	require.NoError(s.t, readFull(s.client, index[:]))
	idx, err := strconv.ParseInt(string(index[:]), 10, 64)
	require.NoError(s.t, err)
	lr.index = idx

	var length [20]byte
	require.NoError(s.t, readFull(s.client, length[:]))
	ln, err := strconv.ParseInt(string(length[:]), 10, 64)
	require.NoError(s.t, err)

	buf := make([]byte, ln)
	require.NoError(s.t, readFull(s.client, buf))
	lr.value = buf

	return lr
}

func TestBasicFifoHandoff(t *testing.T) {
	c1 := newTestSession(t, 1, "1.1.1.1")
	c2 := c1.joinSession(2, "2.2.2.2")

	c1.sendCommand("open ws", "W", "a", "no", "yes")
	assert.Equal(t, statusOK, c1.readShort())

	c2.sendCommand("open ws", "W", "", "no", "no")
	assert.Equal(t, statusOK, c2.readShort())

	c1.sendCommand("store", "W", "v", "1", "hello")
	assert.Equal(t, statusOK, c1.readShort())

	c2.sendCommand("fetch", "W", "v")
	reply := c2.readLong()
	assert.Equal(t, statusOK, reply.status)
	assert.Equal(t, uint32(1), reply.typ)
	assert.Equal(t, "hello", string(reply.value))
}

func TestBlockingFetchServedByLaterStore(t *testing.T) {
	c1 := newTestSession(t, 1, "1.1.1.1")
	c2 := c1.joinSession(2, "2.2.2.2")

	c1.sendCommand("open ws", "W", "a", "no", "yes")
	c1.readShort()
	c2.sendCommand("open ws", "W", "", "no", "no")
	c2.readShort()
	c2.sendCommand("declare var", "W", "v", "fifo")
	c2.readShort()

	c2.sendCommand("fetch", "W", "v")

	done := make(chan longReply, 1)
	go func() { done <- c2.readLong() }()

	c1.sendCommand("store", "W", "v", "1", "x")
	assert.Equal(t, statusOK, c1.readShort())

	reply := <-done
	assert.Equal(t, statusOK, reply.status)
	assert.Equal(t, "x", string(reply.value))
}

func TestIteratorCookieAcrossDeleteAndRecreate(t *testing.T) {
	c1 := newTestSession(t, 1, "1.1.1.1")

	c1.sendCommand("open ws", "W", "a", "no", "yes")
	c1.readShort()

	c1.sendCommand("store", "W", "v", "1", "a")
	c1.readShort()

	c1.sendCommand("ifindTry", "W", "v", "", "")
	first := c1.readLong()
	require.Equal(t, statusOK, first.status)

	c1.sendCommand("delete var", "W", "v")
	c1.readShort()
	c1.sendCommand("store", "W", "v", "1", "b")
	c1.readShort()

	c1.sendCommand("ifetchTry", "W", "v", first.vid, "1")
	mismatch := c1.readLong()
	assert.NotEqual(t, statusOK, mismatch.status)
}

func TestDeadmanVerbRepliesOK(t *testing.T) {
	s := newTestSession(t, 1, "1.1.1.1")
	s.sendCommand("deadman")
	assert.Equal(t, statusOK, s.readShort())
}

func TestUnknownVerbIsShortError(t *testing.T) {
	s := newTestSession(t, 1, "1.1.1.1")
	s.sendCommand("not a verb")
	assert.NotEqual(t, statusOK, s.readShort())
}

func TestListWorkspacesOverWire(t *testing.T) {
	s := newTestSession(t, 1, "1.1.1.1")
	s.sendCommand("open ws", "W", "a", "no", "yes")
	s.readShort()
	s.sendCommand("declare var", "W", "v", "fifo")
	s.readShort()

	s.sendCommand("list wss", "W")
	reply := s.readLong()
	assert.Equal(t, statusOK, reply.status)
	assert.Equal(t, ">W\t1.1.1.1 (a)\tFalse\t1\tv\n", string(reply.value))
}
