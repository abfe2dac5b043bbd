package nwsclient_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigcomputing/nws/internal/protocol"
	"github.com/bigcomputing/nws/internal/registry"
	"github.com/bigcomputing/nws/internal/wire"
	"github.com/bigcomputing/nws/pkg/nwsclient"
)

// startServer spins up a real protocol.Server on the loopback interface and
// returns its address, exercising pkg/nwsclient against the actual wire
// handshake rather than a pre-wired Conn.
func startServer(t *testing.T) string {
	t.Helper()

	reg := registry.New("__nwsclienttest")
	srv := protocol.NewServer(reg, protocol.Config{
		Spill: wire.SpillConfig{Threshold: 1 << 20, Prefix: "__nwsclienttest"},
	}, nil)

	require.NoError(t, srv.Listen("127.0.0.1:0"))
	t.Cleanup(func() {
		srv.Close()
		reg.Shutdown()
	})

	addrs := srv.Addrs()
	require.Len(t, addrs, 1)
	return addrs[0].String()
}

func dial(t *testing.T, addr string) *nwsclient.Conn {
	t.Helper()
	conn, err := nwsclient.Dial(addr, nwsclient.Options{
		MetadataToServer:   true,
		MetadataFromServer: true,
		MaxElapsed:         2 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStoreAndFetchRoundTrip(t *testing.T) {
	addr := startServer(t)
	conn := dial(t, addr)

	require.NoError(t, conn.OpenWorkspace("ws1", "tester", false, true))
	require.NoError(t, conn.Store("ws1", "x", 7, []byte("hello")))

	res, err := conn.Fetch("ws1", "x")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(res.Value))
	assert.Equal(t, uint32(7), res.Type)
	assert.NotEmpty(t, res.VID)

	_, err = conn.FetchTry("ws1", "x")
	var statusErr *nwsclient.StatusError
	require.ErrorAs(t, err, &statusErr)
}

func TestBlockingFetchUnblocksOnStore(t *testing.T) {
	addr := startServer(t)
	conn := dial(t, addr)
	require.NoError(t, conn.OpenWorkspace("ws2", "tester", false, true))

	done := make(chan *nwsclient.Result, 1)
	go func() {
		res, err := conn.Fetch("ws2", "y")
		require.NoError(t, err)
		done <- res
	}()

	time.Sleep(50 * time.Millisecond)

	storer := dial(t, addr)
	require.NoError(t, storer.UseWorkspace("ws2", "", false, false))
	require.NoError(t, storer.Store("ws2", "y", 0, []byte("later")))

	select {
	case res := <-done:
		assert.Equal(t, "later", string(res.Value))
	case <-time.After(2 * time.Second):
		t.Fatal("fetch never unblocked")
	}
}

func TestIteratedFindAcrossStores(t *testing.T) {
	addr := startServer(t)
	conn := dial(t, addr)
	require.NoError(t, conn.OpenWorkspace("ws3", "tester", false, true))
	require.NoError(t, conn.DeclareVar("ws3", "z", "fifo"))
	require.NoError(t, conn.Store("ws3", "z", 0, []byte("a")))
	require.NoError(t, conn.Store("ws3", "z", 0, []byte("b")))

	first, err := conn.Find("ws3", "z")
	require.NoError(t, err)
	assert.Equal(t, "a", string(first.Value))

	second, err := conn.IFind("ws3", "z", first.VID, first.Index)
	require.NoError(t, err)
	assert.Equal(t, "b", string(second.Value))
}

func TestListVarsAndWorkspaces(t *testing.T) {
	addr := startServer(t)
	conn := dial(t, addr)
	require.NoError(t, conn.OpenWorkspace("ws4", "tester", false, true))
	require.NoError(t, conn.Store("ws4", "v1", 0, []byte("1")))

	vars, err := conn.ListVars("ws4")
	require.NoError(t, err)
	assert.Contains(t, vars, "v1")

	wss, err := conn.ListWorkspaces("")
	require.NoError(t, err)
	assert.Contains(t, wss, "ws4")
}

func TestMktempWorkspace(t *testing.T) {
	addr := startServer(t)
	conn := dial(t, addr)

	name, err := conn.MktempWorkspace("__tmp__%d")
	require.NoError(t, err)
	assert.Contains(t, name, "__tmp__")

	require.NoError(t, conn.DeclareVar(name, "v", "fifo"))
}

func TestDeadmanOptionTriggersShutdownOnDisconnect(t *testing.T) {
	reg := registry.New("__nwsclienttest_deadman")
	stopped := make(chan struct{})
	srv := protocol.NewServer(reg, protocol.Config{
		Spill: wire.SpillConfig{Threshold: 1 << 20, Prefix: "__nwsclienttest_deadman"},
	}, func() { close(stopped) })

	require.NoError(t, srv.Listen("127.0.0.1:0"))
	t.Cleanup(func() {
		srv.Close()
		reg.Shutdown()
	})
	addr := srv.Addrs()[0].String()

	conn, err := nwsclient.Dial(addr, nwsclient.Options{
		MetadataToServer:   true,
		MetadataFromServer: true,
		Deadman:            true,
		MaxElapsed:         2 * time.Second,
	})
	require.NoError(t, err)

	// disconnect without ever sending the explicit deadman verb -- the
	// handshake's KillServerOnClose option alone must trigger shutdown.
	require.NoError(t, conn.Close())

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("server never shut down after deadman connection closed")
	}
}

func TestDeleteWorkspaceDeniesFurtherUse(t *testing.T) {
	addr := startServer(t)
	conn := dial(t, addr)
	require.NoError(t, conn.OpenWorkspace("ws5", "tester", false, true))
	require.NoError(t, conn.DeleteWorkspace("ws5"))

	err := conn.Store("ws5", "v", 0, []byte("x"))
	require.Error(t, err)
}
