// Package protocol implements the NWS wire protocol (spec §4.B/§6):
// handshake negotiation, command/reply framing built on internal/wire, and
// the accept-loop/goroutine-per-connection transport model. It is the one
// place that turns internal/registry's errors into wire status codes and
// reasons (spec §7).
//
// The accept loop, handshake, and per-connection handler are grounded on
// the teacher's ron.Server.serve/handshake/clientHandler/addClient/
// removeClient split; unlike ron's single gob decode loop per client, each
// NWS connection blocks on its own reader because command execution itself
// -- not the act of reading bytes off a socket -- is what internal/registry
// serializes onto one logical turn.
package protocol

import (
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/net/netutil"

	"github.com/bigcomputing/nws/internal/metrics"
	"github.com/bigcomputing/nws/internal/nwslog"
	"github.com/bigcomputing/nws/internal/registry"
	"github.com/bigcomputing/nws/internal/wire"
)

// Config bundles the transport-level knobs nwsd exposes.
type Config struct {
	// Spill controls when a stored value's counted-long payload is
	// written to a temp file instead of buffered in memory.
	Spill wire.SpillConfig
	// TLSConfig, if non-nil, advertises the SSL handshake option and is
	// used to upgrade a connection that requests it.
	TLSConfig *tls.Config
	// WebPort, if nonzero, is advertised to modern clients as
	// NwsWebPort (spec §6).
	WebPort int
	// MaxConns, if positive, bounds concurrent accepted connections per
	// listener via golang.org/x/net/netutil.LimitListener.
	MaxConns int
	// Metrics, if non-nil, receives connection and command instrumentation.
	Metrics *metrics.Metrics
}

// Server accepts NWS client connections and runs each one against a shared
// Registry.
type Server struct {
	reg *registry.Registry
	cfg Config

	listenersLock sync.Mutex
	listeners     map[string]net.Listener

	nextID int64

	onDeadman func()
}

// NewServer constructs a Server bound to reg. onDeadman, if non-nil, is
// invoked once a connection that sent "deadman" closes (cmd/nwsd wires
// this to stop listening and exit the process, per spec §4.F).
func NewServer(reg *registry.Registry, cfg Config, onDeadman func()) *Server {
	return &Server{
		reg:       reg,
		cfg:       cfg,
		listeners: make(map[string]net.Listener),
		onDeadman: onDeadman,
	}
}

// Listen starts accepting TCP connections on addr. Returns once the
// listener is established; accepting runs in a background goroutine.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if s.cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConns)
	}

	s.listenersLock.Lock()
	s.listeners[addr] = ln
	s.listenersLock.Unlock()

	nwslog.Info("protocol: listening on %v", addr)
	go s.serve(addr, ln)
	return nil
}

// Addrs returns the bound address of every active listener, letting a
// caller that passed a ":0" port (as tests do) discover what it got.
func (s *Server) Addrs() []net.Addr {
	s.listenersLock.Lock()
	defer s.listenersLock.Unlock()
	addrs := make([]net.Addr, 0, len(s.listeners))
	for _, ln := range s.listeners {
		addrs = append(addrs, ln.Addr())
	}
	return addrs
}

// Close stops every listener this server owns. Connections already
// accepted keep running until their clients disconnect.
func (s *Server) Close() {
	s.listenersLock.Lock()
	defer s.listenersLock.Unlock()
	for addr, ln := range s.listeners {
		ln.Close()
		delete(s.listeners, addr)
	}
}

func (s *Server) serve(addr string, ln net.Listener) {
	defer func() {
		s.listenersLock.Lock()
		delete(s.listeners, addr)
		s.listenersLock.Unlock()
		nwslog.Info("protocol: closed listener %v", addr)
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if !strings.Contains(err.Error(), "use of closed network connection") {
				nwslog.Error("protocol: accept on %v: %v", addr, err)
			}
			return
		}

		if tc, ok := conn.(*net.TCPConn); ok {
			tc.SetNoDelay(true)
			tc.SetKeepAlive(true)
		}

		id := atomic.AddInt64(&s.nextID, 1)
		go s.handleConn(id, conn)
	}
}

func (s *Server) handleConn(id int64, raw net.Conn) {
	peer := raw.RemoteAddr().String()
	nwslog.Debug("protocol: connection %d from %v", id, peer)

	neg, err := handshake(raw, advertisedOptions{
		webPort:   webPortString(s.cfg.WebPort),
		tlsConfig: s.cfg.TLSConfig,
	})
	if err != nil {
		nwslog.Debug("protocol: handshake with %v failed: %v", peer, err)
		raw.Close()
		return
	}

	c := &Conn{
		id:                 id,
		peer:               peer,
		rw:                 neg.conn,
		reg:                s.reg,
		client:             s.reg.Connect(id, peer),
		spill:              s.cfg.Spill,
		cookieMode:         neg.cookieMode,
		metadataToServer:   neg.metadataToServer,
		metadataFromServer: neg.metadataFromServer,
		deadman:            neg.deadman,
		metrics:            s.cfg.Metrics,
	}

	// a client that negotiated KillServerOnClose during the handshake is
	// marked for death the same way the explicit deadman verb marks one,
	// matching protocol.py routing both paths to the same flag.
	if c.deadman {
		s.reg.Deadman(c.client)
	}

	s.cfg.Metrics.ConnectionOpened()
	c.serve()

	dead := s.reg.MarkedForDeath(c.client)
	s.reg.Disconnect(id)
	neg.conn.Close()
	s.cfg.Metrics.ConnectionClosed()
	nwslog.Debug("protocol: connection %d (%v) closed", id, peer)

	if dead && s.onDeadman != nil {
		nwslog.Info("protocol: deadman connection closed, shutting down")
		s.onDeadman()
	}
}

func webPortString(port int) string {
	if port == 0 {
		return ""
	}
	return fmt.Sprintf("%d", port)
}
