// Package nwsclient is the reusable NWS client library: it speaks the
// counted-ASCII wire protocol's modern handshake and exposes the verb set
// as typed Go methods. Adapted from pkg/miniclient.Conn, with
// jpillora/backoff replacing the teacher's hand-rolled doubling-backoff
// dial loop and JSON-over-Unix-socket swapped for the NWS framing in
// internal/wire.
package nwsclient

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"github.com/bigcomputing/nws/internal/wire"
)

// ErrHandshakeRefused is returned when the server rejects the options a
// Conn requested during the modern handshake.
var ErrHandshakeRefused = errors.New("nwsclient: server refused requested connection options")

// Options controls the connection options a Conn requests during the
// modern handshake (spec §6). Fields left at their zero value are simply
// not requested.
type Options struct {
	// TLSConfig, if non-nil, requests the SSL option and upgrades the
	// transport once the server accepts.
	TLSConfig *tls.Config
	// MetadataToServer requests that every command carry a metadata map.
	MetadataToServer bool
	// MetadataFromServer requests that every reply carry a metadata map.
	MetadataFromServer bool
	// Deadman requests KillServerOnClose: the server shuts itself down
	// when this connection disconnects (spec §4.F).
	Deadman bool
	// Spill controls when a long reply's value streams to a temp file
	// instead of being buffered in memory. A zero Threshold uses a 1 MiB
	// default; a positive one below wire.MinSpillThreshold is raised to it.
	Spill wire.SpillConfig
	// DialTimeout bounds each individual connection attempt.
	DialTimeout time.Duration
	// MaxElapsed bounds the total time Dial will retry for before giving
	// up. Zero means retry forever.
	MaxElapsed time.Duration
}

// DefaultOptions requests metadata exchange both ways (so StatusError
// carries the server's nwsReason text) and otherwise leaves every other
// option at its zero value.
func DefaultOptions() Options {
	return Options{
		MetadataToServer:   true,
		MetadataFromServer: true,
	}
}

func (o Options) asRequestMap() map[string]string {
	m := map[string]string{}
	if o.MetadataToServer {
		m["MetadataToServer"] = "1"
	}
	if o.MetadataFromServer {
		m["MetadataFromServer"] = "1"
	}
	if o.Deadman {
		m["KillServerOnClose"] = "1"
	}
	if o.TLSConfig != nil {
		m["SSL"] = "1"
	}
	return m
}

// Conn is one client connection to nwsd. Every exported verb method
// serializes onto conn via lock -- concurrent callers get a consistent
// request/reply pairing, matching the server's one-command-at-a-time
// contract per connection.
type Conn struct {
	addr string
	opts Options

	mu   sync.Mutex
	rw   net.Conn
	err  error

	metadataToServer   bool
	metadataFromServer bool
}

// defaultSpillThreshold keeps an un-configured Conn from streaming every
// reply to a temp file -- wire.EffectiveThreshold's 64-byte floor is meant
// for nwsd's own configurability, not as a client default.
const defaultSpillThreshold = 1 << 20

// Dial connects to addr and performs the modern handshake, retrying the
// TCP connect (not the handshake itself) with jpillora/backoff until it
// succeeds or opts.MaxElapsed elapses.
func Dial(addr string, opts Options) (*Conn, error) {
	if opts.Spill.Threshold <= 0 {
		opts.Spill.Threshold = defaultSpillThreshold
	} else {
		opts.Spill.Threshold = wire.EffectiveThreshold(opts.Spill.Threshold)
	}

	b := &backoff.Backoff{
		Min:    50 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	deadline := time.Time{}
	if opts.MaxElapsed > 0 {
		deadline = time.Now().Add(opts.MaxElapsed)
	}

	var lastErr error
	for {
		dialer := net.Dialer{Timeout: opts.DialTimeout}
		conn, err := dialer.Dial("tcp", addr)
		if err == nil {
			negotiated, herr := clientHandshake(conn, opts)
			if herr != nil {
				conn.Close()
				return nil, herr
			}
			return &Conn{
				addr:               addr,
				opts:               opts,
				rw:                 negotiated.conn,
				metadataToServer:   negotiated.metadataToServer,
				metadataFromServer: negotiated.metadataFromServer,
			}, nil
		}
		lastErr = err

		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, fmt.Errorf("nwsclient: dial %s: %w", addr, lastErr)
		}
		time.Sleep(b.Duration())
	}
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rw.Close()
}

// Err returns the first error a request encountered, if the connection
// has gone bad.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

type clientNegotiated struct {
	conn               net.Conn
	metadataToServer   bool
	metadataFromServer bool
}

// clientHandshake performs the client side of the modern ("X000")
// handshake described by spec §6, mirroring internal/protocol's
// handshakeModern in reverse.
func clientHandshake(conn net.Conn, opts Options) (*clientNegotiated, error) {
	if _, err := io.WriteString(conn, "X000"); err != nil {
		return nil, err
	}

	var buf [4]byte
	if _, err := io.ReadFull(conn, buf[:]); err != nil {
		return nil, err
	}
	if string(buf[:]) != "P000" {
		return nil, fmt.Errorf("nwsclient: unexpected handshake reply %q", buf[:])
	}

	advertised, err := wire.ReadMap(conn)
	if err != nil {
		return nil, err
	}

	requested := opts.asRequestMap()
	for opt := range requested {
		if _, ok := advertised[opt]; !ok {
			return nil, fmt.Errorf("%w: server does not advertise %s", ErrHandshakeRefused, opt)
		}
	}

	if _, err := io.WriteString(conn, "R000"); err != nil {
		return nil, err
	}
	if err := wire.WriteMap(conn, requested); err != nil {
		return nil, err
	}

	if _, err := io.ReadFull(conn, buf[:]); err != nil {
		return nil, err
	}
	switch string(buf[:]) {
	case "F000":
		return nil, ErrHandshakeRefused
	case "A000":
		// accepted, fall through
	default:
		return nil, fmt.Errorf("nwsclient: unexpected accept reply %q", buf[:])
	}

	n := &clientNegotiated{
		conn:               conn,
		metadataToServer:   opts.MetadataToServer,
		metadataFromServer: opts.MetadataFromServer,
	}

	if opts.TLSConfig == nil {
		return n, nil
	}

	tlsConn := tls.Client(conn, opts.TLSConfig)
	if err := tlsConn.Handshake(); err != nil {
		return nil, err
	}
	n.conn = tlsConn
	return n, nil
}
