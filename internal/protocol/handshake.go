package protocol

import (
	"crypto/tls"
	"errors"
	"io"
	"net"

	"github.com/bigcomputing/nws/internal/wire"
)

// errSSLUnavailable is returned when a client requests the SSL option but
// the server was not configured with a TLS certificate.
var errSSLUnavailable = errors.New("protocol: SSL requested but server has no TLS configuration")

// errHandshakeDenied is returned when a client's options request asks for
// something the server didn't advertise.
var errHandshakeDenied = errors.New("protocol: client requested incompatible connection options")

// advertisedOptions are the options nwsd negotiates during a modern ("X")
// handshake. An empty value means the client may pick anything; a
// non-empty value is the only one the server will accept.
type advertisedOptions struct {
	webPort   string
	tlsConfig *tls.Config
}

func (a advertisedOptions) asMap() map[string]string {
	m := map[string]string{
		"MetadataToServer":   "",
		"MetadataFromServer": "",
		"KillServerOnClose":  "",
	}
	if a.tlsConfig != nil {
		m["SSL"] = ""
	}
	if a.webPort != "" {
		m["NwsWebPort"] = a.webPort
	}
	return m
}

// negotiated is the outcome of a successful handshake: the net.Conn to use
// for all further I/O (swapped for a *tls.Conn when SSL was negotiated)
// plus the per-connection option flags it implies.
type negotiated struct {
	conn               net.Conn
	cookieMode         bool
	metadataToServer   bool
	metadataFromServer bool
	deadman            bool
}

// handshake performs the connection handshake described by spec §6: the
// 4-byte handshake request selects between the legacy short-reply path
// (values "0000"/"1111"), the "2223" compatibility path (anything else not
// starting with "X"), and the modern options-negotiation path ("X...").
func handshake(conn net.Conn, opts advertisedOptions) (*negotiated, error) {
	var buf [4]byte
	if _, err := io.ReadFull(conn, buf[:]); err != nil {
		return nil, err
	}
	req := string(buf[:])

	if len(req) > 0 && req[0] == 'X' {
		return handshakeModern(conn, opts)
	}

	n := &negotiated{conn: conn}
	if req != "0000" && req != "1111" {
		// The compatibility branch still turns on cookie-mode long replies
		// even though a client on this path has no way to request an
		// iterated verb correctly framed (spec §9, documented open
		// question).
		n.cookieMode = true
	}
	if _, err := io.WriteString(conn, "2223"); err != nil {
		return nil, err
	}
	return n, nil
}

func handshakeModern(conn net.Conn, opts advertisedOptions) (*negotiated, error) {
	advertised := opts.asMap()

	if _, err := io.WriteString(conn, "P000"); err != nil {
		return nil, err
	}
	if err := wire.WriteMap(conn, advertised); err != nil {
		return nil, err
	}

	var buf [4]byte
	if _, err := io.ReadFull(conn, buf[:]); err != nil {
		return nil, err
	}
	if string(buf[:]) != "R000" {
		return nil, errHandshakeDenied
	}

	requested, err := wire.ReadMap(conn)
	if err != nil {
		return nil, err
	}

	for opt, val := range requested {
		def, known := advertised[opt]
		if !known || (def != "" && def != val) {
			io.WriteString(conn, "F000")
			return nil, errHandshakeDenied
		}
	}

	n := &negotiated{
		conn:               conn,
		cookieMode:         true,
		metadataToServer:   requested["MetadataToServer"] == "1",
		metadataFromServer: requested["MetadataFromServer"] == "1",
		deadman:            requested["KillServerOnClose"] == "1",
	}

	if requested["SSL"] != "1" {
		if _, err := io.WriteString(conn, "A000"); err != nil {
			return nil, err
		}
		return n, nil
	}

	if opts.tlsConfig == nil {
		io.WriteString(conn, "F000")
		return nil, errSSLUnavailable
	}

	// Accept before upgrading the transport, matching the original's
	// send-then-startTLS ordering.
	if _, err := io.WriteString(conn, "A000"); err != nil {
		return nil, err
	}
	tlsConn := tls.Server(conn, opts.tlsConfig)
	if err := tlsConn.Handshake(); err != nil {
		return nil, err
	}
	n.conn = tlsConn
	return n, nil
}
