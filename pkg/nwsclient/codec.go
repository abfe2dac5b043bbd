package nwsclient

import (
	"fmt"

	"github.com/bigcomputing/nws/internal/wire"
)

// StatusError is returned by a verb method when the server replies with a
// non-success status. Status mirrors the wire codes in spec §6.
type StatusError struct {
	Status int
	Reason string
}

func (e *StatusError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("nwsclient: status %04d: %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("nwsclient: status %04d", e.Status)
}

// Result is a long reply's payload: the stored value plus the cookie the
// server attached so a later ifetch/ifind can resume iteration from it.
type Result struct {
	Type  uint32
	VID   string
	Index int64
	Value []byte
}

func strPayloads(args ...string) []*wire.Payload {
	ps := make([]*wire.Payload, len(args))
	for i, a := range args {
		ps[i] = wire.NewMemPayload([]byte(a))
	}
	return ps
}

// sendCommand writes one command frame: the metadata map (only if the
// handshake negotiated MetadataToServer), then the verb and its arguments
// as a counted argument tuple.
func (c *Conn) sendCommand(verb string, args ...string) error {
	if c.metadataToServer {
		if err := wire.WriteMap(c.rw, map[string]string{}); err != nil {
			return err
		}
	}
	payloads := append(strPayloads(verb), strPayloads(args...)...)
	return wire.WriteArgs(c.rw, payloads)
}

// readMetadata drains the reply's metadata map when MetadataFromServer was
// negotiated. The map itself carries nothing a caller needs beyond
// nwsReason, which is folded into the returned StatusError instead.
func (c *Conn) readMetadata() (map[string]string, error) {
	if !c.metadataFromServer {
		return nil, nil
	}
	return wire.ReadMap(c.rw)
}

func errForStatus(status int, metadata map[string]string) error {
	if status == 0 {
		return nil
	}
	return &StatusError{Status: status, Reason: metadata["nwsReason"]}
}

// short performs a command whose reply is just a status code: declare
// var, delete ws, delete var, store, open ws, use ws, deadman.
func (c *Conn) short(verb string, args ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sendCommand(verb, args...); err != nil {
		c.err = err
		return err
	}

	metadata, err := c.readMetadata()
	if err != nil {
		c.err = err
		return err
	}
	status, err := wire.ReadCount(c.rw, 4)
	if err != nil {
		c.err = err
		return err
	}
	return errForStatus(int(status), metadata)
}

// long performs a command whose reply is a value: the fetch/find family,
// list vars, list wss, mktemp ws.
func (c *Conn) long(verb string, args ...string) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sendCommand(verb, args...); err != nil {
		c.err = err
		return nil, err
	}

	metadata, err := c.readMetadata()
	if err != nil {
		c.err = err
		return nil, err
	}
	status, err := wire.ReadCount(c.rw, 4)
	if err != nil {
		c.err = err
		return nil, err
	}
	typ, err := wire.ReadCount(c.rw, 20)
	if err != nil {
		c.err = err
		return nil, err
	}

	// The modern handshake this Conn always negotiates turns cookie mode
	// on unconditionally (spec §6), so the vid/index region is always
	// present regardless of what this Conn requested.
	vidRaw, err := wire.ReadRaw(c.rw, 20)
	if err != nil {
		c.err = err
		return nil, err
	}
	index, err := wire.ReadCount(c.rw, 20)
	if err != nil {
		c.err = err
		return nil, err
	}

	payload, err := wire.ReadLong(c.rw, c.opts.Spill)
	if err != nil {
		c.err = err
		return nil, err
	}
	defer payload.Remove()

	if err := errForStatus(int(status), metadata); err != nil {
		return nil, err
	}

	val, err := payload.Bytes()
	if err != nil {
		return nil, err
	}
	return &Result{Type: uint32(typ), VID: trimVID(vidRaw), Index: index, Value: val}, nil
}

func trimVID(raw string) string {
	i := len(raw)
	for i > 0 && raw[i-1] == ' ' {
		i--
	}
	return raw[:i]
}
