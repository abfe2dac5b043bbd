package protocol

import (
	"net"
	"time"

	"github.com/bigcomputing/nws/internal/metrics"
	"github.com/bigcomputing/nws/internal/nwslog"
	"github.com/bigcomputing/nws/internal/registry"
	"github.com/bigcomputing/nws/internal/wire"
)

// Conn is one client connection's protocol-level state: the negotiated
// framing options plus the registry.Client the dispatch layer acts
// through. internal/registry owns the workspace/variable state; Conn owns
// only the socket and the options the handshake negotiated for it.
type Conn struct {
	id   int64
	peer string
	rw   net.Conn

	reg    *registry.Registry
	client *registry.Client

	spill wire.SpillConfig

	cookieMode         bool
	metadataToServer   bool
	metadataFromServer bool
	deadman            bool

	metrics  *metrics.Metrics
	cmdVerb  string
	cmdStart time.Time
}

// recordCommand reports one completed command to metrics, keyed by the
// verb serve() recorded just before dispatch. Called from reply.go at the
// point each reply's status is written.
func (c *Conn) recordCommand(status int) {
	if c.metrics == nil {
		return
	}
	c.metrics.CommandServed(c.cmdVerb, status, time.Since(c.cmdStart))
}

// serve runs the command loop until the connection is closed or framing is
// corrupted. Each iteration reads exactly one command and writes exactly
// one reply before the next read -- except a blocking fetch/find, whose
// reply is deferred until its waiter resolves. Because nothing else reads
// from this socket concurrently, a second command can never arrive while
// one is already in flight, so the "received a request while already
// blocking" guard the original protocol carries cannot trigger here.
func (c *Conn) serve() {
	for {
		metadata, err := c.readMetadata()
		if err != nil {
			return
		}

		args, err := wire.ReadArgs(c.rw, c.spill)
		if err != nil {
			return
		}
		if len(args) < 1 {
			nwslog.Warn("protocol: %s sent an empty argument list", c.peer)
			sendShortErr(c, errEmptyCommand)
			return
		}

		verb, err := argString(args[0])
		if err != nil {
			return
		}

		c.cmdVerb = verb
		c.cmdStart = time.Now()
		c.dispatch(verb, args[1:], metadata)
		c.reg.RecordOp(c.client, verb, countLongArgs(args))

		if c.metrics != nil {
			workspaces, variables := c.reg.Stats()
			c.metrics.SetWorkspaceCount(workspaces)
			c.metrics.SetVariableCount(variables)
		}
	}
}

func (c *Conn) readMetadata() (map[string]string, error) {
	if !c.metadataToServer {
		return map[string]string{}, nil
	}
	return wire.ReadMap(c.rw)
}

// countLongArgs reports how many of a command's arguments spilled to a
// temp file, for the per-connection session statistics spec §11 carries
// over from protocol.py's mark_new_long_value.
func countLongArgs(args []*wire.Payload) int {
	n := 0
	for _, p := range args {
		if p.IsFile() {
			n++
		}
	}
	return n
}

func argString(p *wire.Payload) (string, error) {
	b, err := p.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// argAt returns the string form of args[i], or def if i is out of range.
func argAt(args []*wire.Payload, i int, def string) string {
	if i < 0 || i >= len(args) {
		return def
	}
	s, err := argString(args[i])
	if err != nil {
		return def
	}
	return s
}
