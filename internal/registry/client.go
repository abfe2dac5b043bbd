package registry

import (
	"time"

	"github.com/bigcomputing/nws/internal/container"
	"github.com/bigcomputing/nws/internal/workspace"
)

// waitKind distinguishes a client's one possible parked operation, needed
// to pick RemoveFetcher vs RemoveFinder on disconnect.
type waitKind int

const (
	waitFetch waitKind = iota
	waitFind
)

// parkedWait is the back-reference a connection needs to evict itself from
// exactly one waiter list on disconnect (spec §9, "cyclic refs").
type parkedWait struct {
	ws      workspace.InternalName
	varName string
	kind    waitKind
	waiter  *container.Waiter
}

// Client is the registry's view of one connection: the workspace names it
// has opened or used (its "view", distinct from the registry's global
// external-to-internal map), the workspaces it owns, and at most one
// parked wait. internal/protocol owns the socket and framing; Client holds
// only what the registry needs to serve that connection's commands.
type Client struct {
	ID   int64
	Peer string

	views map[string]workspace.InternalName
	owned map[workspace.InternalName]struct{}

	parked *parkedWait
	dying  bool

	// Session statistics, adapted from protocol.py's WsSessionStats:
	// a running operation count plus the name/time of the last one, and
	// a count of long (spilled-to-file) values this connection has sent
	// as command arguments.
	opCount        int64
	longValueCount int64
	lastOp         string
	lastOpTime     time.Time
}

// NewClient constructs empty per-connection state. id must be unique for
// the lifetime of the registry (internal/protocol assigns it, typically a
// monotonic connection counter).
func NewClient(id int64, peer string) *Client {
	return &Client{
		ID:    id,
		Peer:  peer,
		views: make(map[string]workspace.InternalName),
		owned: make(map[workspace.InternalName]struct{}),
	}
}

// owns reports whether this client is the recorded owner of the workspace
// instance internal. Used by "list wss" to render the ownership marker.
func (c *Client) owns(internal workspace.InternalName) bool {
	_, ok := c.owned[internal]
	return ok
}
