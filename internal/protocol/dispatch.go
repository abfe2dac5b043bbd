package protocol

import (
	"strconv"
	"strings"

	"github.com/bigcomputing/nws/internal/nwslog"
	"github.com/bigcomputing/nws/internal/registry"
	"github.com/bigcomputing/nws/internal/value"
	"github.com/bigcomputing/nws/internal/wire"
)

// dispatch performs one command, mirroring the original server's
// OPERATIONS table: an unrecognized verb is the one case the original
// surfaces as a dispatch-level KeyError rather than anything workspace or
// registry related.
func (c *Conn) dispatch(verb string, args []*wire.Payload, metadata map[string]string) {
	switch verb {
	case "declare var":
		c.cmdDeclareVar(args)
	case "delete ws":
		c.cmdDeleteWorkspace(args)
	case "delete var":
		c.cmdDeleteVar(args)
	case "store":
		c.cmdStore(args)
	case "fetch", "fetchTry", "find", "findTry", "ifetch", "ifetchTry", "ifind", "ifindTry":
		c.cmdGet(verb, args)
	case "list vars":
		c.cmdListVars(args)
	case "list wss":
		c.cmdListWorkspaces(args)
	case "mktemp ws":
		c.cmdMktemp(args)
	case "open ws", "use ws":
		c.cmdOpenWorkspace(verb, args)
	case "deadman":
		c.cmdDeadman()
	default:
		nwslog.Warn("protocol: unknown verb %q from %s", verb, c.peer)
		sendShortErr(c, registry.ErrUnknownVerb)
	}
}

func (c *Conn) cmdDeclareVar(args []*wire.Payload) {
	ws := argAt(args, 0, "")
	varName := argAt(args, 1, "")
	mode := argAt(args, 2, "")

	if err := c.reg.DeclareVar(c.client, ws, varName, mode); err != nil {
		sendShortErr(c, err)
		return
	}
	sendShortOK(c)
}

func (c *Conn) cmdDeleteWorkspace(args []*wire.Payload) {
	ws := argAt(args, 0, "")

	if err := c.reg.DeleteWorkspace(c.client, ws); err != nil {
		sendShortErr(c, err)
		return
	}
	sendShortOK(c)
}

func (c *Conn) cmdDeleteVar(args []*wire.Payload) {
	ws := argAt(args, 0, "")
	varName := argAt(args, 1, "")

	if err := c.reg.DeleteVar(c.client, ws, varName); err != nil {
		sendShortErr(c, err)
		return
	}
	sendShortOK(c)
}

func (c *Conn) cmdStore(args []*wire.Payload) {
	if len(args) < 4 {
		sendShortErr(c, errBadArgument)
		return
	}
	ws := argAt(args, 0, "")
	varName := argAt(args, 1, "")

	typ, err := strconv.ParseUint(strings.TrimSpace(argAt(args, 2, "0")), 10, 32)
	if err != nil {
		sendShortErr(c, errBadArgument)
		return
	}

	val := value.New(uint32(typ), args[3])

	if err := c.reg.Store(c.client, ws, varName, val); err != nil {
		sendShortErr(c, err)
		return
	}
	c.metrics.BytesStored(int(val.Len()))
	sendShortOK(c)
}

func (c *Conn) cmdGet(op string, args []*wire.Payload) {
	ws := argAt(args, 0, "")
	varName := argAt(args, 1, "")
	vid := strings.TrimSpace(argAt(args, 2, ""))
	valIndexStr := strings.TrimSpace(argAt(args, 3, ""))

	var valIndex int64 = -1
	if vid != "" && valIndexStr != "" {
		if n, err := strconv.ParseInt(valIndexStr, 10, 64); err == nil {
			valIndex = n
		}
	}

	res, varVID, waiter, err := c.reg.Get(c.client, op, ws, varName, vid, valIndex)
	if err != nil {
		sendLongErr(c, err)
		return
	}

	if waiter != nil {
		// Parked: block this connection's goroutine until a store or purge
		// resolves it, clearing the registry's back-reference before
		// replying either way.
		c.metrics.WaiterParked()
		result, werr := waiter.Wait()
		c.metrics.WaiterResolved()
		c.reg.Unpark(c.client)
		if werr != nil {
			sendLongErr(c, werr)
			return
		}
		sendLongValue(c, result.Value, varVID, result.Cookie.Index)
		return
	}

	sendLongValue(c, res.Value, varVID, res.Cookie.Index)
}

func (c *Conn) cmdListVars(args []*wire.Payload) {
	ws := argAt(args, 0, "")

	listing, err := c.reg.ListVars(c.client, ws)
	if err != nil {
		sendLongErr(c, err)
		return
	}
	sendLongText(c, listing)
}

func (c *Conn) cmdListWorkspaces(args []*wire.Payload) {
	wanted := argAt(args, 0, "")
	sendLongText(c, c.reg.ListWorkspaces(c.client, wanted))
}

func (c *Conn) cmdMktemp(args []*wire.Payload) {
	template := argAt(args, 0, "__ws__%d")

	name, err := c.reg.MktempWorkspace(c.client, template)
	if err != nil {
		sendLongErr(c, err)
		return
	}
	sendLongText(c, name)
}

func (c *Conn) cmdOpenWorkspace(verb string, args []*wire.Payload) {
	ws := argAt(args, 0, "")
	ownerLabel := argAt(args, 1, "")
	persistentStr := argAt(args, 2, "no")
	createStr := argAt(args, 3, "yes")
	claim := verb == "open ws"

	if err := c.reg.OpenWorkspace(c.client, ws, ownerLabel, persistentStr, createStr, claim); err != nil {
		sendShortErr(c, err)
		return
	}
	sendShortOK(c)
}

func (c *Conn) cmdDeadman() {
	c.reg.Deadman(c.client)
	sendShortOK(c)
}
