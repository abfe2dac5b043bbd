package nwsclient

import "strconv"

// DeclareVar declares varName in workspace ws with the given mode
// ("fifo", "lifo", "multi", "single", "__barrier", "__time", "unknown",
// or "").
func (c *Conn) DeclareVar(ws, varName, mode string) error {
	return c.short("declare var", ws, varName, mode)
}

// DeleteWorkspace removes workspace ws.
func (c *Conn) DeleteWorkspace(ws string) error {
	return c.short("delete ws", ws)
}

// DeleteVar removes varName from workspace ws.
func (c *Conn) DeleteVar(ws, varName string) error {
	return c.short("delete var", ws, varName)
}

// Store stores value under varName in workspace ws, declaring the
// variable FIFO if it does not already exist. typ is an opaque
// client-chosen type descriptor carried back on fetch/find.
func (c *Conn) Store(ws, varName string, typ uint32, value []byte) error {
	return c.short("store", ws, varName, strconv.FormatUint(uint64(typ), 10), string(value))
}

func (c *Conn) get(op, ws, varName, vid string, index int64) (*Result, error) {
	indexStr := ""
	if vid != "" {
		indexStr = strconv.FormatInt(index, 10)
	}
	return c.long(op, ws, varName, vid, indexStr)
}

// Fetch blocks until a value is available in varName, then removes and
// returns it (FIFO order).
func (c *Conn) Fetch(ws, varName string) (*Result, error) {
	return c.get("fetch", ws, varName, "", 0)
}

// FetchTry is Fetch without blocking: it returns a *StatusError carrying
// the server's status and reason immediately if nothing is available.
func (c *Conn) FetchTry(ws, varName string) (*Result, error) {
	return c.get("fetchTry", ws, varName, "", 0)
}

// Find blocks until a value is available in varName, then returns it
// without removing it.
func (c *Conn) Find(ws, varName string) (*Result, error) {
	return c.get("find", ws, varName, "", 0)
}

// FindTry is Find without blocking.
func (c *Conn) FindTry(ws, varName string) (*Result, error) {
	return c.get("findTry", ws, varName, "", 0)
}

// IFetch resumes an iterated fetch from the cookie (vid, index) a prior
// Fetch/Find/IFetch/IFind returned, blocking until the next value exists.
func (c *Conn) IFetch(ws, varName, vid string, index int64) (*Result, error) {
	return c.get("ifetch", ws, varName, vid, index)
}

// IFetchTry is IFetch without blocking.
func (c *Conn) IFetchTry(ws, varName, vid string, index int64) (*Result, error) {
	return c.get("ifetchTry", ws, varName, vid, index)
}

// IFind resumes an iterated find from the cookie (vid, index), blocking
// until the next value exists.
func (c *Conn) IFind(ws, varName, vid string, index int64) (*Result, error) {
	return c.get("ifind", ws, varName, vid, index)
}

// IFindTry is IFind without blocking.
func (c *Conn) IFindTry(ws, varName, vid string, index int64) (*Result, error) {
	return c.get("ifindTry", ws, varName, vid, index)
}

// ListVars returns the server's formatted listing of ws's variables.
func (c *Conn) ListVars(ws string) (string, error) {
	res, err := c.long("list vars", ws)
	if err != nil {
		return "", err
	}
	return string(res.Value), nil
}

// ListWorkspaces returns the server's formatted listing of the workspace
// whose name equals pattern exactly ("" lists every registered workspace).
func (c *Conn) ListWorkspaces(pattern string) (string, error) {
	res, err := c.long("list wss", pattern)
	if err != nil {
		return "", err
	}
	return string(res.Value), nil
}

// MktempWorkspace creates a uniquely-named workspace derived from template
// (a printf-style "%d" pattern), adds it to this connection's view without
// claiming ownership, and returns its name.
func (c *Conn) MktempWorkspace(template string) (string, error) {
	res, err := c.long("mktemp ws", template)
	if err != nil {
		return "", err
	}
	return string(res.Value), nil
}

func boolArg(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// OpenWorkspace opens (claiming ownership of) workspace ws, creating it
// if create is true and it doesn't already exist.
func (c *Conn) OpenWorkspace(ws, ownerLabel string, persistent, create bool) error {
	return c.short("open ws", ws, ownerLabel, boolArg(persistent), boolArg(create))
}

// UseWorkspace opens workspace ws without claiming ownership of it.
func (c *Conn) UseWorkspace(ws, ownerLabel string, persistent, create bool) error {
	return c.short("use ws", ws, ownerLabel, boolArg(persistent), boolArg(create))
}

// Deadman flags this connection so the server shuts itself down when it
// disconnects (spec §4.F). It takes effect whether or not the
// KillServerOnClose option was negotiated during Dial.
func (c *Conn) Deadman() error {
	return c.short("deadman")
}
