// Package registry implements the NWS workspace registry (spec §4.F): the
// global external-name-to-internal-name map, the internal-name-to-Workspace
// map, per-connection client state, and the verb handlers that sit above
// internal/workspace. Every exported method takes the registry's single
// mutex for its whole body, making the registry the one coarse-grained
// actor spec §5 requires -- there is no finer-grained locking anywhere
// below it.
package registry

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bigcomputing/nws/internal/container"
	"github.com/bigcomputing/nws/internal/nwslog"
	"github.com/bigcomputing/nws/internal/value"
	"github.com/bigcomputing/nws/internal/variable"
	"github.com/bigcomputing/nws/internal/workspace"
)

const defaultWorkspaceName = "__default"

const mktempAttempts = 1000

// Registry holds the registry's global state. Construct with New.
type Registry struct {
	mu sync.Mutex

	extToInt map[string]workspace.InternalName
	spaces   map[workspace.InternalName]*workspace.Workspace
	counter  int64

	// basename is the process-unique suffix mixed into every mktemp ws
	// name, taken once by the caller from an in-process temp file (spec
	// §4.F); the registry itself never touches the filesystem.
	basename string

	clients map[int64]*Client
}

// New constructs a registry pre-populated with the system default
// workspace, persistent and owned by "[system]" exactly as the original
// server seeds it at startup. basename should be the base name of a
// uniquely-created temp file for this process (internal/protocol or
// cmd/nwsd is responsible for creating it and removing it at shutdown).
func New(basename string) *Registry {
	r := &Registry{
		extToInt: make(map[string]workspace.InternalName),
		spaces:   make(map[workspace.InternalName]*workspace.Workspace),
		clients:  make(map[int64]*Client),
		basename: basename,
	}

	def := workspace.New(defaultWorkspaceName, 0)
	def.SetOwner("[system]", true)
	internal := def.Internal
	r.extToInt[defaultWorkspaceName] = internal
	r.spaces[internal] = def
	r.counter = 1

	return r
}

// Connect registers a new connection and returns its Client handle.
func (r *Registry) Connect(id int64, peer string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := NewClient(id, peer)
	r.clients[id] = c
	nwslog.Debug("registry: connect %d (%s)", id, peer)
	return c
}

// Disconnect tears down everything owned by or parked on behalf of c:
// non-persistent workspaces it owns are purged and removed from the
// registry, and a parked waiter (if any) is evicted from its container's
// waiter list without being released (spec §9, "connections do not own
// variables; variables hold a weak handle to connections").
func (r *Registry) Disconnect(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	if !ok {
		return
	}
	delete(r.clients, id)

	if c.parked != nil {
		r.evictParked(c)
	}
	r.purgeOwned(c)
	nwslog.Debug("registry: disconnect %d", id)
}

func (r *Registry) evictParked(c *Client) {
	pw := c.parked
	c.parked = nil

	ws, ok := r.spaces[pw.ws]
	if !ok {
		return
	}
	v, ok := ws.Variable(pw.varName)
	if !ok {
		return
	}
	if pw.kind == waitFetch {
		v.RemoveFetcher(pw.waiter)
	} else {
		v.RemoveFinder(pw.waiter)
	}
}

func (r *Registry) purgeOwned(c *Client) {
	for internal := range c.owned {
		space, ok := r.spaces[internal]
		if !ok {
			continue
		}
		if space.Persistent {
			continue
		}
		delete(r.spaces, internal)
		if r.extToInt[internal.External] == internal {
			delete(r.extToInt, internal.External)
		}
		space.Purge()
	}
	c.owned = make(map[workspace.InternalName]struct{})
}

// Unpark clears a client's parked bookkeeping once its blocking Fetch/Find
// call has returned (delivered or failed), whichever comes first.
// internal/protocol calls this immediately after container.Waiter.Wait
// returns, before replying to the client.
func (r *Registry) Unpark(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.parked = nil
}

func (r *Registry) park(c *Client, ws workspace.InternalName, varName string, isFetch bool, w *container.Waiter) {
	kind := waitFind
	if isFetch {
		kind = waitFetch
	}
	c.parked = &parkedWait{ws: ws, varName: varName, kind: kind, waiter: w}
}

// findWorkspace resolves ext through c's own view (caller holds r.mu),
// matching the original's get_int_ws_name + spaces lookup: ErrWorkspaceNotOpened
// if this client never opened/used ext, ErrNoSuchWorkspace if the mapping
// has since gone stale (another client deleted it).
func (r *Registry) findWorkspace(c *Client, ext string) (*workspace.Workspace, error) {
	internal, ok := c.views[ext]
	if !ok {
		return nil, ErrWorkspaceNotOpened
	}
	ws, ok := r.spaces[internal]
	if !ok {
		return nil, ErrNoSuchWorkspace
	}
	return ws, nil
}

// ReferenceSpace implements spec §4.F's reference_space: look up ext in the
// global map, creating a fresh instance (allocating a new internal name)
// when it's unknown and create is true. On success -- whether the space
// was just created or already existed -- c's view is updated to point at
// it. Returns nil when ext is unknown and create is false.
func (r *Registry) ReferenceSpace(c *Client, ext string, create bool) *workspace.Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.referenceSpaceLocked(c, ext, create)
}

func (r *Registry) referenceSpaceLocked(c *Client, ext string, create bool) *workspace.Workspace {
	internal, known := r.extToInt[ext]
	var space *workspace.Workspace

	if !known {
		if !create {
			return nil
		}
		internal = workspace.InternalName{External: ext, Counter: r.counter}
		r.counter++

		space = workspace.New(ext, internal.Counter)
		r.spaces[internal] = space
		r.extToInt[ext] = internal
	} else {
		space = r.spaces[internal]
	}

	if c != nil {
		c.views[ext] = internal
	}
	return space
}

// OpenWorkspace implements "open ws"/"use ws". claim is true only for
// "open ws": it records ownership (owner string "<peer> (<label>)" and the
// persistent flag) the first time this workspace is opened, and is a
// no-op on subsequent calls (spec §4.F).
func (r *Registry) OpenWorkspace(c *Client, ext, ownerLabel, persistentStr, createStr string, claim bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	create := createStr != "no"
	persistent := persistentStr == "yes"

	space := r.referenceSpaceLocked(c, ext, create)
	if space == nil {
		return ErrWorkspaceNotFound
	}

	if claim {
		owner := fmt.Sprintf("%s (%s)", c.Peer, ownerLabel)
		if space.SetOwner(owner, persistent) {
			c.owned[space.Internal] = struct{}{}
		}
	}
	return nil
}

var mktempVerb = regexp.MustCompile(`%[-+0 #]*[0-9]*d`)

func validMktempTemplate(template string) bool {
	matches := mktempVerb.FindAllStringIndex(template, -1)
	if len(matches) != 1 {
		return false
	}
	rest := mktempVerb.ReplaceAllString(template, "")
	return !strings.Contains(rest, "%")
}

// MktempWorkspace implements "mktemp ws": build a unique name from template
// (a single %d-style verb) plus the process-unique basename, retrying the
// counter up to 1000 times, then non-owningly reference it into existence
// (spec §4.F).
func (r *Registry) MktempWorkspace(c *Client, template string) (string, error) {
	if !validMktempTemplate(template) {
		return "", ErrBadMktempTemplate
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var name string
	for i := 0; i < mktempAttempts; i++ {
		candidate := fmt.Sprintf(template, r.counter) + r.basename
		// Every attempt consumes a counter value, mirroring the
		// original's ws_counter stepping even on collision.
		r.counter++
		if _, taken := r.extToInt[candidate]; !taken {
			name = candidate
			break
		}
	}
	if name == "" {
		return "", ErrMktempExhausted
	}

	r.referenceSpaceLocked(c, name, true)
	return name, nil
}

// DeleteWorkspace implements "delete ws". Unlike every other verb, this
// looks the workspace up directly in the global map rather than through
// c's view (the original server's cmd_delete_workspace pops
// __ext_to_int_ws_name unconditionally); the requesting client's own view
// and owned set are best-effort cleared afterward. Other clients keep a
// now-dangling view entry, which the next findWorkspace resolves to
// ErrNoSuchWorkspace rather than ever reaching the deleted workspace again
// (spec §8 invariant 5).
func (r *Registry) DeleteWorkspace(c *Client, ext string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	internal, ok := r.extToInt[ext]
	if !ok {
		return ErrWorkspaceNotFound
	}
	space, ok := r.spaces[internal]
	if !ok {
		return ErrWorkspaceNotFound
	}

	delete(r.extToInt, ext)
	delete(r.spaces, internal)
	space.Purge()

	if c != nil {
		if c.views[ext] == internal {
			delete(c.views, ext)
		}
		delete(c.owned, internal)
	}
	return nil
}

// DeclareVar implements "declare var".
func (r *Registry) DeclareVar(c *Client, ext, varName, mode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws, err := r.findWorkspace(c, ext)
	if err != nil {
		return err
	}
	return ws.DeclareVar(varName, mode)
}

// DeleteVar implements "delete var".
func (r *Registry) DeleteVar(c *Client, ext, varName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws, err := r.findWorkspace(c, ext)
	if err != nil {
		return err
	}
	return ws.DeleteVar(varName)
}

// Store implements "store". Store never parks regardless of container
// mode, so it never returns a waiter.
func (r *Registry) Store(c *Client, ext, varName string, val *value.Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws, err := r.findWorkspace(c, ext)
	if err != nil {
		return err
	}
	_, _, err = ws.StoreVar(c.ID, varName, val, false)
	return err
}

// Get implements the fetch/fetchTry/find/findTry/ifetch/ifetchTry/ifind/
// ifindTry family. vid should already be trimmed of the wire's fixed-width
// padding by the caller. A non-nil waiter return means the call parked and
// the caller must not reply yet -- the eventual reply is driven by
// waiter.Wait() once a store or purge resolves it. The returned vid is the
// variable's current vid, needed by the caller to build the long reply's
// vid field (and to hand back to a later ifetch*/ifind* call).
func (r *Registry) Get(c *Client, op, ext, varName, vid string, valIndex int64) (res *container.Result, varVID string, waiter *container.Waiter, err error) {
	remove, block, iterate, ok := OpProperties(op)
	if !ok {
		return nil, "", nil, ErrUnknownVerb
	}
	if !iterate {
		vid = ""
	}
	if vid == "" {
		valIndex = -1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ws, err := r.findWorkspace(c, ext)
	if err != nil {
		return nil, "", nil, err
	}

	req := workspace.IterRequest{Has: vid != "", VID: vid, Index: valIndex}

	var v *variable.Variable
	if remove {
		res, waiter, v, err = ws.FetchVar(c.ID, varName, req, block)
	} else {
		res, waiter, v, err = ws.FindVar(c.ID, varName, req, block)
	}
	if err != nil {
		if v != nil {
			varVID = v.VID
		}
		return nil, varVID, nil, err
	}
	if waiter != nil {
		r.park(c, ws.Internal, varName, remove, waiter)
	}
	return res, v.VID, waiter, nil
}

// ListVars implements "list vars".
func (r *Registry) ListVars(c *Client, ext string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws, err := r.findWorkspace(c, ext)
	if err != nil {
		return "", err
	}
	return ws.ListVars(), nil
}

// ListWorkspaces implements "list wss". wanted, if non-empty, restricts
// the listing to that one external name (silently empty if it doesn't
// currently exist); otherwise every known workspace is listed, sorted by
// external name. Each line is
// "<marker><name>\t<owner>\t<persistent>\t<varcount>\t<csv of var names>",
// marker being ">" if c owns that workspace, else " " (spec §11, byte-for-
// byte reproduction of the original's format).
func (r *Registry) ListWorkspaces(c *Client, wanted string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names []string
	if wanted != "" {
		if _, ok := r.extToInt[wanted]; ok {
			names = []string{wanted}
		}
	} else {
		for ext := range r.extToInt {
			names = append(names, ext)
		}
		sort.Strings(names)
	}

	var lines []string
	for _, ext := range names {
		internal := r.extToInt[ext]
		space, ok := r.spaces[internal]
		if !ok {
			continue
		}

		marker := " "
		if c != nil && c.owns(internal) {
			marker = ">"
		}

		vars := space.VarNames()
		sorted := append([]string(nil), vars...)
		sort.Strings(sorted)

		lines = append(lines, fmt.Sprintf("%s%s\t%s\t%s\t%d\t%s",
			marker, ext, space.Owner, pyBool(space.Persistent), len(vars), strings.Join(sorted, ",")))
	}

	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// pyBool renders a bool the way the Python original's str(bool) does, since
// spec §11 asks for a byte-for-byte reproduction of that column.
func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// Deadman implements "deadman": marks c for death. internal/protocol is
// responsible for triggering Shutdown once c's connection actually closes
// (spec §4.F: "triggered ... by a deadman command followed by the
// connection's close").
func (r *Registry) Deadman(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.dying = true
}

// MarkedForDeath reports whether Deadman was called on c.
func (r *Registry) MarkedForDeath(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return c.dying
}

// Stats reports the current workspace and variable counts, for
// internal/metrics' gauges.
func (r *Registry) Stats() (workspaces, variables int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	workspaces = len(r.spaces)
	for _, space := range r.spaces {
		variables += len(space.VarNames())
	}
	return workspaces, variables
}

// ClientStat is a point-in-time snapshot of one connection's session
// statistics (spec §11), exposed for the metrics/debug web surface.
type ClientStat struct {
	ID             int64
	Peer           string
	OpCount        int64
	LongValueCount int64
	LastOp         string
	LastOpTime     time.Time
}

// RecordOp marks the occurrence of one command on c's connection,
// adapted from protocol.py's WsSessionStats.mark_operation /
// mark_new_long_value. newLongValues counts how many of the command's
// arguments spilled to a temp file (normally 0 or 1, for "store").
func (r *Registry) RecordOp(c *Client, opname string, newLongValues int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c.opCount++
	c.lastOp = opname
	c.lastOpTime = time.Now()
	c.longValueCount += int64(newLongValues)
}

// ClientStats snapshots every currently-connected client's session
// statistics, sorted by connection id for stable display.
func (r *Registry) ClientStats() []ClientStat {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ClientStat, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, ClientStat{
			ID:             c.ID,
			Peer:           c.Peer,
			OpCount:        c.opCount,
			LongValueCount: c.longValueCount,
			LastOp:         c.lastOp,
			LastOpTime:     c.lastOpTime,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Shutdown purges every workspace in the registry, best-effort (spec
// §4.F). It does not touch the filesystem; removing the process-unique
// temp file and tearing down the listener are internal/protocol/cmd/nwsd
// responsibilities.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for internal, space := range r.spaces {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					nwslog.Error("registry: panic purging workspace %s: %v", internal.External, rec)
				}
			}()
			space.Purge()
		}()
	}
	r.spaces = make(map[workspace.InternalName]*workspace.Workspace)
	r.extToInt = make(map[string]workspace.InternalName)
	nwslog.Info("registry: shutdown complete")
}
