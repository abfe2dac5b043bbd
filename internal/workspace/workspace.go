// Package workspace implements the NWS Workspace: a name-to-Variable map
// with ownership metadata and a set of named hook points a custom
// subclass (the out-of-scope plugin loader) could override. The base
// workspace defines no hooks.
package workspace

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bigcomputing/nws/internal/container"
	"github.com/bigcomputing/nws/internal/value"
	"github.com/bigcomputing/nws/internal/variable"
)

var (
	ErrNoSuchVariable = errors.New("no such variable")
	ErrVIDMismatch    = errors.New("Variable id mismatch.")
)

// InternalName identifies a workspace instance: the external name a client
// uses, paired with the creation counter that distinguishes successive
// instances after delete+recreate (spec §3/§9 "two-level workspace
// naming").
type InternalName struct {
	External string
	Counter  int64
}

func (n InternalName) String() string {
	return fmt.Sprintf("%s#%d", n.External, n.Counter)
}

// HookFunc is a named lifecycle callback a Workspace subclass can register.
// The base Workspace never populates any hook itself.
type HookFunc func(args ...interface{})

// IterRequest carries a client's iterator position for an ifetch*/ifind*
// call, or Has == false for the plain fetch/find family.
type IterRequest struct {
	Has   bool
	VID   string
	Index int64
}

// Workspace is a name→Variable map plus ownership metadata. It is not
// itself safe for concurrent use -- internal/registry funnels every
// operation through a single logical turn, per spec §5.
type Workspace struct {
	Name       string
	Internal   InternalName
	Owner      string
	Persistent bool

	vars  map[string]*variable.Variable
	order []string

	hooks map[string][]HookFunc
}

// New constructs an empty, unowned workspace.
func New(external string, counter int64) *Workspace {
	return &Workspace{
		Name:     external,
		Internal: InternalName{External: external, Counter: counter},
		vars:     make(map[string]*variable.Variable),
	}
}

// RegisterHook appends fn to the named hook point. Workspace runs the
// store_pre, store_post, fetch_pre, find_pre, delete_pre, delete_post,
// setowner_pre, setowner_post, purge_pre, and purge_post points. Any other
// name, including created_ws and destroyed_ws, is accepted but never run.
func (w *Workspace) RegisterHook(name string, fn HookFunc) {
	if w.hooks == nil {
		w.hooks = make(map[string][]HookFunc)
	}
	w.hooks[name] = append(w.hooks[name], fn)
}

func (w *Workspace) runHook(name string, args ...interface{}) {
	for _, fn := range w.hooks[name] {
		fn(args...)
	}
}

// SetOwner records ownership the first time it is called; subsequent calls
// are no-ops (spec §4.F: "subsequent open-ws calls on an already-owned
// space do not change ownership"). Reports whether ownership was actually
// recorded by this call.
func (w *Workspace) SetOwner(owner string, persistent bool) bool {
	if w.Owner != "" {
		return false
	}
	w.runHook("setowner_pre", owner, persistent)
	w.Owner = owner
	w.Persistent = persistent
	w.runHook("setowner_post", owner, persistent)
	return true
}

func (w *Workspace) vidTaken(candidate string) bool {
	for _, v := range w.vars {
		if v.VID == candidate {
			return true
		}
	}
	return false
}

// getOrCreate returns the named variable, creating it in Unknown mode (with
// a freshly generated vid) if it doesn't exist yet.
func (w *Workspace) getOrCreate(name string) (*variable.Variable, error) {
	if v, ok := w.vars[name]; ok {
		return v, nil
	}

	vid, err := variable.GenerateVID(w.vidTaken)
	if err != nil {
		return nil, err
	}

	v := variable.New(name, vid)
	w.vars[name] = v
	w.order = append(w.order, name)
	return v, nil
}

// DeclareVar sets name's mode, creating the variable if necessary.
func (w *Workspace) DeclareVar(name, mode string) error {
	v, err := w.getOrCreate(name)
	if err != nil {
		return err
	}
	return v.SetMode(mode)
}

// StoreVar stores val into name, creating the variable (in Unknown mode,
// which promotes to FIFO on this very store) if necessary.
func (w *Workspace) StoreVar(connID int64, name string, val *value.Value, blocking bool) (bool, *container.Waiter, error) {
	v, err := w.getOrCreate(name)
	if err != nil {
		return false, nil, err
	}

	w.runHook("store_pre", v, val)
	consumed, waiter, err := v.Store(connID, val, blocking)
	w.runHook("store_post", v, val, consumed, err)
	return consumed, waiter, err
}

// resolveIter validates a client-supplied iterator request against the live
// variable and converts it to the container's IterState, failing with
// ErrVIDMismatch if the variable has been deleted and recreated since the
// client last saw it (spec §4.C).
func (w *Workspace) resolveIter(v *variable.Variable, req IterRequest) (container.IterState, error) {
	if !req.Has {
		return container.IterState{}, nil
	}
	if req.VID != v.VID {
		return container.IterState{}, ErrVIDMismatch
	}
	return container.IterState{Has: true, Index: req.Index}, nil
}

// finishCookie substitutes (vid, max(0, requested_index)) when the
// container declined to choose its own index (container.IndexUnset),
// matching spec §4.C's workspace-layer fallback.
func finishCookie(res *container.Result, req IterRequest) {
	if res == nil || res.Cookie.Index != container.IndexUnset {
		return
	}
	idx := req.Index
	if idx < 0 {
		idx = 0
	}
	res.Cookie.Index = idx
}

// FetchVar removes and returns a value from name (the fetch/fetchTry/
// ifetch/ifetchTry family). A blocking call on a missing variable creates
// it in Unknown mode and parks; a non-blocking one fails with
// ErrNoSuchVariable.
func (w *Workspace) FetchVar(connID int64, name string, req IterRequest, blocking bool) (*container.Result, *container.Waiter, *variable.Variable, error) {
	v, ok := w.vars[name]
	if !ok {
		if !blocking {
			return nil, nil, nil, ErrNoSuchVariable
		}
		var err error
		if v, err = w.getOrCreate(name); err != nil {
			return nil, nil, nil, err
		}
	}

	iter, err := w.resolveIter(v, req)
	if err != nil {
		return nil, nil, v, err
	}

	w.runHook("fetch_pre", v, req, blocking)
	res, waiter, err := v.Fetch(connID, iter, blocking)
	finishCookie(res, req)
	return res, waiter, v, err
}

// FindVar returns a value from name without removing it (the find/findTry/
// ifind/ifindTry family), with FetchVar's handling of a missing variable.
func (w *Workspace) FindVar(connID int64, name string, req IterRequest, blocking bool) (*container.Result, *container.Waiter, *variable.Variable, error) {
	v, ok := w.vars[name]
	if !ok {
		if !blocking {
			return nil, nil, nil, ErrNoSuchVariable
		}
		var err error
		if v, err = w.getOrCreate(name); err != nil {
			return nil, nil, nil, err
		}
	}

	iter, err := w.resolveIter(v, req)
	if err != nil {
		return nil, nil, v, err
	}

	w.runHook("find_pre", v, req, blocking)
	res, waiter, err := v.Find(connID, iter, blocking)
	finishCookie(res, req)
	return res, waiter, v, err
}

// DeleteVar purges and removes name. Any parked waiters fail with
// container.ErrPurged.
func (w *Workspace) DeleteVar(name string) error {
	v, ok := w.vars[name]
	if !ok {
		return ErrNoSuchVariable
	}

	w.runHook("delete_pre", v)
	v.Purge()
	delete(w.vars, name)
	for i, n := range w.order {
		if n == name {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	w.runHook("delete_post", v)
	return nil
}

// Variable looks up name without creating it.
func (w *Workspace) Variable(name string) (*variable.Variable, bool) {
	v, ok := w.vars[name]
	return v, ok
}

// Purge tears down every variable in the workspace (used by "delete ws" and
// by disconnect-driven cleanup of non-persistent owned workspaces).
func (w *Workspace) Purge() {
	w.runHook("purge_pre")
	for _, v := range w.vars {
		v.Purge()
	}
	w.vars = make(map[string]*variable.Variable)
	w.order = nil
	w.runHook("purge_post")
}

// ListVars renders the "list vars" reply body: one tab-separated line per
// variable, in declaration order, as "name\tcount\tfetchers\tfinders\tmode".
func (w *Workspace) ListVars() string {
	var sb strings.Builder
	for _, name := range w.order {
		v := w.vars[name]
		fmt.Fprintf(&sb, "%s\t%d\t%d\t%d\t%s\n", name, v.Len(), v.NumFetchers(), v.NumFinders(), v.Mode())
	}
	return sb.String()
}

// VarNames returns variable names in declaration order, used by "list wss"
// to render each workspace's csv-of-vars column.
func (w *Workspace) VarNames() []string {
	out := make([]string, len(w.order))
	copy(out, w.order)
	return out
}
