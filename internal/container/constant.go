package container

import "github.com/bigcomputing/nws/internal/value"

// constantType is a read-only single value: store is always rejected, and
// every fetch/find returns the same value without consuming it. As in
// stdvars.py's CONTAINER_TYPES dispatch table, __constant is not reachable
// through "declare var" -- it exists for server-seeded variables a future
// built-in (or plugin) might register, not as a client-declarable mode.
type constantType struct {
	v *value.Value
}

func newConstant(v *value.Value) *constantType {
	return &constantType{v: v}
}

func (c *constantType) Mode() Mode { return ModeConstant }

func (c *constantType) Store(connID int64, v *value.Value, blocking bool) (bool, *Waiter, error) {
	return false, nil, ErrStoreUnsupported
}

func (c *constantType) Fetch(connID int64, iter IterState, blocking bool) (*Result, *Waiter, error) {
	if c.v == nil {
		return nil, nil, ErrNoValue
	}
	return &Result{Value: c.v, Cookie: Cookie{Index: IndexUnset}}, nil, nil
}

func (c *constantType) Find(connID int64, iter IterState, blocking bool) (*Result, *Waiter, error) {
	return c.Fetch(connID, iter, blocking)
}

func (c *constantType) Purge() {
	if c.v != nil {
		c.v.Close()
		c.v = nil
	}
}

func (c *constantType) Len() int {
	if c.v == nil {
		return 0
	}
	return 1
}

func (c *constantType) NumFetchers() int { return 0 }
func (c *constantType) NumFinders() int  { return 0 }

func (c *constantType) RemoveFetcher(w *Waiter) bool { return false }
func (c *constantType) RemoveFinder(w *Waiter) bool  { return false }

// adoptWaiters handles promotion from Unknown: Constant never blocks, so
// waiters parked before the mode was known are resolved immediately.
func (c *constantType) adoptWaiters(fetchers, finders []*Waiter) {
	for _, w := range append(fetchers, finders...) {
		if c.v == nil {
			w.fail(ErrNoValue)
			continue
		}
		w.deliver(Result{Value: c.v, Cookie: Cookie{Index: IndexUnset}})
	}
}
