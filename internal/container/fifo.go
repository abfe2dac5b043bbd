package container

import "github.com/bigcomputing/nws/internal/value"

// fifoType is an ordered queue: store appends at tail, fetch pops the head,
// find reads the head without removing it. base tracks how many elements
// have ever been popped, so the pair (base, absolute position) forms the
// iterator cookie described in spec §3/§4.C.
//
// No internal locking: every call arrives already serialized through the
// registry's single logical turn (spec §5), so there is nothing here to
// race against.
type fifoType struct {
	base  int64
	items []*value.Value
	wl    waiterList
}

func newFIFO() *fifoType { return &fifoType{} }

func (c *fifoType) Mode() Mode { return ModeFIFO }

func (c *fifoType) Store(connID int64, v *value.Value, blocking bool) (bool, *Waiter, error) {
	idx := c.base + int64(len(c.items)) + 1
	consumed := c.wl.newValue(v, idx)
	if !consumed {
		c.items = append(c.items, v)
	}
	return consumed, nil, nil
}

// resolvePosition maps a client iterator index to a position relative to
// the current head, clamping negative results to 0 (spec §4.C table).
func (c *fifoType) resolvePosition(iter IterState) int64 {
	if !iter.Has {
		return 0
	}
	pos := iter.Index - c.base + 1
	if pos < 0 {
		pos = 0
	}
	return pos
}

func (c *fifoType) Fetch(connID int64, iter IterState, blocking bool) (*Result, *Waiter, error) {
	pos := c.resolvePosition(iter)

	if pos != 0 || len(c.items) == 0 {
		if blocking {
			w := NewWaiter(connID, iter)
			c.wl.addFetcher(w)
			return nil, w, nil
		}
		return nil, nil, ErrNoValue
	}

	v := c.items[0]
	c.items = c.items[1:]
	c.base++
	v.Consume()

	return &Result{Value: v, Cookie: Cookie{Index: c.base}}, nil, nil
}

func (c *fifoType) Find(connID int64, iter IterState, blocking bool) (*Result, *Waiter, error) {
	pos := c.resolvePosition(iter)

	if pos < 0 || pos >= int64(len(c.items)) {
		if blocking {
			w := NewWaiter(connID, iter)
			c.wl.addFinder(w)
			return nil, w, nil
		}
		return nil, nil, ErrNoValue
	}

	v := c.items[pos]
	return &Result{Value: v, Cookie: Cookie{Index: c.base + pos}}, nil, nil
}

func (c *fifoType) Purge() {
	for _, v := range c.items {
		v.Close()
	}
	c.items = nil
	c.wl.purge()
}

func (c *fifoType) Len() int         { return len(c.items) }
func (c *fifoType) NumFetchers() int { return c.wl.numFetchers() }
func (c *fifoType) NumFinders() int  { return c.wl.numFinders() }

// RemoveFetcher and RemoveFinder implement Container's disconnect-driven
// eviction of a parked waiter.
func (c *fifoType) RemoveFetcher(w *Waiter) bool { return c.wl.removeFetcher(w) }
func (c *fifoType) RemoveFinder(w *Waiter) bool  { return c.wl.removeFinder(w) }

func (c *fifoType) adoptWaiters(fetchers, finders []*Waiter) {
	c.wl.fetchers = append(c.wl.fetchers, fetchers...)
	c.wl.finders = append(c.wl.finders, finders...)
}
