package container

import "github.com/bigcomputing/nws/internal/value"

// lifoType is a stack: store pushes, fetch pops the tail, find reads the
// tail without removing it. Iterated fetch/find is not supported -- there
// is no stable notion of position once a push can reorder everything a
// client might have been resuming from. "multi" is an alias that
// constructs this same type (see spec's Open Question on mode=multi).
type lifoType struct {
	items []*value.Value
	seq   int64
	wl    waiterList
}

func newLIFO() *lifoType { return &lifoType{} }

func (c *lifoType) Mode() Mode { return ModeLIFO }

func (c *lifoType) Store(connID int64, v *value.Value, blocking bool) (bool, *Waiter, error) {
	c.seq++
	consumed := c.wl.newValue(v, c.seq)
	if !consumed {
		c.items = append(c.items, v)
	}
	return consumed, nil, nil
}

func (c *lifoType) Fetch(connID int64, iter IterState, blocking bool) (*Result, *Waiter, error) {
	if iter.Has {
		return nil, nil, ErrIteratedUnsupported
	}

	if len(c.items) == 0 {
		if blocking {
			w := NewWaiter(connID, iter)
			c.wl.addFetcher(w)
			return nil, w, nil
		}
		return nil, nil, ErrNoValue
	}

	last := len(c.items) - 1
	v := c.items[last]
	c.items = c.items[:last]
	v.Consume()

	return &Result{Value: v, Cookie: Cookie{Index: IndexUnset}}, nil, nil
}

func (c *lifoType) Find(connID int64, iter IterState, blocking bool) (*Result, *Waiter, error) {
	if iter.Has {
		return nil, nil, ErrIteratedUnsupported
	}

	if len(c.items) == 0 {
		if blocking {
			w := NewWaiter(connID, iter)
			c.wl.addFinder(w)
			return nil, w, nil
		}
		return nil, nil, ErrNoValue
	}

	v := c.items[len(c.items)-1]
	return &Result{Value: v, Cookie: Cookie{Index: IndexUnset}}, nil, nil
}

func (c *lifoType) Purge() {
	for _, v := range c.items {
		v.Close()
	}
	c.items = nil
	c.wl.purge()
}

func (c *lifoType) Len() int         { return len(c.items) }
func (c *lifoType) NumFetchers() int { return c.wl.numFetchers() }
func (c *lifoType) NumFinders() int  { return c.wl.numFinders() }

func (c *lifoType) RemoveFetcher(w *Waiter) bool { return c.wl.removeFetcher(w) }
func (c *lifoType) RemoveFinder(w *Waiter) bool  { return c.wl.removeFinder(w) }

// adoptWaiters transfers waiters parked while the variable was still
// Unknown. A waiter that requested an iterated position can never be
// satisfied on a LIFO (no stable position exists), so it fails immediately
// instead of being silently re-parked.
func (c *lifoType) adoptWaiters(fetchers, finders []*Waiter) {
	for _, w := range fetchers {
		if w.Iter.Has {
			w.fail(ErrIteratedUnsupported)
			continue
		}
		c.wl.addFetcher(w)
	}
	for _, w := range finders {
		if w.Iter.Has {
			w.fail(ErrIteratedUnsupported)
			continue
		}
		c.wl.addFinder(w)
	}
}
