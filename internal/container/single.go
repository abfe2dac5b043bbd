package container

import "github.com/bigcomputing/nws/internal/value"

// singleType holds at most one value. Storing into a full Single replaces
// the current value (closing the prior one, including its spill file if
// any) rather than queueing.
type singleType struct {
	v     *value.Value
	index int64
	wl    waiterList
}

func newSingle() *singleType { return &singleType{} }

func (c *singleType) Mode() Mode { return ModeSingle }

func (c *singleType) Store(connID int64, v *value.Value, blocking bool) (bool, *Waiter, error) {
	c.index++
	consumed := c.wl.newValue(v, c.index)
	if consumed {
		return true, nil, nil
	}

	if c.v != nil {
		c.v.Close()
	}
	c.v = v
	return false, nil, nil
}

func (c *singleType) Fetch(connID int64, iter IterState, blocking bool) (*Result, *Waiter, error) {
	if c.v == nil {
		if blocking {
			w := NewWaiter(connID, iter)
			c.wl.addFetcher(w)
			return nil, w, nil
		}
		return nil, nil, ErrNoValue
	}

	v := c.v
	c.v = nil
	v.Consume()
	return &Result{Value: v, Cookie: Cookie{Index: c.index}}, nil, nil
}

func (c *singleType) Find(connID int64, iter IterState, blocking bool) (*Result, *Waiter, error) {
	if c.v == nil {
		if blocking {
			w := NewWaiter(connID, iter)
			c.wl.addFinder(w)
			return nil, w, nil
		}
		return nil, nil, ErrNoValue
	}

	return &Result{Value: c.v, Cookie: Cookie{Index: c.index}}, nil, nil
}

func (c *singleType) Purge() {
	if c.v != nil {
		c.v.Close()
		c.v = nil
	}
	c.wl.purge()
}

func (c *singleType) Len() int {
	if c.v == nil {
		return 0
	}
	return 1
}

func (c *singleType) NumFetchers() int { return c.wl.numFetchers() }
func (c *singleType) NumFinders() int  { return c.wl.numFinders() }

func (c *singleType) RemoveFetcher(w *Waiter) bool { return c.wl.removeFetcher(w) }
func (c *singleType) RemoveFinder(w *Waiter) bool  { return c.wl.removeFinder(w) }

func (c *singleType) adoptWaiters(fetchers, finders []*Waiter) {
	c.wl.fetchers = append(c.wl.fetchers, fetchers...)
	c.wl.finders = append(c.wl.finders, finders...)
}
