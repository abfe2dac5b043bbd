package container

import "github.com/bigcomputing/nws/internal/value"

// unknownType holds no values, only waiters: a variable created implicitly
// (by a reference before its mode is known) starts here. Any store promotes
// the variable to FIFO, at which point internal/variable.Variable transfers
// this type's waiter lists to the new FIFO container before replaying the
// store. Fetch/find on an Unknown variable can only ever park or fail --
// there is nothing to return yet.
type unknownType struct {
	wl waiterList
}

func newUnknown() *unknownType { return &unknownType{} }

func (c *unknownType) Mode() Mode { return ModeUnknown }

// Store always reports consumed=false and a nil error: internal/variable
// treats any Store attempt on an Unknown container as the promotion
// trigger and replays it against the freshly built FIFO container, so this
// method is never actually relied on to store anything.
func (c *unknownType) Store(connID int64, v *value.Value, blocking bool) (bool, *Waiter, error) {
	return false, nil, nil
}

func (c *unknownType) Fetch(connID int64, iter IterState, blocking bool) (*Result, *Waiter, error) {
	if blocking {
		w := NewWaiter(connID, iter)
		c.wl.addFetcher(w)
		return nil, w, nil
	}
	return nil, nil, ErrNoValue
}

func (c *unknownType) Find(connID int64, iter IterState, blocking bool) (*Result, *Waiter, error) {
	if blocking {
		w := NewWaiter(connID, iter)
		c.wl.addFinder(w)
		return nil, w, nil
	}
	return nil, nil, ErrNoValue
}

func (c *unknownType) Purge() {
	c.wl.purge()
}

func (c *unknownType) Len() int { return 0 }

func (c *unknownType) NumFetchers() int { return c.wl.numFetchers() }
func (c *unknownType) NumFinders() int  { return c.wl.numFinders() }

func (c *unknownType) RemoveFetcher(w *Waiter) bool { return c.wl.removeFetcher(w) }
func (c *unknownType) RemoveFinder(w *Waiter) bool  { return c.wl.removeFinder(w) }
