package container

import (
	"strconv"

	"github.com/bigcomputing/nws/internal/value"
	"github.com/bigcomputing/nws/internal/wire"
)

// barrierType is a rendezvous point: store is "join", fetch is "leave", and
// find blocks a member until every other member is also parked in find, at
// which point all of them are released together carrying the member count
// as their value. There is no ordinary value storage here -- membership is
// the state.
type barrierType struct {
	members map[int64]struct{}
	wl      waiterList
}

func newBarrier() *barrierType {
	return &barrierType{members: make(map[int64]struct{})}
}

func (c *barrierType) Mode() Mode { return ModeBarrier }

func countValue(n int64) *value.Value {
	return value.New(0, wire.NewMemPayload([]byte(strconv.FormatInt(n, 10))))
}

func emptyValue() *value.Value {
	return value.New(0, wire.NewMemPayload(nil))
}

// releaseFinders delivers n (as ASCII decimal) to every currently parked
// finder and clears the list.
func (c *barrierType) releaseFinders(n int64) {
	finders := c.wl.finders
	c.wl.finders = nil
	for _, f := range finders {
		f.deliver(Result{Value: countValue(n), Cookie: Cookie{Index: IndexUnset}})
	}
}

func (c *barrierType) Store(connID int64, v *value.Value, blocking bool) (bool, *Waiter, error) {
	if _, ok := c.members[connID]; ok {
		return false, nil, ErrAlreadyMember
	}
	c.members[connID] = struct{}{}
	return false, nil, nil
}

// Fetch is "I leave": remove connID from the member set, and if the
// remaining members are all already accounted for by parked finders,
// release them with the remaining count. Fetch itself never blocks and
// always returns an empty value.
func (c *barrierType) Fetch(connID int64, iter IterState, blocking bool) (*Result, *Waiter, error) {
	delete(c.members, connID)

	remaining := int64(len(c.members))
	if int64(len(c.wl.finders)) >= remaining {
		c.releaseFinders(remaining)
	}

	return &Result{Value: emptyValue(), Cookie: Cookie{Index: IndexUnset}}, nil, nil
}

// Find is "I join the rendezvous": if every other member is already parked
// here, this call is the trigger and everyone (including the caller) is
// released with the member count as value. Otherwise the caller parks.
func (c *barrierType) Find(connID int64, iter IterState, blocking bool) (*Result, *Waiter, error) {
	if _, ok := c.members[connID]; !ok {
		return nil, nil, ErrNotMember
	}

	memberCount := int64(len(c.members))
	if int64(len(c.wl.finders)) == memberCount-1 {
		c.releaseFinders(memberCount)
		return &Result{Value: countValue(memberCount), Cookie: Cookie{Index: IndexUnset}}, nil, nil
	}

	if !blocking {
		return nil, nil, ErrNoValue
	}

	w := NewWaiter(connID, iter)
	c.wl.addFinder(w)
	return nil, w, nil
}

func (c *barrierType) Purge() {
	c.wl.purge()
	c.members = make(map[int64]struct{})
}

func (c *barrierType) Len() int { return len(c.members) }

// NumFetchers is always zero: fetch ("leave") never parks.
func (c *barrierType) NumFetchers() int { return 0 }
func (c *barrierType) NumFinders() int  { return c.wl.numFinders() }

func (c *barrierType) RemoveFetcher(w *Waiter) bool { return false }
func (c *barrierType) RemoveFinder(w *Waiter) bool  { return c.wl.removeFinder(w) }

// adoptWaiters handles promotion from Unknown. Waiters parked there never
// joined the barrier (joining only happens via Store), so none of them are
// members; both lists fail with ErrNotMember rather than being re-parked.
func (c *barrierType) adoptWaiters(fetchers, finders []*Waiter) {
	for _, w := range fetchers {
		w.fail(ErrNotMember)
	}
	for _, w := range finders {
		w.fail(ErrNotMember)
	}
}
