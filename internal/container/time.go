package container

import (
	"time"

	"github.com/bigcomputing/nws/internal/value"
	"github.com/bigcomputing/nws/internal/wire"
)

// timeAsctime mirrors Python's time.asctime() format used by the original
// NWS __time variable: "Mon Jan  2 15:04:05 2006" (note the space-padded
// day-of-month).
const timeAsctime = "Mon Jan _2 15:04:05 2006"

// timeType is a read-only variable whose fetch/find always returns the
// current wall-clock time, freshly formatted on every call.
type timeType struct{}

func newTime() *timeType { return &timeType{} }

func (c *timeType) Mode() Mode { return ModeTime }

func (c *timeType) Store(connID int64, v *value.Value, blocking bool) (bool, *Waiter, error) {
	return false, nil, ErrStoreUnsupported
}

func now() *value.Value {
	return value.New(0, wire.NewMemPayload([]byte(time.Now().Format(timeAsctime))))
}

func (c *timeType) Fetch(connID int64, iter IterState, blocking bool) (*Result, *Waiter, error) {
	return &Result{Value: now(), Cookie: Cookie{Index: IndexUnset}}, nil, nil
}

func (c *timeType) Find(connID int64, iter IterState, blocking bool) (*Result, *Waiter, error) {
	return c.Fetch(connID, iter, blocking)
}

func (c *timeType) Purge() {}

func (c *timeType) Len() int { return 1 }

func (c *timeType) NumFetchers() int { return 0 }
func (c *timeType) NumFinders() int  { return 0 }

func (c *timeType) RemoveFetcher(w *Waiter) bool { return false }
func (c *timeType) RemoveFinder(w *Waiter) bool  { return false }

// adoptWaiters handles promotion from Unknown: Time never blocks, so
// waiters parked before the mode was known are resolved immediately
// instead of being re-parked.
func (c *timeType) adoptWaiters(fetchers, finders []*Waiter) {
	for _, w := range fetchers {
		w.deliver(Result{Value: now(), Cookie: Cookie{Index: IndexUnset}})
	}
	for _, w := range finders {
		w.deliver(Result{Value: now(), Cookie: Cookie{Index: IndexUnset}})
	}
}
