// Package container implements the NWS variable containers: FIFO, LIFO,
// Single, Barrier, Constant, Time, and Unknown. Each holds its own values
// and two waiter queues (fetchers, finders); store/fetch/find either
// complete synchronously or return a Waiter the caller parks on.
//
// The waiter-list delivery rule is modeled on miniplumber's Pipe/Reader
// pair: a named holder of channel-bearing readers, released either to one
// winner (fetchers, FIFO order) or broadcast to everyone currently waiting
// (finders), with the finder list reset after every delivery.
package container

import "github.com/bigcomputing/nws/internal/value"

// IndexUnset marks a Cookie whose index the container declined to choose,
// leaving substitution to the caller (internal/workspace), per spec §4.C.
const IndexUnset = -1

// Cookie carries the index half of the (vid, index) pair echoed back on
// long replies; internal/registry pairs it with the owning Variable's vid.
type Cookie struct {
	Index int64
}

// IterState is the client-supplied iterator position for an ifetch/ifind
// call: the cookie echoed from a previous reply.
type IterState struct {
	Has   bool
	Index int64
}

// Result is the outcome of a completed (non-parked) fetch or find.
type Result struct {
	Value  *value.Value
	Cookie Cookie
}

// Waiter is a connection parked on a container's fetcher or finder list. It
// is enqueued in exactly one place and dequeued from exactly one place:
// either a later store's delivery, a purge, or disconnect-driven eviction.
type Waiter struct {
	ConnID int64
	Iter   IterState

	ready chan waiterOutcome
}

type waiterOutcome struct {
	result Result
	err    error
}

// NewWaiter creates a parked waiter for connection id with iterator state
// iter. Callers block on Wait() after parking.
func NewWaiter(connID int64, iter IterState) *Waiter {
	return &Waiter{ConnID: connID, Iter: iter, ready: make(chan waiterOutcome, 1)}
}

// Wait blocks until the waiter is released by a store or a purge. A waiter
// evicted by disconnect handling (RemoveFetcher/RemoveFinder) is never
// released.
func (w *Waiter) Wait() (Result, error) {
	o := <-w.ready
	return o.result, o.err
}

func (w *Waiter) deliver(r Result) {
	select {
	case w.ready <- waiterOutcome{result: r}:
	default:
	}
}

func (w *Waiter) fail(err error) {
	select {
	case w.ready <- waiterOutcome{err: err}:
	default:
	}
}

// waiterList is the fetchers/finders pair shared by FIFO, LIFO, Single,
// Unknown, and Barrier containers (Barrier parks only finders in it and
// releases them against its member set; Constant and Time never park
// anyone).
type waiterList struct {
	fetchers []*Waiter
	finders  []*Waiter
}

func (wl *waiterList) addFetcher(w *Waiter) {
	wl.fetchers = append(wl.fetchers, w)
}

func (wl *waiterList) addFinder(w *Waiter) {
	wl.finders = append(wl.finders, w)
}

// removeFetcher evicts a parked fetcher (disconnect handling). Reports
// whether it was found.
func (wl *waiterList) removeFetcher(w *Waiter) bool {
	for i, f := range wl.fetchers {
		if f == w {
			wl.fetchers = append(wl.fetchers[:i], wl.fetchers[i+1:]...)
			return true
		}
	}
	return false
}

func (wl *waiterList) removeFinder(w *Waiter) bool {
	for i, f := range wl.finders {
		if f == w {
			wl.finders = append(wl.finders[:i], wl.finders[i+1:]...)
			return true
		}
	}
	return false
}

// newValue implements the common store-delivery rule: every currently
// parked finder receives v (and the finder list is cleared), then the
// first parked fetcher in insertion order receives v and is dequeued.
// Reports whether a fetcher consumed v.
func (wl *waiterList) newValue(v *value.Value, index int64) bool {
	finders := wl.finders
	wl.finders = nil

	var fetcher *Waiter
	if len(wl.fetchers) > 0 {
		fetcher = wl.fetchers[0]
		wl.fetchers = wl.fetchers[1:]
	}

	cookie := Cookie{Index: index}
	for _, f := range finders {
		f.deliver(Result{Value: v, Cookie: cookie})
	}

	if fetcher != nil {
		v.Consume()
		fetcher.deliver(Result{Value: v, Cookie: cookie})
		return true
	}
	return false
}

// purge fails every parked waiter with ErrPurged and clears both lists.
func (wl *waiterList) purge() {
	for _, w := range wl.fetchers {
		w.fail(ErrPurged)
	}
	for _, w := range wl.finders {
		w.fail(ErrPurged)
	}
	wl.fetchers = nil
	wl.finders = nil
}

func (wl *waiterList) numFetchers() int { return len(wl.fetchers) }
func (wl *waiterList) numFinders() int  { return len(wl.finders) }
