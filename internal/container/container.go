package container

import (
	"errors"

	"github.com/bigcomputing/nws/internal/value"
)

// Mode names a variable's concrete container shape. Once set from Unknown
// it never changes (internal/variable enforces the transition rule).
type Mode int

const (
	ModeUnknown Mode = iota
	ModeFIFO
	ModeLIFO
	ModeSingle
	ModeBarrier
	ModeConstant
	ModeTime
	ModeCustom
)

func (m Mode) String() string {
	switch m {
	case ModeUnknown:
		return "unknown"
	case ModeFIFO:
		return "fifo"
	case ModeLIFO:
		return "lifo"
	case ModeSingle:
		return "single"
	case ModeBarrier:
		return "__barrier"
	case ModeConstant:
		return "__constant"
	case ModeTime:
		return "__time"
	case ModeCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// ParseMode maps a client-supplied "declare var" mode string to a Mode.
// "multi" is kept as a pure alias for lifo (see spec's Open Question on
// mode=multi). This mirrors stdvars.py's CONTAINER_TYPES dispatch table
// exactly: __constant and custom are not in it (KeyError -> "illegal mode
// specified"), so neither is declare-reachable here either -- ModeConstant
// and ModeCustom exist only for server-internal/future use (see
// constant.go) and are never returned by ParseMode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "unknown", "":
		return ModeUnknown, true
	case "fifo":
		return ModeFIFO, true
	case "lifo", "multi":
		return ModeLIFO, true
	case "single":
		return ModeSingle, true
	case "__barrier":
		return ModeBarrier, true
	case "__time":
		return ModeTime, true
	}
	return ModeUnknown, false
}

var (
	// ErrPurged is delivered to every parked waiter when their container
	// or workspace is purged.
	ErrPurged = errors.New("Variable purged.")

	// ErrNoValue is returned by a non-blocking fetch/find against an
	// empty container.
	ErrNoValue = errors.New("no value available")

	// ErrStoreUnsupported is returned by Constant/Time containers on store.
	ErrStoreUnsupported = errors.New("store is not supported")

	// ErrIteratedUnsupported is returned by LIFO fetch/find whenever the
	// call carries an iterator position (an ifetch*/ifind* sent with a vid).
	ErrIteratedUnsupported = errors.New("ifetch* not supported on LIFO")

	// ErrNotMember is returned by Barrier find from a session that never
	// stored (joined) into it; Barrier fetch does not return it.
	ErrNotMember = errors.New("session is not a member of this barrier")

	// ErrAlreadyMember is returned by Barrier store (join) from a session
	// already counted as a member.
	ErrAlreadyMember = errors.New("session already joined this barrier")
)

// Container is the shared operations interface for the tagged-union
// variable storage types (FIFO | LIFO | Single | Barrier | Constant | Time
// | Unknown | Custom). Implementations do no locking of their own and are
// not safe for concurrent use; every call is serialized through the
// registry's single logical turn (see internal/registry).
type Container interface {
	Mode() Mode

	// Store attempts to store v. consumed reports whether v was handed
	// directly to a waiting fetcher instead of being retained. No
	// container's store blocks: blocking is accepted for a uniform
	// signature and ignored, and the returned waiter is always nil.
	Store(connID int64, v *value.Value, blocking bool) (consumed bool, waiter *Waiter, err error)

	// Fetch removes and returns a value (or parks connID as a fetcher).
	// iter carries the client's requested iterator position for ifetch*
	// calls; iter.Has is false for plain fetch/fetchTry.
	Fetch(connID int64, iter IterState, blocking bool) (res *Result, waiter *Waiter, err error)

	// Find returns a value without removing it (or parks connID as a
	// finder).
	Find(connID int64, iter IterState, blocking bool) (res *Result, waiter *Waiter, err error)

	// Purge releases every parked waiter with ErrPurged and discards all
	// stored values (closing any backing files).
	Purge()

	// RemoveFetcher and RemoveFinder evict a parked waiter without
	// releasing it, used when its connection disconnects. They report
	// whether the waiter was found.
	RemoveFetcher(w *Waiter) bool
	RemoveFinder(w *Waiter) bool

	// Len reports the number of values currently held.
	Len() int

	NumFetchers() int
	NumFinders() int
}

// New constructs a fresh container for mode. ModeCustom is not constructible
// here -- the plugin-container loader that would supply one is out of
// scope (spec §1); callers never pass ModeCustom to New.
func New(mode Mode) Container {
	switch mode {
	case ModeFIFO:
		return newFIFO()
	case ModeLIFO:
		return newLIFO()
	case ModeSingle:
		return newSingle()
	case ModeBarrier:
		return newBarrier()
	case ModeConstant:
		return newConstant(nil)
	case ModeTime:
		return newTime()
	default:
		return newUnknown()
	}
}

// waiterAdopter is implemented by every concrete container type so that
// Promote can hand over waiters parked before a variable's mode was known.
type waiterAdopter interface {
	adoptWaiters(fetchers, finders []*Waiter)
}

// Promote builds a fresh container for newMode and, if old was an Unknown
// container, transfers its parked fetchers and finders onto it -- per
// spec §4.D, waiters parked before the mode was known must be served after
// promotion, not dropped. Promoting away from any mode other than Unknown
// is a caller error (mode transitions are checked by internal/variable
// before Promote is ever called).
func Promote(old Container, newMode Mode) Container {
	nc := New(newMode)

	u, ok := old.(*unknownType)
	if !ok {
		return nc
	}

	if a, ok := nc.(waiterAdopter); ok {
		a.adoptWaiters(u.wl.fetchers, u.wl.finders)
	}
	return nc
}
