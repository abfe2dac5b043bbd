// Package variable implements the NWS Variable: a (name, mode, vid)
// wrapper bound to one container.Container. Mode starts Unknown and can
// move to exactly one concrete mode; vid is assigned once at creation and
// never changes.
package variable

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bigcomputing/nws/internal/container"
	"github.com/bigcomputing/nws/internal/value"
)

var (
	// ErrModeImmutable is returned by SetMode when the variable's mode has
	// already been set to something other than the requested mode.
	ErrModeImmutable = errors.New("variable mode cannot be changed once set")

	// ErrUnknownMode is returned by SetMode for an unrecognized mode name.
	ErrUnknownMode = errors.New("unknown variable mode")

	// ErrVIDExhausted is returned when 1000 random vid candidates all
	// collided with an existing variable in the same workspace.
	ErrVIDExhausted = errors.New("nws: exhausted vid candidates")
)

// maxVIDAttempts bounds the collision-retry loop for vid generation (spec
// §4.D).
const maxVIDAttempts = 1000

// vidSpace caps the uniformly-sampled candidate range, 0..10^9-1.
const vidSpace = 1_000_000_000

// GenerateVID samples a 20-digit zero-padded decimal vid, retrying up to
// 1000 times against taken (which reports whether a candidate is already in
// use within the target workspace). Returns ErrVIDExhausted if every
// attempt collided.
func GenerateVID(taken func(string) bool) (string, error) {
	for i := 0; i < maxVIDAttempts; i++ {
		candidate := fmt.Sprintf("%020d", randomUint32()%vidSpace)
		if !taken(candidate) {
			return candidate, nil
		}
	}
	return "", ErrVIDExhausted
}

// randomUint32 draws entropy from a fresh random UUID rather than seeding a
// bare math/rand source, matching the pack's general preference for a
// dedicated ID library over ad hoc time-based seeding.
func randomUint32() uint32 {
	u := uuid.New()
	return binary.BigEndian.Uint32(u[:4])
}

// Variable is a named slot in a workspace: a stable vid, a mode that may be
// set exactly once away from Unknown, and the container that currently
// backs it.
type Variable struct {
	Name string
	VID  string

	// declaredMode preserves the exact string the client used to declare
	// this variable ("multi" vs "lifo"), so Mode() round-trips faithfully
	// even though both construct the same LIFO container (spec's Open
	// Question on mode=multi).
	declaredMode string

	mode container.Mode
	c    container.Container
}

// New constructs a variable in Unknown mode with the given vid.
func New(name, vid string) *Variable {
	return &Variable{
		Name: name,
		VID:  vid,
		mode: container.ModeUnknown,
		c:    container.New(container.ModeUnknown),
	}
}

// Mode reports the mode name as the client would recognize it -- the
// declared string if one was set (preserving "multi"), else the
// container's own name.
func (v *Variable) Mode() string {
	if v.declaredMode != "" {
		return v.declaredMode
	}
	return v.mode.String()
}

// ModeKind reports the resolved container.Mode.
func (v *Variable) ModeKind() container.Mode { return v.mode }

// SetMode declares modeName for this variable. Declaring the mode the
// variable is already in is a no-op; declaring a different mode once one
// has been set is ErrModeImmutable. Declaring "unknown" is always a no-op.
func (v *Variable) SetMode(modeName string) error {
	mode, ok := container.ParseMode(modeName)
	if !ok {
		return ErrUnknownMode
	}
	if mode == container.ModeUnknown {
		return nil
	}

	if v.mode != container.ModeUnknown {
		if mode != v.mode {
			return ErrModeImmutable
		}
		return nil
	}

	v.c = container.Promote(v.c, mode)
	v.mode = mode
	v.declaredMode = modeName
	return nil
}

// promoteFromStore implements "any store on an Unknown variable promotes it
// to FIFO", independent of an explicit declare var.
func (v *Variable) promoteFromStore() {
	if v.mode != container.ModeUnknown {
		return
	}
	v.c = container.Promote(v.c, container.ModeFIFO)
	v.mode = container.ModeFIFO
	v.declaredMode = "fifo"
}

// Store, Fetch, Find, Purge, and the waiter-count/removal accessors mirror
// container.Container, with Store additionally implementing Unknown's
// promote-on-first-store rule.
func (v *Variable) Store(connID int64, val *value.Value, blocking bool) (bool, *container.Waiter, error) {
	v.promoteFromStore()
	return v.c.Store(connID, val, blocking)
}

func (v *Variable) Fetch(connID int64, iter container.IterState, blocking bool) (*container.Result, *container.Waiter, error) {
	return v.c.Fetch(connID, iter, blocking)
}

func (v *Variable) Find(connID int64, iter container.IterState, blocking bool) (*container.Result, *container.Waiter, error) {
	return v.c.Find(connID, iter, blocking)
}

func (v *Variable) Purge() { v.c.Purge() }

func (v *Variable) Len() int         { return v.c.Len() }
func (v *Variable) NumFetchers() int { return v.c.NumFetchers() }
func (v *Variable) NumFinders() int  { return v.c.NumFinders() }

func (v *Variable) RemoveFetcher(w *container.Waiter) bool { return v.c.RemoveFetcher(w) }
func (v *Variable) RemoveFinder(w *container.Waiter) bool  { return v.c.RemoveFinder(w) }
