package registry

import "errors"

var (
	// ErrWorkspaceNotOpened is returned when a client refers to a
	// workspace name it has never opened or used in this connection
	// (spec §4.F's client view map lookup; status 2001 on the wire).
	ErrWorkspaceNotOpened = errors.New("workspace has not been opened")

	// ErrNoSuchWorkspace is returned when a client's view points at an
	// internal name that no longer has a live workspace behind it --
	// typically because another client deleted it (status 0100).
	ErrNoSuchWorkspace = errors.New("no such workspace")

	// ErrWorkspaceNotFound is returned by DeleteWorkspace when ext_name
	// was never registered at all (a generic user error, status 0001).
	ErrWorkspaceNotFound = errors.New("workspace does not exist")

	// ErrUnknownVerb is returned by Get for an operation name outside
	// the fetch/find family table.
	ErrUnknownVerb = errors.New("unknown verb")

	// ErrBadMktempTemplate is returned when a mktemp ws template does
	// not contain exactly one %d-style verb.
	ErrBadMktempTemplate = errors.New("bad mktemp template")

	// ErrMktempExhausted is returned when 1000 candidate names all
	// collided with an existing workspace.
	ErrMktempExhausted = errors.New("failed to generate a unique workspace name")
)
