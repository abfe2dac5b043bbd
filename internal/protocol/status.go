package protocol

import (
	"errors"

	"github.com/bigcomputing/nws/internal/container"
	"github.com/bigcomputing/nws/internal/registry"
	"github.com/bigcomputing/nws/internal/variable"
	"github.com/bigcomputing/nws/internal/workspace"
)

// Wire status codes, per spec §6: 0000 success, 0100 no such workspace,
// 2001 workspace not opened by this client, 2000 internal error, otherwise
// 0001 for generic user errors.
const (
	statusOK              = 0
	statusGenericError    = 1
	statusNoSuchWorkspace = 100
	statusInternalError   = 2000
	statusNotOpened       = 2001
)

// statusFor maps an internal sentinel error to the wire status code and
// the reason string carried in the nwsReason metadata entry. This is the
// single place (spec §7) that turns an error value into wire presentation;
// everything below internal/protocol stays error-oriented.
func statusFor(err error) (int, string) {
	switch {
	case err == nil:
		return statusOK, ""
	case errors.Is(err, registry.ErrWorkspaceNotOpened):
		return statusNotOpened, "Workspace has not been opened."
	case errors.Is(err, registry.ErrNoSuchWorkspace):
		return statusNoSuchWorkspace, "No such workspace."
	case errors.Is(err, registry.ErrWorkspaceNotFound):
		return statusGenericError, "Workspace does not exist."
	case errors.Is(err, registry.ErrUnknownVerb):
		return statusGenericError, "Unknown verb."
	case errors.Is(err, registry.ErrBadMktempTemplate):
		return statusGenericError, "Bad mktemp template."
	case errors.Is(err, registry.ErrMktempExhausted):
		return statusGenericError, "Failed to generate a unique workspace name."
	case errors.Is(err, workspace.ErrNoSuchVariable):
		return statusGenericError, "No such variable."
	case errors.Is(err, workspace.ErrVIDMismatch):
		return statusGenericError, "Variable id mismatch."
	case errors.Is(err, variable.ErrModeImmutable):
		return statusGenericError, "Cannot change variable mode once set."
	case errors.Is(err, variable.ErrUnknownMode):
		return statusGenericError, "Unknown variable mode."
	case errors.Is(err, variable.ErrVIDExhausted):
		return statusInternalError, "Failed to allocate a variable id."
	case errors.Is(err, container.ErrNoValue):
		return statusGenericError, "No value available."
	case errors.Is(err, container.ErrStoreUnsupported):
		return statusGenericError, "Store is not supported for this variable."
	case errors.Is(err, container.ErrIteratedUnsupported):
		return statusGenericError, "Iterated fetch/find is not supported on this container."
	case errors.Is(err, container.ErrNotMember):
		return statusGenericError, "Client has not joined this barrier."
	case errors.Is(err, container.ErrAlreadyMember):
		return statusGenericError, "Client has already joined this barrier."
	case errors.Is(err, container.ErrPurged):
		return statusGenericError, "Variable purged."
	case errors.Is(err, errEmptyCommand), errors.Is(err, errBadArgument):
		return statusGenericError, err.Error()
	default:
		return statusInternalError, "Internal error: " + err.Error()
	}
}
