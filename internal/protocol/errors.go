package protocol

import "errors"

// errEmptyCommand and errBadArgument are protocol-layer faults: malformed
// framing the registry never sees, so they have no sentinel of their own
// there.
var (
	errEmptyCommand = errors.New("received an empty argument list")
	errBadArgument  = errors.New("malformed command argument")
)
