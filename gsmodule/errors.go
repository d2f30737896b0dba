package gsmodule

import "errors"

// ErrCommandFailed reports that the module did not confirm a command. A
// timeout, an unparsable reply and an explicit ERROR are deliberately not
// distinguished.
var ErrCommandFailed = errors.New("gsmodule: command failed")

// Caller contract violations, rejected before any command is sent.
var (
	ErrInvalidProfile = errors.New("gsmodule: profile number must be 0 or 1")
	ErrInvalidCID     = errors.New("gsmodule: invalid connection id")
	ErrInvalidAddress = errors.New("gsmodule: address must be a valid IPv4 address")
	ErrInvalidParam   = errors.New("gsmodule: unknown parameter")
	ErrConnNotOpen    = errors.New("gsmodule: connection is not open")
	ErrCertExists     = errors.New("gsmodule: certificate already exists")
	ErrCertNotFound   = errors.New("gsmodule: certificate not found")
	ErrEmptyCert      = errors.New("gsmodule: certificate is empty")
	ErrNoDataPath     = errors.New("gsmodule: transport has no data path")
	ErrNCMDisabled    = errors.New("gsmodule: network connection manager is disabled")
)

var (
	// ErrTransportNil indicates that NewModule was called without a transport.
	ErrTransportNil = errors.New("gsmodule: transport is nil")

	// ErrInvalidTransition indicates a connection state change that the
	// lifecycle does not allow.
	ErrInvalidTransition = errors.New("gsmodule: invalid state transition")
)
