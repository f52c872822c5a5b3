package cnst

import "errors"

var (
	// ErrNotConnected is returned when an emit reaches a binding that has no live connection
	ErrNotConnected = errors.New("transport not connected")
	// ErrBindingClosed is returned when a binding is used after Close
	ErrBindingClosed = errors.New("transport binding closed")
	// ErrUnsupportedTransport is returned for an unknown transport type
	ErrUnsupportedTransport = errors.New("unsupported transport type")
	// ErrNoTransport is returned when none of the configured transports could be built
	ErrNoTransport = errors.New("no usable transport")
	// ErrEmptyEndpoint is returned when the transport endpoint is not configured
	ErrEmptyEndpoint = errors.New("transport endpoint cannot be empty")
	// ErrEmptyIdentity is returned when authenticating without a user id
	ErrEmptyIdentity = errors.New("user identity cannot be empty")
	// ErrMissingClaim is returned when the credential carries no usable identity claim
	ErrMissingClaim = errors.New("credential has no identity claim")
	// ErrUnknownChannel is returned when decoding a payload for a channel outside the protocol
	ErrUnknownChannel = errors.New("unknown channel")
)
