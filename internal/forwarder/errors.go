package forwarder

import "errors"

// Per-connection failures. Handle wraps one of these so callers can tell them
// apart with errors.Is; none of them ever reaches the client as data.
var (
	ErrShortRequest   = errors.New("short request")
	ErrBackendConnect = errors.New("backend connect failed")
	ErrBackendIO      = errors.New("backend i/o failed")
	ErrClientIO       = errors.New("client i/o failed")
)
