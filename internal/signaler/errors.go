package signaler

import "errors"

var (
	// ErrResolve wraps destination address resolution failures.
	ErrResolve = errors.New("signaler: address resolution failed")
	// ErrTransport wraps socket allocation and send failures.
	ErrTransport = errors.New("signaler: transport failed")
	// ErrDiscoveryTimeout is returned when the rendezvous server does not
	// answer a GetInfo probe within the read deadline.
	ErrDiscoveryTimeout = errors.New("signaler: discovery timed out")
)
