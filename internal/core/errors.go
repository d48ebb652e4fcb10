package core

import "errors"

// Lifecycle precondition failures. All are raised before any state
// mutation, so a caller seeing one of these knows nothing changed.
var (
	// ErrNetworkDoesNotExist is returned when a dissolve or
	// subnet-scoped command targets an unknown netuid.
	ErrNetworkDoesNotExist = errors.New("network does not exist")

	// ErrInsufficientLock is returned when a registration offers less
	// than the current lock cost, or the registrant cannot pay it.
	ErrInsufficientLock = errors.New("insufficient lock")

	// ErrNetworkLimitReached is returned when the subnet cap is hit and
	// every live subnet is still immune from eviction.
	ErrNetworkLimitReached = errors.New("network limit reached and no eviction candidate")
)
