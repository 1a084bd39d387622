package can

import (
	"context"
	"errors"
)

var (
	ErrInvalidZone       = errorDef("can/zone: zone corners are out of order", false)
	ErrNotNeighbours     = errorDef("can/zone: zones are not neighbours and cannot be merged", false)
	ErrUnequalSideLength = errorDef("can/zone: neighbouring zones do not share a side of the same length", false)

	ErrNodeNotFound        = errorDef("can: node is not part of the overlay", false)
	ErrAlreadyBootstrapped = errorDef("can: overlay already has nodes", false)
	ErrNoCaretaker         = errorDef("can: no node caretakes the requested point", false)

	ErrZoneMismatch   = errorDef("can/membership: joining node has a different zone than the existing node", false)
	ErrSelfJoin       = errorDef("can/membership: node cannot join itself", false)
	ErrJoinerHasPeers = errorDef("can/membership: joining node already has peers", false)
	ErrPeerNotFound   = errorDef("can/membership: node is not a peer", false)

	ErrContentNotFound = errorDef("can/content: content is not stored at this node", false)
	ErrPayloadTooLarge = errorDef("can/content: payload exceeds the configured limit", false)
)

// every error defined above is a caller input violation; only context
// deadlines on content store calls may succeed when retried
func ErrorIsRetryable(err error) bool {
	for e, retryable := range retryableMap {
		if retryable && errors.Is(err, e) {
			return true
		}
	}
	return false
}

// ErrorMapper restores the sentinel identity of an error that was flattened
// into a string, for example when read back from the journal or an HTTP body.
func ErrorMapper(err error) error {
	if err == nil {
		return err
	}
	if mapped, ok := errorStrMap[err.Error()]; ok {
		return mapped
	}
	return err
}

var retryableMap map[error]bool = map[error]bool{
	context.DeadlineExceeded: true,
}

var errorStrMap map[string]error = map[string]error{}

func errorDef(str string, retryable bool) error {
	err := errors.New(str)
	retryableMap[err] = retryable
	errorStrMap[str] = err
	return err
}
