package can

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMapper(t *testing.T) {
	as := require.New(t)

	errs := []error{
		ErrInvalidZone,
		ErrNotNeighbours,
		ErrUnequalSideLength,
		ErrNodeNotFound,
		ErrAlreadyBootstrapped,
		ErrNoCaretaker,
		ErrZoneMismatch,
		ErrSelfJoin,
		ErrJoinerHasPeers,
		ErrPeerNotFound,
		ErrContentNotFound,
		ErrPayloadTooLarge,
	}

	for _, e := range errs {
		flattened := errors.New(e.Error())
		as.NotErrorIs(flattened, e)
		as.ErrorIs(ErrorMapper(flattened), e)
		as.False(ErrorIsRetryable(e))
	}

	as.Nil(ErrorMapper(nil))

	unknown := errors.New("something else")
	as.Equal(unknown, ErrorMapper(unknown))
}

func TestErrorIsRetryable(t *testing.T) {
	as := require.New(t)

	as.True(ErrorIsRetryable(context.DeadlineExceeded))
	as.True(ErrorIsRetryable(fmt.Errorf("storing payload: %w", context.DeadlineExceeded)))
	as.False(ErrorIsRetryable(fmt.Errorf("joining: %w", ErrZoneMismatch)))
}
