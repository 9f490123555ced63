package sparkerrors_test

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/irfanghat/spark-connect-go/pkg/sparkerrors"
)

func TestRetryable(t *testing.T) {
	for _, tt := range []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "retryable transport error",
			err:  &sparkerrors.TransportError{Code: codes.Unavailable, Retryable: true, Err: io.ErrUnexpectedEOF},
			want: true,
		},
		{
			name: "non-retryable transport error",
			err:  &sparkerrors.TransportError{Code: codes.Internal, Err: io.ErrUnexpectedEOF},
			want: false,
		},
		{
			name: "wrapped retryable transport error",
			err: errors.Wrap(&sparkerrors.TransportError{
				Code: codes.Aborted, Retryable: true, Err: io.ErrUnexpectedEOF,
			}, "receiving response"),
			want: true,
		},
		{
			name: "analysis error",
			err:  &sparkerrors.AnalysisError{Message: "cannot resolve column"},
			want: false,
		},
		{
			name: "execution error",
			err:  &sparkerrors.ExecutionError{Message: "task failed"},
			want: false,
		},
		{
			name: "malformed plan",
			err:  sparkerrors.Malformed("join", "missing condition"),
			want: false,
		},
		{
			name: "cancellation sentinel",
			err:  sparkerrors.ErrCancelled,
			want: false,
		},
		{
			name: "message too large",
			err:  &sparkerrors.MessageTooLargeError{Size: 128 << 20, Limit: 64 << 20},
			want: false,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, sparkerrors.Retryable(tt.err))
		})
	}
}

func TestRetryableCode(t *testing.T) {
	require.True(t, sparkerrors.RetryableCode(codes.Unavailable))
	require.True(t, sparkerrors.RetryableCode(codes.Aborted))
	require.True(t, sparkerrors.RetryableCode(codes.DeadlineExceeded))

	require.False(t, sparkerrors.RetryableCode(codes.Internal))
	require.False(t, sparkerrors.RetryableCode(codes.InvalidArgument))
	require.False(t, sparkerrors.RetryableCode(codes.Canceled))
	require.False(t, sparkerrors.RetryableCode(codes.ResourceExhausted))
}

func TestTransportErrorUnwraps(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := &sparkerrors.TransportError{Code: codes.Unavailable, Retryable: true, Err: cause}
	require.ErrorIs(t, err, cause)
}
