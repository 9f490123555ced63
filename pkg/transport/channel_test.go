package transport

import (
	"flag"
	"io"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/irfanghat/spark-connect-go/pkg/sparkerrors"
)

func TestClassify(t *testing.T) {
	c := &Channel{cfg: Config{MaxRecvMsgSize: 64 * datasize.MB}}

	t.Run("nil passes through", func(t *testing.T) {
		require.NoError(t, c.classify(nil, nil))
	})

	t.Run("EOF passes through", func(t *testing.T) {
		require.Equal(t, io.EOF, c.classify(io.EOF, nil))
	})

	t.Run("cancellation maps to the sentinel", func(t *testing.T) {
		err := c.classify(status.Error(codes.Canceled, "context canceled"), nil)
		require.ErrorIs(t, err, sparkerrors.ErrCancelled)
	})

	t.Run("oversize message maps to MessageTooLargeError", func(t *testing.T) {
		err := c.classify(status.Error(codes.ResourceExhausted,
			"grpc: received message larger than max (70000000 vs. 67108864)"), nil)
		var merr *sparkerrors.MessageTooLargeError
		require.ErrorAs(t, err, &merr)
		require.Equal(t, uint64(70000000), merr.Size)
		require.Equal(t, uint64(64<<20), merr.Limit)
	})

	t.Run("oversize message with unparsable sizes keeps the configured limit", func(t *testing.T) {
		err := c.classify(status.Error(codes.ResourceExhausted,
			"received message larger than max configured size"), nil)
		var merr *sparkerrors.MessageTooLargeError
		require.ErrorAs(t, err, &merr)
		require.Zero(t, merr.Size)
		require.Equal(t, uint64(64<<20), merr.Limit)
	})

	t.Run("retryability follows the status code", func(t *testing.T) {
		for code, retryable := range map[codes.Code]bool{
			codes.Unavailable:      true,
			codes.Aborted:          true,
			codes.DeadlineExceeded: true,
			codes.Internal:         false,
			codes.InvalidArgument:  false,
			codes.Unauthenticated:  false,
		} {
			err := c.classify(status.Error(code, "boom"), nil)
			var terr *sparkerrors.TransportError
			require.ErrorAs(t, err, &terr, "code %s", code)
			require.Equal(t, code, terr.Code)
			require.Equal(t, retryable, terr.Retryable, "code %s", code)
			require.Equal(t, retryable, sparkerrors.Retryable(err), "code %s", code)
		}
	})

	t.Run("non-status errors are unknown", func(t *testing.T) {
		err := c.classify(io.ErrClosedPipe, nil)
		var terr *sparkerrors.TransportError
		require.ErrorAs(t, err, &terr)
		require.Equal(t, codes.Unknown, terr.Code)
		require.False(t, terr.Retryable)
	})
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	fs := flag.NewFlagSet("test", flag.PanicOnError)
	cfg.RegisterFlags(fs)
	require.NoError(t, fs.Parse(nil))

	require.Equal(t, "localhost:15002", cfg.Addr)
	require.False(t, cfg.UseTLS)
	require.Equal(t, 64*datasize.MB, cfg.MaxRecvMsgSize)
	require.Equal(t, 10*time.Second, cfg.DialTimeout)
	require.Zero(t, cfg.ReadTimeout)
}

func TestConfigFlagOverrides(t *testing.T) {
	var cfg Config
	fs := flag.NewFlagSet("test", flag.PanicOnError)
	cfg.RegisterFlagsWithPrefix("spark.", fs)
	require.NoError(t, fs.Parse([]string{
		"-spark.addr", "spark.example.com:443",
		"-spark.tls-enabled",
		"-spark.bearer-token", "s3cret",
		"-spark.max-recv-msg-size", "128MB",
		"-spark.read-timeout", "30s",
	}))

	require.Equal(t, "spark.example.com:443", cfg.Addr)
	require.True(t, cfg.UseTLS)
	require.Equal(t, "s3cret", cfg.BearerToken.String())
	require.Equal(t, 128*datasize.MB, cfg.MaxRecvMsgSize)
	require.Equal(t, 30*time.Second, cfg.ReadTimeout)
}
