// Package transport manages the connection to the execution service.
//
// A [Channel] owns one logical gRPC connection. It attaches session and auth
// metadata to every call, enforces the inbound message size limit, and wraps
// connection-level failures as [sparkerrors.TransportError] so the execution
// engine can classify retryability. Protocol-level rejections travel in-band
// in the response messages and are not the channel's concern.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"google.golang.org/grpc"
	grpcbackoff "google.golang.org/grpc/backoff"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/irfanghat/spark-connect-go/pkg/sparkerrors"
	"github.com/irfanghat/spark-connect-go/pkg/wire"
)

// Metadata keys attached to every call.
const (
	headerSessionID = "x-spark-session-id"
	headerAuth      = "authorization"
)

// userAgent identifies this client on every call.
const userAgent = "spark-connect-go"

// ResponseStream is one execution response stream. Responses for a single
// operation are always delivered in arrival order. Close releases the
// stream's resources; it is safe to call more than once.
type ResponseStream interface {
	Recv() (*wire.ExecutePlanResponse, error)
	Close()
}

// Streamer is the transport surface the execution engine and schema resolver
// depend on. *Channel implements it; tests substitute fakes.
type Streamer interface {
	ExecutePlan(ctx context.Context, req *wire.ExecutePlanRequest) (ResponseStream, error)
	ReattachExecute(ctx context.Context, req *wire.ReattachExecuteRequest) (ResponseStream, error)
	ReleaseExecute(ctx context.Context, req *wire.ReleaseExecuteRequest) error
	AnalyzePlan(ctx context.Context, req *wire.AnalyzePlanRequest) (*wire.AnalyzePlanResponse, error)
	Config(ctx context.Context, req *wire.ConfigRequest) (*wire.ConfigResponse, error)
	Interrupt(ctx context.Context, req *wire.InterruptRequest) (*wire.InterruptResponse, error)
}

// Channel is a managed connection to the execution service.
type Channel struct {
	cfg    Config
	conn   *grpc.ClientConn
	logger log.Logger
}

var _ Streamer = (*Channel)(nil)

// Dial creates a channel to the configured address. The connection is
// established lazily; connect failures surface on the first call. Extra dial
// options are appended after the configured ones.
func Dial(cfg Config, logger log.Logger, opts ...grpc.DialOption) (*Channel, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	creds := insecure.NewCredentials()
	if cfg.UseTLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithUserAgent(userAgent),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(int(cfg.MaxRecvMsgSize.Bytes()))),
	}
	if cfg.DialTimeout > 0 {
		dialOpts = append(dialOpts, grpc.WithConnectParams(grpc.ConnectParams{
			Backoff:           grpcbackoff.DefaultConfig,
			MinConnectTimeout: cfg.DialTimeout,
		}))
	}
	dialOpts = append(dialOpts, opts...)
	conn, err := grpc.NewClient(cfg.Addr, dialOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating client connection")
	}
	return &Channel{cfg: cfg, conn: conn, logger: logger}, nil
}

// Close tears down the connection.
func (c *Channel) Close() error {
	return c.conn.Close()
}

// withMetadata attaches the session and auth headers to the outgoing
// context.
func (c *Channel) withMetadata(ctx context.Context, sessionID string) context.Context {
	md := metadata.Pairs(headerSessionID, sessionID)
	if token := c.cfg.BearerToken.String(); token != "" {
		md.Set(headerAuth, "Bearer "+token)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

// ExecutePlan opens the execution response stream for req.
func (c *Channel) ExecutePlan(ctx context.Context, req *wire.ExecutePlanRequest) (ResponseStream, error) {
	return c.openStream(ctx, wire.ExecutePlanStreamDesc, wire.MethodExecutePlan, req.SessionID, req.ToProto())
}

// ReattachExecute reopens the execution response stream for an interrupted
// operation, resuming after the request's cursor.
func (c *Channel) ReattachExecute(ctx context.Context, req *wire.ReattachExecuteRequest) (ResponseStream, error) {
	return c.openStream(ctx, wire.ReattachExecuteStreamDesc, wire.MethodReattachExecute, req.SessionID, req.ToProto())
}

// openStream issues one server-streaming call without a generated stub: the
// method is addressed by its full name and a stream descriptor, and the
// request travels as a structpb envelope.
func (c *Channel) openStream(ctx context.Context, desc *grpc.StreamDesc, method, sessionID string, msg *structpb.Struct) (ResponseStream, error) {
	ctx = c.withMetadata(ctx, sessionID)
	ctx, cancel := context.WithCancel(ctx)

	cs, err := c.conn.NewStream(ctx, desc, method)
	if err != nil {
		cancel()
		return nil, c.classify(err, nil)
	}
	stream := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: cs}
	if err := stream.Send(msg); err != nil {
		cancel()
		return nil, c.classify(err, nil)
	}
	if err := stream.CloseSend(); err != nil {
		cancel()
		return nil, c.classify(err, nil)
	}
	level.Debug(c.logger).Log("msg", "opened response stream", "method", method)
	return &responseStream{
		channel:     c,
		stream:      stream,
		cancel:      cancel,
		readTimeout: c.cfg.ReadTimeout,
	}, nil
}

type responseStream struct {
	channel     *Channel
	stream      *grpc.GenericClientStream[structpb.Struct, structpb.Struct]
	cancel      context.CancelFunc
	readTimeout time.Duration
	timedOut    atomic.Bool
}

func (s *responseStream) Recv() (*wire.ExecutePlanResponse, error) {
	if s.readTimeout > 0 {
		timer := time.AfterFunc(s.readTimeout, func() {
			s.timedOut.Store(true)
			s.cancel()
		})
		defer timer.Stop()
	}
	msg, err := s.stream.Recv()
	if err != nil {
		if s.timedOut.Load() {
			return nil, &sparkerrors.TransportError{
				Code:      codes.DeadlineExceeded,
				Retryable: true,
				Err:       errors.New("response read timed out"),
			}
		}
		return nil, s.channel.classify(err, s)
	}
	resp, err := wire.ExecutePlanResponseFromProto(msg)
	if err != nil {
		return nil, &sparkerrors.TransportError{Code: codes.Internal, Err: err}
	}
	return resp, nil
}

func (s *responseStream) Close() {
	s.cancel()
}

// invoke issues one unary call.
func (c *Channel) invoke(ctx context.Context, method, sessionID string, in *structpb.Struct) (*structpb.Struct, error) {
	ctx = c.withMetadata(ctx, sessionID)
	if c.cfg.ReadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ReadTimeout)
		defer cancel()
	}
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return nil, c.classify(err, nil)
	}
	return out, nil
}

// ReleaseExecute lets the server free delivered responses.
func (c *Channel) ReleaseExecute(ctx context.Context, req *wire.ReleaseExecuteRequest) error {
	_, err := c.invoke(ctx, wire.MethodReleaseExecute, req.SessionID, req.ToProto())
	return err
}

// AnalyzePlan issues one analysis request.
func (c *Channel) AnalyzePlan(ctx context.Context, req *wire.AnalyzePlanRequest) (*wire.AnalyzePlanResponse, error) {
	out, err := c.invoke(ctx, wire.MethodAnalyzePlan, req.SessionID, req.ToProto())
	if err != nil {
		return nil, err
	}
	resp, err := wire.AnalyzePlanResponseFromProto(out)
	if err != nil {
		return nil, &sparkerrors.TransportError{Code: codes.Internal, Err: err}
	}
	return resp, nil
}

// Config issues one session config request.
func (c *Channel) Config(ctx context.Context, req *wire.ConfigRequest) (*wire.ConfigResponse, error) {
	out, err := c.invoke(ctx, wire.MethodConfig, req.SessionID, req.ToProto())
	if err != nil {
		return nil, err
	}
	return wire.ConfigResponseFromProto(out), nil
}

// Interrupt cancels running operations on the service.
func (c *Channel) Interrupt(ctx context.Context, req *wire.InterruptRequest) (*wire.InterruptResponse, error) {
	out, err := c.invoke(ctx, wire.MethodInterrupt, req.SessionID, req.ToProto())
	if err != nil {
		return nil, err
	}
	return wire.InterruptResponseFromProto(out), nil
}

// parseMsgSizes extracts the sizes from grpc-go's oversize status message,
// which reads "grpc: received message larger than max (<size> vs. <limit>)".
// The wording carries no compatibility promise; on a parse failure both
// sizes stay zero and the caller falls back to the configured limit.
func parseMsgSizes(msg string) (size, limit uint64) {
	i := strings.Index(msg, "(")
	if i < 0 {
		return 0, 0
	}
	if _, err := fmt.Sscanf(msg[i:], "(%d vs. %d)", &size, &limit); err != nil {
		return 0, 0
	}
	return size, limit
}

// classify wraps a gRPC failure into the client error taxonomy. io.EOF
// passes through untouched: it marks normal end of stream, not a failure.
func (c *Channel) classify(err error, _ *responseStream) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	st, ok := status.FromError(err)
	if !ok {
		return &sparkerrors.TransportError{Code: codes.Unknown, Err: err}
	}
	switch {
	case st.Code() == codes.Canceled:
		return sparkerrors.ErrCancelled
	case st.Code() == codes.ResourceExhausted && strings.Contains(st.Message(), "larger than max"):
		size, limit := parseMsgSizes(st.Message())
		if limit == 0 {
			limit = c.cfg.MaxRecvMsgSize.Bytes()
		}
		return &sparkerrors.MessageTooLargeError{Size: size, Limit: limit}
	default:
		return &sparkerrors.TransportError{
			Code:      st.Code(),
			Retryable: sparkerrors.RetryableCode(st.Code()),
			Err:       err,
		}
	}
}
