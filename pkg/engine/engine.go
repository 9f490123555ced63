// Package engine drives execution runs against the remote service.
//
// One [Engine] serves one session. Each submitted plan becomes a run with its
// own operation id, its own gRPC stream and its own state machine; streams are
// never multiplexed across runs, while any number of runs may share the
// session and channel. Responses for a run are consumed strictly in arrival
// order.
//
// A run survives stream loss: the engine reattaches with the last
// acknowledged response id under a bounded backoff, and the server resumes
// after that cursor without redelivery. In-band server errors are terminal
// and never retried.
package engine

import (
	"context"
	"flag"
	"io"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/backoff"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/irfanghat/spark-connect-go/pkg/codec"
	"github.com/irfanghat/spark-connect-go/pkg/plan"
	"github.com/irfanghat/spark-connect-go/pkg/session"
	"github.com/irfanghat/spark-connect-go/pkg/sparkerrors"
	"github.com/irfanghat/spark-connect-go/pkg/transport"
	"github.com/irfanghat/spark-connect-go/pkg/wire"
)

// Config configures the execution engine.
type Config struct {
	// Backoff bounds stream open and reattach attempts after retryable
	// transport failures.
	Backoff backoff.Config
}

// RegisterFlags registers engine flags with the default prefix.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix("engine.", f)
}

// RegisterFlagsWithPrefix registers engine flags with a custom prefix.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	cfg.Backoff.RegisterFlagsWithPrefix(prefix+"backoff.", f)
}

// Engine submits plans for execution and manages their runs.
type Engine struct {
	streamer transport.Streamer
	sess     *session.Session
	cfg      Config
	local    LocalExecutor
	logger   log.Logger
	metrics  *metrics

	mu   sync.Mutex
	runs map[string]*run
}

// New creates an engine over the given transport and session. Zero backoff
// fields get conservative defaults so a misconfigured engine still gives up.
func New(streamer transport.Streamer, sess *session.Session, cfg Config, logger log.Logger, reg prometheus.Registerer) *Engine {
	if cfg.Backoff.MinBackoff == 0 {
		cfg.Backoff.MinBackoff = 100 * time.Millisecond
	}
	if cfg.Backoff.MaxBackoff == 0 {
		cfg.Backoff.MaxBackoff = 10 * time.Second
	}
	if cfg.Backoff.MaxRetries == 0 {
		cfg.Backoff.MaxRetries = 5
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Engine{
		streamer: streamer,
		sess:     sess,
		cfg:      cfg,
		logger:   logger,
		metrics:  newMetrics(reg),
		runs:     map[string]*run{},
	}
}

// SetLocalExecutor installs an optional local-execution collaborator,
// consulted before the remote path.
func (e *Engine) SetLocalExecutor(le LocalExecutor) {
	e.local = le
}

// Execute submits a plan and returns the stream of its results. The stream
// is forward-only and non-restartable; the caller owns yielded batches.
func (e *Engine) Execute(ctx context.Context, rel plan.Relation) (*ResultStream, error) {
	if e.sess.Closed() {
		return nil, errors.New("session is closed")
	}
	if rel == nil {
		return nil, sparkerrors.Malformed("execute", "nil relation")
	}

	if e.local != nil {
		batches, handled, err := e.local.Execute(ctx, rel)
		if err != nil {
			return nil, err
		}
		if handled {
			return &ResultStream{local: batches}, nil
		}
	}

	encoded, err := codec.Encode(rel)
	if err != nil {
		return nil, err
	}

	snap := e.sess.Snapshot()
	opID := e.sess.NextOperationID()
	req := &wire.ExecutePlanRequest{
		SessionID:    snap.SessionID,
		OperationID:  opID,
		UserContext:  snap.User,
		Plan:         encoded,
		Reattachable: true,
		Tags:         snap.Tags,
		ClientType:   snap.ClientType,
	}

	r := &run{
		engine:      e,
		operationID: opID,
		snap:        snap,
	}
	r.state.Store(int32(runStatePending))

	stream, err := e.openStream(ctx, req)
	if err != nil {
		e.metrics.failures.WithLabelValues("transport").Inc()
		return nil, err
	}
	r.setStream(stream)
	r.setState(runStateStreaming)
	e.track(r)
	level.Debug(e.logger).Log("msg", "run started", "op", opID)
	return &ResultStream{run: r}, nil
}

// openStream opens the initial response stream, retrying retryable failures
// under the backoff budget. The operation id makes repeats idempotent.
func (e *Engine) openStream(ctx context.Context, req *wire.ExecutePlanRequest) (transport.ResponseStream, error) {
	var lastErr error
	b := backoff.New(ctx, e.cfg.Backoff)
	for b.Ongoing() {
		stream, err := e.streamer.ExecutePlan(ctx, req)
		if err == nil {
			return stream, nil
		}
		if !sparkerrors.Retryable(err) {
			return nil, err
		}
		lastErr = err
		b.Wait()
	}
	if lastErr == nil {
		lastErr = b.Err()
	}
	return nil, lastErr
}

// ExecuteCommand submits a command plan, drains its run and returns the
// command result and server metrics.
func (e *Engine) ExecuteCommand(ctx context.Context, rel plan.Relation) (*structpb.Struct, *wire.Metrics, error) {
	rs, err := e.Execute(ctx, rel)
	if err != nil {
		return nil, nil, err
	}
	defer rs.Close()
	for {
		b, err := rs.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		// Commands yield no data the caller keeps.
		b.Release()
	}
	return rs.SQLCommandResult(), rs.Metrics(), nil
}

// Cancel requests cancellation of a run. It is cooperative: the consumer
// observes it at its next suspension point. Cancelling an unknown or already
// terminal run is a no-op, as is cancelling twice.
func (e *Engine) Cancel(ctx context.Context, operationID string) error {
	e.mu.Lock()
	r := e.runs[operationID]
	e.mu.Unlock()
	if r == nil || r.currentState().Terminal() {
		return nil
	}
	if r.cancelled.Swap(true) {
		return nil
	}

	snap := e.sess.Snapshot()
	_, err := e.streamer.Interrupt(ctx, &wire.InterruptRequest{
		SessionID:     snap.SessionID,
		UserContext:   snap.User,
		ClientType:    snap.ClientType,
		InterruptType: wire.InterruptOperationID,
		OperationID:   operationID,
	})
	if err != nil {
		level.Warn(e.logger).Log("msg", "interrupt failed", "op", operationID, "err", err)
	}
	// Unblock a consumer waiting on the stream.
	r.closeStream()
	return nil
}

func (e *Engine) track(r *run) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runs[r.operationID] = r
}

func (e *Engine) untrack(r *run) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.runs, r.operationID)
}

// serverErrorToError maps an in-band server diagnostic to the error
// taxonomy, keeping the message verbatim.
func serverErrorToError(se *wire.ServerError) error {
	if se.Kind == wire.ErrorKindAnalysis {
		return &sparkerrors.AnalysisError{Message: se.Message}
	}
	return &sparkerrors.ExecutionError{Message: se.Message, Code: se.Code}
}
