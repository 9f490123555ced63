package engine

import (
	"context"
	"io"
	"sync"

	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/backoff"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/irfanghat/spark-connect-go/pkg/session"
	"github.com/irfanghat/spark-connect-go/pkg/sparkerrors"
	"github.com/irfanghat/spark-connect-go/pkg/transport"
	"github.com/irfanghat/spark-connect-go/pkg/types"
	"github.com/irfanghat/spark-connect-go/pkg/wire"
)

// run is the engine-side record of one execution. All fields except the
// atomics are owned by the single consumer goroutine pulling the result
// stream; Cancel only touches the atomics and the guarded stream pointer.
type run struct {
	engine      *Engine
	operationID string
	snap        session.Context

	state     atomic.Int32
	cancelled atomic.Bool

	streamMu sync.Mutex
	stream   transport.ResponseStream

	lastResponseID string
	schema         *types.Schema
	serverMetrics  *wire.Metrics
	sqlResult      *structpb.Struct
	resultComplete bool
	err            error

	pending []*Batch
}

func (r *run) setState(s runState) {
	r.state.Store(int32(s))
}

func (r *run) currentState() runState {
	return runState(r.state.Load())
}

func (r *run) setStream(s transport.ResponseStream) {
	r.streamMu.Lock()
	defer r.streamMu.Unlock()
	r.stream = s
}

func (r *run) currentStream() transport.ResponseStream {
	r.streamMu.Lock()
	defer r.streamMu.Unlock()
	return r.stream
}

func (r *run) closeStream() {
	if s := r.currentStream(); s != nil {
		s.Close()
	}
}

// next pulls until it has a batch to yield or the run reaches a terminal
// state. Cancellation wins over buffered batches: once the run is cancelled,
// pending batches are released, not delivered.
func (r *run) next(ctx context.Context) (*Batch, error) {
	for {
		if r.cancelled.Load() || ctx.Err() != nil {
			return nil, r.cancelTerminal()
		}

		if len(r.pending) > 0 {
			b := r.pending[0]
			r.pending = r.pending[1:]
			return b, nil
		}

		switch st := r.currentState(); {
		case st == runStateComplete:
			return nil, io.EOF
		case st == runStateCancelled:
			return nil, sparkerrors.ErrCancelled
		case st.Terminal():
			return nil, r.err
		}

		resp, err := r.recv(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				r.complete(ctx)
				return nil, io.EOF
			case errors.Is(err, sparkerrors.ErrCancelled):
				return nil, r.cancelTerminal()
			default:
				return nil, r.fail(err)
			}
		}
		if err := r.handle(resp); err != nil {
			return nil, r.fail(err)
		}
	}
}

// handle applies one response to the run. Responses other than batches only
// update bookkeeping; the pull loop keeps going.
func (r *run) handle(resp *wire.ExecutePlanResponse) error {
	if resp.ResponseID != "" {
		r.lastResponseID = resp.ResponseID
	}
	switch {
	case resp.Error != nil:
		return serverErrorToError(resp.Error)
	case resp.Schema != nil:
		if r.schema == nil {
			r.schema = resp.Schema
		}
	case resp.Batch != nil:
		batches, err := decodeBatches(resp.Batch)
		if err != nil {
			return err
		}
		r.engine.metrics.batches.Add(float64(len(batches)))
		r.engine.metrics.rows.Add(float64(resp.Batch.RowCount))
		r.pending = append(r.pending, batches...)
	case resp.Metrics != nil:
		r.serverMetrics = resp.Metrics
	case resp.SQLCommandResult != nil:
		r.sqlResult = resp.SQLCommandResult
	case resp.ResultComplete:
		r.resultComplete = true
	}
	return nil
}

// recv reads one response, reattaching through retryable stream loss. A
// clean end of stream before the completion marker also counts as loss: the
// server dropped us mid-operation.
func (r *run) recv(ctx context.Context) (*wire.ExecutePlanResponse, error) {
	for {
		resp, err := r.currentStream().Recv()
		if err == nil {
			return resp, nil
		}
		switch {
		case errors.Is(err, io.EOF):
			if r.resultComplete {
				return nil, io.EOF
			}
		case errors.Is(err, sparkerrors.ErrCancelled):
			return nil, err
		case !sparkerrors.Retryable(err):
			return nil, err
		}
		if r.cancelled.Load() {
			return nil, sparkerrors.ErrCancelled
		}
		if rerr := r.reattach(ctx, err); rerr != nil {
			return nil, rerr
		}
	}
}

// reattach reopens the stream after the last acknowledged response, under
// the backoff budget. On success the server resumes past the cursor, so
// nothing is redelivered, and already-delivered responses are released.
func (r *run) reattach(ctx context.Context, cause error) error {
	r.setState(runStateAwaitingReattach)
	level.Debug(r.engine.logger).Log("msg", "stream lost, reattaching",
		"op", r.operationID, "cursor", r.lastResponseID, "cause", cause)

	req := &wire.ReattachExecuteRequest{
		SessionID:      r.snap.SessionID,
		OperationID:    r.operationID,
		UserContext:    r.snap.User,
		LastResponseID: r.lastResponseID,
		ClientType:     r.snap.ClientType,
	}
	lastErr := cause
	b := backoff.New(ctx, r.engine.cfg.Backoff)
	for b.Ongoing() {
		if r.cancelled.Load() {
			return sparkerrors.ErrCancelled
		}
		stream, err := r.engine.streamer.ReattachExecute(ctx, req)
		if err == nil {
			r.closeStream()
			r.setStream(stream)
			r.setState(runStateStreaming)
			r.engine.metrics.reattaches.Inc()
			r.releaseUntil(ctx)
			return nil
		}
		if !sparkerrors.Retryable(err) {
			return err
		}
		lastErr = err
		b.Wait()
	}
	return lastErr
}

// releaseUntil lets the server free responses up to the cursor. Failure is
// logged, never fatal: the worst case is the server buffering longer.
func (r *run) releaseUntil(ctx context.Context) {
	if r.lastResponseID == "" {
		return
	}
	err := r.engine.streamer.ReleaseExecute(ctx, &wire.ReleaseExecuteRequest{
		SessionID:    r.snap.SessionID,
		OperationID:  r.operationID,
		ReleaseUntil: r.lastResponseID,
	})
	if err != nil {
		level.Warn(r.engine.logger).Log("msg", "release until failed", "op", r.operationID, "err", err)
	}
}

func (r *run) complete(ctx context.Context) {
	r.setState(runStateComplete)
	err := r.engine.streamer.ReleaseExecute(ctx, &wire.ReleaseExecuteRequest{
		SessionID:   r.snap.SessionID,
		OperationID: r.operationID,
		ReleaseAll:  true,
	})
	if err != nil {
		level.Warn(r.engine.logger).Log("msg", "release all failed", "op", r.operationID, "err", err)
	}
	r.closeStream()
	r.engine.untrack(r)
	level.Debug(r.engine.logger).Log("msg", "run complete", "op", r.operationID)
}

func (r *run) fail(err error) error {
	r.err = err
	r.setState(runStateFailed)
	r.engine.metrics.failures.WithLabelValues(failureReason(err)).Inc()
	r.closeStream()
	r.engine.untrack(r)
	level.Debug(r.engine.logger).Log("msg", "run failed", "op", r.operationID, "err", err)
	return err
}

func (r *run) cancelTerminal() error {
	for _, b := range r.pending {
		b.Release()
	}
	r.pending = nil
	if !r.currentState().Terminal() {
		r.setState(runStateCancelled)
		r.closeStream()
		r.engine.untrack(r)
	}
	return sparkerrors.ErrCancelled
}

func failureReason(err error) string {
	var (
		te *sparkerrors.TransportError
		ae *sparkerrors.AnalysisError
	)
	switch {
	case errors.As(err, &te):
		return "transport"
	case errors.As(err, &ae):
		return "analysis"
	default:
		return "execution"
	}
}

// ResultStream is the forward-only sequence of batches produced by one run.
// It is not safe for concurrent use and cannot be restarted.
type ResultStream struct {
	run *run

	local    []*Batch
	localIdx int
}

// Next returns the next batch, blocking on the underlying stream as needed.
// It returns (nil, io.EOF) once the run is complete and drained. Ownership
// of the returned batch transfers to the caller.
func (s *ResultStream) Next(ctx context.Context) (*Batch, error) {
	if s.run == nil {
		if s.localIdx >= len(s.local) {
			return nil, io.EOF
		}
		b := s.local[s.localIdx]
		s.local[s.localIdx] = nil
		s.localIdx++
		return b, nil
	}
	return s.run.next(ctx)
}

// OperationID returns the run's operation id, usable with Engine.Cancel.
// Empty for locally executed plans.
func (s *ResultStream) OperationID() string {
	if s.run == nil {
		return ""
	}
	return s.run.operationID
}

// Schema returns the result schema once the server has announced it, nil
// before.
func (s *ResultStream) Schema() *types.Schema {
	if s.run == nil {
		if len(s.local) > 0 && s.local[0] != nil {
			return &s.local[0].Schema
		}
		return nil
	}
	return s.run.schema
}

// Metrics returns server-side execution metrics once delivered, nil before.
func (s *ResultStream) Metrics() *wire.Metrics {
	if s.run == nil {
		return nil
	}
	return s.run.serverMetrics
}

// SQLCommandResult returns the command result for command plans, nil
// otherwise.
func (s *ResultStream) SQLCommandResult() *structpb.Struct {
	if s.run == nil {
		return nil
	}
	return s.run.sqlResult
}

// Close releases undelivered batches and the underlying stream. Batches
// already yielded stay valid. Safe to call more than once.
func (s *ResultStream) Close() {
	for i := s.localIdx; i < len(s.local); i++ {
		if s.local[i] != nil {
			s.local[i].Release()
			s.local[i] = nil
		}
	}
	s.localIdx = len(s.local)
	if s.run == nil {
		return
	}
	for _, b := range s.run.pending {
		b.Release()
	}
	s.run.pending = nil
	if !s.run.currentState().Terminal() {
		s.run.setState(runStateCancelled)
		s.run.engine.untrack(s.run)
	}
	s.run.closeStream()
}
