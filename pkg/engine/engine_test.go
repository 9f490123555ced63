package engine

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/grafana/dskit/backoff"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/irfanghat/spark-connect-go/pkg/plan"
	"github.com/irfanghat/spark-connect-go/pkg/session"
	"github.com/irfanghat/spark-connect-go/pkg/sparkerrors"
	"github.com/irfanghat/spark-connect-go/pkg/transport"
	"github.com/irfanghat/spark-connect-go/pkg/types"
	"github.com/irfanghat/spark-connect-go/pkg/wire"
)

// fakeStream replays scripted responses and then a final error (io.EOF when
// unset).
type fakeStream struct {
	resps  []*wire.ExecutePlanResponse
	final  error
	i      int
	closed bool
}

func (s *fakeStream) Recv() (*wire.ExecutePlanResponse, error) {
	if s.i < len(s.resps) {
		r := s.resps[s.i]
		s.i++
		return r, nil
	}
	if s.final != nil {
		return nil, s.final
	}
	return nil, io.EOF
}

func (s *fakeStream) Close() { s.closed = true }

// fakeStreamer scripts the transport surface and records every call.
type fakeStreamer struct {
	mu sync.Mutex

	executeFn  func(*wire.ExecutePlanRequest) (transport.ResponseStream, error)
	reattachFn func(*wire.ReattachExecuteRequest) (transport.ResponseStream, error)

	executes   []*wire.ExecutePlanRequest
	reattaches []*wire.ReattachExecuteRequest
	releases   []*wire.ReleaseExecuteRequest
	interrupts []*wire.InterruptRequest
}

var _ transport.Streamer = (*fakeStreamer)(nil)

func (f *fakeStreamer) ExecutePlan(_ context.Context, req *wire.ExecutePlanRequest) (transport.ResponseStream, error) {
	f.mu.Lock()
	f.executes = append(f.executes, req)
	f.mu.Unlock()
	if f.executeFn == nil {
		return &fakeStream{}, nil
	}
	return f.executeFn(req)
}

func (f *fakeStreamer) ReattachExecute(_ context.Context, req *wire.ReattachExecuteRequest) (transport.ResponseStream, error) {
	f.mu.Lock()
	f.reattaches = append(f.reattaches, req)
	f.mu.Unlock()
	if f.reattachFn == nil {
		return nil, &sparkerrors.TransportError{Code: codes.Unavailable, Retryable: true}
	}
	return f.reattachFn(req)
}

func (f *fakeStreamer) ReleaseExecute(_ context.Context, req *wire.ReleaseExecuteRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases = append(f.releases, req)
	return nil
}

func (f *fakeStreamer) AnalyzePlan(context.Context, *wire.AnalyzePlanRequest) (*wire.AnalyzePlanResponse, error) {
	return &wire.AnalyzePlanResponse{}, nil
}

func (f *fakeStreamer) Config(_ context.Context, req *wire.ConfigRequest) (*wire.ConfigResponse, error) {
	return &wire.ConfigResponse{SessionID: req.SessionID, Pairs: req.Pairs}, nil
}

func (f *fakeStreamer) Interrupt(_ context.Context, req *wire.InterruptRequest) (*wire.InterruptResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interrupts = append(f.interrupts, req)
	return &wire.InterruptResponse{SessionID: req.SessionID}, nil
}

func newTestEngine(t *testing.T, streamer transport.Streamer) (*Engine, *session.Session) {
	t.Helper()
	sess := session.New(wire.UserContext{UserID: "u1", UserName: "ada"})
	cfg := Config{Backoff: backoff.Config{
		MinBackoff: time.Millisecond,
		MaxBackoff: time.Millisecond,
		MaxRetries: 3,
	}}
	return New(streamer, sess, cfg, nil, prometheus.NewRegistry()), sess
}

func testPlan(t *testing.T, sess *session.Session) plan.Relation {
	t.Helper()
	b := plan.NewBuilder(sess)
	read, err := b.Read("people")
	require.NoError(t, err)
	filtered, err := b.Filter(read, plan.Fn(">", plan.Col("x"), plan.Lit(int64(5))))
	require.NoError(t, err)
	projected, err := b.Project(filtered, plan.Col("y"), plan.Col("name"))
	require.NoError(t, err)
	return projected
}

// arrowPayload serializes one int64 column batch as an Arrow IPC stream.
func arrowPayload(t *testing.T, values []int64, claimed int64) *wire.ArrowBatch {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "y", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)
	bld := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer bld.Release()
	bld.Field(0).(*array.Int64Builder).AppendValues(values, nil)
	rec := bld.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())
	return &wire.ArrowBatch{RowCount: claimed, Data: buf.Bytes()}
}

func batchValues(t *testing.T, b *Batch) []int64 {
	t.Helper()
	col, ok := b.Record.Column(0).(*array.Int64)
	require.True(t, ok)
	out := make([]int64, 0, col.Len())
	for i := 0; i < col.Len(); i++ {
		out = append(out, col.Value(i))
	}
	return out
}

func drain(t *testing.T, rs *ResultStream) []int64 {
	t.Helper()
	var rows []int64
	for {
		b, err := rs.Next(context.Background())
		if err == io.EOF {
			return rows
		}
		require.NoError(t, err)
		rows = append(rows, batchValues(t, b)...)
		b.Release()
	}
}

func TestExecuteDeliversBatchesInOrder(t *testing.T) {
	resultSchema := types.NewSchema(types.Field{Name: "y", Type: types.Int64, Nullable: true})
	stream := &fakeStream{resps: []*wire.ExecutePlanResponse{
		{ResponseID: "r1", Schema: &resultSchema},
		{ResponseID: "r2", Batch: arrowPayload(t, []int64{1, 2, 3}, 3)},
		{ResponseID: "r3", Batch: arrowPayload(t, []int64{4, 5}, 2)},
		{ResponseID: "r4", Metrics: &wire.Metrics{Values: map[string]float64{"shuffle.bytes": 1024}}},
		{ResponseID: "r5", ResultComplete: true},
	}}
	streamer := &fakeStreamer{
		executeFn: func(*wire.ExecutePlanRequest) (transport.ResponseStream, error) {
			return stream, nil
		},
	}
	eng, sess := newTestEngine(t, streamer)

	rs, err := eng.Execute(context.Background(), testPlan(t, sess))
	require.NoError(t, err)

	rows := drain(t, rs)
	require.Equal(t, []int64{1, 2, 3, 4, 5}, rows)
	require.Equal(t, runStateComplete, rs.run.currentState())

	require.NotNil(t, rs.Schema())
	require.True(t, resultSchema.Equal(*rs.Schema()))
	require.NotNil(t, rs.Metrics())
	require.Equal(t, float64(1024), rs.Metrics().Values["shuffle.bytes"])

	// The request carried the session identity and was reattachable.
	require.Len(t, streamer.executes, 1)
	req := streamer.executes[0]
	require.Equal(t, sess.ID(), req.SessionID)
	require.NotEmpty(t, req.OperationID)
	require.True(t, req.Reattachable)

	// Completion released the whole operation and closed the stream.
	require.Len(t, streamer.releases, 1)
	require.True(t, streamer.releases[0].ReleaseAll)
	require.True(t, stream.closed)
}

func TestReattachResumesWithoutRedelivery(t *testing.T) {
	first := &fakeStream{
		resps: []*wire.ExecutePlanResponse{
			{ResponseID: "r1", Batch: arrowPayload(t, []int64{1}, 1)},
			{ResponseID: "r2", Batch: arrowPayload(t, []int64{2}, 1)},
			{ResponseID: "r3", Batch: arrowPayload(t, []int64{3}, 1)},
		},
		final: &sparkerrors.TransportError{Code: codes.Unavailable, Retryable: true},
	}
	second := &fakeStream{resps: []*wire.ExecutePlanResponse{
		{ResponseID: "r4", Batch: arrowPayload(t, []int64{4}, 1)},
		{ResponseID: "r5", Batch: arrowPayload(t, []int64{5}, 1)},
		{ResponseID: "r6", ResultComplete: true},
	}}
	streamer := &fakeStreamer{
		executeFn: func(*wire.ExecutePlanRequest) (transport.ResponseStream, error) {
			return first, nil
		},
		reattachFn: func(*wire.ReattachExecuteRequest) (transport.ResponseStream, error) {
			return second, nil
		},
	}
	eng, sess := newTestEngine(t, streamer)

	rs, err := eng.Execute(context.Background(), testPlan(t, sess))
	require.NoError(t, err)

	rows := drain(t, rs)
	require.Equal(t, []int64{1, 2, 3, 4, 5}, rows, "responses must resume after the cursor with no redelivery")
	require.Equal(t, runStateComplete, rs.run.currentState())

	// Exactly one reattach, carrying the last acknowledged response id.
	require.Len(t, streamer.reattaches, 1)
	require.Equal(t, "r3", streamer.reattaches[0].LastResponseID)
	require.Equal(t, rs.OperationID(), streamer.reattaches[0].OperationID)

	// Delivered responses were released after the reattach, everything after
	// completion.
	require.Len(t, streamer.releases, 2)
	require.Equal(t, "r3", streamer.releases[0].ReleaseUntil)
	require.True(t, streamer.releases[1].ReleaseAll)

	require.True(t, first.closed)
	require.True(t, second.closed)
}

func TestReattachExhaustsBackoffBudget(t *testing.T) {
	first := &fakeStream{
		resps: []*wire.ExecutePlanResponse{
			{ResponseID: "r1", Batch: arrowPayload(t, []int64{1}, 1)},
		},
		final: &sparkerrors.TransportError{Code: codes.Unavailable, Retryable: true},
	}
	streamer := &fakeStreamer{
		executeFn: func(*wire.ExecutePlanRequest) (transport.ResponseStream, error) {
			return first, nil
		},
		reattachFn: func(*wire.ReattachExecuteRequest) (transport.ResponseStream, error) {
			return nil, &sparkerrors.TransportError{Code: codes.Unavailable, Retryable: true}
		},
	}
	eng, sess := newTestEngine(t, streamer)

	rs, err := eng.Execute(context.Background(), testPlan(t, sess))
	require.NoError(t, err)

	b, err := rs.Next(context.Background())
	require.NoError(t, err)
	b.Release()

	_, err = rs.Next(context.Background())
	var terr *sparkerrors.TransportError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, runStateFailed, rs.run.currentState())

	// The configured budget bounds the attempts exactly.
	require.Len(t, streamer.reattaches, 3)

	// Terminal failure is sticky.
	_, err = rs.Next(context.Background())
	require.ErrorAs(t, err, &terr)
	require.Len(t, streamer.reattaches, 3)
}

func TestServerErrorIsTerminalAndNeverRetried(t *testing.T) {
	for _, tt := range []struct {
		name string
		kind string
	}{
		{name: "analysis", kind: wire.ErrorKindAnalysis},
		{name: "execution", kind: wire.ErrorKindExecution},
	} {
		t.Run(tt.name, func(t *testing.T) {
			stream := &fakeStream{resps: []*wire.ExecutePlanResponse{
				{ResponseID: "r1", Error: &wire.ServerError{Kind: tt.kind, Message: "cannot resolve 'nope'"}},
			}}
			streamer := &fakeStreamer{
				executeFn: func(*wire.ExecutePlanRequest) (transport.ResponseStream, error) {
					return stream, nil
				},
			}
			eng, sess := newTestEngine(t, streamer)

			rs, err := eng.Execute(context.Background(), testPlan(t, sess))
			require.NoError(t, err)

			_, err = rs.Next(context.Background())
			require.Error(t, err)
			require.Contains(t, err.Error(), "cannot resolve 'nope'")
			if tt.kind == wire.ErrorKindAnalysis {
				var aerr *sparkerrors.AnalysisError
				require.ErrorAs(t, err, &aerr)
			} else {
				var xerr *sparkerrors.ExecutionError
				require.ErrorAs(t, err, &xerr)
			}

			require.Equal(t, runStateFailed, rs.run.currentState())
			require.Empty(t, streamer.reattaches, "in-band server errors must not trigger reattach")
		})
	}
}

func TestCleanEOFBeforeCompletionTriggersReattach(t *testing.T) {
	first := &fakeStream{resps: []*wire.ExecutePlanResponse{
		{ResponseID: "r1", Batch: arrowPayload(t, []int64{1}, 1)},
	}}
	second := &fakeStream{resps: []*wire.ExecutePlanResponse{
		{ResponseID: "r2", ResultComplete: true},
	}}
	streamer := &fakeStreamer{
		executeFn: func(*wire.ExecutePlanRequest) (transport.ResponseStream, error) {
			return first, nil
		},
		reattachFn: func(*wire.ReattachExecuteRequest) (transport.ResponseStream, error) {
			return second, nil
		},
	}
	eng, sess := newTestEngine(t, streamer)

	rs, err := eng.Execute(context.Background(), testPlan(t, sess))
	require.NoError(t, err)

	rows := drain(t, rs)
	require.Equal(t, []int64{1}, rows)
	require.Equal(t, runStateComplete, rs.run.currentState())
	require.Len(t, streamer.reattaches, 1)
}

func TestRowCountMismatchFailsTheRun(t *testing.T) {
	stream := &fakeStream{resps: []*wire.ExecutePlanResponse{
		{ResponseID: "r1", Batch: arrowPayload(t, []int64{1, 2, 3}, 5)},
	}}
	streamer := &fakeStreamer{
		executeFn: func(*wire.ExecutePlanRequest) (transport.ResponseStream, error) {
			return stream, nil
		},
	}
	eng, sess := newTestEngine(t, streamer)

	rs, err := eng.Execute(context.Background(), testPlan(t, sess))
	require.NoError(t, err)

	_, err = rs.Next(context.Background())
	var xerr *sparkerrors.ExecutionError
	require.ErrorAs(t, err, &xerr)
	require.Contains(t, err.Error(), "row count mismatch")
	require.Equal(t, runStateFailed, rs.run.currentState())
}

func TestCancelIsCooperativeAndIdempotent(t *testing.T) {
	stream := &fakeStream{resps: []*wire.ExecutePlanResponse{
		{ResponseID: "r1", Batch: arrowPayload(t, []int64{1}, 1)},
		{ResponseID: "r2", Batch: arrowPayload(t, []int64{2}, 1)},
		{ResponseID: "r3", ResultComplete: true},
	}}
	streamer := &fakeStreamer{
		executeFn: func(*wire.ExecutePlanRequest) (transport.ResponseStream, error) {
			return stream, nil
		},
	}
	eng, sess := newTestEngine(t, streamer)

	rs, err := eng.Execute(context.Background(), testPlan(t, sess))
	require.NoError(t, err)

	b, err := rs.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int64{1}, batchValues(t, b))

	require.NoError(t, eng.Cancel(context.Background(), rs.OperationID()))
	require.NoError(t, eng.Cancel(context.Background(), rs.OperationID()))
	require.Len(t, streamer.interrupts, 1, "repeated cancel must not re-interrupt")
	require.Equal(t, wire.InterruptOperationID, streamer.interrupts[0].InterruptType)

	// Cancellation surfaces at the next pull; the yielded batch stays valid.
	_, err = rs.Next(context.Background())
	require.ErrorIs(t, err, sparkerrors.ErrCancelled)
	require.Equal(t, runStateCancelled, rs.run.currentState())
	require.Equal(t, []int64{1}, batchValues(t, b))
	b.Release()

	// Cancelling a terminal run is a no-op.
	require.NoError(t, eng.Cancel(context.Background(), rs.OperationID()))
	require.Len(t, streamer.interrupts, 1)
}

func TestCancelDuringReattachStopsRetries(t *testing.T) {
	first := &fakeStream{
		resps: []*wire.ExecutePlanResponse{
			{ResponseID: "r1", Batch: arrowPayload(t, []int64{1}, 1)},
		},
		final: &sparkerrors.TransportError{Code: codes.Unavailable, Retryable: true},
	}
	reattachStarted := make(chan struct{})
	cancelDone := make(chan struct{})
	var once sync.Once
	streamer := &fakeStreamer{
		executeFn: func(*wire.ExecutePlanRequest) (transport.ResponseStream, error) {
			return first, nil
		},
		reattachFn: func(*wire.ReattachExecuteRequest) (transport.ResponseStream, error) {
			once.Do(func() { close(reattachStarted) })
			<-cancelDone
			return nil, &sparkerrors.TransportError{Code: codes.Unavailable, Retryable: true}
		},
	}
	eng, sess := newTestEngine(t, streamer)

	rs, err := eng.Execute(context.Background(), testPlan(t, sess))
	require.NoError(t, err)

	b, err := rs.Next(context.Background())
	require.NoError(t, err)
	b.Release()

	errCh := make(chan error, 1)
	go func() {
		_, err := rs.Next(context.Background())
		errCh <- err
	}()

	// Cancel lands while the consumer sits in the reattach loop; the loop
	// must stop retrying instead of burning the rest of the budget.
	<-reattachStarted
	require.NoError(t, eng.Cancel(context.Background(), rs.OperationID()))
	close(cancelDone)

	err = <-errCh
	require.ErrorIs(t, err, sparkerrors.ErrCancelled)
	require.Equal(t, runStateCancelled, rs.run.currentState())

	streamer.mu.Lock()
	attempts := len(streamer.reattaches)
	streamer.mu.Unlock()
	require.Equal(t, 1, attempts, "no reattach attempts after cancel")
}

func TestCancelDropsBufferedBatches(t *testing.T) {
	// One payload carrying two records: the first is yielded, the second is
	// still buffered when the cancel lands.
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "y", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	for _, v := range []int64{1, 2} {
		bld := array.NewRecordBuilder(memory.DefaultAllocator, schema)
		bld.Field(0).(*array.Int64Builder).Append(v)
		rec := bld.NewRecord()
		require.NoError(t, w.Write(rec))
		rec.Release()
		bld.Release()
	}
	require.NoError(t, w.Close())

	stream := &fakeStream{resps: []*wire.ExecutePlanResponse{
		{ResponseID: "r1", Batch: &wire.ArrowBatch{RowCount: 2, Data: buf.Bytes()}},
		{ResponseID: "r2", ResultComplete: true},
	}}
	streamer := &fakeStreamer{
		executeFn: func(*wire.ExecutePlanRequest) (transport.ResponseStream, error) {
			return stream, nil
		},
	}
	eng, sess := newTestEngine(t, streamer)

	rs, err := eng.Execute(context.Background(), testPlan(t, sess))
	require.NoError(t, err)

	b, err := rs.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int64{1}, batchValues(t, b))

	require.NoError(t, eng.Cancel(context.Background(), rs.OperationID()))

	// The buffered second record is dropped, not delivered; the batch already
	// yielded stays valid.
	_, err = rs.Next(context.Background())
	require.ErrorIs(t, err, sparkerrors.ErrCancelled)
	require.Empty(t, rs.run.pending)
	require.Equal(t, []int64{1}, batchValues(t, b))
	b.Release()
}

func TestExecuteCommandReturnsResult(t *testing.T) {
	result, err := structpb.NewStruct(map[string]any{"rows_affected": 42.0})
	require.NoError(t, err)
	stream := &fakeStream{resps: []*wire.ExecutePlanResponse{
		{ResponseID: "r1", SQLCommandResult: result},
		{ResponseID: "r2", Metrics: &wire.Metrics{Values: map[string]float64{"wall.ms": 12}}},
		{ResponseID: "r3", ResultComplete: true},
	}}
	streamer := &fakeStreamer{
		executeFn: func(*wire.ExecutePlanRequest) (transport.ResponseStream, error) {
			return stream, nil
		},
	}
	eng, sess := newTestEngine(t, streamer)

	b := plan.NewBuilder(sess)
	cmd, err := b.SQL("CREATE TABLE t AS SELECT 1", nil)
	require.NoError(t, err)

	got, metrics, err := eng.ExecuteCommand(context.Background(), cmd)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 42.0, got.GetFields()["rows_affected"].GetNumberValue())
	require.NotNil(t, metrics)
	require.Equal(t, float64(12), metrics.Values["wall.ms"])
}

type fakeLocal struct {
	handled bool
	calls   int
}

func (l *fakeLocal) Execute(context.Context, plan.Relation) ([]*Batch, bool, error) {
	l.calls++
	if !l.handled {
		return nil, false, nil
	}
	batches, err := decodeBatches(arrowPayloadRaw([]int64{7, 8}, 2))
	if err != nil {
		return nil, false, err
	}
	return batches, true, nil
}

// arrowPayloadRaw is arrowPayload without the testing.T, for use inside
// fakes.
func arrowPayloadRaw(values []int64, claimed int64) *wire.ArrowBatch {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "y", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)
	bld := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer bld.Release()
	bld.Field(0).(*array.Int64Builder).AppendValues(values, nil)
	rec := bld.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	if err := w.Write(rec); err != nil {
		panic(err)
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return &wire.ArrowBatch{RowCount: claimed, Data: buf.Bytes()}
}

func TestLocalExecutorShortCircuitsRemotePath(t *testing.T) {
	streamer := &fakeStreamer{}
	eng, sess := newTestEngine(t, streamer)
	local := &fakeLocal{handled: true}
	eng.SetLocalExecutor(local)

	rs, err := eng.Execute(context.Background(), testPlan(t, sess))
	require.NoError(t, err)

	rows := drain(t, rs)
	require.Equal(t, []int64{7, 8}, rows)
	require.Equal(t, 1, local.calls)
	require.Empty(t, streamer.executes, "handled plans must not reach the wire")
}

func TestLocalExecutorDeclining(t *testing.T) {
	stream := &fakeStream{resps: []*wire.ExecutePlanResponse{
		{ResponseID: "r1", Batch: arrowPayload(t, []int64{1}, 1)},
		{ResponseID: "r2", ResultComplete: true},
	}}
	streamer := &fakeStreamer{
		executeFn: func(*wire.ExecutePlanRequest) (transport.ResponseStream, error) {
			return stream, nil
		},
	}
	eng, sess := newTestEngine(t, streamer)
	local := &fakeLocal{handled: false}
	eng.SetLocalExecutor(local)

	rs, err := eng.Execute(context.Background(), testPlan(t, sess))
	require.NoError(t, err)

	rows := drain(t, rs)
	require.Equal(t, []int64{1}, rows)
	require.Equal(t, 1, local.calls)
	require.Len(t, streamer.executes, 1)
}

func TestExecuteOnClosedSession(t *testing.T) {
	streamer := &fakeStreamer{}
	eng, sess := newTestEngine(t, streamer)
	rel := testPlan(t, sess)
	sess.Close()

	_, err := eng.Execute(context.Background(), rel)
	require.Error(t, err)
	require.Empty(t, streamer.executes)
}
