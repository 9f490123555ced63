// Package analysis answers questions about plans without executing them.
// Each operation is a single unary round trip; no run or result stream is
// involved, and server diagnostics come back verbatim as
// [sparkerrors.AnalysisError].
package analysis

import (
	"context"

	"github.com/go-kit/log"
	"github.com/pkg/errors"

	"github.com/irfanghat/spark-connect-go/pkg/codec"
	"github.com/irfanghat/spark-connect-go/pkg/plan"
	"github.com/irfanghat/spark-connect-go/pkg/session"
	"github.com/irfanghat/spark-connect-go/pkg/sparkerrors"
	"github.com/irfanghat/spark-connect-go/pkg/transport"
	"github.com/irfanghat/spark-connect-go/pkg/types"
	"github.com/irfanghat/spark-connect-go/pkg/wire"
)

// Resolver issues analyze operations for one session.
type Resolver struct {
	streamer transport.Streamer
	sess     *session.Session
	logger   log.Logger
}

// New creates a resolver over the given transport and session.
func New(streamer transport.Streamer, sess *session.Session, logger log.Logger) *Resolver {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Resolver{streamer: streamer, sess: sess, logger: logger}
}

// ResolveSchema returns the result schema the plan would produce.
func (r *Resolver) ResolveSchema(ctx context.Context, rel plan.Relation) (types.Schema, error) {
	resp, err := r.analyzePlan(ctx, rel, &wire.AnalyzePlanRequest{Operation: wire.AnalyzeSchema})
	if err != nil {
		return types.Schema{}, err
	}
	if resp.Schema == nil {
		return types.Schema{}, errors.New("analyze response carries no schema")
	}
	return *resp.Schema, nil
}

// Explain returns the textual plan explanation at the given verbosity.
func (r *Resolver) Explain(ctx context.Context, rel plan.Relation, mode types.ExplainMode) (string, error) {
	if mode == types.ExplainModeInvalid {
		mode = types.ExplainModeSimple
	}
	resp, err := r.analyzePlan(ctx, rel, &wire.AnalyzePlanRequest{
		Operation: wire.AnalyzeExplain,
		Mode:      mode,
	})
	if err != nil {
		return "", err
	}
	return resp.Explain, nil
}

// TreeString returns the plan rendered as an indented tree.
func (r *Resolver) TreeString(ctx context.Context, rel plan.Relation) (string, error) {
	resp, err := r.analyzePlan(ctx, rel, &wire.AnalyzePlanRequest{Operation: wire.AnalyzeTreeString})
	if err != nil {
		return "", err
	}
	return resp.TreeString, nil
}

// IsLocal reports whether the plan runs entirely on the service driver.
func (r *Resolver) IsLocal(ctx context.Context, rel plan.Relation) (bool, error) {
	resp, err := r.analyzePlan(ctx, rel, &wire.AnalyzePlanRequest{Operation: wire.AnalyzeIsLocal})
	if err != nil {
		return false, err
	}
	return resp.IsLocal != nil && *resp.IsLocal, nil
}

// IsStreaming reports whether the plan reads a streaming source.
func (r *Resolver) IsStreaming(ctx context.Context, rel plan.Relation) (bool, error) {
	resp, err := r.analyzePlan(ctx, rel, &wire.AnalyzePlanRequest{Operation: wire.AnalyzeIsStreaming})
	if err != nil {
		return false, err
	}
	return resp.IsStreaming != nil && *resp.IsStreaming, nil
}

// InputFiles returns the files the plan would read.
func (r *Resolver) InputFiles(ctx context.Context, rel plan.Relation) ([]string, error) {
	resp, err := r.analyzePlan(ctx, rel, &wire.AnalyzePlanRequest{Operation: wire.AnalyzeInputFiles})
	if err != nil {
		return nil, err
	}
	return resp.InputFiles, nil
}

// SparkVersion returns the service version string.
func (r *Resolver) SparkVersion(ctx context.Context) (string, error) {
	resp, err := r.analyze(ctx, &wire.AnalyzePlanRequest{Operation: wire.AnalyzeSparkVersion})
	if err != nil {
		return "", err
	}
	return resp.SparkVersion, nil
}

// DDLParse parses a DDL string into the data type it describes.
func (r *Resolver) DDLParse(ctx context.Context, ddl string) (types.DataType, error) {
	resp, err := r.analyze(ctx, &wire.AnalyzePlanRequest{
		Operation: wire.AnalyzeDDLParse,
		DDL:       ddl,
	})
	if err != nil {
		return types.DataType{}, err
	}
	if resp.DDLParse == nil {
		return types.DataType{}, errors.New("analyze response carries no parsed type")
	}
	return *resp.DDLParse, nil
}

// SameSemantics reports whether two plans are semantically equivalent.
func (r *Resolver) SameSemantics(ctx context.Context, target, other plan.Relation) (bool, error) {
	encodedOther, err := codec.Encode(other)
	if err != nil {
		return false, err
	}
	resp, err := r.analyzePlan(ctx, target, &wire.AnalyzePlanRequest{
		Operation: wire.AnalyzeSameSemantics,
		Other:     encodedOther,
	})
	if err != nil {
		return false, err
	}
	return resp.SameSemantics != nil && *resp.SameSemantics, nil
}

// SemanticHash returns the semantic hash of the plan.
func (r *Resolver) SemanticHash(ctx context.Context, rel plan.Relation) (int32, error) {
	resp, err := r.analyzePlan(ctx, rel, &wire.AnalyzePlanRequest{Operation: wire.AnalyzeSemanticHash})
	if err != nil {
		return 0, err
	}
	if resp.SemanticHash == nil {
		return 0, errors.New("analyze response carries no hash")
	}
	return *resp.SemanticHash, nil
}

// analyzePlan encodes rel into req.Plan and issues the request.
func (r *Resolver) analyzePlan(ctx context.Context, rel plan.Relation, req *wire.AnalyzePlanRequest) (*wire.AnalyzePlanResponse, error) {
	if rel == nil {
		return nil, sparkerrors.Malformed(req.Operation, "nil relation")
	}
	encoded, err := codec.Encode(rel)
	if err != nil {
		return nil, err
	}
	req.Plan = encoded
	return r.analyze(ctx, req)
}

func (r *Resolver) analyze(ctx context.Context, req *wire.AnalyzePlanRequest) (*wire.AnalyzePlanResponse, error) {
	snap := r.sess.Snapshot()
	req.SessionID = snap.SessionID
	req.UserContext = snap.User
	req.ClientType = snap.ClientType

	resp, err := r.streamer.AnalyzePlan(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, &sparkerrors.AnalysisError{Message: resp.Error.Message}
	}
	return resp, nil
}
