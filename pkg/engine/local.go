package engine

import (
	"context"

	"github.com/irfanghat/spark-connect-go/pkg/plan"
)

// LocalExecutor evaluates a plan without a remote round trip. The engine
// consults it before opening a stream; handled == false means the plan is
// outside the executor's coverage and the remote path proceeds unchanged.
//
// Implementations live outside this module. Absence of a local executor, or
// a plan it does not cover, changes performance and nothing else.
type LocalExecutor interface {
	Execute(ctx context.Context, rel plan.Relation) (batches []*Batch, handled bool, err error)
}
