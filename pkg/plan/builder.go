package plan

import (
	"github.com/irfanghat/spark-connect-go/pkg/sparkerrors"
)

// Builder constructs relation nodes, tagging each with a process-unique plan
// id from the bound generator. Construction is purely additive: every
// operation takes existing nodes and returns a new one, leaving its inputs
// untouched.
//
// Malformed arguments are rejected immediately with a
// [sparkerrors.MalformedPlanError], never deferred to the server.
type Builder struct {
	ids IDGenerator
}

// NewBuilder creates a builder drawing plan ids from gen.
func NewBuilder(gen IDGenerator) *Builder {
	return &Builder{ids: gen}
}

func (b *Builder) base() relationBase {
	return relationBase{planID: b.ids.NextPlanID()}
}

func requireChild(op string, child Relation) error {
	if child == nil {
		return sparkerrors.Malformed(op, "input relation must not be nil")
	}
	return nil
}

func requireExprs(op string, exprs []Expression) error {
	if len(exprs) == 0 {
		return sparkerrors.Malformed(op, "at least one expression required, got 0")
	}
	for i, e := range exprs {
		if e == nil {
			return sparkerrors.Malformed(op, "expression %d must not be nil", i)
		}
	}
	return nil
}
