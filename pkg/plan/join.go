package plan

import (
	"github.com/irfanghat/spark-connect-go/pkg/sparkerrors"
	"github.com/irfanghat/spark-connect-go/pkg/types"
)

// Join combines two relations on a condition or a list of using-columns.
type Join struct {
	relationBase

	Left         Relation
	Right        Relation
	JoinType     types.JoinType
	Condition    Expression // Boolean join condition; nil when UsingColumns is set.
	UsingColumns []string   // Equi-join column names; empty when Condition is set.
}

var _ Relation = (*Join)(nil)

// Join creates a join of left and right on the given condition. Cross joins
// take no condition; every other join type requires one.
func (b *Builder) Join(left, right Relation, joinType types.JoinType, condition Expression) (*Join, error) {
	if err := requireChild("join", left); err != nil {
		return nil, err
	}
	if err := requireChild("join", right); err != nil {
		return nil, err
	}
	if joinType == types.JoinTypeInvalid {
		return nil, sparkerrors.Malformed("join", "join type must be specified")
	}
	if condition == nil && joinType != types.JoinTypeCross {
		return nil, sparkerrors.Malformed("join", "%s join requires a condition", joinType)
	}
	if condition != nil && joinType == types.JoinTypeCross {
		return nil, sparkerrors.Malformed("join", "cross join must not have a condition")
	}
	return &Join{relationBase: b.base(), Left: left, Right: right, JoinType: joinType, Condition: condition}, nil
}

// JoinUsing creates an equi-join of left and right on the named columns,
// which must exist on both sides.
func (b *Builder) JoinUsing(left, right Relation, joinType types.JoinType, columns ...string) (*Join, error) {
	if err := requireChild("join", left); err != nil {
		return nil, err
	}
	if err := requireChild("join", right); err != nil {
		return nil, err
	}
	if joinType == types.JoinTypeInvalid {
		return nil, sparkerrors.Malformed("join", "join type must be specified")
	}
	if len(columns) == 0 {
		return nil, sparkerrors.Malformed("join", "at least one using-column required, got 0")
	}
	for i, c := range columns {
		if c == "" {
			return nil, sparkerrors.Malformed("join", "using-column %d must not be empty", i)
		}
	}
	return &Join{relationBase: b.base(), Left: left, Right: right, JoinType: joinType, UsingColumns: columns}, nil
}

func (r *Join) Children() []Relation { return []Relation{r.Left, r.Right} }

// SetOp combines two relations with a set operation.
type SetOp struct {
	relationBase

	Left   Relation
	Right  Relation
	Op     types.SetOpType
	ByName bool // Match columns by name rather than position.
	All    bool // Keep duplicates (UNION ALL semantics).
}

var _ Relation = (*SetOp)(nil)

// SetOp creates a set operation over left and right.
func (b *Builder) SetOp(left, right Relation, op types.SetOpType, byName, all bool) (*SetOp, error) {
	if err := requireChild("set_op", left); err != nil {
		return nil, err
	}
	if err := requireChild("set_op", right); err != nil {
		return nil, err
	}
	if op == types.SetOpTypeInvalid {
		return nil, sparkerrors.Malformed("set_op", "set operation type must be specified")
	}
	return &SetOp{relationBase: b.base(), Left: left, Right: right, Op: op, ByName: byName, All: all}, nil
}

// Union creates a UNION ALL of left and right matched by position.
func (b *Builder) Union(left, right Relation) (*SetOp, error) {
	return b.SetOp(left, right, types.SetOpTypeUnion, false, true)
}

func (r *SetOp) Children() []Relation { return []Relation{r.Left, r.Right} }
