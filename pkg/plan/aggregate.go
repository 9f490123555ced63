package plan

import (
	"github.com/irfanghat/spark-connect-go/pkg/sparkerrors"
	"github.com/irfanghat/spark-connect-go/pkg/types"
)

// Aggregate groups the input by the grouping expressions and evaluates the
// aggregate expressions per group.
type Aggregate struct {
	relationBase

	Input      Relation
	GroupType  types.GroupType
	Groupings  []Expression
	Aggregates []Expression
}

var _ Relation = (*Aggregate)(nil)

// Aggregate creates a grouped aggregation over input. Global aggregations
// pass no grouping expressions.
func (b *Builder) Aggregate(input Relation, groupType types.GroupType, groupings, aggregates []Expression) (*Aggregate, error) {
	if err := requireChild("aggregate", input); err != nil {
		return nil, err
	}
	if groupType == types.GroupTypeInvalid {
		return nil, sparkerrors.Malformed("aggregate", "group type must be specified")
	}
	if err := requireExprs("aggregate", aggregates); err != nil {
		return nil, err
	}
	for i, g := range groupings {
		if g == nil {
			return nil, sparkerrors.Malformed("aggregate", "grouping expression %d must not be nil", i)
		}
	}
	return &Aggregate{
		relationBase: b.base(),
		Input:        input,
		GroupType:    groupType,
		Groupings:    groupings,
		Aggregates:   aggregates,
	}, nil
}

// GroupBy creates a plain GROUP BY aggregation over input.
func (b *Builder) GroupBy(input Relation, groupings, aggregates []Expression) (*Aggregate, error) {
	return b.Aggregate(input, types.GroupTypeGroupBy, groupings, aggregates)
}

func (r *Aggregate) Children() []Relation { return []Relation{r.Input} }
