package plan

import (
	"github.com/irfanghat/spark-connect-go/pkg/sparkerrors"
)

// Filter keeps the input rows for which the condition evaluates to true.
type Filter struct {
	relationBase

	Input     Relation
	Condition Expression
}

var _ Relation = (*Filter)(nil)

// Filter creates a filter of input by the boolean condition.
func (b *Builder) Filter(input Relation, condition Expression) (*Filter, error) {
	if err := requireChild("filter", input); err != nil {
		return nil, err
	}
	if condition == nil {
		return nil, sparkerrors.Malformed("filter", "condition must not be nil")
	}
	return &Filter{relationBase: b.base(), Input: input, Condition: condition}, nil
}

func (r *Filter) Children() []Relation { return []Relation{r.Input} }

// Deduplicate removes duplicate rows, comparing either all columns or the
// named subset.
type Deduplicate struct {
	relationBase

	Input      Relation
	Columns    []string // Subset to compare; empty when AllColumns is set.
	AllColumns bool
}

var _ Relation = (*Deduplicate)(nil)

// Deduplicate creates a deduplication of input over the named columns. With
// no columns, all columns are compared.
func (b *Builder) Deduplicate(input Relation, columns ...string) (*Deduplicate, error) {
	if err := requireChild("deduplicate", input); err != nil {
		return nil, err
	}
	for i, c := range columns {
		if c == "" {
			return nil, sparkerrors.Malformed("deduplicate", "column %d must not be empty", i)
		}
	}
	return &Deduplicate{
		relationBase: b.base(),
		Input:        input,
		Columns:      columns,
		AllColumns:   len(columns) == 0,
	}, nil
}

func (r *Deduplicate) Children() []Relation { return []Relation{r.Input} }

// Sample keeps a pseudo-random fraction of the input rows. The kept fraction
// is UpperBound-LowerBound of the unit interval; Seed fixes the sampling for
// reproducibility.
type Sample struct {
	relationBase

	Input           Relation
	LowerBound      float64
	UpperBound      float64
	WithReplacement bool
	Seed            int64
}

var _ Relation = (*Sample)(nil)

// Sample creates a sampled subset of input.
func (b *Builder) Sample(input Relation, lower, upper float64, withReplacement bool, seed int64) (*Sample, error) {
	if err := requireChild("sample", input); err != nil {
		return nil, err
	}
	if lower < 0 || upper > 1 || lower > upper {
		return nil, sparkerrors.Malformed("sample", "bounds [%v, %v] must satisfy 0 <= lower <= upper <= 1", lower, upper)
	}
	return &Sample{
		relationBase:    b.base(),
		Input:           input,
		LowerBound:      lower,
		UpperBound:      upper,
		WithReplacement: withReplacement,
		Seed:            seed,
	}, nil
}

func (r *Sample) Children() []Relation { return []Relation{r.Input} }
