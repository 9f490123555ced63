package plan

import (
	"github.com/irfanghat/spark-connect-go/pkg/sparkerrors"
)

// Sort orders the input rows by one or more sort keys. A global sort is a
// total order across all partitions; a non-global sort orders within each
// partition only.
type Sort struct {
	relationBase

	Input    Relation
	Orders   []*SortOrder
	IsGlobal bool
}

var _ Relation = (*Sort)(nil)

// Sort creates a global sort of input by the given orders.
func (b *Builder) Sort(input Relation, orders ...*SortOrder) (*Sort, error) {
	return b.sort(input, orders, true)
}

// SortWithinPartitions creates a per-partition sort of input.
func (b *Builder) SortWithinPartitions(input Relation, orders ...*SortOrder) (*Sort, error) {
	return b.sort(input, orders, false)
}

func (b *Builder) sort(input Relation, orders []*SortOrder, global bool) (*Sort, error) {
	if err := requireChild("sort", input); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, sparkerrors.Malformed("sort", "at least one sort order required, got 0")
	}
	for i, o := range orders {
		if o == nil || o.Expr == nil {
			return nil, sparkerrors.Malformed("sort", "sort order %d must not be nil", i)
		}
	}
	return &Sort{relationBase: b.base(), Input: input, Orders: orders, IsGlobal: global}, nil
}

func (r *Sort) Children() []Relation { return []Relation{r.Input} }

// Limit keeps the first N rows of the input.
type Limit struct {
	relationBase

	Input Relation
	N     int64
}

var _ Relation = (*Limit)(nil)

// Limit creates a relation keeping the first n rows of input.
func (b *Builder) Limit(input Relation, n int64) (*Limit, error) {
	if err := requireChild("limit", input); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, sparkerrors.Malformed("limit", "limit must not be negative, got %d", n)
	}
	return &Limit{relationBase: b.base(), Input: input, N: n}, nil
}

func (r *Limit) Children() []Relation { return []Relation{r.Input} }

// Offset skips the first N rows of the input.
type Offset struct {
	relationBase

	Input Relation
	N     int64
}

var _ Relation = (*Offset)(nil)

// Offset creates a relation skipping the first n rows of input.
func (b *Builder) Offset(input Relation, n int64) (*Offset, error) {
	if err := requireChild("offset", input); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, sparkerrors.Malformed("offset", "offset must not be negative, got %d", n)
	}
	return &Offset{relationBase: b.base(), Input: input, N: n}, nil
}

func (r *Offset) Children() []Relation { return []Relation{r.Input} }

// Tail keeps the last N rows of the input.
type Tail struct {
	relationBase

	Input Relation
	N     int64
}

var _ Relation = (*Tail)(nil)

// Tail creates a relation keeping the last n rows of input.
func (b *Builder) Tail(input Relation, n int64) (*Tail, error) {
	if err := requireChild("tail", input); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, sparkerrors.Malformed("tail", "tail must not be negative, got %d", n)
	}
	return &Tail{relationBase: b.base(), Input: input, N: n}, nil
}

func (r *Tail) Children() []Relation { return []Relation{r.Input} }
