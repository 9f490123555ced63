package plan

import (
	"fmt"
	"strings"

	"github.com/irfanghat/spark-connect-go/pkg/types"
)

// Literal is a constant scalar value. The value is stored as built; whether
// it is representable on the wire is decided by the codec, which rejects
// unsupported types at encoding time.
type Literal struct {
	Value any
}

var _ Expression = (*Literal)(nil)

// Lit creates a literal expression from a Go value.
func Lit(value any) *Literal {
	return &Literal{Value: value}
}

func (l *Literal) String() string {
	if s, ok := l.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", l.Value)
}

func (l *Literal) isExpression() {}

// ColumnRef references a column by its (possibly nested) name path.
type ColumnRef struct {
	Parts []string
}

var _ Expression = (*ColumnRef)(nil)

// Col creates a column reference. Dots in name separate nesting levels.
func Col(name string) *ColumnRef {
	return &ColumnRef{Parts: strings.Split(name, ".")}
}

func (c *ColumnRef) String() string {
	return strings.Join(c.Parts, ".")
}

func (c *ColumnRef) isExpression() {}

// Star references all columns of the input, optionally qualified by a target
// relation alias.
type Star struct {
	Target string
}

var _ Expression = (*Star)(nil)

func (s *Star) String() string {
	if s.Target != "" {
		return s.Target + ".*"
	}
	return "*"
}

func (s *Star) isExpression() {}

// UnresolvedFunction is a call to a function the server resolves by name.
// Operators (comparison, arithmetic, boolean) are represented as functions
// with their symbolic name, e.g. ">"(x, 5).
type UnresolvedFunction struct {
	Name     string
	Args     []Expression
	Distinct bool
}

var _ Expression = (*UnresolvedFunction)(nil)

// Fn creates an unresolved function call expression.
func Fn(name string, args ...Expression) *UnresolvedFunction {
	return &UnresolvedFunction{Name: name, Args: args}
}

// FnDistinct creates an unresolved aggregate call over distinct inputs.
func FnDistinct(name string, args ...Expression) *UnresolvedFunction {
	return &UnresolvedFunction{Name: name, Args: args, Distinct: true}
}

// Operator sugar. Each lowers to an unresolved function call carrying the
// operator's symbolic name.

func Eq(left, right Expression) *UnresolvedFunction { return Fn("=", left, right) }

func Neq(left, right Expression) *UnresolvedFunction { return Fn("!=", left, right) }

func Gt(left, right Expression) *UnresolvedFunction { return Fn(">", left, right) }

func Gte(left, right Expression) *UnresolvedFunction { return Fn(">=", left, right) }

func Lt(left, right Expression) *UnresolvedFunction { return Fn("<", left, right) }

func Lte(left, right Expression) *UnresolvedFunction { return Fn("<=", left, right) }

func And(left, right Expression) *UnresolvedFunction { return Fn("and", left, right) }

func Or(left, right Expression) *UnresolvedFunction { return Fn("or", left, right) }

func Not(expr Expression) *UnresolvedFunction { return Fn("not", expr) }

func (f *UnresolvedFunction) String() string {
	args := make([]string, 0, len(f.Args))
	for _, a := range f.Args {
		args = append(args, a.String())
	}
	if f.Distinct {
		return fmt.Sprintf("%s(DISTINCT %s)", f.Name, strings.Join(args, ", "))
	}
	return fmt.Sprintf("%s(%s)", f.Name, strings.Join(args, ", "))
}

func (f *UnresolvedFunction) isExpression() {}

// Alias names the result of an expression.
type Alias struct {
	Expr Expression
	Name string
}

var _ Expression = (*Alias)(nil)

// NewAlias creates an alias over expr.
func NewAlias(expr Expression, name string) *Alias {
	return &Alias{Expr: expr, Name: name}
}

func (a *Alias) String() string {
	return fmt.Sprintf("%s AS %s", a.Expr, a.Name)
}

func (a *Alias) isExpression() {}

// Cast converts an expression to a target data type.
type Cast struct {
	Expr Expression
	Type types.DataType
}

var _ Expression = (*Cast)(nil)

// NewCast creates a cast of expr to the given type.
func NewCast(expr Expression, to types.DataType) *Cast {
	return &Cast{Expr: expr, Type: to}
}

func (c *Cast) String() string {
	return fmt.Sprintf("CAST(%s AS %s)", c.Expr, c.Type)
}

func (c *Cast) isExpression() {}

// SortOrder pairs an expression with a sort direction and null ordering.
// Only valid inside Sort relations and window specifications.
type SortOrder struct {
	Expr         Expression
	Direction    types.SortDirection
	NullOrdering types.NullOrdering
}

var _ Expression = (*SortOrder)(nil)

// Asc creates an ascending sort order with nulls first.
func Asc(expr Expression) *SortOrder {
	return &SortOrder{Expr: expr, Direction: types.SortDirectionAscending, NullOrdering: types.NullOrderingNullsFirst}
}

// Desc creates a descending sort order with nulls last.
func Desc(expr Expression) *SortOrder {
	return &SortOrder{Expr: expr, Direction: types.SortDirectionDescending, NullOrdering: types.NullOrderingNullsLast}
}

func (s *SortOrder) String() string {
	return fmt.Sprintf("%s %s %s", s.Expr, s.Direction, s.NullOrdering)
}

func (s *SortOrder) isExpression() {}

// WindowFrame bounds a window in rows or range relative to the current row.
// Lower and Upper are offsets; the Unbounded flags override them.
type WindowFrame struct {
	RowFrame       bool // Row-based frame rather than range-based.
	LowerUnbounded bool
	Lower          int64
	UpperUnbounded bool
	Upper          int64
}

// Window evaluates a function over a partitioned, ordered window of the
// input.
type Window struct {
	Fn          Expression
	PartitionBy []Expression
	OrderBy     []*SortOrder
	Frame       *WindowFrame
}

var _ Expression = (*Window)(nil)

// NewWindow creates a window expression over fn.
func NewWindow(fn Expression, partitionBy []Expression, orderBy []*SortOrder, frame *WindowFrame) *Window {
	return &Window{Fn: fn, PartitionBy: partitionBy, OrderBy: orderBy, Frame: frame}
}

func (w *Window) String() string {
	return fmt.Sprintf("%s OVER (...)", w.Fn)
}

func (w *Window) isExpression() {}
