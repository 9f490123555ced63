package plan

import "bytes"

// Equal reports whether two relation trees are structurally identical,
// ignoring plan ids. Plan ids are process-unique by design, so two trees
// built independently from the same operations compare equal.
func Equal(a, b Relation) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch a := a.(type) {
	case *Read:
		b, ok := b.(*Read)
		return ok && a.Table == b.Table && a.Format == b.Format && stringMapEqual(a.Options, b.Options)
	case *Range:
		b, ok := b.(*Range)
		return ok && a.Start == b.Start && a.End == b.End && a.Step == b.Step && a.NumPartitions == b.NumPartitions
	case *LocalRelation:
		b, ok := b.(*LocalRelation)
		return ok && a.Schema.Equal(b.Schema) && rowsEqual(a.Rows, b.Rows)
	case *SQL:
		b, ok := b.(*SQL)
		return ok && a.Query == b.Query && anyMapEqual(a.Args, b.Args)
	case *Project:
		b, ok := b.(*Project)
		return ok && Equal(a.Input, b.Input) && exprsEqual(a.Exprs, b.Exprs)
	case *WithColumns:
		b, ok := b.(*WithColumns)
		if !ok || !Equal(a.Input, b.Input) || len(a.Aliases) != len(b.Aliases) {
			return false
		}
		for i := range a.Aliases {
			if !ExprEqual(a.Aliases[i], b.Aliases[i]) {
				return false
			}
		}
		return true
	case *WithColumnsRenamed:
		b, ok := b.(*WithColumnsRenamed)
		return ok && Equal(a.Input, b.Input) && stringMapEqual(a.Renames, b.Renames)
	case *Drop:
		b, ok := b.(*Drop)
		return ok && Equal(a.Input, b.Input) && stringsEqual(a.Columns, b.Columns)
	case *ToDF:
		b, ok := b.(*ToDF)
		return ok && Equal(a.Input, b.Input) && stringsEqual(a.Names, b.Names)
	case *Filter:
		b, ok := b.(*Filter)
		return ok && Equal(a.Input, b.Input) && ExprEqual(a.Condition, b.Condition)
	case *Deduplicate:
		b, ok := b.(*Deduplicate)
		return ok && Equal(a.Input, b.Input) && a.AllColumns == b.AllColumns && stringsEqual(a.Columns, b.Columns)
	case *Sample:
		b, ok := b.(*Sample)
		return ok && Equal(a.Input, b.Input) &&
			a.LowerBound == b.LowerBound && a.UpperBound == b.UpperBound &&
			a.WithReplacement == b.WithReplacement && a.Seed == b.Seed
	case *Join:
		b, ok := b.(*Join)
		return ok && Equal(a.Left, b.Left) && Equal(a.Right, b.Right) &&
			a.JoinType == b.JoinType && ExprEqual(a.Condition, b.Condition) &&
			stringsEqual(a.UsingColumns, b.UsingColumns)
	case *SetOp:
		b, ok := b.(*SetOp)
		return ok && Equal(a.Left, b.Left) && Equal(a.Right, b.Right) &&
			a.Op == b.Op && a.ByName == b.ByName && a.All == b.All
	case *Aggregate:
		b, ok := b.(*Aggregate)
		return ok && Equal(a.Input, b.Input) && a.GroupType == b.GroupType &&
			exprsEqual(a.Groupings, b.Groupings) && exprsEqual(a.Aggregates, b.Aggregates)
	case *Sort:
		b, ok := b.(*Sort)
		if !ok || !Equal(a.Input, b.Input) || a.IsGlobal != b.IsGlobal || len(a.Orders) != len(b.Orders) {
			return false
		}
		for i := range a.Orders {
			if !ExprEqual(a.Orders[i], b.Orders[i]) {
				return false
			}
		}
		return true
	case *Limit:
		b, ok := b.(*Limit)
		return ok && Equal(a.Input, b.Input) && a.N == b.N
	case *Offset:
		b, ok := b.(*Offset)
		return ok && Equal(a.Input, b.Input) && a.N == b.N
	case *Tail:
		b, ok := b.(*Tail)
		return ok && Equal(a.Input, b.Input) && a.N == b.N
	default:
		return false
	}
}

// ExprEqual reports whether two expression trees are structurally identical.
func ExprEqual(a, b Expression) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch a := a.(type) {
	case *Literal:
		b, ok := b.(*Literal)
		return ok && valueEqual(a.Value, b.Value)
	case *ColumnRef:
		b, ok := b.(*ColumnRef)
		return ok && stringsEqual(a.Parts, b.Parts)
	case *Star:
		b, ok := b.(*Star)
		return ok && a.Target == b.Target
	case *UnresolvedFunction:
		b, ok := b.(*UnresolvedFunction)
		return ok && a.Name == b.Name && a.Distinct == b.Distinct && exprsEqual(a.Args, b.Args)
	case *Alias:
		b, ok := b.(*Alias)
		return ok && a.Name == b.Name && ExprEqual(a.Expr, b.Expr)
	case *Cast:
		b, ok := b.(*Cast)
		return ok && a.Type.Equal(b.Type) && ExprEqual(a.Expr, b.Expr)
	case *SortOrder:
		b, ok := b.(*SortOrder)
		return ok && a.Direction == b.Direction && a.NullOrdering == b.NullOrdering && ExprEqual(a.Expr, b.Expr)
	case *Window:
		b, ok := b.(*Window)
		if !ok || !ExprEqual(a.Fn, b.Fn) || !exprsEqual(a.PartitionBy, b.PartitionBy) || len(a.OrderBy) != len(b.OrderBy) {
			return false
		}
		for i := range a.OrderBy {
			if !ExprEqual(a.OrderBy[i], b.OrderBy[i]) {
				return false
			}
		}
		if (a.Frame == nil) != (b.Frame == nil) {
			return false
		}
		return a.Frame == nil || *a.Frame == *b.Frame
	default:
		return false
	}
}

func exprsEqual(a, b []Expression) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !ExprEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func stringMapEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func anyMapEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || !valueEqual(v, bv) {
			return false
		}
	}
	return true
}

func rowsEqual(a, b [][]any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if !valueEqual(a[i][j], b[i][j]) {
				return false
			}
		}
	}
	return true
}

// valueEqual compares literal values. Byte slices are the only supported
// value kind that == cannot compare.
func valueEqual(a, b any) bool {
	if ab, ok := a.([]byte); ok {
		bb, ok := b.([]byte)
		return ok && bytes.Equal(ab, bb)
	}
	if _, ok := b.([]byte); ok {
		return false
	}
	return a == b
}
