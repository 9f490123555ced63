package plan

import (
	"github.com/irfanghat/spark-connect-go/pkg/sparkerrors"
)

// Project evaluates a list of expressions against each input row, producing
// one output column per expression.
type Project struct {
	relationBase

	Input Relation
	Exprs []Expression
}

var _ Relation = (*Project)(nil)

// Project creates a projection of the given expressions over input.
func (b *Builder) Project(input Relation, exprs ...Expression) (*Project, error) {
	if err := requireChild("project", input); err != nil {
		return nil, err
	}
	if err := requireExprs("project", exprs); err != nil {
		return nil, err
	}
	return &Project{relationBase: b.base(), Input: input, Exprs: exprs}, nil
}

func (r *Project) Children() []Relation { return []Relation{r.Input} }

// WithColumns adds or replaces columns of the input. Each alias names the
// column to add; an existing column of the same name is replaced.
type WithColumns struct {
	relationBase

	Input   Relation
	Aliases []*Alias
}

var _ Relation = (*WithColumns)(nil)

// WithColumns creates a relation extending input with the aliased columns.
func (b *Builder) WithColumns(input Relation, aliases ...*Alias) (*WithColumns, error) {
	if err := requireChild("with_columns", input); err != nil {
		return nil, err
	}
	if len(aliases) == 0 {
		return nil, sparkerrors.Malformed("with_columns", "at least one column required, got 0")
	}
	for i, a := range aliases {
		if a == nil {
			return nil, sparkerrors.Malformed("with_columns", "column %d must not be nil", i)
		}
		if a.Name == "" {
			return nil, sparkerrors.Malformed("with_columns", "column %d must have a name", i)
		}
	}
	return &WithColumns{relationBase: b.base(), Input: input, Aliases: aliases}, nil
}

func (r *WithColumns) Children() []Relation { return []Relation{r.Input} }

// WithColumnsRenamed renames columns of the input. Renames maps existing
// column names to their new names; columns absent from the map pass through
// unchanged.
type WithColumnsRenamed struct {
	relationBase

	Input   Relation
	Renames map[string]string
}

var _ Relation = (*WithColumnsRenamed)(nil)

// WithColumnsRenamed creates a relation renaming columns of input.
func (b *Builder) WithColumnsRenamed(input Relation, renames map[string]string) (*WithColumnsRenamed, error) {
	if err := requireChild("with_columns_renamed", input); err != nil {
		return nil, err
	}
	if len(renames) == 0 {
		return nil, sparkerrors.Malformed("with_columns_renamed", "at least one rename required, got 0")
	}
	copied := make(map[string]string, len(renames))
	for from, to := range renames {
		if from == "" || to == "" {
			return nil, sparkerrors.Malformed("with_columns_renamed", "rename %q -> %q must not have empty names", from, to)
		}
		copied[from] = to
	}
	return &WithColumnsRenamed{relationBase: b.base(), Input: input, Renames: copied}, nil
}

func (r *WithColumnsRenamed) Children() []Relation { return []Relation{r.Input} }

// Drop removes the named columns from the input. Unknown names are ignored
// by the server.
type Drop struct {
	relationBase

	Input   Relation
	Columns []string
}

var _ Relation = (*Drop)(nil)

// Drop creates a relation removing the named columns from input.
func (b *Builder) Drop(input Relation, columns ...string) (*Drop, error) {
	if err := requireChild("drop", input); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, sparkerrors.Malformed("drop", "at least one column required, got 0")
	}
	for i, c := range columns {
		if c == "" {
			return nil, sparkerrors.Malformed("drop", "column %d must not be empty", i)
		}
	}
	return &Drop{relationBase: b.base(), Input: input, Columns: columns}, nil
}

func (r *Drop) Children() []Relation { return []Relation{r.Input} }

// ToDF renames every column of the input positionally. The name count must
// match the input's column count; the server rejects a mismatch.
type ToDF struct {
	relationBase

	Input Relation
	Names []string
}

var _ Relation = (*ToDF)(nil)

// ToDF creates a relation renaming all columns of input in order.
func (b *Builder) ToDF(input Relation, names ...string) (*ToDF, error) {
	if err := requireChild("to_df", input); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, sparkerrors.Malformed("to_df", "at least one column name required, got 0")
	}
	for i, n := range names {
		if n == "" {
			return nil, sparkerrors.Malformed("to_df", "column name %d must not be empty", i)
		}
	}
	return &ToDF{relationBase: b.base(), Input: input, Names: names}, nil
}

func (r *ToDF) Children() []Relation { return []Relation{r.Input} }
