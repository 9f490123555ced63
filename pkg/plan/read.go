package plan

import (
	"github.com/irfanghat/spark-connect-go/pkg/sparkerrors"
	"github.com/irfanghat/spark-connect-go/pkg/types"
)

// Read scans a named table or a data source. A Read is a leaf: it has no
// child relations.
type Read struct {
	relationBase

	Table   string            // Identifier of the table to scan.
	Format  string            // Optional data source format, e.g. "parquet".
	Options map[string]string // Data source options.
}

var _ Relation = (*Read)(nil)

// Read creates a scan of the named table.
func (b *Builder) Read(table string) (*Read, error) {
	if table == "" {
		return nil, sparkerrors.Malformed("read", "table name must not be empty")
	}
	return &Read{relationBase: b.base(), Table: table}, nil
}

// ReadSource creates a scan of a data source with the given format and
// options.
func (b *Builder) ReadSource(format string, options map[string]string) (*Read, error) {
	if format == "" {
		return nil, sparkerrors.Malformed("read", "data source format must not be empty")
	}
	opts := make(map[string]string, len(options))
	for k, v := range options {
		opts[k] = v
	}
	return &Read{relationBase: b.base(), Format: format, Options: opts}, nil
}

func (r *Read) Children() []Relation { return nil }

// Range produces the integers [Start, End) with the given step, like a
// generated sequence table.
type Range struct {
	relationBase

	Start         int64
	End           int64
	Step          int64
	NumPartitions int32
}

var _ Relation = (*Range)(nil)

// Range creates a generated integer sequence relation.
func (b *Builder) Range(start, end, step int64, numPartitions int32) (*Range, error) {
	if step == 0 {
		return nil, sparkerrors.Malformed("range", "step must not be zero")
	}
	if numPartitions < 0 {
		return nil, sparkerrors.Malformed("range", "numPartitions must not be negative, got %d", numPartitions)
	}
	return &Range{relationBase: b.base(), Start: start, End: end, Step: step, NumPartitions: numPartitions}, nil
}

func (r *Range) Children() []Relation { return nil }

// LocalRelation is an inline literal relation: a schema plus row values known
// on the client. Rows are stored row-major; each row must have one value per
// schema field.
type LocalRelation struct {
	relationBase

	Schema types.Schema
	Rows   [][]any
}

var _ Relation = (*LocalRelation)(nil)

// LocalRelation creates an inline literal relation.
func (b *Builder) LocalRelation(schema types.Schema, rows [][]any) (*LocalRelation, error) {
	if len(schema.Fields) == 0 {
		return nil, sparkerrors.Malformed("local_relation", "schema must have at least one field")
	}
	for i, row := range rows {
		if len(row) != len(schema.Fields) {
			return nil, sparkerrors.Malformed("local_relation",
				"row %d has %d values, schema has %d fields", i, len(row), len(schema.Fields))
		}
	}
	return &LocalRelation{relationBase: b.base(), Schema: schema, Rows: rows}, nil
}

func (r *LocalRelation) Children() []Relation { return nil }

// SQL passes a query text through to the server unparsed, with optional named
// arguments bound as literals.
type SQL struct {
	relationBase

	Query string
	Args  map[string]any
}

var _ Relation = (*SQL)(nil)

// SQL creates a pass-through SQL relation.
func (b *Builder) SQL(query string, args map[string]any) (*SQL, error) {
	if query == "" {
		return nil, sparkerrors.Malformed("sql", "query must not be empty")
	}
	bound := make(map[string]any, len(args))
	for k, v := range args {
		bound[k] = v
	}
	return &SQL{relationBase: b.base(), Query: query, Args: bound}, nil
}

func (r *SQL) Children() []Relation { return nil }
