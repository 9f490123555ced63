// Package codec is the single translation boundary between the in-process
// plan IR and the wire format.
//
// Encoding is a recursive depth-first traversal with one exhaustive dispatch
// point per node family. It is deterministic: encoding the same tree twice
// yields byte-identical messages, which reproducible plan caching and
// byte-comparison tests rely on. Decoding exists for round-trip tooling and
// tests; decoded nodes are revalidated through the plan builder and receive
// fresh plan ids.
package codec

import (
	"encoding/base64"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/irfanghat/spark-connect-go/pkg/plan"
	"github.com/irfanghat/spark-connect-go/pkg/sparkerrors"
)

// Encode converts a relation tree into its wire form.
func Encode(r plan.Relation) (*structpb.Struct, error) {
	if r == nil {
		return nil, sparkerrors.Malformed("encode", "relation must not be nil")
	}
	v, err := encodeRelation(r)
	if err != nil {
		return nil, err
	}
	return v.GetStructValue(), nil
}

// EncodeBytes encodes a relation tree and marshals it deterministically.
func EncodeBytes(r plan.Relation) ([]byte, error) {
	s, err := Encode(r)
	if err != nil {
		return nil, err
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(s)
}

func encodeRelation(r plan.Relation) (*structpb.Value, error) {
	fields := map[string]*structpb.Value{
		"plan_id": structpb.NewNumberValue(float64(r.PlanID())),
	}
	put := func(key string, v *structpb.Value) { fields[key] = v }
	putStr := func(key, v string) { fields[key] = structpb.NewStringValue(v) }
	putNum := func(key string, v float64) { fields[key] = structpb.NewNumberValue(v) }
	putBool := func(key string, v bool) { fields[key] = structpb.NewBoolValue(v) }

	child := func(key string, c plan.Relation) error {
		v, err := encodeRelation(c)
		if err != nil {
			return err
		}
		put(key, v)
		return nil
	}
	exprList := func(key string, exprs []plan.Expression) error {
		values := make([]*structpb.Value, 0, len(exprs))
		for _, e := range exprs {
			v, err := encodeExpression(e)
			if err != nil {
				return err
			}
			values = append(values, v)
		}
		put(key, structpb.NewListValue(&structpb.ListValue{Values: values}))
		return nil
	}

	switch r := r.(type) {
	case *plan.Read:
		putStr("kind", "read")
		putStr("table", r.Table)
		if r.Format != "" {
			putStr("format", r.Format)
		}
		if len(r.Options) > 0 {
			opts := make(map[string]*structpb.Value, len(r.Options))
			for k, v := range r.Options {
				opts[k] = structpb.NewStringValue(v)
			}
			put("options", structpb.NewStructValue(&structpb.Struct{Fields: opts}))
		}

	case *plan.Range:
		putStr("kind", "range")
		putNum("start", float64(r.Start))
		putNum("end", float64(r.End))
		putNum("step", float64(r.Step))
		putNum("num_partitions", float64(r.NumPartitions))

	case *plan.LocalRelation:
		putStr("kind", "local_relation")
		put("schema", schemaValue(r.Schema))
		rows := make([]*structpb.Value, 0, len(r.Rows))
		for i, row := range r.Rows {
			cells := make([]*structpb.Value, 0, len(row))
			for j, cell := range row {
				v, err := encodeLiteralValue(cell)
				if err != nil {
					return nil, wrapUnsupported(err, fmt.Sprintf("local_relation row %d column %d", i, j))
				}
				cells = append(cells, v)
			}
			rows = append(rows, structpb.NewListValue(&structpb.ListValue{Values: cells}))
		}
		put("rows", structpb.NewListValue(&structpb.ListValue{Values: rows}))

	case *plan.SQL:
		putStr("kind", "sql")
		putStr("query", r.Query)
		if len(r.Args) > 0 {
			args := make(map[string]*structpb.Value, len(r.Args))
			for k, v := range r.Args {
				ev, err := encodeLiteralValue(v)
				if err != nil {
					return nil, wrapUnsupported(err, fmt.Sprintf("sql argument %q", k))
				}
				args[k] = ev
			}
			put("args", structpb.NewStructValue(&structpb.Struct{Fields: args}))
		}

	case *plan.Project:
		putStr("kind", "project")
		if err := child("input", r.Input); err != nil {
			return nil, err
		}
		if err := exprList("exprs", r.Exprs); err != nil {
			return nil, err
		}

	case *plan.WithColumns:
		putStr("kind", "with_columns")
		if err := child("input", r.Input); err != nil {
			return nil, err
		}
		exprs := make([]plan.Expression, 0, len(r.Aliases))
		for _, a := range r.Aliases {
			exprs = append(exprs, a)
		}
		if err := exprList("aliases", exprs); err != nil {
			return nil, err
		}

	case *plan.WithColumnsRenamed:
		putStr("kind", "with_columns_renamed")
		if err := child("input", r.Input); err != nil {
			return nil, err
		}
		renames := make(map[string]*structpb.Value, len(r.Renames))
		for from, to := range r.Renames {
			renames[from] = structpb.NewStringValue(to)
		}
		put("renames", structpb.NewStructValue(&structpb.Struct{Fields: renames}))

	case *plan.Drop:
		putStr("kind", "drop")
		if err := child("input", r.Input); err != nil {
			return nil, err
		}
		put("columns", stringList(r.Columns))

	case *plan.ToDF:
		putStr("kind", "to_df")
		if err := child("input", r.Input); err != nil {
			return nil, err
		}
		put("names", stringList(r.Names))

	case *plan.Filter:
		putStr("kind", "filter")
		if err := child("input", r.Input); err != nil {
			return nil, err
		}
		cond, err := encodeExpression(r.Condition)
		if err != nil {
			return nil, err
		}
		put("condition", cond)

	case *plan.Deduplicate:
		putStr("kind", "deduplicate")
		if err := child("input", r.Input); err != nil {
			return nil, err
		}
		putBool("all_columns", r.AllColumns)
		if len(r.Columns) > 0 {
			put("columns", stringList(r.Columns))
		}

	case *plan.Sample:
		putStr("kind", "sample")
		if err := child("input", r.Input); err != nil {
			return nil, err
		}
		putNum("lower_bound", r.LowerBound)
		putNum("upper_bound", r.UpperBound)
		putBool("with_replacement", r.WithReplacement)
		putNum("seed", float64(r.Seed))

	case *plan.Join:
		putStr("kind", "join")
		if err := child("left", r.Left); err != nil {
			return nil, err
		}
		if err := child("right", r.Right); err != nil {
			return nil, err
		}
		putStr("join_type", r.JoinType.String())
		if r.Condition != nil {
			cond, err := encodeExpression(r.Condition)
			if err != nil {
				return nil, err
			}
			put("condition", cond)
		}
		if len(r.UsingColumns) > 0 {
			put("using_columns", stringList(r.UsingColumns))
		}

	case *plan.SetOp:
		putStr("kind", "set_op")
		if err := child("left", r.Left); err != nil {
			return nil, err
		}
		if err := child("right", r.Right); err != nil {
			return nil, err
		}
		putStr("set_op_type", r.Op.String())
		putBool("by_name", r.ByName)
		putBool("all", r.All)

	case *plan.Aggregate:
		putStr("kind", "aggregate")
		if err := child("input", r.Input); err != nil {
			return nil, err
		}
		putStr("group_type", r.GroupType.String())
		if err := exprList("groupings", r.Groupings); err != nil {
			return nil, err
		}
		if err := exprList("aggregates", r.Aggregates); err != nil {
			return nil, err
		}

	case *plan.Sort:
		putStr("kind", "sort")
		if err := child("input", r.Input); err != nil {
			return nil, err
		}
		putBool("is_global", r.IsGlobal)
		orders := make([]plan.Expression, 0, len(r.Orders))
		for _, o := range r.Orders {
			orders = append(orders, o)
		}
		if err := exprList("orders", orders); err != nil {
			return nil, err
		}

	case *plan.Limit:
		putStr("kind", "limit")
		if err := child("input", r.Input); err != nil {
			return nil, err
		}
		putNum("n", float64(r.N))

	case *plan.Offset:
		putStr("kind", "offset")
		if err := child("input", r.Input); err != nil {
			return nil, err
		}
		putNum("n", float64(r.N))

	case *plan.Tail:
		putStr("kind", "tail")
		if err := child("input", r.Input); err != nil {
			return nil, err
		}
		putNum("n", float64(r.N))

	default:
		return nil, sparkerrors.Malformed("encode", "invalid relation type: %T", r)
	}

	return structpb.NewStructValue(&structpb.Struct{Fields: fields}), nil
}

func encodeExpression(e plan.Expression) (*structpb.Value, error) {
	fields := map[string]*structpb.Value{}
	put := func(key string, v *structpb.Value) { fields[key] = v }
	putStr := func(key, v string) { fields[key] = structpb.NewStringValue(v) }

	switch e := e.(type) {
	case *plan.Literal:
		putStr("kind", "literal")
		v, err := encodeLiteralValue(e.Value)
		if err != nil {
			return nil, err
		}
		put("value", v)

	case *plan.ColumnRef:
		putStr("kind", "column_ref")
		put("parts", stringList(e.Parts))

	case *plan.Star:
		putStr("kind", "star")
		if e.Target != "" {
			putStr("target", e.Target)
		}

	case *plan.UnresolvedFunction:
		putStr("kind", "unresolved_function")
		putStr("name", e.Name)
		fields["distinct"] = structpb.NewBoolValue(e.Distinct)
		args := make([]*structpb.Value, 0, len(e.Args))
		for _, a := range e.Args {
			v, err := encodeExpression(a)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		put("args", structpb.NewListValue(&structpb.ListValue{Values: args}))

	case *plan.Alias:
		putStr("kind", "alias")
		putStr("name", e.Name)
		v, err := encodeExpression(e.Expr)
		if err != nil {
			return nil, err
		}
		put("expr", v)

	case *plan.Cast:
		putStr("kind", "cast")
		put("type", dataTypeValue(e.Type))
		v, err := encodeExpression(e.Expr)
		if err != nil {
			return nil, err
		}
		put("expr", v)

	case *plan.SortOrder:
		putStr("kind", "sort_order")
		putStr("direction", e.Direction.String())
		putStr("null_ordering", e.NullOrdering.String())
		v, err := encodeExpression(e.Expr)
		if err != nil {
			return nil, err
		}
		put("expr", v)

	case *plan.Window:
		putStr("kind", "window")
		fn, err := encodeExpression(e.Fn)
		if err != nil {
			return nil, err
		}
		put("fn", fn)
		partitions := make([]*structpb.Value, 0, len(e.PartitionBy))
		for _, p := range e.PartitionBy {
			v, err := encodeExpression(p)
			if err != nil {
				return nil, err
			}
			partitions = append(partitions, v)
		}
		put("partition_by", structpb.NewListValue(&structpb.ListValue{Values: partitions}))
		orders := make([]*structpb.Value, 0, len(e.OrderBy))
		for _, o := range e.OrderBy {
			v, err := encodeExpression(o)
			if err != nil {
				return nil, err
			}
			orders = append(orders, v)
		}
		put("order_by", structpb.NewListValue(&structpb.ListValue{Values: orders}))
		if e.Frame != nil {
			put("frame", structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
				"row_frame":       structpb.NewBoolValue(e.Frame.RowFrame),
				"lower_unbounded": structpb.NewBoolValue(e.Frame.LowerUnbounded),
				"lower":           structpb.NewNumberValue(float64(e.Frame.Lower)),
				"upper_unbounded": structpb.NewBoolValue(e.Frame.UpperUnbounded),
				"upper":           structpb.NewNumberValue(float64(e.Frame.Upper)),
			}}))
		}

	default:
		return nil, sparkerrors.Malformed("encode", "invalid expression type: %T", e)
	}

	return structpb.NewStructValue(&structpb.Struct{Fields: fields}), nil
}

// encodeLiteralValue maps a Go value onto a tagged wire value. The tag
// preserves the numeric type through the float64-based wire representation.
func encodeLiteralValue(v any) (*structpb.Value, error) {
	var (
		tag   string
		value *structpb.Value
	)
	switch v := v.(type) {
	case nil:
		tag, value = "null", structpb.NewNullValue()
	case bool:
		tag, value = "bool", structpb.NewBoolValue(v)
	case int:
		tag, value = "int64", structpb.NewNumberValue(float64(v))
	case int32:
		tag, value = "int32", structpb.NewNumberValue(float64(v))
	case int64:
		tag, value = "int64", structpb.NewNumberValue(float64(v))
	case float32:
		tag, value = "float32", structpb.NewNumberValue(float64(v))
	case float64:
		tag, value = "float64", structpb.NewNumberValue(v)
	case string:
		tag, value = "string", structpb.NewStringValue(v)
	case []byte:
		tag, value = "binary", structpb.NewStringValue(base64.StdEncoding.EncodeToString(v))
	default:
		return nil, &sparkerrors.UnsupportedTypeError{Node: "literal", Type: fmt.Sprintf("%T", v)}
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"type":  structpb.NewStringValue(tag),
		"value": value,
	}}), nil
}

// wrapUnsupported renames the offending node of an UnsupportedTypeError so
// the error points at the relation that carried the value.
func wrapUnsupported(err error, node string) error {
	if ute, ok := err.(*sparkerrors.UnsupportedTypeError); ok {
		return &sparkerrors.UnsupportedTypeError{Node: node, Type: ute.Type}
	}
	return err
}

func stringList(values []string) *structpb.Value {
	list := make([]*structpb.Value, 0, len(values))
	for _, v := range values {
		list = append(list, structpb.NewStringValue(v))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: list})
}
