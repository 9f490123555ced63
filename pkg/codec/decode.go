package codec

import (
	"encoding/base64"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/irfanghat/spark-connect-go/pkg/plan"
	"github.com/irfanghat/spark-connect-go/pkg/types"
	"github.com/irfanghat/spark-connect-go/pkg/wire"
)

func schemaValue(s types.Schema) *structpb.Value     { return wire.SchemaToProto(s) }
func dataTypeValue(t types.DataType) *structpb.Value { return wire.DataTypeToProto(t) }

// Decode converts the wire form of a plan back into a relation tree. Nodes
// pass back through the builder, so they are revalidated and receive fresh
// plan ids from gen.
func Decode(s *structpb.Struct, gen plan.IDGenerator) (plan.Relation, error) {
	return decodeRelation(s, plan.NewBuilder(gen))
}

func decodeRelation(s *structpb.Struct, b *plan.Builder) (plan.Relation, error) {
	if s == nil {
		return nil, errors.New("relation is not a struct")
	}
	kind := fieldString(s, "kind")

	child := func(key string) (plan.Relation, error) {
		cs := fieldStruct(s, key)
		if cs == nil {
			return nil, errors.Errorf("%s node is missing %s", kind, key)
		}
		return decodeRelation(cs, b)
	}

	switch kind {
	case "read":
		if format := fieldString(s, "format"); format != "" {
			options := map[string]string{}
			if opts := fieldStruct(s, "options"); opts != nil {
				for k, v := range opts.GetFields() {
					options[k] = v.GetStringValue()
				}
			}
			return b.ReadSource(format, options)
		}
		return b.Read(fieldString(s, "table"))

	case "range":
		return b.Range(
			int64(fieldNumber(s, "start")),
			int64(fieldNumber(s, "end")),
			int64(fieldNumber(s, "step")),
			int32(fieldNumber(s, "num_partitions")),
		)

	case "local_relation":
		schema, err := wire.SchemaFromProto(s.GetFields()["schema"])
		if err != nil {
			return nil, errors.Wrap(err, "decoding local_relation schema")
		}
		var rows [][]any
		for i, rv := range fieldList(s, "rows") {
			lv := rv.GetListValue()
			if lv == nil {
				return nil, errors.Errorf("local_relation row %d is not a list", i)
			}
			row := make([]any, 0, len(lv.GetValues()))
			for j, cell := range lv.GetValues() {
				v, err := decodeLiteralValue(cell)
				if err != nil {
					return nil, errors.Wrapf(err, "local_relation row %d column %d", i, j)
				}
				row = append(row, v)
			}
			rows = append(rows, row)
		}
		return b.LocalRelation(schema, rows)

	case "sql":
		var args map[string]any
		if as := fieldStruct(s, "args"); as != nil {
			args = make(map[string]any, len(as.GetFields()))
			for k, v := range as.GetFields() {
				dv, err := decodeLiteralValue(v)
				if err != nil {
					return nil, errors.Wrapf(err, "sql argument %q", k)
				}
				args[k] = dv
			}
		}
		return b.SQL(fieldString(s, "query"), args)

	case "project":
		input, err := child("input")
		if err != nil {
			return nil, err
		}
		exprs, err := decodeExpressions(fieldList(s, "exprs"))
		if err != nil {
			return nil, err
		}
		return b.Project(input, exprs...)

	case "with_columns":
		input, err := child("input")
		if err != nil {
			return nil, err
		}
		exprs, err := decodeExpressions(fieldList(s, "aliases"))
		if err != nil {
			return nil, err
		}
		aliases := make([]*plan.Alias, 0, len(exprs))
		for i, e := range exprs {
			a, ok := e.(*plan.Alias)
			if !ok {
				return nil, errors.Errorf("with_columns column %d is not an alias", i)
			}
			aliases = append(aliases, a)
		}
		return b.WithColumns(input, aliases...)

	case "with_columns_renamed":
		input, err := child("input")
		if err != nil {
			return nil, err
		}
		renames := map[string]string{}
		if rs := fieldStruct(s, "renames"); rs != nil {
			for k, v := range rs.GetFields() {
				renames[k] = v.GetStringValue()
			}
		}
		return b.WithColumnsRenamed(input, renames)

	case "drop":
		input, err := child("input")
		if err != nil {
			return nil, err
		}
		return b.Drop(input, fieldStrings(s, "columns")...)

	case "to_df":
		input, err := child("input")
		if err != nil {
			return nil, err
		}
		return b.ToDF(input, fieldStrings(s, "names")...)

	case "filter":
		input, err := child("input")
		if err != nil {
			return nil, err
		}
		cond, err := decodeExpression(s.GetFields()["condition"])
		if err != nil {
			return nil, err
		}
		return b.Filter(input, cond)

	case "deduplicate":
		input, err := child("input")
		if err != nil {
			return nil, err
		}
		return b.Deduplicate(input, fieldStrings(s, "columns")...)

	case "sample":
		input, err := child("input")
		if err != nil {
			return nil, err
		}
		return b.Sample(input,
			fieldNumber(s, "lower_bound"),
			fieldNumber(s, "upper_bound"),
			fieldBool(s, "with_replacement"),
			int64(fieldNumber(s, "seed")),
		)

	case "join":
		left, err := child("left")
		if err != nil {
			return nil, err
		}
		right, err := child("right")
		if err != nil {
			return nil, err
		}
		joinType := types.ParseJoinType(fieldString(s, "join_type"))
		if using := fieldStrings(s, "using_columns"); len(using) > 0 {
			return b.JoinUsing(left, right, joinType, using...)
		}
		var cond plan.Expression
		if cv, ok := s.GetFields()["condition"]; ok {
			cond, err = decodeExpression(cv)
			if err != nil {
				return nil, err
			}
		}
		return b.Join(left, right, joinType, cond)

	case "set_op":
		left, err := child("left")
		if err != nil {
			return nil, err
		}
		right, err := child("right")
		if err != nil {
			return nil, err
		}
		return b.SetOp(left, right,
			types.ParseSetOpType(fieldString(s, "set_op_type")),
			fieldBool(s, "by_name"),
			fieldBool(s, "all"),
		)

	case "aggregate":
		input, err := child("input")
		if err != nil {
			return nil, err
		}
		groupings, err := decodeExpressions(fieldList(s, "groupings"))
		if err != nil {
			return nil, err
		}
		aggregates, err := decodeExpressions(fieldList(s, "aggregates"))
		if err != nil {
			return nil, err
		}
		return b.Aggregate(input, types.ParseGroupType(fieldString(s, "group_type")), groupings, aggregates)

	case "sort":
		input, err := child("input")
		if err != nil {
			return nil, err
		}
		exprs, err := decodeExpressions(fieldList(s, "orders"))
		if err != nil {
			return nil, err
		}
		orders := make([]*plan.SortOrder, 0, len(exprs))
		for i, e := range exprs {
			o, ok := e.(*plan.SortOrder)
			if !ok {
				return nil, errors.Errorf("sort order %d is not a sort_order expression", i)
			}
			orders = append(orders, o)
		}
		if fieldBool(s, "is_global") {
			return b.Sort(input, orders...)
		}
		return b.SortWithinPartitions(input, orders...)

	case "limit":
		input, err := child("input")
		if err != nil {
			return nil, err
		}
		return b.Limit(input, int64(fieldNumber(s, "n")))

	case "offset":
		input, err := child("input")
		if err != nil {
			return nil, err
		}
		return b.Offset(input, int64(fieldNumber(s, "n")))

	case "tail":
		input, err := child("input")
		if err != nil {
			return nil, err
		}
		return b.Tail(input, int64(fieldNumber(s, "n")))

	default:
		return nil, errors.Errorf("unknown relation kind %q", kind)
	}
}

func decodeExpressions(values []*structpb.Value) ([]plan.Expression, error) {
	exprs := make([]plan.Expression, 0, len(values))
	for i, v := range values {
		e, err := decodeExpression(v)
		if err != nil {
			return nil, errors.Wrapf(err, "expression %d", i)
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

func decodeExpression(v *structpb.Value) (plan.Expression, error) {
	s := v.GetStructValue()
	if s == nil {
		return nil, errors.New("expression is not a struct")
	}
	kind := fieldString(s, "kind")
	switch kind {
	case "literal":
		value, err := decodeLiteralValue(s.GetFields()["value"])
		if err != nil {
			return nil, err
		}
		return plan.Lit(value), nil

	case "column_ref":
		return &plan.ColumnRef{Parts: fieldStrings(s, "parts")}, nil

	case "star":
		return &plan.Star{Target: fieldString(s, "target")}, nil

	case "unresolved_function":
		args, err := decodeExpressions(fieldList(s, "args"))
		if err != nil {
			return nil, err
		}
		return &plan.UnresolvedFunction{
			Name:     fieldString(s, "name"),
			Args:     args,
			Distinct: fieldBool(s, "distinct"),
		}, nil

	case "alias":
		expr, err := decodeExpression(s.GetFields()["expr"])
		if err != nil {
			return nil, err
		}
		return plan.NewAlias(expr, fieldString(s, "name")), nil

	case "cast":
		expr, err := decodeExpression(s.GetFields()["expr"])
		if err != nil {
			return nil, err
		}
		to, err := wire.DataTypeFromProto(s.GetFields()["type"])
		if err != nil {
			return nil, errors.Wrap(err, "decoding cast type")
		}
		return plan.NewCast(expr, to), nil

	case "sort_order":
		expr, err := decodeExpression(s.GetFields()["expr"])
		if err != nil {
			return nil, err
		}
		return &plan.SortOrder{
			Expr:         expr,
			Direction:    types.ParseSortDirection(fieldString(s, "direction")),
			NullOrdering: types.ParseNullOrdering(fieldString(s, "null_ordering")),
		}, nil

	case "window":
		fn, err := decodeExpression(s.GetFields()["fn"])
		if err != nil {
			return nil, err
		}
		partitionBy, err := decodeExpressions(fieldList(s, "partition_by"))
		if err != nil {
			return nil, err
		}
		orderExprs, err := decodeExpressions(fieldList(s, "order_by"))
		if err != nil {
			return nil, err
		}
		orderBy := make([]*plan.SortOrder, 0, len(orderExprs))
		for i, e := range orderExprs {
			o, ok := e.(*plan.SortOrder)
			if !ok {
				return nil, errors.Errorf("window order %d is not a sort_order expression", i)
			}
			orderBy = append(orderBy, o)
		}
		var frame *plan.WindowFrame
		if fs := fieldStruct(s, "frame"); fs != nil {
			frame = &plan.WindowFrame{
				RowFrame:       fieldBool(fs, "row_frame"),
				LowerUnbounded: fieldBool(fs, "lower_unbounded"),
				Lower:          int64(fieldNumber(fs, "lower")),
				UpperUnbounded: fieldBool(fs, "upper_unbounded"),
				Upper:          int64(fieldNumber(fs, "upper")),
			}
		}
		return plan.NewWindow(fn, partitionBy, orderBy, frame), nil

	default:
		return nil, errors.Errorf("unknown expression kind %q", kind)
	}
}

func decodeLiteralValue(v *structpb.Value) (any, error) {
	s := v.GetStructValue()
	if s == nil {
		return nil, errors.New("literal is not a struct")
	}
	value := s.GetFields()["value"]
	switch tag := fieldString(s, "type"); tag {
	case "null":
		return nil, nil
	case "bool":
		return value.GetBoolValue(), nil
	case "int32":
		return int32(value.GetNumberValue()), nil
	case "int64":
		return int64(value.GetNumberValue()), nil
	case "float32":
		return float32(value.GetNumberValue()), nil
	case "float64":
		return value.GetNumberValue(), nil
	case "string":
		return value.GetStringValue(), nil
	case "binary":
		return base64.StdEncoding.DecodeString(value.GetStringValue())
	default:
		return nil, errors.Errorf("unknown literal type %q", tag)
	}
}

func fieldString(s *structpb.Struct, key string) string {
	if f, ok := s.GetFields()[key]; ok {
		return f.GetStringValue()
	}
	return ""
}

func fieldBool(s *structpb.Struct, key string) bool {
	if f, ok := s.GetFields()[key]; ok {
		return f.GetBoolValue()
	}
	return false
}

func fieldNumber(s *structpb.Struct, key string) float64 {
	if f, ok := s.GetFields()[key]; ok {
		return f.GetNumberValue()
	}
	return 0
}

func fieldStruct(s *structpb.Struct, key string) *structpb.Struct {
	if f, ok := s.GetFields()[key]; ok {
		return f.GetStructValue()
	}
	return nil
}

func fieldList(s *structpb.Struct, key string) []*structpb.Value {
	if f, ok := s.GetFields()[key]; ok {
		if l := f.GetListValue(); l != nil {
			return l.GetValues()
		}
	}
	return nil
}

func fieldStrings(s *structpb.Struct, key string) []string {
	values := fieldList(s, key)
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.GetStringValue())
	}
	return out
}
