package wire

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/irfanghat/spark-connect-go/pkg/types"
)

// DataTypeToProto converts a data type into its wire form: a struct tagged
// with the kind name plus the kind's parameters.
func DataTypeToProto(t types.DataType) *structpb.Value {
	fields := map[string]*structpb.Value{
		"kind": structpb.NewStringValue(t.Kind.String()),
	}
	switch t.Kind {
	case types.DataTypeDecimal:
		fields["precision"] = structpb.NewNumberValue(float64(t.Precision))
		fields["scale"] = structpb.NewNumberValue(float64(t.Scale))
	case types.DataTypeArray:
		fields["elem"] = DataTypeToProto(*t.Elem)
	case types.DataTypeMap:
		fields["key"] = DataTypeToProto(*t.Key)
		fields["value"] = DataTypeToProto(*t.Elem)
	case types.DataTypeStruct:
		fields["fields"] = fieldsToProto(t.Fields)
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: fields})
}

// DataTypeFromProto converts the wire form of a data type back.
func DataTypeFromProto(v *structpb.Value) (types.DataType, error) {
	s := v.GetStructValue()
	if s == nil {
		return types.DataType{}, errors.New("data type is not a struct")
	}
	kind := types.ParseDataTypeKind(getString(s, "kind"))
	if kind == types.DataTypeInvalid {
		return types.DataType{}, errors.Errorf("unknown data type kind %q", getString(s, "kind"))
	}
	switch kind {
	case types.DataTypeDecimal:
		return types.DecimalOf(int32(getNumber(s, "precision")), int32(getNumber(s, "scale"))), nil
	case types.DataTypeArray:
		elem, err := DataTypeFromProto(s.GetFields()["elem"])
		if err != nil {
			return types.DataType{}, errors.Wrap(err, "array element type")
		}
		return types.ArrayOf(elem), nil
	case types.DataTypeMap:
		key, err := DataTypeFromProto(s.GetFields()["key"])
		if err != nil {
			return types.DataType{}, errors.Wrap(err, "map key type")
		}
		value, err := DataTypeFromProto(s.GetFields()["value"])
		if err != nil {
			return types.DataType{}, errors.Wrap(err, "map value type")
		}
		return types.MapOf(key, value), nil
	case types.DataTypeStruct:
		fields, err := fieldsFromProto(getList(s, "fields"))
		if err != nil {
			return types.DataType{}, err
		}
		return types.StructOf(fields...), nil
	default:
		return types.DataType{Kind: kind}, nil
	}
}

// SchemaToProto converts a schema into its wire form.
func SchemaToProto(s types.Schema) *structpb.Value {
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"fields": fieldsToProto(s.Fields),
	}})
}

// SchemaFromProto converts the wire form of a schema back.
func SchemaFromProto(v *structpb.Value) (types.Schema, error) {
	s := v.GetStructValue()
	if s == nil {
		return types.Schema{}, errors.New("schema is not a struct")
	}
	fields, err := fieldsFromProto(getList(s, "fields"))
	if err != nil {
		return types.Schema{}, err
	}
	return types.NewSchema(fields...), nil
}

func fieldsToProto(fields []types.Field) *structpb.Value {
	values := make([]*structpb.Value, 0, len(fields))
	for _, f := range fields {
		values = append(values, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"name":     structpb.NewStringValue(f.Name),
			"type":     DataTypeToProto(f.Type),
			"nullable": structpb.NewBoolValue(f.Nullable),
		}}))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

func fieldsFromProto(values []*structpb.Value) ([]types.Field, error) {
	fields := make([]types.Field, 0, len(values))
	for i, v := range values {
		fs := v.GetStructValue()
		if fs == nil {
			return nil, errors.Errorf("field %d is not a struct", i)
		}
		ft, err := DataTypeFromProto(fs.GetFields()["type"])
		if err != nil {
			return nil, errors.Wrapf(err, "field %d", i)
		}
		fields = append(fields, types.Field{
			Name:     getString(fs, "name"),
			Type:     ft,
			Nullable: getBool(fs, "nullable"),
		})
	}
	return fields, nil
}
