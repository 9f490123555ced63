package types

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// DataTypeKind denotes the kind of a [DataType].
type DataTypeKind int

// Recognized values of [DataTypeKind].
const (
	// DataTypeInvalid indicates an invalid data type.
	DataTypeInvalid DataTypeKind = iota

	DataTypeNull      // Untyped NULL.
	DataTypeBool      // Boolean value.
	DataTypeInt8      // Signed 8bit integer value.
	DataTypeInt16     // Signed 16bit integer value.
	DataTypeInt32     // Signed 32bit integer value.
	DataTypeInt64     // Signed 64bit integer value.
	DataTypeFloat32   // 32bit floating point value.
	DataTypeFloat64   // 64bit floating point value.
	DataTypeString    // UTF-8 string value.
	DataTypeBinary    // Byte-slice value.
	DataTypeDate      // Days since the Unix epoch.
	DataTypeTimestamp // Microseconds since the Unix epoch.
	DataTypeDecimal   // Fixed-precision decimal value.
	DataTypeArray     // Variable-length list of a single element type.
	DataTypeMap       // Key/value pairs of fixed key and value types.
	DataTypeStruct    // Named fields of heterogeneous types.
)

var dataTypeKindStrings = map[DataTypeKind]string{
	DataTypeInvalid: "invalid",

	DataTypeNull:      "null",
	DataTypeBool:      "bool",
	DataTypeInt8:      "int8",
	DataTypeInt16:     "int16",
	DataTypeInt32:     "int32",
	DataTypeInt64:     "int64",
	DataTypeFloat32:   "float32",
	DataTypeFloat64:   "float64",
	DataTypeString:    "string",
	DataTypeBinary:    "binary",
	DataTypeDate:      "date",
	DataTypeTimestamp: "timestamp",
	DataTypeDecimal:   "decimal",
	DataTypeArray:     "array",
	DataTypeMap:       "map",
	DataTypeStruct:    "struct",
}

// String returns the string representation of the DataTypeKind.
func (k DataTypeKind) String() string {
	if s, ok := dataTypeKindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("DataTypeKind(%d)", k)
}

var dataTypeKindValues = func() map[string]DataTypeKind {
	m := make(map[string]DataTypeKind, len(dataTypeKindStrings))
	for k, s := range dataTypeKindStrings {
		m[s] = k
	}
	return m
}()

// ParseDataTypeKind returns the kind named by s, or DataTypeInvalid when s
// names no known kind.
func ParseDataTypeKind(s string) DataTypeKind {
	if k, ok := dataTypeKindValues[s]; ok {
		return k
	}
	return DataTypeInvalid
}

// DataType describes the type of a column or literal. Scalar kinds use only
// Kind; Array uses Elem, Map uses Key and Elem, Struct uses Fields, and
// Decimal uses Precision and Scale.
//
// DataType values are immutable once constructed and safe to share.
type DataType struct {
	Kind DataTypeKind

	Elem      *DataType // Element type for Array, value type for Map.
	Key       *DataType // Key type for Map.
	Fields    []Field   // Field list for Struct.
	Precision int32     // Total digits for Decimal.
	Scale     int32     // Fractional digits for Decimal.
}

// Scalar type singletons for the kinds that carry no parameters.
var (
	Null      = DataType{Kind: DataTypeNull}
	Bool      = DataType{Kind: DataTypeBool}
	Int8      = DataType{Kind: DataTypeInt8}
	Int16     = DataType{Kind: DataTypeInt16}
	Int32     = DataType{Kind: DataTypeInt32}
	Int64     = DataType{Kind: DataTypeInt64}
	Float32   = DataType{Kind: DataTypeFloat32}
	Float64   = DataType{Kind: DataTypeFloat64}
	String    = DataType{Kind: DataTypeString}
	Binary    = DataType{Kind: DataTypeBinary}
	Date      = DataType{Kind: DataTypeDate}
	Timestamp = DataType{Kind: DataTypeTimestamp}
)

// ArrayOf returns the type of an array with the given element type.
func ArrayOf(elem DataType) DataType {
	return DataType{Kind: DataTypeArray, Elem: &elem}
}

// MapOf returns the type of a map with the given key and value types.
func MapOf(key, value DataType) DataType {
	return DataType{Kind: DataTypeMap, Key: &key, Elem: &value}
}

// StructOf returns the type of a struct with the given fields.
func StructOf(fields ...Field) DataType {
	return DataType{Kind: DataTypeStruct, Fields: fields}
}

// DecimalOf returns a decimal type with the given precision and scale.
func DecimalOf(precision, scale int32) DataType {
	return DataType{Kind: DataTypeDecimal, Precision: precision, Scale: scale}
}

// Equal reports whether two data types are structurally identical.
func (t DataType) Equal(other DataType) bool {
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case DataTypeDecimal:
		return t.Precision == other.Precision && t.Scale == other.Scale
	case DataTypeArray:
		return t.Elem.Equal(*other.Elem)
	case DataTypeMap:
		return t.Key.Equal(*other.Key) && t.Elem.Equal(*other.Elem)
	case DataTypeStruct:
		if len(t.Fields) != len(other.Fields) {
			return false
		}
		for i := range t.Fields {
			if !t.Fields[i].Equal(other.Fields[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String returns a compact type name, e.g. "array<int64>" or
// "struct<a:int64,b:string>".
func (t DataType) String() string {
	switch t.Kind {
	case DataTypeDecimal:
		return fmt.Sprintf("decimal(%d,%d)", t.Precision, t.Scale)
	case DataTypeArray:
		return fmt.Sprintf("array<%s>", t.Elem)
	case DataTypeMap:
		return fmt.Sprintf("map<%s,%s>", t.Key, t.Elem)
	case DataTypeStruct:
		parts := make([]string, 0, len(t.Fields))
		for _, f := range t.Fields {
			parts = append(parts, fmt.Sprintf("%s:%s", f.Name, f.Type))
		}
		return fmt.Sprintf("struct<%s>", strings.Join(parts, ","))
	default:
		return t.Kind.String()
	}
}

// ToArrow converts the data type into its Arrow equivalent.
func (t DataType) ToArrow() (arrow.DataType, error) {
	switch t.Kind {
	case DataTypeNull:
		return arrow.Null, nil
	case DataTypeBool:
		return arrow.FixedWidthTypes.Boolean, nil
	case DataTypeInt8:
		return arrow.PrimitiveTypes.Int8, nil
	case DataTypeInt16:
		return arrow.PrimitiveTypes.Int16, nil
	case DataTypeInt32:
		return arrow.PrimitiveTypes.Int32, nil
	case DataTypeInt64:
		return arrow.PrimitiveTypes.Int64, nil
	case DataTypeFloat32:
		return arrow.PrimitiveTypes.Float32, nil
	case DataTypeFloat64:
		return arrow.PrimitiveTypes.Float64, nil
	case DataTypeString:
		return arrow.BinaryTypes.String, nil
	case DataTypeBinary:
		return arrow.BinaryTypes.Binary, nil
	case DataTypeDate:
		return arrow.FixedWidthTypes.Date32, nil
	case DataTypeTimestamp:
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}, nil
	case DataTypeDecimal:
		return &arrow.Decimal128Type{Precision: t.Precision, Scale: t.Scale}, nil
	case DataTypeArray:
		elem, err := t.Elem.ToArrow()
		if err != nil {
			return nil, err
		}
		return arrow.ListOf(elem), nil
	case DataTypeMap:
		key, err := t.Key.ToArrow()
		if err != nil {
			return nil, err
		}
		value, err := t.Elem.ToArrow()
		if err != nil {
			return nil, err
		}
		return arrow.MapOf(key, value), nil
	case DataTypeStruct:
		fields := make([]arrow.Field, 0, len(t.Fields))
		for _, f := range t.Fields {
			ft, err := f.Type.ToArrow()
			if err != nil {
				return nil, err
			}
			fields = append(fields, arrow.Field{Name: f.Name, Type: ft, Nullable: f.Nullable})
		}
		return arrow.StructOf(fields...), nil
	default:
		return nil, fmt.Errorf("no arrow equivalent for data type %s", t)
	}
}

// FromArrow converts an Arrow data type into its DataType equivalent.
func FromArrow(dt arrow.DataType) (DataType, error) {
	switch dt := dt.(type) {
	case *arrow.NullType:
		return Null, nil
	case *arrow.BooleanType:
		return Bool, nil
	case *arrow.Int8Type:
		return Int8, nil
	case *arrow.Int16Type:
		return Int16, nil
	case *arrow.Int32Type:
		return Int32, nil
	case *arrow.Int64Type:
		return Int64, nil
	case *arrow.Float32Type:
		return Float32, nil
	case *arrow.Float64Type:
		return Float64, nil
	case *arrow.StringType:
		return String, nil
	case *arrow.BinaryType:
		return Binary, nil
	case *arrow.Date32Type:
		return Date, nil
	case *arrow.TimestampType:
		return Timestamp, nil
	case *arrow.Decimal128Type:
		return DecimalOf(dt.Precision, dt.Scale), nil
	case *arrow.ListType:
		elem, err := FromArrow(dt.Elem())
		if err != nil {
			return DataType{}, err
		}
		return ArrayOf(elem), nil
	case *arrow.MapType:
		key, err := FromArrow(dt.KeyType())
		if err != nil {
			return DataType{}, err
		}
		value, err := FromArrow(dt.ItemType())
		if err != nil {
			return DataType{}, err
		}
		return MapOf(key, value), nil
	case *arrow.StructType:
		fields := make([]Field, 0, dt.NumFields())
		for i := 0; i < dt.NumFields(); i++ {
			af := dt.Field(i)
			ft, err := FromArrow(af.Type)
			if err != nil {
				return DataType{}, err
			}
			fields = append(fields, Field{Name: af.Name, Type: ft, Nullable: af.Nullable})
		}
		return StructOf(fields...), nil
	default:
		return DataType{}, fmt.Errorf("no data type equivalent for arrow type %s", dt)
	}
}
