package types

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// Field is one named column of a [Schema] or struct type.
type Field struct {
	Name     string
	Type     DataType
	Nullable bool
}

// Equal reports whether two fields are identical.
func (f Field) Equal(other Field) bool {
	return f.Name == other.Name && f.Nullable == other.Nullable && f.Type.Equal(other.Type)
}

// Schema describes the tabular structure of a relation.
type Schema struct {
	Fields []Field
}

// NewSchema creates a new schema from the given fields.
func NewSchema(fields ...Field) Schema {
	return Schema{Fields: fields}
}

// Equal reports whether two schemas have identical fields in identical order.
func (s Schema) Equal(other Schema) bool {
	if len(s.Fields) != len(other.Fields) {
		return false
	}
	for i := range s.Fields {
		if !s.Fields[i].Equal(other.Fields[i]) {
			return false
		}
	}
	return true
}

// FieldByName returns the first field with the given name.
func (s Schema) FieldByName(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// String returns a compact representation, e.g. "schema<y:int64,name:string>".
func (s Schema) String() string {
	parts := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", f.Name, f.Type))
	}
	return fmt.Sprintf("schema<%s>", strings.Join(parts, ","))
}

// ToArrow converts the schema into an Arrow schema.
func (s Schema) ToArrow() (*arrow.Schema, error) {
	fields := make([]arrow.Field, 0, len(s.Fields))
	for _, f := range s.Fields {
		ft, err := f.Type.ToArrow()
		if err != nil {
			return nil, err
		}
		fields = append(fields, arrow.Field{Name: f.Name, Type: ft, Nullable: f.Nullable})
	}
	return arrow.NewSchema(fields, nil), nil
}

// SchemaFromArrow converts an Arrow schema into a Schema.
func SchemaFromArrow(as *arrow.Schema) (Schema, error) {
	fields := make([]Field, 0, len(as.Fields()))
	for _, af := range as.Fields() {
		ft, err := FromArrow(af.Type)
		if err != nil {
			return Schema{}, err
		}
		fields = append(fields, Field{Name: af.Name, Type: ft, Nullable: af.Nullable})
	}
	return NewSchema(fields...), nil
}
