package wire

import (
	"google.golang.org/protobuf/types/known/structpb"
)

// Accessors tolerating absent fields, so decoding partial messages never
// panics. Zero values stand in for missing fields.

func getString(s *structpb.Struct, key string) string {
	if f, ok := s.GetFields()[key]; ok {
		return f.GetStringValue()
	}
	return ""
}

func getBool(s *structpb.Struct, key string) bool {
	if f, ok := s.GetFields()[key]; ok {
		return f.GetBoolValue()
	}
	return false
}

func getNumber(s *structpb.Struct, key string) float64 {
	if f, ok := s.GetFields()[key]; ok {
		return f.GetNumberValue()
	}
	return 0
}

func getStruct(s *structpb.Struct, key string) *structpb.Struct {
	if f, ok := s.GetFields()[key]; ok {
		return f.GetStructValue()
	}
	return nil
}

func getList(s *structpb.Struct, key string) []*structpb.Value {
	if f, ok := s.GetFields()[key]; ok {
		if l := f.GetListValue(); l != nil {
			return l.GetValues()
		}
	}
	return nil
}

func getStrings(s *structpb.Struct, key string) []string {
	values := getList(s, key)
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.GetStringValue())
	}
	return out
}

func stringsValue(values []string) *structpb.Value {
	list := make([]*structpb.Value, 0, len(values))
	for _, v := range values {
		list = append(list, structpb.NewStringValue(v))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: list})
}
