package wire

import (
	"google.golang.org/protobuf/types/known/structpb"
)

// Config operation names.
const (
	ConfigOpSet    = "set"
	ConfigOpGet    = "get"
	ConfigOpGetAll = "get_all"
	ConfigOpUnset  = "unset"
)

// ConfigRequest reads or writes session configuration on the service.
type ConfigRequest struct {
	SessionID   string
	UserContext UserContext
	ClientType  string

	Operation string
	Pairs     map[string]string // Key/value pairs for set.
	Keys      []string          // Keys for get and unset.
}

// ToProto converts the request into its wire envelope.
func (r *ConfigRequest) ToProto() *structpb.Struct {
	fields := map[string]*structpb.Value{
		"session_id":   structpb.NewStringValue(r.SessionID),
		"user_context": r.UserContext.ToProto(),
		"client_type":  structpb.NewStringValue(r.ClientType),
		"operation":    structpb.NewStringValue(r.Operation),
	}
	if len(r.Pairs) > 0 {
		pf := make(map[string]*structpb.Value, len(r.Pairs))
		for k, v := range r.Pairs {
			pf[k] = structpb.NewStringValue(v)
		}
		fields["pairs"] = structpb.NewStructValue(&structpb.Struct{Fields: pf})
	}
	if len(r.Keys) > 0 {
		fields["keys"] = stringsValue(r.Keys)
	}
	return &structpb.Struct{Fields: fields}
}

// ConfigRequestFromProto decodes the wire envelope of a config request.
func ConfigRequestFromProto(s *structpb.Struct) *ConfigRequest {
	req := &ConfigRequest{
		SessionID:   getString(s, "session_id"),
		UserContext: userContextFromProto(s.GetFields()["user_context"]),
		ClientType:  getString(s, "client_type"),
		Operation:   getString(s, "operation"),
		Keys:        getStrings(s, "keys"),
	}
	if pairs := getStruct(s, "pairs"); pairs != nil {
		req.Pairs = make(map[string]string, len(pairs.GetFields()))
		for k, v := range pairs.GetFields() {
			req.Pairs[k] = v.GetStringValue()
		}
	}
	return req
}

// ConfigResponse answers one config request.
type ConfigResponse struct {
	SessionID string
	Pairs     map[string]string
	Warnings  []string
	Error     *ServerError
}

// ToProto converts the response into its wire envelope.
func (r *ConfigResponse) ToProto() *structpb.Struct {
	fields := map[string]*structpb.Value{
		"session_id": structpb.NewStringValue(r.SessionID),
	}
	if len(r.Pairs) > 0 {
		pf := make(map[string]*structpb.Value, len(r.Pairs))
		for k, v := range r.Pairs {
			pf[k] = structpb.NewStringValue(v)
		}
		fields["pairs"] = structpb.NewStructValue(&structpb.Struct{Fields: pf})
	}
	if len(r.Warnings) > 0 {
		fields["warnings"] = stringsValue(r.Warnings)
	}
	if r.Error != nil {
		fields["error"] = r.Error.toProto()
	}
	return &structpb.Struct{Fields: fields}
}

// ConfigResponseFromProto decodes the wire envelope of a config response.
func ConfigResponseFromProto(s *structpb.Struct) *ConfigResponse {
	resp := &ConfigResponse{
		SessionID: getString(s, "session_id"),
		Warnings:  getStrings(s, "warnings"),
	}
	if pairs := getStruct(s, "pairs"); pairs != nil {
		resp.Pairs = make(map[string]string, len(pairs.GetFields()))
		for k, v := range pairs.GetFields() {
			resp.Pairs[k] = v.GetStringValue()
		}
	}
	if v, ok := s.GetFields()["error"]; ok {
		resp.Error = serverErrorFromProto(v)
	}
	return resp
}

// Interrupt type names.
const (
	InterruptAll         = "all"
	InterruptOperationID = "operation_id"
	InterruptTag         = "tag"
)

// InterruptRequest cancels running operations on the service: all of them,
// one by operation id, or all carrying a tag.
type InterruptRequest struct {
	SessionID   string
	UserContext UserContext
	ClientType  string

	InterruptType string
	OperationID   string // Set when InterruptType is operation_id.
	Tag           string // Set when InterruptType is tag.
}

// ToProto converts the request into its wire envelope.
func (r *InterruptRequest) ToProto() *structpb.Struct {
	fields := map[string]*structpb.Value{
		"session_id":     structpb.NewStringValue(r.SessionID),
		"user_context":   r.UserContext.ToProto(),
		"client_type":    structpb.NewStringValue(r.ClientType),
		"interrupt_type": structpb.NewStringValue(r.InterruptType),
	}
	if r.OperationID != "" {
		fields["operation_id"] = structpb.NewStringValue(r.OperationID)
	}
	if r.Tag != "" {
		fields["tag"] = structpb.NewStringValue(r.Tag)
	}
	return &structpb.Struct{Fields: fields}
}

// InterruptRequestFromProto decodes the wire envelope of an interrupt
// request.
func InterruptRequestFromProto(s *structpb.Struct) *InterruptRequest {
	return &InterruptRequest{
		SessionID:     getString(s, "session_id"),
		UserContext:   userContextFromProto(s.GetFields()["user_context"]),
		ClientType:    getString(s, "client_type"),
		InterruptType: getString(s, "interrupt_type"),
		OperationID:   getString(s, "operation_id"),
		Tag:           getString(s, "tag"),
	}
}

// InterruptResponse lists the operations the service interrupted.
type InterruptResponse struct {
	SessionID      string
	InterruptedIDs []string
}

// ToProto converts the response into its wire envelope.
func (r *InterruptResponse) ToProto() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"session_id":      structpb.NewStringValue(r.SessionID),
		"interrupted_ids": stringsValue(r.InterruptedIDs),
	}}
}

// InterruptResponseFromProto decodes the wire envelope of an interrupt
// response.
func InterruptResponseFromProto(s *structpb.Struct) *InterruptResponse {
	return &InterruptResponse{
		SessionID:      getString(s, "session_id"),
		InterruptedIDs: getStrings(s, "interrupted_ids"),
	}
}
