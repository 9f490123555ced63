package wire

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/irfanghat/spark-connect-go/pkg/types"
)

// Analyze operation names.
const (
	AnalyzeSchema        = "schema"
	AnalyzeExplain       = "explain"
	AnalyzeTreeString    = "tree_string"
	AnalyzeIsLocal       = "is_local"
	AnalyzeIsStreaming   = "is_streaming"
	AnalyzeInputFiles    = "input_files"
	AnalyzeSparkVersion  = "spark_version"
	AnalyzeDDLParse      = "ddl_parse"
	AnalyzeSameSemantics = "same_semantics"
	AnalyzeSemanticHash  = "semantic_hash"
)

// AnalyzePlanRequest asks the service a question about a plan without
// executing it. Operation selects the question; Plan, Other, Mode and DDL are
// its arguments.
type AnalyzePlanRequest struct {
	SessionID   string
	UserContext UserContext
	ClientType  string

	Operation string
	Plan      *structpb.Struct  // Subject plan; nil for spark_version and ddl_parse.
	Other     *structpb.Struct  // Second plan for same_semantics.
	Mode      types.ExplainMode // Explain verbosity.
	DDL       string            // DDL string for ddl_parse.
}

// ToProto converts the request into its wire envelope.
func (r *AnalyzePlanRequest) ToProto() *structpb.Struct {
	fields := map[string]*structpb.Value{
		"session_id":   structpb.NewStringValue(r.SessionID),
		"user_context": r.UserContext.ToProto(),
		"client_type":  structpb.NewStringValue(r.ClientType),
		"operation":    structpb.NewStringValue(r.Operation),
	}
	if r.Plan != nil {
		fields["plan"] = structpb.NewStructValue(r.Plan)
	}
	if r.Other != nil {
		fields["other"] = structpb.NewStructValue(r.Other)
	}
	if r.Mode != types.ExplainModeInvalid {
		fields["mode"] = structpb.NewStringValue(r.Mode.String())
	}
	if r.DDL != "" {
		fields["ddl"] = structpb.NewStringValue(r.DDL)
	}
	return &structpb.Struct{Fields: fields}
}

// AnalyzePlanRequestFromProto decodes the wire envelope of an analyze
// request.
func AnalyzePlanRequestFromProto(s *structpb.Struct) *AnalyzePlanRequest {
	req := &AnalyzePlanRequest{
		SessionID:   getString(s, "session_id"),
		UserContext: userContextFromProto(s.GetFields()["user_context"]),
		ClientType:  getString(s, "client_type"),
		Operation:   getString(s, "operation"),
		Plan:        getStruct(s, "plan"),
		Other:       getStruct(s, "other"),
		Mode:        types.ParseExplainMode(getString(s, "mode")),
		DDL:         getString(s, "ddl"),
	}
	return req
}

// AnalyzePlanResponse answers one analyze request. Exactly one result field
// (or Error) is set, matching the requested operation.
type AnalyzePlanResponse struct {
	SessionID string

	Schema        *types.Schema
	Explain       string
	TreeString    string
	IsLocal       *bool
	IsStreaming   *bool
	InputFiles    []string
	SparkVersion  string
	DDLParse      *types.DataType
	SameSemantics *bool
	SemanticHash  *int32

	Error *ServerError
}

// ToProto converts the response into its wire envelope. The test server uses
// it; clients only decode.
func (r *AnalyzePlanResponse) ToProto() *structpb.Struct {
	fields := map[string]*structpb.Value{
		"session_id": structpb.NewStringValue(r.SessionID),
	}
	switch {
	case r.Error != nil:
		fields["error"] = r.Error.toProto()
	case r.Schema != nil:
		fields["schema"] = SchemaToProto(*r.Schema)
	case r.Explain != "":
		fields["explain"] = structpb.NewStringValue(r.Explain)
	case r.TreeString != "":
		fields["tree_string"] = structpb.NewStringValue(r.TreeString)
	case r.IsLocal != nil:
		fields["is_local"] = structpb.NewBoolValue(*r.IsLocal)
	case r.IsStreaming != nil:
		fields["is_streaming"] = structpb.NewBoolValue(*r.IsStreaming)
	case r.InputFiles != nil:
		fields["input_files"] = stringsValue(r.InputFiles)
	case r.SparkVersion != "":
		fields["spark_version"] = structpb.NewStringValue(r.SparkVersion)
	case r.DDLParse != nil:
		fields["ddl_parse"] = DataTypeToProto(*r.DDLParse)
	case r.SameSemantics != nil:
		fields["same_semantics"] = structpb.NewBoolValue(*r.SameSemantics)
	case r.SemanticHash != nil:
		fields["semantic_hash"] = structpb.NewNumberValue(float64(*r.SemanticHash))
	}
	return &structpb.Struct{Fields: fields}
}

// AnalyzePlanResponseFromProto decodes the wire envelope of an analyze
// response.
func AnalyzePlanResponseFromProto(s *structpb.Struct) (*AnalyzePlanResponse, error) {
	resp := &AnalyzePlanResponse{
		SessionID: getString(s, "session_id"),
	}
	if v, ok := s.GetFields()["error"]; ok {
		resp.Error = serverErrorFromProto(v)
	}
	if v, ok := s.GetFields()["schema"]; ok {
		schema, err := SchemaFromProto(v)
		if err != nil {
			return nil, errors.Wrap(err, "decoding schema result")
		}
		resp.Schema = &schema
	}
	resp.Explain = getString(s, "explain")
	resp.TreeString = getString(s, "tree_string")
	if v, ok := s.GetFields()["is_local"]; ok {
		b := v.GetBoolValue()
		resp.IsLocal = &b
	}
	if v, ok := s.GetFields()["is_streaming"]; ok {
		b := v.GetBoolValue()
		resp.IsStreaming = &b
	}
	resp.InputFiles = getStrings(s, "input_files")
	resp.SparkVersion = getString(s, "spark_version")
	if v, ok := s.GetFields()["ddl_parse"]; ok {
		dt, err := DataTypeFromProto(v)
		if err != nil {
			return nil, errors.Wrap(err, "decoding ddl_parse result")
		}
		resp.DDLParse = &dt
	}
	if v, ok := s.GetFields()["same_semantics"]; ok {
		b := v.GetBoolValue()
		resp.SameSemantics = &b
	}
	if v, ok := s.GetFields()["semantic_hash"]; ok {
		h := int32(v.GetNumberValue())
		resp.SemanticHash = &h
	}
	return resp, nil
}
