package wire

import (
	"encoding/base64"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/irfanghat/spark-connect-go/pkg/types"
)

// ExecutePlanRequest submits a plan for execution.
type ExecutePlanRequest struct {
	SessionID    string
	OperationID  string
	UserContext  UserContext
	Plan         *structpb.Struct // Encoded relation tree or command.
	Reattachable bool
	Tags         []string
	ClientType   string
}

// ToProto converts the request into its wire envelope.
func (r *ExecutePlanRequest) ToProto() *structpb.Struct {
	fields := map[string]*structpb.Value{
		"session_id":   structpb.NewStringValue(r.SessionID),
		"operation_id": structpb.NewStringValue(r.OperationID),
		"user_context": r.UserContext.ToProto(),
		"plan":         structpb.NewStructValue(r.Plan),
		"reattachable": structpb.NewBoolValue(r.Reattachable),
		"client_type":  structpb.NewStringValue(r.ClientType),
	}
	if len(r.Tags) > 0 {
		fields["tags"] = stringsValue(r.Tags)
	}
	return &structpb.Struct{Fields: fields}
}

// ExecutePlanRequestFromProto decodes the wire envelope of an execute
// request. Round-trip tooling and the test server use it.
func ExecutePlanRequestFromProto(s *structpb.Struct) *ExecutePlanRequest {
	return &ExecutePlanRequest{
		SessionID:    getString(s, "session_id"),
		OperationID:  getString(s, "operation_id"),
		UserContext:  userContextFromProto(s.GetFields()["user_context"]),
		Plan:         getStruct(s, "plan"),
		Reattachable: getBool(s, "reattachable"),
		Tags:         getStrings(s, "tags"),
		ClientType:   getString(s, "client_type"),
	}
}

// ArrowBatch is one columnar data chunk: an Arrow IPC stream carrying its own
// embedded schema, plus the row count the server claims for it.
type ArrowBatch struct {
	RowCount int64
	Data     []byte
}

// Metrics carries server-side execution metrics. Values are opaque to the
// client and surfaced as-is.
type Metrics struct {
	Values map[string]float64
}

// ExecutePlanResponse is one message of the execution response stream.
// Exactly one of Schema, Batch, Metrics, SQLCommandResult, ResultComplete and
// Error is set.
type ExecutePlanResponse struct {
	SessionID   string
	OperationID string
	ResponseID  string // Server-assigned resumption cursor.

	Schema           *types.Schema
	Batch            *ArrowBatch
	Metrics          *Metrics
	SQLCommandResult *structpb.Struct
	ResultComplete   bool
	Error            *ServerError
}

// ToProto converts the response into its wire envelope. The test server uses
// it; clients only decode.
func (r *ExecutePlanResponse) ToProto() *structpb.Struct {
	fields := map[string]*structpb.Value{
		"session_id":   structpb.NewStringValue(r.SessionID),
		"operation_id": structpb.NewStringValue(r.OperationID),
		"response_id":  structpb.NewStringValue(r.ResponseID),
	}
	switch {
	case r.Schema != nil:
		fields["schema"] = SchemaToProto(*r.Schema)
	case r.Batch != nil:
		fields["arrow_batch"] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"row_count": structpb.NewNumberValue(float64(r.Batch.RowCount)),
			"data":      structpb.NewStringValue(base64.StdEncoding.EncodeToString(r.Batch.Data)),
		}})
	case r.Metrics != nil:
		mf := make(map[string]*structpb.Value, len(r.Metrics.Values))
		for k, v := range r.Metrics.Values {
			mf[k] = structpb.NewNumberValue(v)
		}
		fields["metrics"] = structpb.NewStructValue(&structpb.Struct{Fields: mf})
	case r.SQLCommandResult != nil:
		fields["sql_command_result"] = structpb.NewStructValue(r.SQLCommandResult)
	case r.ResultComplete:
		fields["result_complete"] = structpb.NewBoolValue(true)
	case r.Error != nil:
		fields["error"] = r.Error.toProto()
	}
	return &structpb.Struct{Fields: fields}
}

// ExecutePlanResponseFromProto decodes one message of the response stream.
func ExecutePlanResponseFromProto(s *structpb.Struct) (*ExecutePlanResponse, error) {
	resp := &ExecutePlanResponse{
		SessionID:   getString(s, "session_id"),
		OperationID: getString(s, "operation_id"),
		ResponseID:  getString(s, "response_id"),
	}
	if v, ok := s.GetFields()["schema"]; ok {
		schema, err := SchemaFromProto(v)
		if err != nil {
			return nil, errors.Wrap(err, "decoding schema response")
		}
		resp.Schema = &schema
	}
	if batch := getStruct(s, "arrow_batch"); batch != nil {
		data, err := base64.StdEncoding.DecodeString(getString(batch, "data"))
		if err != nil {
			return nil, errors.Wrap(err, "decoding arrow batch payload")
		}
		resp.Batch = &ArrowBatch{
			RowCount: int64(getNumber(batch, "row_count")),
			Data:     data,
		}
	}
	if metrics := getStruct(s, "metrics"); metrics != nil {
		values := make(map[string]float64, len(metrics.GetFields()))
		for k, v := range metrics.GetFields() {
			values[k] = v.GetNumberValue()
		}
		resp.Metrics = &Metrics{Values: values}
	}
	if result := getStruct(s, "sql_command_result"); result != nil {
		resp.SQLCommandResult = result
	}
	resp.ResultComplete = getBool(s, "result_complete")
	if v, ok := s.GetFields()["error"]; ok {
		resp.Error = serverErrorFromProto(v)
	}
	return resp, nil
}

// ReattachExecuteRequest resumes an interrupted execution stream after the
// last acknowledged response.
type ReattachExecuteRequest struct {
	SessionID      string
	OperationID    string
	UserContext    UserContext
	LastResponseID string // Cursor; empty resumes from the beginning.
	ClientType     string
}

// ToProto converts the request into its wire envelope.
func (r *ReattachExecuteRequest) ToProto() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"session_id":       structpb.NewStringValue(r.SessionID),
		"operation_id":     structpb.NewStringValue(r.OperationID),
		"user_context":     r.UserContext.ToProto(),
		"last_response_id": structpb.NewStringValue(r.LastResponseID),
		"client_type":      structpb.NewStringValue(r.ClientType),
	}}
}

// ReattachExecuteRequestFromProto decodes the wire envelope of a reattach
// request.
func ReattachExecuteRequestFromProto(s *structpb.Struct) *ReattachExecuteRequest {
	return &ReattachExecuteRequest{
		SessionID:      getString(s, "session_id"),
		OperationID:    getString(s, "operation_id"),
		UserContext:    userContextFromProto(s.GetFields()["user_context"]),
		LastResponseID: getString(s, "last_response_id"),
		ClientType:     getString(s, "client_type"),
	}
}

// ReleaseExecuteRequest lets the server free buffered responses. ReleaseAll
// frees the whole operation after completion; otherwise responses up to and
// including ReleaseUntil are freed.
type ReleaseExecuteRequest struct {
	SessionID    string
	OperationID  string
	ReleaseAll   bool
	ReleaseUntil string // Response id; used when ReleaseAll is false.
}

// ToProto converts the request into its wire envelope.
func (r *ReleaseExecuteRequest) ToProto() *structpb.Struct {
	fields := map[string]*structpb.Value{
		"session_id":   structpb.NewStringValue(r.SessionID),
		"operation_id": structpb.NewStringValue(r.OperationID),
	}
	if r.ReleaseAll {
		fields["release_all"] = structpb.NewBoolValue(true)
	} else {
		fields["release_until"] = structpb.NewStringValue(r.ReleaseUntil)
	}
	return &structpb.Struct{Fields: fields}
}

// ReleaseExecuteRequestFromProto decodes the wire envelope of a release
// request.
func ReleaseExecuteRequestFromProto(s *structpb.Struct) *ReleaseExecuteRequest {
	return &ReleaseExecuteRequest{
		SessionID:    getString(s, "session_id"),
		OperationID:  getString(s, "operation_id"),
		ReleaseAll:   getBool(s, "release_all"),
		ReleaseUntil: getString(s, "release_until"),
	}
}
