// Package wire defines the messages exchanged with the execution service and
// their mapping onto the self-describing protobuf envelope ([structpb.Struct])
// the service speaks.
//
// The gRPC calls are issued without generated service stubs: each method is
// identified by its full name and a [grpc.StreamDesc], and requests and
// responses travel as *structpb.Struct through the standard proto codec.
package wire

import (
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Full gRPC method names of the execution service.
const (
	MethodExecutePlan     = "/spark.connect.SparkConnectService/ExecutePlan"
	MethodReattachExecute = "/spark.connect.SparkConnectService/ReattachExecute"
	MethodReleaseExecute  = "/spark.connect.SparkConnectService/ReleaseExecute"
	MethodAnalyzePlan     = "/spark.connect.SparkConnectService/AnalyzePlan"
	MethodConfig          = "/spark.connect.SparkConnectService/Config"
	MethodInterrupt       = "/spark.connect.SparkConnectService/Interrupt"
)

// Stream descriptors for the server-streaming calls.
var (
	ExecutePlanStreamDesc = &grpc.StreamDesc{
		StreamName:    "ExecutePlan",
		ServerStreams: true,
	}
	ReattachExecuteStreamDesc = &grpc.StreamDesc{
		StreamName:    "ReattachExecute",
		ServerStreams: true,
	}
)

// UserContext identifies the user on whose behalf requests are issued.
type UserContext struct {
	UserID   string
	UserName string
}

// ToProto converts the user context into its wire form.
func (u UserContext) ToProto() *structpb.Value {
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"user_id":   structpb.NewStringValue(u.UserID),
		"user_name": structpb.NewStringValue(u.UserName),
	}})
}

func userContextFromProto(v *structpb.Value) UserContext {
	s := v.GetStructValue()
	if s == nil {
		return UserContext{}
	}
	return UserContext{
		UserID:   getString(s, "user_id"),
		UserName: getString(s, "user_name"),
	}
}

// ServerError is an in-band error carried on a response stream or analysis
// response. Message holds the server diagnostic verbatim.
type ServerError struct {
	Kind    string // "analysis" or "execution".
	Code    string // Optional server-side error class.
	Message string
}

// Error kinds carried by [ServerError].
const (
	ErrorKindAnalysis  = "analysis"
	ErrorKindExecution = "execution"
)

func (e *ServerError) toProto() *structpb.Value {
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"kind":    structpb.NewStringValue(e.Kind),
		"code":    structpb.NewStringValue(e.Code),
		"message": structpb.NewStringValue(e.Message),
	}})
}

func serverErrorFromProto(v *structpb.Value) *ServerError {
	s := v.GetStructValue()
	if s == nil {
		return nil
	}
	return &ServerError{
		Kind:    getString(s, "kind"),
		Code:    getString(s, "code"),
		Message: getString(s, "message"),
	}
}
