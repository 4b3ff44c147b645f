// Package controller implements the gRPC transport of the antenna controller.
//
// The service is described by hand over protobuf well-known types, so no
// generated code is needed:
//
//	service ControllerService {
//	  rpc Execute(google.protobuf.StringValue) returns (google.protobuf.Struct);
//	  rpc GetStatus(google.protobuf.Empty) returns (google.protobuf.Struct);
//	}
//
// Execute carries one dispatcher command; both methods answer with the
// dispatcher result rendered as a Struct holding msg, retCode and payload.
// Callers identify themselves through the actor metadata keys, which the
// server interceptor attaches to the request logger.
package controller
