package dispatch

import (
	"errors"
	"fmt"
	"maps"
	"net/http"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/ant-controller/internal/domain/relay"
	"github.com/oshokin/ant-controller/internal/hardware"
)

const (
	// MsgOK is the message of every successful result.
	MsgOK = "OK"
	// msgKey holds the result message.
	msgKey = "msg"
	// retCodeKey holds the result code.
	retCodeKey = "retCode"
)

// ErrMalformed is returned for commands with a wrong shape or value.
var ErrMalformed = errors.New("malformed command")

// Result is the structured answer to a command.
type Result struct {
	// Msg is "OK" or "ERR: <reason>".
	Msg string
	// RetCode follows HTTP status semantics.
	RetCode int
	// Fields carries the payload; values are structpb compatible.
	Fields map[string]any
}

// OK returns a successful result carrying fields.
func OK(fields map[string]any) Result {
	return Result{
		Msg:     MsgOK,
		RetCode: http.StatusOK,
		Fields:  fields,
	}
}

// Failure renders err as a result.
func Failure(err error) Result {
	return Result{
		Msg:     "ERR: " + err.Error(),
		RetCode: Code(err),
	}
}

// Code maps an error to its return code.
func Code(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, relay.ErrBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, relay.ErrGuardViolation), errors.Is(err, relay.ErrAmbiguous):
		return http.StatusConflict
	case errors.Is(err, relay.ErrParse),
		errors.Is(err, ErrMalformed),
		errors.Is(err, hardware.ErrOutOfRange),
		errors.Is(err, hardware.ErrReadOnly),
		errors.Is(err, hardware.ErrUnknownBank):
		return http.StatusBadRequest
	case errors.Is(err, relay.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Succeeded reports whether the result is a success.
func (r Result) Succeeded() bool {
	return r.RetCode == http.StatusOK
}

// Map flattens the result into one map holding the payload, msg and retCode.
func (r Result) Map() map[string]any {
	result := make(map[string]any, len(r.Fields)+2)
	maps.Copy(result, r.Fields)

	result[msgKey] = r.Msg
	result[retCodeKey] = r.RetCode

	return result
}

// Struct converts the result to a protobuf Struct.
func (r Result) Struct() (*structpb.Struct, error) {
	message, err := structpb.NewStruct(r.Map())
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}

	return message, nil
}

// MarshalJSON renders the result as a JSON object.
func (r Result) MarshalJSON() ([]byte, error) {
	message, err := r.Struct()
	if err != nil {
		return nil, err
	}

	return protojson.Marshal(message)
}

// FromStruct rebuilds a result from its protobuf form.
func FromStruct(message *structpb.Struct) Result {
	fields := message.AsMap()

	result := Result{
		RetCode: http.StatusInternalServerError,
		Fields:  fields,
	}

	if msg, ok := fields[msgKey].(string); ok {
		result.Msg = msg
	}

	if code, ok := fields[retCodeKey].(float64); ok {
		result.RetCode = int(code)
	}

	delete(fields, msgKey)
	delete(fields, retCodeKey)

	return result
}
