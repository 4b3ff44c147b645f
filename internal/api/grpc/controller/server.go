package controller

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/ant-controller/internal/logger"
	"github.com/oshokin/ant-controller/internal/service/dispatch"
)

// Dispatcher abstracts the command surface the transport layer depends on.
type Dispatcher interface {
	Execute(ctx context.Context, command string) dispatch.Result
	Status(ctx context.Context) dispatch.Result
}

// Server implements ControllerService.
type Server struct {
	// dispatcher executes the commands.
	dispatcher Dispatcher
}

// NewServer wires the provided dispatcher into a gRPC handler.
func NewServer(dispatcher Dispatcher) *Server {
	return &Server{
		dispatcher: dispatcher,
	}
}

// Execute runs one command. Command failures travel inside the result;
// only malformed requests and encoding failures are gRPC errors.
func (s *Server) Execute(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "command is required")
	}

	return encode(ctx, s.dispatcher.Execute(ctx, req.GetValue()))
}

// GetStatus returns the status snapshot.
func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return encode(ctx, s.dispatcher.Status(ctx))
}

// encode converts a result to its wire form.
func encode(ctx context.Context, result dispatch.Result) (*structpb.Struct, error) {
	message, err := result.Struct()
	if err != nil {
		logger.ErrorKV(ctx, "Result encoding failed", "error", err)

		return nil, status.Error(codes.Internal, "unable to encode result")
	}

	return message, nil
}
