package controller

import (
	"context"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/ant-controller/internal/service/dispatch"
)

// fakeDispatcher records commands and answers with canned results.
type fakeDispatcher struct {
	// commands lists every executed command.
	commands []string
	// actors lists the actor seen with every command.
	actors []*Actor
}

// Execute answers OK for "BUT/ant/A" and 404 for everything else.
func (f *fakeDispatcher) Execute(ctx context.Context, command string) dispatch.Result {
	f.commands = append(f.commands, command)

	actor, _ := ActorFromContext(ctx)
	f.actors = append(f.actors, actor)

	if command != "BUT/ant/A" {
		return dispatch.Result{Msg: "ERR: not found", RetCode: http.StatusNotFound}
	}

	return dispatch.OK(map[string]any{
		"buttons": map[string]any{"groups": map[string]any{"ant": "A"}},
	})
}

// Status returns a fixed snapshot.
func (f *fakeDispatcher) Status(context.Context) dispatch.Result {
	return dispatch.OK(map[string]any{"io": map[string]any{}})
}

// TestServer_Execute_Validation ensures invalid requests return InvalidArgument errors.
func TestServer_Execute_Validation(t *testing.T) {
	t.Parallel()

	s := NewServer(new(fakeDispatcher))

	_, err := s.Execute(context.Background(), nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Execute(context.Background(), wrapperspb.String(""))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

// startServer serves the fake dispatcher over an in-memory listener.
func startServer(t *testing.T, dispatcher Dispatcher) ControllerClient {
	t.Helper()

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer(grpc.UnaryInterceptor(ActorInterceptor))
	RegisterControllerServer(server, NewServer(dispatcher))

	go func() {
		_ = server.Serve(listener)
	}()

	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
	})

	return NewControllerClient(conn)
}

// TestServer_Roundtrip exercises Execute and GetStatus over a real gRPC connection.
func TestServer_Roundtrip(t *testing.T) {
	t.Parallel()

	dispatcher := new(fakeDispatcher)
	client := startServer(t, dispatcher)

	ctx := AppendActor(context.Background(), &Actor{Hostname: "shack-pc", Username: "op"})

	response, err := client.Execute(ctx, wrapperspb.String("BUT/ant/A"))
	require.NoError(t, err)

	result := dispatch.FromStruct(response)
	require.Equal(t, dispatch.MsgOK, result.Msg)
	require.Equal(t, http.StatusOK, result.RetCode)
	require.Equal(t, "A", result.Fields["buttons"].(map[string]any)["groups"].(map[string]any)["ant"])

	// Command failures are results, not gRPC errors.
	response, err = client.Execute(context.Background(), wrapperspb.String("BUT/ant/Z"))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, dispatch.FromStruct(response).RetCode)

	response, err = client.GetStatus(context.Background(), new(emptypb.Empty))
	require.NoError(t, err)
	require.Contains(t, response.GetFields(), "io")

	require.Equal(t, []string{"BUT/ant/A", "BUT/ant/Z"}, dispatcher.commands)
	require.Equal(t, &Actor{Hostname: "shack-pc", Username: "op"}, dispatcher.actors[0])
	require.Nil(t, dispatcher.actors[1])
}
