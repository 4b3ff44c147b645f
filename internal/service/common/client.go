//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/ant-controller/internal/api/grpc/controller"
	"github.com/oshokin/ant-controller/internal/service/dispatch"
)

// DefaultCallTimeout is the default timeout of one RPC.
const DefaultCallTimeout = 5 * time.Second

// Client wraps the gRPC ControllerService client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the controller daemon.
	conn *grpc.ClientConn
	// api is the ControllerService client.
	api controller.ControllerClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// actor identifies the caller in the daemon log.
	actor *controller.Actor
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor attaches the actor to every call.
func WithActor(actor *controller.Actor) Option {
	return func(c *Client) {
		c.actor = actor
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errCommandRequired is returned for an empty command.
	errCommandRequired = errors.New("command must be provided")
)

// Dial establishes a gRPC connection to the controller daemon.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial controller: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         controller.NewControllerClient(conn),
		callTimeout: DefaultCallTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Execute runs one command on the daemon.
func (c *Client) Execute(ctx context.Context, command string) (dispatch.Result, error) {
	if command == "" {
		return dispatch.Result{}, errCommandRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.Execute(callCtx, wrapperspb.String(command))
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("execute %q: %w", command, err)
	}

	return dispatch.FromStruct(response), nil
}

// Status retrieves the status snapshot.
func (c *Client) Status(ctx context.Context) (dispatch.Result, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.GetStatus(callCtx, new(emptypb.Empty))
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("get status: %w", err)
	}

	return dispatch.FromStruct(response), nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline. The actor, when
// set, travels in the call metadata.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = controller.AppendActor(ctx, c.actor)

	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
