package controller

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/oshokin/ant-controller/internal/logger"
)

const (
	// hostnameKey carries the caller hostname.
	hostnameKey = "x-actor-hostname"
	// usernameKey carries the caller user name.
	usernameKey = "x-actor-username"
)

// Actor identifies the caller of a command for the audit log.
type Actor struct {
	// Hostname is the caller machine.
	Hostname string
	// Username is the caller account.
	Username string
}

// AppendActor attaches the actor to the outgoing call metadata.
func AppendActor(ctx context.Context, actor *Actor) context.Context {
	if actor == nil {
		return ctx
	}

	return metadata.AppendToOutgoingContext(ctx,
		hostnameKey, actor.Hostname,
		usernameKey, actor.Username,
	)
}

// ActorFromContext reads the actor from incoming call metadata.
func ActorFromContext(ctx context.Context) (*Actor, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, false
	}

	hostnames, usernames := md.Get(hostnameKey), md.Get(usernameKey)
	if len(hostnames) == 0 && len(usernames) == 0 {
		return nil, false
	}

	actor := new(Actor)

	if len(hostnames) > 0 {
		actor.Hostname = hostnames[0]
	}

	if len(usernames) > 0 {
		actor.Username = usernames[0]
	}

	return actor, true
}

// ActorInterceptor scopes the request logger with the calling actor.
func ActorInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	ctx = logger.WithKV(ctx, "method", info.FullMethod)

	if actor, ok := ActorFromContext(ctx); ok {
		ctx = logger.WithKV(ctx, "hostname", actor.Hostname, "username", actor.Username)
	}

	return handler(ctx, req)
}
