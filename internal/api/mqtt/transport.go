package mqtt

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/ant-controller/internal/logger"
	"github.com/oshokin/ant-controller/internal/service/dispatch"
)

const (
	// DefaultTopicPrefix is the topic root used when none is configured.
	DefaultTopicPrefix = "antctrl"

	topicCommand = "cmd"
	topicResult  = "result"
	topicStatus  = "status"
	topicOnline  = "online"

	payloadOnline  = "true"
	payloadOffline = "false"

	// commandKey echoes the command in its result.
	commandKey = "command"

	connectTimeout       = 10 * time.Second
	publishTimeout       = 5 * time.Second
	connectRetryInterval = 5 * time.Second
	disconnectQuiesce    = 1000 // ms
)

var (
	// errConnectTimeout is returned when the broker does not answer in time.
	errConnectTimeout = errors.New("connection timeout")
	// errTimeout is returned when the broker does not acknowledge in time.
	errTimeout = errors.New("timeout")
)

// Dispatcher is the command surface served over MQTT.
type Dispatcher interface {
	Execute(ctx context.Context, command string) dispatch.Result
	Status(ctx context.Context) dispatch.Result
}

// Client is the part of the paho client the transport uses.
type Client interface {
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Publish(topic string, qos byte, retained bool, payload any) paho.Token
	Disconnect(quiesce uint)
}

// Options configures the broker connection.
type Options struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883.
	Broker string
	// ClientID identifies the controller on the broker.
	ClientID string
	// TopicPrefix is the root of every topic.
	TopicPrefix string
}

// Transport bridges broker messages to a Dispatcher.
type Transport struct {
	// client is the broker connection.
	client Client
	// dispatcher executes commands.
	dispatcher Dispatcher
	// prefix is the topic root.
	prefix string
	// ctx is the base context of message handlers.
	ctx context.Context //nolint:containedctx // Paho callbacks carry no context.

	// statusMu orders retained status publications.
	statusMu sync.Mutex
}

// New creates a Transport over an already connected client.
func New(ctx context.Context, client Client, prefix string, dispatcher Dispatcher) *Transport {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}

	return &Transport{
		client:     client,
		dispatcher: dispatcher,
		prefix:     strings.TrimSuffix(prefix, "/"),
		ctx:        logger.WithName(ctx, "mqtt"),
	}
}

// Dial connects to the broker and starts serving commands. Subscriptions are
// restored on every reconnect.
func Dial(ctx context.Context, opts Options, dispatcher Dispatcher) (*Transport, error) {
	t := New(ctx, nil, opts.TopicPrefix, dispatcher)

	clientOptions := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(connectRetryInterval).
		// Handlers publish and wait for acknowledgements.
		SetOrderMatters(false).
		SetWill(t.Topic(topicOnline), payloadOffline, 1, true).
		SetOnConnectHandler(func(paho.Client) {
			if err := t.Start(); err != nil {
				logger.ErrorKV(t.ctx, "MQTT subscription failed", "error", err)
			}
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.WarnKV(t.ctx, "MQTT connection lost", "error", err)
		})

	client := paho.NewClient(clientOptions)
	t.client = client

	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		client.Disconnect(0)

		return nil, fmt.Errorf("connect to broker %s: %w", opts.Broker, errConnectTimeout)
	}

	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker %s: %w", opts.Broker, err)
	}

	logger.InfoKV(t.ctx, "MQTT connected", "broker", opts.Broker, "prefix", t.prefix)

	return t, nil
}

// Topic returns the full name of a topic below the prefix.
func (t *Transport) Topic(name string) string {
	return t.prefix + "/" + name
}

// Start subscribes to the command topic and announces the controller.
func (t *Transport) Start() error {
	if err := wait(t.client.Subscribe(t.Topic(topicCommand), 1, t.handleMessage), "subscribe"); err != nil {
		return err
	}

	if err := wait(t.client.Publish(t.Topic(topicOnline), 1, true, payloadOnline), "publish online"); err != nil {
		return err
	}

	return t.PublishStatus(t.ctx)
}

// PublishStatus refreshes the retained status snapshot.
func (t *Transport) PublishStatus(ctx context.Context) error {
	t.statusMu.Lock()
	defer t.statusMu.Unlock()

	payload, err := t.dispatcher.Status(ctx).MarshalJSON()
	if err != nil {
		return fmt.Errorf("format status: %w", err)
	}

	return wait(t.client.Publish(t.Topic(topicStatus), 1, true, payload), "publish status")
}

// Close announces the controller offline and disconnects.
func (t *Transport) Close() error {
	err := wait(t.client.Publish(t.Topic(topicOnline), 1, true, payloadOffline), "publish offline")

	t.client.Disconnect(disconnectQuiesce)

	return err
}

// handleMessage executes one command message and publishes its result.
func (t *Transport) handleMessage(_ paho.Client, message paho.Message) {
	command := strings.TrimSpace(string(message.Payload()))
	if command == "" {
		return
	}

	ctx := logger.WithKV(t.ctx, commandKey, command)

	result := t.dispatcher.Execute(ctx, command)

	fields := make(map[string]any, len(result.Fields)+1)
	maps.Copy(fields, result.Fields)
	fields[commandKey] = command
	result.Fields = fields

	payload, err := result.MarshalJSON()
	if err != nil {
		logger.ErrorKV(ctx, "Result encoding failed", "error", err)

		return
	}

	// QoS 0, not retained.
	if err = wait(t.client.Publish(t.Topic(topicResult), 0, false, payload), "publish result"); err != nil {
		logger.WarnKV(ctx, "MQTT result lost", "error", err)
	}
}

// wait blocks until the broker acknowledges token.
func wait(token paho.Token, what string) error {
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%s: %w", what, errTimeout)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}

	return nil
}
