package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// fakeToken completes immediately with err.
type fakeToken struct {
	err error
}

func (f fakeToken) Wait() bool                     { return true }
func (f fakeToken) WaitTimeout(time.Duration) bool { return true }
func (f fakeToken) Error() error                   { return f.err }

func (f fakeToken) Done() <-chan struct{} {
	done := make(chan struct{})
	close(done)

	return done
}

// fakeMessage carries a payload on a topic.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// published is one recorded publication.
type published struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  string
}

// fakeClient records subscriptions and publications.
type fakeClient struct {
	mu           sync.Mutex
	handlers     map[string]paho.MessageHandler
	publications []published
	publishErr   error
	disconnected bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: make(map[string]paho.MessageHandler)}
}

func (f *fakeClient) Subscribe(topic string, _ byte, callback paho.MessageHandler) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.handlers[topic] = callback

	return fakeToken{}
}

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload any) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.publishErr != nil {
		return fakeToken{err: f.publishErr}
	}

	var text string

	switch p := payload.(type) {
	case string:
		text = p
	case []byte:
		text = string(p)
	}

	f.publications = append(f.publications, published{Topic: topic, QoS: qos, Retained: retained, Payload: text})

	return fakeToken{}
}

func (f *fakeClient) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.disconnected = true
}

// deliver feeds a message to the handler subscribed to topic.
func (f *fakeClient) deliver(topic, payload string) {
	f.mu.Lock()
	handler := f.handlers[topic]
	f.mu.Unlock()

	handler(nil, fakeMessage{topic: topic, payload: []byte(payload)})
}

// sent returns and clears the recorded publications.
func (f *fakeClient) sent() []published {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := f.publications
	f.publications = nil

	return result
}
