package overlay

import (
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MockToken is a completed mqtt.Token carrying a fixed error
type MockToken struct {
	err error
}

// NewMockToken returns a token that is already done
func NewMockToken(err error) *MockToken {
	return &MockToken{err: err}
}

func (t *MockToken) Wait() bool                     { return true }
func (t *MockToken) WaitTimeout(time.Duration) bool { return true }
func (t *MockToken) Error() error                   { return t.err }

func (t *MockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// PublishedMessage is one message recorded by MockClient
type PublishedMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// MockClient is an in-memory mqtt.Client that records what is published
type MockClient struct {
	mu           sync.RWMutex
	connected    bool
	connectError error
	publishError error
	published    []PublishedMessage
	routes       map[string]mqtt.MessageHandler
}

// NewMockClient creates a disconnected mock client
func NewMockClient() *MockClient {
	return &MockClient{routes: make(map[string]mqtt.MessageHandler)}
}

// SetConnected sets the connection state
func (c *MockClient) SetConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = connected
}

// SetConnectError makes Connect fail with err
func (c *MockClient) SetConnectError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectError = err
}

// SetPublishError makes every Publish fail with err
func (c *MockClient) SetPublishError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishError = err
}

// Published returns a copy of every recorded message, oldest first
func (c *MockClient) Published() []PublishedMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]PublishedMessage(nil), c.published...)
}

// PublishedUnder returns the recorded messages whose topic starts with prefix
func (c *MockClient) PublishedUnder(prefix string) []PublishedMessage {
	var out []PublishedMessage
	for _, m := range c.Published() {
		if strings.HasPrefix(m.Topic, prefix) {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the most recent message on topic
func (c *MockClient) Last(topic string) (PublishedMessage, bool) {
	msgs := c.Published()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Topic == topic {
			return msgs[i], true
		}
	}
	return PublishedMessage{}, false
}

// Reset clears the recorded messages
func (c *MockClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = nil
}

func (c *MockClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *MockClient) IsConnectionOpen() bool {
	return c.IsConnected()
}

func (c *MockClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectError == nil {
		c.connected = true
	}
	return NewMockToken(c.connectError)
}

func (c *MockClient) Disconnect(quiesce uint) {
	c.SetConnected(false)
}

func (c *MockClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return NewMockToken(mqtt.ErrNotConnected)
	}
	if c.publishError != nil {
		return NewMockToken(c.publishError)
	}

	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	}

	c.published = append(c.published, PublishedMessage{
		Topic:   topic,
		Payload: data,
		QoS:     qos,
		Retain:  retained,
	})
	return NewMockToken(nil)
}

// Subscribe only records the handler; nothing here consumes messages
func (c *MockClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	c.AddRoute(topic, callback)
	return NewMockToken(nil)
}

func (c *MockClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	for topic := range filters {
		c.AddRoute(topic, callback)
	}
	return NewMockToken(nil)
}

func (c *MockClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, topic := range topics {
		delete(c.routes, topic)
	}
	return NewMockToken(nil)
}

func (c *MockClient) AddRoute(topic string, callback mqtt.MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[topic] = callback
}

func (c *MockClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}
