package overlay

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ConnectHandler is called every time the broker connection is (re)established
type ConnectHandler func()

// MQTTClient manages the broker connection used to publish placements
type MQTTClient struct {
	client      mqtt.Client
	onConnected ConnectHandler
	isConnected bool
	stop        chan struct{}
	stopOnce    sync.Once
	mu          sync.RWMutex
}

// InitMQTT creates the MQTT client and starts connecting in the background.
// If neither MQTT_BROKER nor mqtt.broker is set, MQTT is disabled and this
// returns nil, nil.
func InitMQTT(config *Config, onConnected ConnectHandler) (*MQTTClient, error) {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" && config != nil {
		broker = config.MQTT.Broker
	}

	if broker == "" {
		log.Println("[MQTT] disabled: MQTT_BROKER not set")
		return nil, nil
	}
	if config == nil {
		return nil, fmt.Errorf("MQTT enabled but no configuration provided")
	}

	client := &MQTTClient{
		onConnected: onConnected,
		stop:        make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" {
		clientID = config.MQTT.ClientID
	}
	if clientID == "" {
		clientID = "floorgeo"
	}
	opts.SetClientID(clientID)

	username := os.Getenv("MQTT_USERNAME")
	if username == "" {
		username = config.MQTT.Username
	}
	if username != "" {
		opts.SetUsername(username)
		password := os.Getenv("MQTT_PASSWORD")
		if password == "" {
			password = config.MQTT.Password
		}
		opts.SetPassword(password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(client.onConnect)
	opts.SetConnectionLostHandler(client.onConnectionLost)
	opts.SetReconnectingHandler(client.onReconnecting)

	client.client = mqtt.NewClient(opts)

	go client.connectWithRetry()

	return client, nil
}

// newMQTTClientWith wraps an existing mqtt.Client (used with mocks in tests)
func newMQTTClientWith(client mqtt.Client, onConnected ConnectHandler) *MQTTClient {
	return &MQTTClient{
		client:      client,
		onConnected: onConnected,
		stop:        make(chan struct{}),
	}
}

// connectWithRetry attempts to connect to the MQTT broker with exponential backoff
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("[MQTT] connecting to broker...")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("[MQTT] connected")
				c.setConnected(true)
				return
			}
			log.Printf("[MQTT] connection failed: %v", token.Error())
		} else {
			log.Println("[MQTT] connection timeout")
		}

		log.Printf("[MQTT] retrying in %v...", retryDelay)
		select {
		case <-c.stop:
			return
		case <-time.After(retryDelay):
		}
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// onConnect runs on the paho callback goroutine after each (re)connect
func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.setConnected(true)
	if c.onConnected != nil {
		c.onConnected()
	}
}

// onConnectionLost is called when the MQTT connection is lost
// Auto-reconnect is enabled, so this is typically a transient event
func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("[MQTT] connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	log.Println("[MQTT] reconnecting...")
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect stops any pending retry and closes the connection
func (c *MQTTClient) Disconnect() {
	c.stopOnce.Do(func() { close(c.stop) })
	if c.client != nil && c.client.IsConnected() {
		log.Println("[MQTT] disconnecting...")
		c.client.Disconnect(250)
	}
	c.setConnected(false)
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}
