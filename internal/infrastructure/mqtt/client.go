package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/eltako2mqtt/internal/infrastructure/config"
)

// Client is the bridge's connection to the MQTT broker.
//
// It owns the bridge availability topic: a retained "offline" LWT is
// registered at connect time, "online" is published after every (re)connect
// and "offline" again on Close. Subscriptions survive reconnects.
//
// All methods are safe for concurrent use.
type Client struct {
	paho   pahomqtt.Client
	qos    byte
	topics Topics

	connected  atomic.Bool
	reconnects atomic.Int64

	// mu guards subs and the hooks below.
	mu           sync.RWMutex
	subs         map[string]subscription
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger
}

// Logger is the subset of logging.Logger the client reports through.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// MessageHandler receives one inbound message.
//
// Handlers run on paho's goroutines and must not block. A returned error is
// logged and otherwise ignored.
type MessageHandler func(topic string, payload []byte) error

// Connect dials the broker described by cfg and waits for the first
// connection. Reconnects afterwards happen in the background.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		qos:    byte(cfg.QoS), //nolint:gosec // validated to 0-2
		topics: Topics{Namespace: cfg.Namespace},
		subs:   make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, c.topics, c.qos)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleConnectionLost(err) })
	if limit := cfg.Reconnect.MaxAttempts; limit > 0 {
		opts.SetReconnectingHandler(func(pc pahomqtt.Client, _ *pahomqtt.ClientOptions) {
			c.handleReconnecting(pc, int64(limit))
		})
	}

	c.paho = pahomqtt.NewClient(opts)
	token := c.paho.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: no answer from %s within %v", ErrConnectionFailed, opts.Servers[0], defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The connect handler runs asynchronously; don't wait for it.
	c.connected.Store(true)
	return c, nil
}

// Topics returns the topic builder for this client's namespace.
func (c *Client) Topics() Topics {
	return c.topics
}

func (c *Client) handleConnect() {
	c.connected.Store(true)
	c.reconnects.Store(0)

	c.mu.RLock()
	for topic, sub := range c.subs {
		// A failed resubscribe shows up as the next connection loss.
		c.paho.Subscribe(topic, sub.qos, c.deliver(sub.handler))
	}
	hook := c.onConnect
	c.mu.RUnlock()

	c.setAvailability(PayloadOnline)

	if hook != nil {
		hook()
	}
}

func (c *Client) handleConnectionLost(err error) {
	c.connected.Store(false)

	c.mu.RLock()
	hook, logger := c.onDisconnect, c.logger
	c.mu.RUnlock()

	if logger != nil {
		logger.Warn("MQTT connection lost", "error", err)
	}
	if hook != nil {
		hook(err)
	}
}

// handleReconnecting stops auto-reconnect once limit consecutive attempts
// have failed. The process keeps running and reports MQTT as down.
func (c *Client) handleReconnecting(pc pahomqtt.Client, limit int64) {
	n := c.reconnects.Add(1)
	if n <= limit {
		return
	}
	if logger := c.getLogger(); logger != nil {
		logger.Error("MQTT reconnect attempts exhausted, giving up", "attempts", n-1)
	}
	go pc.Disconnect(0)
}

// setAvailability publishes payload on the retained bridge status topic.
func (c *Client) setAvailability(payload string) {
	c.paho.Publish(c.topics.BridgeStatus(), c.qos, true, payload).WaitTimeout(defaultPublishTimeout)
}

// Close marks the bridge offline and disconnects. Safe on a client that
// never connected.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		c.setAvailability(PayloadOffline)
	}
	c.paho.Disconnect(defaultDisconnectQuiesce)
	c.connected.Store(false)
	return nil
}

// HealthCheck returns ErrNotConnected while the broker is unreachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the broker connection is currently up.
func (c *Client) IsConnected() bool {
	return c.paho != nil && c.connected.Load() && c.paho.IsConnected()
}

// SetOnConnect sets a callback run after the initial connect and every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	c.onConnect = callback
	c.mu.Unlock()
}

// SetOnDisconnect sets a callback run when the connection drops.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.mu.Lock()
	c.onDisconnect = callback
	c.mu.Unlock()
}

// SetLogger sets the logger for connection loss, handler errors and panics.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

// deliver adapts handler to paho, recovering panics so one bad message
// cannot take down paho's router goroutine.
func (c *Client) deliver(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
			}
		}
	}
}
