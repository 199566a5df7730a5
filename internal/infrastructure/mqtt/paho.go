package mqtt

import (
	"context"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// PahoTransport dials brokers with paho.mqtt.golang.
type PahoTransport struct{}

// Dial creates a paho client for opts. No network activity happens until the
// returned EventLoop is polled.
func (PahoTransport) Dial(opts Options) (Client, EventLoop) {
	lost := make(chan error, 1)

	po := buildClientOptions(opts)
	po.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		select {
		case lost <- err:
		default:
		}
	})

	c := pahomqtt.NewClient(po)
	return &pahoClient{client: c}, &pahoLoop{client: c, lost: lost}
}

// buildClientOptions creates paho options with paho's own reconnect logic
// disabled; the Manager owns retries and backoff.
func buildClientOptions(o Options) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(o.BrokerURL)
	opts.SetClientID(o.ClientID)

	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(o.ConnectTimeout)
	opts.SetKeepAlive(o.KeepAlive)
	opts.SetOrderMatters(false)

	if o.TLS != nil {
		opts.SetTLSConfig(o.TLS)
	}
	if o.WillTopic != "" {
		opts.SetBinaryWill(o.WillTopic, o.WillPayload, 1, true)
	}
	return opts
}

type pahoClient struct {
	client pahomqtt.Client
}

// Publish sends payload and waits until paho has written it.
func (c *pahoClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: publish to %s", ErrTimeout, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Disconnect closes the connection after a short quiesce period. A connect
// still in flight is abandoned by paho.
func (c *pahoClient) Disconnect() {
	c.client.Disconnect(defaultDisconnectQuiesce)
}

type pahoLoop struct {
	client    pahomqtt.Client
	lost      chan error
	connected bool
}

// Poll connects when not connected, otherwise waits for the connection to drop.
func (l *pahoLoop) Poll(ctx context.Context) Event {
	if !l.connected {
		token := l.client.Connect()
		select {
		case <-token.Done():
		case <-ctx.Done():
			// The broker may still accept the abandoned attempt; close it
			// once paho settles so it cannot outlive this session.
			go func() {
				<-token.Done()
				l.client.Disconnect(defaultDisconnectQuiesce)
			}()
			return Event{Kind: EventOther}
		}
		if err := token.Error(); err != nil {
			return Event{Kind: EventDisconnected, Err: err}
		}
		l.connected = true
		return Event{Kind: EventConnected}
	}

	select {
	case err := <-l.lost:
		l.connected = false
		return Event{Kind: EventDisconnected, Err: fmt.Errorf("%w: %w", ErrConnectionLost, err)}
	case <-ctx.Done():
		return Event{Kind: EventOther}
	case <-time.After(pollInterval):
		// Periodic wake so callers observe cancellation promptly.
		return Event{Kind: EventOther}
	}
}

// pollInterval bounds how long Poll blocks on an established connection.
const pollInterval = 30 * time.Second
