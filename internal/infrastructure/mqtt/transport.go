package mqtt

import (
	"context"
	"crypto/tls"
	"time"
)

// EventKind classifies what an EventLoop poll observed.
type EventKind int

const (
	// EventOther is any poll result that does not change connection state.
	EventOther EventKind = iota
	// EventConnected means the broker accepted the connection.
	EventConnected
	// EventDisconnected means a connect attempt failed or the connection dropped.
	EventDisconnected
)

// String implements fmt.Stringer.
func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	default:
		return "other"
	}
}

// Event is one result of EventLoop.Poll.
type Event struct {
	Kind EventKind
	// Err is the reason for EventDisconnected.
	Err error
}

// Client publishes on an established connection.
type Client interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Disconnect()
}

// EventLoop drives the connection. Poll connects when disconnected and
// otherwise blocks until the connection state changes or ctx is done.
type EventLoop interface {
	Poll(ctx context.Context) Event
}

// Transport creates a Client and its EventLoop for one session.
type Transport interface {
	Dial(opts Options) (Client, EventLoop)
}

// Options are the transport-level connection parameters.
type Options struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	// TLS is non-nil for mqtts:// and wss://.
	TLS *tls.Config

	WillTopic   string
	WillPayload []byte
}
