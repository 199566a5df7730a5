package mqtt

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/versionwatch/internal/store"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time for one connect attempt.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for a publish to be written.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is used when no keepalive is configured.
	defaultKeepAlive = 30 * time.Second

	// websocketPath is the conventional MQTT-over-WebSocket endpoint.
	websocketPath = "/mqtt"

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// scheme maps a stored protocol to the paho broker URL scheme and whether
// the connection is encrypted.
type scheme struct {
	url string
	tls bool
	ws  bool
}

var schemes = map[string]scheme{
	"mqtt":  {url: "tcp"},
	"mqtts": {url: "ssl", tls: true},
	"ws":    {url: "ws", ws: true},
	"wss":   {url: "wss", tls: true, ws: true},
}

// BuildOptions converts a stored broker record into transport options.
//
// This configures:
//   - Broker URL from protocol, host and port
//   - Credentials, only when both username and password are set
//   - TLS with system roots for mqtts:// and wss://
//   - Last Will on the client's status topic
//
// Returns:
//   - Options: Ready for Transport.Dial
//   - error: ErrUnsupportedProtocol for an unknown scheme
func BuildOptions(b store.BrokerConfig, keepAlive time.Duration) (Options, error) {
	proto := strings.ToLower(strings.TrimSuffix(b.Protocol, "://"))
	s, ok := schemes[proto]
	if !ok {
		return Options{}, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, b.Protocol)
	}

	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}

	brokerURL := fmt.Sprintf("%s://%s", s.url, net.JoinHostPort(b.Host, strconv.Itoa(b.Port)))
	if s.ws {
		brokerURL += websocketPath
	}

	opts := Options{
		BrokerURL:      brokerURL,
		ClientID:       b.ClientID,
		KeepAlive:      keepAlive,
		ConnectTimeout: defaultConnectTimeout,
		WillTopic:      StatusTopic(b.ClientID),
		WillPayload:    buildWillPayload(b.ClientID),
	}

	if b.Username != "" && b.Password != "" {
		opts.Username = b.Username
		opts.Password = b.Password
	}

	if s.tls {
		opts.TLS = &tls.Config{
			MinVersion: tlsMinVersion,
			ServerName: b.Host,
		}
	}

	return opts, nil
}
