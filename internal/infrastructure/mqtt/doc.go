// Package mqtt owns the broker connection used to publish file versions.
//
// A Manager drives one connection session at a time. Each session pairs a
// Client (publishing) with an EventLoop (connection lifecycle) obtained from a
// Transport; the production Transport wraps paho.mqtt.golang with paho's own
// reconnect logic disabled so the Manager controls retries:
//
//	Disconnected -> Connecting -> Connected
//	      ^              |            |
//	      +---- error ---+------------+
//
// Every connection error goes through Classify. Transient errors (timeouts,
// refused TCP connections, lost connections, broker unavailable) back off
// exponentially and retry. Fatal errors (TLS/certificate problems, DNS
// failure, rejected credentials or client id, plaintext talking to a TLS
// listener) stop the session until Refresh or Restart.
//
// Status is written back to the store's broker record after every state
// change. A session replaced by Refresh never writes status again.
//
// Publishing is QoS 0 and fire-and-forget: failures are logged and counted.
//
// Each connection registers a retained Last Will on
// versionwatch/<client_id>/status and announces "online" there once
// connected.
package mqtt
