package mqtt

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/eclipse/paho.mqtt.golang/packets"
)

// slowBroker accepts one client, reads its CONNECT, waits delay, accepts it
// and then reports when the connection is gone.
func slowBroker(t *testing.T, delay time.Duration) (addr string, closed <-chan struct{}) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	t.Cleanup(func() { ln.Close() }) //nolint:errcheck // Test cleanup

	closedCh := make(chan struct{})
	go func() {
		defer close(closedCh)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		if _, err := packets.ReadPacket(conn); err != nil {
			return
		}
		time.Sleep(delay)

		ack := packets.NewControlPacket(packets.Connack).(*packets.ConnackPacket)
		ack.ReturnCode = packets.Accepted
		if err := ack.Write(conn); err != nil {
			return
		}
		for {
			if _, err := packets.ReadPacket(conn); err != nil {
				return
			}
		}
	}()
	return ln.Addr().String(), closedCh
}

func TestPahoLoopCancelledConnectIsClosed(t *testing.T) {
	addr, closed := slowBroker(t, 700*time.Millisecond)

	client, loop := PahoTransport{}.Dial(Options{
		BrokerURL:      "tcp://" + addr,
		ClientID:       "versionwatch-test",
		KeepAlive:      30 * time.Second,
		ConnectTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if ev := loop.Poll(ctx); ev.Kind != EventOther {
		t.Fatalf("Poll() kind = %v, want EventOther", ev.Kind)
	}
	// Mirrors what the Manager does with a superseded session.
	client.Disconnect()

	select {
	case <-closed:
	case <-time.After(4 * time.Second):
		t.Fatal("connection accepted after cancellation was left open")
	}
}

func TestPahoClientDisconnectBeforeConnect(t *testing.T) {
	client, _ := PahoTransport{}.Dial(Options{
		BrokerURL:      "tcp://127.0.0.1:1",
		ClientID:       "versionwatch-test",
		ConnectTimeout: time.Second,
	})
	// Must not panic or block on a client that never connected.
	done := make(chan struct{})
	go func() {
		client.Disconnect()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("Disconnect() blocked")
	}
}
