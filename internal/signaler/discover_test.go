package signaler

import (
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/pion/stun/v3"

	"natlite/internal/liteproto"
)

// fakeRendezvous answers one GetInfo probe the way stunserverlite does:
// an ack, then the observed address, then the observed port.
func fakeRendezvous(t *testing.T, reply func(conn *net.UDPConn, client *net.UDPAddr)) Endpoint {
	t.Helper()

	conn, ep := newLoopbackReceiver(t)
	go func() {
		buf := make([]byte, liteproto.MaxDatagram)
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		n, client, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		if _, err := liteproto.Decode(buf[:n]); err != nil {
			t.Errorf("server got undecodable probe %q: %v", buf[:n], err)
			return
		}
		reply(conn, client)
	}()
	return ep
}

func TestDiscoverBareVariant(t *testing.T) {
	observed := make(chan *net.UDPAddr, 1)
	ep := fakeRendezvous(t, func(conn *net.UDPConn, client *net.UDPAddr) {
		observed <- client
		_, _ = conn.WriteToUDP([]byte("Message received\n"), client)
		_, _ = conn.WriteToUDP([]byte(client.IP.String()), client)
		_, _ = conn.WriteToUDP([]byte(strconv.Itoa(client.Port)), client)
	})

	m, err := Discover(nil, ep, 3*time.Second)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	client := <-observed
	if m.ExternalAddr != client.IP.String() {
		t.Fatalf("addr=%q, want %q", m.ExternalAddr, client.IP.String())
	}
	if int(m.ExternalPort) != client.Port {
		t.Fatalf("port=%d, want %d", m.ExternalPort, client.Port)
	}
}

func TestDiscoverLabelledVariant(t *testing.T) {
	ep := fakeRendezvous(t, func(conn *net.UDPConn, client *net.UDPAddr) {
		_, _ = conn.WriteToUDP([]byte("Message received\n"), client)
		_, _ = conn.WriteToUDP([]byte("Detected external address: 2.126.122.29\n"), client)
		_, _ = conn.WriteToUDP([]byte("Detected port: 8990\n"), client)
	})

	m, err := Discover(nil, ep, 3*time.Second)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	want := Mapping{ExternalAddr: "2.126.122.29", ExternalPort: 8990}
	if m != want {
		t.Fatalf("got %+v want %+v", m, want)
	}
}

func TestDiscoverTimeout(t *testing.T) {
	// A listener that never answers.
	_, ep := newLoopbackReceiver(t)

	_, err := Discover(nil, ep, 200*time.Millisecond)
	if !errors.Is(err, ErrDiscoveryTimeout) {
		t.Fatalf("got err=%v, want ErrDiscoveryTimeout", err)
	}
}

func TestDiscoverUnresolvableServer(t *testing.T) {
	_, err := Discover(nil, Endpoint{Host: "natlite-does-not-exist.invalid", Port: 3478}, time.Second)
	if !errors.Is(err, ErrResolve) {
		t.Fatalf("got err=%v, want ErrResolve", err)
	}
}

func TestDiscoverSTUN(t *testing.T) {
	conn, ep := newLoopbackReceiver(t)

	go func() {
		buf := make([]byte, 1500)
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		n, client, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		req := &stun.Message{Raw: append([]byte{}, buf[:n]...)}
		if err := req.Decode(); err != nil {
			t.Errorf("server got undecodable stun request: %v", err)
			return
		}
		resp, err := stun.Build(
			stun.NewTransactionIDSetter(req.TransactionID),
			stun.BindingSuccess,
			&stun.XORMappedAddress{IP: client.IP, Port: client.Port},
			stun.Fingerprint,
		)
		if err != nil {
			t.Errorf("build stun response: %v", err)
			return
		}
		_, _ = conn.WriteToUDP(resp.Raw, client)
	}()

	m, err := DiscoverSTUN(nil, ep)
	if err != nil {
		t.Fatalf("DiscoverSTUN: %v", err)
	}
	if m.ExternalAddr != "127.0.0.1" {
		t.Fatalf("addr=%q, want 127.0.0.1", m.ExternalAddr)
	}
	if m.ExternalPort == 0 {
		t.Fatalf("port=0, want the client's ephemeral port")
	}
}
