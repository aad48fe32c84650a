package signaler

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pion/stun/v3"
	"github.com/pion/transport/v3"
	"github.com/pion/transport/v3/stdnet"

	"natlite/internal/liteproto"
)

// Mapping is an external (server-observed) address/port pair.
type Mapping struct {
	ExternalAddr string
	ExternalPort uint16
}

func (m Mapping) String() string {
	return net.JoinHostPort(m.ExternalAddr, strconv.Itoa(int(m.ExternalPort)))
}

// Discover probes the lite rendezvous server at ep for this host's external
// mapping. It binds an ephemeral socket, sends one GetInfo datagram and then
// reads the server's ack, external-address and external-port datagrams under
// a single read deadline.
//
// The server follows up with a peer-candidate datagram; Discover leaves it
// unread (peer coordination is the agent's job, not this client's).
func Discover(nw transport.Net, ep Endpoint, timeout time.Duration) (Mapping, error) {
	if nw == nil {
		sn, err := stdnet.NewNet()
		if err != nil {
			return Mapping{}, fmt.Errorf("%w: %v", ErrTransport, err)
		}
		nw = sn
	}

	raddr, err := nw.ResolveUDPAddr("udp4", ep.String())
	if err != nil {
		return Mapping{}, fmt.Errorf("%w: %q: %v", ErrResolve, ep.String(), err)
	}

	conn, err := nw.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return Mapping{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer conn.Close()

	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return Mapping{}, fmt.Errorf("%w: unexpected local address %v", ErrTransport, conn.LocalAddr())
	}
	probe := liteproto.GetInfo{LocalAddr: local.IP.String(), LocalPort: uint16(local.Port)}
	if _, err := conn.WriteTo(probe.Encode(), raddr); err != nil {
		return Mapping{}, fmt.Errorf("%w: send %s: %v", ErrTransport, probe.Tag(), err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Mapping{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	// The server answers with three datagrams: an ack, the observed address
	// and the observed port.
	var fields [3]string
	buf := make([]byte, liteproto.MaxDatagram)
	for i := range fields {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return Mapping{}, fmt.Errorf("%w: %s", ErrDiscoveryTimeout, ep.String())
			}
			return Mapping{}, fmt.Errorf("%w: %v", ErrTransport, err)
		}
		fields[i] = string(buf[:n])
	}

	addr := lastField(fields[1])
	port, err := strconv.Atoi(lastField(fields[2]))
	if err != nil || port < 1 || port > 65535 {
		return Mapping{}, fmt.Errorf("%w: bad external port datagram %q", ErrTransport, fields[2])
	}

	return Mapping{ExternalAddr: addr, ExternalPort: uint16(port)}, nil
}

// lastField strips a "label: " prefix if present. Rendezvous servers answer
// either with the bare value or with "Detected external address: <value>".
func lastField(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, ": "); i >= 0 {
		return s[i+2:]
	}
	return s
}

// DiscoverSTUN resolves this host's external mapping with an RFC 5389
// binding request against a real STUN server instead of the lite grammar.
func DiscoverSTUN(nw transport.Net, ep Endpoint) (Mapping, error) {
	conn, err := Dial(nw, ep)
	if err != nil {
		return Mapping{}, err
	}

	client, err := stun.NewClient(conn.nc)
	if err != nil {
		conn.Close()
		return Mapping{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	// Closing the client closes the underlying socket.
	defer client.Close()

	var (
		mapping Mapping
		cbErr   error
	)
	req := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
	if err := client.Do(req, func(res stun.Event) {
		if res.Error != nil {
			cbErr = res.Error
			return
		}
		var xorAddr stun.XORMappedAddress
		if getErr := xorAddr.GetFrom(res.Message); getErr != nil {
			cbErr = getErr
			return
		}
		mapping = Mapping{ExternalAddr: xorAddr.IP.String(), ExternalPort: uint16(xorAddr.Port)}
	}); err != nil {
		return Mapping{}, fmt.Errorf("%w: stun binding: %v", ErrTransport, err)
	}
	if cbErr != nil {
		return Mapping{}, fmt.Errorf("%w: stun binding: %v", ErrTransport, cbErr)
	}

	return mapping, nil
}
