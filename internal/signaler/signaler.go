package signaler

import (
	"fmt"
	"net"
	"strconv"

	"github.com/pion/transport/v3"
	"github.com/pion/transport/v3/stdnet"

	"natlite/internal/liteproto"
)

// Endpoint is a destination for one-shot datagrams: an IPv4 host (name or
// literal) and a UDP port.
type Endpoint struct {
	Host string
	Port uint16
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

// Conn is a scoped, exclusively owned UDP send handle. It is acquired with
// Dial and MUST be closed by the caller on every path once acquired.
type Conn struct {
	nc    net.Conn
	raddr *net.UDPAddr
}

// Dial resolves ep over IPv4 and opens an unbound, connectionless send
// handle to it. nw selects the network implementation (pion transport.Net);
// nil means the real host network.
//
// Resolution failures wrap ErrResolve, socket failures wrap ErrTransport.
func Dial(nw transport.Net, ep Endpoint) (*Conn, error) {
	if nw == nil {
		sn, err := stdnet.NewNet()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}
		nw = sn
	}

	raddr, err := nw.ResolveUDPAddr("udp4", ep.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrResolve, ep.String(), err)
	}

	nc, err := nw.Dial("udp4", raddr.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	return &Conn{nc: nc, raddr: raddr}, nil
}

// RemoteAddr returns the resolved destination.
func (c *Conn) RemoteAddr() *net.UDPAddr { return c.raddr }

// Send encodes m and transmits it as a single datagram. Best effort: UDP
// gives no delivery, ordering or duplication guarantee and Send does not
// compensate. A short write cannot happen on a datagram socket.
func (c *Conn) Send(m liteproto.Message) error {
	if _, err := c.nc.Write(m.Encode()); err != nil {
		return fmt.Errorf("%w: send %s: %v", ErrTransport, m.Tag(), err)
	}
	return nil
}

func (c *Conn) Close() error {
	return c.nc.Close()
}

// Terminate signals the peer or relay at ep to tear down the NAT traversal
// session identified by (sessionA, sessionB). One datagram, no response
// expected; the first error aborts the whole operation.
func Terminate(nw transport.Net, ep Endpoint, sessionA, sessionB string) error {
	return sendOnce(nw, ep, liteproto.TerminateSession{SessionA: sessionA, SessionB: sessionB})
}

// RequestTalk asks the rendezvous server at ep to relay a TalkRequest to the
// peer whose server-observed mapping is peerAddr:peerPort.
func RequestTalk(nw transport.Net, ep Endpoint, peerAddr string, peerPort uint16) error {
	return sendOnce(nw, ep, liteproto.TalkTo{PeerAddr: peerAddr, PeerPort: peerPort})
}

// NotifyShutdown tells the rendezvous server at ep to drop addr from its
// peer-candidate table.
func NotifyShutdown(nw transport.Net, ep Endpoint, addr string) error {
	return sendOnce(nw, ep, liteproto.ClientShutdown{Addr: addr})
}

func sendOnce(nw transport.Net, ep Endpoint, m liteproto.Message) error {
	conn, err := Dial(nw, ep)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.Send(m)
}
