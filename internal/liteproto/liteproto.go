// Package liteproto implements the plain-text datagram grammar spoken by the
// lite-STUN rendezvous system.
//
// Every message is a single UDP datagram: space-joined ASCII/UTF-8 fields
// with a leading tag, no length prefix, no terminator and no escaping.
// Identifier fields are carried verbatim; callers that need datagrams to
// survive a decode round trip must keep them free of spaces themselves.
package liteproto

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxDatagram is the receive buffer bound used by all peers of the grammar.
// Senders never come close to it; receivers MUST NOT read with a smaller
// buffer or datagrams get silently truncated.
const MaxDatagram = 4096

// Message tags. The tag is always the first space-separated field of a
// datagram, except for GetInfo which carries a fixed sentence prefix.
const (
	TagTerminateSession = "TerminateSession"
	TagTalkTo           = "TalkTo"
	TagRepeatTalkTo     = "RepeatTalkTo"
	TagRespondTo        = "RespondTo"
	TagTalkRequest      = "TalkRequest"
	TagTalkResponse     = "TalkResponse"
	TagKeepAliveProxy   = "KeepAliveProxy"
	TagClientShutdown   = "ClientShutdown"
	TagCustomMsg        = "CustomMsg"
	TagGetInfo          = "GetInfo:"
)

// getInfoPrefix is the full fixed prefix of a GetInfo probe.
const getInfoPrefix = "GetInfo: My locally detected address is "

var (
	ErrEmpty      = errors.New("liteproto: empty datagram")
	ErrUnknownTag = errors.New("liteproto: unknown message tag")
	ErrMalformed  = errors.New("liteproto: malformed message")
)

// Message is a datagram in the rendezvous grammar.
type Message interface {
	// Tag returns the message tag.
	Tag() string
	// Encode renders the exact datagram payload. Fields are inserted
	// verbatim and the result carries no trailing terminator.
	Encode() []byte
}

// TerminateSession tells the receiving peer or relay to tear down the NAT
// traversal session identified by the (SessionA, SessionB) pair. The
// identifiers are opaque to the sender.
type TerminateSession struct {
	SessionA string
	SessionB string
}

func (m TerminateSession) Tag() string { return TagTerminateSession }

func (m TerminateSession) Encode() []byte {
	return []byte(TagTerminateSession + " " + m.SessionA + " " + m.SessionB)
}

// TalkTo asks the rendezvous server to relay a TalkRequest to the peer whose
// server-observed mapping is PeerAddr:PeerPort.
type TalkTo struct {
	PeerAddr string
	PeerPort uint16
}

func (m TalkTo) Tag() string { return TagTalkTo }

func (m TalkTo) Encode() []byte {
	return []byte(TagTalkTo + " " + m.PeerAddr + " " + strconv.Itoa(int(m.PeerPort)))
}

// RepeatTalkTo retries a TalkTo after the first hole punch attempt failed.
type RepeatTalkTo struct {
	PeerAddr string
	PeerPort uint16
}

func (m RepeatTalkTo) Tag() string { return TagRepeatTalkTo }

func (m RepeatTalkTo) Encode() []byte {
	return []byte(TagRepeatTalkTo + " " + m.PeerAddr + " " + strconv.Itoa(int(m.PeerPort)))
}

// RespondTo confirms a TalkRequest back through the rendezvous server.
type RespondTo struct {
	PeerAddr string
	PeerPort uint16
}

func (m RespondTo) Tag() string { return TagRespondTo }

func (m RespondTo) Encode() []byte {
	return []byte(TagRespondTo + " " + m.PeerAddr + " " + strconv.Itoa(int(m.PeerPort)))
}

// TalkRequest is sent by the server to a peer on behalf of the peer at Addr.
type TalkRequest struct {
	Addr string
}

func (m TalkRequest) Tag() string { return TagTalkRequest }

func (m TalkRequest) Encode() []byte { return []byte(TagTalkRequest + " " + m.Addr) }

// TalkResponse is the server-relayed confirmation from the peer at Addr.
type TalkResponse struct {
	Addr string
}

func (m TalkResponse) Tag() string { return TagTalkResponse }

func (m TalkResponse) Encode() []byte { return []byte(TagTalkResponse + " " + m.Addr) }

// GetInfo probes the rendezvous server for the sender's external mapping.
// LocalAddr/LocalPort are the locally detected socket address; the server
// only ever echoes what it observes, so these are informational.
type GetInfo struct {
	LocalAddr string
	LocalPort uint16
}

func (m GetInfo) Tag() string { return TagGetInfo }

func (m GetInfo) Encode() []byte {
	return []byte(getInfoPrefix + m.LocalAddr + " on port " + strconv.Itoa(int(m.LocalPort)))
}

// KeepAliveProxy keeps the NAT mapping to the rendezvous server open. The
// remainder after the tag is free form; servers append peer-candidate
// updates there, clients send a bare filler.
type KeepAliveProxy struct {
	Note string
}

func (m KeepAliveProxy) Tag() string { return TagKeepAliveProxy }

func (m KeepAliveProxy) Encode() []byte {
	note := m.Note
	if note == "" {
		note = "..."
	}
	return []byte(TagKeepAliveProxy + " " + note)
}

// ClientShutdown tells the rendezvous server to drop the peer at Addr from
// its candidate table.
type ClientShutdown struct {
	Addr string
}

func (m ClientShutdown) Tag() string { return TagClientShutdown }

func (m ClientShutdown) Encode() []byte { return []byte(TagClientShutdown + " " + m.Addr) }

// CustomMsg carries an arbitrary application payload directly to a peer,
// prefixed with the sender's external mapping so the peer can reply.
type CustomMsg struct {
	Addr string
	Port uint16
	Text string
}

func (m CustomMsg) Tag() string { return TagCustomMsg }

func (m CustomMsg) Encode() []byte {
	return []byte(TagCustomMsg + " " + m.Addr + " " + strconv.Itoa(int(m.Port)) + " " + m.Text)
}

// Decode parses a received datagram into its typed message.
//
// Splitting is on single spaces, matching the encoders above. Free-form
// trailing fields (KeepAliveProxy, CustomMsg) keep their remainder verbatim.
func Decode(b []byte) (Message, error) {
	s := string(b)
	if s == "" {
		return nil, ErrEmpty
	}
	if rest, ok := strings.CutPrefix(s, getInfoPrefix); ok {
		return decodeGetInfo(rest)
	}

	tag, rest, _ := strings.Cut(s, " ")
	switch tag {
	case TagTerminateSession:
		a, b, ok := strings.Cut(rest, " ")
		if !ok || a == "" || b == "" {
			return nil, fmt.Errorf("%w: %s wants two session identifiers", ErrMalformed, tag)
		}
		return TerminateSession{SessionA: a, SessionB: b}, nil
	case TagTalkTo:
		addr, port, err := decodeAddrPort(tag, rest)
		if err != nil {
			return nil, err
		}
		return TalkTo{PeerAddr: addr, PeerPort: port}, nil
	case TagRepeatTalkTo:
		addr, port, err := decodeAddrPort(tag, rest)
		if err != nil {
			return nil, err
		}
		return RepeatTalkTo{PeerAddr: addr, PeerPort: port}, nil
	case TagRespondTo:
		addr, port, err := decodeAddrPort(tag, rest)
		if err != nil {
			return nil, err
		}
		return RespondTo{PeerAddr: addr, PeerPort: port}, nil
	case TagTalkRequest:
		if rest == "" {
			return nil, fmt.Errorf("%w: %s wants a peer address", ErrMalformed, tag)
		}
		return TalkRequest{Addr: rest}, nil
	case TagTalkResponse:
		if rest == "" {
			return nil, fmt.Errorf("%w: %s wants a peer address", ErrMalformed, tag)
		}
		return TalkResponse{Addr: rest}, nil
	case TagKeepAliveProxy:
		return KeepAliveProxy{Note: rest}, nil
	case TagClientShutdown:
		if rest == "" {
			return nil, fmt.Errorf("%w: %s wants a peer address", ErrMalformed, tag)
		}
		return ClientShutdown{Addr: rest}, nil
	case TagCustomMsg:
		addr, after, ok := strings.Cut(rest, " ")
		if !ok {
			return nil, fmt.Errorf("%w: %s wants addr, port and text", ErrMalformed, tag)
		}
		portStr, text, ok := strings.Cut(after, " ")
		if !ok {
			return nil, fmt.Errorf("%w: %s wants addr, port and text", ErrMalformed, tag)
		}
		port, err := parsePort(portStr)
		if err != nil {
			return nil, fmt.Errorf("%w: %s port: %v", ErrMalformed, tag, err)
		}
		return CustomMsg{Addr: addr, Port: port, Text: text}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}
}

func decodeGetInfo(rest string) (Message, error) {
	addr, portStr, ok := strings.Cut(rest, " on port ")
	if !ok || addr == "" {
		return nil, fmt.Errorf("%w: GetInfo wants address and port", ErrMalformed)
	}
	port, err := parsePort(portStr)
	if err != nil {
		return nil, fmt.Errorf("%w: GetInfo port: %v", ErrMalformed, err)
	}
	return GetInfo{LocalAddr: addr, LocalPort: port}, nil
}

func decodeAddrPort(tag, rest string) (string, uint16, error) {
	addr, portStr, ok := strings.Cut(rest, " ")
	if !ok || addr == "" {
		return "", 0, fmt.Errorf("%w: %s wants addr and port", ErrMalformed, tag)
	}
	port, err := parsePort(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %s port: %v", ErrMalformed, tag, err)
	}
	return addr, port, nil
}

func parsePort(s string) (uint16, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if n < 1 || n > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", n)
	}
	return uint16(n), nil
}
