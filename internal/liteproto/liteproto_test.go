package liteproto

import (
	"errors"
	"testing"
)

func TestTerminateSessionEncodeExact(t *testing.T) {
	cases := []struct {
		name string
		msg  TerminateSession
		want string
	}{
		{"plain", TerminateSession{SessionA: "abc", SessionB: "def"}, "TerminateSession abc def"},
		{"numeric", TerminateSession{SessionA: "81.4.56.190", SessionB: "52708"}, "TerminateSession 81.4.56.190 52708"},
		// Identifiers are inserted verbatim, even when they would not
		// survive a decode round trip.
		{"verbatim", TerminateSession{SessionA: "a b", SessionB: "c"}, "TerminateSession a b c"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := string(tc.msg.Encode())
			if got != tc.want {
				t.Fatalf("payload=%q, want %q", got, tc.want)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msgs := []Message{
		TerminateSession{SessionA: "abc", SessionB: "def"},
		TalkTo{PeerAddr: "2.126.122.29", PeerPort: 8990},
		RepeatTalkTo{PeerAddr: "2.126.122.29", PeerPort: 8990},
		RespondTo{PeerAddr: "2.166.240.67", PeerPort: 44512},
		TalkRequest{Addr: "81.4.56.190"},
		TalkResponse{Addr: "81.4.56.190"},
		GetInfo{LocalAddr: "192.168.0.12", LocalPort: 50120},
		KeepAliveProxy{Note: "..."},
		ClientShutdown{Addr: "2.221.45.10"},
		CustomMsg{Addr: "2.221.45.10", Port: 50120, Text: "hello there peer"},
	}

	for _, in := range msgs {
		t.Run(in.Tag(), func(t *testing.T) {
			out, err := Decode(in.Encode())
			if err != nil {
				t.Fatalf("Decode(%q): %v", in.Encode(), err)
			}
			if out != in {
				t.Fatalf("round trip: got %#v want %#v", out, in)
			}
		})
	}
}

func TestGetInfoEncodesFixedSentence(t *testing.T) {
	got := string(GetInfo{LocalAddr: "0.0.0.0", LocalPort: 51333}.Encode())
	want := "GetInfo: My locally detected address is 0.0.0.0 on port 51333"
	if got != want {
		t.Fatalf("payload=%q, want %q", got, want)
	}
}

func TestKeepAliveProxyDefaultsNote(t *testing.T) {
	got := string(KeepAliveProxy{}.Encode())
	if got != "KeepAliveProxy ..." {
		t.Fatalf("payload=%q, want %q", got, "KeepAliveProxy ...")
	}
}

func TestCustomMsgKeepsSpacesInText(t *testing.T) {
	in := CustomMsg{Addr: "10.0.0.1", Port: 9000, Text: "spaces stay as is"}
	m, err := Decode(in.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	out, ok := m.(CustomMsg)
	if !ok {
		t.Fatalf("decoded %T, want CustomMsg", m)
	}
	if out.Text != in.Text {
		t.Fatalf("text=%q, want %q", out.Text, in.Text)
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    error
	}{
		{"empty", "", ErrEmpty},
		{"unknown tag", "Bogus 1 2", ErrUnknownTag},
		{"terminate one id", "TerminateSession onlyone", ErrMalformed},
		{"talkto missing port", "TalkTo 1.2.3.4", ErrMalformed},
		{"talkto bad port", "TalkTo 1.2.3.4 notaport", ErrMalformed},
		{"talkto port zero", "TalkTo 1.2.3.4 0", ErrMalformed},
		{"talkto port high", "TalkTo 1.2.3.4 65536", ErrMalformed},
		{"respondto missing", "RespondTo", ErrMalformed},
		{"shutdown missing addr", "ClientShutdown", ErrMalformed},
		{"custommsg missing text", "CustomMsg 1.2.3.4 80", ErrMalformed},
		{"getinfo truncated", "GetInfo: My locally detected address is ", ErrMalformed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.payload))
			if !errors.Is(err, tc.want) {
				t.Fatalf("Decode(%q): got err=%v, want %v", tc.payload, err, tc.want)
			}
		})
	}
}
