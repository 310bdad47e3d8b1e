package libssh

import (
	"net"
	"testing"

	"github.com/rgo/libssh/transport"
)

// pipeSession builds a Session wired to one end of a net.Pipe, with the
// wire framer in plaintext mode (as it is pre-NEWKEYS), suitable for
// driving ExecuteMessageCallbacks against a hand-built packet.
func pipeSession(t *testing.T) (*Session, net.Conn) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	s := newSession(serverConn, NewListener())
	s.current = &transport.CryptoContext{}
	s.state = StateAuthenticating
	return s, clientConn
}

func writeRawPacket(t *testing.T, conn net.Conn, payload []byte) {
	t.Helper()
	f := transport.NewFramer(conn, conn)
	go func() {
		_ = f.WritePacket(payload, nil)
	}()
}

func readRawPacket(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	f := transport.NewFramer(conn, conn)
	raw, err := f.ReadPacket(nil)
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	return raw
}

func TestExecuteMessageCallbacksDefaultAuthFailure(t *testing.T) {
	s, client := pipeSession(t)
	defer client.Close()

	req := transport.NewBuffer()
	req.WriteU8(uint8(transport.MsgUserAuthReq))
	req.WriteString([]byte("alice"))
	req.WriteString([]byte("ssh-connection"))
	req.WriteString([]byte("password"))
	req.WriteBool(false)
	req.WriteString([]byte("wrongpass"))
	writeRawPacket(t, client, req.Bytes())

	done := make(chan error, 1)
	go func() { done <- ExecuteMessageCallbacks(s) }()

	raw := readRawPacket(t, client)
	if err := <-done; err != nil {
		t.Fatalf("ExecuteMessageCallbacks: %v", err)
	}
	if len(raw) == 0 || int(raw[0]) != transport.MsgUserAuthFail {
		t.Fatalf("expected USERAUTH_FAILURE, got message type %d", raw[0])
	}

	buf := transport.NewBufferFromBytes(raw[1:])
	methods, err := buf.ReadNameList()
	if err != nil {
		t.Fatalf("reading method name-list: %v", err)
	}
	if len(methods) == 0 {
		t.Fatal("expected a non-empty method list")
	}
	partial, err := buf.ReadBool()
	if err != nil {
		t.Fatalf("reading partial-success flag: %v", err)
	}
	if partial {
		t.Fatal("expected partial=false on a first failed attempt")
	}
}

func TestExecuteMessageCallbacksServiceAccept(t *testing.T) {
	s, client := pipeSession(t)
	defer client.Close()

	req := transport.NewBuffer()
	req.WriteU8(uint8(transport.MsgServiceReq))
	req.WriteString([]byte("ssh-userauth"))
	writeRawPacket(t, client, req.Bytes())

	done := make(chan error, 1)
	go func() { done <- ExecuteMessageCallbacks(s) }()

	raw := readRawPacket(t, client)
	if err := <-done; err != nil {
		t.Fatalf("ExecuteMessageCallbacks: %v", err)
	}
	if int(raw[0]) != transport.MsgServiceAcpt {
		t.Fatalf("expected SERVICE_ACCEPT, got %d", raw[0])
	}
	buf := transport.NewBufferFromBytes(raw[1:])
	name, err := buf.ReadString()
	if err != nil || string(name) != "ssh-userauth" {
		t.Fatalf("expected echoed service name, got %q (err=%v)", name, err)
	}
}

func TestExecuteMessageCallbacksChannelOpenFailure(t *testing.T) {
	s, client := pipeSession(t)
	defer client.Close()

	req := transport.NewBuffer()
	req.WriteU8(uint8(transport.MsgChannelOpen))
	req.WriteString([]byte("session"))
	req.WriteU32(9)
	req.WriteU32(32768)
	req.WriteU32(16384)
	writeRawPacket(t, client, req.Bytes())

	done := make(chan error, 1)
	go func() { done <- ExecuteMessageCallbacks(s) }()

	raw := readRawPacket(t, client)
	if err := <-done; err != nil {
		t.Fatalf("ExecuteMessageCallbacks: %v", err)
	}
	if int(raw[0]) != transport.MsgChannelOpenFailure {
		t.Fatalf("expected CHANNEL_OPEN_FAILURE, got %d", raw[0])
	}
	buf := transport.NewBufferFromBytes(raw[1:])
	recipient, err := buf.ReadU32()
	if err != nil || recipient != 9 {
		t.Fatalf("expected recipient channel 9 echoed back, got %d (err=%v)", recipient, err)
	}
}

func TestExecuteMessageCallbacksCustomHandlerSuppressesDefault(t *testing.T) {
	s, client := pipeSession(t)
	defer client.Close()

	var seen *Message
	SetMessageCallback(s, func(_ *Session, m *Message) int {
		seen = m
		return 0 // fully handled, no default reply
	}, nil)

	req := transport.NewBuffer()
	req.WriteU8(uint8(transport.MsgServiceReq))
	req.WriteString([]byte("ssh-userauth"))
	writeRawPacket(t, client, req.Bytes())

	if err := ExecuteMessageCallbacks(s); err != nil {
		t.Fatalf("ExecuteMessageCallbacks: %v", err)
	}
	if seen == nil || seen.ServiceName() != "ssh-userauth" {
		t.Fatalf("callback did not see the parsed message: %+v", seen)
	}
}

func TestAuthMethodListRendering(t *testing.T) {
	s := &Session{authMethods: AuthMethodPublicKey | AuthMethodPassword}
	if got := s.authMethodList(); got != "publickey,password" {
		t.Fatalf("unexpected method list: %q", got)
	}

	s2 := &Session{authMethods: 0}
	if got := s2.authMethodList(); got != "" {
		t.Fatalf("expected empty method list, got %q", got)
	}
}
