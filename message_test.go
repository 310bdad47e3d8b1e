package libssh

import (
	"testing"

	"github.com/rgo/libssh/transport"
)

func TestParseAuthRequestPassword(t *testing.T) {
	buf := transport.NewBuffer()
	buf.WriteString([]byte("alice"))
	buf.WriteString([]byte("ssh-connection"))
	buf.WriteString([]byte("password"))
	buf.WriteBool(false)
	buf.WriteString([]byte("hunter2"))

	s := &Session{}
	raw := buf.Bytes()
	m, err := parseAuthRequest(s, transport.NewBufferFromBytes(raw))
	if err != nil {
		t.Fatalf("parseAuthRequest: %v", err)
	}
	if m.Kind != KindAuthRequest {
		t.Fatalf("expected KindAuthRequest, got %v", m.Kind)
	}
	if m.User() != "alice" || m.Password() != "hunter2" {
		t.Fatalf("unexpected fields: user=%q password=%q", m.User(), m.Password())
	}
}

func TestParseAuthRequestPublicKeyNoSignature(t *testing.T) {
	buf := transport.NewBuffer()
	buf.WriteString([]byte("bob"))
	buf.WriteString([]byte("ssh-connection"))
	buf.WriteString([]byte("publickey"))
	buf.WriteBool(false)
	buf.WriteString([]byte("ssh-rsa"))
	buf.WriteString([]byte("fake-key-blob"))

	s := &Session{}
	m, err := parseAuthRequest(s, transport.NewBufferFromBytes(buf.Bytes()))
	if err != nil {
		t.Fatalf("parseAuthRequest: %v", err)
	}
	if m.SigState() != SigNone {
		t.Fatalf("expected SigNone for a probe without a signature, got %v", m.SigState())
	}
	if string(m.PublicKey()) != "fake-key-blob" {
		t.Fatalf("unexpected public key blob: %q", m.PublicKey())
	}
}

func TestParseAuthRequestPublicKeyBadSignatureIsRejected(t *testing.T) {
	buf := transport.NewBuffer()
	buf.WriteString([]byte("bob"))
	buf.WriteString([]byte("ssh-connection"))
	buf.WriteString([]byte("publickey"))
	buf.WriteBool(true)
	buf.WriteString([]byte("ssh-rsa"))
	buf.WriteString([]byte("not-a-real-key-blob"))
	buf.WriteString([]byte("not-a-real-signature-blob"))

	s := &Session{sessionID: []byte("session-id-bytes")}
	m, err := parseAuthRequest(s, transport.NewBufferFromBytes(buf.Bytes()))
	if err != nil {
		t.Fatalf("parseAuthRequest: %v", err)
	}
	if m.SigState() != SigWrong {
		t.Fatalf("expected SigWrong for an unparsable key blob, got %v", m.SigState())
	}
}

func TestParseServiceRequest(t *testing.T) {
	buf := transport.NewBuffer()
	buf.WriteString([]byte("ssh-userauth"))

	m, err := parseServiceRequest(transport.NewBufferFromBytes(buf.Bytes()))
	if err != nil {
		t.Fatalf("parseServiceRequest: %v", err)
	}
	if m.Kind != KindServiceRequest || m.ServiceName() != "ssh-userauth" {
		t.Fatalf("unexpected message: %+v", m)
	}
}

func TestParseChannelOpenRequestSession(t *testing.T) {
	buf := transport.NewBuffer()
	buf.WriteString([]byte("session"))
	buf.WriteU32(7)
	buf.WriteU32(32768)
	buf.WriteU32(16384)

	m, err := parseChannelOpenRequest(transport.NewBufferFromBytes(buf.Bytes()))
	if err != nil {
		t.Fatalf("parseChannelOpenRequest: %v", err)
	}
	if m.Kind != KindChannelOpenRequest || m.senderChannel != 7 {
		t.Fatalf("unexpected message: %+v", m)
	}
}

func TestParseChannelOpenRequestDirectTCPIP(t *testing.T) {
	buf := transport.NewBuffer()
	buf.WriteString([]byte("direct-tcpip"))
	buf.WriteU32(3)
	buf.WriteU32(32768)
	buf.WriteU32(16384)
	buf.WriteString([]byte("example.com"))
	buf.WriteU32(443)
	buf.WriteString([]byte("10.0.0.5"))
	buf.WriteU32(52341)

	m, err := parseChannelOpenRequest(transport.NewBufferFromBytes(buf.Bytes()))
	if err != nil {
		t.Fatalf("parseChannelOpenRequest: %v", err)
	}
	if m.DestHostPort() != "example.com:443" {
		t.Fatalf("unexpected dest host:port: %q", m.DestHostPort())
	}
	if m.OriginatorHostPort() != "10.0.0.5:52341" {
		t.Fatalf("unexpected originator host:port: %q", m.OriginatorHostPort())
	}
}

func TestParseChannelRequestPTY(t *testing.T) {
	buf := transport.NewBuffer()
	buf.WriteU32(1)
	buf.WriteString([]byte("pty-req"))
	buf.WriteBool(true)
	buf.WriteString([]byte("xterm"))
	buf.WriteU32(80)
	buf.WriteU32(24)
	buf.WriteU32(640)
	buf.WriteU32(480)
	buf.WriteString(nil)

	m, err := parseChannelRequest(transport.NewBufferFromBytes(buf.Bytes()))
	if err != nil {
		t.Fatalf("parseChannelRequest: %v", err)
	}
	term, cols, rows := m.PTYFields()
	if term != "xterm" || cols != 80 || rows != 24 {
		t.Fatalf("unexpected PTY fields: %q %d %d", term, cols, rows)
	}
	pxWidth, pxHeight := m.PTYPixelSize()
	if pxWidth != 640 || pxHeight != 480 {
		t.Fatalf("unexpected PTY pixel size: %d %d", pxWidth, pxHeight)
	}
	if !m.wantReply {
		t.Fatal("expected wantReply true")
	}
}

func TestParseChannelRequestExec(t *testing.T) {
	buf := transport.NewBuffer()
	buf.WriteU32(1)
	buf.WriteString([]byte("exec"))
	buf.WriteBool(true)
	buf.WriteString([]byte("/usr/bin/id"))

	m, err := parseChannelRequest(transport.NewBufferFromBytes(buf.Bytes()))
	if err != nil {
		t.Fatalf("parseChannelRequest: %v", err)
	}
	if m.ExecCommand() != "/usr/bin/id" {
		t.Fatalf("unexpected exec command: %q", m.ExecCommand())
	}
}
