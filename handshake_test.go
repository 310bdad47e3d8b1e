package libssh

import (
	"bufio"
	"net"
	"testing"

	"github.com/rgo/libssh/transport"
)

func TestSelectProtocolVersionAccepts2_0(t *testing.T) {
	s := &Session{clientBanner: "SSH-2.0-OpenSSH_8.1"}
	if err := selectProtocolVersion(s); err != nil {
		t.Fatalf("expected SSH-2.0 to be accepted, got %v", err)
	}
}

func TestSelectProtocolVersionRejectsSSH1(t *testing.T) {
	s := &Session{clientBanner: "SSH-1.99-OpenSSH_2.0"}
	if err := selectProtocolVersion(s); err == nil {
		t.Fatal("expected SSH-1.x to be rejected")
	}
}

func TestSelectProtocolVersionRejectsMalformedBanner(t *testing.T) {
	s := &Session{clientBanner: "not a banner at all"}
	if err := selectProtocolVersion(s); err == nil {
		t.Fatal("expected a malformed banner to be rejected")
	}
}

func TestReceiveBannerNormalizesCR(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		_, _ = client.Write([]byte("SSH-2.0-test\r\n"))
	}()

	s := newSession(server, NewListener())
	if err := receiveBanner(s); err != nil {
		t.Fatalf("receiveBanner: %v", err)
	}
	if s.state != StateBannerReceived {
		t.Fatalf("expected StateBannerReceived, got %v", s.state)
	}
	// The trailing '\r' is normalized to NUL before the line is stored.
	want := "SSH-2.0-test\x00"
	if s.clientBanner != want {
		t.Fatalf("expected banner %q, got %q", want, s.clientBanner)
	}
}

func TestReceiveBannerRejectsOversizedLine(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()

	long := make([]byte, maxBannerLen+10)
	for i := range long {
		long[i] = 'A'
	}
	go func() {
		w := bufio.NewWriter(client)
		_, _ = w.Write(long)
		_, _ = w.Write([]byte("\n"))
		_ = w.Flush()
	}()

	s := newSession(server, NewListener())
	if err := receiveBanner(s); err == nil {
		t.Fatal("expected an oversized banner to be rejected")
	}
}

func TestRunDHRejectsOutOfStatePacket(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		// Send a packet that isn't KEXDH_INIT; runDH must reject it
		// rather than silently proceeding.
		buf := []byte{1} // MsgDisconnect, not MsgKexDHInit
		f := transport.NewFramer(client, client)
		_ = f.WritePacket(buf, nil)
	}()

	s := newSession(server, NewListener())
	s.state = StateKexInitReceived
	if err := runDH(s); err == nil {
		t.Fatal("expected runDH to reject an out-of-state packet type")
	}
}
