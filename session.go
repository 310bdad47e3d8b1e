package libssh

// Session info/state for one accepted peer connection, carried through
// version negotiation, algorithm negotiation, key exchange, and into the
// authentication/channel callback phase.

import (
	"net"

	"github.com/rgo/libssh/transport"
)

// SessionState is the top-level handshake state.
type SessionState int

const (
	StateNone SessionState = iota
	StateConnecting
	StateSocketConnected
	StateBannerReceived
	StateInitialKex
	StateKexInitReceived
	StateDH
	StateAuthenticating
	StateDisconnected
	StateError
)

func (s SessionState) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateConnecting:
		return "CONNECTING"
	case StateSocketConnected:
		return "SOCKET_CONNECTED"
	case StateBannerReceived:
		return "BANNER_RECEIVED"
	case StateInitialKex:
		return "INITIAL_KEX"
	case StateKexInitReceived:
		return "KEXINIT_RECEIVED"
	case StateDH:
		return "DH"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateDisconnected:
		return "DISCONNECTED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// DHHandshakeState is the DH exchange sub-state.
type DHHandshakeState int

const (
	DHInit DHHandshakeState = iota
	DHInitSent
	DHNewKeysSent
	DHFinished
)

// Authentication method bits. The default advertised mask is
// publickey | password.
const (
	AuthMethodPublicKey = 1 << iota
	AuthMethodPassword
	AuthMethodKeyboardInteractive
	AuthMethodHostbased
	AuthMethodGSSAPI
)

// DefaultAuthMethods is the mask advertised when a session is created.
const DefaultAuthMethods = AuthMethodPublicKey | AuthMethodPassword

// authMethodNames is the fixed ordering used to render the comma-list in
// USERAUTH_FAILURE, so the reply is reproducible byte-for-byte.
var authMethodNames = []struct {
	bit  int
	name string
}{
	{AuthMethodPublicKey, "publickey"},
	{AuthMethodPassword, "password"},
	{AuthMethodKeyboardInteractive, "keyboard-interactive"},
	{AuthMethodHostbased, "hostbased"},
	{AuthMethodGSSAPI, "gssapi-with-mic"},
}

// MessageCallback is the application hook installed via
// SetMessageCallback. Returning 1 requests the default reply anyway;
// returning 0 means the application fully handled the message.
type MessageCallback func(s *Session, m *Message) int

// Session is the central per-peer record.
type Session struct {
	conn   net.Conn
	framer *transport.Framer

	role    string
	version int

	state  SessionState
	dhState DHHandshakeState

	algos [10]string

	clientBanner string
	serverBanner string

	clientCookie [16]byte
	serverCookie [16]byte

	clientKexInit *transport.KexInitPayload
	serverKexInit *transport.KexInitPayload
	clientKexRaw  []byte
	serverKexRaw  []byte

	kexMethod transport.Method
	dhE, dhF, dhK []byte

	sessionID []byte

	current *transport.CryptoContext
	next    *transport.CryptoContext

	hostKeys map[string]*HostKey

	authMethods uint32

	messages []*Message

	listener *Listener

	msgCallback MessageCallback
	userdata    interface{}

	lastError error
	alive     bool
}

// newSession allocates a Session in its initial NONE state.
func newSession(conn net.Conn, l *Listener) *Session {
	return &Session{
		conn:        conn,
		framer:      transport.NewFramer(conn, conn),
		role:        "server",
		version:     protocolVersionMajor,
		state:       StateNone,
		dhState:     DHInit,
		authMethods: DefaultAuthMethods,
		listener:    l,
		alive:       true,
	}
}

// State returns the session's current top-level state.
func (s *Session) State() SessionState { return s.state }

// DHState returns the session's current DH handshake sub-state.
func (s *Session) DHState() DHHandshakeState { return s.dhState }

// SessionID returns the exchange hash that became this session's
// identifier. Empty until the first KEXDH_REPLY is computed.
func (s *Session) SessionID() []byte { return s.sessionID }

// LastError returns the human-readable error that drove the session to
// ERROR, if any.
func (s *Session) LastError() error { return s.lastError }

// Alive reports whether the session's socket is still considered open.
func (s *Session) Alive() bool { return s.alive }

// Conn returns the underlying network connection.
func (s *Session) Conn() net.Conn { return s.conn }

// AuthMethods returns the currently advertised auth-method bitmask.
func (s *Session) AuthMethods() uint32 { return s.authMethods }

// fail transitions the session to ERROR, closes the socket, and records
// the error for the caller to inspect.
func (s *Session) fail(err error) error {
	s.lastError = err
	s.state = StateError
	s.alive = false
	if s.conn != nil {
		_ = s.conn.Close()
	}
	return err
}

// authMethodList renders the advertised methods as a deterministic,
// comma-separated, no-trailing-comma list.
func (s *Session) authMethodList() string {
	out := ""
	for _, m := range authMethodNames {
		if s.authMethods&uint32(m.bit) == 0 {
			continue
		}
		if out != "" {
			out += ","
		}
		out += m.name
	}
	return out
}

// zeroHostKeys erases and releases the session's host private keys; they
// must be unreachable once KEXDH_REPLY has been sent.
func (s *Session) zeroHostKeys() {
	for _, hk := range s.hostKeys {
		hk.Zero()
	}
	s.hostKeys = nil
}
