package libssh

// Listener accepts peer connections and arms each with a fresh Session.
// Generalized from xsd/xsd.go's setup-then-Accept-loop shape and
// xsnet.Listen's proto-dispatch (tcp vs kcp); see DESIGN.md.

import (
	"net"
	"strconv"

	"github.com/xtaci/kcp-go"
)

// Listener holds bind configuration and the set of loaded host keys used
// to answer every accepted connection.
type Listener struct {
	BindAddr string // default "0.0.0.0" if empty
	Port     int    // default 22 if zero
	Proto    string // "tcp" (default) or "kcp"

	HostKeyPaths map[string][]byte // algo name -> PEM bytes

	AllowedKex      []string
	AllowedHostKey  []string
	AllowedCiphers  []string
	AllowedMACs     []string

	Verbosity int
	Blocking  bool

	ln net.Listener
}

// NewListener builds a Listener with defaults applied.
func NewListener() *Listener {
	return &Listener{
		BindAddr:     "0.0.0.0",
		Port:         22,
		Proto:        "tcp",
		HostKeyPaths: make(map[string][]byte),
	}
}

// Listen resolves the bind address and starts accepting. Go's net.Listen
// has no explicit backlog parameter (unlike the BSD sockets listen(2)
// call) — the runtime's own default backlog applies.
func (l *Listener) Listen() error {
	addr := l.BindAddr
	if addr == "" {
		addr = "0.0.0.0"
	}
	port := l.Port
	if port == 0 {
		port = 22
	}

	laddr := net.JoinHostPort(addr, strconv.Itoa(port))

	var ln net.Listener
	var err error
	if l.Proto == "kcp" {
		ln, err = kcp.Listen(laddr)
	} else {
		ln, err = net.Listen("tcp", laddr)
	}
	if err != nil {
		return NewConfigError("listen on %s: %v", laddr, err)
	}
	l.ln = ln
	return nil
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	if l.ln == nil {
		return nil
	}
	return l.ln.Close()
}

// Accept blocks for one incoming connection, loads this listener's host
// keys for it, and returns a fresh Session in SOCKET_CONNECTED state.
// At least one host key must be configured.
func (l *Listener) Accept() (*Session, error) {
	if len(l.HostKeyPaths) == 0 {
		return nil, NewConfigError("DSA or RSA host key file must be set before accept()")
	}

	hostKeys := make(map[string]*HostKey, len(l.HostKeyPaths))
	for algo, pemBytes := range l.HostKeyPaths {
		hk, err := LoadHostKey(pemBytes)
		if err != nil {
			for _, loaded := range hostKeys {
				loaded.Zero()
			}
			return nil, err
		}
		hostKeys[algo] = hk
	}

	conn, err := l.ln.Accept()
	if err != nil {
		for _, loaded := range hostKeys {
			loaded.Zero()
		}
		return nil, NewIoError("accept: %v", err)
	}

	s := newSession(conn, l)
	s.hostKeys = hostKeys
	s.state = StateSocketConnected
	return s, nil
}

