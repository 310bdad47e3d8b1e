package libssh

// Message is the parsed form of an incoming USERAUTH/SERVICE/CHANNEL
// request, handed to the installed MessageCallback. Grounded on
// xs/auth.go's request-shape thinking and massiveart-go.crypto/ssh/
// common.go's buildDataSignedForAuth for publickey signature checking.

import (
	"bytes"
	"net"
	"strconv"

	"github.com/rgo/libssh/transport"
)

// Kind identifies which request variant a Message carries.
type Kind int

const (
	KindAuthRequest Kind = iota
	KindServiceRequest
	KindChannelOpenRequest
	KindChannelRequest
)

// SigState describes the outcome of publickey signature verification.
type SigState int

const (
	SigNone SigState = iota
	SigValid
	SigWrong
)

// Message carries every field any request variant might need; only the
// fields relevant to Kind are populated.
type Message struct {
	Kind Kind

	// AuthRequest fields.
	user         string
	service      string
	method       string
	password     string
	pubKeyAlgo   string
	pubKeyBlob   []byte
	sigState     SigState
	hasSignature bool

	// ServiceRequest fields.
	serviceName string

	// ChannelOpenRequest fields.
	channelType         string
	senderChannel       uint32
	originatorHostPort  string

	// ChannelRequest fields.
	channelHandle uint32
	requestType   string
	wantReply     bool
	ptyTerm       string
	ptyCols       uint32
	ptyRows       uint32
	ptyPxWidth    uint32
	ptyPxHeight   uint32
	envName       string
	envValue      string
	execCommand   string
	subsystem     string
}

// User returns the username on an AuthRequest.
func (m *Message) User() string { return m.user }

// Password returns the submitted password on a password AuthRequest.
func (m *Message) Password() string { return m.password }

// PublicKey returns the submitted public-key blob on a publickey
// AuthRequest.
func (m *Message) PublicKey() []byte { return m.pubKeyBlob }

// SigState reports whether a publickey AuthRequest's signature (if any
// was sent) was verified, absent, or wrong.
func (m *Message) SigState() SigState { return m.sigState }

// OriginatorHostPort returns the client-side endpoint on a
// ChannelOpenRequest.
func (m *Message) OriginatorHostPort() string { return m.originatorHostPort }

// DestHostPort returns the destination host:port on a direct-tcpip
// ChannelOpenRequest.
func (m *Message) DestHostPort() string { return m.serviceName }

// ChannelHandle returns the channel number a ChannelRequest applies to.
func (m *Message) ChannelHandle() uint32 { return m.channelHandle }

// PTYFields returns the terminal type and character-cell window size of
// a pty-req ChannelRequest.
func (m *Message) PTYFields() (term string, cols, rows uint32) {
	return m.ptyTerm, m.ptyCols, m.ptyRows
}

// PTYPixelSize returns the pixel window size of a pty-req ChannelRequest,
// per RFC 4254 6.2 (zero on either axis means "not known").
func (m *Message) PTYPixelSize() (pxWidth, pxHeight uint32) {
	return m.ptyPxWidth, m.ptyPxHeight
}

// EnvVar returns the name/value pair of an env ChannelRequest.
func (m *Message) EnvVar() (name, value string) { return m.envName, m.envValue }

// ExecCommand returns the command line of an exec ChannelRequest.
func (m *Message) ExecCommand() string { return m.execCommand }

// Subsystem returns the subsystem name of a subsystem ChannelRequest.
func (m *Message) Subsystem() string { return m.subsystem }

// ServiceName returns the requested service name on a ServiceRequest.
func (m *Message) ServiceName() string { return m.serviceName }

// parseAuthRequest decodes SSH_MSG_USERAUTH_REQUEST (RFC 4252 §5).
func parseAuthRequest(s *Session, b *transport.Buffer) (*Message, error) {
	userBytes, err := b.ReadString()
	if err != nil {
		return nil, NewProtocolError("auth request: reading user: %v", err)
	}
	serviceBytes, err := b.ReadString()
	if err != nil {
		return nil, NewProtocolError("auth request: reading service: %v", err)
	}
	methodBytes, err := b.ReadString()
	if err != nil {
		return nil, NewProtocolError("auth request: reading method: %v", err)
	}

	m := &Message{
		Kind:    KindAuthRequest,
		user:    string(userBytes),
		service: string(serviceBytes),
		method:  string(methodBytes),
	}

	switch m.method {
	case "password":
		if _, err := b.ReadBool(); err != nil { // change-password flag, ignored
			return nil, NewProtocolError("auth request: reading password flag: %v", err)
		}
		pw, err := b.ReadString()
		if err != nil {
			return nil, NewProtocolError("auth request: reading password: %v", err)
		}
		m.password = string(pw)
	case "publickey":
		hasSig, err := b.ReadBool()
		if err != nil {
			return nil, NewProtocolError("auth request: reading has-signature flag: %v", err)
		}
		algo, err := b.ReadString()
		if err != nil {
			return nil, NewProtocolError("auth request: reading key algo: %v", err)
		}
		blob, err := b.ReadString()
		if err != nil {
			return nil, NewProtocolError("auth request: reading key blob: %v", err)
		}
		m.pubKeyAlgo = string(algo)
		m.pubKeyBlob = blob
		m.hasSignature = hasSig
		m.sigState = SigNone

		if hasSig {
			sigBlob, err := b.ReadString()
			if err != nil {
				return nil, NewProtocolError("auth request: reading signature: %v", err)
			}
			signed := buildDataSignedForAuth(s.sessionID, m.user, m.service, m.method, algo, blob)
			if verifyAuthSignature(algo, blob, signed, sigBlob) {
				m.sigState = SigValid
			} else {
				m.sigState = SigWrong
			}
		}
	}

	return m, nil
}

// buildDataSignedForAuth builds the exact byte string a publickey client
// must sign, per RFC 4252 §7: session id as an SSH string, then the
// USERAUTH_REQUEST fields up to and including the public key blob.
func buildDataSignedForAuth(sessionID []byte, user, service, method string, algo, pubKey []byte) []byte {
	b := transport.NewBuffer()
	b.WriteString(sessionID)
	b.WriteU8(uint8(transport.MsgUserAuthReq))
	b.WriteString([]byte(user))
	b.WriteString([]byte(service))
	b.WriteString([]byte(method))
	b.WriteBool(true)
	b.WriteString(algo)
	b.WriteString(pubKey)
	return b.Bytes()
}

// verifyAuthSignature checks a publickey signature blob against the
// client-supplied key blob. Only the host-key algorithms this core
// offers as server identities (ssh-rsa, ssh-dss) are recognized as
// client authentication keys here; anything else is treated as
// unverifiable rather than trusted.
func verifyAuthSignature(algo, keyBlob, signed, sigBlob []byte) bool {
	hk, err := hostKeyFromPublicBlob(string(algo), keyBlob)
	if err != nil {
		return false
	}
	defer hk.Zero()

	sig := transport.NewBufferFromBytes(sigBlob)
	sigAlgo, err := sig.ReadString()
	if err != nil || !bytes.Equal(sigAlgo, algo) {
		return false
	}
	sigBytes, err := sig.ReadString()
	if err != nil {
		return false
	}
	return hk.VerifySignature(signed, sigBytes)
}

// parseServiceRequest decodes SSH_MSG_SERVICE_REQUEST.
func parseServiceRequest(b *transport.Buffer) (*Message, error) {
	name, err := b.ReadString()
	if err != nil {
		return nil, NewProtocolError("service request: %v", err)
	}
	return &Message{Kind: KindServiceRequest, serviceName: string(name)}, nil
}

// parseChannelOpenRequest decodes SSH_MSG_CHANNEL_OPEN.
func parseChannelOpenRequest(b *transport.Buffer) (*Message, error) {
	chanType, err := b.ReadString()
	if err != nil {
		return nil, NewProtocolError("channel open: reading type: %v", err)
	}
	sender, err := b.ReadU32()
	if err != nil {
		return nil, NewProtocolError("channel open: reading sender channel: %v", err)
	}
	// initial window size, max packet size: read and discard, channel
	// data flow control is out of scope for this core.
	if _, err := b.ReadU32(); err != nil {
		return nil, NewProtocolError("channel open: reading window size: %v", err)
	}
	if _, err := b.ReadU32(); err != nil {
		return nil, NewProtocolError("channel open: reading max packet: %v", err)
	}

	m := &Message{
		Kind:          KindChannelOpenRequest,
		channelType:   string(chanType),
		senderChannel: sender,
	}
	if m.channelType == "direct-tcpip" {
		destHost, _ := b.ReadString()
		destPort, _ := b.ReadU32()
		origHost, _ := b.ReadString()
		origPort, _ := b.ReadU32()
		m.serviceName = hostPort(string(destHost), destPort)
		m.originatorHostPort = hostPort(string(origHost), origPort)
	}
	return m, nil
}

func hostPort(host string, port uint32) string {
	return net.JoinHostPort(host, strconv.FormatUint(uint64(port), 10))
}

// parseChannelRequest decodes SSH_MSG_CHANNEL_REQUEST.
func parseChannelRequest(b *transport.Buffer) (*Message, error) {
	handle, err := b.ReadU32()
	if err != nil {
		return nil, NewProtocolError("channel request: reading channel: %v", err)
	}
	reqType, err := b.ReadString()
	if err != nil {
		return nil, NewProtocolError("channel request: reading type: %v", err)
	}
	wantReply, err := b.ReadBool()
	if err != nil {
		return nil, NewProtocolError("channel request: reading want-reply: %v", err)
	}

	m := &Message{
		Kind:          KindChannelRequest,
		channelHandle: handle,
		requestType:   string(reqType),
		wantReply:     wantReply,
	}

	switch m.requestType {
	case "pty-req":
		term, _ := b.ReadString()
		cols, _ := b.ReadU32()
		rows, _ := b.ReadU32()
		pxWidth, _ := b.ReadU32()
		pxHeight, _ := b.ReadU32()
		_, _ = b.ReadString() // encoded terminal modes, unused
		m.ptyTerm = string(term)
		m.ptyCols = cols
		m.ptyRows = rows
		m.ptyPxWidth = pxWidth
		m.ptyPxHeight = pxHeight
	case "env":
		name, _ := b.ReadString()
		value, _ := b.ReadString()
		m.envName = string(name)
		m.envValue = string(value)
	case "exec":
		cmd, _ := b.ReadString()
		m.execCommand = string(cmd)
	case "subsystem":
		name, _ := b.ReadString()
		m.subsystem = string(name)
	}

	return m, nil
}
