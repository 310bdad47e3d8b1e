package libssh

// Post-handshake message pump: parses USERAUTH/SERVICE/CHANNEL requests
// into Message records, offers them to an installed callback, and falls
// back to the default reply the callback didn't suppress. Grounded on
// xsd/xsd.go's Accept-loop-then-dispatch shape, generalized from that
// file's single shell-session RPC to the general request/reply protocol.

import (
	"github.com/rgo/libssh/transport"
)

// SetMessageCallback installs the application's request handler.
func SetMessageCallback(s *Session, cb MessageCallback, userdata interface{}) {
	s.msgCallback = cb
	s.userdata = userdata
}

// ExecuteMessageCallbacks reads one packet, parses it into a Message,
// and either hands it to the installed callback or answers it with the
// default reply. When no callback is installed every message gets the
// default reply; a callback that returns 1 also gets the default reply
// applied afterward.
func ExecuteMessageCallbacks(s *Session) error {
	raw, err := s.framer.ReadPacket(s.current.ClientToServer)
	if err != nil {
		return s.fail(NewIoError("reading request: %v", err))
	}
	if len(raw) == 0 {
		return s.fail(NewProtocolError("empty packet"))
	}

	m, err := parseMessage(s, raw)
	if err != nil {
		return s.fail(err)
	}

	s.messages = append(s.messages, m)

	wantDefault := true
	if s.msgCallback != nil {
		wantDefault = s.msgCallback(s, m) == 1
	}
	if !wantDefault {
		return nil
	}
	return applyDefaultReply(s, m)
}

func parseMessage(s *Session, raw []byte) (*Message, error) {
	buf := transport.NewBufferFromBytes(raw[1:])
	switch int(raw[0]) {
	case transport.MsgUserAuthReq:
		return parseAuthRequest(s, buf)
	case transport.MsgServiceReq:
		return parseServiceRequest(buf)
	case transport.MsgChannelOpen:
		return parseChannelOpenRequest(buf)
	case transport.MsgChannelRequest:
		return parseChannelRequest(buf)
	default:
		return nil, NewProtocolError("unexpected message type %d while authenticating", raw[0])
	}
}

func applyDefaultReply(s *Session, m *Message) error {
	switch m.Kind {
	case KindAuthRequest:
		return sendAuthFailure(s, false)
	case KindServiceRequest:
		return sendServiceAccept(s, m.serviceName)
	case KindChannelOpenRequest:
		return sendChannelOpenFailure(s, m.senderChannel)
	case KindChannelRequest:
		if m.wantReply {
			return sendChannelFailure(s, m.channelHandle)
		}
		return nil
	default:
		return nil
	}
}

func sendAuthFailure(s *Session, partial bool) error {
	b := transport.NewBuffer()
	b.WriteU8(uint8(transport.MsgUserAuthFail))
	b.WriteNameList(splitMethods(s.authMethodList()))
	b.WriteBool(partial)
	return writeOrFail(s, b.Bytes())
}

func splitMethods(list string) []string {
	if list == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(list); i++ {
		if i == len(list) || list[i] == ',' {
			out = append(out, list[start:i])
			start = i + 1
		}
	}
	return out
}

func sendServiceAccept(s *Session, name string) error {
	b := transport.NewBuffer()
	b.WriteU8(uint8(transport.MsgServiceAcpt))
	b.WriteString([]byte(name))
	return writeOrFail(s, b.Bytes())
}

func sendChannelOpenFailure(s *Session, recipientChannel uint32) error {
	b := transport.NewBuffer()
	b.WriteU8(uint8(transport.MsgChannelOpenFailure))
	b.WriteU32(recipientChannel)
	b.WriteU32(uint32(transport.ChannelOpenAdministrativelyProhibited))
	b.WriteString(nil)
	b.WriteString(nil)
	return writeOrFail(s, b.Bytes())
}

func sendChannelFailure(s *Session, recipientChannel uint32) error {
	b := transport.NewBuffer()
	b.WriteU8(uint8(transport.MsgChannelFailure))
	b.WriteU32(recipientChannel)
	return writeOrFail(s, b.Bytes())
}

func writeOrFail(s *Session, payload []byte) error {
	if err := s.framer.WritePacket(payload, s.current.ServerToClient); err != nil {
		return s.fail(NewIoError("writing reply: %v", err))
	}
	return nil
}

// AuthReplySuccess sends USERAUTH_SUCCESS, or a partial-success
// USERAUTH_FAILURE if partial is true.
func AuthReplySuccess(s *Session, partial bool) error {
	if partial {
		return sendAuthFailure(s, true)
	}
	b := transport.NewBuffer()
	b.WriteU8(uint8(transport.MsgUserAuthOK))
	return writeOrFail(s, b.Bytes())
}

// AuthReplyPKOk sends USERAUTH_PK_OK, used during a publickey probe
// before the client commits to signing.
func AuthReplyPKOk(s *Session, algo string, pubkey []byte) error {
	b := transport.NewBuffer()
	b.WriteU8(uint8(transport.MsgUserAuthPKOK))
	b.WriteString([]byte(algo))
	b.WriteString(pubkey)
	return writeOrFail(s, b.Bytes())
}

// AuthSetMethods adjusts the advertised authentication-method bitmask.
func AuthSetMethods(s *Session, mask uint32) {
	s.authMethods = mask
}
