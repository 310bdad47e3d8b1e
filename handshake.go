package libssh

// HandleKeyExchange drives one session from a freshly accepted socket
// through banner exchange, algorithm negotiation, key exchange, and
// NEWKEYS, leaving it in AUTHENTICATING. Grounded on xsd/xsd.go's
// per-connection handling loop and massiveart-go.crypto/ssh/common.go's
// handshakeMagics/findCommonAlgorithm shape, generalized to the full
// SSH-2 wire exchange this core implements.

import (
	"bufio"
	"crypto/rand"
	"io"
	"strings"

	"github.com/rgo/libssh/transport"
)

const serverBannerText = "SSH-2.0-libssh_" + Version

// maxBannerLen is the longest identification line (excluding the
// trailing \n) this core will accept before declaring ERROR.
const maxBannerLen = 128

// HandleKeyExchange runs the full handshake for a session just returned
// by Listener.Accept.
func HandleKeyExchange(s *Session) error {
	if s.state == StateAuthenticating {
		return ErrRekeyUnsupported
	}
	if err := sendBanner(s); err != nil {
		return s.fail(err)
	}
	if err := receiveBanner(s); err != nil {
		return s.fail(err)
	}
	if err := selectProtocolVersion(s); err != nil {
		return s.fail(err)
	}

	s.state = StateInitialKex
	if err := sendKexInit(s); err != nil {
		return s.fail(err)
	}
	if err := receiveKexInit(s); err != nil {
		return s.fail(err)
	}

	chosen, err := transport.Negotiate(s.clientKexInit, s.serverKexInit)
	if err != nil {
		return s.fail(NewProtocolError("algorithm negotiation: %v", err))
	}
	s.algos = chosen
	s.state = StateKexInitReceived

	if err := runDH(s); err != nil {
		return s.fail(err)
	}

	s.state = StateAuthenticating
	return nil
}

func sendBanner(s *Session) error {
	s.serverBanner = serverBannerText
	_, err := io.WriteString(s.conn, serverBannerText+"\r\n")
	if err != nil {
		return NewIoError("sending banner: %v", err)
	}
	return nil
}

// receiveBanner reads bytes up to the first '\n', normalizing '\r' to
// NUL as they arrive, and enforces the maximum line length.
func receiveBanner(s *Session) error {
	r := bufio.NewReader(s.conn)
	var line []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return NewIoError("reading banner: %v", err)
		}
		if b == '\n' {
			break
		}
		if b == '\r' {
			b = 0
		}
		line = append(line, b)
		if len(line) > maxBannerLen {
			return NewProtocolError("too large banner")
		}
	}
	s.clientBanner = string(line)
	s.state = StateBannerReceived
	return nil
}

// selectProtocolVersion parses the client's SSH-x.y prefix and rejects
// anything that isn't SSH-2.
func selectProtocolVersion(s *Session) error {
	banner := s.clientBanner
	if !strings.HasPrefix(banner, "SSH-") {
		return NewProtocolError("malformed banner: missing SSH- prefix")
	}
	rest := banner[len("SSH-"):]
	dash := strings.IndexByte(rest, '-')
	if dash < 0 {
		return NewProtocolError("malformed banner: missing version separator")
	}
	switch rest[:dash] {
	case "2.0":
		return nil
	default:
		return NewProtocolError("unsupported protocol version %q", rest[:dash])
	}
}

func sendKexInit(s *Session) error {
	_, haveDSA := s.hostKeys[transport.HostKeyDSA]
	_, haveRSA := s.hostKeys[transport.HostKeyRSA]

	payload, err := transport.NewServerKexInit(haveDSA, haveRSA,
		s.listener.AllowedKex, s.listener.AllowedCiphers, s.listener.AllowedMACs)
	if err != nil {
		return NewConfigError("building server KEXINIT: %v", err)
	}
	if _, err := rand.Read(s.serverCookie[:]); err != nil {
		return NewCryptoError("generating server cookie: %v", err)
	}
	payload.Cookie = s.serverCookie

	raw := payload.Marshal()
	s.serverKexInit = payload
	s.serverKexRaw = raw

	if err := s.framer.WritePacket(raw, nil); err != nil {
		return NewIoError("sending KEXINIT: %v", err)
	}
	return nil
}

func receiveKexInit(s *Session) error {
	raw, err := s.framer.ReadPacket(nil)
	if err != nil {
		return NewIoError("reading KEXINIT: %v", err)
	}
	if len(raw) == 0 || int(raw[0]) != transport.MsgKexInit {
		return transport.ErrUnexpectedMessage(transport.MsgKexInit, msgByteOf(raw))
	}
	payload, err := transport.ParseKexInit(raw)
	if err != nil {
		return NewProtocolError("parsing client KEXINIT: %v", err)
	}
	s.clientKexInit = payload
	s.clientKexRaw = raw
	s.clientCookie = payload.Cookie
	return nil
}

func msgByteOf(raw []byte) int {
	if len(raw) == 0 {
		return -1
	}
	return int(raw[0])
}

// runDH drives the DH/vendor-KEX sub-state machine: receive KEXDH_INIT,
// compute the reply and exchange hash, sign with the negotiated host
// key, send KEXDH_REPLY, zero host keys, send NEWKEYS, then wait for
// the peer's NEWKEYS before installing derived keys.
func runDH(s *Session) error {
	s.state = StateDH
	s.dhState = DHInit

	raw, err := s.framer.ReadPacket(nil)
	if err != nil {
		return NewIoError("reading KEXDH_INIT: %v", err)
	}
	if len(raw) == 0 || int(raw[0]) != transport.MsgKexDHInit {
		// Any message other than KEXDH_INIT here is a state violation. A
		// KEXDH_INIT sent before KEXINIT is rejected earlier, by
		// receiveKexInit.
		return transport.ErrUnexpectedMessage(transport.MsgKexDHInit, msgByteOf(raw))
	}

	buf := transport.NewBufferFromBytes(raw[1:])
	eBytes, err := buf.ReadMPIntBytes()
	if err != nil {
		return NewProtocolError("parsing KEXDH_INIT: %v", err)
	}
	s.dhState = DHInitSent

	method, err := transport.NewMethod(s.algos[transport.CatKex])
	if err != nil {
		return NewCryptoError("selecting KEX method: %v", err)
	}
	s.kexMethod = method

	fBytes, kBytes, err := method.GenerateReply(eBytes)
	if err != nil {
		return NewCryptoError("KEX %s: %v", method.Name(), err)
	}
	s.dhE, s.dhF, s.dhK = eBytes, fBytes, kBytes

	hostKeyAlgo := s.algos[transport.CatHostKey]
	hk, ok := s.hostKeys[hostKeyAlgo]
	if !ok {
		return NewConfigError("no host key loaded for negotiated algorithm %s", hostKeyAlgo)
	}
	hostKeyBlob := hk.PublicKeyBlob()

	hashNew := transport.HashFuncFor(method.Name())
	exchangeHash := transport.ComputeExchangeHash(hashNew,
		[]byte(s.clientBanner), []byte(s.serverBanner),
		s.clientKexRaw, s.serverKexRaw,
		hostKeyBlob, s.dhE, s.dhF, s.dhK)

	if s.sessionID == nil {
		s.sessionID = exchangeHash
	}

	signature, err := hk.Sign(exchangeHash)
	if err != nil {
		return NewCryptoError("signing exchange hash: %v", err)
	}

	reply := transport.NewBuffer()
	reply.WriteU8(uint8(transport.MsgKexDHReply))
	reply.WriteString(hostKeyBlob)
	reply.WriteMPIntBytes(s.dhF)
	reply.WriteString(signature)
	if err := s.framer.WritePacket(reply.Bytes(), nil); err != nil {
		return NewIoError("sending KEXDH_REPLY: %v", err)
	}

	// The private host key is no longer needed once the signature has
	// been produced and sent.
	s.zeroHostKeys()

	newKeys := []byte{byte(transport.MsgNewKeys)}
	if err := s.framer.WritePacket(newKeys, nil); err != nil {
		return NewIoError("sending NEWKEYS: %v", err)
	}
	s.dhState = DHNewKeysSent

	raw, err = s.framer.ReadPacket(nil)
	if err != nil {
		return NewIoError("reading NEWKEYS: %v", err)
	}
	if len(raw) == 0 || int(raw[0]) != transport.MsgNewKeys {
		return transport.ErrUnexpectedMessage(transport.MsgNewKeys, msgByteOf(raw))
	}

	lengths := [6]int{
		transport.CipherBlockSize(s.algos[transport.CatEncCS]),
		transport.CipherBlockSize(s.algos[transport.CatEncSC]),
		cipherKeyLen(s.algos[transport.CatEncCS]),
		cipherKeyLen(s.algos[transport.CatEncSC]),
		transport.MACSize(s.algos[transport.CatMacCS]),
		transport.MACSize(s.algos[transport.CatMacSC]),
	}
	ivCS, ivSC, keyCS, keySC, macCS, macSC := transport.DeriveKeys(hashNew, s.dhK, exchangeHash, s.sessionID, lengths)

	// The server's inbound (client-to-server) direction is this framer's
	// read side; its outbound (server-to-client) direction is the write
	// side. Seeding SeqNum from the plaintext counts means it continues
	// across NEWKEYS rather than restarting at zero.
	next, err := transport.NewCryptoContext(
		s.algos[transport.CatEncCS], s.algos[transport.CatEncSC],
		s.algos[transport.CatMacCS], s.algos[transport.CatMacSC],
		ivCS, ivSC, keyCS, keySC, macCS, macSC,
		s.framer.PlainReadSeq(), s.framer.PlainWriteSeq())
	if err != nil {
		return NewCryptoError("installing session keys: %v", err)
	}
	s.next = next
	s.current = next
	s.dhState = DHFinished
	return nil
}

// cipherKeyLen returns the cipher key length in bytes for algorithms
// whose key size differs from their block size.
func cipherKeyLen(algo string) int {
	switch algo {
	case transport.CipherAES256CTR:
		return 32
	case transport.CipherCryptMT, transport.CipherWanderer:
		return 32
	default:
		return transport.CipherBlockSize(algo)
	}
}
