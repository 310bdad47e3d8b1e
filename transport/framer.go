package transport

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"
)

// MaxPacketLength is the largest packet_length this core will accept
// inbound.
const MaxPacketLength = 35000

// ErrOversizedPacket, ErrShortPadding, ErrMACMismatch and
// ErrBlockMisaligned are the protocol-error conditions the framer can raise.
var (
	ErrOversizedPacket = errors.New("transport: packet_length exceeds maximum")
	ErrShortPadding    = errors.New("transport: padding_length below minimum")
	ErrMACMismatch     = errors.New("transport: mac verification failed")
	ErrBlockMisaligned = errors.New("transport: packet not block aligned")
)

// Framer implements the SSH-2 Binary Packet Protocol over a raw byte
// stream: packet_length(u32) | padding_length(u8) | payload | padding |
// MAC. Before NEWKEYS it is called with a nil *DirectionalCrypto (no
// encryption, no MAC); afterwards the caller passes the session's current
// per-direction crypto so sequence numbers and keys track the Session,
// not the Framer. Grounded on xsnet/net.go's Conn.Read/Conn.WritePacket
// (random padding, MAC-then-encrypt ordering, cipher.Stream use),
// adapted from that file's bespoke ctrlStatOp-prefixed framing to the
// real SSH-2 packet layout.
type Framer struct {
	r io.Reader
	w io.Writer

	// plainReadSeq/plainWriteSeq count packets sent before encryption is
	// installed (KEXINIT, KEXDH_INIT/REPLY, NEWKEYS). Per RFC 4253 §6.4,
	// the per-direction sequence number counts every Binary Packet
	// Protocol packet from the very first one sent in that direction, not
	// just the ones sent after NEWKEYS; these must seed the installed
	// DirectionalCrypto's SeqNum so it continues rather than restarts.
	plainReadSeq  uint32
	plainWriteSeq uint32
}

// NewFramer wraps a connection's read and write halves (typically the
// same net.Conn on both sides, but split out for testability).
func NewFramer(r io.Reader, w io.Writer) *Framer {
	return &Framer{r: r, w: w}
}

// PlainReadSeq returns the number of packets read from this Framer with a
// nil *DirectionalCrypto so far, for seeding the inbound sequence number
// once encryption is installed.
func (f *Framer) PlainReadSeq() uint32 { return f.plainReadSeq }

// PlainWriteSeq returns the number of packets written to this Framer with
// a nil *DirectionalCrypto so far, for seeding the outbound sequence
// number once encryption is installed.
func (f *Framer) PlainWriteSeq() uint32 { return f.plainWriteSeq }

func computePadding(payloadLen, blockSize int) int {
	if blockSize < 8 {
		blockSize = 8
	}
	padLen := blockSize - ((5 + payloadLen) % blockSize)
	if padLen < 4 {
		padLen += blockSize
	}
	for 4+1+payloadLen+padLen < 16 {
		padLen += blockSize
	}
	return padLen
}

// WritePacket serializes and sends one payload. dc is nil before NEWKEYS.
func (f *Framer) WritePacket(payload []byte, dc *DirectionalCrypto) error {
	blockSize := 8
	if dc != nil {
		blockSize = CipherBlockSize(dc.CipherAlgo)
	}
	padLen := computePadding(len(payload), blockSize)
	packetLen := 1 + len(payload) + padLen

	plain := make([]byte, 4+packetLen)
	binary.BigEndian.PutUint32(plain[0:4], uint32(packetLen))
	plain[4] = byte(padLen)
	copy(plain[5:5+len(payload)], payload)
	if _, err := rand.Read(plain[5+len(payload):]); err != nil {
		return err
	}

	if dc == nil {
		_, err := f.w.Write(plain)
		if err == nil {
			f.plainWriteSeq++
		}
		return err
	}

	var seqPrefix [4]byte
	binary.BigEndian.PutUint32(seqPrefix[:], dc.SeqNum)
	dc.MAC.Reset()
	_, _ = dc.MAC.Write(seqPrefix[:])
	_, _ = dc.MAC.Write(plain)
	tag := dc.MAC.Sum(nil)

	cipherText := make([]byte, len(plain))
	dc.Stream.XORKeyStream(cipherText, plain)
	dc.SeqNum++

	if _, err := f.w.Write(cipherText); err != nil {
		return err
	}
	_, err := f.w.Write(tag)
	return err
}

// ReadPacket reads exactly one packet and returns its payload. dc is nil
// before NEWKEYS.
func (f *Framer) ReadPacket(dc *DirectionalCrypto) ([]byte, error) {
	if dc == nil {
		payload, err := f.readPlain()
		if err == nil {
			f.plainReadSeq++
		}
		return payload, err
	}
	return f.readEncrypted(dc)
}

func (f *Framer) readPlain() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(f.r, lenBuf[:]); err != nil {
		return nil, err
	}
	packetLen := binary.BigEndian.Uint32(lenBuf[:])
	if packetLen > MaxPacketLength {
		return nil, ErrOversizedPacket
	}
	rest := make([]byte, packetLen)
	if _, err := io.ReadFull(f.r, rest); err != nil {
		return nil, err
	}
	padLen := int(rest[0])
	if padLen < 4 {
		return nil, ErrShortPadding
	}
	if (4+len(rest))%8 != 0 {
		return nil, ErrBlockMisaligned
	}
	payloadLen := int(packetLen) - 1 - padLen
	if payloadLen < 0 {
		return nil, ErrShortPadding
	}
	return rest[1 : 1+payloadLen], nil
}

func (f *Framer) readEncrypted(dc *DirectionalCrypto) ([]byte, error) {
	blockSize := CipherBlockSize(dc.CipherAlgo)
	firstCT := make([]byte, blockSize)
	if _, err := io.ReadFull(f.r, firstCT); err != nil {
		return nil, err
	}
	firstPT := make([]byte, blockSize)
	dc.Stream.XORKeyStream(firstPT, firstCT)

	packetLen := binary.BigEndian.Uint32(firstPT[0:4])
	if packetLen > MaxPacketLength {
		return nil, ErrOversizedPacket
	}

	total := 4 + int(packetLen)
	plain := make([]byte, total)
	copy(plain, firstPT)
	if total > blockSize {
		restCT := make([]byte, total-blockSize)
		if _, err := io.ReadFull(f.r, restCT); err != nil {
			return nil, err
		}
		dc.Stream.XORKeyStream(plain[blockSize:], restCT)
	}

	tag := make([]byte, MACSize(dc.MacAlgo))
	if _, err := io.ReadFull(f.r, tag); err != nil {
		return nil, err
	}

	var seqPrefix [4]byte
	binary.BigEndian.PutUint32(seqPrefix[:], dc.SeqNum)
	dc.MAC.Reset()
	_, _ = dc.MAC.Write(seqPrefix[:])
	_, _ = dc.MAC.Write(plain)
	expected := dc.MAC.Sum(nil)
	dc.SeqNum++
	if !hmac.Equal(tag, expected) {
		return nil, ErrMACMismatch
	}

	padLen := int(plain[4])
	if padLen < 4 {
		return nil, ErrShortPadding
	}
	payloadLen := int(packetLen) - 1 - padLen
	if payloadLen < 0 {
		return nil, ErrShortPadding
	}
	return plain[5 : 5+payloadLen], nil
}
