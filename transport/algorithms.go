package transport

import (
	"crypto/rand"
)

// Indices into the 10 parallel name-list categories carried by KEXINIT.
// Held as named constants rather than bare indices, since an unindexed
// array of 10 name-lists invites off-by-one loop bugs; naming each slot
// sidesteps that class of mistake entirely.
const (
	CatKex = iota
	CatHostKey
	CatEncCS
	CatEncSC
	CatMacCS
	CatMacSC
	CatCompCS
	CatCompSC
	CatLangCS
	CatLangSC
	numCategories
)

// Key-exchange algorithm names.
const (
	KexDH1SHA1       = "diffie-hellman-group1-sha1"
	KexDH14SHA1      = "diffie-hellman-group14-sha1"
	KexHerradura256  = "hkex-herradura-sha256@blitter.com"
	KexKyber768      = "kyber768-kem-sha256@blitter.com"
	KexNewHope       = "newhope-kem-sha256@blitter.com"
)

// Host-key algorithm names.
const (
	HostKeyRSA = "ssh-rsa"
	HostKeyDSA = "ssh-dss"
)

// Cipher algorithm names.
const (
	CipherAES128CTR  = "aes128-ctr"
	CipherAES256CTR  = "aes256-ctr"
	CipherTwofishCBC = "twofish-cbc@blitter.com"
	CipherBlowfishCBC = "blowfish-cbc@blitter.com"
	CipherCryptMT    = "cryptmt-stream@blitter.com"
	CipherWanderer   = "wanderer-stream@blitter.com"
)

// MAC algorithm names.
const (
	MacSHA1   = "hmac-sha1"
	MacSHA256 = "hmac-sha256"
)

// CompressionNone is the only compression/language entry this core offers.
const CompressionNone = "none"

// DefaultKexAlgos is the server's offered KEX list, in preference order.
func DefaultKexAlgos() []string {
	return []string{KexDH14SHA1, KexDH1SHA1, KexHerradura256, KexKyber768, KexNewHope}
}

// DefaultCiphers is the server's offered cipher list, in preference order.
func DefaultCiphers() []string {
	return []string{CipherAES256CTR, CipherAES128CTR, CipherTwofishCBC, CipherBlowfishCBC, CipherCryptMT, CipherWanderer}
}

// DefaultMACs is the server's offered MAC list, in preference order.
func DefaultMACs() []string {
	return []string{MacSHA256, MacSHA1}
}

// HostKeyAlgosFor returns the host-key algorithm list implied by which
// host keys are loaded, ssh-dss before ssh-rsa when both are present.
func HostKeyAlgosFor(haveDSA, haveRSA bool) []string {
	var out []string
	if haveDSA {
		out = append(out, HostKeyDSA)
	}
	if haveRSA {
		out = append(out, HostKeyRSA)
	}
	return out
}

// FirstMatch implements the SSH KEXINIT negotiation rule: the first name
// in the client's list that also appears anywhere in the server's list
// wins. Grounded on massiveart-go.crypto/ssh/common.go's
// findCommonAlgorithm.
func FirstMatch(clientNames, serverNames []string) (string, bool) {
	for _, c := range clientNames {
		for _, s := range serverNames {
			if c == s {
				return c, true
			}
		}
	}
	return "", false
}

// KexInitPayload is the parsed (or about-to-be-marshaled) form of an
// SSH_MSG_KEXINIT packet. Marshal and ParseKexInit work on the full
// payload, leading message-number byte included; the caller keeps those
// raw bytes for the exchange hash, which requires both KEXINIT payloads
// exactly as transmitted.
type KexInitPayload struct {
	Cookie                [16]byte
	Lists                 [numCategories][]string
	FirstKexPacketFollows bool
	Reserved              uint32
}

// NewServerKexInit builds this server's outbound KEXINIT given which host
// keys are loaded and any per-listener algorithm overrides. Overrides of
// zero length fall back to the library default for that category.
func NewServerKexInit(haveDSA, haveRSA bool, overrideKex, overrideCiphers, overrideMACs []string) (*KexInitPayload, error) {
	kex := overrideKex
	if len(kex) == 0 {
		kex = DefaultKexAlgos()
	}
	ciphers := overrideCiphers
	if len(ciphers) == 0 {
		ciphers = DefaultCiphers()
	}
	macs := overrideMACs
	if len(macs) == 0 {
		macs = DefaultMACs()
	}

	p := &KexInitPayload{}
	if _, err := rand.Read(p.Cookie[:]); err != nil {
		return nil, err
	}
	p.Lists[CatKex] = kex
	p.Lists[CatHostKey] = HostKeyAlgosFor(haveDSA, haveRSA)
	p.Lists[CatEncCS] = ciphers
	p.Lists[CatEncSC] = ciphers
	p.Lists[CatMacCS] = macs
	p.Lists[CatMacSC] = macs
	p.Lists[CatCompCS] = []string{CompressionNone}
	p.Lists[CatCompSC] = []string{CompressionNone}
	p.Lists[CatLangCS] = nil
	p.Lists[CatLangSC] = nil
	p.FirstKexPacketFollows = false
	p.Reserved = 0
	return p, nil
}

// Marshal renders the full SSH_MSG_KEXINIT payload, including the leading
// message-number byte.
func (p *KexInitPayload) Marshal() []byte {
	b := NewBuffer()
	b.WriteU8(MsgKexInit)
	b.WriteRaw(p.Cookie[:])
	for i := 0; i < numCategories; i++ {
		b.WriteNameList(p.Lists[i])
	}
	b.WriteBool(p.FirstKexPacketFollows)
	b.WriteU32(p.Reserved)
	return b.Bytes()
}

// ParseKexInit parses a full SSH_MSG_KEXINIT payload (message-number byte
// included).
func ParseKexInit(payload []byte) (*KexInitPayload, error) {
	b := NewBufferFromBytes(payload)
	msgType, err := b.ReadU8()
	if err != nil {
		return nil, err
	}
	if msgType != MsgKexInit {
		return nil, ErrUnexpectedMessage(MsgKexInit, int(msgType))
	}
	p := &KexInitPayload{}
	cookie, err := b.ReadRaw(16)
	if err != nil {
		return nil, err
	}
	copy(p.Cookie[:], cookie)
	for i := 0; i < numCategories; i++ {
		names, err := b.ReadNameList()
		if err != nil {
			return nil, err
		}
		p.Lists[i] = names
	}
	follows, err := b.ReadBool()
	if err != nil {
		return nil, err
	}
	p.FirstKexPacketFollows = follows
	reserved, err := b.ReadU32()
	if err != nil {
		return nil, err
	}
	p.Reserved = reserved
	return p, nil
}

// Negotiate intersects a client and server KEXINIT category-by-category,
// first-match-wins. Returns the 10 chosen names, or an error identifying
// the first category with an empty intersection.
func Negotiate(client, server *KexInitPayload) (chosen [numCategories]string, err error) {
	for i := 0; i < numCategories; i++ {
		name, ok := FirstMatch(client.Lists[i], server.Lists[i])
		if !ok {
			// Languages are allowed to be empty on both sides.
			if i == CatLangCS || i == CatLangSC {
				continue
			}
			return chosen, ErrEmptyIntersection(i)
		}
		chosen[i] = name
	}
	return chosen, nil
}
