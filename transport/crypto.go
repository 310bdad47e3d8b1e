package transport

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"errors"
	"hash"

	cryptmt "blitter.com/go/cryptmt"
	wanderer "blitter.com/go/wanderer"
	"golang.org/x/crypto/blowfish"
	"golang.org/x/crypto/twofish"
)

// ErrInvalidCipher is returned by BuildCipher for an unrecognized name.
var ErrInvalidCipher = errors.New("transport: invalid cipher algorithm")

// ErrInvalidMAC is returned by BuildMAC for an unrecognized name.
var ErrInvalidMAC = errors.New("transport: invalid mac algorithm")

// expandKeyMat pads keymat, via SHA256, out to at least 2*blocksize bytes
// (key + IV). Ported from xsnet/chan.go's expandKeyMat: small-modulus KEX
// methods (e.g. the 256-bit Herradura variant) can produce shared secrets
// shorter than a cipher needs for key+IV.
func expandKeyMat(keymat []byte, blocksize int) []byte {
	for len(keymat) < 2*blocksize {
		h := sha256.New()
		_, _ = h.Write(keymat)
		keymat = append(keymat, h.Sum(nil)...)
	}
	return keymat
}

// BuildCipher constructs the keystream for one direction given the
// negotiated cipher algorithm name and expanded key material. Grounded on
// xsnet/chan.go's getStream, generalized from that file's OFB-over-block-
// cipher approach to CTR for the aes128-ctr/aes256-ctr entries while
// keeping OFB for the vendor-extension block ciphers.
func BuildCipher(algo string, keymat []byte) (cipher.Stream, error) {
	switch algo {
	case CipherAES128CTR, CipherAES256CTR:
		keymat = expandKeyMat(keymat, aes.BlockSize)
		key := keymat[:aes.BlockSize]
		if algo == CipherAES256CTR {
			key = expandKeyMat(keymat, 32)[:32]
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		iv := keymat[len(key) : len(key)+aes.BlockSize]
		return cipher.NewCTR(block, iv), nil
	case CipherTwofishCBC:
		keymat = expandKeyMat(keymat, twofish.BlockSize)
		key := keymat[:twofish.BlockSize]
		block, err := twofish.NewCipher(key)
		if err != nil {
			return nil, err
		}
		iv := keymat[twofish.BlockSize : 2*twofish.BlockSize]
		return cipher.NewOFB(block, iv), nil
	case CipherBlowfishCBC:
		keymat = expandKeyMat(keymat, blowfish.BlockSize)
		key := keymat[:blowfish.BlockSize]
		block, err := blowfish.NewCipher(key)
		if err != nil {
			return nil, err
		}
		// cipher.NewOFB panics unless the IV is exactly BlockSize bytes,
		// so size it exactly.
		iv := keymat[blowfish.BlockSize : 2*blowfish.BlockSize]
		return cipher.NewOFB(block, iv), nil
	case CipherCryptMT:
		keymat = expandKeyMat(keymat, 32)
		return cryptmt.New(keymat), nil
	case CipherWanderer:
		keymat = expandKeyMat(keymat, 32)
		return wanderer.New(nil, nil, 0, keymat, 16, 16), nil
	default:
		return nil, ErrInvalidCipher
	}
}

// BuildMAC constructs an HMAC keyed hash for the negotiated MAC algorithm.
func BuildMAC(algo string, key []byte) (hash.Hash, error) {
	switch algo {
	case MacSHA1:
		return hmac.New(sha1.New, key), nil
	case MacSHA256:
		return hmac.New(sha256.New, key), nil
	default:
		return nil, ErrInvalidMAC
	}
}

// MACSize returns the digest size, in bytes, for a negotiated MAC algorithm.
func MACSize(algo string) int {
	switch algo {
	case MacSHA1:
		return crypto.SHA1.Size()
	case MacSHA256:
		return crypto.SHA256.Size()
	default:
		return 0
	}
}

// CipherBlockSize returns the block size used for padding purposes. Stream
// ciphers (cryptmt, wanderer) use the SSH-2 minimum of 8.
func CipherBlockSize(algo string) int {
	switch algo {
	case CipherAES128CTR, CipherAES256CTR:
		return aes.BlockSize
	case CipherTwofishCBC:
		return twofish.BlockSize
	case CipherBlowfishCBC:
		return blowfish.BlockSize
	default:
		return 8
	}
}

// DirectionalCrypto holds one direction's installed keystream, MAC and
// sequence number.
type DirectionalCrypto struct {
	CipherAlgo string
	MacAlgo    string
	Stream     cipher.Stream
	MAC        hash.Hash
	MACKey     []byte
	SeqNum     uint32
}

// CryptoContext is the shared-secret-derived key material for both
// directions of one session. A Session carries two of these: current
// (installed) and next (being negotiated); NEWKEYS promotes next to
// current.
type CryptoContext struct {
	ClientToServer *DirectionalCrypto
	ServerToClient *DirectionalCrypto
}

// NewCryptoContext builds both directional contexts from the six derived
// keys and the (independently negotiated) per-direction cipher/MAC names.
// seqCS/seqSC seed each direction's sequence number: per RFC 4253 §6.4 it
// counts every Binary Packet Protocol packet sent in that direction since
// the start of the connection, including the plaintext KEXINIT/KEXDH/
// NEWKEYS packets exchanged before this context's keys existed, so it does
// not reset to zero across the NEWKEYS transition.
func NewCryptoContext(cipherAlgoCS, cipherAlgoSC, macAlgoCS, macAlgoSC string, ivCS, ivSC, keyCS, keySC, macKeyCS, macKeySC []byte, seqCS, seqSC uint32) (*CryptoContext, error) {
	csStream, err := BuildCipher(cipherAlgoCS, append(append([]byte{}, keyCS...), ivCS...))
	if err != nil {
		return nil, err
	}
	scStream, err := BuildCipher(cipherAlgoSC, append(append([]byte{}, keySC...), ivSC...))
	if err != nil {
		return nil, err
	}
	csMAC, err := BuildMAC(macAlgoCS, macKeyCS)
	if err != nil {
		return nil, err
	}
	scMAC, err := BuildMAC(macAlgoSC, macKeySC)
	if err != nil {
		return nil, err
	}
	return &CryptoContext{
		ClientToServer: &DirectionalCrypto{CipherAlgo: cipherAlgoCS, MacAlgo: macAlgoCS, Stream: csStream, MAC: csMAC, MACKey: macKeyCS, SeqNum: seqCS},
		ServerToClient: &DirectionalCrypto{CipherAlgo: cipherAlgoSC, MacAlgo: macAlgoSC, Stream: scStream, MAC: scMAC, MACKey: macKeySC, SeqNum: seqSC},
	}, nil
}
