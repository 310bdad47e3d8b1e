package transport

import (
	"crypto/rand"
	"errors"
	"math/big"
	"sync"

	hkex "blitter.com/go/herradurakex"
	kyber "blitter.com/go/kyber"
	newhope "blitter.com/go/newhope"
)

// ErrCryptoRange is returned when a peer's public value falls outside the
// algebraic range the chosen KEX method requires.
var ErrCryptoRange = errors.New("transport: kex value out of range")

// Method is the per-algorithm server-side half of a key exchange. It
// generalizes classic Diffie-Hellman and the vendor-extension KEX entries
// behind one interface so the handshake driver's state machine does not
// special-case the algorithm (SPEC_FULL.md §4.D). e is the peer's
// ephemeral public/KEM value as received on the wire; f is this server's
// reply value; k is the resulting shared secret, both as raw big-endian
// magnitudes suitable for Buffer.WriteMPIntBytes.
type Method interface {
	Name() string
	GenerateReply(e []byte) (f []byte, k []byte, err error)
}

// NewMethod constructs the Method for a negotiated KEX algorithm name.
func NewMethod(name string) (Method, error) {
	switch name {
	case KexDH1SHA1:
		return &dhMethod{name: name, group: dhGroup1()}, nil
	case KexDH14SHA1:
		return &dhMethod{name: name, group: dhGroup14()}, nil
	case KexHerradura256:
		return &herraduraMethod{}, nil
	case KexKyber768:
		return &kyberMethod{}, nil
	case KexNewHope:
		return &newHopeMethod{}, nil
	default:
		return nil, errors.New("transport: unknown kex algorithm " + name)
	}
}

// dhGroup is a multiplicative group suitable for classic Diffie-Hellman.
// Grounded on massiveart-go.crypto/ssh/common.go's dhGroup/diffieHellman.
type dhGroup struct {
	g, p *big.Int
}

func (grp *dhGroup) diffieHellman(theirPublic, myPrivate *big.Int) (*big.Int, error) {
	if theirPublic.Sign() <= 0 || theirPublic.Cmp(grp.p) >= 0 {
		return nil, ErrCryptoRange
	}
	return new(big.Int).Exp(theirPublic, myPrivate, grp.p), nil
}

var group1Once, group14Once sync.Once
var group1, group14 *dhGroup

// dhGroup1 is diffie-hellman-group1-sha1 (RFC 4253; Oakley Group 2, RFC 2409).
func dhGroup1() *dhGroup {
	group1Once.Do(func() {
		p, _ := new(big.Int).SetString("FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE65381FFFFFFFFFFFFFFFF", 16)
		group1 = &dhGroup{g: big.NewInt(2), p: p}
	})
	return group1
}

// dhGroup14 is diffie-hellman-group14-sha1 (RFC 4253; Oakley Group 14, RFC 3526).
func dhGroup14() *dhGroup {
	group14Once.Do(func() {
		p, _ := new(big.Int).SetString("FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF6955817183995497CEA956AE515D2261898FA051015728E5A8AACAA68FFFFFFFFFFFFFFFF", 16)
		group14 = &dhGroup{g: big.NewInt(2), p: p}
	})
	return group14
}

type dhMethod struct {
	name  string
	group *dhGroup
}

func (m *dhMethod) Name() string { return m.name }

func (m *dhMethod) GenerateReply(eBytes []byte) (f, k []byte, err error) {
	e := new(big.Int).SetBytes(eBytes)
	if e.Sign() <= 0 || e.Cmp(m.group.p) >= 0 {
		return nil, nil, ErrCryptoRange
	}
	// y is the server's ephemeral private exponent; sized to the group by
	// sampling uniformly below p.
	y, err := rand.Int(rand.Reader, m.group.p)
	if err != nil {
		return nil, nil, err
	}
	fInt := new(big.Int).Exp(m.group.g, y, m.group.p)
	kInt, err := m.group.diffieHellman(e, y)
	if err != nil {
		return nil, nil, err
	}
	return fInt.Bytes(), kInt.Bytes(), nil
}

// herraduraMethod wraps blitter.com/go/herradurakex's FSCX revolution
// exchange as a KEX method: the peer's D value stands in for e, this
// server's own D stands in for f, and the computed FA stands in for K.
// Grounded on xsnet/net.go's HKExAcceptSetup.
type herraduraMethod struct{}

func (herraduraMethod) Name() string { return KexHerradura256 }

func (herraduraMethod) GenerateReply(eBytes []byte) (f, k []byte, err error) {
	h := hkex.New(256, 64)
	peerD := new(big.Int).SetBytes(eBytes)
	h.SetPeerD(peerD)
	h.ComputeFA()
	return h.D().Bytes(), h.FA().Bytes(), nil
}

// kyberMethod wraps blitter.com/go/kyber's KEM as a KEX method: e is
// Alice's (the client's) public key bytes, f is the KEM ciphertext sent
// back to her, k is the encapsulated shared secret. Grounded on
// xsnet/net.go's KyberAcceptSetup (Kyber768 variant).
type kyberMethod struct{}

func (kyberMethod) Name() string { return KexKyber768 }

func (kyberMethod) GenerateReply(eBytes []byte) (f, k []byte, err error) {
	peerPub, err := kyber.Kyber768.PublicKeyFromBytes(eBytes)
	if err != nil {
		return nil, nil, err
	}
	cipherText, sharedSecret, err := peerPub.KEMEncrypt(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return cipherText, sharedSecret, nil
}

// newHopeMethod wraps blitter.com/go/newhope's Bob-side key exchange as a
// KEX method. Grounded on xsnet/net.go's NewHopeAcceptSetup.
type newHopeMethod struct{}

func (newHopeMethod) Name() string { return KexNewHope }

func (newHopeMethod) GenerateReply(eBytes []byte) (f, k []byte, err error) {
	var pubKeyAlice newhope.PublicKeyAlice
	n := copy(pubKeyAlice.Send[:], eBytes)
	if n == 0 {
		return nil, nil, ErrCryptoRange
	}
	pubKeyBob, sharedSecret, err := newhope.KeyExchangeBob(rand.Reader, &pubKeyAlice)
	if err != nil {
		return nil, nil, err
	}
	return pubKeyBob.Send[:], sharedSecret[:], nil
}
