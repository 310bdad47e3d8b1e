package libssh

// Host-key loading, SSH public-key blob serialization, signing, and
// deterministic erasure. A minimal PEM-to-signer loader covers RSA and
// DSA; broader formats (agent sockets, known_hosts-style files) are
// deliberately not handled here, see DESIGN.md.

import (
	"crypto/dsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/asn1"
	"encoding/pem"
	"math/big"

	"github.com/rgo/libssh/transport"
)

// HostKey is a loaded long-term server-identity key, RSA or DSA.
type HostKey struct {
	Algo string // transport.HostKeyRSA or transport.HostKeyDSA
	rsa  *rsa.PrivateKey
	dsa  *dsa.PrivateKey
}

// LoadHostKey reads a PEM-encoded RSA or DSA private key file.
func LoadHostKey(pemBytes []byte) (*HostKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, NewConfigError("no PEM block found in host key file")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, NewConfigError("parsing RSA host key: %v", err)
		}
		return &HostKey{Algo: transport.HostKeyRSA, rsa: key}, nil
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, NewConfigError("parsing PKCS8 host key: %v", err)
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, NewConfigError("unsupported PKCS8 host key type")
		}
		return &HostKey{Algo: transport.HostKeyRSA, rsa: rsaKey}, nil
	case "DSA PRIVATE KEY":
		key, err := parseDSAPrivateKey(block.Bytes)
		if err != nil {
			return nil, NewConfigError("parsing DSA host key: %v", err)
		}
		return &HostKey{Algo: transport.HostKeyDSA, dsa: key}, nil
	default:
		return nil, NewConfigError("unsupported host key PEM type %q", block.Type)
	}
}

// dsaOpenSSLPrivateKey mirrors the classic OpenSSL "DSA PRIVATE KEY" ASN.1
// layout: SEQUENCE{ version, P, Q, G, Y, X }.
type dsaOpenSSLPrivateKey struct {
	Version int
	P, Q, G, Y, X *big.Int
}

func parseDSAPrivateKey(der []byte) (*dsa.PrivateKey, error) {
	var raw dsaOpenSSLPrivateKey
	if _, err := asn1.Unmarshal(der, &raw); err != nil {
		return nil, err
	}
	key := &dsa.PrivateKey{
		PublicKey: dsa.PublicKey{
			Parameters: dsa.Parameters{P: raw.P, Q: raw.Q, G: raw.G},
			Y:          raw.Y,
		},
		X: raw.X,
	}
	return key, nil
}

// PublicKeyBlob serializes the host key's public half as an SSH wire blob
// (RFC 4253 §6.6).
func (hk *HostKey) PublicKeyBlob() []byte {
	b := transport.NewBuffer()
	switch hk.Algo {
	case transport.HostKeyRSA:
		b.WriteString([]byte(transport.HostKeyRSA))
		b.WriteMPIntBytes(big.NewInt(int64(hk.rsa.PublicKey.E)).Bytes())
		b.WriteMPIntBytes(hk.rsa.PublicKey.N.Bytes())
	case transport.HostKeyDSA:
		b.WriteString([]byte(transport.HostKeyDSA))
		b.WriteMPIntBytes(hk.dsa.P.Bytes())
		b.WriteMPIntBytes(hk.dsa.Q.Bytes())
		b.WriteMPIntBytes(hk.dsa.G.Bytes())
		b.WriteMPIntBytes(hk.dsa.Y.Bytes())
	}
	return b.Bytes()
}

// Sign produces an SSH signature blob over digest (RFC 4253 §6.6):
// string algo-name, string signature-bytes.
func (hk *HostKey) Sign(digest []byte) ([]byte, error) {
	switch hk.Algo {
	case transport.HostKeyRSA:
		sig, err := rsa.SignPKCS1v15(rand.Reader, hk.rsa, 0, shaSum1(digest))
		if err != nil {
			return nil, NewCryptoError("rsa sign: %v", err)
		}
		return serializeSignature(transport.HostKeyRSA, sig), nil
	case transport.HostKeyDSA:
		r, s, err := dsa.Sign(rand.Reader, hk.dsa, shaSum1(digest))
		if err != nil {
			return nil, NewCryptoError("dsa sign: %v", err)
		}
		sig := make([]byte, 40)
		rBytes := r.Bytes()
		sBytes := s.Bytes()
		copy(sig[20-len(rBytes):20], rBytes)
		copy(sig[40-len(sBytes):40], sBytes)
		return serializeSignature(transport.HostKeyDSA, sig), nil
	default:
		return nil, NewCryptoError("sign: unsupported host key algorithm")
	}
}

func shaSum1(digest []byte) []byte {
	// RFC 4253 §6.6 specifies SHA-1 over the exchange hash for both
	// ssh-rsa and ssh-dss signatures; digest here IS the exchange hash,
	// which may already be SHA-1 (group1/14) or SHA-256 (vendor KEX). To
	// keep the signature contract uniform across all negotiated KEX
	// algorithms, hash the exchange hash itself with SHA-1 before signing.
	h := sha1.Sum(digest)
	return h[:]
}

func serializeSignature(name string, sig []byte) []byte {
	b := transport.NewBuffer()
	b.WriteString([]byte(name))
	b.WriteString(sig)
	return b.Bytes()
}

// hostKeyFromPublicBlob rebuilds a HostKey holding only the public half,
// parsed from an SSH wire blob (as sent in a publickey AuthRequest), so
// the same Sign/VerifySignature machinery can check client signatures.
func hostKeyFromPublicBlob(algo string, blob []byte) (*HostKey, error) {
	b := transport.NewBufferFromBytes(blob)
	name, err := b.ReadString()
	if err != nil || string(name) != algo {
		return nil, NewProtocolError("public key blob: algorithm mismatch")
	}

	switch algo {
	case transport.HostKeyRSA:
		eBytes, err := b.ReadMPIntBytes()
		if err != nil {
			return nil, NewProtocolError("rsa public key: reading e: %v", err)
		}
		nBytes, err := b.ReadMPIntBytes()
		if err != nil {
			return nil, NewProtocolError("rsa public key: reading n: %v", err)
		}
		return &HostKey{
			Algo: transport.HostKeyRSA,
			rsa: &rsa.PrivateKey{
				PublicKey: rsa.PublicKey{
					E: int(new(big.Int).SetBytes(eBytes).Int64()),
					N: new(big.Int).SetBytes(nBytes),
				},
			},
		}, nil
	case transport.HostKeyDSA:
		p, err1 := b.ReadMPIntBytes()
		q, err2 := b.ReadMPIntBytes()
		g, err3 := b.ReadMPIntBytes()
		y, err4 := b.ReadMPIntBytes()
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			return nil, NewProtocolError("dsa public key: malformed blob")
		}
		return &HostKey{
			Algo: transport.HostKeyDSA,
			dsa: &dsa.PrivateKey{
				PublicKey: dsa.PublicKey{
					Parameters: dsa.Parameters{
						P: new(big.Int).SetBytes(p),
						Q: new(big.Int).SetBytes(q),
						G: new(big.Int).SetBytes(g),
					},
					Y: new(big.Int).SetBytes(y),
				},
			},
		}, nil
	default:
		return nil, NewProtocolError("public key blob: unsupported algorithm %q", algo)
	}
}

// VerifySignature checks a raw (un-wrapped) signature against signedData
// using this key's public half. RSA verification requires no private
// exponent; DSA verification likewise only touches P/Q/G/Y.
func (hk *HostKey) VerifySignature(signedData, sig []byte) bool {
	digest := shaSum1(signedData)
	switch hk.Algo {
	case transport.HostKeyRSA:
		if hk.rsa == nil {
			return false
		}
		err := rsa.VerifyPKCS1v15(&hk.rsa.PublicKey, 0, digest, sig)
		return err == nil
	case transport.HostKeyDSA:
		if hk.dsa == nil || len(sig) != 40 {
			return false
		}
		r := new(big.Int).SetBytes(sig[:20])
		s := new(big.Int).SetBytes(sig[20:])
		return dsa.Verify(&hk.dsa.PublicKey, digest, r, s)
	default:
		return false
	}
}

// Zero deterministically zeroes the backing words of the private scalar
// rather than merely dropping the reference, so the key material does
// not linger in heap memory after use.
func (hk *HostKey) Zero() {
	if hk.rsa != nil {
		zeroBigInt(hk.rsa.D)
		for _, p := range hk.rsa.Primes {
			zeroBigInt(p)
		}
		hk.rsa = nil
	}
	if hk.dsa != nil {
		zeroBigInt(hk.dsa.X)
		hk.dsa = nil
	}
}

func zeroBigInt(n *big.Int) {
	if n == nil {
		return
	}
	bits := n.Bits()
	for i := range bits {
		bits[i] = 0
	}
}
