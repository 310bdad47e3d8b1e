package libssh

import (
	"crypto/rsa"
	"math/big"
	"testing"

	"github.com/rgo/libssh/transport"
)

func TestLoadHostKeyRejectsGarbage(t *testing.T) {
	if _, err := LoadHostKey([]byte("this is not a PEM file")); err == nil {
		t.Fatal("expected an error for non-PEM input")
	}
}

func TestLoadHostKeyRejectsUnsupportedPEMType(t *testing.T) {
	pem := "-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----\n"
	if _, err := LoadHostKey([]byte(pem)); err == nil {
		t.Fatal("expected an error for a non-key PEM block")
	}
}

func TestPublicKeyBlobRoundTrip(t *testing.T) {
	hk := &HostKey{
		Algo: transport.HostKeyRSA,
		rsa: &rsa.PrivateKey{
			PublicKey: rsa.PublicKey{
				E: 65537,
				N: big.NewInt(987654321),
			},
		},
	}
	blob := hk.PublicKeyBlob()

	b := transport.NewBufferFromBytes(blob)
	algo, err := b.ReadString()
	if err != nil || string(algo) != transport.HostKeyRSA {
		t.Fatalf("expected algo name %q, got %q (err=%v)", transport.HostKeyRSA, algo, err)
	}
	eBytes, err := b.ReadMPIntBytes()
	if err != nil {
		t.Fatalf("reading e: %v", err)
	}
	if new(big.Int).SetBytes(eBytes).Int64() != 65537 {
		t.Fatalf("unexpected e: %v", eBytes)
	}
	nBytes, err := b.ReadMPIntBytes()
	if err != nil {
		t.Fatalf("reading n: %v", err)
	}
	if new(big.Int).SetBytes(nBytes).Int64() != 987654321 {
		t.Fatalf("unexpected n: %v", nBytes)
	}
}

func TestHostKeyFromPublicBlobRejectsAlgoMismatch(t *testing.T) {
	hk := &HostKey{
		Algo: transport.HostKeyRSA,
		rsa: &rsa.PrivateKey{
			PublicKey: rsa.PublicKey{E: 65537, N: big.NewInt(42)},
		},
	}
	blob := hk.PublicKeyBlob()
	if _, err := hostKeyFromPublicBlob(transport.HostKeyDSA, blob); err == nil {
		t.Fatal("expected an error when the blob's algo doesn't match the requested one")
	}
}

func TestZeroClearsPrivateMaterial(t *testing.T) {
	hk := &HostKey{
		Algo: transport.HostKeyRSA,
		rsa: &rsa.PrivateKey{
			PublicKey: rsa.PublicKey{E: 65537, N: big.NewInt(42)},
			D:         big.NewInt(123456789),
			Primes:    []*big.Int{big.NewInt(101), big.NewInt(103)},
		},
	}
	hk.Zero()
	if hk.rsa != nil {
		t.Fatal("expected rsa field to be nil after Zero")
	}
}

func TestVerifySignatureFalseWithoutKeyMaterial(t *testing.T) {
	hk := &HostKey{Algo: transport.HostKeyRSA}
	if hk.VerifySignature([]byte("data"), []byte("sig")) {
		t.Fatal("expected false when no key material is loaded")
	}
}
