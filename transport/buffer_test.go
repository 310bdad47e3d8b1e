package transport

import (
	"bytes"
	"math/big"
	"testing"
)

func TestBufferStringRoundTrip(t *testing.T) {
	b := NewBuffer()
	b.WriteString([]byte("ssh-rsa"))
	b.WriteU32(42)
	b.WriteU8(7)

	r := NewBufferFromBytes(b.Bytes())
	s, err := r.ReadString()
	if err != nil || string(s) != "ssh-rsa" {
		t.Fatalf("ReadString = %q, %v", s, err)
	}
	n, err := r.ReadU32()
	if err != nil || n != 42 {
		t.Fatalf("ReadU32 = %d, %v", n, err)
	}
	v, err := r.ReadU8()
	if err != nil || v != 7 {
		t.Fatalf("ReadU8 = %d, %v", v, err)
	}
}

func TestBufferShortRead(t *testing.T) {
	r := NewBufferFromBytes([]byte{0, 0, 0})
	if _, err := r.ReadU32(); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}

func TestMPIntBoundaries(t *testing.T) {
	cases := []struct {
		name string
		in   *big.Int
		want []byte
	}{
		{"zero", big.NewInt(0), []byte{0, 0, 0, 0}},
		{"positive-no-high-bit", big.NewInt(0x29), []byte{0, 0, 0, 1, 0x29}},
		{"high-bit-set-needs-zero-pad", big.NewInt(0x80), []byte{0, 0, 0, 2, 0, 0x80}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := NewBuffer()
			b.WriteMPIntBytes(c.in.Bytes())
			if !bytes.Equal(b.Bytes(), c.want) {
				t.Fatalf("got % x, want % x", b.Bytes(), c.want)
			}
		})
	}
}

func TestMPIntRoundTrip(t *testing.T) {
	orig := new(big.Int).SetBytes([]byte{0xFF, 0x01, 0x02})
	b := NewBuffer()
	b.WriteMPIntBytes(orig.Bytes())

	r := NewBufferFromBytes(b.Bytes())
	got, err := r.ReadMPIntBytes()
	if err != nil {
		t.Fatal(err)
	}
	gotInt := new(big.Int).SetBytes(got)
	if gotInt.Cmp(orig) != 0 {
		t.Fatalf("got %x, want %x", gotInt, orig)
	}
}

func TestNameListRoundTrip(t *testing.T) {
	names := []string{"diffie-hellman-group14-sha1", "ssh-rsa"}
	b := NewBuffer()
	b.WriteNameList(names)

	r := NewBufferFromBytes(b.Bytes())
	got, err := r.ReadNameList()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != names[0] || got[1] != names[1] {
		t.Fatalf("got %v, want %v", got, names)
	}
}

func TestEmptyNameListRoundTrip(t *testing.T) {
	b := NewBuffer()
	b.WriteNameList(nil)
	r := NewBufferFromBytes(b.Bytes())
	got, err := r.ReadNameList()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}
