package transport

import (
	"crypto/sha1"
	"crypto/sha256"
	"hash"
)

// HashFuncFor returns the hash constructor associated with a KEX algorithm
// name, per its "-shaNNN" suffix.
func HashFuncFor(kexAlgo string) func() hash.Hash {
	switch kexAlgo {
	case KexDH1SHA1, KexDH14SHA1:
		return sha1.New
	case KexHerradura256, KexKyber768, KexNewHope:
		return sha256.New
	default:
		return sha256.New
	}
}

// ComputeExchangeHash computes H = HASH(V_C || V_S || I_C || I_S || K_S ||
// e || f || K) per RFC 4253 §8. V_C/V_S/I_C/I_S/K_S are written as SSH
// strings; e, f and K as mpints. Grounded on massiveart-go.crypto/ssh/
// client.go's kexDH hash construction (client/server roles reversed: here
// e is the peer's value and f is ours).
func ComputeExchangeHash(hashNew func() hash.Hash, vc, vs, ic, is, ks, e, f, k []byte) []byte {
	b := NewBuffer()
	b.WriteString(vc)
	b.WriteString(vs)
	b.WriteString(ic)
	b.WriteString(is)
	b.WriteString(ks)
	b.WriteMPIntBytes(e)
	b.WriteMPIntBytes(f)
	b.WriteMPIntBytes(k)

	h := hashNew()
	_, _ = h.Write(b.Bytes())
	return h.Sum(nil)
}

// DeriveKeys implements the standard HASH(K || H || X || session_id)
// expansion, extending each key by rehashing HASH(K || H || K1 || ... )
// when the target length exceeds one digest, per RFC 4253 §7.2.
func DeriveKeys(hashNew func() hash.Hash, k, h, sessionID []byte, lengths [6]int) (ivCS, ivSC, keyCS, keySC, macKeyCS, macKeySC []byte) {
	letters := []byte{'A', 'B', 'C', 'D', 'E', 'F'}
	out := make([][]byte, 6)
	for i, x := range letters {
		out[i] = expandKey(hashNew, k, h, sessionID, x, lengths[i])
	}
	return out[0], out[1], out[2], out[3], out[4], out[5]
}

func expandKey(hashNew func() hash.Hash, k, h, sessionID []byte, x byte, length int) []byte {
	b := NewBuffer()
	b.WriteMPIntBytes(k)
	b.WriteRaw(h)
	b.WriteU8(x)
	b.WriteRaw(sessionID)

	hh := hashNew()
	_, _ = hh.Write(b.Bytes())
	key := hh.Sum(nil)

	for len(key) < length {
		b2 := NewBuffer()
		b2.WriteMPIntBytes(k)
		b2.WriteRaw(h)
		b2.WriteRaw(key)
		hh2 := hashNew()
		_, _ = hh2.Write(b2.Bytes())
		key = append(key, hh2.Sum(nil)...)
	}
	return key[:length]
}
