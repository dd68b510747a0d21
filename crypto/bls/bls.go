// Package bls is the BLS12-381 façade: the augmented (AUG) signing
// scheme this module's spend aggregator verifies AGG_SIG_* conditions
// against, backed by the supranational/blst bindings.
package bls

import (
	"encoding/binary"
	"errors"

	blst "github.com/supranational/blst/bindings/go"
)

// dst is the domain-separation tag for the augmented scheme: the
// signer's own public key is prefixed onto the message before hashing
// to curve, which is what lets one aggregate signature cover many
// distinct (pubkey, message) pairs safely.
var dst = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_AUG_")

const (
	PublicKeySize = 48 // compressed G1
	SignatureSize = 96 // compressed G2
	SecretKeySize = 32
)

var (
	ErrInvalidPublicKey = errors.New("bls: invalid or infinity public key")
	ErrInvalidSignature = errors.New("bls: invalid signature encoding")
)

// PublicKey is a compressed G1 point, validated (non-infinity, on
// curve) at construction time.
type PublicKey struct {
	p *blst.P1Affine
}

// PublicKeyFromBytes decodes and validates a 48-byte compressed public
// key, mirroring PublicKey::from_bytes + the is_inf rejection in
// to_key (conditions.rs).
func PublicKeyFromBytes(buf []byte) (PublicKey, error) {
	if len(buf) != PublicKeySize {
		return PublicKey{}, ErrInvalidPublicKey
	}
	p := new(blst.P1Affine).Uncompress(buf)
	if p == nil || !p.KeyValidate() {
		return PublicKey{}, ErrInvalidPublicKey
	}
	return PublicKey{p: p}, nil
}

// Bytes returns the 48-byte compressed encoding.
func (k PublicKey) Bytes() []byte { return k.p.Compress() }

// Signature is a compressed G2 point.
type Signature struct {
	s *blst.P2Affine
}

// SignatureFromBytes decodes a 96-byte compressed signature.
func SignatureFromBytes(buf []byte) (Signature, error) {
	if len(buf) != SignatureSize {
		return Signature{}, ErrInvalidSignature
	}
	s := new(blst.P2Affine).Uncompress(buf)
	if s == nil {
		return Signature{}, ErrInvalidSignature
	}
	return Signature{s: s}, nil
}

// Bytes returns the 96-byte compressed encoding.
func (s Signature) Bytes() []byte { return s.s.Compress() }

// PkMsg is one (public key, message) pair an aggregate signature is
// checked against.
type PkMsg struct {
	PK  PublicKey
	Msg []byte
}

// AggregateVerify checks that signature is a valid aggregate over
// every (pubkey, message) pair, each hashed to curve with its own
// public key folded into the message per the augmented scheme —
// mirroring chia_bls::aggregate_verify. An empty pair list passes only
// if signature is the identity (point at infinity).
func AggregateVerify(signature Signature, pairs []PkMsg) bool {
	if len(pairs) == 0 {
		if signature.s == nil {
			return false
		}
		enc := signature.s.Compress()
		if enc[0] != 0xc0 {
			return false
		}
		for _, b := range enc[1:] {
			if b != 0 {
				return false
			}
		}
		return true
	}
	pks := make([]*blst.P1Affine, len(pairs))
	msgs := make([]blst.Message, len(pairs))
	for i, pm := range pairs {
		pks[i] = pm.PK.p
		augmented := make([]byte, 0, len(pm.PK.Bytes())+len(pm.Msg))
		augmented = append(augmented, pm.PK.Bytes()...)
		augmented = append(augmented, pm.Msg...)
		msgs[i] = augmented
	}
	return signature.s.AggregateVerify(true, pks, true, msgs, dst)
}

// Sign signs msg under sk using the augmented scheme (the public key
// is folded into the hashed message, same as AggregateVerify expects).
func Sign(sk *blst.SecretKey, pk PublicKey, msg []byte) Signature {
	augmented := make([]byte, 0, len(pk.Bytes())+len(msg))
	augmented = append(augmented, pk.Bytes()...)
	augmented = append(augmented, msg...)
	s := new(blst.P2Affine).Sign(sk, augmented, dst)
	return Signature{s: s}
}

// Cache memoizes whole AggregateVerify outcomes keyed by the signature
// plus every (pubkey, msg) pair, so a signature that has already been
// checked once in a mempool pass doesn't have to be re-verified on
// every subsequent reorg/replace attempt. A hit needs the identical
// signature over the identical pair list; per-pair pairing results are
// not cached, so a bundle sharing only some pairs with an earlier one
// is verified in full.
type Cache struct {
	seen map[string]bool
}

// NewCache returns an empty verification cache.
func NewCache() *Cache {
	return &Cache{seen: make(map[string]bool)}
}

// AggregateVerify checks the cache before falling back to a real
// aggregate verification, and remembers the outcome either way.
func (c *Cache) AggregateVerify(signature Signature, pairs []PkMsg) bool {
	key := cacheKey(signature, pairs)
	if ok, hit := c.seen[key]; hit {
		return ok
	}
	ok := AggregateVerify(signature, pairs)
	c.seen[key] = ok
	return ok
}

func cacheKey(signature Signature, pairs []PkMsg) string {
	buf := make([]byte, 0, SignatureSize+len(pairs)*64)
	buf = append(buf, signature.Bytes()...)
	var lenBuf [4]byte
	for _, pm := range pairs {
		buf = append(buf, pm.PK.Bytes()...)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(pm.Msg)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, pm.Msg...)
	}
	return string(buf)
}

// Snapshot returns a copy of every (key -> verified) entry the cache
// currently holds, so a caller can persist it across process restarts.
func (c *Cache) Snapshot() map[string]bool {
	out := make(map[string]bool, len(c.seen))
	for k, v := range c.seen {
		out[k] = v
	}
	return out
}

// Restore merges previously-snapshotted entries back into the cache,
// e.g. right after NewCache on process startup.
func (c *Cache) Restore(entries map[string]bool) {
	for k, v := range entries {
		c.seen[k] = v
	}
}
