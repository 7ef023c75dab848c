// Package keys implements the two-tier key hierarchy a Roughtime server
// signs with: a long-term key, derived once from a stable seed and never
// sent over the wire, and an online key, regenerated every process
// lifetime and delegated authority by the long-term key for a bounded
// validity window. Splitting the keys this way means a compromise of the
// host while the process is running exposes only the online key, whose
// signatures are already scoped to an expiry.
package keys

import (
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/ed25519"

	"github.com/quietcore/roughtimed"
)

// DelegationWindow is how long a Certificate signed at startup remains
// valid. The server signs exactly one delegation per process lifetime, at
// construction time, so this bounds how long a server can run before an
// operator must restart it to refresh the certificate.
const DelegationWindow = 30 * 24 * time.Hour

// LongTermKey holds the server's root Ed25519 identity, derived from a
// seed that must be kept secret indefinitely - its compromise lets an
// attacker mint certificates for any online key, for any window.
type LongTermKey struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewLongTermKey derives a LongTermKey from a 32-byte seed. The same seed
// always yields the same key pair, so operators can recover the server's
// public identity from the seed alone.
func NewLongTermKey(seed []byte) (*LongTermKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("keys: long-term seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &LongTermKey{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
}

// PublicKey returns the long-term public key.
func (k *LongTermKey) PublicKey() ed25519.PublicKey {
	return k.pub
}

// PublicKeyHex returns the long-term public key hex-encoded, the form
// operators publish out of band for clients to pin.
func (k *LongTermKey) PublicKeyHex() string {
	return hex.EncodeToString(k.pub)
}

// MakeCertificate signs a Delegation granting onlinePub authority for the
// half-open window [validFrom, validFrom+DelegationWindow), and returns
// the Certificate ready to be encoded into every response this process
// sends for the lifetime of that window.
func (k *LongTermKey) MakeCertificate(onlinePub ed25519.PublicKey, validFrom time.Time) roughtime.Certificate {
	dele := roughtime.Delegation{
		Min: validFrom,
		Max: validFrom.Add(DelegationWindow),
	}
	copy(dele.PublicKey[:], onlinePub)

	encoded := roughtime.EncodeDelegation(dele)
	sig := ed25519.Sign(k.priv, append(append([]byte{}, roughtime.ContextCertificate...), encoded...))

	cert := roughtime.Certificate{Delegation: dele}
	copy(cert.Signature[:], sig)
	return cert
}
