package keys

import (
	"crypto/rand"
	"time"

	"golang.org/x/crypto/ed25519"

	"github.com/quietcore/roughtimed"
)

// OnlineKey is the per-process signing key a long-term key delegates
// authority to. It is generated fresh every time the server starts and
// never persisted, so its compromise only exposes whatever window the
// current Certificate grants it.
type OnlineKey struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewOnlineKey generates a fresh online key pair from the system CSPRNG.
func NewOnlineKey() (*OnlineKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &OnlineKey{priv: priv, pub: pub}, nil
}

// PublicKey returns the online public key, the value a LongTermKey
// delegates to via MakeCertificate.
func (k *OnlineKey) PublicKey() ed25519.PublicKey {
	return k.pub
}

// MakeSignedResponse builds the SREP every member of the batch shares
// from the batch's Merkle root, the server's current time estimate and
// its uncertainty radius. It does not sign it; Sign does that.
func (k *OnlineKey) MakeSignedResponse(now time.Time, radius time.Duration, root [32]byte) roughtime.SignedResponse {
	srep := roughtime.SignedResponse{
		Root:     root,
		Midpoint: now,
		Radius:   radius,
	}
	return srep
}

// Sign signs the encoded form of srep and returns the 64-byte signature
// to place in a Response's SIG field.
func (k *OnlineKey) Sign(srep roughtime.SignedResponse) [64]byte {
	encoded := roughtime.EncodeSignedResponse(srep)
	sig := ed25519.Sign(k.priv, append(append([]byte{}, roughtime.ContextSignedResponse...), encoded...))
	var out [64]byte
	copy(out[:], sig)
	return out
}
