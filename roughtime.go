// Package roughtime defines the wire schema of a Roughtime request,
// response, certificate and delegation, built on the tag-sorted codec in
// internal/wire. Unlike a client, a server only ever encodes Response and
// decodes Request, so the types here are asymmetric: Request has a
// decoder but no encoder worth keeping (a server never sends one), and
// Response has an encoder but no decoder.
package roughtime

import (
	"encoding/binary"
	"errors"
	"time"

	"golang.org/x/crypto/ed25519"

	"github.com/quietcore/roughtimed/internal/wire"
)

// Tag aliases wire.Tag so callers outside this package never import
// internal/wire directly for the constants below.
type Tag = wire.Tag

// Wire tags, little-endian 4-byte ASCII values per the protocol.
const (
	SIG  Tag = 0x00474953
	NONC Tag = 0x434e4f4e
	DELE Tag = 0x454c4544
	PATH Tag = 0x48544150
	RADI Tag = 0x49444152
	PUBK Tag = 0x4b425550
	MIDP Tag = 0x5044494d
	SREP Tag = 0x50455253
	MAXT Tag = 0x5458414d
	ROOT Tag = 0x544f4f52
	CERT Tag = 0x54524543
	MINT Tag = 0x544e494d
	INDX Tag = 0x58444e49
	PAD  Tag = 0xff444150
)

// ContextCertificate and ContextSignedResponse are the domain-separation
// strings prefixed to the signed payload of, respectively, a delegation
// certificate and a per-batch SREP. They differ only so that a signature
// valid under one context can never be replayed as valid under the other.
var (
	ContextCertificate    = []byte("RoughTime v1 delegation signature--\x00")
	ContextSignedResponse = []byte("RoughTime v1 response signature\x00")
)

// RequestLen is the minimum wire size of a client request: a NONC and a
// PAD field padding the datagram out to at least 1024 bytes, discouraging
// use of the server as a bandwidth amplifier.
const RequestLen = 1024

var (
	ErrInvalidNonce  = errors.New("roughtime: invalid nonce length")
	ErrInvalidField  = errors.New("roughtime: invalid field length")
	ErrInvalidPath   = errors.New("roughtime: PATH length not a multiple of 32")
	ErrSignatureFail = errors.New("roughtime: signature verification failed")
)

// Request is the two-field client datagram: a 64-byte NONC and a PAD
// filling the rest of the 1024-byte minimum.
type Request struct {
	Nonce [64]byte
}

// DecodeRequest decodes and validates a client request. It does not
// enforce RequestLen; callers on a hot path that only need the nonce
// should prefer the cheaper fast-path check in ValidateRequest.
func DecodeRequest(buf []byte) (*Request, error) {
	msg, err := wire.DecodeMessage(buf)
	if err != nil {
		return nil, err
	}
	v, ok := msg.GetField(NONC)
	if !ok {
		return nil, wire.ErrFieldMissing
	}
	if len(v) != 64 {
		return nil, ErrInvalidNonce
	}
	r := &Request{}
	copy(r.Nonce[:], v)
	return r, nil
}

var (
	ErrRequestTooShort  = errors.New("roughtime: request shorter than minimum length")
	ErrMalformedRequest = errors.New("roughtime: request does not match the fixed two-field request shape")
)

var (
	nonceTagBytes = tagWireBytes(NONC)
	padTagBytes   = tagWireBytes(PAD)
)

func tagWireBytes(t Tag) [4]byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(t))
	return b
}

// ValidateRequest extracts a client nonce directly from the fixed byte
// layout of a well-formed request, without running it through the
// general wire decoder: a request is always exactly two fields, NONC
// then PAD, so the header shape and the nonce's position are fixed
// offsets. This is the check the server's receive loop runs against
// every datagram, since decoding the general way for every packet on the
// hot path would cost more than this format deserves.
func ValidateRequest(buf []byte) ([]byte, error) {
	if len(buf) < RequestLen {
		return nil, ErrRequestTooShort
	}
	var tagCount [4]byte
	binary.LittleEndian.PutUint32(tagCount[:], 2)
	if [4]byte(buf[0:4]) != tagCount {
		return nil, ErrMalformedRequest
	}
	if [4]byte(buf[8:12]) != nonceTagBytes {
		return nil, ErrMalformedRequest
	}
	if [4]byte(buf[12:16]) != padTagBytes {
		return nil, ErrMalformedRequest
	}
	return buf[0x10:0x50], nil
}

// Delegation binds an online public key to a validity window, signed by
// the long-term key inside a Certificate.
type Delegation struct {
	Min       time.Time
	Max       time.Time
	PublicKey [32]byte
}

func encodeDelegation(st *wire.EncodeState, d Delegation) {
	st.NTags(3)
	st.Bytes32(PUBK, d.PublicKey)
	st.Time(MINT, d.Min)
	st.Time(MAXT, d.Max)
}

// EncodeDelegation serializes d the same way it is embedded in a
// Certificate's DELE field. keys.LongTermKey uses it to produce the exact
// bytes the long-term key signs over.
func EncodeDelegation(d Delegation) []byte {
	return wire.Encode(func(st *wire.EncodeState) { encodeDelegation(st, d) })
}

// Certificate is the long-term-key signature over a Delegation, sent with
// every response so a client can validate the online key without a
// separate round trip.
type Certificate struct {
	Signature  [64]byte
	Delegation Delegation
}

func encodeCertificate(st *wire.EncodeState, c Certificate) {
	st.NTags(2)
	st.Bytes64(SIG, c.Signature)
	// DELE is encoded into its own buffer by EncodeDelegation, the exact
	// bytes the long-term key signed, and copied in as an opaque field.
	dele := EncodeDelegation(c.Delegation)
	buf := st.Bytes(DELE, len(dele))
	copy(buf, dele)
}

// SignedResponse is the per-batch payload signed by the online key: the
// Merkle root of the batch, the server's midpoint estimate and its
// uncertainty radius.
type SignedResponse struct {
	Root     [32]byte
	Midpoint time.Time
	Radius   time.Duration
}

func encodeSignedResponse(st *wire.EncodeState, s SignedResponse) {
	st.NTags(3)
	st.Uint32(RADI, uint32(s.Radius/time.Microsecond))
	st.Uint64(MIDP, uint64(s.Midpoint.UnixMicro()))
	// ROOT here is the 32-byte truncated digest (crypto/sha512.New512_256),
	// not the 64-byte field width the client-decode path in the teacher's
	// original code expected; write it through Bytes directly.
	buf := st.Bytes(ROOT, 32)
	copy(buf, s.Root[:])
}

// EncodeSignedResponse serializes s the same way it is embedded in a
// Response's SREP field. keys.OnlineKey uses it to produce the exact
// bytes the online key signs over.
func EncodeSignedResponse(s SignedResponse) []byte {
	return wire.Encode(func(st *wire.EncodeState) { encodeSignedResponse(st, s) })
}

// Response is the full server reply to one batch member: the signature
// over SREP, the SREP itself, the Merkle path and leaf index tying this
// particular nonce to the batch root, and the delegation Certificate.
type Response struct {
	Signature      [64]byte
	SignedResponse SignedResponse
	Path           [][32]byte
	Index          uint32
	Certificate    Certificate
}

// Encode serializes the response into buf (which must be at least
// EncodedLen(len(r.Path)) bytes) and returns the number of bytes written.
func (r *Response) Encode(buf []byte) int {
	return wire.EncodeInto(buf, func(st *wire.EncodeState) {
		st.NTags(5)
		st.Bytes64(SIG, r.Signature)
		pathBuf := st.Bytes(PATH, len(r.Path)*32)
		for i, s := range r.Path {
			copy(pathBuf[i*32:], s[:])
		}
		// SREP and CERT are encoded into their own buffers and copied in
		// as opaque fields, the same way encodeCertificate embeds DELE.
		srep := EncodeSignedResponse(r.SignedResponse)
		srepBuf := st.Bytes(SREP, len(srep))
		copy(srepBuf, srep)

		cert := wire.Encode(func(inner *wire.EncodeState) { encodeCertificate(inner, r.Certificate) })
		certBuf := st.Bytes(CERT, len(cert))
		copy(certBuf, cert)

		st.Uint32(INDX, r.Index)
	})
}

// EncodedLen returns the exact wire size of an encoded Response whose Path
// has pathLen entries, so callers can size a reusable buffer without
// guessing.
func EncodedLen(pathLen int) int {
	const nTags = 5
	srepLen := 8*3 + 8 + 4 + 32 // header(3 tags) + MIDP(8) + RADI(4) + ROOT(32)
	deleLen := 8*3 + 8 + 8 + 32
	certLen := 8*2 + 64 + deleLen
	return 8*nTags + 64 + pathLen*32 + srepLen + certLen + 4
}

// VerifyDelegationSig checks that sig over the encoded Delegation is valid
// under the long-term public key root. Used by tests and by any client
// tooling built on this package; the server itself only ever signs.
func VerifyDelegationSig(root ed25519.PublicKey, encodedDelegation, sig []byte) bool {
	return ed25519.Verify(root, append(append([]byte{}, ContextCertificate...), encodedDelegation...), sig)
}

// VerifySignedResponseSig checks that sig over the encoded SREP is valid
// under the online public key.
func VerifySignedResponseSig(onlinePub ed25519.PublicKey, encodedSrep, sig []byte) bool {
	return ed25519.Verify(onlinePub, append(append([]byte{}, ContextSignedResponse...), encodedSrep...), sig)
}
