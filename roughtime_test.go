package roughtime

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/quietcore/roughtimed/internal/wire"
)

func buildRequest(nonce [64]byte) []byte {
	buf := make([]byte, RequestLen)
	binary.LittleEndian.PutUint32(buf[0:4], 2)
	binary.LittleEndian.PutUint32(buf[4:8], 64)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(NONC))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(PAD))
	copy(buf[0x10:0x50], nonce[:])
	return buf
}

func TestValidateRequestAcceptsWellFormed(t *testing.T) {
	var nonce [64]byte
	for i := range nonce {
		nonce[i] = byte(i)
	}
	buf := buildRequest(nonce)

	got, err := ValidateRequest(buf)
	if err != nil {
		t.Fatalf("ValidateRequest() = %v", err)
	}
	if !bytes.Equal(got, nonce[:]) {
		t.Errorf("ValidateRequest() nonce = %x, want %x", got, nonce)
	}
}

func TestValidateRequestRejectsShort(t *testing.T) {
	if _, err := ValidateRequest(make([]byte, 100)); err != ErrRequestTooShort {
		t.Errorf("ValidateRequest(100 bytes) = %v, want ErrRequestTooShort", err)
	}
}

func TestValidateRequestRejectsWrongShape(t *testing.T) {
	var nonce [64]byte
	buf := buildRequest(nonce)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(PAD)) // swap NONC/PAD tags
	if _, err := ValidateRequest(buf); err != ErrMalformedRequest {
		t.Errorf("ValidateRequest() with swapped tags = %v, want ErrMalformedRequest", err)
	}
}

func TestDecodeRequestViaWireCodec(t *testing.T) {
	var nonce [64]byte
	for i := range nonce {
		nonce[i] = byte(i + 1)
	}
	buf := buildRequest(nonce)

	got, err := DecodeRequest(buf)
	if err != nil {
		t.Fatalf("DecodeRequest() = %v", err)
	}
	if got.Nonce != nonce {
		t.Fatalf("Nonce = %x, want %x", got.Nonce, nonce)
	}
}

func TestResponseEncodeDecodeRoundTrip(t *testing.T) {
	var root [32]byte
	for i := range root {
		root[i] = byte(i)
	}
	srep := SignedResponse{
		Root:     root,
		Midpoint: time.Unix(1_700_000_000, 0).UTC(),
		Radius:   time.Second,
	}
	var sig [64]byte
	for i := range sig {
		sig[i] = byte(2 * i)
	}
	cert := Certificate{
		Delegation: Delegation{
			Min: time.Unix(1_700_000_000, 0).UTC(),
			Max: time.Unix(1_700_000_000+2_592_000, 0).UTC(),
		},
	}
	for i := range cert.Signature {
		cert.Signature[i] = byte(i)
	}
	for i := range cert.Delegation.PublicKey {
		cert.Delegation.PublicKey[i] = byte(3 * i)
	}

	resp := Response{
		Signature:      sig,
		SignedResponse: srep,
		Path:           [][32]byte{{1}, {2}, {3}},
		Index:          5,
		Certificate:    cert,
	}

	buf := make([]byte, EncodedLen(len(resp.Path)))
	n := resp.Encode(buf)
	if n == 0 {
		t.Fatalf("Encode() wrote 0 bytes")
	}

	msg, err := wire.DecodeMessage(buf[:n])
	if err != nil {
		t.Fatalf("decode encoded response: %v", err)
	}
	var gotSig []byte
	if v, ok := msg.GetField(SIG); !ok || len(v) != 64 {
		t.Fatalf("SIG field missing or wrong length")
	} else {
		gotSig = v
	}
	if !bytes.Equal(gotSig, sig[:]) {
		t.Errorf("SIG round-trip mismatch")
	}
	if v, ok := msg.GetField(INDX); !ok || binary.LittleEndian.Uint32(v) != 5 {
		t.Errorf("INDX round-trip mismatch")
	}
	if v, ok := msg.GetField(PATH); !ok || len(v) != 96 {
		t.Errorf("PATH round-trip: got len %d, want 96", len(v))
	}
}
