// Package kms resolves a server's long-term key seed from configuration:
// either the seed is plaintext and used as-is, or it is a ciphertext blob
// that must be decrypted through AWS KMS before the long-term key can be
// derived from it.
package kms

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"github.com/quietcore/roughtimed/config"
)

// SeedSize is the width of a long-term key seed once decrypted.
const SeedSize = 32

// Decrypter decrypts a KMS-wrapped seed. The AWS client satisfies it
// directly; tests substitute a fake.
type Decrypter interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// LoadSeed resolves cfg.Seed (hex-encoded) into 32 bytes of key material
// according to cfg.Protection. A plaintext seed must already be exactly
// 32 bytes; a KMS-protected seed is decrypted first and then must also be
// exactly 32 bytes, since any other key width cannot back an Ed25519 seed.
func LoadSeed(ctx context.Context, cfg *config.Config) ([SeedSize]byte, error) {
	raw, err := hex.DecodeString(cfg.Seed)
	if err != nil {
		return [SeedSize]byte{}, fmt.Errorf("kms: seed is not valid hex: %w", err)
	}

	if cfg.Protection.Plaintext {
		return toSeed(raw)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return [SeedSize]byte{}, fmt.Errorf("kms: load aws config: %w", err)
	}
	client := kms.NewFromConfig(awsCfg)
	return decryptSeed(ctx, client, cfg.Protection.KMSKeyID, raw)
}

// decryptSeed calls out to d to unwrap ciphertext, keeping the network
// call behind the Decrypter interface so it can be exercised with a fake
// in tests without reaching AWS.
func decryptSeed(ctx context.Context, d Decrypter, keyID string, ciphertext []byte) ([SeedSize]byte, error) {
	out, err := d.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: ciphertext,
		KeyId:          aws.String(keyID),
	})
	if err != nil {
		return [SeedSize]byte{}, fmt.Errorf("kms: decrypt seed: %w", err)
	}
	return toSeed(out.Plaintext)
}

func toSeed(b []byte) ([SeedSize]byte, error) {
	var seed [SeedSize]byte
	if len(b) != SeedSize {
		return seed, fmt.Errorf("kms: seed must decrypt to %d bytes, got %d", SeedSize, len(b))
	}
	copy(seed[:], b)
	return seed, nil
}
