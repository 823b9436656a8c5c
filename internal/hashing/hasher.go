package hashing

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"

	"sentinel-auth/internal/config"
)

var ErrInvalidHash = errors.New("invalid hash format")

const algorithm = "argon2id-v1"

type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Hasher derives salted Argon2id hashes of OTP codes. The pepper comes from
// configuration rather than process memory so stored hashes stay verifiable
// across restarts.
type Hasher struct {
	params Argon2Params
	pepper string
}

type HashResult struct {
	Hash      string
	Salt      string
	Algorithm string
}

func NewHasher(cfg *config.Config) *Hasher {
	return &Hasher{
		params: Argon2Params{
			Memory:      uint32(cfg.Hashing.Argon2MemoryCost),
			Iterations:  uint32(cfg.Hashing.Argon2TimeCost),
			Parallelism: uint8(cfg.Hashing.Argon2Parallelism),
			SaltLength:  16,
			KeyLength:   32,
		},
		pepper: cfg.Hashing.Pepper,
	}
}

// HashOTP hashes a code with a fresh random salt.
func (h *Hasher) HashOTP(code string) (*HashResult, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := h.derive(code, salt)
	return &HashResult{
		Hash:      base64.RawURLEncoding.EncodeToString(hash),
		Salt:      base64.RawURLEncoding.EncodeToString(salt),
		Algorithm: algorithm,
	}, nil
}

// HashOTPWithSalt recomputes the hash for a candidate code against a stored
// salt, for comparison with the stored hash.
func (h *Hasher) HashOTPWithSalt(code, encodedSalt string) (string, error) {
	salt, err := base64.RawURLEncoding.DecodeString(encodedSalt)
	if err != nil {
		return "", ErrInvalidHash
	}
	return base64.RawURLEncoding.EncodeToString(h.derive(code, salt)), nil
}

func (h *Hasher) derive(code string, salt []byte) []byte {
	// Context suffix prevents hash reuse with other purposes sharing the pepper.
	data := code + h.pepper + "otp"
	return argon2.IDKey(
		[]byte(data),
		salt,
		h.params.Iterations,
		h.params.Memory,
		h.params.Parallelism,
		h.params.KeyLength,
	)
}
