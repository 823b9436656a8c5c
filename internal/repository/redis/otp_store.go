package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"sentinel-auth/internal/client"
	"sentinel-auth/internal/models"
	"sentinel-auth/internal/util"
)

const (
	otpPrefix = "otp:"

	// Records outlive their logical expiry by a grace period so the
	// verifier can tell "expired" apart from "not found"; the key TTL is
	// garbage collection only.
	expiryGrace = 10 * time.Minute

	opTimeout = 5 * time.Second
)

var ErrRecordNotFound = errors.New("otp record not found")

// consumeScript implements find-and-mark-consumed as a single Redis script,
// so two concurrent verifications of the same valid code cannot both succeed.
const consumeScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return "missing"
end
if redis.call("HGET", KEYS[1], "code_hash") ~= ARGV[1] then
  redis.call("HINCRBY", KEYS[1], "attempts", 1)
  return "mismatch"
end
if redis.call("HGET", KEYS[1], "consumed") == "1" then
  return "used"
end
redis.call("HSET", KEYS[1], "consumed", "1")
return "ok"
`

// OTPStore keeps OTPRecords as Redis hashes keyed by phone number.
type OTPStore struct {
	client *client.RedisClient
}

func NewOTPStore(client *client.RedisClient) *OTPStore {
	return &OTPStore{client: client}
}

// Replace deletes any prior record for the phone and inserts the new one.
// The deletion is unconditional: the later of two concurrent sends wins.
func (s *OTPStore) Replace(ctx context.Context, rec *models.OTPRecord) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := otpPrefix + rec.Phone

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"code_hash", rec.CodeHash,
		"salt", rec.Salt,
		"hash_algorithm", rec.HashAlgorithm,
		"expires_at", rec.ExpiresAt.UTC().Format(time.RFC3339Nano),
		"consumed", boolField(rec.Consumed),
		"attempts", strconv.Itoa(rec.Attempts),
		"created_at", rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	pipe.Expire(ctx, key, time.Until(rec.ExpiresAt)+expiryGrace)
	if _, err := pipe.Exec(ctx); err != nil {
		util.Error("Failed to store OTP record",
			util.String("phone", rec.Phone),
			util.ErrorField(err))
		return fmt.Errorf("failed to store OTP record: %w", err)
	}

	util.Debug("OTP record stored",
		util.String("phone", rec.Phone),
		util.Time("expires_at", rec.ExpiresAt))
	return nil
}

// Get returns the active record for a phone, or ErrRecordNotFound.
func (s *OTPStore) Get(ctx context.Context, phone string) (*models.OTPRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	fields, err := s.client.HGetAll(ctx, otpPrefix+phone)
	if err != nil {
		util.Error("Failed to read OTP record",
			util.String("phone", phone),
			util.ErrorField(err))
		return nil, fmt.Errorf("failed to read OTP record: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrRecordNotFound
	}

	rec := &models.OTPRecord{
		Phone:         phone,
		CodeHash:      fields["code_hash"],
		Salt:          fields["salt"],
		HashAlgorithm: fields["hash_algorithm"],
		Consumed:      fields["consumed"] == "1",
	}
	if rec.Attempts, err = strconv.Atoi(fields["attempts"]); err != nil {
		rec.Attempts = 0
	}
	if rec.ExpiresAt, err = time.Parse(time.RFC3339Nano, fields["expires_at"]); err != nil {
		return nil, fmt.Errorf("corrupt OTP record for %s: %w", phone, err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		rec.CreatedAt = time.Time{}
	}

	return rec, nil
}

// ConsumeIfMatch atomically compares the candidate hash against the stored
// one and marks the record consumed on a match. A mismatch bumps the attempt
// counter but keeps the record, allowing retry until expiry.
func (s *OTPStore) ConsumeIfMatch(ctx context.Context, phone, candidateHash string) (models.ConsumeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.client.Eval(ctx, consumeScript, []string{otpPrefix + phone}, candidateHash)
	if err != nil {
		util.Error("Failed to consume OTP record",
			util.String("phone", phone),
			util.ErrorField(err))
		return models.ConsumeMissing, fmt.Errorf("failed to consume OTP record: %w", err)
	}

	switch res {
	case "ok":
		return models.ConsumeOK, nil
	case "mismatch":
		return models.ConsumeMismatch, nil
	case "used":
		return models.ConsumeAlreadyUsed, nil
	default:
		return models.ConsumeMissing, nil
	}
}

// Delete removes the record outright.
func (s *OTPStore) Delete(ctx context.Context, phone string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := s.client.Del(ctx, otpPrefix+phone); err != nil {
		util.Error("Failed to delete OTP record",
			util.String("phone", phone),
			util.ErrorField(err))
		return fmt.Errorf("failed to delete OTP record: %w", err)
	}

	util.Debug("OTP record deleted", util.String("phone", phone))
	return nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
