package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"sentinel-auth/internal/auth"
	"sentinel-auth/internal/hashing"
	"sentinel-auth/internal/models"
	"sentinel-auth/internal/repository/redis"
	"sentinel-auth/internal/util"
)

// OTPService issues and verifies one-time codes. Codes are 6 decimal digits,
// stored hashed, valid for a configured window, and usable exactly once.
type OTPService struct {
	store   OTPStore
	hasher  *hashing.Hasher
	gateway SMSGateway
	expiry  time.Duration

	now func() time.Time
}

func NewOTPService(store OTPStore, hasher *hashing.Hasher, gateway SMSGateway, expiry time.Duration) *OTPService {
	if expiry <= 0 {
		expiry = 5 * time.Minute
	}
	return &OTPService{
		store:   store,
		hasher:  hasher,
		gateway: gateway,
		expiry:  expiry,
		now:     time.Now,
	}
}

func generateCode() (string, error) {
	// Uniform over 100000..999999 so the code is always 6 digits.
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+100000), nil
}

// IssueCode generates a fresh code for the phone, replacing any earlier
// record, and hands it to the SMS gateway. With no gateway configured the
// code goes to the diagnostic log and issuance still succeeds.
func (s *OTPService) IssueCode(ctx context.Context, rawPhone string) error {
	phone, err := auth.FormatPhoneNumber(rawPhone)
	if err != nil {
		return err
	}

	code, err := generateCode()
	if err != nil {
		return err
	}

	hashed, err := s.hasher.HashOTP(code)
	if err != nil {
		return fmt.Errorf("failed to hash code: %w", err)
	}

	now := s.now().UTC()
	rec := &models.OTPRecord{
		Phone:         phone,
		CodeHash:      hashed.Hash,
		Salt:          hashed.Salt,
		HashAlgorithm: hashed.Algorithm,
		ExpiresAt:     now.Add(s.expiry),
		Consumed:      false,
		Attempts:      0,
		CreatedAt:     now,
	}
	if err := s.store.Replace(ctx, rec); err != nil {
		return err
	}

	if !s.gateway.Configured() {
		util.Warn("SMS gateway not configured, surfacing code in diagnostic log",
			util.String("phone", phone),
			util.String("code", code))
		return nil
	}

	message := fmt.Sprintf("%s is your verification code. It expires in %d minutes. Do not share it with anyone.",
		code, int(s.expiry.Minutes()))
	if err := s.gateway.Send(ctx, phone, message); err != nil {
		util.Error("Failed to deliver OTP",
			util.String("phone", phone),
			util.ErrorField(err))
		return fmt.Errorf("%w: %v", auth.ErrDeliveryFailed, err)
	}

	util.Info("OTP issued",
		util.String("phone", phone),
		util.Time("expires_at", rec.ExpiresAt))
	return nil
}

// Verify checks a submitted code and consumes it on success. The consume is
// atomic in the store, so of two concurrent calls with the same valid code
// exactly one sees success.
func (s *OTPService) Verify(ctx context.Context, rawPhone, code string) error {
	phone, err := auth.FormatPhoneNumber(rawPhone)
	if err != nil {
		return err
	}

	rec, err := s.store.Get(ctx, phone)
	if err != nil {
		if err == redis.ErrRecordNotFound {
			return auth.ErrOTPNotFound
		}
		return err
	}

	if rec.Expired(s.now().UTC()) {
		if err := s.store.Delete(ctx, phone); err != nil {
			util.Warn("Failed to delete expired OTP record",
				util.String("phone", phone),
				util.ErrorField(err))
		}
		return auth.ErrOTPExpired
	}

	candidate, err := s.hasher.HashOTPWithSalt(code, rec.Salt)
	if err != nil {
		return auth.ErrOTPIncorrect
	}

	result, err := s.store.ConsumeIfMatch(ctx, phone, candidate)
	if err != nil {
		return err
	}
	switch result {
	case models.ConsumeOK:
		return nil
	case models.ConsumeMismatch:
		return auth.ErrOTPIncorrect
	case models.ConsumeAlreadyUsed:
		return auth.ErrOTPAlreadyUsed
	default:
		return auth.ErrOTPNotFound
	}
}

// Clear removes the record for the phone so a consumed code cannot be
// replayed within its expiry window.
func (s *OTPService) Clear(ctx context.Context, rawPhone string) error {
	phone, err := auth.FormatPhoneNumber(rawPhone)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, phone)
}
