package models

import "time"

// OTPRecord is the stored shape of a one-time code. The raw 6-digit code is
// never persisted; only its salted Argon2id hash. At most one active record
// exists per phone number at any time.
type OTPRecord struct {
	Phone         string    `json:"phone"`
	CodeHash      string    `json:"code_hash"`
	Salt          string    `json:"salt"`
	HashAlgorithm string    `json:"hash_algorithm"`
	ExpiresAt     time.Time `json:"expires_at"`
	Consumed      bool      `json:"consumed"`
	Attempts      int       `json:"attempts"`
	CreatedAt     time.Time `json:"created_at"`
}

// Expired reports whether the record is invalid at the given instant.
func (r *OTPRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// ConsumeResult is the outcome of an atomic find-and-consume on an OTP
// record. The store guarantees at most one ConsumeOK per record.
type ConsumeResult int

const (
	ConsumeMissing ConsumeResult = iota
	ConsumeAlreadyUsed
	ConsumeMismatch
	ConsumeOK
)
