package service

import (
	"context"
	"time"

	"sentinel-auth/internal/auth"
	"sentinel-auth/internal/models"
)

// OTPStore is the credential store consumed by the OTP service. The Redis
// repository is the production implementation.
type OTPStore interface {
	Replace(ctx context.Context, rec *models.OTPRecord) error
	Get(ctx context.Context, phone string) (*models.OTPRecord, error)
	ConsumeIfMatch(ctx context.Context, phone, candidateHash string) (models.ConsumeResult, error)
	Delete(ctx context.Context, phone string) error
}

// IdentityStore is the account store. The Scylla repository is the
// production implementation.
type IdentityStore interface {
	Create(ctx context.Context, identity *models.Identity) error
	GetByPhone(ctx context.Context, phone string) (*models.Identity, error)
	GetByID(ctx context.Context, phone, identityID string) (*models.Identity, error)
	FindByID(ctx context.Context, identityID string) (*models.Identity, error)
	UpdateLastLogin(ctx context.Context, identity *models.Identity, at time.Time, ip string) error
	UpdateRole(ctx context.Context, identity *models.Identity, role string) error
	Delete(ctx context.Context, identity *models.Identity) error
	ListByRole(ctx context.Context, role string, limit int) ([]*models.Identity, error)
}

// LoginLogStore appends to and reads the role-partitioned audit log.
type LoginLogStore interface {
	Insert(ctx context.Context, role auth.Role, entry *models.LoginLogEntry) error
	Recent(ctx context.Context, role auth.Role, limit int) ([]*models.LoginLogEntry, error)
}

// EventPublisher emits security events to the message bus.
type EventPublisher interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// SMSGateway delivers the one-time code to the subscriber.
type SMSGateway interface {
	Send(ctx context.Context, phone, message string) error
	Configured() bool
}
