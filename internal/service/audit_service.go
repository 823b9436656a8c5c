package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"sentinel-auth/internal/auth"
	"sentinel-auth/internal/models"
	"sentinel-auth/internal/util"
)

const (
	EventLoginSuccess = "login.success"
	EventLoginFailure = "login.failure"
)

// AuditService records login outcomes in the role-partitioned ClickHouse log
// and publishes a security event to Kafka. Both writes are best-effort: a
// failure is logged and swallowed, never surfaced to the login path.
type AuditService struct {
	logs      LoginLogStore
	publisher EventPublisher
	topic     string

	now func() time.Time
}

func NewAuditService(logs LoginLogStore, publisher EventPublisher, topic string) *AuditService {
	return &AuditService{
		logs:      logs,
		publisher: publisher,
		topic:     topic,
		now:       time.Now,
	}
}

// RecordLogin fans the entry out to both sinks concurrently. The passed
// context's cancellation is deliberately not inherited so an aborted request
// cannot lose its audit record; the write gets its own deadline instead.
func (s *AuditService) RecordLogin(identity *models.Identity, entry *models.LoginLogEntry) {
	role, ok := auth.ParseRole(identity.Role)
	if !ok {
		util.Warn("Skipping audit record for unknown role",
			util.String("identity_id", identity.IdentityID),
			util.String("role", identity.Role))
		return
	}

	entry.IdentityID = identity.IdentityID
	entry.Phone = identity.Phone
	entry.Email = identity.Email
	entry.FullName = identity.FullName
	if entry.LoggedAt.IsZero() {
		entry.LoggedAt = s.now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	if s.logs != nil {
		g.Go(func() error {
			return s.logs.Insert(ctx, role, entry)
		})
	}

	if s.publisher != nil {
		g.Go(func() error {
			eventType := EventLoginFailure
			if entry.Success {
				eventType = EventLoginSuccess
			}
			event := &models.SecurityEvent{
				IdentityID:  entry.IdentityID,
				Phone:       entry.Phone,
				EventType:   eventType,
				IPAddress:   entry.IPAddress,
				DeviceClass: entry.DeviceClass,
				OccurredAt:  entry.LoggedAt,
			}
			payload, err := json.Marshal(event)
			if err != nil {
				return err
			}
			return s.publisher.Produce(ctx, s.topic, []byte(entry.IdentityID), payload)
		})
	}

	if err := g.Wait(); err != nil {
		util.Error("Login audit record incomplete",
			util.String("identity_id", entry.IdentityID),
			util.ErrorField(err))
	}
}

// RecentLogins serves the audit review endpoint.
func (s *AuditService) RecentLogins(ctx context.Context, role auth.Role, limit int) ([]*models.LoginLogEntry, error) {
	if s.logs == nil {
		return nil, errors.New("login log store unavailable")
	}
	return s.logs.Recent(ctx, role, limit)
}
