package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"sentinel-auth/internal/auth"
	"sentinel-auth/internal/models"
)

func TestRecordLoginPartitionsByRole(t *testing.T) {
	logs := newStubLoginLogStore()
	publisher := &stubPublisher{}
	audit := NewAuditService(logs, publisher, "auth.security-events")

	audit.RecordLogin(&models.Identity{
		IdentityID: "a-1", Phone: "9876543211", Role: "admin",
	}, &models.LoginLogEntry{Success: true, LoginMethod: "otp"})

	audit.RecordLogin(&models.Identity{
		IdentityID: "u-1", Phone: "9876543210", Role: "user",
	}, &models.LoginLogEntry{Success: true, LoginMethod: "otp"})

	adminEntries, err := logs.Recent(context.Background(), auth.RoleAdmin, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(adminEntries) != 1 || adminEntries[0].IdentityID != "a-1" {
		t.Errorf("admin trail = %+v", adminEntries)
	}

	userEntries, _ := logs.Recent(context.Background(), auth.RoleUser, 10)
	if len(userEntries) != 1 || userEntries[0].IdentityID != "u-1" {
		t.Errorf("user trail = %+v", userEntries)
	}
}

func TestRecordLoginPublishesSecurityEvent(t *testing.T) {
	logs := newStubLoginLogStore()
	publisher := &stubPublisher{}
	audit := NewAuditService(logs, publisher, "auth.security-events")

	audit.RecordLogin(&models.Identity{
		IdentityID: "u-1", Phone: "9876543210", Role: "user",
	}, &models.LoginLogEntry{
		Success:     true,
		IPAddress:   "10.0.0.1",
		DeviceClass: "Mobile",
		LoggedAt:    time.Now().UTC(),
	})

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	if len(publisher.messages) != 1 {
		t.Fatalf("published %d events, want 1", len(publisher.messages))
	}

	var event models.SecurityEvent
	if err := json.Unmarshal(publisher.messages[0], &event); err != nil {
		t.Fatalf("event payload not JSON: %v", err)
	}
	if event.EventType != EventLoginSuccess {
		t.Errorf("event type = %q, want %q", event.EventType, EventLoginSuccess)
	}
	if event.IdentityID != "u-1" || event.IPAddress != "10.0.0.1" {
		t.Errorf("event = %+v", event)
	}
}

func TestRecordLoginFailureEvent(t *testing.T) {
	logs := newStubLoginLogStore()
	publisher := &stubPublisher{}
	audit := NewAuditService(logs, publisher, "auth.security-events")

	audit.RecordLogin(&models.Identity{
		IdentityID: "u-1", Phone: "9876543210", Role: "user",
	}, &models.LoginLogEntry{Success: false, FailureReason: "incorrect OTP"})

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	var event models.SecurityEvent
	if err := json.Unmarshal(publisher.messages[0], &event); err != nil {
		t.Fatal(err)
	}
	if event.EventType != EventLoginFailure {
		t.Errorf("event type = %q, want %q", event.EventType, EventLoginFailure)
	}
}

func TestRecordLoginSkipsUnknownRole(t *testing.T) {
	logs := newStubLoginLogStore()
	publisher := &stubPublisher{}
	audit := NewAuditService(logs, publisher, "auth.security-events")

	audit.RecordLogin(&models.Identity{
		IdentityID: "x-1", Phone: "9876543210", Role: "ghost",
	}, &models.LoginLogEntry{Success: true})

	if logs.count() != 0 {
		t.Error("unknown role produced an audit entry")
	}
}
