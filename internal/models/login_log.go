package models

import "time"

// LoginLogEntry is one append-only record of an authentication attempt.
// Entries are partitioned into separate logical logs by the identity's role
// so privileged-account activity can be reviewed independently.
type LoginLogEntry struct {
	IdentityID    string    `json:"identity_id" ch:"identity_id"`
	Phone         string    `json:"phone" ch:"phone"`
	Email         string    `json:"email" ch:"email"`
	FullName      string    `json:"full_name" ch:"full_name"`
	IPAddress     string    `json:"ip_address" ch:"ip_address"`
	UserAgent     string    `json:"user_agent" ch:"user_agent"`
	DeviceClass   string    `json:"device_class" ch:"device_class"`
	LoginMethod   string    `json:"login_method" ch:"login_method"`
	Success       bool      `json:"success" ch:"success"`
	FailureReason string    `json:"failure_reason" ch:"failure_reason"`
	LoggedAt      time.Time `json:"logged_at" ch:"logged_at"`
}

// SecurityEvent is the Kafka payload published for each login outcome.
type SecurityEvent struct {
	IdentityID  string    `json:"identity_id"`
	Phone       string    `json:"phone"`
	EventType   string    `json:"event_type"`
	IPAddress   string    `json:"ip_address"`
	DeviceClass string    `json:"device_class"`
	OccurredAt  time.Time `json:"occurred_at"`
}
