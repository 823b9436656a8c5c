package models

import "time"

// Identity is a registered account. Phone is the canonical 10-digit
// subscriber number and is unique, as is email.
type Identity struct {
	Bucket      int        `json:"-" db:"bucket"`
	IdentityID  string     `json:"identity_id" db:"identity_id"`
	Phone       string     `json:"phone" db:"phone"`
	Email       string     `json:"email" db:"email"`
	FullName    string     `json:"full_name" db:"full_name"`
	Role        string     `json:"role" db:"role"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	LastLoginIP string     `json:"last_login_ip,omitempty" db:"last_login_ip"`
}

// IdentitySummary is the client-facing view of an identity.
type IdentitySummary struct {
	IdentityID string `json:"identity_id"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	Role       string `json:"role"`
}

// Summary strips server-side fields before the identity leaves the API.
func (i *Identity) Summary() IdentitySummary {
	return IdentitySummary{
		IdentityID: i.IdentityID,
		Phone:      i.Phone,
		Email:      i.Email,
		FullName:   i.FullName,
		Role:       i.Role,
	}
}
