package service

import (
	"context"
	"errors"
	"time"

	"sentinel-auth/internal/auth"
	"sentinel-auth/internal/models"
	"sentinel-auth/internal/util"
)

// LoginResult carries the minted token and the identity it belongs to.
type LoginResult struct {
	Token    string
	Identity *models.Identity
}

// ClientInfo is the request metadata the audit trail records.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// AuthService orchestrates OTP issuance and the login and signup flows.
type AuthService struct {
	otp        *OTPService
	identities IdentityStore
	tokens     *auth.TokenManager
	audit      *AuditService

	now func() time.Time
}

func NewAuthService(otp *OTPService, identities IdentityStore, tokens *auth.TokenManager, audit *AuditService) *AuthService {
	return &AuthService{
		otp:        otp,
		identities: identities,
		tokens:     tokens,
		audit:      audit,
		now:        time.Now,
	}
}

// RequestCode issues a code for the phone and reports whether an account
// already exists, so the client knows to continue with login or signup. The
// existence check never blocks issuance.
func (s *AuthService) RequestCode(ctx context.Context, rawPhone string) (bool, error) {
	phone, err := auth.FormatPhoneNumber(rawPhone)
	if err != nil {
		return false, err
	}

	exists := false
	if _, err := s.identities.GetByPhone(ctx, phone); err == nil {
		exists = true
	} else if !errors.Is(err, auth.ErrIdentityNotFound) {
		return false, err
	}

	if err := s.otp.IssueCode(ctx, phone); err != nil {
		return exists, err
	}
	return exists, nil
}

// Login verifies the code, resolves the identity and mints a session token.
// An unknown identity fails after the code is consumed; the record stays
// consumed so the same code cannot be replayed against signup.
func (s *AuthService) Login(ctx context.Context, rawPhone, code string, client ClientInfo) (*LoginResult, error) {
	phone, err := auth.FormatPhoneNumber(rawPhone)
	if err != nil {
		return nil, err
	}

	if err := s.otp.Verify(ctx, phone, code); err != nil {
		return nil, err
	}

	identity, err := s.identities.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, auth.ErrIdentityNotFound) {
			return nil, auth.ErrIdentityNotFound
		}
		return nil, err
	}

	if err := s.otp.Clear(ctx, phone); err != nil {
		util.Warn("Failed to clear consumed OTP record",
			util.String("phone", phone),
			util.ErrorField(err))
	}

	now := s.now().UTC()
	s.audit.RecordLogin(identity, &models.LoginLogEntry{
		IPAddress:   client.IPAddress,
		UserAgent:   client.UserAgent,
		DeviceClass: ClassifyDevice(client.UserAgent),
		LoginMethod: "otp",
		Success:     true,
		LoggedAt:    now,
	})

	if err := s.identities.UpdateLastLogin(ctx, identity, now, client.IPAddress); err != nil {
		util.Warn("Failed to update last login",
			util.String("identity_id", identity.IdentityID),
			util.ErrorField(err))
	} else {
		identity.LastLoginAt = &now
		identity.LastLoginIP = client.IPAddress
	}

	token, err := s.tokens.Mint(identity)
	if err != nil {
		return nil, err
	}

	util.Info("Login succeeded",
		util.String("identity_id", identity.IdentityID),
		util.String("role", identity.Role))
	return &LoginResult{Token: token, Identity: identity}, nil
}

// Signup verifies the code, creates the identity with the default role and
// mints a session token. The existence check runs after verification so
// signup cannot be used as an account existence oracle without a valid code.
func (s *AuthService) Signup(ctx context.Context, rawPhone, code, fullName, email string, client ClientInfo) (*LoginResult, error) {
	phone, err := auth.FormatPhoneNumber(rawPhone)
	if err != nil {
		return nil, err
	}

	if err := s.otp.Verify(ctx, phone, code); err != nil {
		return nil, err
	}

	if _, err := s.identities.GetByPhone(ctx, phone); err == nil {
		return nil, auth.ErrIdentityExists
	} else if !errors.Is(err, auth.ErrIdentityNotFound) {
		return nil, err
	}

	identity := &models.Identity{
		Phone:       phone,
		Email:       email,
		FullName:    fullName,
		Role:        auth.RoleUser.String(),
		CreatedAt:   s.now().UTC(),
		LastLoginIP: client.IPAddress,
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		return nil, err
	}

	if err := s.otp.Clear(ctx, phone); err != nil {
		util.Warn("Failed to clear consumed OTP record",
			util.String("phone", phone),
			util.ErrorField(err))
	}

	token, err := s.tokens.Mint(identity)
	if err != nil {
		return nil, err
	}

	util.Info("Signup completed",
		util.String("identity_id", identity.IdentityID))
	return &LoginResult{Token: token, Identity: identity}, nil
}

// Me resolves the authenticated identity from its session claims.
func (s *AuthService) Me(ctx context.Context, claims *auth.SessionClaims) (*models.Identity, error) {
	identity, err := s.identities.GetByID(ctx, claims.Phone, claims.Subject)
	if err != nil {
		return nil, err
	}
	return identity, nil
}
