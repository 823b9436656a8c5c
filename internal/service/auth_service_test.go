package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sentinel-auth/internal/auth"
	"sentinel-auth/internal/models"
)

type stubIdentityStore struct {
	mu         sync.Mutex
	byPhone    map[string]*models.Identity
	nextID     int
	createErr  error
	lastLogins int
}

func newStubIdentityStore() *stubIdentityStore {
	return &stubIdentityStore{byPhone: make(map[string]*models.Identity), nextID: 1}
}

func (s *stubIdentityStore) add(identity *models.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byPhone[identity.Phone] = identity
}

func (s *stubIdentityStore) Create(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if _, ok := s.byPhone[identity.Phone]; ok {
		return auth.ErrIdentityExists
	}
	if identity.IdentityID == "" {
		identity.IdentityID = string(rune('a' + s.nextID))
		s.nextID++
	}
	s.byPhone[identity.Phone] = identity
	return nil
}

func (s *stubIdentityStore) GetByPhone(_ context.Context, phone string) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.byPhone[phone]
	if !ok {
		return nil, auth.ErrIdentityNotFound
	}
	return identity, nil
}

func (s *stubIdentityStore) GetByID(_ context.Context, phone, identityID string) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.byPhone[phone]
	if !ok || identity.IdentityID != identityID {
		return nil, auth.ErrIdentityNotFound
	}
	return identity, nil
}

func (s *stubIdentityStore) FindByID(_ context.Context, identityID string) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, identity := range s.byPhone {
		if identity.IdentityID == identityID {
			return identity, nil
		}
	}
	return nil, auth.ErrIdentityNotFound
}

func (s *stubIdentityStore) UpdateLastLogin(_ context.Context, identity *models.Identity, at time.Time, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLogins++
	return nil
}

func (s *stubIdentityStore) UpdateRole(_ context.Context, identity *models.Identity, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity.Role = role
	return nil
}

func (s *stubIdentityStore) Delete(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byPhone, identity.Phone)
	return nil
}

func (s *stubIdentityStore) ListByRole(_ context.Context, role string, limit int) ([]*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Identity
	for _, identity := range s.byPhone {
		if identity.Role == role {
			out = append(out, identity)
		}
	}
	return out, nil
}

type stubLoginLogStore struct {
	mu      sync.Mutex
	entries []*models.LoginLogEntry
	roles   []auth.Role
}

func newStubLoginLogStore() *stubLoginLogStore {
	return &stubLoginLogStore{}
}

func (s *stubLoginLogStore) Insert(_ context.Context, role auth.Role, entry *models.LoginLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	s.roles = append(s.roles, role)
	return nil
}

func (s *stubLoginLogStore) Recent(_ context.Context, role auth.Role, limit int) ([]*models.LoginLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.LoginLogEntry
	for i, entry := range s.entries {
		if s.roles[i] == role {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *stubLoginLogStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *stubLoginLogStore) lastEntry(t *testing.T) *models.LoginLogEntry {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		t.Fatal("no audit entry recorded")
	}
	return s.entries[len(s.entries)-1]
}

type stubPublisher struct {
	mu       sync.Mutex
	messages [][]byte
	fail     bool
}

func (p *stubPublisher) Produce(_ context.Context, topic string, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unreachable")
	}
	p.messages = append(p.messages, value)
	return nil
}

type authFixture struct {
	authService *AuthService
	otpService  *OTPService
	otpStore    *stubOTPStore
	identities  *stubIdentityStore
	logs        *stubLoginLogStore
	publisher   *stubPublisher
	tokens      *auth.TokenManager
}

func newAuthFixture() *authFixture {
	otpStore := newStubOTPStore()
	identities := newStubIdentityStore()
	logs := newStubLoginLogStore()
	publisher := &stubPublisher{}
	tokens := auth.NewTokenManager("test-secret", time.Hour, "sentinel-auth")

	otpService := NewOTPService(otpStore, testOTPHasher(), &stubGateway{}, 5*time.Minute)
	audit := NewAuditService(logs, publisher, "auth.security-events")
	authService := NewAuthService(otpService, identities, tokens, audit)

	return &authFixture{
		authService: authService,
		otpService:  otpService,
		otpStore:    otpStore,
		identities:  identities,
		logs:        logs,
		publisher:   publisher,
		tokens:      tokens,
	}
}

func TestRequestCodeReportsExistence(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	exists, err := f.authService.RequestCode(ctx, "9876543210")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("unregistered phone reported as existing")
	}

	f.identities.add(&models.Identity{IdentityID: "id-1", Phone: "9876543210", Role: "user"})
	exists, err = f.authService.RequestCode(ctx, "9876543210")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("registered phone reported as new")
	}
}

func TestLoginHappyPath(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	f.identities.add(&models.Identity{
		IdentityID: "id-1",
		Phone:      "9876543210",
		Email:      "a@example.com",
		FullName:   "A",
		Role:       "user",
	})
	issueKnownCode(t, f.otpService, f.otpStore, "9876543210", "123456")

	result, err := f.authService.Login(ctx, "9876543210", "123456", ClientInfo{
		IPAddress: "10.0.0.1",
		UserAgent: "Mozilla/5.0 (iPhone) Mobile Safari",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	claims, err := f.tokens.Verify(result.Token)
	if err != nil {
		t.Fatalf("minted token does not verify: %v", err)
	}
	if claims.Subject != "id-1" || claims.Phone != "9876543210" || claims.Role != "user" {
		t.Errorf("claims = %+v", claims)
	}

	// The record is cleared, so the code cannot be replayed at all.
	if err := f.otpService.Verify(ctx, "9876543210", "123456"); !errors.Is(err, auth.ErrOTPNotFound) {
		t.Errorf("post-login verify = %v, want ErrOTPNotFound", err)
	}

	// The audit record is written before Login returns.
	entry := f.logs.lastEntry(t)
	if !entry.Success {
		t.Error("audit entry not marked success")
	}
	if entry.DeviceClass != "Mobile" {
		t.Errorf("device class = %q, want Mobile", entry.DeviceClass)
	}
	if entry.IPAddress != "10.0.0.1" {
		t.Errorf("ip = %q", entry.IPAddress)
	}

	if f.identities.lastLogins != 1 {
		t.Errorf("last login updates = %d, want 1", f.identities.lastLogins)
	}
}

func TestLoginUnknownIdentityKeepsConsumedRecord(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	issueKnownCode(t, f.otpService, f.otpStore, "9876543210", "123456")

	_, err := f.authService.Login(ctx, "9876543210", "123456", ClientInfo{})
	if !errors.Is(err, auth.ErrIdentityNotFound) {
		t.Fatalf("err = %v, want ErrIdentityNotFound", err)
	}

	// The code was consumed by the failed login, so it cannot be reused for
	// signup either.
	_, err = f.authService.Signup(ctx, "9876543210", "123456", "A", "a@example.com", ClientInfo{})
	if !errors.Is(err, auth.ErrOTPAlreadyUsed) {
		t.Errorf("signup with consumed code = %v, want ErrOTPAlreadyUsed", err)
	}
}

func TestLoginWrongCode(t *testing.T) {
	f := newAuthFixture()
	f.identities.add(&models.Identity{IdentityID: "id-1", Phone: "9876543210", Role: "user"})
	issueKnownCode(t, f.otpService, f.otpStore, "9876543210", "123456")

	_, err := f.authService.Login(context.Background(), "9876543210", "999999", ClientInfo{})
	if !errors.Is(err, auth.ErrOTPIncorrect) {
		t.Fatalf("err = %v, want ErrOTPIncorrect", err)
	}

	// Retry with the right code still works.
	if _, err := f.authService.Login(context.Background(), "9876543210", "123456", ClientInfo{}); err != nil {
		t.Errorf("retry after wrong code failed: %v", err)
	}
}

func TestSignupCreatesUserRole(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	issueKnownCode(t, f.otpService, f.otpStore, "9876543210", "123456")

	result, err := f.authService.Signup(ctx, "+919876543210", "123456", "New User", "new@example.com", ClientInfo{IPAddress: "10.0.0.2"})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}

	if result.Identity.Role != auth.RoleUser.String() {
		t.Errorf("role = %q, want user", result.Identity.Role)
	}
	if result.Identity.Phone != "9876543210" {
		t.Errorf("phone not normalized: %q", result.Identity.Phone)
	}

	claims, err := f.tokens.Verify(result.Token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Role != "user" {
		t.Errorf("token role = %q", claims.Role)
	}

	if _, err := f.identities.GetByPhone(ctx, "9876543210"); err != nil {
		t.Error("identity not persisted")
	}
}

func TestSignupConflictAfterValidCode(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	f.identities.add(&models.Identity{IdentityID: "id-1", Phone: "9876543210", Role: "user"})
	issueKnownCode(t, f.otpService, f.otpStore, "9876543210", "123456")

	_, err := f.authService.Signup(ctx, "9876543210", "123456", "Dup", "dup@example.com", ClientInfo{})
	if !errors.Is(err, auth.ErrIdentityExists) {
		t.Fatalf("err = %v, want ErrIdentityExists", err)
	}
}

func TestSignupRequiresValidCodeBeforeConflict(t *testing.T) {
	f := newAuthFixture()
	f.identities.add(&models.Identity{IdentityID: "id-1", Phone: "9876543210", Role: "user"})

	// No code issued: the failure must be about the code, never revealing
	// that the account exists.
	_, err := f.authService.Signup(context.Background(), "9876543210", "123456", "X", "x@example.com", ClientInfo{})
	if !errors.Is(err, auth.ErrOTPNotFound) {
		t.Fatalf("err = %v, want ErrOTPNotFound", err)
	}
}

func TestSignupDoesNotWriteAuditLog(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	issueKnownCode(t, f.otpService, f.otpStore, "9876543210", "123456")
	if _, err := f.authService.Signup(ctx, "9876543210", "123456", "A", "a@example.com", ClientInfo{}); err != nil {
		t.Fatal(err)
	}

	if f.logs.count() != 0 {
		t.Error("signup produced an audit entry")
	}
}

func TestLoginSucceedsWhenAuditFails(t *testing.T) {
	otpStore := newStubOTPStore()
	identities := newStubIdentityStore()
	publisher := &stubPublisher{fail: true}
	tokens := auth.NewTokenManager("test-secret", time.Hour, "sentinel-auth")

	otpService := NewOTPService(otpStore, testOTPHasher(), &stubGateway{}, 5*time.Minute)
	audit := NewAuditService(nil, publisher, "auth.security-events")
	authService := NewAuthService(otpService, identities, tokens, audit)

	identities.add(&models.Identity{IdentityID: "id-1", Phone: "9876543210", Role: "user"})
	issueKnownCode(t, otpService, otpStore, "9876543210", "123456")

	if _, err := authService.Login(context.Background(), "9876543210", "123456", ClientInfo{}); err != nil {
		t.Errorf("login failed because of audit trouble: %v", err)
	}
}

func TestMe(t *testing.T) {
	f := newAuthFixture()
	f.identities.add(&models.Identity{IdentityID: "id-1", Phone: "9876543210", Role: "user"})

	identity, err := f.authService.Me(context.Background(), &auth.SessionClaims{
		Phone:            "9876543210",
		Role:             "user",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "id-1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if identity.IdentityID != "id-1" {
		t.Errorf("identity id = %q", identity.IdentityID)
	}
}
