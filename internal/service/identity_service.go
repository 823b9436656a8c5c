package service

import (
	"context"
	"errors"
	"time"

	"sentinel-auth/internal/auth"
	"sentinel-auth/internal/models"
	"sentinel-auth/internal/util"
)

// IdentityService is the administrative surface over the identity store.
// Every operation enforces the management policy: an admin touches only
// user-role identities, a superadmin additionally manages admins, and
// self-deletion is always refused.
type IdentityService struct {
	identities IdentityStore

	now func() time.Time
}

func NewIdentityService(identities IdentityStore) *IdentityService {
	return &IdentityService{
		identities: identities,
		now:        time.Now,
	}
}

func actorRole(claims *auth.SessionClaims) (auth.Role, error) {
	role, ok := auth.ParseRole(claims.Role)
	if !ok {
		return "", auth.ErrUnauthenticated
	}
	return role, nil
}

// Create provisions an identity with an explicit role, bypassing the OTP
// signup flow. The phone must be new.
func (s *IdentityService) Create(ctx context.Context, claims *auth.SessionClaims, rawPhone, email, fullName, role string) (*models.Identity, error) {
	actor, err := actorRole(claims)
	if err != nil {
		return nil, err
	}

	targetRole, ok := auth.ParseRole(role)
	if !ok {
		return nil, auth.ErrInvalidRole
	}
	if !auth.CanManage(actor, targetRole) {
		return nil, auth.ErrPermissionDenied
	}

	phone, err := auth.FormatPhoneNumber(rawPhone)
	if err != nil {
		return nil, err
	}

	identity := &models.Identity{
		Phone:     phone,
		Email:     email,
		FullName:  fullName,
		Role:      targetRole.String(),
		CreatedAt: s.now().UTC(),
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		return nil, err
	}

	util.Info("Identity provisioned",
		util.String("identity_id", identity.IdentityID),
		util.String("role", identity.Role),
		util.String("actor_id", claims.Subject))
	return identity, nil
}

// UpdateRole changes an identity's role. Both the current and the new role
// must be within the actor's management scope, so an admin can neither
// demote another admin nor promote a user past user.
func (s *IdentityService) UpdateRole(ctx context.Context, claims *auth.SessionClaims, targetID, role string) (*models.Identity, error) {
	actor, err := actorRole(claims)
	if err != nil {
		return nil, err
	}

	newRole, ok := auth.ParseRole(role)
	if !ok {
		return nil, auth.ErrInvalidRole
	}

	target, err := s.identities.FindByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	currentRole, ok := auth.ParseRole(target.Role)
	if !ok {
		return nil, errors.New("identity has unknown role")
	}
	if !auth.CanManage(actor, currentRole) || !auth.CanManage(actor, newRole) {
		return nil, auth.ErrPermissionDenied
	}

	if err := s.identities.UpdateRole(ctx, target, newRole.String()); err != nil {
		return nil, err
	}
	target.Role = newRole.String()

	util.Info("Identity role changed",
		util.String("identity_id", target.IdentityID),
		util.String("role", target.Role),
		util.String("actor_id", claims.Subject))
	return target, nil
}

// Delete removes an identity within the actor's management scope.
func (s *IdentityService) Delete(ctx context.Context, claims *auth.SessionClaims, targetID string) error {
	actor, err := actorRole(claims)
	if err != nil {
		return err
	}

	target, err := s.identities.FindByID(ctx, targetID)
	if err != nil {
		return err
	}

	targetRole, ok := auth.ParseRole(target.Role)
	if !ok {
		return errors.New("identity has unknown role")
	}
	if !auth.CanDelete(actor, claims.Subject, targetRole, target.IdentityID) {
		return auth.ErrPermissionDenied
	}

	if err := s.identities.Delete(ctx, target); err != nil {
		return err
	}

	util.Info("Identity removed",
		util.String("identity_id", target.IdentityID),
		util.String("actor_id", claims.Subject))
	return nil
}

// List returns identities of one role, restricted to roles the actor can
// see: admins list users, superadmins list users and admins.
func (s *IdentityService) List(ctx context.Context, claims *auth.SessionClaims, role string, limit int) ([]*models.Identity, error) {
	actor, err := actorRole(claims)
	if err != nil {
		return nil, err
	}

	targetRole, ok := auth.ParseRole(role)
	if !ok {
		return nil, auth.ErrInvalidRole
	}
	if !auth.CanManage(actor, targetRole) {
		return nil, auth.ErrPermissionDenied
	}

	return s.identities.ListByRole(ctx, targetRole.String(), limit)
}
