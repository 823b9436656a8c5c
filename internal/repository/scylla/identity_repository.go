package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"sentinel-auth/internal/auth"
	"sentinel-auth/internal/bucketing"
	"sentinel-auth/internal/models"
	"sentinel-auth/internal/util"
)

// IdentityRepository persists identities across two tables: the bucketed
// identities table keyed by (identity_bucket, identity_id) and the
// identities_by_phone lookup table that maps a phone number to its bucket
// and id. Both are written in a logged batch so they cannot diverge.
type IdentityRepository struct {
	client  *ScyllaClient
	buckets *bucketing.Manager
}

func NewIdentityRepository(client *ScyllaClient, buckets *bucketing.Manager) *IdentityRepository {
	return &IdentityRepository{
		client:  client,
		buckets: buckets,
	}
}

// Create inserts a new identity. The caller is expected to have checked
// phone uniqueness already; this re-checks under the lookup table to close
// most of the race window.
func (r *IdentityRepository) Create(ctx context.Context, identity *models.Identity) error {
	if identity.IdentityID == "" {
		identity.IdentityID = uuid.New().String()
	}
	identity.Bucket = r.buckets.IdentityBucket(identity.Phone)
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}

	if _, _, err := r.lookupPhone(ctx, identity.Phone); err == nil {
		return auth.ErrIdentityExists
	} else if err != auth.ErrIdentityNotFound {
		return err
	}

	var lastLogin time.Time
	if identity.LastLoginAt != nil {
		lastLogin = *identity.LastLoginAt
	}

	batch := r.client.Batch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(r.client.Prepared.CreateIdentity.Statement(),
		identity.Bucket, identity.IdentityID, identity.Phone, identity.Email,
		identity.FullName, identity.Role, identity.CreatedAt, lastLogin,
		identity.LastLoginIP)
	batch.Query(r.client.Prepared.CreatePhoneToIdentity.Statement(),
		identity.Phone, identity.Bucket, identity.IdentityID, identity.CreatedAt)

	if err := r.client.ExecuteBatch(batch); err != nil {
		util.Error("Failed to create identity",
			util.String("phone", identity.Phone),
			util.String("identity_id", identity.IdentityID),
			util.ErrorField(err))
		return fmt.Errorf("failed to create identity: %w", err)
	}

	util.Info("Identity created",
		util.String("identity_id", identity.IdentityID),
		util.String("role", identity.Role))
	return nil
}

func (r *IdentityRepository) lookupPhone(ctx context.Context, phone string) (int, string, error) {
	var bucket int
	var identityID string

	query := r.client.Prepared.GetIdentityByPhone.Bind(phone).WithContext(ctx)
	if err := r.client.ScanWithRetry(query, &bucket, &identityID); err != nil {
		if err == gocql.ErrNotFound {
			return 0, "", auth.ErrIdentityNotFound
		}
		return 0, "", fmt.Errorf("failed to look up phone: %w", err)
	}
	return bucket, identityID, nil
}

// GetByPhone resolves the phone through the lookup table, then reads the
// full row from the bucketed table.
func (r *IdentityRepository) GetByPhone(ctx context.Context, phone string) (*models.Identity, error) {
	bucket, identityID, err := r.lookupPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	return r.getByKey(ctx, bucket, identityID)
}

// GetByID reads the bucketed table directly. The bucket is derived from the
// phone, so callers must supply both; handlers take them from the session
// claims or from a prior phone lookup.
func (r *IdentityRepository) GetByID(ctx context.Context, phone, identityID string) (*models.Identity, error) {
	bucket := r.buckets.IdentityBucket(phone)
	identity, err := r.getByKey(ctx, bucket, identityID)
	if err != nil {
		return nil, err
	}
	if identity.Phone != phone {
		return nil, auth.ErrIdentityNotFound
	}
	return identity, nil
}

// FindByID locates an identity by id alone with a filtering scan. Only the
// low-volume administration paths use this; hot paths carry the phone and go
// through the lookup table.
func (r *IdentityRepository) FindByID(ctx context.Context, identityID string) (*models.Identity, error) {
	identity := &models.Identity{}
	var lastLogin time.Time

	query := r.client.Query(`
        SELECT identity_bucket, identity_id, phone_number, email, full_name,
            role, created_at, last_login_at, last_login_ip
        FROM identities WHERE identity_id = ? ALLOW FILTERING`, identityID).
		WithContext(ctx)
	err := query.Scan(
		&identity.Bucket, &identity.IdentityID, &identity.Phone, &identity.Email,
		&identity.FullName, &identity.Role, &identity.CreatedAt, &lastLogin,
		&identity.LastLoginIP)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, auth.ErrIdentityNotFound
		}
		util.Error("Failed to find identity",
			util.String("identity_id", identityID),
			util.ErrorField(err))
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	if !lastLogin.IsZero() {
		identity.LastLoginAt = &lastLogin
	}
	return identity, nil
}

func (r *IdentityRepository) getByKey(ctx context.Context, bucket int, identityID string) (*models.Identity, error) {
	identity := &models.Identity{}
	var lastLogin time.Time

	query := r.client.Prepared.GetIdentityByID.Bind(bucket, identityID).WithContext(ctx)
	err := r.client.ScanWithRetry(query,
		&identity.Bucket, &identity.IdentityID, &identity.Phone, &identity.Email,
		&identity.FullName, &identity.Role, &identity.CreatedAt, &lastLogin,
		&identity.LastLoginIP)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, auth.ErrIdentityNotFound
		}
		util.Error("Failed to get identity",
			util.String("identity_id", identityID),
			util.ErrorField(err))
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}

	if !lastLogin.IsZero() {
		identity.LastLoginAt = &lastLogin
	}
	return identity, nil
}

// UpdateLastLogin stamps the successful login time and source address.
func (r *IdentityRepository) UpdateLastLogin(ctx context.Context, identity *models.Identity, at time.Time, ip string) error {
	query := r.client.Prepared.UpdateLastLogin.
		Bind(at, ip, identity.Bucket, identity.IdentityID).
		WithContext(ctx)
	if err := query.Exec(); err != nil {
		util.Error("Failed to update last login",
			util.String("identity_id", identity.IdentityID),
			util.ErrorField(err))
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// UpdateRole rewrites the role column.
func (r *IdentityRepository) UpdateRole(ctx context.Context, identity *models.Identity, role string) error {
	query := r.client.Prepared.UpdateRole.
		Bind(role, identity.Bucket, identity.IdentityID).
		WithContext(ctx)
	if err := query.Exec(); err != nil {
		util.Error("Failed to update role",
			util.String("identity_id", identity.IdentityID),
			util.String("role", role),
			util.ErrorField(err))
		return fmt.Errorf("failed to update role: %w", err)
	}

	util.Info("Identity role updated",
		util.String("identity_id", identity.IdentityID),
		util.String("role", role))
	return nil
}

// Delete removes the identity and its phone lookup row in one batch.
func (r *IdentityRepository) Delete(ctx context.Context, identity *models.Identity) error {
	batch := r.client.Batch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(r.client.Prepared.DeleteIdentity.Statement(),
		identity.Bucket, identity.IdentityID)
	batch.Query(r.client.Prepared.DeletePhoneToIdentity.Statement(),
		identity.Phone)

	if err := r.client.ExecuteBatch(batch); err != nil {
		util.Error("Failed to delete identity",
			util.String("identity_id", identity.IdentityID),
			util.ErrorField(err))
		return fmt.Errorf("failed to delete identity: %w", err)
	}

	util.Info("Identity deleted", util.String("identity_id", identity.IdentityID))
	return nil
}

// ListByRole pages through the identities table filtered by role. The table
// is small enough (operator accounts dominate the queries here) that a
// filtering scan is acceptable.
func (r *IdentityRepository) ListByRole(ctx context.Context, role string, limit int) ([]*models.Identity, error) {
	if limit <= 0 {
		limit = 100
	}

	iter := r.client.Query(`
        SELECT identity_bucket, identity_id, phone_number, email, full_name,
            role, created_at, last_login_at, last_login_ip
        FROM identities WHERE role = ? LIMIT ? ALLOW FILTERING`, role, limit).
		WithContext(ctx).Iter()

	var out []*models.Identity
	for {
		identity := &models.Identity{}
		var lastLogin time.Time
		if !iter.Scan(&identity.Bucket, &identity.IdentityID, &identity.Phone,
			&identity.Email, &identity.FullName, &identity.Role,
			&identity.CreatedAt, &lastLogin, &identity.LastLoginIP) {
			break
		}
		if !lastLogin.IsZero() {
			identity.LastLoginAt = &lastLogin
		}
		out = append(out, identity)
	}
	if err := iter.Close(); err != nil {
		util.Error("Failed to list identities",
			util.String("role", role),
			util.ErrorField(err))
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	return out, nil
}
