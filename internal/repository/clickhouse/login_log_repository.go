package clickhouse

import (
	"context"
	"fmt"
	"time"

	"sentinel-auth/internal/auth"
	"sentinel-auth/internal/client"
	"sentinel-auth/internal/models"
	"sentinel-auth/internal/util"
)

// Login log tables are partitioned by role so privileged-account activity
// lives in its own table and can be retained and reviewed separately.
var logTables = map[auth.Role]string{
	auth.RoleUser:       "user_login_log",
	auth.RoleAdmin:      "admin_login_log",
	auth.RoleSuperadmin: "superadmin_login_log",
}

type LoginLogRepository struct {
	client *client.ClickHouseClient
}

func NewLoginLogRepository(client *client.ClickHouseClient) *LoginLogRepository {
	return &LoginLogRepository{client: client}
}

func tableFor(role auth.Role) (string, error) {
	table, ok := logTables[role]
	if !ok {
		return "", fmt.Errorf("no login log table for role %q", role)
	}
	return table, nil
}

// Insert appends one attempt record to the role's table.
func (r *LoginLogRepository) Insert(ctx context.Context, role auth.Role, entry *models.LoginLogEntry) error {
	table, err := tableFor(role)
	if err != nil {
		return err
	}

	if entry.LoggedAt.IsZero() {
		entry.LoggedAt = time.Now().UTC()
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (
            identity_id, phone, email, full_name, ip_address, user_agent,
            device_class, login_method, success, failure_reason, logged_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, table)

	err = r.client.Exec(ctx, query,
		entry.IdentityID, entry.Phone, entry.Email, entry.FullName,
		entry.IPAddress, entry.UserAgent, entry.DeviceClass, entry.LoginMethod,
		entry.Success, entry.FailureReason, entry.LoggedAt)
	if err != nil {
		util.Error("Failed to insert login log entry",
			util.String("table", table),
			util.String("identity_id", entry.IdentityID),
			util.ErrorField(err))
		return fmt.Errorf("failed to insert login log entry: %w", err)
	}

	return nil
}

// Recent returns the newest entries from the role's table.
func (r *LoginLogRepository) Recent(ctx context.Context, role auth.Role, limit int) ([]*models.LoginLogEntry, error) {
	table, err := tableFor(role)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := fmt.Sprintf(`
        SELECT identity_id, phone, email, full_name, ip_address, user_agent,
            device_class, login_method, success, failure_reason, logged_at
        FROM %s ORDER BY logged_at DESC LIMIT ?`, table)

	rows, err := r.client.QueryRows(ctx, query, limit)
	if err != nil {
		util.Error("Failed to query login log",
			util.String("table", table),
			util.ErrorField(err))
		return nil, fmt.Errorf("failed to query login log: %w", err)
	}
	defer rows.Close()

	var out []*models.LoginLogEntry
	for rows.Next() {
		entry := &models.LoginLogEntry{}
		if err := rows.Scan(
			&entry.IdentityID, &entry.Phone, &entry.Email, &entry.FullName,
			&entry.IPAddress, &entry.UserAgent, &entry.DeviceClass,
			&entry.LoginMethod, &entry.Success, &entry.FailureReason,
			&entry.LoggedAt); err != nil {
			return nil, fmt.Errorf("failed to scan login log row: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read login log rows: %w", err)
	}
	return out, nil
}
