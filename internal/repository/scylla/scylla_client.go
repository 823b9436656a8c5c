package scylla

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"

	"sentinel-auth/internal/config"
	"sentinel-auth/internal/util"
)

// PreparedStatements holds the statements the identity repository executes.
type PreparedStatements struct {
	CreateIdentity        *gocql.Query
	CreatePhoneToIdentity *gocql.Query
	GetIdentityByID       *gocql.Query
	GetIdentityByPhone    *gocql.Query
	UpdateLastLogin       *gocql.Query
	UpdateRole            *gocql.Query
	DeleteIdentity        *gocql.Query
	DeletePhoneToIdentity *gocql.Query
}

type ScyllaClient struct {
	Session      *gocql.Session
	config       *config.ScyllaConfig
	Prepared     *PreparedStatements
	prepareMutex sync.RWMutex
	isPrepared   bool
}

func NewScyllaClient(cfg *config.Config) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 4
	cluster.SocketKeepalive = 30 * time.Second
	cluster.PageSize = 1000
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session: session,
		config:  &scyllaConfig,
	}

	if err := client.prepareStatements(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	util.Info("ScyllaDB client initialized",
		util.Any("nodes", scyllaConfig.Nodes),
		util.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

func (s *ScyllaClient) prepareStatements() error {
	s.prepareMutex.Lock()
	defer s.prepareMutex.Unlock()

	if s.isPrepared {
		return nil
	}

	prepared := &PreparedStatements{}

	prepared.CreateIdentity = s.Session.Query(`
        INSERT INTO identities (
            identity_bucket, identity_id, phone_number, email, full_name,
            role, created_at, last_login_at, last_login_ip
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	prepared.CreatePhoneToIdentity = s.Session.Query(`
        INSERT INTO identities_by_phone (phone_number, identity_bucket, identity_id, created_at)
        VALUES (?, ?, ?, ?)`)

	prepared.GetIdentityByID = s.Session.Query(`
        SELECT identity_bucket, identity_id, phone_number, email, full_name,
            role, created_at, last_login_at, last_login_ip
        FROM identities WHERE identity_bucket = ? AND identity_id = ?`)

	prepared.GetIdentityByPhone = s.Session.Query(`
        SELECT identity_bucket, identity_id FROM identities_by_phone WHERE phone_number = ?`)

	prepared.UpdateLastLogin = s.Session.Query(`
        UPDATE identities SET last_login_at = ?, last_login_ip = ?
        WHERE identity_bucket = ? AND identity_id = ?`)

	prepared.UpdateRole = s.Session.Query(`
        UPDATE identities SET role = ?
        WHERE identity_bucket = ? AND identity_id = ?`)

	prepared.DeleteIdentity = s.Session.Query(`
        DELETE FROM identities WHERE identity_bucket = ? AND identity_id = ?`)

	prepared.DeletePhoneToIdentity = s.Session.Query(`
        DELETE FROM identities_by_phone WHERE phone_number = ?`)

	s.Prepared = prepared
	s.isPrepared = true

	return nil
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
		util.Info("ScyllaDB client closed")
	}
}

func (s *ScyllaClient) Query(stmt string, values ...interface{}) *gocql.Query {
	return s.Session.Query(stmt, values...)
}

func (s *ScyllaClient) Batch(typ gocql.BatchType) *gocql.Batch {
	return s.Session.NewBatch(typ)
}

func (s *ScyllaClient) ExecuteBatch(batch *gocql.Batch) error {
	return s.Session.ExecuteBatch(batch)
}

func (s *ScyllaClient) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var clusterName string
	err := s.Session.Query(`SELECT cluster_name FROM system.local`).WithContext(ctx).Scan(&clusterName)
	if err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}

	util.Debug("ScyllaDB health check passed", util.String("cluster_name", clusterName))
	return nil
}

func (s *ScyllaClient) ScanWithRetry(query *gocql.Query, dest ...interface{}) error {
	var lastErr error
	for i := 0; i < 3; i++ {
		if err := query.Scan(dest...); err != nil {
			lastErr = err
			if err == gocql.ErrNotFound {
				return err
			}
			if i < 2 {
				time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
				continue
			}
		} else {
			return nil
		}
	}
	return lastErr
}
