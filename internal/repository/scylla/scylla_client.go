package scylla

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"identity-service/internal/config"
	"identity-service/internal/util"
)

// PreparedStatements holds the statements the repositories bind against.
// Accounts are partitioned by (account_bucket, account_id); the lookup
// tables map hashed identifiers back to that partition key, with LWT
// inserts acting as the uniqueness arbiter.
type PreparedStatements struct {
	CreateAccount         *gocql.Query
	CreateEmailLookup     *gocql.Query
	CreatePhoneLookup     *gocql.Query
	GetAccountByID        *gocql.Query
	GetEmailLookup        *gocql.Query
	GetPhoneLookup        *gocql.Query
	SetExternalLink       *gocql.Query
	ActivateAccount       *gocql.Query
	UpdateLastLogin       *gocql.Query
	UpdatePasswordHash    *gocql.Query
	UpdateTokens          *gocql.Query
	DeleteAccount         *gocql.Query
	DeleteEmailLookup     *gocql.Query
	DeletePhoneLookup     *gocql.Query
	UpsertLoginOtp        *gocql.Query
	GetLoginOtpByEmail    *gocql.Query
	ConsumeLoginOtp       *gocql.Query
	DeleteLoginOtpByEmail *gocql.Query
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
	cluster.MaxPreparedStmts = 1000
	cluster.MaxRoutingKeyInfo = 1000
	cluster.PageSize = 1000
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if !cfg.IsDevelopment() {
		cluster.SslOpts = &gocql.SslOptions{
			CaPath:                 "/root/certs/ca.pem",
			CertPath:               "/root/certs/server.pem",
			KeyPath:                "/root/certs/server.key",
			EnableHostVerification: true,
		}
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

	util.Info("ScyllaDB client initialized with prepared statements",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

func (s *ScyllaClient) prepareStatements() error {
	s.prepareMutex.Lock()
	defer s.prepareMutex.Unlock()

	if s.isPrepared {
		return nil
	}

	prepared := &PreparedStatements{}

	prepared.CreateAccount = s.Session.Query(`
    INSERT INTO accounts (
        account_bucket, account_id, email, email_hash, full_name,
        phone_number_hash, phone_encrypted, phone_key_id,
        password_hash, external_id, external_username,
        status, role_id, email_verified_at, last_login_at,
        access_token, id_token, refresh_token, token_type, token_expires_at,
        created_at, updated_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	// LWT inserts; a non-applied result means the identifier is taken.
	prepared.CreateEmailLookup = s.Session.Query(`
        INSERT INTO email_to_account (email_hash, account_bucket, account_id, created_at)
        VALUES (?, ?, ?, ?) IF NOT EXISTS`)

	prepared.CreatePhoneLookup = s.Session.Query(`
        INSERT INTO phone_to_account (phone_hash, account_bucket, account_id, created_at)
        VALUES (?, ?, ?, ?) IF NOT EXISTS`)

	prepared.GetAccountByID = s.Session.Query(`
        SELECT account_bucket, account_id, email, email_hash, full_name,
            phone_number_hash, phone_encrypted, phone_key_id,
            password_hash, external_id, external_username,
            status, role_id, email_verified_at, last_login_at,
            access_token, id_token, refresh_token, token_type, token_expires_at,
            created_at, updated_at
        FROM accounts WHERE account_bucket = ? AND account_id = ?`)

	prepared.GetEmailLookup = s.Session.Query(`
        SELECT account_bucket, account_id FROM email_to_account WHERE email_hash = ?`)

	prepared.GetPhoneLookup = s.Session.Query(`
        SELECT account_bucket, account_id FROM phone_to_account WHERE phone_hash = ?`)

	prepared.SetExternalLink = s.Session.Query(`
        UPDATE accounts SET external_id = ?, external_username = ?, updated_at = ?
        WHERE account_bucket = ? AND account_id = ?`)

	prepared.ActivateAccount = s.Session.Query(`
        UPDATE accounts SET status = ?, email_verified_at = ?, last_login_at = ?, updated_at = ?
        WHERE account_bucket = ? AND account_id = ?`)

	prepared.UpdateLastLogin = s.Session.Query(`
        UPDATE accounts SET last_login_at = ?, updated_at = ?
        WHERE account_bucket = ? AND account_id = ?`)

	prepared.UpdatePasswordHash = s.Session.Query(`
        UPDATE accounts SET password_hash = ?, updated_at = ?
        WHERE account_bucket = ? AND account_id = ?`)

	prepared.UpdateTokens = s.Session.Query(`
        UPDATE accounts SET access_token = ?, id_token = ?, refresh_token = ?,
            token_type = ?, token_expires_at = ?, updated_at = ?
        WHERE account_bucket = ? AND account_id = ?`)

	prepared.DeleteAccount = s.Session.Query(`
        DELETE FROM accounts WHERE account_bucket = ? AND account_id = ?`)

	prepared.DeleteEmailLookup = s.Session.Query(`
        DELETE FROM email_to_account WHERE email_hash = ?`)

	prepared.DeletePhoneLookup = s.Session.Query(`
        DELETE FROM phone_to_account WHERE phone_hash = ?`)

	// One row per email; a fresh insert overwrites any predecessor, which
	// is exactly the last-writer-wins issuance the login flow needs.
	prepared.UpsertLoginOtp = s.Session.Query(`
        INSERT INTO login_otps (email, code, expires_at, consumed_at, created_at)
        VALUES (?, ?, ?, null, ?)`)

	prepared.GetLoginOtpByEmail = s.Session.Query(`
        SELECT email, code, expires_at, consumed_at, created_at
        FROM login_otps WHERE email = ?`)

	prepared.ConsumeLoginOtp = s.Session.Query(`
        UPDATE login_otps SET consumed_at = ? WHERE email = ?`)

	prepared.DeleteLoginOtpByEmail = s.Session.Query(`
        DELETE FROM login_otps WHERE email = ?`)

	s.Prepared = prepared
	s.isPrepared = true

	util.Info("ScyllaDB prepared statements created successfully")
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

func (s *ScyllaClient) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var clusterName string
	err := s.Session.Query(`SELECT cluster_name FROM system.local`).WithContext(ctx).Scan(&clusterName)
	if err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}

	util.Debug("ScyllaDB health check passed", zap.String("cluster_name", clusterName))
	return nil
}

func (s *ScyllaClient) ExecuteWithRetry(query *gocql.Query, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if err := query.Exec(); err != nil {
			lastErr = err
			if i < maxRetries {
				time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
				continue
			}
		} else {
			return nil
		}
	}
	return lastErr
}

func (s *ScyllaClient) ScanWithRetry(query *gocql.Query, dest ...interface{}) error {
	var lastErr error
	for i := 0; i < 3; i++ {
		if err := query.Scan(dest...); err != nil {
			lastErr = err
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
