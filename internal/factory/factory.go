package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sentinel-auth/internal/auth"
	"sentinel-auth/internal/bucketing"
	"sentinel-auth/internal/client"
	"sentinel-auth/internal/config"
	"sentinel-auth/internal/hashing"
	"sentinel-auth/internal/repository/clickhouse"
	"sentinel-auth/internal/repository/redis"
	"sentinel-auth/internal/repository/scylla"
	"sentinel-auth/internal/service"
	"sentinel-auth/internal/sms"
	"sentinel-auth/internal/util"
)

// Factory owns the lifecycle of every external client and wires the
// repositories, services and handlers together.
type Factory struct {
	config *config.Config

	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	kafkaProducer    *client.KafkaProducer
	clickhouseClient *client.ClickHouseClient

	hasher  *hashing.Hasher
	buckets *bucketing.Manager
	tokens  *auth.TokenManager
	gateway *sms.HTTPGateway

	otpStore    *redis.OTPStore
	rateLimiter *redis.RateLimiter
	identities  *scylla.IdentityRepository
	loginLogs   *clickhouse.LoginLogRepository

	otpService      *service.OTPService
	auditService    *service.AuditService
	authService     *service.AuthService
	identityService *service.IdentityService

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory loads configuration and initializes every dependency. The
// primary stores (Redis, Scylla) are required in every environment: no
// operation can serve without them. In production an unreachable audit sink
// is fatal too; in development the process starts without the sinks and the
// health endpoint reports the gaps.
func NewFactory() (*Factory, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	f := &Factory{
		config: cfg,
		closed: make(chan struct{}),
	}

	if err := f.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}
	f.initializeServices()

	util.Info("Factory initialized",
		util.String("environment", cfg.Environment),
		util.Bool("sms_configured", cfg.SMSConfigured()))

	return f, nil
}

func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Redis holds the OTP records and Scylla the identities; without either
	// the service cannot answer a single request, so both are fatal even in
	// development.
	redisClient, err := client.NewRedisClient(f.config)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	f.redisClient = redisClient
	if err := f.redisClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("redis health check: %w", err)
	}
	util.Info("Redis client initialized and healthy")

	scyllaClient, err := scylla.NewScyllaClient(f.config)
	if err != nil {
		return fmt.Errorf("scylla: %w", err)
	}
	f.scyllaClient = scyllaClient
	if err := f.scyllaClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("scylla health check: %w", err)
	}
	util.Info("ScyllaDB client initialized and healthy")

	var initErrors []error

	if producer, err := client.NewKafkaProducer(f.config); err != nil {
		util.Warn("Kafka producer initialization failed, proceeding without Kafka", util.ErrorField(err))
	} else {
		f.kafkaProducer = producer
		util.Info("Kafka producer initialized")
	}

	if chClient, err := client.NewClickHouseClient(f.config); err != nil {
		initErrors = append(initErrors, fmt.Errorf("clickhouse: %w", err))
	} else {
		f.clickhouseClient = chClient
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			initErrors = append(initErrors, fmt.Errorf("clickhouse health check: %w", err))
		} else {
			util.Info("ClickHouse client initialized and healthy")
		}
	}

	if len(initErrors) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %v", initErrors)
		}
		for _, err := range initErrors {
			util.Warn("Service initialization warning", util.ErrorField(err))
		}
	}

	return nil
}

func (f *Factory) initializeServices() {
	f.hasher = hashing.NewHasher(f.config)
	f.buckets = bucketing.NewManager(0)
	f.tokens = auth.NewTokenManager(f.config.JWT.Secret, f.config.JWT.Expiry, f.config.JWT.Issuer)
	f.gateway = sms.NewHTTPGateway(f.config)

	f.otpStore = redis.NewOTPStore(f.redisClient)
	f.rateLimiter = redis.NewRateLimiter(f.redisClient)
	f.identities = scylla.NewIdentityRepository(f.scyllaClient, f.buckets)

	// Interface values must stay nil when the backing client is absent so
	// the audit service can skip the sink instead of calling into a nil
	// client.
	var logs service.LoginLogStore
	if f.clickhouseClient != nil {
		f.loginLogs = clickhouse.NewLoginLogRepository(f.clickhouseClient)
		logs = f.loginLogs
	}
	var publisher service.EventPublisher
	if f.kafkaProducer != nil {
		publisher = f.kafkaProducer
	}

	f.otpService = service.NewOTPService(f.otpStore, f.hasher, f.gateway, f.config.OTP.Expiry)
	f.auditService = service.NewAuditService(logs, publisher, f.config.Kafka.SecurityEventTopic)
	f.authService = service.NewAuthService(f.otpService, f.identities, f.tokens, f.auditService)
	f.identityService = service.NewIdentityService(f.identities)
}

// HealthCheck probes every backing store and reports per-component state.
func (f *Factory) HealthCheck(ctx context.Context) map[string]string {
	checks := make(map[string]string)

	report := func(name string, err error) {
		if err != nil {
			checks[name] = err.Error()
		} else {
			checks[name] = "ok"
		}
	}

	if f.redisClient != nil {
		report("redis", f.redisClient.HealthCheck(ctx))
	} else {
		checks["redis"] = "not initialized"
	}
	if f.scyllaClient != nil {
		report("scylla", f.scyllaClient.HealthCheck(ctx))
	} else {
		checks["scylla"] = "not initialized"
	}
	if f.clickhouseClient != nil {
		report("clickhouse", f.clickhouseClient.HealthCheck(ctx))
	} else {
		checks["clickhouse"] = "not initialized"
	}
	if f.kafkaProducer != nil {
		report("kafka", f.kafkaProducer.HealthCheck(ctx))
	}

	return checks
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			}
		}
		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}
		if f.scyllaClient != nil {
			f.scyllaClient.Close()
		}
		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}

		util.Sync()
	})
	return nil
}

func (f *Factory) Config() *config.Config            { return f.config }
func (f *Factory) Tokens() *auth.TokenManager        { return f.tokens }
func (f *Factory) RateLimiter() *redis.RateLimiter   { return f.rateLimiter }
func (f *Factory) AuthService() *service.AuthService { return f.authService }
func (f *Factory) IdentityService() *service.IdentityService {
	return f.identityService
}
func (f *Factory) AuditService() *service.AuditService { return f.auditService }
