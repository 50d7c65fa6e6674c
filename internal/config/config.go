package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string

	Server        ServerConfig
	Logging       LoggingConfig
	Redis         RedisConfig
	Scylla        ScyllaConfig
	Kafka         KafkaConfig
	Clickhouse    ClickhouseConfig
	Elasticsearch ElasticsearchConfig
	KMS           KMSConfig
	Cognito       CognitoConfig
	Auth          AuthConfig
	Hashing       HashingConfig
	Bucketing     BucketingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	TLSPort      int
	EnableTLS    bool
	AutoCert     bool
	AutoCertDir  string
	Domain       string
	Email        string
	CertFile     string
	KeyFile      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type ScyllaConfig struct {
	Nodes    []string
	Keyspace string
	Username string
	Password string
}

type KafkaConfig struct {
	Brokers       []string
	EventTopic    string
	OtpTopic      string
	ConsumerGroup string
}

type ClickhouseConfig struct {
	URL      string
	Database string
	Username string
	Password string
}

type ElasticsearchConfig struct {
	URL        string
	Username   string
	Password   string
	AuditIndex string
}

type KMSConfig struct {
	Enabled bool
	KeyID   string
	Region  string
}

// CognitoConfig points the provider adapter at one user pool. ClientSecret
// may be empty when the app client has no secret configured.
type CognitoConfig struct {
	Region       string
	UserPoolID   string
	ClientID     string
	ClientSecret string
}

// AuthConfig carries the process-wide secret used to derive the durable
// provider credential. It is read once at startup and never mutated.
type AuthConfig struct {
	ServiceSecret      string
	OtpRequestLimit    int
	OtpRequestWindow   time.Duration
	LoginAttemptLimit  int
	LoginAttemptWindow time.Duration
	IPRequestLimit     int
	IPRequestWindow    time.Duration
}

type HashingConfig struct {
	Argon2MemoryCost  int
	Argon2TimeCost    int
	Argon2Parallelism int
}

type BucketingConfig struct {
	AccountBuckets int
	EventBuckets   int
}

var (
	globalConfig *Config
	loadOnce     sync.Once
)

// LoadConfig reads configuration from the environment, loading a .env file
// first if one is present. Safe to call multiple times; the first call wins.
func LoadConfig() *Config {
	loadOnce.Do(func() {
		_ = godotenv.Load()

		globalConfig = &Config{
			Environment: getEnv("ENVIRONMENT", "development"),
			Server: ServerConfig{
				Host:         getEnv("SERVER_HOST", "0.0.0.0"),
				Port:         getEnvInt("SERVER_PORT", 8080),
				TLSPort:      getEnvInt("SERVER_TLS_PORT", 8443),
				EnableTLS:    getEnvBool("SERVER_ENABLE_TLS", false),
				AutoCert:     getEnvBool("SERVER_AUTO_CERT", false),
				AutoCertDir:  getEnv("SERVER_AUTO_CERT_DIR", "./certs"),
				Domain:       getEnv("SERVER_DOMAIN", "localhost"),
				Email:        getEnv("SERVER_ACME_EMAIL", ""),
				CertFile:     getEnv("SERVER_CERT_FILE", ""),
				KeyFile:      getEnv("SERVER_KEY_FILE", ""),
				ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
				WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
				IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
			Redis: RedisConfig{
				URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvInt("REDIS_DB", 0),
				PoolSize: getEnvInt("REDIS_POOL_SIZE", 50),
			},
			Scylla: ScyllaConfig{
				Nodes:    getEnvList("SCYLLA_NODES", []string{"localhost:9042"}),
				Keyspace: getEnv("SCYLLA_KEYSPACE", "identity"),
				Username: getEnv("SCYLLA_USERNAME", ""),
				Password: getEnv("SCYLLA_PASSWORD", ""),
			},
			Kafka: KafkaConfig{
				Brokers:       getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
				EventTopic:    getEnv("KAFKA_EVENT_TOPIC", "identity-security-events"),
				OtpTopic:      getEnv("KAFKA_OTP_TOPIC", "identity-otp-delivery"),
				ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "identity-service"),
			},
			Clickhouse: ClickhouseConfig{
				URL:      getEnv("CLICKHOUSE_URL", "http://localhost:8123"),
				Database: getEnv("CLICKHOUSE_DATABASE", "identity_analytics"),
				Username: getEnv("CLICKHOUSE_USERNAME", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Elasticsearch: ElasticsearchConfig{
				URL:        getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
				Username:   getEnv("ELASTICSEARCH_USERNAME", ""),
				Password:   getEnv("ELASTICSEARCH_PASSWORD", ""),
				AuditIndex: getEnv("ELASTICSEARCH_AUDIT_INDEX", "identity-audit"),
			},
			KMS: KMSConfig{
				Enabled: getEnvBool("KMS_ENABLED", false),
				KeyID:   getEnv("KMS_KEY_ID", ""),
				Region:  getEnv("KMS_REGION", "us-east-1"),
			},
			Cognito: CognitoConfig{
				Region:       getEnv("COGNITO_REGION", "us-east-1"),
				UserPoolID:   getEnv("COGNITO_USER_POOL_ID", ""),
				ClientID:     getEnv("COGNITO_CLIENT_ID", ""),
				ClientSecret: getEnv("COGNITO_CLIENT_SECRET", ""),
			},
			Auth: AuthConfig{
				ServiceSecret:      getEnv("AUTH_SERVICE_SECRET", ""),
				OtpRequestLimit:    getEnvInt("AUTH_OTP_REQUEST_LIMIT", 5),
				OtpRequestWindow:   getEnvDuration("AUTH_OTP_REQUEST_WINDOW", 15*time.Minute),
				LoginAttemptLimit:  getEnvInt("AUTH_LOGIN_ATTEMPT_LIMIT", 10),
				LoginAttemptWindow: getEnvDuration("AUTH_LOGIN_ATTEMPT_WINDOW", 15*time.Minute),
				IPRequestLimit:     getEnvInt("AUTH_IP_REQUEST_LIMIT", 60),
				IPRequestWindow:    getEnvDuration("AUTH_IP_REQUEST_WINDOW", 15*time.Minute),
			},
			Hashing: HashingConfig{
				Argon2MemoryCost:  getEnvInt("ARGON2_MEMORY_COST", 64*1024),
				Argon2TimeCost:    getEnvInt("ARGON2_TIME_COST", 3),
				Argon2Parallelism: getEnvInt("ARGON2_PARALLELISM", 2),
			},
			Bucketing: BucketingConfig{
				AccountBuckets: getEnvInt("ACCOUNT_BUCKETS", 256),
				EventBuckets:   getEnvInt("EVENT_BUCKETS", 64),
			},
		}
	})

	return globalConfig
}

// Get returns the loaded configuration, loading defaults if needed.
func Get() *Config {
	if globalConfig == nil {
		return LoadConfig()
	}
	return globalConfig
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate catches startup misconfiguration that would otherwise surface as
// confusing provider errors at request time.
func (c *Config) Validate() error {
	if c.Auth.ServiceSecret == "" {
		return fmt.Errorf("AUTH_SERVICE_SECRET must be set")
	}
	if c.IsProduction() {
		if c.Cognito.UserPoolID == "" || c.Cognito.ClientID == "" {
			return fmt.Errorf("COGNITO_USER_POOL_ID and COGNITO_CLIENT_ID must be set in production")
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
