package bootstrap

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration.
// Sources in priority order: environment, then configs/*.yaml, then the defaults below.
type Config struct {
	Service struct {
		ID       string `yaml:"id" env:"SERVICE_ID"`
		HTTPPort int    `yaml:"http_port" env:"HTTP_PORT"`
		GRPCPort int    `yaml:"grpc_port" env:"GRPC_PORT"`
	} `yaml:"service"`

	Log struct {
		Level string `yaml:"level" env:"LOG_LEVEL"`
	} `yaml:"log"`

	Dependencies struct {
		PostgresURL string `yaml:"postgres_url" env:"DB_URL"`
		RedisURL    string `yaml:"redis_url" env:"REDIS_URL"`
		MaxDBConns  int32  `yaml:"max_db_conns" env:"DB_MAX_CONNS"`
	} `yaml:"dependencies"`

	Redis struct {
		MaxRetries      int           `yaml:"max_retries" env:"REDIS_MAX_RETRIES"`
		MinRetryBackoff time.Duration `yaml:"min_retry_backoff" env:"REDIS_MIN_RETRY_BACKOFF"`
		MaxRetryBackoff time.Duration `yaml:"max_retry_backoff" env:"REDIS_MAX_RETRY_BACKOFF"`
		DialTimeout     time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT"`
	} `yaml:"redis"`

	Postgres struct {
		RetryAttempts        int           `yaml:"retry_attempts" env:"DB_RETRY_ATTEMPTS"`
		RetryInitialInterval time.Duration `yaml:"retry_initial_interval" env:"DB_RETRY_INITIAL_INTERVAL"`
		RetryMaxInterval     time.Duration `yaml:"retry_max_interval" env:"DB_RETRY_MAX_INTERVAL"`
	} `yaml:"postgres"`

	Security struct {
		JWTSecretKey      string `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
		TOTPEncryptionKey string `yaml:"totp_encryption_key" env:"TOTP_ENCRYPTION_KEY"`
		TOTPIssuer        string `yaml:"totp_issuer" env:"TOTP_ISSUER"`
		HashPoolSize      int    `yaml:"hash_pool_size" env:"HASH_POOL_SIZE"`
		Argon2            struct {
			MemoryKiB   uint32 `yaml:"memory_kib" env:"ARGON2_MEMORY_KIB"`
			Iterations  uint32 `yaml:"iterations" env:"ARGON2_ITERATIONS"`
			Parallelism uint8  `yaml:"parallelism" env:"ARGON2_PARALLELISM"`
			SaltLength  uint32 `yaml:"salt_length" env:"ARGON2_SALT_LENGTH"`
			KeyLength   uint32 `yaml:"key_length" env:"ARGON2_KEY_LENGTH"`
		} `yaml:"argon2"`
	} `yaml:"security"`

	Tokens struct {
		AccessTTL  time.Duration `yaml:"access_ttl" env:"ACCESS_TOKEN_TTL"`
		RefreshTTL time.Duration `yaml:"refresh_ttl" env:"REFRESH_TOKEN_TTL"`
		ResetTTL   time.Duration `yaml:"reset_ttl" env:"RESET_TOKEN_TTL"`
		// AccessSessionCheck also checks the session store for access tokens.
		AccessSessionCheck bool `yaml:"access_session_check" env:"ACCESS_SESSION_CHECK"`
	} `yaml:"tokens"`

	Policy struct {
		PasswordMinLength int  `yaml:"password_min_length" env:"PASSWORD_MIN_LENGTH"`
		PasswordMaxLength int  `yaml:"password_max_length" env:"PASSWORD_MAX_LENGTH"`
		RequireUppercase  bool `yaml:"require_uppercase" env:"PASSWORD_REQUIRE_UPPERCASE"`
		RequireLowercase  bool `yaml:"require_lowercase" env:"PASSWORD_REQUIRE_LOWERCASE"`
		RequireDigit      bool `yaml:"require_digit" env:"PASSWORD_REQUIRE_DIGIT"`
		RequireSpecial    bool `yaml:"require_special" env:"PASSWORD_REQUIRE_SPECIAL"`
		UsernameMinLength int  `yaml:"username_min_length" env:"USERNAME_MIN_LENGTH"`
		UsernameMaxLength int  `yaml:"username_max_length" env:"USERNAME_MAX_LENGTH"`
		EmailMaxLength    int  `yaml:"email_max_length" env:"EMAIL_MAX_LENGTH"`
	} `yaml:"policy"`

	Lockout struct {
		Threshold int           `yaml:"threshold" env:"FAILED_LOGIN_THRESHOLD"`
		Window    time.Duration `yaml:"window" env:"ACCOUNT_LOCKOUT_WINDOW"`
	} `yaml:"lockout"`

	Registration struct {
		MaskEmailConflict bool `yaml:"mask_email_conflict" env:"REGISTRATION_MASK_EMAIL_CONFLICT"`
	} `yaml:"registration"`

	PasswordReset struct {
		SingleUse   bool   `yaml:"single_use" env:"PASSWORD_RESET_SINGLE_USE"`
		LinkBaseURL string `yaml:"link_base_url" env:"PASSWORD_RESET_LINK_BASE_URL"`
	} `yaml:"password_reset"`

	Kafka struct {
		Brokers []string          `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
		Topics  map[string]string `yaml:"topics"`
	} `yaml:"kafka"`

	Outbox struct {
		PollInterval time.Duration `yaml:"poll_interval" env:"OUTBOX_POLL_INTERVAL"`
		BatchSize    int           `yaml:"batch_size" env:"OUTBOX_BATCH_SIZE"`
		ClaimTTL     time.Duration `yaml:"claim_ttl" env:"OUTBOX_CLAIM_TTL"`
		MaxRetries   int           `yaml:"max_retries" env:"OUTBOX_MAX_RETRIES"`
	} `yaml:"outbox"`
}

const minJWTSecretBytes = 32

func defaultConfig() Config {
	var cfg Config
	cfg.Service.ID = "secure-messenger-auth"
	cfg.Service.HTTPPort = 8080
	cfg.Service.GRPCPort = 9090
	cfg.Log.Level = "info"
	cfg.Dependencies.MaxDBConns = 20

	cfg.Redis.MaxRetries = 3
	cfg.Redis.MinRetryBackoff = 8 * time.Millisecond
	cfg.Redis.MaxRetryBackoff = 512 * time.Millisecond
	cfg.Redis.DialTimeout = 5 * time.Second

	cfg.Postgres.RetryAttempts = 3
	cfg.Postgres.RetryInitialInterval = 50 * time.Millisecond
	cfg.Postgres.RetryMaxInterval = 500 * time.Millisecond

	cfg.Security.TOTPIssuer = "SecureMessenger"
	cfg.Security.HashPoolSize = 4
	cfg.Security.Argon2.MemoryKiB = 64 * 1024
	cfg.Security.Argon2.Iterations = 2
	cfg.Security.Argon2.Parallelism = 4
	cfg.Security.Argon2.SaltLength = 16
	cfg.Security.Argon2.KeyLength = 32

	cfg.Tokens.AccessTTL = 15 * time.Minute
	cfg.Tokens.RefreshTTL = 7 * 24 * time.Hour
	cfg.Tokens.ResetTTL = time.Hour

	cfg.Policy.PasswordMinLength = 8
	cfg.Policy.PasswordMaxLength = 64
	cfg.Policy.RequireUppercase = true
	cfg.Policy.RequireLowercase = true
	cfg.Policy.RequireDigit = true
	cfg.Policy.RequireSpecial = true
	cfg.Policy.UsernameMinLength = 3
	cfg.Policy.UsernameMaxLength = 50
	cfg.Policy.EmailMaxLength = 254

	cfg.Lockout.Threshold = 5
	cfg.Lockout.Window = 15 * time.Minute
	cfg.Registration.MaskEmailConflict = true
	cfg.PasswordReset.LinkBaseURL = "http://localhost:3000/reset-password"

	cfg.Outbox.PollInterval = 2 * time.Second
	cfg.Outbox.BatchSize = 100
	cfg.Outbox.ClaimTTL = 30 * time.Second
	cfg.Outbox.MaxRetries = 5
	return cfg
}

// LoadConfig resolves defaults, then the YAML file at path when it exists, then the environment.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var problems []string
	if c.Dependencies.PostgresURL == "" {
		problems = append(problems, "missing DB_URL")
	}
	if c.Dependencies.RedisURL == "" {
		problems = append(problems, "missing REDIS_URL")
	}
	if len(c.Security.JWTSecretKey) < minJWTSecretBytes {
		problems = append(problems, fmt.Sprintf("JWT_SECRET_KEY must be at least %d bytes", minJWTSecretBytes))
	}
	if _, err := c.TOTPKey(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Tokens.AccessTTL <= 0 || c.Tokens.RefreshTTL <= 0 || c.Tokens.ResetTTL <= 0 {
		problems = append(problems, "token ttls must be positive")
	}
	if c.Tokens.AccessTTL > c.Tokens.RefreshTTL {
		problems = append(problems, "access token ttl must not exceed refresh token ttl")
	}
	if c.Lockout.Threshold > 0 && c.Lockout.Window <= 0 {
		problems = append(problems, "lockout window must be positive when a lockout threshold is set")
	}
	if c.Policy.PasswordMinLength <= 0 || c.Policy.PasswordMinLength > c.Policy.PasswordMaxLength {
		problems = append(problems, "password length bounds are inconsistent")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// TOTPKey decodes TOTP_ENCRYPTION_KEY, which must be 32 bytes of base64.
func (c Config) TOTPKey() ([]byte, error) {
	encoded := strings.TrimSpace(c.Security.TOTPEncryptionKey)
	if encoded == "" {
		return nil, errors.New("missing TOTP_ENCRYPTION_KEY")
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		key, err = base64.URLEncoding.DecodeString(encoded)
	}
	if err != nil || len(key) != 32 {
		return nil, errors.New("TOTP_ENCRYPTION_KEY must be 32 bytes of base64")
	}
	return key, nil
}

func (c Config) logLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}
