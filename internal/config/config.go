package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// MinSecretLength is the smallest accepted signing key, in bytes
const MinSecretLength = 32

// ErrSecretTooShort is returned when JWT_SECRET is shorter than MinSecretLength
var ErrSecretTooShort = errors.New("JWT_SECRET must be at least 32 bytes long")

type Config struct {
	Server       ServerConfig       `env:",prefix=SERVER_"`
	Postgres     PostgresConfig     `env:",prefix=POSTGRES_"`
	Redis        RedisConfig        `env:",prefix=REDIS_"`
	JWT          JWTConfig          `env:",prefix=JWT_"`
	Security     SecurityConfig     `env:",prefix="`
	CORS         CORSConfig         `env:",prefix=CORS_"`
	AMQP         AMQPConfig         `env:",prefix=AMQP_"`
	Housekeeping HousekeepingConfig `env:",prefix=HOUSEKEEPING_"`
	Admin        AdminConfig        `env:",prefix=ADMIN_"`
	Env          string             `env:"ENV,default=development"`
}

type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=15s"`
}

type PostgresConfig struct {
	Host            string   `env:"HOST,default=localhost"`
	Port            string   `env:"PORT,default=5432"`
	User            string   `env:"USER,default=auth_service"`
	Password        string   `env:"PASSWORD,default=auth_service_password"`
	DBName          string   `env:"DB,default=auth_service_db"`
	SSLMode         string   `env:"SSLMODE,default=disable"`
	MaxOpenConns    int      `env:"MAX_OPEN_CONNS,default=25"`
	MaxIdleConns    int      `env:"MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime Duration `env:"CONN_MAX_LIFETIME,default=30m"`
	AutoMigrate     bool     `env:"AUTO_MIGRATE,default=true"`
}

type RedisConfig struct {
	Host          string   `env:"HOST,default=localhost"`
	Port          string   `env:"PORT,default=6379"`
	Password      string   `env:"PASSWORD,default="`
	DB            int      `env:"DB,default=0"`
	DialTimeout   Duration `env:"DIAL_TIMEOUT,default=2s"`
	LookupTimeout Duration `env:"LOOKUP_TIMEOUT,default=200ms"`
	RevokeRetries int      `env:"REVOKE_RETRIES,default=2"`
}

type JWTConfig struct {
	Secret             string   `env:"SECRET,required"`
	AccessTokenExpiry  Duration `env:"ACCESS_TOKEN_EXPIRY,default=30m"`
	RefreshTokenExpiry Duration `env:"REFRESH_TOKEN_EXPIRY,default=7d"`
}

type SecurityConfig struct {
	BCryptCost        int      `env:"BCRYPT_COST,default=12"`
	MaxLoginAttempts  int      `env:"MAX_LOGIN_ATTEMPTS,default=5"`
	RateLimitRequests int      `env:"RATE_LIMIT_REQUESTS,default=10"`
	RateLimitWindow   Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization,X-Request-ID"`
}

// AMQPConfig configures the security event publisher. An empty URL disables it.
type AMQPConfig struct {
	URL      string `env:"URL,default="`
	Exchange string `env:"EXCHANGE,default=auth.events"`
}

type HousekeepingConfig struct {
	Interval Duration `env:"INTERVAL,default=1h"`
}

// AdminConfig seeds the first administrator when both fields are set
type AdminConfig struct {
	Email    string `env:"EMAIL,default="`
	Password string `env:"PASSWORD,default="`
	Name     string `env:"NAME,default=Administrator"`
}

// DSN returns PostgreSQL connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Enabled reports whether bootstrap credentials were provided
func (a AdminConfig) Enabled() bool {
	return a.Email != "" && a.Password != ""
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	var config Config

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadWithDefaults loads configuration with default context
func LoadWithDefaults() (*Config, error) {
	return Load(context.Background())
}

func (c *Config) validate() error {
	if len(c.JWT.Secret) < MinSecretLength {
		return ErrSecretTooShort
	}
	if c.Security.MaxLoginAttempts < 1 {
		return fmt.Errorf("MAX_LOGIN_ATTEMPTS must be positive, got %d", c.Security.MaxLoginAttempts)
	}
	if c.JWT.AccessTokenExpiry.Duration <= 0 || c.JWT.RefreshTokenExpiry.Duration <= 0 {
		return fmt.Errorf("token expiries must be positive")
	}
	if c.JWT.RefreshTokenExpiry.Duration < c.JWT.AccessTokenExpiry.Duration {
		return fmt.Errorf("JWT_REFRESH_TOKEN_EXPIRY must not be shorter than JWT_ACCESS_TOKEN_EXPIRY")
	}
	return nil
}
