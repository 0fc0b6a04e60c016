package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	BackendMemory = "memory"
	BackendRedis  = "redis"

	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"

	minSecretLength = 32
)

type HTTPConfig struct {
	Host           string
	Port           int
	BasePath       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	TrustedProxies []string
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

type SecurityConfig struct {
	JWTSecret         string
	JWTTTL            time.Duration
	JWTIssuer         string
	PasswordAlgorithm string
	BcryptCost        int
	RevokeOnLogout    bool
}

type RateLimitConfig struct {
	Backend        string
	AuthLimit      int
	AuthWindow     time.Duration
	AuthFailClosed bool
	GeneralLimit   int
	GeneralWindow  time.Duration
}

type EventsConfig struct {
	Enabled bool
	Stream  string
	MaxLen  int64
}

type WorkerConfig struct {
	Group            string
	Consumer         string
	ClaimInterval    time.Duration
	MaxDeliveries    int64
	DeadLetterStream string
	Retention        time.Duration
}

type LoggingConfig struct {
	Level string
}

type AppConfig struct {
	Environment      string
	BaseURL          string
	HTTP             HTTPConfig
	Database         DatabaseConfig
	Redis            RedisConfig
	Security         SecurityConfig
	RateLimit        RateLimitConfig
	Events           EventsConfig
	Worker           WorkerConfig
	Logging          LoggingConfig
	AllowCORSOrigins []string
}

// Load reads config.yaml (when present) and KRISHI_* environment variables.
// A missing or short signing secret is an error; callers treat it as fatal.
func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("KRISHI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// keys without defaults are invisible to Unmarshal unless bound
	for _, key := range []string{"baseurl", "database.dsn", "redis.password", "security.jwtsecret", "security.jwtissuer"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that have no safe default.
func (c *AppConfig) Validate() error {
	var errs []error

	if c.Security.JWTSecret == "" {
		errs = append(errs, errors.New("security.jwtsecret is required"))
	} else if len(c.Security.JWTSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("security.jwtsecret must be at least %d bytes", minSecretLength))
	}
	if c.Security.JWTTTL <= 0 {
		errs = append(errs, errors.New("security.jwtttl must be positive"))
	}
	switch c.Security.PasswordAlgorithm {
	case AlgorithmBcrypt:
		if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
			errs = append(errs, fmt.Errorf("security.bcryptcost %d out of range 4..31", c.Security.BcryptCost))
		}
	case AlgorithmArgon2id:
	default:
		errs = append(errs, fmt.Errorf("unknown security.passwordalgorithm %q", c.Security.PasswordAlgorithm))
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}

	switch c.RateLimit.Backend {
	case BackendMemory, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown ratelimit.backend %q", c.RateLimit.Backend))
	}
	if c.RateLimit.AuthLimit <= 0 || c.RateLimit.GeneralLimit <= 0 {
		errs = append(errs, errors.New("ratelimit limits must be positive"))
	}
	if c.RateLimit.AuthWindow <= 0 || c.RateLimit.GeneralWindow <= 0 {
		errs = append(errs, errors.New("ratelimit windows must be positive"))
	}

	return errors.Join(errs...)
}

// RedisRequired reports whether any enabled component needs a Redis connection.
func (c *AppConfig) RedisRequired() bool {
	return c.RateLimit.Backend == BackendRedis || c.Events.Enabled || c.Security.RevokeOnLogout
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.basepath", "")
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")
	v.SetDefault("http.requesttimeout", "10s")
	v.SetDefault("http.trustedproxies", []string{})

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.maxopen", 30)
	v.SetDefault("database.maxidle", 10)
	v.SetDefault("database.connmaxlifetime", "30m")
	v.SetDefault("database.automigrate", true)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolsize", 20)
	v.SetDefault("redis.dialtimeout", "5s")

	v.SetDefault("security.jwtttl", "168h") // 7 days
	v.SetDefault("security.passwordalgorithm", AlgorithmBcrypt)
	v.SetDefault("security.bcryptcost", 12)
	v.SetDefault("security.revokeonlogout", false)

	v.SetDefault("ratelimit.backend", BackendMemory)
	v.SetDefault("ratelimit.authlimit", 5)
	v.SetDefault("ratelimit.authwindow", "15m")
	v.SetDefault("ratelimit.authfailclosed", true)
	v.SetDefault("ratelimit.generallimit", 100)
	v.SetDefault("ratelimit.generalwindow", "15m")

	v.SetDefault("events.enabled", true)
	v.SetDefault("events.stream", "auth:events")
	v.SetDefault("events.maxlen", 100000)

	v.SetDefault("worker.group", "auth-audit")
	v.SetDefault("worker.consumer", "worker-1")
	v.SetDefault("worker.claiminterval", "30s")
	v.SetDefault("worker.maxdeliveries", 5)
	v.SetDefault("worker.deadletterstream", "auth:events:dead")
	v.SetDefault("worker.retention", "2160h") // 90 days

	v.SetDefault("logging.level", "")
	v.SetDefault("allowcorsorigins", []string{})
}
