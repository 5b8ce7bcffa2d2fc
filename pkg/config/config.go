package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "CARTLINE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "CARTLINE_DB_DSN"
	EnvDBHost = "CARTLINE_DB_HOST"
	EnvDBUser = "CARTLINE_DB_USER"
	EnvDBName = "CARTLINE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	OTP          OTPConfig
	Checkout     CheckoutConfig
	SSLCommerz   SSLCommerzConfig
	Bkash        BkashConfig
	Nagad        NagadConfig
	SMS          SMSConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CARTLINE_APP_ENV" required:"true"`
	Port         string `envconfig:"CARTLINE_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"CARTLINE_APP_BASE_URL" required:"true"`
	StoreFront   string `envconfig:"CARTLINE_STOREFRONT_URL" required:"true"`
	LogLevel     string `envconfig:"CARTLINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CARTLINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CARTLINE_DB_DSN"`
	Driver string `envconfig:"CARTLINE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CARTLINE_DB_HOST"`
	LegacyPort     int    `envconfig:"CARTLINE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CARTLINE_DB_USER"`
	LegacyPassword string `envconfig:"CARTLINE_DB_PASSWORD"`
	LegacyName     string `envconfig:"CARTLINE_DB_NAME"`
	LegacySSLMode  string `envconfig:"CARTLINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CARTLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CARTLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CARTLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CARTLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CARTLINE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CARTLINE_REDIS_ADDR"`
	Password     string        `envconfig:"CARTLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CARTLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CARTLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CARTLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CARTLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CARTLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CARTLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CARTLINE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CARTLINE_JWT_ISSUER" default:"cartline"`
	ExpirationMinutes int    `envconfig:"CARTLINE_JWT_EXPIRATION_MINUTES" default:"10080"`
}

// Expiration returns the access token TTL configured in minutes.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"CARTLINE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"CARTLINE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"CARTLINE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"CARTLINE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"CARTLINE_ARGON_KEY_LEN" default:"32"`
}

type OTPConfig struct {
	TTL          time.Duration `envconfig:"CARTLINE_OTP_TTL" default:"5m"`
	Digits       int           `envconfig:"CARTLINE_OTP_DIGITS" default:"6"`
	ResendWindow time.Duration `envconfig:"CARTLINE_OTP_RESEND_WINDOW" default:"1m"`
	ResendLimit  int64         `envconfig:"CARTLINE_OTP_RESEND_LIMIT" default:"3"`
}

type CheckoutConfig struct {
	CodePrefix          string `envconfig:"CARTLINE_ORDER_CODE_PREFIX" default:"ORD-"`
	CodeLength          int    `envconfig:"CARTLINE_ORDER_CODE_LENGTH" default:"6"`
	CodeRetries         int    `envconfig:"CARTLINE_ORDER_CODE_RETRIES" default:"5"`
	DeliveryChargeCents int64  `envconfig:"CARTLINE_DELIVERY_CHARGE_CENTS" default:"6000"`
}

type SSLCommerzConfig struct {
	StoreID       string        `envconfig:"CARTLINE_SSLCZ_STORE_ID"`
	StorePassword string        `envconfig:"CARTLINE_SSLCZ_STORE_PASSWORD"`
	BaseURL       string        `envconfig:"CARTLINE_SSLCZ_BASE_URL" default:"https://sandbox.sslcommerz.com"`
	Timeout       time.Duration `envconfig:"CARTLINE_SSLCZ_TIMEOUT" default:"15s"`
}

type BkashConfig struct {
	AppKey    string        `envconfig:"CARTLINE_BKASH_APP_KEY"`
	AppSecret string        `envconfig:"CARTLINE_BKASH_APP_SECRET"`
	Username  string        `envconfig:"CARTLINE_BKASH_USERNAME"`
	Password  string        `envconfig:"CARTLINE_BKASH_PASSWORD"`
	BaseURL   string        `envconfig:"CARTLINE_BKASH_BASE_URL" default:"https://tokenized.sandbox.bka.sh/v1.2.0-beta"`
	Timeout   time.Duration `envconfig:"CARTLINE_BKASH_TIMEOUT" default:"15s"`
}

type NagadConfig struct {
	MerchantID string        `envconfig:"CARTLINE_NAGAD_MERCHANT_ID"`
	PublicKey  string        `envconfig:"CARTLINE_NAGAD_PUBLIC_KEY"`
	PrivateKey string        `envconfig:"CARTLINE_NAGAD_PRIVATE_KEY"`
	BaseURL    string        `envconfig:"CARTLINE_NAGAD_BASE_URL" default:"https://sandbox.mynagad.com"`
	Timeout    time.Duration `envconfig:"CARTLINE_NAGAD_TIMEOUT" default:"15s"`
}

type SMSConfig struct {
	Provider   string        `envconfig:"CARTLINE_SMS_PROVIDER" default:"bulksmsbd"`
	APIKey     string        `envconfig:"CARTLINE_SMS_API_KEY"`
	SenderID   string        `envconfig:"CARTLINE_SMS_SENDER_ID"`
	BaseURL    string        `envconfig:"CARTLINE_SMS_BASE_URL" default:"http://bulksmsbd.net/api/smsapi"`
	Timeout    time.Duration `envconfig:"CARTLINE_SMS_TIMEOUT" default:"10s"`
	QueueSize  int           `envconfig:"CARTLINE_SMS_QUEUE_SIZE" default:"256"`
	MaxRetries int           `envconfig:"CARTLINE_SMS_MAX_RETRIES" default:"2"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CARTLINE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CARTLINE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
