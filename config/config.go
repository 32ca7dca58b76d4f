package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"
	defaultOAuthHTTPTimeout   = 10 * time.Second
	defaultExchangeTimeout    = 30 * time.Second
	defaultSessionCookieName  = "authflow_session"
	defaultSessionIssuer      = "authflow"
	defaultOTPResendLimit     = 5
	defaultOTPResendWindow    = 15 * time.Minute
	defaultMetricsPath        = "/metrics"
	defaultQueueConsumers     = 4
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int    `json:"port" yaml:"port"`
		MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		Timeouts           struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
		// AllowOrigins lists browser origins allowed to call the API with credentials.
		// Empty allows any origin without credentials.
		AllowOrigins []string `json:"allowOrigins" yaml:"allowOrigins"`
	} `json:"http" yaml:"http"`

	Storage StorageConfig `json:"storage" yaml:"storage"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	// Redis backs the OTP resend throttle. Optional.
	Redis *RedisConfig `json:"redis" yaml:"redis"`

	SecretKey struct {
		Session string `json:"session" yaml:"session"`
	} `json:"secretKey" yaml:"secretKey"`

	Session SessionConfig `json:"session" yaml:"session"`

	Auth *AuthConfig `json:"auth" yaml:"auth"`

	PasswordStrength *PasswordStrengthConfig `json:"passwordStrength" yaml:"passwordStrength"`

	OAuth OAuthConfig `json:"oauth" yaml:"oauth"`

	OTP OTPConfig `json:"otp" yaml:"otp"`

	Email EmailConfig `json:"email" yaml:"email"`

	// PubSub configuration for the OAuth callback work queue
	PubSub *PubSubConfig `json:"pubsub" yaml:"pubsub"`

	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// StorageConfig selects the credential store implementation.
type StorageConfig struct {
	// Driver is "postgres" or "memory"
	Driver      string `json:"driver" yaml:"driver"`
	AutoMigrate bool   `json:"autoMigrate" yaml:"autoMigrate"`
}

// RedisConfig defines the Redis connection.
type RedisConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// Addr returns host:port.
func (c *RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SessionConfig controls the bearer credential and its cookie transport.
type SessionConfig struct {
	Issuer string `json:"issuer" yaml:"issuer"`
	// TTL bounds session lifetime; zero keeps sessions alive until logout.
	TTL          time.Duration `json:"ttl" yaml:"ttl"`
	CookieName   string        `json:"cookieName" yaml:"cookieName"`
	CookieDomain string        `json:"cookieDomain" yaml:"cookieDomain"`
	CookieSecure bool          `json:"cookieSecure" yaml:"cookieSecure"`
}

// AuthConfig defines authentication-related configuration
type AuthConfig struct {
	BcryptCost int `json:"bcryptCost" yaml:"bcryptCost"`
}

// PasswordStrengthConfig defines password strength requirements
type PasswordStrengthConfig struct {
	MinLength int `json:"minLength" yaml:"minLength"`
	MaxLength int `json:"maxLength" yaml:"maxLength"`
}

// OAuthConfig holds per-provider client settings and flow options.
type OAuthConfig struct {
	Google *OAuthProviderConfig `json:"google" yaml:"google"`
	GitHub *OAuthProviderConfig `json:"github" yaml:"github"`
	Linear *OAuthProviderConfig `json:"linear" yaml:"linear"`

	// HTTPTimeout bounds every call to a provider endpoint.
	HTTPTimeout time.Duration `json:"httpTimeout" yaml:"httpTimeout"`

	// AllowedRedirectURIs restricts redirect URIs when non-empty.
	AllowedRedirectURIs []string `json:"allowedRedirectUris" yaml:"allowedRedirectUris"`

	// CompletionRedirectURL is where the callback endpoint sends the browser to poll.
	// When empty the callback answers with JSON instead of redirecting.
	CompletionRedirectURL string `json:"completionRedirectUrl" yaml:"completionRedirectUrl"`

	// ExchangeTimeout bounds one run of the exchange orchestrator.
	ExchangeTimeout time.Duration `json:"exchangeTimeout" yaml:"exchangeTimeout"`
}

// OAuthProviderConfig defines a single identity provider. Endpoint fields override the built-in defaults.
type OAuthProviderConfig struct {
	ClientID     string   `json:"clientId" yaml:"clientId"`
	ClientSecret string   `json:"clientSecret" yaml:"clientSecret"`
	AuthURL      string   `json:"authUrl" yaml:"authUrl"`
	TokenURL     string   `json:"tokenUrl" yaml:"tokenUrl"`
	UserInfoURL  string   `json:"userInfoUrl" yaml:"userInfoUrl"`
	EmailsURL    string   `json:"emailsUrl" yaml:"emailsUrl"`
	Scopes       []string `json:"scopes" yaml:"scopes"`
}

// Enabled reports whether the provider has client credentials.
func (c *OAuthProviderConfig) Enabled() bool {
	return c != nil && c.ClientID != "" && c.ClientSecret != ""
}

// OTPConfig limits code issuance per email address.
type OTPConfig struct {
	ResendLimit  int           `json:"resendLimit" yaml:"resendLimit"`
	ResendWindow time.Duration `json:"resendWindow" yaml:"resendWindow"`
}

// EmailConfig selects the OTP email transport.
type EmailConfig struct {
	// Provider is "resend" or "log"
	Provider string        `json:"provider" yaml:"provider"`
	APIKey   string        `json:"apiKey" yaml:"apiKey"`
	From     string        `json:"from" yaml:"from"`
	Endpoint string        `json:"endpoint" yaml:"endpoint"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// PubSubConfig defines Pub/Sub configuration for event publishing
type PubSubConfig struct {
	// Provider type: "inprocess", "local" for local HTTP, or "google" for Google Pub/Sub
	Provider string `json:"provider" yaml:"provider"`

	// Google Cloud project ID (for google provider)
	ProjectID string `json:"projectId" yaml:"projectId"`

	// Pub/Sub topic ID (for google provider)
	TopicID string `json:"topicId" yaml:"topicId"`

	// Local HTTP endpoint for development (for local provider)
	LocalEndpoint string `json:"localEndpoint" yaml:"localEndpoint"`

	// QueueSize is the buffer of the in-process queue
	QueueSize int `json:"queueSize" yaml:"queueSize"`

	// Consumers is the number of in-process exchange workers
	Consumers int `json:"consumers" yaml:"consumers"`
}

// MetricsConfig toggles the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	// Try to find and load the config file
	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	// Load YAML config file
	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Convert ENV_VAR_NAME to path and align each segment with existing YAML keys.
			// Example: POSTGRES_SSLMODE -> postgres.sslMode (not postgres.sslmode)
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Unmarshal into the config struct (case-insensitive to match env vars)
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.HTTP.MaxRequestBodySize) == "" {
		cfg.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}

	// Build replicas from environment variables (POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, etc.)
	if cfg.Postgres != nil {
		cfg.Postgres.Replicas = buildReplicasFromEnv()
	}

	applyDefaults(cfg)

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.OAuth.HTTPTimeout <= 0 {
		cfg.OAuth.HTTPTimeout = defaultOAuthHTTPTimeout
	}
	if cfg.OAuth.ExchangeTimeout <= 0 {
		cfg.OAuth.ExchangeTimeout = defaultExchangeTimeout
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = defaultSessionCookieName
	}
	if cfg.Session.Issuer == "" {
		cfg.Session.Issuer = defaultSessionIssuer
	}
	if cfg.OTP.ResendLimit <= 0 {
		cfg.OTP.ResendLimit = defaultOTPResendLimit
	}
	if cfg.OTP.ResendWindow <= 0 {
		cfg.OTP.ResendWindow = defaultOTPResendWindow
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = defaultMetricsPath
	}
	if cfg.PubSub != nil && cfg.PubSub.Consumers <= 0 {
		cfg.PubSub.Consumers = defaultQueueConsumers
	}
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv builds the replicas slice from environment variables.
// Environment variable format: POSTGRES_REPLICAS_{index}_{field}
// Example: POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, POSTGRES_REPLICAS_0_USERNAME, POSTGRES_REPLICAS_0_PASSWORD
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			// No more replicas or incomplete configuration.
			break
		}

		replica := postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		}

		replicas = append(replicas, replica)
	}

	return replicas
}
