package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	DatabaseURL string `yaml:"databaseURL"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	SessionStrategy string `yaml:"sessionStrategy"` // redis | jwt
	SessionTTL      string `yaml:"sessionTTL"`
	JWTSecret       string `yaml:"jwtSecret"`

	QueueDriver string `yaml:"queueDriver"` // redis | amqp
	QueueStream string `yaml:"queueStream"`
	QueueGroup  string `yaml:"queueGroup"`
	AMQPURL     string `yaml:"amqpURL"`
	AMQPQueue   string `yaml:"amqpQueue"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	SMTPHost     string `yaml:"smtpHost"`
	SMTPPort     int    `yaml:"smtpPort"`
	SMTPUsername string `yaml:"smtpUsername"`
	SMTPPassword string `yaml:"smtpPassword"`
	SMTPFrom     string `yaml:"smtpFrom"`
	SMTPStartTLS bool   `yaml:"smtpStartTLS"`

	SiteBaseURL string `yaml:"siteBaseURL"`
	SiteName    string `yaml:"siteName"`

	MaxUploadBytes int64 `yaml:"maxUploadBytes"`

	TrustedProxyCIDRs          []string `yaml:"trustedProxyCidrs"`
	RegisterRateLimitPerMinute int      `yaml:"registerRateLimitPerMinute"`
	LoginRateLimitPerMinute    int      `yaml:"loginRateLimitPerMinute"`
	PasswordRateLimitPerMinute int      `yaml:"passwordRateLimitPerMinute"`
	DispatcherConcurrency      int      `yaml:"dispatcherConcurrency"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("SESSION_STRATEGY"); v != "" {
		cfg.SessionStrategy = strings.TrimSpace(v)
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("QUEUE_DRIVER"); v != "" {
		cfg.QueueDriver = strings.TrimSpace(v)
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AMQPURL = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.SMTPPort = n
		}
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		cfg.SMTPUsername = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.SMTPPassword = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.SMTPFrom = v
	}
	if v := os.Getenv("SITE_BASE_URL"); v != "" {
		cfg.SiteBaseURL = v
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("REGISTER_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RegisterRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("LOGIN_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LoginRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("PASSWORD_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PasswordRateLimitPerMinute = n
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for sessions, rate limiting and the queue")
	}
	switch cfg.SessionStrategy {
	case "", "redis":
	case "jwt":
		if strings.TrimSpace(cfg.JWTSecret) == "" {
			return errors.New("config: jwtSecret is required for sessionStrategy jwt")
		}
	default:
		return fmt.Errorf("config: unknown sessionStrategy %q (redis or jwt)", cfg.SessionStrategy)
	}
	switch cfg.QueueDriver {
	case "", "redis":
	case "amqp":
		if strings.TrimSpace(cfg.AMQPURL) == "" {
			return errors.New("config: amqpURL is required for queueDriver amqp")
		}
	default:
		return fmt.Errorf("config: unknown queueDriver %q (redis or amqp)", cfg.QueueDriver)
	}
	if strings.TrimSpace(cfg.MinioEndpoint) == "" {
		return errors.New("config: minioEndpoint is required (set in config.yaml or MINIO_ENDPOINT)")
	}
	if strings.TrimSpace(cfg.MinioBucket) == "" {
		return errors.New("config: minioBucket is required")
	}
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		return errors.New("config: smtpHost is required for notification email")
	}
	if strings.TrimSpace(cfg.SMTPFrom) == "" {
		return errors.New("config: smtpFrom is required for notification email")
	}
	if cfg.RegisterRateLimitPerMinute < 0 || cfg.LoginRateLimitPerMinute < 0 || cfg.PasswordRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
