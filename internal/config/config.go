package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Storage  StorageConfig  `yaml:"storage"`
	Search   SearchConfig   `yaml:"search"`
	SMTP     SMTPConfig     `yaml:"smtp"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"             env:"API_ADDR"                env-default:":8787"`
	CORSOrigin      string        `yaml:"cors_origin"      env:"TASKBOARD_CORS_ORIGIN"   env-default:"http://localhost:5173"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"        env-default:"10485760"`
}

type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// DatabaseConfig selects the store backend by URL scheme: mongodb://,
// postgres:// or memory://.
type DatabaseConfig struct {
	URL              string `yaml:"url"                env:"DATABASE_URL"            env-default:"mongodb://localhost:27017"`
	MongoDatabase    string `yaml:"mongo_database"     env:"MONGO_DATABASE"          env-default:"taskboard"`
	Migrate          bool   `yaml:"migrate"            env:"DATABASE_MIGRATE"        env-default:"true"`
	FallbackToMemory bool   `yaml:"fallback_to_memory" env:"DATABASE_MEMORY_FALLBACK" env-default:"true"`
}

type SessionConfig struct {
	Secret        string        `yaml:"secret"         env:"SESSION_SECRET"         env-default:"taskboard-dev-secret"`
	CookieName    string        `yaml:"cookie_name"    env:"SESSION_COOKIE_NAME"    env-default:"taskboard.sid"`
	TTL           time.Duration `yaml:"ttl"            env:"SESSION_TTL"            env-default:"24h"`
	SecureCookie  bool          `yaml:"secure_cookie"  env:"SESSION_SECURE_COOKIE"  env-default:"false"`
	RedisURL      string        `yaml:"redis_url"      env:"REDIS_URL"`
	LookupTimeout time.Duration `yaml:"lookup_timeout" env:"SESSION_LOOKUP_TIMEOUT" env-default:"3s"`
}

type RealtimeConfig struct {
	Path            string        `yaml:"path"              env:"WS_PATH"              env-default:"/ws"`
	SendBuffer      int           `yaml:"send_buffer"       env:"WS_SEND_BUFFER"       env-default:"64"`
	WriteWait       time.Duration `yaml:"write_wait"        env:"WS_WRITE_WAIT"        env-default:"10s"`
	PongWait        time.Duration `yaml:"pong_wait"         env:"WS_PONG_WAIT"         env-default:"60s"`
	MaxMessageBytes int64         `yaml:"max_message_bytes" env:"WS_MAX_MESSAGE_BYTES" env-default:"65536"`
	InboundRate     float64       `yaml:"inbound_rate"      env:"WS_INBOUND_RATE"      env-default:"10"`
	InboundBurst    int           `yaml:"inbound_burst"     env:"WS_INBOUND_BURST"     env-default:"20"`
	QueueSize       int           `yaml:"queue_size"        env:"FANOUT_QUEUE_SIZE"    env-default:"256"`
	JobTimeout      time.Duration `yaml:"job_timeout"       env:"FANOUT_JOB_TIMEOUT"   env-default:"10s"`
}

// StorageConfig points at an S3-compatible bucket for attachments. An empty
// endpoint disables uploads.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"   env:"MINIO_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
	Bucket    string `yaml:"bucket"     env:"MINIO_BUCKET"     env-default:"taskboard-attachments"`
	UseSSL    bool   `yaml:"use_ssl"    env:"MINIO_USE_SSL"    env-default:"false"`
}

type SearchConfig struct {
	MeiliURL       string `yaml:"meili_url"        env:"MEILI_URL"`
	MeiliMasterKey string `yaml:"meili_master_key" env:"MEILI_MASTER_KEY"`
	Index          string `yaml:"index"            env:"MEILI_INDEX"      env-default:"tasks"`
}

// SMTPConfig is optional; email is disabled when Host is empty.
type SMTPConfig struct {
	Host     string `yaml:"host"      env:"SMTP_HOST"`
	Port     string `yaml:"port"      env:"SMTP_PORT"      env-default:"587"`
	Username string `yaml:"username"  env:"SMTP_USERNAME"`
	Password string `yaml:"password"  env:"SMTP_PASSWORD"`
	From     string `yaml:"from"      env:"SMTP_FROM"`
	FromName string `yaml:"from_name" env:"SMTP_FROM_NAME" env-default:"Taskboard"`
	AppURL   string `yaml:"app_url"   env:"APP_URL"        env-default:"http://localhost:5173"`
}

// Load reads CONFIG_PATH when set, otherwise the environment alone. Env
// values always win over the file.
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Session.Secret) < 16 {
		return fmt.Errorf("session.secret must be at least 16 characters (got %d)", len(c.Session.Secret))
	}
	if strings.TrimSpace(c.Session.CookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be > 0 (got %v)", c.Session.TTL)
	}
	if !strings.HasPrefix(c.Realtime.Path, "/") {
		return fmt.Errorf("realtime.path must start with / (got %q)", c.Realtime.Path)
	}
	if c.Realtime.SendBuffer <= 0 {
		return fmt.Errorf("realtime.send_buffer must be > 0 (got %d)", c.Realtime.SendBuffer)
	}
	if c.Realtime.QueueSize <= 0 {
		return fmt.Errorf("realtime.queue_size must be > 0 (got %d)", c.Realtime.QueueSize)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text (got %q)", c.Log.Format)
	}
	if c.Storage.Endpoint != "" && (c.Storage.AccessKey == "" || c.Storage.SecretKey == "") {
		return fmt.Errorf("storage.access_key and storage.secret_key are required with an endpoint")
	}
	return nil
}

// AllowedOrigins splits the comma separated CORS origin list.
func (c *Config) AllowedOrigins() []string {
	parts := strings.Split(c.Server.CORSOrigin, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
