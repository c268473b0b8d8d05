package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Storage drivers.
const (
	DriverTable    = "table"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Auth struct {
	Domain      string `yaml:"domain"`
	Audience    string `yaml:"audience"`
	LocalSecret string `yaml:"local_secret"`
	Disabled    bool   `yaml:"disabled"`
}

type Server struct {
	Port  string `yaml:"port"`
	Debug bool   `yaml:"debug"`

	StorageDriver    string        `yaml:"storage_driver"`
	ConnectionString string        `yaml:"connection_string"`
	OrdersTable      string        `yaml:"orders_table"`
	OrdersQueue      string        `yaml:"orders_queue"`
	QueueVisibility  time.Duration `yaml:"queue_visibility"`
	PostgresDSN      string        `yaml:"postgres_dsn"`

	RedisURL     string        `yaml:"redis_url"`
	RedisChannel string        `yaml:"redis_channel"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`

	StreamBuffer int           `yaml:"stream_buffer"`
	Heartbeat    time.Duration `yaml:"heartbeat"`
	WebhookToken string        `yaml:"webhook_token"`

	Auth Auth `yaml:"auth"`
}

func defaultServer() Server {
	return Server{
		Port:            "8080",
		StorageDriver:   DriverTable,
		OrdersTable:     "Orders",
		OrdersQueue:     "new-orders",
		QueueVisibility: 30 * time.Second,
		RedisChannel:    "admin-alerts:events",
		CacheTTL:        10 * time.Minute,
		StreamBuffer:    32,
		Heartbeat:       25 * time.Second,
	}
}

// LoadServer reads the alert server configuration.
func LoadServer() (Server, error) {
	cfg := defaultServer()
	if err := loadFile(&cfg); err != nil {
		return Server{}, err
	}
	r := &envReader{}
	r.string("PORT", &cfg.Port)
	r.bool("DEBUG", &cfg.Debug)
	r.string("STORAGE_DRIVER", &cfg.StorageDriver)
	r.string("STORAGE_CONNECTION_STRING", &cfg.ConnectionString)
	r.string("ORDERS_TABLE", &cfg.OrdersTable)
	r.string("ORDERS_QUEUE", &cfg.OrdersQueue)
	r.duration("ORDERS_QUEUE_VISIBILITY", &cfg.QueueVisibility)
	r.string("DATABASE_URL", &cfg.PostgresDSN)
	r.string("REDIS_CONNECTION_STRING", &cfg.RedisURL)
	r.string("REDIS_CHANNEL", &cfg.RedisChannel)
	r.duration("ORDER_CACHE_TTL", &cfg.CacheTTL)
	r.int("STREAM_BUFFER", &cfg.StreamBuffer)
	r.duration("STREAM_HEARTBEAT", &cfg.Heartbeat)
	r.string("WEBHOOK_TOKEN", &cfg.WebhookToken)
	r.string("AUTH0_DOMAIN", &cfg.Auth.Domain)
	r.string("AUTH0_AUDIENCE", &cfg.Auth.Audience)
	r.string("LOCAL_AUTH_SHARED_SECRET", &cfg.Auth.LocalSecret)
	r.bool("AUTH_DISABLED", &cfg.Auth.Disabled)
	if err := r.err(); err != nil {
		return Server{}, err
	}
	return cfg, cfg.Validate()
}

func (s Server) Validate() error {
	var errs []error
	switch strings.ToLower(s.StorageDriver) {
	case DriverTable:
		if s.ConnectionString == "" || s.OrdersTable == "" {
			errs = append(errs, errors.New("missing table storage config"))
		}
	case DriverPostgres:
		if s.PostgresDSN == "" {
			errs = append(errs, errors.New("missing DATABASE_URL"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", s.StorageDriver))
	}
	if s.StreamBuffer <= 0 {
		errs = append(errs, errors.New("stream buffer must be greater than zero"))
	}
	if s.CacheTTL < 0 {
		errs = append(errs, errors.New("cache ttl must not be negative"))
	}
	if !s.Auth.Disabled && s.Auth.LocalSecret == "" && (s.Auth.Domain == "" || s.Auth.Audience == "") {
		errs = append(errs, errors.New("missing Auth0 config"))
	}
	return errors.Join(errs...)
}

// ListenAddr is the address the HTTP server binds.
func (s Server) ListenAddr() string {
	return ":" + strings.TrimPrefix(s.Port, ":")
}
