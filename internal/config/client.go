package config

import (
	"errors"
	"time"
)

type Client struct {
	ServerURL   string        `yaml:"server_url"`
	Token       string        `yaml:"token"`
	Debug       bool          `yaml:"debug"`
	OutboxSize  int           `yaml:"outbox_size"`
	MinBackoff  time.Duration `yaml:"min_backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
	NewOrderTTL time.Duration `yaml:"new_order_ttl"`
	StatusTTL   time.Duration `yaml:"status_ttl"`
}

func defaultClient() Client {
	return Client{
		ServerURL:   "http://localhost:8080",
		OutboxSize:  16,
		MinBackoff:  time.Second,
		MaxBackoff:  5 * time.Second,
		NewOrderTTL: 8 * time.Second,
		StatusTTL:   5 * time.Second,
	}
}

// LoadClient reads the admin console configuration.
func LoadClient() (Client, error) {
	cfg := defaultClient()
	if err := loadFile(&cfg); err != nil {
		return Client{}, err
	}
	r := &envReader{}
	r.string("ALERTS_SERVER_URL", &cfg.ServerURL)
	r.string("ALERTS_TOKEN", &cfg.Token)
	r.bool("DEBUG", &cfg.Debug)
	r.int("ALERTS_OUTBOX_SIZE", &cfg.OutboxSize)
	r.duration("ALERTS_MIN_BACKOFF", &cfg.MinBackoff)
	r.duration("ALERTS_MAX_BACKOFF", &cfg.MaxBackoff)
	r.duration("ALERTS_NEW_ORDER_TTL", &cfg.NewOrderTTL)
	r.duration("ALERTS_STATUS_TTL", &cfg.StatusTTL)
	if err := r.err(); err != nil {
		return Client{}, err
	}
	return cfg, cfg.Validate()
}

func (c Client) Validate() error {
	var errs []error
	if c.ServerURL == "" {
		errs = append(errs, errors.New("missing server url"))
	}
	if c.OutboxSize <= 0 {
		errs = append(errs, errors.New("outbox size must be greater than zero"))
	}
	if c.MinBackoff <= 0 || c.MaxBackoff < c.MinBackoff {
		errs = append(errs, errors.New("invalid backoff bounds"))
	}
	if c.NewOrderTTL <= 0 || c.StatusTTL <= 0 {
		errs = append(errs, errors.New("notification ttl must be positive"))
	}
	return errors.Join(errs...)
}
