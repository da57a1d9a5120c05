package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"order-dashboard/internal/common/db"
	"order-dashboard/internal/common/mq"
)

const (
	FeedPostgres = "postgres"
	FeedRabbitMQ = "rabbitmq"
	FeedNone     = "none"
)

type DB struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
}

type MQ struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
}

type HTTP struct {
	Port int `yaml:"port"`
}

type LocalAPI struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type Sync struct {
	Feed             string        `yaml:"feed"`
	RefreshInterval  time.Duration `yaml:"refresh_interval"`
	NewWindow        time.Duration `yaml:"new_window"`
	ResubscribeDelay time.Duration `yaml:"resubscribe_delay"`
	NotificationTTL  time.Duration `yaml:"notification_ttl"`
}

type Lifecycle struct {
	// Enforce rejects out-of-sequence status writes server-side.
	Enforce bool `yaml:"enforce"`
}

type App struct {
	Database  DB        `yaml:"database"`
	Rabbit    MQ        `yaml:"rabbitmq"`
	HTTP      HTTP      `yaml:"http"`
	LocalAPI  LocalAPI  `yaml:"local_api"`
	Sync      Sync      `yaml:"sync"`
	Lifecycle Lifecycle `yaml:"lifecycle"`
}

func Default() App {
	return App{
		Database: DB{Host: "localhost", Port: 5432, User: "postgres", Name: "orders", SSLMode: "disable", MaxConns: 10},
		Rabbit:   MQ{Host: "localhost", Port: 5672, User: "guest", Password: "guest", VHost: "/"},
		HTTP:     HTTP{Port: 3000},
		LocalAPI: LocalAPI{Timeout: 5 * time.Second},
		Sync: Sync{
			Feed:             FeedPostgres,
			RefreshInterval:  30 * time.Second,
			NewWindow:        10 * time.Second,
			ResubscribeDelay: 5 * time.Second,
			NotificationTTL:  5 * time.Second,
		},
		Lifecycle: Lifecycle{Enforce: true},
	}
}

// Load reads path (or the first config found when path is empty) over the
// defaults, applies environment overrides and validates. A missing file is
// not an error.
func Load(path string) (App, error) {
	if path == "" {
		if p, err := FindConfig(); err == nil {
			path = p
		}
	}
	var b []byte
	if path != "" {
		var err error
		b, err = os.ReadFile(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return App{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return Parse(b)
}

func Parse(b []byte) (App, error) {
	a := Default()
	if len(b) > 0 {
		if err := yaml.Unmarshal(b, &a); err != nil {
			return App{}, fmt.Errorf("parse config: %w", err)
		}
	}
	a.applyEnvOverrides()
	a.Sync.Feed = strings.ToLower(strings.TrimSpace(a.Sync.Feed))
	if err := a.Validate(); err != nil {
		return App{}, err
	}
	return a, nil
}

func (a *App) applyEnvOverrides() {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str("ORDERS_DB_HOST", &a.Database.Host)
	num("ORDERS_DB_PORT", &a.Database.Port)
	str("ORDERS_DB_USER", &a.Database.User)
	str("ORDERS_DB_PASSWORD", &a.Database.Password)
	str("ORDERS_DB_NAME", &a.Database.Name)
	flag("ORDERS_RABBIT_ENABLED", &a.Rabbit.Enabled)
	str("ORDERS_RABBIT_HOST", &a.Rabbit.Host)
	num("ORDERS_RABBIT_PORT", &a.Rabbit.Port)
	str("ORDERS_RABBIT_USER", &a.Rabbit.User)
	str("ORDERS_RABBIT_PASSWORD", &a.Rabbit.Password)
	num("ORDERS_HTTP_PORT", &a.HTTP.Port)
	str("ORDERS_LOCAL_API", &a.LocalAPI.BaseURL)
	str("ORDERS_FEED", &a.Sync.Feed)
	flag("ORDERS_ENFORCE_TRANSITIONS", &a.Lifecycle.Enforce)
}

func (a App) Validate() error {
	if a.Database.Host == "" || a.Database.User == "" || a.Database.Name == "" {
		return errors.New("invalid config: database host, user and database are required")
	}
	if a.HTTP.Port <= 0 || a.HTTP.Port > 65535 {
		return fmt.Errorf("invalid config: http port %d", a.HTTP.Port)
	}
	switch a.Sync.Feed {
	case FeedPostgres, FeedNone:
	case FeedRabbitMQ:
		if !a.Rabbit.Enabled {
			return errors.New("invalid config: sync.feed rabbitmq requires rabbitmq.enabled")
		}
	default:
		return fmt.Errorf("invalid config: unknown sync.feed %q", a.Sync.Feed)
	}
	if a.Sync.RefreshInterval <= 0 || a.Sync.NewWindow <= 0 || a.Sync.ResubscribeDelay <= 0 {
		return errors.New("invalid config: sync intervals must be positive")
	}
	if a.Rabbit.Enabled && a.Rabbit.Host == "" {
		return errors.New("invalid config: rabbitmq host is required when enabled")
	}
	return nil
}

func (d DB) Pool() db.Config {
	return db.Config{Host: d.Host, Port: d.Port, User: d.User, Password: d.Password,
		Database: d.Name, SSLMode: d.SSLMode, MaxConns: d.MaxConns}
}

func (m MQ) Client() mq.Config {
	return mq.Config{Host: m.Host, Port: m.Port, User: m.User, Password: m.Password, VHost: m.VHost}
}

func FindConfig() (string, error) {
	candidates := []string{"config.yaml", "deploy/config.example.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}
