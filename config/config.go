package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/exp/slog"
)

type Postgres struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

type Storage struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	UseSSL    bool
}

type OpenAI struct {
	APIKey  string
	BaseURL string
	Model   string
}

type Auth struct {
	URL           string
	AnonKey       string
	SessionSecret string
	RedirectURL   string
	SecureCookie  bool
}

type Caption struct {
	WatchBaseURL string
	Language     string
	UserAgent    string
	FetchTimeout time.Duration
}

type YouTube struct {
	APIKey string
}

type Miniflux struct {
	Endpoint string
	APIKey   string
	OwnerID  string
}

func (m Miniflux) Enabled() bool {
	return m.Endpoint != "" && m.OwnerID != ""
}

type Weaviate struct {
	Scheme string
	Host   string
	APIKey string
}

func (w Weaviate) Enabled() bool {
	return w.Host != ""
}

type HTTP struct {
	Port            int
	RateLimit       string
	ShutdownTimeout time.Duration
}

type Schedule struct {
	Sweep     string
	Feed      string
	QueueSize int
}

type Config struct {
	LogLevel slog.Level
	Postgres Postgres
	Storage  Storage
	OpenAI   OpenAI
	Auth     Auth
	Caption  Caption
	YouTube  YouTube
	Miniflux Miniflux
	Weaviate Weaviate
	HTTP     HTTP
	Schedule Schedule
}

type LookupFunc func(key string) (string, bool)

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	// a missing .env is fine, the environment may be set elsewhere
	_ = godotenv.Load()

	return FromEnv(os.LookupEnv)
}

func FromEnv(lookup LookupFunc) (Config, error) {
	p := &parser{lookup: lookup}
	c := Config{
		LogLevel: p.level("LOG_LEVEL", slog.LevelInfo),
		Postgres: Postgres{
			URL:      p.getParam("DATABASE_URL", ""),
			Host:     p.getParam("POSTGRES_HOST", "localhost"),
			Port:     p.getParam("POSTGRES_PORT", "5432"),
			User:     p.getParam("POSTGRES_USER", "capsum"),
			Password: p.getParam("POSTGRES_PASSWORD", "capsum"),
			Database: p.getParam("POSTGRES_DB", "capsum"),
			SSLMode:  p.getParam("POSTGRES_SSLMODE", "disable"),
		},
		Storage: Storage{
			Endpoint:  p.getParam("STORAGE_ENDPOINT", "localhost:9000"),
			AccessKey: p.getParam("STORAGE_ACCESS_KEY", ""),
			SecretKey: p.getParam("STORAGE_SECRET_KEY", ""),
			Region:    p.getParam("STORAGE_REGION", ""),
			Bucket:    p.getParam("STORAGE_BUCKET", "tts"),
			UseSSL:    p.boolean("STORAGE_USE_SSL", false),
		},
		OpenAI: OpenAI{
			APIKey:  p.getParam("OPENAI_API_KEY", ""),
			BaseURL: p.getParam("OPENAI_BASE_URL", ""),
			Model:   p.getParam("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Auth: Auth{
			URL:           p.getParam("SUPABASE_URL", ""),
			AnonKey:       p.getParam("SUPABASE_ANON_KEY", ""),
			SessionSecret: p.getParam("SESSION_SECRET", ""),
			RedirectURL:   p.getParam("AUTH_REDIRECT_URL", "http://localhost:8080/auth/confirm"),
			SecureCookie:  p.boolean("SECURE_COOKIE", false),
		},
		Caption: Caption{
			WatchBaseURL: p.getParam("YOUTUBE_WATCH_BASE_URL", "https://youtube.com"),
			Language:     p.getParam("CAPTION_LANGUAGE", "en"),
			UserAgent:    p.getParam("CAPTION_USER_AGENT", ""),
			FetchTimeout: p.duration("FETCH_TIMEOUT", 30*time.Second),
		},
		YouTube: YouTube{
			APIKey: p.getParam("YOUTUBE_API_KEY", ""),
		},
		Miniflux: Miniflux{
			Endpoint: p.getParam("MINIFLUX_ENDPOINT", ""),
			APIKey:   p.getParam("MINIFLUX_APIKEY", ""),
			OwnerID:  p.getParam("FEED_OWNER_ID", ""),
		},
		Weaviate: Weaviate{
			Scheme: p.getParam("WEAVIATE_SCHEME", "https"),
			Host:   p.getParam("WEAVIATE_HOST", ""),
			APIKey: p.getParam("WEAVIATE_API_KEY", ""),
		},
		HTTP: HTTP{
			Port:            p.integer("API_PORT", 8080),
			RateLimit:       p.getParam("RATE_LIMIT", "30-M"),
			ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Schedule: Schedule{
			Sweep:     p.getParam("SWEEP_SCHEDULE", "@every 1m"),
			Feed:      p.getParam("FEED_SCHEDULE", "@every 5m"),
			QueueSize: p.integer("QUEUE_SIZE", 100),
		},
	}

	if c.Auth.SessionSecret == "" {
		p.errs = append(p.errs, errors.New("SESSION_SECRET is required"))
	}
	if c.Schedule.QueueSize < 1 {
		p.errs = append(p.errs, fmt.Errorf("QUEUE_SIZE must be positive, got %d", c.Schedule.QueueSize))
	}

	return c, errors.Join(p.errs...)
}

type parser struct {
	lookup LookupFunc
	errs   []error
}

func (p *parser) getParam(param, def string) string {
	if val, ok := p.lookup(param); ok {
		return val
	}
	return def
}

func (p *parser) integer(param string, def int) int {
	val, ok := p.lookup(param)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", param, err))
		return def
	}
	return i
}

func (p *parser) boolean(param string, def bool) bool {
	val, ok := p.lookup(param)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", param, err))
		return def
	}
	return b
}

func (p *parser) duration(param string, def time.Duration) time.Duration {
	val, ok := p.lookup(param)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", param, err))
		return def
	}
	return d
}

func (p *parser) level(param string, def slog.Level) slog.Level {
	val, ok := p.lookup(param)
	if !ok {
		return def
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(val))); err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", param, err))
		return def
	}
	return l
}
