package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds every environment knob the daemon reads. Site credentials are
// optional; the matching adapter runs unauthenticated without them.
type Config struct {
	DatabaseURL      string `env:"DATABASE_URL,required"`
	RedisDSN         string `env:"REDIS_DSN,required"`
	TelegramAPIToken string `env:"TELEGRAM_APITOKEN,required"`
	FuzzySearchToken string `env:"FAUTIL_APITOKEN,required"`
	FaktoryURL       string `env:"FAKTORY_URL" envDefault:"tcp://localhost:7419"`

	// ChannelWorkers is the job pool concurrency.
	ChannelWorkers int `env:"CHANNEL_WORKERS" envDefault:"2"`

	FurAffinityCookieA    string `env:"FA_A"`
	FurAffinityCookieB    string `env:"FA_B"`
	WeasylAPIToken        string `env:"WEASYL_APITOKEN"`
	InkbunnyUsername      string `env:"INKBUNNY_USERNAME"`
	InkbunnyPassword      string `env:"INKBUNNY_PASSWORD"`
	E621Login             string `env:"E621_LOGIN"`
	E621APIKey            string `env:"E621_API_KEY"`
	TwitterConsumerKey    string `env:"TWITTER_CONSUMER_KEY"`
	TwitterConsumerSecret string `env:"TWITTER_CONSUMER_SECRET"`

	// OTLPEndpoint enables trace export when non-empty, e.g. "otel:4317".
	OTLPEndpoint string `env:"OTLP_ENDPOINT"`
	// MetricsHost enables the /metrics listener when non-empty, e.g. ":9090".
	MetricsHost string `env:"METRICS_HOST"`

	LogFormat string `env:"LOG_FMT" envDefault:"text"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads configuration from the process environment.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.ChannelWorkers < 1 {
		return Config{}, fmt.Errorf("CHANNEL_WORKERS must be at least 1, got %d", cfg.ChannelWorkers)
	}
	return cfg, nil
}
