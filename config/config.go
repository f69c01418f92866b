package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/tempograph/tempograph/detector"
)

// Config is the environment-driven service configuration, processed under
// the TEMPOGRAPH_ prefix.
type Config struct {
	Addr        string `default:":8080"`
	DatabaseURL string

	// Analysis defaults.
	Algorithm           string  `default:"energy"`
	SampleRate          int     `default:"22050"`
	TempoMin            float64 `default:"30"`
	TempoMax            float64 `default:"300"`
	ConfidenceThreshold float64 `default:"0"`

	// Batch settings.
	Workers     int           `default:"4"`
	FileTimeout time.Duration `default:"2m"`

	// Cache settings. Empty CacheDir keeps the cache in memory only.
	CacheDir string
}

// DetectorConfig maps the analysis defaults onto a detector configuration.
func (c Config) DetectorConfig() detector.Config {
	dc := detector.DefaultConfig()
	if c.SampleRate > 0 {
		dc.SampleRate = c.SampleRate
	}
	if c.TempoMin > 0 {
		dc.TempoMin = c.TempoMin
	}
	if c.TempoMax > 0 {
		dc.TempoMax = c.TempoMax
	}
	dc.ConfidenceThreshold = c.ConfidenceThreshold
	return dc
}

func ProvideConfig() Config {
	var cfg Config
	err := envconfig.Process("tempograph", &cfg)
	if err != nil {
		log.Fatal(err.Error())
	}
	return cfg
}

var Options = ProvideConfig
