// Package config provides the configuration structure for the plomtts-service.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/book-expert/plomtts-service/internal/core"
)

// Defaults applied to blank settings.
const (
	DefaultTimeoutSeconds         = 30
	DefaultNATSURL                = "nats://127.0.0.1:4222"
	DefaultSpeechRequestSubject   = "plomtts.speech.request"
	DefaultFlowStartSubject       = "plomtts.flow.start"
	DefaultFlowStepSubject        = "plomtts.flow.step"
	DefaultEntryBucket            = "PLOMTTS_ENTRIES"
	DefaultAudioObjectStoreBucket = "PLOMTTS_AUDIO"
	DefaultMetricsListenAddr      = ":9420"
)

// PlomTTSConfig holds the settings of the PlomTTS server connection.
type PlomTTSConfig struct {
	ServerURL      string `toml:"server_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	DefaultVoice   string `toml:"default_voice"`
}

// Timeout returns the per-call timeout.
func (c PlomTTSConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                    string `toml:"url"`
	SpeechRequestSubject   string `toml:"speech_request_subject"`
	FlowStartSubject       string `toml:"flow_start_subject"`
	FlowStepSubject        string `toml:"flow_step_subject"`
	EntryBucket            string `toml:"entry_bucket"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
}

// MetricsConfig holds the Prometheus exporter settings. An empty listen address
// disables the exporter.
type MetricsConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	PlomTTS PlomTTSConfig `toml:"plomtts"`
	NATS    NATSConfig    `toml:"nats"`
	Metrics MetricsConfig `toml:"metrics"`
	Paths   PathsConfig   `toml:"paths"`
}

// ApplyDefaults fills every blank setting except the metrics listen address,
// which stays empty only when explicitly disabled with "-".
func (c *Config) ApplyDefaults() {
	setDefault(&c.PlomTTS.ServerURL, core.DefaultServerURL)
	setDefault(&c.NATS.URL, DefaultNATSURL)
	setDefault(&c.NATS.SpeechRequestSubject, DefaultSpeechRequestSubject)
	setDefault(&c.NATS.FlowStartSubject, DefaultFlowStartSubject)
	setDefault(&c.NATS.FlowStepSubject, DefaultFlowStepSubject)
	setDefault(&c.NATS.EntryBucket, DefaultEntryBucket)
	setDefault(&c.NATS.AudioObjectStoreBucket, DefaultAudioObjectStoreBucket)
	setDefault(&c.Paths.BaseLogsDir, os.TempDir())

	if c.PlomTTS.TimeoutSeconds <= 0 {
		c.PlomTTS.TimeoutSeconds = DefaultTimeoutSeconds
	}

	switch c.Metrics.ListenAddr {
	case "":
		c.Metrics.ListenAddr = DefaultMetricsListenAddr
	case "-":
		c.Metrics.ListenAddr = ""
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// Load loads the configuration for the plomtts-service.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}
