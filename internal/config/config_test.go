// Package config_test tests the configuration loading for the plomtts-service.
package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/book-expert/plomtts-service/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	tomlData := `
[plomtts]
server_url = "http://tts.lan:8420"
timeout_seconds = 45
default_voice = "narrator"

[nats]
url = "nats://127.0.0.1:4222"
speech_request_subject = "speech.request"
flow_start_subject = "flow.start"
flow_step_subject = "flow.step"
entry_bucket = "ENTRIES"
audio_object_store_bucket = "AUDIO_FILES"

[metrics]
listen_addr = "127.0.0.1:9000"

[paths]
base_logs_dir = "/var/log/plomtts"
`

	var cfg config.Config

	err := toml.Unmarshal([]byte(tomlData), &cfg)
	require.NoError(t, err)

	cfg.ApplyDefaults()

	assert.Equal(t, "http://tts.lan:8420", cfg.PlomTTS.ServerURL)
	assert.Equal(t, 45*time.Second, cfg.PlomTTS.Timeout())
	assert.Equal(t, "narrator", cfg.PlomTTS.DefaultVoice)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "speech.request", cfg.NATS.SpeechRequestSubject)
	assert.Equal(t, "flow.start", cfg.NATS.FlowStartSubject)
	assert.Equal(t, "flow.step", cfg.NATS.FlowStepSubject)
	assert.Equal(t, "ENTRIES", cfg.NATS.EntryBucket)
	assert.Equal(t, "AUDIO_FILES", cfg.NATS.AudioObjectStoreBucket)
	assert.Equal(t, "127.0.0.1:9000", cfg.Metrics.ListenAddr)
	assert.Equal(t, "/var/log/plomtts", cfg.Paths.BaseLogsDir)
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	cfg.ApplyDefaults()

	assert.Equal(t, "http://localhost:8420", cfg.PlomTTS.ServerURL)
	assert.Equal(t, 30*time.Second, cfg.PlomTTS.Timeout())
	assert.Empty(t, cfg.PlomTTS.DefaultVoice)
	assert.Equal(t, config.DefaultNATSURL, cfg.NATS.URL)
	assert.Equal(t, "plomtts.speech.request", cfg.NATS.SpeechRequestSubject)
	assert.Equal(t, "plomtts.flow.start", cfg.NATS.FlowStartSubject)
	assert.Equal(t, "plomtts.flow.step", cfg.NATS.FlowStepSubject)
	assert.Equal(t, config.DefaultEntryBucket, cfg.NATS.EntryBucket)
	assert.Equal(t, config.DefaultAudioObjectStoreBucket, cfg.NATS.AudioObjectStoreBucket)
	assert.Equal(t, config.DefaultMetricsListenAddr, cfg.Metrics.ListenAddr)
	assert.Equal(t, os.TempDir(), cfg.Paths.BaseLogsDir)
}

func TestApplyDefaults_MetricsDisabled(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Metrics: config.MetricsConfig{ListenAddr: "-"}}

	cfg.ApplyDefaults()

	assert.Empty(t, cfg.Metrics.ListenAddr)
}
