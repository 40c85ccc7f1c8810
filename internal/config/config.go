// Package config provides the configuration schema, loader, and provider
// registry for the earshot voice pipeline.
package config

import (
	"time"

	"github.com/earshot-dev/earshot/internal/listen"
	"github.com/earshot-dev/earshot/pkg/audio"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Audio        AudioConfig        `yaml:"audio"`
	Capture      CaptureConfig      `yaml:"capture"`
	Drain        DrainConfig        `yaml:"drain"`
	Conversation ConversationConfig `yaml:"conversation"`
	Wake         WakeConfig         `yaml:"wake"`
	Ack          AckConfig          `yaml:"ack"`
	Providers    ProvidersConfig    `yaml:"providers"`
	History      HistoryConfig      `yaml:"history"`
	Dump         DumpConfig         `yaml:"dump"`
}

// ServerConfig holds the observability endpoint and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address for the metrics and health endpoints
	// (e.g. ":8087"). Empty disables the HTTP listener entirely.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Defaults to info.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig holds the capture device settings.
type AudioConfig struct {
	// SampleRate in Hz. The wake engine dictates 16000; other values are
	// rejected when the porcupine detector is selected.
	SampleRate int `yaml:"sample_rate"`
}

// CaptureConfig tunes voice activity detection and the capture timeouts.
// All loudness values are RMS over one frame of 16-bit samples.
type CaptureConfig struct {
	// NoiseFloor is the RMS below which a frame is pure ambience.
	NoiseFloor float64 `yaml:"noise_floor"`
	// EndThreshold is the RMS below which a frame counts toward ending an
	// utterance. Must sit between NoiseFloor and StartThreshold.
	EndThreshold float64 `yaml:"end_threshold"`
	// StartThreshold is the RMS a frame must exceed to start an utterance.
	StartThreshold float64 `yaml:"start_threshold"`
	// PreRollFrames is how many recent frames are kept ahead of the
	// trigger so the first syllable isn't clipped.
	PreRollFrames int `yaml:"pre_roll_frames"`
	// SilenceEndRun is the consecutive-quiet-frame count that ends an
	// utterance.
	SilenceEndRun int `yaml:"silence_end_run"`
	// MinSpeechFrames is the minimum voiced-frame count an utterance needs
	// to be kept.
	MinSpeechFrames int `yaml:"min_speech_frames"`
	// StandbyTimeoutSec bounds the listening window right after a wake
	// word, in seconds.
	StandbyTimeoutSec float64 `yaml:"standby_timeout_sec"`
	// ConversingTimeoutSec bounds the follow-up listening window during an
	// open conversation, in seconds.
	ConversingTimeoutSec float64 `yaml:"conversing_timeout_sec"`
}

// DrainConfig tunes echo drainage around playback.
type DrainConfig struct {
	// SilentRMS is the loudness below which a frame counts as quiet.
	SilentRMS float64 `yaml:"silent_rms"`
	// SilentRun is the consecutive-quiet-frame count that ends a drain
	// early.
	SilentRun int `yaml:"silent_run"`
}

// ConversationConfig tunes turn-taking after a reply is delivered.
type ConversationConfig struct {
	// MaxRetries is how many unintelligible follow-ups an open
	// conversation survives before it is closed out. Defaults to 2.
	MaxRetries int `yaml:"max_retries"`
	// FallbackMarkers are phrases that mark a reply as a re-prompt rather
	// than a genuine question, matched case-insensitively. Empty uses the
	// built-in list.
	FallbackMarkers []string `yaml:"fallback_markers"`
}

// WakeConfig selects and configures the wake-word engine.
type WakeConfig struct {
	// Name selects the registered detector implementation (e.g. "porcupine").
	Name string `yaml:"name"`
	// AccessKey authenticates against the engine vendor, if required.
	AccessKey string `yaml:"access_key"`
	// KeywordPaths are engine-specific keyword model files.
	KeywordPaths []string `yaml:"keyword_paths"`
	// ModelPath is the engine's base acoustic model, if separate.
	ModelPath string `yaml:"model_path"`
	// Sensitivity trades false accepts against misses, 0..1.
	Sensitivity float32 `yaml:"sensitivity"`
}

// AckConfig controls the instant acknowledgement after a wake word.
type AckConfig struct {
	// Phrase is rendered once at startup and replayed on every wake.
	// Defaults to "Yes?".
	Phrase string `yaml:"phrase"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each entry's Name selects a factory in the [Registry].
type ProvidersConfig struct {
	// STT is the default transcriber.
	STT ProviderEntry `yaml:"stt"`
	// STTConversing optionally overrides the transcriber during open
	// conversations, where latency matters more than robustness. Empty
	// name means the default transcriber handles both modes.
	STTConversing ProviderEntry `yaml:"stt_conversing"`
	// Brain is the dialogue backend.
	Brain ProviderEntry `yaml:"brain"`
	// TTS is the speech synthesizer.
	TTS ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g. "openai",
	// "whisper", "anthropic", "piper").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API, if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g.
	// "gpt-4o-mini") or a model file path for local engines.
	Model string `yaml:"model"`

	// Language is the expected input or output language as an ISO-639-1
	// code, where the provider supports pinning one.
	Language string `yaml:"language"`

	// SystemPrompt is the persona prompt for dialogue providers.
	SystemPrompt string `yaml:"system_prompt"`

	// Options holds provider-specific values not covered by the standard
	// fields above.
	Options map[string]any `yaml:"options"`
}

// HistoryConfig enables the conversation turn log.
type HistoryConfig struct {
	// DSN is the PostgreSQL connection string. Empty disables the log.
	DSN string `yaml:"dsn"`
}

// DumpConfig enables debugging WAV dumps of captured utterances.
type DumpConfig struct {
	// Dir is the directory dumps are written to. Empty disables dumping.
	Dir string `yaml:"dir"`
}

// Levels converts the capture thresholds into the pipeline's gate levels.
func (c CaptureConfig) Levels() audio.Levels {
	return audio.Levels{
		NoiseFloor:     c.NoiseFloor,
		EndThreshold:   c.EndThreshold,
		StartThreshold: c.StartThreshold,
	}
}

// ListenCapture converts the config into the capture stage's own config.
func (c CaptureConfig) ListenCapture() listen.CaptureConfig {
	return listen.CaptureConfig{
		Levels:          c.Levels(),
		PreRollFrames:   c.PreRollFrames,
		SilenceEndRun:   c.SilenceEndRun,
		MinSpeechFrames: c.MinSpeechFrames,
	}
}

// ListenDrain converts the config into the drain stage's own config.
func (c DrainConfig) ListenDrain() listen.DrainConfig {
	return listen.DrainConfig{
		SilentRMS: c.SilentRMS,
		SilentRun: c.SilentRun,
	}
}

// StandbyTimeout returns the standby listening window as a duration.
func (c CaptureConfig) StandbyTimeout() time.Duration {
	return time.Duration(c.StandbyTimeoutSec * float64(time.Second))
}

// ConversingTimeout returns the follow-up listening window as a duration.
func (c CaptureConfig) ConversingTimeout() time.Duration {
	return time.Duration(c.ConversingTimeoutSec * float64(time.Second))
}
