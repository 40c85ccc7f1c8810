package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/earshot-dev/earshot/internal/session"
)

// Defaults mirror a near-field USB microphone at 16 kHz. Applied by
// [ApplyDefaults] before validation for any field left at its zero value.
const (
	defaultSampleRate           = 16000
	defaultNoiseFloor           = 150
	defaultEndThreshold         = 180
	defaultStartThreshold       = 320
	defaultPreRollFrames        = 6
	defaultSilenceEndRun        = 12
	defaultMinSpeechFrames      = 4
	defaultStandbyTimeoutSec    = 10
	defaultConversingTimeoutSec = 6
	defaultSilentRMS            = 900
	defaultSilentRun            = 15
	defaultAckPhrase            = "Yes?"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every zero-valued tunable with its default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = defaultSampleRate
	}
	c := &cfg.Capture
	if c.NoiseFloor == 0 {
		c.NoiseFloor = defaultNoiseFloor
	}
	if c.EndThreshold == 0 {
		c.EndThreshold = defaultEndThreshold
	}
	if c.StartThreshold == 0 {
		c.StartThreshold = defaultStartThreshold
	}
	if c.PreRollFrames == 0 {
		c.PreRollFrames = defaultPreRollFrames
	}
	if c.SilenceEndRun == 0 {
		c.SilenceEndRun = defaultSilenceEndRun
	}
	if c.MinSpeechFrames == 0 {
		c.MinSpeechFrames = defaultMinSpeechFrames
	}
	if c.StandbyTimeoutSec == 0 {
		c.StandbyTimeoutSec = defaultStandbyTimeoutSec
	}
	if c.ConversingTimeoutSec == 0 {
		c.ConversingTimeoutSec = defaultConversingTimeoutSec
	}
	if cfg.Drain.SilentRMS == 0 {
		cfg.Drain.SilentRMS = defaultSilentRMS
	}
	if cfg.Drain.SilentRun == 0 {
		cfg.Drain.SilentRun = defaultSilentRun
	}
	if cfg.Ack.Phrase == "" {
		cfg.Ack.Phrase = defaultAckPhrase
	}
	if cfg.Conversation.MaxRetries == 0 {
		cfg.Conversation.MaxRetries = session.DefaultMaxRetries
	}
	if len(cfg.Conversation.FallbackMarkers) == 0 {
		cfg.Conversation.FallbackMarkers = session.DefaultFallbackMarkers()
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", cfg.Audio.SampleRate))
	}

	// The gate thresholds must be strictly ordered for the hysteresis to
	// hold.
	if err := cfg.Capture.Levels().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("capture thresholds: %w", err))
	}
	if cfg.Capture.PreRollFrames < 0 {
		errs = append(errs, errors.New("capture.pre_roll_frames must not be negative"))
	}
	if cfg.Capture.SilenceEndRun <= 0 {
		errs = append(errs, errors.New("capture.silence_end_run must be positive"))
	}
	if cfg.Capture.MinSpeechFrames <= 0 {
		errs = append(errs, errors.New("capture.min_speech_frames must be positive"))
	}
	if cfg.Capture.StandbyTimeoutSec <= 0 {
		errs = append(errs, errors.New("capture.standby_timeout_sec must be positive"))
	}
	if cfg.Capture.ConversingTimeoutSec <= 0 {
		errs = append(errs, errors.New("capture.conversing_timeout_sec must be positive"))
	}

	if cfg.Drain.SilentRMS <= 0 {
		errs = append(errs, errors.New("drain.silent_rms must be positive"))
	} else if cfg.Drain.SilentRMS <= cfg.Capture.EndThreshold {
		errs = append(errs, errors.New("drain.silent_rms must sit above capture.end_threshold; playback echo is louder than trailing speech"))
	}
	if cfg.Drain.SilentRun <= 0 {
		errs = append(errs, errors.New("drain.silent_run must be positive"))
	}

	if cfg.Conversation.MaxRetries <= 0 {
		errs = append(errs, errors.New("conversation.max_retries must be positive"))
	}
	for i, m := range cfg.Conversation.FallbackMarkers {
		if strings.TrimSpace(m) == "" {
			errs = append(errs, fmt.Errorf("conversation.fallback_markers[%d] must not be blank", i))
		}
	}

	if cfg.Wake.Name == "" {
		errs = append(errs, errors.New("wake.name must be set"))
	}
	if cfg.Wake.Sensitivity < 0 || cfg.Wake.Sensitivity > 1 {
		errs = append(errs, fmt.Errorf("wake.sensitivity must be within [0, 1], got %v", cfg.Wake.Sensitivity))
	}

	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name must be set"))
	}
	if cfg.Providers.Brain.Name == "" {
		errs = append(errs, errors.New("providers.brain.name must be set"))
	}
	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts.name must be set"))
	}

	return errors.Join(errs...)
}
