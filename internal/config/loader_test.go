package config

import (
	"strings"
	"testing"
	"time"
)

const validYAML = `
server:
  listen_addr: ":8087"
  log_level: debug
wake:
  name: porcupine
  access_key: pv-key
  keyword_paths: ["models/earshot_linux.ppn"]
  sensitivity: 0.6
providers:
  stt:
    name: whisper
    model: models/ggml-base.bin
    language: en
  brain:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  tts:
    name: piper
    model: models/voice.onnx
`

func TestLoadFromReaderValid(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}

	if cfg.Server.LogLevel != LogDebug {
		t.Errorf("LogLevel = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Wake.Name != "porcupine" {
		t.Errorf("Wake.Name = %q, want porcupine", cfg.Wake.Name)
	}

	// Unset tunables get their defaults.
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want default 16000", cfg.Audio.SampleRate)
	}
	if cfg.Capture.StartThreshold != 320 {
		t.Errorf("StartThreshold = %v, want default 320", cfg.Capture.StartThreshold)
	}
	if cfg.Drain.SilentRun != 15 {
		t.Errorf("SilentRun = %d, want default 15", cfg.Drain.SilentRun)
	}
	if cfg.Ack.Phrase != "Yes?" {
		t.Errorf("Ack.Phrase = %q, want default", cfg.Ack.Phrase)
	}
	if got := cfg.Capture.StandbyTimeout(); got != 10*time.Second {
		t.Errorf("StandbyTimeout() = %v, want 10s", got)
	}
	if got := cfg.Capture.ConversingTimeout(); got != 6*time.Second {
		t.Errorf("ConversingTimeout() = %v, want 6s", got)
	}
	if cfg.Conversation.MaxRetries != 2 {
		t.Errorf("Conversation.MaxRetries = %d, want default 2", cfg.Conversation.MaxRetries)
	}
	if len(cfg.Conversation.FallbackMarkers) != 6 {
		t.Errorf("Conversation.FallbackMarkers = %v, want the 6 built-ins", cfg.Conversation.FallbackMarkers)
	}
}

func TestLoadFromReaderConversationOverrides(t *testing.T) {
	t.Parallel()

	yaml := validYAML + `
conversation:
  max_retries: 3
  fallback_markers:
    - could you repeat
    - didn't catch
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}
	if cfg.Conversation.MaxRetries != 3 {
		t.Errorf("Conversation.MaxRetries = %d, want 3", cfg.Conversation.MaxRetries)
	}
	want := []string{"could you repeat", "didn't catch"}
	if len(cfg.Conversation.FallbackMarkers) != len(want) {
		t.Fatalf("Conversation.FallbackMarkers = %v, want %v", cfg.Conversation.FallbackMarkers, want)
	}
	for i := range want {
		if cfg.Conversation.FallbackMarkers[i] != want[i] {
			t.Errorf("FallbackMarkers[%d] = %q, want %q", i, cfg.Conversation.FallbackMarkers[i], want[i])
		}
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	yaml := validYAML + "\nunknown_section:\n  foo: bar\n"
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("LoadFromReader() accepted an unknown section")
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Server.LogLevel = "verbose" },
			wantErr: "server.log_level",
		},
		{
			name:    "unordered thresholds",
			mutate:  func(c *Config) { c.Capture.StartThreshold = c.Capture.EndThreshold },
			wantErr: "capture thresholds",
		},
		{
			name:    "end threshold below noise floor",
			mutate:  func(c *Config) { c.Capture.EndThreshold = 100 },
			wantErr: "capture thresholds",
		},
		{
			name:    "missing wake engine",
			mutate:  func(c *Config) { c.Wake.Name = "" },
			wantErr: "wake.name",
		},
		{
			name:    "sensitivity out of range",
			mutate:  func(c *Config) { c.Wake.Sensitivity = 1.5 },
			wantErr: "wake.sensitivity",
		},
		{
			name:    "missing brain",
			mutate:  func(c *Config) { c.Providers.Brain.Name = "" },
			wantErr: "providers.brain.name",
		},
		{
			name:    "negative conversing timeout",
			mutate:  func(c *Config) { c.Capture.ConversingTimeoutSec = -1 },
			wantErr: "conversing_timeout_sec",
		},
		{
			name:    "drain threshold below speech threshold",
			mutate:  func(c *Config) { c.Drain.SilentRMS = 170 },
			wantErr: "drain.silent_rms",
		},
		{
			name:    "negative retry limit",
			mutate:  func(c *Config) { c.Conversation.MaxRetries = -1 },
			wantErr: "conversation.max_retries",
		},
		{
			name:    "blank fallback marker",
			mutate:  func(c *Config) { c.Conversation.FallbackMarkers = []string{"dobara bolein", "  "} },
			wantErr: "conversation.fallback_markers[1]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := LoadFromReader(strings.NewReader(validYAML))
			if err != nil {
				t.Fatalf("loading base config: %v", err)
			}
			tt.mutate(cfg)
			err = Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Wake.Name = ""
	cfg.Providers.STT.Name = ""
	cfg.Providers.Brain.Name = ""
	cfg.Providers.TTS.Name = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() = nil for an empty config")
	}
	for _, want := range []string{"wake.name", "providers.stt.name", "providers.brain.name", "providers.tts.name"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error missing %q: %v", want, err)
		}
	}
}
