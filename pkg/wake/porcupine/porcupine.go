// Package porcupine implements wake-word detection with the Picovoice
// Porcupine engine.
package porcupine

import (
	"fmt"

	pv "github.com/Picovoice/porcupine/binding/go/v3"

	"github.com/earshot-dev/earshot/pkg/audio"
	"github.com/earshot-dev/earshot/pkg/wake"
)

var _ wake.Detector = (*Detector)(nil)

// Config holds the engine parameters. AccessKey and at least one keyword
// path are required; Sensitivity applies to every keyword and defaults to
// 0.5 when zero.
type Config struct {
	AccessKey    string
	KeywordPaths []string
	ModelPath    string
	Sensitivity  float32
}

// Detector wraps a Porcupine instance. It is not safe for concurrent use;
// the pipeline feeds it from a single goroutine.
type Detector struct {
	engine pv.Porcupine
}

// New initializes the Porcupine engine. The engine demands frames of exactly
// [pv.FrameLength] samples at 16 kHz.
func New(cfg Config) (*Detector, error) {
	if cfg.AccessKey == "" {
		return nil, fmt.Errorf("porcupine: access key is required")
	}
	if len(cfg.KeywordPaths) == 0 {
		return nil, fmt.Errorf("porcupine: at least one keyword path is required")
	}
	sens := cfg.Sensitivity
	if sens == 0 {
		sens = 0.5
	}
	sensitivities := make([]float32, len(cfg.KeywordPaths))
	for i := range sensitivities {
		sensitivities[i] = sens
	}
	engine := pv.Porcupine{
		AccessKey:     cfg.AccessKey,
		KeywordPaths:  cfg.KeywordPaths,
		ModelPath:     cfg.ModelPath,
		Sensitivities: sensitivities,
	}
	if err := engine.Init(); err != nil {
		return nil, fmt.Errorf("porcupine: init engine: %w", err)
	}
	return &Detector{engine: engine}, nil
}

// Detect feeds one frame to the engine. Any keyword index >= 0 counts as a
// detection.
func (d *Detector) Detect(frame audio.Frame) (bool, error) {
	idx, err := d.engine.Process(frame)
	if err != nil {
		return false, fmt.Errorf("porcupine: process frame: %w", err)
	}
	return idx >= 0, nil
}

// FrameLength is the sample count Porcupine requires per frame.
func (d *Detector) FrameLength() int { return pv.FrameLength }

// Close releases the engine resources.
func (d *Detector) Close() error {
	return d.engine.Delete()
}
