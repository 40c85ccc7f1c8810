package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/earshot-dev/earshot/pkg/provider/brain"
	"github.com/earshot-dev/earshot/pkg/provider/stt"
	"github.com/earshot-dev/earshot/pkg/provider/tts"
	"github.com/earshot-dev/earshot/pkg/wake"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory
// has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	stt   map[string]func(ProviderEntry) (stt.Transcriber, error)
	brain map[string]func(ProviderEntry) (brain.Brain, error)
	tts   map[string]func(ProviderEntry) (tts.Speaker, error)
	wake  map[string]func(WakeConfig) (wake.Detector, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt:   make(map[string]func(ProviderEntry) (stt.Transcriber, error)),
		brain: make(map[string]func(ProviderEntry) (brain.Brain, error)),
		tts:   make(map[string]func(ProviderEntry) (tts.Speaker, error)),
		wake:  make(map[string]func(WakeConfig) (wake.Detector, error)),
	}
}

// RegisterSTT registers a transcriber factory under name. Subsequent calls
// with the same name overwrite the previous registration.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Transcriber, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterBrain registers a dialogue backend factory under name.
func (r *Registry) RegisterBrain(name string, factory func(ProviderEntry) (brain.Brain, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.brain[name] = factory
}

// RegisterTTS registers a speaker factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Speaker, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterWake registers a wake-word detector factory under name.
func (r *Registry) RegisterWake(name string, factory func(WakeConfig) (wake.Detector, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wake[name] = factory
}

// CreateSTT instantiates the transcriber selected by entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt %q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateBrain instantiates the dialogue backend selected by entry.Name.
func (r *Registry) CreateBrain(entry ProviderEntry) (brain.Brain, error) {
	r.mu.RLock()
	factory, ok := r.brain[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: brain %q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTTS instantiates the speaker selected by entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Speaker, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts %q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateWake instantiates the wake-word detector selected by cfg.Name.
func (r *Registry) CreateWake(cfg WakeConfig) (wake.Detector, error) {
	r.mu.RLock()
	factory, ok := r.wake[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: wake %q", ErrProviderNotRegistered, cfg.Name)
	}
	return factory(cfg)
}
