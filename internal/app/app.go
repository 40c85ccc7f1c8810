// Package app wires all earshot subsystems into a running application.
//
// The App owns the full lifecycle: New connects the audio pipeline to the
// configured providers, Run executes the wake-listen-reply loop alongside
// the observability HTTP endpoint, and Shutdown tears everything down.
//
// For testing, inject mock providers through the [Providers] struct; the
// whole control flow runs against the interfaces.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/earshot-dev/earshot/internal/config"
	"github.com/earshot-dev/earshot/internal/health"
	"github.com/earshot-dev/earshot/internal/history"
	"github.com/earshot-dev/earshot/internal/listen"
	"github.com/earshot-dev/earshot/internal/observe"
	"github.com/earshot-dev/earshot/internal/session"
	"github.com/earshot-dev/earshot/pkg/audio"
	"github.com/earshot-dev/earshot/pkg/provider/brain"
	"github.com/earshot-dev/earshot/pkg/provider/stt"
	"github.com/earshot-dev/earshot/pkg/provider/tts"
	"github.com/earshot-dev/earshot/pkg/wake"
)

// followUpPause is how long the loop idles before listening for a follow-up
// in an open conversation, giving the room a beat to settle.
const followUpPause = 100 * time.Millisecond

// Providers holds one interface value per provider slot. Populated by
// main.go via the config registry, or by tests with mocks.
type Providers struct {
	// Source is the audio input. Required.
	Source audio.Source
	// Wake is the wake-word detector. Required.
	Wake wake.Detector
	// STT is the default transcriber. Required.
	STT stt.Transcriber
	// STTConversing optionally replaces STT during open conversations.
	// When nil, STT handles both modes.
	STTConversing stt.Transcriber
	// Brain is the dialogue backend. Required.
	Brain brain.Brain
	// Speaker voices the replies. Required.
	Speaker tts.Speaker
	// Ack replays the pre-rendered wake acknowledgement. Optional; when
	// nil the acknowledgement is spoken through Speaker instead.
	Ack tts.AckCache
	// History is the turn log. Optional.
	History history.Store
}

func (p Providers) validate() error {
	var errs []error
	if p.Source == nil {
		errs = append(errs, errors.New("app: audio source is required"))
	}
	if p.Wake == nil {
		errs = append(errs, errors.New("app: wake detector is required"))
	}
	if p.STT == nil {
		errs = append(errs, errors.New("app: transcriber is required"))
	}
	if p.Brain == nil {
		errs = append(errs, errors.New("app: brain is required"))
	}
	if p.Speaker == nil {
		errs = append(errs, errors.New("app: speaker is required"))
	}
	return errors.Join(errs...)
}

// App owns the voice pipeline and its observability endpoint.
type App struct {
	cfg     *config.Config
	p       Providers
	logger  *slog.Logger
	metrics *observe.Metrics

	state    *session.State
	classify session.Classifier
	capturer *listen.Capturer
	drainer  *listen.Drainer

	// conversingGauge mirrors state.Conversing() into the metrics gauge.
	conversingGauge bool

	stopOnce sync.Once
}

// New validates the providers and builds the pipeline stages. metrics may
// be nil, in which case the package-level default instruments are used.
func New(cfg *config.Config, providers Providers, logger *slog.Logger, metrics *observe.Metrics) (*App, error) {
	if err := providers.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	capturer, err := listen.NewCapturer(providers.Source, cfg.Capture.ListenCapture(), logger)
	if err != nil {
		return nil, fmt.Errorf("app: build capturer: %w", err)
	}
	drainer, err := listen.NewDrainer(providers.Source, cfg.Drain.ListenDrain())
	if err != nil {
		return nil, fmt.Errorf("app: build drainer: %w", err)
	}

	return &App{
		cfg:      cfg,
		p:        providers,
		logger:   logger,
		metrics:  metrics,
		state:    session.New(cfg.Conversation.MaxRetries),
		classify: session.NewClassifier(cfg.Conversation.FallbackMarkers),
		capturer: capturer,
		drainer:  drainer,
	}, nil
}

// Run primes the acknowledgement cache and executes the main loop until ctx
// is cancelled or the audio device fails. The observability HTTP endpoint
// runs alongside when server.listen_addr is configured.
func (a *App) Run(ctx context.Context) error {
	if a.p.Ack != nil {
		if err := a.p.Ack.Prime(ctx, a.cfg.Ack.Phrase); err != nil {
			// Fall back to synthesizing the acknowledgement per wake.
			a.logger.Warn("priming ack cache failed, falling back to live synthesis", "error", err)
			a.p.Ack = nil
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	if addr := a.cfg.Server.ListenAddr; addr != "" {
		g.Go(func() error { return a.serveHTTP(ctx, addr) })
	}
	g.Go(func() error { return a.loop(ctx) })

	a.logger.Info("pipeline running",
		"mode", a.state.Mode().String(),
		"sample_rate", a.p.Source.SampleRate(),
		"frame_length", a.p.Source.FrameLength())

	return g.Wait()
}

// loop is the single control goroutine: standby frames go to the wake
// detector, open conversations skip straight to capture.
func (a *App) loop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !a.state.Conversing() {
			frame, err := a.p.Source.ReadFrame()
			if err != nil {
				return fmt.Errorf("app: standby read: %w", err)
			}
			hit, err := a.p.Wake.Detect(frame)
			if err != nil {
				// Per-frame detector errors are transient; keep feeding.
				a.logger.Debug("wake detection error", "error", err)
				a.recordProviderError("wake")
				continue
			}
			if !hit {
				continue
			}
			a.metrics.WakeDetections.Add(ctx, 1)
			a.logger.Info("wake word detected")
			if err := a.wakeSequence(ctx); err != nil {
				return err
			}
		} else {
			time.Sleep(followUpPause)
		}

		if err := a.runTurn(ctx); err != nil {
			return err
		}

		// Let any trailing reply echo die down before the next cycle.
		n, err := a.drainer.DrainUntilSilent(4 * time.Second)
		if err != nil {
			return fmt.Errorf("app: post-turn drain: %w", err)
		}
		a.metrics.DrainedFrames.Add(ctx, int64(n))
	}
}

// handleTurns serves the most recent logged turns as JSON, newest first.
// The limit query parameter caps the result, default 20.
func (a *App) handleTurns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	turns, err := a.p.History.Recent(r.Context(), limit)
	if err != nil {
		a.logger.Warn("reading recent turns", "error", err)
		http.Error(w, "history store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(turns); err != nil {
		a.logger.Warn("encoding recent turns", "error", err)
	}
}

// serveHTTP exposes /metrics, /healthz, /readyz and (when the turn log is
// enabled) /turns until ctx is cancelled.
func (a *App) serveHTTP(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	checkers := []health.Checker{
		{Name: "audio", Check: func(context.Context) error {
			if a.p.Source.FrameLength() <= 0 {
				return errors.New("audio source not open")
			}
			return nil
		}},
	}
	if a.p.History != nil {
		checkers = append(checkers, health.Checker{Name: "history", Check: a.p.History.Ping})
		mux.HandleFunc("GET /turns", a.handleTurns)
	}
	health.New(checkers...).Register(mux)

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return fmt.Errorf("app: http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	}
}

// Shutdown closes every provider. Safe to call more than once.
func (a *App) Shutdown() {
	a.stopOnce.Do(func() {
		closers := []struct {
			name  string
			close func() error
		}{
			{"wake detector", a.p.Wake.Close},
			{"speaker", a.p.Speaker.Close},
			{"brain", a.p.Brain.Close},
			{"transcriber", a.p.STT.Close},
			{"audio source", a.p.Source.Close},
		}
		if a.p.STTConversing != nil {
			closers = append(closers, struct {
				name  string
				close func() error
			}{"conversing transcriber", a.p.STTConversing.Close})
		}
		for _, c := range closers {
			if err := c.close(); err != nil {
				a.logger.Warn("closing "+c.name, "error", err)
			}
		}
		if a.p.History != nil {
			a.p.History.Close()
		}
	})
}

// recordProviderError bumps the per-kind error counter.
func (a *App) recordProviderError(kind string) {
	a.metrics.ProviderErrors.Add(context.Background(), 1,
		observe.WithKind(kind))
}

// syncConversingGauge mirrors the state machine into the metrics gauge.
func (a *App) syncConversingGauge(ctx context.Context) {
	now := a.state.Conversing()
	if now == a.conversingGauge {
		return
	}
	if now {
		a.metrics.Conversing.Add(ctx, 1)
	} else {
		a.metrics.Conversing.Add(ctx, -1)
	}
	a.conversingGauge = now
}
