package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/earshot-dev/earshot/internal/history"
	"github.com/earshot-dev/earshot/internal/listen"
	"github.com/earshot-dev/earshot/internal/observe"
	"github.com/earshot-dev/earshot/pkg/audio"
	"github.com/earshot-dev/earshot/pkg/provider/brain"
)

// minTranscriptLen is the shortest transcript treated as real speech.
// Single characters are recognizer artifacts.
const minTranscriptLen = 2

// wakeSequence acknowledges the wake word and clears the microphone of its
// own echo: the tail of the wake word first, then the acknowledgement
// playback bleeding back in.
func (a *App) wakeSequence(ctx context.Context) error {
	drained := 0

	n, err := a.drainer.DrainFixed(25)
	drained += n
	if err != nil {
		return fmt.Errorf("app: wake drain: %w", err)
	}
	n, err = a.drainer.DrainUntilSilent(1500 * time.Millisecond)
	drained += n
	if err != nil {
		return fmt.Errorf("app: wake drain: %w", err)
	}

	if a.p.Ack != nil {
		if err := a.p.Ack.Play(); err != nil {
			a.logger.Warn("ack playback failed", "error", err)
			a.recordProviderError("tts")
		}
	} else {
		if err := a.p.Speaker.Speak(ctx, a.cfg.Ack.Phrase); err != nil {
			a.logger.Warn("ack synthesis failed", "error", err)
			a.recordProviderError("tts")
		}
	}

	n, err = a.drainer.DrainFixed(50)
	drained += n
	if err != nil {
		return fmt.Errorf("app: ack drain: %w", err)
	}
	n, err = a.drainer.DrainUntilSilent(1200 * time.Millisecond)
	drained += n
	if err != nil {
		return fmt.Errorf("app: ack drain: %w", err)
	}

	a.metrics.DrainedFrames.Add(ctx, int64(drained))
	return nil
}

// runTurn executes one listen-transcribe-reply exchange. Collaborator
// failures degrade the turn; only audio device errors propagate.
func (a *App) runTurn(ctx context.Context) error {
	ctx, span := observe.StartSpan(ctx, "turn")
	defer span.End()
	logger := observe.Logger(ctx, a.logger)

	started := time.Now()
	mode := a.state.Mode()

	timeout := a.cfg.Capture.StandbyTimeout()
	if a.state.Conversing() {
		timeout = a.cfg.Capture.ConversingTimeout()
	}

	utterance, stats, err := a.capturer.Capture(timeout)
	if stats.FalseStarts > 0 {
		a.metrics.FalseStarts.Add(ctx, int64(stats.FalseStarts))
	}
	if err != nil {
		return fmt.Errorf("app: capture: %w", err)
	}

	if utterance == nil {
		// Nothing worth keeping was heard. In standby this stays
		// deliberately silent so ambient noise never triggers speech.
		a.metrics.CaptureTimeouts.Add(ctx, 1, observe.WithMode(mode.String()))
		if sentinel := a.state.NoSpeech(); sentinel != "" {
			logger.Info("conversation timed out, going standby")
			if err := a.deliverSentinel(ctx, sentinel); err != nil {
				return err
			}
			a.syncConversingGauge(ctx)
		}
		return nil
	}

	a.metrics.Utterances.Add(ctx, 1, observe.WithMode(mode.String()))
	a.dumpUtterance(utterance)

	transcript := a.transcribe(ctx, utterance)
	if len(transcript) < minTranscriptLen {
		if sentinel := a.state.EmptyTranscript(); sentinel != "" {
			logger.Info("unintelligible capture", "sentinel", sentinel, "retries", a.state.Retries())
			if err := a.deliverSentinel(ctx, sentinel); err != nil {
				return err
			}
			a.syncConversingGauge(ctx)
		}
		return nil
	}
	a.state.GoodTranscript()
	logger.Info("transcribed", "text", transcript, "mode", mode.String())

	brainStart := time.Now()
	reply, err := a.p.Brain.Reply(ctx, transcript)
	a.metrics.BrainDuration.Record(ctx, time.Since(brainStart).Seconds())
	if err != nil {
		logger.Error("brain failed, dropping turn", "error", err)
		a.recordProviderError("brain")
		a.state.Abort()
		a.syncConversingGauge(ctx)
		return nil
	}

	if err := a.speakReply(ctx, reply); err != nil {
		return err
	}

	genuine := a.classify.GenuineQuestion(reply)
	a.state.ReplyDelivered(genuine)
	a.syncConversingGauge(ctx)
	if genuine {
		logger.Info("holding conversation open", "window", a.cfg.Capture.ConversingTimeout())
	} else {
		logger.Info("back to standby")
	}

	a.metrics.TurnDuration.Record(ctx, time.Since(started).Seconds())
	a.appendHistory(ctx, history.Turn{
		StartedAt:       started,
		Mode:            mode.String(),
		Transcript:      transcript,
		Reply:           reply,
		HeldOpen:        genuine,
		CaptureDuration: stats.Duration,
		TurnDuration:    time.Since(started),
	})
	return nil
}

// transcribe runs the mode-appropriate transcriber. During an open
// conversation the dedicated low-latency transcriber is tried first and the
// default one serves as fallback; errors degrade to an empty transcript.
func (a *App) transcribe(ctx context.Context, utterance audio.Frame) string {
	start := time.Now()
	defer func() {
		a.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	}()

	rate := a.p.Source.SampleRate()
	if a.state.Conversing() && a.p.STTConversing != nil {
		text, err := a.p.STTConversing.Transcribe(ctx, utterance, rate)
		if err == nil && text != "" {
			return text
		}
		if err != nil {
			a.logger.Warn("conversing transcriber failed, falling back", "error", err)
			a.recordProviderError("stt")
		}
	}

	text, err := a.p.STT.Transcribe(ctx, utterance, rate)
	if err != nil {
		a.logger.Error("transcription failed", "error", err)
		a.recordProviderError("stt")
		return ""
	}
	return text
}

// deliverSentinel hands a pipeline sentinel to the brain and voices the
// response, if any. Brain failures only log; the state machine has already
// moved on. The returned error is only the audio device failing mid-drain.
func (a *App) deliverSentinel(ctx context.Context, sentinel string) error {
	reply, err := a.p.Brain.Reply(ctx, sentinel)
	if sentinel == brain.SentinelTimeout {
		// The conversation is over; the next wake starts from a blank
		// slate.
		a.p.Brain.Reset()
	}
	if err != nil {
		a.logger.Warn("brain rejected sentinel", "sentinel", sentinel, "error", err)
		a.recordProviderError("brain")
		return nil
	}
	if reply == "" {
		return nil
	}
	return a.speakReply(ctx, reply)
}

// speakReply voices the reply, then clears the microphone of the playback:
// a fixed budget proportional to the reply's word count, then an adaptive
// wait for the room to go quiet. Synthesis failures degrade; only a device
// failure during the drain is returned.
func (a *App) speakReply(ctx context.Context, reply string) error {
	start := time.Now()
	if err := a.p.Speaker.Speak(ctx, reply); err != nil {
		a.logger.Error("speech synthesis failed", "error", err)
		a.recordProviderError("tts")
	}
	a.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())

	drained, err := a.drainer.DrainFixed(listen.ReplyDrainFrames(reply))
	if err != nil {
		return fmt.Errorf("app: reply drain: %w", err)
	}
	n, err := a.drainer.DrainUntilSilent(2500 * time.Millisecond)
	drained += n
	if err != nil {
		return fmt.Errorf("app: reply drain: %w", err)
	}
	a.metrics.DrainedFrames.Add(ctx, int64(drained))
	return nil
}

// dumpUtterance writes the capture as a WAV file when dumping is enabled.
// Purely diagnostic and best effort.
func (a *App) dumpUtterance(utterance audio.Frame) {
	if a.cfg.Dump.Dir == "" {
		return
	}
	wav, err := audio.EncodeWAV(utterance, a.p.Source.SampleRate())
	if err != nil {
		a.logger.Warn("encoding utterance dump", "error", err)
		return
	}
	name := filepath.Join(a.cfg.Dump.Dir, fmt.Sprintf("utterance-%s.wav", time.Now().Format("20060102-150405.000")))
	if err := os.WriteFile(name, wav, 0o644); err != nil {
		a.logger.Warn("writing utterance dump", "path", name, "error", err)
	}
}

// appendHistory logs the turn, best effort.
func (a *App) appendHistory(ctx context.Context, turn history.Turn) {
	if a.p.History == nil {
		return
	}
	if err := a.p.History.Append(ctx, turn); err != nil {
		a.logger.Warn("appending turn to history", "error", err)
	}
}
