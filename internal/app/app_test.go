package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/earshot-dev/earshot/internal/config"
	"github.com/earshot-dev/earshot/internal/history"
	historymock "github.com/earshot-dev/earshot/internal/history/mock"
	"github.com/earshot-dev/earshot/internal/observe"
	"github.com/earshot-dev/earshot/pkg/audio"
	audiomock "github.com/earshot-dev/earshot/pkg/audio/mock"
	brainmock "github.com/earshot-dev/earshot/pkg/provider/brain/mock"
	sttmock "github.com/earshot-dev/earshot/pkg/provider/stt/mock"
	ttsmock "github.com/earshot-dev/earshot/pkg/provider/tts/mock"
	wakemock "github.com/earshot-dev/earshot/pkg/wake/mock"
)

const (
	frameLen   = 512
	sampleRate = 16000
)

var (
	ambient = audiomock.Tone(frameLen, 50)
	loud    = audiomock.Tone(frameLen, 1000)
	quiet   = audiomock.Tone(frameLen, 100)
)

func repeat(f audio.Frame, n int) []audio.Frame {
	out := make([]audio.Frame, n)
	for i := range out {
		out[i] = f
	}
	return out
}

func script(groups ...[]audio.Frame) []audio.Frame {
	var out []audio.Frame
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// speech is a capture-worthy utterance: a trigger plus voiced frames, then
// enough quiet to close it.
func speech() []audio.Frame {
	return script(repeat(loud, 8), repeat(quiet, 20))
}

type fixture struct {
	app     *App
	src     *audiomock.Source
	wake    *wakemock.Detector
	stt     *sttmock.Transcriber
	sttConv *sttmock.Transcriber
	brain   *brainmock.Brain
	speaker *ttsmock.Speaker
	history *historymock.Store
}

func newFixture(t *testing.T, src *audiomock.Source, tweaks ...func(*config.Config)) *fixture {
	t.Helper()

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	for _, tweak := range tweaks {
		tweak(cfg)
	}

	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	f := &fixture{
		src:     src,
		wake:    &wakemock.Detector{Len: frameLen},
		stt:     &sttmock.Transcriber{},
		brain:   &brainmock.Brain{},
		speaker: &ttsmock.Speaker{},
		history: &historymock.Store{},
	}
	f.app, err = New(cfg, Providers{
		Source:  src,
		Wake:    f.wake,
		STT:     f.stt,
		Brain:   f.brain,
		Speaker: f.speaker,
		Ack:     f.speaker,
		History: f.history,
	}, nil, metrics)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

func TestRunTurnFullExchange(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{
		Frames: speech(),
		Fill:   quiet,
		Len:    frameLen,
		Rate:   sampleRate,
	}
	f := newFixture(t, src)
	f.stt.Results = []string{"what time is it"}
	f.brain.Replies = []string{"It is noon."}

	if err := f.app.runTurn(context.Background()); err != nil {
		t.Fatalf("runTurn() error = %v", err)
	}

	if got := f.brain.Inputs; len(got) != 1 || got[0] != "what time is it" {
		t.Errorf("brain inputs = %v", got)
	}
	if got := f.speaker.Spoken; len(got) != 1 || got[0] != "It is noon." {
		t.Errorf("spoken = %v", got)
	}
	if f.app.state.Conversing() {
		t.Error("a plain statement should not hold the conversation open")
	}
	if len(f.history.Turns) != 1 {
		t.Fatalf("history has %d turns, want 1", len(f.history.Turns))
	}
	turn := f.history.Turns[0]
	if turn.Mode != "standby" || turn.HeldOpen || turn.Transcript != "what time is it" {
		t.Errorf("logged turn = %+v", turn)
	}
}

func TestRunTurnGenuineQuestionHoldsConversation(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{
		Frames: speech(),
		Fill:   quiet,
		Len:    frameLen,
		Rate:   sampleRate,
	}
	f := newFixture(t, src)
	f.stt.Results = []string{"play some music"}
	f.brain.Replies = []string{"Which artist would you like?"}

	if err := f.app.runTurn(context.Background()); err != nil {
		t.Fatalf("runTurn() error = %v", err)
	}
	if !f.app.state.Conversing() {
		t.Error("a genuine question should hold the conversation open")
	}
	if !f.history.Turns[0].HeldOpen {
		t.Error("logged turn should be held open")
	}
}

func TestRunTurnFallbackQuestionClosesConversation(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{
		Frames: speech(),
		Fill:   quiet,
		Len:    frameLen,
		Rate:   sampleRate,
	}
	f := newFixture(t, src)
	f.app.state.ReplyDelivered(true)
	f.stt.Results = []string{"mumble mumble"}
	f.brain.Replies = []string{"Mujhe samajh nahi aaya, dobara bolein?"}

	if err := f.app.runTurn(context.Background()); err != nil {
		t.Fatalf("runTurn() error = %v", err)
	}
	if f.app.state.Conversing() {
		t.Error("a fallback re-prompt must not hold the conversation open")
	}
}

func TestRunTurnConversingTimeoutSendsSentinel(t *testing.T) {
	t.Parallel()

	// Nothing but ambience: the follow-up window expires in silence.
	src := &audiomock.Source{Fill: ambient, Len: frameLen, Rate: sampleRate}
	f := newFixture(t, src)
	f.app.state.ReplyDelivered(true)
	f.brain.Replies = []string{"Theek hai, main yahin hoon."}

	if err := f.app.runTurn(context.Background()); err != nil {
		t.Fatalf("runTurn() error = %v", err)
	}
	if got := f.brain.Inputs; len(got) != 1 || got[0] != "__TIMEOUT__" {
		t.Errorf("brain inputs = %v, want the timeout sentinel", got)
	}
	if f.app.state.Conversing() {
		t.Error("timeout must close the conversation")
	}
	// The farewell is voiced.
	if len(f.speaker.Spoken) != 1 {
		t.Errorf("spoken = %v, want the farewell", f.speaker.Spoken)
	}
	// Closing the conversation wipes the brain's rolling context.
	if f.brain.Resets != 1 {
		t.Errorf("brain resets = %d, want 1", f.brain.Resets)
	}
}

func TestRunTurnStandbyTimeoutIsSilent(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{Fill: ambient, Len: frameLen, Rate: sampleRate}
	f := newFixture(t, src)

	if err := f.app.runTurn(context.Background()); err != nil {
		t.Fatalf("runTurn() error = %v", err)
	}
	if len(f.brain.Inputs) != 0 {
		t.Errorf("brain inputs = %v, want none after a standby timeout", f.brain.Inputs)
	}
	if len(f.speaker.Spoken) != 0 {
		t.Errorf("spoken = %v, want silence after a standby timeout", f.speaker.Spoken)
	}
}

func TestRunTurnShortTranscriptRetryBudget(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{
		Frames: script(speech(), repeat(quiet, 200), speech()),
		Fill:   quiet,
		Len:    frameLen,
		Rate:   sampleRate,
	}
	f := newFixture(t, src)
	f.app.state.ReplyDelivered(true)
	f.stt.Results = []string{"a", "x"}
	f.brain.Fallback = "Kuch sunai nahi diya, phir se bolein?"

	// First garbled follow-up: the brain is asked to re-prompt.
	if err := f.app.runTurn(context.Background()); err != nil {
		t.Fatalf("first runTurn() error = %v", err)
	}
	if got := f.brain.Inputs; len(got) != 1 || got[0] != "__EMPTY_STT__" {
		t.Fatalf("brain inputs after first garble = %v", got)
	}
	if !f.app.state.Conversing() {
		t.Fatal("conversation should survive the first garbled follow-up")
	}
	if f.brain.Resets != 0 {
		t.Errorf("brain resets = %d after a surviving re-prompt, want 0", f.brain.Resets)
	}

	// Second garbled follow-up exhausts the budget.
	if err := f.app.runTurn(context.Background()); err != nil {
		t.Fatalf("second runTurn() error = %v", err)
	}
	if got := f.brain.Inputs; len(got) != 2 || got[1] != "__TIMEOUT__" {
		t.Fatalf("brain inputs after second garble = %v", got)
	}
	if f.app.state.Conversing() {
		t.Error("conversation must close after the retry budget is spent")
	}
	if f.brain.Resets != 1 {
		t.Errorf("brain resets = %d, want 1 after the conversation closes", f.brain.Resets)
	}
}

func TestRunTurnRetryLimitFromConfig(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{
		Frames: speech(),
		Fill:   quiet,
		Len:    frameLen,
		Rate:   sampleRate,
	}
	f := newFixture(t, src, func(cfg *config.Config) {
		cfg.Conversation.MaxRetries = 1
	})
	f.app.state.ReplyDelivered(true)
	f.stt.Results = []string{"a"}
	f.brain.Fallback = "Achha, phir milte hain."

	// With a budget of one, the very first garbled follow-up closes the
	// conversation instead of re-prompting.
	if err := f.app.runTurn(context.Background()); err != nil {
		t.Fatalf("runTurn() error = %v", err)
	}
	if got := f.brain.Inputs; len(got) != 1 || got[0] != "__TIMEOUT__" {
		t.Errorf("brain inputs = %v, want an immediate timeout sentinel", got)
	}
	if f.app.state.Conversing() {
		t.Error("conversation must close once the configured budget is spent")
	}
}

func TestRunTurnCustomFallbackMarkers(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{
		Frames: speech(),
		Fill:   quiet,
		Len:    frameLen,
		Rate:   sampleRate,
	}
	f := newFixture(t, src, func(cfg *config.Config) {
		cfg.Conversation.FallbackMarkers = []string{"could you repeat"}
	})
	f.stt.Results = []string{"set an alarm"}
	f.brain.Replies = []string{"Sorry, could you repeat that?"}

	if err := f.app.runTurn(context.Background()); err != nil {
		t.Fatalf("runTurn() error = %v", err)
	}
	// The reply ends in a question mark but matches an operator-supplied
	// marker, so it must not hold the conversation open.
	if f.app.state.Conversing() {
		t.Error("a configured fallback phrase must not hold the conversation open")
	}
}

func TestRunTurnBrainFailureDegrades(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{
		Frames: speech(),
		Fill:   quiet,
		Len:    frameLen,
		Rate:   sampleRate,
	}
	f := newFixture(t, src)
	f.app.state.ReplyDelivered(true)
	f.stt.Results = []string{"hello there"}
	f.brain.Err = errors.New("backend unreachable")

	if err := f.app.runTurn(context.Background()); err != nil {
		t.Fatalf("runTurn() error = %v, collaborator failures must degrade", err)
	}
	if len(f.speaker.Spoken) != 0 {
		t.Errorf("spoken = %v, want nothing after a brain failure", f.speaker.Spoken)
	}
	if f.app.state.Conversing() {
		t.Error("a failed exchange must drop back to standby")
	}
}

func TestRunTurnDeviceErrorIsFatal(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{
		Err: &audio.DeviceError{Op: "read", Err: errors.New("unplugged")},
		Len: frameLen, Rate: sampleRate,
	}
	f := newFixture(t, src)

	err := f.app.runTurn(context.Background())
	var devErr *audio.DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("runTurn() error = %v, want a device error", err)
	}
}

func TestRunTurnConversingSTTFallback(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{
		Frames: speech(),
		Fill:   quiet,
		Len:    frameLen,
		Rate:   sampleRate,
	}
	f := newFixture(t, src)
	f.sttConv = &sttmock.Transcriber{Err: errors.New("cloud down")}
	f.app.p.STTConversing = f.sttConv
	f.app.state.ReplyDelivered(true)
	f.stt.Results = []string{"turn on the lights"}
	f.brain.Replies = []string{"Done."}

	if err := f.app.runTurn(context.Background()); err != nil {
		t.Fatalf("runTurn() error = %v", err)
	}
	if len(f.sttConv.Calls) != 1 {
		t.Errorf("conversing transcriber calls = %d, want 1", len(f.sttConv.Calls))
	}
	if got := f.brain.Inputs; len(got) != 1 || got[0] != "turn on the lights" {
		t.Errorf("brain inputs = %v, want the fallback transcript", got)
	}
}

func TestWakeSequencePlaysAckAndDrains(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{Fill: quiet, Len: frameLen, Rate: sampleRate}
	f := newFixture(t, src)

	if err := f.app.wakeSequence(context.Background()); err != nil {
		t.Fatalf("wakeSequence() error = %v", err)
	}
	if f.speaker.AckPlays != 1 {
		t.Errorf("ack plays = %d, want 1", f.speaker.AckPlays)
	}
	// Fixed drains of 25 and 50 plus two adaptive drains of 15 quiet
	// frames each.
	if src.Reads != 105 {
		t.Errorf("frames drained = %d, want 105", src.Reads)
	}
}

func TestRunFullCycleThenDeviceFailure(t *testing.T) {
	t.Parallel()

	// One full wake-to-reply cycle scripted end to end, then the device
	// dies, which must surface as Run's error.
	src := &audiomock.Source{
		Frames: script(
			repeat(quiet, 1),   // the frame the wake word completes in
			repeat(quiet, 105), // wake sequence drains
			speech(),
			repeat(quiet, 110), // reply and post-turn drains
		),
		Err:  &audio.DeviceError{Op: "read", Err: errors.New("unplugged")},
		Len:  frameLen,
		Rate: sampleRate,
	}
	f := newFixture(t, src)
	f.wake.FireAt = []int{0}
	f.stt.Results = []string{"what's the weather"}
	f.brain.Replies = []string{"Sunny."}

	err := f.app.Run(context.Background())
	var devErr *audio.DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("Run() error = %v, want the device error", err)
	}

	if f.speaker.Primed == "" {
		t.Error("ack cache was not primed at startup")
	}
	if f.speaker.AckPlays != 1 {
		t.Errorf("ack plays = %d, want 1", f.speaker.AckPlays)
	}
	if got := f.brain.Inputs; len(got) != 1 || got[0] != "what's the weather" {
		t.Errorf("brain inputs = %v", got)
	}
	if got := f.speaker.Spoken; len(got) != 1 || got[0] != "Sunny." {
		t.Errorf("spoken = %v", got)
	}
	if len(f.history.Turns) != 1 {
		t.Errorf("history turns = %d, want 1", len(f.history.Turns))
	}
}

func TestHandleTurnsServesRecentHistory(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{Fill: quiet, Len: frameLen, Rate: sampleRate}
	f := newFixture(t, src)
	f.history.Turns = []history.Turn{
		{Mode: "standby", Transcript: "first", Reply: "one"},
		{Mode: "conversing", Transcript: "second", Reply: "two"},
	}

	rec := httptest.NewRecorder()
	f.app.handleTurns(rec, httptest.NewRequest(http.MethodGet, "/turns?limit=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got []history.Turn
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(got) != 1 || got[0].Transcript != "second" {
		t.Errorf("turns = %+v, want the newest turn only", got)
	}

	rec = httptest.NewRecorder()
	f.app.handleTurns(rec, httptest.NewRequest(http.MethodGet, "/turns?limit=zero", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status for bad limit = %d, want 400", rec.Code)
	}
}

func TestNewRequiresProviders(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	_, err := New(cfg, Providers{}, nil, nil)
	if err == nil {
		t.Fatal("New() accepted empty providers")
	}
	for _, want := range []string{"audio source", "wake detector", "transcriber", "brain", "speaker"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}
