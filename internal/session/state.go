// Package session tracks the conversation state across turns: whether the
// assistant is waiting for a wake word or holding an open conversation, and
// how many garbled exchanges it tolerates before giving up.
package session

import (
	"github.com/earshot-dev/earshot/pkg/provider/brain"
)

// Mode is the top-level conversation mode.
type Mode int

const (
	// Standby means the assistant only reacts to the wake word.
	Standby Mode = iota
	// Conversing means a question is pending and the next utterance is
	// taken without a wake word.
	Conversing
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case Standby:
		return "standby"
	case Conversing:
		return "conversing"
	default:
		return "unknown"
	}
}

// DefaultMaxRetries is how many unintelligible exchanges an open
// conversation survives before the assistant goes back to standby.
const DefaultMaxRetries = 2

// State is the conversation state machine. It is not safe for concurrent
// use; the pipeline has a single control goroutine.
type State struct {
	mode       Mode
	retries    int
	maxRetries int
}

// New creates a State in standby. maxRetries <= 0 falls back to
// [DefaultMaxRetries].
func New(maxRetries int) *State {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &State{maxRetries: maxRetries}
}

// Mode returns the current mode.
func (s *State) Mode() Mode { return s.mode }

// Conversing reports whether a conversation is open.
func (s *State) Conversing() bool { return s.mode == Conversing }

// Retries returns the current garbled-exchange count.
func (s *State) Retries() int { return s.retries }

// NoSpeech handles a capture that heard nothing. In a conversation the user
// has walked away: the state drops to standby and the returned sentinel
// must be delivered to the brain so it can close out. In standby it is a
// non-event and the sentinel is empty.
func (s *State) NoSpeech() string {
	if s.mode != Conversing {
		return ""
	}
	s.reset()
	return brain.SentinelTimeout
}

// EmptyTranscript handles a capture whose transcript was too short to mean
// anything. In standby the wake was noise and is silently ignored. In a
// conversation the retry budget decides: within budget the brain is asked
// to re-prompt the user, past it the conversation is closed out.
func (s *State) EmptyTranscript() string {
	if s.mode != Conversing {
		return ""
	}
	s.retries++
	if s.retries >= s.maxRetries {
		s.reset()
		return brain.SentinelTimeout
	}
	return brain.SentinelEmptySTT
}

// GoodTranscript resets the retry budget once a real transcript arrives.
func (s *State) GoodTranscript() {
	s.retries = 0
}

// ReplyDelivered records the outcome of a completed exchange: a genuine
// question from the assistant holds the conversation open, anything else
// drops back to standby.
func (s *State) ReplyDelivered(genuineQuestion bool) {
	if genuineQuestion {
		s.mode = Conversing
	} else {
		s.mode = Standby
	}
	s.retries = 0
}

// Abort drops to standby unconditionally, e.g. when a collaborator failed
// mid-turn.
func (s *State) Abort() {
	s.reset()
}

func (s *State) reset() {
	s.mode = Standby
	s.retries = 0
}
