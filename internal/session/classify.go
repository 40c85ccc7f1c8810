package session

import "strings"

// defaultFallbackMarkers are phrases the brain uses when it could not
// understand the user. A reply containing one is a re-prompt, not a real
// question, and must not hold the conversation open.
var defaultFallbackMarkers = []string{
	"dobara bolein",
	"samajh nahi",
	"sunai nahi",
	"phir se bolein",
	"kuch sunai",
	"clear nahi",
}

// DefaultFallbackMarkers returns a copy of the built-in marker list.
func DefaultFallbackMarkers() []string {
	out := make([]string, len(defaultFallbackMarkers))
	copy(out, defaultFallbackMarkers)
	return out
}

// Classifier decides whether an assistant reply is a genuine question. The
// marker list comes from config so a persona with different confusion
// phrases can declare them.
type Classifier struct {
	markers []string
}

// NewClassifier builds a classifier over the given fallback markers,
// matched case-insensitively. An empty list falls back to
// [DefaultFallbackMarkers].
func NewClassifier(markers []string) Classifier {
	if len(markers) == 0 {
		markers = defaultFallbackMarkers
	}
	lower := make([]string, len(markers))
	for i, m := range markers {
		lower[i] = strings.ToLower(m)
	}
	return Classifier{markers: lower}
}

// GenuineQuestion reports whether the assistant's reply is a real question
// awaiting an answer. Only genuine questions keep the conversation open;
// fallback phrases asking the user to repeat themselves do not, even though
// they end in a question mark.
func (c Classifier) GenuineQuestion(reply string) bool {
	if !strings.Contains(reply, "?") {
		return false
	}
	lower := strings.ToLower(reply)
	for _, marker := range c.markers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

// GenuineQuestion classifies reply against the default marker list.
func GenuineQuestion(reply string) bool {
	return NewClassifier(nil).GenuineQuestion(reply)
}
