package session

import "testing"

func TestGenuineQuestion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply string
		want  bool
	}{
		{
			name:  "plain statement",
			reply: "Aaj mausam acha hai.",
			want:  false,
		},
		{
			name:  "real question",
			reply: "Kaunsa gaana sunna chahenge aap?",
			want:  true,
		},
		{
			name:  "english question",
			reply: "Should I set the alarm for 7?",
			want:  true,
		},
		{
			name:  "fallback reprompt with question mark",
			reply: "Mujhe kuch sunai nahi diya, dobara bolein?",
			want:  false,
		},
		{
			name:  "fallback marker in mixed case",
			reply: "Samajh NAHI aaya, phir se?",
			want:  false,
		},
		{
			name:  "clarity fallback",
			reply: "Aawaz clear nahi hai?",
			want:  false,
		},
		{
			name:  "empty reply",
			reply: "",
			want:  false,
		},
		{
			name:  "question mark mid sentence",
			reply: "Theek hai? Main kar deti hoon.",
			want:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := GenuineQuestion(tt.reply); got != tt.want {
				t.Errorf("GenuineQuestion(%q) = %v, want %v", tt.reply, got, tt.want)
			}
		})
	}
}

func TestClassifierCustomMarkers(t *testing.T) {
	t.Parallel()

	c := NewClassifier([]string{"Could You Repeat", "didn't catch"})

	// Custom markers replace the built-ins and match case-insensitively.
	if c.GenuineQuestion("Sorry, could you REPEAT that?") {
		t.Error("GenuineQuestion() = true for a reply containing a custom marker")
	}
	if c.GenuineQuestion("I didn't catch that, once more?") {
		t.Error("GenuineQuestion() = true for a reply containing a custom marker")
	}
	// A built-in marker is no longer special under a custom list.
	if !c.GenuineQuestion("Kya aap samajh nahi paaye ki alarm kab bajna hai?") {
		t.Error("GenuineQuestion() = false for a built-in marker not in the custom list")
	}
}

func TestClassifierEmptyListUsesDefaults(t *testing.T) {
	t.Parallel()

	c := NewClassifier(nil)
	if c.GenuineQuestion("Kuch sunai nahi diya, dobara bolein?") {
		t.Error("GenuineQuestion() = true for a default fallback phrase")
	}
	if !c.GenuineQuestion("Should I set the alarm for 7?") {
		t.Error("GenuineQuestion() = false for a real question")
	}
}
