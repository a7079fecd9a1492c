package tokens

import "testing"

func TestRatios_For(t *testing.T) {
	r := NewRatios(map[string]float64{
		"default":       3,
		"claude":        3.5,
		"claude-3-opus": 3.2,
		"gpt":           4.2,
		"broken":        -1,
	})

	tests := []struct {
		model string
		want  float64
	}{
		{"claude", 3.5},
		{"claude-3-opus", 3.2},
		{"claude-3-opus-20240229", 3.2},
		{"claude-3-haiku", 3.5},
		{"gpt-4o", 4.2},
		{"llama", 3},
		{"broken", 3},
		{"", 3},
	}

	for _, tt := range tests {
		if got := r.For(tt.model); got != tt.want {
			t.Errorf("For(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestRatios_NoDefault(t *testing.T) {
	r := NewRatios(nil)
	if got := r.For("anything"); got != DefaultRatio {
		t.Errorf("expected fallback %v, got %v", DefaultRatio, got)
	}
}

func TestCount_RatioScaling(t *testing.T) {
	// 12 letters: 3 tokens at ratio 4, 6 at ratio 2.
	if got := count("abcdefghijkl", 4); got != 3 {
		t.Errorf("ratio 4: got %d, want 3", got)
	}
	if got := count("abcdefghijkl", 2); got != 6 {
		t.Errorf("ratio 2: got %d, want 6", got)
	}
}

func TestCount_CombiningMarksStayInWord(t *testing.T) {
	// "e" followed by a combining acute accent is one two-rune word.
	if got := count("é", 4); got != 1 {
		t.Errorf("got %d, want 1", got)
	}
}
