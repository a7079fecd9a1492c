package tokens

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// DefaultRatio is the characters-per-token ratio used when no model entry
// matches and the table has no "default" key.
const DefaultRatio = 4.0

// Ratios resolves a model name to its characters-per-token ratio.
//
// Resolution order is exact match, then the longest configured prefix,
// then the "default" key, then DefaultRatio.
type Ratios struct {
	exact    map[string]float64
	prefixes []string // longest first
	fallback float64
}

// NewRatios builds a resolver from a model table. Non-positive ratios are
// ignored.
func NewRatios(models map[string]float64) *Ratios {
	r := &Ratios{
		exact:    make(map[string]float64, len(models)),
		fallback: DefaultRatio,
	}
	for model, ratio := range models {
		if ratio <= 0 {
			continue
		}
		if model == "default" {
			r.fallback = ratio
			continue
		}
		r.exact[model] = ratio
		r.prefixes = append(r.prefixes, model)
	}
	sort.Slice(r.prefixes, func(i, j int) bool {
		if len(r.prefixes[i]) != len(r.prefixes[j]) {
			return len(r.prefixes[i]) > len(r.prefixes[j])
		}
		return r.prefixes[i] < r.prefixes[j]
	})
	return r
}

// For returns the ratio for model.
func (r *Ratios) For(model string) float64 {
	if ratio, ok := r.exact[model]; ok {
		return ratio
	}
	for _, prefix := range r.prefixes {
		if strings.HasPrefix(model, prefix) {
			return r.exact[prefix]
		}
	}
	return r.fallback
}

// Estimate applies the heuristic to text using the ratio for model.
// It is the uncached reference the Counter agrees with.
func (r *Ratios) Estimate(text, model string) (int, error) {
	if err := validate(text, model); err != nil {
		return 0, err
	}
	return count(text, r.For(model)), nil
}

// count applies the heuristic to text at the given ratio.
// text must be valid UTF-8.
func count(text string, ratio float64) int {
	total := 0
	run := 0

	flush := func() {
		if run > 0 {
			total += int(math.Ceil(float64(run) / ratio))
			run = 0
		}
	}

	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case isIdeographic(r):
			flush()
			total++
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r):
			run++
		default:
			flush()
			total++
		}
	}
	flush()

	return total
}

// isIdeographic reports whether r belongs to a script that is tokenized
// roughly one token per character.
func isIdeographic(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}
