package intent

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// vocab maps each intent to the canonical phrase offered as a hint. These
// are phrases the classifier is guaranteed to accept, so a user repeating
// the suggestion verbatim will match.
var vocab = []struct {
	intent Intent
	phrase string
}{
	{Time, "what time is it"},
	{Date, "what is the date"},
	{OpenTerminal, "open terminal"},
	{Screenshot, "take a screenshot"},
	{CreateFile, "create a file"},
	{OpenBrowser, "open browser"},
	{PlayMusic, "play music"},
	{VolumeUp, "volume up"},
	{VolumeDown, "volume down"},
	{Mute, "mute"},
	{Shutdown, "shut down"},
	{Restart, "restart"},
	{Sleep, "sleep"},
	{Calculator, "open calculator"},
	{Notepad, "open notepad"},
	{Help, "help"},
	{Stop, "stop"},
}

// SuggestOption is a functional option for configuring a [Suggester].
type SuggestOption func(*Suggester)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched phrase to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) SuggestOption {
	return func(s *Suggester) {
		s.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the suggester falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) SuggestOption {
	return func(s *Suggester) {
		s.fuzzyThreshold = threshold
	}
}

// Suggester guesses which command a transcript was probably aiming for.
// It exists purely as a logging aid for unknown transcripts: the spoken
// fallback response never changes based on its output, so a wrong guess
// costs nothing.
//
// Matching combines Double Metaphone phonetic codes (to survive recognizer
// sound-alike errors such as "mute" → "moot") with Jaro-Winkler ranking.
// All methods are safe for concurrent use — the Suggester is read-only
// after construction.
type Suggester struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewSuggester returns a [Suggester] configured with the supplied options.
func NewSuggester(opts ...SuggestOption) *Suggester {
	s := &Suggester{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// defaultSuggester backs the package-level [Suggest], mirroring [Classify].
var defaultSuggester = NewSuggester()

// Suggest proposes the canonical command phrase that text most plausibly
// garbles, using the default thresholds. See [Suggester.Suggest].
func Suggest(text string) (string, bool) {
	return defaultSuggester.Suggest(text)
}

// Suggest returns the canonical command phrase that text most plausibly
// garbles, with ok reporting whether any phrase scored above threshold.
// Callers should only invoke it for transcripts that classified as
// [Unknown].
func (s *Suggester) Suggest(text string) (phrase string, ok bool) {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return "", false
	}
	tokens := strings.Fields(lowered)
	inputCodes := codesForTokens(tokens)

	type candidate struct {
		phrase   string
		score    float64
		phonetic bool
	}
	var best candidate

	for _, v := range vocab {
		phraseTokens := strings.Fields(v.phrase)
		phraseCodes := codesForTokens(phraseTokens)
		phonetic := codesOverlap(inputCodes, phraseCodes)
		score := bestJWScore(tokens, phraseTokens, lowered, v.phrase)

		if phonetic {
			if score >= s.phoneticThreshold {
				if !best.phonetic || score > best.score {
					best = candidate{phrase: v.phrase, score: score, phonetic: true}
				}
			}
		} else if !best.phonetic {
			if score >= s.fuzzyThreshold && score > best.score {
				best = candidate{phrase: v.phrase, score: score}
			}
		}
	}

	if best.phrase == "" {
		return "", false
	}
	return best.phrase, true
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes (produced when a token is too short or has no
// consonants) are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, sec := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if sec != "" {
			codes[sec] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between the
// input and the phrase using three strategies: full strings, space-stripped
// strings, and the best pairwise token score. The pairwise pass is what
// lets a single garbled word ("scrinshot") line up with one token of a
// longer phrase.
func bestJWScore(inputTokens, phraseTokens []string, inputFull, phraseFull string) float64 {
	score := matchr.JaroWinkler(inputFull, phraseFull, false)

	if len(inputTokens) > 1 || len(phraseTokens) > 1 {
		c1 := strings.Join(inputTokens, "")
		c2 := strings.Join(phraseTokens, "")
		if s := matchr.JaroWinkler(c1, c2, false); s > score {
			score = s
		}
	}

	for _, it := range inputTokens {
		for _, pt := range phraseTokens {
			if s := matchr.JaroWinkler(it, pt, false); s > score {
				score = s
			}
		}
	}

	return score
}
