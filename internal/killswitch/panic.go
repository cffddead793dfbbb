package killswitch

import "strings"

// panicPhrases are fixed input strings recognized as an emergency stop in
// voice or text channels. Matching any of them pauses the system rather
// than killing it, so a misheard phrase stays recoverable.
var panicPhrases = []string{
	"stop everything",
	"emergency stop",
	"kill switch",
	"stop immediately",
	"abort everything",
	"cancel all",
	"panic",
	"stopp alles",
	"notfall stop",
	"abbrechen",
}

// DetectPanic reports whether the input contains a panic phrase, returning
// the matched phrase.
func DetectPanic(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, phrase := range panicPhrases {
		if strings.Contains(lower, phrase) {
			return phrase, true
		}
	}
	return "", false
}

// HandlePanic pauses the switch when the input contains a panic phrase.
// It returns true when a phrase was detected, regardless of whether the
// pause write succeeded.
func HandlePanic(text string, s *Switch) bool {
	if _, ok := DetectPanic(text); !ok {
		return false
	}
	_ = s.Pause()
	return true
}
