// Package cleanup normalizes raw transcript text for summarization:
// filler words, stutter, timestamp markers, and markdown decoration are
// stripped and whitespace is compacted. Clean is pure and idempotent on
// its own output.
package cleanup

import (
	"regexp"
	"strings"
)

var (
	// **[HH:MM:SS]** and [HH:MM:SS] and [12.3] timestamp forms.
	boldClockRE = regexp.MustCompile(`\*\*\[\d{2}:\d{2}:\d{2}(?:\.\d+)?\]\*\*\s*`)
	clockRE     = regexp.MustCompile(`\[\d{2}:\d{2}:\d{2}\]\s*`)
	secondsRE   = regexp.MustCompile(`\[\d+(?:\.\d+)?\]\s*`)

	imageRE = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkRE  = regexp.MustCompile(`\[[^\]]*\]\([^)]*\)`)

	// Whole-token matching only: "um" in "umbrella" must survive.
	englishFillerRE = regexp.MustCompile(`(?i)\b(?:um|uh|ah|er|hmm)\b`)

	// Japanese hesitation markers between CJK punctuation. RE2 has no
	// lookaround, so the surrounding punctuation is captured and restored.
	japaneseFillerRE = regexp.MustCompile(`([\x{3000}-\x{303F}])(?:えー|あのー|んー)([\x{3000}-\x{303F}])`)

	strayCommaRE   = regexp.MustCompile(`\s+([,.!?])`)
	doubledCommaRE = regexp.MustCompile(`,(?:\s*,)+`)
	whitespaceRE   = regexp.MustCompile(`\s+`)
)

// Clean normalizes raw transcript text. With keepTimestamps true, every
// timestamp marker in the input is preserved verbatim; with false, none
// remain in the output.
func Clean(raw string, keepTimestamps bool) string {
	text := raw

	if !keepTimestamps {
		text = boldClockRE.ReplaceAllString(text, "")
		text = clockRE.ReplaceAllString(text, "")
		text = secondsRE.ReplaceAllString(text, "")
	}

	text = imageRE.ReplaceAllString(text, "")
	text = linkRE.ReplaceAllString(text, "")

	text = removeFillers(text)
	text = removeStutter(text)

	text = strayCommaRE.ReplaceAllString(text, "$1")
	text = doubledCommaRE.ReplaceAllString(text, ",")
	text = whitespaceRE.ReplaceAllString(text, " ")

	// Restore speaker turns (>>) as paragraph breaks.
	text = strings.ReplaceAll(text, " >>", "\n\n>>")

	return strings.TrimSpace(text)
}

func removeFillers(text string) string {
	text = englishFillerRE.ReplaceAllString(text, "")

	// Adjacent Japanese fillers share a punctuation boundary, so a single
	// pass can leave some behind. Re-run until stable.
	for {
		next := japaneseFillerRE.ReplaceAllString(text, "$1$2")
		if next == text {
			return text
		}
		text = next
	}
}

// removeStutter collapses immediately repeated words ("the the" -> "the").
// Only plain word tokens are considered so punctuation-bearing tokens
// are never merged.
func removeStutter(text string) string {
	tokens := strings.Split(text, " ")
	out := tokens[:0]
	for _, tok := range tokens {
		if len(out) > 0 && isWord(tok) && strings.EqualFold(tok, out[len(out)-1]) {
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		return true
	}
	return false
}
