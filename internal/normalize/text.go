package normalize

import (
	"strings"
	"unicode"
)

const maxQuestionRunes = 200

var questionPrefixes = []string{"Will ", "Does ", "Did ", "Is ", "Are ", "Has ", "Have "}

// PrimaryQuestion reduces a market title to the simplified question used for
// cross-exchange pairing: the first leading interrogative is removed, trailing
// question marks are stripped, and the result is capped at 200 characters.
func PrimaryQuestion(title string) string {
	q := strings.TrimSpace(title)
	for _, p := range questionPrefixes {
		if strings.HasPrefix(q, p) {
			q = q[len(p):]
			break
		}
	}
	q = strings.TrimSpace(strings.TrimRight(q, "?"))

	if r := []rune(q); len(r) > maxQuestionRunes {
		q = string(r[:maxQuestionRunes]) + "..."
	}
	return q
}

// slugDropper removes characters that join words rather than separate them
// and spells out ampersands.
var slugDropper = strings.NewReplacer("'", "", "\u2019", "", ".", "", "&", " and ")

// Slug builds a lowercase, dash-separated slug from s keeping at most
// maxWords words. maxWords <= 0 keeps every word.
func Slug(s string, maxWords int) string {
	s = slugDropper.Replace(strings.ToLower(s))

	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if maxWords > 0 && len(words) > maxWords {
		words = words[:maxWords]
	}
	return strings.Join(words, "-")
}

// ContainsFold reports whether needle occurs in any of haystacks, ignoring
// case. An empty needle matches everything.
func ContainsFold(needle string, haystacks ...string) bool {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return true
	}
	for _, h := range haystacks {
		if strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}
