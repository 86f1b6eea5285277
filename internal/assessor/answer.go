package assessor

import (
	"strconv"
	"strings"

	"github.com/abhisek/jeseci/internal/content"
)

// checkStructured compares a learner answer against the answer key.
//
// Normalization rules:
//   - surrounding whitespace is trimmed and inner runs collapse to one space
//   - comparison is case-insensitive
//   - true/false accepts any strconv.ParseBool spelling plus yes/no
//   - code output compares numerically when both sides parse as numbers
//   - multiple choice matches the choice text or its 1-based index
func checkStructured(answer string, q content.Question) bool {
	answer = normalize(answer)
	if answer == "" {
		return false
	}
	key := normalize(q.Answer)

	switch q.Type {
	case content.QuestionMultipleChoice:
		if idx, err := strconv.Atoi(answer); err == nil && idx >= 1 && idx <= len(q.Choices) {
			return normalize(q.Choices[idx-1]) == key
		}
		return answer == key

	case content.QuestionTrueFalse:
		got, ok := parseBool(answer)
		if !ok {
			return false
		}
		want, ok := parseBool(key)
		return ok && got == want

	case content.QuestionCodeOutput:
		if a, err := strconv.ParseFloat(answer, 64); err == nil {
			if k, err := strconv.ParseFloat(key, 64); err == nil {
				return a == k
			}
		}
		return answer == key
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func parseBool(s string) (bool, bool) {
	switch s {
	case "yes", "y":
		return true, true
	case "no", "n":
		return false, true
	}
	b, err := strconv.ParseBool(s)
	return b, err == nil
}
