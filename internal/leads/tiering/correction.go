package tiering

import (
	"fmt"

	"recruitment_backend/internal/leads/domain"
)

// Correction is an answer list rebuilt with one index replaced.
type Correction struct {
	Index    int
	Previous *string
	Value    string
	Answers  []*string
}

// Describe renders the audit detail, e.g. `Q3 "Prior treatment?": "Unsure" -> "No"`.
func (c Correction) Describe(questions []domain.Question) string {
	label := fmt.Sprintf("Q%d", c.Index+1)
	if c.Index < len(questions) {
		label = fmt.Sprintf("%s %q", label, questions[c.Index].Question)
	}
	previous := "(no answer)"
	if c.Previous != nil {
		previous = fmt.Sprintf("%q", *c.Previous)
	}
	return fmt.Sprintf("%s: %s -> %q", label, previous, c.Value)
}

// Correct rebuilds answers with index set to value. Every other index keeps
// its value and the input slice is not modified. The result is padded with
// absent answers up to len(questions) so a short array can be corrected at
// any screener index.
func Correct(answers []*string, questions []domain.Question, index int, value string) (Correction, error) {
	size := len(answers)
	if len(questions) > size {
		size = len(questions)
	}
	if index < 0 || index >= len(questions) {
		return Correction{}, fmt.Errorf("answer index %d out of range for %d questions", index, len(questions))
	}

	rebuilt := make([]*string, size)
	copy(rebuilt, domain.CloneAnswers(answers))

	var previous *string
	if rebuilt[index] != nil {
		p := *rebuilt[index]
		previous = &p
	}
	v := value
	rebuilt[index] = &v

	return Correction{Index: index, Previous: previous, Value: value, Answers: rebuilt}, nil
}
