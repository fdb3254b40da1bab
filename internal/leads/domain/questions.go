package domain

import (
	"fmt"
	"strings"
)

// Question is one screener item with its expected answer.
type Question struct {
	Question      string `json:"question" yaml:"question"`
	CorrectAnswer string `json:"correct_answer" yaml:"correct_answer"`
}

// ValidateQuestions checks a screener list at the store boundary. Every
// item needs text and an expected answer of "Yes" or "No".
func ValidateQuestions(questions []Question) error {
	for i, q := range questions {
		if strings.TrimSpace(q.Question) == "" {
			return fmt.Errorf("question %d: text is empty", i)
		}
		if q.CorrectAnswer != "Yes" && q.CorrectAnswer != "No" {
			return fmt.Errorf("question %d: correct_answer must be Yes or No, got %q", i, q.CorrectAnswer)
		}
	}
	return nil
}

// SameQuestions reports whether two lists are identical item by item.
func SameQuestions(a, b []Question) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// CloneQuestions returns an independent copy.
func CloneQuestions(questions []Question) []Question {
	if questions == nil {
		return nil
	}
	out := make([]Question, len(questions))
	copy(out, questions)
	return out
}
