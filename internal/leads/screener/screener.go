// Package screener loads protocol screeners from YAML documents.
package screener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"recruitment_backend/internal/leads/domain"

	"gopkg.in/yaml.v3"
)

// File is the import document.
//
//	trials:
//	  - id: NCT05501234
//	    title: Migraine prevention study
//	    central_contact: {name: Study desk, phone: "+15125550100"}
//	    questions:
//	      - question: Have you been diagnosed with migraine?
//	        correct_answer: "Yes"
type File struct {
	Trials []TrialDoc `yaml:"trials"`
}

type TrialDoc struct {
	ID             string            `yaml:"id"`
	Title          string            `yaml:"title"`
	CentralContact *ContactDoc       `yaml:"central_contact"`
	Questions      []domain.Question `yaml:"questions"`
}

type ContactDoc struct {
	Name  string `yaml:"name"`
	Role  string `yaml:"role"`
	Email string `yaml:"email"`
	Phone string `yaml:"phone"`
}

// TrialWriter stores a protocol with its screener.
type TrialWriter interface {
	UpsertTrial(ctx context.Context, trial domain.Trial) error
}

// Parse decodes and validates a screener document. Question text and ids
// are trimmed. Duplicate ids are rejected.
func Parse(r io.Reader) ([]domain.Trial, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode screener file: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Trials))
	trials := make([]domain.Trial, 0, len(file.Trials))
	for i, doc := range file.Trials {
		id := strings.TrimSpace(doc.ID)
		if id == "" {
			return nil, fmt.Errorf("trial %d: id is empty", i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("trial %s: listed twice", id)
		}
		seen[id] = struct{}{}

		questions := make([]domain.Question, len(doc.Questions))
		for j, q := range doc.Questions {
			questions[j] = domain.Question{Question: strings.TrimSpace(q.Question), CorrectAnswer: strings.TrimSpace(q.CorrectAnswer)}
		}
		if err := domain.ValidateQuestions(questions); err != nil {
			return nil, fmt.Errorf("trial %s: %w", id, err)
		}

		trial := domain.Trial{ID: id, Title: strings.TrimSpace(doc.Title), Questions: questions}
		if c := doc.CentralContact; c != nil {
			contact := domain.Contact{Name: c.Name, Role: c.Role, Email: c.Email, Phone: c.Phone}
			if !contact.IsEmpty() {
				trial.CentralContact = &contact
			}
		}
		trials = append(trials, trial)
	}
	return trials, nil
}

// Import writes every trial and stops at the first failure.
func Import(ctx context.Context, w TrialWriter, trials []domain.Trial) (int, error) {
	for i, trial := range trials {
		if err := w.UpsertTrial(ctx, trial); err != nil {
			return i, fmt.Errorf("upsert %s: %w", trial.ID, err)
		}
	}
	return len(trials), nil
}
