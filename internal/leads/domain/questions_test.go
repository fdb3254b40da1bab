package domain

import "testing"

func TestValidateQuestions(t *testing.T) {
	valid := []Question{{Question: "Age 18-65?", CorrectAnswer: "Yes"}, {Question: "Prior treatment?", CorrectAnswer: "No"}}
	if err := ValidateQuestions(valid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateQuestions(nil); err != nil {
		t.Fatalf("empty list is valid: %v", err)
	}

	invalid := [][]Question{
		{{Question: "", CorrectAnswer: "Yes"}},
		{{Question: "Smoker?", CorrectAnswer: "yes"}},
		{{Question: "Smoker?", CorrectAnswer: "Maybe"}},
	}
	for _, qs := range invalid {
		if err := ValidateQuestions(qs); err == nil {
			t.Errorf("expected %+v to be rejected", qs)
		}
	}
}

func TestQuestionsForPrefersClaimOverride(t *testing.T) {
	trial := Trial{Questions: []Question{{Question: "A?", CorrectAnswer: "Yes"}}}
	claim := &Claim{QuestionsOverride: []Question{{Question: "B?", CorrectAnswer: "No"}}}

	if got := trial.QuestionsFor(claim); got[0].Question != "B?" {
		t.Errorf("expected override, got %+v", got)
	}
	if got := trial.QuestionsFor(nil); got[0].Question != "A?" {
		t.Errorf("expected protocol list, got %+v", got)
	}
	if got := trial.QuestionsFor(&Claim{}); got[0].Question != "A?" {
		t.Errorf("empty override falls back, got %+v", got)
	}
}

func TestCloneAnswersDoesNotAlias(t *testing.T) {
	original := AnswersOf("Yes", "No")
	original = append(original, nil)
	clone := CloneAnswers(original)
	*clone[0] = "No"

	if *original[0] != "Yes" {
		t.Fatal("clone aliased original entry")
	}
	if clone[2] != nil {
		t.Fatal("absent answer should stay absent")
	}
}

func TestSiteAddress(t *testing.T) {
	site := SiteLocation{Facility: "Mercy Clinic", City: "Austin", State: "TX", Zip: "78701"}
	if got := site.Address(); got != "Mercy Clinic, Austin, TX 78701" {
		t.Errorf("Address() = %q", got)
	}
	if got := (SiteLocation{City: "Austin"}).Address(); got != "Austin" {
		t.Errorf("Address() = %q", got)
	}
}
