package tiering

import (
	"testing"

	"recruitment_backend/internal/leads/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fiveQuestions() []domain.Question {
	out := make([]domain.Question, 5)
	for i := range out {
		out[i] = domain.Question{Question: "q", CorrectAnswer: "Yes"}
	}
	return out
}

func TestCorrectIsIndexStable(t *testing.T) {
	answers := domain.AnswersOf("Yes", "No", "Unsure", "Yes", "No")

	got, err := Correct(answers, fiveQuestions(), 2, "Yes")
	require.NoError(t, err)

	require.Len(t, got.Answers, 5)
	for _, i := range []int{0, 1, 3, 4} {
		assert.Equal(t, *answers[i], *got.Answers[i], "index %d changed", i)
	}
	assert.Equal(t, "Yes", *got.Answers[2])
	require.NotNil(t, got.Previous)
	assert.Equal(t, "Unsure", *got.Previous)
	assert.Equal(t, "Unsure", *answers[2], "input must not be modified")
}

func TestCorrectPadsShortArrays(t *testing.T) {
	got, err := Correct(domain.AnswersOf("Yes"), fiveQuestions(), 3, "Yes")
	require.NoError(t, err)

	require.Len(t, got.Answers, 5)
	assert.Nil(t, got.Answers[1])
	assert.Nil(t, got.Previous)
	assert.Equal(t, "Yes", *got.Answers[3])
}

func TestCorrectRejectsOutOfRange(t *testing.T) {
	_, err := Correct(domain.AnswersOf("Yes"), fiveQuestions(), 5, "Yes")
	assert.Error(t, err)
	_, err = Correct(domain.AnswersOf("Yes"), fiveQuestions(), -1, "Yes")
	assert.Error(t, err)
}

func TestReclassifyAfterCorrection(t *testing.T) {
	answers := domain.AnswersOf("Yes", "Unsure")
	before, _ := Classify(answers, screener)
	require.Equal(t, TierGold, before.Tier)

	fixed, err := Correct(answers, screener, 1, "No")
	require.NoError(t, err)

	after, ok := Classify(fixed.Answers, screener)
	require.True(t, ok)
	assert.Equal(t, TierDiamond, after.Tier)
	assert.Equal(t, `Q2 "Prior treatment?": "Unsure" -> "No"`, fixed.Describe(screener))
}
