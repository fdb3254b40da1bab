// Package tiering scores screener answers against a protocol's expected
// answers. Tiers are derived on every read and never stored.
package tiering

import (
	"fmt"
	"strings"

	"recruitment_backend/internal/leads/domain"
)

type Tier string

const (
	TierDiamond  Tier = "diamond"
	TierGold     Tier = "gold"
	TierSilver   Tier = "silver"
	TierMismatch Tier = "mismatch"
)

var tierLabels = map[Tier]string{
	TierDiamond:  "Perfect Match",
	TierGold:     "Likely Match",
	TierSilver:   "Needs Review",
	TierMismatch: "Potential Mismatch",
}

// Label is the board display name, e.g. "Perfect Match".
func (t Tier) Label() string { return tierLabels[t] }

// ParseTier accepts the lower-case tier key.
func ParseTier(raw string) (Tier, bool) {
	t := Tier(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := tierLabels[t]
	return t, ok
}

// SilverMaxMismatchRate is the highest wrong/total ratio still worth a review.
const SilverMaxMismatchRate = 0.20

// Result is a classification with its counts.
type Result struct {
	Tier    Tier   `json:"tier"`
	Label   string `json:"label"`
	Detail  string `json:"detail"`
	Correct int    `json:"correct"`
	Unsure  int    `json:"unsure"`
	Wrong   int    `json:"wrong"`
	Total   int    `json:"total"`
}

// Classify compares answers[i] with questions[i].CorrectAnswer by exact
// string equality. A non-matching answer that mentions "know" or "unsure"
// counts as unsure, anything else (including a missing answer) as wrong.
// The second return is false when either list is empty.
func Classify(answers []*string, questions []domain.Question) (Result, bool) {
	if len(questions) == 0 || len(answers) == 0 {
		return Result{}, false
	}

	var correct, unsure, wrong int
	for i, q := range questions {
		var answer *string
		if i < len(answers) {
			answer = answers[i]
		}
		switch {
		case answer != nil && *answer == q.CorrectAnswer:
			correct++
		case answer != nil && isUnsure(*answer):
			unsure++
		default:
			wrong++
		}
	}

	total := len(questions)
	tier := tierFor(wrong, unsure, float64(wrong)/float64(total))
	return Result{
		Tier:    tier,
		Label:   tier.Label(),
		Detail:  detail(correct, unsure, wrong, total),
		Correct: correct,
		Unsure:  unsure,
		Wrong:   wrong,
		Total:   total,
	}, true
}

func tierFor(wrong, unsure int, mismatchRate float64) Tier {
	switch {
	case wrong == 0 && unsure == 0:
		return TierDiamond
	case wrong == 0:
		return TierGold
	case mismatchRate <= SilverMaxMismatchRate:
		return TierSilver
	default:
		return TierMismatch
	}
}

func isUnsure(answer string) bool {
	lower := strings.ToLower(answer)
	return strings.Contains(lower, "know") || strings.Contains(lower, "unsure")
}

func detail(correct, unsure, wrong, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d Met", correct, total)
	if unsure > 0 {
		fmt.Fprintf(&b, ", %d Unsure", unsure)
	}
	if wrong > 0 {
		fmt.Fprintf(&b, ", %d Wrong", wrong)
	}
	return b.String()
}
