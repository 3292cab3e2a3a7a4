// internal/service/intent/score.go
package intent

import (
	"strings"

	"pasturelink-service/internal/domain/buyer"
)

// Signals are the buyer-submitted inputs the scorer reads. Scoring is pure:
// the same signals always produce the same score, and the score is computed
// exactly once at submission time.
type Signals struct {
	Interests  []string
	OrderType  string
	BudgetBand string
	Notes      string
	Phone      string
	Email      string
}

const (
	interestBeef  = "beef"
	interestAll   = "all"
	interestMerch = "merch"
)

// Score computes the additive purchase-intent score, floored at zero.
func Score(sig Signals) int {
	score := 0

	hasBeef := hasInterest(sig.Interests, interestBeef)
	hasAll := hasInterest(sig.Interests, interestAll)
	hasMerch := hasInterest(sig.Interests, interestMerch)

	if hasBeef {
		score += 30
	}
	if hasAll {
		score += 15
	}
	if hasMerch && !hasBeef && !hasAll {
		score -= 10
	}

	switch strings.ToLower(sig.OrderType) {
	case buyer.OrderWhole:
		score += 30
	case buyer.OrderHalf:
		score += 20
	case buyer.OrderQuarter:
		score += 10
	}

	switch sig.BudgetBand {
	case buyer.BudgetOver2000:
		score += 25
	case buyer.Budget1000To2000:
		score += 20
	case buyer.Budget500To1000:
		score += 10
	}

	if len(strings.TrimSpace(sig.Notes)) > 20 {
		score += 15
	}

	if strings.TrimSpace(sig.Phone) != "" && strings.TrimSpace(sig.Email) != "" {
		score += 10
	}

	if score < 0 {
		score = 0
	}
	return score
}

// Classify buckets a score into its intent classification.
func Classify(score int) buyer.IntentClass {
	switch {
	case score >= 60:
		return buyer.IntentHigh
	case score >= 30:
		return buyer.IntentMedium
	default:
		return buyer.IntentLow
	}
}

// SegmentOf derives the buyer segment from declared interests, independent
// of the score: anyone interested in beef (or everything) is a beef buyer.
func SegmentOf(interests []string) buyer.Segment {
	if hasInterest(interests, interestBeef) || hasInterest(interests, interestAll) {
		return buyer.SegmentBeefBuyer
	}
	return buyer.SegmentCommunity
}

func hasInterest(interests []string, want string) bool {
	for _, i := range interests {
		if strings.EqualFold(strings.TrimSpace(i), want) {
			return true
		}
	}
	return false
}
