package scoring

import "math/rand"

// Decisions proposed by the resolution policy.
const (
	DecisionApprove      = "Approve"
	DecisionManualReview = "Manual Review"
	DecisionReject       = "Reject"
)

// Resolution types proposed by the resolution policy.
const (
	ResolutionFullRefund    = "Full Refund"
	ResolutionPartialRefund = "Partial Refund"
	ResolutionManualReview  = "Manual Review Required"
	ResolutionDenyRefund    = "Deny Refund"
)

// Score thresholds, evaluated from the top.
const (
	fullRefundThreshold    = 80
	partialRefundThreshold = 60
	manualReviewThreshold  = 40
)

// PolicyOutcome is the decision, remedy, and amount proposed for a refund score.
type PolicyOutcome struct {
	Decision       string  `json:"decision"`
	ResolutionType string  `json:"resolution_type"`
	ProposedAmount float64 `json:"proposed_amount"`
}

// Decide maps a refund score onto the resolution policy. The generator is only
// consulted for partial refunds, where the amount is a random share of 30-70%
// of the dispute value. The proposed amount never exceeds the dispute value.
func Decide(score int, disputeValue float64, r *rand.Rand) PolicyOutcome {
	switch {
	case score >= fullRefundThreshold:
		return PolicyOutcome{Decision: DecisionApprove, ResolutionType: ResolutionFullRefund, ProposedAmount: disputeValue}
	case score >= partialRefundThreshold:
		share := uniform(r, 0.3, 0.7)
		amount := roundCents(disputeValue * share)
		if amount > disputeValue {
			amount = disputeValue
		}
		return PolicyOutcome{Decision: DecisionApprove, ResolutionType: ResolutionPartialRefund, ProposedAmount: amount}
	case score >= manualReviewThreshold:
		return PolicyOutcome{Decision: DecisionManualReview, ResolutionType: ResolutionManualReview}
	default:
		return PolicyOutcome{Decision: DecisionReject, ResolutionType: ResolutionDenyRefund}
	}
}
