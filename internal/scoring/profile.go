package scoring

// Customer segments produced by the profile generator.
const (
	SegmentNew         = "new"
	SegmentRegular     = "regular"
	SegmentVIP         = "vip"
	SegmentProblematic = "problematic"
)

var segments = []string{SegmentNew, SegmentRegular, SegmentVIP, SegmentProblematic}

var (
	baseSegmentWeights      = []float64{0.3, 0.4, 0.2, 0.1}
	highValueSegmentWeights = []float64{0.1, 0.4, 0.4, 0.1}
)

// CustomerProfile is a synthetic behavioural profile derived from the customer identity.
// It is never persisted; the same identity and amount always yield the same profile.
type CustomerProfile struct {
	Segment      string  `json:"segment"`
	OrderHistory int     `json:"order_history"`
	RefundRatio  float64 `json:"refund_ratio"`
	LoyaltyScore int     `json:"loyalty_score"`
	RiskSignals  int     `json:"risk_signals"`
}

type segmentRanges struct {
	orders      [2]int
	refundRatio [2]float64
	loyalty     [2]int
	riskSignals [2]int
}

var profileRanges = map[string]segmentRanges{
	SegmentNew:         {orders: [2]int{1, 3}, refundRatio: [2]float64{0.0, 0.1}, loyalty: [2]int{20, 40}, riskSignals: [2]int{0, 2}},
	SegmentRegular:     {orders: [2]int{5, 20}, refundRatio: [2]float64{0.05, 0.15}, loyalty: [2]int{60, 85}, riskSignals: [2]int{0, 1}},
	SegmentVIP:         {orders: [2]int{15, 50}, refundRatio: [2]float64{0.02, 0.08}, loyalty: [2]int{85, 100}, riskSignals: [2]int{0, 0}},
	SegmentProblematic: {orders: [2]int{3, 10}, refundRatio: [2]float64{0.25, 0.50}, loyalty: [2]int{10, 30}, riskSignals: [2]int{2, 5}},
}

// GenerateProfile derives a customer profile from the identity and dispute amount.
// The draw order is segment, order history, refund ratio, loyalty, risk signals;
// changing it changes every profile generated for an existing seed.
func GenerateProfile(identity string, amount float64) CustomerProfile {
	r := newRand(profileSeed(identity))

	weights := baseSegmentWeights
	if amount > 200 {
		weights = highValueSegmentWeights
	}
	segment := weightedChoice(r.Float64(), segments, weights)
	ranges := profileRanges[segment]

	profile := CustomerProfile{Segment: segment}
	profile.OrderHistory = randInt(r, ranges.orders[0], ranges.orders[1])
	profile.RefundRatio = uniform(r, ranges.refundRatio[0], ranges.refundRatio[1])
	profile.LoyaltyScore = randInt(r, ranges.loyalty[0], ranges.loyalty[1])
	if segment != SegmentVIP {
		profile.RiskSignals = randInt(r, ranges.riskSignals[0], ranges.riskSignals[1])
	}
	return profile
}

// profileSeed hashes the identity exactly as given; callers normalize it before storage.
func profileSeed(identity string) uint32 {
	return contentSeed(identity) % 1000
}

func weightedChoice(u float64, options []string, weights []float64) string {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	target := u * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if target < acc {
			return options[i]
		}
	}
	return options[len(options)-1]
}
