package scoring

// Tier is the user-facing classification of a composite score.
type Tier string

const (
	TierNovice     Tier = "NOVICE"
	TierApprentice Tier = "APPRENTICE"
	TierTrusted    Tier = "TRUSTED"
	TierExpert     Tier = "EXPERT"
	TierLegendary  Tier = "LEGENDARY"
)

// tierFloors lists each tier's inclusive lower bound in ascending order.
// The partition is closed-open and covers [0,5] with no gaps; the top tier
// additionally includes 5.0 itself.
var tierFloors = []struct {
	tier  Tier
	floor float64
}{
	{TierNovice, 0.0},
	{TierApprentice, 1.5},
	{TierTrusted, 2.5},
	{TierExpert, 3.5},
	{TierLegendary, 4.5},
}

// TierFor classifies a composite score.
func TierFor(composite float64) Tier {
	t := tierFloors[0].tier
	for _, b := range tierFloors {
		if composite >= b.floor {
			t = b.tier
		}
	}
	return t
}

// NextTier returns the smallest tier strictly above the given composite and
// its threshold. ok is false when the score is already in the top tier.
func NextTier(composite float64) (tier Tier, threshold float64, ok bool) {
	for _, b := range tierFloors {
		if composite < b.floor {
			return b.tier, b.floor, true
		}
	}
	return "", 0, false
}
