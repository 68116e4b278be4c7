package model

import "time"

// Credit pricing is tiered by per-segment duration. Longer clips cost more
// encode time downstream, so they bill higher per segment.
const (
	priceShort  = 5  // <= 30s
	priceMedium = 8  // <= 60s
	priceLong   = 12 // everything above
)

func PricePerSegment(segmentLength time.Duration) int64 {
	switch {
	case segmentLength <= 30*time.Second:
		return priceShort
	case segmentLength <= 60*time.Second:
		return priceMedium
	default:
		return priceLong
	}
}

// JobCost is the total credit reservation for a job configuration.
func JobCost(segmentCount int, segmentLength time.Duration) int64 {
	return int64(segmentCount) * PricePerSegment(segmentLength)
}
