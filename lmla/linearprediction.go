package lmla

// LinearPrediction is a small online bucketed-regression accumulator: it
// bins (key, value) observations into fixed-width buckets over [0, maxKey)
// and predicts a value at an arbitrary key by interpolating between the
// nearest non-empty buckets. It seeds sparse-hash capacity estimates from
// the observed per-history node-count distribution instead of fixing a
// single global ratio.
type LinearPrediction struct {
	maxKey   uint32
	recorded []predictionStat
}

type predictionStat struct {
	count uint32
	sum   uint32
}

// NewLinearPrediction returns a predictor with the given number of bins
// over keys in [0, maxKey).
func NewLinearPrediction(bins, maxKey uint32) *LinearPrediction {
	return &LinearPrediction{
		maxKey:   maxKey,
		recorded: make([]predictionStat, bins),
	}
}

func (p *LinearPrediction) bucket(key uint32) uint32 {
	return (key * uint32(len(p.recorded))) / p.maxKey
}

// Add records one (key, value) observation.
func (p *LinearPrediction) Add(key, value uint32) {
	pos := p.bucket(key)
	p.recorded[pos].count++
	p.recorded[pos].sum += value
}

// TotalCount returns the number of observations recorded across all bins.
func (p *LinearPrediction) TotalCount() uint32 {
	var total uint32
	for _, s := range p.recorded {
		total += s.count
	}
	return total
}

// Predict estimates the value at key by averaging the nearest non-empty
// bins on either side of key's own bin (or returning the one available
// bin's average, or 0 if nothing has been recorded).
func (p *LinearPrediction) Predict(key uint32) uint32 {
	pos := int(p.bucket(key))
	lower, higher := pos, pos

	for lower > 0 && p.recorded[lower].count == 0 {
		lower--
	}
	for higher < len(p.recorded)-1 && p.recorded[higher].count == 0 {
		higher++
	}

	lo, hi := p.recorded[lower], p.recorded[higher]
	switch {
	case hi.count != 0 && lo.count != 0 && higher != lower:
		return ((hi.sum/hi.count)*uint32(pos-lower) + (lo.sum/lo.count)*uint32(higher-pos)) / uint32(higher-lower)
	case lo.count != 0:
		return lo.sum / lo.count
	case hi.count != 0:
		return hi.sum / hi.count
	default:
		return 0
	}
}
