package mbr

// CostFunction scores the three edit operations of windowed Levenshtein
// alignment. hyp/ref name the operands the way the decoder uses them:
// hyp is a label drawn from the posterior-weighted hypothesis path
// being marginalized over, ref is a label from the candidate output
// sequence under evaluation.
type CostFunction interface {
	Sub(hyp, ref Label) float64
	Ins(hyp Label) float64
	Del(ref Label) float64
}

// KroneckerCost is the default edit cost: substitution costs 1 unless
// the labels match, insertion and deletion cost 1 unless the label is
// Epsilon.
type KroneckerCost struct{}

func (KroneckerCost) Sub(hyp, ref Label) float64 {
	if hyp == ref {
		return 0
	}
	return 1
}

func (KroneckerCost) Ins(hyp Label) float64 {
	if hyp == Epsilon {
		return 0
	}
	return 1
}

func (KroneckerCost) Del(ref Label) float64 {
	if ref == Epsilon {
		return 0
	}
	return 1
}
