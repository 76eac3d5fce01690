package phonetic

import (
	"github.com/antzucaro/matchr"
	"github.com/rwthsearch/asrsearch/mbr"
)

// Cost is a mbr.CostFunction that scores a substitution between two
// distinct words by their phonetic and orthographic similarity rather
// than a flat 1: words sharing a Double Metaphone code are charged
// PhoneticMatchCost, everything else is charged 1 minus their
// Jaro-Winkler similarity. Insertion and deletion remain Kronecker
// costs, unaffected by phonetic similarity.
type Cost struct {
	Vocab Vocabulary

	// PhoneticMatchCost is charged for a substitution between two
	// distinct words whose primary Double Metaphone codes agree.
	// Default: 0.25
	PhoneticMatchCost float64
}

func (c Cost) Sub(hyp, ref Label) float64 {
	if hyp == ref {
		return 0
	}
	h, r := c.Vocab.Word(hyp), c.Vocab.Word(ref)
	if h == "" || r == "" {
		return 1
	}
	hp, _ := matchr.DoubleMetaphone(h)
	rp, _ := matchr.DoubleMetaphone(r)
	if hp == rp {
		return c.phoneticMatchCost()
	}
	return 1 - matchr.JaroWinkler(h, r)
}

func (c Cost) Ins(hyp Label) float64 {
	if hyp == mbr.Epsilon {
		return 0
	}
	return 1
}

func (c Cost) Del(ref Label) float64 {
	if ref == mbr.Epsilon {
		return 0
	}
	return 1
}

func (c Cost) phoneticMatchCost() float64 {
	if c.PhoneticMatchCost != 0 {
		return c.PhoneticMatchCost
	}
	return 0.25
}
