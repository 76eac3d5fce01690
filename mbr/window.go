package mbr

import (
	"math"
	"strconv"
	"strings"

	"github.com/rwthsearch/asrsearch/semiring"
)

// windowKey encodes a label window as a map key.
func windowKey(w []Label) string {
	var b strings.Builder
	for _, l := range w {
		b.WriteString(strconv.FormatUint(uint64(l), 36))
		b.WriteByte(',')
	}
	return b.String()
}

// slideWindow appends next to w, dropping the oldest element once w has
// reached maxLen.
func slideWindow(w []Label, next Label, maxLen int) []Label {
	if maxLen == 0 {
		return nil
	}
	start := 0
	if len(w)+1 > maxLen {
		start = len(w) + 1 - maxLen
	}
	out := make([]Label, 0, maxLen)
	out = append(out, w[start:]...)
	out = append(out, next)
	return out
}

// padLeft left-pads w with Epsilon to length n, the "missing left
// context treated as epsilon" rule applied to a word window that hasn't
// grown to its full size yet (the first ContextRadius slots of an
// utterance, or the first 2*ContextRadius for the hypothesis window).
func padLeft(w []Label, n int) []Label {
	if len(w) >= n {
		return w
	}
	out := make([]Label, n)
	for i := range out {
		out[i] = Epsilon
	}
	copy(out[n-len(w):], w)
	return out
}

// logAdd combines two -log-probability terms: -log(exp(-a) + exp(-b)).
func logAdd(a, b float64) float64 {
	var c semiring.Collector
	c.Add(a)
	c.Add(b)
	return c.Total()
}

// weightedSum accumulates sum(cost_i * exp(-score_i)) in a numerically
// stable way, tracking a running minimum the same way semiring.Collector
// does, but weighted by a per-term coefficient instead of counting every
// term equally.
type weightedSum struct {
	haveMin bool
	min     float64
	relSum  float64
}

func (w *weightedSum) add(score, cost float64) {
	if cost == 0 {
		return
	}
	if !w.haveMin {
		w.haveMin = true
		w.min = score
		w.relSum = cost
		return
	}
	if score < w.min {
		w.relSum *= math.Exp(score - w.min)
		w.min = score
		w.relSum += cost
		return
	}
	w.relSum += cost * math.Exp(w.min-score)
}

func (w *weightedSum) total() float64 {
	if !w.haveMin {
		return 0
	}
	return w.relSum * math.Exp(-w.min)
}
