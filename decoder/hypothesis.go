package decoder

import "github.com/rwthsearch/asrsearch/lmla"

// Score is a -log probability, matching the convention used throughout
// the search core.
type Score = lmla.Score

// Hyp is one surviving Viterbi hypothesis at a network state: its
// accumulated score, the language-model history it carries (distinct
// histories at the same acoustic state stay separate until one of them
// loses the competition), and a back pointer into the decoder's word
// trace for traceback.
type Hyp struct {
	Score       Score
	History     lmla.History
	BackPointer uint32
}

// InvalidBackPointer marks the start of a trace: no word precedes it.
const InvalidBackPointer uint32 = ^uint32(0)

// WordBackPointer records one word boundary crossed by some hypothesis:
// the word emitted, the frame it was emitted at, and the back pointer to
// cross before it. BestWordSequence walks these from a final hypothesis's
// BackPointer back to InvalidBackPointer.
type WordBackPointer struct {
	Frame int
	Token uint32
	Prev  uint32
}
