// Package phonetic supplies an mbr.CostFunction that discounts
// substitution cost between phonetically similar words instead of
// scoring every mismatch as a flat edit, using Double Metaphone and
// Jaro-Winkler string similarity.
package phonetic

import "github.com/rwthsearch/asrsearch/mbr"

// Label identifies a word the way package mbr and package confnet do.
type Label = mbr.Label

// Vocabulary resolves a label back to its surface word form; matchr's
// phonetic and string-similarity algorithms operate on text, not the
// numeric label IDs the decoder's search space is keyed by.
type Vocabulary interface {
	Word(Label) string
}

// MapVocabulary is the simplest Vocabulary: a precomputed label-to-word
// table, typically built once from a pronunciation lexicon.
type MapVocabulary map[Label]string

func (m MapVocabulary) Word(l Label) string {
	return m[l]
}
