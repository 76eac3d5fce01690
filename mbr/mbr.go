// Package mbr searches for the minimum Bayes-risk word sequence through a
// confusion network (C8): given the per-slot conditional-posterior trees
// produced by package confnet, it runs a windowed Levenshtein-distance
// decoder that, for every slot, picks the candidate label minimizing
// expected edit cost against the posterior-weighted distribution of
// competing hypotheses in a symmetric context window.
package mbr

import "github.com/rwthsearch/asrsearch/confnet"

// Label identifies a word (or filler) at one confusion-network slot,
// shared with package confnet since both packages index the same
// underlying confusion network.
type Label = confnet.Label

// Epsilon marks an empty label, inherited from package confnet.
const Epsilon = confnet.Epsilon
