// Package nonword implements AddNonWordTokens: inserting self-loops for
// non-word lemmas (silence, noise, ...) into a compiled state network, a
// feature named only in spec.md's testable properties and promoted here to
// a first-class operation, grounded on RASR's non-word-lemma self-loop
// insertion.
//
// Detecting which states already carry a non-word lemma's self-loop is a
// multi-pattern substring problem once every state's output-label set is
// serialized to bytes: rather than scanning each state's labels against
// each lemma individually, every state's labels are concatenated into one
// byte stream and scanned for all lemmas in a single Aho-Corasick pass.
package nonword

import (
	"encoding/binary"
	"sort"

	"github.com/coregx/ahocorasick"

	"github.com/rwthsearch/asrsearch/network"
)

// Lemma is a non-word lemma eligible for self-loop insertion: Label is the
// exit label recognizing it (e.g. silence, noise).
type Lemma struct {
	Label uint32
}

// Mode selects which states receive self-loops.
type Mode int

const (
	// AllStates adds every lemma's self-loop at every state in the network.
	AllStates Mode = iota
	// UnigramState adds every lemma's self-loop at a single designated
	// state only (Config.UnigramState), the usual choice when non-word
	// tokens are modeled once at the root rather than duplicated per state.
	UnigramState
)

// Renormalizer is called once per state that received new self-loops, so
// the host can rescale its own transition-probability model for that
// state. The network itself carries no scores (C2's states/edges have no
// weight field); renormalization of outgoing probability mass is
// necessarily a caller concern.
type Renormalizer func(state network.StateID, addedLabels []uint32)

// Config controls AddNonWordTokens.
type Config struct {
	Mode Mode

	// UnigramState is the target state when Mode == UnigramState.
	UnigramState network.StateID

	// Renormalize, when true, invokes Renormalizer for every state that
	// received at least one new self-loop.
	Renormalize  bool
	Renormalizer Renormalizer
}

const labelEncodingSize = 4

func encodeLabel(label uint32) []byte {
	b := make([]byte, labelEncodingSize)
	binary.LittleEndian.PutUint32(b, network.EncodeLabel(label))
	return b
}

// AddNonWordTokens inserts a self-loop for every lemma in lemmas at every
// state selected by cfg.Mode, skipping any (state, lemma) pair whose
// self-loop is already present. It returns the number of self-loops
// actually added.
func AddNonWordTokens(n *network.Network, lemmas []Lemma, cfg Config) (int, error) {
	if len(lemmas) == 0 {
		return 0, nil
	}

	targets := candidateStates(n, cfg)
	if len(targets) == 0 {
		return 0, nil
	}

	haystack, bounds := serializeOutputLabels(n, targets)
	present, err := scanExistingSelfLoops(haystack, bounds, lemmas)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, st := range targets {
		var addedHere []uint32
		for _, lemma := range lemmas {
			if present[presentKey{state: st, label: lemma.Label}] {
				continue
			}
			n.AddOutputToNode(st, lemma.Label)
			addedHere = append(addedHere, lemma.Label)
			added++
		}
		if cfg.Renormalize && cfg.Renormalizer != nil && len(addedHere) > 0 {
			cfg.Renormalizer(st, addedHere)
		}
	}
	return added, nil
}

func candidateStates(n *network.Network, cfg Config) []network.StateID {
	if cfg.Mode == UnigramState {
		if cfg.UnigramState == network.InvalidState {
			return nil
		}
		return []network.StateID{cfg.UnigramState}
	}
	out := make([]network.StateID, 0, n.StateCount()-1)
	for id := network.StateID(1); int(id) < n.StateCount(); id++ {
		out = append(out, id)
	}
	return out
}

// byteRange is the half-open byte range within the serialized haystack
// belonging to one state.
type byteRange struct {
	state      network.StateID
	start, end int
}

func serializeOutputLabels(n *network.Network, targets []network.StateID) ([]byte, []byteRange) {
	bounds := make([]byteRange, 0, len(targets))
	var haystack []byte
	for _, st := range targets {
		labels := n.TargetOutputSet(st)
		sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
		start := len(haystack)
		for _, l := range labels {
			haystack = append(haystack, encodeLabel(l)...)
		}
		bounds = append(bounds, byteRange{state: st, start: start, end: len(haystack)})
	}
	return haystack, bounds
}

type presentKey struct {
	state network.StateID
	label uint32
}

// scanExistingSelfLoops runs a single Aho-Corasick pass over haystack,
// built from every lemma's encoded label, and maps each match back to the
// state owning that byte range via bounds (ascending, non-overlapping).
func scanExistingSelfLoops(haystack []byte, bounds []byteRange, lemmas []Lemma) (map[presentKey]bool, error) {
	builder := ahocorasick.NewBuilder()
	for _, lemma := range lemmas {
		builder.AddPattern(encodeLabel(lemma.Label))
	}
	automaton, err := builder.Build()
	if err != nil {
		return nil, err
	}

	present := make(map[presentKey]bool)
	if len(haystack) == 0 {
		return present, nil
	}

	at := 0
	for at < len(haystack) {
		m := automaton.Find(haystack, at)
		if m == nil {
			break
		}
		br, ok := stateForOffset(bounds, m.Start)
		if ok && m.End-m.Start == labelEncodingSize && (m.Start-br.start)%labelEncodingSize == 0 {
			label := network.DecodeLabel(binary.LittleEndian.Uint32(haystack[m.Start:m.End]))
			present[presentKey{state: br.state, label: label}] = true
		}
		at = m.Start + 1
	}
	return present, nil
}

// stateForOffset finds the byteRange containing offset via binary search
// over the ascending, non-overlapping bounds.
func stateForOffset(bounds []byteRange, offset int) (byteRange, bool) {
	lo, hi := 0, len(bounds)
	for lo < hi {
		mid := (lo + hi) / 2
		if bounds[mid].end <= offset {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(bounds) && bounds[lo].start <= offset && offset < bounds[lo].end {
		return bounds[lo], true
	}
	return byteRange{}, false
}
