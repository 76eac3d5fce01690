// Package networkio implements the versioned binary serialization of a
// network.Network plus its exit table and coarticulated-root metadata (C3),
// and the post-load operations (RemoveOutputs, Cleanup) a host runs before
// decoding against a loaded network.
package networkio

import (
	"bufio"
	"io"

	"github.com/rwthsearch/asrsearch/network"
)

// FormatVersion is the outer wrapper format; Read rejects any other value.
const FormatVersion uint32 = 1

// NetworkFormatVersion is the version of the embedded Network payload.
const NetworkFormatVersion uint32 = 2

// dummyIndex is a legacy field the original format always wrote as 1 and
// never read back meaningfully; kept for byte-for-byte format fidelity.
const dummyIndex uint32 = 1

// RootContext is the phonetic context a coarticulated root state assumes:
// the left and right context phoneme either side of the word boundary the
// root resumes at.
type RootContext struct {
	LeftContextPhoneme  int16
	RightContextPhoneme int16
}

// Store is the persistent search network: a network.Network plus the exit
// table and the root/coarticulation metadata spec.md §3.2 describes.
type Store struct {
	Network *network.Network
	Exits   []network.Exit

	RootState   network.StateID
	CIRootState network.StateID

	// OtherRootStates is part of the in-memory data model (spec.md §3.2)
	// but is not a field of the wire format listed in §6.1; it is
	// recomputed by the host from RootState/CIRootState and the lexicon
	// after a load, so it is not persisted here (see DESIGN.md).
	OtherRootStates []network.StateID

	CoarticulatedRootStates         []network.StateID
	UnpushedCoarticulatedRootStates []network.StateID
	RootTransitDescriptions         map[network.StateID]RootContext
	PushedWordEndNodes              []network.StateID
	UncoarticulatedWordEndStates    []network.StateID
}

// Write serializes store to w in the format of spec.md §6.1, recording
// dependencyChecksum (computed by the caller from lexicon + acoustic-model
// identity) so a later Read can detect a stale image.
func Write(w io.Writer, store *Store, dependencyChecksum uint32) error {
	bw := bufio.NewWriter(w)

	if err := writeU32(bw, FormatVersion); err != nil {
		return err
	}
	if err := writeU32(bw, dummyIndex); err != nil {
		return err
	}
	if err := writeU32(bw, dependencyChecksum); err != nil {
		return err
	}

	if err := writeU32(bw, NetworkFormatVersion); err != nil {
		return err
	}
	if err := writeU32Slice(bw, store.Network.SubTreeBatches()); err != nil {
		return err
	}
	if err := writeStates(bw, store.Network.States()); err != nil {
		return err
	}
	if err := writeU32Slice(bw, store.Network.EdgeTargetLists()); err != nil {
		return err
	}
	if err := writeU32Slice(bw, store.Network.SuccessorBatches()); err != nil {
		return err
	}
	if err := writeTrees(bw, store.Network.Trees()); err != nil {
		return err
	}

	if err := writeExits(bw, store.Exits); err != nil {
		return err
	}
	if err := writeStateIDSlice(bw, store.CoarticulatedRootStates); err != nil {
		return err
	}
	if err := writeStateIDSlice(bw, store.UnpushedCoarticulatedRootStates); err != nil {
		return err
	}
	if err := writeRootTransitDescriptions(bw, store.RootTransitDescriptions); err != nil {
		return err
	}
	if err := writeStateIDSlice(bw, store.PushedWordEndNodes); err != nil {
		return err
	}
	if err := writeStateIDSlice(bw, store.UncoarticulatedWordEndStates); err != nil {
		return err
	}
	if err := writeU32(bw, uint32(store.RootState)); err != nil {
		return err
	}
	if err := writeU32(bw, uint32(store.CIRootState)); err != nil {
		return err
	}

	return bw.Flush()
}

// Read deserializes a store from r, rejecting a mismatched format version
// or a dependency checksum that does not match expectedChecksum. Either
// failure is a *Error the caller should treat as "rebuild the network from
// source", per spec.md §7.
func Read(r io.Reader, expectedChecksum uint32) (*Store, error) {
	br := bufio.NewReader(r)

	version, err := readU32(br)
	if err != nil {
		return nil, truncated(err)
	}
	if version != FormatVersion {
		return nil, &Error{Kind: FormatMismatch, Message: "networkio: outer format version mismatch"}
	}
	if _, err := readU32(br); err != nil { // dummyIndex, discarded
		return nil, truncated(err)
	}
	checksum, err := readU32(br)
	if err != nil {
		return nil, truncated(err)
	}
	if checksum != expectedChecksum {
		return nil, &Error{Kind: ChecksumMismatch, Message: "networkio: dependency checksum mismatch"}
	}

	netVersion, err := readU32(br)
	if err != nil {
		return nil, truncated(err)
	}
	if netVersion != NetworkFormatVersion {
		return nil, &Error{Kind: FormatMismatch, Message: "networkio: network format version mismatch"}
	}

	subTreeBatches, err := readU32Slice(br)
	if err != nil {
		return nil, truncated(err)
	}
	states, err := readStates(br)
	if err != nil {
		return nil, truncated(err)
	}
	edgeTargetLists, err := readU32Slice(br)
	if err != nil {
		return nil, truncated(err)
	}
	succBatches, err := readU32Slice(br)
	if err != nil {
		return nil, truncated(err)
	}
	trees, err := readTrees(br)
	if err != nil {
		return nil, truncated(err)
	}

	store := &Store{
		Network: network.FromRaw(states, trees, subTreeBatches, succBatches, edgeTargetLists),
	}

	if store.Exits, err = readExits(br); err != nil {
		return nil, truncated(err)
	}
	if store.CoarticulatedRootStates, err = readStateIDSlice(br); err != nil {
		return nil, truncated(err)
	}
	if store.UnpushedCoarticulatedRootStates, err = readStateIDSlice(br); err != nil {
		return nil, truncated(err)
	}
	if store.RootTransitDescriptions, err = readRootTransitDescriptions(br); err != nil {
		return nil, truncated(err)
	}
	if store.PushedWordEndNodes, err = readStateIDSlice(br); err != nil {
		return nil, truncated(err)
	}
	if store.UncoarticulatedWordEndStates, err = readStateIDSlice(br); err != nil {
		return nil, truncated(err)
	}
	rootState, err := readU32(br)
	if err != nil {
		return nil, truncated(err)
	}
	ciRootState, err := readU32(br)
	if err != nil {
		return nil, truncated(err)
	}
	store.RootState = network.StateID(rootState)
	store.CIRootState = network.StateID(ciRootState)

	return store, nil
}

func truncated(cause error) error {
	return &Error{Kind: Truncated, Message: "networkio: image ended before a complete read", Cause: cause}
}

// RemoveOutputs strips every label edge from every state, used for
// output-free searches (e.g. forced alignment, where word exits carry no
// useful information).
func RemoveOutputs(store *Store) {
	n := store.Network
	for id := network.StateID(1); int(id) < n.StateCount(); id++ {
		for _, label := range n.TargetOutputSet(id) {
			n.RemoveOutputFromNode(id, label)
		}
	}
}

// Cleanup optionally renumbers the exit table to match a subsequent
// network.Cleanup, then delegates to it. cleanupExits controls whether
// exits referencing removed transit states are themselves dropped; when
// false, a transit state removed by cleanup leaves a dangling (but
// unreachable) exit entry, matching the original's opt-in behavior.
func Cleanup(store *Store, startNodes []network.StateID, masterTree network.TreeIndex, clearDeadEnds, onlyBatches, cleanupExits bool) *network.CleanupResult {
	result := store.Network.Cleanup(startNodes, masterTree, clearDeadEnds, onlyBatches)

	if !cleanupExits {
		for i, e := range store.Exits {
			if mapped, ok := result.NodeMap[e.TransitState]; ok {
				store.Exits[i].TransitState = mapped
			}
		}
		return result
	}

	kept := store.Exits[:0]
	for _, e := range store.Exits {
		if mapped, ok := result.NodeMap[e.TransitState]; ok {
			e.TransitState = mapped
			kept = append(kept, e)
		}
	}
	store.Exits = kept
	return result
}
