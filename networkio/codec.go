package networkio

import (
	"encoding/binary"
	"io"
	"sort"

	"github.com/rwthsearch/asrsearch/batch"
	"github.com/rwthsearch/asrsearch/network"
)

// Every scalar in the image is little-endian, per spec.md §6.1. Slices are
// length-prefixed (u32 count, then elements); there is no separate
// capacity field, matching the original's vector serialization.

func writeU32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func writeI16(w io.Writer, v int16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(v))
	_, err := w.Write(b[:])
	return err
}

func readI16(r io.Reader) (int16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int16(binary.LittleEndian.Uint16(b[:])), nil
}

func writeU32Slice(w io.Writer, vs []uint32) error {
	if err := writeU32(w, uint32(len(vs))); err != nil {
		return err
	}
	for _, v := range vs {
		if err := writeU32(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readU32Slice(r io.Reader) ([]uint32, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		if out[i], err = readU32(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeStateIDSlice(w io.Writer, vs []network.StateID) error {
	if err := writeU32(w, uint32(len(vs))); err != nil {
		return err
	}
	for _, v := range vs {
		if err := writeU32(w, uint32(v)); err != nil {
			return err
		}
	}
	return nil
}

func readStateIDSlice(r io.Reader) ([]network.StateID, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]network.StateID, n)
	for i := range out {
		var v uint32
		if v, err = readU32(r); err != nil {
			return nil, err
		}
		out[i] = network.StateID(v)
	}
	return out, nil
}

func writeStates(w io.Writer, states []network.State) error {
	if err := writeU32(w, uint32(len(states))); err != nil {
		return err
	}
	for _, s := range states {
		if err := writeU32(w, s.Desc.AcousticModelIndex); err != nil {
			return err
		}
		if err := writeU32(w, s.Desc.TransitionModelIndex); err != nil {
			return err
		}
		if err := writeU32(w, uint32(s.Successors)); err != nil {
			return err
		}
	}
	return nil
}

func readStates(r io.Reader) ([]network.State, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]network.State, n)
	for i := range out {
		am, err := readU32(r)
		if err != nil {
			return nil, err
		}
		tm, err := readU32(r)
		if err != nil {
			return nil, err
		}
		succ, err := readU32(r)
		if err != nil {
			return nil, err
		}
		out[i] = network.State{
			Desc:       network.StateDesc{AcousticModelIndex: am, TransitionModelIndex: tm},
			Successors: batch.ID(succ),
		}
	}
	return out, nil
}

func writeTrees(w io.Writer, trees []network.Tree) error {
	if err := writeU32(w, uint32(len(trees))); err != nil {
		return err
	}
	for _, t := range trees {
		if err := writeU32(w, uint32(t.Nodes)); err != nil {
			return err
		}
	}
	return nil
}

func readTrees(r io.Reader) ([]network.Tree, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]network.Tree, n)
	for i := range out {
		v, err := readU32(r)
		if err != nil {
			return nil, err
		}
		out[i] = network.Tree{Nodes: batch.ID(v)}
	}
	return out, nil
}

func writeExits(w io.Writer, exits []network.Exit) error {
	if err := writeU32(w, uint32(len(exits))); err != nil {
		return err
	}
	for _, e := range exits {
		if err := writeU32(w, e.PronunciationID); err != nil {
			return err
		}
		if err := writeU32(w, uint32(e.TransitState)); err != nil {
			return err
		}
	}
	return nil
}

func readExits(r io.Reader) ([]network.Exit, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]network.Exit, n)
	for i := range out {
		pron, err := readU32(r)
		if err != nil {
			return nil, err
		}
		transit, err := readU32(r)
		if err != nil {
			return nil, err
		}
		out[i] = network.Exit{PronunciationID: pron, TransitState: network.StateID(transit)}
	}
	return out, nil
}

func writeRootTransitDescriptions(w io.Writer, m map[network.StateID]RootContext) error {
	if err := writeU32(w, uint32(len(m))); err != nil {
		return err
	}
	keys := make([]network.StateID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortStateIDs(keys)
	for _, k := range keys {
		v := m[k]
		if err := writeU32(w, uint32(k)); err != nil {
			return err
		}
		if err := writeI16(w, v.LeftContextPhoneme); err != nil {
			return err
		}
		if err := writeI16(w, v.RightContextPhoneme); err != nil {
			return err
		}
	}
	return nil
}

func readRootTransitDescriptions(r io.Reader) (map[network.StateID]RootContext, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make(map[network.StateID]RootContext, n)
	for i := uint32(0); i < n; i++ {
		k, err := readU32(r)
		if err != nil {
			return nil, err
		}
		left, err := readI16(r)
		if err != nil {
			return nil, err
		}
		right, err := readI16(r)
		if err != nil {
			return nil, err
		}
		out[network.StateID(k)] = RootContext{LeftContextPhoneme: left, RightContextPhoneme: right}
	}
	return out, nil
}

func sortStateIDs(ids []network.StateID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
