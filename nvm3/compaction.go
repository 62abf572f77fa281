package nvm3

import (
	"sort"

	"github.com/zollek/nvm3/internal/orderedmap"
	"github.com/zollek/nvm3/nvm3errors"
)

// Object is a fully reassembled, live value for one key, as produced by
// Compact.
type Object struct {
	Key     uint32
	Type    ObjectType
	Payload []byte
}

type pendingFragment struct {
	offset  int
	objType ObjectType
	chunks  [][]byte
}

// Compact replays an ordered object log — the concatenation of one region's
// pages in ring order — into a live key-to-object map. Deleted records
// remove their key; later writes supersede earlier ones.
//
// Two edge cases are non-fatal, matching spec §4.6/§9's "a malformed image
// is still usable": an orphaned continuation fragment (a Next/Last with no
// preceding First) is ignored, and a fragment chain that never sees a Last
// fragment by the end of the log is dropped rather than surfaced in the live
// map. Both are returned as diagnostics rather than aborting compaction.
func Compact(log []RawObject) (*orderedmap.Map[Object], []*nvm3errors.Error, error) {
	live := orderedmap.New[Object]()
	pending := make(map[uint32]*pendingFragment)
	var diagnostics []*nvm3errors.Error

	for _, obj := range log {
		switch {
		case obj.Type == TypeDeleted:
			live.Delete(obj.Key)
			delete(pending, obj.Key)

		case obj.Type == TypeDataLarge && obj.Fragment == FragmentFirst:
			// A First fragment for a key with an outstanding chain discards
			// the previous partial: the later write wins.
			pending[obj.Key] = &pendingFragment{offset: obj.Offset, objType: obj.Type, chunks: [][]byte{obj.Payload}}

		case obj.Type == TypeLink:
			p, ok := pending[obj.Key]
			if !ok {
				diagnostics = append(diagnostics, nvm3errors.NewWithKey(
					nvm3errors.KindOrphanedFragment, obj.Offset, obj.Key,
					"continuation fragment with no preceding First"))
				continue
			}
			p.chunks = append(p.chunks, obj.Payload)
			if obj.Fragment == FragmentLast {
				live.Set(obj.Key, Object{Key: obj.Key, Type: p.objType, Payload: concatChunks(p.chunks)})
				delete(pending, obj.Key)
			}

		default:
			// A *Small, a counter, or a DataLarge that fit in a single
			// fragment (FragmentNone): a complete write in one record.
			delete(pending, obj.Key)
			live.Set(obj.Key, Object{Key: obj.Key, Type: obj.Type, Payload: obj.Payload})
		}
	}

	if len(pending) > 0 {
		keys := make([]uint32, 0, len(pending))
		for k := range pending {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, k := range keys {
			diagnostics = append(diagnostics, nvm3errors.NewWithKey(
				nvm3errors.KindTruncatedObject, pending[k].offset, k,
				"fragment chain never saw a Last fragment"))
		}
	}

	return live, diagnostics, nil
}

func concatChunks(chunks [][]byte) []byte {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
