package pipeline

import "golang.org/x/exp/constraints"

// Key is the packed sort key of a unit. From the least significant bit up:
//
//	[0, IDBits)              vertex layout id   (SortVertexLayout)
//	[IDBits, 2*IDBits)       program id         (SortProgram)
//	[autoBits, +manualBits)  manual state set through SetState
//
// The automatic region is as wide as the highest field in use: IDBits when
// only layouts are sorted, 2*IDBits as soon as programs are. Units sort in
// ascending key order, so manual state dominates, then program, then layout.
type Key uint64

const (
	KeyBits = 64
	// Bits kept from a program or layout id.
	IDBits = 16

	idMask Key = 1<<IDBits - 1
)

type BucketFlags uint8

const (
	SortProgram BucketFlags = 1 << iota
	SortVertexLayout

	SortAll = SortProgram | SortVertexLayout
)

func (f BucketFlags) Has(flag BucketFlags) bool {
	return f&flag == flag
}

// AutoBits returns the width of the automatic region for the given flags.
func AutoBits(flags BucketFlags) uint8 {
	switch {
	case flags.Has(SortProgram):
		return 2 * IDBits
	case flags.Has(SortVertexLayout):
		return IDBits
	default:
		return 0
	}
}

// AutoKey packs program and layout ids into the automatic region.
func AutoKey(flags BucketFlags, program, layout uint32) Key {
	var k Key
	if flags.Has(SortVertexLayout) {
		k |= Key(layout) & idMask
	}
	if flags.Has(SortProgram) {
		k |= (Key(program) & idMask) << IDBits
	}
	return k
}

// manualMask returns the mask of a manual region of the given width
// starting at shift.
func manualMask(shift, bits uint8) Key {
	if bits == 0 {
		return 0
	}
	if bits >= KeyBits {
		return ^Key(0) << shift
	}
	return (Key(1)<<bits - 1) << shift
}

// ComposeManual replaces the manual region of key with state, leaving the
// automatic region untouched. Bits of state beyond the region are dropped.
func ComposeManual(key Key, state uint64, shift, bits uint8) Key {
	mask := manualMask(shift, bits)
	return key&^mask | (Key(state)<<shift)&mask
}

// Manual extracts the manual region of key.
func Manual(key Key, shift, bits uint8) uint64 {
	return uint64((key & manualMask(shift, bits)) >> shift)
}

// Auto extracts the automatic region of key.
func Auto(key Key, autoBits uint8) Key {
	return key & manualMask(0, autoBits)
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
