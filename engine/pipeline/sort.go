package pipeline

// Sort orders the visible units by ascending key. The sort is an in-place
// most-significant-bit first binary radix sort over the linked list: every
// pass only relinks nodes and units with equal keys keep their relative
// order.
func (b *Bucket) Sort() {
	bits := b.autoBits + b.manualBits
	if b.first != nil && b.first != b.last && bits > 0 {
		b.radixSort(b.first, b.last, Key(1)<<(bits-1))
	}
	b.dirty = false
}

// radixSort sorts the units from first through last on the bits selected by
// mask and everything below it. It returns the new ends of the range, which
// stays linked to its surroundings.
func (b *Bucket) radixSort(first, last *Unit, mask Key) (*Unit, *Unit) {
	if first == last || mask == 0 {
		return first, last
	}

	// Partition: units with the bit set are moved behind the range in the
	// order they are met, units without it stay in front.
	var zeroFirst, zeroLast, oneFirst *Unit
	end := last
	for u := first; ; {
		next := u.next
		final := u == last

		if u.key&mask != 0 {
			if u != end {
				b.unlinkVisible(u)
				b.insertAfter(end, u)
				end = u
			}
			if oneFirst == nil {
				oneFirst = u
			}
		} else {
			if zeroFirst == nil {
				zeroFirst = u
			}
			zeroLast = u
		}

		if final {
			break
		}
		u = next
	}

	// The zeros are sorted before the ones; the ones partition starts right
	// after zeroLast no matter how the zeros get rearranged.
	mask >>= 1
	var newFirst, newLast *Unit
	if zeroFirst != nil {
		newFirst, newLast = b.radixSort(zeroFirst, zeroLast, mask)
	}
	if oneFirst != nil {
		f, l := b.radixSort(oneFirst, end, mask)
		if newFirst == nil {
			newFirst = f
		}
		newLast = l
	}
	return newFirst, newLast
}
