package pipeline

import (
	"github.com/google/uuid"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

/** @brief How a source issues its draw calls. */
type DrawMode uint8

const (
	DrawDirect DrawMode = iota
	DrawIndexed
	DrawDirectInstanced
	DrawIndexedInstanced
)

func (m DrawMode) Instanced() bool {
	return m == DrawDirectInstanced || m == DrawIndexedInstanced
}

func (m DrawMode) Indexed() bool {
	return m == DrawIndexed || m == DrawIndexedInstanced
}

// PropertyMap is a program together with the resources bound to it.
type PropertyMap interface {
	// ProgramID identifies the program for sorting. 0 means none.
	ProgramID() uint32
	// Bind makes the program and its resources current.
	Bind(binder *Binder)
}

// VertexLayout describes vertex input and the draw calls predefined on it.
type VertexLayout interface {
	// LayoutID identifies the layout for sorting. 0 means none.
	LayoutID() uint32
	Bind(binder *Binder)
	DrawCalls() []metadata.DrawCall
}

/**
 * @brief Describes how units of a bucket are drawn: which property map and
 * vertex layout are bound and which contiguous range of the layout's draw
 * calls is issued.
 */
type Source struct {
	Map    PropertyMap
	Layout VertexLayout
	/** @brief First draw call of the layout to issue. */
	Start uint32
	/** @brief Number of draw calls to issue. */
	Count uint32
	Mode  DrawMode
}

// Unit is a single drawable entry of a bucket.
type Unit struct {
	key       Key
	bucket    *Bucket
	src       int
	instances uint32
	visible   bool

	prev *Unit
	next *Unit
}

// Next returns the following unit in the same list (visible or invisible).
func (u *Unit) Next() *Unit { return u.next }

func (u *Unit) Prev() *Unit { return u.prev }

func (u *Unit) Key() Key { return u.key }

func (u *Unit) Source() int { return u.src }

func (u *Unit) Bucket() *Bucket { return u.bucket }

// Bucket keeps a set of units in sorted draw order.
type Bucket struct {
	id         uuid.UUID
	flags      BucketFlags
	autoBits   uint8
	manualBits uint8
	state      metadata.RenderState

	sources []Source

	// Visible units in draw order.
	first *Unit
	last  *Unit
	// Head of the invisible units.
	invisible *Unit

	visibleCount   int
	invisibleCount int

	dirty bool
}

// NewBucket creates a bucket with the given number of manual sort bits.
// The width is clamped so that manual and automatic bits fit in a Key.
func NewBucket(bits uint8, flags BucketFlags, state metadata.RenderState) *Bucket {
	auto := AutoBits(flags)
	manual := clamp(bits, 0, KeyBits-auto)
	if manual != bits {
		core.LogWarn("bucket manual bits clamped from %d to %d", bits, manual)
	}

	b := &Bucket{
		id:         uuid.New(),
		flags:      flags,
		autoBits:   auto,
		manualBits: manual,
		state:      state,
	}
	core.LogDebug("bucket %s created (auto=%d manual=%d)", b.id, auto, manual)
	return b
}

func (b *Bucket) ID() uuid.UUID { return b.id }

func (b *Bucket) Flags() BucketFlags { return b.flags }

// Bits returns the widths of the automatic and manual regions.
func (b *Bucket) Bits() (auto, manual uint8) { return b.autoBits, b.manualBits }

func (b *Bucket) RenderState() metadata.RenderState { return b.state }

func (b *Bucket) SetRenderState(state metadata.RenderState) { b.state = state }

// Dirty reports whether the visible units need sorting before the next draw.
func (b *Bucket) Dirty() bool { return b.dirty }

// First returns the first visible unit.
func (b *Bucket) First() *Unit { return b.first }

// Last returns the last visible unit.
func (b *Bucket) Last() *Unit { return b.last }

// Invisible returns the head of the invisible units.
func (b *Bucket) Invisible() *Unit { return b.invisible }

// Len returns the number of visible and invisible units.
func (b *Bucket) Len() (visible, invisible int) {
	return b.visibleCount, b.invisibleCount
}

// AddSource appends a source and returns its 1-based index.
func (b *Bucket) AddSource(src Source) int {
	b.sources = append(b.sources, src)
	return len(b.sources)
}

// Source returns the source at the 1-based index i.
func (b *Bucket) Source(i int) (Source, bool) {
	if i < 1 || i > len(b.sources) {
		return Source{}, false
	}
	return b.sources[i-1], true
}

func (b *Bucket) Sources() int { return len(b.sources) }

// SetSource replaces the source at index i. Units drawing from it get their
// automatic key bits recomputed.
func (b *Bucket) SetSource(i int, src Source) bool {
	if i < 1 || i > len(b.sources) {
		return false
	}
	b.sources[i-1] = src

	auto := b.autoKey(i)
	update := func(u *Unit) {
		if u.src == i {
			u.key = u.key&^manualMask(0, b.autoBits) | auto
		}
	}
	for u := b.first; u != nil; u = u.next {
		update(u)
	}
	for u := b.invisible; u != nil; u = u.next {
		update(u)
	}
	if b.first != nil {
		b.dirty = true
	}
	return true
}

// Insert creates a unit drawing from the source at index src. src must be
// a valid source index.
func (b *Bucket) Insert(src int, instances uint32, visible bool) *Unit {
	u := &Unit{
		key:       b.autoKey(src),
		bucket:    b,
		src:       src,
		instances: instances,
		visible:   visible,
	}
	if visible {
		b.appendVisible(u)
		b.dirty = true
	} else {
		b.pushInvisible(u)
	}
	return u
}

// Erase removes u from the bucket.
func (b *Bucket) Erase(u *Unit) {
	if u == nil || u.bucket != b {
		return
	}
	if u.visible {
		b.unlinkVisible(u)
	} else {
		b.unlinkInvisible(u)
	}
	u.bucket = nil
}

// Clear erases every unit. Sources are kept.
func (b *Bucket) Clear() {
	for b.first != nil {
		b.Erase(b.first)
	}
	for b.invisible != nil {
		b.Erase(b.invisible)
	}
	b.dirty = false
}

// State returns the manual state of u.
func (b *Bucket) State(u *Unit) uint64 {
	return Manual(u.key, b.autoBits, b.manualBits)
}

// SetState replaces the manual state of u.
func (b *Bucket) SetState(u *Unit, state uint64) {
	key := ComposeManual(u.key, state, b.autoBits, b.manualBits)
	if key == u.key {
		return
	}
	u.key = key
	if u.visible {
		b.dirty = true
	}
}

func (b *Bucket) Instances(u *Unit) uint32 {
	return u.instances
}

func (b *Bucket) SetInstances(u *Unit, instances uint32) {
	u.instances = instances
}

func (b *Bucket) Visible(u *Unit) bool {
	return u.visible
}

// SetVisible moves u between the visible and invisible units. Hiding a unit
// never requires a re-sort.
func (b *Bucket) SetVisible(u *Unit, visible bool) {
	if u.visible == visible {
		return
	}
	if visible {
		b.unlinkInvisible(u)
		u.visible = true
		b.appendVisible(u)
		b.dirty = true
	} else {
		b.unlinkVisible(u)
		u.visible = false
		b.pushInvisible(u)
	}
}

func (b *Bucket) autoKey(src int) Key {
	if b.autoBits == 0 {
		return 0
	}
	s := b.sources[src-1]
	var program, layout uint32
	if s.Map != nil {
		program = s.Map.ProgramID()
	}
	if s.Layout != nil {
		layout = s.Layout.LayoutID()
	}
	return AutoKey(b.flags, program, layout)
}

func (b *Bucket) appendVisible(u *Unit) {
	u.prev = b.last
	u.next = nil
	if b.last != nil {
		b.last.next = u
	} else {
		b.first = u
	}
	b.last = u
	b.visibleCount++
}

// insertAfter links u right after anchor in the visible list.
func (b *Bucket) insertAfter(anchor, u *Unit) {
	u.prev = anchor
	u.next = anchor.next
	if anchor.next != nil {
		anchor.next.prev = u
	} else {
		b.last = u
	}
	anchor.next = u
	b.visibleCount++
}

func (b *Bucket) unlinkVisible(u *Unit) {
	if u.prev != nil {
		u.prev.next = u.next
	} else {
		b.first = u.next
	}
	if u.next != nil {
		u.next.prev = u.prev
	} else {
		b.last = u.prev
	}
	u.prev = nil
	u.next = nil
	b.visibleCount--
}

func (b *Bucket) pushInvisible(u *Unit) {
	u.prev = nil
	u.next = b.invisible
	if b.invisible != nil {
		b.invisible.prev = u
	}
	b.invisible = u
	b.invisibleCount++
}

func (b *Bucket) unlinkInvisible(u *Unit) {
	if u.prev != nil {
		u.prev.next = u.next
	} else {
		b.invisible = u.next
	}
	if u.next != nil {
		u.next.prev = u.prev
	}
	u.prev = nil
	u.next = nil
	b.invisibleCount--
}
