package pipeline

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type fakeMap struct {
	id    uint32
	binds int
}

func (m *fakeMap) ProgramID() uint32 { return m.id }

func (m *fakeMap) Bind(b *Binder) {
	b.BindProgram(m.id, func() { m.binds++ })
}

type fakeLayout struct {
	id    uint32
	calls []metadata.DrawCall
	binds int
}

func (l *fakeLayout) LayoutID() uint32 { return l.id }

func (l *fakeLayout) Bind(b *Binder) {
	b.BindLayout(l.id, func() { l.binds++ })
}

func (l *fakeLayout) DrawCalls() []metadata.DrawCall { return l.calls }

type fakeIssuer struct {
	log []string
}

func (f *fakeIssuer) DrawArrays(p metadata.Primitive, first, count uint32) {
	f.log = append(f.log, fmt.Sprintf("arrays %d %d", first, count))
}

func (f *fakeIssuer) DrawElements(p metadata.Primitive, count uint32, t metadata.IndexType, offset uint32) {
	f.log = append(f.log, fmt.Sprintf("elements %d %d", count, offset))
}

func (f *fakeIssuer) DrawArraysInstanced(p metadata.Primitive, first, count, instances uint32) {
	f.log = append(f.log, fmt.Sprintf("arrays* %d %d x%d", first, count, instances))
}

func (f *fakeIssuer) DrawElementsInstanced(p metadata.Primitive, count uint32, t metadata.IndexType, offset, instances uint32) {
	f.log = append(f.log, fmt.Sprintf("elements* %d %d x%d", count, offset, instances))
}

type fakeApplier struct {
	applied int
}

func (a *fakeApplier) Apply(metadata.RenderState) { a.applied++ }

func oneCall() []metadata.DrawCall {
	return []metadata.DrawCall{{Primitive: metadata.PrimitiveTriangles, First: 0, Count: 3}}
}

func visible(b *Bucket) []*Unit {
	var out []*Unit
	for u := b.First(); u != nil; u = u.Next() {
		out = append(out, u)
	}
	return out
}

func invisible(b *Bucket) []*Unit {
	var out []*Unit
	for u := b.Invisible(); u != nil; u = u.Next() {
		out = append(out, u)
	}
	return out
}

// checkLinks verifies both lists are consistent in both directions.
func checkLinks(t *testing.T, b *Bucket) {
	t.Helper()
	var prev *Unit
	n := 0
	for u := b.First(); u != nil; u = u.Next() {
		if u.Prev() != prev {
			t.Fatalf("broken prev link at visible unit %d", n)
		}
		if !b.Visible(u) {
			t.Fatalf("invisible unit in visible list")
		}
		prev = u
		n++
	}
	if b.Last() != prev {
		t.Fatal("last anchor does not match the list tail")
	}
	v, inv := b.Len()
	if v != n {
		t.Fatalf("visible count %d, list has %d", v, n)
	}
	if got := len(invisible(b)); got != inv {
		t.Fatalf("invisible count %d, list has %d", inv, got)
	}
	for u := b.Invisible(); u != nil; u = u.Next() {
		if b.Visible(u) {
			t.Fatal("visible unit in invisible list")
		}
	}
}

func TestKeyLayout(t *testing.T) {
	if AutoBits(0) != 0 || AutoBits(SortVertexLayout) != IDBits || AutoBits(SortProgram) != 2*IDBits {
		t.Fatal("unexpected automatic region widths")
	}

	k := AutoKey(SortAll, 2, 5)
	if k != Key(2)<<IDBits|5 {
		t.Fatalf("auto key = %#x", k)
	}
	if AutoKey(SortProgram, 2, 5) != Key(2)<<IDBits {
		t.Fatal("layout must be ignored without SortVertexLayout")
	}

	k = ComposeManual(k, 3, 32, 2)
	if Manual(k, 32, 2) != 3 || Auto(k, 32) != Key(2)<<IDBits|5 {
		t.Fatalf("compose broke a region: %#x", k)
	}
	k = ComposeManual(k, 0xff, 32, 2)
	if Manual(k, 32, 2) != 3 {
		t.Fatal("bits beyond the manual region must be dropped")
	}
	k = ComposeManual(k, 1, 32, 2)
	if Manual(k, 32, 2) != 1 || Auto(k, 32) != Key(2)<<IDBits|5 {
		t.Fatalf("recompose = %#x", k)
	}
	if ComposeManual(0, 7, 0, 64) != 7 || Manual(^Key(0), 0, 64) != ^uint64(0) {
		t.Fatal("full width manual region")
	}
}

func TestNewBucketClampsBits(t *testing.T) {
	b := NewBucket(64, SortAll, metadata.DefaultRenderState())
	auto, manual := b.Bits()
	if auto != 32 || manual != 32 {
		t.Fatalf("bits = %d/%d, want 32/32", auto, manual)
	}
	b = NewBucket(10, 0, metadata.DefaultRenderState())
	if auto, manual := b.Bits(); auto != 0 || manual != 10 {
		t.Fatalf("bits = %d/%d", auto, manual)
	}
}

func keysOf(units []*Unit) []Key {
	out := make([]Key, len(units))
	for i, u := range units {
		out[i] = u.Key()
	}
	return out
}

// sortAndCompare inserts units with the given manual states, sorts, and
// checks the result against a stable sort of the insertion order.
func sortAndCompare(t *testing.T, b *Bucket, src int, states []uint64) {
	t.Helper()
	units := make([]*Unit, len(states))
	for i, s := range states {
		units[i] = b.Insert(src, 1, true)
		b.SetState(units[i], s)
	}
	want := append([]*Unit(nil), units...)
	sort.SliceStable(want, func(i, j int) bool { return want[i].Key() < want[j].Key() })

	b.Sort()
	got := visible(b)
	if len(got) != len(want) {
		t.Fatalf("states %v: %d units after sort, want %d", states, len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("states %v: got keys %v, want %v", states, keysOf(got), keysOf(want))
		}
	}
	checkLinks(t, b)
	if b.Dirty() {
		t.Fatal("bucket still dirty after sort")
	}
	b.Clear()
}

func TestSortExhaustiveSmall(t *testing.T) {
	b := NewBucket(2, 0, metadata.DefaultRenderState())
	src := b.AddSource(Source{})

	for n := 1; n <= 6; n++ {
		states := make([]uint64, n)
		total := 1 << (2 * n)
		for combo := 0; combo < total; combo++ {
			for i := range states {
				states[i] = uint64(combo>>(2*i)) & 3
			}
			sortAndCompare(t, b, src, states)
		}
	}
}

func TestSortRandomWide(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	b := NewBucket(12, 0, metadata.DefaultRenderState())
	src := b.AddSource(Source{})

	for round := 0; round < 200; round++ {
		n := 1 + rng.Intn(40)
		states := make([]uint64, n)
		for i := range states {
			states[i] = uint64(rng.Intn(1 << 12))
		}
		sortAndCompare(t, b, src, states)
	}
}

func TestSortGroupsByProgramThenLayout(t *testing.T) {
	b := NewBucket(4, SortAll, metadata.DefaultRenderState())
	pairs := [][2]uint32{{2, 1}, {1, 5}, {1, 2}}
	for _, p := range pairs {
		src := b.AddSource(Source{
			Map:    &fakeMap{id: p[0]},
			Layout: &fakeLayout{id: p[1], calls: oneCall()},
		})
		b.Insert(src, 1, true)
	}
	b.Sort()

	var got [][2]uint32
	for _, u := range visible(b) {
		s, _ := b.Source(u.Source())
		got = append(got, [2]uint32{s.Map.ProgramID(), s.Layout.LayoutID()})
	}
	want := [][2]uint32{{1, 2}, {1, 5}, {2, 1}}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestManualStateDominates(t *testing.T) {
	b := NewBucket(2, SortProgram, metadata.DefaultRenderState())
	low := b.AddSource(Source{Map: &fakeMap{id: 1}})
	high := b.AddSource(Source{Map: &fakeMap{id: 9}})

	a := b.Insert(high, 1, true)
	c := b.Insert(low, 1, true)
	b.SetState(c, 1)
	b.Sort()

	if got := visible(b); got[0] != a || got[1] != c {
		t.Fatal("manual state must outrank the program id")
	}
	if b.State(c) != 1 || b.State(a) != 0 {
		t.Fatal("state accessors")
	}
}

func TestVisibilityExclusivity(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	b := NewBucket(3, 0, metadata.DefaultRenderState())
	src := b.AddSource(Source{})

	var live []*Unit
	inserted, erased := 0, 0
	for step := 0; step < 500; step++ {
		switch op := rng.Intn(4); {
		case op == 0 || len(live) == 0:
			live = append(live, b.Insert(src, 1, rng.Intn(2) == 0))
			inserted++
		case op == 1:
			i := rng.Intn(len(live))
			b.Erase(live[i])
			live = append(live[:i], live[i+1:]...)
			erased++
		case op == 2:
			b.SetVisible(live[rng.Intn(len(live))], rng.Intn(2) == 0)
		default:
			b.SetState(live[rng.Intn(len(live))], uint64(rng.Intn(8)))
			if rng.Intn(5) == 0 {
				b.Sort()
			}
		}

		checkLinks(t, b)
		v, inv := b.Len()
		if v+inv != inserted-erased {
			t.Fatalf("step %d: %d+%d units, want %d", step, v, inv, inserted-erased)
		}
		seen := map[*Unit]int{}
		for _, u := range visible(b) {
			seen[u]++
		}
		for _, u := range invisible(b) {
			seen[u]++
		}
		for _, u := range live {
			if seen[u] != 1 {
				t.Fatalf("step %d: unit appears %d times", step, seen[u])
			}
		}
	}
}

func TestHidingDoesNotDirty(t *testing.T) {
	b := NewBucket(2, 0, metadata.DefaultRenderState())
	src := b.AddSource(Source{})
	u := b.Insert(src, 1, true)
	b.Sort()

	b.SetVisible(u, false)
	if b.Dirty() {
		t.Fatal("hiding a unit must not require a sort")
	}
	b.SetState(u, 2)
	if b.Dirty() {
		t.Fatal("changing an invisible unit must not require a sort")
	}
	b.SetVisible(u, true)
	if !b.Dirty() {
		t.Fatal("showing a unit requires a sort")
	}
}

func TestEraseRepairsAnchors(t *testing.T) {
	b := NewBucket(2, 0, metadata.DefaultRenderState())
	src := b.AddSource(Source{})
	x := b.Insert(src, 1, true)
	y := b.Insert(src, 1, true)
	z := b.Insert(src, 1, true)

	b.Erase(x)
	if b.First() != y || y.Prev() != nil {
		t.Fatal("first should move to the next unit")
	}
	b.Erase(z)
	if b.Last() != y || y.Next() != nil {
		t.Fatal("last should move to the previous unit")
	}
	b.Erase(y)
	if b.First() != nil || b.Last() != nil {
		t.Fatal("anchors should be nil once the list is empty")
	}

	h1 := b.Insert(src, 1, false)
	h2 := b.Insert(src, 1, false)
	if b.Invisible() != h2 {
		t.Fatal("invisible units are pushed at the head")
	}
	b.Erase(h2)
	if b.Invisible() != h1 {
		t.Fatal("invisible head should move to the next unit")
	}
	b.Erase(h1)
	if b.Invisible() != nil {
		t.Fatal("invisible head should be nil")
	}
	b.Erase(h1)
	checkLinks(t, b)
}

func TestSetSourceRekeysUnits(t *testing.T) {
	b := NewBucket(0, SortProgram, metadata.DefaultRenderState())
	s1 := b.AddSource(Source{Map: &fakeMap{id: 1}})
	s2 := b.AddSource(Source{Map: &fakeMap{id: 2}})
	u1 := b.Insert(s1, 1, true)
	u2 := b.Insert(s2, 1, true)
	b.Sort()

	if !b.SetSource(s1, Source{Map: &fakeMap{id: 3}}) {
		t.Fatal("set source failed")
	}
	if b.SetSource(3, Source{}) {
		t.Fatal("out of range source accepted")
	}
	b.Sort()
	if got := visible(b); got[0] != u2 || got[1] != u1 {
		t.Fatal("units were not re-keyed")
	}
}

func TestProcessDrawModes(t *testing.T) {
	calls := []metadata.DrawCall{
		{Primitive: metadata.PrimitiveTriangles, First: 0, Count: 3},
		{Primitive: metadata.PrimitiveTriangles, First: 3, Count: 6, IndexType: metadata.IndexUint16},
		{Primitive: metadata.PrimitiveLines, First: 12, Count: 2},
	}
	layout := &fakeLayout{id: 1, calls: calls}
	m := &fakeMap{id: 1}

	tests := []struct {
		mode  DrawMode
		start uint32
		count uint32
		want  []string
	}{
		{DrawDirect, 0, 1, []string{"arrays 0 3"}},
		{DrawIndexed, 1, 1, []string{"elements 6 3"}},
		{DrawDirectInstanced, 1, 2, []string{"arrays* 3 6 x4", "arrays* 12 2 x4"}},
		{DrawIndexedInstanced, 0, 1, []string{"elements* 3 0 x4"}},
		{DrawDirect, 2, 5, []string{"arrays 12 2"}},
	}
	for _, tc := range tests {
		b := NewBucket(0, SortAll, metadata.DefaultRenderState())
		src := b.AddSource(Source{Map: m, Layout: layout, Start: tc.start, Count: tc.count, Mode: tc.mode})
		b.Insert(src, 4, true)

		issuer := &fakeIssuer{}
		n := b.Process(issuer, NewBinder(), nil)
		if int(n) != len(tc.want) || strings.Join(issuer.log, "|") != strings.Join(tc.want, "|") {
			t.Errorf("mode %d: issued %v (%d), want %v", tc.mode, issuer.log, n, tc.want)
		}
	}
}

func TestProcessBindsAndSkips(t *testing.T) {
	m1, m2 := &fakeMap{id: 1}, &fakeMap{id: 2}
	layout := &fakeLayout{id: 7, calls: oneCall()}

	b := NewBucket(2, SortAll, metadata.DefaultRenderState())
	s1 := b.AddSource(Source{Map: m1, Layout: layout, Count: 1})
	s2 := b.AddSource(Source{Map: m2, Layout: layout, Count: 1})
	b.Insert(s2, 1, true)
	b.Insert(s1, 1, true)
	b.Insert(s2, 1, true)
	b.Insert(s1, 1, true)
	b.Insert(s1, 1, false)
	b.Insert(s1, 0, true)

	applier := &fakeApplier{}
	binder := NewBinder()
	issuer := &fakeIssuer{}
	if n := b.Process(issuer, binder, applier); n != 4 {
		t.Fatalf("issued %d draws, want 4", n)
	}
	if applier.applied != 1 {
		t.Fatalf("state applied %d times", applier.applied)
	}
	if m1.binds != 1 || m2.binds != 1 || layout.binds != 1 {
		t.Fatalf("redundant binds: m1=%d m2=%d layout=%d", m1.binds, m2.binds, layout.binds)
	}
	if b.Dirty() {
		t.Fatal("process should leave the bucket sorted")
	}
}

func TestEndToEnd(t *testing.T) {
	p1, p2 := &fakeMap{id: 1}, &fakeMap{id: 2}
	l1, l2 := &fakeLayout{id: 1, calls: oneCall()}, &fakeLayout{id: 2, calls: oneCall()}

	b := NewBucket(2, SortProgram|SortVertexLayout, metadata.DefaultRenderState())
	srcs := []int{
		b.AddSource(Source{Map: p2, Layout: l2, Count: 1}),
		b.AddSource(Source{Map: p1, Layout: l1, Count: 1, Mode: DrawDirectInstanced}),
		b.AddSource(Source{Map: p2, Layout: l2, Count: 1}),
	}
	for i, s := range []uint64{3, 0, 2, 1, 0} {
		u := b.Insert(srcs[i%len(srcs)], 1, true)
		b.SetState(u, s)
	}

	if n := b.Process(&fakeIssuer{}, NewBinder(), &fakeApplier{}); n != 5 {
		t.Fatalf("issued %d draws, want 5", n)
	}
	units := visible(b)
	if len(units) != 5 {
		t.Fatalf("%d visible units", len(units))
	}
	for i := 1; i < len(units); i++ {
		if units[i-1].Key() > units[i].Key() {
			t.Fatalf("keys not sorted: %v", keysOf(units))
		}
	}
	wantStates := []uint64{0, 0, 1, 2, 3}
	for i, u := range units {
		if b.State(u) != wantStates[i] {
			t.Fatalf("state order wrong at %d: %d", i, b.State(u))
		}
	}
}

func TestBinderForget(t *testing.T) {
	b := NewBinder()
	calls := 0
	bind := func() { calls++ }
	b.BindProgram(3, bind)
	b.BindProgram(3, bind)
	b.Forget(3, 0)
	b.BindProgram(3, bind)
	b.BindLayout(0, bind)
	b.BindLayout(0, bind)
	if calls != 4 {
		t.Fatalf("bind called %d times, want 4", calls)
	}
	b.Reset()
	if b.Program() != 0 || b.Layout() != 0 {
		t.Fatal("reset should forget everything")
	}
}

func TestProcessBindsUnitsWithoutInstances(t *testing.T) {
	m := &fakeMap{id: 3}
	layout := &fakeLayout{id: 4, calls: oneCall()}

	b := NewBucket(0, SortAll, metadata.DefaultRenderState())
	b.Insert(b.AddSource(Source{Map: m, Layout: layout, Count: 1, Mode: DrawDirectInstanced}), 0, true)

	issuer := &fakeIssuer{}
	if n := b.Process(issuer, NewBinder(), nil); n != 0 || len(issuer.log) != 0 {
		t.Fatalf("issued %v, want nothing", issuer.log)
	}
	if m.binds != 1 || layout.binds != 1 {
		t.Fatalf("binds: map=%d layout=%d, want 1 each", m.binds, layout.binds)
	}
}
