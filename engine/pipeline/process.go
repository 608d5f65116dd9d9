package pipeline

import (
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// StateApplier applies fixed function state on the current context.
type StateApplier interface {
	Apply(state metadata.RenderState)
}

// Process draws every visible unit in key order: sorts if needed, applies
// the bucket's render state once, then binds and draws unit by unit. It
// returns the number of draw calls issued. Units without instances are
// bound like any other but draw nothing.
func (b *Bucket) Process(issuer metadata.DrawIssuer, binder *Binder, applier StateApplier) uint64 {
	if b.dirty {
		b.Sort()
	}
	if applier != nil {
		applier.Apply(b.state)
	}
	if binder == nil {
		binder = NewBinder()
	}

	var calls uint64
	for u := b.first; u != nil; u = u.next {
		src := b.sources[u.src-1]
		if src.Map != nil {
			src.Map.Bind(binder)
		}
		if src.Layout == nil {
			continue
		}
		src.Layout.Bind(binder)
		if u.instances == 0 {
			continue
		}
		calls += issue(issuer, src, u.instances)
	}
	return calls
}

func issue(issuer metadata.DrawIssuer, src Source, instances uint32) uint64 {
	all := src.Layout.DrawCalls()
	start := min(int(src.Start), len(all))
	end := min(start+int(src.Count), len(all))

	for _, c := range all[start:end] {
		switch src.Mode {
		case DrawDirect:
			issuer.DrawArrays(c.Primitive, c.First, c.Count)
		case DrawIndexed:
			issuer.DrawElements(c.Primitive, c.Count, c.IndexType, c.First)
		case DrawDirectInstanced:
			issuer.DrawArraysInstanced(c.Primitive, c.First, c.Count, instances)
		case DrawIndexedInstanced:
			issuer.DrawElementsInstanced(c.Primitive, c.Count, c.IndexType, c.First, instances)
		}
	}
	return uint64(end - start)
}
