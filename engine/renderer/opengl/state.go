package opengl

import (
	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/spaghettifunk/lumen/engine/pipeline"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

var _ pipeline.StateApplier = (*StateApplier)(nil)

// StateApplier applies bucket render state, skipping the GL calls when the
// state equals what it applied last.
type StateApplier struct {
	last  metadata.RenderState
	valid bool
}

func NewStateApplier() *StateApplier {
	return &StateApplier{}
}

// Invalidate forces the next Apply to set everything, e.g. after a context
// switch.
func (s *StateApplier) Invalidate() {
	s.valid = false
}

func (s *StateApplier) Apply(state metadata.RenderState) {
	if s.valid && s.last == state {
		return
	}
	s.last, s.valid = state, true

	enable(gl.DEPTH_TEST, state.Depth.Test)
	gl.DepthMask(state.Depth.Write)
	gl.DepthFunc(glCompare(state.Depth.Compare))

	enable(gl.BLEND, state.Blend.Enabled)
	gl.BlendFunc(glBlend(state.Blend.Src), glBlend(state.Blend.Dst))

	enable(gl.STENCIL_TEST, state.Stencil.Enabled)
	gl.StencilFunc(glCompare(state.Stencil.Compare), state.Stencil.Ref, state.Stencil.Mask)
	// A depth failure counts as a stencil failure.
	fail := glStencilOp(state.Stencil.Fail)
	gl.StencilOp(fail, fail, glStencilOp(state.Stencil.Pass))

	switch state.Cull {
	case metadata.CullNone:
		gl.Disable(gl.CULL_FACE)
	case metadata.CullFront:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.FRONT)
	default:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
	}
}

func enable(capability uint32, on bool) {
	if on {
		gl.Enable(capability)
	} else {
		gl.Disable(capability)
	}
}

func glCompare(c metadata.CompareFunc) uint32 {
	switch c {
	case metadata.CompareNever:
		return gl.NEVER
	case metadata.CompareLess:
		return gl.LESS
	case metadata.CompareEqual:
		return gl.EQUAL
	case metadata.CompareLessEqual:
		return gl.LEQUAL
	case metadata.CompareGreater:
		return gl.GREATER
	case metadata.CompareNotEqual:
		return gl.NOTEQUAL
	case metadata.CompareGreaterEqual:
		return gl.GEQUAL
	default:
		return gl.ALWAYS
	}
}

func glBlend(f metadata.BlendFunc) uint32 {
	switch f {
	case metadata.BlendZero:
		return gl.ZERO
	case metadata.BlendSrcAlpha:
		return gl.SRC_ALPHA
	case metadata.BlendOneMinusSrcAlpha:
		return gl.ONE_MINUS_SRC_ALPHA
	case metadata.BlendDstAlpha:
		return gl.DST_ALPHA
	case metadata.BlendOneMinusDstAlpha:
		return gl.ONE_MINUS_DST_ALPHA
	default:
		return gl.ONE
	}
}

func glStencilOp(op metadata.StencilOp) uint32 {
	switch op {
	case metadata.StencilZero:
		return gl.ZERO
	case metadata.StencilReplace:
		return gl.REPLACE
	case metadata.StencilIncrement:
		return gl.INCR
	case metadata.StencilDecrement:
		return gl.DECR
	case metadata.StencilInvert:
		return gl.INVERT
	default:
		return gl.KEEP
	}
}
