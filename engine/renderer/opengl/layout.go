package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/pipeline"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/objects"
)

var _ pipeline.VertexLayout = (*VertexLayout)(nil)

type AttributeType uint32

const (
	AttributeFloat32 AttributeType = gl.FLOAT
	AttributeInt32   AttributeType = gl.INT
	AttributeUint8   AttributeType = gl.UNSIGNED_BYTE
	AttributeUint16  AttributeType = gl.UNSIGNED_SHORT
)

/**
 * @brief Describes one vertex attribute fed from a buffer.
 */
type Attribute struct {
	Location   uint32
	Buffer     *Buffer
	Components int32
	Type       AttributeType
	Normalized bool
	/** @brief Distance in bytes between two consecutive elements. */
	Stride int32
	Offset int
	/** @brief Non zero makes the attribute advance per instance. */
	Divisor uint32
}

// VertexLayout binds vertex buffers to attribute locations and carries the
// predefined draw calls of the geometry. Vertex array objects are never
// shared between contexts, so a layout is rebuilt on every move. The buffers
// it reads from must have been created before it.
type VertexLayout struct {
	objects.ID

	cm      *renderer.ContextManager
	vao     uint32
	attribs []Attribute
	indices *Buffer
	calls   []metadata.DrawCall
}

// NewVertexLayout creates the vertex array of the layout on the current
// context. indices may be nil for layouts only drawn directly.
func NewVertexLayout(cm *renderer.ContextManager, attribs []Attribute, indices *Buffer, calls []metadata.DrawCall) (*VertexLayout, error) {
	ctx, err := cm.Active()
	if err != nil {
		return nil, err
	}
	if ctx.Capabilities != nil && len(attribs) > ctx.Capabilities.MaxVertexAttribs && ctx.Capabilities.MaxVertexAttribs > 0 {
		return nil, fmt.Errorf("layout uses %d attributes, context supports %d: %w",
			len(attribs), ctx.Capabilities.MaxVertexAttribs, core.ErrIncompatibleContext)
	}
	for _, a := range attribs {
		if a.Buffer == nil {
			return nil, fmt.Errorf("attribute %d has no buffer: %w", a.Location, core.ErrInvalidOperation)
		}
	}

	l := &VertexLayout{
		cm:      cm,
		attribs: append([]Attribute(nil), attribs...),
		indices: indices,
		calls:   append([]metadata.DrawCall(nil), calls...),
	}
	l.build(ctx)
	if err := l.ID.Init(objects.FlagNeedsReference, l, ctx.Objects); err != nil {
		gl.DeleteVertexArrays(1, &l.vao)
		return nil, err
	}
	return l, nil
}

func (l *VertexLayout) LayoutID() uint32 {
	if ctx := l.cm.Current(); ctx != nil {
		return l.IDIn(ctx.Objects)
	}
	return 0
}

func (l *VertexLayout) Bind(binder *pipeline.Binder) {
	binder.BindLayout(l.LayoutID(), func() {
		gl.BindVertexArray(l.vao)
	})
}

func (l *VertexLayout) DrawCalls() []metadata.DrawCall {
	return l.calls
}

func (l *VertexLayout) build(ctx *renderer.Context) {
	gl.GenVertexArrays(1, &l.vao)
	gl.BindVertexArray(l.vao)
	for _, a := range l.attribs {
		gl.BindBuffer(gl.ARRAY_BUFFER, a.Buffer.Handle())
		gl.EnableVertexAttribArray(a.Location)
		if a.Type == AttributeFloat32 || a.Normalized {
			gl.VertexAttribPointer(a.Location, a.Components, uint32(a.Type), a.Normalized, a.Stride, gl.PtrOffset(a.Offset))
		} else {
			gl.VertexAttribIPointer(a.Location, a.Components, uint32(a.Type), a.Stride, gl.PtrOffset(a.Offset))
		}
		if a.Divisor != 0 {
			gl.VertexAttribDivisor(a.Location, a.Divisor)
		}
	}
	if l.indices != nil {
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, l.indices.Handle())
	}
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	// The binder no longer knows which vertex array is bound.
	if ctx != nil {
		ctx.Binder.Reset()
	}
}

// Release deletes the vertex array on a context that owns it. Clearing the
// embedded ID directly deletes it on whatever context is current.
func (l *VertexLayout) Release() error {
	return l.cm.Release(&l.ID)
}

func (l *VertexLayout) Destruct() {
	if l.vao != 0 {
		gl.DeleteVertexArrays(1, &l.vao)
		l.vao = 0
	}
	if ctx := l.cm.Current(); ctx != nil {
		ctx.Binder.Reset()
	}
}

func (l *VertexLayout) Prepare(storage *any) {
	gl.DeleteVertexArrays(1, &l.vao)
	l.vao = 0
}

func (l *VertexLayout) Transfer(storage *any) {
	l.build(l.cm.Current())
}
