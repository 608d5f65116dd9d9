package opengl

import (
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/objects"
)

type BufferUsage uint32

const (
	StaticDraw  BufferUsage = gl.STATIC_DRAW
	DynamicDraw BufferUsage = gl.DYNAMIC_DRAW
	StreamDraw  BufferUsage = gl.STREAM_DRAW
)

// Buffer is a GPU buffer object. Buffers are shared within a share group;
// moving one to an unrelated context reads its contents back and uploads
// them again.
type Buffer struct {
	objects.ID

	cm     *renderer.ContextManager
	handle uint32
	usage  BufferUsage
	size   int
}

// NewBuffer creates a buffer on the current context and uploads data.
func NewBuffer(cm *renderer.ContextManager, usage BufferUsage, data []byte) (*Buffer, error) {
	ctx, err := cm.Active()
	if err != nil {
		return nil, err
	}

	b := &Buffer{cm: cm, usage: usage}
	b.create(data)
	if err := b.ID.Init(objects.FlagNeedsReference|objects.FlagShareable, b, ctx.Objects); err != nil {
		gl.DeleteBuffers(1, &b.handle)
		return nil, err
	}
	return b, nil
}

func (b *Buffer) Handle() uint32 {
	return b.handle
}

// Size returns the size of the buffer in bytes.
func (b *Buffer) Size() int {
	return b.size
}

// Upload replaces the whole content of the buffer.
func (b *Buffer) Upload(data []byte) {
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, b.handle)
	gl.BufferData(gl.COPY_WRITE_BUFFER, len(data), ptr(data), uint32(b.usage))
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)
	b.size = len(data)
}

func (b *Buffer) create(data []byte) {
	gl.GenBuffers(1, &b.handle)
	b.Upload(data)
}

// Release deletes the buffer on a context that owns it. Clearing the
// embedded ID directly deletes it on whatever context is current.
func (b *Buffer) Release() error {
	return b.cm.Release(&b.ID)
}

func (b *Buffer) Destruct() {
	if b.handle != 0 {
		gl.DeleteBuffers(1, &b.handle)
		b.handle = 0
	}
}

func (b *Buffer) Prepare(storage *any) {
	data := make([]byte, b.size)
	if b.size > 0 {
		gl.BindBuffer(gl.COPY_READ_BUFFER, b.handle)
		gl.GetBufferSubData(gl.COPY_READ_BUFFER, 0, b.size, gl.Ptr(data))
		gl.BindBuffer(gl.COPY_READ_BUFFER, 0)
	}
	*storage = data
	b.Destruct()
}

func (b *Buffer) Transfer(storage *any) {
	data, _ := (*storage).([]byte)
	b.create(data)
}

func ptr(data []byte) unsafe.Pointer {
	if len(data) == 0 {
		return nil
	}
	return gl.Ptr(data)
}
