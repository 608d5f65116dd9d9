package opengl

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// Load resolves the GL entry points of the current context and fills in its
// capability table. The returned issuer is bound to what the context
// supports; missing features degrade and are reported once through errs.
func Load(errs *core.ErrorQueue) (*metadata.Capabilities, metadata.DrawIssuer, error) {
	if err := gl.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	caps := &metadata.Capabilities{
		Vendor:   gl.GoStr(gl.GetString(gl.VENDOR)),
		Renderer: gl.GoStr(gl.GetString(gl.RENDERER)),
	}

	var major, minor, attribs int32
	gl.GetIntegerv(gl.MAJOR_VERSION, &major)
	gl.GetIntegerv(gl.MINOR_VERSION, &minor)
	gl.GetIntegerv(gl.MAX_VERTEX_ATTRIBS, &attribs)
	caps.Version = metadata.Version{Major: int(major), Minor: int(minor)}
	caps.MaxVertexAttribs = int(attribs)

	exts := extensions()
	v := caps.Version
	caps.VertexArrayObject = v.AtLeast(3, 0) || exts["GL_ARB_vertex_array_object"]
	caps.InstancedArrays = v.AtLeast(3, 1) || exts["GL_ARB_draw_instanced"]
	caps.BaseInstance = v.AtLeast(4, 2) || exts["GL_ARB_base_instance"]
	caps.ProgramBinary = v.AtLeast(4, 1) || exts["GL_ARB_get_program_binary"]
	caps.SeparateShaderObjects = v.AtLeast(4, 1) || exts["GL_ARB_separate_shader_objects"]

	if caps.ProgramBinary {
		var formats int32
		gl.GetIntegerv(gl.NUM_PROGRAM_BINARY_FORMATS, &formats)
		caps.ProgramBinary = formats > 0
	}

	core.LogInfo("OpenGL %s vendor %s renderer %s", caps.Version, caps.Vendor, caps.Renderer)
	core.LogDebug("capabilities: vao=%t instanced=%t base_instance=%t program_binary=%t",
		caps.VertexArrayObject, caps.InstancedArrays, caps.BaseInstance, caps.ProgramBinary)

	if !caps.VertexArrayObject {
		return nil, nil, fmt.Errorf("vertex array objects unavailable on OpenGL %s: %w", caps.Version, core.ErrIncompatibleContext)
	}
	return caps, newDrawTable(caps, errs), nil
}

func extensions() map[string]bool {
	var n int32
	gl.GetIntegerv(gl.NUM_EXTENSIONS, &n)
	exts := make(map[string]bool, n)
	for i := int32(0); i < n; i++ {
		name := gl.GoStr(gl.GetStringi(gl.EXTENSIONS, uint32(i)))
		exts[strings.TrimSpace(name)] = true
	}
	return exts
}

// drawTable is the draw half of the capability table: one function per
// draw variant, chosen once in newDrawTable.
type drawTable struct {
	arrays            func(mode uint32, first, count int32)
	elements          func(mode uint32, count int32, indexType uint32, offset int)
	arraysInstanced   func(mode uint32, first, count, instances int32)
	elementsInstanced func(mode uint32, count int32, indexType uint32, offset int, instances int32)
}

func newDrawTable(caps *metadata.Capabilities, errs *core.ErrorQueue) *drawTable {
	t := &drawTable{
		arrays: func(mode uint32, first, count int32) {
			gl.DrawArrays(mode, first, count)
		},
		elements: func(mode uint32, count int32, indexType uint32, offset int) {
			gl.DrawElements(mode, count, indexType, gl.PtrOffset(offset))
		},
	}

	if caps.InstancedArrays {
		t.arraysInstanced = func(mode uint32, first, count, instances int32) {
			gl.DrawArraysInstanced(mode, first, count, instances)
		}
		t.elementsInstanced = func(mode uint32, count int32, indexType uint32, offset int, instances int32) {
			gl.DrawElementsInstanced(mode, count, indexType, gl.PtrOffset(offset), instances)
		}
		return t
	}

	// No instancing: replay the plain draw once per instance.
	var warn sync.Once
	report := func() {
		warn.Do(func() {
			err := fmt.Errorf("instanced drawing unsupported by OpenGL %s, emulating: %w", caps.Version, core.ErrIncompatibleContext)
			core.LogWarn(err.Error())
			if errs != nil {
				errs.PushError(err)
			}
		})
	}
	t.arraysInstanced = func(mode uint32, first, count, instances int32) {
		report()
		for i := int32(0); i < instances; i++ {
			t.arrays(mode, first, count)
		}
	}
	t.elementsInstanced = func(mode uint32, count int32, indexType uint32, offset int, instances int32) {
		report()
		for i := int32(0); i < instances; i++ {
			t.elements(mode, count, indexType, offset)
		}
	}
	return t
}

func (t *drawTable) DrawArrays(primitive metadata.Primitive, first, count uint32) {
	t.arrays(glPrimitive(primitive), int32(first), int32(count))
}

func (t *drawTable) DrawElements(primitive metadata.Primitive, count uint32, indexType metadata.IndexType, offset uint32) {
	t.elements(glPrimitive(primitive), int32(count), glIndexType(indexType), int(offset))
}

func (t *drawTable) DrawArraysInstanced(primitive metadata.Primitive, first, count, instances uint32) {
	t.arraysInstanced(glPrimitive(primitive), int32(first), int32(count), int32(instances))
}

func (t *drawTable) DrawElementsInstanced(primitive metadata.Primitive, count uint32, indexType metadata.IndexType, offset, instances uint32) {
	t.elementsInstanced(glPrimitive(primitive), int32(count), glIndexType(indexType), int(offset), int32(instances))
}

func glPrimitive(p metadata.Primitive) uint32 {
	switch p {
	case metadata.PrimitivePoints:
		return gl.POINTS
	case metadata.PrimitiveLines:
		return gl.LINES
	case metadata.PrimitiveLineStrip:
		return gl.LINE_STRIP
	case metadata.PrimitiveTriangleStrip:
		return gl.TRIANGLE_STRIP
	case metadata.PrimitiveTriangleFan:
		return gl.TRIANGLE_FAN
	default:
		return gl.TRIANGLES
	}
}

func glIndexType(t metadata.IndexType) uint32 {
	switch t {
	case metadata.IndexUint8:
		return gl.UNSIGNED_BYTE
	case metadata.IndexUint16:
		return gl.UNSIGNED_SHORT
	default:
		return gl.UNSIGNED_INT
	}
}
