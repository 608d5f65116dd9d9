package metadata

import "fmt"

/** @brief A graphics API version. */
type Version struct {
	Major int
	Minor int
}

func (v Version) AtLeast(major, minor int) bool {
	return v.Major > major || (v.Major == major && v.Minor >= minor)
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

/**
 * @brief Features detected once per context, right after it is created.
 * The pipeline only ever reads these.
 */
type Capabilities struct {
	/** @brief The version of the context. */
	Version Version
	/** @brief Driver vendor string. */
	Vendor string
	/** @brief Driver renderer string. */
	Renderer string
	/** @brief glDraw*Instanced is available. */
	InstancedArrays bool
	/** @brief glDraw*InstancedBaseInstance is available. */
	BaseInstance bool
	/** @brief Program binaries can be read back and reloaded. */
	ProgramBinary bool
	/** @brief Vertex array objects are available. */
	VertexArrayObject bool
	/** @brief Programs can be bound per stage. */
	SeparateShaderObjects bool
	/** @brief Number of vertex attributes a layout may use. */
	MaxVertexAttribs int
}

/** @brief Primitive topology of a draw call. */
type Primitive uint32

const (
	PrimitivePoints Primitive = iota
	PrimitiveLines
	PrimitiveLineStrip
	PrimitiveTriangles
	PrimitiveTriangleStrip
	PrimitiveTriangleFan
)

/** @brief Type of the indices of an indexed draw call. */
type IndexType uint32

const (
	IndexUint8 IndexType = iota
	IndexUint16
	IndexUint32
)

func (t IndexType) Size() int {
	switch t {
	case IndexUint8:
		return 1
	case IndexUint16:
		return 2
	default:
		return 4
	}
}

/**
 * @brief A predefined draw call of a vertex layout.
 */
type DrawCall struct {
	Primitive Primitive
	/** @brief First vertex (direct) or byte offset into the index buffer (indexed). */
	First uint32
	/** @brief Number of vertices or indices. */
	Count     uint32
	IndexType IndexType
}

/**
 * @brief Issues draw commands on the current context. Selected once when
 * the context capabilities are loaded.
 */
type DrawIssuer interface {
	DrawArrays(primitive Primitive, first, count uint32)
	DrawElements(primitive Primitive, count uint32, indexType IndexType, offset uint32)
	DrawArraysInstanced(primitive Primitive, first, count, instances uint32)
	DrawElementsInstanced(primitive Primitive, count uint32, indexType IndexType, offset, instances uint32)
}
