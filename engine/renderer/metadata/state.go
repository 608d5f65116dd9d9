package metadata

type CompareFunc uint8

const (
	CompareNever CompareFunc = iota
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways
)

type BlendFunc uint8

const (
	BlendZero BlendFunc = iota
	BlendOne
	BlendSrcAlpha
	BlendOneMinusSrcAlpha
	BlendDstAlpha
	BlendOneMinusDstAlpha
)

type StencilOp uint8

const (
	StencilKeep StencilOp = iota
	StencilZero
	StencilReplace
	StencilIncrement
	StencilDecrement
	StencilInvert
)

type CullMode uint8

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

type DepthState struct {
	Test    bool
	Write   bool
	Compare CompareFunc
}

type BlendState struct {
	Enabled bool
	Src     BlendFunc
	Dst     BlendFunc
}

type StencilState struct {
	Enabled bool
	Compare CompareFunc
	Ref     int32
	Mask    uint32
	Fail    StencilOp
	Pass    StencilOp
}

/**
 * @brief Fixed function state applied once before a bucket draws its units.
 */
type RenderState struct {
	Depth   DepthState
	Blend   BlendState
	Stencil StencilState
	Cull    CullMode
}

// DefaultRenderState is the state a freshly created context starts with,
// except that depth testing is on.
func DefaultRenderState() RenderState {
	return RenderState{
		Depth: DepthState{
			Test:    true,
			Write:   true,
			Compare: CompareLess,
		},
		Blend: BlendState{
			Src: BlendOne,
			Dst: BlendZero,
		},
		Stencil: StencilState{
			Compare: CompareAlways,
			Mask:    ^uint32(0),
			Fail:    StencilKeep,
			Pass:    StencilKeep,
		},
		Cull: CullBack,
	}
}
