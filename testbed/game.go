package testbed

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/pipeline"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/opengl"
)

const vertexShader = `#version 330 core
layout(location = 0) in vec2 a_position;
layout(location = 1) in vec2 a_offset;
uniform float u_scale;
uniform vec2 u_shift;
uniform mat4 u_transform;
void main() {
	gl_Position = u_transform * vec4(a_position * u_scale + a_offset + u_shift, 0.0, 1.0);
}
`

const fragmentShader = `#version 330 core
uniform vec4 u_color;
out vec4 frag_color;
void main() {
	frag_color = u_color;
}
`

const gridSize = 8

type TestGame struct {
	*engine.Game
}

type gameState struct {
	engine *engine.Engine
	size   func() (int, int)

	program *opengl.Program
	layout  *opengl.VertexLayout
	buffers []*opengl.Buffer
	maps    []*opengl.PropertyMap

	opaque  *pipeline.Bucket
	overlay *pipeline.Bucket
	blink   *pipeline.Unit

	elapsed float64
	shown   bool
}

// NewTestGame builds a demo drawing an instanced grid of triangles plus a
// blinking overlay. size reports the framebuffer size used for the viewport.
func NewTestGame(size func() (int, int)) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			State: &gameState{size: size, shown: true},
		},
	}
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnShutdown = tg.Shutdown
	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

// Initialize builds every GPU resource on a temporary loader context that
// shares with the window, then destroys it so the resources move over.
func (g *TestGame) Initialize(e *engine.Engine) error {
	s := g.state()
	s.engine = e
	cm := e.Contexts()

	window := cm.Current()
	loader, err := cm.CreateContext()
	if err != nil {
		return err
	}
	if err := g.createResources(e); err != nil {
		return err
	}
	if err := cm.DestroyContext(loader); err != nil {
		return err
	}
	if err := cm.MakeCurrent(window); err != nil {
		return err
	}
	core.LogInfo("testbed resources moved to context %s (%d objects)", window.ID, window.Objects.Len())
	return nil
}

func (g *TestGame) createResources(e *engine.Engine) error {
	s := g.state()
	cm := e.Contexts()

	triangle := []float32{-1, -1, 1, -1, 0, 1}
	vertices, err := opengl.NewBuffer(cm, opengl.StaticDraw, floatBytes(triangle))
	if err != nil {
		return err
	}

	offsets := make([]float32, 0, gridSize*gridSize*2)
	for y := 0; y < gridSize; y++ {
		for x := 0; x < gridSize; x++ {
			offsets = append(offsets,
				-0.875+float32(x)*0.25,
				-0.875+float32(y)*0.25)
		}
	}
	instances, err := opengl.NewBuffer(cm, opengl.StaticDraw, floatBytes(offsets))
	if err != nil {
		return err
	}

	s.buffers = []*opengl.Buffer{vertices, instances}

	s.layout, err = opengl.NewVertexLayout(cm, []opengl.Attribute{
		{Location: 0, Buffer: vertices, Components: 2, Type: opengl.AttributeFloat32, Stride: 8},
		{Location: 1, Buffer: instances, Components: 2, Type: opengl.AttributeFloat32, Stride: 8, Divisor: 1},
	}, nil, []metadata.DrawCall{
		{Primitive: metadata.PrimitiveTriangles, First: 0, Count: 3},
	})
	if err != nil {
		return err
	}

	s.program, err = opengl.NewProgram(cm, vertexShader, fragmentShader)
	if err != nil {
		return err
	}

	// The two opaque maps each draw half of the grid, the second one moved
	// up by four rows.
	looks := []struct {
		color [4]float32
		shift [2]float32
	}{
		{color: [4]float32{0.90, 0.30, 0.25, 1}},
		{color: [4]float32{0.25, 0.60, 0.90, 1}, shift: [2]float32{0, 1}},
		{color: [4]float32{0.95, 0.85, 0.30, 0.6}},
	}
	for _, l := range looks {
		m := opengl.NewPropertyMap(s.program)
		uniforms := map[string]any{
			"u_color":     l.color,
			"u_shift":     l.shift,
			"u_scale":     float32(0.1),
			"u_transform": [16]float32(mgl32.Ident4()),
		}
		for name, value := range uniforms {
			if err := m.Set(name, value); err != nil {
				return err
			}
		}
		s.maps = append(s.maps, m)
	}

	s.opaque = e.NewBucket(metadata.DefaultRenderState())
	for i, m := range s.maps[:2] {
		src := s.opaque.AddSource(pipeline.Source{
			Map:    m,
			Layout: s.layout,
			Count:  1,
			Mode:   pipeline.DrawDirectInstanced,
		})
		u := s.opaque.Insert(src, gridSize*gridSize/2, true)
		s.opaque.SetState(u, uint64(i))
	}

	blend := metadata.DefaultRenderState()
	blend.Depth.Test = false
	blend.Blend = metadata.BlendState{Enabled: true, Src: metadata.BlendSrcAlpha, Dst: metadata.BlendOneMinusSrcAlpha}
	s.overlay = e.NewBucketWith(0, pipeline.SortProgram, blend)
	src := s.overlay.AddSource(pipeline.Source{
		Map:    s.maps[2],
		Layout: s.layout,
		Count:  1,
		Mode:   pipeline.DrawDirectInstanced,
	})
	s.blink = s.overlay.Insert(src, gridSize*gridSize, true)
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	s := g.state()
	s.elapsed += deltaTime

	aspect := float32(1)
	if width, height := s.size(); width > 0 && height > 0 {
		gl.Viewport(0, 0, int32(width), int32(height))
		aspect = float32(width) / float32(height)
	}
	gl.ClearColor(0.08, 0.08, 0.10, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	// Keep the grid square and let it sway around the z axis.
	projection := mgl32.Ortho2D(-aspect, aspect, -1, 1)
	transform := projection.Mul4(mgl32.HomogRotate3DZ(float32(0.1 * math.Sin(s.elapsed))))
	pulse := float32(0.08 + 0.04*math.Sin(s.elapsed*2))
	for _, m := range s.maps {
		if err := m.Set("u_transform", [16]float32(transform)); err != nil {
			return err
		}
		if err := m.Set("u_scale", pulse); err != nil {
			return err
		}
	}

	if shown := int(s.elapsed)%2 == 0; shown != s.shown {
		s.shown = shown
		s.overlay.SetVisible(s.blink, shown)
	}
	return nil
}

func (g *TestGame) Shutdown() error {
	s := g.state()
	if s.engine == nil {
		return nil
	}
	fps, frameMS := s.engine.Metrics().Frame()
	core.LogInfo("testbed done: %.0f fps, %.2f ms per frame, %d draw calls", fps, frameMS, s.engine.Metrics().DrawCalls)

	// The layout goes first, it references the buffers.
	if s.layout != nil {
		if err := s.layout.Release(); err != nil {
			core.LogWarn("releasing vertex layout: %s", err)
		}
	}
	for _, b := range s.buffers {
		if err := b.Release(); err != nil {
			core.LogWarn("releasing buffer: %s", err)
		}
	}
	if s.program != nil {
		if err := s.program.Release(); err != nil {
			core.LogWarn("releasing program: %s", err)
		}
	}

	for {
		r, ok := s.engine.Errors().Poll()
		if !ok {
			break
		}
		core.LogWarn("unhandled %s: %s", r.Code, r.Description)
	}
	return nil
}

func floatBytes(values []float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}
