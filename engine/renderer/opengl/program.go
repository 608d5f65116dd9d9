package opengl

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/objects"
)

// Program is a linked vertex + fragment program. Programs live in the share
// group of the context that built them; when they have to move to an
// unrelated context they travel as a program binary, or as source if the
// driver cannot hand out binaries.
type Program struct {
	objects.ID

	cm       *renderer.ContextManager
	handle   uint32
	vertex   string
	fragment string
	binary   bool
}

type programBinary struct {
	format uint32
	data   []byte
}

// NewProgram compiles and links a program on the current context.
func NewProgram(cm *renderer.ContextManager, vertex, fragment string) (*Program, error) {
	ctx, err := cm.Active()
	if err != nil {
		return nil, err
	}

	p := &Program{
		cm:       cm,
		vertex:   vertex,
		fragment: fragment,
		binary:   ctx.Capabilities != nil && ctx.Capabilities.ProgramBinary,
	}
	if p.handle, err = p.build(); err != nil {
		return nil, err
	}
	if err := p.ID.Init(objects.FlagNeedsReference|objects.FlagShareable, p, ctx.Objects); err != nil {
		gl.DeleteProgram(p.handle)
		return nil, err
	}
	return p, nil
}

// Handle returns the GL name of the program on the current context.
func (p *Program) Handle() uint32 {
	return p.handle
}

// ProgramID is the registry id of the program on the current context.
func (p *Program) ProgramID() uint32 {
	if ctx := p.cm.Current(); ctx != nil {
		return p.IDIn(ctx.Objects)
	}
	return 0
}

// Release deletes the program on a context that owns it. Clearing the
// embedded ID directly deletes it on whatever context is current.
func (p *Program) Release() error {
	return p.cm.Release(&p.ID)
}

func (p *Program) Destruct() {
	if p.handle != 0 {
		gl.DeleteProgram(p.handle)
		p.handle = 0
	}
	if ctx := p.cm.Current(); ctx != nil {
		ctx.Binder.Reset()
	}
}

func (p *Program) Prepare(storage *any) {
	if p.binary {
		var length int32
		gl.GetProgramiv(p.handle, gl.PROGRAM_BINARY_LENGTH, &length)
		if length > 0 {
			b := programBinary{data: make([]byte, length)}
			gl.GetProgramBinary(p.handle, length, &length, &b.format, gl.Ptr(b.data))
			b.data = b.data[:length]
			*storage = b
		}
	}
	gl.DeleteProgram(p.handle)
	p.handle = 0
}

func (p *Program) Transfer(storage *any) {
	if ctx := p.cm.Current(); ctx != nil && ctx.Capabilities != nil {
		p.binary = ctx.Capabilities.ProgramBinary
	}

	if b, ok := (*storage).(programBinary); ok && p.binary {
		handle := gl.CreateProgram()
		gl.ProgramBinary(handle, b.format, gl.Ptr(b.data), int32(len(b.data)))
		err := linkStatus(handle)
		if err == nil {
			p.handle = handle
			return
		}
		core.LogDebug("program binary rejected, recompiling: %s", err)
		gl.DeleteProgram(handle)
	}

	handle, err := p.build()
	if err != nil {
		core.LogError("failed to rebuild program: %s", err)
		return
	}
	p.handle = handle
}

func (p *Program) build() (uint32, error) {
	vs, err := compileShader(p.vertex, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vs)

	fs, err := compileShader(p.fragment, gl.FRAGMENT_SHADER)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(fs)

	handle := gl.CreateProgram()
	if p.binary {
		gl.ProgramParameteri(handle, gl.PROGRAM_BINARY_RETRIEVABLE_HINT, gl.TRUE)
	}
	gl.AttachShader(handle, vs)
	gl.AttachShader(handle, fs)
	gl.LinkProgram(handle)
	gl.DetachShader(handle, vs)
	gl.DetachShader(handle, fs)

	if err := linkStatus(handle); err != nil {
		gl.DeleteProgram(handle)
		return 0, err
	}
	return handle, nil
}

func compileShader(source string, stage uint32) (uint32, error) {
	shader := gl.CreateShader(stage)

	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var length int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &length)
		log := strings.Repeat("\x00", int(length+1))
		gl.GetShaderInfoLog(shader, length, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("failed to compile shader: %s", strings.TrimRight(log, "\x00"))
	}
	return shader, nil
}

func linkStatus(program uint32) error {
	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.TRUE {
		return nil
	}
	var length int32
	gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &length)
	log := strings.Repeat("\x00", int(length+1))
	gl.GetProgramInfoLog(program, length, nil, gl.Str(log))
	return fmt.Errorf("failed to link program: %s", strings.TrimRight(log, "\x00"))
}
