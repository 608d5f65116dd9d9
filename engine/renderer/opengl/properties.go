package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/pipeline"
)

var _ pipeline.PropertyMap = (*PropertyMap)(nil)

type uniform struct {
	name     string
	value    any
	location int32
}

// PropertyMap pairs a program with the uniform values it is drawn with.
// Several maps may share one program; binding a map always uploads its
// values even when the program stays bound.
type PropertyMap struct {
	program  *Program
	uniforms []uniform
	// Program handle the cached uniform locations belong to.
	resolved uint32
}

func NewPropertyMap(program *Program) *PropertyMap {
	return &PropertyMap{program: program}
}

func (m *PropertyMap) Program() *Program {
	return m.program
}

func (m *PropertyMap) ProgramID() uint32 {
	if m.program == nil {
		return 0
	}
	return m.program.ProgramID()
}

// Set stores a uniform value. Supported values are float32, int32, uint32,
// [2]float32, [3]float32, [4]float32 and [16]float32 (a column major 4x4
// matrix).
func (m *PropertyMap) Set(name string, value any) error {
	switch value.(type) {
	case float32, int32, uint32, [2]float32, [3]float32, [4]float32, [16]float32:
	default:
		return fmt.Errorf("unsupported uniform type %T for %q: %w", value, name, core.ErrInvalidOperation)
	}
	for i := range m.uniforms {
		if m.uniforms[i].name == name {
			m.uniforms[i].value = value
			return nil
		}
	}
	m.uniforms = append(m.uniforms, uniform{name: name, value: value, location: -1})
	m.resolved = 0
	return nil
}

// Get returns the value stored for name.
func (m *PropertyMap) Get(name string) (any, bool) {
	for _, u := range m.uniforms {
		if u.name == name {
			return u.value, true
		}
	}
	return nil, false
}

func (m *PropertyMap) Bind(binder *pipeline.Binder) {
	if m.program == nil {
		return
	}
	handle := m.program.Handle()
	binder.BindProgram(m.program.ProgramID(), func() {
		gl.UseProgram(handle)
	})

	// A migrated program gets a new handle and possibly new locations.
	if m.resolved != handle {
		for i := range m.uniforms {
			m.uniforms[i].location = gl.GetUniformLocation(handle, gl.Str(m.uniforms[i].name+"\x00"))
		}
		m.resolved = handle
	}
	for i := range m.uniforms {
		upload(m.uniforms[i].location, m.uniforms[i].value)
	}
}

func upload(location int32, value any) {
	if location < 0 {
		return
	}
	switch v := value.(type) {
	case float32:
		gl.Uniform1f(location, v)
	case int32:
		gl.Uniform1i(location, v)
	case uint32:
		gl.Uniform1ui(location, v)
	case [2]float32:
		gl.Uniform2fv(location, 1, &v[0])
	case [3]float32:
		gl.Uniform3fv(location, 1, &v[0])
	case [4]float32:
		gl.Uniform4fv(location, 1, &v[0])
	case [16]float32:
		gl.UniformMatrix4fv(location, 1, false, &v[0])
	}
}
