package platform

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/opengl"
)

var ErrWrongHandle = errors.New("handle is not a glfw window")

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Platform creates OpenGL contexts through glfw. Every context lives in its
// own window: the first one is shown, later ones stay hidden and only serve
// as extra contexts.
type Platform struct {
	window   config.WindowConfig
	versions []config.ContextVersion
	debug    bool
	errors   *core.ErrorQueue

	main      *glfw.Window
	groups    map[*glfw.Window]int
	nextGroup int
	width     int
	height    int
}

func New(cfg *config.Config) *Platform {
	return &Platform{
		window:   cfg.Window,
		versions: cfg.Context.Versions,
		debug:    cfg.Context.Debug,
		groups:   make(map[*glfw.Window]int),
		width:    int(cfg.Window.Width),
		height:   int(cfg.Window.Height),
	}
}

func (p *Platform) Startup() error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}
	return nil
}

func (p *Platform) Shutdown() error {
	for w := range p.groups {
		w.Destroy()
	}
	clear(p.groups)
	p.main = nil
	glfw.Terminate()
	return nil
}

// SetErrorQueue routes capability fallbacks detected while loading a
// context into errs.
func (p *Platform) SetErrorQueue(errs *core.ErrorQueue) {
	p.errors = errs
}

// Create tries the configured versions in order and returns the first
// context glfw manages to create.
func (p *Platform) Create(share renderer.Handle) (renderer.Handle, error) {
	var shareWith *glfw.Window
	if share != nil {
		w, ok := share.(*glfw.Window)
		if !ok {
			return nil, ErrWrongHandle
		}
		shareWith = w
	}

	var lastErr error
	for _, v := range p.versions {
		glfw.DefaultWindowHints()
		glfw.WindowHint(glfw.ClientAPI, glfw.OpenGLAPI)
		glfw.WindowHint(glfw.ContextVersionMajor, v.Major)
		glfw.WindowHint(glfw.ContextVersionMinor, v.Minor)
		if v.Major > 3 || (v.Major == 3 && v.Minor >= 2) {
			glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
			glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
		}
		glfw.WindowHint(glfw.OpenGLDebugContext, boolHint(p.debug))
		glfw.WindowHint(glfw.Resizable, glfw.True)
		glfw.WindowHint(glfw.Visible, glfw.False)

		w, err := glfw.CreateWindow(p.width, p.height, p.window.Name, nil, shareWith)
		if err != nil {
			core.LogDebug("OpenGL %d.%d context unavailable: %s", v.Major, v.Minor, err)
			lastErr = err
			continue
		}

		if shareWith != nil {
			p.groups[w] = p.groups[shareWith]
		} else {
			p.nextGroup++
			p.groups[w] = p.nextGroup
		}
		if p.main == nil {
			p.setupMainWindow(w)
		}
		core.LogInfo("created OpenGL %d.%d context", v.Major, v.Minor)
		return w, nil
	}
	return nil, fmt.Errorf("no OpenGL version out of %v could be created: %w", p.versions, lastErr)
}

func (p *Platform) setupMainWindow(w *glfw.Window) {
	p.main = w
	w.SetKeyCallback(keyCallback)
	w.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	w.SetPos(int(p.window.PosX), int(p.window.PosY))
	w.Show()
}

func (p *Platform) MakeCurrent(h renderer.Handle) error {
	if h == nil {
		glfw.DetachCurrentContext()
		return nil
	}
	w, ok := h.(*glfw.Window)
	if !ok {
		return ErrWrongHandle
	}
	w.MakeContextCurrent()
	return nil
}

func (p *Platform) Destroy(h renderer.Handle) {
	w, ok := h.(*glfw.Window)
	if !ok {
		return
	}
	if _, live := p.groups[w]; !live {
		return
	}
	delete(p.groups, w)
	if p.main == w {
		p.main = nil
	}
	w.Destroy()
}

// Shares reports whether a and b were created in the same share group.
func (p *Platform) Shares(a, b renderer.Handle) bool {
	wa, okA := a.(*glfw.Window)
	wb, okB := b.(*glfw.Window)
	if !okA || !okB {
		return false
	}
	ga, okA := p.groups[wa]
	gb, okB := p.groups[wb]
	return okA && okB && ga == gb
}

// Load fills the capability table of the current context.
func (p *Platform) Load(h renderer.Handle) (*metadata.Capabilities, metadata.DrawIssuer, error) {
	if _, ok := h.(*glfw.Window); !ok {
		return nil, nil, ErrWrongHandle
	}
	return opengl.Load(p.errors)
}

// PumpMessages processes pending window events. It reports false once the
// main window was asked to close.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return p.main != nil && !p.main.ShouldClose()
}

func (p *Platform) Present(h renderer.Handle) {
	if w, ok := h.(*glfw.Window); ok {
		w.SwapBuffers()
	}
}

// FramebufferSize returns the last known size of the main window.
func (p *Platform) FramebufferSize() (int, int) {
	return p.width, p.height
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.width, p.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)
}

func keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if key == glfw.KeyEscape && action == glfw.Press {
		core.LogInfo("escape pressed, shutting down.")
		w.SetShouldClose(true)
	}
}

func boolHint(b bool) int {
	if b {
		return glfw.True
	}
	return glfw.False
}
