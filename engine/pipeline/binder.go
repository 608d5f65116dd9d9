package pipeline

// Binder remembers what is bound on the current context so property maps
// and layouts can skip redundant binds. One binder per context; it must be
// reset whenever something binds behind its back.
type Binder struct {
	program uint32
	layout  uint32

	ProgramBinds uint64
	LayoutBinds  uint64
}

func NewBinder() *Binder {
	return &Binder{}
}

// BindProgram calls bind unless the program identified by id is already
// bound. Reports whether bind was called. An id of 0 always binds.
func (b *Binder) BindProgram(id uint32, bind func()) bool {
	if id != 0 && id == b.program {
		return false
	}
	bind()
	b.program = id
	b.ProgramBinds++
	return true
}

// BindLayout is BindProgram for vertex layouts.
func (b *Binder) BindLayout(id uint32, bind func()) bool {
	if id != 0 && id == b.layout {
		return false
	}
	bind()
	b.layout = id
	b.LayoutBinds++
	return true
}

// Program returns the id of the bound program.
func (b *Binder) Program() uint32 { return b.program }

// Layout returns the id of the bound layout.
func (b *Binder) Layout() uint32 { return b.layout }

// Forget drops the bindings of a destroyed object so a later object reusing
// its id is bound again.
func (b *Binder) Forget(program, layout uint32) {
	if program != 0 && b.program == program {
		b.program = 0
	}
	if layout != 0 && b.layout == layout {
		b.layout = 0
	}
}

func (b *Binder) Reset() {
	b.program = 0
	b.layout = 0
}
