package renderer

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/pipeline"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/objects"
)

var (
	ErrUnknownContext = errors.New("context not owned by this manager")
	ErrNoContext      = errors.New("no current context")
)

// Context is a live graphics context together with the objects registered
// on it.
type Context struct {
	ID           uuid.UUID
	Handle       Handle
	Objects      *objects.Container
	Capabilities *metadata.Capabilities
	Issuer       metadata.DrawIssuer
	Binder       *pipeline.Binder
}

// ContextManager owns every graphics context of an engine session. It is
// not safe for concurrent use: contexts are created, switched and destroyed
// from the thread driving the renderer.
type ContextManager struct {
	backend  ContextBackend
	errors   *core.ErrorQueue
	share    bool
	contexts []*Context
	current  *Context
}

func NewContextManager(backend ContextBackend, errs *core.ErrorQueue, share bool) (*ContextManager, error) {
	if backend == nil {
		err := fmt.Errorf("NewContextManager - backend must not be nil")
		core.LogError(err.Error())
		return nil, err
	}
	if errs == nil {
		errs = core.NewErrorQueue(core.DefaultMaxErrors)
	}
	return &ContextManager{
		backend: backend,
		errors:  errs,
		share:   share,
	}, nil
}

// CreateContext creates a context and makes it current. When sharing is
// enabled the context joins the share group of the first live context.
func (cm *ContextManager) CreateContext() (*Context, error) {
	var share Handle
	if cm.share && len(cm.contexts) > 0 {
		share = cm.contexts[0].Handle
	}

	h, err := cm.backend.Create(share)
	if err != nil {
		err = fmt.Errorf("%w: %w", core.ErrContextCreation, err)
		cm.report(err)
		return nil, err
	}

	ctx := &Context{
		ID:      uuid.New(),
		Handle:  h,
		Objects: objects.NewContainer(),
		Binder:  pipeline.NewBinder(),
	}
	if err := cm.backend.MakeCurrent(h); err != nil {
		cm.backend.Destroy(h)
		err = fmt.Errorf("%w: %w", core.ErrContextCreation, err)
		cm.report(err)
		return nil, err
	}
	cm.current = ctx

	caps, issuer, err := cm.backend.Load(h)
	if err != nil {
		cm.current = nil
		cm.backend.MakeCurrent(nil)
		cm.backend.Destroy(h)
		cm.report(err)
		return nil, err
	}
	ctx.Capabilities = caps
	ctx.Issuer = issuer

	cm.contexts = append(cm.contexts, ctx)
	core.LogInfo("context %s created", ctx.ID)
	return ctx, nil
}

// DestroyContext destroys ctx. Objects still registered on it are moved to
// another live context, or destructed if ctx is the last one. Objects that
// cannot be moved are destructed on whatever context is current. The context
// current before the call stays current unless it was ctx.
func (cm *ContextManager) DestroyContext(ctx *Context) error {
	i := cm.index(ctx)
	if i < 0 {
		return ErrUnknownContext
	}
	prev := cm.current

	var dest *Context
	for _, c := range cm.contexts {
		if c != ctx {
			dest = c
			break
		}
	}

	var err error
	if dest == nil {
		err = cm.release(ctx)
	} else {
		err = cm.migrate(ctx, dest)
	}
	if n := ctx.Objects.Len() + ctx.Objects.Staged(); n > 0 {
		core.LogWarn("context %s left %d objects behind, releasing them", ctx.ID, n)
		objects.Discard(ctx.Objects)
		ctx.Objects.Clear()
	}

	if cm.current == ctx {
		cm.current = nil
		cm.backend.MakeCurrent(nil)
	}
	cm.contexts = slices.Delete(cm.contexts, i, i+1)
	cm.backend.Destroy(ctx.Handle)
	core.LogInfo("context %s destroyed", ctx.ID)

	if prev != nil && prev != ctx {
		if rerr := cm.MakeCurrent(prev); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}
	if err != nil {
		cm.report(err)
	}
	return err
}

// migrate moves every object of src onto dest. src is current while the
// objects are prepared, dest while they are transferred.
func (cm *ContextManager) migrate(src, dest *Context) error {
	shared := cm.backend.Shares(src.Handle, dest.Handle)
	core.LogDebug("moving %d objects from context %s to %s (shared=%t)", src.Objects.Len(), src.ID, dest.ID, shared)

	if err := cm.MakeCurrent(src); err != nil {
		return err
	}
	if err := objects.Prepare(src.Objects, shared); err != nil {
		return err
	}
	if err := cm.MakeCurrent(dest); err != nil {
		// Nowhere to restore the staged objects, release them on src.
		cm.MakeCurrent(src)
		objects.Discard(src.Objects)
		return err
	}
	err := objects.Transfer(src.Objects, dest.Objects, shared)
	// Transfer callbacks bind whatever they recreate.
	dest.Binder.Reset()
	return err
}

// release destructs every object of ctx with ctx current.
func (cm *ContextManager) release(ctx *Context) error {
	if err := cm.MakeCurrent(ctx); err != nil {
		return err
	}
	ctx.Objects.Clear()
	cm.current = nil
	return cm.backend.MakeCurrent(nil)
}

// Release unregisters id from every context. The object is destructed with
// one of the contexts that held it current, then the previously current
// context is restored.
func (cm *ContextManager) Release(id *objects.ID) error {
	var owner *Context
	for _, c := range cm.contexts {
		if id.IDIn(c.Objects) != 0 {
			owner = c
			break
		}
	}
	if owner == nil {
		id.Clear()
		return nil
	}

	prev := cm.current
	if err := cm.MakeCurrent(owner); err != nil {
		cm.report(err)
		return err
	}
	id.Clear()
	if prev != nil && prev != owner {
		return cm.MakeCurrent(prev)
	}
	return nil
}

// MakeCurrent binds ctx to the calling thread. A nil ctx releases the
// current context.
func (cm *ContextManager) MakeCurrent(ctx *Context) error {
	if ctx == cm.current {
		return nil
	}
	var h Handle
	if ctx != nil {
		if cm.index(ctx) < 0 {
			return ErrUnknownContext
		}
		h = ctx.Handle
	}
	if err := cm.backend.MakeCurrent(h); err != nil {
		return err
	}
	cm.current = ctx
	return nil
}

func (cm *ContextManager) Current() *Context {
	return cm.current
}

// Active is Current for callers that need a context to do anything.
func (cm *ContextManager) Active() (*Context, error) {
	if cm.current == nil {
		return nil, ErrNoContext
	}
	return cm.current, nil
}

// Contexts returns the live contexts, oldest first.
func (cm *ContextManager) Contexts() []*Context {
	return append([]*Context(nil), cm.contexts...)
}

func (cm *ContextManager) Errors() *core.ErrorQueue {
	return cm.errors
}

// Shutdown destroys every context without migrating anything. Objects are
// destructed on the last context referencing them.
func (cm *ContextManager) Shutdown() error {
	for _, ctx := range cm.contexts {
		if err := cm.MakeCurrent(ctx); err != nil {
			cm.report(err)
			continue
		}
		ctx.Objects.Clear()
	}
	cm.current = nil
	cm.backend.MakeCurrent(nil)
	for i := len(cm.contexts) - 1; i >= 0; i-- {
		cm.backend.Destroy(cm.contexts[i].Handle)
	}
	cm.contexts = nil
	return nil
}

func (cm *ContextManager) index(ctx *Context) int {
	for i, c := range cm.contexts {
		if c == ctx {
			return i
		}
	}
	return -1
}

func (cm *ContextManager) report(err error) {
	core.LogError(err.Error())
	cm.errors.PushError(err)
}
