package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/pipeline"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released everything and cannot be used anymore
	EngineStageShutdown
)

// EventPump is implemented by backends that own a window and need their
// event queue drained once per frame. PumpMessages reports false once the
// application should quit.
type EventPump interface {
	PumpMessages() bool
}

// Presenter is implemented by backends that have to swap buffers after a
// frame was drawn.
type Presenter interface {
	Present(h renderer.Handle)
}

type Option func(*Engine)

// WithStateApplier sets what applies bucket render state before drawing.
func WithStateApplier(applier pipeline.StateApplier) Option {
	return func(e *Engine) {
		e.applier = applier
	}
}

// WithConfigFile watches path and applies log and pipeline settings
// whenever the file changes.
func WithConfigFile(path string) Option {
	return func(e *Engine) {
		e.configPath = path
	}
}

// Engine is one rendering session. It owns the configuration, the error
// queue, every graphics context and every bucket. Except for Config and
// Errors, its methods must be called from the thread driving the renderer.
type Engine struct {
	stage Stage

	mu  sync.RWMutex
	cfg *config.Config

	backend  renderer.ContextBackend
	errors   *core.ErrorQueue
	contexts *renderer.ContextManager
	applier  pipeline.StateApplier
	buckets  []*pipeline.Bucket
	metrics  *core.Metrics
	clock    *core.Clock

	configPath string
	watcher    *config.Watcher
}

func New(cfg *config.Config, backend renderer.ContextBackend, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	if err := applyLogging(cfg.Log); err != nil {
		return nil, err
	}

	errs := core.NewErrorQueue(cfg.Errors.Max)
	cm, err := renderer.NewContextManager(backend, errs, cfg.Context.Share)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		stage:    EngineStageUninitialized,
		cfg:      cfg,
		backend:  backend,
		errors:   errs,
		contexts: cm,
		metrics:  core.NewMetrics(),
		clock:    core.NewClock(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Initialize creates the primary context and starts watching the
// configuration file, if any.
func (e *Engine) Initialize() error {
	if e.stage != EngineStageUninitialized {
		return fmt.Errorf("engine already initialized: %w", core.ErrInvalidOperation)
	}
	e.stage = EngineStageInitializing

	if _, err := e.contexts.CreateContext(); err != nil {
		e.stage = EngineStageUninitialized
		return err
	}

	if e.configPath != "" {
		w, err := config.NewWatcher(e.configPath, e.onConfigReload)
		if err != nil {
			core.LogWarn("not watching %s: %s", e.configPath, err)
		} else {
			e.watcher = w
		}
	}

	e.stage = EngineStageInitialized
	core.LogInfo("engine initialized")
	return nil
}

// NewBucket creates a bucket with the sort settings of the configuration.
func (e *Engine) NewBucket(state metadata.RenderState) *pipeline.Bucket {
	e.mu.RLock()
	p := e.cfg.Pipeline
	e.mu.RUnlock()

	var flags pipeline.BucketFlags
	if p.SortProgram {
		flags |= pipeline.SortProgram
	}
	if p.SortLayout {
		flags |= pipeline.SortVertexLayout
	}
	return e.NewBucketWith(p.ManualBits, flags, state)
}

// NewBucketWith creates a bucket with explicit sort settings. Buckets are
// drawn in creation order.
func (e *Engine) NewBucketWith(bits uint8, flags pipeline.BucketFlags, state metadata.RenderState) *pipeline.Bucket {
	b := pipeline.NewBucket(bits, flags, state)
	e.buckets = append(e.buckets, b)
	return b
}

// RemoveBucket drops b and every unit in it. Reports whether b belonged to
// the engine.
func (e *Engine) RemoveBucket(b *pipeline.Bucket) bool {
	i := slices.Index(e.buckets, b)
	if i < 0 {
		return false
	}
	b.Clear()
	e.buckets = slices.Delete(e.buckets, i, i+1)
	return true
}

func (e *Engine) Buckets() []*pipeline.Bucket {
	return slices.Clone(e.buckets)
}

// Frame draws every bucket on the current context and returns the number
// of draw calls issued.
func (e *Engine) Frame(delta float64) (uint64, error) {
	ctx, err := e.contexts.Active()
	if err != nil {
		return 0, err
	}

	var calls uint64
	for _, b := range e.buckets {
		calls += b.Process(ctx.Issuer, ctx.Binder, e.applier)
	}
	if p, ok := e.backend.(Presenter); ok {
		p.Present(ctx.Handle)
	}

	e.metrics.Update(delta)
	e.metrics.AddDrawCalls(calls)
	return calls, nil
}

// Run initializes g, then calls its update hook and Frame until ctx is
// cancelled, the backend asks to quit or a hook fails.
func (e *Engine) Run(ctx context.Context, g *Game) error {
	if e.stage != EngineStageInitialized {
		return fmt.Errorf("engine not initialized: %w", core.ErrInvalidOperation)
	}
	e.stage = EngineStageRunning
	defer func() {
		if e.stage == EngineStageRunning {
			e.stage = EngineStageInitialized
		}
	}()

	if g != nil && g.FnInitialize != nil {
		if err := g.FnInitialize(e); err != nil {
			core.LogError("game initialization failed: %s", err)
			return err
		}
	}
	if g != nil && g.FnShutdown != nil {
		defer func() {
			if err := g.FnShutdown(); err != nil {
				core.LogError("game shutdown failed: %s", err)
			}
		}()
	}

	e.clock.Start()
	last := e.clock.Elapsed()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if pump, ok := e.backend.(EventPump); ok && !pump.PumpMessages() {
			core.LogInfo("quit requested, leaving the frame loop")
			return nil
		}

		e.clock.Update()
		now := e.clock.Elapsed()
		delta := (now - last).Seconds()
		last = now

		if g != nil && g.FnUpdate != nil {
			if err := g.FnUpdate(delta); err != nil {
				core.LogError("game update failed: %s", err)
				return err
			}
		}
		if _, err := e.Frame(delta); err != nil {
			core.LogError("frame failed: %s", err)
			return err
		}
	}
}

// Shutdown releases every bucket and context. It can be called more than
// once.
func (e *Engine) Shutdown() error {
	if e.stage == EngineStageShutdown || e.stage == EngineStageShuttingDown {
		return nil
	}
	e.stage = EngineStageShuttingDown

	var errs []error
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			errs = append(errs, err)
		}
		e.watcher = nil
	}
	for _, b := range e.buckets {
		b.Clear()
	}
	e.buckets = nil
	if err := e.contexts.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	e.clock.Stop()

	e.stage = EngineStageShutdown
	core.LogInfo("engine shut down")
	core.SetLogFile("", 0)

	return errors.Join(errs...)
}

func (e *Engine) Stage() Stage {
	return e.stage
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() config.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return *e.cfg
}

func (e *Engine) Errors() *core.ErrorQueue {
	return e.errors
}

func (e *Engine) Contexts() *renderer.ContextManager {
	return e.contexts
}

func (e *Engine) Metrics() *core.Metrics {
	return e.metrics
}

// onConfigReload applies the settings that can change while running: the
// log section and the pipeline defaults of new buckets.
func (e *Engine) onConfigReload(cfg *config.Config) {
	if err := applyLogging(cfg.Log); err != nil {
		core.LogWarn("ignoring reloaded log settings: %s", err)
		return
	}
	e.mu.Lock()
	next := *e.cfg
	next.Log = cfg.Log
	next.Pipeline = cfg.Pipeline
	e.cfg = &next
	e.mu.Unlock()
}

func applyLogging(cfg config.LogConfig) error {
	level, err := core.ParseLogLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("%w: log level %q", config.ErrInvalidConfig, cfg.Level)
	}
	core.SetLogLevel(level)
	core.SetLogFile(cfg.File, cfg.MaxSizeMB)
	return nil
}
