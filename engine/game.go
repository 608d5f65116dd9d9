package engine

// Game is the application driven by Engine.Run. Every hook is optional.
type Game struct {
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnShutdown   Shutdown
}

// Initialize runs once the primary context exists and is current.
type Initialize func(e *Engine) error

// Update runs before every frame with the seconds since the previous one.
type Update func(deltaTime float64) error

type Shutdown func() error
