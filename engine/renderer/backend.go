package renderer

import "github.com/spaghettifunk/lumen/engine/renderer/metadata"

// Handle is a native graphics context owned by a ContextBackend.
type Handle interface{}

// ContextBackend creates and switches native graphics contexts. It is the
// only part of the context manager that talks to the windowing layer.
type ContextBackend interface {
	// Create makes a new context, trying every configured version in
	// order. A non-nil share joins the new context to its share group.
	Create(share Handle) (Handle, error)
	// MakeCurrent binds the context to the calling thread. A nil handle
	// releases the current context.
	MakeCurrent(h Handle) error
	Destroy(h Handle)
	// Shares reports whether objects created on a are usable on b.
	Shares(a, b Handle) bool
	// Load populates the capability table of the current context.
	Load(h Handle) (*metadata.Capabilities, metadata.DrawIssuer, error)
}
