package objects

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/lumen/engine/core"
)

var (
	ErrNeedsReference      = fmt.Errorf("object requires a standing container reference: %w", core.ErrInvalidOperation)
	ErrNotShareable        = fmt.Errorf("object cannot be shared between containers: %w", core.ErrInvalidOperation)
	ErrAlreadyReferenced   = fmt.Errorf("object already referenced by container: %w", core.ErrInvalidOperation)
	ErrNotReferenced       = fmt.Errorf("object not referenced by container: %w", core.ErrInvalidOperation)
	ErrMigrationInProgress = fmt.Errorf("container migration already in progress: %w", core.ErrInvalidOperation)
	ErrOverflow            = fmt.Errorf("container object table is full: %w", core.ErrOverflow)
	ErrNilContainer        = errors.New("nil container")
)

type Flags uint8

const (
	// The object must be registered with at least one container until cleared.
	FlagNeedsReference Flags = 1 << iota
	// The object may be registered with several containers at once.
	FlagShareable
)

func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

// Lifecycle is implemented by every GPU-backed object registered with a
// container.
type Lifecycle interface {
	// Destruct releases the native handle. Called once, when the last
	// container reference is removed.
	Destruct()
	// Prepare is called before the context owning the object goes away.
	// Anything needed to restore the object can be stashed in storage.
	Prepare(storage *any)
	// Transfer is called with the context receiving the object current and
	// the same storage Prepare filled in.
	Transfer(storage *any)
}

// sequence numbers identities in creation order.
var sequence atomic.Uint64

type ref struct {
	container *Container
	id        uint32
}

// ID is the registry identity of a GPU object. It is meant to be embedded in
// a heap allocated object and must not be copied once initialized.
type ID struct {
	flags     Flags
	lifecycle Lifecycle
	refs      []ref
	seq       uint64
}

// Init sets up the identity and, when c is not nil, registers it with c.
func (id *ID) Init(flags Flags, lifecycle Lifecycle, c *Container) error {
	if flags.Has(FlagNeedsReference) && c == nil {
		return ErrNeedsReference
	}

	id.flags = flags
	id.lifecycle = lifecycle
	id.refs = nil
	id.seq = sequence.Add(1)

	if c != nil {
		if err := id.Reference(c); err != nil {
			id.lifecycle = nil
			return err
		}
	}
	return nil
}

// Clear removes the identity from every container it is registered with.
// The last removal fires the destruct callback. Calling Clear on a cleared
// identity does nothing.
func (id *ID) Clear() {
	for len(id.refs) > 0 {
		id.dereference(id.refs[len(id.refs)-1].container, true)
	}
}

func (id *ID) Flags() Flags {
	return id.flags
}

// Refs returns the number of containers currently holding the object.
func (id *ID) Refs() int {
	return len(id.refs)
}

// IDIn returns the per-container id of the object in c, or 0 if c does not
// hold it.
func (id *ID) IDIn(c *Container) uint32 {
	if i := id.find(c); i >= 0 {
		return id.refs[i].id
	}
	return 0
}

// Reference registers the object with c.
func (id *ID) Reference(c *Container) error {
	if c == nil {
		return ErrNilContainer
	}
	if id.find(c) >= 0 {
		return ErrAlreadyReferenced
	}
	if len(id.refs) > 0 && !id.flags.Has(FlagShareable) {
		return ErrNotShareable
	}

	n, err := c.insert(id)
	if err != nil {
		return err
	}
	id.refs = append(id.refs, ref{container: c, id: n})
	return nil
}

// Dereference unregisters the object from c. Removing the last reference of
// an object flagged FlagNeedsReference fails; otherwise it destructs the
// object.
func (id *ID) Dereference(c *Container) error {
	return id.dereference(c, false)
}

func (id *ID) dereference(c *Container, force bool) error {
	i := id.find(c)
	if i < 0 {
		return ErrNotReferenced
	}
	if !force && len(id.refs) == 1 && id.flags.Has(FlagNeedsReference) {
		return ErrNeedsReference
	}

	c.remove(id.refs[i].id)
	id.unlink(i)

	if len(id.refs) == 0 {
		id.destruct()
	}
	return nil
}

// detach drops the reference to c without ever firing destruct. The caller
// keeps the object alive by other means.
func (id *ID) detach(c *Container) bool {
	i := id.find(c)
	if i < 0 {
		return false
	}
	c.remove(id.refs[i].id)
	id.unlink(i)
	return true
}

func (id *ID) unlink(i int) {
	last := len(id.refs) - 1
	copy(id.refs[i:], id.refs[i+1:])
	id.refs[last] = ref{}
	id.refs = id.refs[:last]
	if len(id.refs) == 0 {
		id.refs = nil
	}
}

func (id *ID) destruct() {
	if id.lifecycle != nil {
		id.lifecycle.Destruct()
	}
}

func (id *ID) find(c *Container) int {
	for i := range id.refs {
		if id.refs[i].container == c {
			return i
		}
	}
	return -1
}
