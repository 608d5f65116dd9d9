package objects

import "math"

type staged struct {
	id      *ID
	storage any
}

// Container holds the GPU objects registered with one graphics context.
// Slot i of the table holds the object with per-container id i+1; id 0 is
// never handed out. A Container must not be copied.
type Container struct {
	table   []*ID
	empties []uint32
	staging []staged

	// Largest id the table may hand out.
	maxID uint32
}

func NewContainer() *Container {
	return &Container{
		maxID: math.MaxUint32,
	}
}

// Clear dereferences every object still registered, destructing those that
// have no other container left. Objects flagged FlagNeedsReference are
// released as well since the container is going away for good.
func (c *Container) Clear() {
	// Walk backwards: removing the last slot shrinks the table instead of
	// growing the free list.
	for i := len(c.table); i > 0; i-- {
		if i > len(c.table) {
			continue
		}
		if id := c.table[i-1]; id != nil {
			id.dereference(c, true)
		}
	}
	c.table = nil
	c.empties = nil
}

// Len returns the number of registered objects.
func (c *Container) Len() int {
	return len(c.table) - len(c.empties)
}

// Size returns the length of the id table, holes included.
func (c *Container) Size() int {
	return len(c.table)
}

// Get returns the object registered under id, or nil.
func (c *Container) Get(id uint32) *ID {
	if id == 0 || int64(id) > int64(len(c.table)) {
		return nil
	}
	return c.table[id-1]
}

// Staged returns the number of objects waiting for Transfer.
func (c *Container) Staged() int {
	return len(c.staging)
}

// Each calls fn for every registered object in id order.
func (c *Container) Each(fn func(n uint32, id *ID)) {
	for i, id := range c.table {
		if id != nil {
			fn(uint32(i+1), id)
		}
	}
}

func (c *Container) insert(id *ID) (uint32, error) {
	if n := len(c.empties); n > 0 {
		slot := c.empties[n-1]
		c.empties = c.empties[:n-1]
		c.table[slot-1] = id
		return slot, nil
	}

	if uint64(len(c.table)) >= uint64(c.maxID) {
		return 0, ErrOverflow
	}
	c.table = append(c.table, id)
	return uint32(len(c.table)), nil
}

func (c *Container) remove(n uint32) {
	if int(n) == len(c.table) {
		c.table[n-1] = nil
		c.table = c.table[:n-1]
	} else {
		c.table[n-1] = nil
		c.empties = append(c.empties, n)
	}

	if len(c.table) == len(c.empties) {
		c.table = nil
		c.empties = nil
	}
}
