package objects

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// Prepare is the first half of moving every object out of src. Objects that
// live on in another container are simply dropped from src. The rest are
// unregistered from src without being destructed, handed to their Prepare
// callback and kept in src's staging list until Transfer. Objects are
// staged in creation order regardless of the slot they occupy.
//
// When shared is true the receiving context shares objects with src, so
// shareable objects skip the callbacks and are only re-homed.
//
// Neither container may be touched by anything else between Prepare and
// Transfer.
func Prepare(src *Container, shared bool) error {
	if src == nil {
		return ErrNilContainer
	}
	if len(src.staging) > 0 {
		return ErrMigrationInProgress
	}

	var ids []*ID
	src.Each(func(_ uint32, id *ID) {
		ids = append(ids, id)
	})
	slices.SortFunc(ids, func(a, b *ID) int {
		return cmp.Compare(a.seq, b.seq)
	})

	for _, id := range ids {
		if id.Refs() > 1 {
			id.detach(src)
			continue
		}

		s := staged{id: id}
		if !skipCallbacks(id, shared) && id.lifecycle != nil {
			id.lifecycle.Prepare(&s.storage)
		}
		id.detach(src)
		src.staging = append(src.staging, s)
	}
	return nil
}

// Transfer is the second half of a migration: everything staged in src is
// registered with dest and everything staged in dest is registered with src,
// then the Transfer callbacks run with the storage filled in by Prepare.
// Both staging lists are empty afterwards.
//
// An object that cannot be registered with its new container is destructed
// and reported in the returned error.
func Transfer(src, dest *Container, shared bool) error {
	if src == nil || dest == nil {
		return ErrNilContainer
	}
	if src == dest {
		return fmt.Errorf("transfer into the source container: %w", ErrAlreadyReferenced)
	}

	errs := transferStaged(src, dest, shared)
	errs = append(errs, transferStaged(dest, src, shared)...)
	return errors.Join(errs...)
}

func transferStaged(from, to *Container, shared bool) []error {
	var errs []error
	for i := range from.staging {
		s := &from.staging[i]
		if err := s.id.Reference(to); err != nil {
			errs = append(errs, err)
			if s.id.Refs() == 0 {
				s.id.destruct()
			}
			continue
		}
		if !skipCallbacks(s.id, shared) && s.id.lifecycle != nil {
			s.id.lifecycle.Transfer(&s.storage)
		}
	}
	clear(from.staging)
	from.staging = nil
	return errs
}

func skipCallbacks(id *ID, shared bool) bool {
	return shared && id.flags.Has(FlagShareable)
}

// Discard abandons a migration after Prepare: staged objects that are not
// registered anywhere else are destructed and the staging list is emptied.
func Discard(c *Container) {
	for i := range c.staging {
		if id := c.staging[i].id; id.Refs() == 0 {
			id.destruct()
		}
	}
	clear(c.staging)
	c.staging = nil
}
