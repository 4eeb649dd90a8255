// Package migrate upgrades stored records across schema versions.
//
// A Registry is built once at startup from the current schema version and the
// steps that move a record from version N to N+1. Migrate applies steps until
// the record is current. Steps must depend only on the record's own fields, so
// migrating the same stale record twice (for example in two workers) yields
// equivalent results.
package migrate

import (
	"errors"
	"fmt"
	"sort"
)

// ErrMissingStep is returned when a record sits at a version that has no
// registered step. The record is left at that version.
var ErrMissingStep = errors.New("missing migration step")

// Versioned is implemented by records that carry a schema version.
type Versioned interface {
	SchemaVersion() int
	SetSchemaVersion(v int)
}

// Step mutates rec in place from version `from` to `from+1`.
// It must not touch the version itself.
type Step[T Versioned] func(rec T)

type Registry[T Versioned] struct {
	current int
	steps   map[int]Step[T]
}

// NewRegistry copies steps so later changes to the map have no effect.
// It panics on a non-positive current version or a step registered at or
// beyond current, both of which are programming errors.
func NewRegistry[T Versioned](current int, steps map[int]Step[T]) *Registry[T] {
	if current < 1 {
		panic(fmt.Sprintf("migrate: current version must be positive, got %d", current))
	}
	copied := make(map[int]Step[T], len(steps))
	for from, step := range steps {
		if from < 1 || from >= current {
			panic(fmt.Sprintf("migrate: step %d is outside [1, %d)", from, current))
		}
		if step == nil {
			panic(fmt.Sprintf("migrate: nil step for version %d", from))
		}
		copied[from] = step
	}
	return &Registry[T]{current: current, steps: copied}
}

// Current returns the schema version records are migrated to.
func (r *Registry[T]) Current() int {
	return r.current
}

// Versions returns the registered source versions in ascending order.
func (r *Registry[T]) Versions() []int {
	versions := make([]int, 0, len(r.steps))
	for v := range r.steps {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions
}

// Migrate brings rec up to Current. It reports how many steps ran.
// Versions below 1 are read as 1, the version every record started at.
// Records already at or above Current are left untouched.
func (r *Registry[T]) Migrate(rec T) (int, error) {
	if rec.SchemaVersion() < 1 {
		rec.SetSchemaVersion(1)
	}
	applied := 0
	for rec.SchemaVersion() < r.current {
		from := rec.SchemaVersion()
		step, ok := r.steps[from]
		if !ok {
			return applied, fmt.Errorf("%w: from version %d to %d", ErrMissingStep, from, from+1)
		}
		step(rec)
		rec.SetSchemaVersion(from + 1)
		applied++
	}
	return applied, nil
}
