// Package registry tracks which datasets have a live entity in the scene.
//
// Every dataset is absent, pending (a reconstruction is running for it) or
// attached. Pending entries carry a Ticket so that a completion arriving after
// the entry was purged, or replaced by a newer attach, is recognized and
// discarded.
//
// A Registry is not safe for concurrent use. It belongs to the owner
// goroutine and is only touched from owner command handlers.
package registry

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/zjrosen/dcmcache/internal/domain"
)

// State is the lifecycle state of a dataset's entity.
type State int

const (
	Absent State = iota
	Pending
	Attached
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Pending:
		return "pending"
	case Attached:
		return "attached"
	default:
		return "unknown"
	}
}

// Ticket identifies one attach attempt.
type Ticket uint64

type entry struct {
	state  State
	ticket Ticket
	entity *Entity
}

// Registry maps dataset ids to entity entries.
type Registry struct {
	entries    map[uuid.UUID]*entry
	nextTicket Ticket
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[uuid.UUID]*entry)}
}

// State returns the state for id.
func (r *Registry) State(id uuid.UUID) State {
	if e, ok := r.entries[id]; ok {
		return e.state
	}
	return Absent
}

// BeginAttach moves id from absent to pending and returns the attempt's
// ticket. Checking and committing happen in one step so a second attach for
// the same id fails with ErrEntityAlreadyExists.
func (r *Registry) BeginAttach(id uuid.UUID) (Ticket, error) {
	if e, ok := r.entries[id]; ok {
		return 0, fmt.Errorf("%w: %s is %s", domain.ErrEntityAlreadyExists, id, e.state)
	}
	r.nextTicket++
	r.entries[id] = &entry{state: Pending, ticket: r.nextTicket}
	return r.nextTicket, nil
}

// CompleteAttach moves id from pending to attached with entity. If the entry
// is gone or belongs to another ticket the entity is rejected with
// ErrStaleAttach.
func (r *Registry) CompleteAttach(id uuid.UUID, ticket Ticket, entity *Entity) error {
	e, ok := r.entries[id]
	if !ok || e.state != Pending || e.ticket != ticket {
		return fmt.Errorf("%w: %s", domain.ErrStaleAttach, id)
	}
	e.state = Attached
	e.entity = entity
	return nil
}

// FailAttach drops a pending entry. It reports whether ticket still owned the
// entry.
func (r *Registry) FailAttach(id uuid.UUID, ticket Ticket) bool {
	e, ok := r.entries[id]
	if !ok || e.state != Pending || e.ticket != ticket {
		return false
	}
	delete(r.entries, id)
	return true
}

// Detach removes an attached entity and returns it.
func (r *Registry) Detach(id uuid.UUID) (*Entity, error) {
	e, ok := r.entries[id]
	if !ok || e.state != Attached {
		return nil, fmt.Errorf("%w: %s", domain.ErrEntityNotFound, id)
	}
	delete(r.entries, id)
	return e.entity, nil
}

// SetInteractionEnabled toggles every gesture of an attached entity.
func (r *Registry) SetInteractionEnabled(id uuid.UUID, enabled bool) (*Entity, error) {
	e, ok := r.entries[id]
	if !ok || e.state != Attached {
		return nil, fmt.Errorf("%w: %s", domain.ErrEntityNotFound, id)
	}
	e.entity.Gestures = gesturesWith(enabled)
	return e.entity, nil
}

// Purge forces id to absent and returns the state it was in. Used when the
// dataset itself is removed.
func (r *Registry) Purge(id uuid.UUID) State {
	e, ok := r.entries[id]
	if !ok {
		return Absent
	}
	delete(r.entries, id)
	return e.state
}

// Entity returns the attached entity for id.
func (r *Registry) Entity(id uuid.UUID) (*Entity, bool) {
	e, ok := r.entries[id]
	if !ok || e.state != Attached {
		return nil, false
	}
	return e.entity, true
}

// Entities returns copies of every attached entity, ordered by name.
func (r *Registry) Entities() []Entity {
	out := make([]Entity, 0, len(r.entries))
	for _, e := range r.entries {
		if e.state == Attached {
			out = append(out, *e.entity)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
