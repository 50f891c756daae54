package app

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/zjrosen/dcmcache/internal/domain"
	"github.com/zjrosen/dcmcache/internal/log"
	"github.com/zjrosen/dcmcache/internal/owner"
	"github.com/zjrosen/dcmcache/internal/registry"
)

// state is the owner's mutable state. Only handlers touch it, and handlers
// only run on the owner goroutine.
type state struct {
	datasets []domain.Dataset
	registry *registry.Registry
	gauges   Recorder
}

func newState(gauges Recorder) *state {
	return &state{registry: registry.New(), gauges: gauges}
}

func (st *state) register(p *owner.Processor) {
	p.RegisterHandler(CmdAddDataset, owner.HandlerFunc(st.handleAddDataset))
	p.RegisterHandler(CmdRemoveDataset, owner.HandlerFunc(st.handleRemoveDataset))
	p.RegisterHandler(CmdGetDataset, owner.HandlerFunc(st.handleGetDataset))
	p.RegisterHandler(CmdListDatasets, owner.HandlerFunc(st.handleListDatasets))
	p.RegisterHandler(CmdReconcile, owner.HandlerFunc(st.handleReconcile))
	p.RegisterHandler(CmdBeginAttach, owner.HandlerFunc(st.handleBeginAttach))
	p.RegisterHandler(CmdCompleteAttach, owner.HandlerFunc(st.handleCompleteAttach))
	p.RegisterHandler(CmdDetach, owner.HandlerFunc(st.handleDetach))
	p.RegisterHandler(CmdSetInteraction, owner.HandlerFunc(st.handleSetInteraction))
	p.RegisterHandler(CmdListEntities, owner.HandlerFunc(st.handleListEntities))
}

func (st *state) find(id uuid.UUID) (int, bool) {
	i := slices.IndexFunc(st.datasets, func(ds domain.Dataset) bool { return ds.ID == id })
	return i, i >= 0
}

func (st *state) lookup(id uuid.UUID) (domain.Dataset, error) {
	i, ok := st.find(id)
	if !ok {
		return domain.Dataset{}, fmt.Errorf("%w: %s", domain.ErrDatasetNotFound, id)
	}
	return st.datasets[i], nil
}

// nameShared reports whether any live dataset is named name.
func (st *state) nameShared(name string) bool {
	return slices.ContainsFunc(st.datasets, func(ds domain.Dataset) bool { return ds.Name == name })
}

func (st *state) updateGauges() {
	if st.gauges == nil {
		return
	}
	st.gauges.SetDatasets(len(st.datasets))
	st.gauges.SetEntities(len(st.registry.Entities()))
}

func (st *state) handleAddDataset(_ context.Context, cmd owner.Command) (*owner.CommandResult, error) {
	ds := cmd.(*AddDatasetCommand).Dataset
	if i, ok := st.find(ds.ID); ok {
		st.datasets[i] = ds
	} else {
		st.datasets = append(st.datasets, ds)
	}
	st.updateGauges()
	return owner.SuccessResult(ds, DatasetEvent{Kind: EventDatasetAdded, Dataset: ds}), nil
}

// drop removes the dataset at i, purges its entity entry and returns the
// removal record plus the events describing it.
func (st *state) drop(i int) (removal, []any) {
	ds := st.datasets[i]
	st.datasets = slices.Delete(st.datasets, i, i+1)

	events := []any{DatasetEvent{Kind: EventDatasetRemoved, Dataset: ds}}
	if prev := st.registry.Purge(ds.ID); prev != registry.Absent {
		log.Info(log.CatRegistry, "Purged entity of removed dataset", "id", ds.ID, "state", prev)
		events = append(events, EntityEvent{Kind: EventEntityPurged, DatasetID: ds.ID})
	}
	return removal{Dataset: ds, EvictMesh: !st.nameShared(ds.Name)}, events
}

func (st *state) handleRemoveDataset(_ context.Context, cmd owner.Command) (*owner.CommandResult, error) {
	id := cmd.(*RemoveDatasetCommand).ID
	i, ok := st.find(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrDatasetNotFound, id)
	}
	r, events := st.drop(i)
	st.updateGauges()
	return owner.SuccessResult(r, events...), nil
}

func (st *state) handleGetDataset(_ context.Context, cmd owner.Command) (*owner.CommandResult, error) {
	ds, err := st.lookup(cmd.(*GetDatasetCommand).ID)
	if err != nil {
		return nil, err
	}
	return owner.SuccessResult(ds), nil
}

func (st *state) handleListDatasets(context.Context, owner.Command) (*owner.CommandResult, error) {
	return owner.SuccessResult(slices.Clone(st.datasets)), nil
}

func (st *state) handleReconcile(_ context.Context, cmd owner.Command) (*owner.CommandResult, error) {
	c := cmd.(*ReconcileCommand)
	found := c.Found
	onDisk := make(map[uuid.UUID]struct{}, len(found))
	for _, ds := range found {
		onDisk[ds.ID] = struct{}{}
	}

	var events []any
	var removed []removal
	for i := len(st.datasets) - 1; i >= 0; i-- {
		if _, ok := onDisk[st.datasets[i].ID]; ok {
			continue
		}
		if !st.datasets[i].ImportedAt.Before(c.ScannedAt) {
			continue
		}
		r, evs := st.drop(i)
		removed = append(removed, r)
		events = append(events, evs...)
	}
	for _, ds := range found {
		if _, ok := st.find(ds.ID); ok {
			continue
		}
		st.datasets = append(st.datasets, ds)
		events = append(events, DatasetEvent{Kind: EventDatasetAdded, Dataset: ds})
	}
	// Checked against the final list so a dataset that reappeared under the
	// same name keeps its mesh.
	for i := range removed {
		removed[i].EvictMesh = !st.nameShared(removed[i].Dataset.Name)
	}

	st.updateGauges()
	return owner.SuccessResult(removed, events...), nil
}

func (st *state) handleBeginAttach(_ context.Context, cmd owner.Command) (*owner.CommandResult, error) {
	id := cmd.(*BeginAttachCommand).ID
	ds, err := st.lookup(id)
	if err != nil {
		return nil, err
	}
	ticket, err := st.registry.BeginAttach(id)
	if err != nil {
		return nil, err
	}
	return owner.SuccessResult(
		pendingAttach{Dataset: ds, Ticket: ticket},
		EntityEvent{Kind: EventEntityPending, DatasetID: id},
	), nil
}

func (st *state) handleCompleteAttach(_ context.Context, cmd owner.Command) (*owner.CommandResult, error) {
	c := cmd.(*CompleteAttachCommand)

	if c.Err != nil {
		if !st.registry.FailAttach(c.ID, c.Ticket) {
			log.Debug(log.CatRegistry, "Discarding failure of stale attach", "id", c.ID, "ticket", c.Ticket)
			return nil, errors.Join(c.Err, fmt.Errorf("%w: %s", domain.ErrStaleAttach, c.ID))
		}
		return &owner.CommandResult{
			Error:  c.Err,
			Events: []any{EntityEvent{Kind: EventEntityAttachFailed, DatasetID: c.ID, Error: c.Err.Error()}},
		}, nil
	}

	if err := st.registry.CompleteAttach(c.ID, c.Ticket, c.Entity); err != nil {
		log.Info(log.CatRegistry, "Discarding stale attach result", "id", c.ID, "ticket", c.Ticket)
		return nil, err
	}
	st.updateGauges()
	entity := *c.Entity
	return owner.SuccessResult(entity, EntityEvent{Kind: EventEntityAttached, DatasetID: c.ID, Entity: &entity}), nil
}

func (st *state) handleDetach(_ context.Context, cmd owner.Command) (*owner.CommandResult, error) {
	id := cmd.(*DetachCommand).ID
	entity, err := st.registry.Detach(id)
	if err != nil {
		return nil, err
	}
	st.updateGauges()
	detached := *entity
	return owner.SuccessResult(detached, EntityEvent{Kind: EventEntityDetached, DatasetID: id, Entity: &detached}), nil
}

func (st *state) handleSetInteraction(_ context.Context, cmd owner.Command) (*owner.CommandResult, error) {
	c := cmd.(*SetInteractionCommand)
	entity, err := st.registry.SetInteractionEnabled(c.ID, c.Enabled)
	if err != nil {
		return nil, err
	}
	updated := *entity
	return owner.SuccessResult(updated, EntityEvent{Kind: EventEntityUpdated, DatasetID: c.ID, Entity: &updated}), nil
}

func (st *state) handleListEntities(context.Context, owner.Command) (*owner.CommandResult, error) {
	return owner.SuccessResult(st.registry.Entities()), nil
}
