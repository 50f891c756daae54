package app

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/dcmcache/internal/domain"
	"github.com/zjrosen/dcmcache/internal/owner"
	"github.com/zjrosen/dcmcache/internal/registry"
)

const (
	CmdAddDataset     owner.CommandType = "add_dataset"
	CmdRemoveDataset  owner.CommandType = "remove_dataset"
	CmdGetDataset     owner.CommandType = "get_dataset"
	CmdListDatasets   owner.CommandType = "list_datasets"
	CmdReconcile      owner.CommandType = "reconcile"
	CmdBeginAttach    owner.CommandType = "begin_attach"
	CmdCompleteAttach owner.CommandType = "complete_attach"
	CmdDetach         owner.CommandType = "detach"
	CmdSetInteraction owner.CommandType = "set_interaction"
	CmdListEntities   owner.CommandType = "list_entities"
)

var errNilID = errors.New("dataset id is required")

func requireID(id uuid.UUID) error {
	if id == uuid.Nil {
		return errNilID
	}
	return nil
}

// AddDatasetCommand appends a freshly imported dataset to the live list.
type AddDatasetCommand struct {
	owner.BaseCommand
	Dataset domain.Dataset
}

func NewAddDatasetCommand(source owner.CommandSource, ds domain.Dataset) *AddDatasetCommand {
	return &AddDatasetCommand{BaseCommand: owner.NewBaseCommand(CmdAddDataset, source), Dataset: ds}
}

func (c *AddDatasetCommand) Validate() error { return requireID(c.Dataset.ID) }

// RemoveDatasetCommand drops a dataset from the live list and purges its
// entity entry. The directory must already be gone.
type RemoveDatasetCommand struct {
	owner.BaseCommand
	ID uuid.UUID
}

func NewRemoveDatasetCommand(source owner.CommandSource, id uuid.UUID) *RemoveDatasetCommand {
	return &RemoveDatasetCommand{BaseCommand: owner.NewBaseCommand(CmdRemoveDataset, source), ID: id}
}

func (c *RemoveDatasetCommand) Validate() error { return requireID(c.ID) }

// removal is the result of a remove or reconcile: the datasets that left the
// live list, and whether each one's mesh can be evicted.
type removal struct {
	Dataset   domain.Dataset
	EvictMesh bool
}

// GetDatasetCommand looks up a live dataset.
type GetDatasetCommand struct {
	owner.BaseCommand
	ID uuid.UUID
}

func NewGetDatasetCommand(source owner.CommandSource, id uuid.UUID) *GetDatasetCommand {
	return &GetDatasetCommand{BaseCommand: owner.NewBaseCommand(CmdGetDataset, source), ID: id}
}

func (c *GetDatasetCommand) Validate() error { return requireID(c.ID) }

// ListDatasetsCommand returns a copy of the live list.
type ListDatasetsCommand struct {
	owner.BaseCommand
}

func NewListDatasetsCommand(source owner.CommandSource) *ListDatasetsCommand {
	return &ListDatasetsCommand{BaseCommand: owner.NewBaseCommand(CmdListDatasets, source)}
}

// ReconcileCommand replaces the live list with the datasets found on disk.
// Entries already live keep their position and fields. Datasets imported at
// or after ScannedAt are kept even when missing from Found, since the scan
// could not have seen them.
type ReconcileCommand struct {
	owner.BaseCommand
	Found     []domain.Dataset
	ScannedAt time.Time
}

func NewReconcileCommand(source owner.CommandSource, found []domain.Dataset, scannedAt time.Time) *ReconcileCommand {
	return &ReconcileCommand{
		BaseCommand: owner.NewBaseCommand(CmdReconcile, source),
		Found:       found,
		ScannedAt:   scannedAt,
	}
}

// BeginAttachCommand moves a live dataset's entity from absent to pending.
type BeginAttachCommand struct {
	owner.BaseCommand
	ID uuid.UUID
}

func NewBeginAttachCommand(source owner.CommandSource, id uuid.UUID) *BeginAttachCommand {
	return &BeginAttachCommand{BaseCommand: owner.NewBaseCommand(CmdBeginAttach, source), ID: id}
}

func (c *BeginAttachCommand) Validate() error { return requireID(c.ID) }

// pendingAttach is the result of BeginAttachCommand.
type pendingAttach struct {
	Dataset domain.Dataset
	Ticket  registry.Ticket
}

// CompleteAttachCommand delivers the outcome of an attach's worker task.
// Exactly one of Entity and Err is set.
type CompleteAttachCommand struct {
	owner.BaseCommand
	ID     uuid.UUID
	Ticket registry.Ticket
	Entity *registry.Entity
	Err    error
}

func NewCompleteAttachCommand(source owner.CommandSource, id uuid.UUID, ticket registry.Ticket, entity *registry.Entity, err error) *CompleteAttachCommand {
	return &CompleteAttachCommand{
		BaseCommand: owner.NewBaseCommand(CmdCompleteAttach, source),
		ID:          id,
		Ticket:      ticket,
		Entity:      entity,
		Err:         err,
	}
}

func (c *CompleteAttachCommand) Validate() error {
	if err := requireID(c.ID); err != nil {
		return err
	}
	if (c.Entity == nil) == (c.Err == nil) {
		return errors.New("complete attach needs exactly one of entity and error")
	}
	return nil
}

// DetachCommand removes an attached entity.
type DetachCommand struct {
	owner.BaseCommand
	ID uuid.UUID
}

func NewDetachCommand(source owner.CommandSource, id uuid.UUID) *DetachCommand {
	return &DetachCommand{BaseCommand: owner.NewBaseCommand(CmdDetach, source), ID: id}
}

func (c *DetachCommand) Validate() error { return requireID(c.ID) }

// SetInteractionCommand toggles an attached entity's gestures.
type SetInteractionCommand struct {
	owner.BaseCommand
	ID      uuid.UUID
	Enabled bool
}

func NewSetInteractionCommand(source owner.CommandSource, id uuid.UUID, enabled bool) *SetInteractionCommand {
	return &SetInteractionCommand{BaseCommand: owner.NewBaseCommand(CmdSetInteraction, source), ID: id, Enabled: enabled}
}

func (c *SetInteractionCommand) Validate() error { return requireID(c.ID) }

// ListEntitiesCommand returns the attached entities.
type ListEntitiesCommand struct {
	owner.BaseCommand
}

func NewListEntitiesCommand(source owner.CommandSource) *ListEntitiesCommand {
	return &ListEntitiesCommand{BaseCommand: owner.NewBaseCommand(CmdListEntities, source)}
}
