package app

import (
	"github.com/google/uuid"

	"github.com/zjrosen/dcmcache/internal/domain"
	"github.com/zjrosen/dcmcache/internal/registry"
)

// EventKind names a lifecycle change published on the event bus.
type EventKind string

const (
	EventDatasetAdded       EventKind = "dataset_added"
	EventDatasetRemoved     EventKind = "dataset_removed"
	EventEntityPending      EventKind = "entity_pending"
	EventEntityAttached     EventKind = "entity_attached"
	EventEntityAttachFailed EventKind = "entity_attach_failed"
	EventEntityDetached     EventKind = "entity_detached"
	EventEntityPurged       EventKind = "entity_purged"
	EventEntityUpdated      EventKind = "entity_updated"
)

// DatasetEvent reports a change to the live dataset list.
type DatasetEvent struct {
	Kind    EventKind      `json:"kind"`
	Dataset domain.Dataset `json:"dataset"`
}

// EntityEvent reports an entity lifecycle transition.
type EntityEvent struct {
	Kind      EventKind        `json:"kind"`
	DatasetID uuid.UUID        `json:"dataset_id"`
	Entity    *registry.Entity `json:"entity,omitempty"`
	Error     string           `json:"error,omitempty"`
}
