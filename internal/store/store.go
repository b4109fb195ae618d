// Package store defines the persistence contracts the engines consume and
// provides the in-memory implementations backing them. The engines only
// ever see these interfaces; swapping the backing is a composition-root
// concern.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"rinna/internal/domain"
)

// ErrNotFound reports that a referenced entity does not exist. Callers
// distinguish it from business-rule failures with errors.Is.
var ErrNotFound = errors.New("not found")

// ItemStore is CRUD persistence for work items.
type ItemStore interface {
	Create(ctx context.Context, req domain.WorkItemCreateRequest) (domain.WorkItem, error)
	FindByID(ctx context.Context, id uuid.UUID) (domain.WorkItem, error)
	Save(ctx context.Context, item domain.WorkItem) (domain.WorkItem, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
	FindAll(ctx context.Context) ([]domain.WorkItem, error)
	FindByType(ctx context.Context, t domain.WorkItemType) ([]domain.WorkItem, error)
	FindByStatus(ctx context.Context, s domain.WorkflowState) ([]domain.WorkItem, error)
	FindByAssignee(ctx context.Context, assignee string) ([]domain.WorkItem, error)
}

// MetadataStore is the key/value side-table keyed by (work item, key).
// Entries are created on first write and overwritten afterwards.
type MetadataStore interface {
	Save(ctx context.Context, itemID uuid.UUID, key, value string) error
	FindByItemAndKey(ctx context.Context, itemID uuid.UUID, key string) (string, bool, error)
	FindByItem(ctx context.Context, itemID uuid.UUID) (map[string]string, error)
	FindAll(ctx context.Context) ([]domain.WorkItemMetadata, error)
}

// QueueStore is CRUD persistence for work queues.
type QueueStore interface {
	Save(ctx context.Context, q domain.WorkQueue) (domain.WorkQueue, error)
	FindByID(ctx context.Context, id uuid.UUID) (domain.WorkQueue, error)
	FindByName(ctx context.Context, name string) (domain.WorkQueue, error)
	FindAll(ctx context.Context) ([]domain.WorkQueue, error)
	FindByActive(ctx context.Context, active bool) ([]domain.WorkQueue, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// UnitStore is CRUD persistence for organizational units plus the
// unit/work-item association and owning-unit queries.
type UnitStore interface {
	Create(ctx context.Context, req domain.OrganizationalUnitCreateRequest) (domain.OrganizationalUnit, error)
	Save(ctx context.Context, unit domain.OrganizationalUnit) (domain.OrganizationalUnit, error)
	FindByID(ctx context.Context, id uuid.UUID) (domain.OrganizationalUnit, error)
	FindAll(ctx context.Context) ([]domain.OrganizationalUnit, error)
	FindByType(ctx context.Context, t domain.UnitType) ([]domain.OrganizationalUnit, error)
	FindActive(ctx context.Context) ([]domain.OrganizationalUnit, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error

	AssociateWorkItem(ctx context.Context, unitID, itemID uuid.UUID) (bool, error)
	DissociateWorkItem(ctx context.Context, unitID, itemID uuid.UUID) (bool, error)
	WorkItemIDs(ctx context.Context, unitID uuid.UUID) ([]uuid.UUID, error)
	SetOwningUnit(ctx context.Context, itemID, unitID uuid.UUID) (bool, error)
	OwningUnit(ctx context.Context, itemID uuid.UUID) (domain.OrganizationalUnit, error)
}

// AssignmentStore tracks which member of a unit holds which work item.
type AssignmentStore interface {
	Assign(ctx context.Context, unitID uuid.UUID, memberID string, itemID uuid.UUID) error
	Unassign(ctx context.Context, unitID uuid.UUID, memberID string, itemID uuid.UUID) error
	ItemsByMember(ctx context.Context, unitID uuid.UUID, memberID string) ([]uuid.UUID, error)
	MemberAssignments(ctx context.Context, unitID uuid.UUID) (map[string][]uuid.UUID, error)
}
