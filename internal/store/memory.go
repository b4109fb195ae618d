package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"rinna/internal/domain"
)

// Memory bundles in-memory implementations of every store contract.
// Distinct keys may be read and written concurrently; each sub-store
// guards its maps with its own RWMutex.
type Memory struct {
	Items       *MemoryItems
	Metadata    *MemoryMetadata
	Queues      *MemoryQueues
	Units       *MemoryUnits
	Assignments *MemoryAssignments
}

// NewMemory builds a fresh set of empty stores sharing a clock.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		Items:       &MemoryItems{now: now, items: map[uuid.UUID]domain.WorkItem{}},
		Metadata:    &MemoryMetadata{now: now, entries: map[uuid.UUID]map[string]domain.WorkItemMetadata{}},
		Queues:      &MemoryQueues{now: now, queues: map[uuid.UUID]domain.WorkQueue{}},
		Units:       &MemoryUnits{now: now, units: map[uuid.UUID]domain.OrganizationalUnit{}, unitItems: map[uuid.UUID][]uuid.UUID{}, owners: map[uuid.UUID]uuid.UUID{}},
		Assignments: &MemoryAssignments{assignments: map[uuid.UUID]map[string][]uuid.UUID{}},
	}
}

// MemoryItems is the in-memory ItemStore.
type MemoryItems struct {
	mu    sync.RWMutex
	now   func() time.Time
	items map[uuid.UUID]domain.WorkItem
}

func (s *MemoryItems) Create(ctx context.Context, req domain.WorkItemCreateRequest) (domain.WorkItem, error) {
	now := s.now().UTC()
	item := domain.WorkItem{
		ID:            uuid.New(),
		Title:         req.Title,
		Description:   req.Description,
		Type:          req.Type,
		Priority:      req.Priority,
		Status:        domain.StateFound,
		Assignee:      req.Assignee,
		ParentID:      req.ParentID,
		ProjectID:     req.ProjectID,
		CynefinDomain: req.CynefinDomain,
		WorkParadigm:  req.WorkParadigm,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.mu.Lock()
	s.items[item.ID] = item
	s.mu.Unlock()
	return item, nil
}

func (s *MemoryItems) FindByID(ctx context.Context, id uuid.UUID) (domain.WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return domain.WorkItem{}, ErrNotFound
	}
	return item, nil
}

func (s *MemoryItems) Save(ctx context.Context, item domain.WorkItem) (domain.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		return domain.WorkItem{}, ErrNotFound
	}
	s.items[item.ID] = item
	return item, nil
}

func (s *MemoryItems) DeleteByID(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryItems) FindAll(ctx context.Context) ([]domain.WorkItem, error) {
	return s.filter(func(domain.WorkItem) bool { return true }), nil
}

func (s *MemoryItems) FindByType(ctx context.Context, t domain.WorkItemType) ([]domain.WorkItem, error) {
	return s.filter(func(w domain.WorkItem) bool { return w.Type == t }), nil
}

func (s *MemoryItems) FindByStatus(ctx context.Context, state domain.WorkflowState) ([]domain.WorkItem, error) {
	return s.filter(func(w domain.WorkItem) bool { return w.Status == state }), nil
}

func (s *MemoryItems) FindByAssignee(ctx context.Context, assignee string) ([]domain.WorkItem, error) {
	return s.filter(func(w domain.WorkItem) bool { return w.Assignee == assignee }), nil
}

// filter snapshots matching items in stable creation order.
func (s *MemoryItems) filter(keep func(domain.WorkItem) bool) []domain.WorkItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.WorkItem
	for _, item := range s.items {
		if keep(item) {
			res = append(res, item)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return res[i].ID.String() < res[j].ID.String()
	})
	return res
}

// MemoryMetadata is the in-memory MetadataStore.
type MemoryMetadata struct {
	mu      sync.RWMutex
	now     func() time.Time
	entries map[uuid.UUID]map[string]domain.WorkItemMetadata
}

func (s *MemoryMetadata) Save(ctx context.Context, itemID uuid.UUID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey, ok := s.entries[itemID]
	if !ok {
		byKey = map[string]domain.WorkItemMetadata{}
		s.entries[itemID] = byKey
	}
	byKey[key] = domain.WorkItemMetadata{
		WorkItemID: itemID,
		Key:        key,
		Value:      value,
		UpdatedAt:  s.now().UTC(),
	}
	return nil
}

func (s *MemoryMetadata) FindByItemAndKey(ctx context.Context, itemID uuid.UUID, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.entries[itemID][key]
	if !ok {
		return "", false, nil
	}
	return meta.Value, true, nil
}

func (s *MemoryMetadata) FindByItem(ctx context.Context, itemID uuid.UUID) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := map[string]string{}
	for key, meta := range s.entries[itemID] {
		res[key] = meta.Value
	}
	return res, nil
}

func (s *MemoryMetadata) FindAll(ctx context.Context) ([]domain.WorkItemMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.WorkItemMetadata
	for _, byKey := range s.entries {
		for _, meta := range byKey {
			res = append(res, meta)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].WorkItemID != res[j].WorkItemID {
			return res[i].WorkItemID.String() < res[j].WorkItemID.String()
		}
		return res[i].Key < res[j].Key
	})
	return res, nil
}

// MemoryQueues is the in-memory QueueStore.
type MemoryQueues struct {
	mu     sync.RWMutex
	now    func() time.Time
	queues map[uuid.UUID]domain.WorkQueue
}

func (s *MemoryQueues) Save(ctx context.Context, q domain.WorkQueue) (domain.WorkQueue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
		q.CreatedAt = now
	}
	q.UpdatedAt = now
	q.ItemIDs = append([]uuid.UUID(nil), q.ItemIDs...)
	s.queues[q.ID] = q
	return q, nil
}

func (s *MemoryQueues) FindByID(ctx context.Context, id uuid.UUID) (domain.WorkQueue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queues[id]
	if !ok {
		return domain.WorkQueue{}, ErrNotFound
	}
	return snapshotQueue(q), nil
}

func (s *MemoryQueues) FindByName(ctx context.Context, name string) (domain.WorkQueue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, q := range s.queues {
		if q.Name == name {
			return snapshotQueue(q), nil
		}
	}
	return domain.WorkQueue{}, ErrNotFound
}

func (s *MemoryQueues) FindAll(ctx context.Context) ([]domain.WorkQueue, error) {
	return s.filter(func(domain.WorkQueue) bool { return true }), nil
}

func (s *MemoryQueues) FindByActive(ctx context.Context, active bool) ([]domain.WorkQueue, error) {
	return s.filter(func(q domain.WorkQueue) bool { return q.Active == active }), nil
}

func (s *MemoryQueues) DeleteByID(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queues[id]; !ok {
		return ErrNotFound
	}
	delete(s.queues, id)
	return nil
}

func (s *MemoryQueues) filter(keep func(domain.WorkQueue) bool) []domain.WorkQueue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.WorkQueue
	for _, q := range s.queues {
		if keep(q) {
			res = append(res, snapshotQueue(q))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return res[i].ID.String() < res[j].ID.String()
	})
	return res
}

func snapshotQueue(q domain.WorkQueue) domain.WorkQueue {
	q.ItemIDs = append([]uuid.UUID(nil), q.ItemIDs...)
	return q
}

// MemoryUnits is the in-memory UnitStore.
type MemoryUnits struct {
	mu        sync.RWMutex
	now       func() time.Time
	units     map[uuid.UUID]domain.OrganizationalUnit
	unitItems map[uuid.UUID][]uuid.UUID
	owners    map[uuid.UUID]uuid.UUID // work item -> owning unit
}

func (s *MemoryUnits) Create(ctx context.Context, req domain.OrganizationalUnitCreateRequest) (domain.OrganizationalUnit, error) {
	now := s.now().UTC()
	unit := domain.OrganizationalUnit{
		ID:              uuid.New(),
		Name:            req.Name,
		Description:     req.Description,
		Type:            req.Type,
		Members:         append([]string(nil), req.Members...),
		DomainExpertise: append([]domain.CynefinDomain(nil), req.DomainExpertise...),
		WorkParadigms:   append([]domain.WorkParadigm(nil), req.WorkParadigms...),
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.mu.Lock()
	s.units[unit.ID] = unit
	s.mu.Unlock()
	return unit, nil
}

func (s *MemoryUnits) Save(ctx context.Context, unit domain.OrganizationalUnit) (domain.OrganizationalUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.units[unit.ID]; !ok {
		return domain.OrganizationalUnit{}, ErrNotFound
	}
	s.units[unit.ID] = unit
	return unit, nil
}

func (s *MemoryUnits) FindByID(ctx context.Context, id uuid.UUID) (domain.OrganizationalUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	unit, ok := s.units[id]
	if !ok {
		return domain.OrganizationalUnit{}, ErrNotFound
	}
	return unit, nil
}

func (s *MemoryUnits) FindAll(ctx context.Context) ([]domain.OrganizationalUnit, error) {
	return s.filter(func(domain.OrganizationalUnit) bool { return true }), nil
}

func (s *MemoryUnits) FindByType(ctx context.Context, t domain.UnitType) ([]domain.OrganizationalUnit, error) {
	return s.filter(func(u domain.OrganizationalUnit) bool { return u.Type == t }), nil
}

func (s *MemoryUnits) FindActive(ctx context.Context) ([]domain.OrganizationalUnit, error) {
	return s.filter(func(u domain.OrganizationalUnit) bool { return u.Active }), nil
}

func (s *MemoryUnits) DeleteByID(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.units[id]; !ok {
		return ErrNotFound
	}
	delete(s.units, id)
	delete(s.unitItems, id)
	for itemID, unitID := range s.owners {
		if unitID == id {
			delete(s.owners, itemID)
		}
	}
	return nil
}

func (s *MemoryUnits) AssociateWorkItem(ctx context.Context, unitID, itemID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.units[unitID]; !ok {
		return false, ErrNotFound
	}
	for _, id := range s.unitItems[unitID] {
		if id == itemID {
			return false, nil
		}
	}
	s.unitItems[unitID] = append(s.unitItems[unitID], itemID)
	return true, nil
}

func (s *MemoryUnits) DissociateWorkItem(ctx context.Context, unitID, itemID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.unitItems[unitID]
	for i, id := range ids {
		if id == itemID {
			s.unitItems[unitID] = append(ids[:i:i], ids[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryUnits) WorkItemIDs(ctx context.Context, unitID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.units[unitID]; !ok {
		return nil, ErrNotFound
	}
	return append([]uuid.UUID(nil), s.unitItems[unitID]...), nil
}

func (s *MemoryUnits) SetOwningUnit(ctx context.Context, itemID, unitID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.units[unitID]; !ok {
		return false, ErrNotFound
	}
	s.owners[itemID] = unitID
	for _, id := range s.unitItems[unitID] {
		if id == itemID {
			return true, nil
		}
	}
	s.unitItems[unitID] = append(s.unitItems[unitID], itemID)
	return true, nil
}

func (s *MemoryUnits) OwningUnit(ctx context.Context, itemID uuid.UUID) (domain.OrganizationalUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	unitID, ok := s.owners[itemID]
	if !ok {
		return domain.OrganizationalUnit{}, ErrNotFound
	}
	unit, ok := s.units[unitID]
	if !ok {
		return domain.OrganizationalUnit{}, ErrNotFound
	}
	return unit, nil
}

func (s *MemoryUnits) filter(keep func(domain.OrganizationalUnit) bool) []domain.OrganizationalUnit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.OrganizationalUnit
	for _, u := range s.units {
		if keep(u) {
			res = append(res, u)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return res[i].ID.String() < res[j].ID.String()
	})
	return res
}

// MemoryAssignments is the in-memory AssignmentStore.
type MemoryAssignments struct {
	mu          sync.RWMutex
	assignments map[uuid.UUID]map[string][]uuid.UUID
}

func (s *MemoryAssignments) Assign(ctx context.Context, unitID uuid.UUID, memberID string, itemID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byMember, ok := s.assignments[unitID]
	if !ok {
		byMember = map[string][]uuid.UUID{}
		s.assignments[unitID] = byMember
	}
	for _, id := range byMember[memberID] {
		if id == itemID {
			return nil
		}
	}
	byMember[memberID] = append(byMember[memberID], itemID)
	return nil
}

func (s *MemoryAssignments) Unassign(ctx context.Context, unitID uuid.UUID, memberID string, itemID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.assignments[unitID][memberID]
	for i, id := range ids {
		if id == itemID {
			s.assignments[unitID][memberID] = append(ids[:i:i], ids[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryAssignments) ItemsByMember(ctx context.Context, unitID uuid.UUID, memberID string) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]uuid.UUID(nil), s.assignments[unitID][memberID]...), nil
}

func (s *MemoryAssignments) MemberAssignments(ctx context.Context, unitID uuid.UUID) (map[string][]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := map[string][]uuid.UUID{}
	for member, ids := range s.assignments[unitID] {
		res[member] = append([]uuid.UUID(nil), ids...)
	}
	return res, nil
}
