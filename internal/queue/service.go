package queue

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"rinna/internal/config"
	"rinna/internal/domain"
	"rinna/internal/store"
)

// DefaultQueueName is the name of the lazily-created default queue that
// submission helpers target.
const DefaultQueueName = "Default Queue"

// Service orchestrates work queues, the item store and the metadata
// side-table. Reprioritization is serialized per queue: the read-sort-write
// sequence runs under that queue's lock so racing requests cannot lose
// updates.
type Service struct {
	queues store.QueueStore
	items  store.ItemStore
	meta   store.MetadataStore
	cfg    *config.Config
	Now    func() time.Time

	mu             sync.Mutex
	defaultQueueID uuid.UUID
	locks          map[uuid.UUID]*sync.Mutex
}

// NewService builds a queue service. The default queue is not created
// here; it is created on first use or explicitly via EnsureDefaultQueue,
// never during construction.
func NewService(queues store.QueueStore, items store.ItemStore, meta store.MetadataStore, cfg *config.Config) *Service {
	return &Service{
		queues: queues,
		items:  items,
		meta:   meta,
		cfg:    cfg,
		Now:    time.Now,
		locks:  map[uuid.UUID]*sync.Mutex{},
	}
}

func (s *Service) lockFor(queueID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[queueID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[queueID] = l
	}
	return l
}

// CreateQueue creates an active, empty queue.
func (s *Service) CreateQueue(ctx context.Context, name, description string) (domain.WorkQueue, error) {
	return s.queues.Save(ctx, domain.WorkQueue{
		Name:        name,
		Description: description,
		Active:      true,
	})
}

// FindQueue looks a queue up by id.
func (s *Service) FindQueue(ctx context.Context, queueID uuid.UUID) (domain.WorkQueue, error) {
	q, err := s.queues.FindByID(ctx, queueID)
	if err != nil {
		return domain.WorkQueue{}, fmt.Errorf("queue %s: %w", queueID, err)
	}
	return q, nil
}

// Queues lists all queues.
func (s *Service) Queues(ctx context.Context) ([]domain.WorkQueue, error) {
	return s.queues.FindAll(ctx)
}

// ActiveQueues lists queues whose active flag is set. Inactive queues
// keep their contents; they are only excluded from this listing.
func (s *Service) ActiveQueues(ctx context.Context) ([]domain.WorkQueue, error) {
	return s.queues.FindByActive(ctx, true)
}

// AddItem appends a work item to a queue. Items already present stay
// where they are; a queue never holds the same item twice.
func (s *Service) AddItem(ctx context.Context, queueID, itemID uuid.UUID) error {
	if _, err := s.items.FindByID(ctx, itemID); err != nil {
		return fmt.Errorf("work item %s: %w", itemID, err)
	}
	l := s.lockFor(queueID)
	l.Lock()
	defer l.Unlock()
	q, err := s.queues.FindByID(ctx, queueID)
	if err != nil {
		return fmt.Errorf("queue %s: %w", queueID, err)
	}
	if q.Contains(itemID) {
		return nil
	}
	q.ItemIDs = append(q.ItemIDs, itemID)
	_, err = s.queues.Save(ctx, q)
	return err
}

// RemoveItem removes a work item from a queue, reporting whether it was
// present.
func (s *Service) RemoveItem(ctx context.Context, queueID, itemID uuid.UUID) (bool, error) {
	l := s.lockFor(queueID)
	l.Lock()
	defer l.Unlock()
	q, err := s.queues.FindByID(ctx, queueID)
	if err != nil {
		return false, fmt.Errorf("queue %s: %w", queueID, err)
	}
	for i, id := range q.ItemIDs {
		if id == itemID {
			q.ItemIDs = append(q.ItemIDs[:i:i], q.ItemIDs[i+1:]...)
			_, err := s.queues.Save(ctx, q)
			return true, err
		}
	}
	return false, nil
}

// NextItem returns the head of the queue, if any.
func (s *Service) NextItem(ctx context.Context, queueID uuid.UUID) (domain.WorkItem, bool, error) {
	items, err := s.Items(ctx, queueID)
	if err != nil {
		return domain.WorkItem{}, false, err
	}
	if len(items) == 0 {
		return domain.WorkItem{}, false, nil
	}
	return items[0], true, nil
}

// Items resolves the queue's item references in queue order. References
// to items that have since been deleted are skipped.
func (s *Service) Items(ctx context.Context, queueID uuid.UUID) ([]domain.WorkItem, error) {
	q, err := s.queues.FindByID(ctx, queueID)
	if err != nil {
		return nil, fmt.Errorf("queue %s: %w", queueID, err)
	}
	items := make([]domain.WorkItem, 0, len(q.ItemIDs))
	for _, id := range q.ItemIDs {
		item, err := s.items.FindByID(ctx, id)
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// ItemsByType filters queue items by type, preserving queue order.
func (s *Service) ItemsByType(ctx context.Context, queueID uuid.UUID, t domain.WorkItemType) ([]domain.WorkItem, error) {
	return s.filterItems(ctx, queueID, func(w domain.WorkItem) bool { return w.Type == t })
}

// ItemsByState filters queue items by workflow state, preserving queue order.
func (s *Service) ItemsByState(ctx context.Context, queueID uuid.UUID, state domain.WorkflowState) ([]domain.WorkItem, error) {
	return s.filterItems(ctx, queueID, func(w domain.WorkItem) bool { return w.Status == state })
}

// ItemsByPriority filters queue items by priority, preserving queue order.
func (s *Service) ItemsByPriority(ctx context.Context, queueID uuid.UUID, p domain.Priority) ([]domain.WorkItem, error) {
	return s.filterItems(ctx, queueID, func(w domain.WorkItem) bool { return w.Priority == p })
}

// ItemsByAssignee filters queue items by assignee, preserving queue order.
func (s *Service) ItemsByAssignee(ctx context.Context, queueID uuid.UUID, assignee string) ([]domain.WorkItem, error) {
	return s.filterItems(ctx, queueID, func(w domain.WorkItem) bool { return w.Assignee == assignee })
}

func (s *Service) filterItems(ctx context.Context, queueID uuid.UUID, keep func(domain.WorkItem) bool) ([]domain.WorkItem, error) {
	items, err := s.Items(ctx, queueID)
	if err != nil {
		return nil, err
	}
	var res []domain.WorkItem
	for _, item := range items {
		if keep(item) {
			res = append(res, item)
		}
	}
	return res, nil
}

// Reprioritize re-sorts the queue by the fixed default order.
func (s *Service) Reprioritize(ctx context.Context, queueID uuid.UUID) error {
	return s.resort(ctx, queueID, func(entries []entry) {
		sortDefault(entries, s.cfg)
	})
}

// ReprioritizeWeighted re-sorts the queue by the composite weighted key.
// Omitted weight keys take the config defaults; with all defaults the
// relative order on the priority, type and age axes matches Reprioritize.
func (s *Service) ReprioritizeWeighted(ctx context.Context, queueID uuid.UUID, weights map[string]int) error {
	return s.resort(ctx, queueID, func(entries []entry) {
		sortWeighted(entries, weights, s.cfg)
	})
}

// ReprioritizeByCapacity marks the greedy priority-ordered prefix that
// fits within teamCapacity as capacity_included and moves it to the front
// of the queue as a contiguous block. Story points default to 1 when the
// metadata is absent or unparseable.
func (s *Service) ReprioritizeByCapacity(ctx context.Context, queueID uuid.UUID, teamCapacity int) error {
	l := s.lockFor(queueID)
	l.Lock()
	defer l.Unlock()

	entries, q, err := s.loadEntries(ctx, queueID)
	if err != nil {
		return err
	}
	markCapacity(entries, teamCapacity)
	for _, e := range entries {
		if err := s.meta.Save(ctx, e.item.ID, domain.MetaCapacityIncluded, strconv.FormatBool(e.included)); err != nil {
			return err
		}
	}
	sortByInclusion(entries)
	return s.saveOrder(ctx, q, entries)
}

// resort runs one read-sort-write cycle under the queue's lock.
func (s *Service) resort(ctx context.Context, queueID uuid.UUID, sortFn func([]entry)) error {
	l := s.lockFor(queueID)
	l.Lock()
	defer l.Unlock()

	entries, q, err := s.loadEntries(ctx, queueID)
	if err != nil {
		return err
	}
	sortFn(entries)
	return s.saveOrder(ctx, q, entries)
}

func (s *Service) loadEntries(ctx context.Context, queueID uuid.UUID) ([]entry, domain.WorkQueue, error) {
	q, err := s.queues.FindByID(ctx, queueID)
	if err != nil {
		return nil, domain.WorkQueue{}, fmt.Errorf("queue %s: %w", queueID, err)
	}
	entries := make([]entry, 0, len(q.ItemIDs))
	for _, id := range q.ItemIDs {
		item, err := s.items.FindByID(ctx, id)
		if err != nil {
			continue
		}
		urgent, err := s.IsUrgent(ctx, id)
		if err != nil {
			return nil, domain.WorkQueue{}, err
		}
		points, err := s.StoryPoints(ctx, id)
		if err != nil {
			return nil, domain.WorkQueue{}, err
		}
		entries = append(entries, entry{item: item, urgent: urgent, points: points})
	}
	return entries, q, nil
}

func (s *Service) saveOrder(ctx context.Context, q domain.WorkQueue, entries []entry) error {
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.item.ID
	}
	q.ItemIDs = ids
	_, err := s.queues.Save(ctx, q)
	return err
}

// Activate sets the queue's active flag.
func (s *Service) Activate(ctx context.Context, queueID uuid.UUID) error {
	return s.setActive(ctx, queueID, true)
}

// Deactivate clears the queue's active flag. Contents are retained.
func (s *Service) Deactivate(ctx context.Context, queueID uuid.UUID) error {
	return s.setActive(ctx, queueID, false)
}

func (s *Service) setActive(ctx context.Context, queueID uuid.UUID, active bool) error {
	l := s.lockFor(queueID)
	l.Lock()
	defer l.Unlock()
	q, err := s.queues.FindByID(ctx, queueID)
	if err != nil {
		return fmt.Errorf("queue %s: %w", queueID, err)
	}
	q.Active = active
	_, err = s.queues.Save(ctx, q)
	return err
}

// EnsureDefaultQueue finds or creates the default queue. It is idempotent
// and safe for concurrent first access: the lookup-or-create runs under
// the service lock, so no caller ever sees a half-built queue.
func (s *Service) EnsureDefaultQueue(ctx context.Context) (domain.WorkQueue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.defaultQueueID != uuid.Nil {
		if q, err := s.queues.FindByID(ctx, s.defaultQueueID); err == nil {
			return q, nil
		}
		s.defaultQueueID = uuid.Nil
	}
	q, err := s.queues.FindByName(ctx, DefaultQueueName)
	if err == nil {
		s.defaultQueueID = q.ID
		return q, nil
	}
	q, err = s.queues.Save(ctx, domain.WorkQueue{
		Name:        DefaultQueueName,
		Description: "Default queue for all work items",
		Active:      true,
	})
	if err != nil {
		return domain.WorkQueue{}, err
	}
	s.defaultQueueID = q.ID
	return q, nil
}

// DefaultQueue returns the default queue, creating it if needed.
func (s *Service) DefaultQueue(ctx context.Context) (domain.WorkQueue, error) {
	return s.EnsureDefaultQueue(ctx)
}

// SubmitIncident creates a HIGH priority bug flagged urgent and enqueues
// it on the default queue.
func (s *Service) SubmitIncident(ctx context.Context, title, description string) (domain.WorkItem, error) {
	item, err := s.submit(ctx, domain.WorkItemCreateRequest{
		Title:       title,
		Description: description,
		Type:        domain.TypeBug,
		Priority:    domain.PriorityHigh,
	}, "incident")
	if err != nil {
		return domain.WorkItem{}, err
	}
	if err := s.meta.Save(ctx, item.ID, domain.MetaUrgent, "true"); err != nil {
		return domain.WorkItem{}, err
	}
	return item, nil
}

// SubmitFeatureRequest creates a feature on the default queue. An unset
// priority defaults to MEDIUM.
func (s *Service) SubmitFeatureRequest(ctx context.Context, title, description string, priority domain.Priority) (domain.WorkItem, error) {
	if priority == "" {
		priority = domain.PriorityMedium
	}
	return s.submit(ctx, domain.WorkItemCreateRequest{
		Title:       title,
		Description: description,
		Type:        domain.TypeFeature,
		Priority:    priority,
	}, "feature_request")
}

// SubmitTechnicalTask creates a chore on the default queue. An unset
// priority defaults to LOW.
func (s *Service) SubmitTechnicalTask(ctx context.Context, title, description string, priority domain.Priority) (domain.WorkItem, error) {
	if priority == "" {
		priority = domain.PriorityLow
	}
	return s.submit(ctx, domain.WorkItemCreateRequest{
		Title:       title,
		Description: description,
		Type:        domain.TypeChore,
		Priority:    priority,
	}, "technical_task")
}

// SubmitChildWorkItem creates a child of an existing item, validating the
// parent/child type pairing first. An unset priority inherits the
// parent's.
func (s *Service) SubmitChildWorkItem(ctx context.Context, title string, itemType domain.WorkItemType, parentID uuid.UUID, description string, priority domain.Priority) (domain.WorkItem, error) {
	parent, err := s.items.FindByID(ctx, parentID)
	if err != nil {
		return domain.WorkItem{}, fmt.Errorf("parent work item %s: %w", parentID, err)
	}
	if !domain.CanHaveChildOfType(parent.Type, itemType) {
		return domain.WorkItem{}, &InvalidRelationshipError{ParentType: parent.Type, ChildType: itemType}
	}
	if priority == "" {
		priority = parent.Priority
	}
	return s.submit(ctx, domain.WorkItemCreateRequest{
		Title:       title,
		Description: description,
		Type:        itemType,
		Priority:    priority,
		ParentID:    &parentID,
		ProjectID:   parent.ProjectID,
	}, "child_item")
}

func (s *Service) submit(ctx context.Context, req domain.WorkItemCreateRequest, source string) (domain.WorkItem, error) {
	item, err := s.items.Create(ctx, req)
	if err != nil {
		return domain.WorkItem{}, err
	}
	if err := s.meta.Save(ctx, item.ID, domain.MetaSource, source); err != nil {
		return domain.WorkItem{}, err
	}
	q, err := s.EnsureDefaultQueue(ctx)
	if err != nil {
		return domain.WorkItem{}, err
	}
	if err := s.AddItem(ctx, q.ID, item.ID); err != nil {
		return domain.WorkItem{}, err
	}
	return item, nil
}

// IsUrgent reports whether the item carries urgent=true metadata.
func (s *Service) IsUrgent(ctx context.Context, itemID uuid.UUID) (bool, error) {
	v, ok, err := s.meta.FindByItemAndKey(ctx, itemID, domain.MetaUrgent)
	if err != nil {
		return false, err
	}
	return ok && v == "true", nil
}

// SetUrgent flags or unflags the item as urgent and reprioritizes the
// default queue to reflect the change.
func (s *Service) SetUrgent(ctx context.Context, itemID uuid.UUID, urgent bool) error {
	if _, err := s.items.FindByID(ctx, itemID); err != nil {
		return fmt.Errorf("work item %s: %w", itemID, err)
	}
	if err := s.meta.Save(ctx, itemID, domain.MetaUrgent, strconv.FormatBool(urgent)); err != nil {
		return err
	}
	q, err := s.EnsureDefaultQueue(ctx)
	if err != nil {
		return err
	}
	return s.Reprioritize(ctx, q.ID)
}

// FindUrgentItems lists every item flagged urgent, in creation order.
func (s *Service) FindUrgentItems(ctx context.Context) ([]domain.WorkItem, error) {
	all, err := s.meta.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	var res []domain.WorkItem
	for _, meta := range all {
		if meta.Key != domain.MetaUrgent || meta.Value != "true" {
			continue
		}
		item, err := s.items.FindByID(ctx, meta.WorkItemID)
		if err != nil {
			continue
		}
		res = append(res, item)
	}
	return res, nil
}

// StoryPoints reads the item's story point estimate, defaulting to 1 when
// the metadata is absent or not an integer.
func (s *Service) StoryPoints(ctx context.Context, itemID uuid.UUID) (int, error) {
	v, ok, err := s.meta.FindByItemAndKey(ctx, itemID, domain.MetaStoryPoints)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 1, nil
	}
	points, err := strconv.Atoi(v)
	if err != nil || points < 1 {
		return 1, nil
	}
	return points, nil
}

// SetStoryPoints records the item's story point estimate.
func (s *Service) SetStoryPoints(ctx context.Context, itemID uuid.UUID, points int) error {
	if _, err := s.items.FindByID(ctx, itemID); err != nil {
		return fmt.Errorf("work item %s: %w", itemID, err)
	}
	return s.meta.Save(ctx, itemID, domain.MetaStoryPoints, strconv.Itoa(points))
}

// IsCapacityIncluded reports the item's last capacity marking.
func (s *Service) IsCapacityIncluded(ctx context.Context, itemID uuid.UUID) (bool, error) {
	v, ok, err := s.meta.FindByItemAndKey(ctx, itemID, domain.MetaCapacityIncluded)
	if err != nil {
		return false, err
	}
	return ok && v == "true", nil
}
