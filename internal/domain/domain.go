package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkItemType classifies what kind of work an item represents.
type WorkItemType string

const (
	TypeBug     WorkItemType = "BUG"
	TypeFeature WorkItemType = "FEATURE"
	TypeEpic    WorkItemType = "EPIC"
	TypeTask    WorkItemType = "TASK"
	TypeGoal    WorkItemType = "GOAL"
	TypeChore   WorkItemType = "CHORE"
	TypeStory   WorkItemType = "STORY"
)

// Priority orders work items by business urgency.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Rank returns the sort rank of a priority; lower ranks schedule earlier.
// An unset priority sorts last.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// WorkflowState is a node in the workflow transition graph.
type WorkflowState string

const (
	StateFound      WorkflowState = "FOUND"
	StateTriaged    WorkflowState = "TRIAGED"
	StateToDo       WorkflowState = "TO_DO"
	StateInProgress WorkflowState = "IN_PROGRESS"
	StateInTest     WorkflowState = "IN_TEST"
	StateDone       WorkflowState = "DONE"
	StateReleased   WorkflowState = "RELEASED"
	StateCancelled  WorkflowState = "CANCELLED"
)

// CynefinDomain classifies the complexity profile of a work item.
type CynefinDomain string

const (
	DomainObvious     CynefinDomain = "OBVIOUS"
	DomainComplicated CynefinDomain = "COMPLICATED"
	DomainComplex     CynefinDomain = "COMPLEX"
	DomainChaotic     CynefinDomain = "CHAOTIC"
)

// WorkParadigm classifies the working style an item calls for.
type WorkParadigm string

const (
	ParadigmTask        WorkParadigm = "TASK"
	ParadigmEngineering WorkParadigm = "ENGINEERING"
	ParadigmProduct     WorkParadigm = "PRODUCT"
	ParadigmResearch    WorkParadigm = "RESEARCH"
)

// WorkItem is an immutable record of a tracked piece of work. Updates go
// through the With* methods, which return a modified copy; nothing mutates
// an item in place.
type WorkItem struct {
	ID            uuid.UUID     `json:"id"`
	Title         string        `json:"title"`
	Description   string        `json:"description,omitempty"`
	Type          WorkItemType  `json:"type"`
	Priority      Priority      `json:"priority"`
	Status        WorkflowState `json:"status"`
	Assignee      string        `json:"assignee,omitempty"`
	ParentID      *uuid.UUID    `json:"parent_id,omitempty"`
	ProjectID     *uuid.UUID    `json:"project_id,omitempty"`
	CynefinDomain CynefinDomain `json:"cynefin_domain,omitempty"`
	WorkParadigm  WorkParadigm  `json:"work_paradigm,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// WithStatus returns a copy of the item in the given state.
func (w WorkItem) WithStatus(status WorkflowState, now time.Time) WorkItem {
	w.Status = status
	w.UpdatedAt = now
	return w
}

// WithAssignee returns a copy of the item assigned to the given user.
func (w WorkItem) WithAssignee(assignee string, now time.Time) WorkItem {
	w.Assignee = assignee
	w.UpdatedAt = now
	return w
}

// WithPriority returns a copy of the item at the given priority.
func (w WorkItem) WithPriority(priority Priority, now time.Time) WorkItem {
	w.Priority = priority
	w.UpdatedAt = now
	return w
}

// WorkItemCreateRequest carries the fields needed to create a work item.
type WorkItemCreateRequest struct {
	Title         string
	Description   string
	Type          WorkItemType
	Priority      Priority
	Assignee      string
	ParentID      *uuid.UUID
	ProjectID     *uuid.UUID
	CynefinDomain CynefinDomain
	WorkParadigm  WorkParadigm
}

// CanHaveChildOfType reports whether a parent of the given type may have a
// child of the given type. Epics hold features, tasks and bugs; features
// hold tasks and bugs; goals hold epics and features. Leaf types have no
// children.
func CanHaveChildOfType(parent, child WorkItemType) bool {
	switch parent {
	case TypeEpic:
		return child == TypeFeature || child == TypeTask || child == TypeBug
	case TypeFeature:
		return child == TypeTask || child == TypeBug
	case TypeGoal:
		return child == TypeEpic || child == TypeFeature
	default:
		return false
	}
}

// WorkQueue is a named, ordered collection of work item references.
// ItemIDs is the authoritative order; an item appears at most once.
type WorkQueue struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Active      bool        `json:"active"`
	ItemIDs     []uuid.UUID `json:"item_ids"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Contains reports whether the queue holds the given item.
func (q WorkQueue) Contains(itemID uuid.UUID) bool {
	for _, id := range q.ItemIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

// WorkItemMetadata is one entry of the key/value side-table attached to
// work items (urgency flags, story points, capacity markers, source tags).
type WorkItemMetadata struct {
	WorkItemID uuid.UUID `json:"work_item_id"`
	Key        string    `json:"key"`
	Value      string    `json:"value"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Well-known metadata keys.
const (
	MetaUrgent           = "urgent"
	MetaStoryPoints      = "story_points"
	MetaCapacityIncluded = "capacity_included"
	MetaSource           = "source"
)

// UnitType is the organizational scale of a unit.
type UnitType string

const (
	UnitTeam         UnitType = "TEAM"
	UnitSquad        UnitType = "SQUAD"
	UnitDepartment   UnitType = "DEPARTMENT"
	UnitBusinessUnit UnitType = "BUSINESS_UNIT"
)

// OrganizationalUnit is a team-like entity that receives work. Like
// WorkItem it is updated copy-on-write; CognitiveCapacity and CurrentLoad
// are derived figures maintained by the assignment engine, never edited
// directly.
type OrganizationalUnit struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	Type              UnitType        `json:"type"`
	Members           []string        `json:"members"`
	DomainExpertise   []CynefinDomain `json:"domain_expertise"`
	WorkParadigms     []WorkParadigm  `json:"work_paradigms"`
	CognitiveCapacity int             `json:"cognitive_capacity"`
	CurrentLoad       int             `json:"current_load"`
	Active            bool            `json:"active"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// HasExpertise reports whether the unit claims expertise in the domain.
func (u OrganizationalUnit) HasExpertise(d CynefinDomain) bool {
	for _, e := range u.DomainExpertise {
		if e == d {
			return true
		}
	}
	return false
}

// HasParadigm reports whether the unit works in the given paradigm.
func (u OrganizationalUnit) HasParadigm(p WorkParadigm) bool {
	for _, w := range u.WorkParadigms {
		if w == p {
			return true
		}
	}
	return false
}

// HasMember reports whether the member belongs to the unit.
func (u OrganizationalUnit) HasMember(memberID string) bool {
	for _, m := range u.Members {
		if m == memberID {
			return true
		}
	}
	return false
}

// WithAddedMember returns a copy of the unit with the member appended.
// Adding an existing member is a no-op copy.
func (u OrganizationalUnit) WithAddedMember(memberID string, now time.Time) OrganizationalUnit {
	if u.HasMember(memberID) {
		return u
	}
	u.Members = append(append([]string(nil), u.Members...), memberID)
	u.UpdatedAt = now
	return u
}

// WithRemovedMember returns a copy of the unit without the member.
func (u OrganizationalUnit) WithRemovedMember(memberID string, now time.Time) OrganizationalUnit {
	members := make([]string, 0, len(u.Members))
	for _, m := range u.Members {
		if m != memberID {
			members = append(members, m)
		}
	}
	u.Members = members
	u.UpdatedAt = now
	return u
}

// WithAddedDomainExpertise returns a copy of the unit claiming the domain.
func (u OrganizationalUnit) WithAddedDomainExpertise(d CynefinDomain, now time.Time) OrganizationalUnit {
	if u.HasExpertise(d) {
		return u
	}
	u.DomainExpertise = append(append([]CynefinDomain(nil), u.DomainExpertise...), d)
	u.UpdatedAt = now
	return u
}

// WithAddedWorkParadigm returns a copy of the unit claiming the paradigm.
func (u OrganizationalUnit) WithAddedWorkParadigm(p WorkParadigm, now time.Time) OrganizationalUnit {
	if u.HasParadigm(p) {
		return u
	}
	u.WorkParadigms = append(append([]WorkParadigm(nil), u.WorkParadigms...), p)
	u.UpdatedAt = now
	return u
}

// WithLoad returns a copy of the unit carrying the given derived figures.
func (u OrganizationalUnit) WithLoad(capacity, currentLoad int, now time.Time) OrganizationalUnit {
	u.CognitiveCapacity = capacity
	u.CurrentLoad = currentLoad
	u.UpdatedAt = now
	return u
}

// OrganizationalUnitCreateRequest carries the fields to create a unit.
type OrganizationalUnitCreateRequest struct {
	Name            string
	Description     string
	Type            UnitType
	Members         []string
	DomainExpertise []CynefinDomain
	WorkParadigms   []WorkParadigm
}
