package assign

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rinna/internal/domain"
	"rinna/internal/store"
)

// UnitService manages organizational units and their work assignments.
// Mutations that change what a unit holds finish by recomputing the
// unit's derived load figures through the engine.
type UnitService struct {
	units       store.UnitStore
	assignments store.AssignmentStore
	engine      *Engine
	Now         func() time.Time
}

// NewUnitService builds a unit service sharing the engine's stores.
func NewUnitService(units store.UnitStore, assignments store.AssignmentStore, engine *Engine) *UnitService {
	return &UnitService{
		units:       units,
		assignments: assignments,
		engine:      engine,
		Now:         time.Now,
	}
}

// CreateUnit creates a unit and seeds its capacity figure.
func (s *UnitService) CreateUnit(ctx context.Context, req domain.OrganizationalUnitCreateRequest) (domain.OrganizationalUnit, error) {
	unit, err := s.units.Create(ctx, req)
	if err != nil {
		return domain.OrganizationalUnit{}, err
	}
	return s.units.Save(ctx, unit.WithLoad(s.engine.TotalCapacity(unit), 0, s.Now()))
}

// FindUnit looks a unit up by id.
func (s *UnitService) FindUnit(ctx context.Context, unitID uuid.UUID) (domain.OrganizationalUnit, error) {
	unit, err := s.units.FindByID(ctx, unitID)
	if err != nil {
		return domain.OrganizationalUnit{}, fmt.Errorf("unit %s: %w", unitID, err)
	}
	return unit, nil
}

// Units lists all units.
func (s *UnitService) Units(ctx context.Context) ([]domain.OrganizationalUnit, error) {
	return s.units.FindAll(ctx)
}

// ActiveUnits lists units whose active flag is set.
func (s *UnitService) ActiveUnits(ctx context.Context) ([]domain.OrganizationalUnit, error) {
	return s.units.FindActive(ctx)
}

// UnitsByType lists units of the given organizational scale.
func (s *UnitService) UnitsByType(ctx context.Context, t domain.UnitType) ([]domain.OrganizationalUnit, error) {
	return s.units.FindByType(ctx, t)
}

// DeleteUnit removes a unit.
func (s *UnitService) DeleteUnit(ctx context.Context, unitID uuid.UUID) error {
	return s.units.DeleteByID(ctx, unitID)
}

// AddMember adds a member to the unit. Capacity grows with head count,
// so the derived figures are refreshed.
func (s *UnitService) AddMember(ctx context.Context, unitID uuid.UUID, memberID string) (domain.OrganizationalUnit, error) {
	return s.mutate(ctx, unitID, func(u domain.OrganizationalUnit) domain.OrganizationalUnit {
		return u.WithAddedMember(memberID, s.Now())
	})
}

// RemoveMember removes a member from the unit and drops their open
// assignments.
func (s *UnitService) RemoveMember(ctx context.Context, unitID uuid.UUID, memberID string) (domain.OrganizationalUnit, error) {
	itemIDs, err := s.assignments.ItemsByMember(ctx, unitID, memberID)
	if err != nil {
		return domain.OrganizationalUnit{}, err
	}
	for _, id := range itemIDs {
		if err := s.assignments.Unassign(ctx, unitID, memberID, id); err != nil {
			return domain.OrganizationalUnit{}, err
		}
	}
	return s.mutate(ctx, unitID, func(u domain.OrganizationalUnit) domain.OrganizationalUnit {
		return u.WithRemovedMember(memberID, s.Now())
	})
}

// AddDomainExpertise records a complexity domain the unit can handle.
func (s *UnitService) AddDomainExpertise(ctx context.Context, unitID uuid.UUID, d domain.CynefinDomain) (domain.OrganizationalUnit, error) {
	return s.mutate(ctx, unitID, func(u domain.OrganizationalUnit) domain.OrganizationalUnit {
		return u.WithAddedDomainExpertise(d, s.Now())
	})
}

// AddWorkParadigm records a working style the unit supports.
func (s *UnitService) AddWorkParadigm(ctx context.Context, unitID uuid.UUID, p domain.WorkParadigm) (domain.OrganizationalUnit, error) {
	return s.mutate(ctx, unitID, func(u domain.OrganizationalUnit) domain.OrganizationalUnit {
		return u.WithAddedWorkParadigm(p, s.Now())
	})
}

func (s *UnitService) mutate(ctx context.Context, unitID uuid.UUID, fn func(domain.OrganizationalUnit) domain.OrganizationalUnit) (domain.OrganizationalUnit, error) {
	unit, err := s.units.FindByID(ctx, unitID)
	if err != nil {
		return domain.OrganizationalUnit{}, fmt.Errorf("unit %s: %w", unitID, err)
	}
	if _, err := s.units.Save(ctx, fn(unit)); err != nil {
		return domain.OrganizationalUnit{}, err
	}
	return s.engine.UpdateCognitiveLoad(ctx, unitID)
}

// AssignWorkItem hands a work item to a unit, optionally to a specific
// member. The item becomes owned by the unit and the unit's load is
// recomputed.
func (s *UnitService) AssignWorkItem(ctx context.Context, unitID, itemID uuid.UUID, memberID string) error {
	unit, err := s.units.FindByID(ctx, unitID)
	if err != nil {
		return fmt.Errorf("unit %s: %w", unitID, err)
	}
	if memberID != "" && !unit.HasMember(memberID) {
		return fmt.Errorf("unit %s has no member %q", unitID, memberID)
	}
	if _, err := s.units.AssociateWorkItem(ctx, unitID, itemID); err != nil {
		return err
	}
	if _, err := s.units.SetOwningUnit(ctx, itemID, unitID); err != nil {
		return err
	}
	if memberID != "" {
		if err := s.assignments.Assign(ctx, unitID, memberID, itemID); err != nil {
			return err
		}
	}
	_, err = s.engine.UpdateCognitiveLoad(ctx, unitID)
	return err
}

// UnassignWorkItem takes a work item away from a unit, clearing any
// member-level assignment it had there.
func (s *UnitService) UnassignWorkItem(ctx context.Context, unitID, itemID uuid.UUID) error {
	assignments, err := s.assignments.MemberAssignments(ctx, unitID)
	if err != nil {
		return err
	}
	for member, ids := range assignments {
		for _, id := range ids {
			if id == itemID {
				if err := s.assignments.Unassign(ctx, unitID, member, itemID); err != nil {
					return err
				}
			}
		}
	}
	if _, err := s.units.DissociateWorkItem(ctx, unitID, itemID); err != nil {
		return err
	}
	_, err = s.engine.UpdateCognitiveLoad(ctx, unitID)
	return err
}

// OwningUnit returns the unit that owns the work item.
func (s *UnitService) OwningUnit(ctx context.Context, itemID uuid.UUID) (domain.OrganizationalUnit, error) {
	unit, err := s.units.OwningUnit(ctx, itemID)
	if err != nil {
		return domain.OrganizationalUnit{}, fmt.Errorf("owning unit of item %s: %w", itemID, err)
	}
	return unit, nil
}

// WorkItems lists the ids of the items the unit holds.
func (s *UnitService) WorkItems(ctx context.Context, unitID uuid.UUID) ([]uuid.UUID, error) {
	return s.units.WorkItemIDs(ctx, unitID)
}
