// Package assign is the capacity and assignment engine: unit capacity
// modelling, suitability ranking, member load distribution, overload risk
// detection and reassignment recommendations.
package assign

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"rinna/internal/config"
	"rinna/internal/domain"
	"rinna/internal/load"
	"rinna/internal/store"
	"rinna/internal/workflow"
)

// Risk severities.
const (
	SeverityMedium = "MEDIUM"
	SeverityHigh   = "HIGH"
)

// Engine evaluates organizational units against work items. All load
// figures flow through the shared calculator; the engine never prices
// work on its own.
type Engine struct {
	units       store.UnitStore
	items       store.ItemStore
	assignments store.AssignmentStore
	calc        load.Calculator
	cfg         *config.Config
	Now         func() time.Time
}

// NewEngine builds an assignment engine over the given stores.
func NewEngine(units store.UnitStore, items store.ItemStore, assignments store.AssignmentStore, cfg *config.Config) *Engine {
	return &Engine{
		units:       units,
		items:       items,
		assignments: assignments,
		calc:        load.New(cfg),
		cfg:         cfg,
		Now:         time.Now,
	}
}

// TotalCapacity derives a unit's cognitive capacity from its size, its
// organizational scale and its breadth of expertise.
func (e *Engine) TotalCapacity(unit domain.OrganizationalUnit) int {
	base := float64(len(unit.Members)) * float64(e.cfg.Capacity.PerMember) * e.cfg.UnitMultiplier(unit.Type)
	return int(base) +
		e.cfg.Capacity.ExpertiseBonus*len(unit.DomainExpertise) +
		e.cfg.Capacity.ParadigmBonus*len(unit.WorkParadigms)
}

// ImpactAssessment describes what accepting one work item would do to a
// unit's load picture.
type ImpactAssessment struct {
	UnitID               uuid.UUID `json:"unit_id"`
	CurrentLoad          int       `json:"current_load"`
	ItemLoad             int       `json:"item_load"`
	ProjectedLoad        int       `json:"projected_load"`
	Capacity             int       `json:"capacity"`
	CurrentUtilization   float64   `json:"current_utilization"`
	ProjectedUtilization float64   `json:"projected_utilization"`
}

// CognitiveImpact projects the unit's load picture with the item added.
func (e *Engine) CognitiveImpact(ctx context.Context, unitID uuid.UUID, item domain.WorkItem) (ImpactAssessment, error) {
	unit, err := e.units.FindByID(ctx, unitID)
	if err != nil {
		return ImpactAssessment{}, fmt.Errorf("unit %s: %w", unitID, err)
	}
	capacity := e.TotalCapacity(unit)
	itemLoad := e.calc.ItemLoad(item)
	projected := unit.CurrentLoad + itemLoad
	return ImpactAssessment{
		UnitID:               unit.ID,
		CurrentLoad:          unit.CurrentLoad,
		ItemLoad:             itemLoad,
		ProjectedLoad:        projected,
		Capacity:             capacity,
		CurrentUtilization:   load.UtilizationPercent(unit.CurrentLoad, capacity),
		ProjectedUtilization: load.UtilizationPercent(projected, capacity),
	}, nil
}

// UpdateCognitiveLoad recomputes the unit's capacity and current load
// from its associated work items and persists the derived figures. Only
// items in active workflow states count toward load.
func (e *Engine) UpdateCognitiveLoad(ctx context.Context, unitID uuid.UUID) (domain.OrganizationalUnit, error) {
	unit, err := e.units.FindByID(ctx, unitID)
	if err != nil {
		return domain.OrganizationalUnit{}, fmt.Errorf("unit %s: %w", unitID, err)
	}
	items, err := e.activeUnitItems(ctx, unitID)
	if err != nil {
		return domain.OrganizationalUnit{}, err
	}
	updated := unit.WithLoad(e.TotalCapacity(unit), e.calc.TotalLoad(items), e.Now())
	return e.units.Save(ctx, updated)
}

func (e *Engine) activeUnitItems(ctx context.Context, unitID uuid.UUID) ([]domain.WorkItem, error) {
	ids, err := e.units.WorkItemIDs(ctx, unitID)
	if err != nil {
		return nil, err
	}
	items := make([]domain.WorkItem, 0, len(ids))
	for _, id := range ids {
		item, err := e.items.FindByID(ctx, id)
		if err != nil {
			continue
		}
		if workflow.IsActive(item.Status) {
			items = append(items, item)
		}
	}
	return items, nil
}

// UnitSuggestion pairs a candidate unit with its suitability score.
type UnitSuggestion struct {
	Unit  domain.OrganizationalUnit `json:"unit"`
	Score int                       `json:"score"`
}

// SuggestUnitsForItem ranks the active units by suitability for the item,
// best first. Ties break on unit name so the ranking is deterministic.
func (e *Engine) SuggestUnitsForItem(ctx context.Context, item domain.WorkItem) ([]UnitSuggestion, error) {
	units, err := e.units.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	suggestions := make([]UnitSuggestion, 0, len(units))
	for _, unit := range units {
		related, err := e.hasRelatedWork(ctx, unit.ID, item)
		if err != nil {
			return nil, err
		}
		suggestions = append(suggestions, UnitSuggestion{
			Unit:  unit,
			Score: e.suitabilityScore(unit, item, related),
		})
	}
	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Score != suggestions[j].Score {
			return suggestions[i].Score > suggestions[j].Score
		}
		if suggestions[i].Unit.Name != suggestions[j].Unit.Name {
			return suggestions[i].Unit.Name < suggestions[j].Unit.Name
		}
		return suggestions[i].Unit.ID.String() < suggestions[j].Unit.ID.String()
	})
	return suggestions, nil
}

// suitabilityScore prices how well a unit fits an item. Expertise and
// paradigm alignment dominate; capacity headroom, utilization sweet spot,
// complex-work team size and related work each add smaller bonuses, and
// a unit that cannot absorb the item at all takes a heavy penalty.
func (e *Engine) suitabilityScore(unit domain.OrganizationalUnit, item domain.WorkItem, related bool) int {
	score := 0
	if item.CynefinDomain != "" && unit.HasExpertise(item.CynefinDomain) {
		score += 50
	}
	if item.WorkParadigm != "" && unit.HasParadigm(item.WorkParadigm) {
		score += 30
	}
	capacity := e.TotalCapacity(unit)
	itemLoad := e.calc.ItemLoad(item)
	projected := unit.CurrentLoad + itemLoad
	if projected <= capacity {
		score += 20
		util := load.UtilizationPercent(projected, capacity)
		if util >= 70 && util <= 90 {
			score += 10
		}
	} else {
		score -= 50
	}
	if item.CynefinDomain == domain.DomainComplex && len(unit.Members) >= 3 {
		score += 15
	}
	if related {
		score += 25
	}
	return score
}

// hasRelatedWork reports whether the unit already holds work related to
// the item. Two items are related when they share a project, a type, a
// complexity domain or a work paradigm.
func (e *Engine) hasRelatedWork(ctx context.Context, unitID uuid.UUID, item domain.WorkItem) (bool, error) {
	ids, err := e.units.WorkItemIDs(ctx, unitID)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == item.ID {
			continue
		}
		other, err := e.items.FindByID(ctx, id)
		if err != nil {
			continue
		}
		if related(item, other) {
			return true, nil
		}
	}
	return false, nil
}

func related(a, b domain.WorkItem) bool {
	if a.ProjectID != nil && b.ProjectID != nil && *a.ProjectID == *b.ProjectID {
		return true
	}
	if a.Type == b.Type {
		return true
	}
	if a.CynefinDomain != "" && a.CynefinDomain == b.CynefinDomain {
		return true
	}
	if a.WorkParadigm != "" && a.WorkParadigm == b.WorkParadigm {
		return true
	}
	return false
}

// IsOverloaded reports whether the unit's utilization exceeds the given
// percentage.
func (e *Engine) IsOverloaded(unit domain.OrganizationalUnit, thresholdPercent float64) bool {
	return load.UtilizationPercent(unit.CurrentLoad, e.TotalCapacity(unit)) > thresholdPercent
}

// UnitsWithAvailableCapacity lists active units whose headroom covers the
// required load, ordered by headroom descending.
func (e *Engine) UnitsWithAvailableCapacity(ctx context.Context, requiredLoad int) ([]domain.OrganizationalUnit, error) {
	units, err := e.units.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	var res []domain.OrganizationalUnit
	for _, unit := range units {
		if e.TotalCapacity(unit)-unit.CurrentLoad >= requiredLoad {
			res = append(res, unit)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		hi := e.TotalCapacity(res[i]) - res[i].CurrentLoad
		hj := e.TotalCapacity(res[j]) - res[j].CurrentLoad
		if hi != hj {
			return hi > hj
		}
		return res[i].Name < res[j].Name
	})
	return res, nil
}

// OverloadedUnits lists active units whose utilization exceeds the given
// percentage, most loaded first.
func (e *Engine) OverloadedUnits(ctx context.Context, thresholdPercent float64) ([]domain.OrganizationalUnit, error) {
	units, err := e.units.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	var res []domain.OrganizationalUnit
	for _, unit := range units {
		if load.UtilizationPercent(unit.CurrentLoad, e.TotalCapacity(unit)) > thresholdPercent {
			res = append(res, unit)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		ui := load.UtilizationPercent(res[i].CurrentLoad, e.TotalCapacity(res[i]))
		uj := load.UtilizationPercent(res[j].CurrentLoad, e.TotalCapacity(res[j]))
		if ui != uj {
			return ui > uj
		}
		return res[i].Name < res[j].Name
	})
	return res, nil
}

// MemberLoadDistribution computes each member's load from their assigned
// active items. Members with no assignments appear with zero load.
func (e *Engine) MemberLoadDistribution(ctx context.Context, unitID uuid.UUID) (map[string]int, error) {
	unit, err := e.units.FindByID(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("unit %s: %w", unitID, err)
	}
	dist := make(map[string]int, len(unit.Members))
	for _, m := range unit.Members {
		dist[m] = 0
	}
	assignments, err := e.assignments.MemberAssignments(ctx, unitID)
	if err != nil {
		return nil, err
	}
	for member, itemIDs := range assignments {
		for _, id := range itemIDs {
			item, err := e.items.FindByID(ctx, id)
			if err != nil {
				continue
			}
			if workflow.IsActive(item.Status) {
				dist[member] += e.calc.ItemLoad(item)
			}
		}
	}
	return dist, nil
}

// SuggestMemberForItem picks the unit member who would carry the item with
// the least resulting load. Ties break on member id.
func (e *Engine) SuggestMemberForItem(ctx context.Context, unitID uuid.UUID, item domain.WorkItem) (string, error) {
	unit, err := e.units.FindByID(ctx, unitID)
	if err != nil {
		return "", fmt.Errorf("unit %s: %w", unitID, err)
	}
	if len(unit.Members) == 0 {
		return "", fmt.Errorf("unit %s has no members", unitID)
	}
	dist, err := e.MemberLoadDistribution(ctx, unitID)
	if err != nil {
		return "", err
	}
	best, _ := leastLoadedMember(unit.Members, dist)
	return best, nil
}

func leastLoadedMember(members []string, dist map[string]int) (string, int) {
	best := ""
	bestLoad := 0
	for _, m := range members {
		l := dist[m]
		if best == "" || l < bestLoad || (l == bestLoad && m < best) {
			best = m
			bestLoad = l
		}
	}
	return best, bestLoad
}

// OverloadRisk flags one member carrying more than the risk threshold of
// their capacity.
type OverloadRisk struct {
	UnitID             uuid.UUID         `json:"unit_id"`
	UnitName           string            `json:"unit_name"`
	MemberID           string            `json:"member_id"`
	CurrentLoad        int               `json:"current_load"`
	Capacity           int               `json:"capacity"`
	UtilizationPercent float64           `json:"utilization_percent"`
	Severity           string            `json:"severity"`
	ContributingItems  []domain.WorkItem `json:"contributing_items"`
	RiskFactors        map[string]string `json:"risk_factors"`
	RecommendedAction  string            `json:"recommended_action"`
}

// IdentifyOverloadRisks scans every active unit and reports each member
// carrying load above the risk threshold, ordered by load descending.
func (e *Engine) IdentifyOverloadRisks(ctx context.Context) ([]OverloadRisk, error) {
	units, err := e.units.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	var risks []OverloadRisk
	for _, unit := range units {
		unitRisks, err := e.UnitOverloadRisks(ctx, unit.ID)
		if err != nil {
			return nil, err
		}
		risks = append(risks, unitRisks...)
	}
	sort.SliceStable(risks, func(i, j int) bool {
		if risks[i].CurrentLoad != risks[j].CurrentLoad {
			return risks[i].CurrentLoad > risks[j].CurrentLoad
		}
		return risks[i].MemberID < risks[j].MemberID
	})
	return risks, nil
}

// UnitOverloadRisks scans a single unit's members for load above the risk
// threshold. Severity is HIGH when the member is over capacity outright,
// MEDIUM when they are merely above the threshold.
func (e *Engine) UnitOverloadRisks(ctx context.Context, unitID uuid.UUID) ([]OverloadRisk, error) {
	unit, err := e.units.FindByID(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("unit %s: %w", unitID, err)
	}
	assignments, err := e.assignments.MemberAssignments(ctx, unitID)
	if err != nil {
		return nil, err
	}
	capacity := e.calc.MemberCapacity()
	threshold := e.cfg.Overload.RiskThreshold

	var risks []OverloadRisk
	for _, member := range unit.Members {
		var contributing []domain.WorkItem
		total := 0
		for _, id := range assignments[member] {
			item, err := e.items.FindByID(ctx, id)
			if err != nil {
				continue
			}
			if !workflow.IsActive(item.Status) {
				continue
			}
			contributing = append(contributing, item)
			total += e.calc.ItemLoad(item)
		}
		if float64(total) <= threshold*float64(capacity) {
			continue
		}
		risks = append(risks, e.buildRisk(unit, member, total, capacity, contributing))
	}
	sort.SliceStable(risks, func(i, j int) bool {
		if risks[i].CurrentLoad != risks[j].CurrentLoad {
			return risks[i].CurrentLoad > risks[j].CurrentLoad
		}
		return risks[i].MemberID < risks[j].MemberID
	})
	return risks, nil
}

func (e *Engine) buildRisk(unit domain.OrganizationalUnit, member string, total, capacity int, contributing []domain.WorkItem) OverloadRisk {
	severity := SeverityMedium
	action := fmt.Sprintf("Monitor %s's workload; consider deferring new assignments", member)
	if total > capacity {
		severity = SeverityHigh
		action = fmt.Sprintf("Reassign work away from %s immediately", member)
	}
	factors := map[string]string{
		"assigned_items": fmt.Sprintf("%d", len(contributing)),
		"load":           fmt.Sprintf("%d", total),
		"capacity":       fmt.Sprintf("%d", capacity),
	}
	highPriority := 0
	for _, item := range contributing {
		if item.Priority == domain.PriorityCritical || item.Priority == domain.PriorityHigh {
			highPriority++
		}
	}
	if highPriority > 0 {
		factors["high_priority_items"] = fmt.Sprintf("%d", highPriority)
	}
	return OverloadRisk{
		UnitID:             unit.ID,
		UnitName:           unit.Name,
		MemberID:           member,
		CurrentLoad:        total,
		Capacity:           capacity,
		UtilizationPercent: load.UtilizationPercent(total, capacity),
		Severity:           severity,
		ContributingItems:  contributing,
		RiskFactors:        factors,
		RecommendedAction:  action,
	}
}

// ReassignmentRecommendation proposes moving one item from an overloaded
// member to a member of another unit with headroom.
type ReassignmentRecommendation struct {
	Item        domain.WorkItem `json:"item"`
	FromUnitID  uuid.UUID       `json:"from_unit_id"`
	FromMember  string          `json:"from_member"`
	ToUnitID    uuid.UUID       `json:"to_unit_id"`
	ToUnitName  string          `json:"to_unit_name"`
	ToMember    string          `json:"to_member"`
	Improvement int             `json:"improvement"`
}

// GenerateReassignmentRecommendations proposes moves that relieve HIGH
// severity overloads. For each overloaded member's item it seeks a
// different unit with headroom, scoring the move by how much it narrows
// the load gap between the overloaded member and the receiving member.
// Results are sorted by improvement descending and truncated to the
// configured limit.
func (e *Engine) GenerateReassignmentRecommendations(ctx context.Context) ([]ReassignmentRecommendation, error) {
	units, err := e.units.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	risks, err := e.IdentifyOverloadRisks(ctx)
	if err != nil {
		return nil, err
	}
	var recs []ReassignmentRecommendation
	for _, risk := range risks {
		if risk.Severity != SeverityHigh {
			continue
		}
		for _, item := range risk.ContributingItems {
			rec, ok, err := e.bestMove(ctx, units, risk, item)
			if err != nil {
				return nil, err
			}
			if ok {
				recs = append(recs, rec)
			}
		}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Improvement != recs[j].Improvement {
			return recs[i].Improvement > recs[j].Improvement
		}
		return recs[i].Item.ID.String() < recs[j].Item.ID.String()
	})
	if e.cfg.Recommendations.FilterNonPositive {
		kept := recs[:0]
		for _, r := range recs {
			if r.Improvement > 0 {
				kept = append(kept, r)
			}
		}
		recs = kept
	}
	if len(recs) > e.cfg.Recommendations.Limit {
		recs = recs[:e.cfg.Recommendations.Limit]
	}
	return recs, nil
}

// bestMove finds the destination unit and member for one item, preferring
// the move with the largest balance improvement. The improvement is
// measured between the overloaded member and the receiving member, not
// between whole units.
func (e *Engine) bestMove(ctx context.Context, units []domain.OrganizationalUnit, risk OverloadRisk, item domain.WorkItem) (ReassignmentRecommendation, bool, error) {
	itemLoad := e.calc.ItemLoad(item)
	best := ReassignmentRecommendation{}
	found := false
	for _, dst := range units {
		if dst.ID == risk.UnitID {
			continue
		}
		if len(dst.Members) == 0 {
			continue
		}
		if e.TotalCapacity(dst)-dst.CurrentLoad < itemLoad {
			continue
		}
		dist, err := e.MemberLoadDistribution(ctx, dst.ID)
		if err != nil {
			return ReassignmentRecommendation{}, false, err
		}
		member, memberLoad := leastLoadedMember(dst.Members, dist)
		improvement := balanceImprovement(risk.CurrentLoad, memberLoad, itemLoad)
		if !found || improvement > best.Improvement {
			best = ReassignmentRecommendation{
				Item:        item,
				FromUnitID:  risk.UnitID,
				FromMember:  risk.MemberID,
				ToUnitID:    dst.ID,
				ToUnitName:  dst.Name,
				ToMember:    member,
				Improvement: improvement,
			}
			found = true
		}
	}
	return best, found, nil
}

// balanceImprovement measures how much moving a load quantum from the
// source member to the destination member narrows the gap between them.
func balanceImprovement(srcLoad, dstLoad, itemLoad int) int {
	before := absInt(srcLoad - dstLoad)
	after := absInt((srcLoad - itemLoad) - (dstLoad + itemLoad))
	return before - after
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
