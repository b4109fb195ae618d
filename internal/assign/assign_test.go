package assign

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rinna/internal/config"
	"rinna/internal/domain"
	"rinna/internal/store"
)

type env struct {
	ctx    context.Context
	mem    *store.Memory
	engine *Engine
	units  *UnitService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	clock := func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	mem := store.NewMemory(clock)
	engine := NewEngine(mem.Units, mem.Items, mem.Assignments, config.Default())
	engine.Now = clock
	units := NewUnitService(mem.Units, mem.Assignments, engine)
	units.Now = clock
	return &env{ctx: context.Background(), mem: mem, engine: engine, units: units}
}

func (e *env) createUnit(t *testing.T, req domain.OrganizationalUnitCreateRequest) domain.OrganizationalUnit {
	t.Helper()
	unit, err := e.units.CreateUnit(e.ctx, req)
	require.NoError(t, err)
	return unit
}

func (e *env) createItem(t *testing.T, req domain.WorkItemCreateRequest) domain.WorkItem {
	t.Helper()
	item, err := e.mem.Items.Create(e.ctx, req)
	require.NoError(t, err)
	return item
}

func TestTotalCapacityFormula(t *testing.T) {
	e := newEnv(t)
	cases := []struct {
		name string
		req  domain.OrganizationalUnitCreateRequest
		want int
	}{
		{
			name: "squad with expertise and paradigms",
			req: domain.OrganizationalUnitCreateRequest{
				Name: "squad", Type: domain.UnitSquad,
				Members:         []string{"a", "b", "c"},
				DomainExpertise: []domain.CynefinDomain{domain.DomainComplex, domain.DomainComplicated},
				WorkParadigms:   []domain.WorkParadigm{domain.ParadigmProduct},
			},
			// 3 * 50 * 1.2 + 2*10 + 1*5
			want: 205,
		},
		{
			name: "plain team",
			req: domain.OrganizationalUnitCreateRequest{
				Name: "team", Type: domain.UnitTeam, Members: []string{"a"},
			},
			want: 50,
		},
		{
			name: "department discount",
			req: domain.OrganizationalUnitCreateRequest{
				Name: "dept", Type: domain.UnitDepartment, Members: []string{"a", "b"},
			},
			// 2 * 50 * 0.8
			want: 80,
		},
		{
			name: "empty unit",
			req:  domain.OrganizationalUnitCreateRequest{Name: "ghost", Type: domain.UnitTeam},
			want: 0,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			unit := e.createUnit(t, c.req)
			assert.Equal(t, c.want, e.engine.TotalCapacity(unit))
			assert.Equal(t, c.want, unit.CognitiveCapacity, "CreateUnit should seed the derived capacity")
		})
	}
}

func TestCognitiveImpactPricesFeatureHighAt25(t *testing.T) {
	e := newEnv(t)
	unit := e.createUnit(t, domain.OrganizationalUnitCreateRequest{
		Name: "team", Type: domain.UnitTeam, Members: []string{"a", "b"},
	})
	item := e.createItem(t, domain.WorkItemCreateRequest{
		Title: "f", Type: domain.TypeFeature, Priority: domain.PriorityHigh,
	})
	impact, err := e.engine.CognitiveImpact(e.ctx, unit.ID, item)
	require.NoError(t, err)
	assert.Equal(t, 25, impact.ItemLoad)
	assert.Equal(t, 0, impact.CurrentLoad)
	assert.Equal(t, 25, impact.ProjectedLoad)
	assert.Equal(t, 100, impact.Capacity)
	assert.InDelta(t, 25.0, impact.ProjectedUtilization, 0.001)
}

func TestSuitabilityRanking(t *testing.T) {
	e := newEnv(t)
	expert := e.createUnit(t, domain.OrganizationalUnitCreateRequest{
		Name: "expert", Type: domain.UnitTeam,
		Members:         []string{"a", "b", "c"},
		DomainExpertise: []domain.CynefinDomain{domain.DomainComplex},
		WorkParadigms:   []domain.WorkParadigm{domain.ParadigmProduct},
	})
	novice := e.createUnit(t, domain.OrganizationalUnitCreateRequest{
		Name: "novice", Type: domain.UnitTeam, Members: []string{"x"},
	})
	// Push the novice unit near its 50 point capacity so the item no
	// longer fits.
	loaded, err := e.mem.Units.FindByID(e.ctx, novice.ID)
	require.NoError(t, err)
	_, err = e.mem.Units.Save(e.ctx, loaded.WithLoad(loaded.CognitiveCapacity, 40, time.Now().UTC()))
	require.NoError(t, err)

	item := e.createItem(t, domain.WorkItemCreateRequest{
		Title: "hard", Type: domain.TypeFeature, Priority: domain.PriorityHigh,
		CynefinDomain: domain.DomainComplex, WorkParadigm: domain.ParadigmProduct,
	})
	suggestions, err := e.engine.SuggestUnitsForItem(e.ctx, item)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)

	assert.Equal(t, expert.ID, suggestions[0].Unit.ID)
	// +50 expertise, +30 paradigm, +20 fits, +15 complex with 3+ members
	assert.Equal(t, 115, suggestions[0].Score)
	// -50 for not fitting, nothing else applies
	assert.Equal(t, -50, suggestions[1].Score)
}

func TestSuitabilityCapacityAsymmetry(t *testing.T) {
	e := newEnv(t)
	unit := domain.OrganizationalUnit{Name: "u", Type: domain.UnitTeam, Members: []string{"a"}}
	item := domain.WorkItem{Type: domain.TypeFeature, Priority: domain.PriorityHigh}

	fits := e.engine.suitabilityScore(unit, item, false)
	unit.CurrentLoad = 100
	overloaded := e.engine.suitabilityScore(unit, item, false)
	assert.Greater(t, fits, overloaded)
	assert.Equal(t, 70, fits-overloaded, "the +20/-50 capacity asymmetry")
}

func TestSuitabilitySweetSpotAndRelatedBonus(t *testing.T) {
	e := newEnv(t)
	unit := e.createUnit(t, domain.OrganizationalUnitCreateRequest{
		Name: "steady", Type: domain.UnitTeam, Members: []string{"a"},
	})
	existing := e.createItem(t, domain.WorkItemCreateRequest{
		Title: "prior", Type: domain.TypeFeature, Priority: domain.PriorityLow,
	})
	require.NoError(t, e.units.AssignWorkItem(e.ctx, unit.ID, existing.ID, "a"))

	// Existing FEATURE/LOW carries 16 load; adding FEATURE/HIGH (25)
	// projects 41 of 50, an 82% utilization inside the sweet spot.
	item := e.createItem(t, domain.WorkItemCreateRequest{
		Title: "next", Type: domain.TypeFeature, Priority: domain.PriorityHigh,
	})
	suggestions, err := e.engine.SuggestUnitsForItem(e.ctx, item)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	// +20 fits, +10 sweet spot, +25 related (same type on the unit)
	assert.Equal(t, 55, suggestions[0].Score)
}

func TestSuggestUnitsSkipsInactive(t *testing.T) {
	e := newEnv(t)
	unit := e.createUnit(t, domain.OrganizationalUnitCreateRequest{
		Name: "retired", Type: domain.UnitTeam, Members: []string{"a"},
	})
	fetched, err := e.mem.Units.FindByID(e.ctx, unit.ID)
	require.NoError(t, err)
	fetched.Active = false
	_, err = e.mem.Units.Save(e.ctx, fetched)
	require.NoError(t, err)

	item := e.createItem(t, domain.WorkItemCreateRequest{Title: "x", Type: domain.TypeTask})
	suggestions, err := e.engine.SuggestUnitsForItem(e.ctx, item)
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestUpdateCognitiveLoadCountsOnlyActiveItems(t *testing.T) {
	e := newEnv(t)
	unit := e.createUnit(t, domain.OrganizationalUnitCreateRequest{
		Name: "team", Type: domain.UnitTeam, Members: []string{"a"},
	})
	active := e.createItem(t, domain.WorkItemCreateRequest{
		Title: "open", Type: domain.TypeBug, Priority: domain.PriorityMedium,
	})
	require.NoError(t, e.units.AssignWorkItem(e.ctx, unit.ID, active.ID, "a"))

	done := e.createItem(t, domain.WorkItemCreateRequest{
		Title: "finished", Type: domain.TypeEpic, Priority: domain.PriorityHigh,
	})
	doneItem, err := e.mem.Items.FindByID(e.ctx, done.ID)
	require.NoError(t, err)
	_, err = e.mem.Items.Save(e.ctx, doneItem.WithStatus(domain.StateDone, time.Now().UTC()))
	require.NoError(t, err)
	require.NoError(t, e.units.AssignWorkItem(e.ctx, unit.ID, done.ID, "a"))

	updated, err := e.engine.UpdateCognitiveLoad(e.ctx, unit.ID)
	require.NoError(t, err)
	// BUG/MEDIUM = 5 + 5 + 5; the DONE epic contributes nothing.
	assert.Equal(t, 15, updated.CurrentLoad)
}

func TestMemberLoadDistributionAndSuggestion(t *testing.T) {
	e := newEnv(t)
	unit := e.createUnit(t, domain.OrganizationalUnitCreateRequest{
		Name: "pair", Type: domain.UnitTeam, Members: []string{"alice", "bob"},
	})
	item := e.createItem(t, domain.WorkItemCreateRequest{
		Title: "t", Type: domain.TypeTask, Priority: domain.PriorityLow,
	})
	require.NoError(t, e.units.AssignWorkItem(e.ctx, unit.ID, item.ID, "alice"))

	dist, err := e.engine.MemberLoadDistribution(e.ctx, unit.ID)
	require.NoError(t, err)
	// TASK/LOW = 5 + 3 + 1
	assert.Equal(t, map[string]int{"alice": 9, "bob": 0}, dist)

	next := e.createItem(t, domain.WorkItemCreateRequest{Title: "n", Type: domain.TypeTask})
	member, err := e.engine.SuggestMemberForItem(e.ctx, unit.ID, next)
	require.NoError(t, err)
	assert.Equal(t, "bob", member)
}

func TestOverloadRiskThresholdsAndSeverity(t *testing.T) {
	e := newEnv(t)
	unit := e.createUnit(t, domain.OrganizationalUnitCreateRequest{
		Name: "team", Type: domain.UnitTeam, Members: []string{"calm", "busy", "drowning"},
	})
	// calm: TASK/LOW = 9, under the 22.5 threshold.
	calmItem := e.createItem(t, domain.WorkItemCreateRequest{Title: "c", Type: domain.TypeTask, Priority: domain.PriorityLow})
	require.NoError(t, e.units.AssignWorkItem(e.ctx, unit.ID, calmItem.ID, "calm"))
	// busy: FEATURE/HIGH = 25, over threshold but not over the 25 capacity.
	busyItem := e.createItem(t, domain.WorkItemCreateRequest{Title: "b", Type: domain.TypeFeature, Priority: domain.PriorityHigh})
	require.NoError(t, e.units.AssignWorkItem(e.ctx, unit.ID, busyItem.ID, "busy"))
	// drowning: two FEATURE/HIGH = 50, over capacity.
	for _, title := range []string{"d1", "d2"} {
		item := e.createItem(t, domain.WorkItemCreateRequest{Title: title, Type: domain.TypeFeature, Priority: domain.PriorityHigh})
		require.NoError(t, e.units.AssignWorkItem(e.ctx, unit.ID, item.ID, "drowning"))
	}

	risks, err := e.engine.UnitOverloadRisks(e.ctx, unit.ID)
	require.NoError(t, err)
	require.Len(t, risks, 2)

	assert.Equal(t, "drowning", risks[0].MemberID)
	assert.Equal(t, SeverityHigh, risks[0].Severity)
	assert.Equal(t, 50, risks[0].CurrentLoad)
	assert.Len(t, risks[0].ContributingItems, 2)
	assert.Equal(t, "2", risks[0].RiskFactors["high_priority_items"])

	assert.Equal(t, "busy", risks[1].MemberID)
	assert.Equal(t, SeverityMedium, risks[1].Severity)
	assert.Equal(t, 25, risks[1].CurrentLoad)
}

func TestReassignmentRecommendations(t *testing.T) {
	e := newEnv(t)
	src := e.createUnit(t, domain.OrganizationalUnitCreateRequest{
		Name: "overloaded", Type: domain.UnitTeam, Members: []string{"alice"},
	})
	dst := e.createUnit(t, domain.OrganizationalUnitCreateRequest{
		Name: "spare", Type: domain.UnitTeam, Members: []string{"bob"},
	})
	for _, title := range []string{"i1", "i2"} {
		item := e.createItem(t, domain.WorkItemCreateRequest{Title: title, Type: domain.TypeFeature, Priority: domain.PriorityHigh})
		require.NoError(t, e.units.AssignWorkItem(e.ctx, src.ID, item.ID, "alice"))
	}

	recs, err := e.engine.GenerateReassignmentRecommendations(e.ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.Equal(t, src.ID, rec.FromUnitID)
		assert.Equal(t, "alice", rec.FromMember)
		assert.Equal(t, dst.ID, rec.ToUnitID, "must never recommend the source unit")
		assert.Equal(t, "bob", rec.ToMember)
		// before |50-0|, after |25-25|
		assert.Equal(t, 50, rec.Improvement)
	}
}

func TestIdentifyOverloadRisksScansEveryUnit(t *testing.T) {
	e := newEnv(t)
	first := e.createUnit(t, domain.OrganizationalUnitCreateRequest{
		Name: "payments", Type: domain.UnitTeam, Members: []string{"ann"},
	})
	second := e.createUnit(t, domain.OrganizationalUnitCreateRequest{
		Name: "search", Type: domain.UnitTeam, Members: []string{"ben"},
	})
	// ann: two FEATURE/HIGH = 50, over capacity.
	for _, title := range []string{"a1", "a2"} {
		item := e.createItem(t, domain.WorkItemCreateRequest{Title: title, Type: domain.TypeFeature, Priority: domain.PriorityHigh})
		require.NoError(t, e.units.AssignWorkItem(e.ctx, first.ID, item.ID, "ann"))
	}
	// ben: FEATURE/HIGH 25 + TASK/HIGH 18 = 43, also over capacity.
	for _, req := range []domain.WorkItemCreateRequest{
		{Title: "b1", Type: domain.TypeFeature, Priority: domain.PriorityHigh},
		{Title: "b2", Type: domain.TypeTask, Priority: domain.PriorityHigh},
	} {
		item := e.createItem(t, req)
		require.NoError(t, e.units.AssignWorkItem(e.ctx, second.ID, item.ID, "ben"))
	}

	risks, err := e.engine.IdentifyOverloadRisks(e.ctx)
	require.NoError(t, err)
	require.Len(t, risks, 2)
	assert.Equal(t, "ann", risks[0].MemberID)
	assert.Equal(t, "payments", risks[0].UnitName)
	assert.Equal(t, 50, risks[0].CurrentLoad)
	assert.Equal(t, "ben", risks[1].MemberID)
	assert.Equal(t, "search", risks[1].UnitName)
	assert.Equal(t, 43, risks[1].CurrentLoad)
}

func TestReassignmentScoresMemberLoadsNotUnitLoads(t *testing.T) {
	e := newEnv(t)
	src := e.createUnit(t, domain.OrganizationalUnitCreateRequest{
		Name: "swamped", Type: domain.UnitTeam, Members: []string{"alice", "bob"},
	})
	dst := e.createUnit(t, domain.OrganizationalUnitCreateRequest{
		Name: "relief", Type: domain.UnitTeam, Members: []string{"carol", "dave"},
	})
	// alice: two FEATURE/HIGH = 50, over her 25 capacity.
	for _, title := range []string{"i1", "i2"} {
		item := e.createItem(t, domain.WorkItemCreateRequest{Title: title, Type: domain.TypeFeature, Priority: domain.PriorityHigh})
		require.NoError(t, e.units.AssignWorkItem(e.ctx, src.ID, item.ID, "alice"))
	}
	// bob: BUG/MEDIUM = 15, under the threshold.
	bobItem := e.createItem(t, domain.WorkItemCreateRequest{Title: "b", Type: domain.TypeBug, Priority: domain.PriorityMedium})
	require.NoError(t, e.units.AssignWorkItem(e.ctx, src.ID, bobItem.ID, "bob"))
	// carol: FEATURE/HIGH = 25, busy but not over capacity.
	carolItem := e.createItem(t, domain.WorkItemCreateRequest{Title: "c", Type: domain.TypeFeature, Priority: domain.PriorityHigh})
	require.NoError(t, e.units.AssignWorkItem(e.ctx, dst.ID, carolItem.ID, "carol"))

	recs, err := e.engine.GenerateReassignmentRecommendations(e.ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.Equal(t, "alice", rec.FromMember)
		assert.Equal(t, dst.ID, rec.ToUnitID)
		assert.Equal(t, "dave", rec.ToMember, "idle member receives the item")
		// Member loads: before |50-0|, after |25-25|. The unit totals
		// (65 and 25) would give 30 instead.
		assert.Equal(t, 50, rec.Improvement)
	}
}

func TestReassignmentHonorsLimit(t *testing.T) {
	e := newEnv(t)
	cfg := config.Default()
	cfg.Recommendations.Limit = 1
	e.engine.cfg = cfg

	src := e.createUnit(t, domain.OrganizationalUnitCreateRequest{
		Name: "overloaded", Type: domain.UnitTeam, Members: []string{"alice"},
	})
	e.createUnit(t, domain.OrganizationalUnitCreateRequest{
		Name: "spare", Type: domain.UnitTeam, Members: []string{"bob"},
	})
	for _, title := range []string{"i1", "i2", "i3"} {
		item := e.createItem(t, domain.WorkItemCreateRequest{Title: title, Type: domain.TypeFeature, Priority: domain.PriorityHigh})
		require.NoError(t, e.units.AssignWorkItem(e.ctx, src.ID, item.ID, "alice"))
	}
	recs, err := e.engine.GenerateReassignmentRecommendations(e.ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestUnitMembershipMutations(t *testing.T) {
	e := newEnv(t)
	unit := e.createUnit(t, domain.OrganizationalUnitCreateRequest{
		Name: "team", Type: domain.UnitTeam, Members: []string{"alice"},
	})
	assert.Equal(t, 50, unit.CognitiveCapacity)

	grown, err := e.units.AddMember(e.ctx, unit.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 100, grown.CognitiveCapacity, "capacity tracks head count")

	item := e.createItem(t, domain.WorkItemCreateRequest{Title: "t", Type: domain.TypeTask, Priority: domain.PriorityLow})
	require.NoError(t, e.units.AssignWorkItem(e.ctx, unit.ID, item.ID, "bob"))

	shrunk, err := e.units.RemoveMember(e.ctx, unit.ID, "bob")
	require.NoError(t, err)
	assert.False(t, shrunk.HasMember("bob"))
	ids, err := e.mem.Assignments.ItemsByMember(e.ctx, unit.ID, "bob")
	require.NoError(t, err)
	assert.Empty(t, ids, "removing a member drops their assignments")

	owner, err := e.units.OwningUnit(e.ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, unit.ID, owner.ID, "unit still owns the item")
}

func TestUnitsWithAvailableCapacityAndOverloaded(t *testing.T) {
	e := newEnv(t)
	roomy := e.createUnit(t, domain.OrganizationalUnitCreateRequest{
		Name: "roomy", Type: domain.UnitTeam, Members: []string{"a", "b"},
	})
	tight := e.createUnit(t, domain.OrganizationalUnitCreateRequest{
		Name: "tight", Type: domain.UnitTeam, Members: []string{"x"},
	})
	fetched, err := e.mem.Units.FindByID(e.ctx, tight.ID)
	require.NoError(t, err)
	_, err = e.mem.Units.Save(e.ctx, fetched.WithLoad(fetched.CognitiveCapacity, 48, time.Now().UTC()))
	require.NoError(t, err)

	avail, err := e.engine.UnitsWithAvailableCapacity(e.ctx, 25)
	require.NoError(t, err)
	require.Len(t, avail, 1)
	assert.Equal(t, roomy.ID, avail[0].ID)

	over, err := e.engine.OverloadedUnits(e.ctx, 90)
	require.NoError(t, err)
	require.Len(t, over, 1)
	assert.Equal(t, tight.ID, over[0].ID)
}
