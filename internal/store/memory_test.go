package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rinna/internal/domain"
)

func fixedClock() func() time.Time {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func TestItemsCRUD(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(fixedClock())

	item, err := mem.Items.Create(ctx, domain.WorkItemCreateRequest{
		Title: "fix login", Type: domain.TypeBug, Priority: domain.PriorityHigh, Assignee: "alice",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, item.ID)
	assert.Equal(t, domain.StateFound, item.Status, "new items start FOUND")
	assert.Equal(t, item.CreatedAt, item.UpdatedAt)

	got, err := mem.Items.FindByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item, got)

	_, err = mem.Items.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	updated, err := mem.Items.Save(ctx, item.WithAssignee("bob", time.Now().UTC()))
	require.NoError(t, err)
	assert.Equal(t, "bob", updated.Assignee)

	_, err = mem.Items.Save(ctx, domain.WorkItem{ID: uuid.New()})
	assert.ErrorIs(t, err, ErrNotFound)

	byType, err := mem.Items.FindByType(ctx, domain.TypeBug)
	require.NoError(t, err)
	assert.Len(t, byType, 1)

	byAssignee, err := mem.Items.FindByAssignee(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, byAssignee, 1)

	require.NoError(t, mem.Items.DeleteByID(ctx, item.ID))
	assert.ErrorIs(t, mem.Items.DeleteByID(ctx, item.ID), ErrNotFound)
}

func TestItemsListInCreationOrder(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(fixedClock())
	for _, title := range []string{"one", "two", "three"} {
		_, err := mem.Items.Create(ctx, domain.WorkItemCreateRequest{Title: title, Type: domain.TypeTask})
		require.NoError(t, err)
	}
	all, err := mem.Items.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "one", all[0].Title)
	assert.Equal(t, "three", all[2].Title)
}

func TestMetadataOverwriteAndLookup(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(fixedClock())
	itemID := uuid.New()

	_, ok, err := mem.Metadata.FindByItemAndKey(ctx, itemID, domain.MetaUrgent)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mem.Metadata.Save(ctx, itemID, domain.MetaUrgent, "true"))
	require.NoError(t, mem.Metadata.Save(ctx, itemID, domain.MetaUrgent, "false"))
	v, ok, err := mem.Metadata.FindByItemAndKey(ctx, itemID, domain.MetaUrgent)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "false", v, "second save overwrites")

	require.NoError(t, mem.Metadata.Save(ctx, itemID, domain.MetaStoryPoints, "5"))
	byItem, err := mem.Metadata.FindByItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{domain.MetaUrgent: "false", domain.MetaStoryPoints: "5"}, byItem)
}

func TestQueueSaveClonesItemIDs(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(fixedClock())
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	q, err := mem.Queues.Save(ctx, domain.WorkQueue{Name: "q", Active: true, ItemIDs: ids})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, q.ID)

	ids[0] = uuid.New()
	got, err := mem.Queues.FindByID(ctx, q.ID)
	require.NoError(t, err)
	assert.NotEqual(t, ids[0], got.ItemIDs[0], "caller mutation must not leak into the store")

	got.ItemIDs[1] = uuid.New()
	again, err := mem.Queues.FindByID(ctx, q.ID)
	require.NoError(t, err)
	assert.NotEqual(t, got.ItemIDs[1], again.ItemIDs[1], "returned slices are copies")

	byName, err := mem.Queues.FindByName(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, q.ID, byName.ID)
	_, err = mem.Queues.FindByName(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnitAssociationsAndOwnership(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(fixedClock())
	unit, err := mem.Units.Create(ctx, domain.OrganizationalUnitCreateRequest{
		Name: "team", Type: domain.UnitTeam, Members: []string{"a"},
	})
	require.NoError(t, err)
	assert.True(t, unit.Active, "units start active")

	itemID := uuid.New()
	added, err := mem.Units.AssociateWorkItem(ctx, unit.ID, itemID)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = mem.Units.AssociateWorkItem(ctx, unit.ID, itemID)
	require.NoError(t, err)
	assert.False(t, added, "second association is a no-op")

	ids, err := mem.Units.WorkItemIDs(ctx, unit.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{itemID}, ids)

	ok, err := mem.Units.SetOwningUnit(ctx, itemID, unit.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	owner, err := mem.Units.OwningUnit(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, unit.ID, owner.ID)

	removed, err := mem.Units.DissociateWorkItem(ctx, unit.ID, itemID)
	require.NoError(t, err)
	assert.True(t, removed)

	require.NoError(t, mem.Units.DeleteByID(ctx, unit.ID))
	_, err = mem.Units.OwningUnit(ctx, itemID)
	assert.ErrorIs(t, err, ErrNotFound, "deleting a unit clears ownership")
}

func TestAssignmentsIdempotentAndUnassign(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(fixedClock())
	unitID, itemID := uuid.New(), uuid.New()

	require.NoError(t, mem.Assignments.Assign(ctx, unitID, "alice", itemID))
	require.NoError(t, mem.Assignments.Assign(ctx, unitID, "alice", itemID))
	ids, err := mem.Assignments.ItemsByMember(ctx, unitID, "alice")
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	byMember, err := mem.Assignments.MemberAssignments(ctx, unitID)
	require.NoError(t, err)
	assert.Equal(t, map[string][]uuid.UUID{"alice": {itemID}}, byMember)

	require.NoError(t, mem.Assignments.Unassign(ctx, unitID, "alice", itemID))
	assert.ErrorIs(t, mem.Assignments.Unassign(ctx, unitID, "alice", itemID), ErrNotFound)
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(fixedClock())

	item, err := mem.Items.Create(ctx, domain.WorkItemCreateRequest{Title: "i", Type: domain.TypeBug, Priority: domain.PriorityHigh})
	require.NoError(t, err)
	require.NoError(t, mem.Metadata.Save(ctx, item.ID, domain.MetaUrgent, "true"))
	q, err := mem.Queues.Save(ctx, domain.WorkQueue{Name: "q", Active: true, ItemIDs: []uuid.UUID{item.ID}})
	require.NoError(t, err)
	unit, err := mem.Units.Create(ctx, domain.OrganizationalUnitCreateRequest{Name: "u", Type: domain.UnitTeam, Members: []string{"a"}})
	require.NoError(t, err)
	_, err = mem.Units.AssociateWorkItem(ctx, unit.ID, item.ID)
	require.NoError(t, err)
	_, err = mem.Units.SetOwningUnit(ctx, item.ID, unit.ID)
	require.NoError(t, err)
	require.NoError(t, mem.Assignments.Assign(ctx, unit.ID, "a", item.ID))

	path := filepath.Join(t.TempDir(), "state", "state.json")
	require.NoError(t, mem.SaveFile(path))

	restored := NewMemory(fixedClock())
	require.NoError(t, restored.LoadFile(path))

	gotItem, err := restored.Items.FindByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Title, gotItem.Title)
	v, ok, err := restored.Metadata.FindByItemAndKey(ctx, item.ID, domain.MetaUrgent)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", v)
	gotQueue, err := restored.Queues.FindByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{item.ID}, gotQueue.ItemIDs)
	owner, err := restored.Units.OwningUnit(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, unit.ID, owner.ID)
	ids, err := restored.Assignments.ItemsByMember(ctx, unit.ID, "a")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{item.ID}, ids)
}

func TestLoadFileMissingIsEmptyStart(t *testing.T) {
	mem := NewMemory(fixedClock())
	require.NoError(t, mem.LoadFile(filepath.Join(t.TempDir(), "absent.json")))
	all, err := mem.Items.FindAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}
