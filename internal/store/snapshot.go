package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"rinna/internal/domain"
)

// Snapshot is the serializable image of every in-memory store. The CLI
// round-trips it through a workspace state file so state survives between
// invocations.
type Snapshot struct {
	Items       []domain.WorkItem                 `json:"items"`
	Metadata    []domain.WorkItemMetadata         `json:"metadata"`
	Queues      []domain.WorkQueue                `json:"queues"`
	Units       []domain.OrganizationalUnit       `json:"units"`
	UnitItems   map[string][]uuid.UUID            `json:"unit_items"`
	Owners      map[string]uuid.UUID              `json:"owners"`
	Assignments map[string]map[string][]uuid.UUID `json:"assignments"`
}

// Snapshot captures the current contents of all stores.
func (m *Memory) Snapshot() Snapshot {
	snap := Snapshot{
		UnitItems:   map[string][]uuid.UUID{},
		Owners:      map[string]uuid.UUID{},
		Assignments: map[string]map[string][]uuid.UUID{},
	}

	m.Items.mu.RLock()
	for _, item := range m.Items.items {
		snap.Items = append(snap.Items, item)
	}
	m.Items.mu.RUnlock()

	m.Metadata.mu.RLock()
	for _, byKey := range m.Metadata.entries {
		for _, meta := range byKey {
			snap.Metadata = append(snap.Metadata, meta)
		}
	}
	m.Metadata.mu.RUnlock()

	m.Queues.mu.RLock()
	for _, q := range m.Queues.queues {
		snap.Queues = append(snap.Queues, snapshotQueue(q))
	}
	m.Queues.mu.RUnlock()

	m.Units.mu.RLock()
	for _, u := range m.Units.units {
		snap.Units = append(snap.Units, u)
	}
	for unitID, ids := range m.Units.unitItems {
		snap.UnitItems[unitID.String()] = append([]uuid.UUID(nil), ids...)
	}
	for itemID, unitID := range m.Units.owners {
		snap.Owners[itemID.String()] = unitID
	}
	m.Units.mu.RUnlock()

	m.Assignments.mu.RLock()
	for unitID, byMember := range m.Assignments.assignments {
		cp := map[string][]uuid.UUID{}
		for member, ids := range byMember {
			cp[member] = append([]uuid.UUID(nil), ids...)
		}
		snap.Assignments[unitID.String()] = cp
	}
	m.Assignments.mu.RUnlock()

	return snap
}

// Restore replaces the contents of all stores with the snapshot.
func (m *Memory) Restore(snap Snapshot) error {
	m.Items.mu.Lock()
	m.Items.items = map[uuid.UUID]domain.WorkItem{}
	for _, item := range snap.Items {
		m.Items.items[item.ID] = item
	}
	m.Items.mu.Unlock()

	m.Metadata.mu.Lock()
	m.Metadata.entries = map[uuid.UUID]map[string]domain.WorkItemMetadata{}
	for _, meta := range snap.Metadata {
		byKey, ok := m.Metadata.entries[meta.WorkItemID]
		if !ok {
			byKey = map[string]domain.WorkItemMetadata{}
			m.Metadata.entries[meta.WorkItemID] = byKey
		}
		byKey[meta.Key] = meta
	}
	m.Metadata.mu.Unlock()

	m.Queues.mu.Lock()
	m.Queues.queues = map[uuid.UUID]domain.WorkQueue{}
	for _, q := range snap.Queues {
		m.Queues.queues[q.ID] = snapshotQueue(q)
	}
	m.Queues.mu.Unlock()

	m.Units.mu.Lock()
	m.Units.units = map[uuid.UUID]domain.OrganizationalUnit{}
	m.Units.unitItems = map[uuid.UUID][]uuid.UUID{}
	m.Units.owners = map[uuid.UUID]uuid.UUID{}
	for _, u := range snap.Units {
		m.Units.units[u.ID] = u
	}
	for key, ids := range snap.UnitItems {
		unitID, err := uuid.Parse(key)
		if err != nil {
			m.Units.mu.Unlock()
			return fmt.Errorf("parse unit id %q: %w", key, err)
		}
		m.Units.unitItems[unitID] = append([]uuid.UUID(nil), ids...)
	}
	for key, unitID := range snap.Owners {
		itemID, err := uuid.Parse(key)
		if err != nil {
			m.Units.mu.Unlock()
			return fmt.Errorf("parse item id %q: %w", key, err)
		}
		m.Units.owners[itemID] = unitID
	}
	m.Units.mu.Unlock()

	m.Assignments.mu.Lock()
	m.Assignments.assignments = map[uuid.UUID]map[string][]uuid.UUID{}
	for key, byMember := range snap.Assignments {
		unitID, err := uuid.Parse(key)
		if err != nil {
			m.Assignments.mu.Unlock()
			return fmt.Errorf("parse unit id %q: %w", key, err)
		}
		cp := map[string][]uuid.UUID{}
		for member, ids := range byMember {
			cp[member] = append([]uuid.UUID(nil), ids...)
		}
		m.Assignments.assignments[unitID] = cp
	}
	m.Assignments.mu.Unlock()

	return nil
}

// LoadFile restores store contents from a state file. A missing file is
// not an error; the stores simply start empty.
func (m *Memory) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse state file %s: %w", path, err)
	}
	return m.Restore(snap)
}

// SaveFile writes the current store contents to a state file, creating
// the parent directory if needed.
func (m *Memory) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
