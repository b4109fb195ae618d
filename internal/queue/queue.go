// Package queue holds the work queue prioritization engine: ordered
// collections of work items and the three reprioritization modes (plain,
// weighted, capacity-bounded).
package queue

import (
	"fmt"
	"sort"

	"rinna/internal/config"
	"rinna/internal/domain"
)

// Weight keys accepted by ReprioritizeWeighted. Omitted keys fall back to
// the config defaults (priority 10, type 5, age 2, urgent 20).
const (
	WeightPriority = "priority"
	WeightType     = "type"
	WeightAge      = "age"
	WeightUrgent   = "urgent"
)

// InvalidRelationshipError reports a parent/child type pairing the
// hierarchy table forbids.
type InvalidRelationshipError struct {
	ParentType domain.WorkItemType
	ChildType  domain.WorkItemType
}

func (e *InvalidRelationshipError) Error() string {
	return fmt.Sprintf("invalid parent-child relationship: %s -> %s", e.ParentType, e.ChildType)
}

// entry pairs an item with the metadata the comparators consult.
type entry struct {
	item     domain.WorkItem
	urgent   bool
	points   int
	included bool
}

// sortDefault applies the fixed default order: priority descending, then
// type weight, then creation time ascending, with identity as the final
// tie break. The order is total, so repeated application is a no-op.
func sortDefault(entries []entry, cfg *config.Config) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].item, entries[j].item
		if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
			return ra < rb
		}
		if wa, wb := cfg.TypeWeight(a.Type), cfg.TypeWeight(b.Type); wa != wb {
			return wa < wb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

// sortWeighted orders by the composite weighted key: scaled priority rank,
// then scaled type weight, then age (oldest first for a positive weight,
// newest first for a negative one, skipped at zero), then an urgency
// override that pulls urgent items ahead of non-urgent peers by the
// urgency magnitude. Identity breaks the last tie so the order stays
// total.
func sortWeighted(entries []entry, weights map[string]int, cfg *config.Config) {
	priorityWeight := weightOr(weights, WeightPriority, cfg.Weights.Priority)
	typeWeight := weightOr(weights, WeightType, cfg.Weights.Type)
	ageWeight := weightOr(weights, WeightAge, cfg.Weights.Age)
	urgentWeight := weightOr(weights, WeightUrgent, cfg.Weights.Urgent)

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if ka, kb := a.item.Priority.Rank()*priorityWeight, b.item.Priority.Rank()*priorityWeight; ka != kb {
			return ka < kb
		}
		if ka, kb := cfg.TypeWeight(a.item.Type)*typeWeight, cfg.TypeWeight(b.item.Type)*typeWeight; ka != kb {
			return ka < kb
		}
		if ageWeight != 0 && !a.item.CreatedAt.Equal(b.item.CreatedAt) {
			if ageWeight > 0 {
				return a.item.CreatedAt.Before(b.item.CreatedAt)
			}
			return b.item.CreatedAt.Before(a.item.CreatedAt)
		}
		if ka, kb := urgencyKey(a.urgent, urgentWeight), urgencyKey(b.urgent, urgentWeight); ka != kb {
			return ka < kb
		}
		return a.item.ID.String() < b.item.ID.String()
	})
}

func urgencyKey(urgent bool, weight int) int {
	if urgent {
		return -weight
	}
	return 0
}

func weightOr(weights map[string]int, key string, fallback int) int {
	if w, ok := weights[key]; ok {
		return w
	}
	return fallback
}

// markCapacity walks entries in their current priority order and greedily
// marks the prefix that fits within teamCapacity. Once one item overflows,
// everything after it is excluded too: priority order is authoritative and
// capacity is a cutoff, not a packing optimization.
func markCapacity(entries []entry, teamCapacity int) {
	allocated := 0
	open := true
	for i := range entries {
		if open && allocated+entries[i].points <= teamCapacity {
			entries[i].included = true
			allocated += entries[i].points
			continue
		}
		entries[i].included = false
		open = false
	}
}

// sortByInclusion moves capacity-included entries to the front as a
// contiguous block. The sort is stable, so both the included prefix and
// the excluded tail keep their prior relative priority order.
func sortByInclusion(entries []entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].included && !entries[j].included
	})
}
