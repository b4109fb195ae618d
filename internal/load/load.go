// Package load is the single shared cognitive load calculator. Both the
// queue engine and the assignment engine price work through it; there must
// never be a second copy of this arithmetic.
package load

import (
	"rinna/internal/config"
	"rinna/internal/domain"
)

// Calculator derives integer load scores from item classification.
// The zero value is unusable; construct with New.
type Calculator struct {
	cfg *config.Config
}

// New builds a calculator over the given tuning tables.
func New(cfg *config.Config) Calculator {
	return Calculator{cfg: cfg}
}

// ItemLoad scores one work item: base load plus the type and priority
// adjustments from config. Unknown types and priorities contribute zero,
// so a partially classified item still gets a usable score.
func (c Calculator) ItemLoad(item domain.WorkItem) int {
	return c.cfg.Load.Base +
		c.cfg.Load.TypeAdjustments[item.Type] +
		c.cfg.Load.PriorityAdjustments[item.Priority]
}

// TotalLoad sums the load of all items.
func (c Calculator) TotalLoad(items []domain.WorkItem) int {
	total := 0
	for _, item := range items {
		total += c.ItemLoad(item)
	}
	return total
}

// MemberCapacity is the load one member is assumed to absorb.
func (c Calculator) MemberCapacity() int {
	return c.cfg.Capacity.MemberCapacity
}

// UtilizationPercent expresses load against capacity as a percentage.
// A zero capacity yields zero rather than dividing.
func UtilizationPercent(load, capacity int) float64 {
	if capacity == 0 {
		return 0
	}
	return float64(load) / float64(capacity) * 100
}
