package series

import (
	"sort"

	"recurring-planner/internal/model"
)

// Duplicates returns the ids to delete so that each (series, date) keeps
// exactly one instance: the one with the lexicographically smallest id.
// Tasks outside any series are ignored.
func Duplicates(tasks []model.Task) []string {
	type key struct {
		group string
		day   string
	}
	buckets := make(map[key][]string)
	for _, t := range tasks {
		if !t.InSeries() {
			continue
		}
		k := key{group: t.GroupID(), day: t.Date.String()}
		buckets[k] = append(buckets[k], t.ID)
	}

	var extra []string
	for _, ids := range buckets {
		if len(ids) < 2 {
			continue
		}
		sort.Strings(ids)
		extra = append(extra, ids[1:]...)
	}
	sort.Strings(extra)
	return extra
}

// PlanCreate returns create operations for the instances whose date has no
// stored counterpart in existing. Re-running it against the result of a
// previous run yields an empty plan.
func PlanCreate(instances, existing []model.Task) Plan {
	taken := make(map[string]bool, len(existing))
	for _, t := range existing {
		taken[t.Date.String()] = true
	}
	var plan Plan
	for _, inst := range instances {
		day := inst.Date.String()
		if taken[day] {
			continue
		}
		taken[day] = true
		plan = append(plan, model.CreateOp(inst))
	}
	return plan
}
