// Package series turns edits and deletions of recurring tasks into batch
// write plans. It never talks to storage; callers load the siblings and
// submit the plan.
package series

import (
	"recurring-planner/internal/date"
	"recurring-planner/internal/model"
)

// Scope selects how far an edit or deletion reaches within a series.
type Scope int

const (
	ScopeInstance Scope = iota
	ScopeFollowing
)

func (s Scope) String() string {
	if s == ScopeFollowing {
		return "this-and-following"
	}
	return "instance-only"
}

// Context identifies the slice of a series a "this and following" deletion
// starts from. It is passed explicitly so the operation does not depend on
// the target's series metadata having been loaded.
type Context struct {
	RecurrenceGroupID string
	Date              date.Date
}

// Plan is a list of writes that must be applied atomically.
type Plan []model.WriteOp

// ResolveUpdate plans an edit of target.
//
// Instance scope applies changes verbatim to target. Following scope applies
// changes to target and only the structural subset to every sibling dated
// strictly after target. siblings may contain any instances of the series,
// target included; those not selected are ignored.
func ResolveUpdate(target model.Task, siblings []model.Task, changes model.TaskChanges, scope Scope) (Plan, error) {
	if err := changes.Validate(); err != nil {
		return nil, err
	}
	if err := checkDateFree(target, siblings, changes.Date); err != nil {
		return nil, err
	}

	switch scope {
	case ScopeInstance:
		if err := checkInstanceRule(target, &changes); err != nil {
			return nil, err
		}
		if changes.IsEmpty() {
			return nil, nil
		}
		return Plan{model.UpdateOp(target.ID, changes)}, nil

	case ScopeFollowing:
		if !target.InSeries() {
			return nil, model.ErrMissingSeriesContext
		}
		if changes.DetachFromSeries {
			return nil, model.Invalid("scope", "detaching applies to a single instance")
		}
		if changes.RecurrenceRule != nil {
			rule := changes.RecurrenceRule.Normalized()
			if !rule.IsRecurring() {
				return nil, model.Invalid("recurrenceRule", "use an instance-only edit to stop a series")
			}
			if err := rule.Validate(target.AnchorDate); err != nil {
				return nil, err
			}
			changes.RecurrenceRule = &rule
		}

		var plan Plan
		if !changes.IsEmpty() {
			plan = append(plan, model.UpdateOp(target.ID, changes))
		}
		structural := changes.Structural()
		if structural.IsEmpty() {
			return plan, nil
		}
		for _, s := range Following(siblings, target.GroupID(), target.Date, false) {
			if s.ID == target.ID {
				continue
			}
			plan = append(plan, model.UpdateOp(s.ID, structural))
		}
		return plan, nil
	}
	return nil, model.Invalid("scope", "unknown scope %d", scope)
}

// checkDateFree rejects moving a series instance onto a day the series
// already occupies.
func checkDateFree(target model.Task, siblings []model.Task, to *date.Date) error {
	if to == nil || !target.InSeries() {
		return nil
	}
	for _, s := range siblings {
		if s.ID != target.ID && s.GroupID() == target.GroupID() && s.Date.Equal(*to) {
			return model.Invalid("date", "the series already has an instance on %s", to)
		}
	}
	return nil
}

// checkInstanceRule handles rule changes on a single instance: dropping the
// recurrence detaches the instance from its series, and a one-off task cannot
// gain a recurrence in place.
func checkInstanceRule(target model.Task, changes *model.TaskChanges) error {
	if changes.RecurrenceRule == nil {
		return nil
	}
	rule := changes.RecurrenceRule.Normalized()
	if err := rule.Validate(target.AnchorDate); err != nil {
		return err
	}
	changes.RecurrenceRule = &rule
	switch {
	case !rule.IsRecurring() && target.InSeries():
		changes.DetachFromSeries = true
	case rule.IsRecurring() && !target.InSeries():
		return model.Invalid("recurrenceRule", "a single task cannot become a series; create a new recurring task")
	}
	return nil
}

// ResolveDelete plans a deletion of target.
//
// Instance scope removes target alone. Following scope requires ctx and
// removes target plus every sibling of ctx.RecurrenceGroupID dated on or
// after ctx.Date.
func ResolveDelete(target model.Task, siblings []model.Task, ctx *Context, scope Scope) (Plan, error) {
	switch scope {
	case ScopeInstance:
		return Plan{model.DeleteOp(target.ID)}, nil
	case ScopeFollowing:
		if ctx == nil || ctx.RecurrenceGroupID == "" || ctx.Date.IsZero() {
			return nil, model.ErrMissingSeriesContext
		}
		plan := Plan{model.DeleteOp(target.ID)}
		for _, s := range Following(siblings, ctx.RecurrenceGroupID, ctx.Date, true) {
			if s.ID == target.ID {
				continue
			}
			plan = append(plan, model.DeleteOp(s.ID))
		}
		return plan, nil
	}
	return nil, model.Invalid("scope", "unknown scope %d", scope)
}

// Following selects the instances of groupID dated after from, or on or
// after it when inclusive is set.
func Following(tasks []model.Task, groupID string, from date.Date, inclusive bool) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if t.GroupID() != groupID {
			continue
		}
		if t.Date.After(from) || (inclusive && t.Date.Equal(from)) {
			out = append(out, t)
		}
	}
	return out
}
