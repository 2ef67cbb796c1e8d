package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"recurring-planner/internal/date"
	"recurring-planner/internal/model"
	"recurring-planner/internal/recurrence"
	"recurring-planner/internal/series"
)

// TaskStore is the persistence boundary of TaskService.
type TaskStore interface {
	Create(ctx context.Context, task *model.Task) (string, error)
	Get(ctx context.Context, ownerID uint, id string) (*model.Task, error)
	Update(ctx context.Context, ownerID uint, id string, changes model.TaskChanges) error
	Delete(ctx context.Context, ownerID uint, id string) error
	Query(ctx context.Context, ownerID uint, filter model.TaskFilter) ([]model.Task, error)
	BatchWrite(ctx context.Context, ownerID uint, ops []model.WriteOp) error
	Subscribe(ctx context.Context, ownerID uint, fn func([]model.Task)) (func(), error)
}

// TaskInput represents data required to create a task or a series.
type TaskInput struct {
	Text            string
	ScheduledTime   string
	Date            date.Date
	DurationMinutes int
	Rule            model.RecurrenceRule
}

func (in TaskInput) validate() (model.RecurrenceRule, error) {
	if strings.TrimSpace(in.Text) == "" {
		return model.RecurrenceRule{}, model.Invalid("text", "must not be empty")
	}
	if err := model.ValidateClock(in.ScheduledTime); err != nil {
		return model.RecurrenceRule{}, err
	}
	if in.DurationMinutes < 0 {
		return model.RecurrenceRule{}, model.Invalid("durationMinutes", "must not be negative, got %d", in.DurationMinutes)
	}
	if in.Date.IsZero() {
		return model.RecurrenceRule{}, model.Invalid("date", "is required")
	}
	rule := in.Rule.Normalized()
	if err := rule.Validate(in.Date); err != nil {
		return model.RecurrenceRule{}, err
	}
	return rule, nil
}

// TaskService is the surface the UI talks to. It validates input, expands
// recurring tasks into dated instances and routes series edits through the
// resolver so that every multi-instance change is one batch.
type TaskService struct {
	store TaskStore
	opts  recurrence.Options
}

func NewTaskService(store TaskStore, opts recurrence.Options) *TaskService {
	return &TaskService{store: store, opts: opts}
}

// AddTask stores a one-off task, or materializes a new series when in.Rule
// recurs. It returns the created instances in date order.
func (s *TaskService) AddTask(ctx context.Context, ownerID uint, in TaskInput) ([]model.Task, error) {
	rule, err := in.validate()
	if err != nil {
		return nil, err
	}

	seed := model.Task{
		OwnerID:         ownerID,
		Text:            strings.TrimSpace(in.Text),
		ScheduledTime:   in.ScheduledTime,
		DurationMinutes: in.DurationMinutes,
		Date:            in.Date,
		AnchorDate:      in.Date,
		RecurrenceRule:  rule,
		CompletionState: model.StatePending,
	}

	if !rule.IsRecurring() {
		if _, err := s.store.Create(ctx, &seed); err != nil {
			return nil, err
		}
		return []model.Task{seed}, nil
	}

	res := recurrence.Materialize(rule, in.Date, s.opts)
	if len(res.Dates) == 0 {
		return nil, model.Invalid("recurrenceRule", "produces no occurrences")
	}
	group := model.NewGroupID()
	created, err := s.createMissing(ctx, ownerID, recurrence.Instances(seed, group, in.Date, res.Dates), group)
	if err != nil {
		return nil, err
	}

	level := zerolog.InfoLevel
	if res.Truncated {
		level = zerolog.WarnLevel
	}
	log.WithLevel(level).Bool("truncated", res.Truncated).Uint("user", ownerID).Str("group", *group).Int("count", len(created)).Msg("series created")
	return created, nil
}

// createMissing submits the instances whose date the series does not have yet.
func (s *TaskService) createMissing(ctx context.Context, ownerID uint, instances []model.Task, group *string) ([]model.Task, error) {
	existing, err := s.store.Query(ctx, ownerID, model.TaskFilter{RecurrenceGroupID: group})
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}
	plan := series.PlanCreate(instances, existing)
	if err := s.store.BatchWrite(ctx, ownerID, plan); err != nil {
		return nil, err
	}
	created := make([]model.Task, 0, len(plan))
	for _, op := range plan {
		created = append(created, *op.Task)
	}
	return created, nil
}

func (s *TaskService) GetTask(ctx context.Context, ownerID uint, id string) (*model.Task, error) {
	return s.store.Get(ctx, ownerID, id)
}

// UpdateTask edits the task id. With ScopeFollowing the structural part of
// changes also reaches every later instance of the series.
//
// Two concurrent following-scope edits of one series are not serialized:
// each batch is atomic, and the one committed last wins per field.
func (s *TaskService) UpdateTask(ctx context.Context, ownerID uint, id string, changes model.TaskChanges, scope series.Scope) error {
	target, err := s.store.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}

	var siblings []model.Task
	if target.InSeries() && (scope == series.ScopeFollowing || changes.Date != nil) {
		siblings, err = s.store.Query(ctx, ownerID, model.TaskFilter{RecurrenceGroupID: target.RecurrenceGroupID})
		if err != nil {
			return fmt.Errorf("load series: %w", err)
		}
	}

	plan, err := series.ResolveUpdate(*target, siblings, changes, scope)
	if err != nil {
		return err
	}
	switch {
	case len(plan) == 0:
		return nil
	case len(plan) == 1 && scope == series.ScopeInstance:
		return s.store.Update(ctx, ownerID, plan[0].ID, plan[0].Changes)
	}
	if err := s.store.BatchWrite(ctx, ownerID, plan); err != nil {
		return err
	}
	log.Debug().Uint("user", ownerID).Str("task", id).Int("count", len(plan)).Stringer("scope", scope).Msg("series updated")
	return nil
}

// DeleteTask removes the task id, or with ScopeFollowing every instance of
// sctx.RecurrenceGroupID dated on or after sctx.Date.
func (s *TaskService) DeleteTask(ctx context.Context, ownerID uint, id string, scope series.Scope, sctx *series.Context) error {
	if scope == series.ScopeInstance {
		return s.store.Delete(ctx, ownerID, id)
	}

	if sctx == nil || sctx.RecurrenceGroupID == "" || sctx.Date.IsZero() {
		return model.ErrMissingSeriesContext
	}
	target, err := s.store.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	group := sctx.RecurrenceGroupID
	siblings, err := s.store.Query(ctx, ownerID, model.TaskFilter{RecurrenceGroupID: &group, From: &sctx.Date})
	if err != nil {
		return fmt.Errorf("load series: %w", err)
	}
	plan, err := series.ResolveDelete(*target, siblings, sctx, scope)
	if err != nil {
		return err
	}
	if err := s.store.BatchWrite(ctx, ownerID, plan); err != nil {
		return err
	}
	log.Debug().Uint("user", ownerID).Str("group", group).Int("count", len(plan)).Msg("series tail deleted")
	return nil
}

// IsOccurringOn reports whether the stored instance belongs to day d.
// Stored instances carry a concrete date, so this is date equality.
func (s *TaskService) IsOccurringOn(task model.Task, d date.Date) bool {
	return task.Date.Equal(d)
}

// SeriesOccursOn evaluates the rule carried by task from its anchor, for
// views that expand a series past its materialized instances.
func (s *TaskService) SeriesOccursOn(task model.Task, d date.Date) bool {
	anchor := task.AnchorDate
	if anchor.IsZero() {
		anchor = task.Date
	}
	return recurrence.OccursOn(task.RecurrenceRule, anchor, d)
}

// ListDay returns the tasks of one day, timed ones first by clock.
func (s *TaskService) ListDay(ctx context.Context, ownerID uint, d date.Date) ([]model.Task, error) {
	return s.ListRange(ctx, ownerID, d, d)
}

// ListRange returns the tasks dated from..to inclusive in day order.
func (s *TaskService) ListRange(ctx context.Context, ownerID uint, from, to date.Date) ([]model.Task, error) {
	if to.Before(from) {
		return nil, model.Invalid("range", "%s is before %s", to, from)
	}
	tasks, err := s.store.Query(ctx, ownerID, model.TaskFilter{From: &from, To: &to})
	if err != nil {
		return nil, err
	}
	model.SortForDay(tasks)
	return tasks, nil
}

// ListAll returns every task of the owner in day order.
func (s *TaskService) ListAll(ctx context.Context, ownerID uint) ([]model.Task, error) {
	tasks, err := s.store.Query(ctx, ownerID, model.TaskFilter{})
	if err != nil {
		return nil, err
	}
	model.SortForDay(tasks)
	return tasks, nil
}

// Subscribe forwards the owner's task list, in day order, now and after
// every change.
func (s *TaskService) Subscribe(ctx context.Context, ownerID uint, fn func([]model.Task)) (func(), error) {
	return s.store.Subscribe(ctx, ownerID, func(tasks []model.Task) {
		model.SortForDay(tasks)
		fn(tasks)
	})
}

// RematerializeSeries extends a series up to through. It evaluates the rule
// of the latest instance against the stored anchor and only creates dates
// after the latest stored instance, so days the user deleted are not brought
// back. At most MaxOccurrences instances are added per call.
func (s *TaskService) RematerializeSeries(ctx context.Context, ownerID uint, groupID string, through date.Date) ([]model.Task, error) {
	existing, err := s.store.Query(ctx, ownerID, model.TaskFilter{RecurrenceGroupID: &groupID})
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}
	if len(existing) == 0 {
		return nil, fmt.Errorf("series %s: %w", groupID, model.ErrNotFound)
	}

	sort.Slice(existing, func(i, j int) bool { return existing[i].Date.Before(existing[j].Date) })
	latest := existing[len(existing)-1]
	if !through.After(latest.Date) || !latest.RecurrenceRule.IsRecurring() {
		return nil, nil
	}

	anchor := latest.AnchorDate
	if anchor.IsZero() {
		anchor = existing[0].Date
	}
	res := recurrence.Extend(latest.RecurrenceRule, anchor, latest.Date, through, s.opts)
	if res.Truncated {
		log.Warn().Uint("user", ownerID).Str("group", groupID).Int("count", len(res.Dates)).Str("through", through.String()).Msg("series extension truncated")
	}
	if len(res.Dates) == 0 {
		return nil, nil
	}
	return s.createMissing(ctx, ownerID, recurrence.Instances(latest, latest.RecurrenceGroupID, anchor, res.Dates), latest.RecurrenceGroupID)
}

// ExtendOwner runs RematerializeSeries for every series of the owner and
// returns the number of created instances.
func (s *TaskService) ExtendOwner(ctx context.Context, ownerID uint, through date.Date) (int, error) {
	tasks, err := s.store.Query(ctx, ownerID, model.TaskFilter{})
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool)
	total := 0
	for _, t := range tasks {
		if !t.InSeries() || seen[t.GroupID()] {
			continue
		}
		seen[t.GroupID()] = true
		created, err := s.RematerializeSeries(ctx, ownerID, t.GroupID(), through)
		if err != nil {
			return total, fmt.Errorf("extend series %s: %w", t.GroupID(), err)
		}
		total += len(created)
	}
	return total, nil
}

// ReconcileSeries deletes duplicate instances of one series, keeping the
// smallest id per day, and returns how many were removed.
func (s *TaskService) ReconcileSeries(ctx context.Context, ownerID uint, groupID string) (int, error) {
	tasks, err := s.store.Query(ctx, ownerID, model.TaskFilter{RecurrenceGroupID: &groupID})
	if err != nil {
		return 0, fmt.Errorf("load series: %w", err)
	}
	return s.removeDuplicates(ctx, ownerID, tasks)
}

// ReconcileOwner runs duplicate reconciliation over every series of the owner.
func (s *TaskService) ReconcileOwner(ctx context.Context, ownerID uint) (int, error) {
	tasks, err := s.store.Query(ctx, ownerID, model.TaskFilter{})
	if err != nil {
		return 0, err
	}
	return s.removeDuplicates(ctx, ownerID, tasks)
}

func (s *TaskService) removeDuplicates(ctx context.Context, ownerID uint, tasks []model.Task) (int, error) {
	ids := series.Duplicates(tasks)
	if len(ids) == 0 {
		return 0, nil
	}
	plan := make([]model.WriteOp, 0, len(ids))
	for _, id := range ids {
		plan = append(plan, model.DeleteOp(id))
	}
	if err := s.store.BatchWrite(ctx, ownerID, plan); err != nil {
		return 0, fmt.Errorf("remove duplicates: %w", err)
	}
	log.Info().Uint("user", ownerID).Int("count", len(ids)).Msg("duplicates removed")
	return len(ids), nil
}
