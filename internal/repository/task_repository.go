package repository

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"recurring-planner/internal/model"
)

// TaskRepository stores dated task instances. Every operation is scoped to
// one owner; a task of another owner behaves as if it did not exist.
type TaskRepository struct {
	db       *gorm.DB
	notifier *Notifier
}

func NewTaskRepository(db *gorm.DB, notifier *Notifier) *TaskRepository {
	if notifier == nil {
		notifier = NewNotifier()
	}
	return &TaskRepository{db: db, notifier: notifier}
}

// Create inserts task and returns its store-assigned id.
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) (string, error) {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return "", fmt.Errorf("create task: %w", classify(err))
	}
	r.publish(ctx, task.OwnerID)
	return task.ID, nil
}

func (r *TaskRepository) Get(ctx context.Context, ownerID uint, id string) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("owner_id = ? AND id = ?", ownerID, id).First(&task).Error; err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, classify(err))
	}
	return &task, nil
}

// Update applies a partial update. An empty change set only checks that the
// task exists.
func (r *TaskRepository) Update(ctx context.Context, ownerID uint, id string, changes model.TaskChanges) error {
	if changes.IsEmpty() {
		_, err := r.Get(ctx, ownerID, id)
		return err
	}
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("owner_id = ? AND id = ?", ownerID, id).
		Updates(changes.Columns())
	if res.Error != nil {
		return fmt.Errorf("update task %s: %w", id, classify(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update task %s: %w", id, model.ErrNotFound)
	}
	r.publish(ctx, ownerID)
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, ownerID uint, id string) error {
	res := r.db.WithContext(ctx).Where("owner_id = ? AND id = ?", ownerID, id).Delete(&model.Task{})
	if res.Error != nil {
		return fmt.Errorf("delete task %s: %w", id, classify(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete task %s: %w", id, model.ErrNotFound)
	}
	r.publish(ctx, ownerID)
	return nil
}

// Query lists the owner's tasks matching filter, ordered by date then
// creation time.
func (r *TaskRepository) Query(ctx context.Context, ownerID uint, filter model.TaskFilter) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if filter.RecurrenceGroupID != nil {
		q = q.Where("recurrence_group_id = ?", *filter.RecurrenceGroupID)
	}
	if filter.From != nil {
		q = q.Where("date >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("date <= ?", *filter.To)
	}

	var tasks []model.Task
	if err := q.Order("date, created_at, id").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("query tasks: %w", classify(err))
	}
	return tasks, nil
}

// BatchWrite applies ops in one transaction. An update or delete that matches
// no row fails the whole batch.
func (r *TaskRepository) BatchWrite(ctx context.Context, ownerID uint, ops []model.WriteOp) error {
	if len(ops) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, op := range ops {
			if err := applyOp(tx, ownerID, op); err != nil {
				return fmt.Errorf("op %d (%s): %w", i, op.Kind, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("batch write: %w", conflict(err))
	}

	log.Debug().Uint("user", ownerID).Int("count", len(ops)).Msg("batch committed")
	r.publish(ctx, ownerID)
	return nil
}

func applyOp(tx *gorm.DB, ownerID uint, op model.WriteOp) error {
	switch op.Kind {
	case model.OpCreate:
		if op.Task == nil {
			return fmt.Errorf("create without task")
		}
		op.Task.OwnerID = ownerID
		return tx.Create(op.Task).Error

	case model.OpUpdate:
		if op.Changes.IsEmpty() {
			return nil
		}
		res := tx.Model(&model.Task{}).
			Where("owner_id = ? AND id = ?", ownerID, op.ID).
			Updates(op.Changes.Columns())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("task %s: %w", op.ID, model.ErrNotFound)
		}
		return nil

	case model.OpDelete:
		res := tx.Where("owner_id = ? AND id = ?", ownerID, op.ID).Delete(&model.Task{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("task %s: %w", op.ID, model.ErrNotFound)
		}
		return nil
	}
	return fmt.Errorf("unknown op kind %d", op.Kind)
}

// Subscribe calls fn with the owner's full task list now and after every
// committed write. The returned function cancels the subscription and may be
// called any number of times.
func (r *TaskRepository) Subscribe(ctx context.Context, ownerID uint, fn func([]model.Task)) (func(), error) {
	deliver, cancel := r.notifier.Add(ownerID, fn)
	version := r.notifier.Stamp(ownerID)
	tasks, err := r.Query(ctx, ownerID, model.TaskFilter{})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	deliver(version, tasks)
	return cancel, nil
}

// ListOwners returns the ids of users that own at least one task.
func (r *TaskRepository) ListOwners(ctx context.Context) ([]uint, error) {
	var owners []uint
	if err := r.db.WithContext(ctx).Model(&model.Task{}).Distinct().Pluck("owner_id", &owners).Error; err != nil {
		return nil, fmt.Errorf("list owners: %w", classify(err))
	}
	return owners, nil
}

func (r *TaskRepository) publish(ctx context.Context, ownerID uint) {
	if !r.notifier.Watched(ownerID) {
		return
	}
	version := r.notifier.Stamp(ownerID)
	tasks, err := r.Query(context.WithoutCancel(ctx), ownerID, model.TaskFilter{})
	if err != nil {
		log.Warn().Err(err).Uint("user", ownerID).Msg("load snapshot for subscribers")
		return
	}
	r.notifier.Publish(ownerID, version, tasks)
}
