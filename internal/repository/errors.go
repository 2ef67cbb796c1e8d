package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"recurring-planner/internal/model"
)

// classify maps driver errors onto the model error taxonomy. Unknown errors
// pass through unchanged.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %w", model.ErrNotFound, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", model.ErrStoreTransient, err)
	}
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return fmt.Errorf("%w: %w", model.ErrStoreTransient, err)
	}
	return err
}

// conflict reports a failed batch. Transient causes stay visible to errors.Is.
func conflict(err error) error {
	return fmt.Errorf("%w: %w", model.ErrStoreConflict, classify(err))
}
