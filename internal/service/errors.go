package service

import (
	"errors"
	"fmt"

	"medsupply/internal/apperror"

	"gorm.io/gorm"
)

// lookupErr turns a missing row into a NotFound naming the entity; anything
// else is wrapped as an infrastructure failure
func lookupErr(err error, entity string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(entity, id)
	}
	return fmt.Errorf("failed to load %s %v: %w", entity, id, err)
}

// writeErr maps unique violations to Conflict
func writeErr(err error, conflictMsg string, args ...any) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperror.Wrap(apperror.Conflict(conflictMsg, args...), err)
	}
	return err
}
