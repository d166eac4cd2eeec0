package service

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	appErrors "github.com/noah-isme/course-management-api/pkg/errors"
)

func internalError(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// validID reports whether id can be looked up; anything else is treated as not found.
func validID(id string) bool {
	_, err := uuid.Parse(strings.TrimSpace(id))
	return err == nil
}

// lookupError maps a repository read error to NOT_FOUND or INTERNAL_ERROR.
func lookupError(err error, entity string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	}
	return internalError(err, "failed to load "+entity)
}

// passThrough keeps typed domain errors raised by repositories and wraps everything else.
func passThrough(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return internalError(err, message)
}
