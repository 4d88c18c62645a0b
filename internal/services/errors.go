package services

import (
	"errors"
	"strings"

	"github.com/huangang/uptask/internal/authz"
	"github.com/huangang/uptask/pkg/logger"
	"github.com/huangang/uptask/pkg/response"
	"gorm.io/gorm"
)

var (
	errProjectNotFound = response.NewNotFound("project not found")
	errTaskNotFound    = response.NewNotFound("task not found")
	errUserNotFound    = response.NewNotFound("user not found")
)

func forbidden(d authz.Decision) error {
	return response.NewForbidden(d.Reason.String())
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// isDuplicate reports a unique constraint violation. TranslateError covers
// most drivers; the string checks catch the rest.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}

// internal passes AppErrors through and wraps anything else as an internal
// error, logging the cause.
func internal(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *response.AppError
	if errors.As(err, &appErr) {
		return err
	}
	logger.Error().Err(err).Str("op", op).Msg("operation failed")
	return response.NewInternal("could not "+op, err)
}
