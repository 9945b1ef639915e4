package contract

import (
	"context"
	"errors"
	"recurring-card/internal/dto"
	"time"
)

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	// ErrConcurrentUpdate means another writer changed the schedule since it was read.
	ErrConcurrentUpdate = errors.New("schedule was modified concurrently")
)

type ScheduleStore interface {
	// LockSchedule serializes reconciliation of one schedule across every
	// process sharing the store. It blocks until the lock is held or fails.
	LockSchedule(ctx context.Context, id uint) (unlock func(), err error)
	LoadEligible(ctx context.Context) ([]dto.Schedule, error)
	LoadSchedule(ctx context.Context, id uint) (*dto.Schedule, error)
	SaveCardAssignment(ctx context.Context, id uint, cardID string, createdAt time.Time, version int) error
	ClearCardAssignment(ctx context.Context, id uint, version int) error
}

type AuditLevel string

const (
	AuditInfo  AuditLevel = "info"
	AuditWarn  AuditLevel = "warn"
	AuditError AuditLevel = "error"
)

// AuditSink is best effort: callers log a failed Record and carry on.
type AuditSink interface {
	Record(ctx context.Context, level AuditLevel, message string, details map[string]interface{}, actor string) error
}
