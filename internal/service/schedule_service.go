package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"recurring-card/config"
	"recurring-card/internal/contract"
	"recurring-card/internal/dto"
	"recurring-card/internal/model"
	"recurring-card/internal/repository"
	"recurring-card/pkg/logger"
	"recurring-card/pkg/utils"
	"strings"
	"time"

	goValidator "github.com/go-playground/validator/v10"
)

var ErrInvalidRequest = errors.New("invalid request")

type ScheduleService interface {
	Create(ctx context.Context, req dto.ScheduleRequest, actor string) (*model.CardSchedule, error)
	Get(ctx context.Context, id uint) (*model.CardSchedule, error)
	List(ctx context.Context, req dto.ListScheduleRequest) ([]model.CardSchedule, error)
	Update(ctx context.Context, id uint, req dto.ScheduleRequest, actor string) (*model.CardSchedule, error)
	SetActive(ctx context.Context, id uint, active bool, actor string) error
	Delete(ctx context.Context, id uint, actor string) error
	AuditTrail(ctx context.Context, id uint, limit int) ([]model.AuditLog, error)
}

type scheduleService struct {
	cfg          *config.Config
	log          *logger.Logger
	validator    *goValidator.Validate
	scheduleRepo repository.ScheduleRepository
	auditRepo    repository.AuditRepository
	unitOfWork   repository.UnitOfWork
}

func NewScheduleService(
	cfg *config.Config,
	log *logger.Logger,
	validator *goValidator.Validate,
	scheduleRepo repository.ScheduleRepository,
	auditRepo repository.AuditRepository,
	unitOfWork repository.UnitOfWork,
) ScheduleService {
	return &scheduleService{
		cfg:          cfg,
		log:          log,
		validator:    validator,
		scheduleRepo: scheduleRepo,
		auditRepo:    auditRepo,
		unitOfWork:   unitOfWork,
	}
}

func (s *scheduleService) Create(ctx context.Context, req dto.ScheduleRequest, actor string) (*model.CardSchedule, error) {
	schedule := &model.CardSchedule{IsActive: true, State: model.StateIdle}
	if err := s.apply(ctx, schedule, req); err != nil {
		return nil, err
	}

	err := s.unitOfWork.Run(ctx, func(opts ...utils.DBOption) error {
		if err := s.scheduleRepo.Create(ctx, schedule, opts...); err != nil {
			return fmt.Errorf("failed to create schedule: %w", err)
		}
		return s.auditRepo.Create(ctx, s.auditEntry(schedule.ID, "schedule created", schedule, actor), opts...)
	})
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to create schedule", logger.ErrorField(err))
		return nil, err
	}

	s.log.InfoContext(ctx, "Schedule created",
		logger.UintField("schedule_id", schedule.ID),
		logger.StringField("frequency", schedule.Frequency),
		logger.StringField("actor", actor),
	)
	return schedule, nil
}

func (s *scheduleService) Get(ctx context.Context, id uint) (*model.CardSchedule, error) {
	return s.scheduleRepo.FindByID(ctx, id)
}

func (s *scheduleService) List(ctx context.Context, req dto.ListScheduleRequest) ([]model.CardSchedule, error) {
	if err := s.validator.StructCtx(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	param := &model.GetScheduleParam{IsActive: req.IsActive}
	if req.Limit > 0 {
		param.Limit = utils.ToPointer(req.Limit)
	}
	if req.Offset > 0 {
		param.Offset = utils.ToPointer(req.Offset)
	}
	return s.scheduleRepo.Get(ctx, param)
}

// Update rewrites the definition columns only and bumps the version. The
// active card is left to the reconciler.
func (s *scheduleService) Update(ctx context.Context, id uint, req dto.ScheduleRequest, actor string) (*model.CardSchedule, error) {
	var schedule *model.CardSchedule
	err := s.withScheduleLock(ctx, id, func() error {
		var err error
		schedule, err = s.scheduleRepo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.apply(ctx, schedule, req); err != nil {
			return err
		}

		return s.unitOfWork.Run(ctx, func(opts ...utils.DBOption) error {
			if err := s.scheduleRepo.Update(ctx, schedule, opts...); err != nil {
				return fmt.Errorf("failed to update schedule: %w", err)
			}
			return s.auditRepo.Create(ctx, s.auditEntry(schedule.ID, "schedule updated", schedule, actor), opts...)
		})
	})
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to update schedule", logger.ErrorField(err), logger.UintField("schedule_id", id))
		return nil, err
	}
	return schedule, nil
}

func (s *scheduleService) SetActive(ctx context.Context, id uint, active bool, actor string) error {
	message := "schedule disabled"
	if active {
		message = "schedule enabled"
	}
	return s.withScheduleLock(ctx, id, func() error {
		return s.unitOfWork.Run(ctx, func(opts ...utils.DBOption) error {
			if err := s.scheduleRepo.SetActive(ctx, id, active, opts...); err != nil {
				return err
			}
			return s.auditRepo.Create(ctx, s.auditEntry(id, message, map[string]bool{"is_active": active}, actor), opts...)
		})
	})
}

func (s *scheduleService) Delete(ctx context.Context, id uint, actor string) error {
	return s.withScheduleLock(ctx, id, func() error {
		return s.unitOfWork.Run(ctx, func(opts ...utils.DBOption) error {
			if err := s.scheduleRepo.Delete(ctx, id, opts...); err != nil {
				return err
			}
			return s.auditRepo.Create(ctx, s.auditEntry(id, "schedule deleted", nil, actor), opts...)
		})
	})
}

// withScheduleLock holds the lock the reconciler takes, so an edit never lands
// between a card being created and its assignment being saved.
func (s *scheduleService) withScheduleLock(ctx context.Context, id uint, fn func() error) error {
	unlock, err := s.scheduleRepo.LockSchedule(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to lock schedule %d: %w", id, err)
	}
	defer unlock()
	return fn()
}

func (s *scheduleService) AuditTrail(ctx context.Context, id uint, limit int) ([]model.AuditLog, error) {
	if _, err := s.scheduleRepo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.auditRepo.List(ctx, &id, limit)
}

// apply validates req and copies it onto schedule. The result must parse into a
// valid recurrence definition before anything is stored.
func (s *scheduleService) apply(ctx context.Context, schedule *model.CardSchedule, req dto.ScheduleRequest) error {
	if err := s.validator.StructCtx(ctx, req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	loc := s.cfg.Scheduler.Location()
	schedule.Title = strings.TrimSpace(req.Title)
	schedule.Description = req.Description
	schedule.Frequency = req.Frequency
	schedule.Interval = req.Interval
	if schedule.Interval < 1 {
		schedule.Interval = 1
	}
	schedule.FrequencyDetail = strings.TrimSpace(req.FrequencyDetail)
	schedule.TriggerHour = req.TriggerHour
	schedule.TriggerMinute = req.TriggerMinute
	schedule.TriggerPeriod = req.TriggerPeriod
	schedule.Assignees = req.Assignees
	schedule.Labels = req.Labels
	schedule.Checklist = req.Checklist
	if req.IsActive != nil {
		schedule.IsActive = *req.IsActive
	}

	var err error
	if schedule.StartDate, err = parseNullDate(req.StartDate, loc); err != nil {
		return err
	}
	if schedule.EndDate, err = parseNullDate(req.EndDate, loc); err != nil {
		return err
	}

	if _, err := dto.ParseDefinition(*schedule, loc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

func parseNullDate(value *string, loc *time.Location) (sql.NullTime, error) {
	if value == nil || *value == "" {
		return sql.NullTime{}, nil
	}
	t, err := utils.ParseDate(*value, loc)
	if err != nil {
		return sql.NullTime{}, fmt.Errorf("%w: invalid date %q", ErrInvalidRequest, *value)
	}
	return sql.NullTime{Time: t, Valid: true}, nil
}

func (s *scheduleService) auditEntry(scheduleID uint, message string, details interface{}, actor string) *model.AuditLog {
	entry := &model.AuditLog{
		Level:      string(contract.AuditInfo),
		Message:    message,
		Actor:      sql.NullString{String: actor, Valid: actor != ""},
		ScheduleID: sql.NullInt64{Int64: int64(scheduleID), Valid: scheduleID != 0},
	}
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			entry.Details = raw
		}
	}
	return entry
}
