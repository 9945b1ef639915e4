package repository

import (
	"context"
	"errors"
	"fmt"
	"recurring-card/internal/contract"
	"recurring-card/internal/dto"
	"recurring-card/internal/model"
	"recurring-card/pkg/utils"
	"sync"
	"time"

	"gorm.io/gorm"
)

type ScheduleRepository interface {
	contract.ScheduleStore
	Create(ctx context.Context, schedule *model.CardSchedule, opts ...utils.DBOption) error
	Update(ctx context.Context, schedule *model.CardSchedule, opts ...utils.DBOption) error
	FindByID(ctx context.Context, id uint, opts ...utils.DBOption) (*model.CardSchedule, error)
	Get(ctx context.Context, param *model.GetScheduleParam, opts ...utils.DBOption) ([]model.CardSchedule, error)
	SetActive(ctx context.Context, id uint, active bool, opts ...utils.DBOption) error
	Delete(ctx context.Context, id uint, opts ...utils.DBOption) error
}

// scheduleLockClass namespaces this service's advisory locks; the second key
// is the schedule id.
const scheduleLockClass = 0x52434152

type scheduleRepository struct {
	db       *gorm.DB
	loc      *time.Location
	lockWait time.Duration
}

func NewScheduleRepository(db *gorm.DB, loc *time.Location, lockWait time.Duration) ScheduleRepository {
	return &scheduleRepository{db: db, loc: loc, lockWait: lockWait}
}

// LoadEligible returns every active schedule, parsed. Rows whose definition does
// not parse are still returned with DefinitionErr set.
func (r *scheduleRepository) LoadEligible(ctx context.Context) ([]dto.Schedule, error) {
	var rows []model.CardSchedule
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	schedules := make([]dto.Schedule, 0, len(rows))
	for _, row := range rows {
		schedules = append(schedules, dto.NewSchedule(row, r.loc))
	}
	return schedules, nil
}

func (r *scheduleRepository) LoadSchedule(ctx context.Context, id uint) (*dto.Schedule, error) {
	row, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	schedule := dto.NewSchedule(*row, r.loc)
	return &schedule, nil
}

// LockSchedule takes a transaction scoped advisory lock and keeps the
// transaction open until unlock. Nothing is written through it, so unlock rolls
// back. The lock also goes away if the connection dies. Each holder pins one
// pool connection.
func (r *scheduleRepository) LockSchedule(ctx context.Context, id uint) (func(), error) {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin schedule lock: %w", tx.Error)
	}
	if r.lockWait > 0 {
		if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = %d", r.lockWait.Milliseconds())).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}
	if err := tx.Exec("SELECT pg_advisory_xact_lock(?, ?)", scheduleLockClass, int32(id)).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to lock schedule %d: %w", id, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() { tx.Rollback() })
	}, nil
}

func (r *scheduleRepository) SaveCardAssignment(ctx context.Context, id uint, cardID string, createdAt time.Time, version int) error {
	return r.updateAssignment(ctx, id, version, map[string]interface{}{
		"active_card_id":  cardID,
		"state":           model.StatePending,
		"last_created_at": createdAt,
	})
}

func (r *scheduleRepository) ClearCardAssignment(ctx context.Context, id uint, version int) error {
	return r.updateAssignment(ctx, id, version, map[string]interface{}{
		"active_card_id": nil,
		"state":          model.StateIdle,
	})
}

func (r *scheduleRepository) updateAssignment(ctx context.Context, id uint, version int, values map[string]interface{}) error {
	values["version"] = gorm.Expr("version + 1")
	res := r.db.WithContext(ctx).
		Model(&model.CardSchedule{}).
		Where("id = ? AND version = ?", id, version).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return contract.ErrConcurrentUpdate
	}
	return nil
}

func (r *scheduleRepository) Create(ctx context.Context, schedule *model.CardSchedule, opts ...utils.DBOption) error {
	if schedule.State == "" {
		schedule.State = model.StateIdle
	}
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(schedule).Error
}

// Update writes the fields the management layer may edit. The card assignment
// columns belong to the reconciler; the version bump makes a reconciler holding
// an older snapshot fail its assignment write.
func (r *scheduleRepository) Update(ctx context.Context, schedule *model.CardSchedule, opts ...utils.DBOption) error {
	res := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Model(&model.CardSchedule{}).
		Where("id = ?", schedule.ID).
		Updates(definitionValues(schedule))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return contract.ErrScheduleNotFound
	}
	schedule.Version++
	return nil
}

func definitionValues(s *model.CardSchedule) map[string]interface{} {
	return map[string]interface{}{
		"title":            s.Title,
		"description":      s.Description,
		"frequency":        s.Frequency,
		"repeat_interval":  s.Interval,
		"frequency_detail": s.FrequencyDetail,
		"trigger_hour":     s.TriggerHour,
		"trigger_minute":   s.TriggerMinute,
		"trigger_period":   s.TriggerPeriod,
		"start_date":       s.StartDate,
		"end_date":         s.EndDate,
		"is_active":        s.IsActive,
		"assignees":        s.Assignees,
		"labels":           s.Labels,
		"checklist":        s.Checklist,
		"version":          gorm.Expr("version + 1"),
	}
}

func (r *scheduleRepository) FindByID(ctx context.Context, id uint, opts ...utils.DBOption) (*model.CardSchedule, error) {
	var schedule model.CardSchedule
	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).First(&schedule, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contract.ErrScheduleNotFound
		}
		return nil, err
	}
	return &schedule, nil
}

func (r *scheduleRepository) Get(ctx context.Context, param *model.GetScheduleParam, opts ...utils.DBOption) ([]model.CardSchedule, error) {
	var schedules []model.CardSchedule
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...).Model(&model.CardSchedule{})
	if len(param.IDs) > 0 {
		db = db.Where("id IN ?", param.IDs)
	}
	if param.IsActive != nil {
		db = db.Where("is_active = ?", *param.IsActive)
	}
	if param.State != nil {
		db = db.Where("state = ?", *param.State)
	}
	if param.Limit != nil {
		db = db.Limit(*param.Limit)
	}
	if param.Offset != nil {
		db = db.Offset(*param.Offset)
	}
	if err := db.Order("id ASC").Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}

func (r *scheduleRepository) SetActive(ctx context.Context, id uint, active bool, opts ...utils.DBOption) error {
	res := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Model(&model.CardSchedule{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active": active,
			"version":   gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return contract.ErrScheduleNotFound
	}
	return nil
}

func (r *scheduleRepository) Delete(ctx context.Context, id uint, opts ...utils.DBOption) error {
	res := utils.ApplyOptions(r.db.WithContext(ctx), opts...).Delete(&model.CardSchedule{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return contract.ErrScheduleNotFound
	}
	return nil
}
