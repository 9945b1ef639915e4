package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"recurring-card/internal/contract"
	"recurring-card/internal/model"
	"recurring-card/pkg/utils"
	"time"

	"gorm.io/gorm"
)

type AuditRepository interface {
	contract.AuditSink
	Create(ctx context.Context, entry *model.AuditLog, opts ...utils.DBOption) error
	List(ctx context.Context, scheduleID *uint, limit int, opts ...utils.DBOption) ([]model.AuditLog, error)
	DeleteOlderThan(ctx context.Context, date time.Time, opts ...utils.DBOption) (int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Record(ctx context.Context, level contract.AuditLevel, message string, details map[string]interface{}, actor string) error {
	entry := model.AuditLog{
		Level:   string(level),
		Message: message,
		Actor:   sql.NullString{String: actor, Valid: actor != ""},
	}
	if id, ok := scheduleIDFrom(details); ok {
		entry.ScheduleID = sql.NullInt64{Int64: id, Valid: true}
	}
	if len(details) > 0 {
		raw, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
		entry.Details = raw
	}
	return r.db.WithContext(ctx).Create(&entry).Error
}

func (r *auditRepository) Create(ctx context.Context, entry *model.AuditLog, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(entry).Error
}

func scheduleIDFrom(details map[string]interface{}) (int64, bool) {
	switch v := details["schedule_id"].(type) {
	case uint:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

func (r *auditRepository) List(ctx context.Context, scheduleID *uint, limit int, opts ...utils.DBOption) ([]model.AuditLog, error) {
	var logs []model.AuditLog
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...).Order("created_at DESC")
	if scheduleID != nil {
		db = db.Where("schedule_id = ?", *scheduleID)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}
	if err := db.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *auditRepository) DeleteOlderThan(ctx context.Context, date time.Time, opts ...utils.DBOption) (int64, error) {
	res := utils.ApplyOptions(r.db.WithContext(ctx), opts...).Where("created_at < ?", date).Delete(&model.AuditLog{})
	return res.RowsAffected, res.Error
}
