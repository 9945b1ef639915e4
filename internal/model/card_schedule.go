package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ScheduleState string

const (
	// StateIdle means no outstanding card; the next cycle may create one.
	StateIdle ScheduleState = "idle"
	// StatePending means ActiveCardID points at a card that was open when last seen.
	StatePending ScheduleState = "pending"
)

type CardSchedule struct {
	ID              uint                        `gorm:"primaryKey" json:"id"`
	Title           string                      `gorm:"type:varchar(255);not null" json:"title"`
	Description     string                      `gorm:"type:text" json:"description"`
	Frequency       string                      `gorm:"type:varchar(20);not null" json:"frequency"`
	Interval        int                         `gorm:"column:repeat_interval;not null;default:1" json:"interval"`
	FrequencyDetail string                      `gorm:"type:varchar(100)" json:"frequency_detail"`
	TriggerHour     int                         `gorm:"not null" json:"trigger_hour"`
	TriggerMinute   int                         `gorm:"not null" json:"trigger_minute"`
	TriggerPeriod   string                      `gorm:"type:varchar(2);not null" json:"trigger_period"`
	StartDate       sql.NullTime                `gorm:"type:date" json:"start_date"`
	EndDate         sql.NullTime                `gorm:"type:date" json:"end_date"`
	ActiveCardID    sql.NullString              `gorm:"type:varchar(64)" json:"active_card_id"`
	State           ScheduleState               `gorm:"type:varchar(20);not null;default:idle" json:"state"`
	LastCreatedAt   sql.NullTime                `json:"last_created_at"`
	IsActive        bool                        `gorm:"not null;default:true" json:"is_active"`
	Assignees       datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"assignees"`
	Labels          datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"labels"`
	Checklist       datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"checklist"`
	Version         int                         `gorm:"not null;default:0" json:"version"`
	CreatedAt       time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt              `json:"-"`
}

func (CardSchedule) TableName() string {
	return "card_schedules"
}

type GetScheduleParam struct {
	IDs      []uint         `json:"ids"`
	IsActive *bool          `json:"is_active"`
	State    *ScheduleState `json:"state"`
	Limit    *int           `json:"limit"`
	Offset   *int           `json:"offset"`
}
