package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
)

type AuditLog struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Level      string         `gorm:"type:varchar(10);not null" json:"level"`
	Message    string         `gorm:"type:text;not null" json:"message"`
	Details    datatypes.JSON `gorm:"type:jsonb" json:"details"`
	Actor      sql.NullString `gorm:"type:varchar(100)" json:"actor"`
	ScheduleID sql.NullInt64  `json:"schedule_id"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
