package dto

import (
	"encoding/json"
	"fmt"
	"recurring-card/internal/model"
	"recurring-card/internal/recurrence"
	"recurring-card/pkg/utils"
	"time"
)

// Schedule is a card schedule with its recurrence already parsed.
type Schedule struct {
	ID            uint
	Title         string
	Description   string
	Definition    recurrence.Definition
	DefinitionErr error
	ActiveCardID  *string
	State         model.ScheduleState
	LastCreatedAt *time.Time
	IsActive      bool
	Assignees     []string
	Labels        []string
	Checklist     []string
	Version       int
}

// NewSchedule parses a stored schedule. Start and end dates are calendar dates in
// loc: the start is inclusive from midnight, the end inclusive until 23:59:59.
// A definition that fails to parse is kept on DefinitionErr so one bad row does
// not stop a whole cycle.
func NewSchedule(m model.CardSchedule, loc *time.Location) Schedule {
	s := Schedule{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		State:       m.State,
		IsActive:    m.IsActive,
		Assignees:   []string(m.Assignees),
		Labels:      []string(m.Labels),
		Checklist:   []string(m.Checklist),
		Version:     m.Version,
	}
	if m.ActiveCardID.Valid && m.ActiveCardID.String != "" {
		id := m.ActiveCardID.String
		s.ActiveCardID = &id
	}
	if m.LastCreatedAt.Valid {
		t := m.LastCreatedAt.Time.In(loc)
		s.LastCreatedAt = &t
	}
	s.Definition, s.DefinitionErr = ParseDefinition(m, loc)
	return s
}

func ParseDefinition(m model.CardSchedule, loc *time.Location) (recurrence.Definition, error) {
	freq, err := recurrence.ParseFrequency(m.Frequency)
	if err != nil {
		return recurrence.Definition{}, err
	}
	detail, err := recurrence.ParseDetail(freq, m.FrequencyDetail)
	if err != nil {
		return recurrence.Definition{}, err
	}
	period, err := recurrence.ParsePeriod(m.TriggerPeriod)
	if err != nil {
		return recurrence.Definition{}, err
	}

	def := recurrence.Definition{
		Frequency: freq,
		Interval:  m.Interval,
		Detail:    detail,
		Time:      recurrence.TimeOfDay{Hour: m.TriggerHour, Minute: m.TriggerMinute, Period: period},
	}
	if m.StartDate.Valid {
		start := dateIn(m.StartDate.Time, loc)
		def.StartDate = &start
	}
	if m.EndDate.Valid {
		end := recurrence.EndOfDay(dateIn(m.EndDate.Time, loc))
		def.EndDate = &end
	}
	if err := def.Validate(); err != nil {
		return recurrence.Definition{}, fmt.Errorf("schedule %d: %w", m.ID, err)
	}
	return def, nil
}

// dateIn keeps the calendar date of t and moves it to midnight in loc.
func dateIn(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

type ScheduleRequest struct {
	Title           string   `json:"title" validate:"required,max=255"`
	Description     string   `json:"description"`
	Frequency       string   `json:"frequency" validate:"required,oneof=daily weekly monthly yearly"`
	Interval        int      `json:"interval" validate:"omitempty,min=1,max=366"`
	FrequencyDetail string   `json:"frequency_detail" validate:"max=100"`
	TriggerHour     int      `json:"trigger_hour" validate:"required,min=1,max=12"`
	TriggerMinute   int      `json:"trigger_minute" validate:"min=0,max=59"`
	TriggerPeriod   string   `json:"trigger_period" validate:"required,oneof=am pm"`
	StartDate       *string  `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate         *string  `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Assignees       []string `json:"assignees" validate:"required,min=1,dive,required"`
	Labels          []string `json:"labels" validate:"dive,required"`
	Checklist       []string `json:"checklist" validate:"dive,required,max=255"`
	IsActive        *bool    `json:"is_active"`
}

type SetActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

type ListScheduleRequest struct {
	IsActive *bool `query:"-"`
	Limit    int   `query:"limit" validate:"omitempty,min=1,max=500"`
	Offset   int   `query:"offset" validate:"omitempty,min=0"`
}

type NextDueResponse struct {
	ScheduleID uint      `json:"schedule_id"`
	NextDue    time.Time `json:"next_due"`
	InWindow   bool      `json:"in_window"`
}

type ScheduleResponse struct {
	ID              uint       `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Frequency       string     `json:"frequency"`
	Interval        int        `json:"interval"`
	FrequencyDetail string     `json:"frequency_detail,omitempty"`
	TriggerTime     string     `json:"trigger_time"`
	StartDate       *string    `json:"start_date,omitempty"`
	EndDate         *string    `json:"end_date,omitempty"`
	State           string     `json:"state"`
	ActiveCardID    *string    `json:"active_card_id,omitempty"`
	LastCreatedAt   *time.Time `json:"last_created_at,omitempty"`
	IsActive        bool       `json:"is_active"`
	Assignees       []string   `json:"assignees"`
	Labels          []string   `json:"labels,omitempty"`
	Checklist       []string   `json:"checklist,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func NewScheduleResponse(m model.CardSchedule) ScheduleResponse {
	resp := ScheduleResponse{
		ID:              m.ID,
		Title:           m.Title,
		Description:     m.Description,
		Frequency:       m.Frequency,
		Interval:        m.Interval,
		FrequencyDetail: m.FrequencyDetail,
		TriggerTime:     fmt.Sprintf("%d:%02d %s", m.TriggerHour, m.TriggerMinute, m.TriggerPeriod),
		State:           string(m.State),
		IsActive:        m.IsActive,
		Assignees:       []string(m.Assignees),
		Labels:          []string(m.Labels),
		Checklist:       []string(m.Checklist),
		UpdatedAt:       m.UpdatedAt,
	}
	if m.StartDate.Valid {
		resp.StartDate = utils.ToPointer(m.StartDate.Time.Format(time.DateOnly))
	}
	if m.EndDate.Valid {
		resp.EndDate = utils.ToPointer(m.EndDate.Time.Format(time.DateOnly))
	}
	if m.ActiveCardID.Valid {
		resp.ActiveCardID = utils.ToPointer(m.ActiveCardID.String)
	}
	if m.LastCreatedAt.Valid {
		resp.LastCreatedAt = utils.ToPointer(m.LastCreatedAt.Time)
	}
	return resp
}

type AuditLogResponse struct {
	ID        uint            `json:"id"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Details   json.RawMessage `json:"details,omitempty"`
	Actor     string          `json:"actor,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func NewAuditLogResponse(m model.AuditLog) AuditLogResponse {
	return AuditLogResponse{
		ID:        m.ID,
		Level:     m.Level,
		Message:   m.Message,
		Details:   json.RawMessage(m.Details),
		Actor:     m.Actor.String,
		CreatedAt: m.CreatedAt,
	}
}
