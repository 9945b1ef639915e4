package service

import (
	"context"
	"database/sql"
	"fmt"
	"recurring-card/config"
	"recurring-card/internal/contract"
	"recurring-card/internal/dto"
	"recurring-card/internal/model"
	"recurring-card/pkg/keylock"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// memoryStore is a ScheduleStore with the same version semantics as the gorm one.
type memoryStore struct {
	mu        sync.Mutex
	locks     *keylock.KeyedMutex
	lockCalls int
	loc       *time.Location
	rows      map[uint]model.CardSchedule
	saves     int
	clears    int
	failSave  error
}

func newMemoryStore(rows ...model.CardSchedule) *memoryStore {
	s := &memoryStore{loc: time.UTC, rows: make(map[uint]model.CardSchedule)}
	for _, r := range rows {
		s.rows[r.ID] = r
	}
	return s
}

// LockSchedule stands in for the database lock every process shares.
func (s *memoryStore) LockSchedule(ctx context.Context, id uint) (func(), error) {
	s.mu.Lock()
	if s.locks == nil {
		s.locks = keylock.New()
	}
	locks := s.locks
	s.lockCalls++
	s.mu.Unlock()
	return locks.Lock(ctx, fmt.Sprintf("schedule:%d", id))
}

func (s *memoryStore) LoadEligible(ctx context.Context) ([]dto.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []dto.Schedule
	for _, row := range s.rows {
		if row.IsActive {
			out = append(out, dto.NewSchedule(row, s.loc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) LoadSchedule(ctx context.Context, id uint) (*dto.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, contract.ErrScheduleNotFound
	}
	schedule := dto.NewSchedule(row, s.loc)
	return &schedule, nil
}

func (s *memoryStore) SaveCardAssignment(ctx context.Context, id uint, cardID string, createdAt time.Time, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave != nil {
		return s.failSave
	}
	row, ok := s.rows[id]
	if !ok || row.Version != version {
		return contract.ErrConcurrentUpdate
	}
	row.ActiveCardID = sql.NullString{String: cardID, Valid: true}
	row.State = model.StatePending
	row.LastCreatedAt = sql.NullTime{Time: createdAt, Valid: true}
	row.Version++
	s.rows[id] = row
	s.saves++
	return nil
}

func (s *memoryStore) ClearCardAssignment(ctx context.Context, id uint, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || row.Version != version {
		return contract.ErrConcurrentUpdate
	}
	row.ActiveCardID = sql.NullString{}
	row.State = model.StateIdle
	row.Version++
	s.rows[id] = row
	s.clears++
	return nil
}

func (s *memoryStore) row(id uint) model.CardSchedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

type mockCardService struct {
	mock.Mock
}

func (m *mockCardService) GetCard(ctx context.Context, id string) (*dto.Card, error) {
	args := m.Called(ctx, id)
	card, _ := args.Get(0).(*dto.Card)
	return card, args.Error(1)
}

func (m *mockCardService) CreateCard(ctx context.Context, spec dto.CardSpec, settings dto.BoardSettings) (*dto.Card, error) {
	args := m.Called(ctx, spec, settings)
	card, _ := args.Get(0).(*dto.Card)
	return card, args.Error(1)
}

// memoryBoard keeps created cards open until marked done.
type memoryBoard struct {
	mu      sync.Mutex
	cards   map[string]dto.Card
	created int
	delay   time.Duration
}

func newMemoryBoard() *memoryBoard {
	return &memoryBoard{cards: make(map[string]dto.Card)}
}

func (b *memoryBoard) GetCard(ctx context.Context, id string) (*dto.Card, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	card, ok := b.cards[id]
	if !ok {
		return nil, contract.ErrCardNotFound
	}
	return &card, nil
}

func (b *memoryBoard) CreateCard(ctx context.Context, spec dto.CardSpec, settings dto.BoardSettings) (*dto.Card, error) {
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created++
	due := spec.Due
	card := dto.Card{ID: fmt.Sprintf("card-%d", b.created), Name: spec.Title, IDList: settings.ListID, Due: &due}
	b.cards[card.ID] = card
	return &card, nil
}

func (b *memoryBoard) finish(id, doneList string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	card := b.cards[id]
	card.IDList = doneList
	b.cards[id] = card
}

type auditEntry struct {
	level   contract.AuditLevel
	message string
	details map[string]interface{}
	actor   string
}

type memoryAudit struct {
	mu      sync.Mutex
	entries []auditEntry
	err     error
}

func (a *memoryAudit) Record(ctx context.Context, level contract.AuditLevel, message string, details map[string]interface{}, actor string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{level: level, message: message, details: details, actor: actor})
	return a.err
}

func (a *memoryAudit) all() []auditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]auditEntry(nil), a.entries...)
}

type staticSettings struct {
	settings dto.BoardSettings
}

func (s staticSettings) Current() dto.BoardSettings { return s.settings }

func (s staticSettings) Reload(ctx context.Context) error { return nil }

func (s staticSettings) Update(ctx context.Context, settings dto.BoardSettings, actor string) (dto.BoardSettings, error) {
	return settings, nil
}

var boardSettings = dto.BoardSettings{BoardID: "board", ListID: "todo", DoneListIDs: []string{"done"}}

func testConfig() *config.Config {
	return &config.Config{
		Scheduler: config.Scheduler{
			MaxConcurrency: 4,
			StepTimeout:    time.Second,
		},
	}
}

func dailySchedule(id uint) model.CardSchedule {
	return model.CardSchedule{
		ID:            id,
		Title:         fmt.Sprintf("Schedule %d", id),
		Frequency:     "daily",
		Interval:      1,
		TriggerHour:   9,
		TriggerMinute: 0,
		TriggerPeriod: "am",
		IsActive:      true,
		State:         model.StateIdle,
		Assignees:     []string{"alice"},
	}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}
