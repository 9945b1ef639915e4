package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"recurring-card/config"
	"recurring-card/internal/contract"
	"recurring-card/internal/dto"
	"recurring-card/internal/recurrence"
	"recurring-card/pkg/keylock"
	"recurring-card/pkg/logger"
	"recurring-card/pkg/utils"
	"strconv"
	"time"

	"go.uber.org/zap"
)

type OutcomeKind string

const (
	OutcomeCreated OutcomeKind = "created"
	OutcomeBlocked OutcomeKind = "blocked"
	OutcomeSkipped OutcomeKind = "skipped"
	OutcomeFailed  OutcomeKind = "failed"
)

const (
	ReasonPreviousActive    = "previous card still active"
	ReasonOutOfWindow       = "no valid occurrence within active window"
	ReasonInvalidDefinition = "invalid schedule definition"
	ReasonDisabled          = "schedule is disabled"
	ReasonNotFound          = "schedule no longer exists"
	ReasonPrecondition      = "card preconditions not met"
	ReasonCreateFailed      = "card creation failed"
	ReasonPersistFailed     = "card created but assignment not saved"
	ReasonLockTimeout       = "schedule is busy"
	ReasonCancelled         = "reconciliation cancelled"
)

// Outcome is the single result of one Process call. Nothing else escapes Process.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
	Card   *dto.Card
	Err    error
	Due    time.Time
}

func created(card *dto.Card, due time.Time) Outcome {
	return Outcome{Kind: OutcomeCreated, Card: card, Due: due}
}

func blocked(reason string) Outcome {
	return Outcome{Kind: OutcomeBlocked, Reason: reason}
}

func skipped(reason string, err error) Outcome {
	return Outcome{Kind: OutcomeSkipped, Reason: reason, Err: err}
}

func failed(reason string, err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Reason: reason, Err: err}
}

// Retryable is true for failures the next cycle may fix on its own.
func (o Outcome) Retryable() bool {
	return o.Kind == OutcomeFailed && !contract.IsPrecondition(o.Err)
}

// HTTPStatus maps the outcome to the manual-trigger response code.
func (o Outcome) HTTPStatus() int {
	switch o.Kind {
	case OutcomeCreated:
		return http.StatusCreated
	case OutcomeBlocked:
		return http.StatusConflict
	case OutcomeSkipped:
		if errors.Is(o.Err, contract.ErrScheduleNotFound) {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	default:
		if contract.IsPrecondition(o.Err) {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}

func (o Outcome) Message() string {
	switch {
	case o.Reason != "" && o.Err != nil:
		return fmt.Sprintf("%s: %v", o.Reason, o.Err)
	case o.Reason != "":
		return o.Reason
	case o.Err != nil:
		return o.Err.Error()
	default:
		return string(o.Kind)
	}
}

type CardLifecycleReconciler interface {
	Process(ctx context.Context, schedule dto.Schedule, settings dto.BoardSettings, actor string) Outcome
}

type cardLifecycleReconciler struct {
	cfg   *config.Config
	log   *logger.Logger
	store contract.ScheduleStore
	cards contract.CardService
	audit contract.AuditSink
	clock utils.Clock
	locks *keylock.KeyedMutex
}

func NewCardLifecycleReconciler(
	cfg *config.Config,
	log *logger.Logger,
	store contract.ScheduleStore,
	cards contract.CardService,
	audit contract.AuditSink,
	clock utils.Clock,
	locks *keylock.KeyedMutex,
) CardLifecycleReconciler {
	return &cardLifecycleReconciler{
		cfg:   cfg,
		log:   log,
		store: store,
		cards: cards,
		audit: audit,
		clock: clock,
		locks: locks,
	}
}

func (r *cardLifecycleReconciler) Process(ctx context.Context, schedule dto.Schedule, settings dto.BoardSettings, actor string) Outcome {
	log := r.log.With(logger.UintField("schedule_id", schedule.ID), logger.StringField("actor", actor))
	ctx = logger.NewContext(ctx, log)

	outcome := r.process(ctx, schedule.ID, settings)
	r.report(ctx, schedule.ID, outcome, actor)
	return outcome
}

func (r *cardLifecycleReconciler) process(ctx context.Context, scheduleID uint, settings dto.BoardSettings) Outcome {
	lockCtx, cancel := r.stepContext(ctx)
	unlock, err := r.locks.Lock(lockCtx, lockKey(scheduleID))
	cancel()
	if err != nil {
		return failed(ReasonLockTimeout, err)
	}
	defer unlock()

	// Other processes (cron, CLI, a second replica) only see the store lock.
	unlockStore, err := r.store.LockSchedule(ctx, scheduleID)
	if err != nil {
		return failed(ReasonLockTimeout, err)
	}
	defer unlockStore()

	// Re-read under the lock: the caller's copy may predate another Process call.
	schedule, err := r.loadSchedule(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, contract.ErrScheduleNotFound) {
			return skipped(ReasonNotFound, err)
		}
		return failed("failed to load schedule", err)
	}
	if !schedule.IsActive {
		return skipped(ReasonDisabled, nil)
	}
	if schedule.DefinitionErr != nil {
		return skipped(ReasonInvalidDefinition, schedule.DefinitionErr)
	}

	now := r.clock.Now()
	loc := now.Location()
	def := schedule.Definition

	var lastReference *time.Time
	observedTerminal := false

	if schedule.ActiveCardID != nil {
		card, err := r.getCard(ctx, *schedule.ActiveCardID)
		switch {
		case errors.Is(err, contract.ErrCardNotFound):
			observedTerminal = true
			r.log.InfoContext(ctx, "Active card no longer exists", logger.StringField("card_id", *schedule.ActiveCardID))
		case err != nil:
			// state unknown: proceed without the card's due date
			r.log.WarnContext(ctx, "Failed to fetch active card, continuing without it",
				logger.StringField("card_id", *schedule.ActiveCardID),
				logger.ErrorField(err),
			)
		case card.IsTerminal(settings.DoneListIDs):
			observedTerminal = true
			if card.Due != nil {
				due := card.Due.In(loc)
				lastReference = &due
			}
		default:
			r.log.InfoContext(ctx, "Previous card still active", logger.StringField("card_id", card.ID))
			return blocked(ReasonPreviousActive)
		}
	}

	if lastReference == nil && schedule.LastCreatedAt != nil {
		last := schedule.LastCreatedAt.In(loc)
		lastReference = &last
	}

	if err := ctx.Err(); err != nil {
		return failed(ReasonCancelled, err)
	}

	nextDue, err := nextOccurrence(def, lastReference, now)
	if err != nil {
		return skipped(ReasonInvalidDefinition, err)
	}

	if def.EndDate != nil && nextDue.After(*def.EndDate) {
		if observedTerminal {
			r.clearAssignment(ctx, schedule)
		}
		r.log.InfoContext(ctx, "Next occurrence is past the end date",
			logger.TimeField("next_due", nextDue),
			logger.TimeField("end_date", *def.EndDate),
		)
		return skipped(ReasonOutOfWindow, nil)
	}

	if err := ctx.Err(); err != nil {
		return failed(ReasonCancelled, err)
	}

	card, err := r.createCard(ctx, schedule, nextDue, settings)
	if err != nil {
		if contract.IsPrecondition(err) {
			return failed(ReasonPrecondition, err)
		}
		return failed(ReasonCreateFailed, err)
	}

	if err := r.saveAssignment(ctx, schedule, card.ID, now); err != nil {
		out := failed(ReasonPersistFailed, err)
		out.Card = card
		return out
	}

	return created(card, nextDue)
}

// nextOccurrence computes the next due date and pulls it up to the start date
// when the schedule has not started yet.
func nextOccurrence(def recurrence.Definition, lastReference *time.Time, now time.Time) (time.Time, error) {
	due, err := recurrence.Compute(def, weeklyReference(def, lastReference), nil, now)
	if err != nil {
		return time.Time{}, err
	}
	if def.StartDate != nil && due.Before(*def.StartDate) {
		return recurrence.Compute(def, nil, def.StartDate, now)
	}
	return due, nil
}

// weeklyReference implements interval spacing for weekly schedules: once the last
// occurrence was the final configured weekday of its week, the reference jumps
// interval-1 weeks ahead so the weekday scan lands in the right week.
func weeklyReference(def recurrence.Definition, last *time.Time) *time.Time {
	weekly, ok := def.Detail.(recurrence.WeeklyDetail)
	if !ok || last == nil || def.Interval <= 1 {
		return last
	}
	for d := last.Weekday() + 1; d <= time.Saturday; d++ {
		if weekly.Weekdays.Has(d) {
			return last
		}
	}
	shifted := last.AddDate(0, 0, 7*(def.Interval-1))
	return &shifted
}

func (r *cardLifecycleReconciler) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := r.cfg.Scheduler.StepTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *cardLifecycleReconciler) loadSchedule(ctx context.Context, id uint) (*dto.Schedule, error) {
	stepCtx, cancel := r.stepContext(ctx)
	defer cancel()
	return r.store.LoadSchedule(stepCtx, id)
}

func (r *cardLifecycleReconciler) getCard(ctx context.Context, id string) (*dto.Card, error) {
	stepCtx, cancel := r.stepContext(ctx)
	defer cancel()
	return r.cards.GetCard(stepCtx, id)
}

func (r *cardLifecycleReconciler) createCard(ctx context.Context, schedule *dto.Schedule, due time.Time, settings dto.BoardSettings) (*dto.Card, error) {
	stepCtx, cancel := r.stepContext(ctx)
	defer cancel()

	spec := dto.CardSpec{
		Title:       schedule.Title,
		Description: schedule.Description,
		Due:         due,
		Assignees:   schedule.Assignees,
		Labels:      schedule.Labels,
		Checklist:   schedule.Checklist,
	}
	return r.cards.CreateCard(stepCtx, spec, settings)
}

func (r *cardLifecycleReconciler) saveAssignment(ctx context.Context, schedule *dto.Schedule, cardID string, createdAt time.Time) error {
	stepCtx, cancel := r.stepContext(ctx)
	defer cancel()
	return r.store.SaveCardAssignment(stepCtx, schedule.ID, cardID, createdAt, schedule.Version)
}

func (r *cardLifecycleReconciler) clearAssignment(ctx context.Context, schedule *dto.Schedule) {
	stepCtx, cancel := r.stepContext(ctx)
	defer cancel()
	if err := r.store.ClearCardAssignment(stepCtx, schedule.ID, schedule.Version); err != nil {
		r.log.WarnContext(ctx, "Failed to clear finished card assignment", logger.ErrorField(err))
	}
}

func (r *cardLifecycleReconciler) report(ctx context.Context, scheduleID uint, outcome Outcome, actor string) {
	details := map[string]interface{}{
		"schedule_id": scheduleID,
		"outcome":     string(outcome.Kind),
	}
	if outcome.Reason != "" {
		details["reason"] = outcome.Reason
	}
	if outcome.Err != nil {
		details["error"] = outcome.Err.Error()
		var transient *contract.TransientError
		if errors.As(outcome.Err, &transient) {
			details["status_code"] = transient.StatusCode
			details["response"] = transient.Body
		}
	}
	if outcome.Card != nil {
		details["card_id"] = outcome.Card.ID
		details["card_url"] = outcome.Card.URL
	}
	if !outcome.Due.IsZero() {
		details["due"] = outcome.Due.Format(time.RFC3339)
	}

	level := contract.AuditInfo
	fields := []zap.Field{logger.StringField("outcome", string(outcome.Kind)), logger.StringField("reason", outcome.Reason)}
	switch outcome.Kind {
	case OutcomeCreated:
		r.log.InfoContext(ctx, "Card created", append(fields,
			logger.StringField("card_id", outcome.Card.ID),
			logger.TimeField("due", outcome.Due),
		)...)
	case OutcomeBlocked:
		r.log.InfoContext(ctx, "Schedule blocked", fields...)
	case OutcomeSkipped:
		if outcome.Err != nil {
			level = contract.AuditWarn
			r.log.WarnContext(ctx, "Schedule skipped", append(fields, logger.ErrorField(outcome.Err))...)
		} else {
			r.log.InfoContext(ctx, "Schedule skipped", fields...)
		}
	case OutcomeFailed:
		level = contract.AuditError
		fields = append(fields, logger.ErrorField(outcome.Err), logger.BoolField("retryable", outcome.Retryable()))
		if outcome.Card != nil {
			fields = append(fields, logger.StringField("card_id", outcome.Card.ID))
		}
		if outcome.Retryable() && outcome.Card == nil {
			r.log.ErrorContext(ctx, "Schedule reconciliation failed", fields...)
		} else {
			r.log.ErrorContextWithAlert(ctx, "Schedule reconciliation failed", fields...)
		}
	}

	message := fmt.Sprintf("schedule %d %s", scheduleID, outcome.Kind)
	if err := r.audit.Record(ctx, level, message, details, actor); err != nil {
		r.log.WarnContext(ctx, "Failed to record audit entry", logger.ErrorField(err))
	}
}

func lockKey(id uint) string {
	return "schedule:" + strconv.FormatUint(uint64(id), 10)
}
