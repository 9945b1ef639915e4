package service

import (
	"context"
	"fmt"
	"recurring-card/config"
	"recurring-card/internal/contract"
	"recurring-card/internal/dto"
	"recurring-card/pkg/common"
	"recurring-card/pkg/logger"
	"recurring-card/pkg/utils"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type SchedulerService interface {
	Execute(ctx context.Context) (dto.CycleSummary, error)
	RunSchedule(ctx context.Context, id uint, actor string) (Outcome, error)
	NextDue(ctx context.Context, id uint) (*dto.NextDueResponse, error)
}

type schedulerService struct {
	cfg        *config.Config
	log        *logger.Logger
	store      contract.ScheduleStore
	reconciler CardLifecycleReconciler
	settings   SettingsService
	clock      utils.Clock
}

func NewSchedulerService(
	cfg *config.Config,
	log *logger.Logger,
	store contract.ScheduleStore,
	reconciler CardLifecycleReconciler,
	settings SettingsService,
	clock utils.Clock,
) SchedulerService {
	return &schedulerService{
		cfg:        cfg,
		log:        log,
		store:      store,
		reconciler: reconciler,
		settings:   settings,
		clock:      clock,
	}
}

// Execute runs one reconciliation cycle over every eligible schedule. A failing
// schedule never stops the others; cancellation stops dispatching and leaves the
// remaining schedules for the next cycle.
func (s *schedulerService) Execute(ctx context.Context) (dto.CycleSummary, error) {
	var summary dto.CycleSummary

	schedules, err := s.store.LoadEligible(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to load eligible schedules", logger.ErrorField(err))
		return summary, fmt.Errorf("failed to load eligible schedules: %w", err)
	}
	if len(schedules) == 0 {
		s.log.InfoContext(ctx, "No schedules to reconcile")
		return summary, nil
	}

	settings := s.settings.Current()
	maxConcurrency := s.cfg.Scheduler.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	s.log.InfoContext(ctx, "Start reconciliation cycle",
		logger.IntField("schedule_count", len(schedules)),
		logger.IntField("max_concurrency", maxConcurrency),
	)
	start := time.Now()

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(maxConcurrency)

	for _, schedule := range schedules {
		if !utils.ShouldContinue(ctx, s.log) {
			break
		}
		schedule := schedule
		g.Go(func() error {
			outcome := s.process(ctx, schedule, settings)

			mu.Lock()
			defer mu.Unlock()
			summary.Processed++
			switch outcome.Kind {
			case OutcomeCreated:
				summary.Created++
			case OutcomeBlocked:
				summary.Blocked++
			case OutcomeSkipped:
				summary.Skipped++
			default:
				summary.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	s.log.InfoContext(ctx, "Reconciliation cycle completed",
		logger.IntField("processed", summary.Processed),
		logger.IntField("created", summary.Created),
		logger.IntField("blocked", summary.Blocked),
		logger.IntField("skipped", summary.Skipped),
		logger.IntField("failed", summary.Failed),
		logger.IntField("not_dispatched", len(schedules)-summary.Processed),
		logger.StringField("elapsed", time.Since(start).String()),
	)
	return summary, nil
}

// process shields the cycle from a panicking reconciliation.
func (s *schedulerService) process(ctx context.Context, schedule dto.Schedule, settings dto.BoardSettings) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.log.ErrorContextWithAlert(ctx, "Panic while reconciling schedule",
				logger.UintField("schedule_id", schedule.ID),
				logger.StringField("panic", fmt.Sprint(r)),
			)
			outcome = failed("panic", fmt.Errorf("panic: %v", r))
		}
	}()
	return s.reconciler.Process(ctx, schedule, settings, s.actorFor(ctx))
}

type actorKey struct{}

// WithActor tags a cycle with who started it; audit entries carry the tag.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func (s *schedulerService) actorFor(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return common.ACTOR_SCHEDULER
}

// RunSchedule reconciles a single schedule on demand. Only a missing schedule or
// a store failure returns an error; everything else is reported on the Outcome.
func (s *schedulerService) RunSchedule(ctx context.Context, id uint, actor string) (Outcome, error) {
	s.log.InfoContext(ctx, "Running schedule on demand", logger.UintField("schedule_id", id), logger.StringField("actor", actor))

	schedule, err := s.store.LoadSchedule(ctx, id)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to load schedule %d: %w", id, err)
	}
	return s.reconciler.Process(ctx, *schedule, s.settings.Current(), actor), nil
}

// NextDue previews the next due date from the stored state only. It does not
// look at the board, so it assumes the active card (if any) is already done.
func (s *schedulerService) NextDue(ctx context.Context, id uint) (*dto.NextDueResponse, error) {
	schedule, err := s.store.LoadSchedule(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule %d: %w", id, err)
	}
	if schedule.DefinitionErr != nil {
		return nil, schedule.DefinitionErr
	}

	now := s.clock.Now()
	var last *time.Time
	if schedule.LastCreatedAt != nil {
		t := schedule.LastCreatedAt.In(now.Location())
		last = &t
	}
	due, err := nextOccurrence(schedule.Definition, last, now)
	if err != nil {
		return nil, err
	}

	end := schedule.Definition.EndDate
	return &dto.NextDueResponse{
		ScheduleID: schedule.ID,
		NextDue:    due,
		InWindow:   end == nil || !due.After(*end),
	}, nil
}
