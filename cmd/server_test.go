package cmd

import (
	"context"
	"errors"
	"recurring-card/config"
	"recurring-card/internal/dto"
	"recurring-card/internal/service"
	"recurring-card/pkg/logger"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubAuditService struct {
	deleted int64
	err     error
	calls   atomic.Int32
}

func (s *stubAuditService) CleanUp(ctx context.Context) (int64, error) {
	s.calls.Add(1)
	return s.deleted, s.err
}

type stubScheduler struct {
	service.SchedulerService
	err   error
	calls atomic.Int32
}

func (s *stubScheduler) Execute(ctx context.Context) (dto.CycleSummary, error) {
	s.calls.Add(1)
	return dto.CycleSummary{}, s.err
}

type stubSettings struct {
	service.SettingsService
	reloads atomic.Int32
}

func (s *stubSettings) Reload(ctx context.Context) error {
	s.reloads.Add(1)
	return nil
}

func newTestApp(cfg *config.Config) (*AppDependency, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &AppDependency{cfg: cfg, log: &logger.Logger{Logger: zap.New(core)}}, logs
}

func TestRunAuditCleanUp(t *testing.T) {
	app, logs := newTestApp(&config.Config{})
	audit := &stubAuditService{deleted: 7}

	runAuditCleanUp(context.Background(), app, &service.Service{AuditService: audit})

	finished := logs.FilterMessage("Audit clean up job finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, int64(7), finished[0].ContextMap()["deleted"])
}

func TestRunAuditCleanUp_Error(t *testing.T) {
	app, logs := newTestApp(&config.Config{})
	audit := &stubAuditService{err: errors.New("connection reset")}

	runAuditCleanUp(context.Background(), app, &service.Service{AuditService: audit})

	failed := logs.FilterMessage("Audit clean up job failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.WarnLevel, failed[0].Level)
	assert.Zero(t, logs.FilterMessage("Audit clean up job finished").Len())
}

func TestRunCycle(t *testing.T) {
	app, logs := newTestApp(&config.Config{})
	scheduler := &stubScheduler{err: errors.New("failed to load eligible schedules")}
	settings := &stubSettings{}

	runCycle(context.Background(), app, &service.Service{SchedulerService: scheduler, SettingsService: settings})

	assert.EqualValues(t, 1, settings.reloads.Load())
	assert.EqualValues(t, 1, scheduler.calls.Load())
	assert.Equal(t, 1, logs.FilterMessage("Reconciliation cycle failed").Len())
}

func TestNewCronTrigger(t *testing.T) {
	cfg := &config.Config{
		Scheduler: config.Scheduler{Enabled: true, CronSpec: "@every 5m"},
		Audit:     config.Audit{RetentionDays: 30, CleanUpCronSpec: "0 3 * * *"},
	}
	app, _ := newTestApp(cfg)
	scheduler := &stubScheduler{}
	audit := &stubAuditService{}
	services := &service.Service{SchedulerService: scheduler, SettingsService: &stubSettings{}, AuditService: audit}

	c, err := newCronTrigger(context.Background(), app, services)
	require.NoError(t, err)

	entries := c.Entries()
	require.Len(t, entries, 2)
	for _, e := range entries {
		e.Job.Run()
	}
	assert.EqualValues(t, 1, scheduler.calls.Load())
	assert.EqualValues(t, 1, audit.calls.Load())
}

func TestNewCronTrigger_Disabled(t *testing.T) {
	cfg := &config.Config{Audit: config.Audit{CleanUpCronSpec: "0 3 * * *"}}
	app, _ := newTestApp(cfg)

	c, err := newCronTrigger(context.Background(), app, &service.Service{})
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)

	cfg.Scheduler = config.Scheduler{Enabled: true, CronSpec: "every now and then"}
	_, err = newCronTrigger(context.Background(), app, &service.Service{})
	assert.Error(t, err)
}
