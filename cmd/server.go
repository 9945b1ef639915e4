package cmd

import (
	"context"
	"log"
	httpNet "net/http"
	"os"
	"os/signal"
	"recurring-card/internal/delivery/http"
	"recurring-card/internal/repository"
	"recurring-card/internal/service"
	"recurring-card/pkg/logger"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the HTTP API and the periodic reconciliation trigger",
	Run:   Start,
}

func Start(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDep, err := NewAppDependency(ctx)
	if err != nil {
		log.Fatalf("Failed to create app dependency: %v", err)
	}

	services, err := newServices(ctx, appDep)
	if err != nil {
		log.Fatalf("Failed to create services: %v", err)
	}

	httpHandler := http.NewHttpAPIHandler(ctx, appDep.echo, appDep.log, appDep.validator, services, appDep.db)
	apiServer := NewHTTPServer(ctx, appDep, httpHandler)
	go func() {
		if err := apiServer.Start(); err != nil && err != httpNet.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	trigger, err := newCronTrigger(ctx, appDep, services)
	if err != nil {
		log.Fatalf("Failed to create cron trigger: %v", err)
	}
	trigger.Start()

	<-ctx.Done()
	log.Println("Shutting down gracefully...")

	// wait for a running cycle so no card is created without its assignment saved
	<-trigger.Stop().Done()

	if err := apiServer.Stop(); err != nil {
		log.Printf("Failed to stop HTTP server: %v", err)
	}
	if err := appDep.Close(); err != nil {
		log.Fatalf("Failed to close app dependency: %v", err)
	}
}

func newServices(ctx context.Context, appDep *AppDependency) (*service.Service, error) {
	repo, err := repository.NewRepository(appDep.cfg, appDep.cache, appDep.db.DB, appDep.log)
	if err != nil {
		return nil, err
	}
	services := service.NewService(appDep.cfg, appDep.log, repo, appDep.validator, appDep.clock)
	// every in-flight reconciliation pins a connection for its schedule lock
	if maxOpen := appDep.cfg.DB.MaxOpenConns; maxOpen > 0 && maxOpen <= appDep.cfg.Scheduler.MaxConcurrency {
		appDep.log.WarnContext(ctx, "database.max_open_conns should exceed scheduler.max_concurrency",
			logger.IntField("max_open_conns", maxOpen),
			logger.IntField("max_concurrency", appDep.cfg.Scheduler.MaxConcurrency),
		)
	}
	if err := services.SettingsService.Reload(ctx); err != nil {
		appDep.log.WarnContext(ctx, "Failed to load stored board settings, using config", logger.ErrorField(err))
	}
	return services, nil
}

// newCronTrigger registers the reconciliation cycle and the audit clean up.
// A cycle still running when the next tick fires is skipped, not queued.
func newCronTrigger(ctx context.Context, appDep *AppDependency, services *service.Service) (*cron.Cron, error) {
	cfg := appDep.cfg
	c := cron.New(
		cron.WithLocation(cfg.Scheduler.Location()),
		cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	if cfg.Scheduler.Enabled {
		if _, err := c.AddFunc(cfg.Scheduler.CronSpec, func() { runCycle(ctx, appDep, services) }); err != nil {
			return nil, err
		}
		appDep.log.Info("Reconciliation trigger registered", logger.StringField("spec", cfg.Scheduler.CronSpec))
	} else {
		appDep.log.Info("Reconciliation trigger disabled")
	}

	if cfg.Audit.CleanUpCronSpec != "" {
		if _, err := c.AddFunc(cfg.Audit.CleanUpCronSpec, func() { runAuditCleanUp(ctx, appDep, services) }); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func runCycle(ctx context.Context, appDep *AppDependency, services *service.Service) {
	if timeout := appDep.cfg.Scheduler.CycleTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := services.SettingsService.Reload(ctx); err != nil {
		appDep.log.WarnContext(ctx, "Failed to reload board settings", logger.ErrorField(err))
	}
	if _, err := services.SchedulerService.Execute(ctx); err != nil {
		appDep.log.ErrorContextWithAlert(ctx, "Reconciliation cycle failed", logger.ErrorField(err))
	}
}

func runAuditCleanUp(ctx context.Context, appDep *AppDependency, services *service.Service) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	deleted, err := services.AuditService.CleanUp(ctx)
	if err != nil {
		appDep.log.WarnContext(ctx, "Audit clean up job failed", logger.ErrorField(err))
		return
	}
	appDep.log.InfoContext(ctx, "Audit clean up job finished", logger.Int64Field("deleted", deleted))
}
