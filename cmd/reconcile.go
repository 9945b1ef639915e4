package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"recurring-card/internal/dto"
	"recurring-card/internal/service"
	"recurring-card/pkg/common"
	"syscall"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconciliation cycle, or a single schedule with --id, then exit",
	Run:   Reconcile,
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Preview the next due date of a schedule",
	Run:   Next,
}

var scheduleIDFlag uint

func init() {
	reconcileCmd.Flags().UintVar(&scheduleIDFlag, "id", 0, "reconcile only this schedule")
	nextCmd.Flags().UintVar(&scheduleIDFlag, "id", 0, "schedule id")
	_ = nextCmd.MarkFlagRequired("id")
}

func Reconcile(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDep, services := mustServices(ctx)
	defer appDep.Close()

	if appDep.cfg.Scheduler.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, appDep.cfg.Scheduler.CycleTimeout)
		defer cancel()
	}

	if scheduleIDFlag != 0 {
		outcome, err := services.SchedulerService.RunSchedule(ctx, scheduleIDFlag, common.ACTOR_CLI)
		if err != nil {
			log.Fatalf("Failed to run schedule %d: %v", scheduleIDFlag, err)
		}
		fmt.Println(outcome.Message())
		printJSON(dto.RunScheduleResponse{
			ScheduleID: scheduleIDFlag,
			Outcome:    string(outcome.Kind),
			Reason:     outcome.Reason,
			Card:       outcome.Card,
		})
		return
	}

	summary, err := services.SchedulerService.Execute(service.WithActor(ctx, common.ACTOR_CLI))
	if err != nil {
		log.Fatalf("Reconciliation cycle failed: %v", err)
	}
	printJSON(summary)
}

func Next(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	appDep, services := mustServices(ctx)
	defer appDep.Close()

	next, err := services.SchedulerService.NextDue(ctx, scheduleIDFlag)
	if err != nil {
		log.Fatalf("Failed to compute next due date: %v", err)
	}
	printJSON(next)
}

func mustServices(ctx context.Context) (*AppDependency, *service.Service) {
	appDep, err := NewAppDependency(ctx)
	if err != nil {
		log.Fatalf("Failed to create app dependency: %v", err)
	}
	services, err := newServices(ctx, appDep)
	if err != nil {
		log.Fatalf("Failed to create services: %v", err)
	}
	return appDep, services
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
	fmt.Println(string(out))
}
