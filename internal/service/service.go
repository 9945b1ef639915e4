package service

import (
	"recurring-card/config"
	"recurring-card/internal/repository"
	"recurring-card/pkg/keylock"
	"recurring-card/pkg/logger"
	"recurring-card/pkg/utils"

	goValidator "github.com/go-playground/validator/v10"
)

type Service struct {
	SchedulerService SchedulerService
	ScheduleService  ScheduleService
	SettingsService  SettingsService
	AuditService     AuditService
	Reconciler       CardLifecycleReconciler
}

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	validator *goValidator.Validate,
	clock utils.Clock,
) *Service {
	locks := keylock.New()
	settingsService := NewSettingsService(cfg, log, validator, repo.SystemParamRepo, repo.AuditRepo)
	reconciler := NewCardLifecycleReconciler(cfg, log, repo.ScheduleRepo, repo.BoardRepo, repo.AuditRepo, clock, locks)

	return &Service{
		SchedulerService: NewSchedulerService(cfg, log, repo.ScheduleRepo, reconciler, settingsService, clock),
		ScheduleService:  NewScheduleService(cfg, log, validator, repo.ScheduleRepo, repo.AuditRepo, repo.UnitOfWork),
		SettingsService:  settingsService,
		AuditService:     NewAuditService(cfg, log, repo.AuditRepo, clock),
		Reconciler:       reconciler,
	}
}
