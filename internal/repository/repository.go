package repository

import (
	"recurring-card/config"
	"recurring-card/pkg/cache"
	"recurring-card/pkg/logger"

	"gorm.io/gorm"
)

type Repository struct {
	ScheduleRepo    ScheduleRepository
	AuditRepo       AuditRepository
	SystemParamRepo SystemParamRepository
	BoardRepo       BoardRepository
	UnitOfWork      UnitOfWork
}

func NewRepository(cfg *config.Config, inmemoryCache cache.Cache, db *gorm.DB, log *logger.Logger) (*Repository, error) {
	return &Repository{
		ScheduleRepo:    NewScheduleRepository(db, cfg.Scheduler.Location(), cfg.Scheduler.StepTimeout),
		AuditRepo:       NewAuditRepository(db),
		SystemParamRepo: NewSystemParamRepository(cfg, inmemoryCache, db),
		BoardRepo:       NewBoardRepository(cfg, log, inmemoryCache),
		UnitOfWork:      NewUnitOfWork(db),
	}, nil
}
