package service

import (
	"context"
	"fmt"
	"recurring-card/config"
	"recurring-card/internal/repository"
	"recurring-card/pkg/logger"
	"recurring-card/pkg/utils"
)

// AuditService prunes the audit trail. Retention comes from cfg.Audit.
type AuditService interface {
	CleanUp(ctx context.Context) (int64, error)
}

type auditService struct {
	cfg       *config.Config
	log       *logger.Logger
	auditRepo repository.AuditRepository
	clock     utils.Clock
}

func NewAuditService(cfg *config.Config, log *logger.Logger, auditRepo repository.AuditRepository, clock utils.Clock) AuditService {
	return &auditService{
		cfg:       cfg,
		log:       log,
		auditRepo: auditRepo,
		clock:     clock,
	}
}

func (s *auditService) CleanUp(ctx context.Context) (int64, error) {
	if s.cfg.Audit.RetentionDays <= 0 {
		s.log.DebugContext(ctx, "Audit retention disabled")
		return 0, nil
	}

	date := s.clock.Now().AddDate(0, 0, -s.cfg.Audit.RetentionDays)
	total, err := s.auditRepo.DeleteOlderThan(ctx, date)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to delete old audit entries", logger.ErrorField(err), logger.TimeField("before", date))
		return total, fmt.Errorf("failed to delete audit entries older than %s: %w", date.Format("2006-01-02"), err)
	}

	s.log.InfoContext(ctx, "Audit clean up completed",
		logger.IntField("retention_days", s.cfg.Audit.RetentionDays),
		logger.Int64Field("deleted", total),
	)
	return total, nil
}
