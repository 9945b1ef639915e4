package service

import (
	"context"
	"errors"
	"fmt"
	"recurring-card/config"
	"recurring-card/internal/contract"
	"recurring-card/internal/dto"
	"recurring-card/internal/model"
	"recurring-card/internal/repository"
	"recurring-card/pkg/logger"
	"sync/atomic"

	goValidator "github.com/go-playground/validator/v10"
)

// SettingsService hands out immutable board settings. Readers take a snapshot
// with Current; writers build a new value and swap it in.
type SettingsService interface {
	Current() dto.BoardSettings
	Reload(ctx context.Context) error
	Update(ctx context.Context, settings dto.BoardSettings, actor string) (dto.BoardSettings, error)
}

type settingsService struct {
	cfg             *config.Config
	log             *logger.Logger
	validator       *goValidator.Validate
	systemParamRepo repository.SystemParamRepository
	audit           contract.AuditSink
	current         atomic.Pointer[dto.BoardSettings]
}

func NewSettingsService(
	cfg *config.Config,
	log *logger.Logger,
	validator *goValidator.Validate,
	systemParamRepo repository.SystemParamRepository,
	audit contract.AuditSink,
) SettingsService {
	s := &settingsService{
		cfg:             cfg,
		log:             log,
		validator:       validator,
		systemParamRepo: systemParamRepo,
		audit:           audit,
	}
	initial := s.fromConfig()
	s.current.Store(&initial)
	return s
}

func (s *settingsService) fromConfig() dto.BoardSettings {
	return dto.BoardSettings{
		BoardID:     s.cfg.Board.BoardID,
		ListID:      s.cfg.Board.ListID,
		DoneListIDs: append([]string(nil), s.cfg.Board.DoneListIDs...),
	}
}

func (s *settingsService) Current() dto.BoardSettings {
	current := *s.current.Load()
	current.DoneListIDs = append([]string(nil), current.DoneListIDs...)
	return current
}

// Reload merges the stored BOARD_SETTINGS parameter over the config values.
// A missing parameter keeps the config values.
func (s *settingsService) Reload(ctx context.Context) error {
	next := s.fromConfig()

	var stored dto.BoardSettings
	err := s.systemParamRepo.Get(ctx, model.SysParamBoardSettings, &stored)
	switch {
	case errors.Is(err, repository.ErrParamNotFound):
		s.log.DebugContext(ctx, "Board settings parameter not set, using config")
	case err != nil:
		return fmt.Errorf("failed to load board settings: %w", err)
	default:
		if stored.BoardID != "" {
			next.BoardID = stored.BoardID
		}
		if stored.ListID != "" {
			next.ListID = stored.ListID
		}
		if stored.DoneListIDs != nil {
			next.DoneListIDs = stored.DoneListIDs
		}
	}

	s.current.Store(&next)
	s.log.InfoContext(ctx, "Board settings loaded",
		logger.StringField("board_id", next.BoardID),
		logger.StringField("list_id", next.ListID),
		logger.IntField("done_lists", len(next.DoneListIDs)),
	)
	return nil
}

func (s *settingsService) Update(ctx context.Context, settings dto.BoardSettings, actor string) (dto.BoardSettings, error) {
	if err := s.validator.StructCtx(ctx, settings); err != nil {
		return dto.BoardSettings{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	settings.DoneListIDs = append([]string(nil), settings.DoneListIDs...)

	if err := s.systemParamRepo.Set(ctx, model.SysParamBoardSettings, settings, "board the reconciler creates cards on"); err != nil {
		return dto.BoardSettings{}, fmt.Errorf("failed to save board settings: %w", err)
	}
	s.current.Store(&settings)

	details := map[string]interface{}{
		"board_id":      settings.BoardID,
		"list_id":       settings.ListID,
		"done_list_ids": settings.DoneListIDs,
	}
	if err := s.audit.Record(ctx, contract.AuditInfo, "board settings updated", details, actor); err != nil {
		s.log.WarnContext(ctx, "Failed to record audit entry", logger.ErrorField(err))
	}
	return s.Current(), nil
}
