package cmd

import (
	"context"
	"errors"
	"recurring-card/config"
	"recurring-card/pkg/cache"
	"recurring-card/pkg/logger"
	"recurring-card/pkg/postgres"
	"recurring-card/pkg/telegram"
	"recurring-card/pkg/utils"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type AppDependency struct {
	db        *postgres.DB
	cfg       *config.Config
	log       *logger.Logger
	validator *goValidator.Validate
	echo      *echo.Echo
	cache     cache.Cache
	clock     utils.Clock
}

func NewAppDependency(ctx context.Context) (*AppDependency, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return nil, err
	}

	notifier, err := telegram.NewAlertNotifier(&cfg.Telegram)
	switch {
	case errors.Is(err, telegram.ErrDisabled):
		log.Info("Telegram alerts disabled")
	case err != nil:
		log.Warn("Failed to create telegram alert notifier, alerts disabled", zap.Error(err))
	default:
		log = log.WithAlert(notifier, zapcore.ErrorLevel)
	}

	db, err := postgres.NewDB(cfg.DB, log)
	if err != nil {
		log.Error("Failed to connect to database", zap.Error(err))
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	return &AppDependency{
		cfg:       cfg,
		log:       log,
		validator: goValidator.New(),
		db:        db,
		echo:      e,
		cache:     cache.NewCache(cfg.Cache.DefaultExpiration, cfg.Cache.CleanupInterval),
		clock:     utils.NewSystemClock(cfg.Scheduler.Location()),
	}, nil
}

func (d *AppDependency) Close() error {
	d.log.Info("Closing app dependency")
	_ = d.log.Sync()
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
