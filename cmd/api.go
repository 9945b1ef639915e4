package cmd

import (
	"context"
	"fmt"
	"recurring-card/internal/delivery/http"
	"recurring-card/pkg/middleware"
	"time"

	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type HTTPServer struct {
	ctx     context.Context
	appDep  *AppDependency
	handler *http.HttpAPIHandler
}

func NewHTTPServer(ctx context.Context, appDep *AppDependency, handler *http.HttpAPIHandler) *HTTPServer {
	return &HTTPServer{
		ctx:     ctx,
		appDep:  appDep,
		handler: handler,
	}
}

func (s *HTTPServer) Start() error {
	s.appDep.log.Info("Starting HTTP server", zap.Int("port", s.appDep.cfg.API.Port))
	address := fmt.Sprintf(":%d", s.appDep.cfg.API.Port)

	s.SetupRoutes()

	return s.appDep.echo.Start(address)
}

func (s *HTTPServer) Stop() error {
	s.appDep.log.Info("Shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.appDep.echo.Shutdown(ctx); err != nil {
		s.appDep.log.Error("Error when stopping HTTP server", zap.Error(err))
		return err
	}
	s.appDep.log.Info("HTTP server stopped successfully")
	return nil
}

func (s *HTTPServer) SetupRoutes() {
	e := s.appDep.echo
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.NewRateLimiterMiddleware(s.appDep.cfg.API))
	// a manual run may wait on the per-schedule lock plus every board call
	e.Use(middleware.WithContext(s.appDep.log, s.appDep.cfg.Scheduler.CycleTimeout))
	s.handler.SetupRoutes()
}
