package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modforge/modsync/internal/changelog"
	"github.com/modforge/modsync/internal/db"
	syncSvc "github.com/modforge/modsync/internal/server/sync"
)

type Server struct {
	config  *Config
	server  *http.Server
	syncSvc *syncSvc.SyncService
}

func New(config *Config) (*Server, error) {
	sqliteDB, err := db.NewSqliteDB(db.WithPath(config.DBPath))
	if err != nil {
		return nil, fmt.Errorf("open changelog db: %w", err)
	}

	log, err := changelog.Open(sqliteDB)
	if err != nil {
		return nil, err
	}

	svc := syncSvc.NewSyncService(config.ContentDir, log,
		syncSvc.WithRescanInterval(config.RescanInterval),
	)

	return &Server{
		config:  config,
		syncSvc: svc,
		server: &http.Server{
			Addr:    config.HTTP.Addr,
			Handler: SetupRoutes(svc, config),
		},
	}, nil
}

func (s *Server) Start(ctx context.Context) error {
	slog.Info("modsync server start")
	defer slog.Info("modsync server stop")

	if err := s.syncSvc.Start(ctx); err != nil {
		return fmt.Errorf("sync service start error: %w", err)
	}

	go func() {
		if err := s.runHttpServer(); err != nil && err != http.ErrServerClosed {
			slog.Error("server start error", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("modsync shutdown signal")
	if err := s.Stop(ctx); err != nil {
		slog.Error("modsync shutdown error", "error", err)
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.syncSvc.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) runHttpServer() error {
	if s.config.HTTP.CertFile != "" && s.config.HTTP.KeyFile != "" {
		slog.Info("server start tls", "addr", s.config.HTTP.Addr, "cert", s.config.HTTP.CertFile, "key", s.config.HTTP.KeyFile)
		return s.server.ListenAndServeTLS(s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	}
	slog.Info("server start http", "addr", s.config.HTTP.Addr)
	return s.server.ListenAndServe()
}
