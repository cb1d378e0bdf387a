package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/scenario-risk/internal/api"
	"github.com/yourusername/scenario-risk/internal/health"
	"github.com/yourusername/scenario-risk/internal/metrics"
	"github.com/yourusername/scenario-risk/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the simulation API, progress stream and scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	appLog.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"log_level":   cfg.App.LogLevel,
		"version":     Version,
	}).Info("Scenario risk service starting")

	hub := health.NewProgressHub(appLog)
	defer hub.Close()

	c, err := buildComponents(ctx, true, hub.Broadcast)
	if err != nil {
		return err
	}
	defer c.Close()

	srvCfg := health.Config{
		ServiceName:  cfg.App.Name,
		Version:      Version,
		Commit:       GitCommit,
		Address:      cfg.Server.HTTPAddress,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		Logger:       appLog,
	}
	if c.db != nil {
		srvCfg.DB = c.db
	}
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		srvCfg.MetricsPath = cfg.Metrics.Path
		srvCfg.MetricsHandler = metrics.Handler()
	}

	srv := health.NewServer(srvCfg)
	srv.Handle("/ws/progress", hub)
	srv.Handle("/api/v1/", api.NewHandler(c.service, api.Config{
		RateLimit:      cfg.Server.RateLimitPerSecond,
		RateBurst:      cfg.Server.RateLimitBurst,
		RequestTimeout: srvCfg.WriteTimeout,
	}, appLog))

	if cfg.Scheduler.Enabled {
		sched := scheduler.NewScheduler(c.service, appLog)
		if err := sched.ScheduleJobs(cfg.Scheduler.Jobs); err != nil {
			return fmt.Errorf("failed to schedule jobs: %w", err)
		}
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer sched.Stop()
		appLog.WithField("next_run", sched.NextRun()).Info("Scheduler started")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx) })

	var grpcSrv *health.GRPCServer
	if cfg.Server.GRPCAddress != "" {
		grpcSrv = health.NewGRPCServer(cfg.Server.GRPCAddress, cfg.App.Name, appLog)
		g.Go(func() error { return grpcSrv.Serve(gctx) })
		grpcSrv.SetServing(true)
	}
	srv.SetReady(true)

	<-gctx.Done()
	appLog.Info("Shutdown signal received")
	srv.SetReady(false)
	if grpcSrv != nil {
		grpcSrv.SetServing(false)
	}

	if err := g.Wait(); err != nil {
		return err
	}
	appLog.Info("Scenario risk service shut down successfully")
	return nil
}
