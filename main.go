package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aegisnet/internal/archive"
	"aegisnet/internal/config"
	"aegisnet/internal/controllers"
	"aegisnet/internal/detectors"
	"aegisnet/internal/logging"
	"aegisnet/internal/middleware"
	"aegisnet/internal/models"
	"aegisnet/internal/remediation"
	"aegisnet/internal/routes"
	"aegisnet/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "aegisnet",
		Short:         "Metrics anomaly detection and remediation server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cfg, configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "aegisnet.yaml", "path to configuration file")
	root.AddCommand(newTokenCommand(&configPath))
	return root
}

func serve(cfg config.Config, configPath string) error {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// only the log level is applied live; everything else needs a restart
	err = config.Watch(configPath, func(next config.Config, err error) {
		if err != nil {
			logger.Warn("config reload rejected", zap.Error(err))
			return
		}
		if err := logger.SetLevel(next.Logging.Level); err != nil {
			logger.Warn("log level not changed", zap.Error(err))
			return
		}
		logger.Info("config reloaded", zap.String("level", next.Logging.Level))
	})
	if err != nil && !errors.Is(err, config.ErrNoConfigFile) {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storeOpts := []services.StoreOption{services.WithStoreLogger(logger.Named("store"))}
	var arch *archive.Archive
	if cfg.Archive.Path != "" {
		arch, err = archive.Open(cfg.Archive.Path)
		if err != nil {
			return err
		}
		defer arch.Close()
		storeOpts = append(storeOpts, services.WithJournal(arch))
		logger.Info("archive enabled", zap.String("path", cfg.Archive.Path))
	}
	store := services.NewStore(cfg.Store.HistoryCapacity, storeOpts...)
	// runs before arch.Close so queued entries reach the archive
	defer store.Close()

	detectorCfg := cfg.DetectorConfig()
	set := detectors.NewStandardSet(detectorCfg, logger.Named("detectors"))
	engine := remediation.NewEngine(logger.Named("remediation"))

	hub := services.NewWebSocketHub(logger.Named("ws"))
	defer hub.Stop()

	pipelineOpts := []services.PipelineOption{
		services.WithEvents(hub),
		services.WithCooldown(cfg.Remediation.Cooldown),
		services.WithPipelineLogger(logger.Named("ingest")),
	}
	if cfg.Remediation.Enabled {
		pipelineOpts = append(pipelineOpts, services.WithRemediation(engine))
	}
	pipeline := services.NewPipeline(store, set, pipelineOpts...)

	flags := services.NewAttackFlagStore(cfg.Windows.AttackFlagPath, hub)

	var ingest services.Ingester = pipeline
	if cfg.Windows.Enabled {
		monitor, err := services.NewWindowMonitor(pipeline, services.WindowConfig{
			Size:       cfg.Windows.Size,
			LogDir:     cfg.Windows.LogDir,
			Thresholds: detectorCfg.Thresholds,
		}, flags, engine, store,
			services.WithWindowEvents(hub),
			services.WithWindowLogger(logger.Named("windows")),
		)
		if err != nil {
			return err
		}
		ingest = monitor
	}

	sim := services.NewSimulator(ingest, cfg.Simulation.Interval, cfg.Simulation.Duration, time.Now().UnixNano(), logger.Named("sim"))
	defer sim.StopAll()

	if cfg.Agent.Enabled {
		if cfg.Agent.RegisterSelf {
			hostname, _ := os.Hostname()
			if err := store.RegisterProfile(models.AgentProfile{
				AgentID:      cfg.Agent.ID,
				Hostname:     hostname,
				RegisteredAt: time.Now().UTC(),
			}); err != nil {
				return err
			}
		}
		collector := services.NewHostCollector(cfg.Agent.ID, services.NewSystemProbe(cfg.Agent.DiskPath, cfg.Agent.TopProcesses))
		agent := services.NewAgent(collector, ingest, cfg.Agent.Interval, logger.Named("agent"))
		agent.Start(ctx)
		defer agent.Stop()
	}

	var auth *services.AuthService
	if cfg.Auth.Enabled {
		auth, err = services.NewAuthService(cfg.Auth.Secret, cfg.Auth.TokenExpiry, logger.Named("auth"))
		if err != nil {
			return err
		}
	}

	gin.SetMode(gin.ReleaseMode)
	ctl := &controllers.Controller{
		Pipeline:       pipeline,
		Ingester:       ingest,
		Simulator:      sim,
		Flags:          flags,
		WindowDir:      cfg.Windows.LogDir,
		Hub:            hub,
		Auth:           auth,
		Archive:        arch,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Security:       middleware.NewSecurityLogger(logger.Named("security")),
		Logger:         logger.Named("http"),
		BaseContext:    ctx,
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           routes.NewRouter(ctl, cfg.Server),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server starting",
			zap.String("addr", server.Addr),
			zap.Bool("auth", auth != nil),
			zap.Bool("windows", cfg.Windows.Enabled),
			zap.Strings("detectors", set.Names()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
