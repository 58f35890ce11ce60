// Package serverrun wires the audit store, the monitor and both API servers
// into one long-running process.
package serverrun

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Niyaz-313/trading-bot/internal/audit"
	cfgpkg "github.com/Niyaz-313/trading-bot/internal/config"
	"github.com/Niyaz-313/trading-bot/internal/health"
	"github.com/Niyaz-313/trading-bot/internal/metrics"
	"github.com/Niyaz-313/trading-bot/internal/notify"
	"github.com/Niyaz-313/trading-bot/internal/opslog"
	"github.com/Niyaz-313/trading-bot/internal/reconcile"
	"github.com/Niyaz-313/trading-bot/internal/retention"
	grpcserver "github.com/Niyaz-313/trading-bot/internal/server/grpc"
	httpserver "github.com/Niyaz-313/trading-bot/internal/server/http"
	pebblestore "github.com/Niyaz-313/trading-bot/internal/storage/pebble"
	"github.com/Niyaz-313/trading-bot/internal/transport"
	logpkg "github.com/Niyaz-313/trading-bot/pkg/log"
)

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Options carry CLI overrides on top of the loaded config.
type Options struct {
	ConfigPath string
	DataDir    string
	HTTPAddr   string
	GRPCAddr   string
}

// Run starts the HTTP and gRPC servers plus the monitor loop and blocks
// until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := cfgpkg.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	cfgpkg.FromEnv(&cfg)
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.HTTPAddr != "" {
		cfg.Server.HTTPAddr = opts.HTTPAddr
	}
	if opts.GRPCAddr != "" {
		cfg.Server.GRPCAddr = opts.GRPCAddr
	}

	logCfg := &logpkg.Config{
		Level:  getenvDefault("BOTOPS_LOG_LEVEL", "info"),
		Format: getenvDefault("BOTOPS_LOG_FORMAT", "text"),
	}
	logger, err := logpkg.ApplyConfig(logCfg)
	if err != nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}
	logpkg.RedirectStdLog(logger)

	store, err := audit.Open(cfg.StoreDir(), cfg.Store.Name)
	if err != nil {
		return err
	}

	db, err := pebblestore.Open(cfg.OpsLogDir())
	if err != nil {
		return err
	}
	defer db.Close()
	journal, err := opslog.Open(db)
	if err != nil {
		return err
	}
	recorder := opslog.NewRecorder(journal, logger)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	msink := metrics.Sink{M: m}

	notifier := buildNotifier(cfg, logger)

	gsrv := grpcserver.New(cfg.Monitor.Service, health.StateUnknown, logger)

	monitor := health.New(health.Options{
		Sampler:   buildSampler(cfg),
		Notifier:  notifier,
		StateFile: cfg.StateFile(),
		Service:   cfg.Monitor.Service,
		Host:      cfg.Monitor.Host,
		Interval:  cfg.MonitorInterval(),
		Logger:    logger,
		Sinks:     []health.TransitionSink{recorder, msink, gsrv},

		OnNotifyFailure: m.NotifyFailures.Inc,
	})

	archiver := retention.New(store, cfg.ArchiveDir(), logger, recorder, msink)

	var reconciler *reconcile.Reconciler
	if cfg.Replica.PeerURL != "" {
		peer := transport.New(cfg.Replica.PeerURL, cfg.ReplicaTimeout())
		reconciler = reconcile.New(store, peer, logger, recorder, msink)
	}

	hsrv := httpserver.New(httpserver.Deps{
		Store:               store,
		Monitor:             monitor,
		Reconciler:          reconciler,
		Archiver:            archiver,
		OpsLog:              journal,
		Registry:            registry,
		Logger:              logger,
		AppendsTotal:        m.AppendsTotal,
		RetentionMaxAgeDays: cfg.Retention.MaxAgeDays,
	})

	logger.Info("starting botops server",
		logpkg.Str("http", cfg.Server.HTTPAddr),
		logpkg.Str("grpc", cfg.Server.GRPCAddr),
		logpkg.Str("store", cfg.StoreDir()),
		logpkg.Str("service", cfg.Monitor.Service),
		logpkg.Str("level", logCfg.Level),
		logpkg.Str("format", logCfg.Format),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, cfg.Server.HTTPAddr); err != nil && sctx.Err() == nil {
			log.Printf("http error: %v", err)
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gsrv.ListenAndServe(sctx, cfg.Server.GRPCAddr); err != nil && sctx.Err() == nil {
			log.Printf("grpc error: %v", err)
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = monitor.Run(sctx)
	}()
	if cfg.OpsLog.MaxAgeDays > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			trimLoop(sctx, journal, cfg.OpsLog.MaxAgeDays, logger)
		}()
	}

	<-sctx.Done()
	hsrv.Close()
	wg.Wait()
	return nil
}

// buildSampler picks the probe. A service configured as a URL is probed over
// HTTP; anything else is treated as a systemd unit on this host.
func buildSampler(cfg cfgpkg.Config) health.Sampler {
	if strings.HasPrefix(cfg.Monitor.Service, "http://") || strings.HasPrefix(cfg.Monitor.Service, "https://") {
		return &health.HTTPSampler{URL: cfg.Monitor.Service}
	}
	return health.NewSystemdSampler(cfg.Monitor.Service)
}

func buildNotifier(cfg cfgpkg.Config, logger logpkg.Logger) notify.Sink {
	sinks := notify.Multi{notify.LogSink{Logger: logger.WithComponent("notify")}}
	if cfg.Notify.Telegram.Token != "" && cfg.Notify.Telegram.ChatID != "" {
		sinks = append(sinks, &notify.Telegram{
			Token:   cfg.Notify.Telegram.Token,
			ChatID:  cfg.Notify.Telegram.ChatID,
			APIBase: cfg.Notify.Telegram.APIBase,
			Timeout: time.Duration(cfg.Notify.Telegram.TimeoutSec) * time.Second,
		})
	}
	if cfg.Notify.NATS.URL != "" {
		if n, err := notify.NewNATS(cfg.Notify.NATS.URL, cfg.Notify.NATS.Subject); err == nil {
			sinks = append(sinks, n)
		} else {
			logger.Warn("nats sink unavailable", logpkg.Err(err))
		}
	}
	return sinks
}

// trimLoop prunes old journal entries once at startup, then daily.
func trimLoop(ctx context.Context, journal *opslog.Log, maxAgeDays int, logger logpkg.Logger) {
	trim := func() {
		cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
		n, err := journal.TrimOlderThan(ctx, cutoff, 1024)
		if err != nil {
			logger.Warn("journal trim failed", logpkg.Err(err))
			return
		}
		if n > 0 {
			logger.Info("journal trimmed", logpkg.Int("entries", n))
		}
	}
	trim()
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			trim()
		}
	}
}
