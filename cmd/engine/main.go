package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/tagflow/engine/internal/bus"
	"github.com/tagflow/engine/internal/config"
	"github.com/tagflow/engine/internal/execctx"
	"github.com/tagflow/engine/internal/executor"
	"github.com/tagflow/engine/internal/library"
	"github.com/tagflow/engine/internal/nodes"
	"github.com/tagflow/engine/internal/obslog"
	"github.com/tagflow/engine/internal/registry"
	"github.com/tagflow/engine/internal/runtimecache"
	"github.com/tagflow/engine/internal/sandbox"
	"github.com/tagflow/engine/internal/scan"
	"github.com/tagflow/engine/internal/store"
	"github.com/tagflow/engine/internal/store/migrations"
	"github.com/tagflow/engine/pkg/logger"
	"github.com/tagflow/engine/pkg/version"
)

func main() {
	log := logrus.WithField("app", "tagflow-engine")
	log.Infof("starting %s", version.FullVersion())

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	baseLog := logger.New(cfg.Logging)
	scopedLog := obslog.New(baseLog.Logger)

	if err := migrations.Up(cfg.Database.DSN); err != nil {
		log.WithError(err).Fatal("run migrations")
	}

	db, err := store.Open(cfg.Database, cfg.TSDB)
	if err != nil {
		log.WithError(err).Fatal("open store")
	}
	defer db.Close()

	var msgBus *bus.PostgresBus
	if cfg.Bus.DSN != "" {
		msgBus, err = bus.Open(cfg.Bus.DSN)
		if err != nil {
			log.WithError(err).Fatal("open message bus")
		}
		defer msgBus.Close()
	}

	var redisClient *redis.Client
	if cfg.RuntimeCache.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RuntimeCache.Addr,
			Password: cfg.RuntimeCache.Password,
			DB:       cfg.RuntimeCache.DB,
		})
	}
	cache := runtimecache.New(redisClient)

	var fs sandbox.FS
	if roots := cfg.Flow.Script.AllowedPathList(); len(roots) > 0 {
		restricted, err := sandbox.NewRestrictedFS(roots)
		if err != nil {
			log.WithError(err).Fatal("build restricted script filesystem")
		}
		fs = restricted
	}

	reg := registry.New()
	if err := nodes.RegisterBuiltins(reg); err != nil {
		log.WithError(err).Fatal("register built-in node types")
	}

	granted := map[string]bool{"tags.read": true, "tags.write": true, "flow.state": true}
	libManager := library.New(cfg.Library.Root, reg, granted)
	if summary, err := libManager.LoadAllLibraries(db); err != nil {
		log.WithError(err).Fatal("load node libraries")
	} else if len(summary.Failed) > 0 {
		log.Warnf("node libraries loaded with failures: %+v", summary.Failed)
	}

	services := execctx.Services{Store: db, Cache: cache, FS: fs}
	if msgBus != nil {
		services.Bus = msgBus
	}

	exec := executor.New(reg, services, db, scopedLog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	docs, err := db.ListDeployedFlows(ctx)
	if err != nil {
		log.WithError(err).Fatal("list deployed flows")
	}

	cron := scan.NewCronTrigger(exec, scopedLog)
	var loops []*scan.Loop
	for _, doc := range docs {
		if doc.TriggerSchedule != "" {
			if err := cron.Add(doc); err != nil {
				log.WithError(err).Errorf("register schedule for flow %s", doc.ID)
			}
			continue
		}
		loop := scan.New(doc, exec, cache, scopedLog, scan.Options{
			Period:         time.Duration(cfg.Flow.Scan.DefaultMS) * time.Millisecond,
			BudgetFraction: cfg.Flow.Scan.BudgetFraction,
		})
		loops = append(loops, loop)
		go loop.Start(ctx)
	}
	cron.Start()

	log.Infof("tagflow-engine running: %d scanned flows, %d scheduled flows", len(loops), len(docs)-len(loops))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	cron.Stop()
	for _, loop := range loops {
		loop.Stop()
	}
	cancel()
}
