// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/flyingrobots/blacklight/internal/backup"
	"github.com/flyingrobots/blacklight/internal/config"
	"github.com/flyingrobots/blacklight/internal/metrics"
	"github.com/flyingrobots/blacklight/internal/pipeline"
	"github.com/flyingrobots/blacklight/internal/repository"
	"github.com/flyingrobots/blacklight/internal/scanner"
	"github.com/flyingrobots/blacklight/internal/scheduler"
	"github.com/flyingrobots/blacklight/internal/util"
	"github.com/flyingrobots/blacklight/pkg/log"
)

func main() {
	var flagConfigFile string
	var flagMigrateDB, flagFull, flagOnce bool
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Overwrite the default config options by those specified in `config.json`")
	flag.BoolVar(&flagMigrateDB, "migrate-db", false, "Apply pending schema migrations and print the resulting schema version, then exit")
	flag.BoolVar(&flagFull, "full", false, "Force every discovered file to be fully reprocessed regardless of recorded offsets")
	flag.BoolVar(&flagOnce, "once", false, "Run a single indexing pass and exit instead of starting the scheduler and HTTP surface")
	flag.Parse()

	cfg, err := config.Load(flagConfigFile)
	if err != nil {
		log.Fatalf("config: %s", err.Error())
	}
	log.SetLogLevel(cfg.Log.Level)
	scanner.SetSkipDirs(cfg.Scanner.SkipDirs)

	conn, err := repository.Connect(cfg.DB.Path, &repository.PoolConfig{
		CacheSizeMB: cfg.SQLite.CacheSizeMB,
		MmapSizeMB:  cfg.SQLite.MmapSizeMB,
	})
	if err != nil {
		log.Fatalf("repository: %s", err.Error())
	}

	if flagMigrateDB {
		version, err := repository.SchemaVersion(conn.DB.DB)
		if err != nil {
			log.Fatalf("repository: schema version: %s", err.Error())
		}
		fmt.Printf("schema at version %d\n", version)
		return
	}

	if util.CheckFileExists(cfg.DB.Path) {
		log.Infof("main: database at %s is %d bytes", cfg.DB.Path, util.GetFilesize(cfg.DB.Path))
	}

	roots := make([]string, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		if n := util.GetFilecount(src.Path); n > 0 {
			log.Infof("main: source %q (%s) has %d top-level entries", src.Name, src.Path, n)
		}
		roots = append(roots, src.Path)
	}
	if home, herr := os.UserHomeDir(); herr == nil {
		roots = append(roots, scanner.DiscoverExtraSources(home)...)
	}

	pipe := pipeline.New(conn)
	backuper, err := backup.NewBackuper(conn.DB, backup.Config{Dir: cfg.Backup.Dir, Mode: cfg.Backup.Mode})
	if err != nil {
		log.Fatalf("backup: %s", err.Error())
	}
	pipe.SetBackuper(backuper)
	go logNotifications(pipe)

	if flagOnce {
		report, err := pipe.RunIndex(roots, flagFull)
		if err != nil {
			log.Fatalf("pipeline: %s", err.Error())
		}
		fmt.Println(report.String())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Enrichment itself is an out-of-scope collaborator; this stub only
	// demonstrates the concurrency-bounded seam the scheduler calls into.
	enrich := func(ctx context.Context, limiter *rate.Limiter) error {
		return limiter.Wait(ctx)
	}
	sched, err := scheduler.New(conn, pipe, roots, enrich)
	if err != nil {
		log.Fatalf("scheduler: %s", err.Error())
	}
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("scheduler: %s", err.Error())
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	server := &http.Server{Addr: ":8090", Handler: r}
	go func() {
		log.Infof("main: serving /healthz and /metrics on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("main: http server: %s", err.Error())
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info("main: shutting down")

	cancel()
	if err := sched.Shutdown(); err != nil {
		log.Warnf("main: scheduler shutdown: %s", err.Error())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("main: http server shutdown: %s", err.Error())
	}
}

func logNotifications(pipe *pipeline.Controller) {
	for n := range pipe.Notifications() {
		switch n.Level {
		case pipeline.LevelWarn:
			log.Warn(n.Message)
		default:
			log.Info(n.Message)
		}
	}
}
