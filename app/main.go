package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/mikan-comb/app/api"
	"github.com/lysyi3m/mikan-comb/app/cfg"
	"github.com/lysyi3m/mikan-comb/app/database"
	"github.com/lysyi3m/mikan-comb/app/detail"
	"github.com/lysyi3m/mikan-comb/app/feed"
	"github.com/lysyi3m/mikan-comb/app/magnet"
	"github.com/lysyi3m/mikan-comb/app/session"
	"github.com/lysyi3m/mikan-comb/app/tasks"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if c == nil {
		return
	}

	level := slog.LevelInfo
	if c.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting Mikan Comb", "version", c.Version, "feed", c.FeedURL)

	site, err := feed.LoadSite(c.SiteFile)
	if err != nil {
		slog.Error("Failed to load site profile", "file", c.SiteFile, "error", err)
		os.Exit(1)
	}
	slog.Info("Site profile loaded", "origin", site.Origin(), "max_items", site.MaxItems, "default_mode", site.DefaultMode)

	var snapshots *database.SnapshotRepo
	if c.DBPath != "" {
		db, err := database.NewConnection(c.DBPath)
		if err != nil {
			slog.Error("Failed to open database", "path", c.DBPath, "error", err)
			os.Exit(1)
		}
		defer db.Close()

		version, dirty, err := database.RunMigrations(db)
		if err != nil {
			slog.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("Database ready", "path", c.DBPath, "migration_version", version, "dirty", dirty)

		snapshots = database.NewSnapshotRepository(db)
	} else {
		slog.Info("Snapshot cache disabled")
	}

	httpClient := &http.Client{Timeout: c.GetRequestTimeout()}

	feedFetcher := feed.NewFetcher(httpClient, c.FeedURL, c.UserAgent)
	detailFetcher := detail.NewFetcher(httpClient, detail.NewExtractor(site.Origin()), c.UserAgent)
	cache := magnet.NewCache(detailFetcher)

	var snapshotRepo database.SnapshotRepository
	if snapshots != nil {
		snapshotRepo = snapshots
	}
	sess := session.New(feedFetcher, feed.NewParser(), feed.NewNormalizer(site.MaxItems), cache, snapshotRepo, c.GetCacheMaxAge())

	// A failed initial load is not fatal; the scheduler retries on its next refresh.
	if _, err := sess.Load(context.Background(), session.Discard{}, false); err != nil {
		slog.Warn("Initial feed load failed", "error", err)
	}

	var pruner tasks.SnapshotPruner
	if snapshots != nil {
		pruner = snapshots
	}
	scheduler := tasks.NewScheduler(sess, pruner, c.FeedURL, site.GetRefreshInterval(),
		c.GetSchedulerInterval(), c.GetCacheMaxAge(), c.WorkerCount)
	scheduler.Start()

	server := api.NewServer(api.NewHandler(sess, c.Version, session.Mode(site.DefaultMode)))

	httpServer := &http.Server{
		Addr:         ":" + c.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // staged export resolves pages one by one
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", c.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	scheduler.Stop()
	sess.Wait()

	slog.Info("Mikan Comb shutdown complete")
}
