package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mvdbosch/bookwish/internal/api"
	"github.com/mvdbosch/bookwish/internal/config"
	"github.com/mvdbosch/bookwish/internal/ingest"
	"github.com/mvdbosch/bookwish/internal/logger"
	"github.com/mvdbosch/bookwish/internal/mail"
	"github.com/mvdbosch/bookwish/internal/search"
	"github.com/mvdbosch/bookwish/internal/store"
	"github.com/mvdbosch/bookwish/internal/submit"
	"github.com/mvdbosch/bookwish/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogPretty)
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", logger.Error(err))
	}
}

func run(cfg config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	st, err := store.New(db)
	if err != nil {
		return err
	}

	// Items stuck in searching from a previous crash go back to pending.
	if n, err := st.ResetStaleSearching(ctx); err != nil {
		return err
	} else if n > 0 {
		log.Warn("reset stale searching items", logger.Int64("count", n))
	}

	if cfg.WishlistFile != "" {
		n, err := ingest.MigrateFromFile(ctx, cfg.WishlistFile, st, log)
		if err != nil {
			log.Error("wishlist file migration failed", logger.Error(err))
		} else if n > 0 {
			log.Info("migrated wishlist file",
				logger.String("path", cfg.WishlistFile),
				logger.Int("items", n))
		}
	}

	searcher := search.NewClient(cfg.Spotweb.BaseURL, cfg.Spotweb.APIKey, cfg.Spotweb.Category)
	submitter := submit.NewClient(cfg.Sab.BaseURL, cfg.Sab.APIKey, cfg.Sab.Category)

	w := worker.New(st, searcher, submitter, log, worker.Options{
		Interval:      cfg.Worker.Interval,
		BatchSize:     cfg.Worker.BatchSize,
		SearchTimeout: cfg.Worker.SearchTimeout,
		SubmitTimeout: cfg.Worker.SubmitTimeout,
		ItemPause:     cfg.Worker.ItemPause,
		LogRetention:  cfg.Worker.LogRetention,
	})
	go w.Start(ctx)

	mailCfg := mail.Config{
		Server:         cfg.Email.Server,
		Port:           cfg.Email.Port,
		Address:        cfg.Email.Address,
		Password:       cfg.Email.Password,
		Folder:         cfg.Email.Folder,
		AllowedSenders: cfg.Email.AllowedSenders,
		Interval:       cfg.Email.Interval,
	}
	if mailCfg.Enabled() {
		go mail.NewMonitor(mailCfg, st, log).Start(ctx)
	} else {
		log.Info("email monitor disabled, no account configured")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.New(st, w, log).Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", logger.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
