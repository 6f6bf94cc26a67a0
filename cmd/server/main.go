package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"dental-intake-bot/internal/config"
	"dental-intake-bot/internal/intake"
	"dental-intake-bot/internal/platform/middleware"
	"dental-intake-bot/internal/platform/sheets"
	"dental-intake-bot/internal/platform/telegram"
	"dental-intake-bot/internal/report"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "dentalbot",
		Short:        "Telegram data-entry bot for dental examination records",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(checkCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg == nil || cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	if cfg != nil {
		if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && lvl != zerolog.NoLevel {
			logger = logger.Level(lvl)
		}
	}
	return logger
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and its HTTP endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, newLogger(cfg))
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	sink, closeSink, err := openSink(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer closeSink()

	counters, err := recoverCounters(ctx, cfg.Sink, sink, logger)
	if err != nil {
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	tgClient := telegram.NewClient(cfg.TelegramBotToken, cfg.TelegramAPIURL)
	if me, err := tgClient.GetMe(ctx); err != nil {
		logger.Warn().Err(err).Msg("getMe failed")
	} else {
		logger.Info().Str("bot", me.Username).Msg("telegram bot authenticated")
	}

	var archiver intake.Archiver
	if cfg.ArchiveChatID != 0 {
		archiver = report.NewService(tgClient, cfg.ArchiveChatID, cfg.PDFFontPath, logger)
	}

	svc := intake.NewService(
		intake.NewMemoryStore(),
		intake.NewTelegramMessenger(tgClient, logger),
		sink,
		intake.NewProjector(counters, loc),
		archiver,
		logger,
	)

	// queued events finish even after shutdown starts
	dispatcher := intake.NewDispatcher(context.WithoutCancel(ctx))
	handler := intake.NewHandler(svc, dispatcher, tgClient, cfg.TelegramWebhookSecret, logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))
	if cfg.TelegramMode == config.ModeWebhook {
		intake.RegisterRoutes(r, handler)
	} else {
		intake.RegisterRoutes(r, nil)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Str("mode", cfg.TelegramMode).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	switch cfg.TelegramMode {
	case config.ModeWebhook:
		g.Go(func() error {
			if err := tgClient.SetWebhook(gctx, cfg.TelegramWebhookURL, cfg.TelegramWebhookSecret); err != nil {
				return fmt.Errorf("set webhook: %w", err)
			}
			logger.Info().Str("url", cfg.TelegramWebhookURL).Msg("webhook registered")
			return nil
		})
	default:
		if err := tgClient.DeleteWebhook(ctx); err != nil {
			logger.Warn().Err(err).Msg("deleteWebhook failed")
		}
		poller := telegram.NewPoller(tgClient, cfg.PollTimeout(), handler.HandleUpdate, logger)
		g.Go(func() error {
			return poller.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	dispatcher.Wait()
	logger.Info().Msg("server stopped")
	return err
}

// recoverCounters reads the last persisted numbers. Postgres refuses to
// start without them since seq is its primary key. The sheet has no such
// constraint, so a failed read there only logs and numbering starts at 0.
func recoverCounters(ctx context.Context, kind string, sink intake.Sink, logger zerolog.Logger) (intake.Counters, error) {
	counters, err := sink.RecoverCounters(ctx)
	if err != nil {
		if kind == config.SinkPostgres {
			return intake.Counters{}, fmt.Errorf("counter recovery: %w", err)
		}
		logger.Warn().Err(err).Str("sink", kind).Msg("counter recovery failed, numbering starts at 0")
		return intake.Counters{}, nil
	}
	logger.Info().
		Int64("last_sequence", counters.LastSequence).
		Int64("last_record_id", counters.LastRecordID).
		Msg("counters recovered")
	return counters, nil
}

// openSink builds the configured sink. Postgres runs pending migrations
// when migrateUp is set.
func openSink(ctx context.Context, cfg *config.Config, logger zerolog.Logger, migrateUp bool) (intake.Sink, func(), error) {
	switch cfg.Sink {
	case config.SinkPostgres:
		db, err := openDB(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		if migrateUp {
			if err := runMigrations(cfg, logger, true); err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		return intake.NewPostgresSink(db, logger), func() { db.Close() }, nil
	default:
		s, err := openSheets(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
}

func openSheets(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*sheets.Sink, error) {
	creds, err := cfg.GoogleCredentialsJSON()
	if err != nil {
		return nil, err
	}
	return sheets.New(ctx, sheets.Config{
		SpreadsheetID:   cfg.SpreadsheetID,
		SheetName:       cfg.SheetName,
		CredentialsFile: cfg.GoogleCredentialsFile,
		CredentialsJSON: creds,
	}, logger)
}

// openDB retries the first ping while the database comes up.
func openDB(ctx context.Context, url string, logger zerolog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			logger.Info().Msg("connected to database")
			return db, nil
		}
		logger.Warn().Err(err).Int("attempt", i+1).Msg("waiting for database")
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	db.Close()
	return nil, fmt.Errorf("could not connect to database: %w", err)
}
