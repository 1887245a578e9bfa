package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/maaaruch/shoppies-bot/internal/app"
	"github.com/maaaruch/shoppies-bot/internal/cache"
	"github.com/maaaruch/shoppies-bot/internal/config"
	"github.com/maaaruch/shoppies-bot/internal/docstore"
	"github.com/maaaruch/shoppies-bot/internal/httpserver"
	"github.com/maaaruch/shoppies-bot/internal/metrics"
	"github.com/maaaruch/shoppies-bot/internal/nomination"
	"github.com/maaaruch/shoppies-bot/internal/omdb"
	"github.com/maaaruch/shoppies-bot/internal/session"
	"github.com/maaaruch/shoppies-bot/internal/storage"
)

var (
	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "shoppies",
	Short:         "Telegram bot for nominating movies to the Shoppies",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		zc := zap.NewProductionConfig()
		if cfg.Debug {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBot(cmd.Context())
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot and the metrics/share HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBot(cmd.Context())
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [title]",
	Short: "Query the movie database directly and print the results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := omdb.New(cfg.OMDbURL, cfg.OMDbAPIKey, &http.Client{Timeout: cfg.HTTPTimeout})
		movies, err := client.Search(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if len(movies) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no movies found")
			return nil
		}
		for _, m := range movies {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", m.ImdbID, m.Label())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd, searchCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runBot(ctx context.Context) error {
	if cfg.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is not set")
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := storage.New(db)
	if err := store.InitSchema(); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	checks := map[string]httpserver.Pinger{"sqlite": store}

	var kv cache.KV = store
	if cfg.CacheBackend == config.CacheRedis {
		r, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer r.Close()
		kv = r
		checks["redis"] = r
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	met := metrics.New(reg)

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	searcher := omdb.New(cfg.OMDbURL, cfg.OMDbAPIKey, httpClient)

	var (
		submitter nomination.Submitter
		shared    httpserver.SubmissionReader
	)
	if cfg.DocStoreURL != "" {
		submitter = docstore.New(cfg.DocStoreURL, cfg.DocStoreKey, httpClient)
	} else {
		logger.Info("DOCSTORE_URL not set, storing submissions locally")
		submitter = docstore.NewLocal(store)
		shared = store
		metrics.RegisterStoredSubmissions(reg, store)
	}

	sessions := session.NewManager(func(userID int64) *nomination.Controller {
		return nomination.NewController(nomination.Options{
			Searcher:     searcher,
			Submitter:    submitter,
			Cache:        cache.ForUser(kv, userID),
			ShareBaseURL: cfg.ShareBaseURL,
			Logger:       logger.Named("nomination"),
			Metrics:      met,
		})
	}, met)

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}
	bot.Debug = cfg.Debug
	logger.Info("bot started", zap.String("username", bot.Self.UserName))

	srv := httpserver.New(cfg.MetricsAddr, httpserver.NewRouter(httpserver.Deps{
		Gatherer:    reg,
		Checks:      checks,
		Submissions: shared,
		Logger:      logger.Named("http"),
	}))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app.New(bot, sessions, logger.Named("app"), cfg.LogSalt).Run(gctx)
		if gctx.Err() == nil {
			return errors.New("telegram update channel closed")
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("shutting down")
	return err
}
