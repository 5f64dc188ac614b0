// Package app wires configuration, storage, integrations and the HTTP
// server together and defines the command-line commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/slack-go/slack"

	"github.com/femibol/propel-command-center/internal/api"
	"github.com/femibol/propel-command-center/internal/catalog"
	"github.com/femibol/propel-command-center/internal/config"
	"github.com/femibol/propel-command-center/internal/domain"
	"github.com/femibol/propel-command-center/internal/httpx"
	"github.com/femibol/propel-command-center/internal/integrations/llm"
	"github.com/femibol/propel-command-center/internal/integrations/monday"
	"github.com/femibol/propel-command-center/internal/logger"
	"github.com/femibol/propel-command-center/internal/matcher"
	"github.com/femibol/propel-command-center/internal/notify"
	"github.com/femibol/propel-command-center/internal/pipeline"
	"github.com/femibol/propel-command-center/internal/storage/sqlite"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

// redisEntryMaxAge bounds how long a stale catalog copy survives in Redis.
const redisEntryMaxAge = 24 * time.Hour

type App struct {
	cfg      config.Config
	logger   *log.Logger
	reader   *sqlite.Reader
	redis    *redis.Client
	cache    *catalog.Cache
	reviewer *llm.Reviewer
	pipeline *pipeline.Service
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	lg, err := logger.New(logger.Config{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return nil, err
	}
	httpTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)

	mappings, err := config.LoadDomainMappings(cfg.URLMappingsPath)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, logger: lg, reader: sqlite.NewReader(cfg.TimelyDBPath)}

	var store catalog.Store
	if cfg.RedisURL != "" {
		client, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			lg.Warn("redis unavailable, caching catalog in process", "err", err)
			store = catalog.NewMemoryStore()
		} else {
			a.redis = client
			store = catalog.NewRedisStore(client, redisEntryMaxAge)
		}
	} else {
		store = catalog.NewMemoryStore()
	}

	boardClient := monday.NewClient(httpx.Client(), cfg.MondayAPIURL, cfg.MondayAPIToken, cfg.MondayAPIVersion, lg)
	a.cache = catalog.New(store, catalogFetcher(boardClient, cfg.Boards), cfg.CatalogTTL(), lg)

	a.reviewer = llm.New(llm.Config{
		Provider:        cfg.LLMProvider,
		Model:           cfg.LLMModel,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		BatchSize:       cfg.LLMBatchSize,
		MaxTasks:        cfg.LLMMaxTasks,
	}, httpx.Client(), lg)

	m := matcher.New(mappings, cfg.Proximity())
	a.pipeline = pipeline.New(a.reader, m, a.reviewer, time.Duration(cfg.LLMTimeoutSeconds)*time.Second, lg)

	lg.Info("config loaded",
		"db", a.reader.Path(),
		"boards", len(cfg.Boards),
		"url_mappings", len(mappings),
		"redis", a.redis != nil,
		"llm", cfg.LLMProvider,
		"llm_enabled", cfg.LLMEnabled(),
		"timezone", cfg.Timezone,
		"http_timeout", httpTimeout,
	)
	return a, nil
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis_url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// catalogFetcher returns nil when no board source is configured. A fetch
// fails only when every board failed.
func catalogFetcher(c *monday.Client, boards []config.Board) catalog.FetchFunc {
	if !c.Configured() || len(boards) == 0 {
		return nil
	}
	mb := make([]monday.Board, len(boards))
	for i, b := range boards {
		mb[i] = monday.Board{ID: b.ID, Name: b.Name, ShortName: b.ShortName}
	}
	return func(ctx context.Context) (monday.Catalog, error) {
		cat := c.FetchAll(ctx, mb)
		if len(cat.Errors) > 0 && len(cat.Errors) >= len(mb) {
			return monday.Catalog{}, fmt.Errorf("all %d boards failed: %s", len(mb), strings.Join(cat.Errors, "; "))
		}
		return cat, nil
	}
}

// Tasks returns the cached catalog, or no tasks when it cannot be fetched.
func (a *App) Tasks(ctx context.Context) []domain.Task {
	tasks, err := a.cache.Tasks(ctx)
	if err != nil {
		if !errors.Is(err, catalog.ErrNoFetcher) {
			a.logger.Warn("task catalog unavailable, matching without tasks", "err", err)
		}
		return nil
	}
	return tasks
}

func (a *App) Close() error {
	var errs []error
	errs = append(errs, a.reader.Close())
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}

// Serve runs the HTTP server and the schedulers until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	if err := a.cache.StartRefresher(ctx, a.cfg.CatalogRefreshSchedule, a.cfg.Location); err != nil {
		return err
	}
	if a.cfg.DigestSchedule != "" {
		slackAPI := slack.New(a.cfg.SlackBotToken, slack.OptionHTTPClient(httpx.Client()))
		digest := notify.NewDigest(slackAPI, a.cfg.DigestChannelID, a.weekReport, a.cfg.Location, a.logger)
		if err := digest.Start(ctx, a.cfg.DigestSchedule); err != nil {
			return err
		}
	}

	handler := api.NewHandler(api.Deps{
		Pipeline:    a.pipeline,
		Activity:    a.reader,
		Catalog:     a.cache,
		Reviewer:    a.reviewer,
		Planner:     a.reviewer,
		Logger:      a.logger,
		CORSOrigins: a.cfg.CORSOrigins,
		Version:     Version,
	})
	srv := api.NewServer(a.cfg.ListenAddr, handler)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "addr", srv.Addr, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func (a *App) weekReport(ctx context.Context, start, end string) (pipeline.MatchReport, error) {
	return a.pipeline.Match(ctx, start, end, a.Tasks(ctx), false)
}
