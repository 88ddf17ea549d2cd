package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"frontdesk/internal/api"
	"frontdesk/internal/billing"
	"frontdesk/internal/config"
	"frontdesk/internal/domain"
	"frontdesk/internal/events"
	"frontdesk/internal/export"
	"frontdesk/internal/logging"
	"frontdesk/internal/metrics"
	"frontdesk/internal/notify"
	"frontdesk/internal/reconcile"
	"frontdesk/internal/service"
	"frontdesk/internal/state"
	"frontdesk/internal/store"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	feed := initChangeFeed(ctx, cfg, logger)
	defer feed.Close()

	db, err := initStore(ctx, cfg, feed, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	stateStore := state.NewStore(logger)
	eventBus := events.NewEventBus()

	revenue := billing.NewRevenueTracker(func(total float64) {
		metrics.SetRevenue(total)
		metrics.IncEvent(events.EventRevenueChanged)
		if err := eventBus.PublishJSON(events.EventRevenueChanged, events.RevenuePayload{Amount: total}); err != nil {
			logger.Error().Err(err).Msg("publish revenue event")
		}
	})

	invoiceService := service.NewInvoiceService(db, revenue, nil, logger)

	reconciler := reconcile.New(stateStore, db, reconcile.Options{
		Debounce:     time.Duration(cfg.Engine.DebounceMillis) * time.Millisecond,
		PollInterval: time.Duration(cfg.Engine.PollIntervalSeconds) * time.Second,
		Retry: reconcile.RetryPolicy{
			MaxRetries:    cfg.Engine.RetryMaxAttempts,
			InitialDelay:  time.Duration(cfg.Engine.RetryInitialDelayMS) * time.Millisecond,
			MaxDelay:      time.Duration(cfg.Engine.RetryMaxDelaySec) * time.Second,
			BackoffFactor: 2,
		},
		PostApply: invoiceService.Refresh,
	}, logger)

	invoiceService.SetScheduler(reconciler)
	deskService := service.NewDeskService(stateStore, db, eventBus, reconciler, logger)
	subscribeRefreshEvents(eventBus, reconciler, logger)

	feedCh, err := feed.Subscribe(ctx,
		domain.CollectionRooms,
		domain.CollectionReservations,
		domain.CollectionGuests,
		domain.CollectionInvoices,
	)
	if err != nil {
		return fmt.Errorf("subscribe to change feed: %w", err)
	}
	go reconciler.Run(ctx, feedCh)

	// First fetch populates the snapshot before any surface reads it.
	if err := reconciler.Reconcile(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial reconciliation failed, snapshot stays stale")
	}

	reporter := export.NewReporter(cfg.Exports.Path, logger)
	go runDailyReport(ctx, reporter, deskService, invoiceService, logger)

	if cfg.Monitoring.PrometheusEnabled {
		go serveMetrics(cfg.Monitoring.PrometheusPort, logger)
	}

	if cfg.API.Enabled {
		apiServer := api.NewHTTPServer(cfg.API, deskService, invoiceService, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = apiServer.Shutdown(shutdownCtx)
		}()
	}

	logger.Info().Msg("frontdesk engine running")
	<-ctx.Done()
	return nil
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := baseLogger.With().Str("component", "frontdesk-main").Logger()
	return cfg, &logger, closer, nil
}

func initChangeFeed(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) domain.ChangeFeed {
	memory := notify.NewMemoryFeed()
	if cfg.Redis.Address == "" {
		logger.Info().Msg("redis not configured, change feed is in-process only")
		return memory
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	primary := notify.NewRedisFeed(client)
	if err := primary.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, starting on fallback feed")
	}
	return notify.NewFailoverFeed(primary, memory, logger)
}

func initStore(ctx context.Context, cfg *config.Config, feed domain.ChangeFeed, logger *zerolog.Logger) (*store.DB, error) {
	db, err := store.Open(cfg.Database.Path, feed, logger)
	if err != nil {
		logger.Error().Err(err).Msg("store initialization failed")
		return nil, err
	}

	// Provision configured inventory; existing status/guest columns are
	// kept so a restart does not clobber live occupancy.
	for _, room := range cfg.Rooms {
		if err := db.UpsertRoom(ctx, room); err != nil {
			logger.Error().Err(err).Int64("room_id", room.ID).Msg("room provisioning failed")
		}
	}
	return db, nil
}

// subscribeRefreshEvents honors the force-refresh flag: events marked with
// it trigger a full fetch instead of a local patch.
func subscribeRefreshEvents(bus *events.EventBus, reconciler domain.ReconcileScheduler, logger *zerolog.Logger) {
	handler := func(event *events.Event) error {
		var flagged struct {
			ForceRefresh bool `json:"force_refresh"`
		}
		if err := json.Unmarshal(event.Payload, &flagged); err != nil {
			logger.Warn().Err(err).Str("event_type", event.Type).Msg("undecodable event payload")
			return nil
		}
		if flagged.ForceRefresh {
			reconciler.Schedule("force refresh: " + event.Type)
		}
		return nil
	}
	bus.Subscribe(events.EventRoomStatusChanged, handler)
	bus.Subscribe(events.EventOccupancyChanged, handler)
}

func runDailyReport(ctx context.Context, reporter *export.Reporter, desk *service.DeskService, invoices *service.InvoiceService, logger *zerolog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rooms := desk.GetRooms(service.RoomFilter{}, "number")
			if _, err := reporter.WriteDailyReport(rooms, invoices.ListInvoices(), invoices.Revenue()); err != nil {
				logger.Error().Err(err).Msg("daily report failed")
			}
		}
	}
}

func serveMetrics(port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Info().Str("addr", addr).Msg("metrics listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
