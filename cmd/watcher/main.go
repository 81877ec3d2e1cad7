package main

import (
	"context"
	"io"
	"log"
	"os/signal"
	"syscall"
	"time"

	"request-radar/common"
	"request-radar/internal/config"
	"request-radar/internal/fetch"
	"request-radar/internal/notify"
	"request-radar/internal/pipeline"
	"request-radar/internal/scheduler"
	"request-radar/internal/store"
)

const (
	robotsTimeout   = 15 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logStartup(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := newFetchClient(cfg)
	if cfg.RespectRobots {
		robotsCtx, robotsCancel := context.WithTimeout(ctx, robotsTimeout)
		rules, err := client.FetchRobots(robotsCtx, cfg.BaseURL, cfg.UserAgent)
		robotsCancel()
		if err != nil {
			log.Printf("robots.txt fetch failed (will allow all paths): %v", err)
		} else {
			client.UseRobots(rules)
			log.Printf("loaded robots.txt base=%s", cfg.BaseURL)
		}
	}

	opener, err := store.NewOpener(cfg.Store)
	if err != nil {
		log.Fatalf("store: %v", err)
	}

	notifier, closers, err := buildNotifier(cfg)
	if err != nil {
		log.Fatalf("notifier: %v", err)
	}
	defer closeAll(closers)

	var statusStore store.StatusStore
	if cfg.StatusRedisAddr != "" {
		rs := store.NewRedisStatusStore(cfg.StatusRedisAddr, cfg.StatusKeyPrefix, cfg.StatusTTL)
		defer func() {
			if err := rs.Close(); err != nil {
				log.Printf("failed to close status store: %v", err)
			}
		}()
		statusStore = rs
	}

	if cfg.MetricsAddr != "" {
		startMetricsServer(ctx, cfg.MetricsAddr)
	}

	cycle := pipeline.NewCycle(
		pipeline.Config{ListingURL: cfg.ListingURL(), Delay: cfg.DetailDelay},
		pipeline.Deps{
			Fetcher:  client,
			Open:     opener,
			Notifier: notifier,
			Pacer:    pipeline.SleepPacer{},
			Status:   statusStore,
			Observer: metricsObserver{},
		},
	)
	sched, err := scheduler.New(cfg.Schedule, func(ctx context.Context) {
		trackCycle(func() { cycle.Run(ctx) })
	})
	if err != nil {
		log.Fatalf("scheduler: %v", err)
	}
	sched.Start(ctx)
	log.Printf("watcher running listing=%s next=%s", cfg.ListingURL(), sched.Next())

	<-ctx.Done()
	log.Printf("shutdown requested, waiting for running cycles")
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func newFetchClient(cfg config.Config) *fetch.Client {
	metricsProxyURL = cfg.ProxyURL
	return fetch.NewClient(fetch.Options{
		Cookie:            cfg.SessionCookie,
		UserAgent:         cfg.UserAgent,
		Referer:           cfg.ListingURL(),
		RequestsPerSecond: cfg.RequestsPerSecond,
		HTTPClient:        fetch.NewHTTPClient(cfg.ProxyURL),
	})
}

// buildNotifier assembles the enabled channels. The returned closers release
// long-lived producers at shutdown.
func buildNotifier(cfg config.Config) (notify.Fanout, []io.Closer, error) {
	var fanout notify.Fanout
	var closers []io.Closer
	if cfg.NotifyTelegram {
		tg, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, cfg.DescriptionPreview)
		if err != nil {
			return nil, nil, err
		}
		fanout = append(fanout, tg)
	}
	if cfg.KafkaBroker != "" {
		producer := notify.NewKafkaNotifier(cfg.KafkaBroker, cfg.KafkaEventsTopic)
		fanout = append(fanout, producer)
		closers = append(closers, producer)
	}
	if len(fanout) == 0 {
		log.Printf("no notification channel enabled; new requests will only be stored")
	}
	return fanout, closers, nil
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			log.Printf("failed to close notifier: %v", err)
		}
	}
}

func logStartup(cfg config.Config) {
	log.Printf("config listing=%s schedule=%q delay=%s store=%s", cfg.ListingURL(), cfg.Schedule, cfg.DetailDelay, cfg.Store.Driver)
	log.Printf("config cookie=%s user_agent=%q", common.Mask(cfg.SessionCookie), cfg.UserAgent)
	if cfg.NotifyTelegram {
		log.Printf("config telegram_token=%s chat=%s", common.Mask(cfg.TelegramToken), cfg.TelegramChatID)
	}
	if cfg.KafkaBroker != "" {
		log.Printf("config kafka broker=%s topic=%s", cfg.KafkaBroker, cfg.KafkaEventsTopic)
	}
	if cfg.StatusRedisAddr != "" {
		log.Printf("config status redis=%s", cfg.StatusRedisAddr)
	}
	if cfg.ProxyURL != "" {
		log.Printf("config proxy=%s", cfg.ProxyURL)
	}
}
