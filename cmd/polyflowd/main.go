// Command polyflowd runs the cross-chain transaction orchestration daemon.
//
// Startup wires the layers in dependency order: configuration, chain and fee
// route tables from Postgres, the event bus, chain connections, the fee quote
// cache, the orchestrator, the notification dispatcher, and the HTTP API.
// Shutdown tears them down in reverse so in-flight transactions drain before
// the infrastructure they depend on goes away.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kamalbuilds/polyflow-ai-sub001/api"
	"github.com/kamalbuilds/polyflow-ai-sub001/chainmanager"
	"github.com/kamalbuilds/polyflow-ai-sub001/chains"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"
	"github.com/kamalbuilds/polyflow-ai-sub001/config"
	"github.com/kamalbuilds/polyflow-ai-sub001/dbconfig"
	"github.com/kamalbuilds/polyflow-ai-sub001/eventbus"
	"github.com/kamalbuilds/polyflow-ai-sub001/feecache"
	"github.com/kamalbuilds/polyflow-ai-sub001/metrics"
	"github.com/kamalbuilds/polyflow-ai-sub001/notifier"
	"github.com/kamalbuilds/polyflow-ai-sub001/orchestrator"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logrus.New()
	logger.SetLevel(cfg.LogrusLevel())

	ctx := context.Background()

	db, err := dbconfig.NewDBConfig(cfg.Database.URL)
	if err != nil {
		logger.WithError(err).Fatal("Invalid database configuration")
	}

	configs, err := db.GetChainConfigs(ctx, true)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load chain configurations")
	}
	if len(configs) == 0 {
		logger.Fatal("No active chains configured")
	}

	table := feecache.NewRouteTable()
	routes, err := db.GetFeeRoutes(ctx, true)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load fee routes")
	}
	for _, route := range routes {
		fee, err := route.FeeAmount()
		if err != nil {
			logger.WithError(err).Warn("Skipping fee route")
			continue
		}
		table.Upsert(route.RouteKey(), feecache.RouteEntry{
			Fee:        fee,
			Duration:   route.Duration(),
			Confidence: route.Confidence,
		})
	}

	logger.WithFields(logrus.Fields{
		"chains":    len(configs),
		"feeRoutes": len(routes),
	}).Info("Configuration loaded")

	bus := eventbus.NewBus(cfg.Events.Workers, cfg.Events.BufferSize, logger)
	bus.Start(ctx)

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	collector.Attach(bus)

	factory := chains.NewConnectionFactory(bus)
	registry := chainmanager.NewConnectionManager(factory, bus, logger)
	for _, chainConfig := range configs {
		connectCtx, cancel := context.WithTimeout(ctx, types.DefaultHandshakeTimeout)
		_, err := registry.Connect(connectCtx, chainConfig)
		cancel()
		if err != nil {
			// Startup continues degraded; /health reports the chain as down.
			logger.WithError(err).WithFields(logrus.Fields{
				"chain":   chainConfig.Name,
				"chainID": chainConfig.ChainID,
			}).Warn("Chain unavailable at startup")
		}
	}

	var store feecache.Store
	var redisStore *feecache.RedisStore
	if cfg.Redis.Enabled {
		redisStore, err = feecache.NewRedisStore(ctx, feecache.RedisOptions{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		}, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		store = redisStore
	} else {
		store = feecache.NewMemoryStore()
	}

	fees := feecache.NewCache(store, table, registry, cfg.Fees.QuoteTTL, collector, logger)

	orch := orchestrator.NewOrchestrator(configs, registry, fees, db, collector, bus, orchestrator.Settings{
		MaxConcurrent:    cfg.Orchestrator.MaxConcurrentTransactions,
		RetryBaseDelay:   cfg.Retry.BaseDelay,
		MaxRetryAttempts: cfg.Retry.MaxAttempts,
	}, logger)
	orch.Scheduler().SetRecorder(collector)

	if err := orch.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start orchestrator")
	}

	channels, kafkaChannel := notificationChannels(cfg, logger)
	dispatcher := notifier.NewDispatcher(channels, cfg.Notifications.RequestTimeout, collector, logger)
	if err := dispatcher.Start(ctx, bus); err != nil {
		logger.WithError(err).Fatal("Failed to start notification dispatcher")
	}

	server := api.NewServer(&api.Config{
		Addr:   cfg.GetHTTPAddr(),
		Core:   orch,
		Bus:    bus,
		Logger: logger,
	})

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.WithField("signal", sig.String()).Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Orchestrator.ShutdownTimeout)
	defer cancel()

	// Stop intake first, then drain in-flight transactions so their final
	// status changes still reach the dispatcher before it stops.
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
	}
	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Orchestrator shutdown failed")
	}
	dispatcher.Stop()
	if kafkaChannel != nil {
		kafkaChannel.Close()
	}
	registry.DisconnectAll()
	bus.Stop()
	if redisStore != nil {
		if err := redisStore.Close(); err != nil {
			logger.WithError(err).Error("Failed to close Redis connection")
		}
	}

	logger.Info("Shutdown complete")
}

// notificationChannels builds the delivery channels that have an endpoint
// configured. The Kafka channel is returned separately so main can flush the
// producer on shutdown.
func notificationChannels(cfg *config.Config, logger *logrus.Logger) ([]notifier.Channel, *notifier.KafkaChannel) {
	var channels []notifier.Channel

	if cfg.Notifications.WebhookURL != "" {
		channels = append(channels, notifier.NewWebhookChannel(
			cfg.Notifications.WebhookURL,
			cfg.Notifications.WebhookSecret,
			cfg.Notifications.RequestTimeout,
		))
	}
	if cfg.Notifications.ChatWebhookURL != "" {
		channels = append(channels, notifier.NewChatChannel(
			cfg.Notifications.ChatWebhookURL,
			cfg.Notifications.RequestTimeout,
		))
	}
	if cfg.Notifications.SMTPAddr != "" && len(cfg.Notifications.EmailTo) > 0 {
		channels = append(channels, notifier.NewEmailChannel(
			cfg.Notifications.SMTPAddr,
			cfg.Notifications.SMTPUsername,
			cfg.Notifications.SMTPPassword,
			cfg.Notifications.EmailFrom,
			cfg.Notifications.EmailTo,
		))
	}

	var kafkaChannel *notifier.KafkaChannel
	if cfg.Kafka.Enabled {
		var err error
		kafkaChannel, err = notifier.NewKafkaChannel(cfg.Kafka.BootstrapServers, cfg.Kafka.StatusTopic)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka producer")
		}
		channels = append(channels, kafkaChannel)
	}

	for _, channel := range channels {
		logger.WithField("channel", channel.Name()).Info("Notification channel registered")
	}

	return channels, kafkaChannel
}
