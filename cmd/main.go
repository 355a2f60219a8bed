package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trackchain/custody-service/config"
	httpapi "github.com/trackchain/custody-service/handler/http"
	"github.com/trackchain/custody-service/internal/catalog"
	"github.com/trackchain/custody-service/internal/checkpoint"
	"github.com/trackchain/custody-service/internal/custody"
	"github.com/trackchain/custody-service/internal/notify"
	"github.com/trackchain/custody-service/internal/planner"
	"github.com/trackchain/custody-service/pkg/kafka"
	"github.com/trackchain/custody-service/pkg/logger"
	"github.com/trackchain/custody-service/pkg/metrics"
	"github.com/trackchain/custody-service/pkg/rabbitmq"
	"github.com/trackchain/custody-service/store"
)

func main() {
	cfg := config.LoadConfig()
	log := logger.NewLogger()

	db, err := store.NewPostgresStore(cfg.GetDBURL())
	if err != nil {
		log.Fatal("failed to connect to postgres", "error", err)
	}
	defer db.Close()
	log.Info("connected to postgres", "host", cfg.DBHost, "database", cfg.DBName)

	// Kafka is optional: without a broker the service runs, downstream
	// trackers just get no event stream.
	var producer kafka.Publisher
	if cfg.KafkaBroker != "" {
		producer = kafka.NewKafkaProducer(cfg.KafkaBroker, cfg.KafkaTopic)
		log.Info("kafka producer ready", "broker", cfg.KafkaBroker, "topic", cfg.KafkaTopic)
	}

	// RabbitMQ carries pending-acceptance notifications to quick-accept UIs.
	// Also optional.
	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.RabbitHost != "" {
		client, err := rabbitmq.NewClient(cfg.GetRabbitMQURL())
		if err != nil {
			log.Fatal("failed to connect to rabbitmq", "error", err)
		}
		defer client.Close()
		amqpNotifier, err := notify.NewAMQPNotifier(client, cfg.NotifyQueue, log)
		if err != nil {
			log.Fatal("failed to declare notification queue", "error", err)
		}
		notifier = amqpNotifier
		log.Info("rabbitmq notifier ready", "queue", cfg.NotifyQueue)
	}

	m := metrics.NewMetrics("custody")

	registry := checkpoint.NewRegistry(db, log)
	catalogSvc := catalog.NewService(db, log)
	plannerSvc := planner.NewPlanner(db, producer, notifier, m, log)
	machine := custody.NewMachine(db, db, producer, notifier, m, log)

	server := httpapi.NewServer(registry, catalogSvc, plannerSvc, machine, m, log)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		log.Info("custody service listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	log.Info("stopped")
}
