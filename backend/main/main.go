package main

import (
	"context"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/text"

	"vukamap/backend/config"
	"vukamap/backend/db"
	"vukamap/backend/metrics"
	"vukamap/backend/pipeline"
	"vukamap/backend/rabbitmq"
	"vukamap/backend/server"
	"vukamap/backend/vision"
	"vukamap/common"
)

func main() {
	log.SetHandler(text.New(os.Stderr))
	cfg := config.Load()
	log.SetLevel(cfg.LogLevel)
	log.Info("Hello!")

	conn, err := common.DBConnect(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to the database: %v", err)
	}
	defer conn.Close()
	if err := db.InitSchema(context.Background(), conn); err != nil {
		log.Fatalf("Failed to initialize the schema: %v", err)
	}
	store := db.New(conn)

	metrics.Register()

	var primary vision.Analyzer
	if cfg.VisionEnabled() {
		primary = vision.NewRemoteAnalyzer(vision.NewAzureClient(cfg.AzureVisionEndpoint, cfg.AzureVisionKey, cfg.VisionTimeout))
	}
	analyzer := vision.NewService(primary, vision.WithTimeout(cfg.VisionTimeout))

	opts := []pipeline.Option{
		pipeline.WithStrictVerification(cfg.StrictVerification),
		pipeline.WithReportMatchKm(cfg.GpsMatchKm),
		pipeline.WithCleanupMatchKm(cfg.CleanupMatchKm),
		pipeline.WithClock(db.Now),
	}
	if cfg.EventsEnabled() {
		publisher, err := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Errorf("Events disabled, failed to create RabbitMQ publisher: %v", err)
		} else {
			defer publisher.Close()
			opts = append(opts, pipeline.WithPublisher(publisher, cfg.AMQPRoutingKeyCreated, cfg.AMQPRoutingKeyResolved))
		}
	}

	p := pipeline.New(store, store, analyzer, opts...)
	if err := server.New(p, store, store).Run(cfg.Port); err != nil {
		log.Errorf("Server stopped: %v", err)
	}
	log.Info("Bye!")
}
