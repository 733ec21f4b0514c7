package main

import (
	"flag"
	"log"
	"os"

	"SpinPull/internal/di"
	"SpinPull/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s store=%s predictor=%s", cfg.Environment, cfg.Store.Backend, cfg.Predictor.Type)

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if cfg.Kafka.Enabled {
		log.Printf("kafka: brokers=%v spins=%s events=%s", cfg.Kafka.Brokers, cfg.Kafka.Topics.Spins, cfg.Kafka.Topics.Events)
	}

	// Run application (blocks until signal)
	err = app.Run()
	cleanup()
	if err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
