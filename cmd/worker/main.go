package main

import (
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"face-backend/cmd"
	"face-backend/internal/core"
	"face-backend/internal/database"
	"face-backend/internal/messaging"
	"face-backend/internal/recognizer"
	"face-backend/internal/storage"

	"github.com/caarlos0/env/v11"
)

type WorkerConfig struct {
	DatabaseURL   string `env:"DATABASE_URL,notEmpty,required"`
	RabbitMQURL   string `env:"RABBITMQ_URL,notEmpty,required"`
	RecognizerURL string `env:"RECOGNIZER_URL,notEmpty,required"`

	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
	LocalStorageDir   string `env:"LOCAL_STORAGE_DIR"`

	DiagnosticsBucketName string `env:"DIAGNOSTICS_BUCKET_NAME" envDefault:"face-diagnostics"`

	SingleFacePolicy  string `env:"SINGLE_FACE_POLICY" envDefault:"strict"`
	WorkerConcurrency int    `env:"CONCURRENCY" envDefault:"4"`
}

func main() {
	log.Println("Starting Worker...")

	cmd.LoadEnvFile()

	var cfg WorkerConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	var store storage.ObjectStore
	if cfg.LocalStorageDir != "" {
		store, err = storage.NewLocalObjectStore(cfg.LocalStorageDir)
	} else {
		store, err = storage.NewS3ObjectStore(storage.S3ClientConfig{
			Endpoint:        cfg.S3EndpointURL,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	}
	if err != nil {
		log.Fatalf("Failed to create object store: %v", err)
	}

	policy, err := core.ParseSingleFacePolicy(cfg.SingleFacePolicy)
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	recognizerClient := recognizer.NewClient(cfg.RecognizerURL)
	pipeline := core.NewPipeline(recognizerClient, recognizerClient, store, cfg.DiagnosticsBucketName, policy)
	matcher := database.NewFaceMatcher(db)
	faces := core.NewFaceService(db, pipeline, matcher)

	reciever, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}

	processor := core.NewTaskProcessor(db, faces, reciever, cfg.WorkerConcurrency)
	processor.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker")
	processor.Stop()
}
