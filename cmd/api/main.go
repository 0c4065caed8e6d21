package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"face-backend/cmd"
	"face-backend/internal/api"
	"face-backend/internal/core"
	"face-backend/internal/database"
	"face-backend/internal/images"
	"face-backend/internal/messaging"
	"face-backend/internal/recognizer"
	"face-backend/internal/storage"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type APIConfig struct {
	DatabaseURL   string `env:"DATABASE_URL,notEmpty,required"`
	RecognizerURL string `env:"RECOGNIZER_URL,notEmpty,required"`

	// When empty, tasks run on an in-memory queue inside this process instead
	// of going through RabbitMQ to separate workers.
	RabbitMQURL string `env:"RABBITMQ_URL"`

	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
	LocalStorageDir   string `env:"LOCAL_STORAGE_DIR"`

	ImageBucketName       string `env:"IMAGE_BUCKET_NAME" envDefault:"event-images"`
	DiagnosticsBucketName string `env:"DIAGNOSTICS_BUCKET_NAME" envDefault:"face-diagnostics"`

	SingleFacePolicy  string `env:"SINGLE_FACE_POLICY" envDefault:"strict"`
	WorkerConcurrency int    `env:"CONCURRENCY" envDefault:"4"`
	APIPort           string `env:"API_PORT" envDefault:"8001"`
}

func createObjectStore(cfg APIConfig) (storage.ObjectStore, error) {
	if cfg.LocalStorageDir != "" {
		return storage.NewLocalObjectStore(cfg.LocalStorageDir)
	}
	return storage.NewS3ObjectStore(storage.S3ClientConfig{
		Endpoint:        cfg.S3EndpointURL,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	})
}

func main() {
	log.Println("Starting API Server...")

	cmd.LoadEnvFile()

	var cfg APIConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	store, err := createObjectStore(cfg)
	if err != nil {
		log.Fatalf("Failed to create object store: %v", err)
	}

	for _, bucket := range []string{cfg.ImageBucketName, cfg.DiagnosticsBucketName} {
		if err := store.CreateBucket(context.Background(), bucket); err != nil {
			log.Fatalf("Failed to create bucket %s: %v", bucket, err)
		}
	}

	policy, err := core.ParseSingleFacePolicy(cfg.SingleFacePolicy)
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	recognizerClient := recognizer.NewClient(cfg.RecognizerURL)
	pipeline := core.NewPipeline(recognizerClient, recognizerClient, store, cfg.DiagnosticsBucketName, policy)
	matcher := database.NewFaceMatcher(db)
	faces := core.NewFaceService(db, pipeline, matcher)

	var publisher messaging.Publisher
	if cfg.RabbitMQURL != "" {
		rabbitPublisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		publisher = rabbitPublisher
	} else {
		slog.Info("no rabbitmq url configured, processing tasks in-process")
		queue := messaging.NewInMemoryQueue()
		publisher = queue

		processor := core.NewTaskProcessor(db, faces, queue, cfg.WorkerConcurrency)
		processor.Start()
	}
	defer publisher.Close()

	manager := core.NewTaskManager(db, publisher)
	imageService := images.NewImageService(db, store, cfg.ImageBucketName)

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	apiHandler := api.NewBackendService(faces, manager, imageService)

	r.Route("/api/v1", func(r chi.Router) {
		apiHandler.AddRoutes(r)
	})

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}

	// Goroutine for graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	slog.Info("api server listening", "port", cfg.APIPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
	}

	slog.Info("server stopped")
}
