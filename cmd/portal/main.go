package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"roadside-portal/internal/feed"
	"roadside-portal/internal/handlers"
	"roadside-portal/internal/portal"
	"roadside-portal/internal/service"
	"roadside-portal/internal/signup"
	"roadside-portal/internal/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	kinesisService "github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/gorilla/mux"
)

func main() {
	// Setup structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(getEnv("LOG_LEVEL", "info")),
	}))
	slog.SetDefault(logger)

	// Get configuration from environment
	port := getEnv("PORT", "8082")
	demoMode := getEnv("DEMO_MODE", "false") == "true"
	demoInterval := getEnvDuration("DEMO_INTERVAL", "20s")
	storageType := getEnv("STORAGE_TYPE", "memory")
	region := getEnv("AWS_REGION", "ap-south-1")
	streamName := getEnv("KINESIS_JOB_EVENTS_STREAM", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var awsCfg *aws.Config
	loadAWSConfig := func() aws.Config {
		if awsCfg == nil {
			cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
			if err != nil {
				slog.Error("Failed to load AWS config", "error", err)
				os.Exit(1)
			}
			awsCfg = &cfg
		}
		return *awsCfg
	}

	// Initialize storage based on configuration
	var jobStorage storage.JobStorage
	var technicianStorage storage.TechnicianStorage
	var applicationStore signup.ApplicationStore
	switch storageType {
	case "dynamodb":
		jobsTable := getEnv("DYNAMODB_JOBS_TABLE", "roadside-jobs")
		updatesTable := getEnv("DYNAMODB_JOB_UPDATES_TABLE", "roadside-job-updates")
		techniciansTable := getEnv("DYNAMODB_TECHNICIANS_TABLE", "roadside-technician-availability")
		applicationsTable := getEnv("DYNAMODB_APPLICATIONS_TABLE", "roadside-technician-applications")

		dynamoClient := dynamodb.NewFromConfig(loadAWSConfig())
		jobStorage = storage.NewDynamoDBJobStorage(dynamoClient, jobsTable, updatesTable)
		technicianStorage = storage.NewDynamoDBTechnicianStorage(dynamoClient, techniciansTable)
		applicationStore = signup.NewDynamoDBApplicationStore(dynamoClient, applicationsTable)
		slog.Info("Using DynamoDB storage",
			"jobs_table", jobsTable,
			"updates_table", updatesTable,
			"technicians_table", techniciansTable,
			"applications_table", applicationsTable)
	default:
		jobStorage = storage.NewMemoryJobStorage()
		technicianStorage = storage.NewMemoryTechnicianStorage()
		applicationStore = signup.NewMemoryApplicationStore()
		slog.Info("Using in-memory storage")
	}

	// Sessions always subscribe to the local broker. With Kinesis configured, writes go to
	// the stream and a consumer feeds the broker, so every instance sees every change.
	broker := feed.NewBroker()
	var publisher feed.Publisher = broker
	consumerDone := make(chan struct{})

	if streamName != "" {
		kinesisClient := kinesisService.NewFromConfig(loadAWSConfig())
		publisher = feed.NewStreamer(kinesisClient, streamName)

		consumer := feed.NewConsumer(kinesisClient, streamName, broker)
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Job change consumer stopped", "error", err)
			}
		}()
		slog.Info("Kinesis job change feed enabled", "stream", streamName)
	} else {
		close(consumerDone)
	}

	// Initialize services
	jobService := service.NewJobService(jobStorage, publisher)
	availabilityService := service.NewAvailabilityService(technicianStorage)
	sessions := portal.NewRegistry(ctx, jobService, broker)

	// Initialize demo request generator
	demoGenerator := service.NewDemoRequestGenerator(jobService, demoInterval)
	if demoMode {
		demoGenerator.Start() // Auto-start in demo mode
		slog.Info("Demo mode enabled", "request_generation_interval", demoInterval)
	}

	// Setup routes
	router := mux.NewRouter()

	// Use path prefix if running behind load balancer
	apiRouter := router
	if pathPrefix := getEnv("PATH_PREFIX", ""); pathPrefix != "" {
		apiRouter = router.PathPrefix(pathPrefix).Subrouter()
	}
	handlers.NewHTTPHandler(jobService, availabilityService, sessions).RegisterRoutes(apiRouter)
	handlers.NewSignupHandler(applicationStore).RegisterRoutes(apiRouter)
	handlers.NewDemoHandler(demoGenerator).RegisterRoutes(apiRouter)

	// Add CORS middleware for frontend
	router.Use(corsMiddleware)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Setup graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		slog.Info("Technician portal starting", "port", port, "storage", storageType)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Technician portal failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	<-c
	slog.Info("Technician portal shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}

	demoGenerator.Stop()
	sessions.CloseAll()
	cancel()
	<-consumerDone
	broker.Close()
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration gets duration from environment variable
func getEnvDuration(key, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil || duration <= 0 {
		slog.Warn("Invalid duration, using default", "provided", value, "default", defaultValue, "error", err)
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}

func parseLogLevel(value string) slog.Level {
	switch strings.ToLower(value) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// corsMiddleware adds CORS headers for frontend access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
