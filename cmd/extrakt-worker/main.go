// extrakt-worker is the standalone extraction pipeline worker process: it
// polls the durable job queue, runs each job through the coordinator, and
// exposes a health endpoint for its pod.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/tarsy-labs/extrakt/pkg/config"
	"github.com/tarsy-labs/extrakt/pkg/coordinator"
	"github.com/tarsy-labs/extrakt/pkg/database"
	"github.com/tarsy-labs/extrakt/pkg/document"
	"github.com/tarsy-labs/extrakt/pkg/entitycontext"
	"github.com/tarsy-labs/extrakt/pkg/events"
	"github.com/tarsy-labs/extrakt/pkg/external"
	"github.com/tarsy-labs/extrakt/pkg/graph"
	"github.com/tarsy-labs/extrakt/pkg/linker"
	"github.com/tarsy-labs/extrakt/pkg/llm"
	"github.com/tarsy-labs/extrakt/pkg/queue"
	"github.com/tarsy-labs/extrakt/pkg/ratelimit"
	"github.com/tarsy-labs/extrakt/pkg/schemapack"
	"github.com/tarsy-labs/extrakt/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	gin.SetMode(getEnv("GIN_MODE", "debug"))

	podID := getEnv("POD_ID", uuid.NewString())

	log.Printf("Starting %s", version.Full())
	log.Printf("Pod ID: %s", podID)
	log.Printf("Config Directory: %s", *configDir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load database config: %v", err)
	}

	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("Error closing database client: %v", err)
		}
	}()
	log.Println("Connected to PostgreSQL database")

	graphSvc := buildGraphService()
	llmProvider := buildLLMProvider()
	defer func() {
		if closer, ok := llmProvider.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}()

	packs, err := external.NewFilePackService(getEnv("SCHEMA_PACK_DIR", filepath.Join(*configDir, "schema_packs")))
	if err != nil {
		log.Fatalf("Failed to load schema packs: %v", err)
	}

	resolver := graph.NewResolver(graphSvc)

	deps := coordinator.Deps{
		Projects:  external.NewSQLProjectStore(dbClient.DB()),
		DB:        dbClient.DB(),
		Defaults:  cfg.Defaults,
		RateLimit: cfg.RateLimit,
		Limiter:   ratelimit.New(cfg.RateLimit),
		Schemas:   schemapack.New(packs, nil, cfg.Defaults),
		Documents: document.New(
			external.UnconfiguredDocumentsService{},
			external.UnconfiguredChunkerService{},
			nil,
			external.NoopEmbeddingsService{},
			cfg.Defaults.EmbeddingsEnabled,
		),
		Context:    entitycontext.New(external.NoopEmbeddingsService{}, graphSvc),
		LLM:        llm.New(llmProvider),
		Verifier:   nil,
		Linker:     linker.New(graphSvc, external.NoopEmbeddingsService{}),
		Writer:     graph.New(graphSvc),
		Resolver:   resolver,
		RelWriter:  graph.NewRelationshipWriter(graphSvc, resolver),
		Graph:      graphSvc,
		Tracer:     events.OtelTracer{},
		StepLogger: events.SlogStructuredLogger{},
		Notifier:   events.SlogNotifier{},
	}
	processor := coordinator.New(deps)

	store := queue.NewStore(dbClient.Client)
	pool := queue.NewPool(podID, store, cfg.Queue, processor)
	if cfg.Queue.Enabled {
		if err := pool.Start(ctx); err != nil {
			log.Fatalf("Failed to start queue pool: %v", err)
		}
	} else {
		log.Println("Queue polling disabled (queue.enabled=false), health server only")
	}

	router := gin.Default()
	router.GET("/health", func(c *gin.Context) {
		reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		dbHealth, err := database.Health(reqCtx, dbClient.DB())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": dbHealth,
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"version":  version.Full(),
			"database": dbHealth,
			"queue":    pool.Health(),
		})
	})

	server := &http.Server{Addr: ":" + httpPort, Handler: router}
	go func() {
		log.Printf("HTTP server listening on :%s", httpPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutdown signal received")

	pool.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	log.Println("extrakt-worker stopped")
}

// buildGraphService selects the GraphService implementation for this
// process. This standalone binary runs its graph store in-process, the same
// single-process default external.InMemoryGraphService documents itself
// for; any GRAPH_BACKEND value other than "in-memory" aborts startup.
func buildGraphService() external.GraphService {
	if getEnv("GRAPH_BACKEND", "in-memory") != "in-memory" {
		log.Fatalf("no external graph backend adapter is wired into this binary; set GRAPH_BACKEND=in-memory or build one")
	}
	return external.NewInMemoryGraphService()
}

// buildLLMProvider dials the extraction gRPC sidecar named by
// LLM_GRPC_ADDR, the one production external.LLMProvider adapter this
// module ships.
func buildLLMProvider() external.LLMProvider {
	addr := getEnv("LLM_GRPC_ADDR", "localhost:50051")
	model := os.Getenv("LLM_MODEL")

	provider, err := llm.NewGRPCProvider(addr, model)
	if err != nil {
		log.Fatalf("Failed to connect to extraction gRPC service at %s: %v", addr, err)
	}
	return provider
}
