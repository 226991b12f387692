/**
 * @description
 * This is the main entry point for the wallet-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, the aggregation provider client, message brokers, repositories,
 * the core application service, and the HTTP server. It wires everything
 * together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Distributed sync rate limiting.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/aggregatorclient: Client for the transaction aggregation provider API.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/pennyflow/wallet-service/internal/api"
	"github.com/pennyflow/wallet-service/internal/app"
	"github.com/pennyflow/wallet-service/internal/config"
	"github.com/pennyflow/wallet-service/internal/store"
	"github.com/pennyflow/wallet-service/pkg/aggregatorclient"
	"github.com/pennyflow/wallet-service/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"internal api key must be configured\" env=INTERNAL_API_KEY")
	}
	if strings.TrimSpace(cfg.CredentialKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"credential encryption key must be configured\" env=CREDENTIAL_ENCRYPTION_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting wallet-service\" port=%s provider=%s", cfg.ServerPort, cfg.AggregatorProviderName)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	// Configure connection pool for high-traffic scenarios (100k+ users)
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish events. A missing broker
	// degrades to a no-op publisher rather than preventing boot.
	var producer rabbitmq.Publisher
	rabbitProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
	} else {
		defer rabbitProducer.Close()
		producer = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the client for the aggregation provider API.
	providerClient := aggregatorclient.NewClient(cfg.AggregatorAPIBaseURL, cfg.AggregatorAPIKey)

	// Credential cipher for access tokens at rest.
	credentials, err := app.NewCredentialCipher(cfg.CredentialKey)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"credential cipher init failed\" err=%v", err)
	}

	var redisClient *redis.Client
	if cfg.SyncRateLimitPerMinute > 0 {
		if strings.TrimSpace(cfg.RedisURL) == "" {
			log.Println("level=warn component=bootstrap msg=\"redis url missing; sync rate limiting disabled\" env=REDIS_URL")
		} else {
			redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
			if parseErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; sync rate limiting disabled\" err=%v", parseErr)
			} else {
				redisClient = redis.NewClient(redisOptions)
				pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelPing()
				if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
					log.Printf("level=warn component=bootstrap msg=\"redis ping failed; sync rate limiting disabled\" err=%v", pingErr)
					redisClient.Close()
					redisClient = nil
				} else {
					defer redisClient.Close()
					log.Println("level=info component=bootstrap msg=\"redis connected\"")
				}
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	walletService := app.NewService(
		repository,
		providerClient,
		cfg.AggregatorProviderName,
		producer,
		credentials,
		cfg.DefaultCurrency,
	)
	if redisClient != nil {
		walletService.SetSyncRateLimiter(
			app.NewRedisSyncRateLimiter(redisClient, cfg.RedisRateLimitPrefix),
			cfg.SyncRateLimitPerMinute,
		)
	}

	// Initialize the API handlers and mount the routes.
	walletHandlers := api.NewWalletHandlers(walletService)
	router := chi.NewRouter()
	router.Mount("/api", api.Routes(walletHandlers, cfg.AuthJWKSURL, cfg.InternalAPIKey))

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	// Wire up the background sync consumer: scheduled sync requests arrive via
	// the events exchange and are drained here.
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"rabbitmq url missing; background sync consumer disabled\" env=RABBITMQ_URL")
	} else {
		rabbitConsumer, consumerErr := rabbitmq.NewConsumer(cfg.RabbitMQURL)
		if consumerErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"rabbitmq consumer init failed; background sync disabled\" err=%v", consumerErr)
		} else {
			defer rabbitConsumer.Close()
			syncConsumer := walletService.SyncRequestConsumer()
			syncBindings := map[string]func([]byte) bool{
				app.RoutingKeySyncRequested: syncConsumer.HandleMessage,
			}
			if err := rabbitConsumer.ConsumeWithBindings(app.EventsExchange, cfg.SyncRequestQueue, syncBindings); err != nil {
				log.Fatalf("level=fatal component=bootstrap msg=\"sync consumer start failed\" err=%v", err)
			}
		}
	}

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
