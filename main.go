package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chatroom-service/internal/db"
	"chatroom-service/internal/handlers"
	"chatroom-service/internal/middleware"
	"chatroom-service/internal/observability"
	"chatroom-service/internal/pipeline"
	"chatroom-service/internal/presence"
	"chatroom-service/internal/rabbitmq"
	"chatroom-service/internal/repositories"
	"chatroom-service/internal/telemetry"
	"chatroom-service/internal/typing"
	"chatroom-service/internal/ws"
)

const serviceName = "chatroom-service"

func main() {
	ctx := context.Background()

	shutdownTracing, err := observability.SetupTracing(ctx, serviceName)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("tracing shutdown error: %v", err)
		}
	}()

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	amqpURL := getEnv("AMQP_URL", "")
	exchange := getEnv("AMQP_EXCHANGE", "chatroom.events")
	publisher := rabbitmq.NewPublisher(amqpURL, exchange)
	defer publisher.Close()
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))

	amqpPublisher, err := observability.NewAMQPPublisher(amqpURL, exchange)
	if err != nil {
		log.Printf("ws event publishing disabled: %v", err)
	} else {
		observability.SetPublisher(amqpPublisher)
		defer amqpPublisher.Close()
	}

	emitter := telemetry.NewAuditEmitter(publisher, "audit_log.chatroom", serviceName, getEnv("ENVIRONMENT", "dev"))

	userRepo := repositories.NewUserRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	hub := ws.NewHub()
	registry := presence.NewRegistry()
	debouncer := typing.NewDebouncer()
	pipe := pipeline.NewPipeline(messageRepo, userRepo, registry, hub)

	userHandler := handlers.NewUserHandler(userRepo, emitter)
	messageHandler := handlers.NewMessageHandler(pipe)
	healthHandler := handlers.NewHealthHandler(database)
	roomWS := ws.NewRoomWebSocketHandler(hub, registry, debouncer, pipe)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(middleware.RequestID())

	router.POST("/api/users", userHandler.CreateUser)
	router.GET("/api/messages", messageHandler.ListMessages)
	router.GET("/ws", roomWS.Handle)
	router.GET("/healthz", healthHandler.Healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, emitter, getEnv("DEBUG_ROUTES", "") == "true")

	port := getEnv("PORT", "3000")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
