package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"dabubble/internal/db"
	"dabubble/internal/directory"
	"dabubble/internal/handlers"
	"dabubble/internal/messaging"
	"dabubble/internal/middleware"
	"dabubble/internal/mirror"
	"dabubble/internal/models"
	"dabubble/internal/observability"
	"dabubble/internal/rabbitmq"
	"dabubble/internal/session"
	"dabubble/internal/store/postgres"
	"dabubble/internal/telemetry"
	"dabubble/internal/ws"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()

	shutdownTracing, err := telemetry.InitTracing(ctx, "dabubble")
	if err != nil {
		log.Printf("tracing disabled: %v", err)
	} else {
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				log.Printf("tracing shutdown: %v", err)
			}
		}()
	}

	database, dsn, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	amqpURL := getEnv("RABBITMQ_URL", "")
	if amqpURL != "" {
		publisher, err := observability.NewAMQPPublisher(amqpURL, getEnv("RABBITMQ_EXCHANGE", "dabubble.events"))
		if err != nil {
			log.Printf("event publisher disabled: %v", err)
		} else {
			observability.SetPublisher(publisher)
			defer publisher.Close()
		}
	}
	audit := telemetry.NewAuditEmitter(
		rabbitmq.NewPublisher(amqpURL, getEnv("AUDIT_EXCHANGE", "dabubble.audit")),
		"audit.dabubble",
		"dabubble",
		getEnv("ENVIRONMENT", "development"),
	)

	docStore := postgres.New(database, dsn)

	var sessions session.StateStore
	if addr := getEnv("VALKEY_ADDR", ""); addr != "" {
		vs, err := session.NewValkeyStateStore(addr, 24*time.Hour)
		if err != nil {
			log.Fatalf("failed to connect to valkey: %v", err)
		}
		sessions = vs
	} else {
		log.Printf("VALKEY_ADDR not set, using in-memory session store")
		sessions = session.NewMemoryStateStore()
	}

	m := mirror.New(docStore)
	if err := m.Start(ctx); err != nil {
		log.Fatalf("failed to start collection mirror: %v", err)
	}
	defer m.Close()

	msgService := messaging.New(m, docStore, sessions)
	dirService := directory.New(m, docStore)

	manager := session.NewManager(session.DefaultIdleTimeout, func(userID string) {
		if err := sessions.Clear(ctx, userID); err != nil {
			log.Printf("clear expired session %s: %v", userID, err)
		}
		if err := msgService.SetOnline(ctx, userID, false); err != nil {
			log.Printf("mark expired user offline %s: %v", userID, err)
		}
	})
	defer manager.Close()

	hub := ws.NewHub()

	// Snapshot-driven push: whenever the mirror catches up, clients watching a
	// conversation are told to refresh it.
	m.OnChannelsChanged(func(channels []models.Channel) {
		for _, ch := range channels {
			hub.Broadcast(ch.ID, models.ChatEvent{Type: "conversation_updated", ConversationID: ch.ID})
		}
	})
	m.OnUsersChanged(func(users []models.User) {
		seen := make(map[string]bool)
		for _, u := range users {
			for _, t := range u.DMs {
				if seen[t.ID] {
					continue
				}
				seen[t.ID] = true
				hub.Broadcast(t.ID, models.ChatEvent{Type: "conversation_updated", ConversationID: t.ID})
			}
		}
	})

	jwtSecret := getEnv("JWT_SECRET", "dev-secret")

	messageHandler := handlers.NewMessageHandler(msgService, hub, audit)
	channelHandler := handlers.NewChannelHandler(msgService, m, audit)
	searchHandler := handlers.NewSearchHandler(dirService)
	sessionHandler := handlers.NewSessionHandler(sessions, m, manager, msgService)
	userHandler := handlers.NewUserHandler(msgService, m, audit)

	conversationWS := ws.NewConversationWebSocketHandler(hub, m, jwtSecret)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("dabubble"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(jwtSecret)
	activityMiddleware := middleware.ActivityMiddleware(manager)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := router.Group("/", authMiddleware, activityMiddleware)

	authed.POST("/session/resolve", sessionHandler.Resolve)
	authed.GET("/session", sessionHandler.Get)
	authed.PUT("/session", sessionHandler.Update)
	authed.DELETE("/session", sessionHandler.Logout)

	authed.POST("/messages", messageHandler.PostMessage)
	authed.POST("/messages/:post_id/thread", messageHandler.PostThreadReply)
	authed.PUT("/messages/:post_id", messageHandler.EditMessage)
	authed.POST("/messages/:post_id/reactions", messageHandler.AddReaction)
	authed.DELETE("/messages/:post_id/reactions/:emoji", messageHandler.RemoveReaction)

	authed.POST("/channels", channelHandler.CreateChannel)
	authed.GET("/channels", channelHandler.ListChannels)
	authed.GET("/channels/:channel_id/messages", channelHandler.GetChannelMessages)
	authed.PUT("/channels/:channel_id", channelHandler.UpdateChannel)
	authed.POST("/channels/members", channelHandler.AddMembers)
	authed.DELETE("/channels/:channel_id/members/me", channelHandler.LeaveChannel)

	authed.GET("/users", userHandler.ListUsers)
	authed.PUT("/profile", userHandler.UpdateProfile)

	authed.GET("/search", searchHandler.Search)
	authed.POST("/dms/resolve", searchHandler.ResolveDM)

	router.GET("/ws/conversations/:conversation_id", conversationWS.Handle)

	port := getEnv("PORT", "8083")
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
