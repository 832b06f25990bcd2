package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"pondside/internal/config"
	"pondside/internal/database"
	"pondside/internal/engine"
	"pondside/internal/gateway"
	"pondside/internal/handlers"
	"pondside/internal/middleware"
	"pondside/internal/utils"
	"pondside/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.SetSecret(cfg.JWTSecret)

	metrics := utils.NewMetricsCollector()

	// Select the persistence backend. Memory is meant for local development;
	// everything else goes through Postgres.
	var db database.DBAdapter
	switch cfg.Database.Type {
	case "memory":
		log.Println("Using in-memory database")
		db = database.NewMemoryDB()
	default:
		postgres, err := database.NewPostgresDB(cfg.Database.URI)
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := postgres.InitializeTables(ctx); err != nil {
			cancel()
			log.Fatalf("Failed to initialize tables: %v", err)
		}
		cancel()
		db = postgres
	}
	defer db.Close(context.Background())

	// Actor system and domain engine
	system := actor.NewActorSystem()
	appEngine := engine.NewEngine(system, metrics, db)

	// Room hub and real-time gateway
	hub := websocket.NewHub()
	go hub.Run()
	gw := gateway.NewGateway(system.Root, appEngine, hub, 5*time.Second)

	server := handlers.NewServer(system, system.Root, appEngine, hub, gw, db, metrics)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", server.HandleHealth())
	mux.HandleFunc("/user/register", server.HandleUserRegistration())
	mux.HandleFunc("/user/login", server.HandleUserLogin())
	mux.HandleFunc("/conversations", server.HandleConversations())
	mux.HandleFunc("/conversation", server.HandleConversation())
	mux.HandleFunc("/conversation/history", server.HandleConversationHistory())
	mux.HandleFunc("/message", server.HandleMessage())
	mux.HandleFunc("/ws", server.HandleWebSocket())

	corsConfig := middleware.DefaultCORSConfig(cfg.AllowedOrigins)
	handler := middleware.CORSMiddleware(corsConfig)(middleware.AuthMiddleware(mux))

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Starting server on %s", serverAddr)
	if err := http.ListenAndServe(serverAddr, handler); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
