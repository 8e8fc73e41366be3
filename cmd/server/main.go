package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dpavic/casechat/internal/authz"
	"github.com/dpavic/casechat/internal/config"
	"github.com/dpavic/casechat/internal/crypto"
	"github.com/dpavic/casechat/internal/database"
	postgresrepo "github.com/dpavic/casechat/internal/repository/postgres"
	"github.com/dpavic/casechat/internal/service"
	"github.com/dpavic/casechat/internal/transport/http/handlers"
	"github.com/dpavic/casechat/internal/transport/http/middleware"
	"github.com/dpavic/casechat/internal/transport/ws"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := database.Connect(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()
	log.Println("Connected to database")

	// Message encryption. Explicit startup log so a misconfigured key never
	// silently degrades to plaintext in production.
	key, err := cfg.DecodeEncryptionKey()
	if err != nil {
		log.Fatal(err)
	}
	envelope, err := crypto.NewEnvelope(key)
	if err != nil {
		log.Fatal(err)
	}
	if envelope.Enabled() {
		log.Println("Message encryption enabled")
	} else {
		log.Println("WARNING: CHAT_ENCRYPTION_KEY not set, messages will be stored as plaintext")
	}

	// Repositories
	roomRepo := postgresrepo.NewRoomRepo(pool)
	participantRepo := postgresrepo.NewParticipantRepo(pool)
	messageRepo := postgresrepo.NewMessageRepo(pool)
	attachmentRepo := postgresrepo.NewAttachmentRepo(pool)
	reactionRepo := postgresrepo.NewReactionRepo(pool)
	receiptRepo := postgresrepo.NewReceiptRepo(pool)
	scheduledRepo := postgresrepo.NewScheduledMessageRepo(pool)
	auditRepo := postgresrepo.NewAuditRepo(pool)
	staffRepo := postgresrepo.NewStaffRepo(pool)

	// Authorization engine
	engine := authz.NewEngine(roomRepo, participantRepo, messageRepo, staffRepo)

	// Services
	roomService := service.NewRoomService(roomRepo, participantRepo, staffRepo, auditRepo, engine)
	messageService := service.NewMessageService(
		messageRepo, roomRepo, participantRepo, attachmentRepo, reactionRepo,
		receiptRepo, auditRepo, staffRepo, engine, envelope, cfg.HistoryBackfill,
	)
	retentionService := service.NewRetentionService(attachmentRepo, auditRepo)
	schedulerService := service.NewSchedulerService(scheduledRepo, staffRepo, messageService, engine)

	// Realtime hub
	hub := ws.NewHub(participantRepo)
	notifier := ws.NewHubNotifier(hub)
	roomService.SetNotifier(notifier)
	messageService.SetNotifier(notifier)

	// Handlers
	roomHandler := handlers.NewRoomHandler(roomService)
	messageHandler := handlers.NewMessageHandler(messageService)
	attachmentHandler := handlers.NewAttachmentHandler(retentionService)
	scheduledHandler := handlers.NewScheduledHandler(schedulerService)
	clientHandler := handlers.NewClientHandler(roomService)

	// Auth middleware
	auth := middleware.Auth(cfg.JWTSecret)

	// Routes
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})

	// Protected - Rooms
	mux.Handle("POST /api/v1/rooms/direct", auth(http.HandlerFunc(roomHandler.CreateDirect)))
	mux.Handle("POST /api/v1/rooms/group", auth(http.HandlerFunc(roomHandler.CreateGroup)))
	mux.Handle("GET /api/v1/rooms", auth(http.HandlerFunc(roomHandler.List)))
	mux.Handle("GET /api/v1/rooms/{id}", auth(http.HandlerFunc(roomHandler.Get)))
	mux.Handle("DELETE /api/v1/rooms/{id}", auth(http.HandlerFunc(roomHandler.Delete)))
	mux.Handle("POST /api/v1/rooms/{id}/lock", auth(http.HandlerFunc(roomHandler.Lock)))
	mux.Handle("POST /api/v1/rooms/{id}/unlock", auth(http.HandlerFunc(roomHandler.Unlock)))
	mux.Handle("POST /api/v1/rooms/{id}/archive", auth(http.HandlerFunc(roomHandler.Archive)))
	mux.Handle("POST /api/v1/rooms/{id}/unarchive", auth(http.HandlerFunc(roomHandler.Unarchive)))
	mux.Handle("GET /api/v1/rooms/{id}/audit", auth(http.HandlerFunc(roomHandler.AuditLog)))

	// Protected - Participants
	mux.Handle("GET /api/v1/rooms/{id}/participants", auth(http.HandlerFunc(roomHandler.ListParticipants)))
	mux.Handle("POST /api/v1/rooms/{id}/participants", auth(http.HandlerFunc(roomHandler.AddParticipant)))
	mux.Handle("PATCH /api/v1/rooms/{id}/participants/{sid}", auth(http.HandlerFunc(roomHandler.UpdateParticipantRole)))
	mux.Handle("DELETE /api/v1/rooms/{id}/participants/{sid}", auth(http.HandlerFunc(roomHandler.RemoveParticipant)))

	// Protected - Messages
	mux.Handle("GET /api/v1/rooms/{id}/messages", auth(http.HandlerFunc(messageHandler.List)))
	mux.Handle("POST /api/v1/rooms/{id}/messages", auth(http.HandlerFunc(messageHandler.Send)))
	mux.Handle("GET /api/v1/rooms/{id}/messages/search", auth(http.HandlerFunc(messageHandler.Search)))
	mux.Handle("GET /api/v1/rooms/{id}/pins", auth(http.HandlerFunc(messageHandler.ListPinned)))
	mux.Handle("POST /api/v1/rooms/{id}/read", auth(http.HandlerFunc(messageHandler.MarkRead)))
	mux.Handle("PATCH /api/v1/messages/{id}", auth(http.HandlerFunc(messageHandler.Edit)))
	mux.Handle("DELETE /api/v1/messages/{id}", auth(http.HandlerFunc(messageHandler.Delete)))
	mux.Handle("POST /api/v1/messages/{id}/pin", auth(http.HandlerFunc(messageHandler.Pin)))
	mux.Handle("DELETE /api/v1/messages/{id}/pin", auth(http.HandlerFunc(messageHandler.Unpin)))
	mux.Handle("POST /api/v1/messages/{id}/forward", auth(http.HandlerFunc(messageHandler.Forward)))
	mux.Handle("POST /api/v1/messages/{id}/reactions", auth(http.HandlerFunc(messageHandler.AddReaction)))
	mux.Handle("DELETE /api/v1/messages/{id}/reactions/{emoji}", auth(http.HandlerFunc(messageHandler.RemoveReaction)))
	mux.Handle("POST /api/v1/messages/{id}/delivered", auth(http.HandlerFunc(messageHandler.MarkDelivered)))

	// Protected - Scheduled messages
	mux.Handle("POST /api/v1/rooms/{id}/scheduled", auth(http.HandlerFunc(scheduledHandler.Create)))
	mux.Handle("DELETE /api/v1/scheduled/{id}", auth(http.HandlerFunc(scheduledHandler.Cancel)))

	// Protected - Attachments
	mux.Handle("GET /api/v1/attachments/expiring", auth(http.HandlerFunc(attachmentHandler.ExpiringSoon)))

	// Protected - Client rooms
	mux.Handle("POST /api/v1/clients/{id}/room", auth(http.HandlerFunc(clientHandler.EnsureRoom)))
	mux.Handle("POST /api/v1/clients/{id}/sync", auth(http.HandlerFunc(clientHandler.SyncRooms)))
	mux.Handle("POST /api/v1/clients/{id}/archive", auth(http.HandlerFunc(clientHandler.Archive)))
	mux.Handle("POST /api/v1/clients/{id}/restore", auth(http.HandlerFunc(clientHandler.Restore)))

	// WebSocket (token via query param, browsers cannot set headers here)
	mux.HandleFunc("GET /ws", ws.ServeWS(hub, messageService, cfg.JWTSecret))

	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{Addr: addr, Handler: middleware.CORS(mux)}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		retentionService.Run(gctx, cfg.RetentionInterval)
		return nil
	})
	g.Go(func() error {
		schedulerService.Run(gctx, cfg.SchedulerInterval)
		return nil
	})
	g.Go(func() error {
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
	log.Println("Server stopped")
}
