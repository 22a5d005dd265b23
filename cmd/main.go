package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"StudioDesk/server/internal/appMiddleware"
	"StudioDesk/server/internal/config"
	"StudioDesk/server/internal/db"
	"StudioDesk/server/internal/handlers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	cfg := config.Load()
	appMiddleware.SetJWTSecret(cfg.JWTSecret)

	if err := db.InitDB(context.Background(), cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to initialize database: %s\n", err)
	}
	defer db.Close()

	r := chi.NewRouter()

	r.Use(appMiddleware.CorsMiddleware)

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/register", handlers.Register)
	r.Post("/login", handlers.Login)

	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.AuthMiddleware)
		r.Get("/api/profile", handlers.GetProfile)
		r.Get("/api/users", handlers.SearchUsers)

		r.Get("/api/rooms/{roomKey}/messages", handlers.ListMessages)
		r.Post("/api/rooms/{roomKey}/messages", handlers.CreateMessage)
		r.Patch("/api/rooms/{roomKey}/messages/{messageID}", handlers.EditMessage)
		r.Post("/api/rooms/{roomKey}/messages/{messageID}/delete", handlers.DeleteMessage)

		r.Post("/api/share", handlers.ShareMessages)
		r.Get("/api/conversations", handlers.GetConversations)
		r.Get("/api/presence/{userID}", handlers.GetPresence)
	})

	r.Get("/ws", handlers.WebSocketHandler)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server started on %s\n", cfg.HTTPAddr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %s\n", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	log.Println("Stopping the server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %s\n", err)
	}
	log.Println("Server has been successfully stopped")
}
