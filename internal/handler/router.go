/*
Package handler provides the HTTP handlers and routing setup for the Sociowire server.

This file defines the main Router, applying logging, CORS, and IP-based rate
limiting before delegating requests to the REST handlers and the WebSocket endpoint.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"sociowire/internal/pkg/auth/jwt"
	"sociowire/internal/pkg/limiter"
	"sociowire/internal/pkg/logx"
	"sociowire/internal/pkg/resp"
)

const (
	// ConnectRate limits how often a single IP may open a socket connection.
	ConnectRate  = 0.5
	ConnectBurst = 5

	// WriteRate limits persistence endpoints (messages, notifications).
	WriteRate  = 2
	WriteBurst = 10
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It initializes IP-based rate limiters, configures CORS, and applies global
// and per-route middleware.
func Router(deps *AppDeps) http.Handler {
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)
	writeLimiter := limiter.NewIPRateLimiter(rate.Limit(WriteRate), WriteBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			"status":      "ok",
			"service":     "Sociowire Server",
			"online":      deps.Hub.OnlineCount(),
			"connections": deps.Hub.ConnectionCount(),
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Get("/unread/chats", HandleUnreadChats(deps))
		api.Get("/unread/notifications", HandleUnreadNotifications(deps))
		api.Get("/groups/{groupId}/unread", HandleUnreadGroupMessages(deps))

		api.Post("/chats/{chatId}/read", HandleMarkChatRead(deps))
		api.Post("/groups/{groupId}/read", HandleMarkGroupRead(deps))
		api.Post("/notifications/read", HandleMarkNotificationsRead(deps))

		api.With(writeLimiter.Middleware).Post("/messages", HandleCreateMessage(deps))
		api.With(writeLimiter.Middleware).Post("/groups/{groupId}/messages", HandleCreateGroupMessage(deps))
		api.With(writeLimiter.Middleware).Post("/notifications", HandleCreateNotification(deps))
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, connectLimiter, deps))

	return r
}
