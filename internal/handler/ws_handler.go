/*
Package handler provides the HTTP handlers and routing setup for the Sociowire server.

This file contains the HandleWebSocket function, responsible for rate limiting,
upgrading the HTTP connection to WebSocket, and starting the client's pump loops.
*/
package handler

import (
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"sociowire/internal/app/realtime"
	"sociowire/internal/pkg/errs"
	"sociowire/internal/pkg/limiter"
	"sociowire/internal/pkg/logx"
	"sociowire/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc that upgrades the connection and
// attaches it to the Hub. The connection carries no user identity at this
// point; identity arrives with the client's addUser announce.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		connID := uuid.NewString()

		client := realtime.NewClient(deps.Hub, conn, connID)
		deps.Hub.Attach(client)

		go client.WritePump()

		logx.Info("WebSocket connection established", "conn_id", connID)

		client.ReadPump()
	}
}
