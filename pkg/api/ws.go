package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"

	"github.com/pulsewatch/pulsewatch/pkg/broadcast"
)

// WSServer is the dedicated WebSocket listener. It runs on its own port so
// the live feed can be firewalled separately from the REST API.
type WSServer struct {
	hub    *broadcast.Hub
	logger *slog.Logger
	http   *http.Server
}

// NewWSServer creates the WebSocket listener over hub.
func NewWSServer(hub *broadcast.Hub) *WSServer {
	return &WSServer{hub: hub, logger: slog.Default()}
}

// wsHandler upgrades HTTP connections and delegates to the Hub.
func (s *WSServer) wsHandler(c *echo.Context) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		// The dashboard connects cross-origin during development; the feed
		// is read-only so origin checking buys nothing here.
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}

	// HandleConnection blocks until the WebSocket closes.
	s.hub.HandleConnection(c.Request().Context(), conn)
	return nil
}

// Start begins serving on addr. Blocks until the listener closes.
func (s *WSServer) Start(addr string) error {
	e := echo.New()
	e.GET("/ws", s.wsHandler)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("WebSocket server listening", "addr", addr)
	return s.http.ListenAndServe()
}

// Shutdown closes the listener; active connections are closed by the Hub.
func (s *WSServer) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	s.hub.CloseAll()
	return s.http.Shutdown(ctx)
}
