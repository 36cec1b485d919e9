package wsserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-monolith/mono"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/taskflow-realtime/modules/auth"
)

// Module is the websocket server and connection lifecycle coordinator:
// it gates every connection through the authenticator, hands accepted ones
// to the session handlers, and stops accepting on drain.
type Module struct {
	app      *fiber.App
	handlers *Handlers
	verifier *auth.Verifier
	addr     string
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the websocket server module.
func NewModule(addr string, verifier *auth.Verifier, handlers *Handlers) *Module {
	return &Module{
		handlers: handlers,
		verifier: verifier,
		addr:     addr,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "ws-server"
}

// Start initializes and starts the server. Registered after the relay
// module, so by the time the listener binds the pub/sub subscription is
// active and no event window opens for already-joined rooms.
func (m *Module) Start(_ context.Context) error {
	m.app = fiber.New(fiber.Config{
		AppName:               "Taskflow Realtime",
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
	})

	m.app.Use(recover.New())
	m.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
	}))

	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:5173"
	}
	m.app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))

	m.registerRoutes()

	// Startup errors (port in use, bad address) must abort the start
	// sequence rather than surface later.
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(m.addr); err != nil {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return fmt.Errorf("websocket server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	slog.Info("WebSocket server started", "addr", m.addr)
	return nil
}

// Stop stops accepting connections and closes the listener. Live sockets
// are closed by the hub module immediately after.
func (m *Module) Stop(ctx context.Context) error {
	if m.app != nil {
		if err := m.app.ShutdownWithContext(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}
	slog.Info("WebSocket server stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "listening",
		Details: map[string]any{
			"addr": m.addr,
		},
	}
}

// Handlers returns the session handlers, for wiring the typing expiry
// callback in main.
func (m *Module) Handlers() *Handlers {
	return m.handlers
}

// registerRoutes sets up the health endpoint, the read-only API, and the
// authenticated websocket upgrade.
func (m *Module) registerRoutes() {
	m.app.Get("/health", m.handlers.HealthCheck)

	api := m.app.Group("/api/v1")
	api.Get("/presence", m.handlers.GetPresence)
	api.Get("/rooms/:kind/:id/members", m.handlers.GetRoomMembers)

	// Auth gate: runs before the upgrade, so no session handler ever sees
	// an unauthenticated connection and failures never open a socket.
	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		identity, err := m.verifier.Verify(bearerToken(c))
		if err != nil {
			reason := auth.ErrAuthFailed.Reason
			var authErr *auth.Error
			if errors.As(err, &authErr) {
				reason = authErr.Reason
			}
			slog.Warn("Rejected connection", "reason", reason, "ip", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": reason,
			})
		}

		c.Locals(identityKey, *identity)
		return c.Next()
	})
	m.app.Get("/ws", websocket.New(m.handlers.HandleConnection))
}

// bearerToken extracts the credential from the token query parameter or the
// Authorization header.
func bearerToken(c *fiber.Ctx) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// errorHandler handles HTTP errors globally.
func (m *Module) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	slog.Error("HTTP error", "code", code, "message", message, "error", err)
	return c.Status(code).JSON(fiber.Map{
		"error": message,
	})
}
