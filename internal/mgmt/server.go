// Package mgmt serves the read-only management API: liveness, the attached
// roles and their state, and the bus history.
package mgmt

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/p-blackswan/colony/internal/env"
)

// ServerConfig holds configuration for the management API server.
type ServerConfig struct {
	ListenAddr string
}

// Server is the management API Fiber application.
type Server struct {
	app    *fiber.App
	env    *env.Environment
	logger *slog.Logger
	config ServerConfig
}

// NewServer creates and configures a new management API server.
func NewServer(cfg ServerConfig, environment *env.Environment, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	s := &Server{
		app:    app,
		env:    environment,
		logger: logger.With("component", "mgmt_server"),
		config: cfg,
	}

	app.Use(recover.New())

	app.Get("/healthz", s.liveness)

	v1 := app.Group("/v1")
	v1.Get("/roles", s.listRoles)
	v1.Get("/roles/:profile", s.getRole)
	v1.Get("/bus", s.busHistory)

	return s
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = ":8090"
	}
	s.logger.Info("management API server starting", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info("management API server shutting down")
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// roleView is the wire shape of one attached role.
type roleView struct {
	Name       string   `json:"name"`
	Profile    string   `json:"profile"`
	Goal       string   `json:"goal"`
	State      string   `json:"state"`
	Watch      []string `json:"watch"`
	HistoryLen int      `json:"history_len"`
}

func (s *Server) roleView(profile string) (roleView, bool) {
	r, ok := s.env.Role(profile)
	if !ok {
		return roleView{}, false
	}
	watch := make([]string, 0, len(r.Watch()))
	for k := range r.Watch() {
		watch = append(watch, string(k))
	}
	return roleView{
		Name:       r.Name(),
		Profile:    r.Profile(),
		Goal:       r.Setting().Goal,
		State:      r.State().String(),
		Watch:      watch,
		HistoryLen: r.HistoryLen(),
	}, true
}

func (s *Server) listRoles(c *fiber.Ctx) error {
	roles := s.env.Roles()
	out := make([]roleView, 0, len(roles))
	for _, r := range roles {
		if v, ok := s.roleView(r.Profile()); ok {
			out = append(out, v)
		}
	}
	return c.JSON(fiber.Map{"roles": out, "count": len(out)})
}

func (s *Server) getRole(c *fiber.Ctx) error {
	v, ok := s.roleView(c.Params("profile"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "unknown role")
	}
	return c.JSON(v)
}

// messageView is the wire shape of one bus message.
type messageView struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	CauseBy   string    `json:"cause_by"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) busHistory(c *fiber.Ctx) error {
	history := s.env.History()
	out := make([]messageView, 0, len(history))
	for _, m := range history {
		out = append(out, messageView{
			ID:        m.ID,
			Role:      m.Role,
			CauseBy:   string(m.CauseBy),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"messages": out, "count": len(out)})
}

func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}
		if code >= fiber.StatusInternalServerError {
			logger.Error("unhandled error",
				"err", err, "status", code, "path", c.Path(), "method", c.Method())
		}
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
}
