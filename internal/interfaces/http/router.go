package http

import (
	"context"
	nethttp "net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rs/zerolog"

	"github.com/jhoicas/CRM-api/internal/application/customers"
	"github.com/jhoicas/CRM-api/internal/application/orders"
	"github.com/jhoicas/CRM-api/internal/application/ownership"
	"github.com/jhoicas/CRM-api/internal/application/syncer"
	"github.com/jhoicas/CRM-api/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Orchestrator   *syncer.Orchestrator
	CustomerUC     *customers.UseCase
	Ownership      *ownership.Engine
	Orders         *orders.Service
	JWTSecret      string
	WebhookSecrets WebhookSecrets
	WebhookCounter WebhookCounter
	Handlers       Extras
	Log            zerolog.Logger
}

// WebhookSecrets secretos compartidos de cada origen que empuja datos.
type WebhookSecrets struct {
	Ecommerce string
	Website   string
}

// Extras rutas de soporte: salud y métricas. Cualquiera puede ser nil.
type Extras struct {
	Health  func(ctx context.Context) error
	Metrics nethttp.Handler
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		if deps.Handlers.Health != nil {
			if err := deps.Handlers.Health(c.UserContext()); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": err.Error()})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if deps.Handlers.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Handlers.Metrics))
	}

	// Webhooks (públicos, verificados por firma)
	webhookHandler := NewWebhookHandler(deps.Orchestrator, deps.WebhookSecrets.Ecommerce, deps.WebhookSecrets.Website, deps.WebhookCounter, deps.Log)
	hooks := app.Group("/webhooks")
	hooks.Post("/ecommerce/orders", webhookHandler.Ecommerce)
	hooks.Post("/website/inquiries", webhookHandler.Website)

	// Rutas protegidas (requieren Bearer Token)
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))
	anyRole := RequireRole(jwt.RoleAdmin, jwt.RoleSales)
	adminOnly := RequireRole(jwt.RoleAdmin)

	// Sincronización (admin)
	syncHandler := NewSyncHandler(deps.Orchestrator)
	api.Post("/sync", adminOnly, syncHandler.Run)
	api.Get("/sync/runs", adminOnly, syncHandler.Runs)

	// Clientes
	customerHandler := NewCustomerHandler(deps.CustomerUC, deps.Ownership)
	cust := api.Group("/customers")
	cust.Get("/", anyRole, customerHandler.List)
	cust.Get("/:id", anyRole, customerHandler.GetByID)
	cust.Put("/:id/owner", adminOnly, customerHandler.Reassign)
	cust.Post("/:id/notes", anyRole, customerHandler.AddNote)
	cust.Post("/:id/recompute", adminOnly, customerHandler.Recompute)

	// Pedidos y reportes
	orderHandler := NewOrderHandler(deps.Orders)
	api.Get("/orders/:id", anyRole, orderHandler.GetByID)
	api.Get("/reports/units-by-sku", anyRole, orderHandler.UnitsBySKU)

	// Consultas
	inquiryHandler := NewInquiryHandler(deps.Ownership)
	inq := api.Group("/inquiries", anyRole)
	inq.Post("/", inquiryHandler.Create)
	inq.Get("/:id", inquiryHandler.GetByID)
	inq.Post("/:id/take", inquiryHandler.Take)
	inq.Post("/:id/not-relevant", inquiryHandler.NotRelevant)
	inq.Post("/:id/close", inquiryHandler.Close)
	inq.Post("/:id/notes", inquiryHandler.AddNote)
}
