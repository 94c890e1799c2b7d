package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/CRM-api/internal/application/dto"
	"github.com/jhoicas/CRM-api/internal/application/syncer"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/domain/source"
	"github.com/jhoicas/CRM-api/internal/infrastructure/sources/ecommerce"
	"github.com/jhoicas/CRM-api/internal/infrastructure/sources/website"
)

// TopicHeader tema del webhook de e-commerce ("orders/create", "customers/update", ...).
const TopicHeader = "X-Webhook-Topic"

// WebhookCounter cuenta webhooks recibidos; *metrics.Manager lo implementa.
type WebhookCounter interface {
	IncWebhook(source, outcome string)
}

// WebhookHandler recibe lotes empujados por los orígenes y los procesa como una página de sincronización.
type WebhookHandler struct {
	orch            *syncer.Orchestrator
	ecommerceSecret string
	websiteSecret   string
	counter         WebhookCounter
	log             zerolog.Logger
}

// NewWebhookHandler construye el handler. counter puede ser nil.
func NewWebhookHandler(orch *syncer.Orchestrator, ecommerceSecret, websiteSecret string, counter WebhookCounter, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{orch: orch, ecommerceSecret: ecommerceSecret, websiteSecret: websiteSecret, counter: counter, log: log}
}

func (h *WebhookHandler) count(src entity.Source, outcome string) {
	if h.counter != nil {
		h.counter.IncWebhook(string(src), outcome)
	}
}

// Ecommerce POST /webhooks/ecommerce/orders. Exige firma HMAC-SHA256 válida.
func (h *WebhookHandler) Ecommerce(c *fiber.Ctx) error {
	body := c.Body()
	if !ecommerce.VerifyWebhook(h.ecommerceSecret, body, c.Get(ecommerce.SignatureHeader)) {
		h.count(entity.SourceEcommerce, "rejected")
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_SIGNATURE", Message: "firma del webhook inválida"})
	}
	kind := entity.KindOrder
	if strings.HasPrefix(strings.ToLower(c.Get(TopicHeader)), "customers/") {
		kind = entity.KindCustomer
	}
	// El cuerpo se copia: fiber reutiliza el buffer tras responder.
	payload := append([]byte(nil), body...)
	raws := []source.RawRecord{{Source: entity.SourceEcommerce, Kind: kind, Payload: payload}}
	return h.ingest(c, entity.SourceEcommerce, raws)
}

// Website POST /webhooks/website/inquiries. Acepta una consulta o un lote; firma opcional según configuración.
func (h *WebhookHandler) Website(c *fiber.Ctx) error {
	body := append([]byte(nil), c.Body()...)
	if h.websiteSecret != "" && !ecommerce.VerifyWebhook(h.websiteSecret, body, c.Get(ecommerce.SignatureHeader)) {
		h.count(entity.SourceWebsite, "rejected")
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_SIGNATURE", Message: "firma del webhook inválida"})
	}
	items, err := website.DecodeBatch(body)
	if err != nil {
		h.count(entity.SourceWebsite, "invalid")
		return writeError(c, err)
	}
	return h.ingest(c, entity.SourceWebsite, website.RawRecords(entity.SourceWebsite, items))
}

func (h *WebhookHandler) ingest(c *fiber.Ctx, src entity.Source, raws []source.RawRecord) error {
	res, err := h.orch.IngestBatch(c.UserContext(), src, raws)
	if err != nil {
		h.count(src, "failed")
		h.log.Error().Err(err).Str("source", string(src)).Msg("webhook no procesado")
		status, _ := errorStatus(err)
		return c.Status(status).JSON(dto.SyncResponse{Success: false, Message: res.Message, Stats: res.Stats})
	}
	h.count(src, "accepted")
	return c.JSON(dto.SyncResponse{Success: true, Message: res.Message, Stats: res.Stats})
}
