package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/CRM-api/internal/application/dto"
	"github.com/jhoicas/CRM-api/internal/application/syncer"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
)

// SyncHandler dispara sincronizaciones y lista las corridas.
type SyncHandler struct {
	orch *syncer.Orchestrator
}

// NewSyncHandler construye el handler.
func NewSyncHandler(orch *syncer.Orchestrator) *SyncHandler {
	return &SyncHandler{orch: orch}
}

// Run POST /api/sync
func (h *SyncHandler) Run(c *fiber.Ctx) error {
	var in dto.SyncRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	mode, err := syncer.ParseMode(in.Mode)
	if err != nil {
		return writeError(c, err)
	}
	res, err := h.orch.RunSync(c.UserContext(), syncer.Request{
		Source:      entity.Source(strings.ToLower(strings.TrimSpace(in.Source))),
		Credentials: in.Credentials,
		Mode:        mode,
		Cursor:      in.Cursor,
	})
	out := dto.SyncResponse{Success: res.Success, Message: res.Message, Stats: res.Stats}
	// Con páginas ya confirmadas la corrida fue parcial: 200 con success=false y el motivo en message.
	if err != nil && res.Stats.Pages == 0 {
		status, _ := errorStatus(err)
		return c.Status(status).JSON(out)
	}
	return c.JSON(out)
}

// Runs GET /api/sync/runs?source=ecommerce&limit=20
func (h *SyncHandler) Runs(c *fiber.Ctx) error {
	runs, err := h.orch.RecentRuns(c.UserContext(), entity.Source(c.Query("source")), c.QueryInt("limit", 20))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromSyncRuns(runs))
}
