package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/CRM-api/internal/application/customers"
	"github.com/jhoicas/CRM-api/internal/application/dto"
	"github.com/jhoicas/CRM-api/internal/application/ownership"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
)

// CustomerHandler maneja las peticiones HTTP de clientes canónicos.
type CustomerHandler struct {
	uc     *customers.UseCase
	engine *ownership.Engine
}

// NewCustomerHandler construye el handler.
func NewCustomerHandler(uc *customers.UseCase, engine *ownership.Engine) *CustomerHandler {
	return &CustomerHandler{uc: uc, engine: engine}
}

// List GET /api/customers?owner=&status=&q=&limit=20&offset=0
func (h *CustomerHandler) List(c *fiber.Ctx) error {
	var in dto.CustomerListRequest
	if err := c.QueryParser(&in); err != nil {
		return badBody(c)
	}
	list, err := h.uc.List(c.UserContext(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(list)
}

// GetByID GET /api/customers/:id
func (h *CustomerHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Reassign PUT /api/customers/:id/owner
func (h *CustomerHandler) Reassign(c *fiber.Ctx) error {
	var in dto.ReassignRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	res, err := h.engine.Reassign(c.UserContext(), c.Params("id"), in.Owner, GetEmail(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ReassignResponse{Customer: dto.FromCustomer(res.Customer), InquiriesUpdated: res.InquiriesUpdated})
}

// AddNote POST /api/customers/:id/notes
func (h *CustomerHandler) AddNote(c *fiber.Ctx) error {
	var in dto.NoteRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	n, err := h.engine.AddNote(c.UserContext(), entity.NoteOnCustomer, c.Params("id"), GetEmail(c), in.Body, in.Private)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromNotes([]*entity.Note{n})[0])
}

// Recompute POST /api/customers/:id/recompute
func (h *CustomerHandler) Recompute(c *fiber.Ctx) error {
	cust, err := h.engine.RecomputeCustomer(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromCustomer(cust))
}
