package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/CRM-api/internal/application/dto"
	"github.com/jhoicas/CRM-api/internal/application/ownership"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/domain/source"
)

// InquiryHandler flujo de consultas: alta manual, toma, descarte y cierre.
type InquiryHandler struct {
	engine *ownership.Engine
}

// NewInquiryHandler construye el handler.
func NewInquiryHandler(engine *ownership.Engine) *InquiryHandler {
	return &InquiryHandler{engine: engine}
}

// Create POST /api/inquiries (carga manual)
func (h *InquiryHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateInquiryRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	rec, err := source.NormalizeWebsiteInquiry(entity.SourceManual, source.WebsiteInquiry{
		ID:       in.ID,
		Email:    in.Email,
		Name:     in.Name,
		Phone:    in.Phone,
		Company:  in.Company,
		Category: in.Category,
		Message:  in.Message,
	})
	if err != nil {
		return writeError(c, err)
	}
	res, err := h.engine.CreateInquiry(c.UserContext(), entity.SourceManual, *rec.Inquiry)
	if err != nil {
		return writeError(c, err)
	}
	status := fiber.StatusCreated
	if !res.Inserted {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(dto.FromInquiry(res.Inquiry))
}

// GetByID GET /api/inquiries/:id
func (h *InquiryHandler) GetByID(c *fiber.Ctx) error {
	inq, err := h.engine.GetInquiry(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromInquiry(inq))
}

// Take POST /api/inquiries/:id/take: el vendedor del token toma la consulta.
func (h *InquiryHandler) Take(c *fiber.Ctx) error {
	inq, err := h.engine.Take(c.UserContext(), c.Params("id"), GetEmail(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromInquiry(inq))
}

// NotRelevant POST /api/inquiries/:id/not-relevant
func (h *InquiryHandler) NotRelevant(c *fiber.Ctx) error {
	inq, err := h.engine.MarkNotRelevant(c.UserContext(), c.Params("id"), GetEmail(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromInquiry(inq))
}

// Close POST /api/inquiries/:id/close
func (h *InquiryHandler) Close(c *fiber.Ctx) error {
	var in dto.CloseInquiryRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	inq, err := h.engine.Close(c.UserContext(), c.Params("id"), GetEmail(c), in.Note)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromInquiry(inq))
}

// AddNote POST /api/inquiries/:id/notes
func (h *InquiryHandler) AddNote(c *fiber.Ctx) error {
	var in dto.NoteRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	n, err := h.engine.AddNote(c.UserContext(), entity.NoteOnInquiry, c.Params("id"), GetEmail(c), in.Body, in.Private)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromNotes([]*entity.Note{n})[0])
}
