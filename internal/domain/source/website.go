package source

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/jhoicas/CRM-api/internal/domain/crm"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
)

// WebsiteInquiry formulario de contacto del sitio web o lead cargado a mano.
type WebsiteInquiry struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	Name      string   `json:"name"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Phone     string   `json:"phone"`
	Company   string   `json:"company"`
	Category  string   `json:"category"`
	Message   string   `json:"message"`
	Tags      []string `json:"tags"`
	CreatedAt string   `json:"created_at"`
}

// NormalizeWebsiteInquiry exige email y mensaje. Una categoría desconocida o vacía cae en "questions".
// Sin id en el payload, la referencia se deriva del contenido para que el reenvío sea idempotente.
func NormalizeWebsiteInquiry(src entity.Source, p WebsiteInquiry) (*entity.Record, error) {
	if strings.TrimSpace(p.Email) == "" {
		return nil, malformed("consulta sin email")
	}
	message := strings.TrimSpace(p.Message)
	if message == "" {
		return nil, malformed("consulta sin mensaje")
	}
	category := entity.InquiryCategory(strings.ToLower(strings.TrimSpace(p.Category)))
	if !category.IsValid() {
		category = entity.CategoryQuestions
	}

	first, last := crm.CleanText(p.FirstName), crm.CleanText(p.LastName)
	if first == "" && last == "" {
		first, last = crm.SplitFullName(p.Name)
	}
	created := parseTimestamp(p.CreatedAt)

	ref := strings.TrimSpace(p.ID)
	if ref == "" {
		sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(p.Email)) + "\x00" + p.CreatedAt + "\x00" + message))
		ref = hex.EncodeToString(sum[:8])
	}
	customer := entity.IntermediateCustomer{
		Email:       p.Email,
		FirstName:   first,
		LastName:    last,
		Phone:       strings.TrimSpace(p.Phone),
		CompanyName: crm.CleanText(p.Company),
		Tags:        p.Tags,
		SeenAt:      created,
	}
	return &entity.Record{
		Source:         src,
		Kind:           entity.KindInquiry,
		SourceRecordID: entity.SourceRecordID(entity.KindInquiry, ref),
		Inquiry: &entity.IntermediateInquiry{
			SourceRef: ref,
			Customer:  customer,
			Category:  category,
			Message:   message,
			CreatedAt: created,
		},
	}, nil
}
