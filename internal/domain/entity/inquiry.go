package entity

import "time"

// InquiryStatus estado de una consulta comercial.
type InquiryStatus string

// Estados de consulta: new → active → closed, new → not_relevant.
const (
	InquiryNew         InquiryStatus = "new"
	InquiryActive      InquiryStatus = "active"
	InquiryClosed      InquiryStatus = "closed"
	InquiryNotRelevant InquiryStatus = "not_relevant"
)

// InquiryCategory categoría declarada en el formulario.
type InquiryCategory string

// Categorías de consulta.
const (
	CategoryBulk      InquiryCategory = "bulk"
	CategoryIssues    InquiryCategory = "issues"
	CategoryQuestions InquiryCategory = "questions"
)

// IsValid indica si la categoría es una de las conocidas.
func (c InquiryCategory) IsValid() bool {
	switch c {
	case CategoryBulk, CategoryIssues, CategoryQuestions:
		return true
	}
	return false
}

// Inquiry consulta entrante (web o manual) ligada a un cliente por email.
type Inquiry struct {
	ID             string
	CustomerEmail  string
	Category       InquiryCategory
	Message        string
	Status         InquiryStatus
	AssignedTo     string // copia histórica del vendedor al tomarla
	EffectiveOwner string // derivado en lectura: COALESCE(customers.assigned_owner, assigned_to)
	Source         Source
	SourceRef      string
	Notes          []*Note
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsOpen indica si la consulta sigue abierta (new o active).
func (i *Inquiry) IsOpen() bool {
	return i.Status == InquiryNew || i.Status == InquiryActive
}

// IsTakeable: se puede tomar desde new, o desde active sin dueño (equivalente a new).
func (i *Inquiry) IsTakeable() bool {
	if i.Status == InquiryNew {
		return true
	}
	return i.Status == InquiryActive && i.AssignedTo == ""
}

// CanTransition valida las transiciones permitidas de la máquina de estados.
func (i *Inquiry) CanTransition(to InquiryStatus) bool {
	switch to {
	case InquiryActive:
		return i.IsTakeable()
	case InquiryNotRelevant:
		return i.Status == InquiryNew
	case InquiryClosed:
		return i.Status == InquiryActive
	}
	return false
}
