package entity

import "time"

// NoteSubject tipo de entidad anotada.
type NoteSubject string

// Sujetos de nota.
const (
	NoteOnCustomer NoteSubject = "customer"
	NoteOnInquiry  NoteSubject = "inquiry"
)

// Note anotación inmutable (sólo se agregan, nunca se editan ni borran).
type Note struct {
	ID        string
	Subject   NoteSubject
	SubjectID string
	Author    string
	Body      string
	Private   bool
	CreatedAt time.Time
}
