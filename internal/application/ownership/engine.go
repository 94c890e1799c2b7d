// Package ownership gestiona la asignación de vendedores, el flujo de consultas y los contadores derivados.
package ownership

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/CRM-api/internal/application/identity"
	"github.com/jhoicas/CRM-api/internal/domain"
	"github.com/jhoicas/CRM-api/internal/domain/crm"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/domain/repository"
)

// Engine reglas de asignación. Todas las escrituras van en una transacción.
type Engine struct {
	store    repository.Store
	identity *identity.Resolver
	log      zerolog.Logger
}

// NewEngine construye el motor.
func NewEngine(store repository.Store, resolver *identity.Resolver, log zerolog.Logger) *Engine {
	return &Engine{store: store, identity: resolver, log: log}
}

func (e *Engine) now() time.Time { return e.identity.Now() }

// RecomputeCounters deriva contadores y ciclo de vida del cliente del email desde pedidos y consultas.
// Idempotente y sin efectos fuera del cliente: repetirlo corrige cualquier desfase.
// Devuelve nil si el email no tiene cliente.
func (e *Engine) RecomputeCounters(ctx context.Context, repos repository.Repos, email string) (*entity.Customer, error) {
	c, err := repos.Customers.GetByEmail(ctx, email)
	if err != nil || c == nil {
		return nil, err
	}
	totals, err := repos.Customers.AggregateActivity(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("agregar actividad: %w", err)
	}
	crm.ApplyTotals(c, totals)
	if err := repos.Customers.UpdateTotals(ctx, c.ID, c.Status, totals); err != nil {
		return nil, err
	}
	return c, nil
}

// RecomputeCustomer recalcula en una transacción propia (endpoint de mantenimiento).
func (e *Engine) RecomputeCustomer(ctx context.Context, customerID string) (*entity.Customer, error) {
	var out *entity.Customer
	err := e.store.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		repos := tx.Repos()
		c, err := repos.Customers.GetByID(ctx, customerID)
		if err != nil {
			return err
		}
		if c == nil {
			return domain.ErrNotFound
		}
		out, err = e.RecomputeCounters(ctx, repos, c.Email)
		return err
	})
	return out, err
}

// ─── Consultas ──────────────────────────────────────────────────────────────

// InquiryResult resultado de ingerir una consulta.
type InquiryResult struct {
	Inquiry  *entity.Inquiry
	Inserted bool
	Customer *entity.Customer
}

// IngestInquiry resuelve el cliente, inserta la consulta de forma idempotente por (source, source_ref)
// y recalcula contadores. Corre en la transacción del llamador.
func (e *Engine) IngestInquiry(ctx context.Context, tx repository.Tx, in entity.IntermediateInquiry, ref entity.Provenance) (*InquiryResult, error) {
	if strings.TrimSpace(in.Message) == "" || strings.TrimSpace(in.SourceRef) == "" {
		return nil, fmt.Errorf("%w: consulta sin mensaje o referencia", domain.ErrMalformedRecord)
	}
	if !in.Category.IsValid() {
		return nil, fmt.Errorf("%w: categoría %q", domain.ErrInvalidInput, in.Category)
	}
	res, err := e.identity.ResolveCustomer(ctx, tx, in.Customer, ref)
	if err != nil {
		return nil, err
	}
	repos := tx.Repos()
	now := e.now()
	created := in.CreatedAt
	if created.IsZero() || created.After(now) {
		created = now
	}

	inq := &entity.Inquiry{
		CustomerEmail: res.Customer.Email,
		Category:      in.Category,
		Message:       strings.TrimSpace(in.Message),
		Status:        entity.InquiryNew,
		AssignedTo:    res.Customer.AssignedOwner,
		Source:        ref.Source,
		SourceRef:     in.SourceRef,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	inserted, err := repos.Inquiries.Upsert(ctx, inq)
	if err != nil {
		return nil, err
	}
	if _, err := repos.Contributions.Upsert(ctx, &entity.SourceContribution{
		CanonicalKind:  entity.CanonicalInquiry,
		CanonicalID:    inq.ID,
		Source:         ref.Source,
		SourceRecordID: entity.SourceRecordID(entity.KindInquiry, in.SourceRef),
		NativeID:       ref.NativeID,
		SourceData:     ref.Raw,
		FirstSeen:      now,
		LastSeen:       now,
	}); err != nil {
		return nil, fmt.Errorf("contribución de consulta: %w", err)
	}

	c, err := e.RecomputeCounters(ctx, repos, inq.CustomerEmail)
	if err != nil {
		return nil, err
	}
	inq.EffectiveOwner = inq.AssignedTo
	if c != nil && c.AssignedOwner != "" {
		inq.EffectiveOwner = c.AssignedOwner
	}
	return &InquiryResult{Inquiry: inq, Inserted: inserted, Customer: c}, nil
}

// CreateInquiry alta manual o desde formulario web, en una transacción propia.
func (e *Engine) CreateInquiry(ctx context.Context, src entity.Source, in entity.IntermediateInquiry) (*InquiryResult, error) {
	if in.SourceRef == "" {
		in.SourceRef = uuid.New().String()
	}
	ref := entity.Provenance{Source: src, SourceRecordID: entity.SourceRecordID(entity.KindInquiry, in.SourceRef)}
	var out *InquiryResult
	err := e.store.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		out, err = e.IngestInquiry(ctx, tx, in, ref)
		return err
	})
	return out, err
}

// GetInquiry consulta con dueño efectivo y notas.
func (e *Engine) GetInquiry(ctx context.Context, id string) (*entity.Inquiry, error) {
	repos := e.store.Repos()
	inq, err := repos.Inquiries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inq == nil {
		return nil, domain.ErrNotFound
	}
	if inq.Notes, err = repos.Notes.List(ctx, entity.NoteOnInquiry, id); err != nil {
		return nil, err
	}
	return inq, nil
}

// Take el vendedor toma la consulta: new → active (o active sin dueño). Si el cliente no tiene
// vendedor asignado, queda asignado a quien la toma; si otro lo reclamó antes, gana ese.
func (e *Engine) Take(ctx context.Context, inquiryID, salesperson string) (*entity.Inquiry, error) {
	salesperson, err := salespersonEmail(salesperson)
	if err != nil {
		return nil, err
	}
	return e.transition(ctx, inquiryID, entity.InquiryActive, func(ctx context.Context, repos repository.Repos, inq *entity.Inquiry, now time.Time) error {
		inq.AssignedTo = salesperson
		inq.EffectiveOwner = salesperson
		c, err := repos.Customers.GetByEmail(ctx, inq.CustomerEmail)
		if err != nil || c == nil {
			return err
		}
		claimed, err := repos.Customers.SetOwnerIfUnset(ctx, c.ID, salesperson, now)
		if err != nil || claimed {
			return err
		}
		if c, err = repos.Customers.GetByID(ctx, c.ID); err != nil {
			return err
		}
		if c != nil && c.AssignedOwner != "" {
			inq.EffectiveOwner = c.AssignedOwner
		}
		return nil
	})
}

// salespersonEmail normaliza el email del vendedor; debe tener forma de email.
func salespersonEmail(raw string) (string, error) {
	email, ok := crm.NormalizeEmail(raw)
	if !ok {
		return "", fmt.Errorf("%w: email de vendedor %q no válido", domain.ErrInvalidInput, email)
	}
	return email, nil
}

// MarkNotRelevant new → not_relevant (terminal).
func (e *Engine) MarkNotRelevant(ctx context.Context, inquiryID, actor string) (*entity.Inquiry, error) {
	return e.transition(ctx, inquiryID, entity.InquiryNotRelevant, func(ctx context.Context, repos repository.Repos, inq *entity.Inquiry, now time.Time) error {
		if actor == "" {
			return nil
		}
		return repos.Notes.Append(ctx, &entity.Note{
			Subject: entity.NoteOnInquiry, SubjectID: inq.ID, Author: actor,
			Body: "Marcada como no relevante", Private: true, CreatedAt: now,
		})
	})
}

// Close active → closed (terminal). La nota de cierre es obligatoria y queda en la consulta.
func (e *Engine) Close(ctx context.Context, inquiryID, actor, closingNote string) (*entity.Inquiry, error) {
	closingNote = strings.TrimSpace(closingNote)
	if closingNote == "" {
		return nil, domain.ErrClosingNoteRequired
	}
	return e.transition(ctx, inquiryID, entity.InquiryClosed, func(ctx context.Context, repos repository.Repos, inq *entity.Inquiry, now time.Time) error {
		return repos.Notes.Append(ctx, &entity.Note{
			Subject: entity.NoteOnInquiry, SubjectID: inq.ID, Author: actor,
			Body: closingNote, CreatedAt: now,
		})
	})
}

type transitionFn func(ctx context.Context, repos repository.Repos, inq *entity.Inquiry, now time.Time) error

func (e *Engine) transition(ctx context.Context, inquiryID string, to entity.InquiryStatus, apply transitionFn) (*entity.Inquiry, error) {
	var out *entity.Inquiry
	err := e.store.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		repos := tx.Repos()
		inq, err := repos.Inquiries.GetForUpdate(ctx, inquiryID)
		if err != nil {
			return err
		}
		if inq == nil {
			return domain.ErrNotFound
		}
		if !inq.CanTransition(to) {
			return fmt.Errorf("%w: %s → %s", domain.ErrInvalidTransition, inq.Status, to)
		}
		now := e.now()
		inq.Status = to
		inq.UpdatedAt = now
		if err := apply(ctx, repos, inq, now); err != nil {
			return err
		}
		if err := repos.Inquiries.Update(ctx, inq); err != nil {
			return err
		}
		out = inq
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info().Str("inquiry_id", inquiryID).Str("status", string(to)).Msg("consulta actualizada")
	return out, nil
}

// ─── Asignación de clientes ─────────────────────────────────────────────────

// ReassignResult resultado de una reasignación.
type ReassignResult struct {
	Customer         *entity.Customer
	InquiriesUpdated int
}

// Reassign cambia el vendedor del cliente y, en la misma transacción, el de todas sus consultas abiertas.
// Deja una nota privada de auditoría en el cliente. newOwner vacío libera la asignación.
func (e *Engine) Reassign(ctx context.Context, customerID, newOwner, actor string) (*ReassignResult, error) {
	newOwner = strings.TrimSpace(newOwner)
	if newOwner != "" {
		var err error
		if newOwner, err = salespersonEmail(newOwner); err != nil {
			return nil, err
		}
	}
	var out *ReassignResult
	err := e.store.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		repos := tx.Repos()
		c, err := repos.Customers.GetByID(ctx, customerID)
		if err != nil {
			return err
		}
		if c == nil {
			return domain.ErrNotFound
		}
		now := e.now()
		previous := c.AssignedOwner
		if err := repos.Customers.SetOwner(ctx, c.ID, newOwner, now); err != nil {
			return err
		}
		n, err := repos.Inquiries.ReassignOpen(ctx, c.Email, newOwner, now)
		if err != nil {
			return err
		}
		if err := repos.Notes.Append(ctx, &entity.Note{
			Subject:   entity.NoteOnCustomer,
			SubjectID: c.ID,
			Author:    actor,
			Body:      fmt.Sprintf("Vendedor reasignado: %s → %s (%d consultas abiertas)", ownerLabel(previous), ownerLabel(newOwner), n),
			Private:   true,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		c.AssignedOwner = newOwner
		out = &ReassignResult{Customer: c, InquiriesUpdated: n}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info().Str("customer_id", customerID).Str("owner", newOwner).Int("inquiries", out.InquiriesUpdated).Msg("cliente reasignado")
	return out, nil
}

func ownerLabel(owner string) string {
	if owner == "" {
		return "(sin asignar)"
	}
	return owner
}

// AddNote agrega una nota a un cliente o consulta existente.
func (e *Engine) AddNote(ctx context.Context, subject entity.NoteSubject, subjectID, author, body string, private bool) (*entity.Note, error) {
	body = strings.TrimSpace(body)
	if body == "" || author == "" {
		return nil, fmt.Errorf("%w: nota sin autor o contenido", domain.ErrInvalidInput)
	}
	note := &entity.Note{Subject: subject, SubjectID: subjectID, Author: author, Body: body, Private: private}
	err := e.store.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		repos := tx.Repos()
		switch subject {
		case entity.NoteOnCustomer:
			c, err := repos.Customers.GetByID(ctx, subjectID)
			if err != nil {
				return err
			}
			if c == nil {
				return domain.ErrNotFound
			}
		case entity.NoteOnInquiry:
			i, err := repos.Inquiries.GetByID(ctx, subjectID)
			if err != nil {
				return err
			}
			if i == nil {
				return domain.ErrNotFound
			}
		default:
			return fmt.Errorf("%w: sujeto %q", domain.ErrInvalidInput, subject)
		}
		note.CreatedAt = e.now()
		return repos.Notes.Append(ctx, note)
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}
