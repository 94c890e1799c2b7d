// Package customers expone las lecturas del cliente canónico.
package customers

import (
	"context"
	"strings"

	"github.com/jhoicas/CRM-api/internal/application/dto"
	"github.com/jhoicas/CRM-api/internal/domain"
	"github.com/jhoicas/CRM-api/internal/domain/crm"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/domain/repository"
)

const maxPageSize = 100

// UseCase casos de uso de lectura de clientes.
type UseCase struct {
	store   repository.Store
	bundles *crm.BundleTable
}

// NewUseCase construye el caso de uso.
func NewUseCase(store repository.Store, bundles *crm.BundleTable) *UseCase {
	return &UseCase{store: store, bundles: bundles}
}

// List devuelve una página de clientes filtrada por vendedor, estado o texto.
func (uc *UseCase) List(ctx context.Context, req dto.CustomerListRequest) (*dto.CustomerListResponse, error) {
	req.DefaultPage()
	if req.Limit > maxPageSize {
		req.Limit = maxPageSize
	}
	status := entity.LifecycleStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	switch status {
	case "", entity.LifecycleProspect, entity.LifecycleContact, entity.LifecycleCustomer:
	default:
		return nil, domain.ErrInvalidInput
	}
	owner := strings.TrimSpace(req.Owner)
	if owner != "" && owner != "-" {
		owner = strings.ToLower(owner)
	}
	list, err := uc.store.Repos().Customers.List(ctx, repository.CustomerFilter{
		Owner:  owner,
		Status: status,
		Search: strings.TrimSpace(req.Search),
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		return nil, err
	}
	out := &dto.CustomerListResponse{
		Items: make([]dto.CustomerResponse, 0, len(list)),
		Page:  dto.PageResponse{Limit: req.Limit, Offset: req.Offset},
	}
	for _, c := range list {
		out.Items = append(out.Items, dto.FromCustomer(c))
	}
	return out, nil
}

// Get devuelve el cliente con notas, pedidos, consultas y procedencia.
func (uc *UseCase) Get(ctx context.Context, id string) (*dto.CustomerDetailResponse, error) {
	repos := uc.store.Repos()
	c, err := repos.Customers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrNotFound
	}
	notes, err := repos.Notes.List(ctx, entity.NoteOnCustomer, c.ID)
	if err != nil {
		return nil, err
	}
	orders, err := repos.Orders.ListByEmail(ctx, c.Email)
	if err != nil {
		return nil, err
	}
	inquiries, err := repos.Inquiries.ListByEmail(ctx, c.Email)
	if err != nil {
		return nil, err
	}
	sources, err := repos.Contributions.ListByCanonical(ctx, entity.CanonicalCustomer, c.ID)
	if err != nil {
		return nil, err
	}

	out := &dto.CustomerDetailResponse{
		CustomerResponse: dto.FromCustomer(c),
		Notes:            dto.FromNotes(notes),
		Orders:           make([]dto.OrderResponse, 0, len(orders)),
		Inquiries:        make([]dto.InquiryResponse, 0, len(inquiries)),
		Sources:          dto.FromContributions(sources),
	}
	if out.Notes == nil {
		out.Notes = []dto.NoteResponse{}
	}
	for _, o := range orders {
		out.Orders = append(out.Orders, dto.FromOrder(o, uc.bundles))
	}
	for _, i := range inquiries {
		out.Inquiries = append(out.Inquiries, dto.FromInquiry(i))
	}
	return out, nil
}
