package dto

import (
	"github.com/jhoicas/CRM-api/internal/domain/crm"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
)

// FromCustomer convierte el cliente canónico.
func FromCustomer(c *entity.Customer) CustomerResponse {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return CustomerResponse{
		ID: c.ID, Email: c.Email, FirstName: c.FirstName, LastName: c.LastName,
		Phone: c.Phone, CompanyName: c.CompanyName,
		BillingAddress: c.BillingAddress, ShippingAddress: c.ShippingAddress,
		Status: string(c.Status), AssignedOwner: c.AssignedOwner, Tags: tags,
		TotalInquiries: c.TotalInquiries, TotalOrders: c.TotalOrders, TotalSpent: c.TotalSpent,
		FirstContactAt: c.FirstContactAt, LastContactAt: c.LastContactAt,
		CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
}

// FromOrder convierte el pedido; las líneas pasan por la tabla de bundles.
func FromOrder(o *entity.Order, bundles *crm.BundleTable) OrderResponse {
	lines := make([]LineItemResponse, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		eff := bundles.Expand(li)
		lines = append(lines, LineItemResponse{
			SKU: li.SKU, Label: li.Label, Quantity: li.Quantity, UnitPrice: li.UnitPrice, LineTotal: li.LineTotal,
			EffectiveSKU: eff.SKU, EffectiveQuantity: eff.Quantity, Bundle: eff.Bundle,
		})
	}
	_, fields := crm.ParseOrderNotes(o.Notes)
	if len(fields) == 0 {
		fields = nil
	}
	out := OrderResponse{
		ID: o.ID, OrderNumber: o.OrderNumber, CustomerEmail: o.CustomerEmail, CustomerName: o.CustomerName,
		TotalAmount: o.TotalAmount, Currency: o.Currency, Status: string(o.Status),
		ShippingAddress: o.ShippingAddress, TrackingNumber: o.TrackingNumber,
		Notes: o.Notes, NoteFields: fields,
		Source: string(o.Source), SourceID: o.SourceID, BusinessUnit: string(o.BusinessUnit),
		SalesOwner: o.SalesOwner, LineItems: lines,
		CreatedAt: o.CreatedAt, UpdatedAt: o.UpdatedAt,
	}
	if !o.PlacedAt.IsZero() {
		placed := o.PlacedAt
		out.PlacedAt = &placed
	}
	return out
}

// FromInquiry convierte la consulta.
func FromInquiry(i *entity.Inquiry) InquiryResponse {
	return InquiryResponse{
		ID: i.ID, CustomerEmail: i.CustomerEmail, Category: string(i.Category), Message: i.Message,
		Status: string(i.Status), AssignedTo: i.AssignedTo, EffectiveOwner: i.EffectiveOwner,
		Source: string(i.Source), SourceRef: i.SourceRef, Notes: FromNotes(i.Notes),
		CreatedAt: i.CreatedAt, UpdatedAt: i.UpdatedAt,
	}
}

// FromNotes convierte notas; nil si no hay.
func FromNotes(notes []*entity.Note) []NoteResponse {
	if len(notes) == 0 {
		return nil
	}
	out := make([]NoteResponse, 0, len(notes))
	for _, n := range notes {
		out = append(out, NoteResponse{ID: n.ID, Author: n.Author, Body: n.Body, Private: n.Private, CreatedAt: n.CreatedAt})
	}
	return out
}

// FromContributions convierte filas del libro de procedencia.
func FromContributions(list []*entity.SourceContribution) []ContributionResponse {
	out := make([]ContributionResponse, 0, len(list))
	for _, c := range list {
		out = append(out, ContributionResponse{
			Source: string(c.Source), SourceRecordID: c.SourceRecordID, FirstSeen: c.FirstSeen, LastSeen: c.LastSeen,
		})
	}
	return out
}

// FromSyncRuns convierte corridas registradas.
func FromSyncRuns(runs []*entity.SyncRun) []SyncRunResponse {
	out := make([]SyncRunResponse, 0, len(runs))
	for _, r := range runs {
		out = append(out, SyncRunResponse{
			ID: r.ID, Source: string(r.Source), Mode: string(r.Mode), Cursor: r.Cursor,
			Success: r.Success, Message: r.Message, Stats: r.Stats,
			StartedAt: r.StartedAt, FinishedAt: r.FinishedAt,
		})
	}
	return out
}
