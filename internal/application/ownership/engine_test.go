package ownership_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/CRM-api/internal/application/identity"
	"github.com/jhoicas/CRM-api/internal/application/ownership"
	"github.com/jhoicas/CRM-api/internal/domain"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/infrastructure/memory"
)

var ahora = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func nuevoMotor() (*memory.Store, *ownership.Engine) {
	st := memory.NewStore()
	resolver := identity.NewResolver(st, zerolog.Nop(), identity.WithClock(func() time.Time { return ahora }))
	return st, ownership.NewEngine(st, resolver, zerolog.Nop())
}

func consulta(t *testing.T, e *ownership.Engine, ref, email string) *entity.Inquiry {
	t.Helper()
	res, err := e.CreateInquiry(context.Background(), entity.SourceWebsite, entity.IntermediateInquiry{
		SourceRef: ref,
		Customer:  entity.IntermediateCustomer{Email: email, FirstName: "Carla"},
		Category:  entity.CategoryBulk,
		Message:   "Necesito precios por volumen",
		CreatedAt: time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return res.Inquiry
}

// ─── Ingesta ────────────────────────────────────────────────────────────────

func TestEngine_CreateInquiryIdempotente(t *testing.T) {
	ctx := context.Background()
	st, e := nuevoMotor()

	primera := consulta(t, e, "F-1", "Carla@X.com")
	res, err := e.CreateInquiry(ctx, entity.SourceWebsite, entity.IntermediateInquiry{
		SourceRef: "F-1", Customer: entity.IntermediateCustomer{Email: "carla@x.com"},
		Category: entity.CategoryBulk, Message: "Necesito precios por volumen",
	})
	require.NoError(t, err)
	assert.False(t, res.Inserted)
	assert.Equal(t, primera.ID, res.Inquiry.ID)
	assert.Equal(t, entity.InquiryNew, primera.Status)
	assert.Equal(t, "carla@x.com", primera.CustomerEmail)

	c, err := st.Repos().Customers.GetByEmail(ctx, "carla@x.com")
	require.NoError(t, err)
	assert.Equal(t, 1, c.TotalInquiries)
	assert.Equal(t, entity.LifecycleContact, c.Status)
}

func TestEngine_CreateInquiryValida(t *testing.T) {
	_, e := nuevoMotor()
	ctx := context.Background()

	_, err := e.CreateInquiry(ctx, entity.SourceManual, entity.IntermediateInquiry{
		Customer: entity.IntermediateCustomer{Email: "c@x.com"}, Category: entity.CategoryBulk,
	})
	assert.ErrorIs(t, err, domain.ErrMalformedRecord)

	_, err = e.CreateInquiry(ctx, entity.SourceManual, entity.IntermediateInquiry{
		Customer: entity.IntermediateCustomer{Email: "c@x.com"}, Category: "otra", Message: "hola",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = e.CreateInquiry(ctx, entity.SourceManual, entity.IntermediateInquiry{
		Customer: entity.IntermediateCustomer{Email: "sin-email"}, Category: entity.CategoryIssues, Message: "hola",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidIdentity)
}

// ─── Máquina de estados ─────────────────────────────────────────────────────

func TestEngine_TakeAsignaClienteSinVendedor(t *testing.T) {
	ctx := context.Background()
	st, e := nuevoMotor()
	inq := consulta(t, e, "F-1", "carla@x.com")

	tomada, err := e.Take(ctx, inq.ID, " Bob@Ventas.com ")
	require.NoError(t, err)
	assert.Equal(t, entity.InquiryActive, tomada.Status)
	assert.Equal(t, "bob@ventas.com", tomada.AssignedTo)
	assert.Equal(t, "bob@ventas.com", tomada.EffectiveOwner)

	c, err := st.Repos().Customers.GetByEmail(ctx, "carla@x.com")
	require.NoError(t, err)
	assert.Equal(t, "bob@ventas.com", c.AssignedOwner)

	_, err = e.Take(ctx, inq.ID, "eva@ventas.com")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "una consulta activa con dueño no se vuelve a tomar")
}

func TestEngine_TakeRespetaVendedorDelCliente(t *testing.T) {
	ctx := context.Background()
	st, e := nuevoMotor()
	primera := consulta(t, e, "F-1", "carla@x.com")
	_, err := e.Take(ctx, primera.ID, "bob@ventas.com")
	require.NoError(t, err)

	segunda := consulta(t, e, "F-2", "carla@x.com")
	assert.Equal(t, "bob@ventas.com", segunda.EffectiveOwner)

	tomada, err := e.Take(ctx, segunda.ID, "eva@ventas.com")
	require.NoError(t, err)
	assert.Equal(t, "eva@ventas.com", tomada.AssignedTo)
	assert.Equal(t, "bob@ventas.com", tomada.EffectiveOwner)

	c, err := st.Repos().Customers.GetByEmail(ctx, "carla@x.com")
	require.NoError(t, err)
	assert.Equal(t, "bob@ventas.com", c.AssignedOwner)
}

func TestEngine_TakeNoPisaDuenoFijadoPorOtro(t *testing.T) {
	ctx := context.Background()
	st, e := nuevoMotor()
	inq := consulta(t, e, "F-1", "carla@x.com")

	repos := st.Repos()
	c, err := repos.Customers.GetByEmail(ctx, "carla@x.com")
	require.NoError(t, err)
	require.NoError(t, repos.Customers.SetOwner(ctx, c.ID, "bob@ventas.com", ahora))

	tomada, err := e.Take(ctx, inq.ID, "eva@ventas.com")
	require.NoError(t, err)
	assert.Equal(t, "eva@ventas.com", tomada.AssignedTo)
	assert.Equal(t, "bob@ventas.com", tomada.EffectiveOwner)

	c, err = repos.Customers.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob@ventas.com", c.AssignedOwner, "el dueño existente se conserva")
}

func TestEngine_ActivaSinDuenoSePuedeTomar(t *testing.T) {
	ctx := context.Background()
	st, e := nuevoMotor()
	inq := consulta(t, e, "F-1", "carla@x.com")
	_, err := e.Take(ctx, inq.ID, "bob@ventas.com")
	require.NoError(t, err)

	c, err := st.Repos().Customers.GetByEmail(ctx, "carla@x.com")
	require.NoError(t, err)
	_, err = e.Reassign(ctx, c.ID, "", "admin@crm.com")
	require.NoError(t, err)

	tomada, err := e.Take(ctx, inq.ID, "eva@ventas.com")
	require.NoError(t, err)
	assert.Equal(t, entity.InquiryActive, tomada.Status)
	assert.Equal(t, "eva@ventas.com", tomada.AssignedTo)
	assert.Equal(t, "eva@ventas.com", tomada.EffectiveOwner)

	c, err = st.Repos().Customers.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "eva@ventas.com", c.AssignedOwner)
}

func TestEngine_VendedorDebeSerEmail(t *testing.T) {
	ctx := context.Background()
	st, e := nuevoMotor()
	inq := consulta(t, e, "F-1", "carla@x.com")

	for _, vendedor := range []string{"", "  ", "eva", "eva@"} {
		_, err := e.Take(ctx, inq.ID, vendedor)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, vendedor)
	}

	c, err := st.Repos().Customers.GetByEmail(ctx, "carla@x.com")
	require.NoError(t, err)
	_, err = e.Reassign(ctx, c.ID, "eva", "admin@crm.com")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	got, err := e.GetInquiry(ctx, inq.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.InquiryNew, got.Status, "un vendedor inválido no cambia el estado")
}

func TestEngine_CloseExigeNotaYEstadoActivo(t *testing.T) {
	ctx := context.Background()
	_, e := nuevoMotor()
	inq := consulta(t, e, "F-1", "carla@x.com")

	_, err := e.Close(ctx, inq.ID, "bob@ventas.com", "  ")
	assert.ErrorIs(t, err, domain.ErrClosingNoteRequired)

	_, err = e.Close(ctx, inq.ID, "bob@ventas.com", "Cotización enviada")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "new no se cierra directamente")

	_, err = e.Take(ctx, inq.ID, "bob@ventas.com")
	require.NoError(t, err)
	cerrada, err := e.Close(ctx, inq.ID, "bob@ventas.com", "Cotización enviada")
	require.NoError(t, err)
	assert.Equal(t, entity.InquiryClosed, cerrada.Status)

	got, err := e.GetInquiry(ctx, inq.ID)
	require.NoError(t, err)
	require.Len(t, got.Notes, 1)
	assert.Equal(t, "Cotización enviada", got.Notes[0].Body)

	_, err = e.MarkNotRelevant(ctx, inq.ID, "bob@ventas.com")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "closed es terminal")
}

func TestEngine_MarkNotRelevantSoloDesdeNew(t *testing.T) {
	ctx := context.Background()
	_, e := nuevoMotor()
	nueva := consulta(t, e, "F-1", "carla@x.com")
	activa := consulta(t, e, "F-2", "carla@x.com")
	_, err := e.Take(ctx, activa.ID, "bob@ventas.com")
	require.NoError(t, err)

	out, err := e.MarkNotRelevant(ctx, nueva.ID, "bob@ventas.com")
	require.NoError(t, err)
	assert.Equal(t, entity.InquiryNotRelevant, out.Status)

	_, err = e.MarkNotRelevant(ctx, activa.ID, "bob@ventas.com")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = e.Take(ctx, "no-existe", "bob@ventas.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ─── Reasignación ───────────────────────────────────────────────────────────

func TestEngine_ReassignCascadaSoloConsultasAbiertas(t *testing.T) {
	ctx := context.Background()
	st, e := nuevoMotor()
	abierta := consulta(t, e, "F-1", "carla@x.com")
	activa := consulta(t, e, "F-2", "carla@x.com")
	cerrada := consulta(t, e, "F-3", "carla@x.com")
	_, err := e.Take(ctx, activa.ID, "bob@ventas.com")
	require.NoError(t, err)
	_, err = e.Take(ctx, cerrada.ID, "bob@ventas.com")
	require.NoError(t, err)
	_, err = e.Close(ctx, cerrada.ID, "bob@ventas.com", "listo")
	require.NoError(t, err)

	c, err := st.Repos().Customers.GetByEmail(ctx, "carla@x.com")
	require.NoError(t, err)

	res, err := e.Reassign(ctx, c.ID, "Eva@Ventas.com", "admin@crm.com")
	require.NoError(t, err)
	assert.Equal(t, 2, res.InquiriesUpdated)
	assert.Equal(t, "eva@ventas.com", res.Customer.AssignedOwner)

	repos := st.Repos()
	for _, id := range []string{abierta.ID, activa.ID} {
		inq, err := repos.Inquiries.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "eva@ventas.com", inq.AssignedTo)
		assert.Equal(t, "eva@ventas.com", inq.EffectiveOwner)
	}
	hist, err := repos.Inquiries.GetByID(ctx, cerrada.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob@ventas.com", hist.AssignedTo, "las cerradas conservan su dueño histórico")

	notas, err := repos.Notes.List(ctx, entity.NoteOnCustomer, c.ID)
	require.NoError(t, err)
	require.Len(t, notas, 1)
	assert.True(t, notas[0].Private)
	assert.Contains(t, notas[0].Body, "bob@ventas.com → eva@ventas.com")
}

func TestEngine_ReassignClienteInexistente(t *testing.T) {
	_, e := nuevoMotor()
	_, err := e.Reassign(context.Background(), "no-existe", "eva@ventas.com", "admin@crm.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ─── Contadores ─────────────────────────────────────────────────────────────

func TestEngine_RecomputeCorrigeDesfase(t *testing.T) {
	ctx := context.Background()
	st, e := nuevoMotor()
	consulta(t, e, "F-1", "carla@x.com")
	consulta(t, e, "F-2", "carla@x.com")

	repos := st.Repos()
	c, err := repos.Customers.GetByEmail(ctx, "carla@x.com")
	require.NoError(t, err)
	require.NoError(t, repos.Customers.UpdateTotals(ctx, c.ID, entity.LifecycleCustomer,
		entity.ActivityTotals{TotalOrders: 7, TotalSpent: decimal.NewFromInt(999), TotalInquiries: 0}))

	fixed, err := e.RecomputeCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fixed.TotalOrders)
	assert.Equal(t, 2, fixed.TotalInquiries)
	assert.True(t, fixed.TotalSpent.IsZero())
	assert.Equal(t, entity.LifecycleContact, fixed.Status)

	again, err := e.RecomputeCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, fixed.TotalInquiries, again.TotalInquiries)

	_, err = e.RecomputeCustomer(ctx, "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEngine_AddNote(t *testing.T) {
	ctx := context.Background()
	st, e := nuevoMotor()
	inq := consulta(t, e, "F-1", "carla@x.com")

	n, err := e.AddNote(ctx, entity.NoteOnInquiry, inq.ID, "bob@ventas.com", " Llamar el lunes ", false)
	require.NoError(t, err)
	assert.Equal(t, "Llamar el lunes", n.Body)
	assert.True(t, ahora.Equal(n.CreatedAt))

	_, err = e.AddNote(ctx, entity.NoteOnInquiry, inq.ID, "bob@ventas.com", "", false)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = e.AddNote(ctx, entity.NoteOnCustomer, "no-existe", "bob@ventas.com", "hola", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	notas, err := st.Repos().Notes.List(ctx, entity.NoteOnInquiry, inq.ID)
	require.NoError(t, err)
	assert.Len(t, notas, 1)
}
