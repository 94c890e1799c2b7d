package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/CRM-api/internal/application/identity"
	"github.com/jhoicas/CRM-api/internal/domain"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/domain/repository"
	"github.com/jhoicas/CRM-api/internal/infrastructure/memory"
)

var ahora = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func nuevoResolver(st *memory.Store, opts ...identity.Option) *identity.Resolver {
	opts = append([]identity.Option{identity.WithClock(func() time.Time { return ahora })}, opts...)
	return identity.NewResolver(st, zerolog.Nop(), opts...)
}

func resolver(t *testing.T, r *identity.Resolver, in entity.IntermediateCustomer, ref entity.Provenance) *identity.Result {
	t.Helper()
	res, err := r.ResolveCustomerStandalone(context.Background(), in, ref)
	require.NoError(t, err)
	return res
}

// ─── Fusión entre orígenes ──────────────────────────────────────────────────

func TestResolver_FusionaMismoEmailEntreOrigenes(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	r := nuevoResolver(st)

	tienda := resolver(t, r,
		entity.IntermediateCustomer{RecordID: "customer:555", Email: " Ana@Example.COM ", FirstName: "Ana", Tags: []string{"vip"},
			SeenAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		entity.Provenance{Source: entity.SourceEcommerce, SourceRecordID: "customer:555", NativeID: 555})
	assert.True(t, tienda.Created)
	assert.Equal(t, "ana@example.com", tienda.Customer.Email)
	assert.Equal(t, entity.LifecycleProspect, tienda.Customer.Status)

	contable := resolver(t, r,
		entity.IntermediateCustomer{RecordID: "contact:ana ruiz", Email: "ana@example.com", FirstName: "Ana María", LastName: "Ruiz",
			Phone: "555-1234", CompanyName: "Ruiz SAS", Tags: []string{"mayorista"},
			SeenAt: time.Date(2023, 11, 5, 0, 0, 0, 0, time.UTC)},
		entity.Provenance{Source: entity.SourceAccounting, SourceRecordID: "contact:ana ruiz"})
	assert.False(t, contable.Created)
	assert.Equal(t, tienda.Customer.ID, contable.Customer.ID)

	c, err := st.Repos().Customers.GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ana", c.FirstName, "el contenido existente no se sobrescribe")
	assert.Equal(t, "Ruiz", c.LastName)
	assert.Equal(t, "555-1234", c.Phone)
	assert.Equal(t, "Ruiz SAS", c.CompanyName)
	assert.ElementsMatch(t, []string{"vip", "mayorista"}, c.Tags)
	assert.True(t, c.CreatedAt.Equal(time.Date(2023, 11, 5, 0, 0, 0, 0, time.UTC)), "gana la fecha más antigua")

	contribs, err := st.Repos().Contributions.ListByCanonical(ctx, entity.CanonicalCustomer, c.ID)
	require.NoError(t, err)
	require.Len(t, contribs, 2)
	origenes := []entity.Source{contribs[0].Source, contribs[1].Source}
	assert.ElementsMatch(t, []entity.Source{entity.SourceEcommerce, entity.SourceAccounting}, origenes)
}

func TestResolver_Idempotente(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	r := nuevoResolver(st)
	in := entity.IntermediateCustomer{RecordID: "customer:9", Email: "b@x.com", FirstName: "Beto"}
	ref := entity.Provenance{Source: entity.SourceEcommerce, SourceRecordID: "customer:9", NativeID: 9}

	primero := resolver(t, r, in, ref)
	segundo := resolver(t, r, in, ref)

	assert.True(t, primero.Created)
	assert.False(t, segundo.Created)
	assert.Equal(t, primero.Customer.ID, segundo.Customer.ID)

	contribs, err := st.Repos().Contributions.ListByCanonical(ctx, entity.CanonicalCustomer, primero.Customer.ID)
	require.NoError(t, err)
	require.Len(t, contribs, 1)
	assert.Equal(t, int64(9), contribs[0].NativeID)

	maxID, err := st.Repos().Contributions.MaxNativeID(ctx, entity.SourceEcommerce, entity.KindCustomer)
	require.NoError(t, err)
	assert.Equal(t, int64(9), maxID)
}

func TestResolver_EmailInvalido(t *testing.T) {
	r := nuevoResolver(memory.NewStore())
	for _, email := range []string{"", "   ", "sin-arroba", "a@"} {
		_, err := r.ResolveCustomerStandalone(context.Background(),
			entity.IntermediateCustomer{Email: email}, entity.Provenance{Source: entity.SourceWebsite})
		assert.ErrorIs(t, err, domain.ErrInvalidIdentity, email)
	}
}

// ─── Conflictos ─────────────────────────────────────────────────────────────

// conflictTx falla las primeras inserciones de cliente con domain.ErrConflict.
type conflictTx struct {
	inner     repository.Tx
	pendiente *int
}

func (t *conflictTx) Repos() repository.Repos {
	repos := t.inner.Repos()
	repos.Customers = &conflictCustomers{CustomerRepository: repos.Customers, pendiente: t.pendiente}
	return repos
}

func (t *conflictTx) Savepoint(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return t.inner.Savepoint(ctx, func(ctx context.Context, _ repository.Tx) error { return fn(ctx, t) })
}

type conflictCustomers struct {
	repository.CustomerRepository
	pendiente *int
}

func (c *conflictCustomers) InsertIfAbsent(ctx context.Context, cu *entity.Customer) (bool, error) {
	if *c.pendiente > 0 {
		*c.pendiente--
		return false, domain.ErrConflict
	}
	return c.CustomerRepository.InsertIfAbsent(ctx, cu)
}

func resolverConConflictos(st *memory.Store, r *identity.Resolver, fallos int) (*identity.Result, error) {
	var res *identity.Result
	err := st.Run(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		var err error
		res, err = r.ResolveCustomer(ctx, &conflictTx{inner: tx, pendiente: &fallos},
			entity.IntermediateCustomer{Email: "c@x.com"}, entity.Provenance{Source: entity.SourceManual})
		return err
	})
	return res, err
}

func TestResolver_ReintentaTrasConflicto(t *testing.T) {
	st := memory.NewStore()
	res, err := resolverConConflictos(st, nuevoResolver(st), 2)
	require.NoError(t, err)
	assert.True(t, res.Created)
}

func TestResolver_AgotaReintentos(t *testing.T) {
	st := memory.NewStore()
	_, err := resolverConConflictos(st, nuevoResolver(st, identity.WithMaxRetries(3)), 10)
	require.ErrorIs(t, err, domain.ErrConflictRetryExhausted)

	c, err := st.Repos().Customers.GetByEmail(context.Background(), "c@x.com")
	require.NoError(t, err)
	assert.Nil(t, c)
}
