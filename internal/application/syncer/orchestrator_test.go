package syncer_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/CRM-api/internal/application/identity"
	"github.com/jhoicas/CRM-api/internal/application/orders"
	"github.com/jhoicas/CRM-api/internal/application/ownership"
	"github.com/jhoicas/CRM-api/internal/application/syncer"
	"github.com/jhoicas/CRM-api/internal/domain"
	"github.com/jhoicas/CRM-api/internal/domain/crm"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/domain/source"
	"github.com/jhoicas/CRM-api/internal/infrastructure/memory"
	"github.com/jhoicas/CRM-api/pkg/metrics"
)

// ─── Dobles de prueba ───────────────────────────────────────────────────────

// fakeAdapter sirve páginas por cursor; errs se devuelven en orden antes de cada página.
type fakeAdapter struct {
	syncer.NormalizingAdapter
	src   entity.Source
	kind  entity.RecordKind
	pages map[string]*syncer.Page

	mu       sync.Mutex
	errs     []error
	requests []syncer.PageRequest
}

func (a *fakeAdapter) Source() entity.Source   { return a.src }
func (a *fakeAdapter) Kind() entity.RecordKind { return a.kind }

func (a *fakeAdapter) FetchPage(_ context.Context, req syncer.PageRequest) (*syncer.Page, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	if len(a.errs) > 0 {
		err := a.errs[0]
		a.errs = a.errs[1:]
		return nil, err
	}
	return a.pages[req.Cursor], nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	runs    map[string]bool
	retries map[string]int
}

func (r *fakeRecorder) ObserveSyncRun(src string, success bool, _ metrics.RunStats, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[src] = success
}

func (r *fakeRecorder) IncUpstreamRetry(_, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries[reason]++
}

type entorno struct {
	store    *memory.Store
	orch     *syncer.Orchestrator
	recorder *fakeRecorder
	waits    []time.Duration
}

func nuevoEntorno(t *testing.T) *entorno {
	t.Helper()
	return nuevoEntornoCon(t, syncer.Options{BackoffBase: 100 * time.Millisecond})
}

func nuevoEntornoCon(t *testing.T, opts syncer.Options) *entorno {
	t.Helper()
	st := memory.NewStore()
	clock := func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	resolver := identity.NewResolver(st, zerolog.Nop(), identity.WithClock(clock))
	engine := ownership.NewEngine(st, resolver, zerolog.Nop())
	unifier := orders.NewUnifier(resolver, engine, crm.MustDefaultBundleTable(), zerolog.Nop())

	e := &entorno{store: st, recorder: &fakeRecorder{runs: map[string]bool{}, retries: map[string]int{}}}
	e.orch = syncer.NewOrchestrator(st, resolver, unifier, engine, zerolog.Nop(),
		syncer.WithRecorder(e.recorder),
		syncer.WithOptions(opts),
		syncer.WithClock(clock),
		syncer.WithSleep(func(ctx context.Context, d time.Duration) error {
			e.waits = append(e.waits, d)
			return ctx.Err()
		}),
	)
	return e
}

func (e *entorno) registrar(a *fakeAdapter) {
	e.orch.Register(a.src, func(map[string]string) (syncer.SourceAdapter, error) { return a, nil })
}

func pedidoJSON(id int, email string) source.RawRecord {
	payload, _ := json.Marshal(map[string]any{
		"id":               id,
		"order_number":     id,
		"email":            email,
		"total_price":      "10.00",
		"financial_status": "paid",
		"created_at":       "2024-05-01T10:00:00Z",
	})
	return source.RawRecord{Source: entity.SourceEcommerce, Kind: entity.KindOrder, Payload: payload}
}

func pagina(next string, from, to int) *syncer.Page {
	p := &syncer.Page{NextCursor: next}
	for i := from; i <= to; i++ {
		p.Records = append(p.Records, pedidoJSON(i, fmt.Sprintf("c%d@x.com", i%7)))
	}
	return p
}

func tienda(pages map[string]*syncer.Page) *fakeAdapter {
	return &fakeAdapter{src: entity.SourceEcommerce, kind: entity.KindOrder, pages: pages}
}

func completa() syncer.Request {
	return syncer.Request{Source: entity.SourceEcommerce, Mode: entity.SyncFull}
}

// ─── Corridas ───────────────────────────────────────────────────────────────

func TestRunSync_MismaPaginaDosVecesEsIdempotente(t *testing.T) {
	ctx := context.Background()
	e := nuevoEntorno(t)
	e.registrar(tienda(map[string]*syncer.Page{"": pagina("", 1, 250)}))

	primera, err := e.orch.RunSync(ctx, completa())
	require.NoError(t, err)
	assert.True(t, primera.Success)
	assert.Equal(t, 250, primera.Stats.Inserted)
	assert.Equal(t, 0, primera.Stats.Updated)

	segunda, err := e.orch.RunSync(ctx, completa())
	require.NoError(t, err)
	assert.Equal(t, 0, segunda.Stats.Inserted)
	assert.Equal(t, 250, segunda.Stats.Updated)
	assert.Equal(t, 1, segunda.Stats.Pages)

	c, err := e.store.Repos().Customers.GetByEmail(ctx, "c1@x.com")
	require.NoError(t, err)
	assert.Equal(t, 36, c.TotalOrders, "ids 1..250 con i%7 == 1")

	runs, err := e.orch.RecentRuns(ctx, entity.SourceEcommerce, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.True(t, e.recorder.runs["ecommerce"])
}

func TestRunSync_VariasPaginasHastaCursorVacio(t *testing.T) {
	e := nuevoEntorno(t)
	a := tienda(map[string]*syncer.Page{"": pagina("p2", 1, 3), "p2": pagina("p3", 4, 6), "p3": pagina("", 7, 8)})
	e.registrar(a)

	res, err := e.orch.RunSync(context.Background(), completa())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Stats.Pages)
	assert.Equal(t, 8, res.Stats.Fetched)
	assert.Equal(t, 8, res.Stats.Inserted)
	require.Len(t, a.requests, 3)
	assert.Equal(t, syncer.DefaultPageSize, a.requests[0].Limit)
}

func TestRunSync_CursorRepetidoAbortaConservandoPaginas(t *testing.T) {
	ctx := context.Background()
	e := nuevoEntorno(t)
	loop := pagina("mismo", 1, 2)
	e.registrar(tienda(map[string]*syncer.Page{"": loop, "mismo": loop}))

	res, err := e.orch.RunSync(ctx, completa())
	require.ErrorIs(t, err, domain.ErrPaginationLoop)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, 3, res.Stats.Pages)
	assert.Equal(t, 2, res.Stats.Inserted)
	assert.Equal(t, 4, res.Stats.Updated)

	o, err := e.store.Repos().Orders.ListPlacedBetween(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, o, 2, "las páginas confirmadas se conservan")

	runs, err := e.orch.RecentRuns(ctx, entity.SourceEcommerce, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.False(t, runs[0].Success)
	assert.Contains(t, runs[0].Message, "detenida")
}

func TestRunSync_RegistrosMalFormadosNoAbortanLaPagina(t *testing.T) {
	e := nuevoEntorno(t)
	p := pagina("", 1, 2)
	p.Records = append(p.Records,
		source.RawRecord{Source: entity.SourceEcommerce, Kind: entity.KindOrder, Payload: json.RawMessage(`{"id": 9}`)},
		source.RawRecord{Source: entity.SourceEcommerce, Kind: entity.KindOrder, Payload: json.RawMessage(`no es json`)},
		pedidoJSON(10, "sin-arroba"),
	)
	e.registrar(tienda(map[string]*syncer.Page{"": p}))

	res, err := e.orch.RunSync(context.Background(), completa())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Stats.Fetched)
	assert.Equal(t, 3, res.Stats.Inserted, "el pedido sin email válido se guarda sin vincular")
	assert.Equal(t, 2, res.Stats.Errors)
	assert.Equal(t, 2, res.Stats.Skipped)
}

func TestRunSync_IncrementalPideDesdeElMayorID(t *testing.T) {
	ctx := context.Background()
	e := nuevoEntorno(t)
	a := tienda(map[string]*syncer.Page{"": pagina("", 1, 5)})
	e.registrar(a)

	_, err := e.orch.RunSync(ctx, completa())
	require.NoError(t, err)
	_, err = e.orch.RunSync(ctx, syncer.Request{Source: entity.SourceEcommerce})
	require.NoError(t, err)
	_, err = e.orch.RunSync(ctx, syncer.Request{Source: entity.SourceEcommerce, Mode: entity.SyncIncremental, Cursor: "c1"})
	require.NoError(t, err)

	require.Len(t, a.requests, 3)
	assert.Zero(t, a.requests[0].SinceID, "full no usa cursor incremental")
	assert.Equal(t, int64(5), a.requests[1].SinceID)
	assert.Zero(t, a.requests[2].SinceID, "un cursor explícito tiene prioridad")
	assert.Equal(t, "c1", a.requests[2].Cursor)
}

// cancelaAlMapear cancela el contexto de la corrida al mapear el registro número n.
type cancelaAlMapear struct {
	*fakeAdapter
	n      int
	cancel context.CancelFunc
	vistos int
}

func (a *cancelaAlMapear) MapRecord(raw source.RawRecord) (*entity.Record, error) {
	a.vistos++
	if a.vistos == a.n {
		a.cancel()
	}
	return a.fakeAdapter.MapRecord(raw)
}

func TestRunSync_CancelacionDeshaceSoloLaPaginaEnCurso(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := nuevoEntorno(t)
	a := &cancelaAlMapear{
		fakeAdapter: tienda(map[string]*syncer.Page{"": pagina("p2", 1, 3), "p2": pagina("", 4, 6)}),
		n:           5,
		cancel:      cancel,
	}
	e.orch.Register(entity.SourceEcommerce, func(map[string]string) (syncer.SourceAdapter, error) { return a, nil })

	res, err := e.orch.RunSync(ctx, completa())
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Stats.Pages)
	assert.Equal(t, 3, res.Stats.Inserted)

	bg := context.Background()
	o, err := e.store.Repos().Orders.ListPlacedBetween(bg, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, o, 3, "la primera página queda confirmada y la segunda se deshace")
	for _, ord := range o {
		assert.Contains(t, []string{"1", "2", "3"}, ord.OrderNumber)
	}

	runs, err := e.orch.RecentRuns(bg, entity.SourceEcommerce, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1, "la corrida cancelada queda registrada")
	assert.False(t, runs[0].Success)
}

// ─── Errores del origen ─────────────────────────────────────────────────────

func TestRunSync_RateLimitRespetaRetryAfter(t *testing.T) {
	e := nuevoEntorno(t)
	a := tienda(map[string]*syncer.Page{"": pagina("", 1, 1)})
	a.errs = []error{syncer.RateLimited(0, "429"), syncer.RateLimited(7*time.Second, "429")}
	e.registrar(a)

	res, err := e.orch.RunSync(context.Background(), completa())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.Inserted)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 7 * time.Second}, e.waits)
	assert.Equal(t, 2, e.recorder.retries["rate_limited"])
}

func TestRunSync_RateLimitAgotaIntentos(t *testing.T) {
	e := nuevoEntorno(t)
	a := tienda(nil)
	for i := 0; i < syncer.DefaultRateLimitRetries; i++ {
		a.errs = append(a.errs, syncer.RateLimited(0, "429"))
	}
	e.registrar(a)

	res, err := e.orch.RunSync(context.Background(), completa())
	require.ErrorIs(t, err, domain.ErrUpstreamRateLimited)
	assert.False(t, res.Success)
	assert.Len(t, a.requests, syncer.DefaultRateLimitRetries)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond}, e.waits)
}

func TestRunSync_TransporteReintentaYFalla(t *testing.T) {
	e := nuevoEntorno(t)
	a := tienda(nil)
	for i := 0; i <= syncer.DefaultTransportRetries; i++ {
		a.errs = append(a.errs, syncer.TransportFailure("conexión rechazada"))
	}
	e.registrar(a)

	_, err := e.orch.RunSync(context.Background(), completa())
	require.ErrorIs(t, err, domain.ErrTransportFailure)
	assert.Len(t, a.requests, syncer.DefaultTransportRetries+1)
	assert.Equal(t, syncer.DefaultTransportRetries, e.recorder.retries["transport"])
	assert.False(t, e.recorder.runs["ecommerce"])
}

func TestRunSync_BackoffAcotado(t *testing.T) {
	e := nuevoEntornoCon(t, syncer.Options{BackoffBase: 20 * time.Second})
	a := tienda(map[string]*syncer.Page{"": pagina("", 1, 1)})
	for i := 0; i < syncer.DefaultTransportRetries; i++ {
		a.errs = append(a.errs, syncer.TransportFailure("timeout"))
	}
	e.registrar(a)

	res, err := e.orch.RunSync(context.Background(), completa())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.Inserted)
	assert.Equal(t, []time.Duration{20 * time.Second, 30 * time.Second, 30 * time.Second}, e.waits)
}

func TestRunSync_ErrorDesconocidoNoSeReintenta(t *testing.T) {
	e := nuevoEntorno(t)
	a := tienda(nil)
	a.errs = []error{domain.ErrUnauthorized}
	e.registrar(a)

	_, err := e.orch.RunSync(context.Background(), completa())
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Len(t, a.requests, 1)
	assert.Empty(t, e.waits)
}

func TestRunSync_PeticionInvalida(t *testing.T) {
	ctx := context.Background()
	e := nuevoEntorno(t)
	e.registrar(tienda(nil))

	res, err := e.orch.RunSync(ctx, syncer.Request{Source: "erp", Mode: entity.SyncFull})
	require.ErrorIs(t, err, domain.ErrUnknownSource)
	assert.NotNil(t, res)

	_, err = e.orch.RunSync(ctx, syncer.Request{Source: entity.SourceEcommerce, Mode: "parcial"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	errFabrica := errors.New("credenciales incompletas")
	e.orch.Register(entity.SourceAccounting, func(map[string]string) (syncer.SourceAdapter, error) { return nil, errFabrica })
	_, err = e.orch.RunSync(ctx, syncer.Request{Source: entity.SourceAccounting, Mode: entity.SyncFull})
	assert.ErrorIs(t, err, errFabrica)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]entity.SyncMode{"": entity.SyncIncremental, " Incremental ": entity.SyncIncremental, "FULL": entity.SyncFull} {
		got, err := syncer.ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := syncer.ParseMode("todo")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ─── Push y paralelo ────────────────────────────────────────────────────────

func TestIngestBatch_MismoCaminoQueUnaPagina(t *testing.T) {
	ctx := context.Background()
	e := nuevoEntorno(t)
	raws := []source.RawRecord{
		{Kind: entity.KindInquiry, Payload: json.RawMessage(`{"id": "F-1", "email": "c@x.com", "category": "bulk", "message": "hola"}`)},
		{Kind: entity.KindInquiry, Payload: json.RawMessage(`{"id": "F-2", "category": "bulk", "message": "sin email"}`)},
	}

	res, err := e.orch.IngestBatch(ctx, entity.SourceWebsite, raws)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.Inserted)
	assert.Equal(t, 1, res.Stats.Errors)

	again, err := e.orch.IngestBatch(ctx, entity.SourceWebsite, raws[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, again.Stats.Updated)

	runs, err := e.orch.RecentRuns(ctx, entity.SourceWebsite, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, entity.SyncPush, runs[0].Mode)
}

func TestIngestBatch_PedidoQueCambiaDeClienteRecalculaElAnterior(t *testing.T) {
	ctx := context.Background()
	e := nuevoEntorno(t)

	_, err := e.orch.IngestBatch(ctx, entity.SourceEcommerce, []source.RawRecord{pedidoJSON(1001, "a@x.com")})
	require.NoError(t, err)
	res, err := e.orch.IngestBatch(ctx, entity.SourceEcommerce, []source.RawRecord{pedidoJSON(1001, "b@x.com")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.Updated)

	a, err := e.store.Repos().Customers.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Zero(t, a.TotalOrders)
	b, err := e.store.Repos().Customers.GetByEmail(ctx, "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, 1, b.TotalOrders)
}

func TestSyncAll_UnFalloNoDetieneALosDemas(t *testing.T) {
	e := nuevoEntorno(t)
	e.registrar(tienda(map[string]*syncer.Page{"": pagina("", 1, 3)}))
	roto := &fakeAdapter{src: entity.SourceWebsite, kind: entity.KindInquiry, errs: []error{domain.ErrForbidden}}
	e.registrar(roto)

	out := e.orch.SyncAll(context.Background(), []syncer.Request{
		completa(),
		{Source: entity.SourceWebsite, Mode: entity.SyncFull},
	})
	require.Len(t, out, 2)
	assert.NoError(t, out[0].Err)
	assert.Equal(t, 3, out[0].Result.Stats.Inserted)
	assert.ErrorIs(t, out[1].Err, domain.ErrForbidden)
	assert.False(t, out[1].Result.Success)
}
