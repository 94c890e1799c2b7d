// Package syncer orquesta la sincronización página a página de cada origen hacia los registros canónicos.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/CRM-api/internal/application/identity"
	"github.com/jhoicas/CRM-api/internal/application/orders"
	"github.com/jhoicas/CRM-api/internal/application/ownership"
	"github.com/jhoicas/CRM-api/internal/domain"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/domain/repository"
	"github.com/jhoicas/CRM-api/internal/domain/source"
	"github.com/jhoicas/CRM-api/pkg/metrics"
)

// Valores por defecto de Options.
const (
	DefaultPageSize         = 100
	DefaultMaxCursorRepeats = 3
	DefaultRateLimitRetries = 5
	DefaultTransportRetries = 3
	DefaultBackoffBase      = 500 * time.Millisecond
	maxBackoff              = 30 * time.Second
)

// CustomerResolver resuelve un cliente dentro de la transacción de la página.
type CustomerResolver interface {
	ResolveCustomer(ctx context.Context, tx repository.Tx, in entity.IntermediateCustomer, ref entity.Provenance) (*identity.Result, error)
}

// OrderResolver unifica un pedido dentro de la transacción de la página.
type OrderResolver interface {
	ResolveOrder(ctx context.Context, tx repository.Tx, in entity.IntermediateOrder, ref entity.Provenance) (*orders.Result, error)
}

// InquiryIngester ingiere una consulta dentro de la transacción de la página.
type InquiryIngester interface {
	IngestInquiry(ctx context.Context, tx repository.Tx, in entity.IntermediateInquiry, ref entity.Provenance) (*ownership.InquiryResult, error)
}

// Recorder métricas de corrida; *metrics.Manager lo implementa.
type Recorder interface {
	ObserveSyncRun(source string, success bool, s metrics.RunStats, elapsed time.Duration)
	IncUpstreamRetry(source, reason string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSyncRun(string, bool, metrics.RunStats, time.Duration) {}
func (nopRecorder) IncUpstreamRetry(string, string)                              {}

// Options límites de la corrida.
type Options struct {
	PageSize         int
	MaxCursorRepeats int
	RateLimitRetries int
	TransportRetries int
	BackoffBase      time.Duration
}

func (o *Options) defaults() {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.MaxCursorRepeats <= 0 {
		o.MaxCursorRepeats = DefaultMaxCursorRepeats
	}
	if o.RateLimitRetries <= 0 {
		o.RateLimitRetries = DefaultRateLimitRetries
	}
	if o.TransportRetries <= 0 {
		o.TransportRetries = DefaultTransportRetries
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = DefaultBackoffBase
	}
}

// Request petición de sincronización.
type Request struct {
	Source      entity.Source
	Credentials map[string]string
	Mode        entity.SyncMode
	Cursor      string
}

// Result resultado de una corrida. Stats refleja sólo las páginas confirmadas.
type Result struct {
	RunID   string
	Success bool
	Message string
	Stats   entity.SyncStats
}

// Orchestrator un único orquestador parametrizado por adaptadores.
type Orchestrator struct {
	store     repository.Store
	customers CustomerResolver
	orders    OrderResolver
	inquiries InquiryIngester
	recorder  Recorder
	log       zerolog.Logger
	opts      Options
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time

	mu        sync.RWMutex
	factories map[entity.Source]AdapterFactory
}

// Option configura el orquestador.
type Option func(*Orchestrator)

// WithRecorder registra métricas de cada corrida.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithOptions fija los límites de la corrida.
func WithOptions(opts Options) Option {
	return func(o *Orchestrator) { o.opts = opts }
}

// WithSleep reemplaza la espera entre reintentos (tests).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

// WithClock reemplaza el reloj.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator construye el orquestador.
func NewOrchestrator(store repository.Store, customers CustomerResolver, ord OrderResolver, inquiries InquiryIngester, log zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     store,
		customers: customers,
		orders:    ord,
		inquiries: inquiries,
		recorder:  nopRecorder{},
		log:       log,
		sleep:     sleepCtx,
		now:       time.Now,
		factories: make(map[entity.Source]AdapterFactory),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.opts.defaults()
	return o
}

// Register asocia la fábrica de adaptadores a un origen.
func (o *Orchestrator) Register(src entity.Source, f AdapterFactory) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.factories[src] = f
}

func (o *Orchestrator) factory(src entity.Source) (AdapterFactory, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	f, ok := o.factories[src]
	return f, ok
}

// ParseMode interpreta el modo de la petición; vacío = incremental.
func ParseMode(s string) (entity.SyncMode, error) {
	switch entity.SyncMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", entity.SyncIncremental:
		return entity.SyncIncremental, nil
	case entity.SyncFull:
		return entity.SyncFull, nil
	}
	return "", fmt.Errorf("%w: modo %q", domain.ErrInvalidInput, s)
}

// RunSync sincroniza un origen. El resultado nunca es nil: ante un error de corrida
// (paginación cíclica, origen inalcanzable, transacción) trae las estadísticas de las
// páginas ya confirmadas, que se conservan.
func (o *Orchestrator) RunSync(ctx context.Context, req Request) (*Result, error) {
	if req.Mode == "" {
		req.Mode = entity.SyncIncremental
	}
	started := o.now()
	res := &Result{RunID: uuid.New().String()}
	run := &entity.SyncRun{ID: res.RunID, Source: req.Source, Mode: req.Mode, Cursor: req.Cursor, StartedAt: started}

	err := o.runSync(ctx, req, res)
	o.finish(ctx, run, res, err, started)
	return res, err
}

func (o *Orchestrator) runSync(ctx context.Context, req Request, res *Result) error {
	f, ok := o.factory(req.Source)
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownSource, req.Source)
	}
	if req.Mode != entity.SyncFull && req.Mode != entity.SyncIncremental {
		return fmt.Errorf("%w: modo %q", domain.ErrInvalidInput, req.Mode)
	}
	adapter, err := f(req.Credentials)
	if err != nil {
		return fmt.Errorf("adaptador %s: %w", req.Source, err)
	}

	pr := PageRequest{Cursor: req.Cursor, Limit: o.opts.PageSize}
	if req.Mode == entity.SyncIncremental && req.Cursor == "" {
		since, err := o.store.Repos().Contributions.MaxNativeID(ctx, adapter.Source(), adapter.Kind())
		if err != nil {
			return fmt.Errorf("cursor incremental: %w", err)
		}
		pr.SinceID = since
	}
	log := o.log.With().Str("source", string(req.Source)).Str("mode", string(req.Mode)).Str("run_id", res.RunID).Logger()
	log.Info().Int64("since_id", pr.SinceID).Str("cursor", pr.Cursor).Msg("sincronización iniciada")

	seen := make(map[string]int)
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := o.fetch(ctx, adapter, pr)
		if err != nil {
			return err
		}
		stats, err := o.processPage(ctx, adapter, p.Records)
		if err != nil {
			return fmt.Errorf("página %d: %w", page, err)
		}
		stats.Pages = 1
		res.Stats.Add(stats)
		log.Debug().Int("page", page).Int("records", len(p.Records)).Msg("página confirmada")

		if p.NextCursor == "" {
			return nil
		}
		seen[p.NextCursor]++
		if seen[p.NextCursor] >= o.opts.MaxCursorRepeats {
			return fmt.Errorf("%w: cursor %q repetido %d veces", domain.ErrPaginationLoop, p.NextCursor, seen[p.NextCursor])
		}
		pr.Cursor = p.NextCursor
	}
}

// fetch pide una página reintentando límites de peticiones (backoff exponencial acotado,
// respeta Retry-After) y fallos de transporte.
func (o *Orchestrator) fetch(ctx context.Context, adapter SourceAdapter, pr PageRequest) (*Page, error) {
	src := string(adapter.Source())
	var rateLimited, transport int
	rateBackoff, transportBackoff := o.newBackoff(), o.newBackoff()
	for {
		p, err := adapter.FetchPage(ctx, pr)
		if err == nil {
			if p == nil {
				p = &Page{}
			}
			return p, nil
		}
		var wait time.Duration
		switch {
		case errors.Is(err, domain.ErrUpstreamRateLimited):
			rateLimited++
			if rateLimited >= o.opts.RateLimitRetries {
				return nil, fmt.Errorf("tras %d intentos: %w", rateLimited, err)
			}
			wait = rateBackoff.NextBackOff()
			if ra := retryAfter(err); ra > 0 {
				wait = ra
			}
			o.recorder.IncUpstreamRetry(src, "rate_limited")
		case errors.Is(err, domain.ErrTransportFailure):
			transport++
			if transport > o.opts.TransportRetries {
				return nil, fmt.Errorf("tras %d intentos: %w", transport, err)
			}
			wait = transportBackoff.NextBackOff()
			o.recorder.IncUpstreamRetry(src, "transport")
		default:
			return nil, err
		}
		o.log.Warn().Err(err).Str("source", src).Dur("wait", wait).Msg("reintentando página")
		if err := o.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// newBackoff esperas BackoffBase, 2x, 4x... hasta maxBackoff, sin aleatoriedad ni límite de tiempo total.
func (o *Orchestrator) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = min(o.opts.BackoffBase, maxBackoff)
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = maxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

type mapper interface {
	MapRecord(raw source.RawRecord) (*entity.Record, error)
}

// processPage procesa una página en una transacción; cada registro en su propio savepoint.
// Las estadísticas sólo se devuelven si la página se confirmó.
func (o *Orchestrator) processPage(ctx context.Context, m mapper, raws []source.RawRecord) (entity.SyncStats, error) {
	var stats entity.SyncStats
	if len(raws) == 0 {
		return stats, nil
	}
	err := o.store.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		stats = entity.SyncStats{Fetched: len(raws)}
		for _, raw := range raws {
			if err := o.processRecord(ctx, tx, m, raw, &stats); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return entity.SyncStats{}, err
	}
	return stats, nil
}

// processRecord devuelve error sólo si la página debe abortarse (cancelación).
func (o *Orchestrator) processRecord(ctx context.Context, tx repository.Tx, m mapper, raw source.RawRecord, stats *entity.SyncStats) error {
	log := o.log.With().Str("source", string(raw.Source)).Str("kind", string(raw.Kind)).Logger()
	rec, err := m.MapRecord(raw)
	if err != nil {
		stats.Errors++
		stats.Skipped++
		log.Warn().Err(err).Msg("registro descartado")
		return nil
	}
	log = log.With().Str("record_id", rec.SourceRecordID).Logger()

	var inserted bool
	err = tx.Savepoint(ctx, func(ctx context.Context, sp repository.Tx) error {
		var err error
		inserted, err = o.apply(ctx, sp, rec, log)
		return err
	})
	switch {
	case err == nil && inserted:
		stats.Inserted++
	case err == nil:
		stats.Updated++
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, domain.ErrInvalidIdentity):
		stats.Skipped++
		log.Warn().Err(err).Msg("registro sin identidad utilizable")
	case errors.Is(err, domain.ErrMalformedRecord), errors.Is(err, domain.ErrInvalidInput):
		stats.Errors++
		stats.Skipped++
		log.Warn().Err(err).Msg("registro descartado")
	default:
		stats.Errors++
		log.Error().Err(err).Msg("error procesando registro")
	}
	return nil
}

// apply despacha según el tipo de registro; inserted se refiere a la entidad principal.
func (o *Orchestrator) apply(ctx context.Context, tx repository.Tx, rec *entity.Record, log zerolog.Logger) (bool, error) {
	ref := rec.Provenance()
	switch {
	case rec.Customer != nil && (rec.Kind == entity.KindCustomer || rec.Kind == entity.KindContact):
		r, err := o.customers.ResolveCustomer(ctx, tx, *rec.Customer, ref)
		if err != nil {
			return false, err
		}
		return r.Created, nil
	case rec.Order != nil && (rec.Kind == entity.KindOrder || rec.Kind == entity.KindInvoice):
		r, err := o.orders.ResolveOrder(ctx, tx, *rec.Order, ref)
		if err != nil {
			return false, err
		}
		if r.Warning != nil {
			log.Warn().Err(r.Warning).Str("order_number", r.Order.OrderNumber).Msg("pedido guardado sin cliente")
		}
		return r.Inserted, nil
	case rec.Inquiry != nil && rec.Kind == entity.KindInquiry:
		r, err := o.inquiries.IngestInquiry(ctx, tx, *rec.Inquiry, ref)
		if err != nil {
			return false, err
		}
		return r.Inserted, nil
	}
	return false, fmt.Errorf("%w: tipo %q sin contenido", domain.ErrMalformedRecord, rec.Kind)
}

// IngestBatch procesa un lote empujado por el origen (webhook) por la misma ruta que una página.
func (o *Orchestrator) IngestBatch(ctx context.Context, src entity.Source, raws []source.RawRecord) (*Result, error) {
	started := o.now()
	res := &Result{RunID: uuid.New().String()}
	run := &entity.SyncRun{ID: res.RunID, Source: src, Mode: entity.SyncPush, StartedAt: started}

	for i := range raws {
		if raws[i].Source == "" {
			raws[i].Source = src
		}
	}
	stats, err := o.processPage(ctx, NormalizingAdapter{}, raws)
	if err == nil {
		stats.Pages = 1
		res.Stats = stats
	}
	o.finish(ctx, run, res, err, started)
	return res, err
}

// Outcome resultado de una corrida dentro de SyncAll.
type Outcome struct {
	Request Request
	Result  *Result
	Err     error
}

// SyncAll corre varios orígenes en paralelo. El fallo de uno no cancela los demás.
func (o *Orchestrator) SyncAll(ctx context.Context, reqs []Request) []Outcome {
	out := make([]Outcome, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := o.RunSync(ctx, req)
			out[i] = Outcome{Request: req, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// RecentRuns últimas corridas de un origen (vacío = todos).
func (o *Orchestrator) RecentRuns(ctx context.Context, src entity.Source, limit int) ([]*entity.SyncRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return o.store.Repos().SyncRuns.ListRecent(ctx, src, limit)
}

func (o *Orchestrator) finish(ctx context.Context, run *entity.SyncRun, res *Result, runErr error, started time.Time) {
	res.Success = runErr == nil
	res.Message = fmt.Sprintf("%d registros: %d nuevos, %d actualizados, %d omitidos, %d errores",
		res.Stats.Fetched, res.Stats.Inserted, res.Stats.Updated, res.Stats.Skipped, res.Stats.Errors)
	if runErr != nil {
		res.Message = fmt.Sprintf("%s (detenida: %v)", res.Message, runErr)
	}
	run.Stats = res.Stats
	run.Success = res.Success
	run.Message = res.Message
	run.FinishedAt = o.now()
	elapsed := run.FinishedAt.Sub(started)

	o.recorder.ObserveSyncRun(string(run.Source), res.Success, metrics.RunStats{
		Inserted: res.Stats.Inserted,
		Updated:  res.Stats.Updated,
		Skipped:  res.Stats.Skipped,
		Errors:   res.Stats.Errors,
		Pages:    res.Stats.Pages,
	}, elapsed)

	// La fila de auditoría se guarda aunque la corrida se haya cancelado.
	if err := o.store.Repos().SyncRuns.Create(context.WithoutCancel(ctx), run); err != nil {
		o.log.Error().Err(err).Str("run_id", run.ID).Msg("no se pudo registrar la corrida")
	}
	ev := o.log.Info()
	if runErr != nil {
		ev = o.log.Warn().Err(runErr)
	}
	ev.Str("source", string(run.Source)).Str("run_id", run.ID).Dur("elapsed", elapsed).
		Int("inserted", res.Stats.Inserted).Int("updated", res.Stats.Updated).
		Int("skipped", res.Stats.Skipped).Int("errors", res.Stats.Errors).Msg("sincronización finalizada")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
