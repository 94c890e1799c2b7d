// Package bootstrap arma el grafo de dependencias compartido por los binarios.
package bootstrap

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/CRM-api/internal/application/customers"
	"github.com/jhoicas/CRM-api/internal/application/identity"
	"github.com/jhoicas/CRM-api/internal/application/orders"
	"github.com/jhoicas/CRM-api/internal/application/ownership"
	"github.com/jhoicas/CRM-api/internal/application/syncer"
	"github.com/jhoicas/CRM-api/internal/domain/crm"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/domain/repository"
	"github.com/jhoicas/CRM-api/internal/infrastructure/sources/accounting"
	"github.com/jhoicas/CRM-api/internal/infrastructure/sources/ecommerce"
	"github.com/jhoicas/CRM-api/internal/infrastructure/sources/website"
	"github.com/jhoicas/CRM-api/pkg/config"
	"github.com/jhoicas/CRM-api/pkg/logger"
	"github.com/jhoicas/CRM-api/pkg/metrics"
)

// Container servicios de aplicación listos para usar.
type Container struct {
	Bundles      *crm.BundleTable
	Resolver     *identity.Resolver
	Ownership    *ownership.Engine
	Unifier      *orders.Unifier
	Orders       *orders.Service
	Customers    *customers.UseCase
	Orchestrator *syncer.Orchestrator
	Metrics      *metrics.Manager
}

// Build construye los servicios sobre el almacén dado y registra los adaptadores de cada origen.
func Build(cfg *config.Config, store repository.Store, log *logger.Logger) (*Container, error) {
	bundles, err := BundleTable(cfg.Bundles)
	if err != nil {
		return nil, err
	}
	m := metrics.NewManager()
	resolver := identity.NewResolver(store, log.Component("identity"),
		identity.WithMaxRetries(cfg.Sync.MaxConflictRetries))
	engine := ownership.NewEngine(store, resolver, log.Component("ownership"))
	unifier := orders.NewUnifier(resolver, engine, bundles, log.Component("orders"))

	orch := syncer.NewOrchestrator(store, resolver, unifier, engine,
		log.Component("sync"),
		syncer.WithRecorder(m),
		syncer.WithOptions(syncer.Options{
			PageSize:         cfg.Sync.PageSize,
			MaxCursorRepeats: cfg.Sync.MaxCursorRepeats,
			RateLimitRetries: cfg.Sync.RateLimitRetries,
			TransportRetries: cfg.Sync.TransportRetries,
			BackoffBase:      cfg.Sync.BackoffBase,
		}))
	orch.Register(entity.SourceEcommerce, ecommerce.Factory(cfg.Ecommerce))
	orch.Register(entity.SourceAccounting, accounting.Factory(cfg.Accounting))
	orch.Register(entity.SourceWebsite, website.Factory(entity.SourceWebsite))
	orch.Register(entity.SourceManual, website.Factory(entity.SourceManual))

	return &Container{
		Bundles:      bundles,
		Resolver:     resolver,
		Ownership:    engine,
		Unifier:      unifier,
		Orders:       orders.NewService(store, bundles),
		Customers:    customers.NewUseCase(store, bundles),
		Orchestrator: orch,
		Metrics:      m,
	}, nil
}

// BundleTable compila la tabla configurada; vacía = reglas por defecto.
func BundleTable(rules []config.BundleRuleConfig) (*crm.BundleTable, error) {
	if len(rules) == 0 {
		return crm.NewBundleTable(crm.DefaultBundleRules)
	}
	out := make([]crm.BundleRule, 0, len(rules))
	for _, r := range rules {
		out = append(out, crm.BundleRule{MatchPattern: r.MatchPattern, ConstituentSKU: r.ConstituentSKU, Multiplier: r.Multiplier})
	}
	return crm.NewBundleTable(out)
}

// RunScheduled sincroniza en modo incremental los orígenes dados cada intervalo, hasta cancelar ctx.
// Usa las credenciales de configuración.
func RunScheduled(ctx context.Context, orch *syncer.Orchestrator, interval time.Duration, sources []string, log zerolog.Logger) {
	if interval <= 0 || len(sources) == 0 {
		return
	}
	reqs := make([]syncer.Request, 0, len(sources))
	for _, s := range sources {
		reqs = append(reqs, syncer.Request{Source: entity.Source(strings.ToLower(s)), Mode: entity.SyncIncremental})
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Info().Dur("interval", interval).Strs("sources", sources).Msg("sincronización periódica activa")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, out := range orch.SyncAll(ctx, reqs) {
				if out.Err != nil {
					log.Warn().Err(out.Err).Str("source", string(out.Request.Source)).Msg("sincronización periódica con errores")
				}
			}
		}
	}
}
