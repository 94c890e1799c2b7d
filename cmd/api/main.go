package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/CRM-api/internal/bootstrap"
	"github.com/jhoicas/CRM-api/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/CRM-api/internal/interfaces/http"
	"github.com/jhoicas/CRM-api/pkg/config"
	"github.com/jhoicas/CRM-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.Log.Level,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	migrator, err := postgres.NewMigrator(pool, log.Component("migrate"))
	if err != nil {
		log.Fatal().Err(err).Msg("preparar migraciones")
	}
	if err := migrator.Up(); err != nil {
		log.Fatal().Err(err).Msg("aplicar migraciones")
	}
	_ = migrator.Close()

	store := postgres.NewStore(pool)
	c, err := bootstrap.Build(cfg, store, log)
	if err != nil {
		log.Fatal().Err(err).Msg("construir servicios")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Minute * 5, // una sincronización completa corre dentro de la petición
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	httpRouter.Router(app, httpRouter.RouterDeps{
		Orchestrator: c.Orchestrator,
		CustomerUC:   c.Customers,
		Ownership:    c.Ownership,
		Orders:       c.Orders,
		JWTSecret:    cfg.JWT.Secret,
		WebhookSecrets: httpRouter.WebhookSecrets{
			Ecommerce: cfg.Ecommerce.WebhookSecret,
			Website:   cfg.Website.WebhookSecret,
		},
		WebhookCounter: c.Metrics,
		Handlers: httpRouter.Extras{
			Health:  pool.Ping,
			Metrics: c.Metrics.Handler(),
		},
		Log: log.Component("http"),
	})

	go bootstrap.RunScheduled(ctx, c.Orchestrator, cfg.Sync.ScheduleInterval, cfg.Sync.ScheduledSourceList, log.Component("scheduler"))

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
