// Command migrate aplica o revierte las migraciones embebidas.
//
//	migrate up | down | steps N | version
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/jhoicas/CRM-api/internal/infrastructure/postgres"
	"github.com/jhoicas/CRM-api/pkg/config"
	"github.com/jhoicas/CRM-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cargar configuración:", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	pool, err := postgres.NewPool(context.Background(), cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	m, err := postgres.NewMigrator(pool, log.Component("migrate"))
	if err != nil {
		log.Fatal().Err(err).Msg("preparar migraciones")
	}
	defer m.Close()

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		if len(os.Args) < 3 {
			log.Fatal().Msg("uso: migrate steps N")
		}
		n, convErr := strconv.Atoi(os.Args[2])
		if convErr != nil {
			log.Fatal().Err(convErr).Msg("N debe ser entero")
		}
		err = m.Steps(n)
	case "version":
		v, dirty, verr := m.Version()
		if verr != nil {
			log.Fatal().Err(verr).Msg("leer versión")
		}
		fmt.Printf("versión %d (dirty=%t)\n", v, dirty)
		return
	default:
		log.Fatal().Str("cmd", cmd).Msg("comando desconocido: up | down | steps N | version")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("migración fallida")
	}
}
