// Command sync ejecuta una sincronización desde la línea de comandos.
//
//	sync -source ecommerce -mode incremental
//	sync -source accounting -mode full -cred transactions_path=tx.csv -cred contacts_path=contacts.csv
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jhoicas/CRM-api/internal/application/dto"
	"github.com/jhoicas/CRM-api/internal/application/syncer"
	"github.com/jhoicas/CRM-api/internal/bootstrap"
	"github.com/jhoicas/CRM-api/internal/domain/entity"
	"github.com/jhoicas/CRM-api/internal/infrastructure/postgres"
	"github.com/jhoicas/CRM-api/pkg/config"
	"github.com/jhoicas/CRM-api/pkg/logger"
)

type credFlags map[string]string

func (f credFlags) String() string { return fmt.Sprint(map[string]string(f)) }

func (f credFlags) Set(v string) error {
	k, val, ok := strings.Cut(v, "=")
	if !ok || k == "" {
		return fmt.Errorf("se espera clave=valor, recibido %q", v)
	}
	f[k] = val
	return nil
}

func main() {
	src := flag.String("source", "", "origen: ecommerce, accounting, website, manual")
	modeFlag := flag.String("mode", "incremental", "full o incremental")
	cursor := flag.String("cursor", "", "cursor inicial (opcional)")
	creds := credFlags{}
	flag.Var(creds, "cred", "credencial clave=valor (repetible)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cargar configuración:", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, Output: os.Stderr})

	mode, err := syncer.ParseMode(*modeFlag)
	if err != nil || *src == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	c, err := bootstrap.Build(cfg, postgres.NewStore(pool), log)
	if err != nil {
		log.Fatal().Err(err).Msg("construir servicios")
	}
	res, runErr := c.Orchestrator.RunSync(ctx, syncer.Request{
		Source:      entity.Source(strings.ToLower(*src)),
		Credentials: creds,
		Mode:        mode,
		Cursor:      *cursor,
	})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(dto.SyncResponse{Success: res.Success, Message: res.Message, Stats: res.Stats})
	if runErr != nil {
		os.Exit(1)
	}
}
