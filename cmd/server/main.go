package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/galo-graneros/ai-contador/internal/afip"
	"github.com/galo-graneros/ai-contador/internal/config"
	"github.com/galo-graneros/ai-contador/internal/fiscal"
	"github.com/galo-graneros/ai-contador/internal/infra"
	"github.com/galo-graneros/ai-contador/internal/repository"
	"github.com/galo-graneros/ai-contador/internal/router"
	"github.com/galo-graneros/ai-contador/internal/service"
	"github.com/galo-graneros/ai-contador/internal/vault"
	"github.com/galo-graneros/ai-contador/internal/worker"
)

func main() {
	// Structured logger — dev: pretty, prod: JSON
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	v, err := vault.New(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid encryption key")
	}

	// AFIP endpoints: homologación by default, producción via config.
	wsaaURL, wsfeURL := afip.WSAAURLHomologacion, afip.WSFEURLHomologacion
	if cfg.AFIPProduccion {
		wsaaURL, wsfeURL = afip.WSAAURLProduccion, afip.WSFEURLProduccion
	}
	if cfg.AFIPWSAAURL != "" {
		wsaaURL = cfg.AFIPWSAAURL
	}
	if cfg.AFIPWSFEURL != "" {
		wsfeURL = cfg.AFIPWSFEURL
	}

	sessions := afip.NewSessionManager(wsaaURL)
	wsfe := afip.NewClient(wsfeURL)
	afipCB := infra.NewCircuitBreaker(infra.DefaultCBConfig())
	mp := infra.NewMercadoPagoClient(cfg.MPClientID, cfg.MPClientSecret, cfg.MPRedirectURI)
	clasificador := infra.NewClasificador(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	mailer := infra.NewMailer(cfg)
	dispatcher := worker.NewDispatcher(rdb)

	// Worker handlers are wired here (composition root) so the pool has
	// full access to all infrastructure dependencies. The conexion service
	// doubles as the worker's token provider: it owns credential
	// decryption and OAuth refresh.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conexionRepo := repository.NewConexionRepository(db)
	transaccionRepo := repository.NewTransaccionRepository(db)
	clasificacionRepo := repository.NewClasificacionRepository(db)
	conexionSvc := service.NewConexionService(conexionRepo, v, sessions, mp, dispatcher)

	syncWorker := worker.NewSyncWorker(conexionRepo, transaccionRepo, conexionSvc, mp, dispatcher, fiscal.TiposOperacionMP)
	clasificacionWorker := worker.NewClasificacionWorker(transaccionRepo, clasificacionRepo, clasificador)
	emailWorker := worker.NewEmailWorker(mailer)

	pool := worker.NewPool(rdb, syncWorker.Process, clasificacionWorker.Process, emailWorker.Process)
	pool.Start(ctx, cfg.WorkerPoolSize)

	worker.StartSyncCron(ctx, worker.SyncCronConfig{
		ConexionRepo: conexionRepo,
		Dispatcher:   dispatcher,
	})

	r := router.New(cfg, db, rdb, router.Deps{
		Vault:        v,
		Sessions:     sessions,
		WSFE:         wsfe,
		AFIPCB:       afipCB,
		MP:           mp,
		Clasificador: clasificador,
		Dispatcher:   dispatcher,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("ai-contador API listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
