package worker

// sync_cron.go
// Background goroutine that periodically enqueues a sync job for every
// active MercadoPago connection, so movements arrive without the user
// pressing anything.

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/galo-graneros/ai-contador/internal/repository"
)

const syncTickInterval = 6 * time.Hour

// SyncCronConfig holds the dependencies for the periodic sync.
type SyncCronConfig struct {
	ConexionRepo repository.ConexionRepository
	Dispatcher   *Dispatcher
}

// StartSyncCron launches the periodic enqueuer. It respects the context
// for graceful shutdown.
func StartSyncCron(ctx context.Context, cfg SyncCronConfig) {
	go func() {
		ticker := time.NewTicker(syncTickInterval)
		defer ticker.Stop()

		log.Info().Dur("interval", syncTickInterval).Msg("sync_cron: iniciado")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("sync_cron: finalizando")
				return
			case <-ticker.C:
				enqueueSyncs(ctx, cfg)
			}
		}
	}()
}

func enqueueSyncs(ctx context.Context, cfg SyncCronConfig) {
	conexiones, err := cfg.ConexionRepo.ListActivas(ctx, "mercadopago")
	if err != nil {
		log.Error().Err(err).Msg("sync_cron: no se pudieron listar las conexiones")
		return
	}
	if len(conexiones) == 0 {
		return
	}

	encoladas := 0
	for i := range conexiones {
		payload := SyncPayload{UserID: conexiones[i].UserID.String()}
		if err := cfg.Dispatcher.EnqueueSync(ctx, payload); err != nil {
			log.Warn().Err(err).Str("user_id", payload.UserID).Msg("sync_cron: no se pudo encolar")
			continue
		}
		encoladas++
	}
	log.Info().Int("conexiones", len(conexiones)).Int("encoladas", encoladas).Msg("sync_cron: jobs encolados")
}
