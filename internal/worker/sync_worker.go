package worker

// sync_worker.go
// Pulls MercadoPago account movements for one user, upserts them as
// transactions, and queues AI classification for the new ones.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/galo-graneros/ai-contador/internal/infra"
	"github.com/galo-graneros/ai-contador/internal/model"
	"github.com/galo-graneros/ai-contador/internal/repository"
)

// SyncPayload is the job envelope sent to QueueSync.
type SyncPayload struct {
	UserID string `json:"user_id"`
	// Desde optionally narrows the pull window (YYYY-MM-DD)
	Desde *string `json:"desde,omitempty"`
}

// TokenProvider yields a live MercadoPago access token for a connection,
// refreshing and persisting it when the stored one expired.
type TokenProvider interface {
	TokenMercadoPago(ctx context.Context, conexion *model.Conexion) (string, error)
}

// SyncWorker processes synchronization jobs from QueueSync.
type SyncWorker struct {
	conexionRepo    repository.ConexionRepository
	transaccionRepo repository.TransaccionRepository
	tokens          TokenProvider
	mp              *infra.MercadoPagoClient
	dispatcher      *Dispatcher
	tiposOperacion  map[string]string
}

func NewSyncWorker(
	conexionRepo repository.ConexionRepository,
	transaccionRepo repository.TransaccionRepository,
	tokens TokenProvider,
	mp *infra.MercadoPagoClient,
	dispatcher *Dispatcher,
	tiposOperacion map[string]string,
) *SyncWorker {
	return &SyncWorker{
		conexionRepo:    conexionRepo,
		transaccionRepo: transaccionRepo,
		tokens:          tokens,
		mp:              mp,
		dispatcher:      dispatcher,
		tiposOperacion:  tiposOperacion,
	}
}

// Process pulls movements page by page until the provider returns an
// empty page, then stamps the connection's last sync time.
func (w *SyncWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload SyncPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("sync_worker: payload invalido")
		return nil // unparseable payloads are not retryable
	}
	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		log.Error().Str("user_id", payload.UserID).Msg("sync_worker: user_id invalido")
		return nil
	}

	conexion, err := w.conexionRepo.FindByUserProvider(ctx, userID, "mercadopago")
	if err != nil {
		return fmt.Errorf("sync_worker: conexion no encontrada para %s: %w", payload.UserID, err)
	}
	if conexion.Estado != "activa" {
		log.Info().Str("user_id", payload.UserID).Str("estado", conexion.Estado).Msg("sync_worker: conexion no activa, se omite")
		return nil
	}

	token, err := w.tokens.TokenMercadoPago(ctx, conexion)
	if err != nil {
		w.marcarError(ctx, conexion, err)
		return fmt.Errorf("sync_worker: token: %w", err)
	}

	opts := infra.MovimientosOpts{Limit: 50}
	if payload.Desde != nil {
		if desde, err := time.Parse("2006-01-02", *payload.Desde); err == nil {
			opts.Desde = desde
		}
	} else if conexion.UltimaSincronizacion != nil {
		opts.Desde = *conexion.UltimaSincronizacion
	}

	nuevas, omitidas := 0, 0
	for {
		movimientos, err := w.mp.Movimientos(ctx, token, opts)
		if err != nil {
			w.marcarError(ctx, conexion, err)
			return fmt.Errorf("sync_worker: movimientos: %w", err)
		}
		if len(movimientos) == 0 {
			break
		}

		for _, mov := range movimientos {
			tx, err := w.movimientoATransaccion(userID, conexion.ID, mov)
			if err != nil {
				log.Warn().Err(err).Int64("movimiento", mov.ID).Msg("sync_worker: movimiento no convertible")
				continue
			}
			creada, err := w.transaccionRepo.Upsert(ctx, tx)
			if err != nil {
				return fmt.Errorf("sync_worker: upsert transaccion: %w", err)
			}
			if !creada {
				omitidas++
				continue
			}
			nuevas++
			if err := w.dispatcher.EnqueueClasificacion(ctx, ClasificacionPayload{
				UserID:        userID.String(),
				TransaccionID: tx.ID.String(),
			}); err != nil {
				log.Warn().Err(err).Msg("sync_worker: no se pudo encolar la clasificacion")
			}
		}

		opts.Offset += len(movimientos)
	}

	ahora := time.Now()
	conexion.UltimaSincronizacion = &ahora
	conexion.MensajeError = nil
	if err := w.conexionRepo.Update(ctx, conexion); err != nil {
		log.Warn().Err(err).Msg("sync_worker: no se pudo actualizar la conexion")
	}

	log.Info().
		Str("user_id", payload.UserID).
		Int("nuevas", nuevas).
		Int("omitidas", omitidas).
		Msg("sync_worker: sincronizacion completa")
	return nil
}

func (w *SyncWorker) movimientoATransaccion(userID, conexionID uuid.UUID, mov infra.Movimiento) (*model.Transaccion, error) {
	tipo, ok := w.tiposOperacion[mov.Type]
	if !ok {
		tipo = "other"
	}

	var contraparte *string
	if mov.Payer != nil && mov.Payer.Email != "" {
		contraparte = &mov.Payer.Email
	} else if mov.Collector != nil && mov.Collector.Email != "" {
		contraparte = &mov.Collector.Email
	}

	rawData, err := json.Marshal(mov)
	if err != nil {
		return nil, err
	}
	raw := string(rawData)

	return &model.Transaccion{
		ID:          uuid.New(),
		UserID:      userID,
		ConexionID:  conexionID,
		ExternalID:  fmt.Sprintf("%d", mov.ID),
		Tipo:        tipo,
		Monto:       mov.Amount,
		Moneda:      mov.CurrencyID,
		Descripcion: mov.Description,
		Contraparte: contraparte,
		Fecha:       mov.DateCreated,
		RawData:     &raw,
		Estado:      "pendiente",
	}, nil
}

func (w *SyncWorker) marcarError(ctx context.Context, conexion *model.Conexion, cause error) {
	msg := cause.Error()
	conexion.Estado = "error"
	conexion.MensajeError = &msg
	if err := w.conexionRepo.Update(ctx, conexion); err != nil {
		log.Warn().Err(err).Msg("sync_worker: no se pudo marcar la conexion en error")
	}
}
