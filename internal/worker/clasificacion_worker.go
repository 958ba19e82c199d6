package worker

// clasificacion_worker.go
// Classifies one transaction through the AI classifier and stores the
// result. The classifier itself never fails (it falls back to a default),
// so errors here are persistence errors and retryable.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/galo-graneros/ai-contador/internal/infra"
	"github.com/galo-graneros/ai-contador/internal/model"
	"github.com/galo-graneros/ai-contador/internal/repository"
)

// ClasificacionPayload is the job envelope sent to QueueClasificacion.
type ClasificacionPayload struct {
	UserID        string `json:"user_id"`
	TransaccionID string `json:"transaccion_id"`
}

// ClasificacionWorker processes classification jobs from QueueClasificacion.
type ClasificacionWorker struct {
	transaccionRepo   repository.TransaccionRepository
	clasificacionRepo repository.ClasificacionRepository
	clasificador      *infra.Clasificador
}

func NewClasificacionWorker(
	transaccionRepo repository.TransaccionRepository,
	clasificacionRepo repository.ClasificacionRepository,
	clasificador *infra.Clasificador,
) *ClasificacionWorker {
	return &ClasificacionWorker{
		transaccionRepo:   transaccionRepo,
		clasificacionRepo: clasificacionRepo,
		clasificador:      clasificador,
	}
}

func (w *ClasificacionWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload ClasificacionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("clasificacion_worker: payload invalido")
		return nil
	}
	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		log.Error().Str("user_id", payload.UserID).Msg("clasificacion_worker: user_id invalido")
		return nil
	}
	transaccionID, err := uuid.Parse(payload.TransaccionID)
	if err != nil {
		log.Error().Str("transaccion_id", payload.TransaccionID).Msg("clasificacion_worker: transaccion_id invalido")
		return nil
	}

	tx, err := w.transaccionRepo.FindByID(ctx, userID, transaccionID)
	if err != nil {
		return fmt.Errorf("clasificacion_worker: transaccion no encontrada: %w", err)
	}

	resultado := w.clasificador.Clasificar(ctx, MovimientoDe(tx))

	clasificacion := &model.Clasificacion{
		TransaccionID:     tx.ID,
		CategoriaAFIP:     resultado.CategoriaAFIP,
		Tipo:              resultado.Tipo,
		ProveedorCliente:  resultado.ProveedorCliente,
		DescripcionLimpia: resultado.DescripcionLimpia,
		Probabilidad:      decimal.NewFromFloat(resultado.Probabilidad),
		SugerenciaFactura: resultado.SugerenciaFactura,
		Notas:             resultado.Notas,
		ModeloUsado:       resultado.Modelo,
	}

	if err := w.clasificacionRepo.Upsert(ctx, clasificacion); err != nil {
		return fmt.Errorf("clasificacion_worker: guardar clasificacion: %w", err)
	}

	if tx.Estado == "pendiente" {
		tx.Estado = "clasificada"
		if err := w.transaccionRepo.Update(ctx, tx); err != nil {
			return fmt.Errorf("clasificacion_worker: actualizar transaccion: %w", err)
		}
	}

	log.Info().
		Str("transaccion_id", payload.TransaccionID).
		Str("categoria", resultado.CategoriaAFIP).
		Float64("probabilidad", resultado.Probabilidad).
		Msg("clasificacion_worker: transaccion clasificada")
	return nil
}

// MovimientoDe converts a stored transaction into the classifier's input.
func MovimientoDe(tx *model.Transaccion) infra.MovimientoAClasificar {
	mov := infra.MovimientoAClasificar{
		Descripcion: tx.Descripcion,
		Monto:       tx.Monto.InexactFloat64(),
		Moneda:      tx.Moneda,
		Fecha:       tx.Fecha.Format("2006-01-02"),
		Tipo:        tx.Tipo,
	}
	if tx.Contraparte != nil {
		mov.Contraparte = *tx.Contraparte
	}
	if tx.RawData != nil {
		mov.RawData = *tx.RawData
	}
	return mov
}
