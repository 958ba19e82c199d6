package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/galo-graneros/ai-contador/internal/dto"
	"github.com/galo-graneros/ai-contador/internal/infra"
	"github.com/galo-graneros/ai-contador/internal/model"
	"github.com/galo-graneros/ai-contador/internal/repository"
	"github.com/galo-graneros/ai-contador/internal/worker"
)

type TransaccionService interface {
	Listar(ctx context.Context, userID uuid.UUID, filtro dto.TransaccionFilter) (*dto.TransaccionListResponse, error)
	Obtener(ctx context.Context, userID, id uuid.UUID) (*dto.TransaccionResponse, error)
	// Sincronizar queues a background pull from the payment provider.
	Sincronizar(ctx context.Context, userID uuid.UUID, req dto.SincronizarRequest) error
	// Clasificar runs the AI classifier synchronously for one transaction.
	Clasificar(ctx context.Context, userID, transaccionID uuid.UUID) (*dto.ClasificacionResponse, error)
	// Explicar produces a plain-language explanation of a classification.
	Explicar(ctx context.Context, userID, transaccionID uuid.UUID) (string, error)
}

type transaccionService struct {
	repo              repository.TransaccionRepository
	clasificacionRepo repository.ClasificacionRepository
	conexionRepo      repository.ConexionRepository
	clasificador      *infra.Clasificador
	dispatcher        *worker.Dispatcher
}

func NewTransaccionService(
	repo repository.TransaccionRepository,
	clasificacionRepo repository.ClasificacionRepository,
	conexionRepo repository.ConexionRepository,
	clasificador *infra.Clasificador,
	dispatcher *worker.Dispatcher,
) TransaccionService {
	return &transaccionService{
		repo:              repo,
		clasificacionRepo: clasificacionRepo,
		conexionRepo:      conexionRepo,
		clasificador:      clasificador,
		dispatcher:        dispatcher,
	}
}

func (s *transaccionService) Listar(ctx context.Context, userID uuid.UUID, filtro dto.TransaccionFilter) (*dto.TransaccionListResponse, error) {
	repoFiltro := repository.TransaccionFiltro{
		Tipo:   filtro.Tipo,
		Estado: filtro.Estado,
		Page:   filtro.Page,
		Limit:  filtro.Limit,
	}
	if filtro.Desde != "" {
		desde, err := time.Parse("2006-01-02", filtro.Desde)
		if err != nil {
			return nil, fmt.Errorf("desde inválido: %w", err)
		}
		repoFiltro.Desde = desde
	}
	if filtro.Hasta != "" {
		hasta, err := time.Parse("2006-01-02", filtro.Hasta)
		if err != nil {
			return nil, fmt.Errorf("hasta inválido: %w", err)
		}
		repoFiltro.Hasta = hasta
	}

	transacciones, total, err := s.repo.List(ctx, userID, repoFiltro)
	if err != nil {
		return nil, err
	}

	resp := &dto.TransaccionListResponse{
		Data:  make([]dto.TransaccionResponse, 0, len(transacciones)),
		Total: total,
		Page:  filtro.Page,
		Limit: filtro.Limit,
	}
	for i := range transacciones {
		item := transaccionToResponse(&transacciones[i])
		if cl, err := s.clasificacionRepo.FindByTransaccion(ctx, transacciones[i].ID); err == nil {
			item.Clasificacion = clasificacionToResponse(cl)
		}
		resp.Data = append(resp.Data, *item)
	}
	return resp, nil
}

func (s *transaccionService) Obtener(ctx context.Context, userID, id uuid.UUID) (*dto.TransaccionResponse, error) {
	tx, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("movimiento no encontrado")
	}
	resp := transaccionToResponse(tx)
	if cl, err := s.clasificacionRepo.FindByTransaccion(ctx, tx.ID); err == nil {
		resp.Clasificacion = clasificacionToResponse(cl)
	}
	return resp, nil
}

func (s *transaccionService) Sincronizar(ctx context.Context, userID uuid.UUID, req dto.SincronizarRequest) error {
	conexion, err := s.conexionRepo.FindByUserProvider(ctx, userID, ProviderMercadoPago)
	if err != nil {
		return fmt.Errorf("no hay una conexión MercadoPago configurada")
	}
	if conexion.Estado == "inactiva" {
		return fmt.Errorf("la conexión MercadoPago está desactivada")
	}
	return s.dispatcher.EnqueueSync(ctx, worker.SyncPayload{
		UserID: userID.String(),
		Desde:  req.Desde,
	})
}

func (s *transaccionService) Clasificar(ctx context.Context, userID, transaccionID uuid.UUID) (*dto.ClasificacionResponse, error) {
	tx, err := s.repo.FindByID(ctx, userID, transaccionID)
	if err != nil {
		return nil, fmt.Errorf("movimiento no encontrado")
	}

	resultado := s.clasificador.Clasificar(ctx, worker.MovimientoDe(tx))

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
	if err := s.clasificacionRepo.Upsert(ctx, clasificacion); err != nil {
		return nil, fmt.Errorf("no se pudo guardar la clasificación: %w", err)
	}

	if tx.Estado == "pendiente" {
		tx.Estado = "clasificada"
		if err := s.repo.Update(ctx, tx); err != nil {
			return nil, err
		}
	}
	return clasificacionToResponse(clasificacion), nil
}

func (s *transaccionService) Explicar(ctx context.Context, userID, transaccionID uuid.UUID) (string, error) {
	tx, err := s.repo.FindByID(ctx, userID, transaccionID)
	if err != nil {
		return "", fmt.Errorf("movimiento no encontrado")
	}
	cl, err := s.clasificacionRepo.FindByTransaccion(ctx, tx.ID)
	if err != nil {
		return "Este movimiento aún no ha sido clasificado.", nil
	}

	resultado := infra.ResultadoClasificacion{
		CategoriaAFIP:     cl.CategoriaAFIP,
		Tipo:              cl.Tipo,
		SugerenciaFactura: cl.SugerenciaFactura,
	}
	return s.clasificador.Explicar(ctx, worker.MovimientoDe(tx), resultado)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func transaccionToResponse(t *model.Transaccion) *dto.TransaccionResponse {
	return &dto.TransaccionResponse{
		ID:          t.ID.String(),
		ExternalID:  t.ExternalID,
		Fecha:       t.Fecha.Format("2006-01-02"),
		Descripcion: t.Descripcion,
		Monto:       t.Monto,
		Moneda:      t.Moneda,
		Tipo:        t.Tipo,
		Estado:      t.Estado,
		Contraparte: t.Contraparte,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
	}
}

func clasificacionToResponse(c *model.Clasificacion) *dto.ClasificacionResponse {
	resp := &dto.ClasificacionResponse{
		CategoriaAFIP:     c.CategoriaAFIP,
		Tipo:              c.Tipo,
		DescripcionLimpia: c.DescripcionLimpia,
		Probabilidad:      c.Probabilidad,
		SugerenciaFactura: c.SugerenciaFactura,
		ModeloUsado:       c.ModeloUsado,
	}
	if c.ProveedorCliente != nil {
		resp.ProveedorCliente = *c.ProveedorCliente
	}
	if c.Notas != nil {
		resp.Notas = *c.Notas
	}
	return resp
}
