package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/galo-graneros/ai-contador/internal/dto"
	"github.com/galo-graneros/ai-contador/internal/fiscal"
	"github.com/galo-graneros/ai-contador/internal/model"
	"github.com/galo-graneros/ai-contador/internal/repository"
)

// tiposPrimarios are the monthly declaration types GenerarTodas produces.
// Ganancias is annual and only generated on explicit request.
var tiposPrimarios = []string{"iva_ventas", "iva_compras", "monotributo", "iibb"}

type DeclaracionService interface {
	Generar(ctx context.Context, userID uuid.UUID, req dto.GenerarDeclaracionRequest) (*dto.DeclaracionResponse, error)
	GenerarTodas(ctx context.Context, userID uuid.UUID, periodo string) (*dto.GenerarTodasResponse, error)
	Listar(ctx context.Context, userID uuid.UUID, filtro dto.DeclaracionFilter) (*dto.DeclaracionListResponse, error)
	Obtener(ctx context.Context, userID, id uuid.UUID) (*dto.DeclaracionResponse, error)
	Actualizar(ctx context.Context, userID, id uuid.UUID, req dto.ActualizarDeclaracionRequest) (*dto.DeclaracionResponse, error)
}

type declaracionService struct {
	repo            repository.DeclaracionRepository
	facturaRepo     repository.FacturaRepository
	transaccionRepo repository.TransaccionRepository
}

func NewDeclaracionService(
	repo repository.DeclaracionRepository,
	facturaRepo repository.FacturaRepository,
	transaccionRepo repository.TransaccionRepository,
) DeclaracionService {
	return &declaracionService{
		repo:            repo,
		facturaRepo:     facturaRepo,
		transaccionRepo: transaccionRepo,
	}
}

// Generar computes one draft for (periodo, tipo) and upserts it: the same
// inputs always produce the same numbers, and regenerating replaces the
// previous draft in place.
func (s *declaracionService) Generar(ctx context.Context, userID uuid.UUID, req dto.GenerarDeclaracionRequest) (*dto.DeclaracionResponse, error) {
	desde, hasta, err := fiscal.RangoPeriodo(req.Periodo)
	if err != nil {
		return nil, fmt.Errorf("periodo inválido: %w", err)
	}

	var d *model.DeclaracionBorrador
	switch req.Tipo {
	case "iva_ventas":
		d, err = s.generarIVAVentas(ctx, userID, req.Periodo, desde, hasta)
	case "iva_compras":
		d, err = s.generarIVACompras(ctx, userID, req.Periodo, desde, hasta)
	case "monotributo":
		d, err = s.generarMonotributo(ctx, userID, req.Periodo, hasta)
	case "iibb":
		d, err = s.generarIIBB(ctx, userID, req.Periodo, desde, hasta)
	case "ganancias":
		d, err = s.generarGanancias(ctx, userID, req.Periodo, desde, hasta)
	default:
		return nil, fmt.Errorf("tipo de declaración desconocido: %s", req.Tipo)
	}
	if err != nil {
		return nil, err
	}

	if err := s.repo.Upsert(ctx, d); err != nil {
		return nil, fmt.Errorf("no se pudo guardar el borrador: %w", err)
	}
	return declaracionToResponse(d), nil
}

// GenerarTodas produces the four primary monthly drafts. A failing type
// does not abort the batch; failures come back keyed by type.
func (s *declaracionService) GenerarTodas(ctx context.Context, userID uuid.UUID, periodo string) (*dto.GenerarTodasResponse, error) {
	resp := &dto.GenerarTodasResponse{
		Periodo:     periodo,
		Generadas:   make([]dto.DeclaracionResponse, 0, len(tiposPrimarios)),
		TotalATipos: len(tiposPrimarios),
	}
	for _, tipo := range tiposPrimarios {
		d, err := s.Generar(ctx, userID, dto.GenerarDeclaracionRequest{Periodo: periodo, Tipo: tipo})
		if err != nil {
			log.Warn().Err(err).Str("tipo", tipo).Str("periodo", periodo).Msg("no se pudo generar el borrador")
			if resp.Fallidas == nil {
				resp.Fallidas = make(map[string]string)
			}
			resp.Fallidas[tipo] = err.Error()
			continue
		}
		resp.Generadas = append(resp.Generadas, *d)
	}
	return resp, nil
}

func (s *declaracionService) Listar(ctx context.Context, userID uuid.UUID, filtro dto.DeclaracionFilter) (*dto.DeclaracionListResponse, error) {
	declaraciones, err := s.repo.List(ctx, userID, filtro.Periodo, filtro.Tipo)
	if err != nil {
		return nil, err
	}
	resp := &dto.DeclaracionListResponse{Data: make([]dto.DeclaracionResponse, 0, len(declaraciones))}
	for i := range declaraciones {
		resp.Data = append(resp.Data, *declaracionToResponse(&declaraciones[i]))
	}
	return resp, nil
}

func (s *declaracionService) Obtener(ctx context.Context, userID, id uuid.UUID) (*dto.DeclaracionResponse, error) {
	d, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("declaración no encontrada")
	}
	return declaracionToResponse(d), nil
}

func (s *declaracionService) Actualizar(ctx context.Context, userID, id uuid.UUID, req dto.ActualizarDeclaracionRequest) (*dto.DeclaracionResponse, error) {
	d, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("declaración no encontrada")
	}
	if req.Estado != nil {
		d.Estado = *req.Estado
	}
	if req.Notas != nil {
		d.Notas = req.Notas
	}
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, err
	}
	return declaracionToResponse(d), nil
}

// ── strategies ───────────────────────────────────────────────────────────────

// generarIVAVentas sums the period's approved invoices. Factura C carries
// no VAT line, so the determined tax is usually zero — the draft still
// documents the sales base.
func (s *declaracionService) generarIVAVentas(ctx context.Context, userID uuid.UUID, periodo string, desde, hasta time.Time) (*model.DeclaracionBorrador, error) {
	totales, err := s.facturaRepo.TotalesAprobadas(ctx, userID, desde, hasta)
	if err != nil {
		return nil, err
	}

	detalles := map[string]interface{}{
		"cantidad_comprobantes": totales.Cantidad,
		"importe_neto":          totales.Neto,
		"iva_21":                totales.IVA,
		"total_facturado":       totales.Total,
	}
	return buildDeclaracion(userID, periodo, "iva_ventas",
		totales.Neto, totales.IVA, decimal.Zero, totales.IVA, detalles, nil)
}

// generarIVACompras estimates input VAT from expense movements at the
// general 21% rate: credito = gastos × 21/121. The balance to pay is
// always zero — input VAT is a credit.
func (s *declaracionService) generarIVACompras(ctx context.Context, userID uuid.UUID, periodo string, desde, hasta time.Time) (*model.DeclaracionBorrador, error) {
	gastos, cantidad, err := s.transaccionRepo.SumMontoPorTipo(ctx, userID, "expense", desde, hasta)
	if err != nil {
		return nil, err
	}

	cien := decimal.NewFromInt(100)
	ivaEstimado := gastos.Mul(fiscal.AlicuotaIVA).Div(cien.Add(fiscal.AlicuotaIVA)).Round(2)
	base := gastos.Sub(ivaEstimado)

	notas := "IVA estimado al 21%. Verificar comprobantes de compra para cálculo exacto."
	detalles := map[string]interface{}{
		"total_gastos":           gastos,
		"iva_credito_fiscal":     ivaEstimado,
		"cantidad_transacciones": cantidad,
	}
	return buildDeclaracion(userID, periodo, "iva_compras",
		base, ivaEstimado, decimal.Zero, decimal.Zero, detalles, &notas)
}

// generarMonotributo classifies the user into a bracket by trailing
// 12-month invoiced income (inclusive boundary: income exactly at the
// bracket cap stays in it). Income above every cap falls into the last
// bracket with a warning note.
func (s *declaracionService) generarMonotributo(ctx context.Context, userID uuid.UUID, periodo string, hasta time.Time) (*model.DeclaracionBorrador, error) {
	desde := hasta.AddDate(-1, 0, 0)
	totales, err := s.facturaRepo.TotalesAprobadas(ctx, userID, desde, hasta)
	if err != nil {
		return nil, err
	}
	ingresos := totales.Total

	categoria := fiscal.CategoriasMonotributo[len(fiscal.CategoriasMonotributo)-1]
	excedido := true
	for _, cat := range fiscal.CategoriasMonotributo {
		if ingresos.LessThanOrEqual(cat.IngresosTope) {
			categoria = cat
			excedido = false
			break
		}
	}

	notas := fmt.Sprintf("Categoría %s basada en ingresos de los últimos 12 meses.", categoria.Categoria)
	if excedido {
		notas = fmt.Sprintf("Los ingresos superan el tope de la categoría %s: corresponde evaluar la exclusión del régimen.", categoria.Categoria)
	}
	detalles := map[string]interface{}{
		"categoria":        categoria.Categoria,
		"ingresos_anuales": ingresos,
		"limite_categoria": categoria.IngresosTope,
		"cuota_mensual":    categoria.CuotaMensual,
	}
	return buildDeclaracion(userID, periodo, "monotributo",
		ingresos, categoria.CuotaMensual, decimal.Zero, categoria.CuotaMensual, detalles, &notas)
}

// generarIIBB applies the default gross-receipts aliquot to the period's
// invoiced income.
func (s *declaracionService) generarIIBB(ctx context.Context, userID uuid.UUID, periodo string, desde, hasta time.Time) (*model.DeclaracionBorrador, error) {
	totales, err := s.facturaRepo.TotalesAprobadas(ctx, userID, desde, hasta)
	if err != nil {
		return nil, err
	}
	ingresos := totales.Total

	alicuota := fiscal.AlicuotaIIBBDefault
	impuesto := ingresos.Mul(alicuota).Div(decimal.NewFromInt(100)).Round(2)

	notas := fmt.Sprintf("Alícuota por defecto %s%%. Verificar alícuota según jurisdicción.", alicuota.String())
	detalles := map[string]interface{}{
		"ingresos_brutos":       ingresos,
		"alicuota":              alicuota,
		"cantidad_comprobantes": totales.Cantidad,
	}
	return buildDeclaracion(userID, periodo, "iibb",
		ingresos, impuesto, decimal.Zero, impuesto, detalles, &notas)
}

// generarGanancias is a simplified estimate: net = income − expenses from
// synced movements, taxed flat at 35% when positive.
func (s *declaracionService) generarGanancias(ctx context.Context, userID uuid.UUID, periodo string, desde, hasta time.Time) (*model.DeclaracionBorrador, error) {
	ingresos, _, err := s.transaccionRepo.SumMontoPorTipo(ctx, userID, "income", desde, hasta)
	if err != nil {
		return nil, err
	}
	gastos, _, err := s.transaccionRepo.SumMontoPorTipo(ctx, userID, "expense", desde, hasta)
	if err != nil {
		return nil, err
	}

	ganancia := ingresos.Sub(gastos)
	impuesto := decimal.Zero
	if ganancia.IsPositive() {
		impuesto = ganancia.Mul(fiscal.AlicuotaGanancias).Div(decimal.NewFromInt(100)).Round(2)
	}

	notas := "Cálculo simplificado. Consultar con contador para deducciones específicas."
	detalles := map[string]interface{}{
		"ingresos_totales":  ingresos,
		"gastos_deducibles": gastos,
		"ganancia_neta":     ganancia,
		"alicuota_estimada": fiscal.AlicuotaGanancias,
	}
	return buildDeclaracion(userID, periodo, "ganancias",
		ganancia, impuesto, gastos, impuesto, detalles, &notas)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func buildDeclaracion(
	userID uuid.UUID,
	periodo, tipo string,
	base, impuesto, deducciones, saldo decimal.Decimal,
	detalles map[string]interface{},
	notas *string,
) (*model.DeclaracionBorrador, error) {
	detallesJSON, err := json.Marshal(detalles)
	if err != nil {
		return nil, fmt.Errorf("serializar detalles: %w", err)
	}
	detallesStr := string(detallesJSON)

	return &model.DeclaracionBorrador{
		UserID:              userID,
		Periodo:             periodo,
		Tipo:                tipo,
		BaseImponible:       base,
		ImpuestoDeterminado: impuesto,
		Deducciones:         deducciones,
		SaldoAPagar:         saldo,
		Detalles:            &detallesStr,
		Estado:              "borrador",
		Notas:               notas,
	}, nil
}

func declaracionToResponse(d *model.DeclaracionBorrador) *dto.DeclaracionResponse {
	return &dto.DeclaracionResponse{
		ID:                  d.ID.String(),
		Periodo:             d.Periodo,
		Tipo:                d.Tipo,
		BaseImponible:       d.BaseImponible,
		ImpuestoDeterminado: d.ImpuestoDeterminado,
		Deducciones:         d.Deducciones,
		SaldoAPagar:         d.SaldoAPagar,
		Detalles:            d.Detalles,
		Estado:              d.Estado,
		Notas:               d.Notas,
		CreatedAt:           d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           d.UpdatedAt.Format(time.RFC3339),
	}
}
