package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galo-graneros/ai-contador/internal/dto"
	"github.com/galo-graneros/ai-contador/internal/model"
	"github.com/galo-graneros/ai-contador/internal/repository"
)

// ── In-memory repository stubs ────────────────────────────────────────────────

type stubDeclaracionRepo struct {
	borradores map[string]*model.DeclaracionBorrador // periodo|tipo
	upserts    int
}

func newStubDeclaracionRepo() *stubDeclaracionRepo {
	return &stubDeclaracionRepo{borradores: make(map[string]*model.DeclaracionBorrador)}
}

// Upsert replica la semántica de ON CONFLICT DO UPDATE: en conflicto se
// reasignan las columnas del borrador, no se reemplaza la fila.
func (r *stubDeclaracionRepo) Upsert(_ context.Context, d *model.DeclaracionBorrador) error {
	r.upserts++
	clave := d.Periodo + "|" + d.Tipo
	if prev, ok := r.borradores[clave]; ok {
		prev.BaseImponible = d.BaseImponible
		prev.ImpuestoDeterminado = d.ImpuestoDeterminado
		prev.Deducciones = d.Deducciones
		prev.SaldoAPagar = d.SaldoAPagar
		prev.Detalles = d.Detalles
		prev.Notas = d.Notas
		prev.Estado = d.Estado
		d.ID = prev.ID
		return nil
	}
	d.ID = uuid.New()
	r.borradores[clave] = d
	return nil
}

func (r *stubDeclaracionRepo) FindByID(_ context.Context, _, id uuid.UUID) (*model.DeclaracionBorrador, error) {
	for _, d := range r.borradores {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, errors.New("not found")
}

func (r *stubDeclaracionRepo) List(_ context.Context, _ uuid.UUID, periodo, tipo string) ([]model.DeclaracionBorrador, error) {
	var out []model.DeclaracionBorrador
	for _, d := range r.borradores {
		if (periodo == "" || d.Periodo == periodo) && (tipo == "" || d.Tipo == tipo) {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *stubDeclaracionRepo) Update(_ context.Context, d *model.DeclaracionBorrador) error {
	r.borradores[d.Periodo+"|"+d.Tipo] = d
	return nil
}

type stubFacturaTotalesRepo struct {
	repository.FacturaRepository
	totales repository.TotalesFacturacion
	desde   time.Time
	hasta   time.Time
}

func (r *stubFacturaTotalesRepo) TotalesAprobadas(_ context.Context, _ uuid.UUID, desde, hasta time.Time) (repository.TotalesFacturacion, error) {
	r.desde, r.hasta = desde, hasta
	return r.totales, nil
}

type stubTransaccionSumasRepo struct {
	repository.TransaccionRepository
	sumas  map[string]decimal.Decimal
	conteo map[string]int64
	fallar string // tipo que devuelve error
}

func (r *stubTransaccionSumasRepo) SumMontoPorTipo(_ context.Context, _ uuid.UUID, tipo string, _, _ time.Time) (decimal.Decimal, int64, error) {
	if r.fallar == tipo {
		return decimal.Zero, 0, errors.New("db caida")
	}
	return r.sumas[tipo], r.conteo[tipo], nil
}

func servicioDeclaraciones(totales repository.TotalesFacturacion, sumas map[string]decimal.Decimal) (DeclaracionService, *stubDeclaracionRepo) {
	repo := newStubDeclaracionRepo()
	svc := NewDeclaracionService(repo,
		&stubFacturaTotalesRepo{totales: totales},
		&stubTransaccionSumasRepo{sumas: sumas, conteo: map[string]int64{"expense": 7, "income": 12}},
	)
	return svc, repo
}

// ── Strategies ────────────────────────────────────────────────────────────────

func TestGenerarIVAVentas(t *testing.T) {
	svc, _ := servicioDeclaraciones(repository.TotalesFacturacion{
		Neto:     decimal.NewFromInt(100000),
		IVA:      decimal.Zero,
		Total:    decimal.NewFromInt(100000),
		Cantidad: 8,
	}, nil)

	resp, err := svc.Generar(context.Background(), uuid.New(), dto.GenerarDeclaracionRequest{
		Periodo: "2024-03", Tipo: "iva_ventas",
	})
	require.NoError(t, err)

	assert.Equal(t, "iva_ventas", resp.Tipo)
	assert.True(t, resp.BaseImponible.Equal(decimal.NewFromInt(100000)))
	// Factura C no discrimina IVA: impuesto determinado cero
	assert.True(t, resp.ImpuestoDeterminado.IsZero())
	assert.Equal(t, "borrador", resp.Estado)

	var detalles map[string]interface{}
	require.NotNil(t, resp.Detalles)
	require.NoError(t, json.Unmarshal([]byte(*resp.Detalles), &detalles))
	assert.EqualValues(t, 8, detalles["cantidad_comprobantes"])
	assert.Contains(t, detalles, "importe_neto")
	assert.Contains(t, detalles, "total_facturado")
}

func TestGenerarIVACompras(t *testing.T) {
	svc, _ := servicioDeclaraciones(repository.TotalesFacturacion{}, map[string]decimal.Decimal{
		"expense": decimal.NewFromInt(12100),
	})

	resp, err := svc.Generar(context.Background(), uuid.New(), dto.GenerarDeclaracionRequest{
		Periodo: "2024-03", Tipo: "iva_compras",
	})
	require.NoError(t, err)

	// 12100 × 21/121 = 2100 de crédito fiscal
	assert.True(t, resp.ImpuestoDeterminado.Equal(decimal.NewFromInt(2100)), "iva estimado: %s", resp.ImpuestoDeterminado)
	assert.True(t, resp.BaseImponible.Equal(decimal.NewFromInt(10000)))
	// El crédito fiscal nunca genera saldo a pagar
	assert.True(t, resp.SaldoAPagar.IsZero())
	require.NotNil(t, resp.Notas)
	assert.Contains(t, *resp.Notas, "21%")
}

func TestGenerarMonotributoCategoriaPorIngresos(t *testing.T) {
	svc, _ := servicioDeclaraciones(repository.TotalesFacturacion{
		Total: decimal.NewFromInt(3000000), // entre tope A y tope B
	}, nil)

	resp, err := svc.Generar(context.Background(), uuid.New(), dto.GenerarDeclaracionRequest{
		Periodo: "2024-06", Tipo: "monotributo",
	})
	require.NoError(t, err)

	var detalles map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(*resp.Detalles), &detalles))
	assert.Equal(t, "B", detalles["categoria"])
	assert.True(t, resp.ImpuestoDeterminado.Equal(decimal.NewFromInt(7150)))
}

func TestGenerarMonotributoLimiteInclusivo(t *testing.T) {
	// Ingresos exactamente en el tope de A permanecen en A
	svc, _ := servicioDeclaraciones(repository.TotalesFacturacion{
		Total: decimal.NewFromFloat(2108288.01),
	}, nil)

	resp, err := svc.Generar(context.Background(), uuid.New(), dto.GenerarDeclaracionRequest{
		Periodo: "2024-06", Tipo: "monotributo",
	})
	require.NoError(t, err)

	var detalles map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(*resp.Detalles), &detalles))
	assert.Equal(t, "A", detalles["categoria"])
}

func TestGenerarMonotributoExcedido(t *testing.T) {
	svc, _ := servicioDeclaraciones(repository.TotalesFacturacion{
		Total: decimal.NewFromInt(99000000), // por encima de todos los topes
	}, nil)

	resp, err := svc.Generar(context.Background(), uuid.New(), dto.GenerarDeclaracionRequest{
		Periodo: "2024-06", Tipo: "monotributo",
	})
	require.NoError(t, err)

	var detalles map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(*resp.Detalles), &detalles))
	assert.Equal(t, "K", detalles["categoria"])
	require.NotNil(t, resp.Notas)
	assert.Contains(t, *resp.Notas, "exclusión")
}

func TestGenerarIIBB(t *testing.T) {
	svc, _ := servicioDeclaraciones(repository.TotalesFacturacion{
		Total:    decimal.NewFromInt(100000),
		Cantidad: 5,
	}, nil)

	resp, err := svc.Generar(context.Background(), uuid.New(), dto.GenerarDeclaracionRequest{
		Periodo: "2024-03", Tipo: "iibb",
	})
	require.NoError(t, err)

	// 100000 × 3% = 3000
	assert.True(t, resp.ImpuestoDeterminado.Equal(decimal.NewFromInt(3000)))
	assert.True(t, resp.SaldoAPagar.Equal(decimal.NewFromInt(3000)))
}

func TestGenerarGanancias(t *testing.T) {
	svc, _ := servicioDeclaraciones(repository.TotalesFacturacion{}, map[string]decimal.Decimal{
		"income":  decimal.NewFromInt(200000),
		"expense": decimal.NewFromInt(80000),
	})

	resp, err := svc.Generar(context.Background(), uuid.New(), dto.GenerarDeclaracionRequest{
		Periodo: "2024-03", Tipo: "ganancias",
	})
	require.NoError(t, err)

	assert.True(t, resp.BaseImponible.Equal(decimal.NewFromInt(120000)))
	// 120000 × 35% = 42000
	assert.True(t, resp.ImpuestoDeterminado.Equal(decimal.NewFromInt(42000)))
}

func TestGenerarGananciasNegativaNoTributa(t *testing.T) {
	svc, _ := servicioDeclaraciones(repository.TotalesFacturacion{}, map[string]decimal.Decimal{
		"income":  decimal.NewFromInt(50000),
		"expense": decimal.NewFromInt(90000),
	})

	resp, err := svc.Generar(context.Background(), uuid.New(), dto.GenerarDeclaracionRequest{
		Periodo: "2024-03", Tipo: "ganancias",
	})
	require.NoError(t, err)
	assert.True(t, resp.ImpuestoDeterminado.IsZero())
}

// ── Generar: validación y regeneración ───────────────────────────────────────

func TestGenerarPeriodoInvalido(t *testing.T) {
	svc, _ := servicioDeclaraciones(repository.TotalesFacturacion{}, nil)
	_, err := svc.Generar(context.Background(), uuid.New(), dto.GenerarDeclaracionRequest{
		Periodo: "marzo", Tipo: "iibb",
	})
	assert.Error(t, err)
}

func TestGenerarTipoDesconocido(t *testing.T) {
	svc, _ := servicioDeclaraciones(repository.TotalesFacturacion{}, nil)
	_, err := svc.Generar(context.Background(), uuid.New(), dto.GenerarDeclaracionRequest{
		Periodo: "2024-03", Tipo: "bienes_personales",
	})
	assert.Error(t, err)
}

func TestGenerarEsIdempotente(t *testing.T) {
	svc, repo := servicioDeclaraciones(repository.TotalesFacturacion{
		Total: decimal.NewFromInt(100000),
	}, nil)
	req := dto.GenerarDeclaracionRequest{Periodo: "2024-03", Tipo: "iibb"}

	primera, err := svc.Generar(context.Background(), uuid.New(), req)
	require.NoError(t, err)
	segunda, err := svc.Generar(context.Background(), uuid.New(), req)
	require.NoError(t, err)

	// Regenerar reemplaza el borrador, no acumula
	assert.Len(t, repo.borradores, 1)
	assert.True(t, primera.ImpuestoDeterminado.Equal(segunda.ImpuestoDeterminado))
}

func TestRegenerarSobrescribeNotasYEstado(t *testing.T) {
	facturas := &stubFacturaTotalesRepo{totales: repository.TotalesFacturacion{
		Total: decimal.NewFromInt(3000000),
	}}
	repo := newStubDeclaracionRepo()
	svc := NewDeclaracionService(repo, facturas, &stubTransaccionSumasRepo{})
	userID := uuid.New()
	req := dto.GenerarDeclaracionRequest{Periodo: "2024-06", Tipo: "monotributo"}

	_, err := svc.Generar(context.Background(), userID, req)
	require.NoError(t, err)

	// El usuario marca el borrador como presentado con sus propias notas
	guardada := repo.borradores["2024-06|monotributo"]
	estado := "presentada"
	notas := "Presentada con categoría B"
	_, err = svc.Actualizar(context.Background(), userID, guardada.ID, dto.ActualizarDeclaracionRequest{
		Estado: &estado, Notas: &notas,
	})
	require.NoError(t, err)

	// Los ingresos superan todos los topes: regenerar debe reescribir la
	// fila guardada completa, no solo los montos
	facturas.totales = repository.TotalesFacturacion{Total: decimal.NewFromInt(99000000)}
	resp, err := svc.Generar(context.Background(), userID, req)
	require.NoError(t, err)

	guardada = repo.borradores["2024-06|monotributo"]
	assert.Equal(t, "borrador", guardada.Estado)
	require.NotNil(t, guardada.Notas)
	assert.Contains(t, *guardada.Notas, "exclusión")
	assert.NotContains(t, *guardada.Notas, "Presentada")
	// La respuesta y la fila guardada cuentan lo mismo
	assert.Equal(t, guardada.Estado, resp.Estado)
	assert.Equal(t, *guardada.Notas, *resp.Notas)
}

// ── GenerarTodas ─────────────────────────────────────────────────────────────

func TestGenerarTodas(t *testing.T) {
	svc, repo := servicioDeclaraciones(repository.TotalesFacturacion{
		Total: decimal.NewFromInt(500000),
	}, map[string]decimal.Decimal{"expense": decimal.NewFromInt(12100)})

	resp, err := svc.GenerarTodas(context.Background(), uuid.New(), "2024-03")
	require.NoError(t, err)

	assert.Equal(t, 4, resp.TotalATipos)
	assert.Len(t, resp.Generadas, 4)
	assert.Empty(t, resp.Fallidas)
	assert.Len(t, repo.borradores, 4)

	tipos := make(map[string]bool)
	for _, d := range resp.Generadas {
		tipos[d.Tipo] = true
	}
	// Ganancias es anual: no entra en el lote mensual
	assert.False(t, tipos["ganancias"])
	for _, tipo := range []string{"iva_ventas", "iva_compras", "monotributo", "iibb"} {
		assert.True(t, tipos[tipo], "falta %s", tipo)
	}
}

func TestGenerarTodasFalloParcial(t *testing.T) {
	repo := newStubDeclaracionRepo()
	svc := NewDeclaracionService(repo,
		&stubFacturaTotalesRepo{totales: repository.TotalesFacturacion{Total: decimal.NewFromInt(100000)}},
		&stubTransaccionSumasRepo{fallar: "expense"},
	)

	resp, err := svc.GenerarTodas(context.Background(), uuid.New(), "2024-03")
	require.NoError(t, err)

	// iva_compras depende de los gastos y falla; el resto se genera igual
	assert.Len(t, resp.Generadas, 3)
	require.Contains(t, resp.Fallidas, "iva_compras")
	assert.Contains(t, resp.Fallidas["iva_compras"], "db caida")
}

// ── Actualizar ───────────────────────────────────────────────────────────────

func TestActualizarDeclaracion(t *testing.T) {
	svc, repo := servicioDeclaraciones(repository.TotalesFacturacion{}, nil)
	userID := uuid.New()

	_, err := svc.Generar(context.Background(), userID, dto.GenerarDeclaracionRequest{
		Periodo: "2024-03", Tipo: "iva_ventas",
	})
	require.NoError(t, err)

	estado := "presentada"
	notas := "Presentada por el portal AFIP"
	id := repo.borradores["2024-03|iva_ventas"].ID

	resp, err := svc.Actualizar(context.Background(), userID, id, dto.ActualizarDeclaracionRequest{
		Estado: &estado, Notas: &notas,
	})
	require.NoError(t, err)
	assert.Equal(t, "presentada", resp.Estado)
	require.NotNil(t, resp.Notas)
	assert.Equal(t, notas, *resp.Notas)
}
