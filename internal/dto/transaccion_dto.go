package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type TransaccionFilter struct {
	Tipo   string `form:"tipo"   validate:"omitempty,oneof=income expense transfer tax other"`
	Estado string `form:"estado" validate:"omitempty,oneof=pendiente clasificada facturada conciliada"`
	Desde  string `form:"desde"  validate:"omitempty,datetime=2006-01-02"`
	Hasta  string `form:"hasta"  validate:"omitempty,datetime=2006-01-02"`
	Page   int    `form:"page,default=1"   validate:"min=1"`
	Limit  int    `form:"limit,default=20" validate:"min=1,max=100"`
}

// SincronizarRequest triggers a manual pull (POST /v1/movimientos/sincronizar).
type SincronizarRequest struct {
	Desde *string `json:"desde" validate:"omitempty,datetime=2006-01-02"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ClasificacionResponse struct {
	CategoriaAFIP     string          `json:"categoria_afip"`
	Tipo              string          `json:"tipo"`
	ProveedorCliente  string          `json:"proveedor_cliente,omitempty"`
	DescripcionLimpia string          `json:"descripcion_limpia,omitempty"`
	Probabilidad      decimal.Decimal `json:"probabilidad"`
	SugerenciaFactura bool            `json:"sugerencia_factura"`
	Notas             string          `json:"notas,omitempty"`
	ModeloUsado       string          `json:"modelo_usado,omitempty"`
}

type TransaccionResponse struct {
	ID            string                 `json:"id"`
	ExternalID    string                 `json:"external_id"`
	Fecha         string                 `json:"fecha"`
	Descripcion   string                 `json:"descripcion"`
	Monto         decimal.Decimal        `json:"monto"`
	Moneda        string                 `json:"moneda"`
	Tipo          string                 `json:"tipo"`
	Estado        string                 `json:"estado"`
	Contraparte   *string                `json:"contraparte,omitempty"`
	Clasificacion *ClasificacionResponse `json:"clasificacion,omitempty"`
	CreatedAt     string                 `json:"created_at"`
}

type TransaccionListResponse struct {
	Data  []TransaccionResponse `json:"data"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}
