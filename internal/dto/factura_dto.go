package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type FacturaItemRequest struct {
	Descripcion    string          `json:"descripcion"     validate:"required"`
	Cantidad       decimal.Decimal `json:"cantidad"        validate:"required"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario" validate:"required"`
}

// CrearFacturaRequest creates a Factura C draft (POST /v1/facturas).
// ReceptorCUIT empty means consumidor final.
type CrearFacturaRequest struct {
	ReceptorCUIT   *string              `json:"receptor_cuit"  validate:"omitempty"`
	ReceptorNombre string               `json:"receptor_nombre" validate:"required"`
	Concepto       int                  `json:"concepto"        validate:"omitempty,oneof=1 2 3"`
	FechaEmision   *string              `json:"fecha_emision"   validate:"omitempty,datetime=2006-01-02"`
	Items          []FacturaItemRequest `json:"items"           validate:"required,min=1,dive"`
}

type FacturaFilter struct {
	Estado string `form:"estado"`
	Page   int    `form:"page,default=1"   validate:"min=1"`
	Limit  int    `form:"limit,default=20" validate:"min=1,max=100"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type FacturaItemResponse struct {
	Descripcion    string          `json:"descripcion"`
	Cantidad       decimal.Decimal `json:"cantidad"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
	Subtotal       decimal.Decimal `json:"subtotal"`
}

type FacturaResponse struct {
	ID             string                `json:"id"`
	PuntoVenta     int                   `json:"punto_venta"`
	Numero         *int64                `json:"numero,omitempty"`
	ReceptorCUIT   *string               `json:"receptor_cuit,omitempty"`
	ReceptorNombre string                `json:"receptor_nombre"`
	Concepto       int                   `json:"concepto"`
	ImporteNeto    decimal.Decimal       `json:"importe_neto"`
	ImporteIVA     decimal.Decimal       `json:"importe_iva"`
	ImporteTotal   decimal.Decimal       `json:"importe_total"`
	FechaEmision   string                `json:"fecha_emision"`
	Estado         string                `json:"estado"`
	CAE            *string               `json:"cae,omitempty"`
	CAEVencimiento *string               `json:"cae_vencimiento,omitempty"`
	Observaciones  *string               `json:"observaciones,omitempty"`
	Items          []FacturaItemResponse `json:"items"`
	PDFUrl         *string               `json:"pdf_url,omitempty"`
	CreatedAt      string                `json:"created_at"`
}

type FacturaListResponse struct {
	Data  []FacturaResponse `json:"data"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

// UltimoAutorizadoResponse compares the local counter against AFIP's
// answer so numbering drift is visible before it causes rejections.
type UltimoAutorizadoResponse struct {
	PuntoVenta   int   `json:"punto_venta"`
	NumeroAFIP   int64 `json:"numero_afip"`
	NumeroLocal  int64 `json:"numero_local"`
	Sincronizado bool  `json:"sincronizado"`
}
