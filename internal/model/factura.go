package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Factura is a locally drafted Factura C, identified fiscally by
// (punto_venta, numero) — monotonically increasing per point of sale.
// Estado: "borrador" | "pendiente" | "aprobada" | "rechazada"
// Transitions are borrador → pendiente → {aprobada, rechazada}; an
// aprobada invoice is immutable except for derived fields (PDF path).
// Numero is nil until first submission: drafts never consume a number,
// and a rejected or timed-out submission keeps the one it drew.
type Factura struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID     uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_factura_pv_numero;not null"`
	PuntoVenta int       `gorm:"uniqueIndex:idx_factura_pv_numero;not null"`
	Numero     *int64    `gorm:"uniqueIndex:idx_factura_pv_numero"`

	ReceptorCUIT         *string `gorm:"type:varchar(20);column:receptor_cuit"`
	ReceptorNombre       string  `gorm:"not null"`
	ReceptorCondicionIVA *string `gorm:"column:receptor_condicion_iva"`
	Concepto             int     `gorm:"not null;default:2"` // 2 = servicios

	ImporteNeto  decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	ImporteIVA   decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0;column:importe_iva"`
	ImporteTotal decimal.Decimal `gorm:"type:decimal(14,2);not null"`

	FechaEmision time.Time `gorm:"type:date;not null"`
	Estado       string    `gorm:"type:varchar(20);not null;default:'borrador'"`

	// CAE is the authorization code returned by AFIP on approval
	CAE            *string    `gorm:"type:varchar(20);column:cae"`
	CAEVencimiento *time.Time `gorm:"type:date;column:cae_vencimiento"`
	// RespuestaAFIP stores the raw authority response for audit
	RespuestaAFIP *string `gorm:"type:jsonb;column:respuesta_afip"`
	Observaciones *string

	PDFPath *string `gorm:"column:pdf_path"`

	Items []FacturaItem `gorm:"foreignKey:FacturaID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Factura) TableName() string { return "facturas" }

// FacturaItem is one invoice line; subtotal = cantidad × precio unitario.
type FacturaItem struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	FacturaID      uuid.UUID       `gorm:"type:uuid;index;not null"`
	Descripcion    string          `gorm:"not null"`
	Cantidad       decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(14,2);not null"`
}

func (FacturaItem) TableName() string { return "factura_items" }

// ContadorPuntoVenta is the authoritative per-(user, punto_venta) invoice
// number counter. Allocation happens inside a transaction holding a row
// lock, so two concurrent submissions can never draw the same number.
type ContadorPuntoVenta struct {
	UserID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	PuntoVenta   int       `gorm:"primaryKey"`
	UltimoNumero int64     `gorm:"not null;default:0"`
	UpdatedAt    time.Time
}

func (ContadorPuntoVenta) TableName() string { return "contadores_punto_venta" }
