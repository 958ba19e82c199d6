package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// GenerarDeclaracionRequest asks for one draft (POST /v1/declaraciones/generar).
type GenerarDeclaracionRequest struct {
	Periodo string `json:"periodo" validate:"required,len=7"`
	Tipo    string `json:"tipo"    validate:"required,oneof=iva_ventas iva_compras monotributo iibb ganancias"`
}

// GenerarTodasRequest asks for the four primary drafts of one period.
type GenerarTodasRequest struct {
	Periodo string `json:"periodo" validate:"required,len=7"`
}

type ActualizarDeclaracionRequest struct {
	Estado *string `json:"estado" validate:"omitempty,oneof=borrador revisada presentada"`
	Notas  *string `json:"notas"`
}

type DeclaracionFilter struct {
	Periodo string `form:"periodo"`
	Tipo    string `form:"tipo"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type DeclaracionResponse struct {
	ID                  string          `json:"id"`
	Periodo             string          `json:"periodo"`
	Tipo                string          `json:"tipo"`
	BaseImponible       decimal.Decimal `json:"base_imponible"`
	ImpuestoDeterminado decimal.Decimal `json:"impuesto_determinado"`
	Deducciones         decimal.Decimal `json:"deducciones"`
	SaldoAPagar         decimal.Decimal `json:"saldo_a_pagar"`
	Detalles            *string         `json:"detalles,omitempty"`
	Estado              string          `json:"estado"`
	Notas               *string         `json:"notas,omitempty"`
	CreatedAt           string          `json:"created_at"`
	UpdatedAt           string          `json:"updated_at"`
}

type DeclaracionListResponse struct {
	Data []DeclaracionResponse `json:"data"`
}

// GenerarTodasResponse reports per-type outcome: the batch keeps going
// when a single estimator fails.
type GenerarTodasResponse struct {
	Periodo     string                `json:"periodo"`
	Generadas   []DeclaracionResponse `json:"generadas"`
	Fallidas    map[string]string     `json:"fallidas,omitempty"`
	TotalATipos int                   `json:"total_tipos"`
}
