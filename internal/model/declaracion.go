package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeclaracionBorrador is a best-effort periodic tax estimate, identified by
// (user, periodo, tipo). Regenerating for the same key overwrites the
// previous draft — declarations are estimates, never the authoritative filing.
// Tipo:   "iva_ventas" | "iva_compras" | "monotributo" | "iibb" | "ganancias"
// Estado: "borrador" | "revisada" | "presentada"
type DeclaracionBorrador struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID  uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_declaracion_user_periodo_tipo;not null"`
	Periodo string    `gorm:"type:varchar(7);uniqueIndex:idx_declaracion_user_periodo_tipo;not null"` // YYYY-MM
	Tipo    string    `gorm:"type:varchar(20);uniqueIndex:idx_declaracion_user_periodo_tipo;not null"`

	BaseImponible       decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	ImpuestoDeterminado decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Deducciones         decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	SaldoAPagar         decimal.Decimal `gorm:"type:decimal(14,2);not null;column:saldo_a_pagar"`

	// Detalles is a free-form JSON breakdown of how the numbers were built
	Detalles *string `gorm:"type:jsonb"`
	Estado   string  `gorm:"type:varchar(20);not null;default:'borrador'"`
	Notas    *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (DeclaracionBorrador) TableName() string { return "declaraciones_borrador" }
