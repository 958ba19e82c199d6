package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Clasificacion is the AI-assigned accounting category for one transaction.
// Tipo: "ingreso" | "gasto" | "transferencia" | "impuesto"
type Clasificacion struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TransaccionID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`

	CategoriaAFIP     string          `gorm:"not null;column:categoria_afip"`
	Tipo              string          `gorm:"type:varchar(20);not null"`
	ProveedorCliente  *string
	DescripcionLimpia string          `gorm:"not null"`
	Probabilidad      decimal.Decimal `gorm:"type:decimal(4,3);not null"`
	SugerenciaFactura bool            `gorm:"not null;default:false"`
	Notas             *string
	ModeloUsado       string `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Clasificacion) TableName() string { return "clasificaciones" }
