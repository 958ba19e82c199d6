package model

import (
	"time"

	"github.com/google/uuid"
)

// Usuario is an account holder: a monotributista or small business owner.
// CondicionFiscal: "monotributo" | "responsable_inscripto"
type Usuario struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Email        string    `gorm:"uniqueIndex;not null"`
	Nombre       string    `gorm:"not null"`
	PasswordHash string    `gorm:"not null"`
	// CUIT is the user's own taxpayer id, stored clean (digits only)
	CUIT            *string `gorm:"type:varchar(11);column:cuit"`
	CondicionFiscal string  `gorm:"type:varchar(30);not null;default:'monotributo'"`
	// CategoriaMonotributo is the self-reported bracket letter ("A".."K")
	CategoriaMonotributo *string `gorm:"type:varchar(1)"`
	Activo               bool    `gorm:"not null;default:true"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (Usuario) TableName() string { return "usuarios" }
