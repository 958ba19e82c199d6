package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/galo-graneros/ai-contador/internal/model"
)

type ClasificacionRepository interface {
	// Upsert keeps a single classification per transaction; reclassifying
	// overwrites the previous result.
	Upsert(ctx context.Context, c *model.Clasificacion) error
	FindByTransaccion(ctx context.Context, transaccionID uuid.UUID) (*model.Clasificacion, error)
}

type clasificacionRepo struct{ db *gorm.DB }

func NewClasificacionRepository(db *gorm.DB) ClasificacionRepository {
	return &clasificacionRepo{db: db}
}

func (r *clasificacionRepo) Upsert(ctx context.Context, c *model.Clasificacion) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "transaccion_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"categoria_afip", "tipo", "proveedor_cliente", "descripcion_limpia",
			"probabilidad", "sugerencia_factura", "notas", "modelo_usado", "updated_at",
		}),
	}).Create(c).Error
}

func (r *clasificacionRepo) FindByTransaccion(ctx context.Context, transaccionID uuid.UUID) (*model.Clasificacion, error) {
	var c model.Clasificacion
	err := r.db.WithContext(ctx).
		Where("transaccion_id = ?", transaccionID).
		First(&c).Error
	return &c, err
}
