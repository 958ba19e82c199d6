package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/galo-graneros/ai-contador/internal/model"
)

type DeclaracionRepository interface {
	// Upsert writes the draft keyed by (user, periodo, tipo); regenerating
	// a period replaces the previous numbers in place.
	Upsert(ctx context.Context, d *model.DeclaracionBorrador) error
	FindByID(ctx context.Context, userID, id uuid.UUID) (*model.DeclaracionBorrador, error)
	List(ctx context.Context, userID uuid.UUID, periodo, tipo string) ([]model.DeclaracionBorrador, error)
	Update(ctx context.Context, d *model.DeclaracionBorrador) error
}

type declaracionRepo struct{ db *gorm.DB }

func NewDeclaracionRepository(db *gorm.DB) DeclaracionRepository {
	return &declaracionRepo{db: db}
}

func (r *declaracionRepo) Upsert(ctx context.Context, d *model.DeclaracionBorrador) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "periodo"}, {Name: "tipo"}},
		// Regenerar reescribe el borrador completo: también notas y estado,
		// aunque el usuario ya lo hubiera marcado como presentada.
		DoUpdates: clause.AssignmentColumns([]string{
			"base_imponible", "impuesto_determinado", "deducciones",
			"saldo_a_pagar", "detalles", "notas", "estado", "updated_at",
		}),
	}).Create(d).Error
}

func (r *declaracionRepo) FindByID(ctx context.Context, userID, id uuid.UUID) (*model.DeclaracionBorrador, error) {
	var d model.DeclaracionBorrador
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&d).Error
	return &d, err
}

func (r *declaracionRepo) List(ctx context.Context, userID uuid.UUID, periodo, tipo string) ([]model.DeclaracionBorrador, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if periodo != "" {
		q = q.Where("periodo = ?", periodo)
	}
	if tipo != "" {
		q = q.Where("tipo = ?", tipo)
	}

	var declaraciones []model.DeclaracionBorrador
	err := q.Order("periodo DESC, tipo").Find(&declaraciones).Error
	return declaraciones, err
}

func (r *declaracionRepo) Update(ctx context.Context, d *model.DeclaracionBorrador) error {
	return r.db.WithContext(ctx).Save(d).Error
}
