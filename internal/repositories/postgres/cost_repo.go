package postgres

import (
	"context"
	"time"

	"github.com/echolabs/echocore/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CostRepository interface {
	// Insert persists the run's cost record. created=false means a row for
	// this (respondent, attempt) already exists; callers use that as the
	// billing idempotence signal.
	Insert(ctx context.Context, cost *models.InterviewCost) (created bool, err error)
}

type costRepo struct {
	db *gorm.DB
}

func NewCostRepo(db *gorm.DB) CostRepository {
	return &costRepo{db: db}
}

func (r *costRepo) Insert(ctx context.Context, cost *models.InterviewCost) (bool, error) {
	if cost.CreatedAt.IsZero() {
		cost.CreatedAt = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "respondent_id"}, {Name: "attempt"}},
			DoNothing: true,
		}).
		Create(cost)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
