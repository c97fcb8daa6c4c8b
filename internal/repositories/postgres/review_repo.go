package postgres

import (
	"context"
	"time"

	"github.com/echolabs/echocore/internal/models"
	"gorm.io/gorm"
)

type ReviewRepository interface {
	Insert(ctx context.Context, review *models.Review) error
	GetByRespondent(ctx context.Context, respondentID uint) (*models.Review, error)
}

type reviewRepo struct {
	db *gorm.DB
}

func NewReviewRepo(db *gorm.DB) ReviewRepository {
	return &reviewRepo{db: db}
}

func (r *reviewRepo) Insert(ctx context.Context, review *models.Review) error {
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *reviewRepo) GetByRespondent(ctx context.Context, respondentID uint) (*models.Review, error) {
	var row models.Review
	err := r.db.WithContext(ctx).
		Where("respondent_id = ?", respondentID).
		Order("created_at DESC").
		Take(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}
