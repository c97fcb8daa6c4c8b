package postgres

import (
	"context"
	"errors"

	"github.com/echolabs/echocore/internal/models"
	"github.com/echolabs/echocore/internal/utils"
	"gorm.io/gorm"
)

type InterviewRepository interface {
	GetByID(ctx context.Context, orgID, interviewID uint) (*models.Interview, error)
	QuestionsExpected(ctx context.Context, interviewID uint) ([]models.Question, error)
}

type interviewRepo struct {
	db *gorm.DB
}

func NewInterviewRepo(db *gorm.DB) InterviewRepository {
	return &interviewRepo{db: db}
}

func (r *interviewRepo) GetByID(ctx context.Context, orgID, interviewID uint) (*models.Interview, error) {
	var row models.Interview
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND id = ?", orgID, interviewID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *interviewRepo) QuestionsExpected(ctx context.Context, interviewID uint) ([]models.Question, error) {
	var rows []models.Question
	err := r.db.WithContext(ctx).
		Where("interview_id = ?", interviewID).
		Order("position ASC").
		Find(&rows).Error
	return rows, err
}
