package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/echolabs/echocore/internal/models"
	"github.com/echolabs/echocore/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RespondentRepository interface {
	GetByHash(ctx context.Context, orgID, interviewID uint, hash string) (*models.Respondent, error)
	GetByID(ctx context.Context, id uint) (*models.Respondent, error)
	// ClaimForProcessing performs the entry-guard transition under a row
	// lock: closed (or a stale error/process leftover) becomes process.
	// Any other status returns utils.ErrNotEligible semantics via AppError.
	ClaimForProcessing(ctx context.Context, orgID, interviewID uint, hash string) (*models.Respondent, error)
	SetStatus(ctx context.Context, id uint, status models.RespondentStatus) error
	SetScore(ctx context.Context, id uint, score int) error
	ListStuckInProcess(ctx context.Context, olderThan time.Duration) ([]models.Respondent, error)
}

type respondentRepo struct {
	db *gorm.DB
}

func NewRespondentRepo(db *gorm.DB) RespondentRepository {
	return &respondentRepo{db: db}
}

func (r *respondentRepo) GetByHash(ctx context.Context, orgID, interviewID uint, hash string) (*models.Respondent, error) {
	var row models.Respondent
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND interview_id = ? AND respondent_hash = ?", orgID, interviewID, hash).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *respondentRepo) GetByID(ctx context.Context, id uint) (*models.Respondent, error) {
	var row models.Respondent
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *respondentRepo) ClaimForProcessing(ctx context.Context, orgID, interviewID uint, hash string) (*models.Respondent, error) {
	const op = "RespondentRepo.ClaimForProcessing"

	var claimed models.Respondent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.Respondent
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("organization_id = ? AND interview_id = ? AND respondent_hash = ?", orgID, interviewID, hash).
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.E(utils.CodeNotFound, op, "respondent not found", err)
		}
		if err != nil {
			return err
		}

		if !row.Eligible() {
			return utils.E(utils.CodeNotEligible, op, "respondent status "+string(row.Status)+" is not processable", nil)
		}

		// error/process are stale leftovers: the caller holds the run lease,
		// so nothing live owns this row. Reset to closed, then claim.
		if row.Status != models.StatusClosed {
			if err := tx.Model(&models.Respondent{}).Where("id = ?", row.ID).
				Update("status", models.StatusClosed).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&models.Respondent{}).Where("id = ?", row.ID).
			Update("status", models.StatusProcess).Error; err != nil {
			return err
		}

		row.Status = models.StatusProcess
		claimed = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &claimed, nil
}

func (r *respondentRepo) SetStatus(ctx context.Context, id uint, status models.RespondentStatus) error {
	return r.db.WithContext(ctx).Model(&models.Respondent{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *respondentRepo) SetScore(ctx context.Context, id uint, score int) error {
	return r.db.WithContext(ctx).Model(&models.Respondent{}).
		Where("id = ?", id).
		Update("score", score).Error
}

func (r *respondentRepo) ListStuckInProcess(ctx context.Context, olderThan time.Duration) ([]models.Respondent, error) {
	var rows []models.Respondent
	cutoff := time.Now().UTC().Add(-olderThan)
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", models.StatusProcess, cutoff).
		Find(&rows).Error
	return rows, err
}
