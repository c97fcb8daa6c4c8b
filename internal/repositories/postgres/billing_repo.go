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

type BillingRepository interface {
	EnsureAccount(ctx context.Context, orgID uint) error
	GetBalance(ctx context.Context, orgID uint) (*models.BillingAccount, error)
	// Deduct subtracts amount from the organization balance under a row
	// lock and returns the new balance. The balance may go negative.
	Deduct(ctx context.Context, orgID uint, amount float64) (float64, error)
	AddPayment(ctx context.Context, orgID uint, amount float64, method, reference string) error
}

type billingRepo struct {
	db *gorm.DB
}

func NewBillingRepo(db *gorm.DB) BillingRepository {
	return &billingRepo{db: db}
}

func (r *billingRepo) EnsureAccount(ctx context.Context, orgID uint) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "org_id"}},
			DoNothing: true,
		}).
		Create(&models.BillingAccount{OrgID: orgID, CashBalance: models.InitialBalance}).Error
}

func (r *billingRepo) GetBalance(ctx context.Context, orgID uint) (*models.BillingAccount, error) {
	var row models.BillingAccount
	err := r.db.WithContext(ctx).Where("org_id = ?", orgID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *billingRepo) Deduct(ctx context.Context, orgID uint, amount float64) (float64, error) {
	const op = "BillingRepo.Deduct"

	var balance float64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var acc models.BillingAccount
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("org_id = ?", orgID).
			Take(&acc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.E(utils.CodeNotFound, op, "billing account not found", err)
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		acc.CashBalance -= amount
		acc.LastBilledAt = &now
		if err := tx.Model(&models.BillingAccount{}).Where("org_id = ?", orgID).
			Updates(map[string]any{
				"cash_balance":   acc.CashBalance,
				"last_billed_at": acc.LastBilledAt,
			}).Error; err != nil {
			return err
		}
		balance = acc.CashBalance
		return nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *billingRepo) AddPayment(ctx context.Context, orgID uint, amount float64, method, reference string) error {
	const op = "BillingRepo.AddPayment"

	if amount == 0 {
		return utils.E(utils.CodeInvalidArgument, op, "payment amount cannot be zero", nil)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var acc models.BillingAccount
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("org_id = ?", orgID).
			Take(&acc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.E(utils.CodeNotFound, op, "billing account not found", err)
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&models.BillingAccount{}).Where("org_id = ?", orgID).
			Update("cash_balance", acc.CashBalance+amount).Error; err != nil {
			return err
		}

		return tx.Create(&models.OrganizationPayment{
			OrgID:     orgID,
			Amount:    amount,
			Method:    method,
			Reference: reference,
			CreatedAt: time.Now().UTC(),
		}).Error
	})
}
