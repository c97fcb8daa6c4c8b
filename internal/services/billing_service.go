package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/echolabs/echocore/internal/cache"
	pgrepo "github.com/echolabs/echocore/internal/repositories/postgres"
	"github.com/echolabs/echocore/internal/utils"
)

const balanceCacheTTL = 30 * time.Second

type BalanceInfo struct {
	OrgID       uint    `json:"organization_id"`
	CashBalance float64 `json:"cash_balance"`
	Suspended   bool    `json:"suspended"`
}

// BillingService exposes the org balance and top-ups. Balances are cached
// briefly; any write path invalidates the cached value.
type BillingService interface {
	Balance(ctx context.Context, orgID uint) (BalanceInfo, error)
	AddPayment(ctx context.Context, orgID uint, amount float64, method, reference string) (BalanceInfo, error)
	EnsureAccount(ctx context.Context, orgID uint) error
}

type billingService struct {
	billing pgrepo.BillingRepository
	cache   cache.Cache
}

func NewBillingService(billing pgrepo.BillingRepository, c cache.Cache) BillingService {
	return &billingService{billing: billing, cache: c}
}

func balanceKey(orgID uint) string { return fmt.Sprintf("billing:balance:%d", orgID) }

func (s *billingService) Balance(ctx context.Context, orgID uint) (BalanceInfo, error) {
	const op = "BillingService.Balance"

	if orgID == 0 {
		return BalanceInfo{}, utils.E(utils.CodeInvalidArgument, op, "organization id is required", nil)
	}

	if s.cache != nil {
		var cached BalanceInfo
		if hit, err := s.cache.GetJSON(ctx, balanceKey(orgID), &cached); err == nil && hit {
			return cached, nil
		}
	}

	acc, err := s.billing.GetBalance(ctx, orgID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return BalanceInfo{}, utils.E(utils.CodeNotFound, op, "billing account not found", err)
		}
		return BalanceInfo{}, utils.E(utils.CodeInternal, op, "failed to get balance", err)
	}

	info := BalanceInfo{
		OrgID:       orgID,
		CashBalance: acc.CashBalance,
		Suspended:   acc.Suspended(),
	}
	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, balanceKey(orgID), info, balanceCacheTTL)
	}
	return info, nil
}

func (s *billingService) AddPayment(ctx context.Context, orgID uint, amount float64, method, reference string) (BalanceInfo, error) {
	const op = "BillingService.AddPayment"

	if orgID == 0 {
		return BalanceInfo{}, utils.E(utils.CodeInvalidArgument, op, "organization id is required", nil)
	}

	if err := s.billing.AddPayment(ctx, orgID, amount, method, reference); err != nil {
		if utils.IsCode(err, utils.CodeInvalidArgument) || utils.IsCode(err, utils.CodeNotFound) {
			return BalanceInfo{}, err
		}
		return BalanceInfo{}, utils.E(utils.CodeInternal, op, "failed to record payment", err)
	}

	if s.cache != nil {
		_ = s.cache.Del(ctx, balanceKey(orgID))
	}

	acc, err := s.billing.GetBalance(ctx, orgID)
	if err != nil {
		return BalanceInfo{}, utils.E(utils.CodeInternal, op, "failed to read balance after payment", err)
	}
	return BalanceInfo{
		OrgID:       orgID,
		CashBalance: acc.CashBalance,
		Suspended:   acc.Suspended(),
	}, nil
}

func (s *billingService) EnsureAccount(ctx context.Context, orgID uint) error {
	const op = "BillingService.EnsureAccount"

	if orgID == 0 {
		return utils.E(utils.CodeInvalidArgument, op, "organization id is required", nil)
	}
	if err := s.billing.EnsureAccount(ctx, orgID); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to ensure billing account", err)
	}
	return nil
}
