package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/echolabs/echocore/internal/models"
)

type fakeBillingRepo struct {
	balance    float64
	deductions []float64
	deductErr  error
	ensured    []uint
}

func (f *fakeBillingRepo) EnsureAccount(ctx context.Context, orgID uint) error {
	f.ensured = append(f.ensured, orgID)
	return nil
}

func (f *fakeBillingRepo) GetBalance(ctx context.Context, orgID uint) (*models.BillingAccount, error) {
	return &models.BillingAccount{OrgID: orgID, CashBalance: f.balance}, nil
}

func (f *fakeBillingRepo) Deduct(ctx context.Context, orgID uint, amount float64) (float64, error) {
	if f.deductErr != nil {
		return 0, f.deductErr
	}
	f.deductions = append(f.deductions, amount)
	f.balance -= amount
	return f.balance, nil
}

func (f *fakeBillingRepo) AddPayment(ctx context.Context, orgID uint, amount float64, method, reference string) error {
	f.balance += amount
	return nil
}

func TestSettle_DefaultTariff(t *testing.T) {
	run := newTestRun(t)
	run.Costs.ProcessingTimeSec = 120 // 2 minutes

	repo := &fakeBillingRepo{balance: 50}
	a := &Accountant{Billing: repo, PriceDefault: 0.085, PriceVoiceOnly: 0.050}

	amount, err := a.Settle(context.Background(), run)
	if err != nil {
		t.Fatal(err)
	}
	if amount != 0.17 {
		t.Errorf("amount = %v, want 0.17", amount)
	}
	if len(repo.deductions) != 1 || repo.deductions[0] != 0.17 {
		t.Errorf("deductions = %v", repo.deductions)
	}
	if len(repo.ensured) != 1 || repo.ensured[0] != run.OrganizationID {
		t.Errorf("ensured accounts = %v, want [%d]", repo.ensured, run.OrganizationID)
	}
}

func TestSettle_VoiceOnlyTariff(t *testing.T) {
	run := newTestRun(t)
	run.VoiceOnly = true
	run.Costs.ProcessingTimeSec = 120

	repo := &fakeBillingRepo{balance: 50}
	a := &Accountant{Billing: repo, PriceDefault: 0.085, PriceVoiceOnly: 0.050}

	amount, err := a.Settle(context.Background(), run)
	if err != nil {
		t.Fatal(err)
	}
	if amount != 0.10 {
		t.Errorf("amount = %v, want 0.10", amount)
	}
}

func TestSettle_RoundsToSixPlaces(t *testing.T) {
	run := newTestRun(t)
	run.Costs.ProcessingTimeSec = 100 // 100/60 min * 0.085 = 0.1416666...

	repo := &fakeBillingRepo{balance: 50}
	a := &Accountant{Billing: repo, PriceDefault: 0.085, PriceVoiceOnly: 0.050}

	amount, err := a.Settle(context.Background(), run)
	if err != nil {
		t.Fatal(err)
	}
	if amount != 0.141667 {
		t.Errorf("amount = %v, want 0.141667", amount)
	}
}

func TestSettle_DeductErrorPropagates(t *testing.T) {
	run := newTestRun(t)
	run.Costs.ProcessingTimeSec = 60

	repo := &fakeBillingRepo{deductErr: errors.New("db down")}
	a := &Accountant{Billing: repo, PriceDefault: 0.085, PriceVoiceOnly: 0.050}

	if _, err := a.Settle(context.Background(), run); err == nil {
		t.Error("expected error from failed deduction")
	}
}
