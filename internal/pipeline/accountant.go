package pipeline

import (
	"context"

	pgrepo "github.com/echolabs/echocore/internal/repositories/postgres"
)

// Accountant converts the run's processing time into a balance deduction.
// Voice-only interviews bill at the cheaper tariff. Deduction is best-effort
// with respect to the rest of the run: the caller logs failures and moves on.
type Accountant struct {
	Billing        pgrepo.BillingRepository
	PriceDefault   float64
	PriceVoiceOnly float64
}

func (a *Accountant) Settle(ctx context.Context, run *Run) (float64, error) {
	price := a.PriceDefault
	if run.VoiceOnly {
		price = a.PriceVoiceOnly
	}

	minutes := run.Costs.ProcessingTimeSec / 60
	amount := Round6(price * minutes)

	// Organizations get their account lazily, seeded with the starting
	// balance, on the first billable run.
	if err := a.Billing.EnsureAccount(ctx, run.OrganizationID); err != nil {
		return 0, err
	}
	if _, err := a.Billing.Deduct(ctx, run.OrganizationID, amount); err != nil {
		return 0, err
	}
	return amount, nil
}
