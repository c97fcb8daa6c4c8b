package models

import "time"

// SuspendThreshold: the balance may go negative, but below this the account
// is considered suspended.
const SuspendThreshold = -2.00

const InitialBalance = 50.00

type BillingAccount struct {
	OrgID        uint       `gorm:"column:org_id;primaryKey" json:"org_id"`
	CashBalance  float64    `gorm:"column:cash_balance;type:numeric(12,6)" json:"cash_balance"`
	LastBilledAt *time.Time `gorm:"column:last_billed_at;type:timestamptz" json:"last_billed_at,omitempty"`
}

func (BillingAccount) TableName() string { return "billing_accounts" }

func (a *BillingAccount) Suspended() bool { return a.CashBalance < SuspendThreshold }

type OrganizationPayment struct {
	ID        uint      `gorm:"column:id;primaryKey" json:"id"`
	OrgID     uint      `gorm:"column:org_id;index" json:"org_id"`
	Amount    float64   `gorm:"column:amount;type:numeric(12,6)" json:"amount"`
	Method    string    `gorm:"column:method;type:text" json:"method"`
	Reference string    `gorm:"column:reference;type:text" json:"reference"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (OrganizationPayment) TableName() string { return "organization_payments" }
