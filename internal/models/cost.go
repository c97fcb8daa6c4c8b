package models

import (
	"time"

	"gorm.io/datatypes"
)

// InterviewCost is the immutable per-run cost record. One row per
// (respondent, attempt); the unique index is also the billing idempotence
// guard - a second publish of the same run finds the row and skips deduction.
type InterviewCost struct {
	ID             uint           `gorm:"column:id;primaryKey" json:"id"`
	RespondentID   uint           `gorm:"column:respondent_id;uniqueIndex:idx_cost_respondent_attempt" json:"respondent_id"`
	InterviewID    uint           `gorm:"column:interview_id;index" json:"interview_id"`
	OrganizationID uint           `gorm:"column:organization_id;index" json:"organization_id"`
	Attempt        int            `gorm:"column:attempt;uniqueIndex:idx_cost_respondent_attempt" json:"attempt"`
	CostData       datatypes.JSON `gorm:"column:cost_data;type:jsonb" json:"cost_data"`
	TotalCost      float64        `gorm:"column:total_cost;type:numeric(12,6)" json:"total_cost"`
	CreatedAt      time.Time      `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (InterviewCost) TableName() string { return "interview_costs" }
