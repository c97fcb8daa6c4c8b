package models

import (
	"time"

	"gorm.io/datatypes"
)

// Review is the persisted outcome of one processing run: rated transcripts,
// the interview-level summary, and the video timecode map, all in one JSON
// payload.
type Review struct {
	ID           uint           `gorm:"column:id;primaryKey" json:"id"`
	RespondentID uint           `gorm:"column:respondent_id;index" json:"respondent_id"`
	InterviewID  uint           `gorm:"column:interview_id;index" json:"interview_id"`
	ReviewData   datatypes.JSON `gorm:"column:review_data;type:jsonb" json:"review_data"`
	CreatedAt    time.Time      `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Review) TableName() string { return "reviews" }
