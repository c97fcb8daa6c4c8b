package models

import "time"

type RespondentStatus string

const (
	StatusInit      RespondentStatus = "init"
	StatusProgress  RespondentStatus = "progress"
	StatusClosed    RespondentStatus = "closed"
	StatusProcess   RespondentStatus = "process"
	StatusProcessed RespondentStatus = "processed"
	StatusError     RespondentStatus = "error"
)

// Respondent is one participant's record for one interview. Rows are never
// deleted, only status-transitioned. The status column doubles as the
// processing claim: closed -> process is the single-flight transition.
type Respondent struct {
	ID             uint             `gorm:"column:id;primaryKey" json:"id"`
	OrganizationID uint             `gorm:"column:organization_id;index" json:"organization_id"`
	InterviewID    uint             `gorm:"column:interview_id;index" json:"interview_id"`
	Contact        string           `gorm:"column:contact;type:text" json:"contact"`
	RespondentHash string           `gorm:"column:respondent_hash;type:uuid;index" json:"respondent_hash"`
	Language       string           `gorm:"column:language;type:text" json:"language"`
	Status         RespondentStatus `gorm:"column:status;type:text" json:"status"`
	Score          int              `gorm:"column:score" json:"score"`
	Visible        bool             `gorm:"column:visible" json:"visible"`

	InterviewDisplayName string `gorm:"column:interview_display_name;type:text" json:"interview_display_name"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Respondent) TableName() string { return "respondents" }

// Eligible reports whether a processing run may claim this respondent.
// error/process are treated as leftovers of a stale or crashed run.
func (r *Respondent) Eligible() bool {
	switch r.Status {
	case StatusClosed, StatusError, StatusProcess:
		return true
	default:
		return false
	}
}
