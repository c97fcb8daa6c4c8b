package models

import "time"

type Interview struct {
	ID             uint      `gorm:"column:id;primaryKey" json:"id"`
	OrganizationID uint      `gorm:"column:organization_id;index" json:"organization_id"`
	Name           string    `gorm:"column:name;type:text" json:"name"`
	Language       string    `gorm:"column:language;type:text" json:"language"` // ru|en|es|de|fr
	VoiceOnly      bool      `gorm:"column:voice_only" json:"voice_only"`
	Visible        bool      `gorm:"column:visible" json:"visible"`
	CreatedAt      time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Interview) TableName() string { return "interviews" }

// Question carries the text asked and the answer the interviewer expects,
// ordered by position within the interview.
type Question struct {
	ID          uint   `gorm:"column:id;primaryKey" json:"id"`
	InterviewID uint   `gorm:"column:interview_id;index" json:"interview_id"`
	Position    int    `gorm:"column:position" json:"position"`
	Question    string `gorm:"column:question;type:text" json:"question"`
	Expected    string `gorm:"column:expected;type:text" json:"expected"`
}

func (Question) TableName() string { return "questions" }
