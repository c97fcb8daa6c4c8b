package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RunJournal is the per-run stage trace kept in Mongo. It exists for
// operators: stuck or failed runs are diagnosed from here without pulling
// the process log out of object storage.
type RunJournal struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RunID          string             `bson:"run_id" json:"run_id"` // uuid v4
	RespondentID   uint               `bson:"respondent_id" json:"respondent_id"`
	InterviewID    uint               `bson:"interview_id" json:"interview_id"`
	OrganizationID uint               `bson:"organization_id" json:"organization_id"`
	Attempt        int                `bson:"attempt" json:"attempt"`

	Stage   string       `bson:"stage" json:"stage"`     // current/last stage
	Outcome string       `bson:"outcome" json:"outcome"` // running|done|failed|rejected
	Events  []StageEvent `bson:"events" json:"events"`

	StartedAt  time.Time  `bson:"started_at" json:"started_at"`
	FinishedAt *time.Time `bson:"finished_at,omitempty" json:"finished_at,omitempty"`
}

type StageEvent struct {
	Stage     string    `bson:"stage" json:"stage"`
	At        time.Time `bson:"at" json:"at"`
	ElapsedMS int64     `bson:"elapsed_ms" json:"elapsed_ms"`
	Note      string    `bson:"note,omitempty" json:"note,omitempty"`
}
