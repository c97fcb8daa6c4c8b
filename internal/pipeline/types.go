package pipeline

import (
	"time"

	"github.com/sirupsen/logrus"
)

// NoAnswer is substituted when every chunk of a question failed or was
// absent; an answer is never persisted empty.
const NoAnswer = "No answer provided"

type TranscriptItem struct {
	Question string `json:"question"`
	Expected string `json:"expected"`
	Answer   string `json:"answer"`
}

type RatedItem struct {
	TranscriptItem
	Rate   int    `json:"rate"`
	Review string `json:"review"`
}

type Summary struct {
	Rate   int    `json:"rate"`
	Review string `json:"review"`
}

// ReviewPayload is the respondent's persisted review: rated transcripts,
// interview-level summary, and the video timecode map ("q0" -> "0:00").
type ReviewPayload struct {
	Interview []RatedItem       `json:"interview"`
	Summary   Summary           `json:"summary"`
	Timecodes map[string]string `json:"timecodes"`
}

// Run carries everything one pipeline execution needs. It is built by the
// orchestrator after the entry guard admits the respondent and is owned by
// exactly one goroutine for its whole life.
type Run struct {
	RunID          string
	OrganizationID uint
	InterviewID    uint
	RespondentID   uint
	RespondentHash string
	Attempt        int

	LanguageCode  string // "en"
	LanguageName  string // "English"
	STTLocale     string // "en-US"
	VoiceOnly     bool
	QuestionCount int

	Workspace *Workspace
	Log       *logrus.Logger
	Costs     *CostLog
	StartedAt time.Time
}
