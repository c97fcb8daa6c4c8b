package pipeline

import (
	"context"
	"time"

	"github.com/echolabs/echocore/internal/lease"
	"github.com/echolabs/echocore/internal/logger"
	"github.com/echolabs/echocore/internal/models"
	mongorepo "github.com/echolabs/echocore/internal/repositories/mongo"
	pgrepo "github.com/echolabs/echocore/internal/repositories/postgres"
	"github.com/echolabs/echocore/internal/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Stage string

const (
	StageValidating   Stage = "validating"
	StageFetching     Stage = "fetching"
	StageTranscribing Stage = "transcribing"
	StageScoring      Stage = "scoring"
	StageRendering    Stage = "rendering"
	StagePublishing   Stage = "publishing"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

// Stage contracts, narrow so tests can fake each one.
type (
	Fetcher interface {
		Fetch(ctx context.Context, run *Run) ([]string, error)
	}
	Transcriber interface {
		Transcribe(ctx context.Context, run *Run, questions []models.Question) ([]TranscriptItem, error)
	}
	Scorer interface {
		Score(ctx context.Context, run *Run, items []TranscriptItem) ([]RatedItem, Summary, error)
	}
	Renderer interface {
		Render(ctx context.Context, run *Run) (videoPath string, timecodes map[string]string, err error)
	}
	Publisher interface {
		Publish(ctx context.Context, run *Run, payload *ReviewPayload) (costCreated bool, err error)
		UploadLog(ctx context.Context, run *Run)
	}
	Settler interface {
		Settle(ctx context.Context, run *Run) (float64, error)
	}
)

// RunRequest identifies one (respondent, attempt) processing run.
// Attempt <= 0 means "latest attempt with stored data".
type RunRequest struct {
	OrganizationID uint
	InterviewID    uint
	RespondentHash string
	Attempt        int
}

// Orchestrator sequences the pipeline stages for one run and guarantees
// single-flight execution per respondent: a Redis lease bounds the run's
// lifetime and the locked status transition to `process` is the durable
// claim. Every abort path leaves the respondent in `error`, never stranded
// in `process`.
type Orchestrator struct {
	Respondents pgrepo.RespondentRepository
	Interviews  pgrepo.InterviewRepository
	Journal     mongorepo.RunJournalRepository
	Leases      lease.Manager

	Fetch      Fetcher
	Transcribe Transcriber
	Score      Scorer
	Render     Renderer
	Publish    Publisher
	Accountant Settler

	WorkspaceRoot string
	RunBudget     time.Duration
	SettleDelay   time.Duration

	Logger *logrus.Logger
}

func (o *Orchestrator) Execute(ctx context.Context, req RunRequest) error {
	const op = "Orchestrator.Execute"

	if req.OrganizationID == 0 || req.InterviewID == 0 || req.RespondentHash == "" {
		return utils.E(utils.CodeInvalidArgument, op, "organization, interview, and respondent are required", nil)
	}

	runID := uuid.NewString()
	if o.RunBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.RunBudget)
		defer cancel()
	}

	resp, err := o.Respondents.GetByHash(ctx, req.OrganizationID, req.InterviewID, req.RespondentHash)
	if err != nil {
		return utils.E(utils.CodeNotFound, op, "respondent not found", err)
	}

	// Lease first: the holder is the only goroutine allowed to interpret a
	// leftover `process` status as stale.
	leaseKey := lease.RespondentKey(resp.ID)
	ok, err := o.Leases.Acquire(ctx, leaseKey, runID, o.RunBudget)
	if err != nil {
		return utils.E(utils.CodeUnavailable, op, "lease acquisition failed", err)
	}
	if !ok {
		return utils.E(utils.CodeConflict, op, "another run is active for this respondent", nil)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := o.Leases.Release(releaseCtx, leaseKey, runID); err != nil {
			o.Logger.WithError(err).Warn("lease release failed")
		}
	}()

	claimed, err := o.Respondents.ClaimForProcessing(ctx, req.OrganizationID, req.InterviewID, req.RespondentHash)
	if err != nil {
		// Not eligible is a no-op by contract, not a failure.
		if utils.IsCode(err, utils.CodeNotEligible) {
			o.Logger.WithFields(logrus.Fields{
				"respondent": req.RespondentHash,
				"status":     resp.Status,
			}).Info("respondent not eligible for processing, skipping")
		}
		return err
	}

	run, closeLog, err := o.buildRun(runID, req, claimed)
	if err != nil {
		o.markError(ctx, claimed.ID, nil)
		return utils.E(utils.CodeInternal, op, "failed to prepare run workspace", err)
	}
	defer closeLog()
	defer func() {
		if err := run.Workspace.Remove(); err != nil {
			o.Logger.WithError(err).Warn("workspace cleanup failed")
		}
	}()

	o.journalStart(ctx, run)
	run.Log.Infof("respondent %s status was set to process", run.RespondentHash)

	if err := o.run(ctx, run); err != nil {
		o.journalFinish(ctx, run.RunID, string(StageFailed))
		return err
	}
	o.journalFinish(ctx, run.RunID, string(StageDone))
	return nil
}

// run executes the stage sequence for a claimed respondent. Any error
// returned here has already transitioned the respondent to `error` and
// uploaded the process log.
func (o *Orchestrator) run(ctx context.Context, run *Run) error {
	// validating
	stageStart := o.journalStage(ctx, run, StageValidating, time.Now())
	itv, err := o.Interviews.GetByID(ctx, run.OrganizationID, run.InterviewID)
	if err != nil {
		return o.fail(ctx, run, StageValidating, err)
	}
	lang, ok := ResolveLanguage(itv.Language)
	if !ok {
		return o.fail(ctx, run, StageValidating,
			utils.E(utils.CodeInvalidArgument, "Orchestrator.run", itv.Language+" is not supported", nil))
	}
	run.LanguageCode = lang.Code
	run.LanguageName = lang.Name
	run.STTLocale = lang.Locale
	run.VoiceOnly = itv.VoiceOnly

	questions, err := o.Interviews.QuestionsExpected(ctx, run.InterviewID)
	if err != nil || len(questions) == 0 {
		return o.fail(ctx, run, StageValidating,
			utils.E(utils.CodeNotFound, "Orchestrator.run", "interview has no questions", err))
	}
	run.QuestionCount = len(questions)
	run.Log.Info("run validation success")

	// Late uploads settle before listing the attempt's objects.
	if o.SettleDelay > 0 {
		select {
		case <-time.After(o.SettleDelay):
		case <-ctx.Done():
			return o.fail(ctx, run, StageValidating, ctx.Err())
		}
	}

	// fetching
	stageStart = o.journalStage(ctx, run, StageFetching, stageStart)
	if _, err := o.Fetch.Fetch(ctx, run); err != nil {
		return o.fail(ctx, run, StageFetching, err)
	}
	run.Log.Info("files downloading complete")

	// transcribing
	stageStart = o.journalStage(ctx, run, StageTranscribing, stageStart)
	items, err := o.Transcribe.Transcribe(ctx, run, questions)
	if err != nil {
		return o.fail(ctx, run, StageTranscribing, err)
	}

	// scoring
	stageStart = o.journalStage(ctx, run, StageScoring, stageStart)
	rated, summary, err := o.Score.Score(ctx, run, items)
	if err != nil {
		return o.fail(ctx, run, StageScoring, err)
	}

	// rendering
	stageStart = o.journalStage(ctx, run, StageRendering, stageStart)
	_, timecodes, err := o.Render.Render(ctx, run)
	if err != nil {
		return o.fail(ctx, run, StageRendering, err)
	}

	// publishing
	o.journalStage(ctx, run, StagePublishing, stageStart)
	run.Costs.Summarize(time.Since(run.StartedAt).Seconds())
	payload := &ReviewPayload{Interview: rated, Summary: summary, Timecodes: timecodes}

	costCreated, err := o.Publish.Publish(ctx, run, payload)
	if err != nil {
		// Publisher has already set `error` and uploaded the log.
		return err
	}

	if costCreated {
		if amount, err := o.Accountant.Settle(ctx, run); err != nil {
			run.Log.WithError(err).Error("billing deduction failed")
		} else {
			run.Log.Infof("deducted $%.6f", amount)
		}
	}

	run.Log.Infof("rate: %d, review: %s", summary.Rate, summary.Review)
	return nil
}

func (o *Orchestrator) buildRun(runID string, req RunRequest, claimed *models.Respondent) (*Run, func(), error) {
	ws, err := NewWorkspace(o.WorkspaceRoot, claimed.RespondentHash)
	if err != nil {
		return nil, nil, err
	}

	runLog, closer, err := logger.NewRunLogger(ws.LogPath())
	if err != nil {
		_ = ws.Remove()
		return nil, nil, err
	}

	return &Run{
			RunID:          runID,
			OrganizationID: req.OrganizationID,
			InterviewID:    req.InterviewID,
			RespondentID:   claimed.ID,
			RespondentHash: claimed.RespondentHash,
			Attempt:        req.Attempt,
			Workspace:      ws,
			Log:            runLog,
			Costs:          NewCostLog(),
			StartedAt:      time.Now().UTC(),
		}, func() {
			_ = closer.Close()
		}, nil
}

// fail is the single abort path: mark the respondent `error`, upload
// whatever process log exists, and surface the cause.
func (o *Orchestrator) fail(ctx context.Context, run *Run, stage Stage, cause error) error {
	run.Log.WithError(cause).Errorf("%s step failed - stopping", stage)
	o.markError(ctx, run.RespondentID, run)
	return cause
}

func (o *Orchestrator) markError(ctx context.Context, respondentID uint, run *Run) {
	if run != nil {
		o.Publish.UploadLog(ctx, run)
	}
	if err := o.Respondents.SetStatus(ctx, respondentID, models.StatusError); err != nil {
		o.Logger.WithError(err).Error("failed to set respondent status to error")
	}
}

func (o *Orchestrator) journalStart(ctx context.Context, run *Run) {
	if o.Journal == nil {
		return
	}
	err := o.Journal.Insert(ctx, &models.RunJournal{
		RunID:          run.RunID,
		RespondentID:   run.RespondentID,
		InterviewID:    run.InterviewID,
		OrganizationID: run.OrganizationID,
		Attempt:        run.Attempt,
		Stage:          string(StageValidating),
		StartedAt:      run.StartedAt,
	})
	if err != nil {
		o.Logger.WithError(err).Warn("run journal insert failed")
	}
}

// journalStage records entry into a stage and returns the new stage start
// time for elapsed bookkeeping.
func (o *Orchestrator) journalStage(ctx context.Context, run *Run, stage Stage, prevStart time.Time) time.Time {
	now := time.Now().UTC()
	if o.Journal != nil {
		err := o.Journal.AppendEvent(ctx, run.RunID, models.StageEvent{
			Stage:     string(stage),
			At:        now,
			ElapsedMS: now.Sub(prevStart).Milliseconds(),
		})
		if err != nil {
			o.Logger.WithError(err).Warn("run journal append failed")
		}
	}
	return now
}

func (o *Orchestrator) journalFinish(ctx context.Context, runID, outcome string) {
	if o.Journal == nil {
		return
	}
	if err := o.Journal.Finish(ctx, runID, outcome); err != nil {
		o.Logger.WithError(err).Warn("run journal finish failed")
	}
}
