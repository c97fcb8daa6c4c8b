package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/echolabs/echocore/internal/models"
	pgrepo "github.com/echolabs/echocore/internal/repositories/postgres"
	"github.com/echolabs/echocore/internal/storage"
	"github.com/echolabs/echocore/internal/utils"
	"gorm.io/datatypes"
)

// ResultPublisher persists the review payload, uploads the final artifacts,
// and moves the respondent to its terminal status. The cost row insert
// doubles as the billing idempotence guard: created == false means this
// (respondent, attempt) was already published and must not be billed again.
type ResultPublisher struct {
	Respondents pgrepo.RespondentRepository
	Reviews     pgrepo.ReviewRepository
	Costs       pgrepo.CostRepository
	Buckets     storage.Buckets
}

func (p *ResultPublisher) Publish(ctx context.Context, run *Run, payload *ReviewPayload) (bool, error) {
	const op = "ResultPublisher.Publish"

	raw, err := json.Marshal(payload)
	if err != nil {
		p.failRun(ctx, run)
		return false, utils.E(utils.CodeInternal, op, "review payload not serializable", err)
	}

	if err := p.Reviews.Insert(ctx, &models.Review{
		RespondentID: run.RespondentID,
		InterviewID:  run.InterviewID,
		ReviewData:   datatypes.JSON(raw),
	}); err != nil {
		// Persistence failure: no video upload, only the process log.
		p.failRun(ctx, run)
		return false, utils.E(utils.CodeInternal, op, "failed to persist review", err)
	}

	if err := p.Respondents.SetScore(ctx, run.RespondentID, payload.Summary.Rate); err != nil {
		run.Log.WithError(err).Warn("failed to persist respondent score")
	}

	store := p.Buckets.ForOrg(run.OrganizationID)
	base := fmt.Sprintf("%d/respondents/%s", run.InterviewID, run.RespondentHash)

	video, err := os.ReadFile(run.Workspace.VideoPath())
	if err != nil {
		p.failRun(ctx, run)
		return false, utils.E(utils.CodeInternal, op, "rendered video not readable", err)
	}
	if err := store.Put(ctx, base+"/interview.webm", video, "video/webm"); err != nil {
		p.failRun(ctx, run)
		return false, utils.E(utils.CodeUnavailable, op, "video upload failed", err)
	}

	p.UploadLog(ctx, run)

	created := p.persistCostLog(ctx, run)

	if err := p.Respondents.SetStatus(ctx, run.RespondentID, models.StatusProcessed); err != nil {
		return created, utils.E(utils.CodeInternal, op, "failed to mark respondent processed", err)
	}
	run.Log.Info("upload completed")
	return created, nil
}

// persistCostLog stores the immutable cost record; best-effort, a failure
// never unwinds the already-published results.
func (p *ResultPublisher) persistCostLog(ctx context.Context, run *Run) bool {
	raw, err := json.Marshal(run.Costs)
	if err != nil {
		run.Log.WithError(err).Warn("cost log not serializable, skipping persistence")
		return false
	}

	created, err := p.Costs.Insert(ctx, &models.InterviewCost{
		RespondentID:   run.RespondentID,
		InterviewID:    run.InterviewID,
		OrganizationID: run.OrganizationID,
		Attempt:        run.Attempt,
		CostData:       datatypes.JSON(raw),
		TotalCost:      run.Costs.TotalCost,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		run.Log.WithError(err).Warn("failed to persist cost log")
		return false
	}
	if !created {
		run.Log.Warnf("cost log for attempt %d already exists, billing will be skipped", run.Attempt)
	}
	return created
}

// UploadLog pushes the current process log next to the interview artifacts;
// best-effort on every terminal path.
func (p *ResultPublisher) UploadLog(ctx context.Context, run *Run) {
	data, err := os.ReadFile(run.Workspace.LogPath())
	if err != nil {
		run.Log.WithError(err).Warn("process log not readable, skipping upload")
		return
	}

	store := p.Buckets.ForOrg(run.OrganizationID)
	path := fmt.Sprintf("%d/respondents/%s/process.log", run.InterviewID, run.RespondentHash)
	if err := store.Put(ctx, path, data, "text/plain; charset=utf-8"); err != nil {
		run.Log.WithError(err).Warn("process log upload failed")
	}
}

func (p *ResultPublisher) failRun(ctx context.Context, run *Run) {
	p.UploadLog(ctx, run)
	if err := p.Respondents.SetStatus(ctx, run.RespondentID, models.StatusError); err != nil {
		run.Log.WithError(err).Error("failed to mark respondent error")
	}
}
