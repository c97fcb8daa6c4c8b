package workers

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/echolabs/echocore/internal/lease"
	"github.com/echolabs/echocore/internal/models"
	"github.com/echolabs/echocore/internal/utils"
	"github.com/sirupsen/logrus"
)

type fakeRespondents struct {
	stuck    []models.Respondent
	statuses map[uint]models.RespondentStatus
}

func (f *fakeRespondents) GetByHash(ctx context.Context, orgID, interviewID uint, hash string) (*models.Respondent, error) {
	return nil, utils.ErrNotFound
}

func (f *fakeRespondents) GetByID(ctx context.Context, id uint) (*models.Respondent, error) {
	return nil, utils.ErrNotFound
}

func (f *fakeRespondents) ClaimForProcessing(ctx context.Context, orgID, interviewID uint, hash string) (*models.Respondent, error) {
	return nil, utils.ErrNotFound
}

func (f *fakeRespondents) SetStatus(ctx context.Context, id uint, status models.RespondentStatus) error {
	if f.statuses == nil {
		f.statuses = map[uint]models.RespondentStatus{}
	}
	f.statuses[id] = status
	return nil
}

func (f *fakeRespondents) SetScore(ctx context.Context, id uint, score int) error { return nil }

func (f *fakeRespondents) ListStuckInProcess(ctx context.Context, olderThan time.Duration) ([]models.Respondent, error) {
	return f.stuck, nil
}

type fakeLeases struct {
	held map[string]bool
}

func (f *fakeLeases) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return true, nil
}

func (f *fakeLeases) Release(ctx context.Context, key, owner string) error { return nil }

func (f *fakeLeases) Held(ctx context.Context, key string) (bool, error) {
	return f.held[key], nil
}

func TestReapStuck_ResetsOnlyExpiredRuns(t *testing.T) {
	resps := &fakeRespondents{
		stuck: []models.Respondent{
			{ID: 1, RespondentHash: "aaaa", Status: models.StatusProcess},
			{ID: 2, RespondentHash: "bbbb", Status: models.StatusProcess},
		},
	}
	leases := &fakeLeases{held: map[string]bool{
		lease.RespondentKey(1): true, // still inside its budget
	}}

	lg := logrus.New()
	lg.SetOutput(io.Discard)

	p := &RunWorkerPool{
		Respondents: resps,
		Leases:      leases,
		Logger:      lg,
		RunBudget:   time.Minute,
	}
	p.reapStuck(context.Background())

	if _, ok := resps.statuses[1]; ok {
		t.Error("respondent with a live lease must not be touched")
	}
	if got := resps.statuses[2]; got != models.StatusError {
		t.Errorf("respondent 2 status = %s, want error", got)
	}
}
