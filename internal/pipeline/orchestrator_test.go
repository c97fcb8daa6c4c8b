package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/echolabs/echocore/internal/models"
	"github.com/echolabs/echocore/internal/utils"
)

const testHash = "11111111-2222-3333-4444-555555555555"

type fakeRespRepo struct {
	resp       *models.Respondent
	statusLog  []models.RespondentStatus
	scores     []int
	claimCalls int
}

func (f *fakeRespRepo) GetByHash(ctx context.Context, orgID, interviewID uint, hash string) (*models.Respondent, error) {
	if f.resp == nil || f.resp.RespondentHash != hash {
		return nil, utils.ErrNotFound
	}
	return f.resp, nil
}

func (f *fakeRespRepo) GetByID(ctx context.Context, id uint) (*models.Respondent, error) {
	if f.resp == nil || f.resp.ID != id {
		return nil, utils.ErrNotFound
	}
	return f.resp, nil
}

func (f *fakeRespRepo) ClaimForProcessing(ctx context.Context, orgID, interviewID uint, hash string) (*models.Respondent, error) {
	f.claimCalls++
	if f.resp == nil || f.resp.RespondentHash != hash {
		return nil, utils.E(utils.CodeNotFound, "fake", "respondent not found", nil)
	}
	if !f.resp.Eligible() {
		return nil, utils.E(utils.CodeNotEligible, "fake", "respondent not eligible", nil)
	}
	f.resp.Status = models.StatusProcess
	return f.resp, nil
}

func (f *fakeRespRepo) SetStatus(ctx context.Context, id uint, status models.RespondentStatus) error {
	f.statusLog = append(f.statusLog, status)
	f.resp.Status = status
	return nil
}

func (f *fakeRespRepo) SetScore(ctx context.Context, id uint, score int) error {
	f.scores = append(f.scores, score)
	return nil
}

func (f *fakeRespRepo) ListStuckInProcess(ctx context.Context, olderThan time.Duration) ([]models.Respondent, error) {
	return nil, nil
}

type fakeInterviewRepo struct {
	itv *models.Interview
	qs  []models.Question
}

func (f *fakeInterviewRepo) GetByID(ctx context.Context, orgID, interviewID uint) (*models.Interview, error) {
	if f.itv == nil {
		return nil, utils.ErrNotFound
	}
	return f.itv, nil
}

func (f *fakeInterviewRepo) QuestionsExpected(ctx context.Context, interviewID uint) ([]models.Question, error) {
	return f.qs, nil
}

type fakeJournal struct {
	inserted []models.RunJournal
	events   []models.StageEvent
	outcomes []string
}

func (f *fakeJournal) Insert(ctx context.Context, j *models.RunJournal) error {
	f.inserted = append(f.inserted, *j)
	return nil
}

func (f *fakeJournal) AppendEvent(ctx context.Context, runID string, ev models.StageEvent) error {
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeJournal) Finish(ctx context.Context, runID, outcome string) error {
	f.outcomes = append(f.outcomes, outcome)
	return nil
}

func (f *fakeJournal) ListByRespondent(ctx context.Context, respondentID uint, limit int64) ([]models.RunJournal, error) {
	return nil, nil
}

type fakeLease struct {
	denyAcquire bool
	acquires    int
	releases    int
}

func (f *fakeLease) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	f.acquires++
	return !f.denyAcquire, nil
}

func (f *fakeLease) Release(ctx context.Context, key, owner string) error {
	f.releases++
	return nil
}

func (f *fakeLease) Held(ctx context.Context, key string) (bool, error) {
	return false, nil
}

type stubFetcher struct {
	err   error
	calls int
}

func (s *stubFetcher) Fetch(ctx context.Context, run *Run) ([]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []string{"0_0.webm"}, nil
}

type stubTranscriber struct{ err error }

func (s *stubTranscriber) Transcribe(ctx context.Context, run *Run, questions []models.Question) ([]TranscriptItem, error) {
	if s.err != nil {
		return nil, s.err
	}
	items := make([]TranscriptItem, len(questions))
	for i, q := range questions {
		items[i] = TranscriptItem{Question: q.Question, Expected: q.Expected, Answer: "an answer"}
	}
	return items, nil
}

type stubScorer struct{ err error }

func (s *stubScorer) Score(ctx context.Context, run *Run, items []TranscriptItem) ([]RatedItem, Summary, error) {
	if s.err != nil {
		return nil, Summary{}, s.err
	}
	rated := make([]RatedItem, len(items))
	for i, item := range items {
		rated[i] = RatedItem{TranscriptItem: item, Rate: 4, Review: "fine"}
	}
	return rated, Summary{Rate: 4, Review: "overall fine"}, nil
}

type stubRenderer struct{ err error }

func (s *stubRenderer) Render(ctx context.Context, run *Run) (string, map[string]string, error) {
	if s.err != nil {
		return "", nil, s.err
	}
	return run.Workspace.VideoPath(), map[string]string{"q0": "0:00", "q1": "0:42"}, nil
}

type stubPublisher struct {
	created    bool
	err        error
	payload    *ReviewPayload
	logUploads int
}

func (s *stubPublisher) Publish(ctx context.Context, run *Run, payload *ReviewPayload) (bool, error) {
	s.payload = payload
	if s.err != nil {
		return false, s.err
	}
	return s.created, nil
}

func (s *stubPublisher) UploadLog(ctx context.Context, run *Run) { s.logUploads++ }

type stubSettler struct {
	amount float64
	err    error
	calls  int
}

func (s *stubSettler) Settle(ctx context.Context, run *Run) (float64, error) {
	s.calls++
	return s.amount, s.err
}

type orchFixture struct {
	o       *Orchestrator
	resps   *fakeRespRepo
	itvs    *fakeInterviewRepo
	journal *fakeJournal
	leases  *fakeLease
	fetch   *stubFetcher
	render  *stubRenderer
	publish *stubPublisher
	settle  *stubSettler
	root    string
}

func newOrchFixture(t *testing.T, status models.RespondentStatus) *orchFixture {
	t.Helper()

	f := &orchFixture{
		resps: &fakeRespRepo{resp: &models.Respondent{
			ID:             3,
			OrganizationID: 1,
			InterviewID:    2,
			RespondentHash: testHash,
			Status:         status,
		}},
		itvs: &fakeInterviewRepo{
			itv: &models.Interview{ID: 2, OrganizationID: 1, Language: "en"},
			qs: []models.Question{
				{Position: 0, Question: "Q1", Expected: "E1"},
				{Position: 1, Question: "Q2", Expected: "E2"},
			},
		},
		journal: &fakeJournal{},
		leases:  &fakeLease{},
		fetch:   &stubFetcher{},
		render:  &stubRenderer{},
		publish: &stubPublisher{created: true},
		settle:  &stubSettler{amount: 0.17},
		root:    t.TempDir(),
	}

	f.o = &Orchestrator{
		Respondents:   f.resps,
		Interviews:    f.itvs,
		Journal:       f.journal,
		Leases:        f.leases,
		Fetch:         f.fetch,
		Transcribe:    &stubTranscriber{},
		Score:         &stubScorer{},
		Render:        f.render,
		Publish:       f.publish,
		Accountant:    f.settle,
		WorkspaceRoot: f.root,
		RunBudget:     time.Minute,
		Logger:        discardLogger(),
	}
	return f
}

func request() RunRequest {
	return RunRequest{OrganizationID: 1, InterviewID: 2, RespondentHash: testHash, Attempt: 1}
}

func TestExecute_InvalidRequest(t *testing.T) {
	f := newOrchFixture(t, models.StatusClosed)
	err := f.o.Execute(context.Background(), RunRequest{})
	if !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Errorf("err = %v, want INVALID_ARGUMENT", err)
	}
	if f.leases.acquires != 0 {
		t.Error("lease must not be touched on invalid input")
	}
}

func TestExecute_RespondentMissing(t *testing.T) {
	f := newOrchFixture(t, models.StatusClosed)
	req := request()
	req.RespondentHash = "99999999-9999-9999-9999-999999999999"

	err := f.o.Execute(context.Background(), req)
	if !utils.IsCode(err, utils.CodeNotFound) {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
	if f.leases.acquires != 0 {
		t.Error("lease must not be acquired for a missing respondent")
	}
}

func TestExecute_LeaseConflict(t *testing.T) {
	f := newOrchFixture(t, models.StatusClosed)
	f.leases.denyAcquire = true

	err := f.o.Execute(context.Background(), request())
	if !utils.IsCode(err, utils.CodeConflict) {
		t.Errorf("err = %v, want CONFLICT", err)
	}
	if f.resps.claimCalls != 0 {
		t.Error("entry guard must not run without the lease")
	}
	if f.fetch.calls != 0 {
		t.Error("no stage may run without the lease")
	}
}

func TestExecute_NotEligibleIsNoOp(t *testing.T) {
	for _, status := range []models.RespondentStatus{models.StatusInit, models.StatusProgress, models.StatusProcessed} {
		f := newOrchFixture(t, status)

		err := f.o.Execute(context.Background(), request())
		if !utils.IsCode(err, utils.CodeNotEligible) {
			t.Errorf("status %s: err = %v, want NOT_ELIGIBLE", status, err)
		}
		if f.fetch.calls != 0 {
			t.Errorf("status %s: stages must not run", status)
		}
		if f.resps.resp.Status != status {
			t.Errorf("status %s changed to %s", status, f.resps.resp.Status)
		}
		if f.leases.releases != 1 {
			t.Errorf("status %s: lease must still be released", status)
		}
	}
}

func TestExecute_StaleStatusesAreReclaimed(t *testing.T) {
	for _, status := range []models.RespondentStatus{models.StatusError, models.StatusProcess} {
		f := newOrchFixture(t, status)

		if err := f.o.Execute(context.Background(), request()); err != nil {
			t.Errorf("status %s: err = %v, want success", status, err)
		}
		if f.settle.calls != 1 {
			t.Errorf("status %s: settle calls = %d, want 1", status, f.settle.calls)
		}
	}
}

func TestExecute_HappyPath(t *testing.T) {
	f := newOrchFixture(t, models.StatusClosed)

	if err := f.o.Execute(context.Background(), request()); err != nil {
		t.Fatal(err)
	}

	if f.publish.payload == nil {
		t.Fatal("publisher never received a payload")
	}
	if len(f.publish.payload.Interview) != 2 {
		t.Errorf("payload items = %d, want 2", len(f.publish.payload.Interview))
	}
	if f.publish.payload.Summary.Rate != 4 {
		t.Errorf("summary rate = %d, want 4", f.publish.payload.Summary.Rate)
	}
	if f.settle.calls != 1 {
		t.Errorf("settle calls = %d, want 1", f.settle.calls)
	}
	if len(f.journal.outcomes) != 1 || f.journal.outcomes[0] != "done" {
		t.Errorf("journal outcomes = %v, want [done]", f.journal.outcomes)
	}
	if f.leases.releases != 1 {
		t.Errorf("lease releases = %d, want 1", f.leases.releases)
	}
	if _, err := os.Stat(filepath.Join(f.root, testHash)); !os.IsNotExist(err) {
		t.Error("workspace must be removed after the run")
	}
}

func TestExecute_NoBillingWhenCostRowExists(t *testing.T) {
	f := newOrchFixture(t, models.StatusClosed)
	f.publish.created = false

	if err := f.o.Execute(context.Background(), request()); err != nil {
		t.Fatal(err)
	}
	if f.settle.calls != 0 {
		t.Errorf("settle calls = %d, want 0 for duplicate cost row", f.settle.calls)
	}
}

func TestExecute_BillingFailureDoesNotFailRun(t *testing.T) {
	f := newOrchFixture(t, models.StatusClosed)
	f.settle.err = errors.New("billing db down")

	if err := f.o.Execute(context.Background(), request()); err != nil {
		t.Errorf("err = %v, billing failure must not fail the run", err)
	}
	if len(f.journal.outcomes) != 1 || f.journal.outcomes[0] != "done" {
		t.Errorf("journal outcomes = %v, want [done]", f.journal.outcomes)
	}
}

func TestExecute_StageFailureMarksError(t *testing.T) {
	f := newOrchFixture(t, models.StatusClosed)
	f.render.err = ErrNoRenderableChunks

	err := f.o.Execute(context.Background(), request())
	if !errors.Is(err, ErrNoRenderableChunks) {
		t.Errorf("err = %v, want ErrNoRenderableChunks", err)
	}
	if f.resps.resp.Status != models.StatusError {
		t.Errorf("status = %s, want error", f.resps.resp.Status)
	}
	if f.publish.logUploads == 0 {
		t.Error("process log must be uploaded on failure")
	}
	if f.settle.calls != 0 {
		t.Error("no billing on failed run")
	}
	if len(f.journal.outcomes) != 1 || f.journal.outcomes[0] != "failed" {
		t.Errorf("journal outcomes = %v, want [failed]", f.journal.outcomes)
	}
	if _, statErr := os.Stat(filepath.Join(f.root, testHash)); !os.IsNotExist(statErr) {
		t.Error("workspace must be removed after a failed run")
	}
}

func TestExecute_FetchFailureMarksError(t *testing.T) {
	f := newOrchFixture(t, models.StatusClosed)
	f.fetch.err = utils.E(utils.CodeNotFound, "fake", "no records for attempt 1", nil)

	err := f.o.Execute(context.Background(), request())
	if !utils.IsCode(err, utils.CodeNotFound) {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
	if f.resps.resp.Status != models.StatusError {
		t.Errorf("status = %s, want error", f.resps.resp.Status)
	}
}

func TestExecute_UnsupportedLanguage(t *testing.T) {
	f := newOrchFixture(t, models.StatusClosed)
	f.itvs.itv.Language = "pt"

	err := f.o.Execute(context.Background(), request())
	if !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Errorf("err = %v, want INVALID_ARGUMENT", err)
	}
	if f.resps.resp.Status != models.StatusError {
		t.Errorf("status = %s, want error", f.resps.resp.Status)
	}
	if f.fetch.calls != 0 {
		t.Error("fetch must not run for an unsupported language")
	}
}

func TestExecute_PublishFailure(t *testing.T) {
	f := newOrchFixture(t, models.StatusClosed)
	f.publish.err = errors.New("review insert failed")

	if err := f.o.Execute(context.Background(), request()); err == nil {
		t.Fatal("expected error")
	}
	if f.settle.calls != 0 {
		t.Error("no billing when publish fails")
	}
	if len(f.journal.outcomes) != 1 || f.journal.outcomes[0] != "failed" {
		t.Errorf("journal outcomes = %v, want [failed]", f.journal.outcomes)
	}
}
