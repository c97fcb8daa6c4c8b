package services

import (
	"context"
	"errors"
	"strconv"

	"github.com/echolabs/echocore/internal/lease"
	"github.com/echolabs/echocore/internal/models"
	mongorepo "github.com/echolabs/echocore/internal/repositories/mongo"
	pgrepo "github.com/echolabs/echocore/internal/repositories/postgres"
	"github.com/echolabs/echocore/internal/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ProcessService accepts processing requests and queues them for the worker
// pool. Enqueue is fire-and-forget: eligibility is re-checked under lock by
// the orchestrator, the service only rejects requests that can never run.
type ProcessService interface {
	Enqueue(ctx context.Context, orgID, interviewID uint, respondentHash string, attempt int) error
	Reset(ctx context.Context, respondentID uint) error
	Runs(ctx context.Context, respondentID uint, limit int) ([]models.RunJournal, error)
}

type processService struct {
	rdb         *redis.Client
	respondents pgrepo.RespondentRepository
	journal     mongorepo.RunJournalRepository
	leases      lease.Manager
	stream      string
}

func NewProcessService(
	rdb *redis.Client,
	respondents pgrepo.RespondentRepository,
	journal mongorepo.RunJournalRepository,
	leases lease.Manager,
	stream string,
) ProcessService {
	return &processService{
		rdb:         rdb,
		respondents: respondents,
		journal:     journal,
		leases:      leases,
		stream:      stream,
	}
}

func (s *processService) Enqueue(ctx context.Context, orgID, interviewID uint, respondentHash string, attempt int) error {
	const op = "ProcessService.Enqueue"

	if orgID == 0 || interviewID == 0 {
		return utils.E(utils.CodeInvalidArgument, op, "organization and interview are required", nil)
	}
	if _, err := uuid.Parse(respondentHash); err != nil {
		return utils.E(utils.CodeInvalidArgument, op, "respondent hash must be a UUID", err)
	}
	if attempt < 0 {
		return utils.E(utils.CodeInvalidArgument, op, "attempt must be positive", nil)
	}

	if _, err := s.respondents.GetByHash(ctx, orgID, interviewID, respondentHash); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "respondent not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to look up respondent", err)
	}

	err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"organization_id": strconv.FormatUint(uint64(orgID), 10),
			"interview_id":    strconv.FormatUint(uint64(interviewID), 10),
			"respondent_hash": respondentHash,
			"attempt":         strconv.Itoa(attempt),
		},
	}).Err()
	if err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to enqueue processing request", err)
	}
	return nil
}

// Reset moves a respondent out of a terminal failure back to `closed` so it
// can be reprocessed. A respondent whose lease is live is still running and
// cannot be reset.
func (s *processService) Reset(ctx context.Context, respondentID uint) error {
	const op = "ProcessService.Reset"

	r, err := s.respondents.GetByID(ctx, respondentID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "respondent not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to look up respondent", err)
	}

	switch r.Status {
	case models.StatusError, models.StatusProcess, models.StatusProcessed:
	default:
		return utils.E(utils.CodeNotEligible, op, "respondent has no finished or failed run to reset", nil)
	}

	held, err := s.leases.Held(ctx, lease.RespondentKey(r.ID))
	if err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to check run lease", err)
	}
	if held {
		return utils.E(utils.CodeConflict, op, "a run is still active for this respondent", nil)
	}

	if err := s.respondents.SetStatus(ctx, r.ID, models.StatusClosed); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to reset respondent", err)
	}
	return nil
}

func (s *processService) Runs(ctx context.Context, respondentID uint, limit int) ([]models.RunJournal, error) {
	const op = "ProcessService.Runs"

	if respondentID == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "respondent id is required", nil)
	}
	runs, err := s.journal.ListByRespondent(ctx, respondentID, int64(limit))
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list runs", err)
	}
	return runs, nil
}
