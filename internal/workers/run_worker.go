package workers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/echolabs/echocore/internal/lease"
	"github.com/echolabs/echocore/internal/models"
	"github.com/echolabs/echocore/internal/pipeline"
	pgrepo "github.com/echolabs/echocore/internal/repositories/postgres"
	"github.com/echolabs/echocore/internal/utils"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RunWorkerPool consumes processing requests from a Redis stream and hands
// each one to the orchestrator. Messages are acked after handling even on
// failure: the respondent's `error` status is the retry signal, not the
// stream's pending list.
type RunWorkerPool struct {
	Redis        *redis.Client
	Orchestrator *pipeline.Orchestrator
	Respondents  pgrepo.RespondentRepository
	Leases       lease.Manager
	NumWorkers   int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string

	// RunBudget bounds how long a respondent may sit in `process` before
	// the reaper considers the run dead.
	RunBudget time.Duration
}

func (p *RunWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Orchestrator == nil {
		return errors.New("RunWorkerPool missing dependency: Redis/Orchestrator must be set")
	}
	if p.Stream == "" {
		p.Stream = "process:stream"
	}
	if p.Group == "" {
		p.Group = "process-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 3
	}
	if p.RunBudget <= 0 {
		p.RunBudget = 30 * time.Minute
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}

	if p.Respondents != nil && p.Leases != nil {
		go p.runReaper(ctx)
	}
	return nil
}

func (p *RunWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    1,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *RunWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	orgID, _ := strconv.ParseUint(getStr("organization_id"), 10, 64)
	interviewID, _ := strconv.ParseUint(getStr("interview_id"), 10, 64)
	respondentHash := getStr("respondent_hash")
	attempt, _ := strconv.Atoi(getStr("attempt"))

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":   msg.ID,
		"org":        orgID,
		"interview":  interviewID,
		"respondent": respondentHash,
		"attempt":    attempt,
	})

	if orgID == 0 || interviewID == 0 || respondentHash == "" {
		log.Warn("malformed processing request, dropping")
		return
	}

	err := p.Orchestrator.Execute(ctx, pipeline.RunRequest{
		OrganizationID: uint(orgID),
		InterviewID:    uint(interviewID),
		RespondentHash: respondentHash,
		Attempt:        attempt,
	})
	switch {
	case err == nil:
		log.Info("processing run finished")
	case utils.IsCode(err, utils.CodeNotEligible), utils.IsCode(err, utils.CodeConflict):
		log.WithError(err).Info("processing run skipped")
	default:
		log.WithError(err).Error("processing run failed")
	}
}

// runReaper periodically resets respondents stranded in `process` whose
// lease has expired. A live lease means the run is still inside its budget
// and must not be touched.
func (p *RunWorkerPool) runReaper(ctx context.Context) {
	ticker := time.NewTicker(p.RunBudget / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.reapStuck(ctx)
		}
	}
}

func (p *RunWorkerPool) reapStuck(ctx context.Context) {
	stuck, err := p.Respondents.ListStuckInProcess(ctx, p.RunBudget)
	if err != nil {
		p.Logger.WithError(err).Warn("stuck respondent scan failed")
		return
	}

	for _, r := range stuck {
		held, err := p.Leases.Held(ctx, lease.RespondentKey(r.ID))
		if err != nil || held {
			continue
		}
		if err := p.Respondents.SetStatus(ctx, r.ID, models.StatusError); err != nil {
			p.Logger.WithError(err).Warn("failed to reset stuck respondent")
			continue
		}
		p.Logger.WithFields(logrus.Fields{
			"respondent_id": r.ID,
			"hash":          r.RespondentHash,
		}).Warn("reset stranded respondent to error")
	}
}
