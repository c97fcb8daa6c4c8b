package mongo

import (
	"context"
	"time"

	"github.com/echolabs/echocore/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type RunJournalRepository interface {
	Insert(ctx context.Context, j *models.RunJournal) error
	AppendEvent(ctx context.Context, runID string, ev models.StageEvent) error
	Finish(ctx context.Context, runID, outcome string) error
	ListByRespondent(ctx context.Context, respondentID uint, limit int64) ([]models.RunJournal, error)
}

type runJournalRepo struct {
	col *mongo.Collection
}

func NewRunJournalRepo(db *mongo.Database) RunJournalRepository {
	return &runJournalRepo{col: db.Collection("run_journal")}
}

func (r *runJournalRepo) Insert(ctx context.Context, j *models.RunJournal) error {
	if j.StartedAt.IsZero() {
		j.StartedAt = time.Now().UTC()
	}
	if j.Outcome == "" {
		j.Outcome = "running"
	}
	_, err := r.col.InsertOne(ctx, j)
	return err
}

func (r *runJournalRepo) AppendEvent(ctx context.Context, runID string, ev models.StageEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	_, err := r.col.UpdateOne(ctx,
		bson.M{"run_id": runID},
		bson.M{
			"$set":  bson.M{"stage": ev.Stage},
			"$push": bson.M{"events": ev},
		},
	)
	return err
}

func (r *runJournalRepo) Finish(ctx context.Context, runID, outcome string) error {
	now := time.Now().UTC()
	_, err := r.col.UpdateOne(ctx,
		bson.M{"run_id": runID},
		bson.M{"$set": bson.M{
			"outcome":     outcome,
			"finished_at": now,
		}},
	)
	return err
}

func (r *runJournalRepo) ListByRespondent(ctx context.Context, respondentID uint, limit int64) ([]models.RunJournal, error) {
	if limit <= 0 {
		limit = 20
	}

	cur, err := r.col.Find(ctx,
		bson.M{"respondent_id": respondentID},
		options.Find().
			SetSort(bson.D{{Key: "started_at", Value: -1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.RunJournal
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
