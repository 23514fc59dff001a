// Package mongo provides the MongoDB implementation of the reconciliation
// run archive. Run documents are append-only operator-review material; they
// are written best-effort after a payout settles.
package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/churchpay-reconciliation/internal/domain/reconrun"
)

const (
	// RunCollectionName is the name of the reconciliation run collection
	RunCollectionName = "reconciliation_runs"
)

// RunArchiveRepository implements the reconrun.Repository interface for MongoDB
type RunArchiveRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewRunArchiveRepository creates a new MongoDB run archive repository
func NewRunArchiveRepository(logger *slog.Logger, db *mongo.Database) reconrun.Repository {
	return &RunArchiveRepository{
		db:     db,
		logger: logger,
	}
}

// Record stores one reconciliation run document
func (r *RunArchiveRepository) Record(ctx context.Context, run *reconrun.Run) error {
	collection := r.db.Collection(RunCollectionName)

	if _, err := collection.InsertOne(ctx, run); err != nil {
		r.logger.Error("Failed to record reconciliation run",
			"payout_id", run.PayoutID.String(),
			"error", err)
		return fmt.Errorf("failed to record reconciliation run: %w", err)
	}

	return nil
}

// GetByPayoutID retrieves the most recent runs for a payout, newest first
func (r *RunArchiveRepository) GetByPayoutID(ctx context.Context, payoutID uuid.UUID, limit int) ([]*reconrun.Run, error) {
	collection := r.db.Collection(RunCollectionName)

	filter := bson.M{"payout_id": payoutID}
	opts := options.Find().
		SetSort(bson.M{"completed_at": -1}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get reconciliation runs",
			"payout_id", payoutID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get reconciliation runs: %w", err)
	}
	defer cursor.Close(ctx)

	var runs []*reconrun.Run
	if err := cursor.All(ctx, &runs); err != nil {
		r.logger.Error("Failed to decode reconciliation runs",
			"payout_id", payoutID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode reconciliation runs: %w", err)
	}

	return runs, nil
}
