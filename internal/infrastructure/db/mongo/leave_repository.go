package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

const collectionLeaveAllocations = "leave_allocations"

// LeaveAllocationRepository seeds a leave allocation record for every user
// whose email gets verified.
type LeaveAllocationRepository struct {
	col *mongo.Collection
	now func() time.Time
}

var _ ports.VerificationListener = (*LeaveAllocationRepository)(nil)

func NewLeaveAllocationRepository(db *mongo.Database) *LeaveAllocationRepository {
	return &LeaveAllocationRepository{col: db.Collection(collectionLeaveAllocations), now: time.Now}
}

// OnEmailVerified inserts the allocation keyed on emp_id. Calling it twice
// for the same user leaves a single record.
func (r *LeaveAllocationRepository) OnEmailVerified(ctx context.Context, user *domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"emp_id": user.ID}
	update := bson.M{"$setOnInsert": bson.M{
		"emp_id":     user.ID,
		"created_at": r.now().UTC(),
	}}
	if _, err := r.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("insert leave allocation: %w", err)
	}
	return nil
}

func (r *LeaveAllocationRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "emp_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
