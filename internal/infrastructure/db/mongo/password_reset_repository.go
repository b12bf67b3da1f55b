package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/auth-service/internal/core/domain"
)

const collectionPasswordResetTokens = "password_reset_tokens"

type PasswordResetRepository struct {
	col *mongo.Collection
	now func() time.Time
}

func NewPasswordResetRepository(db *mongo.Database) *PasswordResetRepository {
	return &PasswordResetRepository{col: db.Collection(collectionPasswordResetTokens), now: time.Now}
}

type mongoResetToken struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Token     string             `bson:"token"`
	UserID    string             `bson:"user_id"`
	ExpiresAt time.Time          `bson:"expires_at"`
	Claimed   bool               `bson:"claimed"`
	Active    bool               `bson:"active"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

func (m *mongoResetToken) toDomain() *domain.PasswordResetToken {
	return &domain.PasswordResetToken{
		ID:        m.ID.Hex(),
		Token:     m.Token,
		UserID:    m.UserID,
		ExpiresAt: m.ExpiresAt.UTC(),
		Claimed:   m.Claimed,
		Active:    m.Active,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

func (r *PasswordResetRepository) Create(ctx context.Context, token *domain.PasswordResetToken) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.InsertOne(ctx, mongoResetToken{
		Token:     token.Token,
		UserID:    token.UserID,
		ExpiresAt: token.ExpiresAt,
		Claimed:   token.Claimed,
		Active:    token.Active,
		CreatedAt: token.CreatedAt,
		UpdatedAt: token.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("insert password reset token: %w", err)
	}
	token.ID = hexID(res.InsertedID)
	return nil
}

func (r *PasswordResetRepository) FindByToken(ctx context.Context, value string) (*domain.PasswordResetToken, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var m mongoResetToken
	if err := r.col.FindOne(ctx, bson.M{"token": value}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find password reset token: %w", err)
	}
	return m.toDomain(), nil
}

// Claim runs the conditional claim and the sibling invalidation in one
// transaction. A token deactivated by a concurrent claim of a sibling no
// longer matches, and a claim that does not match rolls nothing forward.
// Transactions require a replica set or sharded cluster.
func (r *PasswordResetRepository) Claim(ctx context.Context, id string, now time.Time) (*domain.PasswordResetToken, int64, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, 0, domain.ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	sess, err := r.col.Database().Client().StartSession()
	if err != nil {
		return nil, 0, fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	var (
		claimed     *domain.PasswordResetToken
		invalidated int64
	)
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var m mongoResetToken
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		if err := r.col.FindOneAndUpdate(sc, claimFilter(oid, now), claimUpdate(now), opts).Decode(&m); err != nil {
			return nil, err
		}
		res, err := r.col.UpdateMany(sc, siblingsFilter(m.UserID, oid), deactivateUpdate(now))
		if err != nil {
			return nil, err
		}
		claimed, invalidated = m.toDomain(), res.ModifiedCount
		return nil, nil
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, 0, domain.ErrNotFound
		}
		return nil, 0, fmt.Errorf("claim password reset token: %w", err)
	}
	return claimed, invalidated, nil
}

// claimFilter matches a token that is active, unclaimed and unexpired at now.
func claimFilter(id primitive.ObjectID, now time.Time) bson.M {
	return bson.M{
		"_id":        id,
		"active":     true,
		"claimed":    false,
		"expires_at": bson.M{"$gte": now},
	}
}

func claimUpdate(now time.Time) bson.M {
	return bson.M{"$set": bson.M{"claimed": true, "updated_at": now}}
}

// siblingsFilter matches the owner's other outstanding tokens.
func siblingsFilter(userID string, except primitive.ObjectID) bson.M {
	return bson.M{
		"user_id": userID,
		"_id":     bson.M{"$ne": except},
		"active":  true,
		"claimed": false,
	}
}

func deactivateUpdate(now time.Time) bson.M {
	return bson.M{"$set": bson.M{"active": false, "updated_at": now}}
}

func (r *PasswordResetRepository) Invalidate(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, deactivateUpdate(r.now().UTC())); err != nil {
		return fmt.Errorf("invalidate password reset token: %w", err)
	}
	return nil
}

func (r *PasswordResetRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "active", Value: 1}}},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
