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

const collectionRefreshTokens = "refresh_tokens"

type RefreshTokenRepository struct {
	col *mongo.Collection
}

func NewRefreshTokenRepository(db *mongo.Database) *RefreshTokenRepository {
	return &RefreshTokenRepository{col: db.Collection(collectionRefreshTokens)}
}

type mongoRefreshToken struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Token        string             `bson:"token"`
	ExpiresAt    time.Time          `bson:"expires_at"`
	RefreshCount int64              `bson:"refresh_count"`
	DeviceID     string             `bson:"device_id,omitempty"`
	UserID       string             `bson:"user_id,omitempty"`
	CreatedAt    time.Time          `bson:"created_at"`
}

func (m *mongoRefreshToken) toDomain() *domain.RefreshToken {
	return &domain.RefreshToken{
		ID:           m.ID.Hex(),
		Token:        m.Token,
		ExpiresAt:    m.ExpiresAt.UTC(),
		RefreshCount: m.RefreshCount,
		DeviceID:     m.DeviceID,
		UserID:       m.UserID,
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

// Create inserts token and sets its ID.
func (r *RefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.InsertOne(ctx, mongoRefreshToken{
		Token:        token.Token,
		ExpiresAt:    token.ExpiresAt,
		RefreshCount: token.RefreshCount,
		DeviceID:     token.DeviceID,
		UserID:       token.UserID,
		CreatedAt:    token.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	token.ID = hexID(res.InsertedID)
	return nil
}

func (r *RefreshTokenRepository) FindByToken(ctx context.Context, value string) (*domain.RefreshToken, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var m mongoRefreshToken
	if err := r.col.FindOne(ctx, bson.M{"token": value}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return m.toDomain(), nil
}

// IncrementCount bumps refresh_count in a single conditional update, so
// concurrent refreshes can never push the counter past maxUses.
func (r *RefreshTokenRepository) IncrementCount(ctx context.Context, id string, maxUses int64) (*domain.RefreshToken, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, domain.ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var m mongoRefreshToken
	err := r.col.FindOneAndUpdate(ctx, incrementFilter(oid, maxUses), incrementUpdate(), opts).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("increment refresh count: %w", err)
	}
	return m.toDomain(), nil
}

// incrementFilter only matches while the counter is below maxUses; zero or
// less means unlimited.
func incrementFilter(id primitive.ObjectID, maxUses int64) bson.M {
	filter := bson.M{"_id": id}
	if maxUses > 0 {
		filter["refresh_count"] = bson.M{"$lt": maxUses}
	}
	return filter
}

func incrementUpdate() bson.M {
	return bson.M{"$inc": bson.M{"refresh_count": 1}}
}

func (r *RefreshTokenRepository) DeleteByID(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
