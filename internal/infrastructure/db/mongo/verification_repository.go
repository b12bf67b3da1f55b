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

const collectionEmailVerificationTokens = "email_verification_tokens"

// EmailVerificationRepository holds at most one token per user_id.
type EmailVerificationRepository struct {
	col *mongo.Collection
	now func() time.Time
}

func NewEmailVerificationRepository(db *mongo.Database) *EmailVerificationRepository {
	return &EmailVerificationRepository{col: db.Collection(collectionEmailVerificationTokens), now: time.Now}
}

type mongoEmailToken struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Token     string             `bson:"token"`
	UserID    string             `bson:"user_id"`
	ExpiresAt time.Time          `bson:"expires_at"`
	Status    string             `bson:"status"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

func (m *mongoEmailToken) toDomain() *domain.EmailVerificationToken {
	return &domain.EmailVerificationToken{
		ID:        m.ID.Hex(),
		Token:     m.Token,
		UserID:    m.UserID,
		ExpiresAt: m.ExpiresAt.UTC(),
		Status:    domain.TokenStatus(m.Status),
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

// Save upserts the user's token and sets token.ID.
func (r *EmailVerificationRepository) Save(ctx context.Context, token *domain.EmailVerificationToken) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"token":      token.Token,
			"expires_at": token.ExpiresAt,
			"status":     string(token.Status),
			"updated_at": token.UpdatedAt,
		},
		"$setOnInsert": bson.M{"created_at": token.CreatedAt},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var m mongoEmailToken
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"user_id": token.UserID}, update, opts).Decode(&m); err != nil {
		return fmt.Errorf("save email verification token: %w", err)
	}
	token.ID = m.ID.Hex()
	return nil
}

func (r *EmailVerificationRepository) FindByToken(ctx context.Context, value string) (*domain.EmailVerificationToken, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var m mongoEmailToken
	if err := r.col.FindOne(ctx, bson.M{"token": value}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find email verification token: %w", err)
	}
	return m.toDomain(), nil
}

// Regenerate only matches PENDING tokens, so a token confirmed concurrently
// is left untouched.
func (r *EmailVerificationRepository) Regenerate(ctx context.Context, id, value string, expiresAt time.Time) (*domain.EmailVerificationToken, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, domain.ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"_id": oid, "status": string(domain.TokenStatusPending)}
	update := bson.M{"$set": bson.M{
		"token":      value,
		"expires_at": expiresAt,
		"updated_at": r.now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var m mongoEmailToken
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("regenerate email verification token: %w", err)
	}
	return m.toDomain(), nil
}

func (r *EmailVerificationRepository) Confirm(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return domain.ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"status":     string(domain.TokenStatusConfirmed),
		"updated_at": r.now().UTC(),
	}}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("confirm email verification token: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *EmailVerificationRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
