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

const collectionUserDevices = "user_devices"

// DeviceRepository keeps one row per (user_id, device_id), enforced by a
// unique index.
type DeviceRepository struct {
	col *mongo.Collection
	now func() time.Time
}

func NewDeviceRepository(db *mongo.Database) *DeviceRepository {
	return &DeviceRepository{col: db.Collection(collectionUserDevices), now: time.Now}
}

type mongoUserDevice struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	UserID            string             `bson:"user_id"`
	DeviceID          string             `bson:"device_id"`
	DeviceType        string             `bson:"device_type"`
	NotificationToken string             `bson:"notification_token,omitempty"`
	RefreshTokenID    string             `bson:"refresh_token_id"`
	RefreshActive     bool               `bson:"refresh_active"`
	CreatedAt         time.Time          `bson:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at"`
}

func (m *mongoUserDevice) toDomain() *domain.UserDevice {
	return &domain.UserDevice{
		ID:                m.ID.Hex(),
		UserID:            m.UserID,
		DeviceID:          m.DeviceID,
		DeviceType:        m.DeviceType,
		NotificationToken: m.NotificationToken,
		RefreshTokenID:    m.RefreshTokenID,
		RefreshActive:     m.RefreshActive,
		CreatedAt:         m.CreatedAt.UTC(),
		UpdatedAt:         m.UpdatedAt.UTC(),
	}
}

func (r *DeviceRepository) FindByUserAndDevice(ctx context.Context, userID, deviceID string) (*domain.UserDevice, error) {
	return r.findOne(ctx, bson.M{"user_id": userID, "device_id": deviceID})
}

func (r *DeviceRepository) FindByRefreshTokenID(ctx context.Context, tokenID string) (*domain.UserDevice, error) {
	if tokenID == "" {
		return nil, domain.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"refresh_token_id": tokenID})
}

// Bind upserts the device row and returns the refresh token id it pointed at
// before the write. The read and the write are one FindOneAndUpdate, so two
// concurrent binds each observe the other's token.
func (r *DeviceRepository) Bind(ctx context.Context, device *domain.UserDevice) (string, error) {
	prev, err := r.bind(ctx, device)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		// Two first-time upserts raced on the unique index; the loser retries
		// as a plain update.
		prev, err = r.bind(ctx, device)
	}
	if err != nil {
		return "", fmt.Errorf("bind device: %w", err)
	}
	return prev, nil
}

func (r *DeviceRepository) bind(ctx context.Context, device *domain.UserDevice) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bindFilter(device)

	var before mongoUserDevice
	err := r.col.FindOneAndUpdate(ctx, filter, bindUpdate(device, r.now().UTC()), bindOptions()).Decode(&before)
	switch {
	case err == nil:
		device.ID = before.ID.Hex()
		return before.RefreshTokenID, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		var inserted mongoUserDevice
		if err := r.col.FindOne(ctx, filter).Decode(&inserted); err == nil {
			device.ID = inserted.ID.Hex()
		}
		return "", nil
	default:
		return "", err
	}
}

func bindFilter(device *domain.UserDevice) bson.M {
	return bson.M{"user_id": device.UserID, "device_id": device.DeviceID}
}

func bindUpdate(device *domain.UserDevice, now time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"device_type":        device.DeviceType,
			"notification_token": device.NotificationToken,
			"refresh_token_id":   device.RefreshTokenID,
			"refresh_active":     true,
			"updated_at":         now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}
}

// bindOptions upserts and returns the document as it was before the write,
// so the caller learns which refresh token the device pointed at.
func bindOptions() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.Before)
}

func (r *DeviceRepository) Deactivate(ctx context.Context, userID, deviceID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"refresh_token_id": "",
		"refresh_active":   false,
		"updated_at":       r.now().UTC(),
	}}
	res, err := r.col.UpdateOne(ctx, bson.M{"user_id": userID, "device_id": deviceID}, update)
	if err != nil {
		return fmt.Errorf("deactivate device: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *DeviceRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "device_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "refresh_token_id", Value: 1}}},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *DeviceRepository) findOne(ctx context.Context, filter bson.M) (*domain.UserDevice, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var m mongoUserDevice
	if err := r.col.FindOne(ctx, filter).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find device: %w", err)
	}
	return m.toDomain(), nil
}
