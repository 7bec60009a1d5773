package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"polysynergy/file-manager/internal/domain"
	"polysynergy/file-manager/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const chatCollectionName = "chat_messages"

// mongoChatRepository implements repository.ChatMessageRepository
type mongoChatRepository struct {
	collection *mongo.Collection
}

// NewMongoChatRepository creates a chat history repository backed by MongoDB.
func NewMongoChatRepository(db *mongo.Database) repository.ChatMessageRepository {
	return &mongoChatRepository{
		collection: db.Collection(chatCollectionName),
	}
}

// Create inserts a message, stamping its id and creation time.
func (r *mongoChatRepository) Create(ctx context.Context, msg *domain.ChatMessage) (primitive.ObjectID, error) {
	if msg.TenantID == "" || msg.ProjectID == "" || msg.SessionID == "" {
		return primitive.NilObjectID, fmt.Errorf("%w: tenant, project and session are required", repository.ErrInvalidInput)
	}

	msg.ID = primitive.NewObjectID()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	result, err := r.collection.InsertOne(ctx, msg)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// ListBySession returns a session's messages, oldest first.
func (r *mongoChatRepository) ListBySession(ctx context.Context, scope domain.TenantScope, sessionID string, limit int64) ([]domain.ChatMessage, error) {
	filter := bson.M{
		"tenantId":  scope.TenantID,
		"projectId": scope.ProjectID,
		"sessionId": sessionID,
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		findOptions.SetLimit(limit)
	}

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	messages := []domain.ChatMessage{}
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// EnsureChatIndexes creates the session lookup index.
func EnsureChatIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(chatCollectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "tenantId", Value: 1},
			{Key: "projectId", Value: 1},
			{Key: "sessionId", Value: 1},
			{Key: "createdAt", Value: 1},
		},
		Options: options.Index().SetName("chat_session_lookup"),
	})
	return err
}
