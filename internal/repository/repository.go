package repository

import (
	"context"

	"polysynergy/file-manager/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrInvalidInput = RepositoryError("invalid input")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// ChatMessageRepository stores chat history per tenant, project and session.
type ChatMessageRepository interface {
	Create(ctx context.Context, msg *domain.ChatMessage) (primitive.ObjectID, error)
	// ListBySession returns messages oldest first; limit <= 0 means no limit.
	ListBySession(ctx context.Context, scope domain.TenantScope, sessionID string, limit int64) ([]domain.ChatMessage, error)
}
