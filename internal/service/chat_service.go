package service

import (
	"context"
	"errors"
	"strings"

	"polysynergy/file-manager/internal/domain"
	"polysynergy/file-manager/internal/repository"
	"polysynergy/file-manager/internal/storage"

	"github.com/rs/zerolog"
)

// Chat history limits.
const (
	DefaultHistoryLimit = 200
	MaxHistoryLimit     = 1000
)

// ChatService reads and appends chat history. Messages are returned with
// the object URLs of the session's own buckets re-signed; stored text is
// never rewritten.
type ChatService struct {
	repo      repository.ChatMessageRepository
	refresher *URLRefresher
	namer     storage.BucketNamer
	log       zerolog.Logger
}

// NewChatService creates a ChatService.
func NewChatService(repo repository.ChatMessageRepository, refresher *URLRefresher, namer storage.BucketNamer, log zerolog.Logger) *ChatService {
	return &ChatService{
		repo:      repo,
		refresher: refresher,
		namer:     namer,
		log:       log.With().Str("component", "chat").Logger(),
	}
}

// History returns up to limit messages of a session, oldest first.
func (s *ChatService) History(ctx context.Context, scope domain.TenantScope, sessionID string, limit int64) ([]domain.ChatMessage, error) {
	if err := authorizeScope(ctx, scope); err != nil {
		return nil, err
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, domain.InvalidPathf("session id is required")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)

	buckets, err := s.namer.Buckets(scope)
	if err != nil {
		return nil, err
	}
	messages, err := s.repo.ListBySession(ctx, scope, sessionID, limit)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeInternalError, "failed to load chat history", err)
	}

	refreshed := 0
	for i := range messages {
		text, report := s.refresher.RefreshTextIn(ctx, messages[i].Text, buckets)
		messages[i].Text = text
		refreshed += report.Count(StateRefreshed)
	}
	if refreshed > 0 {
		s.log.Debug().Str("session_id", sessionID).Int("urls", refreshed).Msg("refreshed urls in chat history")
	}
	return messages, nil
}

// Append stores a new message in a session.
func (s *ChatService) Append(ctx context.Context, scope domain.TenantScope, sessionID string, role domain.ChatRole, text string) (*domain.ChatMessage, error) {
	if err := authorizeScope(ctx, scope); err != nil {
		return nil, err
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, domain.InvalidPathf("session id is required")
	}
	if !role.Valid() {
		return nil, domain.InvalidPathf("unknown chat role %q", role)
	}

	msg := &domain.ChatMessage{
		TenantID:  scope.TenantID,
		ProjectID: scope.ProjectID,
		SessionID: sessionID,
		Role:      role,
		Text:      text,
	}
	if _, err := s.repo.Create(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrInvalidInput) {
			return nil, domain.InvalidPathf("%v", err)
		}
		return nil, domain.NewDomainError(domain.ErrCodeInternalError, "failed to store chat message", err)
	}
	return msg, nil
}

// authorizeScope requires the caller on ctx to be exactly scope.
func authorizeScope(ctx context.Context, scope domain.TenantScope) error {
	caller, ok := domain.TenantFromContext(ctx)
	if !ok || caller != scope {
		return domain.ErrPermissionDenied
	}
	return nil
}
