package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/vedran77/relay/internal/repository"
	"github.com/vedran77/relay/internal/storage"
)

const (
	avatarPrefix = "avatars/"
	chatPrefix   = "chat_"
)

// UploadService stores attachments and avatars. Paths follow two layouts:
// "avatars/<user id>" and "chat_<conversation id>/<name>".
type UploadService struct {
	store    storage.BlobStore
	convRepo repository.ConversationRepository
	maxBytes int64
}

func NewUploadService(store storage.BlobStore, convRepo repository.ConversationRepository, maxBytes int64) *UploadService {
	return &UploadService{store: store, convRepo: convRepo, maxBytes: maxBytes}
}

func (s *UploadService) MaxBytes() int64 {
	return s.maxBytes
}

func (s *UploadService) Upload(ctx context.Context, userID uuid.UUID, name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrUploadEmpty
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrUploadTooLarge
	}

	clean, err := storage.CleanPath(name)
	if err != nil {
		return "", ErrUploadForbidden
	}
	if err := s.authorize(ctx, userID, clean); err != nil {
		return "", err
	}

	url, err := s.store.Put(ctx, clean, data)
	if err != nil {
		return "", fmt.Errorf("storing upload: %w", err)
	}
	return url, nil
}

func (s *UploadService) authorize(ctx context.Context, userID uuid.UUID, name string) error {
	if owner, ok := strings.CutPrefix(name, avatarPrefix); ok {
		if owner != userID.String() {
			return ErrUploadForbidden
		}
		return nil
	}

	dir, file, ok := strings.Cut(name, "/")
	if !ok || file == "" || strings.Contains(file, "/") || !strings.HasPrefix(dir, chatPrefix) {
		return ErrUploadForbidden
	}
	convID, err := uuid.Parse(strings.TrimPrefix(dir, chatPrefix))
	if err != nil {
		return ErrUploadForbidden
	}

	conv, err := s.convRepo.GetByID(ctx, convID)
	if err != nil {
		return err
	}
	if conv == nil || !conv.HasParticipant(userID) {
		return ErrUploadForbidden
	}
	return nil
}
