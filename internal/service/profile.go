package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/asset-tracker/internal/db"
	"github.com/septivank/asset-tracker/internal/repository"
	"github.com/septivank/asset-tracker/internal/scope"
	"github.com/septivank/asset-tracker/internal/store"
	"go.uber.org/zap"
)

// MaxAvatarBytes bounds avatar uploads
const MaxAvatarBytes = 2 << 20

// AvatarStorage stores avatar images
type AvatarStorage interface {
	Upload(ctx context.Context, path, contentType string, data []byte) error
	PublicURL(path string) string
}

// ProfileUpdate holds the editable profile fields. Nil fields are left as they are.
type ProfileUpdate struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Avatar    *string `json:"avatar"`
}

// ProfileService reads and edits the caller's own profile
type ProfileService struct {
	repo    *repository.Repository
	storage AvatarStorage
	logger  *zap.Logger
}

// NewProfileService creates a new profile service
func NewProfileService(repo *repository.Repository, storage AvatarStorage, logger *zap.Logger) *ProfileService {
	return &ProfileService{repo: repo, storage: storage, logger: logger}
}

// Get gets the caller's profile. A missing profile is store.ErrNotFound.
func (s *ProfileService) Get(ctx context.Context, caller scope.Caller) (*db.User, error) {
	return s.repo.UserProfile(store.WithBearer(ctx, caller.Token), caller.UserID)
}

// Update applies u to the caller's profile and returns the stored result
func (s *ProfileService) Update(ctx context.Context, caller scope.Caller, u ProfileUpdate) (*db.User, error) {
	ctx = store.WithBearer(ctx, caller.Token)

	current, err := s.repo.UserProfile(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}

	row := db.ProfileRow{
		ID:        caller.UserID,
		FirstName: current.FirstName,
		LastName:  current.LastName,
		Avatar:    current.Avatar,
		UpdatedAt: time.Now().UTC(),
	}
	if u.FirstName != nil {
		row.FirstName = u.FirstName
	}
	if u.LastName != nil {
		row.LastName = u.LastName
	}
	if u.Avatar != nil {
		row.Avatar = u.Avatar
	}

	if err := s.repo.UpdateProfile(ctx, row); err != nil {
		return nil, err
	}
	s.logger.Info("profile updated", zap.String("user_id", caller.UserID.String()))

	return s.repo.UserProfile(ctx, caller.UserID)
}

// UploadAvatar stores an image under a fresh object name, points the
// caller's avatar at its public URL and returns that URL
func (s *ProfileService) UploadAvatar(ctx context.Context, caller scope.Caller, filename, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty avatar", ErrInvalidInput)
	}
	if len(data) > MaxAvatarBytes {
		return "", fmt.Errorf("%w: avatar larger than %d bytes", ErrInvalidInput, MaxAvatarBytes)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: avatar must be an image, got %q", ErrInvalidInput, contentType)
	}
	ctx = store.WithBearer(ctx, caller.Token)

	objectPath := uuid.NewString() + strings.ToLower(path.Ext(filename))
	if err := s.storage.Upload(ctx, objectPath, contentType, data); err != nil {
		return "", fmt.Errorf("failed to upload avatar: %w", err)
	}

	url := s.storage.PublicURL(objectPath)
	if _, err := s.Update(ctx, caller, ProfileUpdate{Avatar: &url}); err != nil {
		return "", err
	}
	return url, nil
}
