package auth

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/medipos/medipos/internal/shared"
)

// Service resolves opaque API credentials to principals. Credentials have the
// form "keyID.secret"; the secret is stored bcrypt-hashed, so lookup is by
// keyID followed by a hash comparison.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Resolve verifies a bearer credential and returns the matching principal.
func (s *Service) Resolve(ctx context.Context, credential string) (*Principal, error) {
	keyID, secret, ok := strings.Cut(credential, ".")
	if !ok || keyID == "" || secret == "" {
		return nil, shared.ErrInvalidCredentials
	}
	user, err := s.repo.FindByKeyID(ctx, keyID)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.KeyHash), []byte(secret)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return &Principal{UserID: user.ID, Name: user.Name, Role: user.Role}, nil
}
