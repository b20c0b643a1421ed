package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/hivecraft/identity-core/internal/domain"
)

type UserRepository interface {
	UpsertByEmail(ctx context.Context, email string, fullName *string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash, passwordSalt []byte) error
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
}
