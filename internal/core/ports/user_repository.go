package ports

import (
	"context"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// UserRepository persists accounts. Misses return domain.ErrUserNotFound;
// unique-key violations return domain.ErrAlreadyInUse.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	// Update overwrites the mutable fields of an existing user.
	Update(ctx context.Context, user *domain.User) error
}

// RoleRepository reads the role catalogue.
type RoleRepository interface {
	DefaultRoles(ctx context.Context) ([]domain.Role, error)
}

// RoleMappingRepository answers which roles may invoke an operation.
// An unmapped operation yields an empty slice, not an error.
type RoleMappingRepository interface {
	RolesFor(ctx context.Context, operation string) ([]string, error)
}
