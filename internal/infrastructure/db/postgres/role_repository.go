package postgres

import (
	"context"
	"fmt"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// RoleRepository reads roles and the operation to role mapping.
type RoleRepository struct {
	db DBTX
}

func NewRoleRepository(db DBTX) *RoleRepository {
	return &RoleRepository{db: db}
}

// DefaultRoles returns the roles granted on registration.
func (r *RoleRepository) DefaultRoles(ctx context.Context) ([]domain.Role, error) {
	query := `SELECT role_id, role_name, default_role FROM role
	          WHERE default_role = TRUE
	          ORDER BY role_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Default); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return roles, nil
}

// RolesFor returns the names of the roles allowed to call operation. An
// unknown operation yields no roles.
func (r *RoleRepository) RolesFor(ctx context.Context, operation string) ([]string, error) {
	query := `SELECT r.role_name FROM role r
	          JOIN api_mapping am ON r.role_id = am.role_id
	          JOIN api_details ad ON am.api_id = ad.api_id
	          WHERE ad.api_name = $1`

	rows, err := r.db.QueryContext(ctx, query, operation)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	roles := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan role name: %w", err)
		}
		roles = append(roles, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return roles, nil
}
